package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIssueIndexes creates the listing index matching the ranking order
// plus lookups by creator and assigned staff.
func EnsureIssueIndexes(collection *mongo.Collection) error {
	return createIndexes(collection, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "boosted", Value: -1},
			{Key: "updatedAt", Value: -1},
			{Key: "createdAt", Value: -1},
			{Key: "_id", Value: 1},
		}},
		{Keys: bson.D{{Key: "createdBy.userId", Value: 1}}},
		{Keys: bson.D{{Key: "assignedStaff.staffId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
}

// EnsurePaymentIndex creates a unique index on the processor reference so a
// payment is recorded at most once.
func EnsurePaymentIndex(collection *mongo.Collection) error {
	return createIndexes(collection, []mongo.IndexModel{{
		Keys:    bson.D{{Key: "reference", Value: 1}},
		Options: options.Index().SetUnique(true),
	}})
}

// EnsureEmailIndex creates a unique email index (users, staff).
func EnsureEmailIndex(collection *mongo.Collection) error {
	return createIndexes(collection, []mongo.IndexModel{{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}})
}

func createIndexes(collection *mongo.Collection, models []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, models)
	return err
}
