package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"civicsync-engine/engine"
	"civicsync-engine/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// rankSort is engine.RankLess expressed as a Mongo sort.
var rankSort = bson.D{
	{Key: "boosted", Value: -1},
	{Key: "updatedAt", Value: -1},
	{Key: "createdAt", Value: -1},
	{Key: "_id", Value: 1},
}

// MongoIssueStore persists issues as whole documents. Every write replaces
// the document only if its version still matches, so field changes and the
// timeline entry land together or not at all.
type MongoIssueStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoIssueStore(db *mongo.Database) *MongoIssueStore {
	return &MongoIssueStore{coll: db.Collection("issues"), timeout: 10 * time.Second}
}

func (s *MongoIssueStore) Collection() *mongo.Collection { return s.coll }

func (s *MongoIssueStore) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, issue); err != nil {
		return nil, classifyWrite(err, "create issue")
	}
	return issue.Clone(), nil
}

func (s *MongoIssueStore) Get(ctx context.Context, id string) (*models.Issue, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var issue models.Issue
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&issue)
	if err != nil {
		return nil, classifyRead(err, fmt.Sprintf("issue %q", id))
	}
	return &issue, nil
}

func buildFilter(f engine.Filter) (bson.M, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}
	if f.CreatedBy != "" {
		filter["createdBy.userId"] = f.CreatedBy
	}
	if f.StaffID != "" {
		oid, err := parseID(f.StaffID)
		if err != nil {
			return nil, err
		}
		filter["assignedStaff.staffId"] = oid
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return filter, nil
}

func (s *MongoIssueStore) List(ctx context.Context, f engine.Filter, page engine.Page) ([]models.Issue, int64, error) {
	filter, err := buildFilter(f)
	if errors.Is(err, engine.ErrNotFound) {
		return []models.Issue{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	page = page.Normalize()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, classifyRead(err, "count issues")
	}

	findOptions := options.Find().
		SetSort(rankSort).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))

	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, classifyRead(err, "list issues")
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, classifyRead(err, "decode issues")
	}
	return issues, total, nil
}

func (s *MongoIssueStore) Count(ctx context.Context, f engine.Filter) (int64, error) {
	filter, err := buildFilter(f)
	if errors.Is(err, engine.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, classifyRead(err, "count issues")
	}
	return n, nil
}

func (s *MongoIssueStore) ApplyTransition(ctx context.Context, id string, expectedVersion int64, m engine.Mutation) (*models.Issue, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: stale write; expected version %d", engine.ErrConflict, expectedVersion)
	}
	next := m.Next(current)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var updated models.Issue
	err = s.coll.FindOneAndReplace(ctx,
		bson.M{"_id": current.ID, "version": expectedVersion},
		next,
		options.FindOneAndReplace().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missOrConflict(ctx, current, expectedVersion)
	}
	if err != nil {
		return nil, classifyWrite(err, "update issue")
	}
	return &updated, nil
}

func (s *MongoIssueStore) Delete(ctx context.Context, id string, expectedVersion int64) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid, "version": expectedVersion})
	if err != nil {
		return classifyWrite(err, "delete issue")
	}
	if res.DeletedCount == 0 {
		return s.missOrConflict(ctx, &models.Issue{ID: oid}, expectedVersion)
	}
	return nil
}

// missOrConflict explains why a conditional write matched nothing.
func (s *MongoIssueStore) missOrConflict(ctx context.Context, issue *models.Issue, expectedVersion int64) error {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": issue.ID})
	if err != nil {
		return classifyWrite(err, "recheck issue")
	}
	if n == 0 {
		return fmt.Errorf("%w: issue %q", engine.ErrNotFound, issue.ID.Hex())
	}
	return fmt.Errorf("%w: stale write; expected version %d", engine.ErrConflict, expectedVersion)
}
