// Package store holds the persistence adapters behind the engine's
// IssueStore, StaffDirectory, Accounts, SessionStore and PaymentLedger
// contracts: MongoDB and Redis for production, in-memory for tests and
// local runs.
package store

import (
	"context"
	"errors"
	"fmt"

	"civicsync-engine/engine"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id %q", engine.ErrNotFound, id)
	}
	return oid, nil
}

// classifyRead maps driver errors on reads. Anything that is not a missing
// document is an outage.
func classifyRead(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", engine.ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %v", engine.ErrUnavailable, what, err)
}

// classifyWrite maps driver errors on conditional writes. A timeout leaves
// the outcome unknown to us, so the caller must re-read: that is a Conflict.
func classifyWrite(err error, what string) error {
	if err == nil {
		return nil
	}
	switch {
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s timed out: %v", engine.ErrConflict, what, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %s: duplicate key", engine.ErrConflict, what)
	default:
		return fmt.Errorf("%w: %s: %v", engine.ErrUnavailable, what, err)
	}
}
