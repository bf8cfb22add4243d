package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentKind enum
type PaymentKind string

const (
	PaymentBoost        PaymentKind = "boost"
	PaymentSubscription PaymentKind = "subscription"
)

// Payment is one confirmed payment, recorded once per processor reference.
type Payment struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Reference   string              `bson:"reference" json:"reference"`
	Kind        PaymentKind         `bson:"kind" json:"kind"`
	IssueID     *primitive.ObjectID `bson:"issueId,omitempty" json:"issueId,omitempty"`
	UserID      string              `bson:"userId" json:"userId"`
	AmountCents int64               `bson:"amountCents" json:"amountCents"`
	Currency    string              `bson:"currency" json:"currency"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
}

// PaymentTotals is the admin summary over the ledger.
type PaymentTotals struct {
	TotalCents int64 `bson:"total" json:"total"`
	Count      int64 `bson:"count" json:"count"`
}
