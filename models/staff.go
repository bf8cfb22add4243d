package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Staff is a municipal staff member issues can be assigned to. UserID links
// the record to an identity so the staff member can act on their own behalf.
type Staff struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	UserID    string             `bson:"userId,omitempty" json:"userId,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

func (s *Staff) Ref() *StaffRef {
	return &StaffRef{StaffID: s.ID, Name: s.Name}
}
