package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Streetlight IssueCategory = "Streetlight"
	Road        IssueCategory = "Road"
	Water       IssueCategory = "Water"
	Garbage     IssueCategory = "Garbage"
	Safety      IssueCategory = "Safety"
	PublicSpace IssueCategory = "Public Space"
	Electricity IssueCategory = "Electricity"
	Sanitation  IssueCategory = "Sanitation"
	Emergency   IssueCategory = "Emergency"
	Other       IssueCategory = "Other"
)

var categories = []IssueCategory{
	Streetlight, Road, Water, Garbage, Safety, PublicSpace, Electricity, Sanitation, Emergency, Other,
}

// Categories returns the closed set of issue categories.
func Categories() []IssueCategory {
	out := make([]IssueCategory, len(categories))
	copy(out, categories)
	return out
}

func (c IssueCategory) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "Pending"
	InProgress IssueStatus = "In Progress"
	Working    IssueStatus = "Working"
	Resolved   IssueStatus = "Resolved"
	Closed     IssueStatus = "Closed"
)

var statuses = []IssueStatus{Pending, InProgress, Working, Resolved, Closed}

// Statuses returns every issue status in lifecycle order.
func Statuses() []IssueStatus {
	out := make([]IssueStatus, len(statuses))
	copy(out, statuses)
	return out
}

func (s IssueStatus) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts the canonical spelling as well as the compact and
// hyphenated forms clients send ("InProgress", "in-progress").
func ParseStatus(raw string) (IssueStatus, bool) {
	key := normalizeEnum(raw)
	for _, s := range statuses {
		if normalizeEnum(string(s)) == key {
			return s, true
		}
	}
	return "", false
}

// IssuePriority enum
type IssuePriority string

const (
	Normal IssuePriority = "Normal"
	High   IssuePriority = "High"
)

func (p IssuePriority) Valid() bool {
	return p == Normal || p == High
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

// Reporter identifies the citizen who created an issue.
type Reporter struct {
	UserID string `bson:"userId" json:"userId"`
	Name   string `bson:"name" json:"name"`
	Email  string `bson:"email" json:"email"`
}

// StaffRef is the snapshot of a staff member held by an assigned issue.
type StaffRef struct {
	StaffID primitive.ObjectID `bson:"staffId" json:"staffId"`
	Name    string             `bson:"name" json:"name"`
}

// TimelineEntry is one append-only audit record on an issue.
type TimelineEntry struct {
	Status    IssueStatus `bson:"status" json:"status"`
	Message   string      `bson:"message" json:"message"`
	UpdatedBy string      `bson:"updatedBy" json:"updatedBy"`
	ActorName string      `bson:"actorName,omitempty" json:"actorName,omitempty"`
	Role      Role        `bson:"role" json:"role"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Category      IssueCategory      `bson:"category" json:"category"`
	Status        IssueStatus        `bson:"status" json:"status"`
	Priority      IssuePriority      `bson:"priority" json:"priority"`
	CreatedBy     Reporter           `bson:"createdBy" json:"createdBy"`
	AssignedStaff *StaffRef          `bson:"assignedStaff" json:"assignedStaff"`
	Upvotes       int                `bson:"upvotes" json:"upvotes"`
	UpvotedBy     []string           `bson:"upvotedBy" json:"upvotedBy"`
	Boosted       bool               `bson:"boosted" json:"boosted"`
	Timeline      []TimelineEntry    `bson:"timeline" json:"timeline"`
	Location      string             `bson:"location" json:"location"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"`
	Longitude     *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Latitude      *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Version       int64              `bson:"version" json:"version"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasUpvoted reports whether userID is already in the upvote set.
func (i *Issue) HasUpvoted(userID string) bool {
	for _, id := range i.UpvotedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores never hand out shared slices.
func (i *Issue) Clone() *Issue {
	out := *i
	if i.AssignedStaff != nil {
		staff := *i.AssignedStaff
		out.AssignedStaff = &staff
	}
	if i.UpvotedBy != nil {
		out.UpvotedBy = append(make([]string, 0, len(i.UpvotedBy)), i.UpvotedBy...)
	}
	if i.Timeline != nil {
		out.Timeline = append(make([]TimelineEntry, 0, len(i.Timeline)), i.Timeline...)
	}
	if i.Longitude != nil {
		lon := *i.Longitude
		out.Longitude = &lon
	}
	if i.Latitude != nil {
		lat := *i.Latitude
		out.Latitude = &lat
	}
	return &out
}
