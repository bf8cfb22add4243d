package engine

import (
	"context"
	"time"

	"civicsync-engine/models"
)

// Mutation is a single atomic change to one issue. Apply edits the fields of
// a private copy; Entry, when set, is appended to the timeline in the same
// write. At becomes the issue's updatedAt.
type Mutation struct {
	At    time.Time
	Apply func(issue *models.Issue)
	Entry *models.TimelineEntry
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	Search    string
	Category  models.IssueCategory
	Status    models.IssueStatus
	Priority  models.IssuePriority
	CreatedBy string
	StaffID   string
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// IssueStore is the single source of truth for issues. ApplyTransition is
// the only mutation path: it fails with ErrConflict unless the stored version
// equals expectedVersion, and it bumps the version on success. Store outages
// surface as ErrUnavailable; a timed-out conditional write surfaces as
// ErrConflict.
type IssueStore interface {
	Create(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	Get(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter Filter, page Page) ([]models.Issue, int64, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	ApplyTransition(ctx context.Context, id string, expectedVersion int64, m Mutation) (*models.Issue, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

// StaffDirectory resolves staff ids.
type StaffDirectory interface {
	GetStaff(ctx context.Context, id string) (*models.Staff, error)
}

// Accounts reports the standing of a citizen. Optional.
type Accounts interface {
	Standing(ctx context.Context, userID string) (models.Standing, error)
}

// SessionStore remembers which issue a boost checkout session was opened
// for until the payment is confirmed or the session expires.
type SessionStore interface {
	SaveSession(ctx context.Context, sessionID, issueID string, ttl time.Duration) error
	LookupSession(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// PaymentLedger records confirmed payments once per reference.
type PaymentLedger interface {
	Record(ctx context.Context, p *models.Payment) error
}

// Next builds the state that committing m on top of current produces. Store
// adapters share it so memory and Mongo commit identical documents.
func (m Mutation) Next(current *models.Issue) *models.Issue {
	next := current.Clone()
	if m.Apply != nil {
		m.Apply(next)
	}
	if m.Entry != nil {
		next.Timeline = append(next.Timeline, *m.Entry)
	}
	if !m.At.IsZero() {
		next.UpdatedAt = m.At
	}
	next.Version = current.Version + 1
	return next
}
