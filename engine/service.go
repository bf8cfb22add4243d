// Package engine enforces the issue lifecycle: status transitions, staff
// assignment, upvotes and paid boosts. Every mutation is a read, a
// validation against that state, and a conditional write through the
// IssueStore; a lost race re-reads and re-validates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"civicsync-engine/models"
	"civicsync-engine/payments"
)

const (
	defaultMaxAttempts   = 5
	defaultConfirmWindow = 72 * time.Hour
)

// Config holds the policy knobs of the engine.
type Config struct {
	// FreeIssueLimit caps how many issues a non-premium citizen may hold.
	// Zero disables the cap.
	FreeIssueLimit  int
	BoostPriceCents int64
	BoostCurrency   string
	BoostSessionTTL time.Duration
	// BoostConfirmWindow keeps a checkout session resolvable this long
	// after the checkout itself expires, so late or redelivered payment
	// webhooks still find it.
	BoostConfirmWindow time.Duration
	MaxWriteAttempts   int
}

// Service is the lifecycle engine. It holds no per-request state; every
// call carries its own Actor.
type Service struct {
	issues   IssueStore
	staff    StaffDirectory
	accounts Accounts
	sessions SessionStore
	ledger   PaymentLedger
	payments payments.Provider
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	creators keyedLocks
}

// Deps are the collaborators of a Service. Issues is required; the rest may
// be nil, disabling the operations that need them.
type Deps struct {
	Issues   IssueStore
	Staff    StaffDirectory
	Accounts Accounts
	Sessions SessionStore
	Ledger   PaymentLedger
	Payments payments.Provider
	Logger   *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.MaxWriteAttempts < 1 {
		cfg.MaxWriteAttempts = defaultMaxAttempts
	}
	if cfg.BoostSessionTTL <= 0 {
		cfg.BoostSessionTTL = 30 * time.Minute
	}
	if cfg.BoostConfirmWindow <= 0 {
		cfg.BoostConfirmWindow = defaultConfirmWindow
	}
	if cfg.BoostCurrency == "" {
		cfg.BoostCurrency = "usd"
	}
	s := &Service{
		issues:   deps.Issues,
		staff:    deps.Staff,
		accounts: deps.Accounts,
		sessions: deps.Sessions,
		ledger:   deps.Ledger,
		payments: deps.Payments,
		cfg:      cfg,
		log:      deps.Logger,
		now:      deps.Now,
		creators: keyedLocks{held: make(map[string]*keyedLock)},
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// plan inspects the latest state and returns the mutation to commit.
// A nil mutation with a nil error means the request is already satisfied.
type plan func(current *models.Issue) (*Mutation, error)

// mutate runs the read-validate-write loop for one issue. Preconditions are
// re-checked against fresh state after every lost race, so the last
// successful writer always acted on what it saw.
func (s *Service) mutate(ctx context.Context, id string, p plan) (*models.Issue, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		current, err := s.issues.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		m, err := p(current)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return current, nil
		}
		updated, err := s.issues.ApplyTransition(ctx, id, current.Version, *m)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.log.Debug("issue write lost race, retrying", "issue_id", id, "attempt", attempt, "version", current.Version)
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", s.cfg.MaxWriteAttempts, lastErr)
}

func (s *Service) logCommitted(op string, issue *models.Issue, actor models.Actor) {
	s.log.Info("issue updated",
		"op", op,
		"issue_id", issue.ID.Hex(),
		"actor", actor.UserID,
		"role", actor.Role,
		"status", issue.Status,
		"version", issue.Version,
	)
}

// keyedLocks serializes work per key, here per reporting user, so a quota
// check and the write it guards are not interleaved with another request
// from the same user on this process.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.held[key]
	if !ok {
		l = &keyedLock{}
		k.held[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}
