package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"civicsync-engine/engine"
	"civicsync-engine/models"
	"civicsync-engine/payments"
	"civicsync-engine/store"
)

var (
	citizen  = models.Actor{UserID: "citizen-1", Name: "Ana", Email: "ana@example.com", Role: models.RoleCitizen}
	neighbor = models.Actor{UserID: "citizen-2", Name: "Ben", Email: "ben@example.com", Role: models.RoleCitizen}
	admin    = models.Actor{UserID: "admin-1", Name: "Ada", Role: models.RoleAdmin}
)

// stepClock returns a strictly increasing time on every call so ordering by
// updatedAt is deterministic.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	svc      *engine.Service
	issues   *store.MemoryIssueStore
	staff    *store.MemoryStaffDirectory
	accounts *store.MemoryAccounts
	sessions *store.MemorySessionStore
	ledger   *store.MemoryPaymentLedger
}

func newHarness(t *testing.T, cfg engine.Config, provider payments.Provider) *harness {
	t.Helper()
	h := &harness{
		issues:   store.NewMemoryIssueStore(),
		staff:    store.NewMemoryStaffDirectory(),
		accounts: store.NewMemoryAccounts(),
		sessions: store.NewMemorySessionStore(),
		ledger:   store.NewMemoryPaymentLedger(),
	}
	clock := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	deps := engine.Deps{
		Issues:   h.issues,
		Staff:    h.staff,
		Accounts: h.accounts,
		Sessions: h.sessions,
		Ledger:   h.ledger,
		Now:      clock.Now,
	}
	if provider != nil {
		deps.Payments = provider
	}
	h.svc = engine.NewService(deps, cfg)
	return h
}

func (h *harness) createIssue(t *testing.T, by models.Actor, title string) *models.Issue {
	t.Helper()
	issue, err := h.svc.CreateIssue(context.Background(), engine.NewIssue{
		Title:       title,
		Description: "Reported near the main square",
		Category:    models.Road,
		Location:    "Main St",
	}, by)
	if err != nil {
		t.Fatalf("CreateIssue(%q): %v", title, err)
	}
	return issue
}

// addStaff registers a staff member linked to a staff identity.
func (h *harness) addStaff(t *testing.T, name string) (*models.Staff, models.Actor) {
	t.Helper()
	actor := models.Actor{UserID: "staff-" + name, Name: name, Role: models.RoleStaff}
	staff, err := h.staff.AddStaff(context.Background(), &models.Staff{
		Name:   name,
		Email:  name + "@city.gov",
		UserID: actor.UserID,
	})
	if err != nil {
		t.Fatalf("AddStaff(%q): %v", name, err)
	}
	return staff, actor
}

func TestCreateIssueStartsPending(t *testing.T) {
	h := newHarness(t, engine.Config{}, nil)
	issue := h.createIssue(t, citizen, "Pothole")

	if issue.Status != models.Pending || issue.Priority != models.Normal {
		t.Errorf("new issue = %s/%s, want Pending/Normal", issue.Status, issue.Priority)
	}
	if issue.Boosted || issue.Upvotes != 0 || len(issue.UpvotedBy) != 0 {
		t.Errorf("new issue carries engagement: boosted=%v upvotes=%d", issue.Boosted, issue.Upvotes)
	}
	if len(issue.Timeline) != 1 || issue.Timeline[0].Status != models.Pending {
		t.Fatalf("timeline = %+v, want one Pending entry", issue.Timeline)
	}
	if issue.Timeline[0].UpdatedBy != citizen.UserID {
		t.Errorf("creation entry by %q, want %q", issue.Timeline[0].UpdatedBy, citizen.UserID)
	}
	if issue.CreatedBy.UserID != citizen.UserID || issue.CreatedBy.Email != citizen.Email {
		t.Errorf("createdBy = %+v", issue.CreatedBy)
	}
}

func TestCreateIssueValidation(t *testing.T) {
	h := newHarness(t, engine.Config{}, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    engine.NewIssue
		actor models.Actor
		want  error
	}{
		{"missing title", engine.NewIssue{Description: "d", Category: models.Road}, citizen, engine.ErrValidation},
		{"bad category", engine.NewIssue{Title: "t", Description: "d", Category: "Volcano"}, citizen, engine.ErrValidation},
		{"staff cannot report", engine.NewIssue{Title: "t", Description: "d", Category: models.Road}, admin, engine.ErrNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateIssue(ctx, tt.in, tt.actor)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFreeIssueLimit(t *testing.T) {
	h := newHarness(t, engine.Config{FreeIssueLimit: 2}, nil)
	ctx := context.Background()

	h.createIssue(t, citizen, "first")
	h.createIssue(t, citizen, "second")

	_, err := h.svc.CreateIssue(ctx, engine.NewIssue{Title: "third", Description: "d", Category: models.Water}, citizen)
	if !errors.Is(err, engine.ErrNotEligible) {
		t.Fatalf("third issue err = %v, want NotEligible", err)
	}

	h.accounts.SetStanding(citizen.UserID, models.Standing{Premium: true})
	if _, err := h.svc.CreateIssue(ctx, engine.NewIssue{Title: "third", Description: "d", Category: models.Water}, citizen); err != nil {
		t.Errorf("premium citizen blocked by free limit: %v", err)
	}
}

func TestFreeIssueLimitConcurrent(t *testing.T) {
	h := newHarness(t, engine.Config{FreeIssueLimit: 3}, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.CreateIssue(ctx, engine.NewIssue{Title: "Pothole", Description: "d", Category: models.Road}, citizen)
			switch {
			case err == nil:
				created.Add(1)
			case !errors.Is(err, engine.ErrNotEligible):
				t.Errorf("CreateIssue: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 3 {
		t.Errorf("created %d issues, want 3", got)
	}
	if n, _ := h.issues.Count(ctx, engine.Filter{CreatedBy: citizen.UserID}); n != 3 {
		t.Errorf("stored %d issues, want 3", n)
	}
}

func TestBlockedCitizen(t *testing.T) {
	h := newHarness(t, engine.Config{}, nil)
	ctx := context.Background()
	issue := h.createIssue(t, citizen, "Broken light")

	h.accounts.SetStanding(neighbor.UserID, models.Standing{Blocked: true})
	if _, err := h.svc.CreateIssue(ctx, engine.NewIssue{Title: "t", Description: "d", Category: models.Road}, neighbor); !errors.Is(err, engine.ErrNotEligible) {
		t.Errorf("blocked create err = %v, want NotEligible", err)
	}
	if _, err := h.svc.Upvote(ctx, issue.ID.Hex(), neighbor); !errors.Is(err, engine.ErrNotEligible) {
		t.Errorf("blocked upvote err = %v, want NotEligible", err)
	}
}

// flakyStore loses the first n conditional writes.
type flakyStore struct {
	engine.IssueStore
	failures atomic.Int32
}

func (f *flakyStore) ApplyTransition(ctx context.Context, id string, v int64, m engine.Mutation) (*models.Issue, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, engine.ErrConflict
	}
	return f.IssueStore.ApplyTransition(ctx, id, v, m)
}

func TestMutateRetriesLostRaces(t *testing.T) {
	inner := store.NewMemoryIssueStore()
	flaky := &flakyStore{IssueStore: inner}
	svc := engine.NewService(engine.Deps{Issues: flaky}, engine.Config{MaxWriteAttempts: 3})
	ctx := context.Background()

	issue, err := svc.CreateIssue(ctx, engine.NewIssue{Title: "t", Description: "d", Category: models.Other}, citizen)
	if err != nil {
		t.Fatal(err)
	}

	flaky.failures.Store(2)
	updated, err := svc.Upvote(ctx, issue.ID.Hex(), neighbor)
	if err != nil {
		t.Fatalf("upvote after two lost races: %v", err)
	}
	if updated.Upvotes != 1 {
		t.Errorf("upvotes = %d, want 1", updated.Upvotes)
	}

	flaky.failures.Store(3)
	_, err = svc.EscalatePriority(ctx, issue.ID.Hex(), "", admin)
	if !errors.Is(err, engine.ErrConflict) || !engine.Retryable(err) {
		t.Errorf("exhausted retries err = %v, want retryable Conflict", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want engine.Kind
	}{
		{engine.ErrNotFound, engine.KindNotFound},
		{&engine.TransitionError{From: models.Closed, To: models.Working}, engine.KindInvalidTransition},
		{errors.New("boom"), engine.KindInternal},
		{engine.ErrSelfUpvoteForbidden, engine.KindSelfUpvoteForbidden},
	}
	for _, tt := range tests {
		if got := engine.KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if engine.Retryable(engine.ErrAlreadyAssigned) {
		t.Error("AlreadyAssigned must not be retryable")
	}
}
