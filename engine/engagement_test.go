package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"civicsync-engine/engine"
	"civicsync-engine/models"

	"golang.org/x/sync/errgroup"
)

func TestUpvoteRules(t *testing.T) {
	h := newHarness(t, engine.Config{}, nil)
	ctx := context.Background()
	issue := h.createIssue(t, citizen, "Pothole")
	id := issue.ID.Hex()

	if _, err := h.svc.Upvote(ctx, id, citizen); !errors.Is(err, engine.ErrSelfUpvoteForbidden) {
		t.Errorf("self upvote err = %v, want SelfUpvoteForbidden", err)
	}

	up, err := h.svc.Upvote(ctx, id, neighbor)
	if err != nil {
		t.Fatalf("Upvote: %v", err)
	}
	if up.Upvotes != 1 || !up.HasUpvoted(neighbor.UserID) {
		t.Errorf("after upvote: upvotes=%d upvotedBy=%v", up.Upvotes, up.UpvotedBy)
	}
	if len(up.Timeline) != len(issue.Timeline) {
		t.Errorf("upvote must not touch the timeline")
	}

	if _, err := h.svc.Upvote(ctx, id, neighbor); !errors.Is(err, engine.ErrAlreadyUpvoted) {
		t.Errorf("repeat upvote err = %v, want AlreadyUpvoted", err)
	}
	final, _ := h.svc.GetIssue(ctx, id)
	if final.Upvotes != 1 || len(final.UpvotedBy) != 1 {
		t.Errorf("repeat upvote changed the count: %d", final.Upvotes)
	}

	if _, err := h.svc.Upvote(ctx, id, admin); err != nil {
		t.Errorf("admin upvote: %v", err)
	}
}

// TestConcurrentUpvotes has many citizens upvote at once; every vote must
// be counted exactly once.
func TestConcurrentUpvotes(t *testing.T) {
	h := newHarness(t, engine.Config{MaxWriteAttempts: 100}, nil)
	issue := h.createIssue(t, citizen, "Broken bench")
	id := issue.ID.Hex()

	const voters = 25
	var g errgroup.Group
	for i := 0; i < voters; i++ {
		voter := models.Actor{UserID: fmt.Sprintf("voter-%d", i), Role: models.RoleCitizen}
		g.Go(func() error {
			_, err := h.svc.Upvote(context.Background(), id, voter)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent upvote: %v", err)
	}

	final, err := h.svc.GetIssue(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if final.Upvotes != voters || len(final.UpvotedBy) != voters {
		t.Errorf("upvotes=%d upvotedBy=%d, want %d", final.Upvotes, len(final.UpvotedBy), voters)
	}
}

// TestConcurrentDuplicateUpvote races the same citizen against themselves.
func TestConcurrentDuplicateUpvote(t *testing.T) {
	h := newHarness(t, engine.Config{MaxWriteAttempts: 20}, nil)
	issue := h.createIssue(t, citizen, "Loose cable")
	id := issue.ID.Hex()

	errs := make([]error, 8)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = h.svc.Upvote(context.Background(), id, neighbor)
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, engine.ErrAlreadyUpvoted) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d successful upvotes, want 1", ok)
	}
	final, _ := h.svc.GetIssue(context.Background(), id)
	if final.Upvotes != 1 {
		t.Errorf("upvotes = %d, want 1", final.Upvotes)
	}
}
