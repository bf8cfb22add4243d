package engine

import (
	"context"
	"fmt"

	"civicsync-engine/models"
)

// Upvote adds actor to the issue's supporters. Upvotes are monotonic and at
// most one per user; the counter is recomputed from the set on every write
// so retries can never drift it.
func (s *Service) Upvote(ctx context.Context, issueID string, actor models.Actor) (*models.Issue, error) {
	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if s.accounts != nil {
		standing, err := s.accounts.Standing(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if standing.Blocked {
			return nil, fmt.Errorf("%w: account is blocked", ErrNotEligible)
		}
	}

	updated, err := s.mutate(ctx, issueID, func(current *models.Issue) (*Mutation, error) {
		if current.CreatedBy.UserID == actor.UserID {
			return nil, ErrSelfUpvoteForbidden
		}
		if current.HasUpvoted(actor.UserID) {
			return nil, ErrAlreadyUpvoted
		}
		return &Mutation{
			At: s.now(),
			Apply: func(issue *models.Issue) {
				issue.UpvotedBy = append(issue.UpvotedBy, actor.UserID)
				issue.Upvotes = len(issue.UpvotedBy)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted("upvote", updated, actor)
	return updated, nil
}
