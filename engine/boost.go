package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"civicsync-engine/models"
	"civicsync-engine/payments"
)

const issueBoostedMessage = "Issue boosted"

// RequestBoost opens a checkout for boosting an issue. Only the reporter of a
// not-yet-boosted issue is eligible. The issue itself is not touched, so an
// abandoned checkout leaves no trace on it.
func (s *Service) RequestBoost(ctx context.Context, issueID string, actor models.Actor) (*payments.Checkout, error) {
	if s.payments == nil || s.sessions == nil {
		return nil, fmt.Errorf("%w: payments not configured", ErrUnavailable)
	}
	issue, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.CreatedBy.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: only the reporter can boost an issue", ErrNotEligible)
	}
	if issue.Boosted {
		return nil, fmt.Errorf("%w: issue is already boosted", ErrNotEligible)
	}

	checkout, err := s.payments.CreateCheckout(ctx, payments.CheckoutRequest{
		Purpose:     payments.PurposeBoost,
		Reference:   issue.ID.Hex(),
		CustomerID:  actor.UserID,
		Email:       actor.Email,
		AmountCents: s.cfg.BoostPriceCents,
		Currency:    s.cfg.BoostCurrency,
		TTL:         s.cfg.BoostSessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout: %v", ErrUnavailable, err)
	}
	retention := s.cfg.BoostSessionTTL + s.cfg.BoostConfirmWindow
	if err := s.sessions.SaveSession(ctx, checkout.SessionID, issue.ID.Hex(), retention); err != nil {
		return nil, err
	}
	s.log.Info("boost checkout opened", "issue_id", issueID, "session_id", checkout.SessionID, "actor", actor.UserID)
	return checkout, nil
}

// ConfirmBoost applies a confirmed boost payment. It is called only by the
// trusted payment webhook and is idempotent per issue: once boosted, any
// further confirmation returns the current state unchanged. A second paid
// checkout for an already boosted issue is still written to the ledger.
func (s *Service) ConfirmBoost(ctx context.Context, issueID, paymentReference string) (*models.Issue, error) {
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", ErrValidation)
	}

	current, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if current.Boosted {
		return s.recordLateBoostPayment(ctx, current, paymentReference)
	}
	if err := s.verifySession(ctx, paymentReference, current.ID.Hex()); err != nil {
		return nil, err
	}
	if err := s.recordBoostPayment(ctx, current, paymentReference); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, issueID, func(current *models.Issue) (*Mutation, error) {
		if current.Boosted {
			return nil, nil
		}
		now := s.now()
		entry := newEntry(current.Status, issueBoostedMessage, models.SystemActor, now)
		return &Mutation{
			At:    now,
			Entry: &entry,
			Apply: func(issue *models.Issue) {
				issue.Boosted = true
				issue.Priority = models.High
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.closeSession(ctx, paymentReference)
	s.logCommitted("boost", updated, models.SystemActor)
	return updated, nil
}

// recordLateBoostPayment handles a confirmation for an issue that is already
// boosted. A still-open session for this issue means a second checkout was
// paid; the payment is recorded so it can be refunded. Anything else is a
// redelivery and is ignored.
func (s *Service) recordLateBoostPayment(ctx context.Context, issue *models.Issue, reference string) (*models.Issue, error) {
	if s.sessions == nil {
		return issue, nil
	}
	if err := s.verifySession(ctx, reference, issue.ID.Hex()); err != nil {
		return issue, nil
	}
	if err := s.recordBoostPayment(ctx, issue, reference); err != nil {
		return nil, err
	}
	s.closeSession(ctx, reference)
	s.log.Warn("duplicate boost payment recorded", "issue_id", issue.ID.Hex(), "session_id", reference)
	return issue, nil
}

func (s *Service) recordBoostPayment(ctx context.Context, issue *models.Issue, reference string) error {
	if s.ledger == nil {
		return nil
	}
	issueOID := issue.ID
	return s.ledger.Record(ctx, &models.Payment{
		Reference:   reference,
		Kind:        models.PaymentBoost,
		IssueID:     &issueOID,
		UserID:      issue.CreatedBy.UserID,
		AmountCents: s.cfg.BoostPriceCents,
		Currency:    s.cfg.BoostCurrency,
		CreatedAt:   s.now(),
	})
}

func (s *Service) closeSession(ctx context.Context, reference string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DeleteSession(ctx, reference); err != nil {
		s.log.Warn("failed to delete boost session", "session_id", reference, "error", err)
	}
}

// verifySession checks that the reference belongs to a checkout opened for
// this issue. Without a session store every reference is accepted.
func (s *Service) verifySession(ctx context.Context, reference, issueID string) error {
	if s.sessions == nil {
		return nil
	}
	boundTo, err := s.sessions.LookupSession(ctx, reference)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: unknown or expired payment reference", ErrNotEligible)
	}
	if err != nil {
		return err
	}
	if boundTo != issueID {
		return fmt.Errorf("%w: payment reference belongs to another issue", ErrNotEligible)
	}
	return nil
}
