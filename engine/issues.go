package engine

import (
	"context"
	"fmt"
	"strings"

	"civicsync-engine/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	maxLocationLen    = 200
)

// NewIssue is the citizen-supplied part of an issue.
type NewIssue struct {
	Title       string
	Description string
	Category    models.IssueCategory
	Location    string
	Image       string
	Latitude    *float64
	Longitude   *float64
}

func (in NewIssue) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case len(in.Title) > maxTitleLen:
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxTitleLen)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", ErrValidation)
	case len(in.Description) > maxDescriptionLen:
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, maxDescriptionLen)
	case !in.Category.Valid():
		return fmt.Errorf("%w: invalid category %q", ErrValidation, in.Category)
	case len(in.Location) > maxLocationLen:
		return fmt.Errorf("%w: location exceeds %d characters", ErrValidation, maxLocationLen)
	}
	return nil
}

// CreateIssue records a new Pending issue reported by a citizen. The first
// timeline entry is the creation event.
func (s *Service) CreateIssue(ctx context.Context, in NewIssue, actor models.Actor) (*models.Issue, error) {
	if !actor.Is(models.RoleCitizen) {
		return nil, fmt.Errorf("%w: only citizens report issues", ErrNotEligible)
	}
	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	if err := in.validate(); err != nil {
		return nil, err
	}
	unlock := s.creators.lock(actor.UserID)
	defer unlock()
	if err := s.checkQuota(ctx, actor); err != nil {
		return nil, err
	}

	now := s.now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Status:      models.Pending,
		Priority:    models.Normal,
		CreatedBy: models.Reporter{
			UserID: actor.UserID,
			Name:   actor.Name,
			Email:  actor.Email,
		},
		UpvotedBy: []string{},
		Timeline:  []models.TimelineEntry{newEntry(models.Pending, "Issue reported", actor, now)},
		Location:  in.Location,
		Image:     in.Image,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.issues.Create(ctx, issue)
	if err != nil {
		return nil, err
	}
	s.logCommitted("create", created, actor)
	return created, nil
}

func (s *Service) checkQuota(ctx context.Context, actor models.Actor) error {
	if s.accounts == nil {
		return nil
	}
	standing, err := s.accounts.Standing(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if standing.Blocked {
		return fmt.Errorf("%w: account is blocked", ErrNotEligible)
	}
	if standing.Premium || s.cfg.FreeIssueLimit <= 0 {
		return nil
	}
	count, err := s.issues.Count(ctx, Filter{CreatedBy: actor.UserID})
	if err != nil {
		return err
	}
	if count >= int64(s.cfg.FreeIssueLimit) {
		return fmt.Errorf("%w: free plan allows %d issues, subscribe to report more", ErrNotEligible, s.cfg.FreeIssueLimit)
	}
	return nil
}

func (s *Service) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	return s.issues.Get(ctx, id)
}

// ListIssues returns one page of issues in ranked order together with the
// total number of issues matching filter.
func (s *Service) ListIssues(ctx context.Context, filter Filter, page Page) ([]models.Issue, int64, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid category %q", ErrValidation, filter.Category)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid status %q", ErrValidation, filter.Status)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid priority %q", ErrValidation, filter.Priority)
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.issues.List(ctx, filter, page.Normalize())
}

// ChangeStatusRequest asks for a status change. When ExpectedVersion is set
// the change is conditioned on it and a stale version fails with Conflict
// instead of being re-validated.
type ChangeStatusRequest struct {
	Status          models.IssueStatus
	Comment         string
	ExpectedVersion *int64
}

// ChangeStatus moves an issue along the lifecycle graph.
func (s *Service) ChangeStatus(ctx context.Context, id string, req ChangeStatusRequest, actor models.Actor) (*models.Issue, error) {
	updated, err := s.mutate(ctx, id, func(current *models.Issue) (*Mutation, error) {
		if req.ExpectedVersion != nil && current.Version != *req.ExpectedVersion {
			return nil, fmt.Errorf("%w: stale write; expected version %d, found %d", ErrConflict, *req.ExpectedVersion, current.Version)
		}
		now := s.now()
		t, err := ValidateTransition(current.Status, req.Status, actor, req.Comment, now)
		if err != nil {
			return nil, err
		}
		if t.To == models.InProgress && current.AssignedStaff == nil {
			return nil, fmt.Errorf("%w: assign staff to move an issue into %s", ErrValidation, models.InProgress)
		}
		return &Mutation{
			At:    now,
			Entry: &t.Entry,
			Apply: func(issue *models.Issue) { issue.Status = t.To },
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted("status", updated, actor)
	return updated, nil
}

// IssueEdit carries the creator-editable fields. Nil fields are unchanged.
type IssueEdit struct {
	Title       *string
	Description *string
	Category    *models.IssueCategory
	Location    *string
	Image       *string
	Latitude    *float64
	Longitude   *float64
}

// UpdateDetails lets the creator correct a report while it is still Pending.
func (s *Service) UpdateDetails(ctx context.Context, id string, edit IssueEdit, actor models.Actor) (*models.Issue, error) {
	updated, err := s.mutate(ctx, id, func(current *models.Issue) (*Mutation, error) {
		if current.CreatedBy.UserID != actor.UserID {
			return nil, fmt.Errorf("%w: only the reporter can edit an issue", ErrNotEligible)
		}
		if current.Status != models.Pending {
			return nil, fmt.Errorf("%w: issue can no longer be edited once %s", ErrNotEligible, current.Status)
		}

		draft := NewIssue{
			Title:       current.Title,
			Description: current.Description,
			Category:    current.Category,
			Location:    current.Location,
			Image:       current.Image,
			Latitude:    current.Latitude,
			Longitude:   current.Longitude,
		}
		if edit.Title != nil {
			draft.Title = strings.TrimSpace(*edit.Title)
		}
		if edit.Description != nil {
			draft.Description = strings.TrimSpace(*edit.Description)
		}
		if edit.Category != nil {
			draft.Category = *edit.Category
		}
		if edit.Location != nil {
			draft.Location = strings.TrimSpace(*edit.Location)
		}
		if edit.Image != nil {
			draft.Image = *edit.Image
		}
		if edit.Latitude != nil {
			draft.Latitude = edit.Latitude
		}
		if edit.Longitude != nil {
			draft.Longitude = edit.Longitude
		}
		if err := draft.validate(); err != nil {
			return nil, err
		}

		now := s.now()
		entry := newEntry(current.Status, "Issue details updated", actor, now)
		return &Mutation{
			At:    now,
			Entry: &entry,
			Apply: func(issue *models.Issue) {
				issue.Title = draft.Title
				issue.Description = draft.Description
				issue.Category = draft.Category
				issue.Location = draft.Location
				issue.Image = draft.Image
				issue.Latitude = draft.Latitude
				issue.Longitude = draft.Longitude
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted("edit", updated, actor)
	return updated, nil
}

// EscalatePriority raises an issue to High priority on staff judgement.
// Priority is never lowered.
func (s *Service) EscalatePriority(ctx context.Context, id, reason string, actor models.Actor) (*models.Issue, error) {
	if !actor.Is(models.RoleStaff, models.RoleAdmin) {
		return nil, fmt.Errorf("%w: role %q cannot change priority", ErrNotEligible, actor.Role)
	}
	updated, err := s.mutate(ctx, id, func(current *models.Issue) (*Mutation, error) {
		if current.Priority == models.High {
			return nil, nil
		}
		message := "Priority raised to High"
		if r := strings.TrimSpace(reason); r != "" {
			message += ": " + r
		}
		now := s.now()
		entry := newEntry(current.Status, message, actor, now)
		return &Mutation{
			At:    now,
			Entry: &entry,
			Apply: func(issue *models.Issue) { issue.Priority = models.High },
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted("priority", updated, actor)
	return updated, nil
}

// DeleteIssue removes an issue. Only the reporter may delete, and only
// while it is Pending, unassigned and not boosted: worked issues keep their
// audit trail and paid boosts keep the issue their ledger row points at.
func (s *Service) DeleteIssue(ctx context.Context, id string, actor models.Actor) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxWriteAttempts; attempt++ {
		current, err := s.issues.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.CreatedBy.UserID != actor.UserID {
			return fmt.Errorf("%w: only the reporter can delete an issue", ErrNotEligible)
		}
		if current.Status != models.Pending || current.AssignedStaff != nil {
			return fmt.Errorf("%w: issue is %s and can no longer be deleted", ErrNotEligible, current.Status)
		}
		if current.Boosted {
			return fmt.Errorf("%w: boosted issues cannot be deleted", ErrNotEligible)
		}
		err = s.issues.Delete(ctx, id, current.Version)
		if err == nil {
			s.log.Info("issue deleted", "issue_id", id, "actor", actor.UserID)
			return nil
		}
		if !Retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("gave up after %d attempts: %w", s.cfg.MaxWriteAttempts, lastErr)
}
