package engine

import (
	"context"
	"fmt"

	"civicsync-engine/models"
)

const staffAssignedMessage = "Staff assigned"

func (s *Service) lookupStaff(ctx context.Context, staffID string) (*models.Staff, error) {
	if s.staff == nil {
		return nil, fmt.Errorf("%w: staff directory not configured", ErrUnavailable)
	}
	return s.staff.GetStaff(ctx, staffID)
}

// Assign binds a staff member to an unassigned issue. A Pending issue moves
// to In Progress in the same write. Admins may assign anyone; a staff member
// may only assign themselves.
func (s *Service) Assign(ctx context.Context, issueID, staffID string, actor models.Actor) (*models.Issue, error) {
	if !actor.Is(models.RoleAdmin, models.RoleStaff) {
		return nil, fmt.Errorf("%w: role %q cannot assign staff", ErrNotEligible, actor.Role)
	}
	staff, err := s.lookupStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if actor.Is(models.RoleStaff) && (staff.UserID == "" || staff.UserID != actor.UserID) {
		return nil, fmt.Errorf("%w: staff members can only assign themselves", ErrNotEligible)
	}

	updated, err := s.mutate(ctx, issueID, func(current *models.Issue) (*Mutation, error) {
		if current.AssignedStaff != nil {
			return nil, fmt.Errorf("%w: issue is assigned to %s", ErrAlreadyAssigned, current.AssignedStaff.Name)
		}
		now := s.now()
		status := current.Status
		entry := newEntry(status, staffAssignedMessage, actor, now)
		if current.Status == models.Pending {
			t, err := ValidateTransition(current.Status, models.InProgress, actor, staffAssignedMessage, now)
			if err != nil {
				return nil, err
			}
			status, entry = t.To, t.Entry
		}
		ref := staff.Ref()
		return &Mutation{
			At:    now,
			Entry: &entry,
			Apply: func(issue *models.Issue) {
				issue.AssignedStaff = ref
				issue.Status = status
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted("assign", updated, actor)
	return updated, nil
}

// Reassign replaces the staff member on an assigned issue. It is logged as
// its own timeline entry and leaves the status untouched.
func (s *Service) Reassign(ctx context.Context, issueID, staffID string, actor models.Actor) (*models.Issue, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, fmt.Errorf("%w: only admins reassign staff", ErrNotEligible)
	}
	staff, err := s.lookupStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, issueID, func(current *models.Issue) (*Mutation, error) {
		if current.Status == models.Closed {
			return nil, fmt.Errorf("%w: closed issues cannot be reassigned", ErrNotEligible)
		}
		if current.AssignedStaff == nil {
			return nil, fmt.Errorf("%w: issue has no assigned staff, assign instead", ErrValidation)
		}
		if current.AssignedStaff.StaffID == staff.ID {
			return nil, nil
		}
		now := s.now()
		message := fmt.Sprintf("Staff reassigned from %s to %s", current.AssignedStaff.Name, staff.Name)
		entry := newEntry(current.Status, message, actor, now)
		ref := staff.Ref()
		return &Mutation{
			At:    now,
			Entry: &entry,
			Apply: func(issue *models.Issue) { issue.AssignedStaff = ref },
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted("reassign", updated, actor)
	return updated, nil
}
