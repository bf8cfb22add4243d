package engine

import (
	"fmt"
	"strings"
	"time"

	"civicsync-engine/models"
)

// Forward edges plus the two corrective edges (Working -> In Progress for
// re-investigation, Resolved -> Working when a resolution is rejected).
var validTransitions = map[models.IssueStatus]map[models.IssueStatus]bool{
	models.Pending: {
		models.InProgress: true,
	},
	models.InProgress: {
		models.Working: true,
	},
	models.Working: {
		models.Resolved:   true,
		models.InProgress: true,
	},
	models.Resolved: {
		models.Closed:  true,
		models.Working: true,
	},
	models.Closed: {},
}

// Transition is the outcome of a validated status change: the status to
// commit and the timeline entry that must be appended with it.
type Transition struct {
	From  models.IssueStatus
	To    models.IssueStatus
	Entry models.TimelineEntry
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to models.IssueStatus) bool {
	return validTransitions[from][to]
}

// NextStatuses lists the statuses reachable from current in one step, in
// lifecycle order. Clients use it to decide which actions to offer.
func NextStatuses(current models.IssueStatus) []models.IssueStatus {
	var out []models.IssueStatus
	for _, s := range models.Statuses() {
		if CanTransition(current, s) {
			out = append(out, s)
		}
	}
	return out
}

// ValidateTransition decides whether actor may move an issue from current to
// requested. It performs no I/O; the caller commits the returned entry.
func ValidateTransition(current, requested models.IssueStatus, actor models.Actor, message string, at time.Time) (Transition, error) {
	if !requested.Valid() {
		return Transition{}, fmt.Errorf("%w: unknown status %q", ErrValidation, requested)
	}
	if !actor.Is(models.RoleStaff, models.RoleAdmin) {
		return Transition{}, fmt.Errorf("%w: role %q cannot change issue status", ErrNotEligible, actor.Role)
	}
	if !CanTransition(current, requested) {
		return Transition{}, &TransitionError{From: current, To: requested}
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Transition{}, fmt.Errorf("%w: a comment is required to change status", ErrValidation)
	}
	return Transition{
		From:  current,
		To:    requested,
		Entry: newEntry(requested, message, actor, at),
	}, nil
}

func newEntry(status models.IssueStatus, message string, actor models.Actor, at time.Time) models.TimelineEntry {
	return models.TimelineEntry{
		Status:    status,
		Message:   message,
		UpdatedBy: actor.UserID,
		ActorName: actor.Name,
		Role:      actor.Role,
		Timestamp: at,
	}
}
