package engine

import (
	"sort"
	"strings"

	"civicsync-engine/models"
)

// RankLess is the listing order: boosted issues first, then most recently
// updated, then most recently created, then id. The id tie-break makes the
// order total, so offset pagination over it never repeats or skips an issue.
func RankLess(a, b *models.Issue) bool {
	if a.Boosted != b.Boosted {
		return a.Boosted
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.Hex() < b.ID.Hex()
}

// SortRanked orders issues in place by RankLess.
func SortRanked(issues []models.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return RankLess(&issues[i], &issues[j])
	})
}

// Matches reports whether issue passes filter. Search is a case-insensitive
// substring match over title and description.
func (f Filter) Matches(issue *models.Issue) bool {
	if f.Category != "" && issue.Category != f.Category {
		return false
	}
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.Priority != "" && issue.Priority != f.Priority {
		return false
	}
	if f.CreatedBy != "" && issue.CreatedBy.UserID != f.CreatedBy {
		return false
	}
	if f.StaffID != "" && (issue.AssignedStaff == nil || issue.AssignedStaff.StaffID.Hex() != f.StaffID) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(issue.Title), needle) &&
			!strings.Contains(strings.ToLower(issue.Description), needle) {
			return false
		}
	}
	return true
}

// Paginate sorts the already filtered issues and cuts out one page.
func Paginate(issues []models.Issue, page Page) []models.Issue {
	SortRanked(issues)
	page = page.Normalize()
	start := page.Offset()
	if start >= len(issues) {
		return []models.Issue{}
	}
	end := start + page.Size
	if end > len(issues) {
		end = len(issues)
	}
	return issues[start:end]
}
