package models

import "testing"

func TestParseStatus(t *testing.T) {
	tests := map[string]IssueStatus{
		"In Progress": InProgress,
		"inprogress":  InProgress,
		"in-progress": InProgress,
		"IN_PROGRESS": InProgress,
		" resolved ":  Resolved,
	}
	for raw, want := range tests {
		if got, ok := ParseStatus(raw); !ok || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseStatus("Archived"); ok {
		t.Error("ParseStatus accepted an unknown status")
	}
}

func TestCloneIsDeep(t *testing.T) {
	lat := 1.5
	orig := &Issue{
		UpvotedBy:     []string{"a"},
		Timeline:      []TimelineEntry{{Message: "Issue reported"}},
		AssignedStaff: &StaffRef{Name: "Sam"},
		Latitude:      &lat,
	}
	c := orig.Clone()
	c.UpvotedBy[0] = "b"
	c.Timeline[0].Message = "edited"
	c.AssignedStaff.Name = "Kim"
	*c.Latitude = 9

	if orig.UpvotedBy[0] != "a" || orig.Timeline[0].Message != "Issue reported" || orig.AssignedStaff.Name != "Sam" || *orig.Latitude != 1.5 {
		t.Errorf("clone shares state with the original: %+v", orig)
	}
	if empty := (&Issue{UpvotedBy: []string{}}).Clone(); empty.UpvotedBy == nil {
		t.Error("empty upvote set became nil")
	}
}

func TestUserActorDefaultsToCitizen(t *testing.T) {
	u := &User{Name: "Ana", Email: "ana@example.com"}
	if a := u.Actor(); a.Role != RoleCitizen || a.UserID != u.ID.Hex() {
		t.Errorf("actor = %+v", a)
	}
}

func TestPasswordHashing(t *testing.T) {
	u := &User{Password: "secret1"}
	if err := u.HashPassword(); err != nil {
		t.Fatal(err)
	}
	if u.Password == "secret1" || !u.ComparePassword("secret1") || u.ComparePassword("secret2") {
		t.Error("bcrypt round trip failed")
	}
}
