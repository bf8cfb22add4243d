package models

// Role is the claim the identity provider attaches to a verified user.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
	// RoleSystem is reserved for trusted callbacks such as payment webhooks.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleStaff, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// Actor is the immutable "who is acting" value passed into every engine
// operation. The engine never reads identity from ambient state.
type Actor struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// SystemActor is used for timeline entries written by trusted callbacks.
var SystemActor = Actor{UserID: "system", Name: "System", Role: RoleSystem}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
