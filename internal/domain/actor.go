package domain

import "time"

// Role is the account type attached to an authenticated actor.
type Role string

const (
	RoleUser        Role = "user"
	RoleCoach       Role = "coach"
	RoleAdmin       Role = "admin"
	RoleInstitution Role = "institution"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCoach, RoleAdmin, RoleInstitution:
		return true
	}
	return false
}

// Actor is the verified identity behind a request.
type Actor struct {
	ID   string
	Role Role
}

// UserProfile is the stored account document.
type UserProfile struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
	Role        Role
	IsVerified  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
