package entity

import "time"

// User is a staff member who can hold case steps
type User struct {
	ID         int64         `json:"id"`
	FirstName  string        `json:"first_name"`
	MiddleName string        `json:"middle_name,omitempty"`
	LastName   string        `json:"last_name"`
	Email      string        `json:"email"`
	Roles      []RoleSummary `json:"roles"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Summary returns the display projection of the user
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:         u.ID,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
	}
}

// Actor returns the acting identity for this user
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Roles: u.Roles}
}

// UserSummary is the immutable user projection returned by workflow queries
type UserSummary struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
}

// RoleSummary is the immutable role projection returned by workflow queries
type RoleSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Actor is the logged-in user performing an operation
type Actor struct {
	UserID int64         `json:"user_id"`
	Roles  []RoleSummary `json:"roles"`
}

// HasRole reports whether the actor holds the role
func (a Actor) HasRole(roleID int64) bool {
	for _, r := range a.Roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the actor holds at least one of the roles
func (a Actor) HasAnyRole(roles []RoleSummary) bool {
	for _, r := range roles {
		if a.HasRole(r.ID) {
			return true
		}
	}
	return false
}

// RoleIDs returns the ids of the actor's roles
func (a Actor) RoleIDs() []int64 {
	ids := make([]int64, 0, len(a.Roles))
	for _, r := range a.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}
