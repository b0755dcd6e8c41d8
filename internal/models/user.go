package models

const RoleAdmin = "admin"

// User is the authenticated caller, built from the bearer token claims.
type User struct {
	ID    string `json:"user_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
