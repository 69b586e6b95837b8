package models

import "time"

// UserRole defines the access level of a system user.
type UserRole string

// Supported roles.
const (
	RoleAdmin UserRole = "ADMIN"
	RoleUser  UserRole = "USER"
)

// ValidUserRole reports whether the value is a known role.
func ValidUserRole(r UserRole) bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a system account able to authenticate against the API.
// The password hash never leaves the server.
type User struct {
	ID           string     `db:"id" json:"id"`
	FullName     string     `db:"full_name" json:"full_name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter encapsulates allowed search parameters for listing users.
type UserFilter struct {
	Search    string
	Role      *UserRole
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UserInfo is the public projection of a user.
type UserInfo struct {
	ID       string   `json:"id"`
	FullName string   `json:"name"`
	Email    string   `json:"email,omitempty"`
	Role     UserRole `json:"role"`
}
