package models

import "time"

// StudentStatus represents the academic standing of a student.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusSuspended StudentStatus = "SUSPENDED"
	StudentStatusWithdrawn StudentStatus = "WITHDRAWN"
)

// ValidStudentStatus reports whether the value is a known status.
func ValidStudentStatus(s StudentStatus) bool {
	switch s {
	case StudentStatusActive, StudentStatusSuspended, StudentStatusWithdrawn:
		return true
	}
	return false
}

// Student represents a learner registered in the institution.
type Student struct {
	ID        int64         `db:"id" json:"id"`
	Matricula *string       `db:"matricula" json:"matricula,omitempty"`
	FullName  string        `db:"full_name" json:"full_name"`
	Age       *int          `db:"age" json:"age,omitempty"`
	Email     string        `db:"email" json:"email"`
	Phone     string        `db:"phone" json:"phone"`
	Address   string        `db:"address" json:"address"`
	Status    StudentStatus `db:"status" json:"status"`
	Active    bool          `db:"active" json:"active"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    StudentStatus
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
