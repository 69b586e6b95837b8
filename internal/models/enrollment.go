package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Only ENROLLED holds a seat in the group.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusInProgress EnrollmentStatus = "IN_PROGRESS"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled  EnrollmentStatus = "CANCELLED"
)

// ValidEnrollmentStatus reports whether the value is a known status.
func ValidEnrollmentStatus(s EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusEnrolled, EnrollmentStatusInProgress, EnrollmentStatusCompleted, EnrollmentStatusCancelled:
		return true
	}
	return false
}

// HoldsSeat reports whether the status counts against group capacity.
func (s EnrollmentStatus) HoldsSeat() bool {
	return s == EnrollmentStatusEnrolled
}

// Enrollment binds one student to one group.
type Enrollment struct {
	ID         int64            `db:"id" json:"id"`
	StudentID  int64            `db:"student_id" json:"student_id"`
	GroupID    int64            `db:"group_id" json:"group_id"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Grade      *float64         `db:"grade" json:"grade,omitempty"`
	Attendance *float64         `db:"attendance" json:"attendance,omitempty"`
	Notes      string           `db:"notes" json:"notes"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail contains an enrollment with student and group context.
type EnrollmentDetail struct {
	Enrollment
	StudentName  *string `db:"student_name" json:"student_name,omitempty"`
	StudentEmail *string `db:"student_email" json:"student_email,omitempty"`
	GroupName    *string `db:"group_name" json:"group_name,omitempty"`
	GroupCode    *string `db:"group_code" json:"group_code,omitempty"`
}

// EnrollmentFilter encapsulates allowed search parameters for listing enrollments.
type EnrollmentFilter struct {
	StudentID int64
	GroupID   int64
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EnrollmentStats aggregates counts over all enrollments.
type EnrollmentStats struct {
	Total          int     `db:"total" json:"total"`
	Active         int     `db:"active" json:"active"`
	Completed      int     `db:"completed" json:"completed"`
	Cancelled      int     `db:"cancelled" json:"cancelled"`
	CompletionRate float64 `db:"-" json:"completion_rate"`
}
