package models

import "time"

// GroupStatus indicates whether a group accepts new enrollments.
type GroupStatus string

// Possible group statuses.
const (
	GroupStatusOpen   GroupStatus = "OPEN"
	GroupStatusClosed GroupStatus = "CLOSED"
)

// ValidGroupStatus reports whether the value is a known status.
func ValidGroupStatus(s GroupStatus) bool {
	return s == GroupStatusOpen || s == GroupStatusClosed
}

// Group represents a course section with a seat capacity.
// EnrolledCount is a derived counter maintained by the enrollment
// repository inside the same transaction as any seat-affecting write;
// it is never edited directly.
type Group struct {
	ID            int64       `db:"id" json:"id"`
	Code          string      `db:"code" json:"code"`
	Name          string      `db:"name" json:"name"`
	Term          string      `db:"term" json:"term"`
	Instructor    string      `db:"instructor" json:"instructor"`
	Description   string      `db:"description" json:"description"`
	Capacity      int         `db:"capacity" json:"capacity"`
	EnrolledCount int         `db:"enrolled_count" json:"enrolled_count"`
	Status        GroupStatus `db:"status" json:"status"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// GroupFilter encapsulates allowed search parameters for listing groups.
type GroupFilter struct {
	Search    string
	Status    GroupStatus
	Active    *bool
	Available *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// GroupAvailability reports remaining seats for a group.
type GroupAvailability struct {
	GroupID          int64   `json:"group_id"`
	Name             string  `json:"name"`
	Capacity         int     `json:"capacity"`
	EnrolledCount    int     `json:"enrolled_count"`
	SeatsAvailable   int     `json:"seats_available"`
	Available        bool    `json:"available"`
	OccupancyPercent float64 `json:"occupancy_percent"`
}
