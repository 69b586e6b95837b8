package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edusphere/school-admin-api/internal/models"
)

// Sentinel errors surfaced by the seat-accounting transactions.
var (
	ErrDuplicateEnrollment = errors.New("student already enrolled in group")
	ErrGroupFull           = errors.New("group has no seats available")
	ErrGroupUnavailable    = errors.New("group is closed or inactive")
)

// EnrollmentRepository handles persistence of enrollments and owns the
// group seat counter. Every write that can change which enrollments hold
// a seat runs in a transaction that locks the group row, so the invariant
// enrolled_count == count(status = ENROLLED) holds between requests even
// under concurrent enroll/cancel traffic.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, student_id, group_id, enrolled_at, status, grade, attendance, notes, created_at, updated_at"

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.group_id, e.enrolled_at, e.status, e.grade, e.attendance, e.notes, e.created_at, e.updated_at,
        s.full_name AS student_name, s.email AS student_email, g.name AS group_name, g.code AS group_code
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN groups g ON g.id = e.group_id`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN groups g ON g.id = e.group_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.GroupID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.full_name",
		"group_name":   "g.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.group_id, e.enrolled_at, e.status, e.grade, e.attendance, e.notes, e.created_at, e.updated_at,
        s.full_name AS student_name, s.email AS student_email, g.name AS group_name, g.code AS group_code
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and group context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.id = $1"
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudent returns every enrollment held by a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.student_id = $1 ORDER BY e.enrolled_at DESC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListSeatedByGroup returns the enrollments currently holding a seat in a group.
func (r *EnrollmentRepository) ListSeatedByGroup(ctx context.Context, groupID int64) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.group_id = $1 AND e.status = $2 ORDER BY e.enrolled_at ASC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, groupID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list group enrollments: %w", err)
	}
	return enrollments, nil
}

// CreateWithSeat inserts an enrollment and claims a seat in one transaction.
// The group row is locked first, then the duplicate and capacity checks run
// under that lock, so two concurrent enrollments cannot both take the last
// seat or double-enroll the same student.
func (r *EnrollmentRepository) CreateWithSeat(ctx context.Context, enrollment *models.Enrollment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var group struct {
		Capacity      int                `db:"capacity"`
		EnrolledCount int                `db:"enrolled_count"`
		Status        models.GroupStatus `db:"status"`
		Active        bool               `db:"active"`
	}
	if err := tx.GetContext(ctx, &group,
		`SELECT capacity, enrolled_count, status, active FROM groups WHERE id = $1 FOR UPDATE`,
		enrollment.GroupID); err != nil {
		return err
	}
	if !group.Active || group.Status != models.GroupStatusOpen {
		return ErrGroupUnavailable
	}

	var dup int
	err = tx.GetContext(ctx, &dup,
		`SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 AND status = $3 LIMIT 1`,
		enrollment.StudentID, enrollment.GroupID, models.EnrollmentStatusEnrolled)
	if err == nil {
		return ErrDuplicateEnrollment
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check duplicate enrollment: %w", err)
	}

	if group.EnrolledCount >= group.Capacity {
		return ErrGroupFull
	}

	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.Status = models.EnrollmentStatusEnrolled
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	if err := tx.GetContext(ctx, &enrollment.ID,
		`INSERT INTO enrollments (student_id, group_id, enrolled_at, status, grade, attendance, notes, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		enrollment.StudentID, enrollment.GroupID, enrollment.EnrolledAt, enrollment.Status,
		enrollment.Grade, enrollment.Attendance, enrollment.Notes, enrollment.CreatedAt, enrollment.UpdatedAt); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET enrolled_count = enrolled_count + 1, updated_at = $2 WHERE id = $1`,
		enrollment.GroupID, now); err != nil {
		return fmt.Errorf("claim seat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// EnrollmentChanges carries the optional fields of an enrollment update.
// Nil fields are left unchanged.
type EnrollmentChanges struct {
	Status     *models.EnrollmentStatus
	Grade      *float64
	Attendance *float64
	Notes      *string
}

// UpdateWithSeat applies changes to an enrollment and keeps the group seat
// counter in step with status transitions. The enrollment row is locked,
// then the group row whenever the update moves the enrollment into or out
// of the seat-holding status. A transition back into the seat-holding
// status claims a seat like a fresh enrollment does: the group row is
// locked and the availability, duplicate and capacity checks run again
// under that lock. The counter never drops below zero, and a no-op
// transition (e.g. cancelling twice) does not touch it.
func (r *EnrollmentRepository) UpdateWithSeat(ctx context.Context, id int64, changes EnrollmentChanges) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var enrollment models.Enrollment
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE", enrollmentColumns)
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}

	previous := enrollment.Status
	if changes.Status != nil {
		enrollment.Status = *changes.Status
	}
	if changes.Grade != nil {
		enrollment.Grade = changes.Grade
	}
	if changes.Attendance != nil {
		enrollment.Attendance = changes.Attendance
	}
	if changes.Notes != nil {
		enrollment.Notes = *changes.Notes
	}
	enrollment.UpdatedAt = time.Now().UTC()

	delta := 0
	if previous.HoldsSeat() && !enrollment.Status.HoldsSeat() {
		delta = -1
	} else if !previous.HoldsSeat() && enrollment.Status.HoldsSeat() {
		delta = 1
	}

	if delta == 1 {
		var group struct {
			Capacity      int                `db:"capacity"`
			EnrolledCount int                `db:"enrolled_count"`
			Status        models.GroupStatus `db:"status"`
			Active        bool               `db:"active"`
		}
		if err := tx.GetContext(ctx, &group,
			`SELECT capacity, enrolled_count, status, active FROM groups WHERE id = $1 FOR UPDATE`,
			enrollment.GroupID); err != nil {
			return nil, fmt.Errorf("lock group: %w", err)
		}
		if !group.Active || group.Status != models.GroupStatusOpen {
			return nil, ErrGroupUnavailable
		}

		var dup int
		err = tx.GetContext(ctx, &dup,
			`SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 AND status = $3 AND id <> $4 LIMIT 1`,
			enrollment.StudentID, enrollment.GroupID, models.EnrollmentStatusEnrolled, enrollment.ID)
		if err == nil {
			return nil, ErrDuplicateEnrollment
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("check duplicate enrollment: %w", err)
		}

		if group.EnrolledCount >= group.Capacity {
			return nil, ErrGroupFull
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET status = $2, grade = $3, attendance = $4, notes = $5, updated_at = $6 WHERE id = $1`,
		enrollment.ID, enrollment.Status, enrollment.Grade, enrollment.Attendance, enrollment.Notes, enrollment.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update enrollment: %w", err)
	}

	if delta != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE groups SET enrolled_count = GREATEST(enrolled_count + $2, 0), updated_at = $3 WHERE id = $1`,
			enrollment.GroupID, delta, enrollment.UpdatedAt); err != nil {
			return nil, fmt.Errorf("adjust seat count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment tx: %w", err)
	}
	return &enrollment, nil
}

// Stats aggregates counts over all enrollments.
func (r *EnrollmentRepository) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	const query = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = $1) AS active,
        COUNT(*) FILTER (WHERE status = $2) AS completed,
        COUNT(*) FILTER (WHERE status = $3) AS cancelled
        FROM enrollments`
	var stats models.EnrollmentStats
	if err := r.db.GetContext(ctx, &stats, query,
		models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted, models.EnrollmentStatusCancelled); err != nil {
		return nil, fmt.Errorf("enrollment stats: %w", err)
	}
	return &stats, nil
}
