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

// ErrCapacityBelowEnrolled is returned when an update would shrink a
// group's capacity below the number of seats currently held.
var ErrCapacityBelowEnrolled = errors.New("capacity below current enrolled count")

// GroupRepository manages persistence for course groups.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns groups matching the provided filters.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	base := "FROM groups"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Available != nil && *filter.Available {
		conditions = append(conditions, "enrolled_count < capacity")
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d OR LOWER(instructor) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
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

	query := fmt.Sprintf(`SELECT id, code, name, term, instructor, description, capacity, enrolled_count, status, active, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return groups, total, nil
}

// FindByID fetches a group by ID.
func (r *GroupRepository) FindByID(ctx context.Context, id int64) (*models.Group, error) {
	const query = `SELECT id, code, name, term, instructor, description, capacity, enrolled_count, status, active, created_at, updated_at
        FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// ExistsByCode checks if a group with the given code exists, optionally excluding an ID.
func (r *GroupRepository) ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM groups WHERE code = $1"
	args := []interface{}{code}
	if excludeID != 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check group code: %w", err)
	}
	return true, nil
}

// Create inserts a new group and populates the generated ID.
// enrolled_count always starts at zero.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	group.EnrolledCount = 0
	const query = `INSERT INTO groups (code, name, term, instructor, description, capacity, enrolled_count, status, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10) RETURNING id`
	if err := r.db.GetContext(ctx, &group.ID, query,
		group.Code, group.Name, group.Term, group.Instructor, group.Description,
		group.Capacity, group.Status, group.Active, group.CreatedAt, group.UpdatedAt); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update modifies an existing group. The enrolled_count column is not
// touched here; only the enrollment repository mutates it. The row is
// locked and the capacity re-checked against the live enrolled count, so
// a concurrent enrollment cannot slip a seat under a shrinking capacity.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin group tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var enrolled int
	if err := tx.GetContext(ctx, &enrolled,
		`SELECT enrolled_count FROM groups WHERE id = $1 FOR UPDATE`, group.ID); err != nil {
		return err
	}
	if group.Capacity < enrolled {
		return ErrCapacityBelowEnrolled
	}

	group.EnrolledCount = enrolled
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET code = :code, name = :name, term = :term, instructor = :instructor,
        description = :description, capacity = :capacity, status = :status, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group tx: %w", err)
	}
	return nil
}

// Deactivate marks a group as inactive.
func (r *GroupRepository) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE groups SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate group: %w", err)
	}
	return nil
}
