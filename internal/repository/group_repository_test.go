package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusphere/school-admin-api/internal/models"
)

func groupRows(enrolled int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "code", "name", "term", "instructor", "description", "capacity", "enrolled_count", "status", "active", "created_at", "updated_at"}).
		AddRow(int64(1), "MATH-1", "Algebra", "2026-1", "Prof. Rivas", "", 30, enrolled, "OPEN", true, now, now)
}

func TestGroupRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM groups WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(groupRows(12))

	group, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "MATH-1", group.Code)
	assert.Equal(t, 12, group.EnrolledCount)
	assert.Equal(t, models.GroupStatusOpen, group.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryCreateStartsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO groups")).
		WithArgs("MATH-1", "Algebra", "", "", "", 30, models.GroupStatusOpen, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	group := &models.Group{
		Code:          "MATH-1",
		Name:          "Algebra",
		Capacity:      30,
		EnrolledCount: 7, // must be ignored on insert
		Status:        models.GroupStatusOpen,
		Active:        true,
	}
	require.NoError(t, repo.Create(context.Background(), group))
	assert.Equal(t, int64(3), group.ID)
	assert.Zero(t, group.EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryExistsByCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM groups WHERE code = $1 LIMIT 1")).
		WithArgs("MATH-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByCode(context.Background(), "MATH-1", 0)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT enrolled_count FROM groups WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"enrolled_count"}).AddRow(12))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET code =")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	group := &models.Group{ID: 1, Code: "MATH-1", Name: "Algebra", Capacity: 25, Status: models.GroupStatusOpen, Active: true}
	require.NoError(t, repo.Update(context.Background(), group))
	assert.Equal(t, 12, group.EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryUpdateCapacityBelowEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT enrolled_count FROM groups WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"enrolled_count"}).AddRow(25))
	mock.ExpectRollback()

	group := &models.Group{ID: 1, Code: "MATH-1", Name: "Algebra", Capacity: 20, Status: models.GroupStatusOpen, Active: true}
	err := repo.Update(context.Background(), group)
	require.ErrorIs(t, err, ErrCapacityBelowEnrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET active = false, updated_at = $2 WHERE id = $1")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}
