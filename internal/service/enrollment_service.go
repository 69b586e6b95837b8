package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusphere/school-admin-api/internal/models"
	"github.com/edusphere/school-admin-api/internal/repository"
	appErrors "github.com/edusphere/school-admin-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error)
	ListSeatedByGroup(ctx context.Context, groupID int64) ([]models.EnrollmentDetail, error)
	CreateWithSeat(ctx context.Context, enrollment *models.Enrollment) error
	UpdateWithSeat(ctx context.Context, id int64, changes repository.EnrollmentChanges) (*models.Enrollment, error)
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

type groupReader interface {
	FindByID(ctx context.Context, id int64) (*models.Group, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const statsCacheKey = "enrollments:stats"

// EnrollStudentRequest describes enrollment creation payload.
type EnrollStudentRequest struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	GroupID   int64  `json:"group_id" validate:"required,gt=0"`
	Notes     string `json:"notes"`
}

// UpdateEnrollmentRequest describes a partial enrollment update.
// Absent fields are left unchanged.
type UpdateEnrollmentRequest struct {
	Status     *models.EnrollmentStatus `json:"status"`
	Grade      *float64                 `json:"grade" validate:"omitempty,gte=0,lte=100"`
	Attendance *float64                 `json:"attendance" validate:"omitempty,gte=0,lte=100"`
	Notes      *string                  `json:"notes"`
}

// EnrollmentService is the enrollment manager: it owns the only
// non-trivial business rule in the system, keeping group seat counts
// consistent with the set of seat-holding enrollments.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	groups    groupReader
	cache     cacheStore
	metrics   *MetricsService
	statsTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. The cache and the
// metrics service may both be nil.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, groups groupReader, cache cacheStore, metrics *MetricsService, statsTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if statsTTL <= 0 {
		statsTTL = 5 * time.Minute
	}
	return &EnrollmentService{repo: repo, students: students, groups: groups, cache: cache, metrics: metrics, statsTTL: statsTTL, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single enrollment with context.
func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll registers a student into a group, claiming one seat. Checks run
// in a fixed order so the caller always gets the most specific error:
// student existence, group existence and openness, then the duplicate and
// capacity checks inside the seat transaction.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_id and group_id are required")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active || student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is not active")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if !group.Active || group.Status != models.GroupStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "group is not open for enrollment")
	}

	enrollment := &models.Enrollment{StudentID: req.StudentID, GroupID: req.GroupID, Notes: req.Notes}
	if err := s.repo.CreateWithSeat(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			s.metrics.RecordSeatConflict("duplicate")
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in this group")
		case errors.Is(err, repository.ErrGroupFull):
			s.metrics.RecordSeatConflict("full")
			return nil, appErrors.Clone(appErrors.ErrConflict, "group has no seats available")
		case errors.Is(err, repository.ErrGroupUnavailable):
			s.metrics.RecordSeatConflict("unavailable")
			return nil, appErrors.Clone(appErrors.ErrConflict, "group is not open for enrollment")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.metrics.RecordEnrollmentAction("enroll")
	s.invalidateCaches(ctx, req.GroupID)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Update applies a partial update. Status transitions into or out of the
// seat-holding status adjust the group counter atomically; a transition
// back into it is subject to the same duplicate and capacity checks as a
// fresh enrollment.
func (s *EnrollmentService) Update(ctx context.Context, id int64, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "grade and attendance must be between 0 and 100")
	}
	if req.Status != nil && !models.ValidEnrollmentStatus(*req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of ENROLLED, IN_PROGRESS, COMPLETED, CANCELLED")
	}

	enrollment, err := s.repo.UpdateWithSeat(ctx, id, repository.EnrollmentChanges{
		Status:     req.Status,
		Grade:      req.Grade,
		Attendance: req.Attendance,
		Notes:      req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			s.metrics.RecordSeatConflict("duplicate")
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in this group")
		case errors.Is(err, repository.ErrGroupFull):
			s.metrics.RecordSeatConflict("full")
			return nil, appErrors.Clone(appErrors.ErrConflict, "group has no seats available")
		case errors.Is(err, repository.ErrGroupUnavailable):
			s.metrics.RecordSeatConflict("unavailable")
			return nil, appErrors.Clone(appErrors.ErrConflict, "group is not open for enrollment")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	s.metrics.RecordEnrollmentAction("update")
	s.invalidateCaches(ctx, enrollment.GroupID)
	return enrollment, nil
}

// Cancel marks an enrollment cancelled and releases its seat. Cancelling
// an already-cancelled enrollment is a no-op: the counter is decremented
// exactly once.
func (s *EnrollmentService) Cancel(ctx context.Context, id int64) (*models.Enrollment, error) {
	status := models.EnrollmentStatusCancelled
	enrollment, err := s.repo.UpdateWithSeat(ctx, id, repository.EnrollmentChanges{Status: &status})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	s.metrics.RecordEnrollmentAction("cancel")
	s.invalidateCaches(ctx, enrollment.GroupID)
	return enrollment, nil
}

// ListByStudent returns every enrollment held by a student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student enrollments")
	}
	return enrollments, nil
}

// ListByGroup returns the enrollments currently holding a seat in a group.
func (s *EnrollmentService) ListByGroup(ctx context.Context, groupID int64) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListSeatedByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group enrollments")
	}
	return enrollments, nil
}

// Stats aggregates counts over all enrollments. The result is cached and
// invalidated whenever an enrollment changes.
func (s *EnrollmentService) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	if s.cache != nil {
		var cached models.EnrollmentStats
		if err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment stats")
	}
	if stats.Total > 0 {
		rate := float64(stats.Completed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.statsTTL); err != nil {
			s.logger.Warn("failed to cache enrollment stats", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *EnrollmentService) invalidateCaches(ctx context.Context, groupID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("groups:availability:%d", groupID)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}
