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

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	FindByID(ctx context.Context, id int64) (*models.Group, error)
	ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Deactivate(ctx context.Context, id int64) error
}

// CreateGroupRequest describes group creation payload.
type CreateGroupRequest struct {
	Code        string             `json:"code" validate:"required"`
	Name        string             `json:"name" validate:"required"`
	Term        string             `json:"term"`
	Instructor  string             `json:"instructor"`
	Description string             `json:"description"`
	Capacity    int                `json:"capacity" validate:"required,gt=0"`
	Status      models.GroupStatus `json:"status"`
}

// UpdateGroupRequest describes a partial group update.
type UpdateGroupRequest struct {
	Code        *string             `json:"code"`
	Name        *string             `json:"name"`
	Term        *string             `json:"term"`
	Instructor  *string             `json:"instructor"`
	Description *string             `json:"description"`
	Capacity    *int                `json:"capacity" validate:"omitempty,gt=0"`
	Status      *models.GroupStatus `json:"status"`
	Active      *bool               `json:"active"`
}

// GroupService orchestrates course group management.
type GroupService struct {
	repo            groupRepository
	cache           cacheStore
	availabilityTTL time.Duration
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewGroupService constructs GroupService. The cache may be nil.
func NewGroupService(repo groupRepository, cache cacheStore, availabilityTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if availabilityTTL <= 0 {
		availabilityTTL = 30 * time.Second
	}
	return &GroupService{repo: repo, cache: cache, availabilityTTL: availabilityTTL, validator: validate, logger: logger}
}

// List returns groups with pagination metadata.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return groups, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a group by ID.
func (s *GroupService) Get(ctx context.Context, id int64) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// Create registers a new group with a unique code.
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "code, name and a positive capacity are required")
	}

	status := req.Status
	if status == "" {
		status = models.GroupStatusOpen
	}
	if !models.ValidGroupStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be OPEN or CLOSED")
	}

	if exists, err := s.repo.ExistsByCode(ctx, req.Code, 0); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate code")
	} else if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a group with this code already exists")
	}

	group := &models.Group{
		Code:        req.Code,
		Name:        req.Name,
		Term:        req.Term,
		Instructor:  req.Instructor,
		Description: req.Description,
		Capacity:    req.Capacity,
		Status:      status,
		Active:      true,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return group, nil
}

// Update applies a partial update. Capacity may not drop below the
// current enrolled count, otherwise the seat invariant would break.
func (s *GroupService) Update(ctx context.Context, id int64, req UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	if req.Code != nil && *req.Code != group.Code {
		if exists, err := s.repo.ExistsByCode(ctx, *req.Code, id); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate code")
		} else if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a group with this code already exists")
		}
		group.Code = *req.Code
	}
	if req.Capacity != nil {
		if *req.Capacity < group.EnrolledCount {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("capacity cannot be lower than the current enrolled count (%d)", group.EnrolledCount))
		}
		group.Capacity = *req.Capacity
	}
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Term != nil {
		group.Term = *req.Term
	}
	if req.Instructor != nil {
		group.Instructor = *req.Instructor
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.Status != nil {
		if !models.ValidGroupStatus(*req.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be OPEN or CLOSED")
		}
		group.Status = *req.Status
	}
	if req.Active != nil {
		group.Active = *req.Active
	}

	if err := s.repo.Update(ctx, group); err != nil {
		if errors.Is(err, repository.ErrCapacityBelowEnrolled) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				"capacity cannot be lower than the current enrolled count")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}

	s.invalidateAvailability(ctx, id)
	return group, nil
}

// Deactivate soft-deletes a group.
func (s *GroupService) Deactivate(ctx context.Context, id int64) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate group")
	}
	group.Active = false

	s.invalidateAvailability(ctx, id)
	return group, nil
}

// Availability reports remaining seats and occupancy for a group.
// The payload is cached with a short TTL; enrollment writes invalidate it.
func (s *GroupService) Availability(ctx context.Context, id int64) (*models.GroupAvailability, error) {
	key := availabilityCacheKey(id)
	if s.cache != nil {
		var cached models.GroupAvailability
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	seats := group.Capacity - group.EnrolledCount
	if seats < 0 {
		seats = 0
	}
	occupancy := 0.0
	if group.Capacity > 0 {
		occupancy = math.Round(float64(group.EnrolledCount)/float64(group.Capacity)*10000) / 100
	}
	availability := &models.GroupAvailability{
		GroupID:          group.ID,
		Name:             group.Name,
		Capacity:         group.Capacity,
		EnrolledCount:    group.EnrolledCount,
		SeatsAvailable:   seats,
		Available:        seats > 0 && group.Active && group.Status == models.GroupStatusOpen,
		OccupancyPercent: occupancy,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, availability, s.availabilityTTL); err != nil {
			s.logger.Warn("failed to cache group availability", zap.Error(err))
		}
	}
	return availability, nil
}

func (s *GroupService) invalidateAvailability(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, availabilityCacheKey(id)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

func availabilityCacheKey(id int64) string {
	return fmt.Sprintf("groups:availability:%d", id)
}
