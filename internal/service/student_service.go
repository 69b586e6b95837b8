package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusphere/school-admin-api/internal/models"
	appErrors "github.com/edusphere/school-admin-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	ExistsByMatricula(ctx context.Context, matricula string, excludeID int64) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id int64) error
	HasSeatedEnrollment(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// CreateStudentRequest describes student registration payload.
type CreateStudentRequest struct {
	Matricula *string              `json:"matricula"`
	FullName  string               `json:"full_name" validate:"required"`
	Age       *int                 `json:"age" validate:"omitempty,gt=0"`
	Email     string               `json:"email" validate:"required,email"`
	Phone     string               `json:"phone"`
	Address   string               `json:"address"`
	Status    models.StudentStatus `json:"status"`
}

// UpdateStudentRequest describes a partial student update.
type UpdateStudentRequest struct {
	Matricula *string               `json:"matricula"`
	FullName  *string               `json:"full_name"`
	Age       *int                  `json:"age" validate:"omitempty,gt=0"`
	Email     *string               `json:"email" validate:"omitempty,email"`
	Phone     *string               `json:"phone"`
	Address   *string               `json:"address"`
	Status    *models.StudentStatus `json:"status"`
	Active    *bool                 `json:"active"`
}

// StudentService orchestrates student management.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student. Unique fields are pre-checked so the
// caller gets a named conflict instead of a raw constraint violation.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "full_name and a valid email are required")
	}

	status := req.Status
	if status == "" {
		status = models.StudentStatusActive
	}
	if !models.ValidStudentStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of ACTIVE, SUSPENDED, WITHDRAWN")
	}

	if exists, err := s.repo.ExistsByEmail(ctx, req.Email, 0); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	} else if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
	}
	if req.Matricula != nil && *req.Matricula != "" {
		if exists, err := s.repo.ExistsByMatricula(ctx, *req.Matricula, 0); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate matricula")
		} else if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this matricula already exists")
		}
	}

	student := &models.Student{
		Matricula: req.Matricula,
		FullName:  req.FullName,
		Age:       req.Age,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Status:    status,
		Active:    true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update applies a partial update, re-checking changed unique fields.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if req.Email != nil && *req.Email != student.Email {
		if exists, err := s.repo.ExistsByEmail(ctx, *req.Email, id); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
		} else if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
		}
		student.Email = *req.Email
	}
	if req.Matricula != nil && (student.Matricula == nil || *req.Matricula != *student.Matricula) {
		if *req.Matricula != "" {
			if exists, err := s.repo.ExistsByMatricula(ctx, *req.Matricula, id); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate matricula")
			} else if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this matricula already exists")
			}
		}
		student.Matricula = req.Matricula
	}
	if req.FullName != nil {
		student.FullName = *req.FullName
	}
	if req.Age != nil {
		student.Age = req.Age
	}
	if req.Phone != nil {
		student.Phone = *req.Phone
	}
	if req.Address != nil {
		student.Address = *req.Address
	}
	if req.Status != nil {
		if !models.ValidStudentStatus(*req.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of ACTIVE, SUSPENDED, WITHDRAWN")
		}
		student.Status = *req.Status
	}
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate soft-deletes a student.
func (s *StudentService) Deactivate(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	student.Active = false
	return student, nil
}

// Delete permanently removes a student. Refused while the student still
// holds a seat somewhere, so group counters cannot be orphaned.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	seated, err := s.repo.HasSeatedEnrollment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if seated {
		return appErrors.Clone(appErrors.ErrConflict, "student has an active enrollment; cancel it first")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}
