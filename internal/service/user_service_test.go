package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edusphere/school-admin-api/internal/models"
	appErrors "github.com/edusphere/school-admin-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]models.User
	deleted []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var list []models.User
	for _, u := range m.users {
		list = append(list, u)
	}
	return list, len(list), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.ID != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]models.User)
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	u := m.users[id]
	u.Active = false
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, "admin", validator.New(), zap.NewNop())
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newUserService(repo)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		ID:       "jdoe",
		FullName: "J. Doe",
		Email:    "jdoe@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.Active)
	// The password is stored hashed, never verbatim.
	assert.NotEqual(t, "supersecret", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("supersecret")))
}

func TestUserServiceCreateShortPassword(t *testing.T) {
	svc := newUserService(&mockUserRepo{})

	_, err := svc.Create(context.Background(), CreateUserRequest{
		ID:       "jdoe",
		FullName: "J. Doe",
		Email:    "jdoe@example.com",
		Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateDuplicateID(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"jdoe": {ID: "jdoe", Email: "jdoe@example.com"},
	}}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		ID:       "jdoe",
		FullName: "Other",
		Email:    "other@example.com",
		Password: "supersecret",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"jdoe": {ID: "jdoe", Email: "jdoe@example.com"},
	}}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		ID:       "other",
		FullName: "Other",
		Email:    "JDOE@example.com",
		Password: "supersecret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsBadRole(t *testing.T) {
	svc := newUserService(&mockUserRepo{})

	_, err := svc.Create(context.Background(), CreateUserRequest{
		ID:       "jdoe",
		FullName: "J. Doe",
		Email:    "jdoe@example.com",
		Password: "supersecret",
		Role:     models.UserRole("ROOT"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateRehashesPassword(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"jdoe": {ID: "jdoe", FullName: "J. Doe", Email: "jdoe@example.com", PasswordHash: "old", Role: models.RoleUser, Active: true},
	}}
	svc := newUserService(repo)

	password := "newpassword"
	user, err := svc.Update(context.Background(), "jdoe", UpdateUserRequest{Password: &password})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpassword")))
}

func TestUserServiceDeactivateProtectedAdmin(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"admin": {ID: "admin", Role: models.RoleAdmin, Active: true},
	}}
	svc := newUserService(repo)

	_, err := svc.Deactivate(context.Background(), "admin")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, 403, appErr.Status)
	assert.True(t, repo.users["admin"].Active)
}

func TestUserServiceDeleteProtectedAdmin(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"admin": {ID: "admin", Role: models.RoleAdmin, Active: true},
	}}
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), "admin")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
	assert.Empty(t, repo.deleted)
}

func TestUserServiceDemoteProtectedAdmin(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"admin": {ID: "admin", Role: models.RoleAdmin, Active: true},
	}}
	svc := newUserService(repo)

	role := models.RoleUser
	_, err := svc.Update(context.Background(), "admin", UpdateUserRequest{Role: &role})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestUserServiceDeactivateRegularUser(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"jdoe": {ID: "jdoe", Role: models.RoleUser, Active: true},
	}}
	svc := newUserService(repo)

	user, err := svc.Deactivate(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.False(t, user.Active)
}

func TestUserServiceDeleteNotFound(t *testing.T) {
	svc := newUserService(&mockUserRepo{})

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
