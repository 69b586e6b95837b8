package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusphere/school-admin-api/internal/models"
	"github.com/edusphere/school-admin-api/internal/service"
	appErrors "github.com/edusphere/school-admin-api/pkg/errors"
)

type enrollmentServiceMock struct {
	listResp     []models.EnrollmentDetail
	listErr      error
	enrollResp   *models.EnrollmentDetail
	enrollErr    error
	cancelResp   *models.Enrollment
	cancelErr    error
	statsResp    *models.EnrollmentStats
	statsErr     error
	lastFilter   models.EnrollmentFilter
	lastEnroll   service.EnrollStudentRequest
	enrollCalled bool
	cancelCalled bool
}

func (m *enrollmentServiceMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, nil, m.listErr
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	return m.enrollResp, m.enrollErr
}

func (m *enrollmentServiceMock) Enroll(ctx context.Context, req service.EnrollStudentRequest) (*models.EnrollmentDetail, error) {
	m.enrollCalled = true
	m.lastEnroll = req
	return m.enrollResp, m.enrollErr
}

func (m *enrollmentServiceMock) Update(ctx context.Context, id int64, req service.UpdateEnrollmentRequest) (*models.Enrollment, error) {
	return m.cancelResp, m.cancelErr
}

func (m *enrollmentServiceMock) Cancel(ctx context.Context, id int64) (*models.Enrollment, error) {
	m.cancelCalled = true
	return m.cancelResp, m.cancelErr
}

func (m *enrollmentServiceMock) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	return m.listResp, m.listErr
}

func (m *enrollmentServiceMock) ListByGroup(ctx context.Context, groupID int64) ([]models.EnrollmentDetail, error) {
	return m.listResp, m.listErr
}

func (m *enrollmentServiceMock) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	return m.statsResp, m.statsErr
}

func TestEnrollmentHandlerListFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments?student_id=3&status=ENROLLED", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), mockSvc.lastFilter.StudentID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, mockSvc.lastFilter.Status)
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{
		enrollResp: &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: 7, StudentID: 1, GroupID: 10, Status: models.EnrollmentStatusEnrolled}},
	}
	handler := NewEnrollmentHandler(mockSvc)

	payload, _ := json.Marshal(service.EnrollStudentRequest{StudentID: 1, GroupID: 10})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.enrollCalled)
	assert.Equal(t, int64(10), mockSvc.lastEnroll.GroupID)
}

func TestEnrollmentHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString(`{"student_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.enrollCalled)
}

func TestEnrollmentHandlerCreateGroupFull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{
		enrollErr: appErrors.Clone(appErrors.ErrConflict, "group has no seats available"),
	}
	handler := NewEnrollmentHandler(mockSvc)

	payload, _ := json.Marshal(service.EnrollStudentRequest{StudentID: 1, GroupID: 10})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no seats available")
}

func TestEnrollmentHandlerCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{
		cancelResp: &models.Enrollment{ID: 7, Status: models.EnrollmentStatusCancelled},
	}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/enrollments/7", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.cancelCalled)
	assert.Contains(t, w.Body.String(), "enrollment cancelled")
}

func TestEnrollmentHandlerCancelBadID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/enrollments/zero", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "zero"}}

	handler.Cancel(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.cancelCalled)
}

func TestEnrollmentHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{
		statsResp: &models.EnrollmentStats{Total: 10, Active: 4, Completed: 5, Cancelled: 1, CompletionRate: 50},
	}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/stats/general", nil)
	c.Request = req

	handler.Stats(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":10`)
}
