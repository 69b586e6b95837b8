package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusphere/school-admin-api/internal/models"
	"github.com/edusphere/school-admin-api/internal/service"
)

func performRequest(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func claimsSetter(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func okHandler(c *gin.Context) {
	c.Status(http.StatusOK)
}

func TestRequirePermissionAllowsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/users",
		claimsSetter(&models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}),
		RequirePermission(models.PermUsersManage),
		okHandler)

	w := performRequest(r, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermissionBlocksRegularUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/users",
		claimsSetter(&models.JWTClaims{UserID: "jdoe", Role: models.RoleUser}),
		RequirePermission(models.PermUsersManage),
		okHandler)

	w := performRequest(r, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient permissions")
}

func TestRequirePermissionWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/users", RequirePermission(models.PermUsersManage), okHandler)

	w := performRequest(r, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin",
		claimsSetter(&models.JWTClaims{UserID: "jdoe", Role: models.RoleUser}),
		RequireRoles(models.RoleAdmin),
		okHandler)

	w := performRequest(r, http.MethodGet, "/admin", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func newTestAuthService() *service.AuthService {
	return service.NewAuthService(nil, validator.New(), zap.NewNop(), service.AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "test",
	})
}

func TestJWTMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(newTestAuthService()), okHandler)

	w := performRequest(r, http.MethodGet, "/protected", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(newTestAuthService()), okHandler)

	w := performRequest(r, http.MethodGet, "/protected", map[string]string{"Authorization": "Token abc"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header")
}

func TestJWTInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(newTestAuthService()), okHandler)

	w := performRequest(r, http.MethodGet, "/protected", map[string]string{"Authorization": "Bearer not-a-token"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
