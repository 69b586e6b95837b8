package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/edusphere/school-admin-api/internal/handler"
	"github.com/edusphere/school-admin-api/internal/middleware"
	"github.com/edusphere/school-admin-api/internal/models"
	"github.com/edusphere/school-admin-api/internal/service"
	"github.com/edusphere/school-admin-api/pkg/config"
	"github.com/edusphere/school-admin-api/pkg/logger"
	corsmiddleware "github.com/edusphere/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusphere/school-admin-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler required to serve the API.
type Handlers struct {
	Auth        *handler.AuthHandler
	Students    *handler.StudentHandler
	Groups      *handler.GroupHandler
	Enrollments *handler.EnrollmentHandler
	Users       *handler.UserHandler
	Metrics     *handler.MetricsHandler
}

// New assembles the gin engine: global middleware, observability
// endpoints and the versioned API routes.
func New(cfg *config.Config, logr *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/verify", h.Auth.Verify)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.GET("/me", middleware.JWT(auth), h.Auth.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	students := protected.Group("/students")
	{
		students.GET("", middleware.RequirePermission(models.PermStudentsRead), h.Students.List)
		students.GET("/export", middleware.RequirePermission(models.PermReportsExport), h.Students.Export)
		students.GET("/:id", middleware.RequirePermission(models.PermStudentsRead), h.Students.Get)
		students.POST("", middleware.RequirePermission(models.PermStudentsWrite), h.Students.Create)
		students.PUT("/:id", middleware.RequirePermission(models.PermStudentsWrite), h.Students.Update)
		students.DELETE("/:id", middleware.RequirePermission(models.PermStudentsWrite), h.Students.Deactivate)
		students.DELETE("/:id/permanent", middleware.RequirePermission(models.PermStudentsWrite), h.Students.Delete)
	}

	groups := protected.Group("/groups")
	{
		groups.GET("", middleware.RequirePermission(models.PermGroupsRead), h.Groups.List)
		groups.GET("/:id", middleware.RequirePermission(models.PermGroupsRead), h.Groups.Get)
		groups.GET("/:id/availability", middleware.RequirePermission(models.PermGroupsRead), h.Groups.Availability)
		groups.GET("/:id/roster/export", middleware.RequirePermission(models.PermReportsExport), h.Groups.ExportRoster)
		groups.POST("", middleware.RequirePermission(models.PermGroupsWrite), h.Groups.Create)
		groups.PUT("/:id", middleware.RequirePermission(models.PermGroupsWrite), h.Groups.Update)
		groups.DELETE("/:id", middleware.RequirePermission(models.PermGroupsWrite), h.Groups.Deactivate)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", middleware.RequirePermission(models.PermEnrollmentsRead), h.Enrollments.List)
		enrollments.GET("/stats/general", middleware.RequirePermission(models.PermEnrollmentsRead), h.Enrollments.Stats)
		enrollments.GET("/student/:id", middleware.RequirePermission(models.PermEnrollmentsRead), h.Enrollments.ListByStudent)
		enrollments.GET("/group/:id", middleware.RequirePermission(models.PermEnrollmentsRead), h.Enrollments.ListByGroup)
		enrollments.GET("/:id", middleware.RequirePermission(models.PermEnrollmentsRead), h.Enrollments.Get)
		enrollments.POST("", middleware.RequirePermission(models.PermEnrollmentsManage), h.Enrollments.Create)
		enrollments.PUT("/:id", middleware.RequirePermission(models.PermEnrollmentsManage), h.Enrollments.Update)
		enrollments.DELETE("/:id", middleware.RequirePermission(models.PermEnrollmentsManage), h.Enrollments.Cancel)
	}

	users := protected.Group("/users")
	users.Use(middleware.RequirePermission(models.PermUsersManage))
	{
		users.GET("", h.Users.List)
		users.GET("/:id", h.Users.Get)
		users.POST("", h.Users.Create)
		users.PUT("/:id", h.Users.Update)
		users.DELETE("/:id", h.Users.Deactivate)
		users.DELETE("/:id/permanent", h.Users.Delete)
	}

	return r
}
