package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/edusphere/school-admin-api/api/swagger"
	"github.com/edusphere/school-admin-api/internal/handler"
	"github.com/edusphere/school-admin-api/internal/repository"
	"github.com/edusphere/school-admin-api/internal/router"
	"github.com/edusphere/school-admin-api/internal/service"
	"github.com/edusphere/school-admin-api/pkg/cache"
	"github.com/edusphere/school-admin-api/pkg/config"
	"github.com/edusphere/school-admin-api/pkg/database"
	"github.com/edusphere/school-admin-api/pkg/logger"
	"github.com/edusphere/school-admin-api/pkg/response"
)

// @title School Admin API
// @version 1.0.0
// @description Students, course groups, enrollments and system users
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	response.SetDevelopment(cfg.Env != config.EnvProduction)
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, "migrations/schema.sql"); err != nil {
			logr.Sugar().Fatalw("failed to apply schema", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades gracefully without Redis: caches become no-ops.
		logr.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, cacheRepo, cfg.Cache.AvailabilityTTL, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, groupRepo, cacheRepo, metricsSvc, cfg.Cache.StatsTTL, validate, logr)
	userSvc := service.NewUserService(userRepo, cfg.Auth.ProtectedUserID, validate, logr)
	exportSvc := service.NewExportService(studentRepo, groupRepo, enrollmentRepo, nil, nil, logr)

	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Students:    handler.NewStudentHandler(studentSvc, exportSvc),
		Groups:      handler.NewGroupHandler(groupSvc, exportSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Users:       handler.NewUserHandler(userSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc, db),
	}

	r := router.New(cfg, logr, authSvc, metricsSvc, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
