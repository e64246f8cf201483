package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/internal/middleware"
	"github.com/edumarket/tutorhub-api/internal/models"
	"github.com/edumarket/tutorhub-api/internal/repository"
	"github.com/edumarket/tutorhub-api/internal/service"
	"github.com/edumarket/tutorhub-api/pkg/config"
	"github.com/edumarket/tutorhub-api/pkg/logger"
	corsmiddleware "github.com/edumarket/tutorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edumarket/tutorhub-api/pkg/middleware/requestid"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *sqlx.DB
	Redis        *redis.Client
	Auth         *service.AuthService
	Metrics      *service.MetricsService
	Users        *repository.UserRepository
	Applications *ApplicationHandler
	Tutors       *TutorHandler
	Sessions     *SessionHandler
	AuthHandler  *AuthHandler
}

// NewRouter assembles the gin engine with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if deps.Logger != nil {
		r.Use(logger.GinMiddleware(deps.Logger))
	}
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx := c.Request.Context()
		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := deps.Config.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	api.POST("/applications", deps.Applications.Submit)
	api.GET("/documents", deps.Applications.Download)

	api.GET("/tutors", deps.Tutors.List)
	api.GET("/tutors/:id", deps.Tutors.Get)

	auth := api.Group("/auth")
	auth.POST("/login", deps.AuthHandler.Login)
	auth.POST("/refresh", deps.AuthHandler.Refresh)
	auth.POST("/logout", middleware.JWT(deps.Auth), deps.AuthHandler.Logout)
	auth.POST("/change-password", middleware.JWT(deps.Auth), deps.AuthHandler.ChangePassword)

	admin := api.Group("/applications", middleware.JWT(deps.Auth), middleware.RBAC(models.RoleAdmin))
	admin.GET("/pending", deps.Applications.ListPending)
	admin.PATCH("/:id/approve",
		middleware.Audit(deps.Users, models.AuditActionApplicationApprove, "applications"),
		deps.Applications.Approve)
	admin.PATCH("/:id/reject",
		middleware.Audit(deps.Users, models.AuditActionApplicationReject, "applications"),
		deps.Applications.Reject)
	admin.GET("/:id/documents/:docType", deps.Applications.Document)
	admin.GET("/:id/documents/:docType/:index", deps.Applications.Document)
	admin.GET("/export",
		middleware.Audit(deps.Users, models.AuditActionApplicationExport, "applications"),
		deps.Applications.Export)

	sessions := api.Group("/sessions", middleware.JWT(deps.Auth))
	sessions.POST("", middleware.RBAC(models.RoleStudent), deps.Sessions.Create)
	sessions.GET("", deps.Sessions.List)
	sessions.PATCH("/:id/status", middleware.RBAC(models.RoleTutor), deps.Sessions.UpdateStatus)

	return r
}
