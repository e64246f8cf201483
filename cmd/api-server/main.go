package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/edumarket/tutorhub-api/api/swagger"
	"github.com/edumarket/tutorhub-api/internal/handler"
	"github.com/edumarket/tutorhub-api/internal/repository"
	"github.com/edumarket/tutorhub-api/internal/service"
	"github.com/edumarket/tutorhub-api/pkg/cache"
	"github.com/edumarket/tutorhub-api/pkg/config"
	"github.com/edumarket/tutorhub-api/pkg/database"
	"github.com/edumarket/tutorhub-api/pkg/logger"
	"github.com/edumarket/tutorhub-api/pkg/mail"
	"github.com/edumarket/tutorhub-api/pkg/storage"
)

// @title TutorHub API
// @version 1.0.0
// @description Tutoring marketplace backend: tutor application lifecycle, directory and session booking
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, tutor directory caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("document storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	applicationRepo := repository.NewApplicationRepository(db)
	userRepo := repository.NewUserRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	metricsService := service.NewMetricsService()
	provisionService := service.NewProvisionService(userRepo, logr)
	applicationService := service.NewApplicationService(
		applicationRepo, provisionService, tutorRepo,
		store, signer, cfg.Documents, validate, logr,
	).WithMetrics(metricsService)
	tutorService := service.NewTutorService(tutorRepo, redisClient, cfg.Tutors.CacheTTL, logr).WithMetrics(metricsService)
	sessionService := service.NewSessionService(sessionRepo, tutorRepo, validate, logr)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tutorhub-api",
	})

	sender := mail.FromConfig(cfg.Mail, logr)
	notificationService := service.NewNotificationService(outboxRepo, sender, cfg.Notifications, logr).WithMetrics(metricsService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	defer notificationService.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		Config:       cfg,
		Logger:       logr,
		DB:           db,
		Redis:        redisClient,
		Auth:         authService,
		Metrics:      metricsService,
		Users:        userRepo,
		Applications: handler.NewApplicationHandler(applicationService),
		Tutors:       handler.NewTutorHandler(tutorService),
		Sessions:     handler.NewSessionHandler(sessionService),
		AuthHandler:  handler.NewAuthHandler(authService),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
