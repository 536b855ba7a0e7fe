package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/quanghuy-dev/dorm-api/api/swagger"
	"github.com/quanghuy-dev/dorm-api/internal/handler"
	"github.com/quanghuy-dev/dorm-api/internal/middleware"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/repository"
	"github.com/quanghuy-dev/dorm-api/internal/scheduler"
	"github.com/quanghuy-dev/dorm-api/internal/service"
	"github.com/quanghuy-dev/dorm-api/pkg/cache"
	"github.com/quanghuy-dev/dorm-api/pkg/config"
	"github.com/quanghuy-dev/dorm-api/pkg/database"
	"github.com/quanghuy-dev/dorm-api/pkg/jobs"
	"github.com/quanghuy-dev/dorm-api/pkg/logger"
	corsmiddleware "github.com/quanghuy-dev/dorm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/quanghuy-dev/dorm-api/pkg/middleware/requestid"
)

// @title Dorm API
// @version 1.0.0
// @description Dormitory registration and room allocation engine
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	semesterRepo := repository.NewSemesterRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	stayRepo := repository.NewStayRepository(db)
	utilityRepo := repository.NewUtilityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Services.
	notificationService := service.NewNotificationService(notificationRepo, semesterRepo, logr, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 64,
	})
	notificationService.Start(ctx)
	defer notificationService.Stop()

	semesterService := service.NewSemesterService(semesterRepo, cacheRepo, cfg.Semester.CacheTTL, logr)
	authService := service.NewAuthService(cfg.JWT.Secret)
	registrationService := service.NewRegistrationService(
		registrationRepo, roomRepo, studentRepo, stayRepo, invoiceRepo,
		semesterService, notificationService, db, validate, logr,
		service.RegistrationConfig{HoldDuration: cfg.Registration.HoldDuration},
	)
	allocationService := service.NewAllocationService(
		registrationRepo, roomRepo, stayRepo, semesterRepo,
		notificationService, db, logr,
	)
	paymentService := service.NewPaymentService(
		invoiceRepo, registrationRepo, roomRepo, studentRepo, stayRepo, semesterRepo,
		notificationService, nil, db, validate, logr,
		service.PaymentConfig{ReferenceTTL: cfg.Payments.ReferenceTTL},
	)
	utilityService := service.NewUtilityService(
		utilityRepo, roomRepo, invoiceRepo, notificationService, db, logr,
		service.UtilityConfig{
			ElectricityPrice: cfg.Utility.ElectricityPrice,
			WaterPrice:       cfg.Utility.WaterPrice,
		},
	)
	invoiceService := service.NewInvoiceService(invoiceRepo, logr)

	// Scheduler.
	sched := scheduler.New(logr)
	if err := sched.Register("utility-cycle-bootstrap", cfg.Utility.CycleSpec, func(jobCtx context.Context) error {
		_, err := utilityService.EnsureCurrentCycle(jobCtx, time.Now().UTC())
		return err
	}); err != nil {
		logr.Sugar().Fatalw("failed to register job", "error", err)
	}
	if err := sched.Register("expired-hold-reaper", cfg.Registration.ReaperSpec, func(jobCtx context.Context) error {
		count, err := registrationService.ExpireUnpaidHolds(jobCtx)
		metricsService.RecordExpiredHolds(count)
		return err
	}); err != nil {
		logr.Sugar().Fatalw("failed to register job", "error", err)
	}
	if cfg.Scheduler.Enabled {
		sched.Start()
		defer sched.Stop()
	}

	// Handlers.
	semesterHandler := handler.NewSemesterHandler(semesterService)
	roomHandler := handler.NewRoomHandler(roomRepo, stayRepo, semesterService)
	registrationHandler := handler.NewRegistrationHandler(registrationService, allocationService, metricsService)
	paymentHandler := handler.NewPaymentHandler(paymentService, metricsService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	utilityHandler := handler.NewUtilityHandler(utilityService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	adminHandler := handler.NewAdminHandler(sched)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authService))
	{
		api.GET("/semesters/active", semesterHandler.GetActive)
		api.GET("/semesters/active/windows", semesterHandler.Windows)
		api.GET("/rooms/availability", roomHandler.Availability)
		api.GET("/rooms/:id/occupants",
			middleware.RequireRoles(models.RoleManager, models.RoleAdmin),
			roomHandler.Occupants)
		api.GET("/notifications", notificationHandler.List)

		api.POST("/registrations",
			middleware.RequireRoles(models.RoleStudent),
			registrationHandler.Create)
		api.GET("/registrations",
			middleware.RequireRoles(models.RoleManager, models.RoleAdmin),
			registrationHandler.List)
		api.POST("/registrations/auto-assign",
			middleware.RequireRoles(models.RoleManager, models.RoleAdmin),
			registrationHandler.AutoAssign)
		api.PUT("/registrations/:id/status",
			middleware.RequireRoles(models.RoleManager, models.RoleAdmin),
			registrationHandler.UpdateStatus)

		api.POST("/payments/qrcode/:invoiceId", paymentHandler.IssueQR)
		api.POST("/payments/confirm", paymentHandler.Confirm)
		api.GET("/payments/verify/:paymentRef", paymentHandler.Verify)

		api.GET("/invoices",
			middleware.RequireRoles(models.RoleManager, models.RoleAdmin),
			invoiceHandler.List)
		api.GET("/invoices/:id", invoiceHandler.Get)
		api.GET("/invoices/:id/statement", invoiceHandler.Statement)

		api.PUT("/utility/cycles/:id/details/:detailId/readings",
			middleware.RequireRoles(models.RoleManager, models.RoleAdmin),
			utilityHandler.RecordReadings)
		api.POST("/utility/cycles/:id/publish",
			middleware.RequireRoles(models.RoleManager, models.RoleAdmin),
			utilityHandler.PublishCycle)

		api.GET("/admin/jobs",
			middleware.RequireRoles(models.RoleAdmin),
			adminHandler.ListJobs)
		api.POST("/admin/jobs/:name/run",
			middleware.RequireRoles(models.RoleAdmin),
			adminHandler.RunJob)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
