package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/study-progress-api/api/swagger"
	"github.com/noah-isme/study-progress-api/internal/handler"
	"github.com/noah-isme/study-progress-api/internal/middleware"
	"github.com/noah-isme/study-progress-api/internal/models"
	"github.com/noah-isme/study-progress-api/internal/repository"
	"github.com/noah-isme/study-progress-api/internal/service"
	"github.com/noah-isme/study-progress-api/pkg/cache"
	"github.com/noah-isme/study-progress-api/pkg/config"
	"github.com/noah-isme/study-progress-api/pkg/database"
	"github.com/noah-isme/study-progress-api/pkg/jobs"
	"github.com/noah-isme/study-progress-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/study-progress-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/study-progress-api/pkg/middleware/requestid"
)

// @title Study Progress API
// @version 1.0.0
// @description Module booking, exam registration and progress tracking for distance-learning students.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type handlers struct {
	enrollments *handler.EnrollmentHandler
	bookings    *handler.BookingHandler
	exams       *handler.ExamHandler
	progress    *handler.ProgressHandler
	fees        *handler.FeeHandler
	transcripts *handler.TranscriptHandler
	system      *handler.MetricsHandler
}

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, progress cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}
	validate := validator.New()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	progressionRepo := repository.NewProgressionRepository(db)
	examTermRepo := repository.NewExamTermRepository(db)
	registrationRepo := repository.NewExamRegistrationRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ProgressTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	tokenSvc := service.NewTokenService(cfg.JWT)
	enrollmentSvc := service.NewEnrollmentService(db, enrollmentRepo, cacheSvc, logr)
	progressionSvc := service.NewProgressionService(enrollmentRepo, progressionRepo, logr)
	bookingSvc := service.NewBookingService(db, enrollmentRepo, catalogRepo, bookingRepo, progressionSvc, cacheSvc, metricsSvc, logr)
	registrationSvc := service.NewExamRegistrationService(db, catalogRepo, examTermRepo, registrationRepo, bookingRepo, enrollmentRepo, cacheSvc, metricsSvc, validate, logr)
	resultSvc := service.NewExamResultService(db, bookingRepo, registrationRepo, enrollmentRepo, cacheSvc, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, enrollmentRepo, cacheSvc, metricsSvc, validate, logr)
	progressSvc := service.NewProgressService(enrollmentRepo, progressionRepo, feeSvc, registrationSvc, progressionSvc, cacheSvc, cfg.Progress, cfg.Cache.ProgressTTL, logr)
	transcriptSvc := service.NewTranscriptService(enrollmentRepo, bookingRepo, logr)

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["cache"] = handler.PingFunc(func(ctx context.Context) error { return cache.Ping(ctx, redisClient) })
	}

	h := handlers{
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		bookings:    handler.NewBookingHandler(enrollmentSvc, bookingSvc, progressionSvc),
		exams:       handler.NewExamHandler(enrollmentSvc, registrationSvc, resultSvc),
		progress:    handler.NewProgressHandler(progressSvc),
		fees:        handler.NewFeeHandler(enrollmentSvc, feeSvc),
		transcripts: handler.NewTranscriptHandler(enrollmentSvc, transcriptSvc),
		system:      handler.NewMetricsHandler(metricsSvc, checks, logr),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metricsSvc != nil {
		r.Use(middleware.Metrics(metricsSvc))
	}

	r.GET("/health", h.system.Health)
	r.GET("/ready", h.system.Ready)
	if metricsSvc != nil {
		r.GET(cfg.Metrics.Path, h.system.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta(), middleware.JWT(tokenSvc))
	registerRoutes(api, h, auditRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feeQueue := startFeeScheduler(ctx, cfg.Fees, feeSvc, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if feeQueue != nil {
		feeQueue.Stop()
	}
}

func registerRoutes(api *gin.RouterGroup, h handlers, audit *repository.AuditRepository, logr *zap.Logger) {
	staff := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)
	audited := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(audit, logr, action, resource)
	}

	api.GET("/modules/:id/exam-terms", h.exams.EligibleTerms)

	me := api.Group("/me", middleware.RequireRoles(models.RoleStudent))
	me.GET("/enrollments", h.enrollments.Mine)
	me.GET("/semester", h.bookings.MySemester)
	me.GET("/modules", h.bookings.MyModules)
	me.GET("/electives", h.bookings.MyElectives)
	me.POST("/bookings", audited("BOOK_MODULE", "module_booking"), h.bookings.BookMine)
	me.GET("/exam-registrations", h.exams.MyRegistrations)
	me.POST("/exam-registrations", audited("REGISTER_EXAM", "exam_registration"), h.exams.Register)
	me.POST("/exam-registrations/:id/cancel", audited("CANCEL_EXAM_REGISTRATION", "exam_registration"), h.exams.Cancel)
	me.GET("/progress", h.progress.Mine)
	me.GET("/fees", h.fees.Mine)
	me.GET("/transcript", h.transcripts.Mine)

	enrollments := api.Group("/enrollments", staff)
	enrollments.GET("/:id", h.enrollments.Get)
	enrollments.GET("/:id/semester", h.bookings.Semester)
	enrollments.GET("/:id/modules", h.bookings.Modules)
	enrollments.POST("/:id/bookings", audited("BOOK_MODULE", "enrollment"), h.bookings.Book)
	enrollments.POST("/:id/pause", audited("PAUSE_ENROLLMENT", "enrollment"), h.enrollments.Pause)
	enrollments.POST("/:id/resume", audited("RESUME_ENROLLMENT", "enrollment"), h.enrollments.Resume)
	enrollments.POST("/:id/withdraw", audited("WITHDRAW_ENROLLMENT", "enrollment"), h.enrollments.Withdraw)

	api.GET("/students/:id/progress", staff, h.progress.ForStudent)
	api.POST("/bookings/:id/result", staff, audited("RECORD_RESULT", "module_booking"), h.exams.RecordResult)
	api.POST("/bookings/:id/recognize", staff, audited("RECOGNIZE_MODULE", "module_booking"), h.exams.Recognize)
	api.POST("/exam-registrations/:id/complete", staff, audited("COMPLETE_EXAM_REGISTRATION", "exam_registration"), h.exams.Complete)
	api.POST("/fees/:id/pay", staff, audited("PAY_FEE", "fee"), h.fees.Pay)
	api.POST("/fees/generate", staff, audited("GENERATE_FEES", "fee"), h.fees.Generate)
}

// startFeeScheduler runs the monthly fee generator in the background when enabled.
func startFeeScheduler(ctx context.Context, cfg config.FeesConfig, fees *service.FeeService, logr *zap.Logger) *jobs.Queue {
	if !cfg.SchedulerEnabled {
		return nil
	}
	queue := jobs.NewQueue("fees", fees.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: time.Minute,
		JobTimeout: 5 * time.Minute,
		Logger:     logr,
	})
	queue.Start(ctx)
	go jobs.Every(ctx, cfg.Interval, queue, fees.MonthlyJob, logr)
	logr.Info("fee scheduler started", zap.Duration("interval", cfg.Interval))
	return queue
}
