package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/coursevault-api/api/swagger"
	"github.com/noah-isme/coursevault-api/internal/handler"
	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/repository"
	"github.com/noah-isme/coursevault-api/internal/service"
	"github.com/noah-isme/coursevault-api/pkg/cache"
	"github.com/noah-isme/coursevault-api/pkg/certificate"
	"github.com/noah-isme/coursevault-api/pkg/config"
	"github.com/noah-isme/coursevault-api/pkg/database"
	"github.com/noah-isme/coursevault-api/pkg/logger"
)

// @title CourseVault Credential API
// @version 1.0.0
// @description Certificate issuance, verification and rendering for CourseVault courses.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

// certificateStore is what both ledger drivers provide.
type certificateStore interface {
	GetByLearnerCourse(ctx context.Context, userID, courseID string) (*models.Certificate, error)
	GetByCode(ctx context.Context, code string) (*models.Certificate, error)
	ListByLearner(ctx context.Context, userID string) ([]models.Certificate, error)
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
	Create(ctx context.Context, cert *models.Certificate) (*models.Certificate, error)
	UpdateStatus(ctx context.Context, code string, change models.StatusChange) (*models.Certificate, error)
	Inconsistencies(ctx context.Context, limit int) ([]models.LedgerInconsistency, error)
	Repair(ctx context.Context, code string) (*models.Certificate, error)
}

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		// Verification and downloads do not need Redis; quiz attempts answer 503.
		logr.Info("redis not configured, quiz sessions disabled")
	case err != nil:
		logr.Warn("redis unavailable, quiz sessions disabled", zap.Error(err))
	default:
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	sessions := repository.NewQuizSessionRepository(redisClient, logr)

	var store certificateStore
	var auditSink auditStore
	switch cfg.Certificates.LedgerDriver {
	case config.LedgerDriverMemory:
		logr.Warn("using in-memory certificate ledger and audit trail, both are lost on restart")
		store = repository.NewMemoryCertificateRepository()
		auditSink = repository.NewMemoryAuditRepository()
	default:
		store = repository.NewCertificateRepository(db)
		auditSink = repository.NewAuditRepository(db)
	}

	reconciler := service.NewReconcileService(store, auditSink, metrics, logr, service.ReconcileServiceConfig{
		Workers:   cfg.Reconcile.Workers,
		Retries:   cfg.Reconcile.Retries,
		BatchSize: cfg.Reconcile.BatchSize,
	})
	reconciler.Start(ctx)
	defer reconciler.Stop()
	if err := reconciler.Schedule(cfg.Reconcile.Schedule); err != nil {
		logr.Fatal("failed to schedule ledger reconciliation", zap.Error(err))
	}
	if cfg.Reconcile.OnStart {
		go func() {
			if _, err := reconciler.Run(ctx); err != nil {
				logr.Error("startup ledger reconciliation failed", zap.Error(err))
			}
		}()
	}

	auth := service.NewAuthService(users, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	certificates := service.NewCertificateService(
		store,
		service.NewCodeGenerator(cfg.Certificates.CodePrefix, nil),
		users,
		courses,
		auditSink,
		metrics,
		validate,
		logr,
		service.CertificateServiceConfig{MaxCodeAttempts: cfg.Certificates.CodeMaxAttempts},
	)
	verifier := service.NewVerificationService(store, reconciler, metrics, logr, cfg.PublicHost)

	pdf, err := certificate.NewPDFRenderer(nil)
	if err != nil {
		logr.Fatal("failed to load certificate fonts", zap.Error(err))
	}
	preview, err := certificate.NewHTMLRenderer()
	if err != nil {
		logr.Fatal("failed to parse preview template", zap.Error(err))
	}
	renderer := service.NewCertificateRenderService(verifier, pdf, preview, metrics, logr, service.RenderConfig{
		PublicHost: cfg.PublicHost,
		IssuerName: cfg.Certificates.IssuerName,
		Signatory: certificate.Signatory{
			Name:  cfg.Certificates.SignatoryName,
			Title: cfg.Certificates.SignatoryTitle,
		},
	})

	generator := service.NewQuizGeneratorClient(service.QuizGeneratorConfig{
		URL:     cfg.Quiz.GeneratorURL,
		APIKey:  cfg.Quiz.GeneratorAPIKey,
		Timeout: cfg.Quiz.GeneratorTimeout,
	}, logr)
	quiz := service.NewQuizService(
		courses,
		users,
		generator,
		sessions,
		service.NewEligibilityGate(cfg.Quiz.PassingScore),
		certificates,
		metrics,
		validate,
		logr,
		service.QuizServiceConfig{QuestionCount: cfg.Quiz.QuestionCount, SessionTTL: cfg.Quiz.SessionTTL},
	)

	router := newRouter(cfg, logr, metrics, auth, handlers{
		auth:         handler.NewAuthHandler(auth),
		verification: handler.NewVerificationHandler(verifier, renderer),
		certificates: handler.NewCertificateHandler(certificates),
		admin:        handler.NewAdminCertificateHandler(certificates, reconciler),
		quiz:         handler.NewQuizHandler(quiz),
		metrics:      handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "ledger", cfg.Certificates.LedgerDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
