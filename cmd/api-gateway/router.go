package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/handler"
	"github.com/noah-isme/coursevault-api/internal/middleware"
	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/service"
	"github.com/noah-isme/coursevault-api/pkg/config"
	"github.com/noah-isme/coursevault-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coursevault-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coursevault-api/pkg/middleware/requestid"
)

type handlers struct {
	auth         *handler.AuthHandler
	verification *handler.VerificationHandler
	certificates *handler.CertificateHandler
	admin        *handler.AdminCertificateHandler
	quiz         *handler.QuizHandler
	metrics      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, auth *service.AuthService, h handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	r.GET("/verify-certificate", h.verification.Page)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	public := api.Group("/certificates")
	public.GET("/verify", h.verification.Verify)
	public.GET("/:code/download", h.verification.Download)
	public.GET("/:code/preview", h.verification.Preview)

	secured := api.Group("", middleware.JWT(auth))
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/me/certificates", h.certificates.ListMine)
	secured.GET("/me/certificates/:courseId", h.certificates.GetMine)
	secured.POST("/courses/:courseId/quiz", h.quiz.Start)
	secured.POST("/courses/:courseId/quiz/:attemptId/submit", h.quiz.Submit)

	admin := secured.Group("/admin/certificates", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.POST("", h.admin.Issue)
	admin.GET("", h.admin.List)
	admin.GET("/export", h.admin.Export)
	admin.POST("/reconcile", h.admin.Reconcile)
	admin.POST("/:code/revoke", h.admin.Revoke)
	admin.POST("/:code/restore", h.admin.Restore)
	admin.GET("/:code/audit", h.admin.AuditTrail)

	return r
}
