package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
	"github.com/noah-isme/coursevault-api/pkg/response"
)

type learnerCertificateService interface {
	GetForLearner(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Certificate, error)
	ListForLearner(ctx context.Context, actor *models.JWTClaims) ([]models.Certificate, error)
}

type adminCertificateService interface {
	AdminIssue(ctx context.Context, req dto.IssueCertificateRequest, actor *models.JWTClaims) (*models.Certificate, bool, error)
	Revoke(ctx context.Context, code string, req dto.ChangeCertificateStatusRequest, actor *models.JWTClaims) (*models.Certificate, error)
	Restore(ctx context.Context, code string, req dto.ChangeCertificateStatusRequest, actor *models.JWTClaims) (*models.Certificate, error)
	List(ctx context.Context, filter dto.CertificateFilter, actor *models.JWTClaims) ([]models.Certificate, *models.Pagination, error)
	AuditTrail(ctx context.Context, code string, actor *models.JWTClaims) ([]models.AuditLog, error)
	ExportRegister(ctx context.Context, filter dto.CertificateFilter, actor *models.JWTClaims) ([]byte, error)
}

type ledgerReconciler interface {
	Run(ctx context.Context) (*models.ReconcileReport, error)
}

// CertificateHandler exposes the learner's own certificates.
type CertificateHandler struct {
	service learnerCertificateService
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(service learnerCertificateService) *CertificateHandler {
	return &CertificateHandler{service: service}
}

// ListMine godoc
// @Summary List my certificates
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/certificates [get]
func (h *CertificateHandler) ListMine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	certs, err := h.service.ListForLearner(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// GetMine godoc
// @Summary Get my certificate for a course
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/certificates/{courseId} [get]
func (h *CertificateHandler) GetMine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	cert, err := h.service.GetForLearner(c.Request.Context(), c.Param("courseId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// AdminCertificateHandler exposes issuance, lifecycle and ledger maintenance
// to administrators.
type AdminCertificateHandler struct {
	service    adminCertificateService
	reconciler ledgerReconciler
}

// NewAdminCertificateHandler constructs the handler.
func NewAdminCertificateHandler(service adminCertificateService, reconciler ledgerReconciler) *AdminCertificateHandler {
	return &AdminCertificateHandler{service: service, reconciler: reconciler}
}

// Issue godoc
// @Summary Issue a certificate manually
// @Description Idempotent per learner and course. Returns 201 when a record is created, 200 when one already existed.
// @Tags Admin Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.IssueCertificateRequest true "Issuance payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/certificates [post]
func (h *AdminCertificateHandler) Issue(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.IssueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid certificate payload"))
		return
	}
	cert, created, err := h.service.AdminIssue(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(c, status, dto.IssueCertificateResponse{Certificate: cert, Created: created}, nil)
}

// List godoc
// @Summary List certificates
// @Tags Admin Certificates
// @Produce json
// @Security BearerAuth
// @Param status query string false "valid or revoked"
// @Param creation_method query string false "quiz or manual"
// @Param course_id query string false "Course ID"
// @Param user_id query string false "Learner ID"
// @Param search query string false "Code or student name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/certificates [get]
func (h *AdminCertificateHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	filter, ok := bindCertificateFilter(c)
	if !ok {
		return
	}

	certs, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, pagination)
}

// Export godoc
// @Summary Export the certificate register as CSV
// @Description Accepts the same filters as the listing; paging is ignored.
// @Tags Admin Certificates
// @Produce text/csv
// @Security BearerAuth
// @Param status query string false "valid or revoked"
// @Param creation_method query string false "quiz or manual"
// @Param course_id query string false "Course ID"
// @Success 200 {file} file
// @Router /admin/certificates/export [get]
func (h *AdminCertificateHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	filter, ok := bindCertificateFilter(c)
	if !ok {
		return
	}

	body, err := h.service.ExportRegister(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("certificates-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

func bindCertificateFilter(c *gin.Context) (dto.CertificateFilter, bool) {
	var filter dto.CertificateFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return filter, false
	}
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.CreationMethod = strings.ToLower(strings.TrimSpace(filter.CreationMethod))
	return filter, true
}

// Revoke godoc
// @Summary Revoke a certificate
// @Tags Admin Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Certificate code"
// @Param payload body dto.ChangeCertificateStatusRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/certificates/{code}/revoke [post]
func (h *AdminCertificateHandler) Revoke(c *gin.Context) {
	h.changeStatus(c, h.service.Revoke)
}

// Restore godoc
// @Summary Restore a revoked certificate
// @Tags Admin Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Certificate code"
// @Param payload body dto.ChangeCertificateStatusRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/certificates/{code}/restore [post]
func (h *AdminCertificateHandler) Restore(c *gin.Context) {
	h.changeStatus(c, h.service.Restore)
}

type statusChangeFunc func(ctx context.Context, code string, req dto.ChangeCertificateStatusRequest, actor *models.JWTClaims) (*models.Certificate, error)

func (h *AdminCertificateHandler) changeStatus(c *gin.Context, change statusChangeFunc) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ChangeCertificateStatusRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
			return
		}
	}
	cert, err := change(c.Request.Context(), c.Param("code"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// AuditTrail godoc
// @Summary Certificate audit trail
// @Tags Admin Certificates
// @Produce json
// @Security BearerAuth
// @Param code path string true "Certificate code"
// @Success 200 {object} response.Envelope
// @Router /admin/certificates/{code}/audit [get]
func (h *AdminCertificateHandler) AuditTrail(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	logs, err := h.service.AuditTrail(c.Request.Context(), c.Param("code"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Reconcile godoc
// @Summary Repair the certificate ledger
// @Description Re-derives missing or drifted ledger copies from the authoritative one.
// @Tags Admin Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/certificates/reconcile [post]
func (h *AdminCertificateHandler) Reconcile(c *gin.Context) {
	if h.reconciler == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "reconciliation is not configured"))
		return
	}
	report, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
