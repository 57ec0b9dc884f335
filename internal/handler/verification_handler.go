package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/service"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
	"github.com/noah-isme/coursevault-api/pkg/response"
)

type certificateVerifier interface {
	Verify(ctx context.Context, code string) (*models.VerificationResult, error)
}

type certificateRenderer interface {
	RenderPDF(ctx context.Context, code string) (*service.RenderedDocument, error)
	RenderPreview(ctx context.Context, code string) (*service.RenderedDocument, error)
}

// VerificationHandler serves the public, unauthenticated certificate endpoints.
type VerificationHandler struct {
	verifier certificateVerifier
	renderer certificateRenderer
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(verifier certificateVerifier, renderer certificateRenderer) *VerificationHandler {
	return &VerificationHandler{verifier: verifier, renderer: renderer}
}

// Verify godoc
// @Summary Verify a certificate code
// @Description Returns VALID, REVOKED or NOT_FOUND. Unknown codes are not an error.
// @Tags Verification
// @Produce json
// @Param code query string true "Certificate code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /certificates/verify [get]
func (h *VerificationHandler) Verify(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "code is required"))
		return
	}
	result, err := h.verifier.Verify(c.Request.Context(), code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download certificate PDF
// @Tags Verification
// @Produce application/pdf
// @Param code path string true "Certificate code"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Failure 410 {object} map[string]string
// @Router /certificates/{code}/download [get]
func (h *VerificationHandler) Download(c *gin.Context) {
	doc, err := h.renderer.RenderPDF(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.PlainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// Preview godoc
// @Summary Certificate HTML preview
// @Tags Verification
// @Produce html
// @Param code path string true "Certificate code"
// @Success 200 {string} string
// @Failure 404 {string} string
// @Router /certificates/{code}/preview [get]
func (h *VerificationHandler) Preview(c *gin.Context) {
	h.renderPage(c, c.Param("code"))
}

// Page godoc
// @Summary Public verification page
// @Description Target of the QR code printed on each certificate.
// @Tags Verification
// @Produce html
// @Param code query string true "Certificate code"
// @Success 200 {string} string
// @Failure 404 {string} string
// @Router /verify-certificate [get]
func (h *VerificationHandler) Page(c *gin.Context) {
	h.renderPage(c, c.Query("code"))
}

func (h *VerificationHandler) renderPage(c *gin.Context, code string) {
	doc, err := h.renderer.RenderPreview(c.Request.Context(), code)
	if err != nil {
		appErr := appErrors.FromError(err)
		c.String(appErr.Status, appErr.Message)
		return
	}
	status := http.StatusOK
	if doc.Outcome == models.VerificationNotFound {
		status = http.StatusNotFound
	}
	response.HTML(c, status, doc.Body)
}
