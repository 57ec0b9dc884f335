package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/pkg/certificate"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

type certificateResolver interface {
	Verify(ctx context.Context, code string) (*models.VerificationResult, error)
	Resolve(ctx context.Context, code string) (*models.Certificate, error)
}

type documentRenderer interface {
	Render(doc certificate.Document) ([]byte, error)
	ContentType() string
}

type previewRenderer interface {
	documentRenderer
	RenderNotFound(code string) ([]byte, error)
}

// RenderedDocument is a finished artifact ready to be written to the client.
type RenderedDocument struct {
	Filename    string
	ContentType string
	Body        []byte
	Outcome     models.VerificationOutcome
}

// RenderConfig carries the branding stamped on every document.
type RenderConfig struct {
	PublicHost string
	IssuerName string
	Signatory  certificate.Signatory
}

// CertificateRenderService turns ledger records into PDF downloads and HTML
// previews. Both paths build the same certificate.Document.
type CertificateRenderService struct {
	resolver certificateResolver
	pdf      documentRenderer
	preview  previewRenderer
	metrics  *MetricsService
	logger   *zap.Logger
	config   RenderConfig
}

// NewCertificateRenderService constructs the render service.
func NewCertificateRenderService(resolver certificateResolver, pdf documentRenderer, preview previewRenderer, metrics *MetricsService, logger *zap.Logger, config RenderConfig) *CertificateRenderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateRenderService{
		resolver: resolver,
		pdf:      pdf,
		preview:  preview,
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

// RenderPDF renders the downloadable document for a valid certificate.
// Unknown codes yield CERTIFICATE_NOT_FOUND and revoked ones CERTIFICATE_REVOKED.
func (s *CertificateRenderService) RenderPDF(ctx context.Context, code string) (*RenderedDocument, error) {
	cert, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	doc := s.document(cert)
	start := time.Now()
	body, err := s.pdf.Render(doc)
	s.metrics.ObserveRender("pdf", err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("certificate render failed",
			zap.String("code", cert.Code),
			zap.String("format", "pdf"),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, appErrors.ErrRenderFailed.Message)
	}

	return &RenderedDocument{
		Filename:    "certificate-" + cert.Code + ".pdf",
		ContentType: s.pdf.ContentType(),
		Body:        body,
		Outcome:     models.VerificationValid,
	}, nil
}

// RenderPreview renders the HTML page for any verification outcome. Revoked
// certificates keep their recipient and course but lose the valid assertion.
func (s *CertificateRenderService) RenderPreview(ctx context.Context, code string) (*RenderedDocument, error) {
	result, err := s.resolver.Verify(ctx, code)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var body []byte
	if result.Certificate == nil {
		body, err = s.preview.RenderNotFound(result.Code)
	} else {
		body, err = s.preview.Render(s.document(result.Certificate))
	}
	s.metrics.ObserveRender("html", err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("certificate render failed",
			zap.String("code", result.Code),
			zap.String("format", "html"),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, appErrors.ErrRenderFailed.Message)
	}

	return &RenderedDocument{
		ContentType: s.preview.ContentType(),
		Body:        body,
		Outcome:     result.Outcome,
	}, nil
}

func (s *CertificateRenderService) document(cert *models.Certificate) certificate.Document {
	return certificate.NewDocument(cert, s.config.PublicHost, s.config.IssuerName, s.config.Signatory)
}
