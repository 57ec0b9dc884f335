package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/pkg/certificate"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

type verificationLedger interface {
	GetByCode(ctx context.Context, code string) (*models.Certificate, error)
	GetByLearnerCourse(ctx context.Context, userID, courseID string) (*models.Certificate, error)
}

type repairScheduler interface {
	ScheduleRepair(code, reason string) error
}

// VerificationService answers public lookups by certificate code. It always
// reads the ledger so revocations are visible on the next call.
type VerificationService struct {
	ledger     verificationLedger
	repairs    repairScheduler
	metrics    *MetricsService
	logger     *zap.Logger
	publicHost string
	now        func() time.Time
}

// NewVerificationService builds the public lookup. repairs may be nil.
func NewVerificationService(ledger verificationLedger, repairs repairScheduler, metrics *MetricsService, logger *zap.Logger, publicHost string) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		ledger:     ledger,
		repairs:    repairs,
		metrics:    metrics,
		logger:     logger,
		publicHost: publicHost,
		now:        time.Now,
	}
}

// Verify reports NOT_FOUND, REVOKED or VALID for a code. Unknown codes are a
// normal outcome, not an error.
func (s *VerificationService) Verify(ctx context.Context, rawCode string) (*models.VerificationResult, error) {
	code := NormalizeCode(rawCode)
	result := &models.VerificationResult{
		Code:      code,
		Outcome:   models.VerificationNotFound,
		CheckedAt: s.now().UTC(),
	}

	cert, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		result.Certificate = cert
		result.VerificationURL = certificate.VerificationURL(s.publicHost, cert.Code)
		result.Outcome = models.VerificationRevoked
		if cert.IsValid() {
			result.Outcome = models.VerificationValid
		}
	}

	s.metrics.RecordVerification(result.Outcome)
	return result, nil
}

// Resolve returns a certificate only when it is currently valid. It is the
// gate in front of rendering and download.
func (s *VerificationService) Resolve(ctx context.Context, rawCode string) (*models.Certificate, error) {
	cert, err := s.lookup(ctx, NormalizeCode(rawCode))
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, appErrors.Clone(appErrors.ErrCertificateNotFound, "")
	}
	if !cert.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrCertificateRevoked, "")
	}
	return cert, nil
}

// Lookup returns the public copy in any status, or nil when absent.
func (s *VerificationService) Lookup(ctx context.Context, rawCode string) (*models.Certificate, error) {
	return s.lookup(ctx, NormalizeCode(rawCode))
}

func (s *VerificationService) lookup(ctx context.Context, code string) (*models.Certificate, error) {
	if !Looks(code) {
		return nil, nil
	}
	cert, err := s.ledger.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	s.crossCheck(ctx, cert)
	return cert, nil
}

// crossCheck compares the public copy with its private twin. The public copy
// stays authoritative; a disagreement is logged and queued for repair.
func (s *VerificationService) crossCheck(ctx context.Context, public *models.Certificate) {
	private, err := s.ledger.GetByLearnerCourse(ctx, public.UserID, public.CourseID)
	reason := ""
	switch {
	case errors.Is(err, sql.ErrNoRows):
		reason = models.InconsistencyMissingPrivate
	case err != nil:
		s.logger.Warn("private certificate copy unreadable", zap.String("code", public.Code), zap.Error(err))
		return
	case !private.Matches(public):
		reason = models.InconsistencyFieldMismatch
	default:
		return
	}

	s.logger.Error("certificate ledger copies disagree",
		zap.String("code", public.Code),
		zap.String("user_id", public.UserID),
		zap.String("course_id", public.CourseID),
		zap.String("reason", reason),
	)
	if s.repairs == nil {
		return
	}
	if err := s.repairs.ScheduleRepair(public.Code, reason); err != nil {
		s.logger.Warn("failed to schedule ledger repair", zap.String("code", public.Code), zap.Error(err))
	}
}
