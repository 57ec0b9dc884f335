package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/repository"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

const (
	// DefaultMaxCodeAttempts bounds code regeneration after collisions.
	DefaultMaxCodeAttempts = 5
	defaultAuditTrailLimit = 50
)

type certificateLedger interface {
	GetByLearnerCourse(ctx context.Context, userID, courseID string) (*models.Certificate, error)
	GetByCode(ctx context.Context, code string) (*models.Certificate, error)
	ListByLearner(ctx context.Context, userID string) ([]models.Certificate, error)
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
	Create(ctx context.Context, cert *models.Certificate) (*models.Certificate, error)
	UpdateStatus(ctx context.Context, code string, change models.StatusChange) (*models.Certificate, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditTrailReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// IssueCertificateInput is the snapshot written into both ledger copies.
type IssueCertificateInput struct {
	UserID         string                `validate:"required,max=64"`
	CourseID       string                `validate:"required,max=64"`
	StudentName    string                `validate:"required,max=120"`
	CourseName     string                `validate:"required,max=200"`
	CourseLevel    string                `validate:"omitempty,max=60"`
	CourseCategory string                `validate:"omitempty,max=60"`
	Method         models.CreationMethod `validate:"required,oneof=quiz manual"`
	ActorID        string
	QuizScore      *int
	QuizTotal      *int
}

// CertificateServiceConfig tunes issuance.
type CertificateServiceConfig struct {
	MaxCodeAttempts int
	Now             func() time.Time
}

// CertificateService is the only writer of the credential ledger. It issues,
// revokes and restores certificates and records an audit event for each.
type CertificateService struct {
	ledger    certificateLedger
	codes     *CodeGenerator
	users     userReader
	courses   courseReader
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    CertificateServiceConfig
}

// NewCertificateService wires the lifecycle controller. users, courses,
// audit and metrics are optional.
func NewCertificateService(
	ledger certificateLedger,
	codes *CodeGenerator,
	users userReader,
	courses courseReader,
	audit auditLogger,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config CertificateServiceConfig,
) *CertificateService {
	if codes == nil {
		codes = NewCodeGenerator(DefaultCodePrefix, nil)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxCodeAttempts <= 0 {
		config.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CertificateService{
		ledger:    ledger,
		codes:     codes,
		users:     users,
		courses:   courses,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Issue writes a certificate for (UserID, CourseID) or returns the one that
// already exists. The bool reports whether a new record was created.
func (s *CertificateService) Issue(ctx context.Context, in IssueCertificateInput) (*models.Certificate, bool, error) {
	in.StudentName = strings.TrimSpace(in.StudentName)
	in.CourseName = strings.TrimSpace(in.CourseName)
	in.CourseLevel = strings.TrimSpace(in.CourseLevel)
	if err := s.validator.Struct(in); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}

	existing, err := s.ledger.GetByLearnerCourse(ctx, in.UserID, in.CourseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	issuedAt := s.config.Now().UTC().Truncate(time.Second)
	token := CourseToken(in.CourseCategory, in.CourseID)

	for attempt := 1; attempt <= s.config.MaxCodeAttempts; attempt++ {
		cert := &models.Certificate{
			Code:           s.codes.Generate(token, in.Method),
			UserID:         in.UserID,
			CourseID:       in.CourseID,
			StudentName:    in.StudentName,
			CourseName:     in.CourseName,
			CourseLevel:    in.CourseLevel,
			IssuedAt:       issuedAt,
			Status:         models.CertificateStatusValid,
			CreationMethod: in.Method,
			CreatedBy:      optionalID(in.ActorID),
			QuizScore:      in.QuizScore,
			QuizTotal:      in.QuizTotal,
			UpdatedAt:      issuedAt,
		}

		stored, err := s.ledger.Create(ctx, cert)
		switch {
		case err == nil:
			s.metrics.RecordIssued(in.Method)
			s.emitAudit(ctx, models.AuditActionCertificateIssue, issueSource(in.Method), models.AuditSeverityInfo, in.ActorID, stored, nil)
			return stored, true, nil
		case errors.Is(err, repository.ErrCertificateExists):
			// A concurrent issuance for the same pair won the race.
			return stored, false, nil
		case errors.Is(err, repository.ErrCodeCollision):
			s.metrics.RecordCodeCollision()
			s.logger.Warn("certificate code collision",
				zap.String("code", cert.Code),
				zap.Int("attempt", attempt),
			)
		default:
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
		}
	}

	s.logger.Error("certificate code retries exhausted",
		zap.String("user_id", in.UserID),
		zap.String("course_id", in.CourseID),
		zap.Int("attempts", s.config.MaxCodeAttempts),
	)
	return nil, false, appErrors.Clone(appErrors.ErrCodeRetryExhausted, "")
}

// AdminIssue issues a manual certificate. Blank display fields are filled from
// the live learner and course records.
func (s *CertificateService) AdminIssue(ctx context.Context, req dto.IssueCertificateRequest, actor *models.JWTClaims) (*models.Certificate, bool, error) {
	if !actor.IsAdmin() {
		return nil, false, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}

	in := IssueCertificateInput{
		UserID:      strings.TrimSpace(req.UserID),
		CourseID:    strings.TrimSpace(req.CourseID),
		StudentName: req.StudentName,
		CourseName:  req.CourseName,
		CourseLevel: req.CourseLevel,
		Method:      models.CreationMethodManual,
		ActorID:     actor.UserID,
	}

	if strings.TrimSpace(in.StudentName) == "" {
		user, err := s.lookupUser(ctx, in.UserID)
		if err != nil {
			return nil, false, err
		}
		in.StudentName = user.FullName
	}

	course, err := s.lookupCourse(ctx, in.CourseID, strings.TrimSpace(in.CourseName) == "")
	if err != nil {
		return nil, false, err
	}
	if course != nil {
		in.CourseCategory = course.Category
		if strings.TrimSpace(in.CourseName) == "" {
			in.CourseName = course.Title
		}
		if strings.TrimSpace(in.CourseLevel) == "" {
			in.CourseLevel = course.Level
		}
	}

	return s.Issue(ctx, in)
}

// Revoke marks a certificate revoked in both ledger copies.
func (s *CertificateService) Revoke(ctx context.Context, code string, req dto.ChangeCertificateStatusRequest, actor *models.JWTClaims) (*models.Certificate, error) {
	return s.changeStatus(ctx, code, models.CertificateStatusRevoked, req, actor)
}

// Restore marks a revoked certificate valid again in both ledger copies.
func (s *CertificateService) Restore(ctx context.Context, code string, req dto.ChangeCertificateStatusRequest, actor *models.JWTClaims) (*models.Certificate, error) {
	return s.changeStatus(ctx, code, models.CertificateStatusValid, req, actor)
}

func (s *CertificateService) changeStatus(ctx context.Context, code string, status models.CertificateStatus, req dto.ChangeCertificateStatusRequest, actor *models.JWTClaims) (*models.Certificate, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	code = NormalizeCode(code)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certificate code is required")
	}

	before, err := s.ledger.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCertificateNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	change := models.StatusChange{
		Status:    status,
		ActorID:   actor.UserID,
		ChangedAt: s.config.Now().UTC().Truncate(time.Second),
	}
	if status == models.CertificateStatusRevoked {
		change.Reason = strings.TrimSpace(req.Reason)
	}

	updated, err := s.ledger.UpdateStatus(ctx, code, change)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCertificateNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update certificate status")
	}

	action := models.AuditActionCertificateRestore
	severity := models.AuditSeverityInfo
	if status == models.CertificateStatusRevoked {
		action = models.AuditActionCertificateRevoke
		severity = models.AuditSeverityWarning
	}
	s.metrics.RecordStatusChange(status)
	s.emitAudit(ctx, action, models.AuditSourceAdmin, severity, actor.UserID, updated, before)
	return updated, nil
}

// GetForLearner returns the caller's certificate for a course.
func (s *CertificateService) GetForLearner(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Certificate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	cert, err := s.ledger.GetByLearnerCourse(ctx, actor.UserID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCertificateNotFound, "no certificate for this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

// ListForLearner returns every certificate held by the caller, newest first.
func (s *CertificateService) ListForLearner(ctx context.Context, actor *models.JWTClaims) ([]models.Certificate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	certs, err := s.ledger.ListByLearner(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// List is the admin listing over the public copy.
func (s *CertificateService) List(ctx context.Context, filter dto.CertificateFilter, actor *models.JWTClaims) ([]models.Certificate, *models.Pagination, error) {
	if !actor.IsAdmin() {
		return nil, nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(filter); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	query := models.CertificateFilter{
		CourseID: strings.TrimSpace(filter.CourseID),
		UserID:   strings.TrimSpace(filter.UserID),
		Search:   strings.TrimSpace(filter.Search),
		Page:     page,
		PageSize: size,
	}
	if filter.Status != "" {
		status := models.CertificateStatus(filter.Status)
		query.Status = &status
	}
	if filter.CreationMethod != "" {
		method := models.CreationMethod(filter.CreationMethod)
		query.CreationMethod = &method
	}

	certs, total, err := s.ledger.List(ctx, query)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// AuditTrail returns the recorded lifecycle events for a certificate.
func (s *CertificateService) AuditTrail(ctx context.Context, code string, actor *models.JWTClaims) ([]models.AuditLog, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	reader, ok := s.audit.(auditTrailReader)
	if !ok {
		return []models.AuditLog{}, nil
	}
	logs, err := reader.ListByResource(ctx, models.AuditResourceCertificate, NormalizeCode(code), defaultAuditTrailLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	return logs, nil
}

func (s *CertificateService) lookupUser(ctx context.Context, userID string) (*models.User, error) {
	if s.users == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_name is required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner")
	}
	return user, nil
}

// lookupCourse tolerates a missing course unless its title is needed.
func (s *CertificateService) lookupCourse(ctx context.Context, courseID string, required bool) (*models.Course, error) {
	if s.courses == nil {
		if required {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course_name is required")
		}
		return nil, nil
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if required {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// emitAudit logs the event and persists it when an audit store is wired.
// Persistence failures never fail the lifecycle operation.
func (s *CertificateService) emitAudit(ctx context.Context, action, source, severity, actorID string, after, before *models.Certificate) {
	if after == nil {
		return
	}
	s.logger.Info("certificate audit",
		zap.String("action", action),
		zap.String("source", source),
		zap.String("severity", severity),
		zap.String("actor_id", actorID),
		zap.String("code", after.Code),
		zap.String("status", string(after.Status)),
	)
	if s.audit == nil {
		return
	}

	newValues, _ := json.Marshal(auditSnapshot(after))
	var oldValues []byte
	if before != nil {
		oldValues, _ = json.Marshal(auditSnapshot(before))
	}
	code := after.Code
	log := &models.AuditLog{
		UserID:     optionalID(actorID),
		Action:     action,
		Resource:   models.AuditResourceCertificate,
		ResourceID: &code,
		Source:     source,
		Severity:   severity,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "certificate-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record certificate audit", zap.String("code", code), zap.Error(err))
	}
}

func auditSnapshot(cert *models.Certificate) map[string]interface{} {
	payload := map[string]interface{}{
		"userId":         cert.UserID,
		"courseId":       cert.CourseID,
		"status":         cert.Status,
		"creationMethod": cert.CreationMethod,
	}
	if cert.RevokeReason != nil {
		payload["reason"] = *cert.RevokeReason
	}
	return payload
}

func issueSource(method models.CreationMethod) string {
	if method == models.CreationMethodManual {
		return models.AuditSourceAdmin
	}
	return models.AuditSourceQuiz
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
