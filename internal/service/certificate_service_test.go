package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/repository"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

var adminClaims = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, FullName: "Ada Admin"}

type auditRecorder struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

func (a *auditRecorder) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditLog, 0)
	for _, log := range a.logs {
		if log.Resource == resource && log.ResourceID != nil && *log.ResourceID == resourceID {
			out = append(out, *log)
		}
	}
	return out, nil
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}

type userStub struct {
	users map[string]*models.User
}

func (s userStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

type courseStub struct {
	courses map[string]*models.Course
	lessons map[string][]models.CourseLesson
}

func (s courseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := s.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

func (s courseStub) ListLessons(ctx context.Context, courseID string) ([]models.CourseLesson, error) {
	return s.lessons[courseID], nil
}

// sequenceEntropy replays values in order and repeats the last one.
func sequenceEntropy(values ...string) EntropySource {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

func newCertificateService(ledger certificateLedger, entropy EntropySource, audit auditLogger) *CertificateService {
	return NewCertificateService(
		ledger,
		NewCodeGenerator(DefaultCodePrefix, entropy),
		userStub{users: map[string]*models.User{"u1": {ID: "u1", FullName: "Jane Doe", Active: true}}},
		courseStub{courses: map[string]*models.Course{"c1": {ID: "c1", Title: "Intro to X", Category: "Data", Level: "Beginner", Published: true}}},
		audit,
		NewMetricsService(),
		nil,
		zap.NewNop(),
		CertificateServiceConfig{MaxCodeAttempts: 3},
	)
}

func quizInput(userID string) IssueCertificateInput {
	return IssueCertificateInput{
		UserID:      userID,
		CourseID:    "c1",
		StudentName: "Jane Doe",
		CourseName:  "Intro to X",
		Method:      models.CreationMethodQuiz,
	}
}

func TestIssueRevokeRestoreScenario(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	audit := &auditRecorder{}
	svc := newCertificateService(ledger, nil, audit)
	verifier := NewVerificationService(ledger, nil, nil, zap.NewNop(), "learn.example.com")

	cert, created, err := svc.Issue(ctx, quizInput("u1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, Looks(cert.Code))
	assert.False(t, IsManual(cert.Code))
	assert.Equal(t, models.CertificateStatusValid, cert.Status)

	private, err := ledger.GetByLearnerCourse(ctx, "u1", "c1")
	require.NoError(t, err)
	public, err := ledger.GetByCode(ctx, cert.Code)
	require.NoError(t, err)
	assert.True(t, private.Matches(public))

	_, err = svc.Revoke(ctx, cert.Code, dto.ChangeCertificateStatusRequest{Reason: "plagiarism"}, adminClaims)
	require.NoError(t, err)

	result, err := verifier.Verify(ctx, cert.Code)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRevoked, result.Outcome)
	assert.Equal(t, "Jane Doe", result.Certificate.StudentName)
	assert.Equal(t, "Intro to X", result.Certificate.CourseName)

	_, err = svc.Restore(ctx, cert.Code, dto.ChangeCertificateStatusRequest{}, adminClaims)
	require.NoError(t, err)

	result, err = verifier.Verify(ctx, cert.Code)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationValid, result.Outcome)
	assert.Nil(t, result.Certificate.RevokedAt)

	assert.Equal(t, []string{
		models.AuditActionCertificateIssue,
		models.AuditActionCertificateRevoke,
		models.AuditActionCertificateRestore,
	}, audit.actions())
}

func TestIssueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	svc := newCertificateService(ledger, nil, nil)

	first, created, err := svc.Issue(ctx, quizInput("u1"))
	require.NoError(t, err)
	require.True(t, created)

	again := quizInput("u1")
	again.StudentName = "Janet Doe"
	second, created, err := svc.Issue(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, "Jane Doe", second.StudentName)

	certs, total, err := ledger.List(ctx, models.CertificateFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, certs, 1)
}

func TestIssueConcurrentDuplicatesCreateOnce(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	svc := newCertificateService(ledger, nil, nil)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		codes   = make(map[string]struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cert, isNew, err := svc.Issue(ctx, quizInput("u1"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if isNew {
				created++
			}
			codes[cert.Code] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, codes, 1)
}

func TestIssueRetriesOnCodeCollision(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	svc := newCertificateService(ledger, sequenceEntropy("AAAAAAAA", "AAAAAAAA", "BBBBBBBB"), nil)

	first, _, err := svc.Issue(ctx, quizInput("u0"))
	require.NoError(t, err)
	assert.Equal(t, "CV-C1-AAAAAAAA", first.Code)

	second, created, err := svc.Issue(ctx, quizInput("u1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "CV-C1-BBBBBBBB", second.Code)
}

func TestIssueFailsClosedWhenRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	svc := newCertificateService(ledger, sequenceEntropy("AAAAAAAA"), nil)

	_, _, err := svc.Issue(ctx, quizInput("u0"))
	require.NoError(t, err)

	_, _, err = svc.Issue(ctx, quizInput("u1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCodeRetryExhausted.Code, appErr.Code)
	assert.Equal(t, 503, appErr.Status)

	_, err = ledger.GetByLearnerCourse(ctx, "u1", "c1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestIssueValidatesSnapshot(t *testing.T) {
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, nil)

	in := quizInput("u1")
	in.StudentName = "   "
	_, _, err := svc.Issue(context.Background(), in)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestIssueSurvivesAuditFailure(t *testing.T) {
	audit := &auditRecorder{err: errors.New("audit store down")}
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, audit)

	cert, created, err := svc.Issue(context.Background(), quizInput("u1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, cert.Code)
	assert.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditSourceQuiz, audit.logs[0].Source)
}

func TestAdminIssueFillsSnapshotFromRecords(t *testing.T) {
	ctx := context.Background()
	audit := &auditRecorder{}
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, audit)

	cert, created, err := svc.AdminIssue(ctx, dto.IssueCertificateRequest{UserID: "u1", CourseID: "c1"}, adminClaims)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, IsManual(cert.Code))
	assert.Contains(t, cert.Code, "-MAN-DATA-")
	assert.Equal(t, "Jane Doe", cert.StudentName)
	assert.Equal(t, "Intro to X", cert.CourseName)
	assert.Equal(t, "Beginner", cert.CourseLevel)
	assert.Equal(t, models.CreationMethodManual, cert.CreationMethod)
	require.NotNil(t, cert.CreatedBy)
	assert.Equal(t, "admin-1", *cert.CreatedBy)

	trail, err := svc.AuditTrail(ctx, cert.Code, adminClaims)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditSourceAdmin, trail[0].Source)
}

func TestAdminIssueUnknownLearner(t *testing.T) {
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, nil)

	_, _, err := svc.AdminIssue(context.Background(), dto.IssueCertificateRequest{UserID: "ghost", CourseID: "c1"}, adminClaims)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatusChangesRequireAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, nil)
	cert, _, err := svc.Issue(ctx, quizInput("u1"))
	require.NoError(t, err)

	learner := &models.JWTClaims{UserID: "u1", Role: models.RoleLearner}
	_, err = svc.Revoke(ctx, cert.Code, dto.ChangeCertificateStatusRequest{}, learner)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = svc.AdminIssue(ctx, dto.IssueCertificateRequest{UserID: "u1", CourseID: "c1"}, learner)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRevokeUnknownCode(t *testing.T) {
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, nil)

	_, err := svc.Revoke(context.Background(), "CV-C1-ZZZZZZZZ", dto.ChangeCertificateStatusRequest{}, adminClaims)
	assert.Equal(t, appErrors.ErrCertificateNotFound.Code, appErrors.FromError(err).Code)
}

func TestRevokeRecordsReasonOnBothCopies(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	svc := newCertificateService(ledger, nil, nil)
	cert, _, err := svc.Issue(ctx, quizInput("u1"))
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, " "+cert.Code+" ", dto.ChangeCertificateStatusRequest{Reason: "duplicate account"}, adminClaims)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokeReason)
	assert.Equal(t, "duplicate account", *revoked.RevokeReason)

	private, err := ledger.GetByLearnerCourse(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateStatusRevoked, private.Status)
	assert.True(t, private.Matches(revoked))
}

func TestLearnerAndAdminListings(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	svc := newCertificateService(ledger, nil, nil)
	svc.config.Now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }

	for _, user := range []string{"u1", "u2", "u3"} {
		_, _, err := svc.Issue(ctx, quizInput(user))
		require.NoError(t, err)
	}

	mine, err := svc.ListForLearner(ctx, &models.JWTClaims{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u2", mine[0].UserID)

	_, err = svc.GetForLearner(ctx, "c9", &models.JWTClaims{UserID: "u2"})
	assert.Equal(t, appErrors.ErrCertificateNotFound.Code, appErrors.FromError(err).Code)

	page, pagination, err := svc.List(ctx, dto.CertificateFilter{Status: "valid", PageSize: 2}, adminClaims)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)

	_, _, err = svc.List(ctx, dto.CertificateFilter{Status: "expired"}, adminClaims)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuditTrailWithMemoryStores(t *testing.T) {
	ctx := context.Background()
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, repository.NewMemoryAuditRepository())

	cert, _, err := svc.Issue(ctx, quizInput("u1"))
	require.NoError(t, err)
	_, err = svc.Revoke(ctx, cert.Code, dto.ChangeCertificateStatusRequest{Reason: "plagiarism"}, adminClaims)
	require.NoError(t, err)

	trail, err := svc.AuditTrail(ctx, cert.Code, adminClaims)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditActionCertificateRevoke, trail[0].Action)
	assert.Equal(t, models.AuditActionCertificateIssue, trail[1].Action)
}
