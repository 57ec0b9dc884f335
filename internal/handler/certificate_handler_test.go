package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/middleware"
	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

type fakeAdminCertificates struct {
	issued     dto.IssueCertificateRequest
	created    bool
	filter     dto.CertificateFilter
	statusReq  dto.ChangeCertificateStatusRequest
	lastAction string
	lastCode   string
	err        error
}

func (f *fakeAdminCertificates) AdminIssue(_ context.Context, req dto.IssueCertificateRequest, _ *models.JWTClaims) (*models.Certificate, bool, error) {
	f.issued = req
	if f.err != nil {
		return nil, false, f.err
	}
	return &models.Certificate{Code: "CV-MAN-DATA-ABCDEFGH", UserID: req.UserID, CourseID: req.CourseID}, f.created, nil
}

func (f *fakeAdminCertificates) Revoke(_ context.Context, code string, req dto.ChangeCertificateStatusRequest, _ *models.JWTClaims) (*models.Certificate, error) {
	f.lastAction, f.lastCode, f.statusReq = "revoke", code, req
	return &models.Certificate{Code: code, Status: models.CertificateStatusRevoked}, f.err
}

func (f *fakeAdminCertificates) Restore(_ context.Context, code string, req dto.ChangeCertificateStatusRequest, _ *models.JWTClaims) (*models.Certificate, error) {
	f.lastAction, f.lastCode, f.statusReq = "restore", code, req
	return &models.Certificate{Code: code, Status: models.CertificateStatusValid}, f.err
}

func (f *fakeAdminCertificates) List(_ context.Context, filter dto.CertificateFilter, _ *models.JWTClaims) ([]models.Certificate, *models.Pagination, error) {
	f.filter = filter
	return []models.Certificate{{Code: "CV-DATA-ABCDEFGH"}}, &models.Pagination{Page: 2, PageSize: 1, TotalCount: 3}, f.err
}

func (f *fakeAdminCertificates) AuditTrail(_ context.Context, code string, _ *models.JWTClaims) ([]models.AuditLog, error) {
	f.lastCode = code
	return []models.AuditLog{{Action: models.AuditActionCertificateIssue}}, f.err
}

func (f *fakeAdminCertificates) ExportRegister(_ context.Context, filter dto.CertificateFilter, _ *models.JWTClaims) ([]byte, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []byte("certificate_code\nCV-DATA-ABCDEFGH\n"), nil
}

type fakeReconciler struct {
	report *models.ReconcileReport
	err    error
}

func (f *fakeReconciler) Run(context.Context) (*models.ReconcileReport, error) {
	return f.report, f.err
}

type fakeLearnerCertificates struct {
	courseID string
	err      error
}

func (f *fakeLearnerCertificates) GetForLearner(_ context.Context, courseID string, actor *models.JWTClaims) (*models.Certificate, error) {
	f.courseID = courseID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Certificate{Code: "CV-DATA-ABCDEFGH", UserID: actor.UserID, CourseID: courseID}, nil
}

func (f *fakeLearnerCertificates) ListForLearner(_ context.Context, actor *models.JWTClaims) ([]models.Certificate, error) {
	return []models.Certificate{{Code: "CV-DATA-ABCDEFGH", UserID: actor.UserID}}, f.err
}

var (
	adminActor   = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	learnerActor = &models.JWTClaims{UserID: "u1", Role: models.RoleLearner}
)

func jsonContext(method, target, body string, actor *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if actor != nil {
		c.Set(middleware.ContextUserKey, actor)
	}
	return c, rec
}

func TestAdminIssueStatusReflectsCreation(t *testing.T) {
	for _, created := range []bool{true, false} {
		svc := &fakeAdminCertificates{created: created}
		h := NewAdminCertificateHandler(svc, nil)
		c, rec := jsonContext(http.MethodPost, "/admin/certificates", `{"user_id":"u1","course_id":"c1","student_name":"Jane Doe"}`, adminActor)

		h.Issue(c)

		want := http.StatusOK
		if created {
			want = http.StatusCreated
		}
		assert.Equal(t, want, rec.Code)
		assert.Equal(t, "Jane Doe", svc.issued.StudentName)

		var payload dto.IssueCertificateResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &payload))
		assert.Equal(t, created, payload.Created)
		assert.Equal(t, "CV-MAN-DATA-ABCDEFGH", payload.Certificate.Code)
	}
}

func TestAdminIssueRejectsBadPayload(t *testing.T) {
	svc := &fakeAdminCertificates{}
	h := NewAdminCertificateHandler(svc, nil)
	c, rec := jsonContext(http.MethodPost, "/admin/certificates", `{"user_id":`, adminActor)

	h.Issue(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, rec).Error.Code)
	assert.Empty(t, svc.issued.UserID)
}

func TestAdminIssueRequiresClaims(t *testing.T) {
	h := NewAdminCertificateHandler(&fakeAdminCertificates{}, nil)
	c, rec := jsonContext(http.MethodPost, "/admin/certificates", `{}`, nil)

	h.Issue(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminListBindsFilters(t *testing.T) {
	svc := &fakeAdminCertificates{}
	h := NewAdminCertificateHandler(svc, nil)
	c, rec := jsonContext(http.MethodGet, "/admin/certificates?status=REVOKED&creation_method=Manual&course_id=c1&page=2&page_size=1", "", adminActor)

	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "revoked", svc.filter.Status)
	assert.Equal(t, "manual", svc.filter.CreationMethod)
	assert.Equal(t, "c1", svc.filter.CourseID)
	assert.Equal(t, 2, svc.filter.Page)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.TotalCount)
}

func TestAdminExport(t *testing.T) {
	svc := &fakeAdminCertificates{}
	h := NewAdminCertificateHandler(svc, nil)
	c, rec := jsonContext(http.MethodGet, "/admin/certificates/export?status=Valid", "", adminActor)

	h.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "valid", svc.filter.Status)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"certificates-")
	assert.Equal(t, "certificate_code\nCV-DATA-ABCDEFGH\n", rec.Body.String())
}

func TestAdminRevokeAndRestore(t *testing.T) {
	svc := &fakeAdminCertificates{}
	h := NewAdminCertificateHandler(svc, nil)

	c, rec := jsonContext(http.MethodPost, "/admin/certificates/CV-DATA-ABCDEFGH/revoke", `{"reason":"plagiarism"}`, adminActor)
	c.Params = gin.Params{{Key: "code", Value: "CV-DATA-ABCDEFGH"}}
	h.Revoke(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "revoke", svc.lastAction)
	assert.Equal(t, "plagiarism", svc.statusReq.Reason)

	c, rec = jsonContext(http.MethodPost, "/admin/certificates/CV-DATA-ABCDEFGH/restore", "", adminActor)
	c.Params = gin.Params{{Key: "code", Value: "CV-DATA-ABCDEFGH"}}
	h.Restore(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "restore", svc.lastAction)
	assert.Empty(t, svc.statusReq.Reason)
}

func TestAdminRevokeUnknownCode(t *testing.T) {
	svc := &fakeAdminCertificates{err: appErrors.ErrCertificateNotFound}
	h := NewAdminCertificateHandler(svc, nil)
	c, rec := jsonContext(http.MethodPost, "/admin/certificates/CV-DATA-ZZZZZZZZ/revoke", "", adminActor)

	h.Revoke(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrCertificateNotFound.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestAdminAuditTrail(t *testing.T) {
	svc := &fakeAdminCertificates{}
	h := NewAdminCertificateHandler(svc, nil)
	c, rec := jsonContext(http.MethodGet, "/admin/certificates/CV-DATA-ABCDEFGH/audit", "", adminActor)
	c.Params = gin.Params{{Key: "code", Value: "CV-DATA-ABCDEFGH"}}

	h.AuditTrail(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CV-DATA-ABCDEFGH", svc.lastCode)
}

func TestAdminReconcile(t *testing.T) {
	h := NewAdminCertificateHandler(&fakeAdminCertificates{}, nil)
	c, rec := jsonContext(http.MethodPost, "/admin/certificates/reconcile", "", adminActor)
	h.Reconcile(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = NewAdminCertificateHandler(&fakeAdminCertificates{}, &fakeReconciler{report: &models.ReconcileReport{Checked: 2, Repaired: 2}})
	c, rec = jsonContext(http.MethodPost, "/admin/certificates/reconcile", "", adminActor)
	h.Reconcile(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	var report models.ReconcileReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &report))
	assert.Equal(t, 2, report.Repaired)

	h = NewAdminCertificateHandler(&fakeAdminCertificates{}, &fakeReconciler{err: appErrors.Clone(appErrors.ErrConflict, "reconciliation already running")})
	c, rec = jsonContext(http.MethodPost, "/admin/certificates/reconcile", "", adminActor)
	h.Reconcile(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLearnerCertificates(t *testing.T) {
	svc := &fakeLearnerCertificates{}
	h := NewCertificateHandler(svc)

	c, rec := jsonContext(http.MethodGet, "/me/certificates/c1", "", learnerActor)
	c.Params = gin.Params{{Key: "courseId", Value: "c1"}}
	h.GetMine(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", svc.courseID)

	c, rec = jsonContext(http.MethodGet, "/me/certificates", "", learnerActor)
	h.ListMine(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	var certs []models.Certificate
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &certs))
	require.Len(t, certs, 1)
	assert.Equal(t, "u1", certs[0].UserID)

	svc.err = appErrors.ErrNotFound
	c, rec = jsonContext(http.MethodGet, "/me/certificates/c2", "", learnerActor)
	h.GetMine(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = jsonContext(http.MethodGet, "/me/certificates", "", nil)
	h.ListMine(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireClaimsRejectsForeignContextValue(t *testing.T) {
	c, rec := jsonContext(http.MethodGet, "/admin/certificates", "", nil)
	c.Set(middleware.ContextUserKey, "admin-1")

	claims, ok := requireClaims(c)

	assert.False(t, ok)
	assert.Nil(t, claims)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, decodeEnvelope(t, rec).Error.Code)

	c, _ = jsonContext(http.MethodGet, "/admin/certificates", "", adminActor)
	claims, ok = requireClaims(c)
	assert.True(t, ok)
	assert.Equal(t, "admin-1", claims.UserID)
}
