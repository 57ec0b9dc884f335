package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursevault-api/internal/models"
)

var (
	// ErrCertificateExists is returned by Create when the learner already holds
	// a certificate for the course. The existing record is returned alongside.
	ErrCertificateExists = errors.New("certificate already issued for learner and course")
	// ErrCodeCollision is returned by Create when the candidate code is taken.
	ErrCodeCollision = errors.New("certificate code already in use")
)

const certificateColumns = `certificate_code, user_id, course_id, user_name, course_title, course_level, issued_at, status, creation_method, created_by, quiz_score, quiz_total, revoked_at, revoked_by, revoke_reason, updated_at`

const certificateValues = `:certificate_code, :user_id, :course_id, :user_name, :course_title, :course_level, :issued_at, :status, :creation_method, :created_by, :quiz_score, :quiz_total, :revoked_at, :revoked_by, :revoke_reason, :updated_at`

const certificateOverwrite = `certificate_code = EXCLUDED.certificate_code, user_name = EXCLUDED.user_name, course_title = EXCLUDED.course_title, course_level = EXCLUDED.course_level, issued_at = EXCLUDED.issued_at, status = EXCLUDED.status, creation_method = EXCLUDED.creation_method, created_by = EXCLUDED.created_by, quiz_score = EXCLUDED.quiz_score, quiz_total = EXCLUDED.quiz_total, revoked_at = EXCLUDED.revoked_at, revoked_by = EXCLUDED.revoked_by, revoke_reason = EXCLUDED.revoke_reason, updated_at = EXCLUDED.updated_at`

// CertificateRepository is the PostgreSQL credential ledger. Every certificate
// lives in learner_certificates (private, keyed by learner and course) and in
// public_certificates (public, keyed by code); both are written in one
// transaction.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository creates a PostgreSQL-backed ledger.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// GetByLearnerCourse reads the private copy.
func (r *CertificateRepository) GetByLearnerCourse(ctx context.Context, userID, courseID string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM learner_certificates WHERE user_id = $1 AND course_id = $2`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get learner certificate: %w", err)
	}
	return &cert, nil
}

// GetByCode reads the public copy.
func (r *CertificateRepository) GetByCode(ctx context.Context, code string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM public_certificates WHERE certificate_code = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get public certificate: %w", err)
	}
	return &cert, nil
}

// ListByLearner returns the learner's private copies, newest first.
func (r *CertificateRepository) ListByLearner(ctx context.Context, userID string) ([]models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM learner_certificates WHERE user_id = $1 ORDER BY issued_at DESC, certificate_code`
	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, userID); err != nil {
		return nil, fmt.Errorf("list learner certificates: %w", err)
	}
	return certs, nil
}

// List pages through the public copies for the admin console.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	baseQuery := `FROM public_certificates WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.CreationMethod != nil {
		conditions = append(conditions, fmt.Sprintf("creation_method = $%d", len(args)+1))
		args = append(args, *filter.CreationMethod)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(user_name) LIKE $%d OR LOWER(course_title) LIKE $%d OR certificate_code LIKE UPPER($%d))", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePaging(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY issued_at DESC, certificate_code LIMIT %d OFFSET %d", certificateColumns, baseQuery, pageSize, offset)

	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}

	return certs, total, nil
}

// Create writes both copies or neither. The private insert is conditional on
// the learner-course slot being free, which closes the double-submit race.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) (*models.Certificate, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create certificate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	inserted, err := namedInsert(ctx, tx, `INSERT INTO learner_certificates (`+certificateColumns+`) VALUES (`+certificateValues+`) ON CONFLICT DO NOTHING`, cert)
	if err != nil {
		return nil, fmt.Errorf("insert learner certificate: %w", err)
	}
	if !inserted {
		existing, lookupErr := r.txLearnerCertificate(ctx, tx, cert.UserID, cert.CourseID)
		if lookupErr == nil {
			return existing, ErrCertificateExists
		}
		if errors.Is(lookupErr, sql.ErrNoRows) {
			return nil, ErrCodeCollision
		}
		return nil, lookupErr
	}

	inserted, err = namedInsert(ctx, tx, `INSERT INTO public_certificates (`+certificateColumns+`) VALUES (`+certificateValues+`) ON CONFLICT DO NOTHING`, cert)
	if err != nil {
		return nil, fmt.Errorf("insert public certificate: %w", err)
	}
	if !inserted {
		var taken bool
		if err := tx.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM public_certificates WHERE certificate_code = $1)`, cert.Code); err != nil {
			return nil, fmt.Errorf("check public certificate: %w", err)
		}
		if taken {
			return nil, ErrCodeCollision
		}
		// The learner-course pair is already public without a private twin.
		var existing models.Certificate
		if err := tx.GetContext(ctx, &existing, `SELECT `+certificateColumns+` FROM public_certificates WHERE user_id = $1 AND course_id = $2`, cert.UserID, cert.CourseID); err != nil {
			return nil, fmt.Errorf("load public certificate: %w", err)
		}
		return &existing, ErrCertificateExists
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create certificate: %w", err)
	}
	committed = true
	return cert, nil
}

// UpdateStatus applies a revoke or restore to both copies in one transaction.
// A missing private twin is re-derived from the public copy on the way.
func (r *CertificateRepository) UpdateStatus(ctx context.Context, code string, change models.StatusChange) (*models.Certificate, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update certificate status: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	revokedAt, revokedBy, reason := revocationFields(change)

	var updated models.Certificate
	publicQuery := `UPDATE public_certificates SET status = $2, revoked_at = $3, revoked_by = $4, revoke_reason = $5, updated_at = $6 WHERE certificate_code = $1 RETURNING ` + certificateColumns
	if err := tx.GetContext(ctx, &updated, publicQuery, code, change.Status, revokedAt, revokedBy, reason, change.ChangedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update public certificate status: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE learner_certificates SET status = $4, revoked_at = $5, revoked_by = $6, revoke_reason = $7, updated_at = $8 WHERE user_id = $1 AND course_id = $2 AND certificate_code = $3`,
		updated.UserID, updated.CourseID, code, change.Status, revokedAt, revokedBy, reason, change.ChangedAt)
	if err != nil {
		return nil, fmt.Errorf("update learner certificate status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO learner_certificates (`+certificateColumns+`) VALUES (`+certificateValues+`) ON CONFLICT (user_id, course_id) DO UPDATE SET `+certificateOverwrite, &updated); err != nil {
			return nil, fmt.Errorf("rederive learner certificate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update certificate status: %w", err)
	}
	committed = true
	return &updated, nil
}

// ledgerComparedColumns are the fields both copies must agree on; the same set
// models.Certificate.Matches compares. updated_at is bookkeeping.
var ledgerComparedColumns = []string{
	"certificate_code", "user_name", "course_title", "course_level", "issued_at", "status",
	"creation_method", "created_by", "quiz_score", "quiz_total", "revoked_at", "revoked_by",
	"revoke_reason",
}

// driftPredicate is true when the two aliased rows differ in any compared
// column. IS DISTINCT FROM treats two NULLs as equal.
func driftPredicate(left, right string) string {
	l := make([]string, len(ledgerComparedColumns))
	r := make([]string, len(ledgerComparedColumns))
	for i, col := range ledgerComparedColumns {
		l[i] = left + "." + col
		r[i] = right + "." + col
	}
	return "(" + strings.Join(l, ", ") + ") IS DISTINCT FROM (" + strings.Join(r, ", ") + ")"
}

// Inconsistencies lists certificates whose two copies disagree or where one
// copy is missing, oldest first.
func (r *CertificateRepository) Inconsistencies(ctx context.Context, limit int) ([]models.LedgerInconsistency, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT p.certificate_code, p.user_id, p.course_id,
       CASE WHEN l.user_id IS NULL THEN 'missing_private' ELSE 'field_mismatch' END AS reason
FROM public_certificates p
LEFT JOIN learner_certificates l ON l.user_id = p.user_id AND l.course_id = p.course_id
WHERE l.user_id IS NULL
   OR ` + driftPredicate("l", "p") + `
UNION ALL
SELECT l.certificate_code, l.user_id, l.course_id, 'missing_public' AS reason
FROM learner_certificates l
LEFT JOIN public_certificates p ON p.certificate_code = l.certificate_code
WHERE p.certificate_code IS NULL
ORDER BY certificate_code
LIMIT $1`
	var out []models.LedgerInconsistency
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("scan ledger inconsistencies: %w", err)
	}
	return out, nil
}

// Repair re-derives the stale copy of code. The public copy wins when it
// exists; a private copy without a public twin is republished as is.
func (r *CertificateRepository) Repair(ctx context.Context, code string) (*models.Certificate, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin repair certificate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var authoritative models.Certificate
	err = tx.GetContext(ctx, &authoritative, `SELECT `+certificateColumns+` FROM public_certificates WHERE certificate_code = $1 FOR UPDATE`, code)
	switch {
	case err == nil:
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO learner_certificates (`+certificateColumns+`) VALUES (`+certificateValues+`) ON CONFLICT (user_id, course_id) DO UPDATE SET `+certificateOverwrite, &authoritative); err != nil {
			return nil, fmt.Errorf("rederive learner certificate: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.GetContext(ctx, &authoritative, `SELECT `+certificateColumns+` FROM learner_certificates WHERE certificate_code = $1 FOR UPDATE`, code); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			return nil, fmt.Errorf("load learner certificate: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO public_certificates (`+certificateColumns+`) VALUES (`+certificateValues+`) ON CONFLICT DO NOTHING`, &authoritative); err != nil {
			return nil, fmt.Errorf("republish public certificate: %w", err)
		}
	default:
		return nil, fmt.Errorf("load public certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit repair certificate: %w", err)
	}
	committed = true
	return &authoritative, nil
}

func (r *CertificateRepository) txLearnerCertificate(ctx context.Context, tx *sqlx.Tx, userID, courseID string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := tx.GetContext(ctx, &cert, `SELECT `+certificateColumns+` FROM learner_certificates WHERE user_id = $1 AND course_id = $2`, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load learner certificate: %w", err)
	}
	return &cert, nil
}

func namedInsert(ctx context.Context, tx *sqlx.Tx, query string, cert *models.Certificate) (bool, error) {
	res, err := tx.NamedExecContext(ctx, query, cert)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func revocationFields(change models.StatusChange) (interface{}, interface{}, interface{}) {
	if change.Status != models.CertificateStatusRevoked {
		return nil, nil, nil
	}
	var actor, reason interface{}
	if change.ActorID != "" {
		actor = change.ActorID
	}
	if change.Reason != "" {
		reason = change.Reason
	}
	return change.ChangedAt, actor, reason
}

func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
