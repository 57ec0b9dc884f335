package models

import "time"

// CertificateStatus enumerates the lifecycle states of a certificate.
type CertificateStatus string

const (
	CertificateStatusValid   CertificateStatus = "valid"
	CertificateStatusRevoked CertificateStatus = "revoked"
)

// Valid reports whether s is a known status.
func (s CertificateStatus) Valid() bool {
	return s == CertificateStatusValid || s == CertificateStatusRevoked
}

// CreationMethod records how a certificate was issued. It is informational only.
type CreationMethod string

const (
	CreationMethodQuiz   CreationMethod = "quiz"
	CreationMethodManual CreationMethod = "manual"
)

// Certificate is stored twice: privately under (user_id, course_id) and
// publicly under certificate_code. Both copies carry this exact field set.
type Certificate struct {
	Code           string            `db:"certificate_code" json:"certificate_code"`
	UserID         string            `db:"user_id" json:"user_id"`
	CourseID       string            `db:"course_id" json:"course_id"`
	StudentName    string            `db:"user_name" json:"student_name"`
	CourseName     string            `db:"course_title" json:"course_name"`
	CourseLevel    string            `db:"course_level" json:"course_level"`
	IssuedAt       time.Time         `db:"issued_at" json:"issue_date"`
	Status         CertificateStatus `db:"status" json:"status"`
	CreationMethod CreationMethod    `db:"creation_method" json:"creation_method"`
	CreatedBy      *string           `db:"created_by" json:"created_by,omitempty"`
	QuizScore      *int              `db:"quiz_score" json:"quiz_score,omitempty"`
	QuizTotal      *int              `db:"quiz_total" json:"quiz_total,omitempty"`
	RevokedAt      *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedBy      *string           `db:"revoked_by" json:"revoked_by,omitempty"`
	RevokeReason   *string           `db:"revoke_reason" json:"revoke_reason,omitempty"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// IsValid reports whether the certificate currently asserts completion.
func (c *Certificate) IsValid() bool {
	return c != nil && c.Status == CertificateStatusValid
}

// Matches reports whether two copies of a certificate agree on every ledger
// field. updated_at is bookkeeping and is ignored.
func (c *Certificate) Matches(other *Certificate) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Code == other.Code &&
		c.UserID == other.UserID &&
		c.CourseID == other.CourseID &&
		c.StudentName == other.StudentName &&
		c.CourseName == other.CourseName &&
		c.CourseLevel == other.CourseLevel &&
		c.IssuedAt.Equal(other.IssuedAt) &&
		c.Status == other.Status &&
		c.CreationMethod == other.CreationMethod &&
		equalStringPtr(c.CreatedBy, other.CreatedBy) &&
		equalIntPtr(c.QuizScore, other.QuizScore) &&
		equalIntPtr(c.QuizTotal, other.QuizTotal) &&
		equalTimePtr(c.RevokedAt, other.RevokedAt) &&
		equalStringPtr(c.RevokedBy, other.RevokedBy) &&
		equalStringPtr(c.RevokeReason, other.RevokeReason)
}

// Clone returns a deep copy so callers cannot mutate ledger state through it.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	out := *c
	out.CreatedBy = cloneString(c.CreatedBy)
	out.RevokedBy = cloneString(c.RevokedBy)
	out.RevokeReason = cloneString(c.RevokeReason)
	if c.QuizScore != nil {
		v := *c.QuizScore
		out.QuizScore = &v
	}
	if c.QuizTotal != nil {
		v := *c.QuizTotal
		out.QuizTotal = &v
	}
	if c.RevokedAt != nil {
		v := *c.RevokedAt
		out.RevokedAt = &v
	}
	return &out
}

// StatusChange describes a revoke or restore applied to both ledger copies.
type StatusChange struct {
	Status    CertificateStatus
	ActorID   string
	Reason    string
	ChangedAt time.Time
}

// CertificateFilter narrows the admin listing.
type CertificateFilter struct {
	Status         *CertificateStatus
	CourseID       string
	UserID         string
	CreationMethod *CreationMethod
	Search         string
	Page           int
	PageSize       int
}

// VerificationOutcome is one of the three externally visible verification states.
type VerificationOutcome string

const (
	VerificationNotFound VerificationOutcome = "NOT_FOUND"
	VerificationRevoked  VerificationOutcome = "REVOKED"
	VerificationValid    VerificationOutcome = "VALID"
)

// VerificationResult is returned by the public verification lookup.
type VerificationResult struct {
	Code            string              `json:"certificate_code"`
	Outcome         VerificationOutcome `json:"outcome"`
	Certificate     *Certificate        `json:"certificate,omitempty"`
	VerificationURL string              `json:"verification_url,omitempty"`
	CheckedAt       time.Time           `json:"checked_at"`
}

// LedgerInconsistency describes a certificate whose two copies disagree or
// where one copy is missing.
type LedgerInconsistency struct {
	Code     string `db:"certificate_code" json:"certificate_code"`
	UserID   string `db:"user_id" json:"user_id"`
	CourseID string `db:"course_id" json:"course_id"`
	Reason   string `db:"reason" json:"reason"`
}

// Inconsistency reasons.
const (
	InconsistencyMissingPrivate = "missing_private"
	InconsistencyMissingPublic  = "missing_public"
	InconsistencyFieldMismatch  = "field_mismatch"
)

// ReconcileReport summarises a repair pass.
type ReconcileReport struct {
	Checked  int       `json:"checked"`
	Repaired int       `json:"repaired"`
	Failed   int       `json:"failed"`
	Codes    []string  `json:"codes,omitempty"`
	RanAt    time.Time `json:"ran_at"`
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
