package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/noah-isme/coursevault-api/internal/models"
)

type learnerCourseKey struct {
	userID   string
	courseID string
}

// MemoryCertificateRepository is an in-process ledger with the same
// semantics as the PostgreSQL one. A single mutex makes each operation atomic
// across both copies.
type MemoryCertificateRepository struct {
	mu      sync.RWMutex
	private map[learnerCourseKey]*models.Certificate
	public  map[string]*models.Certificate
}

// NewMemoryCertificateRepository creates an empty in-memory ledger.
func NewMemoryCertificateRepository() *MemoryCertificateRepository {
	return &MemoryCertificateRepository{
		private: make(map[learnerCourseKey]*models.Certificate),
		public:  make(map[string]*models.Certificate),
	}
}

func (r *MemoryCertificateRepository) GetByLearnerCourse(_ context.Context, userID, courseID string) (*models.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cert, ok := r.private[learnerCourseKey{userID, courseID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cert.Clone(), nil
}

func (r *MemoryCertificateRepository) GetByCode(_ context.Context, code string) (*models.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cert, ok := r.public[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cert.Clone(), nil
}

func (r *MemoryCertificateRepository) ListByLearner(_ context.Context, userID string) ([]models.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Certificate, 0)
	for key, cert := range r.private {
		if key.userID == userID {
			out = append(out, *cert.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryCertificateRepository) List(_ context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	r.mu.RLock()
	matched := make([]models.Certificate, 0, len(r.public))
	search := strings.ToLower(filter.Search)
	for _, cert := range r.public {
		switch {
		case filter.Status != nil && cert.Status != *filter.Status:
			continue
		case filter.CreationMethod != nil && cert.CreationMethod != *filter.CreationMethod:
			continue
		case filter.CourseID != "" && cert.CourseID != filter.CourseID:
			continue
		case filter.UserID != "" && cert.UserID != filter.UserID:
			continue
		case search != "" &&
			!strings.Contains(strings.ToLower(cert.StudentName), search) &&
			!strings.Contains(strings.ToLower(cert.CourseName), search) &&
			!strings.Contains(strings.ToLower(cert.Code), search):
			continue
		}
		matched = append(matched, *cert.Clone())
	}
	r.mu.RUnlock()

	sortNewestFirst(matched)

	total := len(matched)
	page, pageSize := normalizePaging(filter.Page, filter.PageSize)
	start := (page - 1) * pageSize
	if start >= total {
		return []models.Certificate{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryCertificateRepository) Create(_ context.Context, cert *models.Certificate) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := learnerCourseKey{cert.UserID, cert.CourseID}
	if existing, ok := r.private[key]; ok {
		return existing.Clone(), ErrCertificateExists
	}
	if _, taken := r.public[cert.Code]; taken {
		return nil, ErrCodeCollision
	}
	for _, other := range r.private {
		if other.Code == cert.Code {
			return nil, ErrCodeCollision
		}
	}
	for _, other := range r.public {
		if other.UserID == cert.UserID && other.CourseID == cert.CourseID {
			return other.Clone(), ErrCertificateExists
		}
	}

	r.private[key] = cert.Clone()
	r.public[cert.Code] = cert.Clone()
	return cert.Clone(), nil
}

func (r *MemoryCertificateRepository) UpdateStatus(_ context.Context, code string, change models.StatusChange) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pub, ok := r.public[code]
	if !ok {
		return nil, sql.ErrNoRows
	}

	pub.Status = change.Status
	pub.UpdatedAt = change.ChangedAt
	if change.Status == models.CertificateStatusRevoked {
		at := change.ChangedAt
		pub.RevokedAt = &at
		pub.RevokedBy = optionalString(change.ActorID)
		pub.RevokeReason = optionalString(change.Reason)
	} else {
		pub.RevokedAt, pub.RevokedBy, pub.RevokeReason = nil, nil, nil
	}

	r.private[learnerCourseKey{pub.UserID, pub.CourseID}] = pub.Clone()
	return pub.Clone(), nil
}

func (r *MemoryCertificateRepository) Inconsistencies(_ context.Context, limit int) ([]models.LedgerInconsistency, error) {
	if limit <= 0 {
		limit = 200
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.LedgerInconsistency, 0)
	for code, pub := range r.public {
		priv, ok := r.private[learnerCourseKey{pub.UserID, pub.CourseID}]
		switch {
		case !ok:
			out = append(out, models.LedgerInconsistency{Code: code, UserID: pub.UserID, CourseID: pub.CourseID, Reason: models.InconsistencyMissingPrivate})
		case !priv.Matches(pub):
			out = append(out, models.LedgerInconsistency{Code: code, UserID: pub.UserID, CourseID: pub.CourseID, Reason: models.InconsistencyFieldMismatch})
		}
	}
	for _, priv := range r.private {
		if _, ok := r.public[priv.Code]; !ok {
			out = append(out, models.LedgerInconsistency{Code: priv.Code, UserID: priv.UserID, CourseID: priv.CourseID, Reason: models.InconsistencyMissingPublic})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryCertificateRepository) Repair(_ context.Context, code string) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pub, ok := r.public[code]; ok {
		r.private[learnerCourseKey{pub.UserID, pub.CourseID}] = pub.Clone()
		return pub.Clone(), nil
	}
	for _, priv := range r.private {
		if priv.Code == code {
			r.public[code] = priv.Clone()
			return priv.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

func sortNewestFirst(certs []models.Certificate) {
	sort.SliceStable(certs, func(i, j int) bool {
		if certs[i].IssuedAt.Equal(certs[j].IssuedAt) {
			return certs[i].Code < certs[j].Code
		}
		return certs[i].IssuedAt.After(certs[j].IssuedAt)
	})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
