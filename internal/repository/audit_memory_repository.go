package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/coursevault-api/internal/models"
)

// MemoryAuditRepository keeps the audit trail in process. It pairs with the
// memory ledger so admin audit queries keep working without Postgres writes.
type MemoryAuditRepository struct {
	mu   sync.RWMutex
	logs []models.AuditLog
}

// NewMemoryAuditRepository returns an empty audit store.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

// CreateAuditLog applies the same defaults as AuditRepository.
func (r *MemoryAuditRepository) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.Severity == "" {
		log.Severity = models.AuditSeverityInfo
	}

	r.mu.Lock()
	r.logs = append(r.logs, *log)
	r.mu.Unlock()
	return nil
}

// ListByResource returns the audit trail of one resource, newest first.
func (r *MemoryAuditRepository) ListByResource(_ context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	r.mu.RLock()
	out := make([]models.AuditLog, 0)
	for i := len(r.logs) - 1; i >= 0; i-- {
		entry := r.logs[i]
		if entry.Resource == resource && entry.ResourceID != nil && *entry.ResourceID == resourceID {
			out = append(out, entry)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
