package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursevault-api/internal/models"
)

// AuditRepository persists audit trail records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates an audit writer.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog stores one audit event.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.Severity == "" {
		log.Severity = models.AuditSeverityInfo
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, source, severity, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :source, :severity, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByResource returns the audit trail of one resource, newest first.
func (r *AuditRepository) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, user_id, action, resource, resource_id, source, severity, old_values, new_values, ip_address, user_agent, created_at FROM audit_logs WHERE resource = $1 AND resource_id = $2 ORDER BY created_at DESC LIMIT $3`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, resource, resourceID, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
