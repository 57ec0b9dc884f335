package models

import "time"

// Audit actions emitted by the credential lifecycle.
const (
	AuditActionCertificateIssue   = "CERTIFICATE_ISSUE"
	AuditActionCertificateRevoke  = "CERTIFICATE_REVOKE"
	AuditActionCertificateRestore = "CERTIFICATE_RESTORE"
	AuditActionLedgerRepair       = "LEDGER_REPAIR"
)

// Audit sources identify which path triggered the event.
const (
	AuditSourceQuiz      = "quiz"
	AuditSourceAdmin     = "admin"
	AuditSourceReconcile = "reconcile"
)

// Audit severities.
const (
	AuditSeverityInfo    = "info"
	AuditSeverityWarning = "warning"
	AuditSeverityError   = "error"
)

// AuditResourceCertificate is the resource name for certificate events.
const AuditResourceCertificate = "certificate"

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Source     string    `db:"source" json:"source"`
	Severity   string    `db:"severity" json:"severity"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
