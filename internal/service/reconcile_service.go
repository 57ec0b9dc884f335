package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
	"github.com/noah-isme/coursevault-api/pkg/jobs"
)

const (
	repairQueueName     = "ledger-repair"
	repairJobType       = "ledger_repair"
	defaultRepairBatch  = 200
	defaultRepairDelay  = 2 * time.Second
	reconcileRunTimeout = 5 * time.Minute
)

type reconcileLedger interface {
	Inconsistencies(ctx context.Context, limit int) ([]models.LedgerInconsistency, error)
	Repair(ctx context.Context, code string) (*models.Certificate, error)
}

// ReconcileServiceConfig sizes the repair worker and the batch pass.
type ReconcileServiceConfig struct {
	Workers    int
	Retries    int
	BatchSize  int
	RetryDelay time.Duration
}

// ReconcileService re-derives missing or drifted ledger copies from the
// authoritative one. Single repairs run on a background queue; full passes run
// on a cron schedule or on demand.
type ReconcileService struct {
	ledger    reconcileLedger
	audit     auditLogger
	metrics   *MetricsService
	logger    *zap.Logger
	queue     *jobs.Queue
	batchSize int

	mu        sync.Mutex
	scheduler *cron.Cron
	running   sync.Mutex
}

// NewReconcileService builds the service and its repair queue. Call Start
// before scheduling repairs.
func NewReconcileService(ledger reconcileLedger, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg ReconcileServiceConfig) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultRepairBatch
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRepairDelay
	}
	s := &ReconcileService{
		ledger:    ledger,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		batchSize: cfg.BatchSize,
	}
	s.queue = jobs.NewQueue(repairQueueName, s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the repair workers.
func (s *ReconcileService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts the cron schedule and drains the workers.
func (s *ReconcileService) Stop() {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	s.queue.Stop()
}

// Schedule runs a full pass on a cron spec such as "@every 15m". An empty spec
// disables the schedule.
func (s *ReconcileService) Schedule(spec string) error {
	if spec == "" {
		return nil
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(spec, s.scheduledRun); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	previous := s.scheduler
	s.scheduler = scheduler
	s.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}
	scheduler.Start()
	s.logger.Info("ledger reconciliation scheduled", zap.String("schedule", spec))
	return nil
}

// ScheduleRepair queues a single repair. A repair already pending for the same
// code absorbs the request.
func (s *ReconcileService) ScheduleRepair(code, reason string) error {
	err := s.queue.EnqueueUnique(jobs.Job{
		ID:      uuid.NewString(),
		Type:    repairJobType,
		Key:     code,
		Payload: reason,
	})
	if errors.Is(err, jobs.ErrDuplicate) {
		return nil
	}
	return err
}

// PendingRepairs reports how many repairs are queued or running.
func (s *ReconcileService) PendingRepairs() int {
	return s.queue.Pending()
}

// Run scans for inconsistencies and repairs each one. Only one pass runs at a
// time; a concurrent call gets a conflict.
func (s *ReconcileService) Run(ctx context.Context) (*models.ReconcileReport, error) {
	if !s.running.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "reconciliation already running")
	}
	defer s.running.Unlock()

	found, err := s.ledger.Inconsistencies(ctx, s.batchSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan certificate ledger")
	}

	report := &models.ReconcileReport{Checked: len(found), RanAt: time.Now().UTC()}
	for _, item := range found {
		if err := s.RepairOne(ctx, item.Code, item.Reason); err != nil {
			report.Failed++
			continue
		}
		report.Repaired++
		report.Codes = append(report.Codes, item.Code)
	}

	if report.Checked > 0 {
		s.logger.Warn("ledger reconciliation finished",
			zap.Int("checked", report.Checked),
			zap.Int("repaired", report.Repaired),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// RepairOne rewrites the copies of one certificate from the authoritative one.
// A code that no longer exists in either copy is not an error.
func (s *ReconcileService) RepairOne(ctx context.Context, code, reason string) error {
	cert, err := s.ledger.Repair(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("ledger repair found nothing to repair", zap.String("code", code))
			return nil
		}
		s.metrics.RecordRepair(false)
		s.logger.Error("ledger repair failed", zap.String("code", code), zap.String("reason", reason), zap.Error(err))
		return err
	}

	s.metrics.RecordRepair(true)
	s.logger.Warn("ledger copy repaired", zap.String("code", code), zap.String("reason", reason))
	s.recordRepair(ctx, cert, reason)
	return nil
}

func (s *ReconcileService) handleJob(ctx context.Context, job jobs.Job) error {
	reason, _ := job.Payload.(string)
	return s.RepairOne(ctx, job.Key, reason)
}

func (s *ReconcileService) scheduledRun() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileRunTimeout)
	defer cancel()
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("scheduled ledger reconciliation failed", zap.Error(err))
	}
}

func (s *ReconcileService) recordRepair(ctx context.Context, cert *models.Certificate, reason string) {
	if s.audit == nil || cert == nil {
		return
	}
	newValues, _ := json.Marshal(map[string]interface{}{
		"reason": reason,
		"status": cert.Status,
	})
	code := cert.Code
	log := &models.AuditLog{
		Action:     models.AuditActionLedgerRepair,
		Resource:   models.AuditResourceCertificate,
		ResourceID: &code,
		Source:     models.AuditSourceReconcile,
		Severity:   models.AuditSeverityWarning,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "reconcile-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record ledger repair audit", zap.String("code", code), zap.Error(err))
	}
}
