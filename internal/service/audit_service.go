package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/pkg/config"
	"github.com/campushq/edu-portal-api/pkg/jobs"
)

type auditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService writes the audit trail through a background queue so that
// request latency does not depend on audit persistence. Entries are
// best-effort; a dropped entry is logged, never surfaced to the caller.
type AuditService struct {
	repo   auditRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the service and its backing queue.
func NewAuditService(repo auditRepository, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, cfg, logger)
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Safe to call on a nil service.
func (s *AuditService) Record(entry *models.AuditLog) {
	if s == nil || entry == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Kind: entry.Action, Payload: entry}); err != nil {
		s.logger.Warn("failed to enqueue audit entry", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Warn("audit queue received unexpected payload", zap.String("kind", job.Kind))
		return nil
	}
	return s.repo.CreateAuditLog(ctx, entry)
}
