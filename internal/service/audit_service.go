package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/transflow/transflow-api/internal/models"
	"github.com/transflow/transflow-api/pkg/jobs"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService records audit trail entries asynchronously so request paths
// never wait on audit writes. Entries that cannot be enqueued are logged
// and dropped; the audit trail is best effort.
type AuditService struct {
	repo   auditLogWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the recorder with its backing worker queue.
func NewAuditService(repo auditLogWriter, cfg jobs.QueueConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s.queue = jobs.NewQueue("audit", s.handle, cfg)
	return s
}

// Start launches the background writers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry for asynchronous persistence.
func (s *AuditService) Record(entry *models.AuditLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      entry.ID,
		Type:    entry.Action,
		Payload: entry,
	})
	if err != nil {
		s.logger.Warn("audit entry dropped",
			zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload type %T", job.Payload)
	}
	return s.repo.CreateAuditLog(ctx, entry)
}
