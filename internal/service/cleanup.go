package service

import (
	"context"
	"time"

	"github.com/propgate/propgate/internal/pkg/logger"
)

// CleanupScheduler prunes persisted evaluations and audit events past their
// retention windows. Runs alongside the reset scheduler; a failed prune is
// logged and retried on the next tick.
type CleanupScheduler struct {
	states         StateRepo
	audit          AuditRepo
	interval       time.Duration
	stateRetention time.Duration
	auditRetention time.Duration
}

func NewCleanupScheduler(states StateRepo, audit AuditRepo, interval, stateRetention, auditRetention time.Duration) *CleanupScheduler {
	return &CleanupScheduler{
		states:         states,
		audit:          audit,
		interval:       interval,
		stateRetention: stateRetention,
		auditRetention: auditRetention,
	}
}

func (s *CleanupScheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("cleanup scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *CleanupScheduler) tick(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.states != nil {
		if err := s.states.Cleanup(cctx, s.stateRetention); err != nil {
			logger.Error("evaluation cleanup failed", "error", err)
		}
	}
	if s.audit != nil {
		if err := s.audit.Cleanup(cctx, s.auditRetention); err != nil {
			logger.Error("audit cleanup failed", "error", err)
		}
	}
}
