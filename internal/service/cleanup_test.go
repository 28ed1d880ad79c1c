package service

import (
	"context"
	"testing"
	"time"

	"github.com/propgate/propgate/internal/model"
)

type recordingAuditRepo struct {
	cleanedOlderThan time.Duration
}

func (r *recordingAuditRepo) Insert(ctx context.Context, event *model.RuleEvent) error { return nil }

func (r *recordingAuditRepo) List(ctx context.Context, accountID string, eventType string, limit int, from, to *time.Time) ([]*model.RuleEvent, error) {
	return nil, nil
}

func (r *recordingAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	r.cleanedOlderThan = olderThan
	return nil
}

func TestCleanupPrunesExpiredEvaluations(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	expired := &model.RuleEvaluationResult{AccountID: "a1", Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := &model.RuleEvaluationResult{AccountID: "a1", Timestamp: time.Now().UTC()}
	if err := store.Insert(ctx, expired); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, fresh); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	audit := &recordingAuditRepo{}
	sched := NewCleanupScheduler(store, audit, time.Minute, 24*time.Hour, 72*time.Hour)
	sched.tick(ctx)

	hist, err := store.History(ctx, "a1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("history length after cleanup = %d, want 1 (expired row pruned)", len(hist))
	}
	if !hist[0].Timestamp.Equal(fresh.Timestamp) {
		t.Fatal("cleanup removed the fresh evaluation instead of the expired one")
	}
	if audit.cleanedOlderThan != 72*time.Hour {
		t.Fatalf("audit retention passed = %s, want 72h", audit.cleanedOlderThan)
	}
}
