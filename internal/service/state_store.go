package service

import (
	"context"
	"sync"
	"time"

	"github.com/propgate/propgate/internal/model"
)

// StateRepo persists evaluation results. Implemented by the Postgres and
// Redis repos and by the in-memory store below.
type StateRepo interface {
	Insert(ctx context.Context, result *model.RuleEvaluationResult) error
	LatestByAccount(ctx context.Context, accountID string) (*model.RuleEvaluationResult, error)
	History(ctx context.Context, accountID string, limit int) ([]*model.RuleEvaluationResult, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// MemoryStateStore 内存态的评估结果存储，用于没有配置 Postgres/Redis 的场景。
// History is bounded per account; the oldest entries roll off.
type MemoryStateStore struct {
	mu      sync.RWMutex
	latest  map[string]*model.RuleEvaluationResult
	history map[string][]*model.RuleEvaluationResult
	maxHist int
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		latest:  make(map[string]*model.RuleEvaluationResult),
		history: make(map[string][]*model.RuleEvaluationResult),
		maxHist: 1000,
	}
}

func (s *MemoryStateStore) Insert(ctx context.Context, result *model.RuleEvaluationResult) error {
	if result == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[result.AccountID] = result
	hist := append(s.history[result.AccountID], result)
	if len(hist) > s.maxHist {
		hist = hist[len(hist)-s.maxHist:]
	}
	s.history[result.AccountID] = hist
	return nil
}

func (s *MemoryStateStore) LatestByAccount(ctx context.Context, accountID string) (*model.RuleEvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest[accountID], nil
}

func (s *MemoryStateStore) History(ctx context.Context, accountID string, limit int) ([]*model.RuleEvaluationResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.history[accountID]
	results := make([]*model.RuleEvaluationResult, 0, limit)
	for i := len(hist) - 1; i >= 0 && len(results) < limit; i-- {
		results = append(results, hist[i])
	}
	return results, nil
}

func (s *MemoryStateStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, hist := range s.history {
		kept := hist[:0]
		for _, r := range hist {
			if !r.Timestamp.Before(cutoff) {
				kept = append(kept, r)
			}
		}
		s.history[id] = kept
	}
	return nil
}
