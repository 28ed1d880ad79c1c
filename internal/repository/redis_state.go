package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/propgate/propgate/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisStateRepo keeps the latest evaluation per account as a TTL'd key so a
// restarted instance can serve group views before fresh snapshots arrive.
type RedisStateRepo struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisStateRepo(client *RedisClient, ttlSeconds int) *RedisStateRepo {
	if ttlSeconds <= 0 {
		ttlSeconds = 86400
	}
	return &RedisStateRepo{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

func stateKey(accountID string) string {
	return fmt.Sprintf("state:%s:latest", accountID)
}

func (r *RedisStateRepo) Insert(ctx context.Context, result *model.RuleEvaluationResult) error {
	if result == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Client.Set(ctx, stateKey(result.AccountID), payload, r.ttl).Err()
}

func (r *RedisStateRepo) LatestByAccount(ctx context.Context, accountID string) (*model.RuleEvaluationResult, error) {
	payload, err := r.client.Client.Get(ctx, stateKey(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result model.RuleEvaluationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// History is not kept in Redis; only the latest state is cached.
func (r *RedisStateRepo) History(ctx context.Context, accountID string, limit int) ([]*model.RuleEvaluationResult, error) {
	latest, err := r.LatestByAccount(ctx, accountID)
	if err != nil || latest == nil {
		return nil, err
	}
	return []*model.RuleEvaluationResult{latest}, nil
}

func (r *RedisStateRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	// Keys expire on their own TTL.
	return nil
}
