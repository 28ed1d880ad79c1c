package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/propgate/propgate/internal/model"
)

// RedisAuditRepo keeps rule events in a capped list. It is the fallback when
// Postgres is not configured; retention is bounded by listMax, not time.
type RedisAuditRepo struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisAuditRepo(client *RedisClient, listKey string, listMax int) *RedisAuditRepo {
	if listKey == "" {
		listKey = "rule_events"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisAuditRepo{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisAuditRepo) Insert(ctx context.Context, event *model.RuleEvent) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pipe := r.client.Client.Pipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisAuditRepo) List(ctx context.Context, accountID string, eventType string, limit int, from, to *time.Time) ([]*model.RuleEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.RuleEvent, 0, limit)
	for _, item := range items {
		var event model.RuleEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		if accountID != "" && event.AccountID != accountID {
			continue
		}
		if eventType != "" && string(event.EventType) != eventType {
			continue
		}
		if from != nil && event.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && event.CreatedAt.After(*to) {
			continue
		}
		results = append(results, &event)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (r *RedisAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	// The list is trimmed on insert; nothing to do.
	return nil
}
