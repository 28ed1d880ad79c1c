package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/propgate/propgate/internal/model"
)

// PostgresStateRepo persists evaluation results as an append-only series per
// account. The latest row per account is the source of truth for group views
// after a restart.
type PostgresStateRepo struct {
	db *sqlx.DB
}

func NewPostgresStateRepo(db *sqlx.DB) *PostgresStateRepo {
	repo := &PostgresStateRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresStateRepo) Insert(ctx context.Context, result *model.RuleEvaluationResult) error {
	if result == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rule_evaluations (account_id, overall_risk_level, result, created_at)
		VALUES ($1, $2, $3, $4)
	`, result.AccountID, string(result.OverallRiskLevel), payload, result.Timestamp)
	return err
}

// LatestByAccount 返回某账户最近一次评估，没有记录时返回 (nil, nil)。
func (r *PostgresStateRepo) LatestByAccount(ctx context.Context, accountID string) (*model.RuleEvaluationResult, error) {
	var payload []byte
	err := r.db.QueryRowxContext(ctx, `
		SELECT result FROM rule_evaluations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
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

// History returns up to limit most recent evaluations for an account.
func (r *PostgresStateRepo) History(ctx context.Context, accountID string, limit int) ([]*model.RuleEvaluationResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryxContext(ctx, `
		SELECT result FROM rule_evaluations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*model.RuleEvaluationResult, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var result model.RuleEvaluationResult
		if err := json.Unmarshal(payload, &result); err != nil {
			continue
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}

func (r *PostgresStateRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rule_evaluations (
			id BIGSERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			overall_risk_level TEXT NOT NULL,
			result JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_rule_evaluations_account ON rule_evaluations(account_id, created_at DESC)`)
	return nil
}

func (r *PostgresStateRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM rule_evaluations WHERE created_at < $1`, cutoff)
	return err
}
