package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/propgate/propgate/internal/model"
)

type PostgresAuditRepo struct {
	db *sqlx.DB
}

func NewPostgresAuditRepo(db *sqlx.DB) *PostgresAuditRepo {
	repo := &PostgresAuditRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, event *model.RuleEvent) error {
	if event == nil {
		return nil
	}
	detailsJSON, _ := json.Marshal(event.Details)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rule_events (
			id, account_id, event_type, rule_name,
			previous_status, current_status, message, details, created_at
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9
		)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, event.AccountID, string(event.EventType), event.RuleName,
		event.PreviousStatus, event.CurrentStatus, event.Message, detailsJSON, event.CreatedAt)
	return err
}

func (r *PostgresAuditRepo) List(ctx context.Context, accountID string, eventType string, limit int, from, to *time.Time) ([]*model.RuleEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, account_id, event_type, rule_name, previous_status, current_status, message, details, created_at FROM rule_events`
	clauses := []string{}
	args := []interface{}{}
	idx := 1

	if accountID != "" {
		clauses = append(clauses, fmt.Sprintf("account_id = $%d", idx))
		args = append(args, accountID)
		idx++
	}
	if eventType != "" {
		clauses = append(clauses, fmt.Sprintf("event_type = $%d", idx))
		args = append(args, eventType)
		idx++
	}
	if from != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *from)
		idx++
	}
	if to != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *to)
		idx++
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.RuleEvent, 0, limit)
	for rows.Next() {
		var event model.RuleEvent
		var eventType string
		var detailsJSON []byte
		if err := rows.Scan(
			&event.ID,
			&event.AccountID,
			&eventType,
			&event.RuleName,
			&event.PreviousStatus,
			&event.CurrentStatus,
			&event.Message,
			&detailsJSON,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		event.EventType = model.RuleEventType(eventType)
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &event.Details)
		} else {
			event.Details = map[string]interface{}{}
		}
		records = append(records, &event)
	}
	return records, nil
}

func (r *PostgresAuditRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rule_events (
			id TEXT PRIMARY KEY,
			account_id TEXT,
			event_type TEXT,
			rule_name TEXT,
			previous_status TEXT,
			current_status TEXT,
			message TEXT,
			details JSONB,
			created_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_rule_events_account ON rule_events(account_id, created_at DESC)`)
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_rule_events_type ON rule_events(event_type, created_at DESC)`)
	return nil
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM rule_events WHERE created_at < $1`, cutoff)
	return err
}
