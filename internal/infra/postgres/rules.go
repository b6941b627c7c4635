package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/routing"
)

// RuleRepository は routing_rules テーブルを扱う
type RuleRepository struct {
	db DBTX
}

// NewRuleRepository は新しい RuleRepository を作成する
func NewRuleRepository(db DBTX) *RuleRepository {
	return &RuleRepository{db: db}
}

const selectRulesSQL = `
SELECT id, name, description, status, priority, conditions, action, created_at, updated_at
FROM routing_rules`

// ListActive は有効なルールを ID 順に返す
func (r *RuleRepository) ListActive(ctx context.Context) ([]*routing.Rule, error) {
	return r.query(ctx, selectRulesSQL+` WHERE status = $1 ORDER BY id`, string(routing.RuleActive))
}

// List は全ルールを ID 順に返す
func (r *RuleRepository) List(ctx context.Context) ([]*routing.Rule, error) {
	return r.query(ctx, selectRulesSQL+` ORDER BY id`)
}

func (r *RuleRepository) query(ctx context.Context, sql string, args ...any) ([]*routing.Rule, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.Persistence("postgres.RuleRepository.List", err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*routing.Rule, error) {
		var (
			rule       routing.Rule
			status     string
			priority   string
			conditions []byte
			action     []byte
		)
		if err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &status, &priority,
			&conditions, &action, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		rule.Status = routing.RuleStatus(status)
		rule.Priority = routing.RulePriority(priority)
		if err := unmarshalJSON(conditions, &rule.Conditions); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(action, &rule.Action); err != nil {
			return nil, err
		}
		return &rule, nil
	})
	if err != nil {
		return nil, errs.Persistence("postgres.RuleRepository.List", err)
	}
	return rules, nil
}

const upsertRuleSQL = `
INSERT INTO routing_rules (id, name, description, status, priority, conditions, action, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    status = EXCLUDED.status,
    priority = EXCLUDED.priority,
    conditions = EXCLUDED.conditions,
    action = EXCLUDED.action,
    updated_at = now()`

// Upsert はルールを追加または置き換える
func (r *RuleRepository) Upsert(ctx context.Context, rule *routing.Rule) error {
	conditions, err := marshalJSON(rule.Conditions)
	if err != nil {
		return errs.Persistence("postgres.RuleRepository.Upsert", err)
	}
	action, err := marshalJSON(rule.Action)
	if err != nil {
		return errs.Persistence("postgres.RuleRepository.Upsert", err)
	}

	if _, err := r.db.Exec(ctx, upsertRuleSQL,
		rule.ID, rule.Name, rule.Description, string(rule.Status), string(rule.Priority), conditions, action,
	); err != nil {
		return errs.Persistence("postgres.RuleRepository.Upsert", fmt.Errorf("failed to upsert rule %s: %w", rule.ID, err))
	}
	return nil
}

var _ routing.RuleRepository = (*RuleRepository)(nil)
