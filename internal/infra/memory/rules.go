package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jinford/docroute/internal/core/routing"
)

// RuleRepository はルーティングルールを保持する
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*routing.Rule
	now   func() time.Time
}

// NewRuleRepository は新しい RuleRepository を作成する
func NewRuleRepository(rules ...*routing.Rule) *RuleRepository {
	r := &RuleRepository{rules: make(map[string]*routing.Rule), now: time.Now}
	for _, rule := range rules {
		c := *rule
		r.rules[rule.ID] = &c
	}
	return r
}

// ListActive は有効なルールを ID 順に返す
func (r *RuleRepository) ListActive(ctx context.Context) ([]*routing.Rule, error) {
	return r.list(func(rule *routing.Rule) bool { return rule.Status == routing.RuleActive }), nil
}

// List は全ルールを ID 順に返す
func (r *RuleRepository) List(ctx context.Context) ([]*routing.Rule, error) {
	return r.list(func(*routing.Rule) bool { return true }), nil
}

func (r *RuleRepository) list(keep func(*routing.Rule) bool) []*routing.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*routing.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if keep(rule) {
			c := *rule
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upsert はルールを追加または置き換える
func (r *RuleRepository) Upsert(ctx context.Context, rule *routing.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *rule
	now := r.now()
	if existing, ok := r.rules[rule.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.rules[rule.ID] = &c
	return nil
}

var _ routing.RuleRepository = (*RuleRepository)(nil)
