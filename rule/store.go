package rule

import (
	"context"

	"github.com/xraph/loyalty/id"
)

// Store is the accrual rule contract a storage backend must provide.
// Rules are owned by the administration surface; the accrual engine
// only reads them.
type Store interface {
	Create(ctx context.Context, r *Rule) error
	Get(ctx context.Context, ruleID id.RuleID, tenantID string) (*Rule, error)
	List(ctx context.Context, tenantID string) ([]*Rule, error)
	ListActive(ctx context.Context, tenantID string) ([]*Rule, error)
	Update(ctx context.Context, ruleID id.RuleID, tenantID string, upd Update) (*Rule, error)
	Delete(ctx context.Context, ruleID id.RuleID, tenantID string) error
}
