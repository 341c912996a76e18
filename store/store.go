// Package store defines the unified storage contract for the Loyalty
// engine.
//
// The engine never holds ambient handles to storage: every mutation runs
// inside an explicit atomic unit obtained from RunInTx, and the Tx handed
// to the callback is the only way to write. Row locks (or an equivalent
// conditional-update primitive) are scoped to the specific balance or
// campaign touched, so operations on different (user, tenant) pairs never
// block each other.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/transaction"
)

// Reader is the read-only view of the store. Both Store and Tx provide
// it, so the campaign evaluator can run identically outside an atomic
// unit (validation reads) and inside one (the re-check under lock).
type Reader interface {
	// GetBalance returns the balance for a pair, or a zero balance when
	// the pair never accrued. Absence is not an error.
	GetBalance(ctx context.Context, userID, tenantID string) (*account.Balance, error)

	// ListTransactions returns ledger entries newest-first, at most
	// limit rows (limit <= 0 or > transaction.HistoryLimit means the cap).
	ListTransactions(ctx context.Context, userID, tenantID string, limit int) ([]*transaction.Entry, error)

	// ListActiveRules returns the tenant's active accrual rules.
	ListActiveRules(ctx context.Context, tenantID string) ([]*rule.Rule, error)

	// GetRule returns one rule scoped to the tenant.
	GetRule(ctx context.Context, ruleID id.RuleID, tenantID string) (*rule.Rule, error)

	// ListRules returns all of the tenant's rules, newest-first.
	ListRules(ctx context.Context, tenantID string) ([]*rule.Rule, error)

	// GetCampaign returns one campaign scoped to the tenant.
	GetCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error)

	// ListCampaigns returns all of the tenant's campaigns, newest-first.
	ListCampaigns(ctx context.Context, tenantID string) ([]*campaign.Campaign, error)

	// CountCompletedRedemptions returns the user's completed-redemption
	// count on a campaign.
	CountCompletedRedemptions(ctx context.Context, campaignID id.CampaignID, userID string) (int, error)

	// LatestCompletedRedemption returns the user's most recent completed
	// redemption on a campaign, or nil when there is none.
	LatestCompletedRedemption(ctx context.Context, campaignID id.CampaignID, userID string) (*redemption.Redemption, error)

	// ListRedemptions returns the user's redemptions newest-first, at
	// most limit rows (limit <= 0 or > redemption.HistoryLimit means the cap).
	ListRedemptions(ctx context.Context, userID, tenantID string, limit int) ([]*redemption.Redemption, error)
}

// Tx is one atomic unit. Every method either observes or stages state
// that commits or rolls back as a whole; locks taken by ApplyBalanceDelta
// and GetCampaignForUpdate are held until the unit finishes and are
// released on every exit path.
type Tx interface {
	Reader

	// ApplyBalanceDelta locks the balance row for the pair (creating it
	// lazily on a positive delta), applies the signed amount, and
	// returns the updated balance. A negative delta that would drive
	// the balance below zero fails with the insufficient-balance error
	// without writing. A non-nil expiresAt replaces the account expiry.
	ApplyBalanceDelta(ctx context.Context, userID, tenantID string, delta decimal.Decimal, expiresAt *time.Time) (*account.Balance, error)

	// AppendTransaction stages a write-once ledger entry.
	AppendTransaction(ctx context.Context, e *transaction.Entry) error

	// GetCampaignForUpdate locks the campaign row and returns its
	// current state. Subsequent reads of the campaign inside this unit
	// observe that state.
	GetCampaignForUpdate(ctx context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error)

	// IncrementCampaignUsage stages a +1 on the campaign's usage
	// counter. The campaign must already be locked by this unit.
	IncrementCampaignUsage(ctx context.Context, campaignID id.CampaignID) error

	// CreateRedemption stages a new redemption record.
	CreateRedemption(ctx context.Context, r *redemption.Redemption) error
}

// Store is the unified storage interface for all Loyalty entities.
type Store interface {
	Reader

	// RunInTx executes fn inside one atomic unit. The unit commits iff
	// fn returns nil; any error (including context cancellation) rolls
	// every staged write back. Locks are released either way.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// Administration writes. These are owned by the external
	// rule/campaign administration collaborator, not the engine core,
	// and do not need the multi-entity atomic unit.
	CreateRule(ctx context.Context, r *rule.Rule) error
	UpdateRule(ctx context.Context, ruleID id.RuleID, tenantID string, upd rule.Update) (*rule.Rule, error)
	DeleteRule(ctx context.Context, ruleID id.RuleID, tenantID string) error
	CreateCampaign(ctx context.Context, c *campaign.Campaign) error
	UpdateCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string, upd campaign.Update) (*campaign.Campaign, error)
	DeleteCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
