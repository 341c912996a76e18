// Package plugin provides an extensible plugin system for the loyalty
// engine. Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Points hooks
// ──────────────────────────────────────────────────

// OnPointsAccrued is called after points are credited to a balance.
type OnPointsAccrued interface {
	Plugin
	OnPointsAccrued(ctx context.Context, entry *transaction.Entry, balance *account.Balance) error
}

// OnPointsDeducted is called after points are debited from a balance.
type OnPointsDeducted interface {
	Plugin
	OnPointsDeducted(ctx context.Context, entry *transaction.Entry, balance *account.Balance) error
}

// ──────────────────────────────────────────────────
// Redemption hooks
// ──────────────────────────────────────────────────

// OnRedemptionApplied is called after a redemption completes.
type OnRedemptionApplied interface {
	Plugin
	OnRedemptionApplied(ctx context.Context, r *redemption.Redemption) error
}

// OnRedemptionRejected is called when a redemption is rejected.
type OnRedemptionRejected interface {
	Plugin
	OnRedemptionRejected(ctx context.Context, userID, tenantID string, d *redemption.Decision) error
}

// OnUsageLimitReached is called when a campaign hits its global usage limit.
type OnUsageLimitReached interface {
	Plugin
	OnUsageLimitReached(ctx context.Context, c *campaign.Campaign) error
}

// ──────────────────────────────────────────────────
// Campaign lifecycle hooks
// ──────────────────────────────────────────────────

// OnCampaignCreated is called when a new campaign is created.
type OnCampaignCreated interface {
	Plugin
	OnCampaignCreated(ctx context.Context, c *campaign.Campaign) error
}

// OnCampaignUpdated is called when a campaign is updated.
type OnCampaignUpdated interface {
	Plugin
	OnCampaignUpdated(ctx context.Context, old, updated *campaign.Campaign) error
}

// OnCampaignDeleted is called when a campaign is deleted.
type OnCampaignDeleted interface {
	Plugin
	OnCampaignDeleted(ctx context.Context, campaignID string) error
}

// ──────────────────────────────────────────────────
// Rule lifecycle hooks
// ──────────────────────────────────────────────────

// OnRuleCreated is called when a new accrual rule is created.
type OnRuleCreated interface {
	Plugin
	OnRuleCreated(ctx context.Context, r *rule.Rule) error
}

// OnRuleUpdated is called when an accrual rule is updated.
type OnRuleUpdated interface {
	Plugin
	OnRuleUpdated(ctx context.Context, old, updated *rule.Rule) error
}

// ──────────────────────────────────────────────────
// Accrual strategies
// ──────────────────────────────────────────────────

// AccrualStrategy provides the earning logic for rules that opt into
// custom calculation. A rule selects its strategy by name through its
// metadata; rules with no matching strategy contribute nothing.
type AccrualStrategy interface {
	Plugin
	StrategyName() string
	Accrue(ctx context.Context, r *rule.Rule, orderValue decimal.Decimal) (decimal.Decimal, error)
}
