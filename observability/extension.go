// Package observability provides a metrics extension for the loyalty
// engine that records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/plugin"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnPointsAccrued      = (*MetricsExtension)(nil)
	_ plugin.OnPointsDeducted     = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionApplied  = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionRejected = (*MetricsExtension)(nil)
	_ plugin.OnUsageLimitReached  = (*MetricsExtension)(nil)
	_ plugin.OnCampaignCreated    = (*MetricsExtension)(nil)
	_ plugin.OnCampaignUpdated    = (*MetricsExtension)(nil)
	_ plugin.OnCampaignDeleted    = (*MetricsExtension)(nil)
	_ plugin.OnRuleCreated        = (*MetricsExtension)(nil)
	_ plugin.OnRuleUpdated        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track loyalty metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Points metrics
	PointsAccrued  Counter
	PointsDeducted Counter
	AccruedAmount  Histogram
	DeductedAmount Histogram

	// Redemption metrics
	RedemptionsApplied  Counter
	RedemptionsRejected Counter
	UsageLimitsReached  Counter
	DiscountAmount      Histogram

	// Catalog metrics
	CampaignsCreated Counter
	CampaignsUpdated Counter
	CampaignsDeleted Counter
	RulesCreated     Counter
	RulesUpdated     Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Points metrics
		PointsAccrued:  factory.Counter("loyalty.points.accrued"),
		PointsDeducted: factory.Counter("loyalty.points.deducted"),
		AccruedAmount:  factory.Histogram("loyalty.points.accrued_amount"),
		DeductedAmount: factory.Histogram("loyalty.points.deducted_amount"),

		// Redemption metrics
		RedemptionsApplied:  factory.Counter("loyalty.redemption.applied"),
		RedemptionsRejected: factory.Counter("loyalty.redemption.rejected"),
		UsageLimitsReached:  factory.Counter("loyalty.campaign.usage_limit_reached"),
		DiscountAmount:      factory.Histogram("loyalty.redemption.discount_amount"),

		// Catalog metrics
		CampaignsCreated: factory.Counter("loyalty.campaign.created"),
		CampaignsUpdated: factory.Counter("loyalty.campaign.updated"),
		CampaignsDeleted: factory.Counter("loyalty.campaign.deleted"),
		RulesCreated:     factory.Counter("loyalty.rule.created"),
		RulesUpdated:     factory.Counter("loyalty.rule.updated"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Points hooks
// ──────────────────────────────────────────────────

// OnPointsAccrued implements plugin.OnPointsAccrued.
func (m *MetricsExtension) OnPointsAccrued(_ context.Context, entry *transaction.Entry, _ *account.Balance) error {
	m.PointsAccrued.Inc()
	m.AccruedAmount.Observe(entry.Amount.InexactFloat64())
	return nil
}

// OnPointsDeducted implements plugin.OnPointsDeducted.
func (m *MetricsExtension) OnPointsDeducted(_ context.Context, entry *transaction.Entry, _ *account.Balance) error {
	m.PointsDeducted.Inc()
	m.DeductedAmount.Observe(entry.Amount.Abs().InexactFloat64())
	return nil
}

// ──────────────────────────────────────────────────
// Redemption hooks
// ──────────────────────────────────────────────────

// OnRedemptionApplied implements plugin.OnRedemptionApplied.
func (m *MetricsExtension) OnRedemptionApplied(_ context.Context, r *redemption.Redemption) error {
	m.RedemptionsApplied.Inc()
	m.DiscountAmount.Observe(r.DiscountAmount.InexactFloat64())
	return nil
}

// OnRedemptionRejected implements plugin.OnRedemptionRejected.
func (m *MetricsExtension) OnRedemptionRejected(_ context.Context, _, _ string, _ *redemption.Decision) error {
	m.RedemptionsRejected.Inc()
	return nil
}

// OnUsageLimitReached implements plugin.OnUsageLimitReached.
func (m *MetricsExtension) OnUsageLimitReached(_ context.Context, _ *campaign.Campaign) error {
	m.UsageLimitsReached.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnCampaignCreated implements plugin.OnCampaignCreated.
func (m *MetricsExtension) OnCampaignCreated(_ context.Context, _ *campaign.Campaign) error {
	m.CampaignsCreated.Inc()
	return nil
}

// OnCampaignUpdated implements plugin.OnCampaignUpdated.
func (m *MetricsExtension) OnCampaignUpdated(_ context.Context, _, _ *campaign.Campaign) error {
	m.CampaignsUpdated.Inc()
	return nil
}

// OnCampaignDeleted implements plugin.OnCampaignDeleted.
func (m *MetricsExtension) OnCampaignDeleted(_ context.Context, _ string) error {
	m.CampaignsDeleted.Inc()
	return nil
}

// OnRuleCreated implements plugin.OnRuleCreated.
func (m *MetricsExtension) OnRuleCreated(_ context.Context, _ *rule.Rule) error {
	m.RulesCreated.Inc()
	return nil
}

// OnRuleUpdated implements plugin.OnRuleUpdated.
func (m *MetricsExtension) OnRuleUpdated(_ context.Context, _, _ *rule.Rule) error {
	m.RulesUpdated.Inc()
	return nil
}
