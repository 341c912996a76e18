// Package audithook bridges loyalty lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/plugin"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnPointsAccrued      = (*Extension)(nil)
	_ plugin.OnPointsDeducted     = (*Extension)(nil)
	_ plugin.OnRedemptionApplied  = (*Extension)(nil)
	_ plugin.OnRedemptionRejected = (*Extension)(nil)
	_ plugin.OnUsageLimitReached  = (*Extension)(nil)
	_ plugin.OnCampaignCreated    = (*Extension)(nil)
	_ plugin.OnCampaignUpdated    = (*Extension)(nil)
	_ plugin.OnCampaignDeleted    = (*Extension)(nil)
	_ plugin.OnRuleCreated        = (*Extension)(nil)
	_ plugin.OnRuleUpdated        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	EventID    string         `json:"event_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges loyalty lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Points hooks
// ──────────────────────────────────────────────────

// OnPointsAccrued implements plugin.OnPointsAccrued.
func (e *Extension) OnPointsAccrued(ctx context.Context, entry *transaction.Entry, balance *account.Balance) error {
	return e.record(ctx, ActionPointsAccrued, SeverityInfo, OutcomeSuccess,
		ResourceBalance, entry.ID.String(), CategoryPoints, nil,
		"user_id", entry.UserID,
		"tenant_id", entry.TenantID,
		"amount", entry.Amount.String(),
		"balance_after", balance.Balance.String(),
	)
}

// OnPointsDeducted implements plugin.OnPointsDeducted.
func (e *Extension) OnPointsDeducted(ctx context.Context, entry *transaction.Entry, balance *account.Balance) error {
	return e.record(ctx, ActionPointsDeducted, SeverityInfo, OutcomeSuccess,
		ResourceBalance, entry.ID.String(), CategoryPoints, nil,
		"user_id", entry.UserID,
		"tenant_id", entry.TenantID,
		"amount", entry.Amount.String(),
		"balance_after", balance.Balance.String(),
	)
}

// ──────────────────────────────────────────────────
// Redemption hooks
// ──────────────────────────────────────────────────

// OnRedemptionApplied implements plugin.OnRedemptionApplied.
func (e *Extension) OnRedemptionApplied(ctx context.Context, r *redemption.Redemption) error {
	return e.record(ctx, ActionRedemptionApplied, SeverityInfo, OutcomeSuccess,
		ResourceRedemption, r.ID.String(), CategoryRedemption, nil,
		"user_id", r.UserID,
		"tenant_id", r.TenantID,
		"campaign_id", r.CampaignID.String(),
		"discount_amount", r.DiscountAmount.String(),
		"points_used", r.PointsUsed.String(),
	)
}

// OnRedemptionRejected implements plugin.OnRedemptionRejected.
func (e *Extension) OnRedemptionRejected(ctx context.Context, userID, tenantID string, d *redemption.Decision) error {
	return e.record(ctx, ActionRedemptionRejected, SeverityWarning, OutcomeFailure,
		ResourceRedemption, "", CategoryRedemption, nil,
		"user_id", userID,
		"tenant_id", tenantID,
		"code", d.Code,
		"reason", d.Reason,
	)
}

// OnUsageLimitReached implements plugin.OnUsageLimitReached.
func (e *Extension) OnUsageLimitReached(ctx context.Context, c *campaign.Campaign) error {
	return e.record(ctx, ActionUsageLimitReached, SeverityWarning, OutcomeSuccess,
		ResourceCampaign, c.ID.String(), CategoryRedemption, nil,
		"tenant_id", c.TenantID,
		"global_usage_limit", c.GlobalUsageLimit,
	)
}

// ──────────────────────────────────────────────────
// Campaign lifecycle hooks
// ──────────────────────────────────────────────────

// OnCampaignCreated implements plugin.OnCampaignCreated.
func (e *Extension) OnCampaignCreated(ctx context.Context, c *campaign.Campaign) error {
	return e.record(ctx, ActionCampaignCreated, SeverityInfo, OutcomeSuccess,
		ResourceCampaign, c.ID.String(), CategoryCatalog, nil,
		"tenant_id", c.TenantID,
		"type", string(c.Type),
	)
}

// OnCampaignUpdated implements plugin.OnCampaignUpdated.
func (e *Extension) OnCampaignUpdated(ctx context.Context, _, updated *campaign.Campaign) error {
	return e.record(ctx, ActionCampaignUpdated, SeverityInfo, OutcomeSuccess,
		ResourceCampaign, updated.ID.String(), CategoryCatalog, nil,
		"tenant_id", updated.TenantID,
	)
}

// OnCampaignDeleted implements plugin.OnCampaignDeleted.
func (e *Extension) OnCampaignDeleted(ctx context.Context, campaignID string) error {
	return e.record(ctx, ActionCampaignDeleted, SeverityWarning, OutcomeSuccess,
		ResourceCampaign, campaignID, CategoryCatalog, nil,
		"campaign_id", campaignID,
	)
}

// ──────────────────────────────────────────────────
// Rule lifecycle hooks
// ──────────────────────────────────────────────────

// OnRuleCreated implements plugin.OnRuleCreated.
func (e *Extension) OnRuleCreated(ctx context.Context, r *rule.Rule) error {
	return e.record(ctx, ActionRuleCreated, SeverityInfo, OutcomeSuccess,
		ResourceRule, r.ID.String(), CategoryCatalog, nil,
		"tenant_id", r.TenantID,
		"kind", string(r.Kind),
	)
}

// OnRuleUpdated implements plugin.OnRuleUpdated.
func (e *Extension) OnRuleUpdated(ctx context.Context, _, updated *rule.Rule) error {
	return e.record(ctx, ActionRuleUpdated, SeverityInfo, OutcomeSuccess,
		ResourceRule, updated.ID.String(), CategoryCatalog, nil,
		"tenant_id", updated.TenantID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		EventID:    uuid.NewString(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
