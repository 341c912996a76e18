package loyalty

import (
	"context"
	"fmt"

	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/types"
)

// ──────────────────────────────────────────────────
// Campaign administration
// ──────────────────────────────────────────────────

// CreateCampaign validates and persists a new campaign. The caller's
// tenant scoping is taken from the campaign itself; the ID and
// timestamps are assigned here.
func (e *Engine) CreateCampaign(ctx context.Context, c *campaign.Campaign) (*campaign.Campaign, error) {
	if err := validateCampaign(c); err != nil {
		return nil, err
	}

	if c.ID.IsNil() {
		c.ID = id.NewCampaignID()
	}
	c.Entity = types.EntityAt(e.now())
	if c.Status == "" {
		c.Status = campaign.StatusActive
	}
	c.CurrentUsageCount = 0

	if err := e.store.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}

	e.plugins.EmitCampaignCreated(ctx, c)
	e.logger.Info("campaign created",
		"campaign_id", c.ID.String(),
		"tenant_id", c.TenantID,
		"type", string(c.Type),
	)
	return c, nil
}

// GetCampaign returns one campaign scoped to the tenant.
func (e *Engine) GetCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	return e.store.GetCampaign(ctx, campaignID, tenantID)
}

// ListCampaigns returns all of the tenant's campaigns, newest first.
func (e *Engine) ListCampaigns(ctx context.Context, tenantID string) ([]*campaign.Campaign, error) {
	return e.store.ListCampaigns(ctx, tenantID)
}

// UpdateCampaign applies a field-level patch. The merged date window is
// re-validated so a patch can never leave an inverted window behind.
func (e *Engine) UpdateCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string, upd campaign.Update) (*campaign.Campaign, error) {
	old, err := e.store.GetCampaign(ctx, campaignID, tenantID)
	if err != nil {
		return nil, err
	}

	start, end := upd.MergedWindow(old)
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidDateRange, start, end)
	}

	updated, err := e.store.UpdateCampaign(ctx, campaignID, tenantID, upd)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitCampaignUpdated(ctx, old, updated)
	e.logger.Info("campaign updated",
		"campaign_id", campaignID.String(),
		"tenant_id", tenantID,
	)
	return updated, nil
}

// DeleteCampaign removes a campaign. Existing redemption records keep
// their campaign reference for audit purposes.
func (e *Engine) DeleteCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string) error {
	if err := e.store.DeleteCampaign(ctx, campaignID, tenantID); err != nil {
		return err
	}

	e.plugins.EmitCampaignDeleted(ctx, campaignID.String())
	e.logger.Info("campaign deleted",
		"campaign_id", campaignID.String(),
		"tenant_id", tenantID,
	)
	return nil
}

func validateCampaign(c *campaign.Campaign) error {
	if c.TenantID == "" {
		return ValidationError{Field: "tenantId", Message: "must not be empty"}
	}
	if c.Name == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}

	switch c.Type {
	case campaign.TypeOrderDiscount:
		switch c.DiscountType {
		case campaign.DiscountPercentage, campaign.DiscountFixed:
		default:
			return ValidationError{Field: "discountType", Message: "must be percentage or fixed"}
		}
		if c.DiscountValue.IsNegative() {
			return ValidationError{Field: "discountValue", Message: "must not be negative"}
		}
	case campaign.TypeRewardDiscount:
		if c.PointsRequired <= 0 {
			return ValidationError{Field: "pointsRequired", Message: "must be positive"}
		}
		if c.DiscountValue.IsNegative() {
			return ValidationError{Field: "discountValue", Message: "must not be negative"}
		}
	case campaign.TypeLoyalty:
	default:
		return ValidationError{Field: "type", Message: "unknown campaign type"}
	}

	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return ValidationError{Field: "startDate", Message: "start and end dates are required"}
	}
	if !c.StartDate.Before(c.EndDate) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidDateRange, c.StartDate, c.EndDate)
	}

	if c.UsageLimitPerUser < 0 {
		return ValidationError{Field: "usageLimitPerUser", Message: "must not be negative"}
	}
	if c.GlobalUsageLimit < 0 {
		return ValidationError{Field: "globalUsageLimit", Message: "must not be negative"}
	}
	if c.CooldownHours < 0 {
		return ValidationError{Field: "cooldownHours", Message: "must not be negative"}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Rule administration
// ──────────────────────────────────────────────────

// CreateRule validates and persists a new accrual rule.
func (e *Engine) CreateRule(ctx context.Context, r *rule.Rule) (*rule.Rule, error) {
	if err := validateRule(r); err != nil {
		return nil, err
	}

	if r.ID.IsNil() {
		r.ID = id.NewRuleID()
	}
	r.Entity = types.EntityAt(e.now())

	if err := e.store.CreateRule(ctx, r); err != nil {
		return nil, err
	}

	e.plugins.EmitRuleCreated(ctx, r)
	e.logger.Info("rule created",
		"rule_id", r.ID.String(),
		"tenant_id", r.TenantID,
		"kind", string(r.Kind),
	)
	return r, nil
}

// GetRule returns one rule scoped to the tenant.
func (e *Engine) GetRule(ctx context.Context, ruleID id.RuleID, tenantID string) (*rule.Rule, error) {
	return e.store.GetRule(ctx, ruleID, tenantID)
}

// ListRules returns all of the tenant's rules, newest first.
func (e *Engine) ListRules(ctx context.Context, tenantID string) ([]*rule.Rule, error) {
	return e.store.ListRules(ctx, tenantID)
}

// UpdateRule applies a field-level patch. When the patch touches
// accrual configuration, the patched rule must still be configured for
// its kind.
func (e *Engine) UpdateRule(ctx context.Context, ruleID id.RuleID, tenantID string, upd rule.Update) (*rule.Rule, error) {
	old, err := e.store.GetRule(ctx, ruleID, tenantID)
	if err != nil {
		return nil, err
	}

	if upd.TouchesConfig() {
		patched := old.Clone()
		upd.ApplyTo(patched)
		if !patched.Configured() {
			return nil, fmt.Errorf("%w: patched rule has no usable accrual configuration", ErrRuleNotConfigured)
		}
	}

	updated, err := e.store.UpdateRule(ctx, ruleID, tenantID, upd)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitRuleUpdated(ctx, old, updated)
	e.logger.Info("rule updated",
		"rule_id", ruleID.String(),
		"tenant_id", tenantID,
	)
	return updated, nil
}

// DeleteRule removes a rule. Ledger entries already written under the
// rule are unaffected.
func (e *Engine) DeleteRule(ctx context.Context, ruleID id.RuleID, tenantID string) error {
	if err := e.store.DeleteRule(ctx, ruleID, tenantID); err != nil {
		return err
	}

	e.logger.Info("rule deleted",
		"rule_id", ruleID.String(),
		"tenant_id", tenantID,
	)
	return nil
}

func validateRule(r *rule.Rule) error {
	if r.TenantID == "" {
		return ValidationError{Field: "tenantId", Message: "must not be empty"}
	}
	if r.Name == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}

	switch r.Kind {
	case rule.KindPerCurrency, rule.KindPerPurchase, rule.KindCustom:
	default:
		return ValidationError{Field: "kind", Message: "unknown rule kind"}
	}

	if !r.Configured() {
		return fmt.Errorf("%w: rule %q has no usable accrual configuration", ErrRuleNotConfigured, r.Name)
	}

	if r.PointsExpiryDays != nil && *r.PointsExpiryDays <= 0 {
		return ValidationError{Field: "pointsExpiryDays", Message: "must be positive when set"}
	}
	return nil
}
