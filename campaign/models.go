// Package campaign holds the redemption campaign model: time-boxed,
// rule-driven discount or reward offers with usage controls.
package campaign

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Type classifies how a campaign's effect is computed.
type Type string

const (
	// TypeOrderDiscount discounts the order value directly.
	TypeOrderDiscount Type = "order_discount"
	// TypeRewardDiscount grants a flat discount in exchange for points.
	TypeRewardDiscount Type = "reward_discount"
	// TypeLoyalty is reserved for accrual-side campaigns.
	TypeLoyalty Type = "loyalty"
)

// DiscountType selects the order-discount formula.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Status is the administrative state of a campaign.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Campaign is a tenant-scoped redemption offer. CurrentUsageCount only
// increases, only on a successfully committed redemption, and never
// exceeds GlobalUsageLimit when that is set.
type Campaign struct {
	types.Entity
	ID          id.CampaignID `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        Type          `json:"type"`
	Status      Status        `json:"status"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`

	// Order-discount configuration.
	MinOrderValue  *decimal.Decimal `json:"min_order_value,omitempty"`
	DiscountType   DiscountType     `json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	MaxDiscountCap *decimal.Decimal `json:"max_discount_cap,omitempty"`

	// Reward-discount configuration.
	PointsRequired int `json:"points_required,omitempty"`

	// Usage controls. Zero means "not set".
	UsageLimitPerUser int `json:"usage_limit_per_user,omitempty"`
	GlobalUsageLimit  int `json:"global_usage_limit,omitempty"`
	CurrentUsageCount int `json:"current_usage_count"`

	// IsStackable is stored and surfaced, never enforced here:
	// cross-campaign stacking policy is an external concern.
	IsStackable bool `json:"is_stackable"`

	// CooldownHours is the minimum gap between a user's successive
	// completed redemptions on this campaign. Zero means no cooldown.
	CooldownHours int `json:"cooldown_hours,omitempty"`

	Metadata types.Metadata `json:"metadata,omitempty"`
}

// InWindow reports whether now lies inside [StartDate, EndDate].
func (c *Campaign) InWindow(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// GlobalLimitReached reports whether the global usage cap is exhausted.
func (c *Campaign) GlobalLimitReached() bool {
	return c.GlobalUsageLimit > 0 && c.CurrentUsageCount >= c.GlobalUsageLimit
}

// Redeemable reports whether redemptions can still be admitted at the
// given instant, ignoring per-user state.
func (c *Campaign) Redeemable(now time.Time) bool {
	return c.Status == StatusActive && c.InWindow(now) && !c.GlobalLimitReached()
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	out := *c
	if c.MinOrderValue != nil {
		v := *c.MinOrderValue
		out.MinOrderValue = &v
	}
	if c.MaxDiscountCap != nil {
		v := *c.MaxDiscountCap
		out.MaxDiscountCap = &v
	}
	if c.Metadata != nil {
		out.Metadata = make(types.Metadata, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Update is the explicit field-level patch for a campaign. Nil fields
// are left untouched; there is no implicit struct merging. Usage
// counters are deliberately absent: only committed redemptions move
// CurrentUsageCount.
type Update struct {
	Name              *string          `json:"name,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Status            *Status          `json:"status,omitempty"`
	StartDate         *time.Time       `json:"start_date,omitempty"`
	EndDate           *time.Time       `json:"end_date,omitempty"`
	MinOrderValue     *decimal.Decimal `json:"min_order_value,omitempty"`
	DiscountType      *DiscountType    `json:"discount_type,omitempty"`
	DiscountValue     *decimal.Decimal `json:"discount_value,omitempty"`
	MaxDiscountCap    *decimal.Decimal `json:"max_discount_cap,omitempty"`
	PointsRequired    *int             `json:"points_required,omitempty"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user,omitempty"`
	GlobalUsageLimit  *int             `json:"global_usage_limit,omitempty"`
	IsStackable       *bool            `json:"is_stackable,omitempty"`
	CooldownHours     *int             `json:"cooldown_hours,omitempty"`
	Metadata          types.Metadata   `json:"metadata,omitempty"`
}

// ApplyTo copies the set fields onto the campaign.
func (u Update) ApplyTo(c *Campaign) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.StartDate != nil {
		c.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		c.EndDate = *u.EndDate
	}
	if u.MinOrderValue != nil {
		v := *u.MinOrderValue
		c.MinOrderValue = &v
	}
	if u.DiscountType != nil {
		c.DiscountType = *u.DiscountType
	}
	if u.DiscountValue != nil {
		c.DiscountValue = *u.DiscountValue
	}
	if u.MaxDiscountCap != nil {
		v := *u.MaxDiscountCap
		c.MaxDiscountCap = &v
	}
	if u.PointsRequired != nil {
		c.PointsRequired = *u.PointsRequired
	}
	if u.UsageLimitPerUser != nil {
		c.UsageLimitPerUser = *u.UsageLimitPerUser
	}
	if u.GlobalUsageLimit != nil {
		c.GlobalUsageLimit = *u.GlobalUsageLimit
	}
	if u.IsStackable != nil {
		c.IsStackable = *u.IsStackable
	}
	if u.CooldownHours != nil {
		c.CooldownHours = *u.CooldownHours
	}
	if u.Metadata != nil {
		c.Metadata = u.Metadata
	}
}

// MergedWindow returns the [start, end) pair the campaign would have
// after applying the patch, for date validation before persisting.
func (u Update) MergedWindow(c *Campaign) (time.Time, time.Time) {
	start, end := c.StartDate, c.EndDate
	if u.StartDate != nil {
		start = *u.StartDate
	}
	if u.EndDate != nil {
		end = *u.EndDate
	}
	return start, end
}
