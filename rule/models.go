// Package rule holds the accrual rule model: tenant-scoped configuration
// for converting order events into earned points.
package rule

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Kind selects how a rule contributes points.
type Kind string

const (
	// KindPerCurrency earns orderValue × PointsPerCurrency.
	KindPerCurrency Kind = "points_per_currency"
	// KindPerPurchase earns a flat PointsPerPurchase per order.
	KindPerPurchase Kind = "points_per_purchase"
	// KindCustom delegates entirely to the administration collaborator's
	// own logic; the accrual engine treats it as contributing zero.
	KindCustom Kind = "custom"
)

// Rule is one accrual rule. Multiple active rules for a tenant are
// cumulative: a single order event sums contributions across all of them.
type Rule struct {
	types.Entity
	ID          id.RuleID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        Kind      `json:"kind"`
	IsActive    bool      `json:"is_active"`

	// Points per currency unit spent (e.g. 1 point per $1).
	PointsPerCurrency *decimal.Decimal `json:"points_per_currency,omitempty"`

	// Flat points per purchase.
	PointsPerPurchase *int `json:"points_per_purchase,omitempty"`

	// Points to currency conversion rate, read by redemption tooling.
	PointsToCurrencyRate *decimal.Decimal `json:"points_to_currency_rate,omitempty"`

	// UseCustomLogic marks the rule as externally computed.
	UseCustomLogic bool `json:"use_custom_logic"`

	// PointsExpiryDays, when set, stamps newly accrued points with an
	// expiry of now + this many days.
	PointsExpiryDays *int `json:"points_expiry_days,omitempty"`

	Metadata types.Metadata `json:"metadata,omitempty"`
}

// Configured reports whether the rule carries at least one accrual
// configuration. Unconfigured rules are rejected at create/update time.
func (r *Rule) Configured() bool {
	if r.PointsPerCurrency != nil && r.PointsPerCurrency.IsPositive() {
		return true
	}
	if r.PointsPerPurchase != nil && *r.PointsPerPurchase > 0 {
		return true
	}
	if r.PointsToCurrencyRate != nil && r.PointsToCurrencyRate.IsPositive() {
		return true
	}
	return r.UseCustomLogic
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	out := *r
	if r.PointsPerCurrency != nil {
		v := *r.PointsPerCurrency
		out.PointsPerCurrency = &v
	}
	if r.PointsPerPurchase != nil {
		v := *r.PointsPerPurchase
		out.PointsPerPurchase = &v
	}
	if r.PointsToCurrencyRate != nil {
		v := *r.PointsToCurrencyRate
		out.PointsToCurrencyRate = &v
	}
	if r.PointsExpiryDays != nil {
		v := *r.PointsExpiryDays
		out.PointsExpiryDays = &v
	}
	if r.Metadata != nil {
		out.Metadata = make(types.Metadata, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Update is the explicit field-level patch for a rule. Nil fields are
// left untouched; there is no implicit struct merging.
type Update struct {
	Name                 *string          `json:"name,omitempty"`
	Description          *string          `json:"description,omitempty"`
	IsActive             *bool            `json:"is_active,omitempty"`
	PointsPerCurrency    *decimal.Decimal `json:"points_per_currency,omitempty"`
	PointsPerPurchase    *int             `json:"points_per_purchase,omitempty"`
	PointsToCurrencyRate *decimal.Decimal `json:"points_to_currency_rate,omitempty"`
	UseCustomLogic       *bool            `json:"use_custom_logic,omitempty"`
	PointsExpiryDays     *int             `json:"points_expiry_days,omitempty"`
	Metadata             types.Metadata   `json:"metadata,omitempty"`
}

// TouchesConfig reports whether the patch changes any accrual
// configuration and therefore requires re-validation.
func (u Update) TouchesConfig() bool {
	return u.PointsPerCurrency != nil ||
		u.PointsPerPurchase != nil ||
		u.PointsToCurrencyRate != nil ||
		u.UseCustomLogic != nil
}

// ApplyTo copies the set fields onto the rule.
func (u Update) ApplyTo(r *Rule) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.IsActive != nil {
		r.IsActive = *u.IsActive
	}
	if u.PointsPerCurrency != nil {
		v := *u.PointsPerCurrency
		r.PointsPerCurrency = &v
	}
	if u.PointsPerPurchase != nil {
		v := *u.PointsPerPurchase
		r.PointsPerPurchase = &v
	}
	if u.PointsToCurrencyRate != nil {
		v := *u.PointsToCurrencyRate
		r.PointsToCurrencyRate = &v
	}
	if u.UseCustomLogic != nil {
		r.UseCustomLogic = *u.UseCustomLogic
	}
	if u.PointsExpiryDays != nil {
		v := *u.PointsExpiryDays
		r.PointsExpiryDays = &v
	}
	if u.Metadata != nil {
		r.Metadata = u.Metadata
	}
}
