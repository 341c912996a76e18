// Package account holds the points balance model: one row per
// (userID, tenantID) pair, the cached sum of that pair's ledger entries.
package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Balance is the current points balance for one (user, tenant) pair.
// Created lazily on first accrual, never deleted, only mutated.
type Balance struct {
	types.Entity
	ID        id.AccountID    `json:"id"`
	UserID    string          `json:"user_id"`
	TenantID  string          `json:"tenant_id"`
	Balance   decimal.Decimal `json:"balance"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Zero returns the balance value reported for a pair that never accrued.
// Absence is not a fault, so lookups return this instead of an error.
func Zero(userID, tenantID string) *Balance {
	return &Balance{
		UserID:   userID,
		TenantID: tenantID,
		Balance:  decimal.Zero,
	}
}

// Key returns the canonical lock/storage key for a (user, tenant) pair.
func Key(userID, tenantID string) string {
	return tenantID + "/" + userID
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate committed state.
func (b *Balance) Clone() *Balance {
	out := *b
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}
