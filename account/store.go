package account

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the balance contract a storage backend must provide.
// The unified store interface re-declares these methods; this interface
// documents the per-entity contract.
type Store interface {
	// Get returns the balance for a pair, or the Zero balance when the
	// pair never accrued. Absence is not an error.
	Get(ctx context.Context, userID, tenantID string) (*Balance, error)

	// ApplyDelta mutates the balance by a signed amount inside the
	// surrounding atomic unit. A negative delta that would drive the
	// balance below zero fails with the insufficient-balance error; the
	// check and the write are indivisible with respect to concurrent
	// callers on the same pair. A non-nil expiresAt replaces the
	// account's expiry.
	ApplyDelta(ctx context.Context, userID, tenantID string, delta decimal.Decimal, expiresAt *time.Time) (*Balance, error)
}
