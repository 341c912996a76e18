package redemption

import (
	"context"

	"github.com/xraph/loyalty/id"
)

// HistoryLimit caps how many records a single history read returns.
const HistoryLimit = 100

// Store is the redemption record contract a storage backend must
// provide. Creation only happens inside the coordinator's atomic unit.
type Store interface {
	Create(ctx context.Context, r *Redemption) error

	// CountCompleted returns how many completed redemptions the user
	// has on the campaign, for per-user limit checks.
	CountCompleted(ctx context.Context, campaignID id.CampaignID, userID string) (int, error)

	// LatestCompleted returns the user's most recent completed
	// redemption on the campaign, or nil when there is none, for
	// cooldown checks.
	LatestCompleted(ctx context.Context, campaignID id.CampaignID, userID string) (*Redemption, error)

	// List returns the user's redemptions ordered newest-first, at
	// most limit rows (clamped to HistoryLimit).
	List(ctx context.Context, userID, tenantID string, limit int) ([]*Redemption, error)
}

// ClampLimit normalizes a caller-supplied history limit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > HistoryLimit {
		return HistoryLimit
	}
	return limit
}
