package campaign

import (
	"context"

	"github.com/xraph/loyalty/id"
)

// Store is the campaign contract a storage backend must provide.
// CRUD belongs to the administration surface; the redemption
// coordinator additionally needs the for-update lock and the usage
// increment, which live on the unified transaction interface because
// they only make sense inside an atomic unit.
type Store interface {
	Create(ctx context.Context, c *Campaign) error
	Get(ctx context.Context, campaignID id.CampaignID, tenantID string) (*Campaign, error)
	List(ctx context.Context, tenantID string) ([]*Campaign, error)
	Update(ctx context.Context, campaignID id.CampaignID, tenantID string, upd Update) (*Campaign, error)
	Delete(ctx context.Context, campaignID id.CampaignID, tenantID string) error
}
