// Package redemption holds the redemption record and the evaluator's
// decision type.
package redemption

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Status is the lifecycle state of a redemption.
type Status string

const (
	// StatusPending is reserved for future asynchronous settlement
	// flows; the coordinator never persists pending placeholders.
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Redemption is one committed redemption of a campaign by a user.
type Redemption struct {
	types.Entity
	ID         id.RedemptionID `json:"id"`
	UserID     string          `json:"user_id"`
	TenantID   string          `json:"tenant_id"`
	CampaignID id.CampaignID   `json:"campaign_id"`
	Status     Status          `json:"status"`

	PointsUsed     decimal.Decimal `json:"points_used"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	OrderValue     decimal.Decimal `json:"order_value"`
	OrderID        string          `json:"order_id,omitempty"`

	FailureReason string         `json:"failure_reason,omitempty"`
	Metadata      types.Metadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the redemption.
func (r *Redemption) Clone() *Redemption {
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(types.Metadata, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Decision is the evaluator's verdict on a candidate redemption.
// Business-rule failures are reported here, never as errors; only
// infrastructure faults propagate as errors.
type Decision struct {
	Valid bool `json:"is_valid"`

	// Code is the stable machine-readable rejection code, empty when
	// the decision is valid.
	Code string `json:"code,omitempty"`

	// Reason is the human-readable explanation of the outcome.
	Reason string `json:"reason"`

	// DiscountAmount is the computed monetary effect, set when valid.
	DiscountAmount decimal.Decimal `json:"discount_amount"`

	// PointsRequired is the points cost of a reward-discount campaign.
	// It is reported even on an insufficient-points rejection so a
	// client can show the shortfall.
	PointsRequired int `json:"points_required,omitempty"`
}
