package loyalty

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("loyalty: not found")
	ErrInvalidInput = errors.New("loyalty: invalid input")

	// Accrual errors
	ErrNoActiveRules       = errors.New("loyalty: no active accrual rules for tenant")
	ErrRuleNotFound        = errors.New("loyalty: accrual rule not found")
	ErrRuleNotConfigured   = errors.New("loyalty: rule requires at least one accrual configuration")
	ErrInsufficientBalance = errors.New("loyalty: insufficient points balance")

	// Campaign errors
	ErrCampaignNotFound   = errors.New("loyalty: campaign not found")
	ErrCampaignInactive   = errors.New("loyalty: campaign is not active")
	ErrInvalidDateRange   = errors.New("loyalty: start date must be before end date")
	ErrGlobalLimitReached = errors.New("loyalty: campaign global usage limit reached")
	ErrUserLimitReached   = errors.New("loyalty: campaign per-user usage limit reached")
	ErrCooldownActive     = errors.New("loyalty: cooldown period active")
	ErrBelowMinOrderValue = errors.New("loyalty: order value below campaign minimum")
	ErrInsufficientPoints = errors.New("loyalty: insufficient points for redemption")

	// Redemption errors
	ErrRedemptionInvalid  = errors.New("loyalty: redemption is not valid")
	ErrRedemptionNotFound = errors.New("loyalty: redemption not found")

	// Store errors
	ErrConflict         = errors.New("loyalty: concurrent update conflict")
	ErrStoreUnavailable = errors.New("loyalty: store unavailable")
	ErrTxClosed         = errors.New("loyalty: transaction already finished")
)

// Stable machine-readable error codes, suitable for a response envelope.
const (
	CodeInvalidInput        = "invalid_input"
	CodeNotFound            = "not_found"
	CodeNoActiveRules       = "no_active_rules"
	CodeInsufficientBalance = "insufficient_balance"
	CodeCampaignNotFound    = "campaign_not_found"
	CodeCampaignInactive    = "campaign_inactive"
	CodeGlobalLimitReached  = "global_limit_reached"
	CodeUserLimitReached    = "user_limit_reached"
	CodeCooldownActive      = "cooldown_active"
	CodeBelowMinOrderValue  = "below_min_order_value"
	CodeInsufficientPoints  = "insufficient_points"
	CodeRedemptionInvalid   = "redemption_invalid"
	CodeConflict            = "conflict"
	CodeStoreUnavailable    = "store_unavailable"
	CodeInternal            = "internal"
)

// CodeOf maps an error to its stable code. Unknown errors map to
// CodeInternal so infrastructure details never leak to callers.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidDateRange), errors.Is(err, ErrRuleNotConfigured):
		return CodeInvalidInput
	case errors.Is(err, ErrNoActiveRules):
		return CodeNoActiveRules
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrCampaignNotFound):
		return CodeCampaignNotFound
	case errors.Is(err, ErrCampaignInactive):
		return CodeCampaignInactive
	case errors.Is(err, ErrGlobalLimitReached):
		return CodeGlobalLimitReached
	case errors.Is(err, ErrUserLimitReached):
		return CodeUserLimitReached
	case errors.Is(err, ErrCooldownActive):
		return CodeCooldownActive
	case errors.Is(err, ErrBelowMinOrderValue):
		return CodeBelowMinOrderValue
	case errors.Is(err, ErrInsufficientPoints):
		return CodeInsufficientPoints
	case errors.Is(err, ErrRedemptionInvalid):
		return CodeRedemptionInvalid
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRuleNotFound), errors.Is(err, ErrRedemptionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}

// ErrorPayload is the error half of the {success, data | error} response
// envelope callers serialize engine failures into.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PayloadOf builds the envelope payload for an error.
func PayloadOf(err error) ErrorPayload {
	if err == nil {
		return ErrorPayload{}
	}
	return ErrorPayload{Code: CodeOf(err), Message: err.Error()}
}

// ValidationError represents a validation failure with details.
// Validation failures are rejected before any store access.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("loyalty: validation failed for %s: %s", e.Field, e.Message)
}

// Is makes ValidationError match ErrInvalidInput in errors.Is checks.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IsNotFound returns true if the error identifies a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrRedemptionNotFound)
}

// IsRejection returns true if the error is a business-rule rejection:
// terminal for the request, never retried automatically.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNoActiveRules) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrCampaignInactive) ||
		errors.Is(err, ErrGlobalLimitReached) ||
		errors.Is(err, ErrUserLimitReached) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrBelowMinOrderValue) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrRedemptionInvalid)
}

// IsRetryable returns true if the error is infrastructure-level contention
// and the caller may retry the request with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStoreUnavailable)
}
