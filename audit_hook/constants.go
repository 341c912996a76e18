package audithook

// Action constants for audit events.
const (
	// Points actions
	ActionPointsAccrued  = "points.accrued"
	ActionPointsDeducted = "points.deducted"
	ActionPointsExpired  = "points.expired"

	// Redemption actions
	ActionRedemptionApplied  = "redemption.applied"
	ActionRedemptionRejected = "redemption.rejected"
	ActionUsageLimitReached  = "usage_limit.reached"

	// Campaign actions
	ActionCampaignCreated = "campaign.created"
	ActionCampaignUpdated = "campaign.updated"
	ActionCampaignDeleted = "campaign.deleted"

	// Rule actions
	ActionRuleCreated = "rule.created"
	ActionRuleUpdated = "rule.updated"
)

// Resource constants for audit events.
const (
	ResourceBalance    = "balance"
	ResourceRedemption = "redemption"
	ResourceCampaign   = "campaign"
	ResourceRule       = "rule"
)

// Category constants for audit events.
const (
	CategoryPoints     = "points"
	CategoryRedemption = "redemption"
	CategoryCatalog    = "catalog"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
