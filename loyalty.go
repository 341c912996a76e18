package loyalty

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/plugin"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

// Engine is the loyalty points and redemption engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// now is the engine clock; injectable for cooldown and expiry tests.
	now func() time.Time

	historyLimit int
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		historyLimit: transaction.HistoryLimit,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithHistoryLimit sets the default history page size. Values above the
// store cap are still clamped at read time.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("loyalty engine started",
		"history_limit", e.historyLimit,
		"plugins", e.plugins.Count(),
	)
	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Plugins exposes the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// ──────────────────────────────────────────────────
// Accrual
// ──────────────────────────────────────────────────

// AccrualInput describes one qualifying order event.
type AccrualInput struct {
	OrderValue  decimal.Decimal
	OrderID     string
	Description string
	Metadata    types.Metadata
}

// AccrualResult reports the outcome of an accrual.
type AccrualResult struct {
	PointsEarned decimal.Decimal    `json:"points_earned"`
	NewBalance   decimal.Decimal    `json:"new_balance"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
	Entry        *transaction.Entry `json:"transaction,omitempty"`
}

// Accrue converts an order event into earned points. All active rules
// for the tenant contribute cumulatively; the rounded total is credited
// and one earned entry appended, atomically.
func (e *Engine) Accrue(ctx context.Context, userID, tenantID string, in AccrualInput) (*AccrualResult, error) {
	if err := requireIdentity(userID, tenantID); err != nil {
		return nil, err
	}
	if !in.OrderValue.IsPositive() {
		return nil, ValidationError{Field: "orderValue", Message: "must be positive"}
	}

	var result *AccrualResult
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		rules, err := tx.ListActiveRules(ctx, tenantID)
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			return ErrNoActiveRules
		}

		total, err := e.accrualTotal(ctx, rules, in.OrderValue)
		if err != nil {
			return err
		}
		expiresAt := e.soonestExpiry(rules)

		if !total.IsPositive() {
			// Nothing earned; leave the balance and log untouched.
			current, err := tx.GetBalance(ctx, userID, tenantID)
			if err != nil {
				return err
			}
			result = &AccrualResult{PointsEarned: decimal.Zero, NewBalance: current.Balance}
			return nil
		}

		balance, err := tx.ApplyBalanceDelta(ctx, userID, tenantID, total, expiresAt)
		if err != nil {
			return err
		}

		entry := &transaction.Entry{
			Entity:       types.EntityAt(e.now()),
			ID:           id.NewTransactionID(),
			UserID:       userID,
			TenantID:     tenantID,
			Kind:         transaction.KindEarned,
			Amount:       total,
			BalanceAfter: balance.Balance,
			Description:  in.Description,
			ReferenceID:  in.OrderID,
			Metadata:     in.Metadata,
		}
		if err := tx.AppendTransaction(ctx, entry); err != nil {
			return err
		}

		result = &AccrualResult{
			PointsEarned: total,
			NewBalance:   balance.Balance,
			ExpiresAt:    balance.ExpiresAt,
			Entry:        entry,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Entry != nil {
		e.plugins.EmitPointsAccrued(ctx, result.Entry, &account.Balance{
			UserID:   userID,
			TenantID: tenantID,
			Balance:  result.NewBalance,
		})
		e.logger.Debug("points accrued",
			"user_id", userID,
			"tenant_id", tenantID,
			"points", result.PointsEarned.String(),
			"balance", result.NewBalance.String(),
		)
	}
	return result, nil
}

// accrualTotal sums the contribution of every active rule.
func (e *Engine) accrualTotal(ctx context.Context, rules []*rule.Rule, orderValue decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range rules {
		switch {
		case r.UseCustomLogic:
			earned, err := e.customAccrual(ctx, r, orderValue)
			if err != nil {
				return decimal.Zero, err
			}
			total = total.Add(earned)
		case r.Kind == rule.KindPerCurrency && r.PointsPerCurrency != nil:
			total = total.Add(orderValue.Mul(*r.PointsPerCurrency))
		case r.Kind == rule.KindPerPurchase && r.PointsPerPurchase != nil:
			total = total.Add(decimal.NewFromInt(int64(*r.PointsPerPurchase)))
		}
	}
	return types.Round(total), nil
}

// customAccrual delegates to a registered accrual strategy. A rule
// names its strategy in metadata; rules with no matching strategy
// contribute nothing.
func (e *Engine) customAccrual(ctx context.Context, r *rule.Rule, orderValue decimal.Decimal) (decimal.Decimal, error) {
	name, _ := r.Metadata["strategy"].(string)
	if name == "" {
		return decimal.Zero, nil
	}
	strategy := e.plugins.GetAccrualStrategy(name)
	if strategy == nil {
		e.logger.Warn("accrual strategy not registered",
			"rule_id", r.ID.String(),
			"strategy", name,
		)
		return decimal.Zero, nil
	}
	return strategy.Accrue(ctx, r, orderValue)
}

// soonestExpiry picks the earliest expiry among active rules that set
// one. Soonest wins when rules disagree.
func (e *Engine) soonestExpiry(rules []*rule.Rule) *time.Time {
	var days *int
	for _, r := range rules {
		if r.PointsExpiryDays == nil || *r.PointsExpiryDays <= 0 {
			continue
		}
		if days == nil || *r.PointsExpiryDays < *days {
			days = r.PointsExpiryDays
		}
	}
	if days == nil {
		return nil
	}
	exp := e.now().Add(time.Duration(*days) * 24 * time.Hour)
	return &exp
}

// ──────────────────────────────────────────────────
// Evaluation
// ──────────────────────────────────────────────────

// Evaluate checks whether a campaign applies to a candidate order. It
// is read-only: rejections come back as an invalid Decision, never as
// an error. Only infrastructure faults propagate as errors.
func (e *Engine) Evaluate(ctx context.Context, tenantID string, campaignID id.CampaignID, userID string, orderValue decimal.Decimal) (*redemption.Decision, error) {
	if err := requireIdentity(userID, tenantID); err != nil {
		return nil, err
	}

	c, err := e.store.GetCampaign(ctx, campaignID, tenantID)
	if err != nil {
		if IsNotFound(err) {
			return &redemption.Decision{
				Code:   CodeCampaignNotFound,
				Reason: "campaign not found",
			}, nil
		}
		return nil, err
	}
	return e.decide(ctx, e.store, c, userID, orderValue)
}

// decide runs the evaluation checks in order, short-circuiting at the
// first failure. The reader is either the store or an open atomic unit,
// so apply-time re-evaluation sees the locked campaign row.
func (e *Engine) decide(ctx context.Context, r store.Reader, c *campaign.Campaign, userID string, orderValue decimal.Decimal) (*redemption.Decision, error) {
	now := e.now()

	if c.Status != campaign.StatusActive || !c.InWindow(now) {
		return &redemption.Decision{
			Code:   CodeCampaignInactive,
			Reason: "campaign is not active or outside its date window",
		}, nil
	}

	if c.GlobalLimitReached() {
		return &redemption.Decision{
			Code:   CodeGlobalLimitReached,
			Reason: "campaign global usage limit reached",
		}, nil
	}

	if c.UsageLimitPerUser > 0 {
		used, err := r.CountCompletedRedemptions(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= c.UsageLimitPerUser {
			return &redemption.Decision{
				Code:   CodeUserLimitReached,
				Reason: "per-user usage limit reached",
			}, nil
		}
	}

	if c.CooldownHours > 0 {
		latest, err := r.LatestCompletedRedemption(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			cooldown := time.Duration(c.CooldownHours) * time.Hour
			if now.Sub(latest.CreatedAt) < cooldown {
				return &redemption.Decision{
					Code:   CodeCooldownActive,
					Reason: fmt.Sprintf("cooldown of %dh has not elapsed", c.CooldownHours),
				}, nil
			}
		}
	}

	if c.MinOrderValue != nil && orderValue.LessThan(*c.MinOrderValue) {
		return &redemption.Decision{
			Code:   CodeBelowMinOrderValue,
			Reason: fmt.Sprintf("order value below campaign minimum of %s", c.MinOrderValue),
		}, nil
	}

	switch c.Type {
	case campaign.TypeRewardDiscount:
		balance, err := r.GetBalance(ctx, userID, c.TenantID)
		if err != nil {
			return nil, err
		}
		required := decimal.NewFromInt(int64(c.PointsRequired))
		if balance.Balance.LessThan(required) {
			return &redemption.Decision{
				Code:           CodeInsufficientPoints,
				Reason:         "insufficient points for redemption",
				PointsRequired: c.PointsRequired,
			}, nil
		}
		return &redemption.Decision{
			Valid:          true,
			Reason:         "campaign applicable",
			DiscountAmount: types.Round(c.DiscountValue),
			PointsRequired: c.PointsRequired,
		}, nil

	case campaign.TypeOrderDiscount:
		return &redemption.Decision{
			Valid:          true,
			Reason:         "campaign applicable",
			DiscountAmount: computeDiscount(c, orderValue),
		}, nil

	default:
		// Loyalty campaigns gate participation; they carry no
		// monetary effect of their own.
		return &redemption.Decision{
			Valid:  true,
			Reason: "campaign applicable",
		}, nil
	}
}

// computeDiscount applies the campaign's discount formula, clamped to
// the cap and the order value, rounded to 2 decimal places.
func computeDiscount(c *campaign.Campaign, orderValue decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	if c.DiscountType == campaign.DiscountPercentage {
		d = orderValue.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	} else {
		d = c.DiscountValue
	}
	if c.MaxDiscountCap != nil {
		d = types.MinDec(d, *c.MaxDiscountCap)
	}
	d = types.MinDec(d, orderValue)
	if d.IsNegative() {
		d = decimal.Zero
	}
	return types.Round(d)
}

// ──────────────────────────────────────────────────
// Redemption
// ──────────────────────────────────────────────────

// RedemptionInput describes one redemption attempt.
type RedemptionInput struct {
	OrderValue decimal.Decimal
	OrderID    string
	Metadata   types.Metadata
}

// RedemptionResult reports a committed redemption.
type RedemptionResult struct {
	RedemptionID   id.RedemptionID   `json:"redemption_id"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	PointsUsed     decimal.Decimal   `json:"points_used"`
	NewBalance     decimal.Decimal   `json:"new_balance"`
	Status         redemption.Status `json:"status"`
}

// Apply redeems a campaign for a user. The campaign row is locked and
// the evaluation re-run inside the atomic unit, so a stale prior
// Evaluate can never commit. Rejections surface as sentinel errors and
// leave no partial state.
func (e *Engine) Apply(ctx context.Context, tenantID string, campaignID id.CampaignID, userID string, in RedemptionInput) (*RedemptionResult, error) {
	if err := requireIdentity(userID, tenantID); err != nil {
		return nil, err
	}
	if in.OrderValue.IsNegative() {
		return nil, ValidationError{Field: "orderValue", Message: "must not be negative"}
	}

	var (
		result   *RedemptionResult
		record   *redemption.Redemption
		entry    *transaction.Entry
		rejected *redemption.Decision
		limited  *campaign.Campaign
	)

	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCampaignForUpdate(ctx, campaignID, tenantID)
		if err != nil {
			return err
		}

		decision, err := e.decide(ctx, tx, c, userID, in.OrderValue)
		if err != nil {
			return err
		}
		if !decision.Valid {
			rejected = decision
			if decision.Code == CodeGlobalLimitReached {
				limited = c
			}
			return rejectionError(decision)
		}

		pointsUsed := decimal.Zero
		var newBalance decimal.Decimal
		if c.Type == campaign.TypeRewardDiscount {
			pointsUsed = decimal.NewFromInt(int64(c.PointsRequired))
			balance, err := tx.ApplyBalanceDelta(ctx, userID, tenantID, pointsUsed.Neg(), nil)
			if err != nil {
				return err
			}
			newBalance = balance.Balance

			entry = &transaction.Entry{
				Entity:       types.EntityAt(e.now()),
				ID:           id.NewTransactionID(),
				UserID:       userID,
				TenantID:     tenantID,
				Kind:         transaction.KindRedeemed,
				Amount:       pointsUsed.Neg(),
				BalanceAfter: newBalance,
				Description:  fmt.Sprintf("redeemed campaign %s", c.Name),
				ReferenceID:  in.OrderID,
				Metadata:     in.Metadata,
			}
			if err := tx.AppendTransaction(ctx, entry); err != nil {
				return err
			}
		} else {
			balance, err := tx.GetBalance(ctx, userID, tenantID)
			if err != nil {
				return err
			}
			newBalance = balance.Balance
		}

		if err := tx.IncrementCampaignUsage(ctx, c.ID); err != nil {
			return err
		}

		record = &redemption.Redemption{
			Entity:         types.EntityAt(e.now()),
			ID:             id.NewRedemptionID(),
			UserID:         userID,
			TenantID:       tenantID,
			CampaignID:     c.ID,
			Status:         redemption.StatusCompleted,
			PointsUsed:     pointsUsed,
			DiscountAmount: decision.DiscountAmount,
			OrderValue:     in.OrderValue,
			OrderID:        in.OrderID,
			Metadata:       in.Metadata,
		}
		if err := tx.CreateRedemption(ctx, record); err != nil {
			return err
		}

		result = &RedemptionResult{
			RedemptionID:   record.ID,
			DiscountAmount: record.DiscountAmount,
			PointsUsed:     pointsUsed,
			NewBalance:     newBalance,
			Status:         redemption.StatusCompleted,
		}
		return nil
	})
	if err != nil {
		if rejected != nil {
			e.plugins.EmitRedemptionRejected(ctx, userID, tenantID, rejected)
			if limited != nil {
				e.plugins.EmitUsageLimitReached(ctx, limited)
			}
		}
		return nil, err
	}

	if entry != nil {
		e.plugins.EmitPointsDeducted(ctx, entry, &account.Balance{
			UserID:   userID,
			TenantID: tenantID,
			Balance:  result.NewBalance,
		})
	}
	e.plugins.EmitRedemptionApplied(ctx, record)
	e.logger.Debug("redemption applied",
		"user_id", userID,
		"tenant_id", tenantID,
		"campaign_id", campaignID.String(),
		"discount", result.DiscountAmount.String(),
	)
	return result, nil
}

// rejectionError wraps a refusal decision into its sentinel error.
func rejectionError(d *redemption.Decision) error {
	var sentinel error
	switch d.Code {
	case CodeCampaignNotFound:
		sentinel = ErrCampaignNotFound
	case CodeCampaignInactive:
		sentinel = ErrCampaignInactive
	case CodeGlobalLimitReached:
		sentinel = ErrGlobalLimitReached
	case CodeUserLimitReached:
		sentinel = ErrUserLimitReached
	case CodeCooldownActive:
		sentinel = ErrCooldownActive
	case CodeBelowMinOrderValue:
		sentinel = ErrBelowMinOrderValue
	case CodeInsufficientPoints:
		sentinel = ErrInsufficientPoints
	default:
		sentinel = ErrRedemptionInvalid
	}
	return fmt.Errorf("%w: %s", sentinel, d.Reason)
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetBalance returns the current balance, zero-valued when the account
// has never accrued.
func (e *Engine) GetBalance(ctx context.Context, userID, tenantID string) (*account.Balance, error) {
	if err := requireIdentity(userID, tenantID); err != nil {
		return nil, err
	}
	return e.store.GetBalance(ctx, userID, tenantID)
}

// GetHistory returns the account's ledger entries, newest first.
func (e *Engine) GetHistory(ctx context.Context, userID, tenantID string, limit int) ([]*transaction.Entry, error) {
	if err := requireIdentity(userID, tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.historyLimit
	}
	return e.store.ListTransactions(ctx, userID, tenantID, limit)
}

// GetRedemptionHistory returns the user's redemption records, newest first.
func (e *Engine) GetRedemptionHistory(ctx context.Context, userID, tenantID string, limit int) ([]*redemption.Redemption, error) {
	if err := requireIdentity(userID, tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.historyLimit
	}
	return e.store.ListRedemptions(ctx, userID, tenantID, limit)
}

// requireIdentity validates the resolved identity pair before any store
// access.
func requireIdentity(userID, tenantID string) error {
	if strings.TrimSpace(userID) == "" {
		return ValidationError{Field: "userId", Message: "must not be empty"}
	}
	if strings.TrimSpace(tenantID) == "" {
		return ValidationError{Field: "tenantId", Message: "must not be empty"}
	}
	return nil
}
