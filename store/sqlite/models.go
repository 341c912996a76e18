package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

// Decimal columns are stored as TEXT; decimal.Decimal scans and values
// strings directly, so no precision is lost.

type rowScanner interface {
	Scan(dest ...any) error
}

func marshalMetadata(m types.Metadata) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}

func unmarshalMetadata(raw []byte) (types.Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m types.Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	d := nd.Decimal
	return &d
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

const balanceColumns = `id, user_id, tenant_id, balance, expires_at, created_at, updated_at`

func scanBalance(s rowScanner) (*account.Balance, error) {
	var (
		rowID     string
		userID    string
		tenantID  string
		balance   decimal.Decimal
		expiresAt sql.NullTime
		createdAt time.Time
		updatedAt time.Time
	)
	if err := s.Scan(&rowID, &userID, &tenantID, &balance, &expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	balanceID, err := id.ParseAccountID(rowID)
	if err != nil {
		return nil, fmt.Errorf("parse balance id %q: %w", rowID, err)
	}
	return &account.Balance{
		Entity:    types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:        balanceID,
		UserID:    userID,
		TenantID:  tenantID,
		Balance:   balance,
		ExpiresAt: timePtr(expiresAt),
	}, nil
}

const entryColumns = `id, user_id, tenant_id, kind, amount, balance_after, description, reference_id, metadata, created_at, updated_at`

func scanEntry(s rowScanner) (*transaction.Entry, error) {
	var (
		rowID       string
		userID      string
		tenantID    string
		kind        string
		amount      decimal.Decimal
		after       decimal.Decimal
		description sql.NullString
		referenceID sql.NullString
		metadata    []byte
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := s.Scan(&rowID, &userID, &tenantID, &kind, &amount, &after, &description, &referenceID, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	entryID, err := id.ParseTransactionID(rowID)
	if err != nil {
		return nil, fmt.Errorf("parse transaction id %q: %w", rowID, err)
	}
	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &transaction.Entry{
		Entity:       types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:           entryID,
		UserID:       userID,
		TenantID:     tenantID,
		Kind:         transaction.Kind(kind),
		Amount:       amount,
		BalanceAfter: after,
		Description:  description.String,
		ReferenceID:  referenceID.String,
		Metadata:     meta,
	}, nil
}

const ruleColumns = `id, tenant_id, name, description, kind, is_active, points_per_currency, points_per_purchase, points_to_currency_rate, use_custom_logic, points_expiry_days, metadata, created_at, updated_at`

func scanRule(s rowScanner) (*rule.Rule, error) {
	var (
		rowID       string
		tenantID    string
		name        string
		description sql.NullString
		kind        string
		isActive    bool
		perCurrency decimal.NullDecimal
		perPurchase sql.NullInt64
		toRate      decimal.NullDecimal
		customLogic bool
		expiryDays  sql.NullInt64
		metadata    []byte
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := s.Scan(&rowID, &tenantID, &name, &description, &kind, &isActive, &perCurrency, &perPurchase, &toRate, &customLogic, &expiryDays, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	ruleID, err := id.ParseRuleID(rowID)
	if err != nil {
		return nil, fmt.Errorf("parse rule id %q: %w", rowID, err)
	}
	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &rule.Rule{
		Entity:               types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:                   ruleID,
		TenantID:             tenantID,
		Name:                 name,
		Description:          description.String,
		Kind:                 rule.Kind(kind),
		IsActive:             isActive,
		PointsPerCurrency:    decimalPtr(perCurrency),
		PointsPerPurchase:    intPtr(perPurchase),
		PointsToCurrencyRate: decimalPtr(toRate),
		UseCustomLogic:       customLogic,
		PointsExpiryDays:     intPtr(expiryDays),
		Metadata:             meta,
	}, nil
}

func ruleArgs(r *rule.Rule) ([]any, error) {
	meta, err := marshalMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID.String(),
		r.TenantID,
		r.Name,
		r.Description,
		string(r.Kind),
		r.IsActive,
		nullDecimal(r.PointsPerCurrency),
		nullInt(r.PointsPerPurchase),
		nullDecimal(r.PointsToCurrencyRate),
		r.UseCustomLogic,
		nullInt(r.PointsExpiryDays),
		meta,
		r.CreatedAt,
		r.UpdatedAt,
	}, nil
}

const campaignColumns = `id, tenant_id, name, description, type, status, start_date, end_date, min_order_value, discount_type, discount_value, max_discount_cap, points_required, usage_limit_per_user, global_usage_limit, current_usage_count, is_stackable, cooldown_hours, metadata, created_at, updated_at`

func scanCampaign(s rowScanner) (*campaign.Campaign, error) {
	var (
		rowID         string
		tenantID      string
		name          string
		description   sql.NullString
		typ           string
		status        string
		startDate     time.Time
		endDate       time.Time
		minOrderValue decimal.NullDecimal
		discountType  string
		discountValue decimal.Decimal
		maxCap        decimal.NullDecimal
		pointsReq     int
		perUserLimit  int
		globalLimit   int
		usageCount    int
		stackable     bool
		cooldownHours int
		metadata      []byte
		createdAt     time.Time
		updatedAt     time.Time
	)
	if err := s.Scan(&rowID, &tenantID, &name, &description, &typ, &status, &startDate, &endDate, &minOrderValue, &discountType, &discountValue, &maxCap, &pointsReq, &perUserLimit, &globalLimit, &usageCount, &stackable, &cooldownHours, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	campaignID, err := id.ParseCampaignID(rowID)
	if err != nil {
		return nil, fmt.Errorf("parse campaign id %q: %w", rowID, err)
	}
	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &campaign.Campaign{
		Entity:            types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:                campaignID,
		TenantID:          tenantID,
		Name:              name,
		Description:       description.String,
		Type:              campaign.Type(typ),
		Status:            campaign.Status(status),
		StartDate:         startDate,
		EndDate:           endDate,
		MinOrderValue:     decimalPtr(minOrderValue),
		DiscountType:      campaign.DiscountType(discountType),
		DiscountValue:     discountValue,
		MaxDiscountCap:    decimalPtr(maxCap),
		PointsRequired:    pointsReq,
		UsageLimitPerUser: perUserLimit,
		GlobalUsageLimit:  globalLimit,
		CurrentUsageCount: usageCount,
		IsStackable:       stackable,
		CooldownHours:     cooldownHours,
		Metadata:          meta,
	}, nil
}

func campaignArgs(c *campaign.Campaign) ([]any, error) {
	meta, err := marshalMetadata(c.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		c.ID.String(),
		c.TenantID,
		c.Name,
		c.Description,
		string(c.Type),
		string(c.Status),
		c.StartDate,
		c.EndDate,
		nullDecimal(c.MinOrderValue),
		string(c.DiscountType),
		c.DiscountValue,
		nullDecimal(c.MaxDiscountCap),
		c.PointsRequired,
		c.UsageLimitPerUser,
		c.GlobalUsageLimit,
		c.CurrentUsageCount,
		c.IsStackable,
		c.CooldownHours,
		meta,
		c.CreatedAt,
		c.UpdatedAt,
	}, nil
}

const redemptionColumns = `id, user_id, tenant_id, campaign_id, status, points_used, discount_amount, order_value, order_id, failure_reason, metadata, created_at, updated_at`

func scanRedemption(s rowScanner) (*redemption.Redemption, error) {
	var (
		rowID         string
		userID        string
		tenantID      string
		campaignRaw   string
		status        string
		pointsUsed    decimal.Decimal
		discount      decimal.Decimal
		orderValue    decimal.Decimal
		orderID       sql.NullString
		failureReason sql.NullString
		metadata      []byte
		createdAt     time.Time
		updatedAt     time.Time
	)
	if err := s.Scan(&rowID, &userID, &tenantID, &campaignRaw, &status, &pointsUsed, &discount, &orderValue, &orderID, &failureReason, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	redemptionID, err := id.ParseRedemptionID(rowID)
	if err != nil {
		return nil, fmt.Errorf("parse redemption id %q: %w", rowID, err)
	}
	campaignID, err := id.ParseCampaignID(campaignRaw)
	if err != nil {
		return nil, fmt.Errorf("parse campaign id %q: %w", campaignRaw, err)
	}
	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &redemption.Redemption{
		Entity:         types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:             redemptionID,
		UserID:         userID,
		TenantID:       tenantID,
		CampaignID:     campaignID,
		Status:         redemption.Status(status),
		PointsUsed:     pointsUsed,
		DiscountAmount: discount,
		OrderValue:     orderValue,
		OrderID:        orderID.String,
		FailureReason:  failureReason.String,
		Metadata:       meta,
	}, nil
}

func redemptionArgs(r *redemption.Redemption) ([]any, error) {
	meta, err := marshalMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID.String(),
		r.UserID,
		r.TenantID,
		r.CampaignID.String(),
		string(r.Status),
		r.PointsUsed,
		r.DiscountAmount,
		r.OrderValue,
		r.OrderID,
		r.FailureReason,
		meta,
		r.CreatedAt,
		r.UpdatedAt,
	}, nil
}
