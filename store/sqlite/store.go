// Package sqlite provides the SQLite store implementation.
//
// Atomic units open immediate transactions, so writers serialize at the
// database while readers proceed under WAL. SQLITE_BUSY surfaces as a
// retryable conflict.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

var _ store.Store = (*Store)(nil)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite backend.
type Store struct {
	reader
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY churn under load.
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// New wraps an existing connection.
func New(db *sql.DB) *Store {
	return &Store{reader: reader{q: db}, db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", loyalty.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", loyalty.ErrConflict, err)
		case sqlite3.ErrCantOpen:
			return fmt.Errorf("%w: %v", loyalty.ErrStoreUnavailable, err)
		}
	}
	return err
}

// RunInTx executes fn inside one immediate transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}

	unit := &sqliteTx{reader: reader{q: sqlTx}, tx: sqlTx}
	if err := fn(unit); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Reader
// ──────────────────────────────────────────────────

type reader struct {
	q querier
}

func (r reader) GetBalance(ctx context.Context, userID, tenantID string) (*account.Balance, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM loyalty_balances WHERE user_id = ? AND tenant_id = ?`,
		userID, tenantID,
	)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Zero(userID, tenantID), nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

func (r reader) ListTransactions(ctx context.Context, userID, tenantID string, limit int) ([]*transaction.Entry, error) {
	limit = transaction.ClampLimit(limit)
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM loyalty_transactions
		 WHERE user_id = ? AND tenant_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, tenantID, limit,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*transaction.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		result = append(result, e)
	}
	return result, mapErr(rows.Err())
}

func (r reader) ListActiveRules(ctx context.Context, tenantID string) ([]*rule.Rule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM loyalty_rules
		 WHERE tenant_id = ? AND is_active
		 ORDER BY created_at DESC`,
		tenantID,
	)
}

func (r reader) ListRules(ctx context.Context, tenantID string) ([]*rule.Rule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM loyalty_rules
		 WHERE tenant_id = ?
		 ORDER BY created_at DESC`,
		tenantID,
	)
}

func (r reader) queryRules(ctx context.Context, query string, args ...any) ([]*rule.Rule, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*rule.Rule, 0)
	for rows.Next() {
		ru, err := scanRule(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		result = append(result, ru)
	}
	return result, mapErr(rows.Err())
}

func (r reader) GetRule(ctx context.Context, ruleID id.RuleID, tenantID string) (*rule.Rule, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM loyalty_rules WHERE id = ? AND tenant_id = ?`,
		ruleID.String(), tenantID,
	)
	ru, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, loyalty.ErrRuleNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return ru, nil
}

func (r reader) GetCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM loyalty_campaigns WHERE id = ? AND tenant_id = ?`,
		campaignID.String(), tenantID,
	)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, loyalty.ErrCampaignNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (r reader) ListCampaigns(ctx context.Context, tenantID string) ([]*campaign.Campaign, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM loyalty_campaigns
		 WHERE tenant_id = ?
		 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*campaign.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		result = append(result, c)
	}
	return result, mapErr(rows.Err())
}

func (r reader) CountCompletedRedemptions(ctx context.Context, campaignID id.CampaignID, userID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loyalty_redemptions
		 WHERE campaign_id = ? AND user_id = ? AND status = ?`,
		campaignID.String(), userID, string(redemption.StatusCompleted),
	).Scan(&count)
	if err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}

func (r reader) LatestCompletedRedemption(ctx context.Context, campaignID id.CampaignID, userID string) (*redemption.Redemption, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+redemptionColumns+` FROM loyalty_redemptions
		 WHERE campaign_id = ? AND user_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		campaignID.String(), userID, string(redemption.StatusCompleted),
	)
	rd, err := scanRedemption(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return rd, nil
}

func (r reader) ListRedemptions(ctx context.Context, userID, tenantID string, limit int) ([]*redemption.Redemption, error) {
	limit = redemption.ClampLimit(limit)
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+redemptionColumns+` FROM loyalty_redemptions
		 WHERE user_id = ? AND tenant_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, tenantID, limit,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*redemption.Redemption, 0)
	for rows.Next() {
		rd, err := scanRedemption(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		result = append(result, rd)
	}
	return result, mapErr(rows.Err())
}

// ──────────────────────────────────────────────────
// Atomic unit
// ──────────────────────────────────────────────────

type sqliteTx struct {
	reader
	tx *sql.Tx
}

var _ store.Tx = (*sqliteTx)(nil)

func (t *sqliteTx) ApplyBalanceDelta(ctx context.Context, userID, tenantID string, delta decimal.Decimal, expiresAt *time.Time) (*account.Balance, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM loyalty_balances WHERE user_id = ? AND tenant_id = ?`,
		userID, tenantID,
	)
	current, err := scanBalance(row)
	now := time.Now().UTC()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if delta.IsNegative() {
			return nil, loyalty.ErrInsufficientBalance
		}
		current = &account.Balance{
			Entity:   types.Entity{CreatedAt: now, UpdatedAt: now},
			ID:       id.NewAccountID(),
			UserID:   userID,
			TenantID: tenantID,
			Balance:  decimal.Zero,
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO loyalty_balances (id, user_id, tenant_id, balance, created_at, updated_at)
			 VALUES (?, ?, ?, '0', ?, ?)`,
			current.ID.String(), userID, tenantID, now, now,
		); err != nil {
			return nil, mapErr(err)
		}
	case err != nil:
		return nil, mapErr(err)
	}

	next := current.Balance.Add(delta)
	if delta.IsNegative() && next.IsNegative() {
		return nil, loyalty.ErrInsufficientBalance
	}

	current.Balance = next
	if expiresAt != nil {
		exp := *expiresAt
		current.ExpiresAt = &exp
	}
	current.UpdatedAt = now

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE loyalty_balances
		 SET balance = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		current.Balance, nullTime(current.ExpiresAt), current.UpdatedAt, current.ID.String(),
	); err != nil {
		return nil, mapErr(err)
	}
	return current, nil
}

func (t *sqliteTx) AppendTransaction(ctx context.Context, e *transaction.Entry) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO loyalty_transactions (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID, e.TenantID, string(e.Kind),
		e.Amount, e.BalanceAfter, e.Description, e.ReferenceID,
		meta, e.CreatedAt, e.UpdatedAt,
	)
	return mapErr(err)
}

func (t *sqliteTx) GetCampaignForUpdate(ctx context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	// The immediate transaction already holds the write lock; a plain
	// read inside it is stable.
	return t.reader.GetCampaign(ctx, campaignID, tenantID)
}

func (t *sqliteTx) IncrementCampaignUsage(ctx context.Context, campaignID id.CampaignID) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE loyalty_campaigns
		 SET current_usage_count = current_usage_count + 1, updated_at = ?
		 WHERE id = ?`,
		time.Now().UTC(), campaignID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if affected == 0 {
		return loyalty.ErrCampaignNotFound
	}
	return nil
}

func (t *sqliteTx) CreateRedemption(ctx context.Context, rd *redemption.Redemption) error {
	args, err := redemptionArgs(rd)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO loyalty_redemptions (`+redemptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return mapErr(err)
}

// ──────────────────────────────────────────────────
// Administration writes
// ──────────────────────────────────────────────────

func (s *Store) CreateRule(ctx context.Context, r *rule.Rule) error {
	args, err := ruleArgs(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO loyalty_rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return mapErr(err)
}

func (s *Store) UpdateRule(ctx context.Context, ruleID id.RuleID, tenantID string, upd rule.Update) (*rule.Rule, error) {
	var updated *rule.Rule
	err := s.RunInTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRule(ctx, ruleID, tenantID)
		if err != nil {
			return err
		}

		upd.ApplyTo(r)
		r.Touch()

		unit := tx.(*sqliteTx)
		if _, err := unit.tx.ExecContext(ctx,
			`UPDATE loyalty_rules
			 SET name = ?, description = ?, kind = ?, is_active = ?,
			     points_per_currency = ?, points_per_purchase = ?,
			     points_to_currency_rate = ?, use_custom_logic = ?,
			     points_expiry_days = ?, metadata = ?, updated_at = ?
			 WHERE id = ?`,
			r.Name, r.Description, string(r.Kind), r.IsActive,
			nullDecimal(r.PointsPerCurrency), nullInt(r.PointsPerPurchase),
			nullDecimal(r.PointsToCurrencyRate), r.UseCustomLogic,
			nullInt(r.PointsExpiryDays), mustMetadata(r.Metadata), r.UpdatedAt,
			r.ID.String(),
		); err != nil {
			return mapErr(err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.RuleID, tenantID string) error {
	return s.deleteByID(ctx,
		`DELETE FROM loyalty_rules WHERE id = ? AND tenant_id = ?`,
		ruleID.String(), tenantID, loyalty.ErrRuleNotFound,
	)
}

func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	args, err := campaignArgs(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO loyalty_campaigns (`+campaignColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return mapErr(err)
}

func (s *Store) UpdateCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string, upd campaign.Update) (*campaign.Campaign, error) {
	var updated *campaign.Campaign
	err := s.RunInTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCampaignForUpdate(ctx, campaignID, tenantID)
		if err != nil {
			return err
		}

		upd.ApplyTo(c)
		c.Touch()

		unit := tx.(*sqliteTx)
		if _, err := unit.tx.ExecContext(ctx,
			`UPDATE loyalty_campaigns
			 SET name = ?, description = ?, type = ?, status = ?,
			     start_date = ?, end_date = ?, min_order_value = ?,
			     discount_type = ?, discount_value = ?, max_discount_cap = ?,
			     points_required = ?, usage_limit_per_user = ?,
			     global_usage_limit = ?, is_stackable = ?,
			     cooldown_hours = ?, metadata = ?, updated_at = ?
			 WHERE id = ?`,
			c.Name, c.Description, string(c.Type), string(c.Status),
			c.StartDate, c.EndDate, nullDecimal(c.MinOrderValue),
			string(c.DiscountType), c.DiscountValue, nullDecimal(c.MaxDiscountCap),
			c.PointsRequired, c.UsageLimitPerUser,
			c.GlobalUsageLimit, c.IsStackable,
			c.CooldownHours, mustMetadata(c.Metadata), c.UpdatedAt,
			c.ID.String(),
		); err != nil {
			return mapErr(err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteCampaign(ctx context.Context, campaignID id.CampaignID, tenantID string) error {
	return s.deleteByID(ctx,
		`DELETE FROM loyalty_campaigns WHERE id = ? AND tenant_id = ?`,
		campaignID.String(), tenantID, loyalty.ErrCampaignNotFound,
	)
}

func (s *Store) deleteByID(ctx context.Context, query, rowID, tenantID string, notFound error) error {
	res, err := s.db.ExecContext(ctx, query, rowID, tenantID)
	if err != nil {
		return mapErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func mustMetadata(m types.Metadata) []byte {
	raw, err := marshalMetadata(m)
	if err != nil {
		panic(err)
	}
	return raw
}
