package postgres

import (
	"context"
	"fmt"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

// Migrations are ordered and applied once each; applied versions are
// tracked in loyalty_schema_migrations.
var migrations = []migration{
	{
		version: 1,
		name:    "balances",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS loyalty_balances (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				balance NUMERIC(20,2) NOT NULL DEFAULT 0,
				expires_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				UNIQUE (user_id, tenant_id)
			)`,
		},
	},
	{
		version: 2,
		name:    "transactions",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS loyalty_transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				amount NUMERIC(20,2) NOT NULL,
				balance_after NUMERIC(20,2) NOT NULL,
				description TEXT,
				reference_id TEXT,
				metadata JSONB,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_loyalty_transactions_user
				ON loyalty_transactions (user_id, tenant_id, created_at DESC)`,
		},
	},
	{
		version: 3,
		name:    "rules",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS loyalty_rules (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT,
				kind TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				points_per_currency NUMERIC(20,4),
				points_per_purchase INTEGER,
				points_to_currency_rate NUMERIC(20,4),
				use_custom_logic BOOLEAN NOT NULL DEFAULT FALSE,
				points_expiry_days INTEGER,
				metadata JSONB,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_loyalty_rules_tenant
				ON loyalty_rules (tenant_id, is_active)`,
		},
	},
	{
		version: 4,
		name:    "campaigns",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS loyalty_campaigns (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT,
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				start_date TIMESTAMPTZ NOT NULL,
				end_date TIMESTAMPTZ NOT NULL,
				min_order_value NUMERIC(20,2),
				discount_type TEXT NOT NULL,
				discount_value NUMERIC(20,2) NOT NULL,
				max_discount_cap NUMERIC(20,2),
				points_required INTEGER NOT NULL DEFAULT 0,
				usage_limit_per_user INTEGER NOT NULL DEFAULT 0,
				global_usage_limit INTEGER NOT NULL DEFAULT 0,
				current_usage_count INTEGER NOT NULL DEFAULT 0,
				is_stackable BOOLEAN NOT NULL DEFAULT FALSE,
				cooldown_hours INTEGER NOT NULL DEFAULT 0,
				metadata JSONB,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_loyalty_campaigns_tenant
				ON loyalty_campaigns (tenant_id, status)`,
		},
	},
	{
		version: 5,
		name:    "redemptions",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS loyalty_redemptions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				campaign_id TEXT NOT NULL REFERENCES loyalty_campaigns (id),
				status TEXT NOT NULL,
				points_used NUMERIC(20,2) NOT NULL DEFAULT 0,
				discount_amount NUMERIC(20,2) NOT NULL,
				order_value NUMERIC(20,2) NOT NULL,
				order_id TEXT,
				failure_reason TEXT,
				metadata JSONB,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_loyalty_redemptions_campaign_user
				ON loyalty_redemptions (campaign_id, user_id, status, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_loyalty_redemptions_user
				ON loyalty_redemptions (user_id, tenant_id, created_at DESC)`,
		},
	},
}

// Migrate applies any pending migrations in version order. Each version
// runs in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS loyalty_schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := s.migrationApplied(ctx, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *Store) migrationApplied(ctx context.Context, version int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loyalty_schema_migrations WHERE version = $1`, version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	return count > 0, nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO loyalty_schema_migrations (version, name) VALUES ($1, $2)`,
		m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
