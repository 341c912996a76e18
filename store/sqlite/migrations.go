package sqlite

import (
	"context"
	"fmt"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "balances",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS loyalty_balances (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				balance TEXT NOT NULL DEFAULT '0',
				expires_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
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
				amount TEXT NOT NULL,
				balance_after TEXT NOT NULL,
				description TEXT,
				reference_id TEXT,
				metadata BLOB,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
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
				is_active INTEGER NOT NULL DEFAULT 1,
				points_per_currency TEXT,
				points_per_purchase INTEGER,
				points_to_currency_rate TEXT,
				use_custom_logic INTEGER NOT NULL DEFAULT 0,
				points_expiry_days INTEGER,
				metadata BLOB,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
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
				start_date DATETIME NOT NULL,
				end_date DATETIME NOT NULL,
				min_order_value TEXT,
				discount_type TEXT NOT NULL,
				discount_value TEXT NOT NULL,
				max_discount_cap TEXT,
				points_required INTEGER NOT NULL DEFAULT 0,
				usage_limit_per_user INTEGER NOT NULL DEFAULT 0,
				global_usage_limit INTEGER NOT NULL DEFAULT 0,
				current_usage_count INTEGER NOT NULL DEFAULT 0,
				is_stackable INTEGER NOT NULL DEFAULT 0,
				cooldown_hours INTEGER NOT NULL DEFAULT 0,
				metadata BLOB,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
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
				points_used TEXT NOT NULL DEFAULT '0',
				discount_amount TEXT NOT NULL,
				order_value TEXT NOT NULL,
				order_id TEXT,
				failure_reason TEXT,
				metadata BLOB,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_loyalty_redemptions_campaign_user
				ON loyalty_redemptions (campaign_id, user_id, status, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_loyalty_redemptions_user
				ON loyalty_redemptions (user_id, tenant_id, created_at DESC)`,
		},
	},
}

// Migrate applies any pending migrations in version order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS loyalty_schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM loyalty_schema_migrations WHERE version = ?`, m.version,
		).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
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
		`INSERT INTO loyalty_schema_migrations (version, name) VALUES (?, ?)`,
		m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
