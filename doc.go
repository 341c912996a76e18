// Package loyalty provides an embeddable points ledger and redemption
// engine for Go applications.
//
// Loyalty is designed as a library, not a service. Import it directly
// into your Go application and wire it to a store backend. It provides:
//
//   - Rule-driven point accrual from order events
//   - An append-only per-user transaction ledger
//   - Campaign evaluation with usage limits and cooldowns
//   - Atomic redemption with balance deduction and usage counting
//   - Pluggable hooks for audit, metrics, and custom accrual strategies
//   - Memory, PostgreSQL, and SQLite store backends
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/loyalty"
//	    "github.com/xraph/loyalty/store/postgres"
//	)
//
//	st, err := postgres.Open(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := loyalty.New(st)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Rules define how order events convert into points:
//
//	r := &rule.Rule{
//	    TenantID:          "acme",
//	    Name:              "1 point per dollar",
//	    Kind:              rule.KindPerCurrency,
//	    IsActive:          true,
//	    PointsPerCurrency: &onePerDollar,
//	}
//
// Accrual credits the balance and appends a ledger entry atomically:
//
//	res, err := engine.Accrue(ctx, userID, tenantID, loyalty.AccrualInput{
//	    OrderValue: decimal.NewFromFloat(42.50),
//	    OrderID:    "order-123",
//	})
//
// Campaigns are time-boxed redemption offers. Evaluate is a read-only
// dry run; Apply commits under a campaign lock so usage limits hold
// under concurrency:
//
//	decision, err := engine.Evaluate(ctx, tenantID, campaignID, userID, orderValue)
//	if decision.Valid {
//	    res, err := engine.Apply(ctx, tenantID, campaignID, userID, loyalty.RedemptionInput{
//	        OrderValue: orderValue,
//	        OrderID:    "order-123",
//	    })
//	}
//
// # Arithmetic
//
// All point and monetary amounts use shopspring/decimal. Results are
// rounded to 2 decimal places with half-away-from-zero rounding, so
// balances never accumulate floating-point drift.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	camp_01h2xcejqtf2nbrexx3vqjhp41  // Campaign ID
//	rdm_01h2xcejqtf2nbrexx3vqjhp41   // Redemption ID
//	ptx_01h455vb4pex5vsknk084sn02q   // Ledger entry ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package loyalty
