package loyalty_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

// doubler is a test accrual strategy that also counts hook calls.
type doubler struct {
	mu       sync.Mutex
	accrued  int
	applied  int
	rejected int
}

func (d *doubler) Name() string         { return "doubler" }
func (d *doubler) StrategyName() string { return "double" }

func (d *doubler) Accrue(_ context.Context, _ *rule.Rule, orderValue decimal.Decimal) (decimal.Decimal, error) {
	return orderValue.Mul(decimal.NewFromInt(2)), nil
}

func (d *doubler) OnPointsAccrued(_ context.Context, _ *transaction.Entry, _ *account.Balance) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accrued++
	return nil
}

func (d *doubler) OnRedemptionApplied(_ context.Context, _ *redemption.Redemption) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied++
	return nil
}

func (d *doubler) OnRedemptionRejected(_ context.Context, _, _ string, _ *redemption.Decision) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected++
	return nil
}

func (d *doubler) counts() (int, int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accrued, d.applied, d.rejected
}

func newPluginEngine(t *testing.T, p *doubler) *loyalty.Engine {
	t.Helper()

	clock := newFakeClock()
	engine := loyalty.New(memory.New(),
		loyalty.WithClock(clock.Now),
		loyalty.WithPlugin(p),
	)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = engine.Stop() })
	return engine
}

func TestCustomAccrualStrategy(t *testing.T) {
	p := &doubler{}
	engine := newPluginEngine(t, p)
	ctx := context.Background()

	if _, err := engine.CreateRule(ctx, &rule.Rule{
		TenantID:       "acme",
		Name:           "double points weekend",
		Kind:           rule.KindCustom,
		IsActive:       true,
		UseCustomLogic: true,
		Metadata:       types.Metadata{"strategy": "double"},
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	res, err := engine.Accrue(ctx, "u1", "acme", loyalty.AccrualInput{OrderValue: dec("40.25")})
	if err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if !res.PointsEarned.Equal(dec("80.50")) {
		t.Fatalf("points earned = %s, want 80.50", res.PointsEarned)
	}
}

func TestCustomRuleWithoutStrategyContributesZero(t *testing.T) {
	p := &doubler{}
	engine := newPluginEngine(t, p)
	ctx := context.Background()

	if _, err := engine.CreateRule(ctx, &rule.Rule{
		TenantID:       "acme",
		Name:           "unbound custom",
		Kind:           rule.KindCustom,
		IsActive:       true,
		UseCustomLogic: true,
		Metadata:       types.Metadata{"strategy": "missing"},
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	res, err := engine.Accrue(ctx, "u1", "acme", loyalty.AccrualInput{OrderValue: dec("40")})
	if err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if !res.PointsEarned.IsZero() {
		t.Fatalf("points earned = %s, want 0", res.PointsEarned)
	}

	// Nothing earned means nothing written.
	entries, err := engine.GetHistory(ctx, "u1", "acme", 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("zero accrual wrote %d ledger entries", len(entries))
	}
}

func TestPluginHooksFire(t *testing.T) {
	p := &doubler{}
	engine := newPluginEngine(t, p)
	ctx := context.Background()

	seedPerCurrencyRule(t, engine, "acme", "1")
	accrue(t, engine, "u1", "acme", "100")

	base := newFakeClock().Now()
	c, err := engine.CreateCampaign(ctx, &campaign.Campaign{
		TenantID:       "acme",
		Name:           "spend points",
		Type:           campaign.TypeRewardDiscount,
		PointsRequired: 50,
		DiscountValue:  dec("5"),
		StartDate:      base.Add(-time.Hour),
		EndDate:        base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	if _, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("30")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := engine.Apply(ctx, "acme", c.ID, "u2", loyalty.RedemptionInput{OrderValue: dec("30")}); !errors.Is(err, loyalty.ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}

	accrued, applied, rejected := p.counts()
	if accrued != 1 {
		t.Fatalf("OnPointsAccrued calls = %d, want 1", accrued)
	}
	if applied != 1 {
		t.Fatalf("OnRedemptionApplied calls = %d, want 1", applied)
	}
	if rejected != 1 {
		t.Fatalf("OnRedemptionRejected calls = %d, want 1", rejected)
	}
}
