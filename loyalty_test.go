package loyalty_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/transaction"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeClock lets tests move the engine's notion of now.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newEngine(t *testing.T) (*loyalty.Engine, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	engine := loyalty.New(memory.New(), loyalty.WithClock(clock.Now))

	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = engine.Stop() })

	return engine, clock
}

func seedPerCurrencyRule(t *testing.T, engine *loyalty.Engine, tenantID, rate string) *rule.Rule {
	t.Helper()

	ppc := dec(rate)
	r, err := engine.CreateRule(context.Background(), &rule.Rule{
		TenantID:          tenantID,
		Name:              "per currency",
		Kind:              rule.KindPerCurrency,
		IsActive:          true,
		PointsPerCurrency: &ppc,
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	return r
}

func seedCampaign(t *testing.T, engine *loyalty.Engine, clock *fakeClock, c *campaign.Campaign) *campaign.Campaign {
	t.Helper()

	if c.StartDate.IsZero() {
		c.StartDate = clock.Now().Add(-time.Hour)
	}
	if c.EndDate.IsZero() {
		c.EndDate = clock.Now().Add(90 * 24 * time.Hour)
	}
	created, err := engine.CreateCampaign(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return created
}

func accrue(t *testing.T, engine *loyalty.Engine, userID, tenantID, orderValue string) *loyalty.AccrualResult {
	t.Helper()

	res, err := engine.Accrue(context.Background(), userID, tenantID, loyalty.AccrualInput{
		OrderValue: dec(orderValue),
		OrderID:    "order-" + orderValue,
	})
	if err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	return res
}

func TestAccrue(t *testing.T) {
	engine, _ := newEngine(t)
	seedPerCurrencyRule(t, engine, "acme", "1")
	ctx := context.Background()

	res := accrue(t, engine, "u1", "acme", "100.50")
	if !res.PointsEarned.Equal(dec("100.50")) {
		t.Fatalf("points earned = %s, want 100.50", res.PointsEarned)
	}
	if !res.NewBalance.Equal(dec("100.50")) {
		t.Fatalf("new balance = %s, want 100.50", res.NewBalance)
	}
	if res.Entry == nil || res.Entry.Kind != transaction.KindEarned {
		t.Fatalf("expected an earned ledger entry, got %+v", res.Entry)
	}
	if !res.Entry.BalanceAfter.Equal(dec("100.50")) {
		t.Fatalf("entry balanceAfter = %s, want 100.50", res.Entry.BalanceAfter)
	}

	bal, err := engine.GetBalance(ctx, "u1", "acme")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Balance.Equal(dec("100.50")) {
		t.Fatalf("stored balance = %s, want 100.50", bal.Balance)
	}
}

func TestAccrueSumsActiveRules(t *testing.T) {
	engine, _ := newEngine(t)
	seedPerCurrencyRule(t, engine, "acme", "1")

	flat := 10
	if _, err := engine.CreateRule(context.Background(), &rule.Rule{
		TenantID:          "acme",
		Name:              "welcome bonus",
		Kind:              rule.KindPerPurchase,
		IsActive:          true,
		PointsPerPurchase: &flat,
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	res := accrue(t, engine, "u1", "acme", "100.50")
	if !res.PointsEarned.Equal(dec("110.50")) {
		t.Fatalf("points earned = %s, want 110.50", res.PointsEarned)
	}
}

func TestAccrueNoActiveRules(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Accrue(context.Background(), "u1", "acme", loyalty.AccrualInput{
		OrderValue: dec("50"),
	})
	if !errors.Is(err, loyalty.ErrNoActiveRules) {
		t.Fatalf("err = %v, want ErrNoActiveRules", err)
	}
}

func TestAccrueValidation(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if _, err := engine.Accrue(ctx, "", "acme", loyalty.AccrualInput{OrderValue: dec("10")}); !errors.Is(err, loyalty.ErrInvalidInput) {
		t.Fatalf("empty user: err = %v, want ErrInvalidInput", err)
	}
	if _, err := engine.Accrue(ctx, "u1", "acme", loyalty.AccrualInput{OrderValue: dec("0")}); !errors.Is(err, loyalty.ErrInvalidInput) {
		t.Fatalf("zero order value: err = %v, want ErrInvalidInput", err)
	}
	if _, err := engine.Accrue(ctx, "u1", "acme", loyalty.AccrualInput{OrderValue: dec("-5")}); !errors.Is(err, loyalty.ErrInvalidInput) {
		t.Fatalf("negative order value: err = %v, want ErrInvalidInput", err)
	}
}

func TestAccrueSoonestExpiryWins(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	longDays, shortDays := 30, 10
	long := dec("1")
	if _, err := engine.CreateRule(ctx, &rule.Rule{
		TenantID:          "acme",
		Name:              "long expiry",
		Kind:              rule.KindPerCurrency,
		IsActive:          true,
		PointsPerCurrency: &long,
		PointsExpiryDays:  &longDays,
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	short := dec("0.5")
	if _, err := engine.CreateRule(ctx, &rule.Rule{
		TenantID:          "acme",
		Name:              "short expiry",
		Kind:              rule.KindPerCurrency,
		IsActive:          true,
		PointsPerCurrency: &short,
		PointsExpiryDays:  &shortDays,
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	res := accrue(t, engine, "u1", "acme", "100")
	if res.ExpiresAt == nil {
		t.Fatal("expected an expiry timestamp")
	}
	want := clock.Now().Add(time.Duration(shortDays) * 24 * time.Hour)
	if !res.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %s, want %s", res.ExpiresAt, want)
	}
}

func TestBalanceEqualsLedgerSum(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()
	seedPerCurrencyRule(t, engine, "acme", "1")

	accrue(t, engine, "u1", "acme", "120")
	accrue(t, engine, "u1", "acme", "33.33")

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:       "acme",
		Name:           "spend points",
		Type:           campaign.TypeRewardDiscount,
		PointsRequired: 100,
		DiscountValue:  dec("5"),
	})
	if _, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("50")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	entries, err := engine.GetHistory(ctx, "u1", "acme", 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.Amount)
	}

	bal, err := engine.GetBalance(ctx, "u1", "acme")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Balance.Equal(sum) {
		t.Fatalf("balance %s does not equal ledger sum %s", bal.Balance, sum)
	}
	if !bal.Balance.Equal(dec("53.33")) {
		t.Fatalf("balance = %s, want 53.33", bal.Balance)
	}
}

func TestEvaluateOrderDiscount(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	cap := dec("5")
	tests := []struct {
		name       string
		c          *campaign.Campaign
		orderValue string
		want       string
	}{
		{
			name: "percentage",
			c: &campaign.Campaign{
				TenantID:      "acme",
				Name:          "10 percent off",
				Type:          campaign.TypeOrderDiscount,
				DiscountType:  campaign.DiscountPercentage,
				DiscountValue: dec("10"),
			},
			orderValue: "100",
			want:       "10.00",
		},
		{
			name: "percentage clamped to cap",
			c: &campaign.Campaign{
				TenantID:       "acme",
				Name:           "10 percent capped",
				Type:           campaign.TypeOrderDiscount,
				DiscountType:   campaign.DiscountPercentage,
				DiscountValue:  dec("10"),
				MaxDiscountCap: &cap,
			},
			orderValue: "100",
			want:       "5.00",
		},
		{
			name: "fixed clamped to order value",
			c: &campaign.Campaign{
				TenantID:      "acme",
				Name:          "20 off",
				Type:          campaign.TypeOrderDiscount,
				DiscountType:  campaign.DiscountFixed,
				DiscountValue: dec("20"),
			},
			orderValue: "12.50",
			want:       "12.50",
		},
		{
			name: "percentage rounds half away from zero",
			c: &campaign.Campaign{
				TenantID:      "acme",
				Name:          "odd percentage",
				Type:          campaign.TypeOrderDiscount,
				DiscountType:  campaign.DiscountPercentage,
				DiscountValue: dec("7.5"),
			},
			orderValue: "33.33",
			want:       "2.50", // 2.49975 rounds up
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := seedCampaign(t, engine, clock, tt.c)
			d, err := engine.Evaluate(ctx, "acme", created.ID, "u1", dec(tt.orderValue))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if !d.Valid {
				t.Fatalf("decision invalid: %s (%s)", d.Code, d.Reason)
			}
			if !d.DiscountAmount.Equal(dec(tt.want)) {
				t.Fatalf("discount = %s, want %s", d.DiscountAmount, tt.want)
			}
		})
	}
}

func TestEvaluateRejections(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	t.Run("unknown campaign", func(t *testing.T) {
		d, err := engine.Evaluate(ctx, "acme", id.NewCampaignID(), "u1", dec("100"))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d.Valid || d.Code != loyalty.CodeCampaignNotFound {
			t.Fatalf("decision = %+v, want campaign_not_found", d)
		}
	})

	t.Run("inactive campaign", func(t *testing.T) {
		c := seedCampaign(t, engine, clock, &campaign.Campaign{
			TenantID:      "acme",
			Name:          "paused",
			Type:          campaign.TypeOrderDiscount,
			Status:        campaign.StatusInactive,
			DiscountType:  campaign.DiscountFixed,
			DiscountValue: dec("5"),
		})
		d, err := engine.Evaluate(ctx, "acme", c.ID, "u1", dec("100"))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d.Valid || d.Code != loyalty.CodeCampaignInactive {
			t.Fatalf("decision = %+v, want campaign_inactive", d)
		}
	})

	t.Run("outside window", func(t *testing.T) {
		c := seedCampaign(t, engine, clock, &campaign.Campaign{
			TenantID:      "acme",
			Name:          "future",
			Type:          campaign.TypeOrderDiscount,
			DiscountType:  campaign.DiscountFixed,
			DiscountValue: dec("5"),
			StartDate:     clock.Now().Add(24 * time.Hour),
			EndDate:       clock.Now().Add(48 * time.Hour),
		})
		d, err := engine.Evaluate(ctx, "acme", c.ID, "u1", dec("100"))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d.Valid || d.Code != loyalty.CodeCampaignInactive {
			t.Fatalf("decision = %+v, want campaign_inactive", d)
		}
	})

	t.Run("below min order value", func(t *testing.T) {
		min := dec("50")
		c := seedCampaign(t, engine, clock, &campaign.Campaign{
			TenantID:      "acme",
			Name:          "big orders only",
			Type:          campaign.TypeOrderDiscount,
			DiscountType:  campaign.DiscountFixed,
			DiscountValue: dec("5"),
			MinOrderValue: &min,
		})
		d, err := engine.Evaluate(ctx, "acme", c.ID, "u1", dec("49.99"))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d.Valid || d.Code != loyalty.CodeBelowMinOrderValue {
			t.Fatalf("decision = %+v, want below_min_order_value", d)
		}
	})

	t.Run("insufficient points", func(t *testing.T) {
		c := seedCampaign(t, engine, clock, &campaign.Campaign{
			TenantID:       "acme",
			Name:           "spend points",
			Type:           campaign.TypeRewardDiscount,
			PointsRequired: 1000,
			DiscountValue:  dec("10"),
		})
		d, err := engine.Evaluate(ctx, "acme", c.ID, "broke-user", dec("100"))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d.Valid || d.Code != loyalty.CodeInsufficientPoints {
			t.Fatalf("decision = %+v, want insufficient_points", d)
		}
		if d.PointsRequired != 1000 {
			t.Fatalf("pointsRequired = %d, want 1000", d.PointsRequired)
		}
	})
}

func TestEvaluateIsReadOnly(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()
	seedPerCurrencyRule(t, engine, "acme", "1")
	accrue(t, engine, "u1", "acme", "500")

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:       "acme",
		Name:           "spend points",
		Type:           campaign.TypeRewardDiscount,
		PointsRequired: 100,
		DiscountValue:  dec("5"),
	})

	for i := 0; i < 3; i++ {
		d, err := engine.Evaluate(ctx, "acme", c.ID, "u1", dec("100"))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !d.Valid {
			t.Fatalf("decision invalid: %s", d.Code)
		}
	}

	bal, err := engine.GetBalance(ctx, "u1", "acme")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Balance.Equal(dec("500")) {
		t.Fatalf("balance moved to %s after evaluate", bal.Balance)
	}
	got, err := engine.GetCampaign(ctx, c.ID, "acme")
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if got.CurrentUsageCount != 0 {
		t.Fatalf("usage count = %d after evaluate, want 0", got.CurrentUsageCount)
	}
}

func TestApplyRewardDiscountBoundary(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()
	seedPerCurrencyRule(t, engine, "acme", "1")

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:       "acme",
		Name:           "spend points",
		Type:           campaign.TypeRewardDiscount,
		PointsRequired: 1000,
		DiscountValue:  dec("25"),
	})

	accrue(t, engine, "exact", "acme", "1000")
	res, err := engine.Apply(ctx, "acme", c.ID, "exact", loyalty.RedemptionInput{OrderValue: dec("80")})
	if err != nil {
		t.Fatalf("Apply with exact balance: %v", err)
	}
	if !res.NewBalance.IsZero() {
		t.Fatalf("new balance = %s, want 0", res.NewBalance)
	}
	if !res.PointsUsed.Equal(dec("1000")) {
		t.Fatalf("points used = %s, want 1000", res.PointsUsed)
	}
	if !res.DiscountAmount.Equal(dec("25.00")) {
		t.Fatalf("discount = %s, want 25.00", res.DiscountAmount)
	}

	accrue(t, engine, "short", "acme", "999.99")
	_, err = engine.Apply(ctx, "acme", c.ID, "short", loyalty.RedemptionInput{OrderValue: dec("80")})
	if !errors.Is(err, loyalty.ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}

	bal, err := engine.GetBalance(ctx, "short", "acme")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Balance.Equal(dec("999.99")) {
		t.Fatalf("rejected apply moved the balance to %s", bal.Balance)
	}
}

func TestApplyGlobalLimitUnderConcurrency(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	const limit = 3
	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:         "acme",
		Name:             "limited run",
		Type:             campaign.TypeOrderDiscount,
		DiscountType:     campaign.DiscountFixed,
		DiscountValue:    dec("5"),
		GlobalUsageLimit: limit,
	})

	const attempts = 20
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("100")})
		}(i)
	}
	wg.Wait()

	var ok, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, loyalty.ErrGlobalLimitReached):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != limit {
		t.Fatalf("completed = %d, want exactly %d", ok, limit)
	}
	if limited != attempts-limit {
		t.Fatalf("limit rejections = %d, want %d", limited, attempts-limit)
	}

	got, err := engine.GetCampaign(ctx, c.ID, "acme")
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if got.CurrentUsageCount != limit {
		t.Fatalf("usage count = %d, want %d", got.CurrentUsageCount, limit)
	}
}

func TestApplyConcurrentRewardsCannotOverspend(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()
	seedPerCurrencyRule(t, engine, "acme", "1")
	accrue(t, engine, "u1", "acme", "1000")

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:       "acme",
		Name:           "600 point reward",
		Type:           campaign.TypeRewardDiscount,
		PointsRequired: 600,
		DiscountValue:  dec("15"),
	})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("100")})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	if ok != 1 {
		t.Fatalf("completed = %d, want exactly 1", ok)
	}

	bal, err := engine.GetBalance(ctx, "u1", "acme")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Balance.Equal(dec("400")) {
		t.Fatalf("final balance = %s, want 400", bal.Balance)
	}
}

func TestApplyPerUserLimit(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:          "acme",
		Name:              "once each",
		Type:              campaign.TypeOrderDiscount,
		DiscountType:      campaign.DiscountFixed,
		DiscountValue:     dec("5"),
		UsageLimitPerUser: 1,
	})

	if _, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("100")}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("100")}); !errors.Is(err, loyalty.ErrUserLimitReached) {
		t.Fatalf("second apply: err = %v, want ErrUserLimitReached", err)
	}
	// A different user is unaffected.
	if _, err := engine.Apply(ctx, "acme", c.ID, "u2", loyalty.RedemptionInput{OrderValue: dec("100")}); err != nil {
		t.Fatalf("other user apply: %v", err)
	}
}

func TestApplyCooldown(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:      "acme",
		Name:          "daily deal",
		Type:          campaign.TypeOrderDiscount,
		DiscountType:  campaign.DiscountFixed,
		DiscountValue: dec("5"),
		CooldownHours: 24,
	})

	if _, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("100")}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	clock.Advance(time.Hour)
	if _, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("100")}); !errors.Is(err, loyalty.ErrCooldownActive) {
		t.Fatalf("apply inside cooldown: err = %v, want ErrCooldownActive", err)
	}

	clock.Advance(24 * time.Hour)
	if _, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("100")}); err != nil {
		t.Fatalf("apply after cooldown: %v", err)
	}
}

func TestApplyRecordsRedemption(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:      "acme",
		Name:          "10 percent",
		Type:          campaign.TypeOrderDiscount,
		DiscountType:  campaign.DiscountPercentage,
		DiscountValue: dec("10"),
	})

	res, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{
		OrderValue: dec("250"),
		OrderID:    "order-77",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.DiscountAmount.Equal(dec("25.00")) {
		t.Fatalf("discount = %s, want 25.00", res.DiscountAmount)
	}

	history, err := engine.GetRedemptionHistory(ctx, "u1", "acme", 0)
	if err != nil {
		t.Fatalf("GetRedemptionHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("redemption history len = %d, want 1", len(history))
	}
	r := history[0]
	if r.ID != res.RedemptionID || r.OrderID != "order-77" {
		t.Fatalf("unexpected redemption record: %+v", r)
	}
	if !r.OrderValue.Equal(dec("250")) || !r.DiscountAmount.Equal(dec("25.00")) {
		t.Fatalf("record amounts = %s / %s", r.OrderValue, r.DiscountAmount)
	}
}

func TestApplyRejectionLeavesNoRecord(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	min := dec("100")
	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:      "acme",
		Name:          "big orders",
		Type:          campaign.TypeOrderDiscount,
		DiscountType:  campaign.DiscountFixed,
		DiscountValue: dec("5"),
		MinOrderValue: &min,
	})

	_, err := engine.Apply(ctx, "acme", c.ID, "u1", loyalty.RedemptionInput{OrderValue: dec("10")})
	if !errors.Is(err, loyalty.ErrBelowMinOrderValue) {
		t.Fatalf("err = %v, want ErrBelowMinOrderValue", err)
	}

	history, err := engine.GetRedemptionHistory(ctx, "u1", "acme", 0)
	if err != nil {
		t.Fatalf("GetRedemptionHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected apply persisted %d records", len(history))
	}
	got, err := engine.GetCampaign(ctx, c.ID, "acme")
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if got.CurrentUsageCount != 0 {
		t.Fatalf("rejected apply moved usage count to %d", got.CurrentUsageCount)
	}
}

func TestCampaignValidation(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	_, err := engine.CreateCampaign(ctx, &campaign.Campaign{
		TenantID:      "acme",
		Name:          "inverted window",
		Type:          campaign.TypeOrderDiscount,
		DiscountType:  campaign.DiscountFixed,
		DiscountValue: dec("5"),
		StartDate:     clock.Now().Add(48 * time.Hour),
		EndDate:       clock.Now().Add(24 * time.Hour),
	})
	if !errors.Is(err, loyalty.ErrInvalidDateRange) {
		t.Fatalf("err = %v, want ErrInvalidDateRange", err)
	}

	_, err = engine.CreateCampaign(ctx, &campaign.Campaign{
		TenantID:      "acme",
		Name:          "bad type",
		Type:          campaign.Type("mystery"),
		DiscountValue: dec("5"),
		StartDate:     clock.Now(),
		EndDate:       clock.Now().Add(24 * time.Hour),
	})
	if !errors.Is(err, loyalty.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateCampaignRevalidatesWindow(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	c := seedCampaign(t, engine, clock, &campaign.Campaign{
		TenantID:      "acme",
		Name:          "movable",
		Type:          campaign.TypeOrderDiscount,
		DiscountType:  campaign.DiscountFixed,
		DiscountValue: dec("5"),
	})

	badStart := c.EndDate.Add(time.Hour)
	if _, err := engine.UpdateCampaign(ctx, c.ID, "acme", campaign.Update{StartDate: &badStart}); !errors.Is(err, loyalty.ErrInvalidDateRange) {
		t.Fatalf("err = %v, want ErrInvalidDateRange", err)
	}

	name := "renamed"
	updated, err := engine.UpdateCampaign(ctx, c.ID, "acme", campaign.Update{Name: &name})
	if err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("name = %q, want renamed", updated.Name)
	}
}

func TestRuleValidation(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	_, err := engine.CreateRule(ctx, &rule.Rule{
		TenantID: "acme",
		Name:     "unconfigured",
		Kind:     rule.KindPerCurrency,
		IsActive: true,
	})
	if !errors.Is(err, loyalty.ErrRuleNotConfigured) {
		t.Fatalf("err = %v, want ErrRuleNotConfigured", err)
	}

	r := seedPerCurrencyRule(t, engine, "acme", "2")

	// A patch that strips the rate must be rejected before persisting.
	var noRate decimal.Decimal
	useCustom := false
	if _, err := engine.UpdateRule(ctx, r.ID, "acme", rule.Update{
		PointsPerCurrency: &noRate,
		UseCustomLogic:    &useCustom,
	}); !errors.Is(err, loyalty.ErrRuleNotConfigured) {
		t.Fatalf("err = %v, want ErrRuleNotConfigured", err)
	}

	active := false
	updated, err := engine.UpdateRule(ctx, r.ID, "acme", rule.Update{IsActive: &active})
	if err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if updated.IsActive {
		t.Fatal("rule still active after deactivation")
	}
}

func TestInactiveRulesAreIgnored(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	r := seedPerCurrencyRule(t, engine, "acme", "1")
	active := false
	if _, err := engine.UpdateRule(ctx, r.ID, "acme", rule.Update{IsActive: &active}); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}

	_, err := engine.Accrue(ctx, "u1", "acme", loyalty.AccrualInput{OrderValue: dec("100")})
	if !errors.Is(err, loyalty.ErrNoActiveRules) {
		t.Fatalf("err = %v, want ErrNoActiveRules", err)
	}
}
