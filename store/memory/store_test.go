package memory

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
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestCampaign(tenantID string) *campaign.Campaign {
	now := time.Now().UTC()
	return &campaign.Campaign{
		Entity:        types.NewEntity(),
		ID:            id.NewCampaignID(),
		TenantID:      tenantID,
		Name:          "spring promo",
		Type:          campaign.TypeOrderDiscount,
		Status:        campaign.StatusActive,
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		DiscountType:  campaign.DiscountPercentage,
		DiscountValue: dec("10"),
	}
}

func TestGetBalanceReturnsZeroWhenAbsent(t *testing.T) {
	s := New()
	b, err := s.GetBalance(context.Background(), "user-1", "tenant-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !b.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", b.Balance)
	}
	if b.UserID != "user-1" || b.TenantID != "tenant-1" {
		t.Fatalf("unexpected identity on zero balance: %+v", b)
	}
}

func TestApplyBalanceDelta(t *testing.T) {
	tests := []struct {
		name    string
		seed    string // empty means no existing balance
		delta   string
		want    string
		wantErr error
	}{
		{name: "credit creates account", delta: "10.50", want: "10.50"},
		{name: "debit without account", delta: "-5", wantErr: loyalty.ErrInsufficientBalance},
		{name: "credit on existing", seed: "100", delta: "25.25", want: "125.25"},
		{name: "debit within balance", seed: "100", delta: "-40", want: "60"},
		{name: "debit to exactly zero", seed: "100", delta: "-100", want: "0"},
		{name: "overdraft rejected", seed: "100", delta: "-100.01", wantErr: loyalty.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			ctx := context.Background()

			if tt.seed != "" {
				err := s.RunInTx(ctx, func(tx store.Tx) error {
					_, err := tx.ApplyBalanceDelta(ctx, "u", "t", dec(tt.seed), nil)
					return err
				})
				if err != nil {
					t.Fatalf("seed: %v", err)
				}
			}

			err := s.RunInTx(ctx, func(tx store.Tx) error {
				_, err := tx.ApplyBalanceDelta(ctx, "u", "t", dec(tt.delta), nil)
				return err
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RunInTx: %v", err)
			}

			b, err := s.GetBalance(ctx, "u", "t")
			if err != nil {
				t.Fatalf("GetBalance: %v", err)
			}
			if !b.Balance.Equal(dec(tt.want)) {
				t.Fatalf("balance = %s, want %s", b.Balance, tt.want)
			}
		})
	}
}

func TestFailedUnitLeavesNoTrace(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.ApplyBalanceDelta(ctx, "u", "t", dec("50"), nil); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &transaction.Entry{
			Entity:       types.NewEntity(),
			ID:           id.NewTransactionID(),
			UserID:       "u",
			TenantID:     "t",
			Kind:         transaction.KindEarned,
			Amount:       dec("50"),
			BalanceAfter: dec("50"),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	b, _ := s.GetBalance(ctx, "u", "t")
	if !b.Balance.IsZero() {
		t.Fatalf("rolled-back balance should be zero, got %s", b.Balance)
	}
	history, _ := s.ListTransactions(ctx, "u", "t", 10)
	if len(history) != 0 {
		t.Fatalf("rolled-back unit left %d entries", len(history))
	}
}

func TestStagedWritesVisibleInsideUnit(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newTestCampaign("t")
	if err := s.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	err := s.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.ApplyBalanceDelta(ctx, "u", "t", dec("30"), nil); err != nil {
			return err
		}
		b, err := tx.GetBalance(ctx, "u", "t")
		if err != nil {
			return err
		}
		if !b.Balance.Equal(dec("30")) {
			t.Fatalf("staged balance = %s, want 30", b.Balance)
		}

		if err := tx.IncrementCampaignUsage(ctx, c.ID); err != nil {
			return err
		}
		view, err := tx.GetCampaignForUpdate(ctx, c.ID, "t")
		if err != nil {
			return err
		}
		if view.CurrentUsageCount != 1 {
			t.Fatalf("staged usage = %d, want 1", view.CurrentUsageCount)
		}

		// Committed state is untouched while the unit is open.
		committed, err := s.GetCampaign(ctx, c.ID, "t")
		if err != nil {
			return err
		}
		if committed.CurrentUsageCount != 0 {
			t.Fatalf("committed usage moved early: %d", committed.CurrentUsageCount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	committed, err := s.GetCampaign(ctx, c.ID, "t")
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if committed.CurrentUsageCount != 1 {
		t.Fatalf("committed usage = %d, want 1", committed.CurrentUsageCount)
	}
}

func TestConcurrentBalanceDeltas(t *testing.T) {
	s := New()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(tx store.Tx) error {
				_, err := tx.ApplyBalanceDelta(ctx, "u", "t", dec("1"), nil)
				return err
			})
		}()
	}
	wg.Wait()

	b, err := s.GetBalance(ctx, "u", "t")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !b.Balance.Equal(dec("50")) {
		t.Fatalf("balance = %s, want 50", b.Balance)
	}
}

func TestTransactionHistoryOrderAndClamp(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		amount := decimal.NewFromInt(int64(i + 1))
		err := s.RunInTx(ctx, func(tx store.Tx) error {
			b, err := tx.ApplyBalanceDelta(ctx, "u", "t", amount, nil)
			if err != nil {
				return err
			}
			return tx.AppendTransaction(ctx, &transaction.Entry{
				Entity:       types.NewEntity(),
				ID:           id.NewTransactionID(),
				UserID:       "u",
				TenantID:     "t",
				Kind:         transaction.KindEarned,
				Amount:       amount,
				BalanceAfter: b.Balance,
			})
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	history, err := s.ListTransactions(ctx, "u", "t", 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(history) != transaction.HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(history), transaction.HistoryLimit)
	}
	// Newest first.
	if !history[0].Amount.Equal(dec("120")) {
		t.Fatalf("first entry amount = %s, want 120", history[0].Amount)
	}
	if !history[len(history)-1].Amount.Equal(dec("21")) {
		t.Fatalf("last entry amount = %s, want 21", history[len(history)-1].Amount)
	}

	short, err := s.ListTransactions(ctx, "u", "t", 5)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(short) != 5 {
		t.Fatalf("short history length = %d, want 5", len(short))
	}
}

func TestRedemptionQueries(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newTestCampaign("t")
	if err := s.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	record := func(status redemption.Status) {
		err := s.RunInTx(ctx, func(tx store.Tx) error {
			return tx.CreateRedemption(ctx, &redemption.Redemption{
				Entity:         types.NewEntity(),
				ID:             id.NewRedemptionID(),
				UserID:         "u",
				TenantID:       "t",
				CampaignID:     c.ID,
				Status:         status,
				DiscountAmount: dec("5"),
				OrderValue:     dec("50"),
			})
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	record(redemption.StatusCompleted)
	record(redemption.StatusFailed)
	record(redemption.StatusCompleted)

	count, err := s.CountCompletedRedemptions(ctx, c.ID, "u")
	if err != nil {
		t.Fatalf("CountCompletedRedemptions: %v", err)
	}
	if count != 2 {
		t.Fatalf("completed count = %d, want 2", count)
	}

	latest, err := s.LatestCompletedRedemption(ctx, c.ID, "u")
	if err != nil {
		t.Fatalf("LatestCompletedRedemption: %v", err)
	}
	if latest == nil || latest.Status != redemption.StatusCompleted {
		t.Fatalf("unexpected latest redemption: %+v", latest)
	}

	all, err := s.ListRedemptions(ctx, "u", "t", 10)
	if err != nil {
		t.Fatalf("ListRedemptions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("redemption history length = %d, want 3", len(all))
	}
	if all[0].ID.String() != latest.ID.String() {
		t.Fatalf("history not newest first")
	}
}

func TestRuleCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	ppc := dec("0.10")
	r := &rule.Rule{
		Entity:            types.NewEntity(),
		ID:                id.NewRuleID(),
		TenantID:          "t",
		Name:              "base earn",
		Kind:              rule.KindPerCurrency,
		IsActive:          true,
		PointsPerCurrency: &ppc,
	}
	if err := s.CreateRule(ctx, r); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	got, err := s.GetRule(ctx, r.ID, "t")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.Name != "base earn" {
		t.Fatalf("GetRule name = %q", got.Name)
	}
	if _, err := s.GetRule(ctx, r.ID, "other-tenant"); !errors.Is(err, loyalty.ErrRuleNotFound) {
		t.Fatalf("cross-tenant read should miss, got %v", err)
	}

	inactive := false
	updated, err := s.UpdateRule(ctx, r.ID, "t", rule.Update{IsActive: &inactive})
	if err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if updated.IsActive {
		t.Fatal("rule still active after update")
	}

	active, err := s.ListActiveRules(ctx, "t")
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active rules = %d, want 0", len(active))
	}

	if err := s.DeleteRule(ctx, r.ID, "t"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if err := s.DeleteRule(ctx, r.ID, "t"); !errors.Is(err, loyalty.ErrRuleNotFound) {
		t.Fatalf("double delete should miss, got %v", err)
	}
}

func TestCampaignCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newTestCampaign("t")
	if err := s.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	name := "renamed"
	updated, err := s.UpdateCampaign(ctx, c.ID, "t", campaign.Update{Name: &name})
	if err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("name = %q", updated.Name)
	}

	if _, err := s.UpdateCampaign(ctx, c.ID, "other", campaign.Update{Name: &name}); !errors.Is(err, loyalty.ErrCampaignNotFound) {
		t.Fatalf("cross-tenant update should miss, got %v", err)
	}

	if err := s.DeleteCampaign(ctx, c.ID, "t"); err != nil {
		t.Fatalf("DeleteCampaign: %v", err)
	}
	if _, err := s.GetCampaign(ctx, c.ID, "t"); !errors.Is(err, loyalty.ErrCampaignNotFound) {
		t.Fatalf("deleted campaign still readable, got %v", err)
	}
}

func TestRunInTxHonorsCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunInTx(ctx, func(tx store.Tx) error {
		_, err := tx.ApplyBalanceDelta(ctx, "u", "t", dec("10"), nil)
		return err
	})
	if err == nil {
		t.Fatal("expected context error")
	}

	b, _ := s.GetBalance(context.Background(), "u", "t")
	if !b.Balance.IsZero() {
		t.Fatalf("cancelled unit committed: %s", b.Balance)
	}
}
