// Package memory provides an in-memory store implementation, primarily
// for testing and prototyping.
//
// Atomic units stage their writes and apply them only on commit, so a
// failed unit leaves no trace. Balance and campaign rows are guarded by
// per-key mutexes: units touching different (user, tenant) pairs or
// different campaigns never block each other. Units always lock the
// campaign before the balance, which rules out lock cycles.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

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

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store is the in-memory backend.
type Store struct {
	mu sync.RWMutex

	// Balance storage, keyed by account.Key(userID, tenantID).
	balances map[string]*account.Balance

	// Ledger entries in commit order.
	entries []*transaction.Entry

	// Rule and campaign storage, keyed by id string.
	rules     map[string]*rule.Rule
	campaigns map[string]*campaign.Campaign

	// Redemption records in commit order.
	redemptions []*redemption.Redemption

	locks *keyMutex
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		balances:  make(map[string]*account.Balance),
		rules:     make(map[string]*rule.Rule),
		campaigns: make(map[string]*campaign.Campaign),
		locks:     newKeyMutex(),
	}
}

// Migrate is a no-op for the memory backend.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory backend.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory backend.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Reader (committed state)
// ──────────────────────────────────────────────────

func (s *Store) GetBalance(_ context.Context, userID, tenantID string) (*account.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[account.Key(userID, tenantID)]; ok {
		return b.Clone(), nil
	}
	return account.Zero(userID, tenantID), nil
}

func (s *Store) ListTransactions(_ context.Context, userID, tenantID string, limit int) ([]*transaction.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = transaction.ClampLimit(limit)
	result := make([]*transaction.Entry, 0)
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		e := s.entries[i]
		if e.UserID == userID && e.TenantID == tenantID {
			result = append(result, e.Clone())
		}
	}
	return result, nil
}

func (s *Store) ListActiveRules(_ context.Context, tenantID string) ([]*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rule.Rule, 0)
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.IsActive {
			result = append(result, r.Clone())
		}
	}
	sortByCreatedDesc(result, func(r *rule.Rule) time.Time { return r.CreatedAt })
	return result, nil
}

func (s *Store) GetRule(_ context.Context, ruleID id.RuleID, tenantID string) (*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.rules[ruleID.String()]; ok && r.TenantID == tenantID {
		return r.Clone(), nil
	}
	return nil, loyalty.ErrRuleNotFound
}

func (s *Store) ListRules(_ context.Context, tenantID string) ([]*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rule.Rule, 0)
	for _, r := range s.rules {
		if r.TenantID == tenantID {
			result = append(result, r.Clone())
		}
	}
	sortByCreatedDesc(result, func(r *rule.Rule) time.Time { return r.CreatedAt })
	return result, nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.campaignLocked(campaignID, tenantID)
}

// campaignLocked requires s.mu to be held.
func (s *Store) campaignLocked(campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	if c, ok := s.campaigns[campaignID.String()]; ok && c.TenantID == tenantID {
		return c.Clone(), nil
	}
	return nil, loyalty.ErrCampaignNotFound
}

func (s *Store) ListCampaigns(_ context.Context, tenantID string) ([]*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*campaign.Campaign, 0)
	for _, c := range s.campaigns {
		if c.TenantID == tenantID {
			result = append(result, c.Clone())
		}
	}
	sortByCreatedDesc(result, func(c *campaign.Campaign) time.Time { return c.CreatedAt })
	return result, nil
}

func (s *Store) CountCompletedRedemptions(_ context.Context, campaignID id.CampaignID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.redemptions {
		if r.CampaignID.String() == campaignID.String() && r.UserID == userID && r.Status == redemption.StatusCompleted {
			count++
		}
	}
	return count, nil
}

func (s *Store) LatestCompletedRedemption(_ context.Context, campaignID id.CampaignID, userID string) (*redemption.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.redemptions) - 1; i >= 0; i-- {
		r := s.redemptions[i]
		if r.CampaignID.String() == campaignID.String() && r.UserID == userID && r.Status == redemption.StatusCompleted {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (s *Store) ListRedemptions(_ context.Context, userID, tenantID string, limit int) ([]*redemption.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = redemption.ClampLimit(limit)
	result := make([]*redemption.Redemption, 0)
	for i := len(s.redemptions) - 1; i >= 0 && len(result) < limit; i-- {
		r := s.redemptions[i]
		if r.UserID == userID && r.TenantID == tenantID {
			result = append(result, r.Clone())
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Administration writes
// ──────────────────────────────────────────────────

func (s *Store) CreateRule(_ context.Context, r *rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[r.ID.String()] = r.Clone()
	return nil
}

func (s *Store) UpdateRule(_ context.Context, ruleID id.RuleID, tenantID string, upd rule.Update) (*rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[ruleID.String()]
	if !ok || r.TenantID != tenantID {
		return nil, loyalty.ErrRuleNotFound
	}

	patched := r.Clone()
	upd.ApplyTo(patched)
	patched.Touch()
	s.rules[ruleID.String()] = patched
	return patched.Clone(), nil
}

func (s *Store) DeleteRule(_ context.Context, ruleID id.RuleID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[ruleID.String()]
	if !ok || r.TenantID != tenantID {
		return loyalty.ErrRuleNotFound
	}
	delete(s.rules, ruleID.String())
	return nil
}

func (s *Store) CreateCampaign(_ context.Context, c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.campaigns[c.ID.String()] = c.Clone()
	return nil
}

func (s *Store) UpdateCampaign(_ context.Context, campaignID id.CampaignID, tenantID string, upd campaign.Update) (*campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID.String()]
	if !ok || c.TenantID != tenantID {
		return nil, loyalty.ErrCampaignNotFound
	}

	patched := c.Clone()
	upd.ApplyTo(patched)
	patched.Touch()
	s.campaigns[campaignID.String()] = patched
	return patched.Clone(), nil
}

func (s *Store) DeleteCampaign(_ context.Context, campaignID id.CampaignID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID.String()]
	if !ok || c.TenantID != tenantID {
		return loyalty.ErrCampaignNotFound
	}
	delete(s.campaigns, campaignID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Atomic unit
// ──────────────────────────────────────────────────

// RunInTx executes fn as one atomic unit. Writes are staged in the unit
// and applied under the store mutex only when fn succeeds; key locks are
// released on every exit path.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	unit := &memTx{
		s:              s,
		heldSet:        make(map[string]bool),
		stagedBalances: make(map[string]*account.Balance),
		stagedUsage:    make(map[string]int),
	}
	defer unit.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(unit); err != nil {
		return err
	}
	// A unit cancelled before commit rolls back fully.
	if err := ctx.Err(); err != nil {
		return err
	}

	unit.commit()
	return nil
}

// memTx is one in-flight atomic unit.
type memTx struct {
	s *Store

	held    []string
	heldSet map[string]bool

	stagedBalances    map[string]*account.Balance
	stagedEntries     []*transaction.Entry
	stagedRedemptions []*redemption.Redemption
	stagedUsage       map[string]int

	done bool
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) acquire(key string) {
	if t.heldSet[key] {
		return
	}
	t.s.locks.lock(key)
	t.held = append(t.held, key)
	t.heldSet[key] = true
}

func (t *memTx) release() {
	if t.done {
		return
	}
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		t.s.locks.unlock(t.held[i])
	}
}

func (t *memTx) commit() {
	t.s.mu.Lock()
	for key, b := range t.stagedBalances {
		t.s.balances[key] = b
	}
	t.s.entries = append(t.s.entries, t.stagedEntries...)
	t.s.redemptions = append(t.s.redemptions, t.stagedRedemptions...)
	for campaignKey, n := range t.stagedUsage {
		if c, ok := t.s.campaigns[campaignKey]; ok {
			c.CurrentUsageCount += n
			c.Touch()
		}
	}
	t.s.mu.Unlock()

	t.release()
}

func (t *memTx) ApplyBalanceDelta(_ context.Context, userID, tenantID string, delta decimal.Decimal, expiresAt *time.Time) (*account.Balance, error) {
	key := account.Key(userID, tenantID)
	t.acquire("balance:" + key)

	current := t.stagedBalances[key]
	if current == nil {
		t.s.mu.RLock()
		if committed, ok := t.s.balances[key]; ok {
			current = committed.Clone()
		}
		t.s.mu.RUnlock()
	}

	if current == nil {
		if delta.IsNegative() {
			return nil, loyalty.ErrInsufficientBalance
		}
		current = &account.Balance{
			Entity:   types.NewEntity(),
			ID:       id.NewAccountID(),
			UserID:   userID,
			TenantID: tenantID,
			Balance:  decimal.Zero,
		}
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
	current.Touch()

	t.stagedBalances[key] = current
	return current.Clone(), nil
}

func (t *memTx) AppendTransaction(_ context.Context, e *transaction.Entry) error {
	t.stagedEntries = append(t.stagedEntries, e.Clone())
	return nil
}

func (t *memTx) GetCampaignForUpdate(_ context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	t.acquire("campaign:" + campaignID.String())

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.campaignView(campaignID, tenantID)
}

// campaignView requires s.mu to be held; it layers staged usage
// increments over the committed row.
func (t *memTx) campaignView(campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	c, err := t.s.campaignLocked(campaignID, tenantID)
	if err != nil {
		return nil, err
	}
	c.CurrentUsageCount += t.stagedUsage[campaignID.String()]
	return c, nil
}

func (t *memTx) IncrementCampaignUsage(_ context.Context, campaignID id.CampaignID) error {
	t.acquire("campaign:" + campaignID.String())

	t.s.mu.RLock()
	_, ok := t.s.campaigns[campaignID.String()]
	t.s.mu.RUnlock()
	if !ok {
		return loyalty.ErrCampaignNotFound
	}

	t.stagedUsage[campaignID.String()]++
	return nil
}

func (t *memTx) CreateRedemption(_ context.Context, r *redemption.Redemption) error {
	t.stagedRedemptions = append(t.stagedRedemptions, r.Clone())
	return nil
}

// ──────────────────────────────────────────────────
// Reader inside the unit (staged state layered over committed)
// ──────────────────────────────────────────────────

func (t *memTx) GetBalance(ctx context.Context, userID, tenantID string) (*account.Balance, error) {
	if b, ok := t.stagedBalances[account.Key(userID, tenantID)]; ok {
		return b.Clone(), nil
	}
	return t.s.GetBalance(ctx, userID, tenantID)
}

func (t *memTx) ListTransactions(ctx context.Context, userID, tenantID string, limit int) ([]*transaction.Entry, error) {
	return t.s.ListTransactions(ctx, userID, tenantID, limit)
}

func (t *memTx) ListActiveRules(ctx context.Context, tenantID string) ([]*rule.Rule, error) {
	return t.s.ListActiveRules(ctx, tenantID)
}

func (t *memTx) GetRule(ctx context.Context, ruleID id.RuleID, tenantID string) (*rule.Rule, error) {
	return t.s.GetRule(ctx, ruleID, tenantID)
}

func (t *memTx) ListRules(ctx context.Context, tenantID string) ([]*rule.Rule, error) {
	return t.s.ListRules(ctx, tenantID)
}

func (t *memTx) GetCampaign(_ context.Context, campaignID id.CampaignID, tenantID string) (*campaign.Campaign, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.campaignView(campaignID, tenantID)
}

func (t *memTx) ListCampaigns(ctx context.Context, tenantID string) ([]*campaign.Campaign, error) {
	return t.s.ListCampaigns(ctx, tenantID)
}

func (t *memTx) CountCompletedRedemptions(ctx context.Context, campaignID id.CampaignID, userID string) (int, error) {
	count, err := t.s.CountCompletedRedemptions(ctx, campaignID, userID)
	if err != nil {
		return 0, err
	}
	for _, r := range t.stagedRedemptions {
		if r.CampaignID.String() == campaignID.String() && r.UserID == userID && r.Status == redemption.StatusCompleted {
			count++
		}
	}
	return count, nil
}

func (t *memTx) LatestCompletedRedemption(ctx context.Context, campaignID id.CampaignID, userID string) (*redemption.Redemption, error) {
	for i := len(t.stagedRedemptions) - 1; i >= 0; i-- {
		r := t.stagedRedemptions[i]
		if r.CampaignID.String() == campaignID.String() && r.UserID == userID && r.Status == redemption.StatusCompleted {
			return r.Clone(), nil
		}
	}
	return t.s.LatestCompletedRedemption(ctx, campaignID, userID)
}

func (t *memTx) ListRedemptions(ctx context.Context, userID, tenantID string, limit int) ([]*redemption.Redemption, error) {
	return t.s.ListRedemptions(ctx, userID, tenantID, limit)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// keyMutex hands out one mutex per key, so independent balances and
// campaigns never contend.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (k *keyMutex) lock(key string)   { k.get(key).Lock() }
func (k *keyMutex) unlock(key string) { k.get(key).Unlock() }

func sortByCreatedDesc[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
