package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/campaign"
	"github.com/xraph/loyalty/redemption"
	"github.com/xraph/loyalty/rule"
	"github.com/xraph/loyalty/transaction"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onPointsAccrued      []OnPointsAccrued
	onPointsDeducted     []OnPointsDeducted
	onRedemptionApplied  []OnRedemptionApplied
	onRedemptionRejected []OnRedemptionRejected
	onUsageLimitReached  []OnUsageLimitReached
	onCampaignCreated    []OnCampaignCreated
	onCampaignUpdated    []OnCampaignUpdated
	onCampaignDeleted    []OnCampaignDeleted
	onRuleCreated        []OnRuleCreated
	onRuleUpdated        []OnRuleUpdated
	accrualStrategies    map[string]AccrualStrategy
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:            slog.Default(),
		accrualStrategies: make(map[string]AccrualStrategy),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPointsAccrued); ok {
		r.onPointsAccrued = append(r.onPointsAccrued, v)
	}
	if v, ok := p.(OnPointsDeducted); ok {
		r.onPointsDeducted = append(r.onPointsDeducted, v)
	}
	if v, ok := p.(OnRedemptionApplied); ok {
		r.onRedemptionApplied = append(r.onRedemptionApplied, v)
	}
	if v, ok := p.(OnRedemptionRejected); ok {
		r.onRedemptionRejected = append(r.onRedemptionRejected, v)
	}
	if v, ok := p.(OnUsageLimitReached); ok {
		r.onUsageLimitReached = append(r.onUsageLimitReached, v)
	}
	if v, ok := p.(OnCampaignCreated); ok {
		r.onCampaignCreated = append(r.onCampaignCreated, v)
	}
	if v, ok := p.(OnCampaignUpdated); ok {
		r.onCampaignUpdated = append(r.onCampaignUpdated, v)
	}
	if v, ok := p.(OnCampaignDeleted); ok {
		r.onCampaignDeleted = append(r.onCampaignDeleted, v)
	}
	if v, ok := p.(OnRuleCreated); ok {
		r.onRuleCreated = append(r.onRuleCreated, v)
	}
	if v, ok := p.(OnRuleUpdated); ok {
		r.onRuleUpdated = append(r.onRuleUpdated, v)
	}
	if v, ok := p.(AccrualStrategy); ok {
		r.accrualStrategies[v.StrategyName()] = v
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnPointsAccrued)(nil)).Elem(), "OnPointsAccrued")
	checkInterface(reflect.TypeOf((*OnPointsDeducted)(nil)).Elem(), "OnPointsDeducted")
	checkInterface(reflect.TypeOf((*OnRedemptionApplied)(nil)).Elem(), "OnRedemptionApplied")
	checkInterface(reflect.TypeOf((*OnRedemptionRejected)(nil)).Elem(), "OnRedemptionRejected")
	checkInterface(reflect.TypeOf((*OnUsageLimitReached)(nil)).Elem(), "OnUsageLimitReached")
	checkInterface(reflect.TypeOf((*OnCampaignCreated)(nil)).Elem(), "OnCampaignCreated")
	checkInterface(reflect.TypeOf((*OnRuleCreated)(nil)).Elem(), "OnRuleCreated")
	checkInterface(reflect.TypeOf((*AccrualStrategy)(nil)).Elem(), "AccrualStrategy")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// GetAccrualStrategy returns an accrual strategy by name.
func (r *Registry) GetAccrualStrategy(name string) AccrualStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accrualStrategies[name]
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPointsAccrued emits a points accrued event.
func (r *Registry) EmitPointsAccrued(ctx context.Context, entry *transaction.Entry, balance *account.Balance) {
	r.mu.RLock()
	plugins := r.onPointsAccrued
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPointsAccrued(ctx, entry, balance)
		}); err != nil {
			r.logger.Warn("plugin OnPointsAccrued failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPointsDeducted emits a points deducted event.
func (r *Registry) EmitPointsDeducted(ctx context.Context, entry *transaction.Entry, balance *account.Balance) {
	r.mu.RLock()
	plugins := r.onPointsDeducted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPointsDeducted(ctx, entry, balance)
		}); err != nil {
			r.logger.Warn("plugin OnPointsDeducted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemptionApplied emits a redemption applied event.
func (r *Registry) EmitRedemptionApplied(ctx context.Context, rd *redemption.Redemption) {
	r.mu.RLock()
	plugins := r.onRedemptionApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemptionApplied(ctx, rd)
		}); err != nil {
			r.logger.Warn("plugin OnRedemptionApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemptionRejected emits a redemption rejected event.
func (r *Registry) EmitRedemptionRejected(ctx context.Context, userID, tenantID string, d *redemption.Decision) {
	r.mu.RLock()
	plugins := r.onRedemptionRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemptionRejected(ctx, userID, tenantID, d)
		}); err != nil {
			r.logger.Warn("plugin OnRedemptionRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUsageLimitReached emits a campaign usage limit reached event.
func (r *Registry) EmitUsageLimitReached(ctx context.Context, c *campaign.Campaign) {
	r.mu.RLock()
	plugins := r.onUsageLimitReached
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageLimitReached(ctx, c)
		}); err != nil {
			r.logger.Warn("plugin OnUsageLimitReached failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCampaignCreated emits a campaign created event.
func (r *Registry) EmitCampaignCreated(ctx context.Context, c *campaign.Campaign) {
	r.mu.RLock()
	plugins := r.onCampaignCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCampaignCreated(ctx, c)
		}); err != nil {
			r.logger.Warn("plugin OnCampaignCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCampaignUpdated emits a campaign updated event.
func (r *Registry) EmitCampaignUpdated(ctx context.Context, old, updated *campaign.Campaign) {
	r.mu.RLock()
	plugins := r.onCampaignUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCampaignUpdated(ctx, old, updated)
		}); err != nil {
			r.logger.Warn("plugin OnCampaignUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCampaignDeleted emits a campaign deleted event.
func (r *Registry) EmitCampaignDeleted(ctx context.Context, campaignID string) {
	r.mu.RLock()
	plugins := r.onCampaignDeleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCampaignDeleted(ctx, campaignID)
		}); err != nil {
			r.logger.Warn("plugin OnCampaignDeleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRuleCreated emits a rule created event.
func (r *Registry) EmitRuleCreated(ctx context.Context, ru *rule.Rule) {
	r.mu.RLock()
	plugins := r.onRuleCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRuleCreated(ctx, ru)
		}); err != nil {
			r.logger.Warn("plugin OnRuleCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRuleUpdated emits a rule updated event.
func (r *Registry) EmitRuleUpdated(ctx context.Context, old, updated *rule.Rule) {
	r.mu.RLock()
	plugins := r.onRuleUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRuleUpdated(ctx, old, updated)
		}); err != nil {
			r.logger.Warn("plugin OnRuleUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the points pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
