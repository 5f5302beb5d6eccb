package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps standard ids to ordered rule lists.
// Rules are registered at init time; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	rules   map[string][]Rule
	ruleIDs map[string]map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:   make(map[string][]Rule),
		ruleIDs: make(map[string]map[string]bool),
	}
}

// Register appends rules to a standard's list in the given order.
// Panics on an invalid rule or a rule id already registered for the standard.
func (r *Registry) Register(standardID string, rules ...Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.ruleIDs[standardID]
	if ids == nil {
		ids = make(map[string]bool)
		r.ruleIDs[standardID] = ids
	}

	for _, rule := range rules {
		if err := rule.validate(); err != nil {
			panic(fmt.Sprintf("invalid rule for %s: %v", standardID, err))
		}
		if ids[rule.ID] {
			panic(fmt.Sprintf("rule already registered: %s/%s", standardID, rule.ID))
		}
		ids[rule.ID] = true
		r.rules[standardID] = append(r.rules[standardID], rule)
	}
}

// Declare records a standard with no rules so that Has reports it.
func (r *Registry) Declare(standardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[standardID]; !ok {
		r.rules[standardID] = []Rule{}
		r.ruleIDs[standardID] = make(map[string]bool)
	}
}

// Get returns a copy of the rule list for a standard.
// Unknown standards return an empty list, not an error.
func (r *Registry) Get(standardID string) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := r.rules[standardID]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// RulesFor implements RuleSource.
func (r *Registry) RulesFor(_ context.Context, standardID string) ([]Rule, error) {
	return r.Get(standardID), nil
}

// Has reports whether a standard was registered or declared.
func (r *Registry) Has(standardID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rules[standardID]
	return ok
}

// Standards returns registered standard ids, sorted.
func (r *Registry) Standards() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rules))
	for id := range r.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RuleCount returns the total number of registered rules.
func (r *Registry) RuleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rules := range r.rules {
		n += len(rules)
	}
	return n
}

// Clear removes all registrations.
// Primarily useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = make(map[string][]Rule)
	r.ruleIDs = make(map[string]map[string]bool)
}

// ============================================================================
// Default registry
// ============================================================================

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry populated by init-time
// registrations in core/rules.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds rules to the default registry.
func Register(standardID string, rules ...Rule) {
	defaultRegistry.Register(standardID, rules...)
}

// Declare records a rule-less standard in the default registry.
func Declare(standardID string) {
	defaultRegistry.Declare(standardID)
}
