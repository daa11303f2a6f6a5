package reconcile

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"statement_extraction/pkg/models"
)

// =============================================================================
// OVERRIDE REGISTRY - Externally supplied per-identifier corrections
// =============================================================================
//
// Document-specific "known value" fixes are never baked into pipeline logic;
// they live in an external rule file (identifier -> expected market value)
// and are applied explicitly by the Reconciler with provenance "override".

// OverrideRegistry manages override rules loaded from disk.
type OverrideRegistry struct {
	mu    sync.RWMutex
	rules map[string]models.OverrideRule
	path  string
}

// NewOverrideRegistry creates a registry, optionally loading from a JSON
// rule file at path.
func NewOverrideRegistry(path string) *OverrideRegistry {
	reg := &OverrideRegistry{
		rules: make(map[string]models.OverrideRule),
		path:  path,
	}
	if path != "" {
		if err := reg.loadFromDisk(); err != nil {
			log.Printf("[OverrideRegistry] load %q failed: %v", path, err)
		}
	}
	return reg
}

func (r *OverrideRegistry) loadFromDisk() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	var rules []models.OverrideRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range rules {
		r.rules[rule.Identifier] = rule
	}
	log.Printf("[OverrideRegistry] loaded %d rules from %s", len(rules), r.path)
	return nil
}

// Add registers or replaces a rule.
func (r *OverrideRegistry) Add(rule models.OverrideRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.Identifier] = rule
}

// Resolve returns the rule for an identifier, if any.
func (r *OverrideRegistry) Resolve(identifier string) (models.OverrideRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[identifier]
	return rule, ok
}

// Rules returns a snapshot of all rules, suitable to pass into Reconcile.
func (r *OverrideRegistry) Rules() []models.OverrideRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.OverrideRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}

// Save writes the current rule set back to the registry file.
func (r *OverrideRegistry) Save() error {
	r.mu.RLock()
	rules := make([]models.OverrideRule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0644)
}
