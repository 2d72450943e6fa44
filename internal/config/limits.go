package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// LimitTables holds the operator-tunable override tables consulted on every
// admission decision: role limits, path-prefix limits, and path-prefix
// endpoint sensitivity. Tables are read-only at decision time; reloads swap
// the whole snapshot atomically.
type LimitTables struct {
	Version          string                `yaml:"version"`
	Roles            map[string]uint       `yaml:"roles"`
	Paths            []PathLimitRule       `yaml:"paths"`
	SensitivityRules []PathSensitivityRule `yaml:"sensitivity"`
}

type PathLimitRule struct {
	Prefix string `yaml:"prefix"`
	Limit  uint   `yaml:"limit"`
}

type PathSensitivityRule struct {
	Prefix string `yaml:"prefix"`
	Level  int    `yaml:"level"`
}

// RoleLimit returns the override for role, if the table has one
func (t *LimitTables) RoleLimit(role string) (uint, bool) {
	if t == nil || role == "" {
		return 0, false
	}
	limit, ok := t.Roles[role]
	return limit, ok
}

// PathLimit returns the override for the most specific prefix matching path
func (t *LimitTables) PathLimit(path string) (uint, bool) {
	if t == nil {
		return 0, false
	}
	best := -1
	var limit uint
	for _, rule := range t.Paths {
		if strings.HasPrefix(path, rule.Prefix) && len(rule.Prefix) > best {
			best = len(rule.Prefix)
			limit = rule.Limit
		}
	}
	return limit, best >= 0
}

// Sensitivity returns the endpoint sensitivity (1-5) for path, defaulting
// to 1. The most specific matching prefix wins.
func (t *LimitTables) Sensitivity(path string) int {
	level := 1
	if t == nil {
		return level
	}
	best := -1
	for _, rule := range t.SensitivityRules {
		if strings.HasPrefix(path, rule.Prefix) && len(rule.Prefix) > best {
			best = len(rule.Prefix)
			level = rule.Level
		}
	}
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	return level
}

func (t *LimitTables) validate() error {
	for role, limit := range t.Roles {
		if limit == 0 {
			return fmt.Errorf("role %q: limit must be positive", role)
		}
	}
	for _, rule := range t.Paths {
		if rule.Prefix == "" {
			return fmt.Errorf("path rule: prefix must not be empty")
		}
		if rule.Limit == 0 {
			return fmt.Errorf("path rule %q: limit must be positive", rule.Prefix)
		}
	}
	for _, rule := range t.SensitivityRules {
		if rule.Prefix == "" {
			return fmt.Errorf("sensitivity rule: prefix must not be empty")
		}
		if rule.Level < 1 || rule.Level > 5 {
			return fmt.Errorf("sensitivity rule %q: level must be 1-5, got %d", rule.Prefix, rule.Level)
		}
	}
	return nil
}

// normalize sorts prefix rules longest-first so listings are stable; lookup
// correctness does not depend on order
func (t *LimitTables) normalize() {
	sort.Slice(t.Paths, func(i, j int) bool {
		return len(t.Paths[i].Prefix) > len(t.Paths[j].Prefix)
	})
	sort.Slice(t.SensitivityRules, func(i, j int) bool {
		return len(t.SensitivityRules[i].Prefix) > len(t.SensitivityRules[j].Prefix)
	})
}

// LimitsProvider serves the current LimitTables snapshot. Decisions read a
// consistent version even while a reload is in flight.
type LimitsProvider struct {
	current atomic.Pointer[LimitTables]
	path    string
}

// NewLimitsProvider returns a provider serving empty tables (all lookups
// fall through to the base limit)
func NewLimitsProvider() *LimitsProvider {
	p := &LimitsProvider{}
	p.current.Store(&LimitTables{})
	return p
}

// LoadLimitsFile reads and validates the YAML tables at path and returns a
// provider that can later be re-pointed at the same file via Reload
func LoadLimitsFile(path string) (*LimitsProvider, error) {
	p := &LimitsProvider{path: path}
	tables, err := parseLimitsFile(path)
	if err != nil {
		return nil, err
	}
	p.current.Store(tables)
	return p, nil
}

// Tables returns the current snapshot
func (p *LimitsProvider) Tables() *LimitTables {
	return p.current.Load()
}

// Replace swaps in a new snapshot directly (used by tests and by operators
// pushing tables through the admin API)
func (p *LimitsProvider) Replace(tables *LimitTables) error {
	if err := tables.validate(); err != nil {
		return err
	}
	tables.normalize()
	p.current.Store(tables)
	return nil
}

// Reload re-reads the backing file. On parse or validation failure the
// previous snapshot stays in effect.
func (p *LimitsProvider) Reload() error {
	if p.path == "" {
		return fmt.Errorf("limits provider has no backing file")
	}
	tables, err := parseLimitsFile(p.path)
	if err != nil {
		return err
	}
	p.current.Store(tables)
	return nil
}

func parseLimitsFile(path string) (*LimitTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read limits file: %w", err)
	}

	var tables LimitTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse limits file: %w", err)
	}
	if err := tables.validate(); err != nil {
		return nil, fmt.Errorf("invalid limits file: %w", err)
	}
	tables.normalize()

	return &tables, nil
}
