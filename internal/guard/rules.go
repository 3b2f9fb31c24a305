// Package guard validates code against regex rule packs before it lands.
//
// A rule pack is a named set of line-oriented regex rules, each with a
// severity and a weight. The built-in pack covers the mistakes an AI
// assistant makes most often under time pressure: hardcoded secrets,
// unresolved FIXME markers, panics in library code, leftover print
// debugging, and SQL assembled by concatenation. Extra packs load from
// YAML files in the guard data directory.
package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Severity classifies how bad a rule violation is.
type Severity string

// Rule severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var validSeverities = map[Severity]bool{
	SeverityError:   true,
	SeverityWarning: true,
	SeverityInfo:    true,
}

// ValidateSeverity checks that s is a known severity.
func ValidateSeverity(s Severity) error {
	if !validSeverities[s] {
		return fmt.Errorf("invalid severity %q: must be one of: error, warning, info", s)
	}
	return nil
}

// Rule is one line-oriented regex check.
type Rule struct {
	ID       string   `yaml:"id" json:"id"`
	Category string   `yaml:"category" json:"category"`
	Severity Severity `yaml:"severity" json:"severity"`
	Pattern  string   `yaml:"pattern" json:"pattern"`
	Message  string   `yaml:"message" json:"message"`
	Weight   int      `yaml:"weight" json:"weight"`
}

// RulePack is a named, versioned set of rules.
type RulePack struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

type loadedPack struct {
	RulePack
	source string // "builtin" or the file path
	rules  []compiledRule
}

// ─── Checker ─────────────────────────────────────────────────────────────────

// Checker holds the compiled rule packs and runs checks against them.
type Checker struct {
	mu    sync.RWMutex
	packs []loadedPack
}

// builtin is compiled once at init, in the regexp.MustCompile spirit:
// the pack is static data and a failure is a programming error.
var builtin = mustCompilePack(builtinPack(), "builtin")

func mustCompilePack(pack RulePack, source string) loadedPack {
	lp, err := compilePack(pack, source)
	if err != nil {
		panic(err)
	}
	return lp
}

// NewChecker returns a Checker carrying the built-in pack.
func NewChecker() *Checker {
	return &Checker{packs: []loadedPack{builtin}}
}

// LoadPack parses, validates, and registers one YAML rule pack.
func (c *Checker) LoadPack(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("guard: read pack %s: %w", path, err)
	}

	var pack RulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		// yaml.v3 errors carry line positions.
		return fmt.Errorf("guard: parse pack %s: %w", path, err)
	}

	compiled, err := compilePack(pack, path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.packs {
		if existing.Name == pack.Name {
			return fmt.Errorf("guard: pack %s: name %q already loaded from %s", path, pack.Name, existing.source)
		}
	}
	c.packs = append(c.packs, compiled)
	return nil
}

// LoadDir loads every *.yaml and *.yml pack under dir. Invalid packs are
// skipped and reported in errs so one bad file cannot take down the rest.
// A missing directory is not an error: packs are optional.
func (c *Checker) LoadDir(dir string) (loaded int, errs []error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, []error{fmt.Errorf("guard: read pack dir %s: %w", dir, err)}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.LoadPack(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	return loaded, errs
}

// Packs returns copies of the loaded packs, builtin first.
func (c *Checker) Packs() []RulePack {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]RulePack, 0, len(c.packs))
	for _, p := range c.packs {
		cp := p.RulePack
		cp.Rules = append([]Rule(nil), p.Rules...)
		out = append(out, cp)
	}
	return out
}

// RuleCount returns the total number of active rules.
func (c *Checker) RuleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ruleCountLocked()
}

// compilePack validates the pack shape and compiles every pattern.
// Error messages name the source and the rule position so a bad pack can
// be fixed without guessing.
func compilePack(pack RulePack, source string) (loadedPack, error) {
	if pack.Name == "" {
		return loadedPack{}, fmt.Errorf("guard: pack %s: name is required", source)
	}
	if len(pack.Rules) == 0 {
		return loadedPack{}, fmt.Errorf("guard: pack %s: has no rules", source)
	}

	lp := loadedPack{RulePack: pack, source: source}
	seen := make(map[string]bool, len(pack.Rules))
	for i, r := range pack.Rules {
		at := fmt.Sprintf("guard: pack %s: rule %d (%s)", source, i+1, r.ID)
		if r.ID == "" {
			return loadedPack{}, fmt.Errorf("guard: pack %s: rule %d: id is required", source, i+1)
		}
		if seen[r.ID] {
			return loadedPack{}, fmt.Errorf("%s: duplicate id", at)
		}
		seen[r.ID] = true
		if err := ValidateSeverity(r.Severity); err != nil {
			return loadedPack{}, fmt.Errorf("%s: %v", at, err)
		}
		if r.Weight < 1 || r.Weight > 10 {
			return loadedPack{}, fmt.Errorf("%s: weight %d out of range 1..10", at, r.Weight)
		}
		if r.Message == "" {
			return loadedPack{}, fmt.Errorf("%s: message is required", at)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return loadedPack{}, fmt.Errorf("%s: pattern does not compile: %v", at, err)
		}
		lp.rules = append(lp.rules, compiledRule{Rule: r, re: re})
	}
	return lp, nil
}

// ─── Builtin pack ────────────────────────────────────────────────────────────

func builtinPack() RulePack {
	return RulePack{
		Name:    "taskloom-core",
		Version: "1",
		Rules: []Rule{
			{
				ID:       "hardcoded-secret",
				Category: "security",
				Severity: SeverityError,
				Pattern:  `(?i)(api[_-]?key|secret|token|passwd|password)\s*[:=]+\s*["'][A-Za-z0-9_\-/+=]{8,}["']`,
				Message:  "possible hardcoded credential; load secrets from the environment",
				Weight:   10,
			},
			{
				ID:       "sql-concat",
				Category: "security",
				Severity: SeverityError,
				Pattern:  `(?i)["'](SELECT|INSERT INTO|UPDATE|DELETE FROM)\b[^"']*["']\s*\+`,
				Message:  "SQL assembled by string concatenation; use parameterized queries",
				Weight:   8,
			},
			{
				ID:       "panic-in-lib",
				Category: "reliability",
				Severity: SeverityWarning,
				Pattern:  `\bpanic\(`,
				Message:  "panic in library code; return an error instead",
				Weight:   6,
			},
			{
				ID:       "todo-bomb",
				Category: "hygiene",
				Severity: SeverityWarning,
				Pattern:  `(?i)\b(FIXME|HACK|XXX)\b`,
				Message:  "unresolved FIXME/HACK marker",
				Weight:   4,
			},
			{
				ID:       "print-debugging",
				Category: "hygiene",
				Severity: SeverityInfo,
				Pattern:  `\bfmt\.Print(ln|f)?\(`,
				Message:  "leftover fmt.Print debugging; use the logger",
				Weight:   3,
			},
		},
	}
}
