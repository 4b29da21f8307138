// Package redact strips a fixed catalog of PII patterns from content before
// it is summarized, indexed, or persisted. Pattern matching is best-effort:
// it will not catch identifiers phrased naturally (names, addresses), so it
// is a hygiene pass, not a compliance guarantee.
package redact

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Rule pairs a PII category with its detection pattern. Matches are replaced
// with "[<NAME>_REDACTED]" so downstream summarization keeps the sentence
// structure without the sensitive value.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

func builtinRules() []Rule {
	return []Rule{
		{Name: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`},
		{Name: "phone", Pattern: `\b\d{3}-\d{3}-\d{4}\b|\(\d{3}\)\s*\d{3}-\d{4}`},
		{Name: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`},
		{Name: "credit_card", Pattern: `\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`},
		{Name: "api_key", Pattern: `\b[A-Za-z0-9]{32,}\b`},
		{Name: "password", Pattern: `(?i)password[:\s]+\S+`},
		{Name: "token", Pattern: `(?i)token[:\s]+\S+`},
	}
}

// Filter replaces PII matches with typed placeholders. Safe for concurrent
// use; the rule set can be swapped at runtime via Reload.
type Filter struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewFilter builds a filter with the built-in catalog plus any extra rules
// from the given YAML file (empty path = built-ins only).
func NewFilter(rulesPath string) (*Filter, error) {
	f := &Filter{}
	rules := builtinRules()
	for i := range rules {
		rules[i].re = regexp.MustCompile(rules[i].Pattern)
	}

	if rulesPath != "" {
		extra, err := loadRules(rulesPath)
		if err != nil {
			return nil, err
		}
		rules = append(rules, extra...)
	}

	f.rules = rules
	return f, nil
}

// Redact is total: it never fails, and unknown input passes through with
// only pattern matches replaced.
func (f *Filter) Redact(text string) string {
	f.mu.RLock()
	rules := f.rules
	f.mu.RUnlock()

	sanitized := text
	for _, r := range rules {
		placeholder := "[" + strings.ToUpper(r.Name) + "_REDACTED]"
		sanitized = r.re.ReplaceAllString(sanitized, placeholder)
	}
	return sanitized
}

// Reload re-reads the extra rule file and swaps the active rule set.
// Used by the fsnotify watcher; a broken file keeps the previous rules.
func (f *Filter) Reload(rulesPath string) error {
	rules := builtinRules()
	for i := range rules {
		rules[i].re = regexp.MustCompile(rules[i].Pattern)
	}

	extra, err := loadRules(rulesPath)
	if err != nil {
		return err
	}
	rules = append(rules, extra...)

	f.mu.Lock()
	f.rules = rules
	f.mu.Unlock()

	log.Printf("🔒 [REDACT] Reloaded rules (%d active)", len(rules))
	return nil
}

// RuleNames returns the active rule names, sorted, for the status surface.
func (f *Filter) RuleNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.rules))
	for _, r := range f.rules {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

func loadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read redaction rules: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse redaction rules: %w", err)
	}

	rules := make([]Rule, 0, len(rf.Rules))
	for _, r := range rf.Rules {
		if r.Name == "" || r.Pattern == "" {
			return nil, fmt.Errorf("redaction rule needs both name and pattern")
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", r.Name, err)
		}
		r.re = re
		rules = append(rules, r)
	}
	return rules, nil
}
