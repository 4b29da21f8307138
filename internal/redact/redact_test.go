package redact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactBuiltins(t *testing.T) {
	filter, err := NewFilter("")
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	tests := []struct {
		name   string
		input  string
		remove string
		marker string
	}{
		{
			name:   "Email address",
			input:  "Contact alice@example.com for access",
			remove: "alice@example.com",
			marker: "[EMAIL_REDACTED]",
		},
		{
			name:   "Phone number",
			input:  "Call 555-123-4567 tomorrow",
			remove: "555-123-4567",
			marker: "[PHONE_REDACTED]",
		},
		{
			name:   "SSN",
			input:  "SSN is 123-45-6789 on file",
			remove: "123-45-6789",
			marker: "[SSN_REDACTED]",
		},
		{
			name:   "Credit card",
			input:  "Charged to 4111-1111-1111-1111 yesterday",
			remove: "4111-1111-1111-1111",
			marker: "[CREDIT_CARD_REDACTED]",
		},
		{
			name:   "Long API key",
			input:  "Use key abcdef0123456789abcdef0123456789 for auth",
			remove: "abcdef0123456789abcdef0123456789",
			marker: "[API_KEY_REDACTED]",
		},
		{
			name:   "Password assignment",
			input:  "password: hunter2 was committed",
			remove: "hunter2",
			marker: "[PASSWORD_REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filter.Redact(tt.input)
			if strings.Contains(got, tt.remove) {
				t.Errorf("Sensitive value %q survived redaction: %q", tt.remove, got)
			}
			if !strings.Contains(got, tt.marker) {
				t.Errorf("Expected marker %q in %q", tt.marker, got)
			}
		})
	}
}

func TestRedactPassthrough(t *testing.T) {
	filter, _ := NewFilter("")

	clean := "Decided to use sqlite for the record store."
	if got := filter.Redact(clean); got != clean {
		t.Errorf("Clean text should pass through unchanged, got %q", got)
	}
}

func TestRedactExtraRules(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	rules := `rules:
  - name: ticket
    pattern: 'PROJ-\d+'
`
	if err := os.WriteFile(rulesPath, []byte(rules), 0o600); err != nil {
		t.Fatalf("Failed to write rules file: %v", err)
	}

	filter, err := NewFilter(rulesPath)
	if err != nil {
		t.Fatalf("Failed to create filter with extra rules: %v", err)
	}

	got := filter.Redact("Fixed in PROJ-1234 last sprint")
	if strings.Contains(got, "PROJ-1234") {
		t.Errorf("Extra rule did not apply: %q", got)
	}
	if !strings.Contains(got, "[TICKET_REDACTED]") {
		t.Errorf("Expected ticket marker, got %q", got)
	}
}

func TestReloadKeepsRulesOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	os.WriteFile(rulesPath, []byte("rules:\n  - name: ticket\n    pattern: 'PROJ-\\d+'\n"), 0o600)

	filter, err := NewFilter(rulesPath)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	// Break the file, then reload: the previous rules must survive.
	os.WriteFile(rulesPath, []byte("rules:\n  - name: broken\n    pattern: '['\n"), 0o600)
	if err := filter.Reload(rulesPath); err == nil {
		t.Fatal("Expected reload error for invalid pattern")
	}

	if got := filter.Redact("see PROJ-42"); strings.Contains(got, "PROJ-42") {
		t.Errorf("Previous rules lost after failed reload: %q", got)
	}
}

func TestInvalidRuleFile(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	os.WriteFile(rulesPath, []byte("rules:\n  - name: bad\n    pattern: '('\n"), 0o600)

	if _, err := NewFilter(rulesPath); err == nil {
		t.Fatal("Expected error for invalid regex pattern")
	}
}
