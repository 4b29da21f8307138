// Package extract turns redacted content into a semantic fragment: a short
// summary, concept tags, and an optional decision rationale. The backend is
// chosen at construction time — an LLM-backed extractor or the deterministic
// heuristic — never discovered at call time.
package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// Result is the semantic fragment produced from one piece of content.
type Result struct {
	Summary           string
	Concepts          []string
	DecisionRationale string
}

// Extractor produces a semantic fragment from already-redacted content.
// Implementations must be safe for concurrent use and must respect ctx
// deadlines; the write path never blocks indefinitely on extraction.
type Extractor interface {
	Extract(ctx context.Context, content, contentKind string) (Result, error)
	Name() string
}

const maxConcepts = 10

var (
	wordRe = regexp.MustCompile(`\b[A-Z][a-z]+|[a-z]+(?:[A-Z][a-z]*)*\b`)

	conceptKeywords = []string{
		"API", "database", "architecture", "framework", "library",
		"authentication", "security", "performance", "design",
		"implementation", "decision", "choice", "alternative",
		"solution", "problem", "requirement", "feature",
	}

	decisionKeywords = []string{"decided", "chose", "selected", "picked", "opted"}

	relevanceIndicators = []string{
		"decided", "chose", "implemented", "solution", "problem",
		"design", "architecture", "code", "bug", "fix", "feature",
		"research", "analysis", "conclusion", "recommendation",
		"api", "database", "server", "client", "framework",
		"library", "algorithm", "performance", "security",
	}
)

// Heuristic is the deterministic fallback extractor. It needs no external
// services, so extraction can never fail outright.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

// Extract builds a fragment from simple text heuristics: a leading-slice
// summary, keyword and capitalized-word concepts, and the first sentence
// containing a decision verb as the rationale.
func (Heuristic) Extract(_ context.Context, content, _ string) (Result, error) {
	return Result{
		Summary:           summarize(content),
		Concepts:          Concepts(content),
		DecisionRationale: decisionSentence(content),
	}, nil
}

func summarize(content string) string {
	summary := strings.TrimSpace(content)
	if len(summary) > 200 {
		summary = strings.TrimSpace(summary[:200]) + "..."
	}
	return summary
}

// Concepts extracts up to maxConcepts short tags: known technical keywords
// present in the text plus capitalized words that look like technology names.
func Concepts(content string) []string {
	seen := map[string]bool{}
	var concepts []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			concepts = append(concepts, c)
		}
	}

	lower := strings.ToLower(content)
	for _, kw := range conceptKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			add(kw)
		}
	}

	for _, word := range wordRe.FindAllString(content, -1) {
		if len(word) > 3 && word[0] >= 'A' && word[0] <= 'Z' {
			add(word)
		}
	}

	sort.Strings(concepts)
	if len(concepts) > maxConcepts {
		concepts = concepts[:maxConcepts]
	}
	return concepts
}

func decisionSentence(content string) string {
	lower := strings.ToLower(content)
	for _, kw := range decisionKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		for _, sentence := range strings.Split(content, ".") {
			if strings.Contains(strings.ToLower(sentence), kw) {
				return strings.TrimSpace(sentence)
			}
		}
	}
	return ""
}

// Relevant reports whether content is worth turning into a fragment at all.
// Very short snippets and text with no decision or technical indicators are
// skipped by the ingestion path.
func Relevant(content string) bool {
	if len(strings.TrimSpace(content)) < 50 {
		return false
	}
	lower := strings.ToLower(content)
	for _, indicator := range relevanceIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
