package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"mynd/internal/index"
	"mynd/internal/models"
)

// NoContextMessage is the canonical empty result body.
const NoContextMessage = "No relevant context found in your memory."

// ContextService assembles a bounded, ranked context blob from similarity
// search results. Token accounting uses the deterministic chars/4 estimate so
// budgets behave identically across deployments.
type ContextService struct {
	fragments *FragmentService
	idx       index.Index

	searchBreadth int
	safetyMargin  int
	minConfidence int
}

// NewContextService creates a context assembler.
func NewContextService(fragments *FragmentService, idx index.Index, searchBreadth, safetyMargin, minConfidence int) *ContextService {
	if searchBreadth <= 0 {
		searchBreadth = 20
	}
	return &ContextService{
		fragments:     fragments,
		idx:           idx,
		searchBreadth: searchBreadth,
		safetyMargin:  safetyMargin,
		minConfidence: minConfidence,
	}
}

// Assemble runs the similarity search and renders the ranked results into a
// source-attributed text blob within budget tokens. budget must already be
// clamped to the caller token's ceiling.
func (s *ContextService) Assemble(ctx context.Context, q models.ContextQuery, budget int) (*models.ContextResult, error) {
	matches, err := s.idx.Query(ctx, q.Query, s.searchBreadth, q.SourceKinds)
	if err != nil {
		// The index is not the source of truth; degrade to the record
		// store's textual search instead of failing the read.
		log.Printf("⚠️  [CONTEXT] Index unavailable, falling back to text search: %v", err)
		matches, err = s.textFallback(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	matches = s.filterByConfidence(matches)
	if len(matches) == 0 {
		return models.NewContextResult(NoContextMessage, 0, nil), nil
	}

	header := fmt.Sprintf("Relevant context for '%s':\n", q.Query)
	total := EstimateTokens(header)

	// The margin keeps the response safely under budget, but must not
	// swallow a small budget whole; with tiny budgets it shrinks to a
	// tenth so at least compact entries can be served.
	margin := s.safetyMargin
	if margin*2 > budget {
		margin = budget / 10
	}

	var (
		parts    = []string{header}
		sources  []string
		seenKind = map[string]bool{}
		accepted int
	)

	for i, m := range matches {
		entry := renderEntry(i+1, m, q.IncludeMetadata)
		cost := EstimateTokens(entry)

		// Entries are atomic: a candidate either fits whole or ends the
		// assembly. Never truncate mid-entry, never exceed the budget.
		if total+cost > budget-margin {
			break
		}

		parts = append(parts, entry)
		total += cost
		accepted++

		kind := m.Metadata["source_kind"]
		if kind == "" {
			kind = "unknown"
		}
		if !seenKind[kind] {
			seenKind[kind] = true
			sources = append(sources, kind)
		}
	}

	parts = append(parts, fmt.Sprintf("\nFound %d relevant memories using %d tokens.", len(matches), total))

	return models.NewContextResult(strings.Join(parts, ""), total, sources), nil
}

func renderEntry(rank int, m index.Match, includeMetadata bool) string {
	kind := m.Metadata["source_kind"]
	if kind == "" {
		kind = "unknown"
	}
	date := m.Metadata["created_at"]
	if len(date) >= 10 {
		date = date[:10]
	} else if date == "" {
		date = "unknown"
	}

	entry := fmt.Sprintf("\n%d. [%s] (%s):\n%s\n", rank, kind, date, m.Text)
	if includeMetadata {
		if locator := m.Metadata["source_locator"]; locator != "" {
			entry += fmt.Sprintf("   source: %s\n", locator)
		}
	}
	return entry
}

// filterByConfidence drops matches whose similarity confidence, scaled to
// 0-100, falls below the configured floor. A floor of zero keeps everything,
// which is the default: the right cut-off depends on the embedding backend.
func (s *ContextService) filterByConfidence(matches []index.Match) []index.Match {
	if s.minConfidence <= 0 {
		return matches
	}
	kept := matches[:0]
	for _, m := range matches {
		confidence := (1 - m.Distance) * 100
		if confidence >= float64(s.minConfidence) {
			kept = append(kept, m)
		}
	}
	return kept
}

func (s *ContextService) textFallback(ctx context.Context, q models.ContextQuery) ([]index.Match, error) {
	fragments, err := s.fragments.SearchText(ctx, q.Query, s.searchBreadth)
	if err != nil {
		return nil, err
	}

	wantKind := map[string]bool{}
	for _, kind := range q.SourceKinds {
		wantKind[kind] = true
	}

	var matches []index.Match
	for _, f := range fragments {
		if len(wantKind) > 0 && !wantKind[f.SourceKind] {
			continue
		}
		matches = append(matches, index.Match{
			ID:   f.ID,
			Text: f.IndexText(),
			Metadata: map[string]string{
				"source_kind":    f.SourceKind,
				"source_locator": f.SourceLocator,
				"created_at":     f.CreatedAt.Format(time.RFC3339),
			},
			// Textual fallback has no similarity score; newest-first order
			// stands in for rank.
			Distance: 0,
		})
	}
	return matches, nil
}
