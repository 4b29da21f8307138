package models

import (
	"time"

	"github.com/google/uuid"
)

// Source kinds recognized by the capture pipeline. The column is an open
// string so new capture sources don't require a migration.
const (
	SourceBrowser      = "browser"
	SourceDocument     = "document"
	SourceCode         = "code"
	SourceConversation = "conversation"
	SourceAPI          = "api"
	SourceManual       = "manual"
)

// Fragment is one immutable unit of stored memory. Updates are modeled as
// delete-then-recreate so the record store and the similarity index stay
// trivially reconcilable.
type Fragment struct {
	ID                string            `json:"id"`
	CreatedAt         time.Time         `json:"created_at"`
	SourceKind        string            `json:"source_kind"`
	SourceLocator     string            `json:"source_locator"`
	Summary           string            `json:"summary"`
	Concepts          []string          `json:"concepts"`
	DecisionRationale string            `json:"decision_rationale,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

// NewFragment creates a fragment with a fresh id and timestamp.
func NewFragment(sourceKind, sourceLocator, summary string, concepts []string) *Fragment {
	return &Fragment{
		ID:            uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
		SourceKind:    sourceKind,
		SourceLocator: sourceLocator,
		Summary:       summary,
		Concepts:      concepts,
		Attributes:    map[string]string{},
	}
}

// IndexText returns the text submitted to the similarity index: the summary
// plus concepts plus any decision rationale, so a query can match on any of
// them.
func (f *Fragment) IndexText() string {
	text := f.Summary
	for _, c := range f.Concepts {
		text += " " + c
	}
	if f.DecisionRationale != "" {
		text += " " + f.DecisionRationale
	}
	return text
}

// StoreStats summarizes the fragment record store for the status surface.
type StoreStats struct {
	TotalFragments int64            `json:"total_fragments"`
	ByKind         map[string]int64 `json:"by_kind"`
	RecentActivity int64            `json:"recent_activity"` // fragments created in the last 7 days
	DBPath         string           `json:"db_path"`
}
