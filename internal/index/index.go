// Package index provides the similarity index: an append-only ranked
// nearest-neighbor search over fragment text. The index is never the source
// of truth for existence — when it disagrees with the fragment record store,
// the record store wins and the index entry is repaired lazily.
package index

import (
	"context"
	"fmt"
)

// Match is one ranked search result. Distance is backend-defined but always
// monotonic with "less similar" (0 = identical for the vector backend).
type Match struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// Stats summarizes the index for the status surface.
type Stats struct {
	Available    bool   `json:"available"`
	TotalVectors int64  `json:"total_vectors"`
	Embedder     string `json:"embedder,omitempty"`
	Path         string `json:"path,omitempty"`
}

// Index is the ranked-search contract. Implementations provide their own
// persistence and concurrency safety; Index, Delete, and Reindex are
// idempotent so the ingestion path can retry safely.
type Index interface {
	Index(ctx context.Context, id, text string, metadata map[string]string) error
	Query(ctx context.Context, text string, k int, kindFilter []string) ([]Match, error)
	Delete(ctx context.Context, id string) error
	Reindex(ctx context.Context, id, text string, metadata map[string]string) error
	IDs(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) Stats
}

// Error is the typed failure for index operations. The read path treats it
// as a signal to fall back to textual search; the write path reports a
// partial success instead of failing the whole ingestion.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
