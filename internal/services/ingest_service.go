package services

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"strings"

	"mynd/internal/extract"
	"mynd/internal/index"
	"mynd/internal/logging"
	"mynd/internal/models"
	"mynd/internal/redact"
)

// ErrNotRelevant reports content the relevance gate rejected: too short or
// free of any decision/technical signal worth remembering.
var ErrNotRelevant = errors.New("content not relevant enough to store")

// IngestService owns the write path: redact, extract, then dual-write with
// the record store strictly first. A fragment only becomes discoverable once
// both writes succeed; an index failure after a durable record write is a
// partial success, repaired later by the background sweep.
type IngestService struct {
	filter    *redact.Filter
	extractor extract.Extractor
	fragments *FragmentService
	idx       index.Index
}

// NewIngestService creates the ingestion pipeline.
func NewIngestService(filter *redact.Filter, extractor extract.Extractor, fragments *FragmentService, idx index.Index) *IngestService {
	return &IngestService{
		filter:    filter,
		extractor: extractor,
		fragments: fragments,
		idx:       idx,
	}
}

// Ingest turns raw content into a stored fragment. The returned bool reports
// whether the fragment is searchable yet (false = durable but not indexed).
func (s *IngestService) Ingest(ctx context.Context, sourceKind, sourceLocator, content string, attributes map[string]string) (*models.Fragment, bool, error) {
	// Redaction happens before anything else sees the content: the
	// extractor, the record store, and the index only ever receive the
	// sanitized text.
	sanitized := s.filter.Redact(content)

	if !extract.Relevant(sanitized) {
		return nil, false, ErrNotRelevant
	}

	result, err := s.extractor.Extract(ctx, sanitized, sourceKind)
	if err != nil {
		// Extractors fall back internally; an error here means the
		// heuristic itself failed, which it cannot. Guard anyway.
		result, _ = extract.Heuristic{}.Extract(ctx, sanitized, sourceKind)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, false, ErrNotRelevant
	}

	fragment := models.NewFragment(sourceKind, sourceLocator, result.Summary, result.Concepts)
	fragment.DecisionRationale = result.DecisionRationale
	for k, v := range attributes {
		fragment.Attributes[k] = v
	}

	// Record store first. If this fails nothing was written anywhere and
	// the caller can retry; Put is idempotent on id.
	if err := s.fragments.Put(ctx, fragment); err != nil {
		return nil, false, err
	}

	flog := logging.WithFragment(slog.Default(), fragment.ID, fragment.SourceKind)
	if err := s.idx.Index(ctx, fragment.ID, fragment.IndexText(), indexMetadata(fragment)); err != nil {
		log.Printf("⚠️  [INGEST] Fragment %s durable but not indexed: %v", fragment.ID, err)
		flog.Warn("index write failed", "error", err)
		return fragment, false, nil
	}

	flog.Debug("fragment stored", "concepts", len(fragment.Concepts))
	return fragment, true, nil
}

// Replace implements the delete-then-recreate update model: the old
// fragment is removed from both stores before the new content is ingested.
func (s *IngestService) Replace(ctx context.Context, oldID, sourceKind, sourceLocator, content string, attributes map[string]string) (*models.Fragment, bool, error) {
	if err := s.fragments.Delete(ctx, oldID); err != nil {
		return nil, false, err
	}
	if err := s.idx.Delete(ctx, oldID); err != nil {
		// Stale index entry; the repair sweep removes it once the record
		// store no longer knows the id.
		log.Printf("⚠️  [INGEST] Stale index entry %s left for repair: %v", oldID, err)
	}
	return s.Ingest(ctx, sourceKind, sourceLocator, content, attributes)
}

// Fragments exposes the record store for read-side callers.
func (s *IngestService) Fragments() *FragmentService {
	return s.fragments
}

// Remove deletes a fragment from both stores, record store first.
func (s *IngestService) Remove(ctx context.Context, id string) error {
	if err := s.fragments.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.idx.Delete(ctx, id); err != nil {
		log.Printf("⚠️  [INGEST] Stale index entry %s left for repair: %v", id, err)
	}
	return nil
}

// RepairIndex reconciles the record store and the similarity index in both
// directions: durable fragments missing a vector get indexed, vectors whose
// fragment is gone get removed. The record store wins every disagreement.
func (s *IngestService) RepairIndex(ctx context.Context) (indexed, removed int, err error) {
	recordIDs, err := s.fragments.IDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	known := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		known[id] = true
	}

	indexIDs, err := s.idx.IDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	inIndex := make(map[string]bool, len(indexIDs))
	for _, id := range indexIDs {
		inIndex[id] = true
		if !known[id] {
			if err := s.idx.Delete(ctx, id); err == nil {
				removed++
			}
		}
	}

	for _, id := range recordIDs {
		if inIndex[id] {
			continue
		}
		fragment, err := s.fragments.Get(ctx, id)
		if err != nil || fragment == nil {
			continue
		}
		if err := s.idx.Index(ctx, fragment.ID, fragment.IndexText(), indexMetadata(fragment)); err != nil {
			// Index still down; the next sweep retries.
			continue
		}
		indexed++
	}

	return indexed, removed, nil
}

func indexMetadata(f *models.Fragment) map[string]string {
	metadata := map[string]string{
		"source_kind":    f.SourceKind,
		"source_locator": f.SourceLocator,
		"created_at":     f.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"concepts":       strings.Join(f.Concepts, ","),
	}
	// Caller attributes ride along flattened; values are scalar strings by
	// construction.
	for k, v := range f.Attributes {
		metadata["attr_"+k] = v
	}
	return metadata
}
