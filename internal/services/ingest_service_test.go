package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mynd/internal/extract"
	"mynd/internal/models"
	"mynd/internal/redact"
)

func newTestIngest(t *testing.T) (*IngestService, *FragmentService, *stubIndex) {
	t.Helper()
	filter, err := redact.NewFilter("")
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}
	fragments := NewFragmentService(setupTestDB(t))
	idx := newStubIndex()
	return NewIngestService(filter, extract.Heuristic{}, fragments, idx), fragments, idx
}

func TestIngestDualWrite(t *testing.T) {
	service, fragments, idx := newTestIngest(t)
	ctx := context.Background()

	content := "We decided to split the similarity index into its own database file so index loss never touches the records."
	fragment, indexed, err := service.Ingest(ctx, models.SourceConversation, "session-1", content, map[string]string{"project": "mynd"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if !indexed {
		t.Error("Expected fragment indexed")
	}

	stored, _ := fragments.Get(ctx, fragment.ID)
	if stored == nil {
		t.Fatal("Fragment missing from record store")
	}
	if stored.Attributes["project"] != "mynd" {
		t.Errorf("Attributes lost: %v", stored.Attributes)
	}
	if _, ok := idx.indexed[fragment.ID]; !ok {
		t.Error("Fragment missing from index")
	}
}

func TestIngestRejectsIrrelevant(t *testing.T) {
	service, _, _ := newTestIngest(t)

	_, _, err := service.Ingest(context.Background(), models.SourceConversation, "", "ok", nil)
	if !errors.Is(err, ErrNotRelevant) {
		t.Errorf("Expected ErrNotRelevant, got %v", err)
	}
}

func TestIngestRedactsBeforeStorage(t *testing.T) {
	service, fragments, idx := newTestIngest(t)
	ctx := context.Background()

	content := "Decided to rotate the database credentials; contact ops@example.com with password: s3cret for access."
	fragment, _, err := service.Ingest(ctx, models.SourceConversation, "", content, nil)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	stored, _ := fragments.Get(ctx, fragment.ID)
	for name, text := range map[string]string{
		"summary":    stored.Summary,
		"rationale":  stored.DecisionRationale,
		"index text": idx.indexed[fragment.ID],
	} {
		if strings.Contains(text, "ops@example.com") || strings.Contains(text, "s3cret") {
			t.Errorf("PII leaked into %s: %q", name, text)
		}
	}
	if !strings.Contains(stored.Summary, "[EMAIL_REDACTED]") {
		t.Errorf("Expected redaction marker in summary: %q", stored.Summary)
	}
}

func TestIngestPartialSuccessOnIndexFailure(t *testing.T) {
	service, fragments, idx := newTestIngest(t)
	idx.indexErr = errors.New("index offline")
	ctx := context.Background()

	content := "Implemented the retry logic for the ingestion path with exponential backoff."
	fragment, indexed, err := service.Ingest(ctx, models.SourceCode, "ingest.go", content, nil)
	if err != nil {
		t.Fatalf("Expected partial success, got error: %v", err)
	}
	if indexed {
		t.Error("Expected indexed=false when the index write fails")
	}

	// The record survived
	stored, _ := fragments.Get(ctx, fragment.ID)
	if stored == nil {
		t.Fatal("Record write must succeed even when indexing fails")
	}
}

func TestRepairIndexBothDirections(t *testing.T) {
	service, fragments, idx := newTestIngest(t)
	ctx := context.Background()

	// A durable fragment that never reached the index.
	orphanRecord := models.NewFragment(models.SourceCode, "a.go", "fragment awaiting indexing", nil)
	fragments.Put(ctx, orphanRecord)

	// A vector whose fragment is gone.
	idx.indexed["ghost"] = "stale vector"

	indexed, removed, err := service.RepairIndex(ctx)
	if err != nil {
		t.Fatalf("RepairIndex failed: %v", err)
	}
	if indexed != 1 {
		t.Errorf("Expected 1 re-indexed fragment, got %d", indexed)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed vector, got %d", removed)
	}

	if _, ok := idx.indexed[orphanRecord.ID]; !ok {
		t.Error("Orphaned record was not re-indexed")
	}
	if _, ok := idx.indexed["ghost"]; ok {
		t.Error("Stale vector was not removed")
	}
}

func TestRemoveDeletesBothStores(t *testing.T) {
	service, fragments, idx := newTestIngest(t)
	ctx := context.Background()

	fragment, _, err := service.Ingest(ctx, models.SourceCode, "b.go",
		"Fixed the bug in the shutdown path by draining the scheduler first.", nil)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if err := service.Remove(ctx, fragment.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	stored, _ := fragments.Get(ctx, fragment.ID)
	if stored != nil {
		t.Error("Fragment still in record store")
	}
	if _, ok := idx.indexed[fragment.ID]; ok {
		t.Error("Fragment still in index")
	}
}
