package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"mynd/internal/database"
	"mynd/internal/models"
)

// FragmentService is the fragment record store: the single source of truth
// for fragment existence and metadata. The similarity index is derived from
// it, never the other way around.
type FragmentService struct {
	db *database.DB
}

// NewFragmentService creates a new fragment service.
func NewFragmentService(db *database.DB) *FragmentService {
	return &FragmentService{db: db}
}

// Put stores a fragment. It is idempotent on id: re-inserting an existing
// fragment is a no-op success, which makes dual-write retries safe.
func (s *FragmentService) Put(ctx context.Context, f *models.Fragment) error {
	concepts, err := json.Marshal(f.Concepts)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	attributes, err := json.Marshal(f.Attributes)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fragments
		(id, created_at, source_kind, source_locator, summary, concepts, decision_rationale, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.CreatedAt.Format(time.RFC3339Nano), f.SourceKind, f.SourceLocator,
		f.Summary, string(concepts), nullable(f.DecisionRationale), string(attributes))
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

// Get returns one fragment by id, or nil when absent.
func (s *FragmentService) Get(ctx context.Context, id string) (*models.Fragment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, source_kind, source_locator, summary, concepts, decision_rationale, attributes
		FROM fragments WHERE id = ?
	`, id)

	f, err := scanFragment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	return f, nil
}

// Delete removes a fragment. Fragments are immutable, so this only exists
// for the delete-then-recreate update model.
func (s *FragmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fragments WHERE id = ?`, id); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

// Recent returns fragments newest first, optionally filtered by source kind.
func (s *FragmentService) Recent(ctx context.Context, limit int, sourceKind string) ([]*models.Fragment, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, created_at, source_kind, source_locator, summary, concepts, decision_rationale, attributes FROM fragments`
	args := []interface{}{}
	if sourceKind != "" {
		query += ` WHERE source_kind = ?`
		args = append(args, sourceKind)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	return s.queryFragments(ctx, "recent", query, args...)
}

// SearchText is the textual fallback search, independent of the similarity
// index: a substring match over summary, concepts, and decision rationale,
// newest first. Used when the index is unavailable.
func (s *FragmentService) SearchText(ctx context.Context, substring string, limit int) ([]*models.Fragment, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + substring + "%"

	return s.queryFragments(ctx, "search_text", `
		SELECT id, created_at, source_kind, source_locator, summary, concepts, decision_rationale, attributes
		FROM fragments
		WHERE summary LIKE ? OR concepts LIKE ? OR decision_rationale LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, pattern, pattern, pattern, limit)
}

// Stats returns store totals for the status surface.
func (s *FragmentService) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{ByKind: map[string]int64{}, DBPath: s.db.Path}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments`).Scan(&stats.TotalFragments); err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_kind, COUNT(*) FROM fragments GROUP BY source_kind`)
	if err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, &StorageError{Op: "stats", Err: err}
		}
		stats.ByKind[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7).Format(time.RFC3339Nano)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fragments WHERE created_at > ?`, weekAgo,
	).Scan(&stats.RecentActivity); err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}

	return stats, nil
}

// IDs lists every stored fragment id, for the index repair sweep.
func (s *FragmentService) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM fragments`)
	if err != nil {
		return nil, &StorageError{Op: "ids", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "ids", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *FragmentService) queryFragments(ctx context.Context, op, query string, args ...interface{}) ([]*models.Fragment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var fragments []*models.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		fragments = append(fragments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	return fragments, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFragment(row scanner) (*models.Fragment, error) {
	var (
		f          models.Fragment
		createdAt  string
		concepts   string
		rationale  sql.NullString
		attributes string
	)
	err := row.Scan(&f.ID, &createdAt, &f.SourceKind, &f.SourceLocator,
		&f.Summary, &concepts, &rationale, &attributes)
	if err != nil {
		return nil, err
	}

	f.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(concepts), &f.Concepts); err != nil {
		log.Printf("⚠️  [FRAGMENT-STORE] Bad concepts blob for %s: %v", f.ID, err)
		f.Concepts = nil
	}
	if err := json.Unmarshal([]byte(attributes), &f.Attributes); err != nil {
		f.Attributes = map[string]string{}
	}
	f.DecisionRationale = rationale.String

	return &f, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
