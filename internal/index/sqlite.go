package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// VectorIndex persists embeddings in its own sqlite file, separate from the
// fragment record store. Queries embed the input text and rank stored
// vectors by cosine distance (1 - cosine similarity).
type VectorIndex struct {
	db       *sql.DB
	path     string
	embedder Embedder
}

// NewVectorIndex opens (or creates) the index database at the given path.
func NewVectorIndex(path string, embedder Embedder) (*VectorIndex, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &Error{Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
		id       TEXT PRIMARY KEY,
		doc      TEXT NOT NULL,
		metadata TEXT NOT NULL, -- JSON object, scalar values only
		vector   BLOB NOT NULL,
		dims     INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, &Error{Op: "init", Err: err}
	}

	return &VectorIndex{db: db, path: path, embedder: embedder}, nil
}

// Close releases the underlying database handle.
func (v *VectorIndex) Close() error { return v.db.Close() }

// Index stores text for later ranked retrieval. Re-indexing the same id
// replaces the previous entry, so the operation is idempotent.
func (v *VectorIndex) Index(ctx context.Context, id, text string, metadata map[string]string) error {
	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return &Error{Op: "embed", Err: err}
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return &Error{Op: "index", Err: err}
	}

	_, err = v.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vectors (id, doc, metadata, vector, dims) VALUES (?, ?, ?, ?, ?)`,
		id, text, string(meta), encodeVector(vec), len(vec))
	if err != nil {
		return &Error{Op: "index", Err: err}
	}
	return nil
}

// Query returns the k nearest entries to the query text, best first.
// kindFilter restricts results to entries whose source_kind metadata matches
// one of the given kinds.
func (v *VectorIndex) Query(ctx context.Context, text string, k int, kindFilter []string) ([]Match, error) {
	if k <= 0 {
		k = 10
	}

	queryVec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &Error{Op: "embed", Err: err}
	}

	rows, err := v.db.QueryContext(ctx, `SELECT id, doc, metadata, vector FROM vectors`)
	if err != nil {
		return nil, &Error{Op: "query", Err: err}
	}
	defer rows.Close()

	wantKind := map[string]bool{}
	for _, kind := range kindFilter {
		wantKind[kind] = true
	}

	var matches []Match
	for rows.Next() {
		var (
			id, doc, metaJSON string
			blob              []byte
		)
		if err := rows.Scan(&id, &doc, &metaJSON, &blob); err != nil {
			return nil, &Error{Op: "query", Err: err}
		}

		var metadata map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			metadata = map[string]string{}
		}
		if len(wantKind) > 0 && !wantKind[metadata["source_kind"]] {
			continue
		}

		matches = append(matches, Match{
			ID:       id,
			Text:     doc,
			Metadata: metadata,
			Distance: 1 - CosineSimilarity(queryVec, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "query", Err: err}
	}

	// Stable sort keeps insertion order for exact distance ties.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes an entry. Deleting an absent id is a no-op.
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	if _, err := v.db.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

// Reindex replaces an entry (delete + index).
func (v *VectorIndex) Reindex(ctx context.Context, id, text string, metadata map[string]string) error {
	if err := v.Delete(ctx, id); err != nil {
		return err
	}
	return v.Index(ctx, id, text, metadata)
}

// IDs lists every indexed id, for the lazy-repair sweep.
func (v *VectorIndex) IDs(ctx context.Context) ([]string, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT id FROM vectors`)
	if err != nil {
		return nil, &Error{Op: "ids", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &Error{Op: "ids", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats reports index size and backend for the status surface.
func (v *VectorIndex) Stats(ctx context.Context) Stats {
	var count int64
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
		return Stats{Available: false, Embedder: v.embedder.Name(), Path: v.path}
	}
	return Stats{
		Available:    true,
		TotalVectors: count,
		Embedder:     v.embedder.Name(),
		Path:         v.path,
	}
}

func encodeVector(vec Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) Vector {
	vec := make(Vector, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

var _ Index = (*VectorIndex)(nil)

// NewEmbedder selects the embedding backend by name. Unknown names fall
// back to the deterministic hashing embedder so a misconfigured deployment
// still serves queries.
func NewEmbedder(kind, ollamaURL, embeddingModel, openAIBaseURL, openAIKey string) Embedder {
	switch kind {
	case "ollama":
		return NewOllamaEmbedder(ollamaURL, embeddingModel)
	case "openai":
		return NewOpenAIEmbedder(openAIBaseURL, openAIKey, embeddingModel)
	case "hashing":
		return NewHashingEmbedder(256)
	default:
		return NewHashingEmbedder(256)
	}
}
