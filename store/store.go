// Package store is the reference acctplan.VectorStore and
// acctplan.PlanStore adapter: a single SQLite database combining
// sqlite-vec KNN search over research chunks with a JSON-column table
// for persisted account plans, adapted from the teacher's Document/
// Chunk/Entity/Relationship/Community graph store (store.go, schema.go,
// migrations.go) down to this domain's two tables.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tiendc/go-deepcopy"

	"github.com/brunobiangulo/acctplan"
)

func init() {
	sqlite_vec.Auto()
}

// Store wraps the SQLite database backing both VectorStore and
// PlanStore. Embed computes query embeddings for Search; a nil Embed
// degrades Search to FTS5-only keyword matching.
type Store struct {
	db    *sql.DB
	embed acctplan.EmbeddingModel
	dim   int
}

// New opens (or creates) a SQLite database at dbPath and initializes
// the schema, including the sqlite-vec and FTS5 virtual tables. embed
// may be nil, in which case Search falls back to FTS5 keyword ranking.
func New(dbPath string, embeddingDim int, embed acctplan.EmbeddingModel) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embed: embed, dim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- acctplan.VectorStore ---

// Add stores texts with their metadata, generating ids when none are
// given, and embeds them when an EmbeddingModel is configured.
func (s *Store) Add(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if ids == nil {
		ids = make([]string, len(texts))
		for i := range ids {
			ids[i] = acctplan.NewChunkID().String()
		}
	}
	if metadatas == nil {
		metadatas = make([]map[string]any, len(texts))
	}

	var embeddings [][]float32
	if s.embed != nil {
		var err error
		embeddings, err = s.embed.Encode(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("store: embedding batch: %w", err)
		}
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, text, metadata, user_id, company_name, source_kind)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				text = excluded.text,
				metadata = excluded.metadata,
				user_id = excluded.user_id,
				company_name = excluded.company_name,
				source_kind = excluded.source_kind
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, text := range texts {
			meta := metadatas[i]
			metaJSON, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("marshaling metadata for %s: %w", ids[i], err)
			}
			if _, err := stmt.ExecContext(ctx, ids[i], text, string(metaJSON),
				stringField(meta, "user_id"), stringField(meta, "company_name"), stringField(meta, "source_kind")); err != nil {
				return fmt.Errorf("inserting chunk %s: %w", ids[i], err)
			}

			if i < len(embeddings) && embeddings[i] != nil {
				var rowid int64
				row := tx.QueryRowContext(ctx, "SELECT rowid FROM chunks WHERE id = ?", ids[i])
				if err := row.Scan(&rowid); err != nil {
					return fmt.Errorf("looking up rowid for %s: %w", ids[i], err)
				}
				if _, err := tx.ExecContext(ctx,
					"INSERT OR REPLACE INTO vec_chunks (chunk_rowid, embedding) VALUES (?, ?)",
					rowid, serializeFloat32(embeddings[i])); err != nil {
					return fmt.Errorf("inserting embedding for %s: %w", ids[i], err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Search returns the k chunks most relevant to query. With an
// EmbeddingModel configured it runs sqlite-vec KNN (vec0's default L2
// distance); otherwise it
// falls back to FTS5 BM25 ranking. metadataFilter narrows results to
// rows whose user_id/company_name/source_kind columns match.
func (s *Store) Search(ctx context.Context, query string, k int, metadataFilter map[string]any) ([]acctplan.RetrievedChunk, error) {
	if k <= 0 {
		k = 5
	}

	where, args := filterClause(metadataFilter)

	if s.embed != nil {
		embeddings, err := s.embed.Encode(ctx, []string{query})
		if err != nil {
			return nil, fmt.Errorf("store: embedding query: %w", err)
		}
		if len(embeddings) > 0 && embeddings[0] != nil {
			return s.vectorSearch(ctx, embeddings[0], k, where, args)
		}
	}
	return s.ftsSearch(ctx, query, k, where, args)
}

func (s *Store) vectorSearch(ctx context.Context, queryEmbedding []float32, k int, where string, whereArgs []any) ([]acctplan.RetrievedChunk, error) {
	sqlQuery := `
		SELECT c.id, c.text, c.metadata, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.rowid = v.chunk_rowid
		WHERE v.embedding MATCH ? AND k = ?` + where + `
		ORDER BY v.distance
	`
	args := append([]any{serializeFloat32(queryEmbedding), k}, whereArgs...)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []acctplan.RetrievedChunk
	for rows.Next() {
		var r acctplan.RetrievedChunk
		var metaJSON string
		if err := rows.Scan(&r.ID, &r.Text, &metaJSON, &r.Distance); err != nil {
			return nil, err
		}
		r.Metadata = unmarshalMetadata(metaJSON)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) ftsSearch(ctx context.Context, query string, k int, where string, whereArgs []any) ([]acctplan.RetrievedChunk, error) {
	sqlQuery := `
		SELECT c.id, c.text, c.metadata, f.rank
		FROM chunks_fts f
		JOIN chunks c ON c.rowid = f.rowid
		WHERE chunks_fts MATCH ?` + where + `
		ORDER BY f.rank
		LIMIT ?
	`
	args := append([]any{query}, whereArgs...)
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []acctplan.RetrievedChunk
	for rows.Next() {
		var r acctplan.RetrievedChunk
		var metaJSON string
		var rank float64
		if err := rows.Scan(&r.ID, &r.Text, &metaJSON, &rank); err != nil {
			return nil, err
		}
		r.Metadata = unmarshalMetadata(metaJSON)
		r.Distance = rank // FTS5 rank is already lower-is-better (more negative = closer match), like a distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetAll returns up to limit chunks, most recently added first.
func (s *Store) GetAll(ctx context.Context, limit int) ([]acctplan.RetrievedChunk, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, metadata FROM chunks ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []acctplan.RetrievedChunk
	for rows.Next() {
		var r acctplan.RetrievedChunk
		var metaJSON string
		if err := rows.Scan(&r.ID, &r.Text, &metaJSON); err != nil {
			return nil, err
		}
		r.Metadata = unmarshalMetadata(metaJSON)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Delete removes chunks (and their embeddings) by id.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			var rowid int64
			row := tx.QueryRowContext(ctx, "SELECT rowid FROM chunks WHERE id = ?", id)
			if err := row.Scan(&rowid); err != nil {
				if err == sql.ErrNoRows {
					continue
				}
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_rowid = ?", rowid); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- acctplan.PlanStore ---

// Save upserts the full plan, keyed on (userID, chatID) when chatID is
// non-empty, else on a case-insensitive (userID, company) match: two
// chats discussing the same company get separate rows, but "Acme Corp"
// and "acme corp" in the same chatless context collapse into one. A
// caller updating one section passes the full plan (already mutated in
// place by the agent package), so Save never has to merge partial
// updates itself.
func (s *Store) Save(ctx context.Context, userID, company string, plan *acctplan.AccountPlan, chatID string) (string, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("marshaling account plan: %w", err)
	}

	var id string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var row *sql.Row
		if chatID != "" {
			row = tx.QueryRowContext(ctx,
				"SELECT id FROM account_plans WHERE user_id = ? AND chat_id = ?", userID, chatID)
		} else {
			row = tx.QueryRowContext(ctx,
				"SELECT id FROM account_plans WHERE user_id = ? AND company_name = ? COLLATE NOCASE AND chat_id IS NULL", userID, company)
		}

		scanErr := row.Scan(&id)
		switch {
		case scanErr == sql.ErrNoRows:
			id = acctplan.NewChunkID().String()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO account_plans (id, user_id, company_name, chat_id, full_plan, last_updated)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, userID, company, nullIfEmpty(chatID), string(planJSON), plan.LastUpdated)
			return err
		case scanErr != nil:
			return scanErr
		default:
			_, err := tx.ExecContext(ctx, `
				UPDATE account_plans
				SET company_name = ?, chat_id = ?, full_plan = ?, last_updated = ?
				WHERE id = ?
			`, company, nullIfEmpty(chatID), string(planJSON), plan.LastUpdated, id)
			return err
		}
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// nullIfEmpty maps an empty chat id to SQL NULL so the UNIQUE(user_id,
// chat_id) constraint never treats two chatless saves as a conflict.
func nullIfEmpty(chatID string) any {
	if chatID == "" {
		return nil
	}
	return chatID
}

// Get returns a deep copy of the stored plan for (userID, company), or
// nil if none exists yet.
func (s *Store) Get(ctx context.Context, userID, company string) (*acctplan.AccountPlan, error) {
	var planJSON string
	row := s.db.QueryRowContext(ctx,
		"SELECT full_plan FROM account_plans WHERE user_id = ? AND company_name = ? COLLATE NOCASE ORDER BY last_updated DESC LIMIT 1", userID, company)
	if err := row.Scan(&planJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return unmarshalPlan(planJSON)
}

// GetByID returns the plan with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*acctplan.AccountPlan, error) {
	var planJSON string
	row := s.db.QueryRowContext(ctx, "SELECT full_plan FROM account_plans WHERE id = ?", id)
	if err := row.Scan(&planJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return unmarshalPlan(planJSON)
}

// List returns lightweight summaries of every plan owned by userID.
func (s *Store) List(ctx context.Context, userID string) ([]acctplan.PlanSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, company_name, last_updated FROM account_plans WHERE user_id = ? ORDER BY last_updated DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []acctplan.PlanSummary
	for rows.Next() {
		var p acctplan.PlanSummary
		if err := rows.Scan(&p.ID, &p.CompanyName, &p.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClonePlan returns a deep copy of plan, so callers can mutate a
// section of the clone before calling Save without risk of aliasing
// the caller's own in-memory copy.
func ClonePlan(plan *acctplan.AccountPlan) (*acctplan.AccountPlan, error) {
	var dst acctplan.AccountPlan
	if err := deepcopy.Copy(&dst, plan); err != nil {
		return nil, fmt.Errorf("store: deep-copying account plan: %w", err)
	}
	return &dst, nil
}

func unmarshalPlan(planJSON string) (*acctplan.AccountPlan, error) {
	var plan acctplan.AccountPlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("unmarshaling account plan: %w", err)
	}
	return &plan, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// filterClause builds a "AND col = ?" suffix restricted to the three
// indexed columns; any other key is ignored since chunks only indexes
// those three for filtering.
func filterClause(filter map[string]any) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	cols := map[string]string{
		"user_id":      "c.user_id",
		"company_name": "c.company_name",
		"source_kind":  "c.source_kind",
	}
	var clause string
	var args []any
	for key, col := range cols {
		if v, ok := filter[key]; ok {
			clause += fmt.Sprintf(" AND %s = ?", col)
			args = append(args, v)
		}
	}
	return clause, args
}

func unmarshalMetadata(raw string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
