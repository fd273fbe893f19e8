package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Research chunks, the unit acctplan.VectorStore persists. metadata
-- carries the full acctplan.ChunkMetadata as JSON; the columns below
-- are pulled out of it for indexed filtering.
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    metadata JSON NOT NULL,
    user_id TEXT,
    company_name TEXT,
    source_kind TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Vector embeddings via sqlite-vec, keyed by the chunks table's own
-- implicit rowid (chunks keeps its rowid despite the TEXT primary key,
-- since it is not declared WITHOUT ROWID).
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_rowid INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search over chunk text, for the keyword half of retrieval
-- diagnostics and for environments running without an embedding model.
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    text,
    content='chunks',
    content_rowid='rowid',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
    INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;

-- Account plans, one row per chat_id when a chat_id is given, else one
-- row per (user_id, company_name) compared case-insensitively. chat_id
-- is left NULL rather than empty string so SQLite's UNIQUE constraint
-- (which treats NULLs as distinct from one another) only dedupes rows
-- that actually share a chat; the company-only fallback match is
-- enforced in application code instead, via idx_account_plans_lookup.
CREATE TABLE IF NOT EXISTS account_plans (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    company_name TEXT NOT NULL,
    chat_id TEXT,
    full_plan JSON NOT NULL,
    last_updated DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(user_id, chat_id)
);

CREATE INDEX IF NOT EXISTS idx_chunks_user ON chunks(user_id);
CREATE INDEX IF NOT EXISTS idx_chunks_company ON chunks(company_name);
CREATE INDEX IF NOT EXISTS idx_account_plans_user ON account_plans(user_id);
CREATE INDEX IF NOT EXISTS idx_account_plans_lookup ON account_plans(user_id, company_name COLLATE NOCASE);
`, embeddingDim)
}
