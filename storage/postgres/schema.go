package postgres

import "fmt"

// Schema returns the DDL for the two collections with the given embedding
// dimension. Vector columns are nullable: rows whose embedding failed are
// stored without one and excluded from similarity queries.
func Schema(dim int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS fragments (
	id           UUID PRIMARY KEY,
	document_id  TEXT NOT NULL,
	display_text TEXT NOT NULL,
	index_text   TEXT NOT NULL,
	embedding    vector(%d),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS fragments_document_id_idx
	ON fragments (document_id);
CREATE INDEX IF NOT EXISTS fragments_embedding_idx
	ON fragments USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS questions (
	id          UUID PRIMARY KEY,
	fragment_id UUID NOT NULL REFERENCES fragments(id) ON DELETE CASCADE,
	document_id TEXT NOT NULL,
	text        TEXT NOT NULL,
	embedding   vector(%d),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS questions_document_id_idx
	ON questions (document_id);
CREATE INDEX IF NOT EXISTS questions_fragment_id_idx
	ON questions (fragment_id);
CREATE INDEX IF NOT EXISTS questions_embedding_idx
	ON questions USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, dim, dim)
}
