package sqlite

import (
	"context"
	"database/sql"
)

// Timestamps are stored as unix nanoseconds so both drivers round-trip them
// without relying on declared column types.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS urls (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  alias      TEXT    NOT NULL,
  long_url   TEXT    NOT NULL,
  hit_count  INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  deleted_at INTEGER NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_urls_alias_live ON urls(alias) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_urls_alias ON urls(alias);

CREATE TABLE IF NOT EXISTS url_usages (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  url_id     INTEGER NOT NULL,
  ip         TEXT    NOT NULL,
  user_agent TEXT    NULL,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_url_usages_url_id ON url_usages(url_id);
`

func applySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}
