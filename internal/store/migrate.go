package store

import (
	"context"
	"fmt"
)

// Migrate applies schema versions tracked in PRAGMA user_version.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v < 1 {
		for _, stmt := range schemaV1 {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema v1: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `PRAGMA user_version = 1;`); err != nil {
			return err
		}
	}

	return tx.Commit()
}

var schemaV1 = []string{`
CREATE TABLE IF NOT EXISTS postings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  source_id TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  company TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  salary_min INTEGER,
  salary_max INTEGER,
  job_type TEXT NOT NULL DEFAULT '',
  remote INTEGER NOT NULL DEFAULT 0,
  posted_at TEXT,
  quality_score REAL NOT NULL DEFAULT 0,
  quality_tier TEXT NOT NULL DEFAULT 'low',
  dedup_key TEXT NOT NULL DEFAULT '',
  title_bucket TEXT NOT NULL DEFAULT '',
  company_bucket TEXT NOT NULL DEFAULT '',
  first_seen_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  UNIQUE(source, source_id)
);`, `
CREATE INDEX IF NOT EXISTS idx_postings_title_bucket ON postings(title_bucket);`, `
CREATE INDEX IF NOT EXISTS idx_postings_company_bucket ON postings(company_bucket);`, `
CREATE INDEX IF NOT EXISTS idx_postings_quality ON postings(quality_tier, quality_score);`, `
CREATE INDEX IF NOT EXISTS idx_postings_dedup_key ON postings(dedup_key);`, `
CREATE TABLE IF NOT EXISTS posting_sources (
  source TEXT NOT NULL,
  source_id TEXT NOT NULL,
  posting_id INTEGER NOT NULL REFERENCES postings(id) ON DELETE CASCADE,
  url TEXT NOT NULL DEFAULT '',
  added_at TEXT NOT NULL,
  PRIMARY KEY (source, source_id)
);`, `
CREATE INDEX IF NOT EXISTS idx_posting_sources_posting ON posting_sources(posting_id);`, `
CREATE TABLE IF NOT EXISTS preferences (
  user_id TEXT PRIMARY KEY,
  keywords TEXT NOT NULL DEFAULT '[]',
  excluded_keywords TEXT NOT NULL DEFAULT '[]',
  location TEXT,
  salary_min INTEGER,
  salary_max INTEGER,
  remote_only INTEGER NOT NULL DEFAULT 0,
  job_types TEXT NOT NULL DEFAULT '[]',
  notification_frequency TEXT NOT NULL DEFAULT 'daily',
  updated_at TEXT NOT NULL
);`,
}
