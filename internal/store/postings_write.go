package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobintel-engine/internal/dedup"
	"jobintel-engine/internal/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertPosting stores a new posting with its secondary sources and returns
// its row id.
func (d *DB) InsertPosting(ctx context.Context, p domain.Posting, now time.Time) (int64, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	ts := formatTime(now)
	res, err := tx.ExecContext(ctx, `
INSERT INTO postings (source, source_id, url, title, company, description, location,
  salary_min, salary_max, job_type, remote, posted_at, quality_score, quality_tier,
  dedup_key, title_bucket, company_bucket, first_seen_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		p.Source, p.SourceID, p.URL, p.Title, p.Company, p.Description, p.Location,
		nullInt(p.SalaryMin), nullInt(p.SalaryMax), p.JobType, boolInt(p.Remote), nullTime(p.PostedAt),
		p.QualityScore, string(p.QualityTier),
		dedup.Key(p), dedup.TitleBucket(p), dedup.CompanyBucket(p), ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("insert posting %s/%s: %w", p.Source, p.SourceID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, ref := range p.SecondarySources {
		if err := addSource(ctx, tx, id, ref, ts); err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}

// UpdatePosting rewrites the row with p.ID, identity included, and records
// any secondary sources not yet stored. A merge can hand a row to a richer
// record from another source, so identity is not fixed.
func (d *DB) UpdatePosting(ctx context.Context, p domain.Posting, now time.Time) error {
	if p.ID == 0 {
		return fmt.Errorf("update posting %s/%s: missing id", p.Source, p.SourceID)
	}
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := updatePosting(ctx, tx, p, formatTime(now)); err != nil {
		return err
	}
	return tx.Commit()
}

// MergePostings collapses two stored rows into one: the row loserID is
// deleted, its sources with it, and survivor is written over survivor.ID.
// Identities the loser carried must be listed in survivor.SecondarySources.
func (d *DB) MergePostings(ctx context.Context, survivor domain.Posting, loserID int64, now time.Time) error {
	if survivor.ID == 0 || loserID == 0 || survivor.ID == loserID {
		return fmt.Errorf("merge postings %d into %d: bad ids", loserID, survivor.ID)
	}
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE id = ?;`, loserID)
	if err != nil {
		return fmt.Errorf("merge postings: delete %d: %w", loserID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := updatePosting(ctx, tx, survivor, formatTime(now)); err != nil {
		return err
	}
	return tx.Commit()
}

func updatePosting(ctx context.Context, q execer, p domain.Posting, ts string) error {
	// The new identity may have been an absorbed one.
	if _, err := q.ExecContext(ctx,
		`DELETE FROM posting_sources WHERE source = ? AND source_id = ?;`, p.Source, p.SourceID); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
UPDATE postings SET
  source = ?, source_id = ?, url = ?, title = ?, company = ?, description = ?, location = ?,
  salary_min = ?, salary_max = ?, job_type = ?, remote = ?, posted_at = ?,
  quality_score = ?, quality_tier = ?, dedup_key = ?, title_bucket = ?, company_bucket = ?,
  updated_at = ?
WHERE id = ?;`,
		p.Source, p.SourceID, p.URL, p.Title, p.Company, p.Description, p.Location,
		nullInt(p.SalaryMin), nullInt(p.SalaryMax), p.JobType, boolInt(p.Remote), nullTime(p.PostedAt),
		p.QualityScore, string(p.QualityTier), dedup.Key(p), dedup.TitleBucket(p), dedup.CompanyBucket(p),
		ts, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update posting %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for _, ref := range p.SecondarySources {
		if err := addSource(ctx, q, p.ID, ref, ts); err != nil {
			return err
		}
	}
	return nil
}

// addSource is a no-op when ref is already recorded.
func addSource(ctx context.Context, q execer, postingID int64, ref domain.SourceRef, ts string) error {
	_, err := q.ExecContext(ctx, `
INSERT OR IGNORE INTO posting_sources (source, source_id, posting_id, url, added_at)
VALUES (?, ?, ?, ?, ?);`, ref.Source, ref.SourceID, postingID, ref.URL, ts)
	if err != nil {
		return fmt.Errorf("add source %s/%s: %w", ref.Source, ref.SourceID, err)
	}
	return nil
}

func (d *DB) UpdateQuality(ctx context.Context, id int64, score float64, tier domain.Tier, now time.Time) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE postings SET quality_score = ?, quality_tier = ?, updated_at = ? WHERE id = ?;`,
		score, string(tier), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("update quality %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
