package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobintel-engine/internal/dedup"
	"jobintel-engine/internal/domain"
)

const postingCols = `id, source, source_id, url, title, company, description, location,
  salary_min, salary_max, job_type, remote, posted_at, quality_score, quality_tier`

type SearchOpts struct {
	MinQuality float64
	// Query matches title, company or description, case-insensitively.
	Query      string
	RemoteOnly bool
	Since      *time.Time
	Limit      int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(r rowScanner) (domain.Posting, error) {
	var (
		p              domain.Posting
		salMin, salMax sql.NullInt64
		posted         sql.NullString
		remote         int
		tier           string
	)
	if err := r.Scan(
		&p.ID, &p.Source, &p.SourceID, &p.URL, &p.Title, &p.Company, &p.Description, &p.Location,
		&salMin, &salMax, &p.JobType, &remote, &posted, &p.QualityScore, &tier,
	); err != nil {
		return domain.Posting{}, err
	}
	p.SalaryMin, p.SalaryMax = intPtr(salMin), intPtr(salMax)
	p.Remote = remote != 0
	p.PostedAt = parseTime(posted)
	p.QualityTier = domain.ParseTier(tier)
	return p, nil
}

func (d *DB) queryPostings(ctx context.Context, query string, args ...any) ([]domain.Posting, error) {
	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the single connection before the follow-up query.
	rows.Close()
	if err := d.attachSources(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSources fills SecondarySources for each posting.
func (d *DB) attachSources(ctx context.Context, ps []domain.Posting) error {
	if len(ps) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(ps))
	args := make([]any, 0, len(ps))
	for i, p := range ps {
		idx[p.ID] = i
		args = append(args, p.ID)
	}
	// SQLite caps bound parameters; chunk to stay under it.
	const chunk = 500
	for start := 0; start < len(args); start += chunk {
		end := min(start+chunk, len(args))
		part := args[start:end]
		q := `SELECT posting_id, source, source_id, url FROM posting_sources WHERE posting_id IN (?` +
			strings.Repeat(",?", len(part)-1) + `) ORDER BY source, source_id;`
		rows, err := d.Pool.QueryContext(ctx, q, part...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				id  int64
				ref domain.SourceRef
			)
			if err := rows.Scan(&id, &ref.Source, &ref.SourceID, &ref.URL); err != nil {
				rows.Close()
				return err
			}
			i := idx[id]
			ps[i].SecondarySources = append(ps[i].SecondarySources, ref)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
	}
	return nil
}

// FindByIdentity resolves (source, sourceID) to its posting, following an
// absorbed identity to the record that survived it.
func (d *DB) FindByIdentity(ctx context.Context, source, sourceID string) (domain.Posting, error) {
	ps, err := d.queryPostings(ctx, `SELECT `+postingCols+` FROM postings WHERE source = ? AND source_id = ?;`, source, sourceID)
	if err != nil {
		return domain.Posting{}, err
	}
	if len(ps) == 1 {
		return ps[0], nil
	}

	var id int64
	err = d.Pool.QueryRowContext(ctx,
		`SELECT posting_id FROM posting_sources WHERE source = ? AND source_id = ?;`, source, sourceID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Posting{}, ErrNotFound
	}
	if err != nil {
		return domain.Posting{}, err
	}
	return d.GetPosting(ctx, id)
}

func (d *DB) GetPosting(ctx context.Context, id int64) (domain.Posting, error) {
	ps, err := d.queryPostings(ctx, `SELECT `+postingCols+` FROM postings WHERE id = ?;`, id)
	if err != nil {
		return domain.Posting{}, err
	}
	if len(ps) == 0 {
		return domain.Posting{}, ErrNotFound
	}
	return ps[0], nil
}

// ListBucket returns the stored postings sharing a dedup bucket with p.
func (d *DB) ListBucket(ctx context.Context, p domain.Posting) ([]domain.Posting, error) {
	tb, cb := dedup.TitleBucket(p), dedup.CompanyBucket(p)
	if tb == "" && cb == "" {
		return nil, nil
	}
	return d.queryPostings(ctx, `
SELECT `+postingCols+`
FROM postings
WHERE (title_bucket = ? AND ? != '') OR (company_bucket = ? AND ? != '')
ORDER BY id;`, tb, tb, cb, cb)
}

// ListPostings is the search path. Spam never comes back from it.
func (d *DB) ListPostings(ctx context.Context, opts SearchOpts) ([]domain.Posting, error) {
	where := []string{"quality_tier != 'spam'", "quality_score >= ?"}
	args := []any{opts.MinQuality}

	if q := strings.TrimSpace(opts.Query); q != "" {
		like := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(lower(title) LIKE ? ESCAPE '\' OR lower(company) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if opts.RemoteOnly {
		where = append(where, "remote = 1")
	}
	if opts.Since != nil {
		where = append(where, "COALESCE(posted_at, first_seen_at) >= ?")
		args = append(args, formatTime(*opts.Since))
	}

	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT %s
FROM postings
WHERE %s
ORDER BY quality_score DESC, posted_at IS NULL, posted_at DESC, id
LIMIT ?;`, postingCols, strings.Join(where, " AND "))
	return d.queryPostings(ctx, query, args...)
}

// AllPostings returns the whole corpus, spam included, in id order.
func (d *DB) AllPostings(ctx context.Context) ([]domain.Posting, error) {
	return d.queryPostings(ctx, `SELECT `+postingCols+` FROM postings ORDER BY id;`)
}

// Matchable returns the postings worth ranking for users.
func (d *DB) Matchable(ctx context.Context, minQuality float64) ([]domain.Posting, error) {
	return d.queryPostings(ctx, `
SELECT `+postingCols+`
FROM postings
WHERE quality_tier != 'spam' AND quality_score >= ?
ORDER BY id;`, minQuality)
}

type TierCounts struct {
	High  int `json:"high"`
	Low   int `json:"low"`
	Spam  int `json:"spam"`
	Total int `json:"total"`
}

func (d *DB) CountByTier(ctx context.Context) (TierCounts, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT quality_tier, COUNT(*) FROM postings GROUP BY quality_tier;`)
	if err != nil {
		return TierCounts{}, err
	}
	defer rows.Close()

	var c TierCounts
	for rows.Next() {
		var (
			tier string
			n    int
		)
		if err := rows.Scan(&tier, &n); err != nil {
			return TierCounts{}, err
		}
		switch domain.ParseTier(tier) {
		case domain.TierHigh:
			c.High += n
		case domain.TierSpam:
			c.Spam += n
		default:
			c.Low += n
		}
		c.Total += n
	}
	return c, rows.Err()
}

// CleanupOldPostings deletes postings last dated before now-retention.
func (d *DB) CleanupOldPostings(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	cutoff := formatTime(now.Add(-retention))
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM posting_sources
WHERE posting_id IN (SELECT id FROM postings WHERE COALESCE(posted_at, first_seen_at) < ?);`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup sources: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE COALESCE(posted_at, first_seen_at) < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old postings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
