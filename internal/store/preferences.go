package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobintel-engine/internal/domain"
)

// PutPreference replaces the user's preference wholesale.
func (d *DB) PutPreference(ctx context.Context, p domain.Preference, now time.Time) error {
	kw, _ := json.Marshal(nonNil(p.Keywords))
	ex, _ := json.Marshal(nonNil(p.ExcludedKeywords))
	jt, _ := json.Marshal(nonNil(p.JobTypes))
	var loc any
	if p.Location != nil {
		loc = *p.Location
	}
	freq := p.NotificationFrequency
	if freq == "" {
		freq = domain.NotifyDaily
	}

	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO preferences (user_id, keywords, excluded_keywords, location, salary_min, salary_max,
  remote_only, job_types, notification_frequency, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  keywords = excluded.keywords,
  excluded_keywords = excluded.excluded_keywords,
  location = excluded.location,
  salary_min = excluded.salary_min,
  salary_max = excluded.salary_max,
  remote_only = excluded.remote_only,
  job_types = excluded.job_types,
  notification_frequency = excluded.notification_frequency,
  updated_at = excluded.updated_at;`,
		p.UserID, string(kw), string(ex), loc, nullInt(p.SalaryMin), nullInt(p.SalaryMax),
		boolInt(p.RemoteOnly), string(jt), string(freq), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("put preference %s: %w", p.UserID, err)
	}
	return nil
}

func (d *DB) GetPreference(ctx context.Context, userID string) (domain.Preference, error) {
	var (
		p              domain.Preference
		kw, ex, jt     string
		loc            sql.NullString
		salMin, salMax sql.NullInt64
		remote         int
		freq           string
	)
	err := d.Pool.QueryRowContext(ctx, `
SELECT user_id, keywords, excluded_keywords, location, salary_min, salary_max,
  remote_only, job_types, notification_frequency
FROM preferences WHERE user_id = ?;`, userID).Scan(
		&p.UserID, &kw, &ex, &loc, &salMin, &salMax, &remote, &jt, &freq,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Preference{}, ErrNotFound
	}
	if err != nil {
		return domain.Preference{}, err
	}
	_ = json.Unmarshal([]byte(kw), &p.Keywords)
	_ = json.Unmarshal([]byte(ex), &p.ExcludedKeywords)
	_ = json.Unmarshal([]byte(jt), &p.JobTypes)
	if loc.Valid {
		s := loc.String
		p.Location = &s
	}
	p.SalaryMin, p.SalaryMax = intPtr(salMin), intPtr(salMax)
	p.RemoteOnly = remote != 0
	p.NotificationFrequency = domain.NotificationFrequency(freq)
	return p, nil
}

func (d *DB) DeletePreference(ctx context.Context, userID string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?;`, userID)
	if err != nil {
		return fmt.Errorf("delete preference %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
