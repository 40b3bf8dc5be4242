// Package dedup decides whether a newly scraped posting repeats one already
// in the corpus and which of the two records survives.
package dedup

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/textnorm"
)

type Config struct {
	TitleThreshold   float64
	CompanyThreshold float64
	// Window is the largest posted_at gap still considered a repost.
	Window     time.Duration
	Similarity textnorm.Similarity
}

func DefaultConfig() Config {
	return Config{
		TitleThreshold:   0.88,
		CompanyThreshold: 0.88,
		Window:           14 * 24 * time.Hour,
		Similarity:       textnorm.Levenshtein,
	}
}

func (c Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"title_threshold", c.TitleThreshold},
		{"company_threshold", c.CompanyThreshold},
	} {
		if f.v < 0 || f.v > 1 || math.IsNaN(f.v) {
			errs = append(errs, fmt.Errorf("dedup.%s: %v out of [0,1]", f.name, f.v))
		}
	}
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("dedup.window: must be > 0 (got %s)", c.Window))
	}
	return errors.Join(errs...)
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.Similarity == nil {
		cfg.Similarity = textnorm.Levenshtein
	}
	return &Engine{cfg: cfg}
}

// IsDuplicate compares content only; identity is ignored. It is symmetric.
func (e *Engine) IsDuplicate(a, b domain.Posting) bool {
	ta, tb := textnorm.Normalize(a.Title), textnorm.Normalize(b.Title)
	if ta == "" || tb == "" {
		return false
	}
	if ta != tb && e.cfg.Similarity(ta, tb) < e.cfg.TitleThreshold {
		return false
	}

	ca, cb := textnorm.Normalize(a.Company), textnorm.Normalize(b.Company)
	if ca == "" || cb == "" {
		return false
	}
	if ca != cb && e.cfg.Similarity(ca, cb) < e.cfg.CompanyThreshold {
		return false
	}

	return withinWindow(a.PostedAt, b.PostedAt, e.cfg.Window)
}

// A missing timestamp cannot prove the postings are far apart.
func withinWindow(a, b *time.Time, window time.Duration) bool {
	if a == nil || b == nil {
		return true
	}
	d := a.Sub(*b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// FindDuplicate returns the first corpus posting that shares a bucket with
// candidate and is a duplicate of it. The candidate's own identity is skipped.
func (e *Engine) FindDuplicate(candidate domain.Posting, corpus []domain.Posting) (domain.Posting, bool) {
	keys := BucketKeys(candidate)
	if len(keys) == 0 {
		return domain.Posting{}, false
	}
	var pool []domain.Posting
	for _, p := range corpus {
		if sameIdentity(p, candidate) || !sharesBucket(keys, BucketKeys(p)) {
			continue
		}
		pool = append(pool, p)
	}
	sortCanonical(pool)
	for _, p := range pool {
		if e.IsDuplicate(candidate, p) {
			return p, true
		}
	}
	return domain.Posting{}, false
}

// Key is the fuzzy composite used to spot collisions; it never replaces the
// stored (source, source_id) identity.
func Key(p domain.Posting) string {
	return textnorm.Normalize(p.Title) + "|" + textnorm.Normalize(p.Company) + "|" + textnorm.Normalize(p.Location)
}

// TitleBucket and CompanyBucket are the two lookup buckets for a posting.
func TitleBucket(p domain.Posting) string { return textnorm.FirstToken(p.Title) }

func CompanyBucket(p domain.Posting) string { return textnorm.Normalize(p.Company) }

func BucketKeys(p domain.Posting) []string {
	var keys []string
	if t := TitleBucket(p); t != "" {
		keys = append(keys, "t:"+t)
	}
	if c := CompanyBucket(p); c != "" {
		keys = append(keys, "c:"+c)
	}
	return keys
}

func sharesBucket(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func sameIdentity(a, b domain.Posting) bool {
	return a.Source == b.Source && a.SourceID == b.SourceID
}

// sortCanonical orders by posted_at ascending (missing last), then identity.
func sortCanonical(ps []domain.Posting) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch {
		case a.PostedAt != nil && b.PostedAt != nil && !a.PostedAt.Equal(*b.PostedAt):
			return a.PostedAt.Before(*b.PostedAt)
		case a.PostedAt != nil && b.PostedAt == nil:
			return true
		case a.PostedAt == nil && b.PostedAt != nil:
			return false
		}
		return domain.IdentityLess(a, b)
	})
}

func present(s string) bool { return strings.TrimSpace(s) != "" }
