package rank

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"jobintel-engine/internal/domain"
)

type Options struct {
	MinQuality          float64
	MinRelevance        float64
	Limit               int
	IncludeDisqualified bool
}

// ItemError records a posting whose evaluation panicked.
type ItemError struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
	Err      error  `json:"-"`
	Message  string `json:"message"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("match %s/%s: %v", e.Source, e.SourceID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Ranking holds the ordered results. Empty Results with no Failures means
// nothing matched.
type Ranking struct {
	Results   []domain.MatchResult `json:"results"`
	Failures  []ItemError          `json:"failures,omitempty"`
	Evaluated int                  `json:"evaluated"`
}

type slot struct {
	res  domain.MatchResult
	err  *ItemError
	keep bool
}

// Rank matches every eligible posting in parallel and returns them ordered
// by relevance, then recency, then identity. A panic while scoring one
// posting is recorded in Failures and the rest still run. The only error is
// ctx's.
func (m *Matcher) Rank(ctx context.Context, postings []domain.Posting, pref domain.Preference, now time.Time, opts Options) (Ranking, error) {
	slots := make([]slot, len(postings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i := range postings {
		p := postings[i]
		if p.QualityTier == domain.TierSpam || p.QualityScore < opts.MinQuality {
			continue
		}
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = m.evaluate(p, pref, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Ranking{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ranking{}, err
	}

	var out Ranking
	for _, s := range slots {
		if s.err != nil {
			out.Evaluated++
			out.Failures = append(out.Failures, *s.err)
			continue
		}
		if !s.keep {
			continue
		}
		out.Evaluated++
		r := s.res
		if r.Disqualified && !opts.IncludeDisqualified {
			continue
		}
		if !r.Disqualified && r.RelevanceScore < opts.MinRelevance {
			continue
		}
		out.Results = append(out.Results, r)
	}
	SortResults(out.Results)
	if opts.Limit > 0 && len(out.Results) > opts.Limit {
		out.Results = out.Results[:opts.Limit]
	}
	return out, nil
}

func (m *Matcher) evaluate(p domain.Posting, pref domain.Preference, now time.Time) (s slot) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			s = slot{err: &ItemError{Source: p.Source, SourceID: p.SourceID, Err: err, Message: fmt.Sprint(r)}}
		}
	}()
	return slot{res: m.Match(p, pref, now), keep: true}
}

// SortResults orders by relevance desc, posted_at desc with undated last,
// then identity.
func SortResults(rs []domain.MatchResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		pa, pb := a.Posting.PostedAt, b.Posting.PostedAt
		switch {
		case pa != nil && pb != nil && !pa.Equal(*pb):
			return pa.After(*pb)
		case pa != nil && pb == nil:
			return true
		case pa == nil && pb != nil:
			return false
		}
		return domain.IdentityLess(a.Posting, b.Posting)
	})
}
