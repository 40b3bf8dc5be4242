package rank

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/textnorm"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newMatcher(t *testing.T, mutate ...func(*Config)) *Matcher {
	t.Helper()
	cfg := DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

func strPtr(s string) *string { return &s }

func TestKeywordTitleOnly(t *testing.T) {
	m := newMatcher(t)
	p := domain.Posting{Title: "Python Developer", Description: "Build services."}
	pref := domain.Preference{Keywords: []string{"Python"}}

	kw, reasons := m.keywordTerm(p, pref.Keywords)
	assert.Equal(t, 1.0, kw)
	assert.Equal(t, []string{`keyword "Python" in title`}, reasons)

	r := m.Match(p, pref, now)
	assert.False(t, r.Disqualified)
	assert.Equal(t, 1.0, r.RelevanceScore)
}

func TestKeywordTermWeights(t *testing.T) {
	m := newMatcher(t)
	p := domain.Posting{Title: "Go Engineer", Description: "We use Postgres and Kafka."}

	kw, _ := m.keywordTerm(p, []string{"go", "postgres", "rust"})
	assert.InDelta(t, 3.0/6.0, kw, 1e-9)

	kw, reasons := m.keywordTerm(p, nil)
	assert.Equal(t, 1.0, kw)
	assert.Empty(t, reasons)

	kw, _ = m.keywordTerm(domain.Posting{Title: "Google Ads Specialist"}, []string{"go"})
	assert.Equal(t, 0.0, kw, "whole word")
}

func TestKeywordMonotonicity(t *testing.T) {
	m := newMatcher(t)
	p := domain.Posting{
		Title:       "Senior Python Developer",
		Description: "Django, Postgres, AWS.",
		Location:    "Berlin",
	}
	prefs := [][]string{
		{"django"},
		{"rust"},
		{"aws", "kafka"},
		{},
	}
	for _, kws := range prefs {
		before := m.Match(p, domain.Preference{Keywords: kws}, now).RelevanceScore
		after := m.Match(p, domain.Preference{Keywords: append(append([]string{}, kws...), "python")}, now).RelevanceScore
		assert.GreaterOrEqual(t, after, before, "%v", kws)
	}
}

func TestExclusionDisqualifies(t *testing.T) {
	m := newMatcher(t)
	p := domain.Posting{
		Title:        "Python Developer",
		Description:  "Our legacy stack includes PHP.",
		Remote:       true,
		SalaryMin:    domain.IntPtr(100000),
		QualityScore: 0.95,
		PostedAt:     domain.TimePtr(now.Add(-time.Hour)),
	}
	r := m.Match(p, domain.Preference{Keywords: []string{"python"}, ExcludedKeywords: []string{"PHP"}}, now)
	assert.True(t, r.Disqualified)
	assert.Equal(t, 0.0, r.RelevanceScore)
	assert.Equal(t, []string{`excluded keyword "PHP"`}, r.Reasons)
}

func TestExclusionSubstringMode(t *testing.T) {
	p := domain.Posting{Title: "Engineer", Description: "phpunit experience"}
	pref := domain.Preference{ExcludedKeywords: []string{"php"}}

	assert.False(t, newMatcher(t).Match(p, pref, now).Disqualified)
	assert.True(t, newMatcher(t, func(c *Config) { c.WholeWord = false }).Match(p, pref, now).Disqualified)
}

func TestDisqualifiers(t *testing.T) {
	m := newMatcher(t)
	allMode := newMatcher(t, func(c *Config) { c.KeywordMode = KeywordAll })
	tests := []struct {
		name   string
		m      *Matcher
		p      domain.Posting
		pref   domain.Preference
		reason string
	}{
		{"spam", m, domain.Posting{Title: "Go", QualityTier: domain.TierSpam}, domain.Preference{}, "spam posting"},
		{"remote only", m, domain.Posting{Title: "Go"}, domain.Preference{RemoteOnly: true}, "not remote"},
		{"job type", m, domain.Posting{Title: "Go", JobType: "Contract"}, domain.Preference{JobTypes: []string{"full-time"}}, `job type "Contract" not wanted`},
		{"job type missing", m, domain.Posting{Title: "Go"}, domain.Preference{JobTypes: []string{"full-time"}}, `job type "unspecified" not wanted`},
		{"all mode", allMode, domain.Posting{Title: "Go Developer"}, domain.Preference{Keywords: []string{"go", "rust"}}, `missing keyword "rust"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.m.Match(tc.p, tc.pref, now)
			assert.True(t, r.Disqualified)
			assert.Zero(t, r.RelevanceScore)
			assert.Equal(t, []string{tc.reason}, r.Reasons)
		})
	}

	r := m.Match(domain.Posting{Title: "Go", JobType: "Full Time"}, domain.Preference{JobTypes: []string{"full-time"}}, now)
	assert.False(t, r.Disqualified, "job types compare normalized")
}

func TestLocationTerm(t *testing.T) {
	m := newMatcher(t)
	tests := []struct {
		name string
		p    domain.Posting
		want *string
		term float64
	}{
		{"unset", domain.Posting{Location: "Paris"}, nil, 1},
		{"blank", domain.Posting{Location: "Paris"}, strPtr("  "), 1},
		{"exact", domain.Posting{Location: "Berlin"}, strPtr("berlin"), 1},
		{"part", domain.Posting{Location: "Berlin, Germany"}, strPtr("Germany"), 1},
		{"accent and typo", domain.Posting{Location: "Zürich"}, strPtr("Zurich"), 1},
		{"fuzzy", domain.Posting{Location: "San Francisco"}, strPtr("San Fransisco"), 1},
		{"remote flag", domain.Posting{Remote: true}, strPtr("Remote"), 1},
		{"different", domain.Posting{Location: "Tokyo"}, strPtr("Berlin"), 0},
		{"missing", domain.Posting{}, strPtr("Berlin"), 0},
		{"shared region only", domain.Posting{Location: "Toronto, ON, CA"}, strPtr("San Francisco, CA"), 0},
		{"city inside wanted name", domain.Posting{Location: "York, UK"}, strPtr("New York, NY"), 0},
		{"broader posting", domain.Posting{Location: "Germany"}, strPtr("Berlin, Germany"), 0},
		{"wanted city and country", domain.Posting{Location: "Berlin"}, strPtr("Berlin, Germany"), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := m.locationTerm(tc.p, tc.want)
			assert.Equal(t, tc.term, got)
		})
	}
}

func TestSalaryTerm(t *testing.T) {
	ip := domain.IntPtr
	tests := []struct {
		name           string
		pmin, pmax     *int
		umin, umax     *int
		want           float64
	}{
		{"posting has none", nil, nil, ip(100000), ip(150000), 1},
		{"preference has none", ip(1), ip(2), nil, nil, 1},
		{"disjoint", ip(50000), ip(70000), ip(100000), ip(150000), 0},
		{"contained", ip(110000), ip(130000), ip(100000), ip(150000), 1},
		{"half overlap", ip(90000), ip(110000), ip(100000), ip(150000), 0.5},
		{"open posting max", ip(120000), nil, ip(100000), ip(150000), 0.6},
		{"open both sides", ip(120000), nil, nil, ip(200000), 1},
		{"point inside", ip(120000), ip(120000), ip(100000), ip(150000), 1},
		{"point outside", ip(90000), ip(90000), ip(100000), ip(150000), 0},
		{"inverted posting", ip(130000), ip(110000), ip(100000), ip(150000), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := domain.Posting{SalaryMin: tc.pmin, SalaryMax: tc.pmax}
			pref := domain.Preference{SalaryMin: tc.umin, SalaryMax: tc.umax}
			got, _ := salaryTerm(p, pref)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestNullSalaryIsNeutral(t *testing.T) {
	m := newMatcher(t)
	p := domain.Posting{Title: "Go Developer"}
	with := m.Match(p, domain.Preference{Keywords: []string{"go"}, SalaryMin: domain.IntPtr(100000), SalaryMax: domain.IntPtr(150000)}, now)
	without := m.Match(p, domain.Preference{Keywords: []string{"go"}}, now)
	assert.Equal(t, without.RelevanceScore, with.RelevanceScore)
}

func TestBonusesAndReasonOrder(t *testing.T) {
	m := newMatcher(t)
	p := domain.Posting{
		Title:        "Go Developer",
		Description:  "Kubernetes daily.",
		Location:     "Berlin, Germany",
		Remote:       true,
		SalaryMin:    domain.IntPtr(100000),
		SalaryMax:    domain.IntPtr(120000),
		PostedAt:     domain.TimePtr(now.Add(-48 * time.Hour)),
		QualityScore: 0.9,
	}
	pref := domain.Preference{
		Keywords:  []string{"go", "kubernetes"},
		Location:  strPtr("Berlin"),
		SalaryMin: domain.IntPtr(90000),
	}
	r := m.Match(p, pref, now)
	// keyword 3/4, location 1, salary 1: 0.45+0.2+0.2 = 0.85, plus 0.2 bonuses.
	assert.Equal(t, 1.0, r.RelevanceScore)
	assert.Equal(t, []string{
		`keyword "go" in title`,
		`keyword "kubernetes" in description`,
		`location matches "Berlin"`,
		"salary range compatible",
		"salary disclosed",
		"remote",
		"posted within 7 days",
		"high quality posting",
	}, r.Reasons)

	p.Remote = false
	p.QualityScore = 0.5
	p.PostedAt = domain.TimePtr(now.Add(-30 * 24 * time.Hour))
	r = m.Match(p, pref, now)
	assert.Equal(t, 0.9, r.RelevanceScore)
}

func TestMatchDeterministic(t *testing.T) {
	m := newMatcher(t)
	p := domain.Posting{Title: "Data Engineer", Description: "Spark and Airflow", Location: "Remote", Remote: true}
	pref := domain.Preference{Keywords: []string{"spark", "airflow", "data"}, Location: strPtr("remote")}
	first := m.Match(p, pref, now)
	for range 20 {
		assert.Equal(t, first, m.Match(p, pref, now))
	}
}

func TestRank(t *testing.T) {
	m := newMatcher(t)
	pref := domain.Preference{Keywords: []string{"go"}, ExcludedKeywords: []string{"php"}}
	day := func(n int) *time.Time { return domain.TimePtr(now.Add(-time.Duration(n) * 24 * time.Hour)) }

	postings := []domain.Posting{
		{Source: "a", SourceID: "1", Title: "Go Developer", PostedAt: day(10)},
		{Source: "a", SourceID: "2", Title: "Go Developer", PostedAt: day(20)},
		{Source: "a", SourceID: "3", Title: "Go Developer"},
		{Source: "a", SourceID: "0", Title: "Go Developer"},
		{Source: "a", SourceID: "4", Title: "Java Developer", Description: "some go"},
		{Source: "a", SourceID: "5", Title: "Go and PHP"},
		{Source: "a", SourceID: "6", Title: "Go Developer", QualityTier: domain.TierSpam},
		{Source: "a", SourceID: "7", Title: "Go Developer", QualityScore: 0.1},
	}

	out, err := m.Rank(context.Background(), postings, pref, now, Options{})
	require.NoError(t, err)
	assert.Empty(t, out.Failures)

	var ids []string
	for _, r := range out.Results {
		ids = append(ids, r.Posting.SourceID)
	}
	assert.Equal(t, []string{"1", "2", "0", "3", "7", "4"}, ids)

	out, err = m.Rank(context.Background(), postings, pref, now, Options{IncludeDisqualified: true, Limit: 10})
	require.NoError(t, err)
	ids = ids[:0]
	for _, r := range out.Results {
		ids = append(ids, r.Posting.SourceID)
	}
	assert.Equal(t, []string{"1", "2", "0", "3", "7", "4", "5"}, ids)

	out, err = m.Rank(context.Background(), postings, pref, now, Options{MinQuality: 0.05})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "7", out.Results[0].Posting.SourceID)

	out, err = m.Rank(context.Background(), postings, pref, now, Options{MinRelevance: 0.7, Limit: 2})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "1", out.Results[0].Posting.SourceID)
}

func TestRankNothingMatched(t *testing.T) {
	m := newMatcher(t)
	out, err := m.Rank(context.Background(), []domain.Posting{{Title: "PHP Developer"}}, domain.Preference{ExcludedKeywords: []string{"php"}}, now, Options{})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Empty(t, out.Failures)
	assert.Equal(t, 1, out.Evaluated)
}

func TestRankIsolatesPanics(t *testing.T) {
	m := newMatcher(t, func(c *Config) {
		c.Similarity = func(a, b string) float64 {
			if a == "boom" {
				panic("similarity exploded")
			}
			return textnorm.Levenshtein(a, b)
		}
	})
	pref := domain.Preference{Keywords: []string{"go"}, Location: strPtr("Berlin")}
	postings := make([]domain.Posting, 0, 10)
	for i := range 9 {
		postings = append(postings, domain.Posting{Source: "a", SourceID: fmt.Sprint(i), Title: "Go Developer", Location: "Berlin"})
	}
	postings = append(postings, domain.Posting{Source: "b", SourceID: "x", Title: "Go Developer", Location: "Boom"})

	out, err := m.Rank(context.Background(), postings, pref, now, Options{})
	require.NoError(t, err)
	assert.Len(t, out.Results, 9)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "x", out.Failures[0].SourceID)
	assert.Equal(t, "similarity exploded", out.Failures[0].Message)
}

func TestRankCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newMatcher(t).Rank(ctx, []domain.Posting{{Title: "Go"}}, domain.Preference{}, now, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Keyword = 0.9
	cfg.KeywordMode = "some"
	cfg.RecentWindow = 0
	_, err := New(cfg)
	require.Error(t, err)
	for _, want := range []string{"match.weights", "keyword_mode", "recent_window"} {
		assert.Contains(t, err.Error(), want)
	}
}
