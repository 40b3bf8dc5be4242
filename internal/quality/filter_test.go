package quality

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobintel-engine/internal/domain"
)

func newFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(DefaultConfig())
	require.NoError(t, err)
	return f
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("term%d", i)
	}
	return strings.Join(w, " ")
}

func completePosting() domain.Posting {
	return domain.Posting{
		Source:      "remotive",
		SourceID:    "42",
		URL:         "https://remotive.com/jobs/42",
		Title:       "Senior Backend Engineer",
		Company:     "Acme Corp",
		Description: words(160),
		Location:    "Berlin, Germany",
		SalaryMin:   domain.IntPtr(90000),
		SalaryMax:   domain.IntPtr(120000),
	}
}

func TestScoreCompletePostingIsHigh(t *testing.T) {
	r := newFilter(t).Score(completePosting())
	assert.Equal(t, 1.0, r.Score)
	assert.Equal(t, domain.TierHigh, r.Tier)
	assert.False(t, r.Spam)
	assert.Zero(t, r.SpamSignal)
}

func TestScoreSparsePostingIsLow(t *testing.T) {
	p := domain.Posting{
		Title:       "Backend Developer",
		Description: words(15),
	}
	r := newFilter(t).Score(p)
	assert.Less(t, r.Score, 0.3)
	assert.InDelta(t, 0.24, r.Score, 1e-9)
	assert.Equal(t, domain.TierLow, r.Tier)
}

func TestSpamOverridesCompleteFields(t *testing.T) {
	p := completePosting()
	p.Description = words(160) + " click here for easy money, act now at bit.ly/xyz"
	r := newFilter(t).Score(p)

	assert.True(t, r.Spam)
	assert.Equal(t, domain.TierSpam, r.Tier)
	assert.Equal(t, 5, r.SpamSignal)
	assert.Contains(t, r.SpamReasons, "blocklisted domain: bit.ly")
}

func TestSpamThresholdBoundary(t *testing.T) {
	f := newFilter(t)
	p := completePosting()

	p.Description = words(160) + " passive income and financial freedom"
	r := f.Score(p)
	assert.Equal(t, 2, r.SpamSignal)
	assert.False(t, r.Spam)

	p.Description += " with bitcoin"
	r = f.Score(p)
	assert.Equal(t, 3, r.SpamSignal)
	assert.True(t, r.Spam)
}

func TestSpamKeywordBoundaries(t *testing.T) {
	f := newFilter(t)
	tests := []struct {
		name  string
		title string
		desc  string
		want  int
	}{
		{"inside a word", "Cryptography Engineer", "Applied cryptographic research.", 0},
		{"whole word", "Crypto Engineer", "", 1},
		{"punctuation edge", "Engineer", "paid in bitcoin.", 1},
		{"nested keyword counts once", "Engineer", "exciting career possibilities await", 1},
		{"nested and separate", "Engineer", "employment career network, plus career network perks", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := completePosting()
			p.Title = tc.title
			p.Description = words(160) + " " + tc.desc
			assert.Equal(t, tc.want, f.Score(p).SpamSignal)
		})
	}
}

func TestSpamDomains(t *testing.T) {
	f := newFilter(t)
	tests := []struct {
		name string
		url  string
		desc string
		want int
	}{
		{"url host", "https://t.me/jobs", "", 2},
		{"subdomain", "https://go.bit.ly/abc", "", 2},
		{"lookalike", "https://notbit.ly/abc", "", 0},
		{"bare domain in text", "", "apply via tinyurl.com/xyz today", 2},
		{"two domains", "https://ow.ly/a", "or goo.gl/b", 4},
		{"clean", "https://example.com/j/1", "see example.org", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := completePosting()
			p.URL = tc.url
			p.Description = tc.desc
			assert.Equal(t, tc.want, f.Score(p).SpamSignal)
		})
	}
}

func TestSpamHeuristics(t *testing.T) {
	f := newFilter(t)

	p := completePosting()
	p.Title = "HIRING ENGINEERS NOW"
	assert.Equal(t, []string{"uppercase title"}, f.Score(p).SpamReasons)

	p = completePosting()
	p.Title = "Engineer wanted!!"
	assert.Equal(t, []string{"repeated exclamation in title"}, f.Score(p).SpamReasons)

	p = completePosting()
	p.Description = "Mail your CV to recruiter@gmail.com. " + words(160)
	assert.Equal(t, []string{"personal email in description"}, f.Score(p).SpamReasons)

	p.Description = words(160) + " recruiter@gmail.com"
	assert.Empty(t, f.Score(p).SpamReasons, "address outside the leading window")

	p = completePosting()
	p.Description = words(160) + " 🚀🚀🚀🔥🔥🔥"
	assert.Equal(t, []string{"emoji in description (6)"}, f.Score(p).SpamReasons)
}

func TestCompanyFactor(t *testing.T) {
	f := newFilter(t)
	for in, want := range map[string]float64{
		"":             0,
		"Confidential": 0,
		"N/A":          0,
		"A":            0,
		"Acme":         1,
	} {
		assert.Equal(t, want, f.companyFactor(in), in)
	}
}

func TestDescriptionFactor(t *testing.T) {
	f := newFilter(t)
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"empty", "", 0},
		{"short", words(10), 0.3},
		{"medium", words(60), 0.7},
		{"long", words(160), 1.0},
		{"shouting", strings.ToUpper(words(160)), 0.5},
		{"repeated punctuation", words(160) + " apply now!!", 0.5},
		{"low variety", strings.TrimSpace(strings.Repeat("work ", 30)), 0.15},
		{"boilerplate", "Lorem ipsum dolor sit amet", 0.15},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, f.descriptionFactor(tc.in), 1e-9)
		})
	}
}

func TestLocationFactor(t *testing.T) {
	f := newFilter(t)
	tests := []struct {
		p    domain.Posting
		want float64
	}{
		{domain.Posting{Remote: true}, 1},
		{domain.Posting{Location: "Remote - US"}, 1},
		{domain.Posting{Location: "Anywhere"}, 1},
		{domain.Posting{}, 0},
		{domain.Posting{Location: "TBD"}, 0.25},
		{domain.Posting{Location: "Multiple Locations"}, 0.25},
		{domain.Posting{Location: "12345"}, 0},
		{domain.Posting{Location: "Berlin, Germany"}, 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, f.locationFactor(tc.p), tc.p.Location)
	}
}

func TestSalaryFactor(t *testing.T) {
	assert.Equal(t, 0.0, salaryFactor(domain.Posting{}))
	assert.Equal(t, 1.0, salaryFactor(domain.Posting{SalaryMin: domain.IntPtr(50000)}))
	assert.Equal(t, 1.0, salaryFactor(domain.Posting{SalaryMax: domain.IntPtr(50000)}))
	assert.Equal(t, 0.5, salaryFactor(domain.Posting{SalaryMin: domain.IntPtr(9), SalaryMax: domain.IntPtr(1)}))
	assert.Equal(t, 0.0, salaryFactor(domain.Posting{SalaryMin: domain.IntPtr(-1)}))
}

func TestTitleFactor(t *testing.T) {
	f := newFilter(t)
	for in, want := range map[string]float64{
		"":                   0,
		"Untitled":           0,
		"Dev":                0.4,
		"Go Engineer":        1,
		"SENIOR GO ENGINEER": 0.5,
		"🚀🚀🚀 Dev Lead":       0.5,
		strings.Repeat("x", 101): 0.4,
	} {
		assert.Equal(t, want, f.titleFactor(in), in)
	}
}

func TestScoreBoundsAndIdempotence(t *testing.T) {
	f := newFilter(t)
	inputs := []domain.Posting{
		{},
		{Title: "!!!!", Description: "$$$ 🚀🚀🚀🚀🚀🚀🚀", SalaryMin: domain.IntPtr(-5), SalaryMax: domain.IntPtr(-10)},
		{Title: strings.Repeat("A", 500), Company: strings.Repeat("z", 300), Location: "  "},
		{Title: "Ingénieur Logiciel", Company: "Société Générale", Location: "Paris", Description: words(200)},
		completePosting(),
	}
	for i, p := range inputs {
		a, b := f.Score(p), f.Score(p)
		assert.Equal(t, a, b, "input %d", i)
		assert.GreaterOrEqual(t, a.Score, 0.0)
		assert.LessOrEqual(t, a.Score, 1.0)
	}
}

func TestTier(t *testing.T) {
	f := newFilter(t)
	assert.Equal(t, domain.TierHigh, f.tier(0.6, false))
	assert.Equal(t, domain.TierLow, f.tier(0.599, false))
	assert.Equal(t, domain.TierSpam, f.tier(1.0, true))
}

func TestAudit(t *testing.T) {
	f := newFilter(t)
	assert.True(t, f.Audit(completePosting()).Passed)
	assert.False(t, f.Audit(domain.Posting{Title: "x"}).Passed)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Title = 0.5
	cfg.HighCutoff = 1.5
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")
	assert.Contains(t, err.Error(), "high_cutoff")

	require.NoError(t, DefaultConfig().Validate())
}
