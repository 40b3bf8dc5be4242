package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobintel-engine/internal/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func posting(source, id, title, company string) domain.Posting {
	return domain.Posting{
		Source:   source,
		SourceID: id,
		Title:    title,
		Company:  company,
		PostedAt: domain.TimePtr(base),
	}
}

func TestIsDuplicate(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		name string
		a, b domain.Posting
		want bool
	}{
		{
			name: "trailing space and case",
			a:    posting("a", "1", "Senior Python Developer", "TechCorp"),
			b:    posting("b", "2", "senior python developer ", "TechCorp"),
			want: true,
		},
		{
			name: "punctuation differences",
			a:    posting("a", "1", "Backend Engineer (Go)", "Acme, Inc."),
			b:    posting("b", "2", "Backend Engineer - Go", "Acme Inc"),
			want: true,
		},
		{
			name: "different role same company",
			a:    posting("a", "1", "Python Developer", "TechCorp"),
			b:    posting("b", "2", "Sales Manager", "TechCorp"),
			want: false,
		},
		{
			name: "same title different company",
			a:    posting("a", "1", "Python Developer", "TechCorp"),
			b:    posting("b", "2", "Python Developer", "Globex"),
			want: false,
		},
		{
			name: "empty company never matches",
			a:    posting("a", "1", "Python Developer", ""),
			b:    posting("b", "2", "Python Developer", ""),
			want: false,
		},
		{
			name: "empty title never matches",
			a:    posting("a", "1", "  ", "TechCorp"),
			b:    posting("b", "2", "", "TechCorp"),
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.IsDuplicate(tc.a, tc.b))
			assert.Equal(t, tc.want, e.IsDuplicate(tc.b, tc.a), "symmetry")
		})
	}
}

func TestIsDuplicateWindow(t *testing.T) {
	e := New(DefaultConfig())
	a := posting("a", "1", "Python Developer", "TechCorp")
	b := posting("b", "2", "Python Developer", "TechCorp")

	b.PostedAt = domain.TimePtr(base.Add(13 * 24 * time.Hour))
	assert.True(t, e.IsDuplicate(a, b))

	b.PostedAt = domain.TimePtr(base.Add(-30 * 24 * time.Hour))
	assert.False(t, e.IsDuplicate(a, b))

	b.PostedAt = nil
	assert.True(t, e.IsDuplicate(a, b))
}

func TestFindDuplicateSkipsSelfAndOrders(t *testing.T) {
	e := New(DefaultConfig())
	cand := posting("rss", "x", "Data Engineer", "Initech")

	older := posting("z", "9", "Data Engineer", "Initech")
	older.PostedAt = domain.TimePtr(base.Add(-48 * time.Hour))
	newer := posting("a", "1", "Data Engineer", "Initech")
	undated := posting("a", "0", "Data Engineer", "Initech")
	undated.PostedAt = nil
	unrelated := posting("a", "2", "Chef", "Restaurant")

	corpus := []domain.Posting{cand, unrelated, undated, newer, older}
	got, ok := e.FindDuplicate(cand, corpus)
	require.True(t, ok)
	assert.Equal(t, "9", got.SourceID)

	_, ok = e.FindDuplicate(cand, []domain.Posting{cand, unrelated})
	assert.False(t, ok)
}

func TestIndex(t *testing.T) {
	e := New(DefaultConfig())
	ix := NewIndex(e)

	a := posting("a", "1", "Platform Engineer", "Hooli")
	ix.Add(a)
	ix.Add(posting("a", "2", "Barista", "Cafe"))
	require.Equal(t, 2, ix.Len())

	got, ok := ix.FindDuplicate(posting("b", "7", "platform engineer", "Hooli"))
	require.True(t, ok)
	assert.Equal(t, "1", got.SourceID)

	merged := a
	merged.SourceID = "1"
	merged.Location = "Remote"
	ix.Replace(a, merged)
	assert.Equal(t, 2, ix.Len())
	got, ok = ix.FindDuplicate(posting("b", "7", "Platform Engineer", "Hooli"))
	require.True(t, ok)
	assert.Equal(t, "Remote", got.Location)

	ix.Add(a)
	assert.Equal(t, 2, ix.Len(), "same identity replaces")
}

func TestMergeRicherSurvives(t *testing.T) {
	a := posting("weworkremotely", "1", "Senior Python Developer", "TechCorp")
	a.Description = "Build APIs."
	a.SalaryMin = domain.IntPtr(100000)
	a.SalaryMax = domain.IntPtr(140000)
	a.Location = "Remote"

	b := posting("remotive", "2", "senior python developer ", "TechCorp")
	b.Description = "Build APIs."
	b.JobType = "full-time"

	s, abs := Merge(a, b)
	assert.Equal(t, "1", s.SourceID)
	assert.Equal(t, "2", abs.SourceID)
	assert.Equal(t, "full-time", s.JobType, "back-filled from absorbed")
	require.Len(t, s.SecondarySources, 1)
	assert.Equal(t, "remotive", s.SecondarySources[0].Source)
}

func TestMergeBackfillsDescription(t *testing.T) {
	a := posting("remotive", "1", "Data Engineer", "Initech")
	a.SalaryMin = domain.IntPtr(90000)
	a.SalaryMax = domain.IntPtr(120000)
	a.Location = "Berlin"

	b := posting("wwr", "2", "Data Engineer", "Initech")
	b.Description = "Own the warehouse."

	s, _ := Merge(a, b)
	assert.Equal(t, "remotive", s.Source)
	assert.Equal(t, "Own the warehouse.", s.Description)
	assert.Equal(t, "Initech", s.Company)

	blank := Backfill(domain.Posting{Company: "  "}, b)
	assert.Equal(t, "Initech", blank.Company)
	assert.Equal(t, "Own the warehouse.", blank.Description)
}

func TestMergeCommutativeAndIdempotent(t *testing.T) {
	a := posting("a", "1", "Go Developer", "Acme")
	b := posting("b", "2", "Go Developer", "Acme")
	b.PostedAt = domain.TimePtr(base.Add(time.Hour))

	s1, _ := Merge(a, b)
	s2, _ := Merge(b, a)
	assert.Equal(t, s1, s2)
	assert.Equal(t, "1", s1.SourceID, "earlier posting is canonical")

	s3, _ := Merge(s1, b)
	assert.Equal(t, s1, s3)
}

func TestMergeIdentityTieBreak(t *testing.T) {
	a := posting("b", "1", "Go Developer", "Acme")
	b := posting("a", "9", "Go Developer", "Acme")

	s, _ := Merge(a, b)
	assert.Equal(t, "a", s.Source)
	s, _ = Merge(b, a)
	assert.Equal(t, "a", s.Source)
}

func TestKeyAndBuckets(t *testing.T) {
	p := posting("a", "1", "Senior Go Engineer", "Acme, Inc.")
	p.Location = "Berlin"
	assert.Equal(t, "senior go engineer|acme inc|berlin", Key(p))
	assert.Equal(t, []string{"t:senior", "c:acme inc"}, BucketKeys(p))
	assert.Empty(t, BucketKeys(domain.Posting{}))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.TitleThreshold = 1.5
	cfg.Window = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup.title_threshold")
	assert.Contains(t, err.Error(), "dedup.window")
}
