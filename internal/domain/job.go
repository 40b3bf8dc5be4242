package domain

import (
	"sort"
	"time"
)

type Tier string

const (
	TierHigh Tier = "high"
	TierLow  Tier = "low"
	TierSpam Tier = "spam"
)

// ParseTier maps a stored tier back to a Tier. Unknown values read as low.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierHigh, TierSpam:
		return Tier(s)
	default:
		return TierLow
	}
}

// SourceRef names one place a posting was seen.
type SourceRef struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
	URL      string `json:"url,omitempty"`
}

func (r SourceRef) Key() string { return r.Source + "\x00" + r.SourceID }

// Posting is a job listing. Source and SourceID form its identity; the
// optional fields are nil when the feed did not carry them.
type Posting struct {
	ID       int64  `json:"id,omitempty"`
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
	URL      string `json:"url,omitempty"`

	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	SalaryMin   *int       `json:"salary_min"`
	SalaryMax   *int       `json:"salary_max"`
	JobType     string     `json:"job_type"`
	Remote      bool       `json:"remote"`
	PostedAt    *time.Time `json:"posted_at"`

	QualityScore float64 `json:"quality_score"`
	QualityTier  Tier    `json:"quality_tier,omitempty"`

	SecondarySources []SourceRef `json:"secondary_sources,omitempty"`
}

func (p Posting) Ref() SourceRef {
	return SourceRef{Source: p.Source, SourceID: p.SourceID, URL: p.URL}
}

// IdentityLess orders postings by (source, source_id).
func IdentityLess(a, b Posting) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.SourceID < b.SourceID
}

// SortRefs returns refs deduplicated by identity and sorted.
func SortRefs(refs []SourceRef) []SourceRef {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(refs))
	out := make([]SourceRef, 0, len(refs))
	for _, r := range refs {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

func IntPtr(v int) *int { return &v }

func TimePtr(t time.Time) *time.Time { return &t }
