package rank

import (
	"fmt"
	"math"
	"strings"
	"time"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/textnorm"
)

// Matcher is safe for concurrent use.
type Matcher struct {
	cfg Config
}

func New(cfg Config) (*Matcher, error) {
	if cfg.Similarity == nil {
		cfg.Similarity = textnorm.Levenshtein
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("match config: %w", err)
	}
	return &Matcher{cfg: cfg}, nil
}

// Match scores p for pref at the instant now. The same inputs always give
// the same score and the same reasons in the same order.
func (m *Matcher) Match(p domain.Posting, pref domain.Preference, now time.Time) domain.MatchResult {
	if reason, ok := m.disqualify(p, pref); ok {
		return domain.MatchResult{Posting: p, Disqualified: true, Reasons: []string{reason}}
	}

	var reasons []string

	kw, kwReasons := m.keywordTerm(p, pref.Keywords)
	reasons = append(reasons, kwReasons...)

	loc, locReason := m.locationTerm(p, pref.Location)
	if locReason != "" {
		reasons = append(reasons, locReason)
	}

	sal, salReason := salaryTerm(p, pref)
	if salReason != "" {
		reasons = append(reasons, salReason)
	}

	w := m.cfg.Weights
	score := w.Keyword*kw + w.Location*loc + w.Salary*sal

	b := m.cfg.Bonuses
	if p.SalaryMin != nil || p.SalaryMax != nil {
		score += b.Salary
		reasons = append(reasons, "salary disclosed")
	}
	if p.Remote {
		score += b.Remote
		reasons = append(reasons, "remote")
	}
	if p.PostedAt != nil && !p.PostedAt.After(now) && now.Sub(*p.PostedAt) <= m.cfg.RecentWindow {
		score += b.Recency
		reasons = append(reasons, fmt.Sprintf("posted within %d days", int(m.cfg.RecentWindow.Hours()/24)))
	}
	if p.QualityScore >= m.cfg.QualityBonusMin {
		score += b.Quality
		reasons = append(reasons, "high quality posting")
	}

	return domain.MatchResult{
		Posting:        p,
		RelevanceScore: round3(clamp01(score)),
		Reasons:        reasons,
	}
}

func (m *Matcher) disqualify(p domain.Posting, pref domain.Preference) (string, bool) {
	if p.QualityTier == domain.TierSpam {
		return "spam posting", true
	}
	for _, ex := range pref.ExcludedKeywords {
		if m.contains(p.Title, ex) || m.contains(p.Description, ex) {
			return fmt.Sprintf("excluded keyword %q", strings.TrimSpace(ex)), true
		}
	}
	if pref.RemoteOnly && !p.Remote {
		return "not remote", true
	}
	if len(pref.JobTypes) > 0 && !jobTypeAllowed(p.JobType, pref.JobTypes) {
		jt := p.JobType
		if jt == "" {
			jt = "unspecified"
		}
		return fmt.Sprintf("job type %q not wanted", jt), true
	}
	if m.cfg.KeywordMode == KeywordAll {
		for _, kw := range pref.Keywords {
			if textnorm.Normalize(kw) == "" {
				continue
			}
			if !m.contains(p.Title, kw) && !m.contains(p.Description, kw) {
				return fmt.Sprintf("missing keyword %q", strings.TrimSpace(kw)), true
			}
		}
	}
	return "", false
}

func (m *Matcher) contains(text, needle string) bool {
	return textnorm.ContainsPhrase(text, needle, m.cfg.WholeWord)
}

func jobTypeAllowed(jobType string, allowed []string) bool {
	jt := textnorm.Normalize(jobType)
	if jt == "" {
		return false
	}
	for _, a := range allowed {
		if textnorm.Normalize(a) == jt {
			return true
		}
	}
	return false
}

// keywordTerm credits 2 for a title hit and 1 for a description-only hit,
// over a maximum of 2 per keyword.
func (m *Matcher) keywordTerm(p domain.Posting, keywords []string) (float64, []string) {
	var (
		sum, n  int
		reasons []string
	)
	for _, kw := range keywords {
		if textnorm.Normalize(kw) == "" {
			continue
		}
		n++
		label := strings.TrimSpace(kw)
		switch {
		case m.contains(p.Title, kw):
			sum += 2
			reasons = append(reasons, fmt.Sprintf("keyword %q in title", label))
		case m.contains(p.Description, kw):
			sum++
			reasons = append(reasons, fmt.Sprintf("keyword %q in description", label))
		}
	}
	if n == 0 {
		return 1, nil
	}
	return float64(sum) / float64(2*n), reasons
}

// locationTerm matches when some part of the posting location contains the
// wanted place or is close to it. A multi-part wanted place such as
// "Berlin, Germany" also matches on its leading part alone; the posting
// naming only a broader region does not.
func (m *Matcher) locationTerm(p domain.Posting, want *string) (float64, string) {
	if want == nil {
		return 1, ""
	}
	w := textnorm.Normalize(*want)
	if w == "" {
		return 1, ""
	}
	var lead string
	if parts := textnorm.LocationParts(*want); len(parts) > 1 {
		lead = parts[0]
	}

	candidates := textnorm.LocationParts(p.Location)
	if whole := textnorm.Normalize(p.Location); whole != "" {
		candidates = append([]string{whole}, candidates...)
	}
	if p.Remote {
		candidates = append(candidates, "remote")
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if textnorm.ContainsPhrase(c, w, true) || m.cfg.Similarity(c, w) >= m.cfg.LocationThreshold {
			return 1, fmt.Sprintf("location matches %q", strings.TrimSpace(*want))
		}
		if lead != "" && (c == lead || m.cfg.Similarity(c, lead) >= m.cfg.LocationThreshold) {
			return 1, fmt.Sprintf("location matches %q", strings.TrimSpace(*want))
		}
	}
	return 0, ""
}

// salaryTerm treats a missing bound as open. Only a provable gap between the
// two ranges scores zero.
func salaryTerm(p domain.Posting, pref domain.Preference) (float64, string) {
	if (p.SalaryMin == nil && p.SalaryMax == nil) || (pref.SalaryMin == nil && pref.SalaryMax == nil) {
		return 1, ""
	}
	plo, phi := bounds(p.SalaryMin, p.SalaryMax)
	ulo, uhi := bounds(pref.SalaryMin, pref.SalaryMax)

	lo, hi := math.Max(plo, ulo), math.Min(phi, uhi)
	if lo > hi {
		return 0, ""
	}
	narrow := math.Min(phi-plo, uhi-ulo)
	if math.IsInf(narrow, 1) || narrow == 0 {
		return 1, "salary range compatible"
	}
	frac := clamp01((hi - lo) / narrow)
	if frac == 0 {
		return 0, ""
	}
	return frac, "salary range compatible"
}

func bounds(lo, hi *int) (float64, float64) {
	l, h := math.Inf(-1), math.Inf(1)
	if lo != nil {
		l = float64(*lo)
	}
	if hi != nil {
		h = float64(*hi)
	}
	if l > h {
		l, h = h, l
	}
	return l, h
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
