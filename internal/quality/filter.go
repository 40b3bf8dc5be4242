package quality

import (
	"fmt"
	"math"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/textnorm"
)

type Result struct {
	Score       float64     `json:"quality_score"`
	Tier        domain.Tier `json:"quality_tier"`
	Factors     Factors     `json:"factors"`
	SpamSignal  int         `json:"spam_signal"`
	SpamReasons []string    `json:"spam_reasons,omitempty"`
	Spam        bool        `json:"spam"`
}

// Audit is a Result with a pass/fail verdict for reports.
type Audit struct {
	Result
	Passed bool `json:"passed"`
}

// Filter is safe for concurrent use.
type Filter struct {
	cfg  Config
	spam *spamMatcher

	companyPlaceholders map[string]bool
	titlePlaceholders   map[string]bool
	vagueLocations      map[string]bool
}

func New(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("quality config: %w", err)
	}
	return &Filter{
		cfg:                 cfg,
		spam:                newSpamMatcher(cfg),
		companyPlaceholders: normalizedSet(cfg.CompanyPlaceholders),
		titlePlaceholders:   normalizedSet(cfg.TitlePlaceholders),
		vagueLocations:      normalizedSet(cfg.VagueLocations),
	}, nil
}

func (f *Filter) Config() Config { return f.cfg }

// Score never fails. Missing fields lower their factor instead.
func (f *Filter) Score(p domain.Posting) Result {
	fs := Factors{
		Company:     f.companyFactor(p.Company),
		Description: f.descriptionFactor(p.Description),
		Location:    f.locationFactor(p),
		Salary:      salaryFactor(p),
		Title:       f.titleFactor(p.Title),
	}
	w := f.cfg.Weights
	score := Round3(clamp01(
		w.Company*fs.Company +
			w.Description*fs.Description +
			w.Location*fs.Location +
			w.Salary*fs.Salary +
			w.Title*fs.Title))

	signal, reasons := f.spamSignal(p)
	spam := signal >= f.cfg.SpamThreshold
	return Result{
		Score:       score,
		Tier:        f.tier(score, spam),
		Factors:     fs,
		SpamSignal:  signal,
		SpamReasons: reasons,
		Spam:        spam,
	}
}

func (f *Filter) Audit(p domain.Posting) Audit {
	r := f.Score(p)
	return Audit{Result: r, Passed: r.Tier == domain.TierHigh}
}

func (f *Filter) tier(score float64, spam bool) domain.Tier {
	switch {
	case spam:
		return domain.TierSpam
	case score >= f.cfg.HighCutoff:
		return domain.TierHigh
	default:
		return domain.TierLow
	}
}

func normalizedSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		if n := textnorm.Normalize(it); n != "" {
			m[n] = true
		}
	}
	return m
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

// Round3 rounds to three decimals, the precision scores are stored at.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
