// Package rank scores postings against a user's preference and orders them.
package rank

import (
	"errors"
	"fmt"
	"math"
	"time"

	"jobintel-engine/internal/textnorm"
)

type KeywordMode string

const (
	// KeywordAny scores partial keyword coverage.
	KeywordAny KeywordMode = "any"
	// KeywordAll disqualifies a posting missing any required keyword.
	KeywordAll KeywordMode = "all"
)

type Weights struct {
	Keyword  float64
	Location float64
	Salary   float64
}

type Bonuses struct {
	Salary  float64
	Remote  float64
	Recency float64
	Quality float64
}

type Config struct {
	Weights Weights
	Bonuses Bonuses

	LocationThreshold float64
	RecentWindow      time.Duration
	QualityBonusMin   float64

	KeywordMode KeywordMode
	// WholeWord makes keyword checks match complete tokens only, so "go"
	// does not hit "google".
	WholeWord  bool
	Similarity textnorm.Similarity

	Workers int
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{Keyword: 0.6, Location: 0.2, Salary: 0.2},
		Bonuses: Bonuses{Salary: 0.05, Remote: 0.05, Recency: 0.05, Quality: 0.05},

		LocationThreshold: 0.85,
		RecentWindow:      7 * 24 * time.Hour,
		QualityBonusMin:   0.8,

		KeywordMode: KeywordAny,
		WholeWord:   true,
		Similarity:  textnorm.Levenshtein,

		Workers: 8,
	}
}

func (c Config) Validate() error {
	var errs []error
	w := c.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"weights.keyword", w.Keyword},
		{"weights.location", w.Location},
		{"weights.salary", w.Salary},
		{"bonuses.salary", c.Bonuses.Salary},
		{"bonuses.remote", c.Bonuses.Remote},
		{"bonuses.recency", c.Bonuses.Recency},
		{"bonuses.quality", c.Bonuses.Quality},
		{"location_threshold", c.LocationThreshold},
		{"quality_bonus_min", c.QualityBonusMin},
	} {
		if f.v < 0 || f.v > 1 || math.IsNaN(f.v) {
			errs = append(errs, fmt.Errorf("match.%s: %v out of [0,1]", f.name, f.v))
		}
	}
	if sum := w.Keyword + w.Location + w.Salary; math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("match.weights: sum %.6f, want 1.0", sum))
	}
	if c.RecentWindow <= 0 {
		errs = append(errs, fmt.Errorf("match.recent_window: must be > 0 (got %s)", c.RecentWindow))
	}
	if c.KeywordMode != KeywordAny && c.KeywordMode != KeywordAll {
		errs = append(errs, fmt.Errorf("match.keyword_mode: %q, want any or all", c.KeywordMode))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("match.workers: must be >= 1 (got %d)", c.Workers))
	}
	return errors.Join(errs...)
}
