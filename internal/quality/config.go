// Package quality scores how useful a posting is and flags spam.
package quality

import (
	"errors"
	"fmt"
	"math"
)

type Weights struct {
	Company     float64 `yaml:"company"`
	Description float64 `yaml:"description"`
	Location    float64 `yaml:"location"`
	Salary      float64 `yaml:"salary"`
	Title       float64 `yaml:"title"`
}

func (w Weights) Sum() float64 {
	return w.Company + w.Description + w.Location + w.Salary + w.Title
}

type Config struct {
	Weights Weights
	// HighCutoff is the lowest score that still earns the high tier.
	HighCutoff float64

	CompanyMinChars     int
	CompanyPlaceholders []string

	DescShortWords     int
	DescMediumWords    int
	MaxCapsRatio       float64
	CapsMinLetters     int
	MinUniqueWordRatio float64
	UniqueMinWords     int
	Boilerplate        []string

	LocationMinChars int
	RemoteMarkers    []string
	VagueLocations   []string

	TitleMinChars     int
	TitleMaxChars     int
	MaxSymbolRatio    float64
	TitlePlaceholders []string

	SpamKeywords  []string
	SpamDomains   []string
	DomainSignal  int
	SpamThreshold int
	SpamCapsRatio float64
	MaxEmoji      int
	PersonalMail  []string
	// PersonalMailWindow is how many leading description runes are searched
	// for a personal mail address.
	PersonalMailWindow int
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Company:     0.20,
			Description: 0.30,
			Location:    0.15,
			Salary:      0.20,
			Title:       0.15,
		},
		HighCutoff: 0.6,

		CompanyMinChars: 2,
		CompanyPlaceholders: []string{
			"confidential", "n/a", "na", "unknown", "undisclosed", "anonymous",
			"company", "private", "none", "tbd", "not specified", "hiring company",
		},

		DescShortWords:     50,
		DescMediumWords:    150,
		MaxCapsRatio:       0.5,
		CapsMinLetters:     8,
		MinUniqueWordRatio: 0.3,
		UniqueMinWords:     20,
		Boilerplate: []string{
			"lorem ipsum", "job description here", "insert description",
			"description to be added", "to be updated", "copy and paste",
		},

		LocationMinChars: 2,
		RemoteMarkers:    []string{"remote", "anywhere", "worldwide"},
		VagueLocations: []string{
			"tbd", "to be determined", "various", "multiple locations",
			"n/a", "unknown", "see description", "flexible", "everywhere",
		},

		TitleMinChars:     5,
		TitleMaxChars:     100,
		MaxSymbolRatio:    0.2,
		TitlePlaceholders: []string{"untitled", "job title", "position", "job", "n/a", "tbd", "test", "job opening"},

		SpamKeywords: []string{
			"telegram", "click here", "earn money", "work from home fast",
			"get rich", "easy money", "no experience needed", "limited time",
			"act now", "make money fast", "guaranteed income", "free training",
			"no interview", "start today", "immediate start", "crypto", "bitcoin",
			"investment opportunity", "passive income", "financial freedom",
			"employment career network", "career network",
			"welcome! you've reached", "you've reached our gateway", "gateway to",
			"exciting career possibilities", "career possibilities",
			"apply on our portal", "visit our portal", "register on our",
			"sign up on our platform",
		},
		SpamDomains: []string{
			"telegram.me", "t.me", "bit.ly", "tinyurl.com", "goo.gl",
			"ow.ly", "buff.ly", "adf.ly",
		},
		DomainSignal:       2,
		SpamThreshold:      3,
		SpamCapsRatio:      0.8,
		MaxEmoji:           5,
		PersonalMail:       []string{"gmail", "yahoo", "hotmail", "outlook"},
		PersonalMailWindow: 200,
	}
}

const weightTolerance = 1e-6

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	w := c.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"weights.company", w.Company},
		{"weights.description", w.Description},
		{"weights.location", w.Location},
		{"weights.salary", w.Salary},
		{"weights.title", w.Title},
		{"high_cutoff", c.HighCutoff},
		{"max_caps_ratio", c.MaxCapsRatio},
		{"min_unique_word_ratio", c.MinUniqueWordRatio},
		{"max_symbol_ratio", c.MaxSymbolRatio},
		{"spam.caps_ratio", c.SpamCapsRatio},
	} {
		if f.v < 0 || f.v > 1 || math.IsNaN(f.v) {
			errs = append(errs, fmt.Errorf("quality.%s: %v out of [0,1]", f.name, f.v))
		}
	}
	if math.Abs(w.Sum()-1) > weightTolerance {
		errs = append(errs, fmt.Errorf("quality.weights: sum %.6f, want 1.0", w.Sum()))
	}
	if c.DescShortWords <= 0 || c.DescMediumWords <= c.DescShortWords {
		errs = append(errs, fmt.Errorf("quality.description bands: need 0 < short (%d) < medium (%d)", c.DescShortWords, c.DescMediumWords))
	}
	if c.TitleMinChars < 0 || c.TitleMaxChars < c.TitleMinChars {
		errs = append(errs, fmt.Errorf("quality.title length: min %d max %d", c.TitleMinChars, c.TitleMaxChars))
	}
	if c.SpamThreshold <= 0 {
		errs = append(errs, fmt.Errorf("quality.spam.threshold: must be > 0 (got %d)", c.SpamThreshold))
	}
	if c.DomainSignal < 0 || c.MaxEmoji < 0 || c.PersonalMailWindow < 0 {
		errs = append(errs, errors.New("quality.spam: domain_signal, max_emoji and personal_mail_window must be >= 0"))
	}
	return errors.Join(errs...)
}
