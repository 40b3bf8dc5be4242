// Package config loads the engine's YAML configuration and turns it into the
// per-component configs the core packages take.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"jobintel-engine/internal/dedup"
	"jobintel-engine/internal/feed"
	"jobintel-engine/internal/quality"
	"jobintel-engine/internal/rank"
	"jobintel-engine/internal/textnorm"
)

const AppName = "jobintel"

//go:embed default_config.yml
var defaultYAML []byte

// DefaultYAML is the config written on first run.
func DefaultYAML() []byte { return append([]byte(nil), defaultYAML...) }

type Config struct {
	App     App     `yaml:"app"`
	Feeds   Feeds   `yaml:"feeds"`
	Dedup   Dedup   `yaml:"dedup"`
	Quality Quality `yaml:"quality"`
	Match   Match   `yaml:"match"`
}

type App struct {
	DataDir       string `yaml:"data_dir"`
	HTTPAddr      string `yaml:"http_addr"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	Workers       int    `yaml:"workers"`
	RetentionDays int    `yaml:"retention_days"`
}

type Feeds struct {
	// Interval and Cleanup are cron specs; descriptors like "@every 2h" work.
	Interval       string        `yaml:"interval"`
	Cleanup        string        `yaml:"cleanup"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	Burst          int           `yaml:"burst"`
	UserAgent      string        `yaml:"user_agent"`
	Sources        []feed.Source `yaml:"sources"`
}

type Dedup struct {
	TitleThreshold   float64 `yaml:"title_threshold"`
	CompanyThreshold float64 `yaml:"company_threshold"`
	WindowDays       int     `yaml:"window_days"`
	Similarity       string  `yaml:"similarity"`
}

type Quality struct {
	Weights    quality.Weights `yaml:"weights"`
	HighCutoff float64         `yaml:"high_cutoff"`

	Company struct {
		MinChars     int      `yaml:"min_chars"`
		Placeholders []string `yaml:"placeholders"`
	} `yaml:"company"`

	Description struct {
		ShortWords         int      `yaml:"short_words"`
		MediumWords        int      `yaml:"medium_words"`
		MaxCapsRatio       float64  `yaml:"max_caps_ratio"`
		CapsMinLetters     int      `yaml:"caps_min_letters"`
		MinUniqueWordRatio float64  `yaml:"min_unique_word_ratio"`
		UniqueMinWords     int      `yaml:"unique_min_words"`
		Boilerplate        []string `yaml:"boilerplate"`
	} `yaml:"description"`

	Location struct {
		MinChars      int      `yaml:"min_chars"`
		RemoteMarkers []string `yaml:"remote_markers"`
		Vague         []string `yaml:"vague"`
	} `yaml:"location"`

	Title struct {
		MinChars       int      `yaml:"min_chars"`
		MaxChars       int      `yaml:"max_chars"`
		MaxSymbolRatio float64  `yaml:"max_symbol_ratio"`
		Placeholders   []string `yaml:"placeholders"`
	} `yaml:"title"`

	Spam struct {
		Threshold          int      `yaml:"threshold"`
		DomainSignal       int      `yaml:"domain_signal"`
		CapsRatio          float64  `yaml:"caps_ratio"`
		MaxEmoji           int      `yaml:"max_emoji"`
		PersonalMail       []string `yaml:"personal_mail"`
		PersonalMailWindow int      `yaml:"personal_mail_window"`
		Domains            []string `yaml:"domains"`
		Keywords           []string `yaml:"keywords"`
	} `yaml:"spam"`
}

type Match struct {
	Weights struct {
		Keyword  float64 `yaml:"keyword"`
		Location float64 `yaml:"location"`
		Salary   float64 `yaml:"salary"`
	} `yaml:"weights"`
	Bonuses struct {
		Salary  float64 `yaml:"salary"`
		Remote  float64 `yaml:"remote"`
		Recency float64 `yaml:"recency"`
		Quality float64 `yaml:"quality"`
	} `yaml:"bonuses"`
	LocationThreshold float64 `yaml:"location_threshold"`
	RecentDays        int     `yaml:"recent_days"`
	QualityBonusMin   float64 `yaml:"quality_bonus_min"`
	KeywordMode       string  `yaml:"keyword_mode"`
	WholeWord         bool    `yaml:"whole_word"`
	Similarity        string  `yaml:"similarity"`
	// MinQuality is the default floor for postings offered to users.
	MinQuality float64 `yaml:"min_quality"`
}

// Default parses the embedded default config.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// Load reads path over the defaults, so a user file only needs the keys it
// changes. Lists in the file replace the default lists.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath is $XDG_CONFIG_HOME/jobintel/config.yml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yml")
}

// ResolvePath picks the config file: explicit flag, then JOBINTEL_CONFIG,
// then the XDG default.
func ResolvePath(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	if p := getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultPath()
}

func (c Config) DataDir() string {
	if c.App.DataDir != "" {
		return c.App.DataDir
	}
	return filepath.Join(xdg.DataHome, AppName)
}

func (c Config) DBPath() string   { return filepath.Join(c.DataDir(), "jobintel.db") }
func (c Config) LockPath() string { return filepath.Join(c.DataDir(), "ingest.lock") }

func (c Config) Retention() time.Duration {
	return time.Duration(c.App.RetentionDays) * 24 * time.Hour
}

func (c Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feeds.TimeoutSeconds) * time.Second
}

func (c Config) QualityConfig() quality.Config {
	q := c.Quality
	return quality.Config{
		Weights:    q.Weights,
		HighCutoff: q.HighCutoff,

		CompanyMinChars:     q.Company.MinChars,
		CompanyPlaceholders: q.Company.Placeholders,

		DescShortWords:     q.Description.ShortWords,
		DescMediumWords:    q.Description.MediumWords,
		MaxCapsRatio:       q.Description.MaxCapsRatio,
		CapsMinLetters:     q.Description.CapsMinLetters,
		MinUniqueWordRatio: q.Description.MinUniqueWordRatio,
		UniqueMinWords:     q.Description.UniqueMinWords,
		Boilerplate:        q.Description.Boilerplate,

		LocationMinChars: q.Location.MinChars,
		RemoteMarkers:    q.Location.RemoteMarkers,
		VagueLocations:   q.Location.Vague,

		TitleMinChars:     q.Title.MinChars,
		TitleMaxChars:     q.Title.MaxChars,
		MaxSymbolRatio:    q.Title.MaxSymbolRatio,
		TitlePlaceholders: q.Title.Placeholders,

		SpamKeywords:       q.Spam.Keywords,
		SpamDomains:        q.Spam.Domains,
		DomainSignal:       q.Spam.DomainSignal,
		SpamThreshold:      q.Spam.Threshold,
		SpamCapsRatio:      q.Spam.CapsRatio,
		MaxEmoji:           q.Spam.MaxEmoji,
		PersonalMail:       q.Spam.PersonalMail,
		PersonalMailWindow: q.Spam.PersonalMailWindow,
	}
}

func (c Config) DedupConfig() (dedup.Config, error) {
	sim, err := textnorm.SimilarityByName(c.Dedup.Similarity)
	if err != nil {
		return dedup.Config{}, fmt.Errorf("dedup.similarity: %w", err)
	}
	return dedup.Config{
		TitleThreshold:   c.Dedup.TitleThreshold,
		CompanyThreshold: c.Dedup.CompanyThreshold,
		Window:           time.Duration(c.Dedup.WindowDays) * 24 * time.Hour,
		Similarity:       sim,
	}, nil
}

func (c Config) MatchConfig() (rank.Config, error) {
	m := c.Match
	sim, err := textnorm.SimilarityByName(m.Similarity)
	if err != nil {
		return rank.Config{}, fmt.Errorf("match.similarity: %w", err)
	}
	return rank.Config{
		Weights: rank.Weights{Keyword: m.Weights.Keyword, Location: m.Weights.Location, Salary: m.Weights.Salary},
		Bonuses: rank.Bonuses{
			Salary:  m.Bonuses.Salary,
			Remote:  m.Bonuses.Remote,
			Recency: m.Bonuses.Recency,
			Quality: m.Bonuses.Quality,
		},
		LocationThreshold: m.LocationThreshold,
		RecentWindow:      time.Duration(m.RecentDays) * 24 * time.Hour,
		QualityBonusMin:   m.QualityBonusMin,
		KeywordMode:       rank.KeywordMode(m.KeywordMode),
		WholeWord:         m.WholeWord,
		Similarity:        sim,
		Workers:           c.App.Workers,
	}, nil
}
