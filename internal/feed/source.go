// Package feed turns RSS and Atom job feeds into postings.
package feed

import (
	"context"
	"time"

	"jobintel-engine/internal/domain"
)

// Title formats a source can declare for splitting the company out of an
// item title.
const (
	TitleNone  = "none"
	TitleColon = "colon" // "Company: Title"
	TitleAt    = "at"    // "Title at Company"
	TitleDash  = "dash"  // "Title - Company"
)

type Source struct {
	Name        string `yaml:"name" json:"name"`
	URL         string `yaml:"url" json:"url"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	TitleFormat string `yaml:"title_format,omitempty" json:"title_format,omitempty"`
	// Company, Location and JobType fill in what items leave out.
	Company  string `yaml:"company,omitempty" json:"company,omitempty"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
	JobType  string `yaml:"job_type,omitempty" json:"job_type,omitempty"`
	Remote   bool   `yaml:"remote,omitempty" json:"remote,omitempty"`
	// AuthUser enables basic auth; the password lives in the keyring.
	AuthUser       string `yaml:"auth_user,omitempty" json:"auth_user,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

func (s Source) Timeout(def time.Duration) time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return def
}

type Result struct {
	Source   string
	Postings []domain.Posting
	// Skipped counts items dropped for lacking a title or an identity.
	Skipped int
}

type Fetcher interface {
	Fetch(ctx context.Context, src Source) (Result, error)
}
