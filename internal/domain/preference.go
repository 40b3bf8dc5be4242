package domain

import (
	"errors"
	"fmt"
	"strings"
)

type NotificationFrequency string

const (
	NotifyRealtime NotificationFrequency = "realtime"
	NotifyDaily    NotificationFrequency = "daily"
	NotifyWeekly   NotificationFrequency = "weekly"
)

// Preference is one user's matching criteria. A user has at most one; it is
// replaced wholesale on update.
type Preference struct {
	UserID                string                `json:"user_id"`
	Keywords              []string              `json:"keywords"`
	ExcludedKeywords      []string              `json:"excluded_keywords"`
	Location              *string               `json:"location"`
	SalaryMin             *int                  `json:"salary_min"`
	SalaryMax             *int                  `json:"salary_max"`
	RemoteOnly            bool                  `json:"remote_only"`
	JobTypes              []string              `json:"job_types"`
	NotificationFrequency NotificationFrequency `json:"notification_frequency"`
}

// MatchResult is computed per (posting, preference) on request and never stored.
type MatchResult struct {
	Posting        Posting  `json:"posting"`
	RelevanceScore float64  `json:"relevance_score"`
	Reasons        []string `json:"match_reasons"`
	Disqualified   bool     `json:"disqualified"`
}

// Validate checks a preference submitted by a user.
func (p Preference) Validate() error {
	var errs []error
	if strings.TrimSpace(p.UserID) == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	hasKeyword := false
	for _, k := range p.Keywords {
		if strings.TrimSpace(k) != "" {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		errs = append(errs, errors.New("keywords: at least one keyword is required"))
	}
	if (p.SalaryMin != nil && *p.SalaryMin < 0) || (p.SalaryMax != nil && *p.SalaryMax < 0) {
		errs = append(errs, errors.New("salary bounds must be >= 0"))
	}
	if p.SalaryMin != nil && p.SalaryMax != nil && *p.SalaryMin > *p.SalaryMax {
		errs = append(errs, fmt.Errorf("salary_min %d exceeds salary_max %d", *p.SalaryMin, *p.SalaryMax))
	}
	switch p.NotificationFrequency {
	case "", NotifyRealtime, NotifyDaily, NotifyWeekly:
	default:
		errs = append(errs, fmt.Errorf("notification_frequency %q: want realtime, daily or weekly", p.NotificationFrequency))
	}
	return errors.Join(errs...)
}
