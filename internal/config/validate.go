package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"jobintel-engine/internal/feed"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Validate reports every fatal problem in cfg as one error.
func Validate(cfg Config) error {
	if errs := problems(cfg); len(errs) > 0 {
		return errors.New("config validation failed:\n- " + joinLines(errs))
	}
	return nil
}

func problems(cfg Config) []string {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }
	addErr := func(err error) {
		if err != nil {
			errs = append(errs, strings.Split(err.Error(), "\n")...)
		}
	}

	a := cfg.App
	if strings.TrimSpace(a.HTTPAddr) == "" {
		add("app.http_addr is required")
	}
	if a.LogLevel != "" {
		if _, err := zerolog.ParseLevel(a.LogLevel); err != nil {
			add("app.log_level %q is not a log level", a.LogLevel)
		}
	}
	switch a.LogFormat {
	case "", "json", "console":
	default:
		add("app.log_format %q: want json or console", a.LogFormat)
	}
	if a.Workers < 1 {
		add("app.workers must be >= 1")
	}
	if a.RetentionDays < 1 {
		add("app.retention_days must be >= 1")
	}

	f := cfg.Feeds
	if _, err := cron.ParseStandard(f.Interval); err != nil {
		add("feeds.interval %q: %v", f.Interval, err)
	}
	if _, err := cron.ParseStandard(f.Cleanup); err != nil {
		add("feeds.cleanup %q: %v", f.Cleanup, err)
	}
	if f.TimeoutSeconds < 1 {
		add("feeds.timeout_seconds must be >= 1")
	}
	if f.RatePerSecond <= 0 {
		add("feeds.rate_per_second must be > 0")
	}
	if f.Burst < 1 {
		add("feeds.burst must be >= 1")
	}
	names := map[string]bool{}
	for i, s := range f.Sources {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			add("feeds.sources[%d].name is required", i)
		} else if names[name] {
			add("feeds.sources[%d].name %q is duplicated", i, s.Name)
		}
		names[name] = true

		u, err := url.Parse(strings.TrimSpace(s.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("feeds.sources[%d].url must be an absolute http(s) URL", i)
		}
		switch s.TitleFormat {
		case "", feed.TitleNone, feed.TitleColon, feed.TitleAt, feed.TitleDash:
		default:
			add("feeds.sources[%d].title_format %q: want none, colon, at or dash", i, s.TitleFormat)
		}
		if s.TimeoutSeconds < 0 {
			add("feeds.sources[%d].timeout_seconds must be >= 0", i)
		}
	}

	dc, err := cfg.DedupConfig()
	addErr(err)
	if err == nil {
		addErr(dc.Validate())
	}
	addErr(cfg.QualityConfig().Validate())
	mc, err := cfg.MatchConfig()
	addErr(err)
	if err == nil {
		addErr(mc.Validate())
	}
	if m := cfg.Match.MinQuality; m < 0 || m > 1 {
		add("match.min_quality %v out of [0,1]", m)
	}
	return errs
}

// NormalizeAndValidate returns a normalized copy of cfg with its fatal errors
// and advisory warnings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	lowerList := func(xs []string) []string {
		seen := map[string]bool{}
		ys := []string{}
		for _, x := range xs {
			x = strings.ToLower(strings.TrimSpace(x))
			if x == "" || seen[x] {
				continue
			}
			seen[x] = true
			ys = append(ys, x)
		}
		return ys
	}
	lower := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	out.App.LogLevel = lower(out.App.LogLevel)
	out.App.LogFormat = lower(out.App.LogFormat)
	out.Dedup.Similarity = lower(out.Dedup.Similarity)
	out.Match.Similarity = lower(out.Match.Similarity)
	out.Match.KeywordMode = lower(out.Match.KeywordMode)

	q := &out.Quality
	q.Company.Placeholders = lowerList(q.Company.Placeholders)
	q.Description.Boilerplate = lowerList(q.Description.Boilerplate)
	q.Location.RemoteMarkers = lowerList(q.Location.RemoteMarkers)
	q.Location.Vague = lowerList(q.Location.Vague)
	q.Title.Placeholders = lowerList(q.Title.Placeholders)
	q.Spam.Keywords = lowerList(q.Spam.Keywords)
	q.Spam.Domains = lowerList(q.Spam.Domains)
	q.Spam.PersonalMail = lowerList(q.Spam.PersonalMail)

	out.Feeds.Sources = make([]feed.Source, len(cfg.Feeds.Sources))
	for i, s := range cfg.Feeds.Sources {
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		s.TitleFormat = lower(s.TitleFormat)
		out.Feeds.Sources[i] = s
	}

	res.Errors = problems(out)

	enabled := 0
	urls := map[string]string{}
	for _, s := range out.Feeds.Sources {
		if s.Enabled {
			enabled++
		}
		if prev, ok := urls[s.URL]; ok && s.URL != "" {
			res.addWarn("feeds.sources %q and %q share the same url", prev, s.Name)
		}
		urls[s.URL] = s.Name
	}
	if enabled == 0 {
		res.addWarn("no feed sources are enabled; ingest will find nothing.")
	}
	if sched, err := cron.ParseStandard(out.Feeds.Interval); err == nil {
		if every, ok := sched.(cron.ConstantDelaySchedule); ok && every.Delay < 15*time.Minute {
			res.addWarn("feeds.interval is very low (%s) and may cause rate limits.", every.Delay)
		}
	}
	if c := q.HighCutoff; c > 0.9 || c < 0.3 {
		res.addWarn("quality.high_cutoff %.2f will put almost every posting in one tier.", c)
	}
	if q.Spam.Threshold == 1 {
		res.addWarn("quality.spam.threshold is 1; any single signal marks a posting as spam.")
	}
	if len(q.Spam.Keywords) == 0 {
		res.addWarn("quality.spam.keywords is empty; keyword spam will not be caught.")
	}
	if out.App.RetentionDays > 0 && out.App.RetentionDays < out.Dedup.WindowDays {
		res.addWarn("app.retention_days (%d) is shorter than dedup.window_days (%d); reposts may outlive their originals.",
			out.App.RetentionDays, out.Dedup.WindowDays)
	}

	return out, res
}
