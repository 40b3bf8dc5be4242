package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jobintel-engine/internal/config"
	"jobintel-engine/internal/dedup"
	"jobintel-engine/internal/feed"
	"jobintel-engine/internal/logx"
	"jobintel-engine/internal/metrics"
	"jobintel-engine/internal/pipeline"
	"jobintel-engine/internal/poll"
	"jobintel-engine/internal/quality"
	"jobintel-engine/internal/rank"
	"jobintel-engine/internal/secrets"
	"jobintel-engine/internal/store"
)

// app is the loaded environment one command runs in.
type app struct {
	cfgPath string
	cfg     config.Config
	log     zerolog.Logger
	out     io.Writer
	json    bool
}

// loadApp resolves, bootstraps and validates the config, then builds the
// logger. Validation warnings are logged; errors abort the command.
func loadApp(cmd *cobra.Command, gf *globalFlags) (*app, error) {
	path := config.ResolvePath(gf.config, os.Getenv)
	if gf.config == "" {
		if _, err := config.EnsureUserConfig(path); err != nil {
			return nil, fmt.Errorf("bootstrap config %s: %w", path, err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(&cfg, os.Getenv)
	if gf.logLevel != "" {
		cfg.App.LogLevel = gf.logLevel
	}

	cfg, v := config.NormalizeAndValidate(cfg)
	if !v.OK() {
		return nil, fmt.Errorf("config %s invalid:\n- %s", path, strings.Join(v.Errors, "\n- "))
	}

	log, err := logx.New(cfg.App.LogLevel, cfg.App.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	for _, w := range v.Warnings {
		log.Warn().Str("path", path).Str("warning", w).Msg("config_warning")
	}

	return &app{cfgPath: path, cfg: cfg, log: log, out: cmd.OutOrStdout(), json: gf.json}, nil
}

func (a *app) openStore(ctx context.Context) (*store.DB, error) {
	if err := os.MkdirAll(a.cfg.DataDir(), 0o755); err != nil {
		return nil, err
	}
	return store.OpenMigrated(ctx, a.cfg.DBPath())
}

func (a *app) processor(st pipeline.Store, m *metrics.Metrics) (*pipeline.Processor, error) {
	dcfg, err := a.cfg.DedupConfig()
	if err != nil {
		return nil, err
	}
	q, err := quality.New(a.cfg.QualityConfig())
	if err != nil {
		return nil, err
	}
	return pipeline.New(st, dedup.New(dcfg), q,
		pipeline.WithLogger(a.log),
		pipeline.WithMetrics(m),
		pipeline.WithWorkers(a.cfg.App.Workers),
	), nil
}

func (a *app) matcher() (*rank.Matcher, error) {
	mcfg, err := a.cfg.MatchConfig()
	if err != nil {
		return nil, err
	}
	return rank.New(mcfg)
}

func (a *app) fetcher() *feed.RSSFetcher {
	return feed.NewRSSFetcher(
		feed.WithLimiter(feed.NewHostLimiter(a.cfg.Feeds.RatePerSecond, a.cfg.Feeds.Burst)),
		feed.WithUserAgent(a.cfg.Feeds.UserAgent),
		feed.WithPasswords(secrets.GetFeedPassword),
	)
}

func (a *app) poller(proc poll.Processor) *poll.Poller {
	return poll.New(a.fetcher(), proc, a.log, a.cfg.FeedTimeout())
}

// source finds a configured feed source by name.
func (a *app) source(name string) (feed.Source, bool) {
	for _, s := range a.cfg.Feeds.Sources {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return feed.Source{}, false
}

func (a *app) printJSON(v any) error { return printJSON(a.out, v) }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var errNoPreference = errors.New("no preference stored")
