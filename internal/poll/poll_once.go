// Package poll fetches every enabled feed and runs the postings through the
// pipeline.
package poll

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/feed"
	"jobintel-engine/internal/pipeline"
)

type Processor interface {
	Process(ctx context.Context, postings []domain.Posting) (pipeline.Report, error)
}

type SourceResult struct {
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

type Summary struct {
	Sources []SourceResult  `json:"sources"`
	Report  pipeline.Report `json:"report"`
}

type Poller struct {
	fetcher feed.Fetcher
	proc    Processor
	log     zerolog.Logger
	timeout time.Duration

	status statusBox
}

func New(f feed.Fetcher, proc Processor, log zerolog.Logger, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Poller{fetcher: f, proc: proc, log: log, timeout: timeout}
}

// PollOnce fetches the enabled sources concurrently, each under its own
// timeout, then processes everything fetched as one batch. A failing source
// is logged and recorded; it never fails the run.
func (p *Poller) PollOnce(ctx context.Context, sources []feed.Source) (Summary, error) {
	var enabled []feed.Source
	for _, s := range sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}

	results := make([]feed.Result, len(enabled))
	summary := Summary{Sources: make([]SourceResult, len(enabled))}

	var g errgroup.Group
	for i, src := range enabled {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, src.Timeout(p.timeout))
			defer cancel()

			sr := SourceResult{Source: src.Name}
			res, err := p.fetcher.Fetch(fctx, src)
			if err != nil {
				p.log.Warn().Err(err).Str("source", src.Name).Msg("feed_fetch_failed")
				sr.Error = err.Error()
			} else {
				results[i] = res
				sr.Fetched, sr.Skipped = len(res.Postings), res.Skipped
				p.log.Debug().Str("source", src.Name).Int("postings", sr.Fetched).Int("skipped", sr.Skipped).Msg("feed_fetched")
			}
			summary.Sources[i] = sr
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// Config order, so the same feeds give the same decisions.
	var batch []domain.Posting
	for _, r := range results {
		batch = append(batch, r.Postings...)
	}
	rep, err := p.proc.Process(ctx, batch)
	summary.Report = rep
	return summary, err
}
