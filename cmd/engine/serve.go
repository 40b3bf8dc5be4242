package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/config"
	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/events"
	"jobintel-engine/internal/feed"
	"jobintel-engine/internal/httpapi"
	"jobintel-engine/internal/metrics"
	"jobintel-engine/internal/pipeline"
	"jobintel-engine/internal/poll"
	"jobintel-engine/internal/scheduler"
	"jobintel-engine/internal/store"
)

const shutdownGrace = 5 * time.Second

type batchEvent struct {
	Counts map[pipeline.Kind]int `json:"counts"`
	Tiers  map[domain.Tier]int   `json:"tiers"`
	// New lists the identities stored for the first time.
	New []domain.SourceRef `json:"new"`
}

// publishingProcessor announces every processed batch on the hub.
type publishingProcessor struct {
	next poll.Processor
	hub  *events.Hub
}

func (p publishingProcessor) Process(ctx context.Context, ps []domain.Posting) (pipeline.Report, error) {
	rep, err := p.next.Process(ctx, ps)
	if err != nil {
		return rep, err
	}
	ev := batchEvent{Counts: rep.Counts, Tiers: rep.Tiers, New: []domain.SourceRef{}}
	for _, d := range rep.Decisions {
		if d.Kind == pipeline.KindNew {
			ev.New = append(ev.New, d.Identity)
		}
	}
	p.hub.Publish(events.New(events.TypeBatchProcessed, ev, time.Now()))
	return rep, nil
}

// ingestRunner binds a poller to the configured sources for the HTTP layer.
type ingestRunner struct {
	poller  *poll.Poller
	sources []feed.Source
}

func (r ingestRunner) Status() poll.Status { return r.poller.Status() }

func (r ingestRunner) Start(ctx context.Context) error { return r.poller.Start(ctx, r.sources) }

func (r ingestRunner) run(ctx context.Context) error {
	_, err := r.poller.Run(ctx, r.sources)
	if errors.Is(err, poll.ErrAlreadyRunning) {
		return nil
	}
	return err
}

func newServeCmd(gf *globalFlags) *cobra.Command {
	var (
		addr       string
		noSchedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query API and run scheduled ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.App.HTTPAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			m := metrics.New()
			proc, err := a.processor(st, m)
			if err != nil {
				return err
			}
			matcher, err := a.matcher()
			if err != nil {
				return err
			}
			hub := events.NewHub()
			ingest := ingestRunner{
				poller: a.poller(publishingProcessor{
					next: lockedProcessor{proc: proc, path: a.cfg.LockPath()},
					hub:  hub,
				}),
				sources: a.cfg.Feeds.Sources,
			}

			handler := httpapi.NewRouter(httpapi.Deps{
				Store:      st,
				Matcher:    matcher,
				Metrics:    m,
				Log:        a.log,
				Config:     a.cfg,
				ConfigPath: a.cfgPath,
				Ingest:     ingest,
				Events:     hub,
			})

			var sched *scheduler.Scheduler
			if !noSchedule {
				sched, err = newSchedule(a, st, ingest)
				if err != nil {
					return err
				}
				sched.Start(ctx)
			}

			err = serveHTTP(ctx, a, handler)
			if sched != nil {
				<-sched.Stop().Done()
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides app.http_addr)")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "serve queries only; do not poll feeds or clean up")
	return cmd
}

func newSchedule(a *app, st *store.DB, ingest ingestRunner) (*scheduler.Scheduler, error) {
	s := scheduler.New(a.log)
	if err := s.Add(a.cfg.Feeds.Interval, "ingest", true, ingest.run); err != nil {
		return nil, err
	}
	retention := a.cfg.Retention()
	err := s.Add(a.cfg.Feeds.Cleanup, "cleanup", false, func(ctx context.Context) error {
		n, err := st.CleanupOldPostings(ctx, retention, time.Now())
		if err != nil {
			return err
		}
		a.log.Info().Int64("deleted", n).Dur("retention", retention).Msg("cleanup_done")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// serveHTTP blocks until ctx is done or the listener fails, then drains
// in-flight requests.
func serveHTTP(ctx context.Context, a *app, h http.Handler) error {
	ln, err := net.Listen("tcp", a.cfg.App.HTTPAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.log.Info().
		Str("addr", ln.Addr().String()).
		Str("db", a.cfg.DBPath()).
		Str("config", a.cfgPath).
		Str("app", config.AppName).
		Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	a.log.Info().Msg("shutdown_complete")
	return nil
}
