// Package scheduler runs the engine's periodic jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

type job struct {
	name      string
	task      Task
	immediate bool
}

// Scheduler wraps robfig/cron. A run still in progress when its next tick
// fires is skipped, and a panicking task is logged rather than crashing the
// process.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
	jobs []job
	ctx  context.Context
}

func New(log zerolog.Logger) *Scheduler {
	cl := cronLogger{log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
		ctx: context.Background(),
	}
}

// Add registers task under spec. With immediate set, Start also runs it once
// right away.
func (s *Scheduler) Add(spec, name string, immediate bool, task Task) error {
	j := job{name: name, task: task, immediate: immediate}
	if _, err := s.cron.AddFunc(spec, func() { s.run(s.ctx, j) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start begins ticking and kicks off the immediate jobs. It returns at once;
// the scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler_started")

	for _, j := range s.jobs {
		if j.immediate {
			go s.run(ctx, j)
		}
	}
	go func() {
		<-ctx.Done()
		<-s.Stop().Done()
	}()
}

// Stop halts ticking; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	c := s.cron.Stop()
	s.log.Info().Msg("scheduler_stopped")
	return c
}

func (s *Scheduler) run(ctx context.Context, j job) {
	s.log.Debug().Str("job", j.name).Msg("job_started")
	if err := j.task(ctx); err != nil {
		s.log.Error().Err(err).Str("job", j.name).Msg("job_failed")
		return
	}
	s.log.Debug().Str("job", j.name).Msg("job_done")
}

type cronLogger struct{ log zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.log.Debug().Fields(kv).Msg("cron_" + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Error().Err(err).Fields(kv).Msg("cron_" + msg)
}
