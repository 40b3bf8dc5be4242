package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"jobintel-engine/internal/feed"
	"jobintel-engine/internal/pipeline"
)

var ErrAlreadyRunning = errors.New("ingest already running")

type Status struct {
	Running   bool      `json:"running"`
	LastRunAt time.Time `json:"last_run_at,omitzero"`
	LastOkAt  time.Time `json:"last_ok_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	LastNew   int       `json:"last_new"`
}

type statusBox struct {
	mu sync.Mutex
	st Status
}

func (p *Poller) Status() Status {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	return p.status.st
}

// Run is PollOnce with status tracking. Overlapping runs are refused.
func (p *Poller) Run(ctx context.Context, sources []feed.Source) (Summary, error) {
	if err := p.begin(); err != nil {
		return Summary{}, err
	}
	sum, err := p.PollOnce(ctx, sources)
	p.finish(sum, err)
	return sum, err
}

// Start claims the run slot and polls in the background, detached from
// ctx's cancellation. It returns ErrAlreadyRunning when a run is active.
func (p *Poller) Start(ctx context.Context, sources []feed.Source) error {
	if err := p.begin(); err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		sum, err := p.PollOnce(bg, sources)
		p.finish(sum, err)
	}()
	return nil
}

func (p *Poller) begin() error {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	if p.status.st.Running {
		return ErrAlreadyRunning
	}
	p.status.st.Running = true
	p.status.st.LastRunAt = time.Now().UTC()
	return nil
}

func (p *Poller) finish(sum Summary, err error) {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	st := &p.status.st
	st.Running = false
	st.LastNew = sum.Report.Counts[pipeline.KindNew]
	if err != nil {
		st.LastError = err.Error()
		p.log.Error().Err(err).Msg("poll_failed")
		return
	}
	st.LastError = ""
	st.LastOkAt = time.Now().UTC()
	p.log.Info().Int("new", st.LastNew).Int("sources", len(sum.Sources)).Msg("poll_ok")
}
