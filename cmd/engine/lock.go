package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/pipeline"
)

const (
	lockWait  = 30 * time.Second
	lockRetry = 250 * time.Millisecond
)

// withLock runs fn holding the data dir's ingest lock, so two processes
// never write the same corpus at once. It waits up to lockWait.
func withLock(ctx context.Context, path string, fn func() error) error {
	fl := flock.New(path)
	wctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	ok, err := fl.TryLockContext(wctx, lockRetry)
	if err != nil {
		return fmt.Errorf("acquire %s: %w (is another ingest running?)", path, err)
	}
	if !ok {
		return fmt.Errorf("acquire %s: held by another process", path)
	}
	defer fl.Unlock()
	return fn()
}

// lockedProcessor takes the ingest lock around every batch.
type lockedProcessor struct {
	proc *pipeline.Processor
	path string
}

func (l lockedProcessor) Process(ctx context.Context, ps []domain.Posting) (pipeline.Report, error) {
	var rep pipeline.Report
	err := withLock(ctx, l.path, func() error {
		var err error
		rep, err = l.proc.Process(ctx, ps)
		return err
	})
	return rep, err
}
