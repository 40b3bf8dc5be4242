package httpapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jobintel-engine/internal/config"
	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/events"
	"jobintel-engine/internal/metrics"
	"jobintel-engine/internal/poll"
	"jobintel-engine/internal/rank"
	"jobintel-engine/internal/store"
)

type Store interface {
	ListPostings(ctx context.Context, opts store.SearchOpts) ([]domain.Posting, error)
	Matchable(ctx context.Context, minQuality float64) ([]domain.Posting, error)
	CountByTier(ctx context.Context) (store.TierCounts, error)
	GetPreference(ctx context.Context, userID string) (domain.Preference, error)
	PutPreference(ctx context.Context, p domain.Preference, now time.Time) error
	DeletePreference(ctx context.Context, userID string) error
}

// Ingest triggers a background feed poll and reports on it.
type Ingest interface {
	Status() poll.Status
	Start(ctx context.Context) error
}

type Deps struct {
	Store   Store
	Matcher *rank.Matcher
	Metrics *metrics.Metrics
	Log     zerolog.Logger

	// Config is the loaded snapshot; it also supplies query defaults.
	Config     config.Config
	ConfigPath string

	// Ingest is optional; without it the /ingest routes are not mounted.
	Ingest Ingest
	// Events is optional and backs GET /events.
	Events *events.Hub

	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
