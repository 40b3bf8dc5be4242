// Package pipeline scores incoming postings, folds duplicates into the
// records they repeat and persists the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jobintel-engine/internal/dedup"
	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/feed"
	"jobintel-engine/internal/metrics"
	"jobintel-engine/internal/quality"
	"jobintel-engine/internal/store"
	"jobintel-engine/internal/textnorm"
)

type Kind string

const (
	KindNew       Kind = "new"
	KindDuplicate Kind = "duplicate"
	KindUpdated   Kind = "updated"
	KindUnchanged Kind = "unchanged"
	KindFailed    Kind = "failed"
)

// Decision is what happened to one input posting.
type Decision struct {
	Kind     Kind             `json:"kind"`
	Identity domain.SourceRef `json:"identity"`
	// DuplicateOf is the stored record the posting was folded into.
	DuplicateOf *domain.SourceRef `json:"duplicate_of,omitempty"`
	PostingID   int64             `json:"posting_id,omitempty"`
	Score       float64           `json:"score"`
	Tier        domain.Tier       `json:"tier,omitempty"`
	SpamReasons []string          `json:"spam_reasons,omitempty"`
	Error       string            `json:"error,omitempty"`
}

type Report struct {
	Decisions []Decision          `json:"decisions"`
	Counts    map[Kind]int        `json:"counts"`
	Tiers     map[domain.Tier]int `json:"tiers"`
}

func (r *Report) add(d Decision) {
	r.Decisions = append(r.Decisions, d)
	r.Counts[d.Kind]++
	if d.Kind != KindFailed {
		r.Tiers[d.Tier]++
	}
}

// Store is the persistence the pipeline needs.
type Store interface {
	FindByIdentity(ctx context.Context, source, sourceID string) (domain.Posting, error)
	ListBucket(ctx context.Context, p domain.Posting) ([]domain.Posting, error)
	InsertPosting(ctx context.Context, p domain.Posting, now time.Time) (int64, error)
	UpdatePosting(ctx context.Context, p domain.Posting, now time.Time) error
	MergePostings(ctx context.Context, survivor domain.Posting, loserID int64, now time.Time) error
	UpdateQuality(ctx context.Context, id int64, score float64, tier domain.Tier, now time.Time) error
	AllPostings(ctx context.Context) ([]domain.Posting, error)
}

type Processor struct {
	store   Store
	dedup   *dedup.Engine
	quality *quality.Filter
	log     zerolog.Logger
	metrics *metrics.Metrics
	workers int
	now     func() time.Time
}

type Option func(*Processor)

func WithLogger(l zerolog.Logger) Option { return func(p *Processor) { p.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(p *Processor) { p.metrics = m } }
func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }
func WithWorkers(n int) Option { return func(p *Processor) { p.workers = max(1, n) } }

func New(st Store, d *dedup.Engine, q *quality.Filter, opts ...Option) *Processor {
	p := &Processor{
		store:   st,
		dedup:   d,
		quality: q,
		log:     zerolog.Nop(),
		workers: 8,
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type scored struct {
	posting domain.Posting
	result  quality.Result
	err     error
}

// Process runs a batch through the pipeline. A bad item becomes a failed
// decision and the batch carries on; only cancellation stops it early.
func (pr *Processor) Process(ctx context.Context, postings []domain.Posting) (Report, error) {
	rep := Report{Counts: map[Kind]int{}, Tiers: map[domain.Tier]int{}}
	items := make([]scored, len(postings))

	var g errgroup.Group
	g.SetLimit(pr.workers)
	for i := range postings {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			items[i] = pr.score(postings[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// Dedup and writes are sequential so each posting sees every record
	// persisted before it, batch mates included.
	b := &batch{Processor: pr, index: dedup.NewIndex(pr.dedup), loaded: map[string]bool{}}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		var d Decision
		if it.err != nil {
			d = pr.fail(it.posting, "score", it.err)
		} else {
			d = b.persist(ctx, it.posting, it.result)
		}
		pr.metrics.Processed(string(d.Kind))
		if d.Kind != KindFailed {
			pr.metrics.Tier(string(d.Tier))
		}
		rep.add(d)
	}

	pr.log.Info().
		Int("new", rep.Counts[KindNew]).
		Int("duplicate", rep.Counts[KindDuplicate]).
		Int("updated", rep.Counts[KindUpdated]).
		Int("unchanged", rep.Counts[KindUnchanged]).
		Int("failed", rep.Counts[KindFailed]).
		Msg("batch_processed")
	return rep, nil
}

func (pr *Processor) score(in domain.Posting) (it scored) {
	defer func() {
		if r := recover(); r != nil {
			it.err = fmt.Errorf("panic: %v", r)
		}
	}()
	p, err := Sanitize(in)
	if err != nil {
		return scored{posting: p, err: err}
	}
	return scored{posting: p, result: pr.quality.Score(p)}
}

func (pr *Processor) fail(p domain.Posting, stage string, err error) Decision {
	pr.metrics.ItemFailed(stage)
	pr.log.Warn().
		Err(err).
		Str("stage", stage).
		Str("source", p.Source).
		Str("source_id", p.SourceID).
		Msg("posting_failed")
	return Decision{Kind: KindFailed, Identity: p.Ref(), Error: err.Error()}
}

type batch struct {
	*Processor
	index  *dedup.Index
	loaded map[string]bool
}

func (b *batch) persist(ctx context.Context, p domain.Posting, res quality.Result) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = b.fail(p, "persist", fmt.Errorf("panic: %v", r))
		}
	}()
	p.QualityScore, p.QualityTier = res.Score, res.Tier
	now := b.now().UTC()

	existing, err := b.store.FindByIdentity(ctx, p.Source, p.SourceID)
	switch {
	case err == nil && existing.Ref().Key() == p.Ref().Key():
		return b.refresh(ctx, existing, p, res, now)
	case err == nil:
		// p was absorbed into existing on an earlier run.
		return b.fold(ctx, existing, p, now)
	case !errors.Is(err, store.ErrNotFound):
		return b.fail(p, "persist", fmt.Errorf("lookup: %w", err))
	}

	if err := b.loadBuckets(ctx, p); err != nil {
		return b.fail(p, "persist", fmt.Errorf("load bucket: %w", err))
	}
	if dup, ok := b.index.FindDuplicate(p); ok {
		return b.fold(ctx, dup, p, now)
	}

	id, err := b.store.InsertPosting(ctx, p, now)
	if err != nil {
		return b.fail(p, "persist", err)
	}
	p.ID = id
	b.index.Add(p)
	return decision(KindNew, p, res)
}

// refresh handles a posting whose identity is already stored as a primary
// record: same content is a no-op, anything else replaces the content. New
// content can make the record a duplicate of another stored row, in which
// case the two rows collapse.
func (b *batch) refresh(ctx context.Context, existing, p domain.Posting, res quality.Result, now time.Time) Decision {
	p.ID = existing.ID
	p.SecondarySources = existing.SecondarySources
	if len(existing.SecondarySources) > 0 {
		// Fields back-filled from absorbed records outlive a replay of the primary.
		p = dedup.Backfill(p, existing)
		res = b.quality.Score(p)
		p.QualityScore, p.QualityTier = res.Score, res.Tier
	}
	if sameContent(existing, p) {
		b.index.Add(existing)
		return decision(KindUnchanged, existing, res)
	}

	if err := b.loadBuckets(ctx, p); err != nil {
		return b.fail(p, "persist", fmt.Errorf("load bucket: %w", err))
	}
	if dup, ok := b.index.FindDuplicate(p); ok && dup.ID != existing.ID {
		return b.collapse(ctx, existing, dup, p, now)
	}

	if err := b.store.UpdatePosting(ctx, p, now); err != nil {
		return b.fail(p, "persist", err)
	}
	b.index.Replace(existing, p)
	return decision(KindUpdated, p, res)
}

// collapse merges the stored rows existing and dup after p, the new content
// of existing, turned out to duplicate dup. The survivor keeps the row of
// the record it came from and the other row is deleted.
func (b *batch) collapse(ctx context.Context, existing, dup, p domain.Posting, now time.Time) Decision {
	survivor, absorbed := dedup.Merge(dup, p)
	keep, lose := dup, existing
	if survivor.Ref().Key() == p.Ref().Key() {
		keep, lose = existing, dup
	}
	survivor.ID = keep.ID
	res := b.quality.Score(survivor)
	survivor.QualityScore, survivor.QualityTier = res.Score, res.Tier

	if err := b.store.MergePostings(ctx, survivor, lose.ID, now); err != nil {
		return b.fail(p, "persist", err)
	}
	b.log.Debug().
		Str("survivor", survivor.Source+"/"+survivor.SourceID).
		Str("absorbed", absorbed.Source+"/"+absorbed.SourceID).
		Int64("posting_id", survivor.ID).
		Int64("deleted_id", lose.ID).
		Msg("duplicate_merged")
	b.index.Replace(lose, survivor)

	d := decision(KindDuplicate, survivor, res)
	d.Identity = p.Ref()
	ref := dup.Ref()
	d.DuplicateOf = &ref
	return d
}

// fold merges p with a stored record it duplicates.
func (b *batch) fold(ctx context.Context, stored, p domain.Posting, now time.Time) Decision {
	survivor, absorbed := dedup.Merge(stored, p)
	survivor.ID = stored.ID
	res := b.quality.Score(survivor)
	survivor.QualityScore, survivor.QualityTier = res.Score, res.Tier

	if !sameContent(stored, survivor) || !sameRefs(stored, survivor) {
		if err := b.store.UpdatePosting(ctx, survivor, now); err != nil {
			return b.fail(p, "persist", err)
		}
		b.log.Debug().
			Str("survivor", survivor.Source+"/"+survivor.SourceID).
			Str("absorbed", absorbed.Source+"/"+absorbed.SourceID).
			Int64("posting_id", survivor.ID).
			Msg("duplicate_merged")
	}
	b.index.Replace(stored, survivor)

	d := decision(KindDuplicate, survivor, res)
	d.Identity = p.Ref()
	ref := stored.Ref()
	d.DuplicateOf = &ref
	return d
}

func (b *batch) loadBuckets(ctx context.Context, p domain.Posting) error {
	keys := dedup.BucketKeys(p)
	need := false
	for _, k := range keys {
		if !b.loaded[k] {
			need = true
		}
	}
	if !need {
		return nil
	}
	rows, err := b.store.ListBucket(ctx, p)
	if err != nil {
		return err
	}
	for _, r := range rows {
		b.index.Add(r)
	}
	for _, k := range keys {
		b.loaded[k] = true
	}
	return nil
}

func decision(k Kind, p domain.Posting, res quality.Result) Decision {
	return Decision{
		Kind:        k,
		Identity:    p.Ref(),
		PostingID:   p.ID,
		Score:       res.Score,
		Tier:        res.Tier,
		SpamReasons: res.SpamReasons,
	}
}

// Sanitize tidies a posting before scoring. It fails only when the posting
// has no identity or no title.
func Sanitize(p domain.Posting) (domain.Posting, error) {
	p.Source = strings.TrimSpace(p.Source)
	p.SourceID = strings.TrimSpace(p.SourceID)
	p.URL = strings.TrimSpace(p.URL)
	p.Title = textnorm.CleanText(p.Title)
	p.Company = textnorm.CleanText(p.Company)
	p.Location = textnorm.CleanText(p.Location)
	p.Description = strings.TrimSpace(strings.ReplaceAll(p.Description, "\u00a0", " "))
	if jt := feed.CanonicalJobType(p.JobType); jt != "" {
		p.JobType = jt
	} else {
		p.JobType = strings.ToLower(textnorm.CleanText(p.JobType))
	}

	if p.SalaryMin != nil && *p.SalaryMin < 0 {
		p.SalaryMin = nil
	}
	if p.SalaryMax != nil && *p.SalaryMax < 0 {
		p.SalaryMax = nil
	}
	if p.SalaryMin != nil && p.SalaryMax != nil && *p.SalaryMin > *p.SalaryMax {
		p.SalaryMin, p.SalaryMax = p.SalaryMax, p.SalaryMin
	}
	if p.PostedAt != nil {
		t := p.PostedAt.UTC().Truncate(time.Second)
		p.PostedAt = &t
	}
	p.SecondarySources = domain.SortRefs(p.SecondarySources)

	switch {
	case p.Source == "" || p.SourceID == "":
		return p, errors.New("missing source or source_id")
	case p.Title == "":
		return p, errors.New("missing title")
	}
	return p, nil
}

func sameContent(a, b domain.Posting) bool {
	return a.Source == b.Source && a.SourceID == b.SourceID && a.URL == b.URL &&
		a.Title == b.Title && a.Company == b.Company && a.Description == b.Description &&
		a.Location == b.Location && a.JobType == b.JobType && a.Remote == b.Remote &&
		sameInt(a.SalaryMin, b.SalaryMin) && sameInt(a.SalaryMax, b.SalaryMax) &&
		sameTime(a.PostedAt, b.PostedAt) &&
		a.QualityScore == b.QualityScore && a.QualityTier == b.QualityTier
}

func sameRefs(a, b domain.Posting) bool {
	if len(a.SecondarySources) != len(b.SecondarySources) {
		return false
	}
	for i := range a.SecondarySources {
		if a.SecondarySources[i] != b.SecondarySources[i] {
			return false
		}
	}
	return true
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
