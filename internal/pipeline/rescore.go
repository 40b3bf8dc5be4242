package pipeline

import (
	"context"
	"fmt"

	"jobintel-engine/internal/domain"
)

type RescoreReport struct {
	Scanned int                 `json:"scanned"`
	Changed int                 `json:"changed"`
	Tiers   map[domain.Tier]int `json:"tiers"`
	// Transitions counts tier moves keyed "from->to".
	Transitions map[string]int `json:"transitions"`
}

// Rescore re-scores every stored posting with the current quality config and
// writes back the ones whose score or tier moved. Running it twice in a row
// changes nothing the second time.
func (pr *Processor) Rescore(ctx context.Context) (RescoreReport, error) {
	rep := RescoreReport{Tiers: map[domain.Tier]int{}, Transitions: map[string]int{}}
	all, err := pr.store.AllPostings(ctx)
	if err != nil {
		return rep, fmt.Errorf("load corpus: %w", err)
	}

	now := pr.now().UTC()
	for _, p := range all {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		res := pr.quality.Score(p)
		rep.Tiers[res.Tier]++
		if res.Score == p.QualityScore && res.Tier == p.QualityTier {
			continue
		}
		if err := pr.store.UpdateQuality(ctx, p.ID, res.Score, res.Tier, now); err != nil {
			pr.fail(p, "rescore", err)
			continue
		}
		rep.Changed++
		if res.Tier != p.QualityTier {
			rep.Transitions[string(p.QualityTier)+"->"+string(res.Tier)]++
		}
	}

	pr.log.Info().
		Int("scanned", rep.Scanned).
		Int("changed", rep.Changed).
		Msg("rescore_done")
	return rep, nil
}
