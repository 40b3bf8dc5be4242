package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/quality"
	"jobintel-engine/internal/rank"
	"jobintel-engine/internal/store"
)

type auditEntry struct {
	Posting domain.SourceRef `json:"posting"`
	Title   string           `json:"title"`
	Company string           `json:"company"`
	quality.Audit
}

type auditReport struct {
	Tiers     store.TierCounts `json:"tiers"`
	Failed    int              `json:"failed"`
	Offenders []auditEntry     `json:"offenders"`
}

func newAuditCmd(gf *globalFlags) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report quality tiers and the worst stored postings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			q, err := quality.New(a.cfg.QualityConfig())
			if err != nil {
				return err
			}
			all, err := st.AllPostings(ctx)
			if err != nil {
				return err
			}

			rep := auditReport{}
			for _, p := range all {
				au := q.Audit(p)
				switch au.Tier {
				case domain.TierHigh:
					rep.Tiers.High++
				case domain.TierSpam:
					rep.Tiers.Spam++
				default:
					rep.Tiers.Low++
				}
				rep.Tiers.Total++
				if !au.Passed {
					rep.Failed++
					rep.Offenders = append(rep.Offenders, auditEntry{Posting: p.Ref(), Title: p.Title, Company: p.Company, Audit: au})
				}
			}
			sort.SliceStable(rep.Offenders, func(i, j int) bool {
				x, y := rep.Offenders[i], rep.Offenders[j]
				if x.Spam != y.Spam {
					return x.Spam
				}
				return x.Score < y.Score
			})
			if top > 0 && len(rep.Offenders) > top {
				rep.Offenders = rep.Offenders[:top]
			}

			if a.json {
				return a.printJSON(rep)
			}
			fmt.Fprintf(a.out, "total=%d high=%d low=%d spam=%d failed=%d\n",
				rep.Tiers.Total, rep.Tiers.High, rep.Tiers.Low, rep.Tiers.Spam, rep.Failed)
			if len(rep.Offenders) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tTIER\tSOURCE\tTITLE\tREASONS")
			for _, o := range rep.Offenders {
				fmt.Fprintf(tw, "%.3f\t%s\t%s/%s\t%s\t%s\n",
					o.Score, o.Tier, o.Posting.Source, o.Posting.SourceID, o.Title, strings.Join(o.SpamReasons, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "offenders to list (0 for all)")
	return cmd
}

func newMatchCmd(gf *globalFlags) *cobra.Command {
	var (
		minScore float64
		limit    int
		withDQ   bool
	)

	cmd := &cobra.Command{
		Use:   "match <user>",
		Short: "Rank stored postings against a user's preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			if minScore < 0 || minScore > 1 {
				return fmt.Errorf("--min-score must be in [0,1]")
			}
			ctx := cmd.Context()
			userID := args[0]

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			m, err := a.matcher()
			if err != nil {
				return err
			}

			pref, err := st.GetPreference(ctx, userID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w for user %s", errNoPreference, userID)
			}
			if err != nil {
				return err
			}
			postings, err := st.Matchable(ctx, a.cfg.Match.MinQuality)
			if err != nil {
				return err
			}

			ranking, err := m.Rank(ctx, postings, pref, time.Now(), rank.Options{
				MinQuality:          a.cfg.Match.MinQuality,
				MinRelevance:        minScore,
				Limit:               limit,
				IncludeDisqualified: withDQ,
			})
			if err != nil {
				return err
			}
			for _, f := range ranking.Failures {
				a.log.Warn().
					Str("user_id", userID).
					Str("source", f.Source).
					Str("source_id", f.SourceID).
					Str("err", f.Message).
					Msg("posting_failed")
			}
			if ranking.Evaluated > 0 && len(ranking.Failures) == ranking.Evaluated {
				return fmt.Errorf("every posting failed to evaluate")
			}

			if a.json {
				return a.printJSON(ranking)
			}
			if len(ranking.Results) == 0 {
				fmt.Fprintf(a.out, "no matches for %s (%d evaluated)\n", userID, ranking.Evaluated)
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tTITLE\tCOMPANY\tLOCATION\tREASONS")
			for _, r := range ranking.Results {
				score := fmt.Sprintf("%.3f", r.RelevanceScore)
				if r.Disqualified {
					score = "dq"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					score, r.Posting.Title, r.Posting.Company, r.Posting.Location, strings.Join(r.Reasons, "; "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop matches below this relevance")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum matches to print (0 for all)")
	cmd.Flags().BoolVar(&withDQ, "include-disqualified", false, "also list disqualified postings")
	return cmd
}
