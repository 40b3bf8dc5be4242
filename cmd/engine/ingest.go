package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/feed"
	"jobintel-engine/internal/pipeline"
)

func newIngestCmd(gf *globalFlags) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Poll the enabled feeds once and process what they return",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sources := a.cfg.Feeds.Sources
			if len(only) > 0 {
				var picked []feed.Source
				for _, name := range only {
					s, ok := a.source(name)
					if !ok {
						return fmt.Errorf("unknown source %q", name)
					}
					s.Enabled = true
					picked = append(picked, s)
				}
				sources = picked
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			proc, err := a.processor(st, nil)
			if err != nil {
				return err
			}

			sum, err := a.poller(lockedProcessor{proc: proc, path: a.cfg.LockPath()}).Run(ctx, sources)
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(sum)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tFETCHED\tSKIPPED\tERROR")
			for _, s := range sum.Sources {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Source, s.Fetched, s.Skipped, s.Error)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printCounts(a.out, sum.Report)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "source", nil, "poll only these sources (enables them for this run)")
	return cmd
}

func newProcessCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file.json>",
		Short: "Process normalized postings from a JSON array (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			postings, err := readPostings(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			proc, err := a.processor(st, nil)
			if err != nil {
				return err
			}

			rep, err := lockedProcessor{proc: proc, path: a.cfg.LockPath()}.Process(ctx, postings)
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(rep)
			}
			printCounts(a.out, rep)
			return nil
		},
	}
}

func newRescoreCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore",
		Short: "Re-score the stored corpus with the current quality config",
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
			proc, err := a.processor(st, nil)
			if err != nil {
				return err
			}

			var rep pipeline.RescoreReport
			err = withLock(ctx, a.cfg.LockPath(), func() error {
				var err error
				rep, err = proc.Rescore(ctx)
				return err
			})
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(rep)
			}

			fmt.Fprintf(a.out, "scanned %d, changed %d\n", rep.Scanned, rep.Changed)
			fmt.Fprintf(a.out, "tiers: high=%d low=%d spam=%d\n",
				rep.Tiers[domain.TierHigh], rep.Tiers[domain.TierLow], rep.Tiers[domain.TierSpam])
			for _, k := range sortedKeys(rep.Transitions) {
				fmt.Fprintf(a.out, "  %s: %d\n", k, rep.Transitions[k])
			}
			return nil
		},
	}
}

// readPostings decodes a JSON array of postings from path, or from in when
// path is "-".
func readPostings(in io.Reader, path string) ([]domain.Posting, error) {
	var r io.Reader = in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var ps []domain.Posting
	if err := json.NewDecoder(r).Decode(&ps); err != nil {
		return nil, fmt.Errorf("decode postings from %s: %w", path, err)
	}
	return ps, nil
}

func printCounts(w io.Writer, rep pipeline.Report) {
	fmt.Fprintf(w, "new=%d duplicate=%d updated=%d unchanged=%d failed=%d\n",
		rep.Counts[pipeline.KindNew],
		rep.Counts[pipeline.KindDuplicate],
		rep.Counts[pipeline.KindUpdated],
		rep.Counts[pipeline.KindUnchanged],
		rep.Counts[pipeline.KindFailed],
	)
	fmt.Fprintf(w, "tiers: high=%d low=%d spam=%d\n",
		rep.Tiers[domain.TierHigh], rep.Tiers[domain.TierLow], rep.Tiers[domain.TierSpam])
	for _, d := range rep.Decisions {
		if d.Kind == pipeline.KindFailed {
			fmt.Fprintf(w, "  failed %s/%s: %s\n", d.Identity.Source, d.Identity.SourceID, d.Error)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
