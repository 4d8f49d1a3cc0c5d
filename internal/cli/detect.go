package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jobmate/careerwatch-service/internal/ats"
	"jobmate/careerwatch-service/internal/config"
	"jobmate/careerwatch-service/internal/model"
)

// detection is one row of the detect report.
type detection struct {
	Entry      model.WatchEntry
	Resolution model.Resolution
	Postings   int
	Err        error
}

func newDetectCommand(flags *globalFlags) *cobra.Command {
	var skipFetch bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show which ATS serves every watchlist entry",
		Long: `Resolve every watchlist entry and count the postings its adapter returns.
Use the output to pin ats_type and board_id in the watchlist.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(false)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			wl, err := config.NewFileProvider(cfg.WatchlistPath).Load(cmd.Context())
			if err != nil {
				return err
			}

			client := newATSClient(cfg, log)
			rows := detectAll(cmd.Context(), wl.Entries, ats.NewDetector(client, log), ats.NewDefaultRegistry(client), cfg.SweepConcurrency, !skipFetch)
			renderDetections(cmd.OutOrStdout(), rows, !skipFetch)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipFetch, "no-fetch", false, "only resolve, do not count postings")
	return cmd
}

// detectAll resolves entries concurrently. Rows keep watchlist order.
func detectAll(ctx context.Context, entries []model.WatchEntry, resolver ats.Resolver, reg *ats.Registry, concurrency int, fetch bool) []detection {
	rows := make([]detection, len(entries))
	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i, entry := range entries {
		g.Go(func() error {
			row := detection{Entry: entry}
			row.Resolution, row.Err = resolver.Resolve(ctx, entry)
			if row.Err == nil && fetch {
				adapter := reg.For(row.Resolution)
				row.Resolution.Kind = adapter.Kind()
				result, err := adapter.Fetch(ctx, row.Resolution)
				if err != nil {
					row.Err = err
				} else {
					row.Postings = len(result.Postings)
				}
			}
			rows[i] = row
			return nil
		})
	}
	_ = g.Wait()
	return rows
}

func renderDetections(w io.Writer, rows []detection, withCounts bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := table.Row{"Organization", "ATS", "Board", "Confidence", "Final URL"}
	if withCounts {
		header = append(header, "Postings")
	}
	t.AppendHeader(append(header, "Error"))

	for _, r := range rows {
		row := table.Row{r.Entry.Name, r.Resolution.Kind, r.Resolution.BoardID, r.Resolution.Confidence, r.Resolution.FinalURL}
		if withCounts {
			row = append(row, r.Postings)
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		t.AppendRow(append(row, errText))
	}
	t.Render()
	fmt.Fprintf(w, "%d entries\n", len(rows))
}
