package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"jobmate/careerwatch-service/internal/lock"
	"jobmate/careerwatch-service/internal/scraper"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sweep and exit",
		Long: `Run one sweep over the watchlist and print what it found.

Only a configuration failure makes the command fail: unreachable career
pages and notification errors are reported in the table. With --dry-run the
seen set lives in memory, so every current posting counts as new and alerts
are only logged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(!dryRun)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := newApp(cmd.Context(), cfg, log, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.sweeper.RunOnce(cmd.Context())
			if errors.Is(err, lock.ErrHeld) {
				fmt.Fprintln(cmd.OutOrStdout(), "Another sweep is running; nothing to do.")
				return nil
			}
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep the seen set in memory and only log alerts")
	return cmd
}

func renderSummary(w io.Writer, s *scraper.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Organization", "ATS", "Confidence", "Fetched", "Malformed", "New", "Matched", "Notified", "Error"})
	for _, e := range s.Entries {
		errText := ""
		if e.Err != nil {
			errText = e.Err.Error()
		}
		t.AppendRow(table.Row{
			e.Name,
			e.Resolution.Kind,
			e.Resolution.Confidence,
			e.Fetched,
			e.Malformed,
			e.New,
			e.Matched,
			e.Notified,
			errText,
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d checked, %d failed", s.EntriesChecked, s.EntriesFailed),
		"", "", "", "",
		s.NewPostings,
		s.Matched,
		s.Notified,
		"",
	})
	t.Render()
}
