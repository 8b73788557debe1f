package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"qrassure/internal/history"
	"qrassure/internal/logging"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var since time.Duration
	var showRaw bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent outcomes from the history index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.HistoryPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintf(out, "No history database at %s\n", path)
				return nil
			}
			store, err := history.Open(cmd.Context(), path, logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			now := time.Now()
			summary, err := store.Summary(cmd.Context(), now.Add(-since))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Last %s: %d match, %d mismatch, %d unknown (%d total)\n",
				since, summary.Match, summary.Mismatch, summary.Unknown, summary.Total())

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No outcomes recorded")
				return nil
			}
			headers := []string{"ID", "When", "Terminal", "Site", "Order", "Dispatch", "Result"}
			if showRaw {
				headers = append(headers, "Raw")
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				row := []string{
					strconv.FormatInt(e.ID, 10),
					humanize.RelTime(e.RecordedAt, now, "ago", "from now"),
					e.TerminalID,
					e.SiteCode,
					e.OrderNo,
					e.DispatchNo,
					e.Result.String(),
				}
				if showRaw {
					row = append(row, e.Raw)
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(out, renderTable(headers, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of outcomes to list")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Summary window")
	cmd.Flags().BoolVar(&showRaw, "raw", false, "Include the raw second scan of unknown outcomes")
	return cmd
}
