package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"qrassure/internal/outcome"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the monthly CSV outcome journal",
	}
	journalCmd.AddCommand(newJournalShowCommand(ctx))
	journalCmd.AddCommand(newJournalMonthsCommand(ctx))
	return journalCmd
}

func newJournalShowCommand(ctx *commandContext) *cobra.Command {
	var month string
	var tail int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the rows journaled for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			month = strings.TrimSpace(month)
			if month == "" {
				month = time.Now().Format("200601")
			}
			entries, err := outcome.ReadMonth(cfg.Journal.Dir, month)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No journal rows for %s\n", month)
				return nil
			}
			if tail > 0 && len(entries) > tail {
				entries = entries[len(entries)-tail:]
			}
			rows := make([][]string, 0, len(entries))
			for i, e := range entries {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					e.Timestamp,
					e.TerminalID,
					e.SiteCode,
					e.OrderNo,
					e.DispatchNo,
					e.Result,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Time", "Terminal", "Site", "Order", "Dispatch", "Result"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "Month to show as YYYYMM (default: current month)")
	cmd.Flags().IntVarP(&tail, "tail", "n", 0, "Only show the last N rows")
	return cmd
}

func newJournalMonthsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List retained journal months",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			months, err := outcome.Months(cfg.Journal.Dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(months) == 0 {
				fmt.Fprintf(out, "No journal files in %s\n", cfg.Journal.Dir)
				return nil
			}
			for _, m := range months {
				fmt.Fprintln(out, m)
			}
			return nil
		},
	}
}
