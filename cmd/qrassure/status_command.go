package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"qrassure/internal/api"
	"qrassure/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pairing status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			client, err := api.NewClient(cfg.API.Bind, cfg.API.Token)
			if err != nil {
				return fmt.Errorf("api client: %w", err)
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				if !api.IsAPIUnavailable(err) {
					return err
				}
				locked, lockErr := daemonctl.Running(cfg.LockPath())
				if lockErr != nil {
					return lockErr
				}
				fmt.Fprintln(out, sectionHeader("Daemon", colorize))
				if locked {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "running, status API unreachable", colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "not running", colorize))
				}
				return nil
			}
			writeStatus(out, status, time.Now(), colorize)
			return nil
		},
	}
}

func writeStatus(out io.Writer, status api.DaemonStatus, now time.Time, colorize bool) {
	fmt.Fprintln(out, sectionHeader("Daemon", colorize))
	if status.Running {
		started := ""
		if ts := api.ParseTime(status.StartedAt); !ts.IsZero() {
			started = ", started " + humanize.RelTime(ts, now, "ago", "from now")
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d%s)", status.PID, started), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Journal", statusInfo, status.JournalDir, colorize))
	if status.LogPath != "" {
		fmt.Fprintln(out, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}

	p := status.Pairing
	fmt.Fprintln(out, sectionHeader("Pairing", colorize))
	fmt.Fprintln(out, renderStatusLine("Terminal", statusInfo, p.TerminalID, colorize))
	state := strings.ReplaceAll(p.State, "_", " ")
	if p.PendingKind != "" {
		state = fmt.Sprintf("%s (have %s code", state, p.PendingKind)
		if opened := api.ParseTime(p.OpenedAt); !opened.IsZero() {
			state += ", opened " + humanize.RelTime(opened, now, "ago", "from now")
		}
		state += ")"
	}
	fmt.Fprintln(out, renderStatusLine("State", statusInfo, state, colorize))
	if p.LastResult != "" {
		kind := statusOK
		if p.LastResult != "match" {
			kind = statusWarn
		}
		msg := p.LastResult
		if at := api.ParseTime(p.LastAt); !at.IsZero() {
			msg += " " + humanize.RelTime(at, now, "ago", "from now")
		}
		fmt.Fprintln(out, renderStatusLine("Last outcome", kind, msg, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Since start", statusInfo, fmt.Sprintf("%s scans, %s matches, %s mismatches, %s unknown, %s timeouts",
		humanize.Comma(int64(p.Counters["scans"])),
		humanize.Comma(int64(p.Counters["matches"])),
		humanize.Comma(int64(p.Counters["mismatches"])),
		humanize.Comma(int64(p.Counters["unknown"])),
		humanize.Comma(int64(p.Counters["timeouts"])),
	), colorize))

	if today := status.Today; today != nil {
		kind := statusOK
		if today.Mismatch > 0 || today.Unknown > 0 {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Today", kind, fmt.Sprintf("%d match, %d mismatch, %d unknown",
			today.Match, today.Mismatch, today.Unknown), colorize))
	}

	if failed := failedChecks(status.Checks); len(failed) > 0 {
		fmt.Fprintln(out, sectionHeader("Checks", colorize))
		for _, check := range failed {
			kind := statusError
			if check.Optional {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
	}
}

func failedChecks(checks []api.CheckStatus) []api.CheckStatus {
	var out []api.CheckStatus
	for _, c := range checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}
