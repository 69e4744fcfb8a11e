package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/wppscrape/internal/api"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session state, active filter and the last pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), opts, func(ctx context.Context, c *api.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), st)
				}
				printStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pass now and wait for its report",
		Long: `Run a pass now. If a pass is already running, wait for it instead of
starting another one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			c, err := opts.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			run, err := c.RunNow(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), run)
			}
			printRun(cmd.OutOrStdout(), run)
			scrape.WriteSummary(cmd.OutOrStdout(), run.Chats)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long to wait for the pass")
	return cmd
}

func newFilterCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "filter <all|unread|favorites|group>",
		Short:     "Switch the chat list filter",
		Long:      "Switch the chat list filter in the daemon's browser.\n\n" + scrape.FilterUsage,
		Args:      cobra.ExactArgs(1),
		ValidArgs: filterArgs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := scrape.ParseFilterMode(args[0]); err != nil {
				return fmt.Errorf("%w\n%s", err, scrape.FilterUsage)
			}
			return withClient(cmd.Context(), opts, func(ctx context.Context, c *api.Client) error {
				st, err := c.SetFilter(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), st)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Filter: %s\n", st.Filter)
				return nil
			})
		},
	}
}

func newRunsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent passes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), opts, func(ctx context.Context, c *api.Client) error {
				runs, err := c.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), runs)
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func newStartCmd(opts *options) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the session daemon in the background if it is not running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if probeDaemon(cmd.Context(), opts) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "daemon for session %q already running\n", opts.session)
				return nil
			}
			if err := startDaemon(opts.session); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
			deadline := time.Now().Add(wait)
			for time.Now().Before(deadline) {
				if probeDaemon(cmd.Context(), opts) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "daemon for session %q started\n", opts.session)
					return nil
				}
				time.Sleep(300 * time.Millisecond)
			}
			return fmt.Errorf("daemon for session %q did not answer within %s", opts.session, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "how long to wait for the control socket")
	return cmd
}

func withClient(parent context.Context, opts *options, fn func(ctx context.Context, c *api.Client) error) error {
	ctx, cancel := context.WithTimeout(parent, rpcTimeout)
	defer cancel()
	c, err := opts.dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(ctx, c)
}

// probeDaemon reports whether the daemon answers a status call.
func probeDaemon(parent context.Context, opts *options) bool {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()
	err := withClient(ctx, opts, func(ctx context.Context, c *api.Client) error {
		_, err := c.Status(ctx)
		return err
	})
	return err == nil
}

// startDaemon launches wppscraped next to this binary, or from PATH.
func startDaemon(sessionName string) error {
	bin := "wppscraped"
	if executable, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(executable), bin)
		if _, err := os.Stat(candidate); err == nil {
			bin = candidate
		}
	}
	cmd := exec.Command(bin, "--session", sessionName)
	// Startup errors go to the caller's terminal; later output goes to the log.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func filterArgs() []string {
	args := make([]string, 0, len(scrape.FilterModes))
	for _, m := range scrape.FilterModes {
		args = append(args, string(m))
	}
	return args
}

func printStatus(w io.Writer, st *api.StatusInfo) {
	_, _ = fmt.Fprintf(w, "Session: %s\n", st.Session)
	_, _ = fmt.Fprintf(w, "Status:  %s (since %s)\n", st.State, st.Since.Local().Format(time.DateTime))
	_, _ = fmt.Fprintf(w, "Uptime:  %s\n", (time.Duration(st.UptimeMS) * time.Millisecond).Round(time.Second))
	filter := st.Filter
	if filter == "" {
		filter = "(unknown)"
	}
	_, _ = fmt.Fprintf(w, "Filter:  %s\n", filter)
	if st.LastRun == nil {
		_, _ = fmt.Fprintln(w, "Last run: none")
		return
	}
	_, _ = fmt.Fprint(w, "Last run: ")
	printRun(w, st.LastRun)
	scrape.WriteSummary(w, st.LastRun.Chats)
}

func printRun(w io.Writer, r *api.RunInfo) {
	_, _ = fmt.Fprintf(w, "%s at %s: %d unread, %d saved, %d empty, %d failed\n",
		r.ID, r.StartedAt.Local().Format(time.DateTime), r.Candidates, r.Persisted, r.Empty, r.Failed)
}

func printRuns(w io.Writer, runs []api.RunInfo) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "no runs recorded")
		return
	}
	_, _ = fmt.Fprintf(w, "%-36s  %-19s  %-9s  %6s  %5s  %5s  %6s\n", "ID", "STARTED", "FILTER", "UNREAD", "SAVED", "EMPTY", "FAILED")
	for _, r := range runs {
		filter := r.Filter
		if filter == "" {
			filter = "-"
		}
		_, _ = fmt.Fprintf(w, "%-36s  %-19s  %-9s  %6d  %5d  %5d  %6d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), filter, r.Candidates, r.Persisted, r.Empty, r.Failed)
	}
}
