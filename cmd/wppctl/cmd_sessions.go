package main

import (
	"fmt"
	"time"

	"github.com/matheus3301/wppscrape/internal/lock"
	"github.com/matheus3301/wppscrape/internal/session"
	"github.com/spf13/cobra"
)

type sessionInfo struct {
	Name    string    `json:"name"`
	Default bool      `json:"default"`
	Running bool      `json:"running"`
	PID     int       `json:"pid,omitempty"`
	Since   time.Time `json:"since,omitzero"`
}

func newSessionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List known sessions and whether a daemon holds them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := session.List()
			if err != nil {
				return err
			}
			defaultName := session.Resolve("", opts.cfg)
			infos := make([]sessionInfo, 0, len(names))
			for _, name := range names {
				info := sessionInfo{Name: name, Default: name == defaultName}
				holder, err := lock.Inspect(session.Dir(name))
				if err != nil {
					return fmt.Errorf("inspect %s: %w", name, err)
				}
				if holder != nil {
					info.Running = true
					info.PID = holder.PID
					info.Since = holder.Since
				}
				infos = append(infos, info)
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), infos)
			}
			if len(infos) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, info := range infos {
				marker := " "
				if info.Default {
					marker = "*"
				}
				state := "stopped"
				if info.Running {
					state = fmt.Sprintf("running (pid %d since %s)", info.PID, info.Since.Local().Format(time.DateTime))
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %-20s %s\n", marker, info.Name, state)
			}
			return nil
		},
	}
}
