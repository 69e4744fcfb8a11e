package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/wppscrape/internal/api"
	"github.com/matheus3301/wppscrape/internal/config"
	"github.com/matheus3301/wppscrape/internal/session"
	"github.com/spf13/cobra"
)

const rpcTimeout = 10 * time.Second

// options holds the persistent flags shared by every subcommand.
type options struct {
	session string
	json    bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "wppctl",
		Short: "Control a wppscrape session daemon and read its archives",
		Long: `wppctl talks to the wppscraped daemon of a session over its control
socket and reads the daily archives the daemon writes.

The session is chosen by --session, then default_session in
~/.wppscrape/config.toml, then "main".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOrDefault(session.ConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg
			opts.session = session.Resolve(opts.session, cfg)
			return session.ValidateName(opts.session)
		},
	}
	root.PersistentFlags().StringVar(&opts.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")

	root.AddCommand(
		newStatusCmd(opts),
		newRunCmd(opts),
		newFilterCmd(opts),
		newRunsCmd(opts),
		newStartCmd(opts),
		newArchiveCmd(opts),
		newSessionsCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// dial connects to the daemon of the selected session.
func (o *options) dial() (*api.Client, error) {
	c, err := api.Dial(session.SocketPath(o.session))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for session %q: %w", o.session, err)
	}
	return c, nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
