// Package operator reads filter commands from the daemon's terminal.
package operator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matheus3301/wppscrape/internal/scrape"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Controller is what the console drives.
type Controller interface {
	SelectFilter(ctx context.Context, mode scrape.FilterMode) error
	Trigger(ctx context.Context) (*scrape.Report, error)
}

// Console is a line-oriented command loop: a filter name switches the
// chat-list filter, "run" starts a pass now.
type Console struct {
	in     io.Reader
	out    io.Writer
	ctl    Controller
	logger *zap.Logger
}

// New creates a console reading commands from in and replying on out.
func New(in io.Reader, out io.Writer, ctl Controller, logger *zap.Logger) *Console {
	return &Console{in: in, out: out, ctl: ctl, logger: logger}
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Run reads commands until the input ends or ctx is done. A blocked read
// is not interrupted by ctx.
func (c *Console) Run(ctx context.Context) error {
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Handle(ctx, sc.Text())
	}
	return sc.Err()
}

// Handle executes one command line.
func (c *Console) Handle(ctx context.Context, line string) {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "":
		return
	case "run":
		report, err := c.ctl.Trigger(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "Pass not started: %v\n", err)
			return
		}
		scrape.WriteSummary(c.out, report.Chats)
		fmt.Fprintf(c.out, "Pass %s: %d unread, %d saved, %d empty, %d failed\n",
			report.RunID, report.Candidates, report.Persisted, report.Empty, report.Failed)
		return
	}

	mode, err := scrape.ParseFilterMode(cmd)
	if err != nil {
		fmt.Fprintln(c.out, scrape.FilterUsage)
		return
	}
	fmt.Fprintf(c.out, "Switching to %s filter...\n", mode)
	if err := c.ctl.SelectFilter(ctx, mode); err != nil {
		c.logger.Warn("filter switch failed", zap.String("filter", string(mode)), zap.Error(err))
		fmt.Fprintf(c.out, "Could not switch to %s filter: %v\n", mode, err)
		return
	}
	fmt.Fprintf(c.out, "Switched to %s filter\n", mode)
}
