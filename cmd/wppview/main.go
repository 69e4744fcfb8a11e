package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/matheus3301/wppscrape/internal/config"
	"github.com/matheus3301/wppscrape/internal/logging"
	"github.com/matheus3301/wppscrape/internal/session"
	"github.com/matheus3301/wppscrape/internal/viewer"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	dirFlag := flag.String("dir", "", "archive directory (overrides config and session default)")
	dateFlag := flag.String("date", "", "day to open, YYYY-MM-DD (default today)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}

	sessionName := session.Resolve(*sessionFlag, cfg)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	dir := *dirFlag
	if dir == "" {
		dir = cfg.Archive.Dir
	}
	if dir == "" {
		dir = session.ArchiveDir(sessionName)
	}
	if cfg.Archive.Bucket != "" && *dirFlag == "" {
		fmt.Fprintf(os.Stderr, "error: archives are stored in bucket %q; pass -dir with a local copy\n", cfg.Archive.Bucket)
		os.Exit(1)
	}

	date := *dateFlag
	if date == "" {
		date = archive.DateOf(time.Now())
	}
	if _, err := time.Parse(archive.DateLayout, date); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid -date %q: want YYYY-MM-DD\n", date)
		os.Exit(1)
	}

	// The terminal belongs to the viewer; log to the session file only.
	logger, err := logging.NewFileOnly(session.ViewerLogPath(sessionName), sessionName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := viewer.NewApp(dir, date, logger).Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
