package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"cloud.google.com/go/storage"
	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/matheus3301/wppscrape/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newArchiveCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Read the daily message archives",
		Long: `Read the daily message archives of the session. Archives are read
directly from the configured directory or bucket; the daemon does not need
to be running.`,
	}
	cmd.AddCommand(newArchiveDaysCmd(opts), newArchiveShowCmd(opts))
	return cmd
}

func newArchiveDaysCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "days",
		Short: "List the days that have an archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withArchive(cmd.Context(), opts, func(ctx context.Context, s *archive.Store) error {
				days, err := s.Days(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					if days == nil {
						days = []string{}
					}
					return outputJSON(cmd.OutOrStdout(), days)
				}
				for _, d := range days {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			})
		},
	}
}

func newArchiveShowCmd(opts *options) *cobra.Command {
	var chat string
	cmd := &cobra.Command{
		Use:   "show [YYYY-MM-DD]",
		Short: "Show the archive of a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := archive.DateOf(time.Now())
			if len(args) == 1 {
				date = args[0]
			}
			return withArchive(cmd.Context(), opts, func(ctx context.Context, s *archive.Store) error {
				doc, err := s.Load(ctx, date)
				if errors.Is(err, archive.ErrNotFound) {
					return fmt.Errorf("no archive for %s", date)
				}
				if err != nil {
					return err
				}
				if chat != "" {
					rec, ok := doc.Chats[chat]
					if !ok {
						return fmt.Errorf("chat %q not archived on %s", chat, date)
					}
					if opts.json {
						return outputJSON(cmd.OutOrStdout(), rec)
					}
					printChat(cmd.OutOrStdout(), rec)
					return nil
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), doc)
				}
				printArchive(cmd.OutOrStdout(), doc)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&chat, "chat", "c", "", "show only this chat's messages")
	return cmd
}

// withArchive opens the session's archive store read-only.
func withArchive(ctx context.Context, opts *options, fn func(ctx context.Context, s *archive.Store) error) error {
	cfg := opts.cfg.Archive
	if cfg.Bucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client: %w", err)
		}
		defer func() { _ = client.Close() }()
		return fn(ctx, archive.New(archive.NewGCSBackend(client, cfg.Bucket, cfg.Prefix, zap.NewNop()), zap.NewNop()))
	}
	dir := cfg.Dir
	if dir == "" {
		dir = session.ArchiveDir(opts.session)
	}
	return fn(ctx, archive.New(archive.NewFileBackend(dir), zap.NewNop()))
}

func printArchive(w io.Writer, doc *archive.DailyArchive) {
	_, _ = fmt.Fprintf(w, "%s: %d chats, updated %s\n", doc.Date, len(doc.Chats), doc.LastUpdated.Local().Format(time.TimeOnly))
	names := make([]string, 0, len(doc.Chats))
	for name := range doc.Chats {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		rec := doc.Chats[name]
		group := ""
		if rec.IsGroup {
			group = " (group)"
		}
		_, _ = fmt.Fprintf(w, "  %s%s: %d messages, updated %s\n", name, group, len(rec.Messages), rec.LastUpdated.Local().Format(time.TimeOnly))
	}
}

func printChat(w io.Writer, rec *archive.ChatRecord) {
	_, _ = fmt.Fprintf(w, "%s, updated %s\n", rec.ChatName, rec.LastUpdated.Local().Format(time.DateTime))
	for _, m := range rec.Messages {
		who := "them"
		if m.Type == archive.Sent {
			who = "you"
		}
		_, _ = fmt.Fprintf(w, "  [%s] %s: %s\n", m.Time, who, m.Text)
	}
}
