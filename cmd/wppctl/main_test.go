package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppscrape/internal/api"
	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/matheus3301/wppscrape/internal/lock"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/session"
	"github.com/matheus3301/wppscrape/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// testHome points the session tree at a short temp dir.
func testHome(t *testing.T) {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "wppctl-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv(session.HomeEnv, dir)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedArchive(t *testing.T, name string) {
	t.Helper()
	s := archive.New(archive.NewFileBackend(session.ArchiveDir(name)), zap.NewNop())
	ctx := context.Background()
	recs := []archive.ChatRecord{
		{ChatName: "Bob", Messages: []archive.Message{{Text: "hi", Time: "09:00", Type: archive.Received}}},
		{ChatName: "Family", IsGroup: true, Messages: []archive.Message{
			{Text: "dinner?", Time: "09:01", Type: archive.Received},
			{Text: "yes", Time: "09:02", Type: archive.Sent},
		}},
	}
	for _, rec := range recs {
		if err := s.Upsert(ctx, "2024-03-01", rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestArchiveDays(t *testing.T) {
	testHome(t)
	seedArchive(t, "main")

	out, err := execute(t, "archive", "days")
	if err != nil {
		t.Fatalf("archive days error = %v", err)
	}
	if strings.TrimSpace(out) != "2024-03-01" {
		t.Errorf("output = %q, want 2024-03-01", out)
	}
}

func TestArchiveShow(t *testing.T) {
	testHome(t)
	seedArchive(t, "main")

	out, err := execute(t, "archive", "show", "2024-03-01")
	if err != nil {
		t.Fatalf("archive show error = %v", err)
	}
	for _, want := range []string{"2024-03-01: 2 chats", "Bob: 1 messages", "Family (group): 2 messages"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestArchiveShowChatJSON(t *testing.T) {
	testHome(t)
	seedArchive(t, "main")

	out, err := execute(t, "--json", "archive", "show", "2024-03-01", "--chat", "Family")
	if err != nil {
		t.Fatalf("archive show error = %v", err)
	}
	var rec archive.ChatRecord
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("output is not a chat record: %v\n%s", err, out)
	}
	if rec.ChatName != "Family" || !rec.IsGroup || len(rec.Messages) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Messages[1].Type != archive.Sent {
		t.Errorf("second message type = %q, want sent", rec.Messages[1].Type)
	}
}

func TestArchiveShowMissing(t *testing.T) {
	testHome(t)
	seedArchive(t, "main")

	if _, err := execute(t, "archive", "show", "2024-03-02"); err == nil || !strings.Contains(err.Error(), "no archive") {
		t.Errorf("archive show missing day error = %v, want no archive", err)
	}
	if _, err := execute(t, "archive", "show", "2024-03-01", "--chat", "Zed"); err == nil {
		t.Error("archive show unknown chat expected error")
	}
}

func TestSessionFlagSelectsArchive(t *testing.T) {
	testHome(t)
	seedArchive(t, "work")

	out, err := execute(t, "--session", "work", "archive", "days")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "2024-03-01" {
		t.Errorf("work days = %q", out)
	}
	out, err = execute(t, "archive", "days")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "" {
		t.Errorf("main days = %q, want none", out)
	}
}

func TestInvalidSessionName(t *testing.T) {
	testHome(t)
	if _, err := execute(t, "--session", "../etc", "archive", "days"); err == nil {
		t.Error("expected error for invalid session name")
	}
}

func TestFilterRejectsUnknownMode(t *testing.T) {
	testHome(t)
	_, err := execute(t, "filter", "archived")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Available filters: all, unread, favorites, group") {
		t.Errorf("error = %v, want filter usage", err)
	}
}

func TestSessions(t *testing.T) {
	testHome(t)
	for _, name := range []string{"main", "work"} {
		if err := session.EnsureDir(name); err != nil {
			t.Fatal(err)
		}
	}
	lk, err := lock.Acquire(session.Dir("work"), "wppscraped")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	out, err := execute(t, "--json", "sessions")
	if err != nil {
		t.Fatalf("sessions error = %v", err)
	}
	var infos []sessionInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("bad JSON: %v\n%s", err, out)
	}
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
	if !infos[0].Default || infos[0].Running {
		t.Errorf("main = %+v, want default and stopped", infos[0])
	}
	if infos[1].Default || !infos[1].Running || infos[1].PID != os.Getpid() {
		t.Errorf("work = %+v, want running under this pid", infos[1])
	}
}

func TestStatusAgainstDaemon(t *testing.T) {
	testHome(t)
	if err := session.EnsureDir("main"); err != nil {
		t.Fatal(err)
	}
	machine := status.NewMachine(nil)
	_ = machine.Transition(status.Loading)
	_ = machine.Transition(status.AuthRequired)

	srv := grpc.NewServer()
	api.RegisterControlServer(srv, api.NewService("main", machine, nil, nil, nil))
	listener, err := net.Listen("unix", session.SocketPath("main"))
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(listener) }()
	defer srv.GracefulStop()

	out, err := execute(t, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"Session: main", "Status:  AUTH_REQUIRED", "Last run: none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	testHome(t)
	start := time.Now()
	if _, err := execute(t, "status"); err == nil {
		t.Error("expected error without daemon")
	}
	if elapsed := time.Since(start); elapsed > rpcTimeout+time.Second {
		t.Errorf("status took %s without daemon", elapsed)
	}
}

// lastPass serves a fixed report as the daemon's last pass.
type lastPass struct{ report *scrape.Report }

func (p lastPass) Trigger(context.Context) (*scrape.Report, error)       { return p.report, nil }
func (p lastPass) SelectFilter(context.Context, scrape.FilterMode) error { return nil }
func (p lastPass) LastReport() *scrape.Report                            { return p.report }
func (p lastPass) Active() scrape.FilterMode                             { return p.report.Filter }

func TestStatusShowsUnreadSummary(t *testing.T) {
	testHome(t)
	if err := session.EnsureDir("main"); err != nil {
		t.Fatal(err)
	}
	pass := lastPass{report: &scrape.Report{
		RunID:      "r1",
		Filter:     scrape.FilterUnread,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Candidates: 1,
		Persisted:  1,
		Chats: []scrape.ChatSummary{
			{Name: "Family", UnreadCount: 3, IsGroup: true, LastMessage: "dinner at 8", LastMessageTime: "19:02"},
		},
	}}

	srv := grpc.NewServer()
	api.RegisterControlServer(srv, api.NewService("main", status.NewMachine(nil), pass, pass, nil))
	listener, err := net.Listen("unix", session.SocketPath("main"))
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(listener) }()
	defer srv.GracefulStop()

	out, err := execute(t, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{
		"Last run: r1",
		"[group] Family",
		"3 unread message(s)",
		"Last message: dinner at 8",
		"At: 19:02",
		"Total chats with unread messages: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
