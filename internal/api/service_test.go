package api

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/wppscrape/internal/scheduler"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/status"
	"github.com/matheus3301/wppscrape/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type fakeController struct {
	report     *scrape.Report
	triggerErr error
	filterErr  error
	selected   []scrape.FilterMode
	active     scrape.FilterMode
}

func (f *fakeController) Trigger(context.Context) (*scrape.Report, error) {
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	return f.report, nil
}

func (f *fakeController) SelectFilter(_ context.Context, mode scrape.FilterMode) error {
	f.selected = append(f.selected, mode)
	if f.filterErr != nil {
		return f.filterErr
	}
	f.active = mode
	return nil
}

func (f *fakeController) LastReport() *scrape.Report { return f.report }

func (f *fakeController) Active() scrape.FilterMode { return f.active }

// serve starts svc on a unix socket and returns a connected client.
func serve(t *testing.T, svc ControlServer) *Client {
	t.Helper()
	// Short path keeps under the 104-char unix socket limit on macOS.
	tmpDir, err := os.MkdirTemp("/tmp", "wppscrape-api-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	socketPath := filepath.Join(tmpDir, "d.sock")

	srv := grpc.NewServer()
	RegisterControlServer(srv, svc)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.GracefulStop)

	client, err := Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func readyMachine(t *testing.T) *status.Machine {
	t.Helper()
	m := status.NewMachine(nil)
	if err := m.Transition(status.Loading); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestStatus(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	ctl := &fakeController{
		active: scrape.FilterUnread,
		report: &scrape.Report{RunID: "r1", Filter: scrape.FilterUnread, StartedAt: started, Candidates: 3, Persisted: 2, Failed: 1},
	}
	client := serve(t, NewService("work", readyMachine(t), ctl, ctl, nil))

	info, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if info.Session != "work" {
		t.Errorf("Session = %q, want work", info.Session)
	}
	if info.State != string(status.Ready) {
		t.Errorf("State = %q, want %q", info.State, status.Ready)
	}
	if info.Filter != "unread" {
		t.Errorf("Filter = %q, want unread", info.Filter)
	}
	if info.LastRun == nil {
		t.Fatal("LastRun = nil")
	}
	if info.LastRun.ID != "r1" || info.LastRun.Persisted != 2 || info.LastRun.Failed != 1 {
		t.Errorf("LastRun = %+v", info.LastRun)
	}
	if !info.LastRun.StartedAt.Equal(started) {
		t.Errorf("LastRun.StartedAt = %v, want %v", info.LastRun.StartedAt, started)
	}
}

func TestStatusBeforeFirstRun(t *testing.T) {
	client := serve(t, NewService("main", status.NewMachine(nil), &fakeController{}, nil, nil))

	info, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if info.State != string(status.Booting) {
		t.Errorf("State = %q, want %q", info.State, status.Booting)
	}
	if info.LastRun != nil {
		t.Errorf("LastRun = %+v, want nil", info.LastRun)
	}
}

func TestRunNow(t *testing.T) {
	ctl := &fakeController{report: &scrape.Report{RunID: "r2", Candidates: 4, Persisted: 4}}
	client := serve(t, NewService("main", readyMachine(t), ctl, ctl, nil))

	run, err := client.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if run.ID != "r2" || run.Persisted != 4 {
		t.Errorf("RunNow() = %+v", run)
	}
}

func TestRunNowCarriesUnreadChats(t *testing.T) {
	chats := []scrape.ChatSummary{
		{Name: "Family", UnreadCount: 3, IsGroup: true, IsMuted: true, LastMessage: "dinner at 8", LastMessageTime: "19:02"},
		{Name: "Alice", UnreadCount: 1},
	}
	ctl := &fakeController{report: &scrape.Report{RunID: "r3", Candidates: 2, Chats: chats}}
	client := serve(t, NewService("main", readyMachine(t), ctl, ctl, nil))

	run, err := client.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if diff := cmp.Diff(chats, run.Chats); diff != "" {
		t.Errorf("Chats mismatch (-want +got):\n%s", diff)
	}
}

func TestRunNowNotReady(t *testing.T) {
	ctl := &fakeController{triggerErr: scheduler.ErrNotReady}
	client := serve(t, NewService("main", status.NewMachine(nil), ctl, ctl, nil))

	_, err := client.RunNow(context.Background())
	if got := grpcstatus.Code(err); got != codes.FailedPrecondition {
		t.Errorf("RunNow() code = %v, want FailedPrecondition (err = %v)", got, err)
	}
}

func TestSetFilter(t *testing.T) {
	ctl := &fakeController{active: scrape.FilterAll}
	client := serve(t, NewService("main", readyMachine(t), ctl, ctl, nil))

	info, err := client.SetFilter(context.Background(), "favorites")
	if err != nil {
		t.Fatalf("SetFilter() error = %v", err)
	}
	if info.Filter != "favorites" {
		t.Errorf("Filter = %q, want favorites", info.Filter)
	}
	if len(ctl.selected) != 1 || ctl.selected[0] != scrape.FilterFavorites {
		t.Errorf("selected = %v", ctl.selected)
	}
}

func TestSetFilterErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		err    error
		want   codes.Code
	}{
		{"unknown mode", "archived", nil, codes.InvalidArgument},
		{"button missing", "group", scrape.ErrFilterNotFound, codes.NotFound},
		{"not ready", "all", scheduler.ErrNotReady, codes.FailedPrecondition},
		{"other", "all", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{filterErr: tt.err}
			client := serve(t, NewService("main", readyMachine(t), ctl, ctl, nil))

			_, err := client.SetFilter(context.Background(), tt.filter)
			if got := grpcstatus.Code(err); got != tt.want {
				t.Errorf("SetFilter(%q) code = %v, want %v (err = %v)", tt.filter, got, tt.want, err)
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	for i, id := range []string{"a", "b", "c"} {
		r := &store.Run{ID: id, StartedAt: int64(1000 * (i + 1)), Filter: "unread", Candidates: i}
		if err := db.InsertRun(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.FinishRun(&store.Run{ID: "c", StartedAt: 3000, FinishedAt: 3500, Filter: "unread", Candidates: 2, Persisted: 2}); err != nil {
		t.Fatal(err)
	}

	client := serve(t, NewService("main", readyMachine(t), nil, nil, db))

	runs, err := client.ListRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("order = %s,%s, want c,b", runs[0].ID, runs[1].ID)
	}
	if runs[0].Persisted != 2 || runs[0].FinishedAt.UnixMilli() != 3500 {
		t.Errorf("runs[0] = %+v", runs[0])
	}
	if !runs[1].FinishedAt.IsZero() {
		t.Errorf("unfinished run FinishedAt = %v, want zero", runs[1].FinishedAt)
	}
}

func TestListRunsWithoutHistory(t *testing.T) {
	client := serve(t, NewService("main", readyMachine(t), nil, nil, nil))

	_, err := client.ListRuns(context.Background(), 0)
	if got := grpcstatus.Code(err); got != codes.Unavailable {
		t.Errorf("ListRuns() code = %v, want Unavailable", got)
	}
}
