package archive

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
)

func testStore(t *testing.T) (*Store, *FileBackend) {
	t.Helper()
	backend := NewFileBackend(t.TempDir())
	clock := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s := New(backend, zap.NewNop(), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return s, backend
}

func TestUpsertCreatesDocument(t *testing.T) {
	s, backend := testStore(t)
	ctx := context.Background()

	rec := ChatRecord{
		ChatName: "Alice",
		Messages: []Message{{Text: "hi", Time: "09:12", Type: Received}},
	}
	if err := s.Upsert(ctx, "2024-03-01", rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	info, err := os.Stat(backend.Path("messages-2024-03-01.json"))
	if err != nil {
		t.Fatalf("stat archive: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("archive perm = %o, want 600", perm)
	}

	raw, err := os.ReadFile(backend.Path("messages-2024-03-01.json"))
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("archive is not JSON: %v", err)
	}
	for _, key := range []string{"date", "last_updated", "chats"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("archive missing top-level %q", key)
		}
	}
	chat := generic["chats"].(map[string]any)["Alice"].(map[string]any)
	for _, key := range []string{"chatName", "isGroup", "last_updated", "messages"} {
		if _, ok := chat[key]; !ok {
			t.Errorf("chat record missing %q", key)
		}
	}
	msg := chat["messages"].([]any)[0].(map[string]any)
	if msg["type"] != "received" || msg["text"] != "hi" || msg["time"] != "09:12" {
		t.Errorf("message = %v", msg)
	}
}

func TestUpsertReplacesOnlyThatChat(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	date := "2024-03-01"

	bob := ChatRecord{ChatName: "Bob Group", IsGroup: true, Messages: []Message{{Text: "yo", Type: Received}}}
	first := ChatRecord{ChatName: "Alice", Messages: []Message{{Text: "one", Type: Received}, {Text: "two", Type: Sent}}}
	second := ChatRecord{ChatName: "Alice", Messages: []Message{{Text: "three", Type: Sent}}}

	for _, rec := range []ChatRecord{bob, first, second} {
		if err := s.Upsert(ctx, date, rec); err != nil {
			t.Fatalf("Upsert(%s) error = %v", rec.ChatName, err)
		}
	}

	doc, err := s.Load(ctx, date)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(second.Messages, doc.Chats["Alice"].Messages); diff != "" {
		t.Errorf("Alice messages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(bob.Messages, doc.Chats["Bob Group"].Messages); diff != "" {
		t.Errorf("Bob Group changed (-want +got):\n%s", diff)
	}
	if !doc.Chats["Bob Group"].IsGroup {
		t.Error("Bob Group lost isGroup")
	}
	if !doc.LastUpdated.Equal(doc.Chats["Alice"].LastUpdated) {
		t.Errorf("document last_updated %v, want latest chat update %v", doc.LastUpdated, doc.Chats["Alice"].LastUpdated)
	}
}

func TestRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	date := "2024-03-02"

	want := map[string]*ChatRecord{
		"Alice":     {ChatName: "Alice", Messages: []Message{{Text: "hello", Time: "10:00, 3/2/2024", Type: Received}}},
		"Bob Group": {ChatName: "Bob Group", IsGroup: true, Messages: []Message{{Text: "ok", Type: Sent}}},
		"Carol":     {ChatName: "Carol", Messages: []Message{}},
	}
	for _, rec := range want {
		if err := s.Upsert(ctx, date, *rec); err != nil {
			t.Fatal(err)
		}
	}

	doc, err := s.Load(ctx, date)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Date != date {
		t.Errorf("Date = %q, want %q", doc.Date, date)
	}
	ignoreTimes := cmpopts.IgnoreFields(ChatRecord{}, "LastUpdated")
	if diff := cmp.Diff(want, doc.Chats, ignoreTimes); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissing(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Load(context.Background(), "2024-01-01")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestUpsertRejectsBadInput(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		date string
		rec  ChatRecord
	}{
		{"empty name", "2024-03-01", ChatRecord{}},
		{"bad date", "03/01/2024", ChatRecord{ChatName: "Alice"}},
		{"path in date", "../x", ChatRecord{ChatName: "Alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Upsert(ctx, tt.date, tt.rec); err == nil {
				t.Error("Upsert() error = nil, want error")
			}
		})
	}
}

func TestDays(t *testing.T) {
	s, backend := testStore(t)
	ctx := context.Background()

	for _, date := range []string{"2024-03-02", "2024-02-28", "2024-03-01"} {
		if err := s.Upsert(ctx, date, ChatRecord{ChatName: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(backend.Path("notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	days, err := s.Days(ctx)
	if err != nil {
		t.Fatalf("Days() error = %v", err)
	}
	want := []string{"2024-02-28", "2024-03-01", "2024-03-02"}
	if diff := cmp.Diff(want, days); diff != "" {
		t.Errorf("Days() mismatch (-want +got):\n%s", diff)
	}
}

func TestDaysEmptyDir(t *testing.T) {
	s := New(NewFileBackend(t.TempDir()+"/missing"), zap.NewNop())
	days, err := s.Days(context.Background())
	if err != nil || len(days) != 0 {
		t.Errorf("Days() = %v, %v; want empty, nil", days, err)
	}
}

func TestFileNameRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		wantOK bool
	}{
		{"messages-2024-03-01.json", "2024-03-01", true},
		{"messages-2024-13-01.json", "", false},
		{"other-2024-03-01.json", "", false},
		{"messages-2024-03-01.json.tmp", "", false},
	}
	for _, tt := range tests {
		date, ok := DateFromFileName(tt.name)
		if ok != tt.wantOK || date != tt.date {
			t.Errorf("DateFromFileName(%q) = %q, %v; want %q, %v", tt.name, date, ok, tt.date, tt.wantOK)
		}
	}
	if got := FileName("2024-03-01"); got != "messages-2024-03-01.json" {
		t.Errorf("FileName() = %q", got)
	}
}
