package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/store"
	"google.golang.org/protobuf/types/known/structpb"
)

// StatusInfo is the payload of Status and SetFilter.
type StatusInfo struct {
	Session  string    `json:"session"`
	State    string    `json:"state"`
	Since    time.Time `json:"since"`
	UptimeMS int64     `json:"uptime_ms"`
	Filter   string    `json:"filter"`
	LastRun  *RunInfo  `json:"last_run,omitempty"`
}

// RunInfo summarizes one pass.
// Chats is only filled for passes of the running daemon; history rows
// carry counts only.
type RunInfo struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at,omitzero"`
	Filter     string               `json:"filter"`
	Candidates int                  `json:"candidates"`
	Persisted  int                  `json:"persisted"`
	Empty      int                  `json:"empty"`
	Failed     int                  `json:"failed"`
	Chats      []scrape.ChatSummary `json:"chats,omitempty"`
}

type runList struct {
	Runs []RunInfo `json:"runs"`
}

type filterRequest struct {
	Filter string `json:"filter"`
}

type listRunsRequest struct {
	Limit int `json:"limit"`
}

func runFromReport(r *scrape.Report) *RunInfo {
	if r == nil {
		return nil
	}
	return &RunInfo{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Filter:     string(r.Filter),
		Candidates: r.Candidates,
		Persisted:  r.Persisted,
		Empty:      r.Empty,
		Failed:     r.Failed,
		Chats:      r.Chats,
	}
}

func runFromRow(r store.Run) RunInfo {
	info := RunInfo{
		ID:         r.ID,
		StartedAt:  time.UnixMilli(r.StartedAt),
		Filter:     r.Filter,
		Candidates: r.Candidates,
		Persisted:  r.Persisted,
		Empty:      r.Empty,
		Failed:     r.Failed,
	}
	if r.FinishedAt != 0 {
		info.FinishedAt = time.UnixMilli(r.FinishedAt)
	}
	return info
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct is the inverse of toStruct.
func fromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
