package api

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/wppscrape/internal/scheduler"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/status"
	"github.com/matheus3301/wppscrape/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Controller runs passes and switches filters with exclusive page access.
type Controller interface {
	Trigger(ctx context.Context) (*scrape.Report, error)
	SelectFilter(ctx context.Context, mode scrape.FilterMode) error
	LastReport() *scrape.Report
}

// FilterState reports the active chat-list filter.
type FilterState interface {
	Active() scrape.FilterMode
}

// Service implements ControlServer.
type Service struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	ctl         Controller
	filters     FilterState
	db          *store.DB
}

// NewService creates the control service. db may be nil, in which case
// ListRuns is unavailable.
func NewService(sessionName string, machine *status.Machine, ctl Controller, filters FilterState, db *store.DB) *Service {
	return &Service{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		ctl:         ctl,
		filters:     filters,
		db:          db,
	}
}

func (s *Service) statusInfo() *StatusInfo {
	info := &StatusInfo{
		Session:  s.sessionName,
		State:    string(s.machine.Current()),
		Since:    s.machine.Since(),
		UptimeMS: time.Since(s.startedAt).Milliseconds(),
	}
	if s.filters != nil {
		info.Filter = string(s.filters.Active())
	}
	if s.ctl != nil {
		info.LastRun = runFromReport(s.ctl.LastReport())
	}
	return info
}

func (s *Service) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.statusInfo())
}

func (s *Service) RunNow(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.ctl == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "scheduler not initialized")
	}
	report, err := s.ctl.Trigger(ctx)
	if err != nil {
		return nil, toRPCError(err)
	}
	return toStruct(runFromReport(report))
}

func (s *Service) SetFilter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.ctl == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "scheduler not initialized")
	}
	var in filterRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	mode, err := scrape.ParseFilterMode(in.Filter)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v; %s", err, scrape.FilterUsage)
	}
	if err := s.ctl.SelectFilter(ctx, mode); err != nil {
		return nil, toRPCError(err)
	}
	return toStruct(s.statusInfo())
}

func (s *Service) ListRuns(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.db == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "history not initialized")
	}
	var in listRunsRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	rows, err := s.db.ListRuns(in.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list runs: %v", err)
	}
	out := runList{Runs: make([]RunInfo, 0, len(rows))}
	for _, r := range rows {
		out.Runs = append(out.Runs, runFromRow(r))
	}
	return toStruct(out)
}

func toRPCError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrNotReady):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%v", err)
	case errors.Is(err, scrape.ErrFilterNotFound):
		return grpcstatus.Errorf(codes.NotFound, "%v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Errorf(codes.DeadlineExceeded, "%v", err)
	case errors.Is(err, context.Canceled):
		return grpcstatus.Errorf(codes.Canceled, "%v", err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%v", err)
	}
}

var _ ControlServer = (*Service)(nil)
