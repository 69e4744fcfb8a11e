// Package api exposes the daemon's control surface over gRPC. The service
// is declared by hand and carries protobuf well-known types, so no
// generated code is needed on either side.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "wppscrape.v1.Control"

const (
	methodStatus    = "/" + ServiceName + "/Status"
	methodRunNow    = "/" + ServiceName + "/RunNow"
	methodSetFilter = "/" + ServiceName + "/SetFilter"
	methodListRuns  = "/" + ServiceName + "/ListRuns"
)

// ControlServer is the server side of the control service.
type ControlServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RunNow(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetFilter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: unaryHandler(methodStatus, ControlServer.Status)},
		{MethodName: "RunNow", Handler: unaryHandler(methodRunNow, ControlServer.RunNow)},
		{MethodName: "SetFilter", Handler: unaryHandler(methodSetFilter, ControlServer.SetFilter)},
		{MethodName: "ListRuns", Handler: unaryHandler(methodListRuns, ControlServer.ListRuns)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wppscrape/v1/control",
}

// unaryHandler adapts a ControlServer method to a grpc.MethodHandler.
func unaryHandler[Req any, PReq interface {
	*Req
}](fullMethod string, call func(ControlServer, context.Context, PReq) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
