// Package grpcserver exposes lifecycle statistics over gRPC as
// cake.v1.Stats. Messages are protobuf well-known types, so the service
// is described by hand instead of generated.
package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName    = "cake.v1.Stats"
	SnapshotMethod = "/" + ServiceName + "/Snapshot"
)

// StatsSource is what the server reports on; service.Stats implements it.
type StatsSource interface {
	Snapshot() map[string]int64
}

// StatsServer is the server side of cake.v1.Stats.
type StatsServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Server adapts a StatsSource to gRPC.
type Server struct {
	stats StatsSource
}

func NewServer(stats StatsSource) *Server {
	return &Server{stats: stats}
}

// Register adds the service to gs.
func (s *Server) Register(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&ServiceDesc, s)
}

// -------------------- Queries --------------------

// Snapshot returns event counts keyed by event name, plus live_records.
func (s *Server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	counts := s.stats.Snapshot()
	fields := make(map[string]any, len(counts))
	for k, v := range counts {
		fields[k] = v
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -------------------- Service description --------------------

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Snapshot",
			Handler:    snapshotHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cake/v1/stats.proto",
}

func snapshotHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatsServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SnapshotMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatsServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// -------------------- Client --------------------

type StatsClient struct {
	cc grpc.ClientConnInterface
}

func NewStatsClient(cc grpc.ClientConnInterface) *StatsClient {
	return &StatsClient{cc: cc}
}

func (c *StatsClient) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every call with its method, code and latency.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	logger = logger.With("component", "grpc")
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"took", time.Since(start))
		return resp, err
	}
}
