package grpc

import (
    "context"
    "crypto/tls"
    "log"
    "net"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/codes"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"
    "google.golang.org/grpc/status"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/clusterdash/pkg/observability/metrics"
    "github.com/amirimatin/clusterdash/pkg/observability/tracing"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/transport"
)

// ServiceName is the full name of the hand-written dashboard service.
const ServiceName = "dashboard.v1.Cluster"

const (
    methodListWorkers  = "/" + ServiceName + "/ListWorkers"
    methodGetStatus    = "/" + ServiceName + "/GetStatus"
    methodWatchWorkers = "/" + ServiceName + "/WatchWorkers"
)

// Server implements transport.RPCServer over gRPC using a JSON codec.
type Server struct {
    bind   string
    tlsCfg *tls.Config
    logger *log.Logger

    mu     sync.Mutex
    lis    net.Listener
    srv    *grpc.Server
    health *health.Server
}

func NewServer(bind string, logger *log.Logger) *Server {
    return &Server{bind: bind, logger: logutil.Or(logger)}
}

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// clusterServer defines the methods we expose.
type clusterServer interface {
    ListWorkers(ctx context.Context, in *transport.ListWorkersRequest) (*transport.ListWorkersResponse, error)
    GetStatus(ctx context.Context, in *transport.StatusRequest) (*common.Status, error)
    WatchWorkers(in *transport.WatchRequest, stream grpc.ServerStream) error
}

type clusterImpl struct{ h transport.Handlers }

func knownType(t common.WorkerType) bool {
    return t >= common.WorkerTypeUnspecified && t <= common.WorkerTypeMeta
}

func (c *clusterImpl) ListWorkers(ctx context.Context, in *transport.ListWorkersRequest) (*transport.ListWorkersResponse, error) {
    if in == nil { in = &transport.ListWorkersRequest{} }
    if !knownType(in.Type) { return nil, status.Errorf(codes.InvalidArgument, "%v %d", transport.ErrUnknownWorkerType, in.Type) }
    ctx, span := tracing.StartSpan(ctx, "grpc.workers", "type", in.Type.String())
    ws, err := c.h.Workers(ctx, in.Type)
    span.End(err)
    if err != nil { return nil, status.Error(codes.Internal, err.Error()) }
    return &transport.ListWorkersResponse{Workers: ws}, nil
}

func (c *clusterImpl) GetStatus(ctx context.Context, _ *transport.StatusRequest) (*common.Status, error) {
    ctx, span := tracing.StartSpan(ctx, "grpc.status")
    st, err := c.h.Status(ctx)
    span.End(err)
    if err != nil { return nil, status.Error(codes.Internal, err.Error()) }
    return st, nil
}

// WatchWorkers forwards registry events matching the requested type until
// the client goes away.
func (c *clusterImpl) WatchWorkers(in *transport.WatchRequest, stream grpc.ServerStream) error {
    if c.h.Watch == nil { return status.Error(codes.Unimplemented, "worker watch not supported") }
    if !knownType(in.Type) { return status.Errorf(codes.InvalidArgument, "%v %d", transport.ErrUnknownWorkerType, in.Type) }
    err := c.h.Watch(stream.Context(), func(ev transport.WorkerEvent) error {
        if in.Type != common.WorkerTypeUnspecified && (ev.Worker == nil || ev.Worker.Type != in.Type) { return nil }
        return stream.SendMsg(&ev)
    })
    if err == nil || stream.Context().Err() != nil { return nil }
    return err
}

// Service descriptor and handlers (hand-written, no codegen required)
var clusterServiceDesc = grpc.ServiceDesc{
    ServiceName: ServiceName,
    HandlerType: (*clusterServer)(nil),
    Methods: []grpc.MethodDesc{
        {MethodName: "ListWorkers", Handler: listWorkersHandler},
        {MethodName: "GetStatus", Handler: getStatusHandler},
    },
    Streams: []grpc.StreamDesc{{
        StreamName:    "WatchWorkers",
        ServerStreams: true,
        Handler:       watchWorkersHandler,
    }},
}

func listWorkersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
    in := new(transport.ListWorkersRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(clusterServer).ListWorkers(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListWorkers}
    handler := func(ctx context.Context, req any) (any, error) {
        return srv.(clusterServer).ListWorkers(ctx, req.(*transport.ListWorkersRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
    in := new(transport.StatusRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(clusterServer).GetStatus(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStatus}
    handler := func(ctx context.Context, req any) (any, error) {
        return srv.(clusterServer).GetStatus(ctx, req.(*transport.StatusRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func watchWorkersHandler(srv any, stream grpc.ServerStream) error {
    in := new(transport.WatchRequest)
    if err := stream.RecvMsg(in); err != nil { return err }
    return srv.(clusterServer).WatchWorkers(in, stream)
}

// countRequests records every unary call in the API request counter.
func countRequests(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
    resp, err := handler(ctx, req)
    obsmetrics.APIRequests.WithLabelValues("grpc"+info.FullMethod, status.Code(err).String()).Inc()
    return resp, err
}

func (s *Server) Start(ctx context.Context, h transport.Handlers) error {
    if err := h.Validate(); err != nil { return err }
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    opts := []grpc.ServerOption{
        grpc.ForceServerCodec(jsonCodec{}),
        grpc.UnaryInterceptor(countRequests),
        // watch streams are long-lived
        grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}),
        grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}),
    }
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    hs := health.NewServer()
    hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
    healthpb.RegisterHealthServer(srv, hs)
    srv.RegisterService(&clusterServiceDesc, &clusterImpl{h: h})

    s.mu.Lock()
    s.lis, s.srv, s.health = lis, srv, hs
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        _ = s.Stop(context.Background())
    }()
    go func() {
        if err := srv.Serve(lis); err != nil { logutil.Errorf(s.logger, "grpc: server error: %v", err) }
    }()
    logutil.Infof(s.logger, "grpc: dashboard API listening at %s", lis.Addr())
    return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

// Stop drains in-flight calls, forcing the stop after 2s or when ctx ends.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv, hs := s.srv, s.health
    s.srv, s.health = nil, nil
    s.mu.Unlock()
    if srv == nil { return nil }
    hs.Shutdown()
    ch := make(chan struct{})
    go func() { srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        srv.Stop()
    case <-time.After(2 * time.Second):
        srv.Stop()
    }
    return nil
}

var _ transport.RPCServer = (*Server)(nil)
