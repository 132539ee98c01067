package grpc

import (
    "context"
    "crypto/tls"
    "errors"
    "io"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/backoff"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/credentials/insecure"
    "google.golang.org/grpc/keepalive"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/transport"
)

// Client reads the dashboard service of one target over cached connections.
type Client struct {
    target  string
    timeout time.Duration
    tlsCfg  *tls.Config

    mu sync.Mutex
    cm *ConnManager
}

func NewClient(target string, timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    return &Client{target: target, timeout: timeout}
}

// UseTLS sets TLS config for the client.
func (c *Client) UseTLS(cfg *tls.Config) *Client { c.tlsCfg = cfg; return c }

func (c *Client) dialCtx(ctx context.Context, target string) (*grpc.ClientConn, error) {
    opts := []grpc.DialOption{
        grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype(codecName)),
        grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 500 * time.Millisecond}),
        grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 20 * time.Second, Timeout: 5 * time.Second, PermitWithoutStream: true}),
        grpc.WithBlock(),
    }
    if c.tlsCfg != nil {
        opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(c.tlsCfg)))
    } else {
        opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
    }
    return grpc.DialContext(ctx, target, opts...)
}

// getConn returns a managed connection, creating a manager if absent.
func (c *Client) getConn(ctx context.Context) (*grpc.ClientConn, func(), error) {
    c.mu.Lock()
    if c.cm == nil { c.cm = NewConnManager(30*time.Second, c.dialCtx) }
    cm := c.cm
    c.mu.Unlock()
    return cm.Get(ctx, c.target)
}

func (c *Client) ListWorkers(ctx context.Context, t common.WorkerType) ([]*common.WorkerNode, error) {
    cctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    cc, rel, err := c.getConn(cctx)
    if err != nil { return nil, err }
    defer rel()
    var resp transport.ListWorkersResponse
    if err := cc.Invoke(cctx, methodListWorkers, &transport.ListWorkersRequest{Type: t}, &resp); err != nil { return nil, err }
    return resp.Workers, nil
}

func (c *Client) Status(ctx context.Context) (*common.Status, error) {
    cctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    cc, rel, err := c.getConn(cctx)
    if err != nil { return nil, err }
    defer rel()
    out := new(common.Status)
    if err := cc.Invoke(cctx, methodGetStatus, &transport.StatusRequest{}, out); err != nil { return nil, err }
    return out, nil
}

// Watch streams worker events of type t (WorkerTypeUnspecified for all) to
// fn until ctx is canceled or the stream breaks. Cancellation returns nil.
func (c *Client) Watch(ctx context.Context, t common.WorkerType, fn func(transport.WorkerEvent)) error {
    dctx, cancel := context.WithTimeout(ctx, c.timeout)
    cc, rel, err := c.getConn(dctx)
    cancel()
    if err != nil { return err }
    defer rel()
    cs, err := cc.NewStream(ctx, &grpc.StreamDesc{StreamName: "WatchWorkers", ServerStreams: true}, methodWatchWorkers)
    if err != nil { return err }
    if err := cs.SendMsg(&transport.WatchRequest{Type: t}); err != nil { return err }
    if err := cs.CloseSend(); err != nil { return err }
    for {
        var ev transport.WorkerEvent
        if err := cs.RecvMsg(&ev); err != nil {
            if errors.Is(err, io.EOF) || ctx.Err() != nil { return nil }
            return err
        }
        fn(ev)
    }
}

// Close releases cached connections.
func (c *Client) Close() {
    c.mu.Lock(); defer c.mu.Unlock()
    if c.cm != nil {
        c.cm.Close()
        c.cm = nil
    }
}

var _ transport.RPCClient = (*Client)(nil)
