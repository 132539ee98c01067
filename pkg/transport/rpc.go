package transport

import (
    "context"
    "errors"
    "time"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

// ErrUnknownWorkerType is returned by handlers for a worker type filter that
// does not name a known type.
var ErrUnknownWorkerType = errors.New("transport: unknown worker type")

// WorkersFunc lists registered workers of a type; WorkerTypeUnspecified lists
// all of them.
type WorkersFunc func(ctx context.Context, t common.WorkerType) ([]*common.WorkerNode, error)

// StatusFunc reports the health of the serving node.
type StatusFunc func(ctx context.Context) (*common.Status, error)

// WorkerEvent is one registry change pushed to watchers.
type WorkerEvent struct {
    Type   string             `json:"type"`
    Worker *common.WorkerNode `json:"worker,omitempty"`
    At     time.Time          `json:"at"`
}

// WatchFunc streams registry changes to send until ctx ends or send fails.
type WatchFunc func(ctx context.Context, send func(WorkerEvent) error) error

// Handlers back the dashboard API on every transport. Watch is optional and
// only served where the transport can stream.
type Handlers struct {
    Workers WorkersFunc
    Status  StatusFunc
    Watch   WatchFunc
}

func (h Handlers) Validate() error {
    if h.Workers == nil || h.Status == nil { return errors.New("transport: workers and status handlers are required") }
    return nil
}

// RPCServer serves the dashboard API.
type RPCServer interface {
    Transport
    Start(ctx context.Context, h Handlers) error
    Stop(ctx context.Context) error
}

// RPCClient reads the dashboard API of one endpoint.
type RPCClient interface {
    ListWorkers(ctx context.Context, t common.WorkerType) ([]*common.WorkerNode, error)
    Status(ctx context.Context) (*common.Status, error)
}

// ListWorkersRequest and StatusRequest are the request bodies of the gRPC
// flavour of the API.
type ListWorkersRequest struct {
    Type common.WorkerType `json:"type,omitempty"`
}

type ListWorkersResponse struct {
    Workers []*common.WorkerNode `json:"workers,omitempty"`
}

type StatusRequest struct{}

// WatchRequest filters a worker event stream by type.
type WatchRequest struct {
    Type common.WorkerType `json:"type,omitempty"`
}
