// Package agent announces a worker to the dashboards by running a gossip
// member whose metadata is the worker's descriptor.
package agent

import (
    "context"
    "errors"
    "fmt"
    "log"
    "os"
    "runtime"
    "strings"
    "sync"
    "time"

    "github.com/cenkalti/backoff/v4"
    "github.com/google/uuid"

    "github.com/amirimatin/clusterdash/pkg/discovery"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/membership"
    ml "github.com/amirimatin/clusterdash/pkg/membership/memberlist"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

var ErrNotStarted = errors.New("agent: not started")

// Options configures an Agent.
type Options struct {
    // NodeID is the gossip name; DefaultNodeID() when empty.
    NodeID    string
    Bind      string
    Advertise string
    // Worker is the descriptor to announce. Type and Host are required;
    // State is managed by the agent.
    Worker *common.WorkerNode
    Seeds  discovery.Discovery
    Logger *log.Logger

    // JoinTimeout bounds the join retries; zero retries until Start's
    // context ends.
    JoinTimeout time.Duration
    // ProbeInterval tunes gossip failure detection (optional).
    ProbeInterval time.Duration
}

func (o Options) Validate() error {
    if o.Bind == "" { return errors.New("agent: empty Bind address") }
    if o.Worker == nil || o.Worker.Host == nil || o.Worker.Host.Host == "" { return errors.New("agent: worker host is required") }
    if o.Worker.Type <= common.WorkerTypeUnspecified || o.Worker.Type > common.WorkerTypeMeta {
        return fmt.Errorf("agent: unsupported worker type %v", o.Worker.Type)
    }
    return nil
}

// DefaultNodeID is "<hostname>-<first 8 hex digits of a random uuid>".
func DefaultNodeID() string {
    host, err := os.Hostname()
    if err != nil || host == "" { host = "worker" }
    return host + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// LocalResource describes this process: version, CPU cores and the given
// memory size.
func LocalResource(version string, memoryBytes uint64) *common.WorkerNodeResource {
    return &common.WorkerNodeResource{RwVersion: version, TotalMemoryBytes: memoryBytes, TotalCPUCores: uint64(runtime.NumCPU())}
}

// Agent is one announced worker.
type Agent struct {
    opts Options
    log  *log.Logger

    mu     sync.Mutex
    worker *common.WorkerNode
    mem    membership.Membership
}

func New(opts Options) (*Agent, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    if opts.NodeID == "" { opts.NodeID = DefaultNodeID() }
    w := opts.Worker.Clone()
    w.State = common.WorkerNodeStateStarting
    return &Agent{opts: opts, log: logutil.Or(opts.Logger), worker: w}, nil
}

// NodeID is the gossip name the agent announces under.
func (a *Agent) NodeID() string { return a.opts.NodeID }

// Start gossips the descriptor as STARTING, joins the seeds with exponential
// backoff and then switches the descriptor to RUNNING.
func (a *Agent) Start(ctx context.Context) error {
    a.mu.Lock()
    if a.mem != nil { a.mu.Unlock(); return nil }
    m, err := ml.New(ml.Options{
        NodeID:        a.opts.NodeID,
        Bind:          a.opts.Bind,
        Advertise:     a.opts.Advertise,
        Worker:        a.worker.Clone(),
        Logger:        a.log,
        ProbeInterval: a.opts.ProbeInterval,
    })
    if err != nil { a.mu.Unlock(); return err }
    if err := m.Start(ctx); err != nil { a.mu.Unlock(); return err }
    a.mem = m
    a.mu.Unlock()

    if err := a.join(ctx); err != nil {
        _ = a.Stop()
        return err
    }
    return a.Update(func(w *common.WorkerNode) { w.State = common.WorkerNodeStateRunning })
}

func (a *Agent) join(ctx context.Context) error {
    if a.opts.Seeds == nil { return nil }
    b := backoff.NewExponentialBackOff()
    b.InitialInterval = 200 * time.Millisecond
    b.MaxInterval = 10 * time.Second
    b.MaxElapsedTime = a.opts.JoinTimeout
    op := func() error {
        seeds := a.opts.Seeds.Seeds()
        if len(seeds) == 0 { return errors.New("no seeds available") }
        return a.mem.Join(seeds)
    }
    notify := func(err error, wait time.Duration) {
        logutil.Warnf(a.log, "agent: join failed: %v; retrying in %s", err, wait.Round(time.Millisecond))
    }
    if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
        return fmt.Errorf("agent: join: %w", err)
    }
    logutil.Event(a.log, "info", "worker announced", "id", a.opts.NodeID, "type", a.worker.Type.ShortName(), "host", a.worker.Addr())
    return nil
}

// Update edits the announced descriptor and gossips the change.
func (a *Agent) Update(fn func(w *common.WorkerNode)) error {
    a.mu.Lock(); defer a.mu.Unlock()
    if a.mem == nil { return ErrNotStarted }
    next := a.worker.Clone()
    fn(next)
    if err := a.mem.UpdateWorker(next); err != nil { return err }
    a.worker = next
    return nil
}

// Worker returns a copy of the descriptor currently announced.
func (a *Agent) Worker() *common.WorkerNode {
    a.mu.Lock(); defer a.mu.Unlock()
    return a.worker.Clone()
}

// Members is the agent's view of the gossip cluster.
func (a *Agent) Members() []membership.MemberInfo {
    a.mu.Lock(); defer a.mu.Unlock()
    if a.mem == nil { return nil }
    return a.mem.Members()
}

// Stop leaves gossip so dashboards drop the worker, then shuts down.
func (a *Agent) Stop() error {
    a.mu.Lock()
    m := a.mem
    a.mem = nil
    a.mu.Unlock()
    if m == nil { return nil }
    if err := m.Leave(); err != nil { logutil.Warnf(a.log, "agent: leave: %v", err) }
    return m.Stop()
}
