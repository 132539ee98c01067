package memberlist

import (
    "context"
    "errors"
    "fmt"
    "log"
    "net"
    "strconv"
    "sync"
    "time"

    "github.com/hashicorp/memberlist"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    base "github.com/amirimatin/clusterdash/pkg/membership"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

var ErrNotStarted = errors.New("memberlist: not started")

// Options configures the memberlist-based membership implementation.
type Options struct {
    // NodeID is the unique node identifier.
    NodeID string

    // Bind is the bind address in host:port form (e.g. ":7946" or "0.0.0.0:7946").
    Bind string

    // Advertise is the address peers use to reach this node. If empty,
    // memberlist derives it from Bind.
    Advertise string

    // Worker is the descriptor advertised as node metadata. It may be nil
    // for members that only observe.
    Worker *common.WorkerNode

    Logger *log.Logger

    // Tuning parameters (optional). Zero means use defaults.
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration
    SuspicionMult int
    // UpdateTimeout bounds how long UpdateWorker waits for the broadcast.
    UpdateTimeout time.Duration
}

func (o Options) Validate() error {
    if o.NodeID == "" { return fmt.Errorf("memberlist: empty NodeID") }
    if o.Bind == "" { return fmt.Errorf("memberlist: empty Bind address") }
    return nil
}

// impl implements base.Membership using HashiCorp memberlist.
type impl struct {
    mu     sync.RWMutex
    opts   Options
    ml     *memberlist.Memberlist
    meta   *metaDelegate
    evts   chan base.Event
    closed bool
}

// New constructs a memberlist-backed membership.
func New(opts Options) (base.Membership, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    opts.Logger = logutil.Or(opts.Logger)
    if opts.UpdateTimeout <= 0 { opts.UpdateTimeout = time.Second }
    meta := &metaDelegate{}
    if err := meta.set(opts.Worker); err != nil { return nil, err }
    return &impl{
        opts: opts,
        meta: meta,
        evts: make(chan base.Event, 64),
    }, nil
}

func splitAddr(addr string) (string, int, error) {
    host, portStr, err := net.SplitHostPort(addr)
    if err != nil { return "", 0, fmt.Errorf("memberlist: invalid address %q: %w", addr, err) }
    port, err := strconv.Atoi(portStr)
    if err != nil || port < 0 || port > 65535 { return "", 0, fmt.Errorf("memberlist: invalid port in %q", addr) }
    return host, port, nil
}

// Start creates and launches the underlying memberlist instance.
func (m *impl) Start(ctx context.Context) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.ml != nil { return nil }
    if m.closed { return fmt.Errorf("memberlist: stopped") }

    cfg := memberlist.DefaultLANConfig()
    cfg.Name = m.opts.NodeID
    host, port, err := splitAddr(m.opts.Bind)
    if err != nil { return err }
    cfg.BindAddr, cfg.BindPort = host, port
    if m.opts.Advertise != "" {
        ahost, aport, err := splitAddr(m.opts.Advertise)
        if err != nil { return err }
        cfg.AdvertiseAddr, cfg.AdvertisePort = ahost, aport
    }
    if m.opts.ProbeInterval > 0 { cfg.ProbeInterval = m.opts.ProbeInterval }
    if m.opts.ProbeTimeout > 0 { cfg.ProbeTimeout = m.opts.ProbeTimeout }
    if m.opts.SuspicionMult > 0 { cfg.SuspicionMult = m.opts.SuspicionMult }
    cfg.Logger = m.opts.Logger

    cfg.Events = &eventDelegate{emit: m.emit, log: m.opts.Logger}
    cfg.Delegate = m.meta

    ml, err := memberlist.Create(cfg)
    if err != nil { return err }
    m.ml = ml

    go func() {
        <-ctx.Done()
        _ = m.Stop()
    }()
    return nil
}

func (m *impl) list() *memberlist.Memberlist {
    m.mu.RLock(); defer m.mu.RUnlock()
    return m.ml
}

func (m *impl) Join(seeds []string) error {
    ml := m.list()
    if ml == nil { return ErrNotStarted }
    if len(seeds) == 0 { return nil }
    _, err := ml.Join(seeds)
    return err
}

func (m *impl) Local() base.MemberInfo {
    ml := m.list()
    if ml == nil { return base.MemberInfo{} }
    return toInfo(ml.LocalNode(), m.opts.Logger)
}

func (m *impl) Members() []base.MemberInfo {
    ml := m.list()
    if ml == nil { return nil }
    nodes := ml.Members()
    out := make([]base.MemberInfo, 0, len(nodes))
    for _, n := range nodes {
        out = append(out, toInfo(n, m.opts.Logger))
    }
    return out
}

func (m *impl) Events() <-chan base.Event { return m.evts }

// UpdateWorker swaps the advertised descriptor and pushes it to peers.
func (m *impl) UpdateWorker(w *common.WorkerNode) error {
    if err := m.meta.set(w); err != nil { return err }
    ml := m.list()
    if ml == nil { return nil }
    return ml.UpdateNode(m.opts.UpdateTimeout)
}

func (m *impl) Leave() error {
    ml := m.list()
    if ml == nil { return nil }
    return ml.Leave(time.Second)
}

// Stop shuts memberlist down without broadcasting a leave and closes the
// event channel.
func (m *impl) Stop() error {
    m.mu.Lock()
    if m.closed { m.mu.Unlock(); return nil }
    m.closed = true
    ml := m.ml
    m.ml = nil
    close(m.evts)
    m.mu.Unlock()
    if ml == nil { return nil }
    return ml.Shutdown()
}

// HealthScore exposes memberlist's awareness score. Implements
// membership.HealthReporter.
func (m *impl) HealthScore() int {
    ml := m.list()
    if ml == nil { return -1 }
    return ml.GetHealthScore()
}

func (m *impl) emit(e base.Event) {
    m.mu.RLock(); defer m.mu.RUnlock()
    if m.closed { return }
    select {
    case m.evts <- e:
    default:
        logutil.Warnf(m.opts.Logger, "memberlist: dropping %s event for %s: channel full", e.Type, e.Member.ID)
    }
}

func toInfo(n *memberlist.Node, l *log.Logger) base.MemberInfo {
    mi := base.MemberInfo{ID: n.Name, Addr: n.Address()}
    w, err := base.DecodeMeta(n.Meta)
    if err != nil {
        logutil.Warnf(l, "memberlist: undecodable metadata from %s: %v", n.Name, err)
        return mi
    }
    mi.Worker = w
    return mi
}

// eventDelegate adapts memberlist events to base.Event.
type eventDelegate struct {
    emit func(e base.Event)
    log  *log.Logger
}

func (d *eventDelegate) notify(t base.EventType, n *memberlist.Node) {
    if n == nil { return }
    d.emit(base.Event{Type: t, Member: toInfo(n, d.log), At: time.Now()})
}

func (d *eventDelegate) NotifyJoin(n *memberlist.Node)   { d.notify(base.EventJoin, n) }
func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) { d.notify(base.EventUpdate, n) }

// NotifyLeave distinguishes a graceful leave from a node declared dead.
func (d *eventDelegate) NotifyLeave(n *memberlist.Node) {
    if n != nil && n.State == memberlist.StateDead {
        d.notify(base.EventFailed, n)
        return
    }
    d.notify(base.EventLeave, n)
}

// metaDelegate implements memberlist.Delegate to gossip the encoded worker
// descriptor.
type metaDelegate struct {
    mu   sync.RWMutex
    meta []byte
}

func (d *metaDelegate) set(w *common.WorkerNode) error {
    b, err := base.EncodeMeta(w)
    if err != nil { return err }
    if len(b) > memberlist.MetaMaxSize { return fmt.Errorf("memberlist: descriptor is %d bytes, limit %d", len(b), memberlist.MetaMaxSize) }
    d.mu.Lock(); defer d.mu.Unlock()
    d.meta = b
    return nil
}

// NodeMeta returns nothing rather than a truncated descriptor.
func (d *metaDelegate) NodeMeta(limit int) []byte {
    d.mu.RLock(); defer d.mu.RUnlock()
    if len(d.meta) > limit { return nil }
    return d.meta
}

func (d *metaDelegate) NotifyMsg([]byte)                       {}
func (d *metaDelegate) GetBroadcasts(int, int) [][]byte        { return nil }
func (d *metaDelegate) LocalState(join bool) []byte            { return nil }
func (d *metaDelegate) MergeRemoteState(buf []byte, join bool) {}
