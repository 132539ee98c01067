// Package dashboard assembles a dashboard node: it turns worker descriptors
// seen on gossip into registry writes, orders those writes through consensus
// and serves the registry over the API.
package dashboard

import (
    "bytes"
    "context"
    "fmt"
    "log"
    "strings"
    "sync"
    "time"

    "golang.org/x/sync/errgroup"

    "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/membership"
    obsmetrics "github.com/amirimatin/clusterdash/pkg/observability/metrics"
    "github.com/amirimatin/clusterdash/pkg/observability/tracing"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/registry"
    "github.com/amirimatin/clusterdash/pkg/transport"
)

// Node is one dashboard process. Only the consensus leader writes to the
// registry; every node answers reads from its own replica.
type Node struct {
    opts Options
    log  *log.Logger
    reg  *registry.Registry
    cons consensus.Consensus
    mem  membership.Membership
    srv  transport.RPCServer
    eb   eventBus

    mu  sync.Mutex
    run struct {
        started bool
        closed  bool
    }
    cancel  context.CancelFunc
    group   *errgroup.Group
    kick    chan struct{}
    // missing counts consecutive reconcile passes a registered host was
    // absent from gossip.
    missing map[string]int
}

// New constructs a Node from validated options. It performs no network
// activity; call Start to launch it.
func New(opts Options) (*Node, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    opts.setDefaults()
    n := &Node{
        opts:    opts,
        log:     logutil.Or(opts.Logger),
        reg:     opts.Registry,
        cons:    opts.Consensus,
        mem:     opts.Membership,
        srv:     opts.Server,
        kick:    make(chan struct{}, 1),
        missing: make(map[string]int),
    }
    n.reg.Observe(n.onChange)
    return n, nil
}

// Start launches consensus, membership and the API server, then the loops
// that keep the registry in step with gossip.
func (n *Node) Start(ctx context.Context) error {
    n.mu.Lock(); defer n.mu.Unlock()
    if n.run.closed { return ErrClosed }
    if n.run.started { return nil }
    obsmetrics.Register()

    gctx, cancel := context.WithCancel(ctx)
    if err := n.cons.Start(gctx); err != nil { cancel(); return err }
    if err := n.mem.Start(gctx); err != nil {
        cancel()
        _ = n.cons.Stop()
        return err
    }
    n.join()

    g, gctx := errgroup.WithContext(gctx)
    g.Go(func() error { n.membershipEventsLoop(gctx); return nil })
    g.Go(func() error { n.reconcileLoop(gctx); return nil })
    if ln, ok := n.cons.(consensus.LeaderNotifier); ok {
        g.Go(func() error { n.leaderLoop(gctx, ln.LeaderCh()); return nil })
    }
    if n.srv != nil {
        if err := n.srv.Start(gctx, n.Handlers()); err != nil {
            cancel()
            _ = n.mem.Stop()
            _ = n.cons.Stop()
            _ = g.Wait()
            return err
        }
    }
    n.run.started = true
    n.cancel, n.group = cancel, g
    obsmetrics.SetWorkerCounts(n.reg.Counts())
    logutil.Infof(n.log, "dashboard: node %s started", n.opts.NodeID)
    return nil
}

// join contacts the discovery seeds. Failure is not fatal: the reconcile
// loop retries while this node is alone.
func (n *Node) join() {
    if n.opts.Discovery == nil { return }
    seeds := n.opts.Discovery.Seeds()
    if len(seeds) == 0 { return }
    if err := n.mem.Join(seeds); err != nil {
        logutil.Warnf(n.log, "dashboard: joining seeds %v: %v", seeds, err)
        return
    }
    logutil.Infof(n.log, "dashboard: joined gossip via %v", seeds)
}

// Stop leaves gossip and shuts every component down.
func (n *Node) Stop(ctx context.Context) error {
    n.mu.Lock()
    if n.run.closed { n.mu.Unlock(); return nil }
    n.run.closed = true
    started, cancel, g := n.run.started, n.cancel, n.group
    n.mu.Unlock()
    if !started { return nil }

    if n.srv != nil { _ = n.srv.Stop(ctx) }
    if err := n.mem.Leave(); err != nil { logutil.Warnf(n.log, "dashboard: leave: %v", err) }
    _ = n.mem.Stop()
    err := n.cons.Stop()
    cancel()
    _ = g.Wait()
    obsmetrics.IsLeader.Set(0)
    return err
}

// Close is a convenience alias for Stop with a background context.
func (n *Node) Close() error { return n.Stop(context.Background()) }

// IsLeader reports whether this node writes to the registry.
func (n *Node) IsLeader() bool { return n.cons.IsLeader() }

// Leader returns the current consensus leader, if known.
func (n *Node) Leader() (consensus.LeaderInfo, bool) {
    id, addr, ok := n.cons.Leader()
    return consensus.LeaderInfo{ID: id, Addr: addr, Term: n.cons.Term()}, ok
}

// APIAddr is the address the API server is bound to, or "" without one.
func (n *Node) APIAddr() string {
    if n.srv == nil { return "" }
    return n.srv.Addr()
}

// Handlers binds the API handlers to this node.
func (n *Node) Handlers() transport.Handlers {
    return transport.Handlers{Workers: n.Workers, Status: n.Status, Watch: n.Watch}
}

// Workers lists registered workers of type t from the local replica.
func (n *Node) Workers(ctx context.Context, t common.WorkerType) ([]*common.WorkerNode, error) {
    _, span := tracing.StartSpan(ctx, "dashboard.workers", "type", t.String())
    defer span.End(nil)
    return n.reg.List(t), nil
}

// Status reports OK, or UNKNOWN_WORKER when gossip members advertise a
// descriptor the registry does not accept.
func (n *Node) Status(ctx context.Context) (*common.Status, error) {
    _, span := tracing.StartSpan(ctx, "dashboard.status")
    defer span.End(nil)
    var b strings.Builder
    fmt.Fprintf(&b, "%d workers", n.reg.Len())
    if li, ok := n.Leader(); ok {
        fmt.Fprintf(&b, ", leader %s (term %d)", li.ID, li.Term)
    } else {
        b.WriteString(", no leader")
    }
    var unknown []string
    for _, m := range n.mem.Members() {
        if m.Worker != nil && !registrable(m.Worker) { unknown = append(unknown, m.ID) }
    }
    if len(unknown) > 0 {
        fmt.Fprintf(&b, "; unknown workers: %s", strings.Join(unknown, ", "))
        return &common.Status{Code: common.StatusCodeUnknownWorker, Message: b.String()}, nil
    }
    return &common.Status{Code: common.StatusCodeOK, Message: b.String()}, nil
}

// Watch streams worker events to send until ctx ends or send fails.
func (n *Node) Watch(ctx context.Context, send func(transport.WorkerEvent) error) error {
    for ev := range n.Subscribe(ctx) {
        if ev.Worker == nil { continue }
        if err := send(transport.WorkerEvent{Type: string(ev.Type), Worker: ev.Worker, At: ev.At}); err != nil { return err }
    }
    return nil
}

// onChange runs on every replica after the registry applied a change.
func (n *Node) onChange(o registry.Outcome, w *common.WorkerNode) {
    et, ok := workerEventType(o)
    if !ok { return }
    obsmetrics.SetWorkerCounts(n.reg.Counts())
    logutil.Event(n.log, "info", "worker "+o.String(), "id", w.ID, "type", w.Type.ShortName(), "host", w.Addr())
    n.eb.publish(Event{Type: et, At: n.opts.Now(), Worker: w})
}

// registrable reports whether w can enter the registry: a known worker type
// and a host address.
func registrable(w *common.WorkerNode) bool {
    return w.Type > common.WorkerTypeUnspecified && w.Type <= common.WorkerTypeMeta && w.Addr() != ""
}

func (n *Node) membershipEventsLoop(ctx context.Context) {
    evch := n.mem.Events()
    for {
        select {
        case <-ctx.Done():
            return
        case e, ok := <-evch:
            if !ok { return }
            obsmetrics.GossipMembers.Set(float64(len(n.mem.Members())))
            n.handleMember(e)
        }
    }
}

func (n *Node) handleMember(e membership.Event) {
    if !n.cons.IsLeader() { return }
    w := e.Member.Worker
    switch e.Type {
    case membership.EventJoin, membership.EventUpdate:
        if w == nil || !registrable(w) { return }
        n.upsert(w)
        n.addVoter(e.Member)
    case membership.EventLeave, membership.EventFailed:
        if w == nil { return }
        n.remove(w.Addr())
        n.removeVoter(e.Member)
    }
}

func (n *Node) leaderLoop(ctx context.Context, ch <-chan consensus.LeaderInfo) {
    for {
        select {
        case <-ctx.Done():
            return
        case li, ok := <-ch:
            if !ok { return }
            obsmetrics.LeaderChanges.Inc()
            leading := n.cons.IsLeader()
            if leading { obsmetrics.IsLeader.Set(1) } else { obsmetrics.IsLeader.Set(0) }
            logutil.Infof(n.log, "dashboard: leader change observed: id=%s term=%d", li.ID, li.Term)
            liCopy := li
            n.eb.publish(Event{Type: EventLeaderChanged, At: n.opts.Now(), Leader: &liCopy})
            if n.opts.OnLeaderChange != nil { n.opts.OnLeaderChange(liCopy) }
            if leading { n.Reconcile() }
        }
    }
}

// Reconcile asks the reconcile loop for an immediate pass.
func (n *Node) Reconcile() {
    select {
    case n.kick <- struct{}{}:
    default:
    }
}

func (n *Node) reconcileLoop(ctx context.Context) {
    ticker := time.NewTicker(n.opts.ReconcileInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
        case <-n.kick:
        }
        n.reconcile()
    }
}

// reconcile brings the registry in line with the gossip view. A host is
// dropped only after missing from two passes in a row, so a new leader
// whose gossip view is still filling does not evict live workers.
func (n *Node) reconcile() {
    members := n.mem.Members()
    obsmetrics.GossipMembers.Set(float64(len(members)))
    if len(members) <= 1 { n.join() }
    if !n.cons.IsLeader() {
        clear(n.missing)
        return
    }
    seen := make(map[string]bool, len(members))
    for _, m := range members {
        if m.Worker == nil || !registrable(m.Worker) { continue }
        seen[m.Worker.Addr()] = true
        if n.needsUpsert(m.Worker) { n.upsert(m.Worker) }
        n.addVoter(m)
    }
    for _, host := range n.reg.Hosts() {
        if seen[host] {
            delete(n.missing, host)
            continue
        }
        n.missing[host]++
        if n.missing[host] >= 2 {
            n.remove(host)
            delete(n.missing, host)
        }
    }
}

// needsUpsert reports whether applying w would change the registry.
func (n *Node) needsUpsert(w *common.WorkerNode) bool {
    cur, ok := n.reg.ByHost(w.Addr())
    if !ok { return true }
    next := w.Clone()
    next.ID, next.TransactionalID, next.StartedAt = cur.ID, cur.TransactionalID, cur.StartedAt
    if (next.Type == common.WorkerTypeComputeNode) != (cur.TransactionalID != nil) { return true }
    a, _ := cur.Marshal()
    b, _ := next.Marshal()
    return !bytes.Equal(a, b)
}

// upsert stamps StartedAt before proposing so every replica stores the same
// value.
func (n *Node) upsert(w *common.WorkerNode) {
    w = w.Clone()
    if w.StartedAt == nil { w.StartedAt = common.Uint64(uint64(n.opts.Now().Unix())) }
    cmd, err := consensus.UpsertWorker(w)
    if err != nil {
        logutil.Errorf(n.log, "dashboard: encode worker %s: %v", w.Addr(), err)
        return
    }
    n.apply(cmd)
}

func (n *Node) remove(host string) { n.apply(consensus.RemoveWorker(host)) }

func (n *Node) apply(cmd consensus.Command) {
    _, span := tracing.StartSpan(context.Background(), "dashboard.apply", "op", string(cmd.Op))
    _, err := n.cons.Apply(cmd, n.opts.ApplyTimeout)
    span.End(err)
    if err != nil {
        obsmetrics.RegistryApplies.WithLabelValues(string(cmd.Op), "error").Inc()
        logutil.Warnf(n.log, "dashboard: apply %s: %v", cmd.Op, err)
        return
    }
    obsmetrics.RegistryApplies.WithLabelValues(string(cmd.Op), "ok").Inc()
}

// addVoter makes a peer dashboard a raft voter at the address it gossips.
func (n *Node) addVoter(m membership.MemberInfo) {
    rc, addr, ok := n.peerDashboard(m)
    if !ok { return }
    if err := rc.AddVoter(m.ID, addr, n.opts.VoterTimeout); err != nil {
        logutil.Warnf(n.log, "dashboard: add voter %s at %s: %v", m.ID, addr, err)
    }
}

func (n *Node) removeVoter(m membership.MemberInfo) {
    rc, _, ok := n.peerDashboard(m)
    if !ok { return }
    if err := rc.RemoveServer(m.ID, n.opts.VoterTimeout); err != nil {
        logutil.Warnf(n.log, "dashboard: remove voter %s: %v", m.ID, err)
        return
    }
    logutil.Infof(n.log, "dashboard: removed voter %s", m.ID)
}

func (n *Node) peerDashboard(m membership.MemberInfo) (consensus.Reconfigurer, string, bool) {
    rc, ok := n.cons.(consensus.Reconfigurer)
    if !ok || m.ID == n.opts.NodeID || m.Worker == nil || m.Worker.Type != common.WorkerTypeMeta { return nil, "", false }
    if m.Worker.Property == nil || m.Worker.Property.InternalRPCHostAddr == "" { return nil, "", false }
    return rc, m.Worker.Property.InternalRPCHostAddr, true
}
