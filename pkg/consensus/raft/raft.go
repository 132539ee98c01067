package raftcons

import (
    "context"
    "errors"
    "fmt"
    "log"
    "net"
    "os"
    "path/filepath"
    "strconv"
    "sync"
    "time"

    "github.com/hashicorp/go-hclog"
    "github.com/hashicorp/raft"
    raftboltdb "github.com/hashicorp/raft-boltdb"

    c "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/registry"
)

// Node implements consensus.Consensus with HashiCorp Raft, replicating the
// worker registry.
type Node struct {
    opts  Options
    log   *log.Logger
    hlog  hclog.Logger
    lch   chan c.LeaderInfo
    state registry.State

    mu    sync.Mutex
    r     *raft.Raft
    addr  raft.ServerAddress
    trans raft.Transport
    lb    raft.LoopbackTransport
    bolt  *raftboltdb.BoltStore
}

func New(opts Options) (*Node, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    opts.Logger = logutil.Or(opts.Logger)
    if opts.State == nil { opts.State = registry.New() }
    return &Node{
        opts:  opts,
        log:   opts.Logger,
        hlog:  newHCLogger(opts.Logger, opts.NodeID, opts.LogLevel),
        lch:   make(chan c.LeaderInfo, 16),
        state: opts.State,
    }, nil
}

func (n *Node) raftConfig() *raft.Config {
    cfg := raft.DefaultConfig()
    cfg.LocalID = raft.ServerID(n.opts.NodeID)
    cfg.Logger = n.hlog
    if n.opts.HeartbeatTimeout > 0 {
        cfg.HeartbeatTimeout = n.opts.HeartbeatTimeout
        // Keep lease <= heartbeat to satisfy invariants
        if cfg.LeaderLeaseTimeout > cfg.HeartbeatTimeout {
            cfg.LeaderLeaseTimeout = cfg.HeartbeatTimeout / 2
            if cfg.LeaderLeaseTimeout == 0 { cfg.LeaderLeaseTimeout = cfg.HeartbeatTimeout }
        }
    }
    if n.opts.ElectionTimeout > 0 { cfg.ElectionTimeout = n.opts.ElectionTimeout }
    if n.opts.CommitTimeout > 0 { cfg.CommitTimeout = n.opts.CommitTimeout }
    return cfg
}

func (n *Node) stores() (raft.LogStore, raft.StableStore, raft.SnapshotStore, error) {
    if n.opts.DataDir == "" {
        return raft.NewInmemStore(), raft.NewInmemStore(), raft.NewInmemSnapshotStore(), nil
    }
    if n.opts.SnapshotsRetained == 0 { n.opts.SnapshotsRetained = 2 }
    if err := os.MkdirAll(n.opts.DataDir, 0o755); err != nil { return nil, nil, nil, err }
    bstore, err := raftboltdb.NewBoltStore(filepath.Join(n.opts.DataDir, "raft.db"))
    if err != nil { return nil, nil, nil, err }
    snaps, err := raft.NewFileSnapshotStoreWithLogger(n.opts.DataDir, n.opts.SnapshotsRetained, n.hlog)
    if err != nil {
        bstore.Close()
        return nil, nil, nil, err
    }
    n.bolt = bstore
    return bstore, bstore, snaps, nil
}

func (n *Node) transport() (raft.ServerAddress, raft.Transport, error) {
    if n.opts.BindAddr == "" {
        addr, trans := raft.NewInmemTransport(raft.ServerAddress(n.opts.NodeID))
        return addr, trans, nil
    }
    var advertise net.Addr
    if n.opts.Advertise != "" {
        a, err := net.ResolveTCPAddr("tcp", n.opts.Advertise)
        if err != nil { return "", nil, fmt.Errorf("raftcons: advertise address: %w", err) }
        advertise = a
    }
    nt, err := raft.NewTCPTransportWithLogger(n.opts.BindAddr, advertise, 3, time.Second, n.hlog)
    if err != nil { return "", nil, err }
    return nt.LocalAddr(), nt, nil
}

func (n *Node) Start(ctx context.Context) error {
    n.mu.Lock(); defer n.mu.Unlock()
    if n.r != nil {
        return nil
    }
    cfg := n.raftConfig()
    logs, stable, snaps, err := n.stores()
    if err != nil { return err }
    addr, trans, err := n.transport()
    if err != nil { n.closeBolt(); return err }

    r, err := raft.NewRaft(cfg, newRegistryFSM(n.state), logs, stable, snaps, trans)
    if err != nil {
        n.closeBolt()
        return err
    }
    n.r, n.addr, n.trans = r, addr, trans
    if lb, ok := trans.(raft.LoopbackTransport); ok { n.lb = lb }

    obsCh := make(chan raft.Observation, 32)
    r.RegisterObserver(raft.NewObserver(obsCh, false, func(o *raft.Observation) bool {
        _, ok := o.Data.(raft.LeaderObservation)
        return ok
    }))
    go func() {
        for o := range obsCh {
            lo := o.Data.(raft.LeaderObservation)
            n.emitLeader(c.LeaderInfo{ID: string(lo.LeaderID), Addr: string(lo.LeaderAddr), Term: n.Term()})
        }
    }()

    if n.opts.Bootstrap {
        servers := []raft.Server{{ID: cfg.LocalID, Address: addr}}
        for _, p := range n.opts.Peers {
            servers = append(servers, raft.Server{ID: raft.ServerID(p.ID), Address: raft.ServerAddress(p.Addr)})
        }
        err := r.BootstrapCluster(raft.Configuration{Servers: servers}).Error()
        switch {
        case errors.Is(err, raft.ErrCantBootstrap):
            logutil.Infof(n.log, "raft: existing state found, skipping bootstrap")
        case err != nil:
            _ = r.Shutdown().Error()
            n.r = nil
            n.closeBolt()
            return err
        }
    }
    logutil.Infof(n.log, "raft: node %s started at %s", n.opts.NodeID, addr)

    go func() {
        <-ctx.Done()
        _ = n.Stop()
    }()
    return nil
}

func (n *Node) raftNode() *raft.Raft {
    n.mu.Lock(); defer n.mu.Unlock()
    return n.r
}

// Apply replicates cmd and returns the consensus.Result the registry
// produced for it.
func (n *Node) Apply(cmd c.Command, timeout time.Duration) (any, error) {
    r := n.raftNode()
    if r == nil { return nil, c.ErrNotStarted }
    if r.State() != raft.Leader { return nil, c.ErrNotLeader }
    t := timeout
    if t <= 0 { t = n.opts.ApplyTimeout }
    af := r.Apply(cmd.Encode(), t)
    if err := af.Error(); err != nil {
        if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) { return nil, c.ErrNotLeader }
        return nil, err
    }
    if e, ok := af.Response().(error); ok && e != nil { return nil, e }
    return af.Response(), nil
}

func (n *Node) IsLeader() bool {
    r := n.raftNode()
    return r != nil && r.State() == raft.Leader
}

func (n *Node) Leader() (id string, addr string, ok bool) {
    r := n.raftNode()
    if r == nil { return "", "", false }
    a, sid := r.LeaderWithID()
    if sid == "" { return "", "", false }
    return string(sid), string(a), true
}

func (n *Node) Term() uint64 {
    r := n.raftNode()
    if r == nil { return 0 }
    if v := r.Stats()["current_term"]; v != "" {
        if u, err := strconv.ParseUint(v, 10, 64); err == nil { return u }
    }
    return 0
}

// Addr is the raft transport address peers dial.
func (n *Node) Addr() string {
    n.mu.Lock(); defer n.mu.Unlock()
    return string(n.addr)
}

func (n *Node) Stop() error {
    n.mu.Lock()
    r := n.r
    n.r = nil
    n.mu.Unlock()
    if r == nil { return nil }
    err := r.Shutdown().Error()
    n.closeBolt()
    return err
}

func (n *Node) closeBolt() {
    if n.bolt != nil {
        _ = n.bolt.Close()
        n.bolt = nil
    }
}

func (n *Node) LeaderCh() <-chan c.LeaderInfo { return n.lch }

func (n *Node) emitLeader(li c.LeaderInfo) {
    select {
    case n.lch <- li:
    default:
        // drop to avoid blocking; last-writer-wins semantics are ok for leadership
    }
}

// State returns the replicated registry. Reads are served locally and may
// trail the leader.
func (n *Node) State() registry.State { return n.state }

// AddVoter adds a voting server if it is not already present with the same
// address. A stale entry for the same id is replaced.
func (n *Node) AddVoter(id, addr string, timeout time.Duration) error {
    r := n.raftNode()
    if r == nil { return c.ErrNotStarted }
    cfg := r.GetConfiguration()
    if err := cfg.Error(); err == nil {
        for _, srv := range cfg.Configuration().Servers {
            if string(srv.ID) != id { continue }
            if string(srv.Address) == addr { return nil }
            if err := r.RemoveServer(srv.ID, 0, timeout).Error(); err != nil { return err }
            break
        }
    }
    return r.AddVoter(raft.ServerID(id), raft.ServerAddress(addr), 0, timeout).Error()
}

// RemoveServer removes a server from the configuration if present.
func (n *Node) RemoveServer(id string, timeout time.Duration) error {
    r := n.raftNode()
    if r == nil { return c.ErrNotStarted }
    return r.RemoveServer(raft.ServerID(id), 0, timeout).Error()
}

var (
    _ c.Consensus      = (*Node)(nil)
    _ c.LeaderNotifier = (*Node)(nil)
    _ c.Reconfigurer   = (*Node)(nil)
)
