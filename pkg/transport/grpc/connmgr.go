package grpc

import (
    "context"
    "sync"
    "time"

    "google.golang.org/grpc"

    obsmetrics "github.com/amirimatin/clusterdash/pkg/observability/metrics"
)

// Dialer opens a client connection to target.
type Dialer func(ctx context.Context, target string) (*grpc.ClientConn, error)

// ConnManager caches gRPC client connections per target. Connections nobody
// holds are closed after sitting idle for ttl.
type ConnManager struct {
    mu      sync.Mutex
    conns   map[string]*managedConn
    ttl     time.Duration
    dialer  Dialer
    closing chan struct{}
    once    sync.Once
}

type managedConn struct {
    cc       *grpc.ClientConn
    lastUsed time.Time
    ref      int
}

// NewConnManager creates a manager with the given idle TTL and dialer.
func NewConnManager(ttl time.Duration, dialer Dialer) *ConnManager {
    if ttl <= 0 { ttl = 30 * time.Second }
    m := &ConnManager{ttl: ttl, dialer: dialer, conns: make(map[string]*managedConn), closing: make(chan struct{})}
    go m.janitor()
    return m
}

// Get returns a connection for target and a release func to be called when done.
func (m *ConnManager) Get(ctx context.Context, target string) (*grpc.ClientConn, func(), error) {
    m.mu.Lock()
    if mc, ok := m.conns[target]; ok && mc.cc != nil {
        cc := m.acquire(mc)
        m.mu.Unlock()
        obsmetrics.GRPCConnReuse.Inc()
        return cc, m.releaser(target), nil
    }
    m.mu.Unlock()

    cc, err := m.dialer(ctx, target)
    if err != nil { return nil, func() {}, err }

    m.mu.Lock()
    if existing, ok := m.conns[target]; ok && existing.cc != nil {
        // lost a dial race
        _ = cc.Close()
        out := m.acquire(existing)
        m.mu.Unlock()
        obsmetrics.GRPCConnReuse.Inc()
        return out, m.releaser(target), nil
    }
    m.conns[target] = &managedConn{cc: cc, lastUsed: time.Now(), ref: 1}
    obsmetrics.GRPCConnDials.Inc()
    obsmetrics.GRPCConnActive.Inc()
    m.mu.Unlock()
    return cc, m.releaser(target), nil
}

func (m *ConnManager) acquire(mc *managedConn) *grpc.ClientConn {
    mc.ref++
    mc.lastUsed = time.Now()
    return mc.cc
}

// releaser returns a release func that is safe to call more than once.
func (m *ConnManager) releaser(target string) func() {
    var once sync.Once
    return func() { once.Do(func() { m.release(target) }) }
}

func (m *ConnManager) release(target string) {
    m.mu.Lock()
    if mc, ok := m.conns[target]; ok {
        if mc.ref > 0 { mc.ref-- }
        mc.lastUsed = time.Now()
    }
    m.mu.Unlock()
}

// Len reports how many connections are cached.
func (m *ConnManager) Len() int {
    m.mu.Lock(); defer m.mu.Unlock()
    return len(m.conns)
}

// Close closes all cached connections and stops the janitor.
func (m *ConnManager) Close() {
    m.once.Do(func() { close(m.closing) })
    m.mu.Lock()
    for k, mc := range m.conns {
        if mc.cc != nil { _ = mc.cc.Close() }
        obsmetrics.GRPCConnActive.Dec()
        delete(m.conns, k)
    }
    m.mu.Unlock()
}

func (m *ConnManager) janitor() {
    ticker := time.NewTicker(m.ttl / 2)
    defer ticker.Stop()
    for {
        select {
        case <-m.closing:
            return
        case <-ticker.C:
            m.evictIdle(time.Now().Add(-m.ttl))
        }
    }
}

func (m *ConnManager) evictIdle(cutoff time.Time) {
    m.mu.Lock(); defer m.mu.Unlock()
    for target, mc := range m.conns {
        if mc.ref > 0 || !mc.lastUsed.Before(cutoff) { continue }
        if mc.cc != nil { _ = mc.cc.Close() }
        obsmetrics.GRPCConnEvictions.Inc()
        obsmetrics.GRPCConnActive.Dec()
        delete(m.conns, target)
    }
}
