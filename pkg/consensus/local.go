package consensus

import (
    "context"
    "sync"
    "time"

    "github.com/amirimatin/clusterdash/pkg/registry"
)

// Local applies commands straight to a registry. It is the engine of a
// single dashboard node running without raft and is always the leader.
type Local struct {
    id string
    st registry.State

    mu      sync.Mutex
    started bool
    lch     chan LeaderInfo
}

func NewLocal(id string, st registry.State) *Local {
    return &Local{id: id, st: st, lch: make(chan LeaderInfo, 1)}
}

func (l *Local) Start(ctx context.Context) error {
    l.mu.Lock(); defer l.mu.Unlock()
    if l.started { return nil }
    l.started = true
    select {
    case l.lch <- LeaderInfo{ID: l.id, Term: 1}:
    default:
    }
    return nil
}

func (l *Local) Apply(cmd Command, _ time.Duration) (any, error) {
    l.mu.Lock(); defer l.mu.Unlock()
    if !l.started { return nil, ErrNotStarted }
    res, err := Dispatch(l.st, cmd)
    if err != nil { return nil, err }
    return res, nil
}

func (l *Local) IsLeader() bool {
    l.mu.Lock(); defer l.mu.Unlock()
    return l.started
}

func (l *Local) Leader() (string, string, bool) {
    if !l.IsLeader() { return "", "", false }
    return l.id, "", true
}

func (l *Local) Term() uint64 { return 1 }

func (l *Local) Stop() error {
    l.mu.Lock(); defer l.mu.Unlock()
    l.started = false
    return nil
}

func (l *Local) LeaderCh() <-chan LeaderInfo { return l.lch }

var (
    _ Consensus      = (*Local)(nil)
    _ LeaderNotifier = (*Local)(nil)
)
