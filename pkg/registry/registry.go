// Package registry keeps the set of known workers and hands out their
// cluster-wide identifiers. Every replica applies the same commands in the
// same order, so all mutation goes through the Apply methods.
package registry

import (
    "bytes"
    "sort"
    "sync"
    "time"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

// MaxTransactionalIDs bounds the transactional ids handed to compute nodes.
const MaxTransactionalIDs = 1024

// Outcome tells what an apply did.
type Outcome int

const (
    Unchanged Outcome = iota
    Added
    Updated
    Removed
)

func (o Outcome) String() string {
    switch o {
    case Added:
        return "added"
    case Updated:
        return "updated"
    case Removed:
        return "removed"
    }
    return "unchanged"
}

// Observer is told about every change after it has been applied. It runs on
// the applying goroutine and must not call back into Apply.
type Observer func(o Outcome, w *common.WorkerNode)

// State is the replicated part of the registry, as driven by consensus.
type State interface {
    ApplyUpsert(w *common.WorkerNode) (*common.WorkerNode, Outcome, error)
    ApplyRemove(host string) (*common.WorkerNode, error)
    Snapshot() ([]byte, error)
    Restore(buf []byte) error
}

// Registry is an in-memory State. It is safe for concurrent use.
type Registry struct {
    mu     sync.RWMutex
    byID   map[uint32]*common.WorkerNode
    byHost map[string]uint32
    txIDs  map[uint32]uint32 // transactional id -> worker id
    nextID uint32
    now    func() time.Time

    omu       sync.RWMutex
    observers []Observer
}

func New() *Registry {
    r := &Registry{now: time.Now}
    r.reset()
    return r
}

func (r *Registry) reset() {
    r.byID = make(map[uint32]*common.WorkerNode)
    r.byHost = make(map[string]uint32)
    r.txIDs = make(map[uint32]uint32)
    r.nextID = 1
}

// Observe registers fn for every later Added, Updated and Removed change.
// Restore does not notify.
func (r *Registry) Observe(fn Observer) {
    r.omu.Lock(); defer r.omu.Unlock()
    r.observers = append(r.observers, fn)
}

func (r *Registry) notify(o Outcome, w *common.WorkerNode) {
    r.omu.RLock()
    obs := r.observers
    r.omu.RUnlock()
    for _, fn := range obs {
        fn(o, w.Clone())
    }
}

func hostKey(w *common.WorkerNode) (string, bool) {
    if w == nil || w.Host == nil || w.Host.Host == "" { return "", false }
    return w.Host.String(), true
}

// ApplyUpsert registers w under its host address. A new host gets the next
// id and, for compute nodes, the smallest free transactional id. A known host
// keeps its id, transactional id and start time; everything else is replaced.
// StartedAt defaults to the current time for new hosts.
func (r *Registry) ApplyUpsert(w *common.WorkerNode) (*common.WorkerNode, Outcome, error) {
    stored, out, err := r.upsert(w)
    if err == nil && out != Unchanged { r.notify(out, stored) }
    return stored, out, err
}

func (r *Registry) upsert(w *common.WorkerNode) (*common.WorkerNode, Outcome, error) {
    key, ok := hostKey(w)
    if !ok { return nil, Unchanged, ErrInvalidWorker }
    r.mu.Lock(); defer r.mu.Unlock()

    next := w.Clone()
    id, known := r.byHost[key]
    if !known {
        next.ID = r.nextID
        next.TransactionalID = nil
        if next.StartedAt == nil { next.StartedAt = common.Uint64(uint64(r.now().Unix())) }
        if next.Type == common.WorkerTypeComputeNode {
            tx, err := r.freeTxID()
            if err != nil { return nil, Unchanged, err }
            next.TransactionalID = common.Uint32(tx)
            r.txIDs[tx] = next.ID
        }
        r.nextID++
        r.byID[next.ID] = next
        r.byHost[key] = next.ID
        return next.Clone(), Added, nil
    }

    prev := r.byID[id]
    next.ID = prev.ID
    next.StartedAt = prev.StartedAt
    next.TransactionalID = prev.TransactionalID
    switch {
    case next.Type == common.WorkerTypeComputeNode && next.TransactionalID == nil:
        tx, err := r.freeTxID()
        if err != nil { return nil, Unchanged, err }
        next.TransactionalID = common.Uint32(tx)
        r.txIDs[tx] = next.ID
    case next.Type != common.WorkerTypeComputeNode && next.TransactionalID != nil:
        delete(r.txIDs, *next.TransactionalID)
        next.TransactionalID = nil
    }
    r.byID[id] = next
    if same(prev, next) { return next.Clone(), Unchanged, nil }
    return next.Clone(), Updated, nil
}

func same(a, b *common.WorkerNode) bool {
    ab, _ := a.Marshal()
    bb, _ := b.Marshal()
    return bytes.Equal(ab, bb)
}

func (r *Registry) freeTxID() (uint32, error) {
    for tx := uint32(0); tx < MaxTransactionalIDs; tx++ {
        if _, used := r.txIDs[tx]; !used { return tx, nil }
    }
    return 0, ErrNoTransactionalID
}

// ApplyRemove drops the worker at host and frees its transactional id. It
// returns the removed worker, or nil when the host was unknown.
func (r *Registry) ApplyRemove(host string) (*common.WorkerNode, error) {
    w := r.remove(host)
    if w != nil { r.notify(Removed, w) }
    return w, nil
}

func (r *Registry) remove(host string) *common.WorkerNode {
    r.mu.Lock(); defer r.mu.Unlock()
    id, ok := r.byHost[host]
    if !ok { return nil }
    w := r.byID[id]
    if w.TransactionalID != nil { delete(r.txIDs, *w.TransactionalID) }
    delete(r.byID, id)
    delete(r.byHost, host)
    return w
}

// Hosts returns the host:port of every registered worker.
func (r *Registry) Hosts() []string {
    r.mu.RLock(); defer r.mu.RUnlock()
    out := make([]string, 0, len(r.byHost))
    for h := range r.byHost { out = append(out, h) }
    sort.Strings(out)
    return out
}

// List returns copies of the workers of type t sorted by id.
// WorkerTypeUnspecified matches every worker.
func (r *Registry) List(t common.WorkerType) []*common.WorkerNode {
    r.mu.RLock(); defer r.mu.RUnlock()
    out := make([]*common.WorkerNode, 0, len(r.byID))
    for _, w := range r.byID {
        if t == common.WorkerTypeUnspecified || w.Type == t { out = append(out, w.Clone()) }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out
}

func (r *Registry) Get(id uint32) (*common.WorkerNode, bool) {
    r.mu.RLock(); defer r.mu.RUnlock()
    w, ok := r.byID[id]
    return w.Clone(), ok
}

// ByHost looks a worker up by its host:port.
func (r *Registry) ByHost(host string) (*common.WorkerNode, bool) {
    r.mu.RLock(); defer r.mu.RUnlock()
    id, ok := r.byHost[host]
    if !ok { return nil, false }
    return r.byID[id].Clone(), true
}

func (r *Registry) Len() int {
    r.mu.RLock(); defer r.mu.RUnlock()
    return len(r.byID)
}

// Counts returns the number of workers per type short name.
func (r *Registry) Counts() map[string]int {
    r.mu.RLock(); defer r.mu.RUnlock()
    out := make(map[string]int)
    for _, w := range r.byID { out[w.Type.ShortName()]++ }
    return out
}

var _ State = (*Registry)(nil)
