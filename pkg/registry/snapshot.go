package registry

import (
    "fmt"
    "sort"

    "google.golang.org/protobuf/encoding/protowire"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

const snapshotVersion = 1

// Snapshot encodes the registry as a version varint, the next id varint and
// then every worker, sorted by id, as a length-prefixed WorkerNode.
func (r *Registry) Snapshot() ([]byte, error) {
    r.mu.RLock(); defer r.mu.RUnlock()
    ids := make([]uint32, 0, len(r.byID))
    for id := range r.byID { ids = append(ids, id) }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

    b := protowire.AppendVarint(nil, snapshotVersion)
    b = protowire.AppendVarint(b, uint64(r.nextID))
    for _, id := range ids {
        enc, err := r.byID[id].Marshal()
        if err != nil { return nil, err }
        b = protowire.AppendBytes(b, enc)
    }
    return b, nil
}

// Restore replaces the registry with a snapshot and rebuilds its indexes.
func (r *Registry) Restore(buf []byte) error {
    version, n := protowire.ConsumeVarint(buf)
    if n < 0 { return fmt.Errorf("registry: snapshot header: %w", protowire.ParseError(n)) }
    if version != snapshotVersion { return fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, version) }
    buf = buf[n:]
    nextID, n := protowire.ConsumeVarint(buf)
    if n < 0 { return fmt.Errorf("registry: snapshot header: %w", protowire.ParseError(n)) }
    buf = buf[n:]

    var workers []*common.WorkerNode
    for len(buf) > 0 {
        enc, n := protowire.ConsumeBytes(buf)
        if n < 0 { return fmt.Errorf("registry: snapshot entry: %w", protowire.ParseError(n)) }
        buf = buf[n:]
        w := &common.WorkerNode{}
        if err := w.Unmarshal(enc); err != nil { return fmt.Errorf("registry: snapshot entry: %w", err) }
        workers = append(workers, w)
    }

    r.mu.Lock(); defer r.mu.Unlock()
    r.reset()
    r.nextID = uint32(nextID)
    for _, w := range workers {
        key, ok := hostKey(w)
        if !ok { continue }
        r.byID[w.ID] = w
        r.byHost[key] = w.ID
        if w.TransactionalID != nil { r.txIDs[*w.TransactionalID] = w.ID }
        if w.ID >= r.nextID { r.nextID = w.ID + 1 }
    }
    if r.nextID == 0 { r.nextID = 1 }
    return nil
}
