package registry

import (
    "errors"
    "testing"
    "time"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

func worker(t common.WorkerType, host string, port int32) *common.WorkerNode {
    return &common.WorkerNode{
        Type:     t,
        Host:     &common.HostAddress{Host: host, Port: port},
        State:    common.WorkerNodeStateRunning,
        Property: &common.WorkerNodeProperty{Parallelism: 4},
    }
}

func fixedClock(r *Registry, sec int64) { r.now = func() time.Time { return time.Unix(sec, 0) } }

func TestUpsertAssignsIDs(t *testing.T) {
    r := New()
    fixedClock(r, 1000)

    fe, out, err := r.ApplyUpsert(worker(common.WorkerTypeFrontend, "fe", 4566))
    if err != nil || out != Added { t.Fatalf("frontend: out=%v err=%v", out, err) }
    if fe.ID != 1 || fe.TransactionalID != nil || fe.StartedAt == nil || *fe.StartedAt != 1000 {
        t.Fatalf("unexpected frontend: %+v", fe)
    }
    cn1, _, _ := r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn1", 5688))
    cn2, _, _ := r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn2", 5688))
    if cn1.ID != 2 || *cn1.TransactionalID != 0 { t.Fatalf("cn1: %+v", cn1) }
    if cn2.ID != 3 || *cn2.TransactionalID != 1 { t.Fatalf("cn2: %+v", cn2) }

    // Removing cn1 frees transactional id 0 but never id 2.
    removed, err := r.ApplyRemove("cn1:5688")
    if err != nil || removed == nil || removed.ID != 2 { t.Fatalf("remove: %+v %v", removed, err) }
    cn3, _, _ := r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn3", 5688))
    if cn3.ID != 4 || *cn3.TransactionalID != 0 { t.Fatalf("cn3: %+v", cn3) }
}

func TestUpsertKnownHostKeepsIdentity(t *testing.T) {
    r := New()
    fixedClock(r, 1000)
    first, _, _ := r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn", 5688))

    fixedClock(r, 2000)
    again := worker(common.WorkerTypeComputeNode, "cn", 5688)
    again.StartedAt = common.Uint64(5)
    again.TransactionalID = common.Uint32(77)
    again.ID = 99
    got, out, err := r.ApplyUpsert(again)
    if err != nil || out != Unchanged { t.Fatalf("same descriptor: out=%v err=%v", out, err) }
    if got.ID != first.ID || *got.TransactionalID != 0 || *got.StartedAt != 1000 { t.Fatalf("identity changed: %+v", got) }

    again.Property.Parallelism = 16
    got, out, _ = r.ApplyUpsert(again)
    if out != Updated || got.Property.Parallelism != 16 { t.Fatalf("update: out=%v %+v", out, got) }

    // Turning into a frontend releases the transactional id.
    fe := worker(common.WorkerTypeFrontend, "cn", 5688)
    got, _, _ = r.ApplyUpsert(fe)
    if got.TransactionalID != nil { t.Fatalf("expected no transactional id: %+v", got) }
    other, _, _ := r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "other", 1))
    if *other.TransactionalID != 0 { t.Fatalf("expected freed id 0: %+v", other) }
}

func TestUpsertStartedAtProvided(t *testing.T) {
    r := New()
    w := worker(common.WorkerTypeMeta, "meta", 5690)
    w.StartedAt = common.Uint64(0)
    got, _, _ := r.ApplyUpsert(w)
    if got.StartedAt == nil || *got.StartedAt != 0 { t.Fatalf("explicit zero start time lost: %+v", got) }
}

func TestInvalidInput(t *testing.T) {
    r := New()
    for _, w := range []*common.WorkerNode{nil, {}, {Host: &common.HostAddress{Port: 1}}} {
        if _, _, err := r.ApplyUpsert(w); !errors.Is(err, ErrInvalidWorker) { t.Fatalf("expected ErrInvalidWorker for %+v, got %v", w, err) }
    }
    if w, err := r.ApplyRemove("nobody:1"); w != nil || err != nil { t.Fatalf("remove unknown: %v %v", w, err) }
}

func TestTransactionalIDsExhausted(t *testing.T) {
    r := New()
    for i := 0; i < MaxTransactionalIDs; i++ {
        if _, _, err := r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn", int32(i+1))); err != nil { t.Fatalf("upsert %d: %v", i, err) }
    }
    if _, _, err := r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn", 0x7fff)); !errors.Is(err, ErrNoTransactionalID) {
        t.Fatalf("expected exhaustion, got %v", err)
    }
    if r.Len() != MaxTransactionalIDs { t.Fatalf("failed upsert must not register: %d", r.Len()) }
}

func TestListAndLookups(t *testing.T) {
    r := New()
    r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "b", 1))
    r.ApplyUpsert(worker(common.WorkerTypeFrontend, "a", 1))
    r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "c", 1))

    all := r.List(common.WorkerTypeUnspecified)
    if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 { t.Fatalf("list all: %+v", all) }
    cns := r.List(common.WorkerTypeComputeNode)
    if len(cns) != 2 || cns[0].Host.Host != "b" || cns[1].Host.Host != "c" { t.Fatalf("list compute: %+v", cns) }

    all[0].Host.Host = "mutated"
    if w, _ := r.Get(1); w.Host.Host != "b" { t.Fatalf("List must return copies") }
    if _, ok := r.Get(42); ok { t.Fatalf("unexpected worker 42") }
    if w, ok := r.ByHost("a:1"); !ok || w.ID != 2 { t.Fatalf("by host: %+v", w) }
    counts := r.Counts()
    if counts["compute-node"] != 2 || counts["frontend"] != 1 { t.Fatalf("counts: %v", counts) }
}

func TestSnapshotRestore(t *testing.T) {
    r := New()
    fixedClock(r, 1000)
    r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn1", 1))
    r.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn2", 1))
    r.ApplyUpsert(worker(common.WorkerTypeFrontend, "fe", 1))
    r.ApplyRemove("fe:1")

    snap, err := r.Snapshot()
    if err != nil { t.Fatalf("snapshot: %v", err) }

    r2 := New()
    r2.ApplyUpsert(worker(common.WorkerTypeMeta, "stale", 1))
    if err := r2.Restore(snap); err != nil { t.Fatalf("restore: %v", err) }
    snap2, _ := r2.Snapshot()
    if string(snap) != string(snap2) { t.Fatalf("round-trip mismatch") }
    if _, ok := r2.ByHost("stale:1"); ok { t.Fatalf("restore must replace state") }

    // Id 3 was used by the removed frontend and stays retired.
    w, _, _ := r2.ApplyUpsert(worker(common.WorkerTypeComputeNode, "cn3", 1))
    if w.ID != 4 || *w.TransactionalID != 2 { t.Fatalf("after restore: %+v", w) }
}

func TestRestoreRejectsGarbage(t *testing.T) {
    r := New()
    if err := r.Restore([]byte{2, 1}); !errors.Is(err, ErrUnsupportedSnapshot) { t.Fatalf("version: %v", err) }
    if err := r.Restore(nil); err == nil { t.Fatalf("expected error for empty snapshot") }
    if err := r.Restore([]byte{1, 1, 5, 0x08}); err == nil { t.Fatalf("expected error for truncated entry") }
}

func TestObserver(t *testing.T) {
    r := New()
    type change struct {
        o    Outcome
        host string
    }
    var got []change
    r.Observe(func(o Outcome, w *common.WorkerNode) { got = append(got, change{o, w.Addr()}) })

    w := worker(common.WorkerTypeFrontend, "fe", 4566)
    r.ApplyUpsert(w)
    r.ApplyUpsert(w)
    w.State = common.WorkerNodeStateStarting
    r.ApplyUpsert(w)
    r.ApplyRemove("fe:4566")
    r.ApplyRemove("fe:4566")
    r.ApplyUpsert(&common.WorkerNode{})

    want := []change{{Added, "fe:4566"}, {Updated, "fe:4566"}, {Removed, "fe:4566"}}
    if len(got) != len(want) { t.Fatalf("changes = %v", got) }
    for i := range want {
        if got[i] != want[i] { t.Fatalf("change %d = %v, want %v", i, got[i], want[i]) }
    }
    if len(r.Hosts()) != 0 { t.Fatalf("hosts = %v", r.Hosts()) }
}
