package raftcons

import (
    "bytes"
    "io"
    "testing"

    r "github.com/hashicorp/raft"

    c "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/registry"
)

func TestRegistryFSM_ApplyUpsertRemove(t *testing.T) {
    st := registry.New()
    fsm := newRegistryFSM(st)

    cmd, _ := c.UpsertWorker(&common.WorkerNode{Type: common.WorkerTypeComputeNode, Host: &common.HostAddress{Host: "cn", Port: 5688}})
    v := fsm.Apply(&r.Log{Data: cmd.Encode()})
    res, ok := v.(c.Result)
    if !ok { t.Fatalf("apply upsert returned %T: %v", v, v) }
    if res.Outcome != registry.Added || res.Worker.ID != 1 { t.Fatalf("unexpected result: %+v", res) }

    if v := fsm.Apply(&r.Log{Data: c.RemoveWorker("cn:5688").Encode()}); v.(c.Result).Worker == nil {
        t.Fatalf("remove returned no worker")
    }
    if st.Len() != 0 { t.Fatalf("registry not empty") }

    if err, ok := fsm.Apply(&r.Log{Data: []byte{0xff}}).(error); !ok || err == nil { t.Fatalf("expected error for garbage entry") }
}

type sink struct {
    bytes.Buffer
    cancelled bool
}

func (s *sink) ID() string    { return "test" }
func (s *sink) Cancel() error { s.cancelled = true; return nil }
func (s *sink) Close() error  { return nil }

func TestRegistryFSM_SnapshotRestore(t *testing.T) {
    st := registry.New()
    st.ApplyUpsert(&common.WorkerNode{Type: common.WorkerTypeFrontend, Host: &common.HostAddress{Host: "fe", Port: 1}})
    fsm := newRegistryFSM(st)

    snap, err := fsm.Snapshot()
    if err != nil { t.Fatalf("snapshot: %v", err) }
    var s sink
    if err := snap.Persist(&s); err != nil { t.Fatalf("persist: %v", err) }

    st2 := registry.New()
    if err := newRegistryFSM(st2).Restore(io.NopCloser(&s.Buffer)); err != nil { t.Fatalf("restore: %v", err) }
    if w, ok := st2.ByHost("fe:1"); !ok || w.ID != 1 { t.Fatalf("restored registry lacks fe: %+v", w) }
}
