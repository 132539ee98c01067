package consensus

import (
    "context"
    "errors"
    "testing"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/registry"
)

func TestCommandEncodeDecode(t *testing.T) {
    w := &common.WorkerNode{Type: common.WorkerTypeComputeNode, Host: &common.HostAddress{Host: "cn", Port: 5688}}
    cmd, err := UpsertWorker(w)
    if err != nil { t.Fatalf("upsert: %v", err) }
    got, err := DecodeCommand(cmd.Encode())
    if err != nil { t.Fatalf("decode: %v", err) }
    if got.Op != OpUpsertWorker || string(got.Payload) != string(cmd.Payload) { t.Fatalf("mismatch: %+v", got) }

    rm, err := DecodeCommand(RemoveWorker("cn:5688").Encode())
    if err != nil || rm.Op != OpRemoveWorker || string(rm.Payload) != "cn:5688" { t.Fatalf("remove: %+v %v", rm, err) }

    if _, err := DecodeCommand(nil); !errors.Is(err, ErrUnknownOp) { t.Fatalf("empty command: %v", err) }
    if _, err := DecodeCommand([]byte{0x0a, 0x05, 'a'}); err == nil { t.Fatalf("expected truncation error") }
}

func TestDispatch(t *testing.T) {
    st := registry.New()
    cmd, _ := UpsertWorker(&common.WorkerNode{Type: common.WorkerTypeFrontend, Host: &common.HostAddress{Host: "fe", Port: 4566}})
    res, err := Dispatch(st, cmd)
    if err != nil { t.Fatalf("dispatch upsert: %v", err) }
    if res.Outcome != registry.Added || res.Worker.ID != 1 { t.Fatalf("unexpected result: %+v", res) }

    res, err = Dispatch(st, RemoveWorker("fe:4566"))
    if err != nil || res.Worker == nil || res.Worker.ID != 1 || res.Outcome != registry.Removed { t.Fatalf("dispatch remove: %+v %v", res, err) }

    if _, err := Dispatch(st, Command{Op: "Bogus"}); !errors.Is(err, ErrUnknownOp) { t.Fatalf("unknown op: %v", err) }
    if _, err := Dispatch(st, Command{Op: OpUpsertWorker, Payload: []byte{0x08}}); err == nil { t.Fatalf("expected decode error") }
    bad, _ := UpsertWorker(&common.WorkerNode{ID: 3})
    if _, err := Dispatch(st, bad); !errors.Is(err, registry.ErrInvalidWorker) { t.Fatalf("invalid worker: %v", err) }
}

func TestLocal(t *testing.T) {
    l := NewLocal("dash-1", registry.New())
    cmd := RemoveWorker("x:1")
    if _, err := l.Apply(cmd, 0); !errors.Is(err, ErrNotStarted) { t.Fatalf("apply before start: %v", err) }
    if err := l.Start(context.Background()); err != nil { t.Fatalf("start: %v", err) }
    if !l.IsLeader() { t.Fatalf("local engine must lead") }
    li := <-l.LeaderCh()
    if li.ID != "dash-1" || !li.Known() { t.Fatalf("leader info: %+v", li) }
    v, err := l.Apply(cmd, 0)
    if err != nil { t.Fatalf("apply: %v", err) }
    if res := v.(Result); res.Worker != nil { t.Fatalf("remove of unknown host returned %+v", res.Worker) }
    _ = l.Stop()
    if id, _, ok := l.Leader(); ok { t.Fatalf("stopped engine reports leader %q", id) }
}

func TestParsePeers(t *testing.T) {
    peers, err := ParsePeers(" n2=10.0.0.2:7000, ,n3=10.0.0.3:7000")
    if err != nil { t.Fatalf("parse: %v", err) }
    if len(peers) != 2 || peers[0] != (Peer{ID: "n2", Addr: "10.0.0.2:7000"}) || peers[1].ID != "n3" { t.Fatalf("peers: %+v", peers) }
    for _, bad := range []string{"n2", "=addr", "n2="} {
        if _, err := ParsePeers(bad); err == nil { t.Fatalf("expected error for %q", bad) }
    }
    if peers, err := ParsePeers(""); err != nil || len(peers) != 0 { t.Fatalf("empty: %v %v", peers, err) }
}
