package agent

import (
    "context"
    "strings"
    "testing"
    "time"

    "github.com/amirimatin/clusterdash/pkg/discovery/static"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/membership"
    ml "github.com/amirimatin/clusterdash/pkg/membership/memberlist"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

func computeNode() *common.WorkerNode {
    return &common.WorkerNode{
        Type:     common.WorkerTypeComputeNode,
        Host:     &common.HostAddress{Host: "127.0.0.1", Port: 5688},
        Property: &common.WorkerNodeProperty{IsStreaming: true, Parallelism: 4},
        Resource: LocalResource("2.1.0", 8<<30),
    }
}

func TestOptionsValidate(t *testing.T) {
    cases := []struct {
        name string
        opts Options
    }{
        {"no bind", Options{Worker: computeNode()}},
        {"no worker", Options{Bind: "127.0.0.1:0"}},
        {"no host", Options{Bind: "127.0.0.1:0", Worker: &common.WorkerNode{Type: common.WorkerTypeFrontend}}},
        {"bad type", Options{Bind: "127.0.0.1:0", Worker: &common.WorkerNode{Host: &common.HostAddress{Host: "h"}}}},
    }
    for _, tc := range cases {
        if _, err := New(tc.opts); err == nil { t.Fatalf("%s: expected error", tc.name) }
    }
}

func TestDefaultNodeID(t *testing.T) {
    a, b := DefaultNodeID(), DefaultNodeID()
    if a == b { t.Fatalf("ids repeat: %s", a) }
    i := strings.LastIndex(a, "-")
    if i <= 0 || len(a)-i-1 != 8 { t.Fatalf("unexpected id %q", a) }
}

func TestAgent_AnnouncesAndLeaves(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    obs, err := ml.New(ml.Options{NodeID: "dash-1", Bind: "127.0.0.1:0", Logger: logutil.Discard(), ProbeInterval: 100 * time.Millisecond})
    if err != nil { t.Fatal(err) }
    if err := obs.Start(ctx); err != nil { t.Fatal(err) }
    defer obs.Stop()

    a, err := New(Options{
        NodeID:        "cn-1",
        Bind:          "127.0.0.1:0",
        Worker:        computeNode(),
        Seeds:         static.New(obs.Local().Addr),
        Logger:        logutil.Discard(),
        JoinTimeout:   5 * time.Second,
        ProbeInterval: 100 * time.Millisecond,
    })
    if err != nil { t.Fatal(err) }
    if a.Worker().State != common.WorkerNodeStateStarting { t.Fatalf("initial state = %v", a.Worker().State) }
    if err := a.Start(ctx); err != nil { t.Fatalf("start: %v", err) }

    seen := awaitWorker(t, obs, "cn-1", func(w *common.WorkerNode) bool { return w.State == common.WorkerNodeStateRunning })
    if seen.Resource.RwVersion != "2.1.0" || seen.Property.Parallelism != 4 { t.Fatalf("gossiped worker %+v", seen) }

    if err := a.Update(func(w *common.WorkerNode) { w.Property.Parallelism = 16 }); err != nil { t.Fatalf("update: %v", err) }
    awaitWorker(t, obs, "cn-1", func(w *common.WorkerNode) bool { return w.Property.Parallelism == 16 })

    if err := a.Stop(); err != nil { t.Fatalf("stop: %v", err) }
    deadline := time.Now().Add(5 * time.Second)
    for time.Now().Before(deadline) {
        if find(obs.Members(), "cn-1") == nil { return }
        time.Sleep(20 * time.Millisecond)
    }
    t.Fatalf("worker still a member after Stop")
}

func TestAgent_JoinGivesUp(t *testing.T) {
    a, err := New(Options{
        NodeID:      "fe-1",
        Bind:        "127.0.0.1:0",
        Worker:      &common.WorkerNode{Type: common.WorkerTypeFrontend, Host: &common.HostAddress{Host: "127.0.0.1", Port: 4566}},
        Seeds:       static.New("127.0.0.1:1"),
        Logger:      logutil.Discard(),
        JoinTimeout: 500 * time.Millisecond,
    })
    if err != nil { t.Fatal(err) }
    if err := a.Start(context.Background()); err == nil { t.Fatalf("expected join error") }
    if err := a.Update(func(*common.WorkerNode) {}); err != ErrNotStarted { t.Fatalf("update after failed start: %v", err) }
}

func awaitWorker(t *testing.T, m membership.Membership, id string, ok func(*common.WorkerNode) bool) *common.WorkerNode {
    t.Helper()
    deadline := time.Now().Add(5 * time.Second)
    for time.Now().Before(deadline) {
        if mi := find(m.Members(), id); mi != nil && mi.Worker != nil && ok(mi.Worker) { return mi.Worker }
        time.Sleep(20 * time.Millisecond)
    }
    t.Fatalf("member %s never matched", id)
    return nil
}

func find(ms []membership.MemberInfo, id string) *membership.MemberInfo {
    for i := range ms {
        if ms[i].ID == id { return &ms[i] }
    }
    return nil
}
