package membership

import (
    "testing"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

func TestMetaRoundTrip(t *testing.T) {
    w := &common.WorkerNode{
        ID:   7,
        Type: common.WorkerTypeCompactor,
        Host: &common.HostAddress{Host: "10.0.0.9", Port: 6660},
        State: common.WorkerNodeStateRunning,
    }
    b, err := EncodeMeta(w)
    if err != nil { t.Fatalf("encode: %v", err) }
    got, err := DecodeMeta(b)
    if err != nil { t.Fatalf("decode: %v", err) }
    if got.Type != w.Type || got.Addr() != "10.0.0.9:6660" || got.State != w.State {
        t.Fatalf("round trip mismatch: %+v", got)
    }
}

func TestMetaEmpty(t *testing.T) {
    if b, err := EncodeMeta(nil); err != nil || b != nil { t.Fatalf("nil worker: %v %v", b, err) }
    if w, err := DecodeMeta(nil); err != nil || w != nil { t.Fatalf("empty meta: %v %v", w, err) }
    if _, err := DecodeMeta([]byte{0xff}); err == nil { t.Fatalf("expected error for truncated meta") }
}
