package membership

import (
    "context"
    "time"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

// MemberInfo describes a gossip member. Worker is the descriptor the member
// advertises in its node metadata, nil when it advertises none or it cannot
// be decoded.
type MemberInfo struct {
    ID     string
    Addr   string
    Worker *common.WorkerNode
}

type EventType string

const (
    // EventJoin indicates a member joined or became visible.
    EventJoin   EventType = "join"
    // EventLeave indicates a member left the cluster.
    EventLeave  EventType = "leave"
    // EventFailed indicates membership marked the node as failed/unreachable.
    EventFailed EventType = "failed"
    // EventUpdate indicates a member changed its advertised descriptor.
    EventUpdate EventType = "update"
)

// Event is the translated membership change notification.
type Event struct {
    Type   EventType
    Member MemberInfo
    At     time.Time
}

// Membership is the abstraction over the gossip/failure-detection layer that
// carries worker descriptors between processes.
type Membership interface {
    Start(ctx context.Context) error
    Join(seeds []string) error
    Local() MemberInfo
    Members() []MemberInfo
    Events() <-chan Event
    // UpdateWorker replaces the advertised descriptor and gossips it.
    UpdateWorker(w *common.WorkerNode) error
    Leave() error
    Stop() error
}

// EncodeMeta is the node metadata carrying w. A nil worker advertises nothing.
func EncodeMeta(w *common.WorkerNode) ([]byte, error) {
    if w == nil { return nil, nil }
    return w.Marshal()
}

// DecodeMeta reverses EncodeMeta. Empty metadata yields a nil worker.
func DecodeMeta(b []byte) (*common.WorkerNode, error) {
    if len(b) == 0 { return nil, nil }
    w := &common.WorkerNode{}
    if err := w.Unmarshal(b); err != nil { return nil, err }
    return w, nil
}
