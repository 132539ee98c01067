package dashboard

import (
    "context"
    "sync"
    "time"

    "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/registry"
)

type EventType string

const (
    EventWorkerAdded   EventType = "worker_added"
    EventWorkerUpdated EventType = "worker_updated"
    EventWorkerRemoved EventType = "worker_removed"
    EventLeaderChanged EventType = "leader_changed"
)

// Event describes a registry or leadership change. Only the fields relevant
// to the type are set.
type Event struct {
    Type   EventType
    At     time.Time
    Worker *common.WorkerNode
    Leader *consensus.LeaderInfo
}

func workerEventType(o registry.Outcome) (EventType, bool) {
    switch o {
    case registry.Added:
        return EventWorkerAdded, true
    case registry.Updated:
        return EventWorkerUpdated, true
    case registry.Removed:
        return EventWorkerRemoved, true
    }
    return "", false
}

// Subscribe returns a channel of events that is closed when ctx is done.
// Delivery is best-effort: a subscriber that falls 64 events behind misses
// events rather than stalling the registry.
func (n *Node) Subscribe(ctx context.Context) <-chan Event {
    ch := make(chan Event, 64)
    n.eb.add(ch)
    go func() {
        <-ctx.Done()
        n.eb.remove(ch)
    }()
    return ch
}

type eventBus struct {
    mu   sync.Mutex
    subs map[chan Event]struct{}
}

func (e *eventBus) add(ch chan Event) {
    e.mu.Lock(); defer e.mu.Unlock()
    if e.subs == nil { e.subs = make(map[chan Event]struct{}) }
    e.subs[ch] = struct{}{}
}

// remove unregisters and closes ch under the bus lock so publish never
// sends on a closed channel.
func (e *eventBus) remove(ch chan Event) {
    e.mu.Lock(); defer e.mu.Unlock()
    if _, ok := e.subs[ch]; !ok { return }
    delete(e.subs, ch)
    close(ch)
}

func (e *eventBus) publish(ev Event) {
    e.mu.Lock(); defer e.mu.Unlock()
    for ch := range e.subs {
        select {
        case ch <- ev:
        default:
        }
    }
}
