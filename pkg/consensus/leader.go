package consensus

// LeaderInfo describes the current known leader. An empty ID means the
// cluster currently has no leader.
type LeaderInfo struct {
    ID   string
    Addr string
    Term uint64
}

func (li LeaderInfo) Known() bool { return li.ID != "" }

// LeaderNotifier is implemented by engines that report leadership changes.
// Sends never block the engine, so a slow reader only sees the latest
// changes.
type LeaderNotifier interface {
    LeaderCh() <-chan LeaderInfo
}
