package raftcons

import (
    "fmt"
    "log"
    "time"

    c "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/registry"
)

// Options configure the Raft-based Consensus implementation.
type Options struct {
    NodeID string
    Logger *log.Logger

    // State receives committed commands. A fresh registry is used when nil.
    State registry.State

    // Bootstrap forms a new cluster on first Start, made of this node and
    // Peers. It is a no-op when the stores already hold a configuration.
    Bootstrap bool
    Peers     []c.Peer

    // Timeouts (optional). Zero means defaults.
    HeartbeatTimeout time.Duration
    ElectionTimeout  time.Duration
    CommitTimeout    time.Duration
    ApplyTimeout     time.Duration // client-side apply wait

    // BindAddr selects a TCP transport (e.g. "127.0.0.1:0"); an in-memory
    // transport is used when empty. Advertise overrides the address peers
    // dial, required when binding a wildcard address.
    BindAddr  string
    Advertise string

    // DataDir selects on-disk stores when non-empty (bolt store for log and
    // stable, file snapshot store). When empty, in-memory stores are used.
    DataDir string

    // SnapshotsRetained controls how many snapshots to retain on disk.
    SnapshotsRetained int

    // LogLevel is the hclog level of raft's own logging ("warn" by default).
    LogLevel string
}

func (o *Options) Validate() error {
    if o.NodeID == "" { return fmt.Errorf("raftcons: empty NodeID") }
    for _, p := range o.Peers {
        if p.ID == o.NodeID { return fmt.Errorf("raftcons: peer list contains this node %q", p.ID) }
    }
    return nil
}
