package dashboard

import (
    "errors"
    "log"
    "time"

    "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/discovery"
    "github.com/amirimatin/clusterdash/pkg/membership"
    "github.com/amirimatin/clusterdash/pkg/registry"
    "github.com/amirimatin/clusterdash/pkg/transport"
)

// Options carries the components a Node wires together. Instances are
// typically produced from bootstrap.Config.
type Options struct {
    // NodeID is the unique identifier of this dashboard node. It is also its
    // gossip name and raft server id.
    NodeID string
    Logger *log.Logger

    // Registry is the local replica read by the API. When Consensus is raft
    // it must be the state the raft FSM applies to.
    Registry *registry.Registry
    // Consensus orders registry writes. Nil applies them directly through a
    // consensus.Local engine.
    Consensus consensus.Consensus
    // Membership delivers worker descriptors (required).
    Membership membership.Membership
    // Discovery provides gossip seeds (optional).
    Discovery discovery.Discovery
    // Server serves the API for this node (optional).
    Server transport.RPCServer

    // ApplyTimeout bounds one registry write; zero means 2s.
    ApplyTimeout time.Duration
    // ReconcileInterval is how often the leader compares the registry with
    // the gossip view; zero means 5s.
    ReconcileInterval time.Duration
    // VoterTimeout bounds raft membership changes; zero means 3s.
    VoterTimeout time.Duration

    // Now stamps StartedAt on new workers; nil means time.Now.
    Now func() time.Time
    // OnLeaderChange is called for every leader change observed.
    OnLeaderChange func(info consensus.LeaderInfo)
}

// Validate performs a minimal validation of Options. It does not start any
// network activity and is safe to call before New.
func (o Options) Validate() error {
    if o.NodeID == "" { return errors.New("dashboard: empty NodeID") }
    if o.Registry == nil { return errors.New("dashboard: nil Registry") }
    if o.Membership == nil { return errors.New("dashboard: nil Membership") }
    return nil
}

func (o *Options) setDefaults() {
    if o.ApplyTimeout <= 0 { o.ApplyTimeout = 2 * time.Second }
    if o.ReconcileInterval <= 0 { o.ReconcileInterval = 5 * time.Second }
    if o.VoterTimeout <= 0 { o.VoterTimeout = 3 * time.Second }
    if o.Now == nil { o.Now = time.Now }
    if o.Consensus == nil { o.Consensus = consensus.NewLocal(o.NodeID, o.Registry) }
}
