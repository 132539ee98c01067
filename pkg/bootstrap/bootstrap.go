// Package bootstrap assembles a dashboard node from a flat Config: registry,
// consensus, gossip, discovery and the API server.
package bootstrap

import (
    "context"
    "log"
    "net"
    "os"
    "time"

    cns "github.com/amirimatin/clusterdash/pkg/consensus"
    consraft "github.com/amirimatin/clusterdash/pkg/consensus/raft"
    "github.com/amirimatin/clusterdash/pkg/dashboard"
    "github.com/amirimatin/clusterdash/pkg/discovery"
    dDNS "github.com/amirimatin/clusterdash/pkg/discovery/dns"
    dFile "github.com/amirimatin/clusterdash/pkg/discovery/file"
    dStatic "github.com/amirimatin/clusterdash/pkg/discovery/static"
    ml "github.com/amirimatin/clusterdash/pkg/membership/memberlist"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/registry"
    "github.com/amirimatin/clusterdash/pkg/transport"
    dashgrpc "github.com/amirimatin/clusterdash/pkg/transport/grpc"
    "github.com/amirimatin/clusterdash/pkg/transport/httpjson"
)

// Build assembles a dashboard.Node from cfg without starting it.
func Build(cfg Config) (*dashboard.Node, error) {
    if err := cfg.Validate(); err != nil { return nil, err }
    if cfg.Logger == nil { cfg.Logger = log.Default() }
    reg := registry.New()

    var cons cns.Consensus
    if cfg.Raft {
        peers, _ := cns.ParsePeers(cfg.Peers)
        r, err := consraft.New(consraft.Options{
            NodeID:    cfg.NodeID,
            Logger:    cfg.Logger,
            State:     reg,
            Bootstrap: cfg.Bootstrap,
            Peers:     peers,
            BindAddr:  cfg.RaftAddr,
            Advertise: cfg.RaftAdvertise,
            DataDir:   cfg.DataDir,
        })
        if err != nil { return nil, err }
        cons = r
    }

    mem, err := ml.New(ml.Options{
        NodeID:    cfg.NodeID,
        Bind:      cfg.MemBind,
        Advertise: cfg.MemAdv,
        Worker:    SelfWorker(cfg),
        Logger:    cfg.Logger,
    })
    if err != nil { return nil, err }

    srv, err := apiServer(cfg)
    if err != nil { return nil, err }

    return dashboard.New(dashboard.Options{
        NodeID:            cfg.NodeID,
        Logger:            cfg.Logger,
        Registry:          reg,
        Consensus:         cons,
        Membership:        mem,
        Discovery:         Discovery(cfg),
        Server:            srv,
        ReconcileInterval: time.Duration(cfg.ReconcileInterval),
        OnLeaderChange:    cfg.OnLeaderChange,
    })
}

// Run builds and starts the node. The caller is responsible for calling
// Stop when finished.
func Run(ctx context.Context, cfg Config) (*dashboard.Node, error) {
    n, err := Build(cfg)
    if err != nil { return nil, err }
    if err := n.Start(ctx); err != nil { return nil, err }
    return n, nil
}

// Discovery merges every seed source cfg configures.
func Discovery(cfg Config) discovery.Discovery {
    ds := []discovery.Discovery{dStatic.FromCSV(cfg.SeedsCSV)}
    if cfg.FilePath != "" || cfg.FileEnv != "" {
        ds = append(ds, dFile.New(dFile.Options{Path: cfg.FilePath, Env: cfg.FileEnv, Refresh: time.Duration(cfg.DiscRefresh), Logger: cfg.Logger}))
    }
    if names := discovery.SplitCSV(cfg.DNSNamesCSV); len(names) > 0 {
        ds = append(ds, dDNS.New(dDNS.Options{Names: names, Port: cfg.DNSPort, Refresh: time.Duration(cfg.DiscRefresh), Logger: cfg.Logger}))
    }
    return discovery.Merge(ds...)
}

// SelfWorker is the META descriptor a dashboard node gossips. Peer dashboards
// find its raft address in InternalRPCHostAddr.
func SelfWorker(cfg Config) *common.WorkerNode {
    w := &common.WorkerNode{
        Type:     common.WorkerTypeMeta,
        Host:     &common.HostAddress{Host: advertisedHost(cfg), Port: portOf(cfg.APIAddr)},
        State:    common.WorkerNodeStateRunning,
        Property: &common.WorkerNodeProperty{IsUnschedulable: true},
        Resource: &common.WorkerNodeResource{RwVersion: cfg.Version},
    }
    if cfg.Raft {
        addr := cfg.RaftAdvertise
        if addr == "" { addr = cfg.RaftAddr }
        w.Property.InternalRPCHostAddr = addr
    }
    return w
}

func advertisedHost(cfg Config) string {
    if cfg.APIHost != "" { return cfg.APIHost }
    for _, a := range []string{cfg.APIAddr, cfg.MemAdv} {
        if h, _, err := net.SplitHostPort(a); err == nil && h != "" && !net.ParseIP(h).IsUnspecified() { return h }
    }
    if h, err := os.Hostname(); err == nil { return h }
    return "localhost"
}

func portOf(addr string) int32 {
    _, p, err := net.SplitHostPort(addr)
    if err != nil { return 0 }
    port, err := net.LookupPort("tcp", p)
    if err != nil { return 0 }
    return int32(port)
}

func apiServer(cfg Config) (transport.RPCServer, error) {
    if cfg.APIAddr == "" { return nil, nil }
    tlsCfg, err := cfg.TLS.Server()
    if err != nil { return nil, err }
    switch cfg.APIProto {
    case "grpc":
        s := dashgrpc.NewServer(cfg.APIAddr, cfg.Logger)
        if tlsCfg != nil { s.UseTLS(tlsCfg) }
        return s, nil
    default:
        s := httpjson.NewServer(cfg.APIAddr, cfg.Logger)
        if tlsCfg != nil { s.UseTLS(tlsCfg) }
        return s, nil
    }
}
