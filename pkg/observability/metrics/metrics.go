package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    Workers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
        Namespace: "clusterdash",
        Name:      "workers",
        Help:      "Registered workers by type",
    }, []string{"type"})

    GossipMembers = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "clusterdash",
        Name:      "gossip_members",
        Help:      "Current number of gossip members",
    })

    IsLeader = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "clusterdash",
        Name:      "is_leader",
        Help:      "1 if this node applies registry changes, else 0",
    })

    LeaderChanges = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterdash",
        Name:      "leader_changes_total",
        Help:      "Total number of observed leader change events",
    })

    RegistryApplies = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "clusterdash",
        Subsystem: "registry",
        Name:      "applies_total",
        Help:      "Registry commands applied, by operation and result",
    }, []string{"op", "result"})

    APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "clusterdash",
        Subsystem: "api",
        Name:      "requests_total",
        Help:      "API requests served, by route and status code",
    }, []string{"route", "code"})

    ClientFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "clusterdash",
        Subsystem: "client",
        Name:      "fetches_total",
        Help:      "API client fetches by result",
    }, []string{"result"})

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterdash",
        Subsystem: "grpc_conn",
        Name:      "dials_total",
        Help:      "Total number of new gRPC connections dialed",
    })
    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterdash",
        Subsystem: "grpc_conn",
        Name:      "reuse_total",
        Help:      "Total number of gRPC connection reuses from cache",
    })
    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterdash",
        Subsystem: "grpc_conn",
        Name:      "evictions_total",
        Help:      "Total number of cached gRPC connections evicted",
    })
    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "clusterdash",
        Subsystem: "grpc_conn",
        Name:      "active",
        Help:      "Number of active cached gRPC connections",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(Workers, GossipMembers, IsLeader, LeaderChanges)
        prometheus.MustRegister(RegistryApplies, APIRequests, ClientFetches)
        prometheus.MustRegister(GRPCConnDials, GRPCConnReuse, GRPCConnEvictions, GRPCConnActive)
    })
}

// SetWorkerCounts replaces the per-type worker gauge with counts.
func SetWorkerCounts(counts map[string]int) {
    Workers.Reset()
    for t, n := range counts { Workers.WithLabelValues(t).Set(float64(n)) }
}
