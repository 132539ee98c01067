package cli

import (
    "fmt"
    "log"
    "net"
    "strconv"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/clusterdash/pkg/agent"
    "github.com/amirimatin/clusterdash/pkg/discovery"
    dDNS "github.com/amirimatin/clusterdash/pkg/discovery/dns"
    dFile "github.com/amirimatin/clusterdash/pkg/discovery/file"
    dStatic "github.com/amirimatin/clusterdash/pkg/discovery/static"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

// announceCmd gossips a worker descriptor until interrupted.
func (a *app) announceCmd() *cobra.Command {
    var (
        id, bind, adv, typ, host, seeds, seedsFile, dnsNames string
        internalRPC, resourceGroup, version                  string
        parallelism                                          uint32
        memory                                               uint64
        streaming, serving, unschedulable                    bool
        joinTimeout                                          time.Duration
    )
    cmd := &cobra.Command{
        Use:   "announce",
        Short: "Announce a worker to the dashboards over gossip",
        RunE: func(cmd *cobra.Command, args []string) error {
            t, err := common.WorkerTypeFromFlag(typ)
            if err != nil { return err }
            addr, err := parseHostPort(host)
            if err != nil { return err }
            w := &common.WorkerNode{
                Type: t,
                Host: addr,
                Property: &common.WorkerNodeProperty{
                    IsStreaming:         streaming,
                    IsServing:           serving,
                    IsUnschedulable:     unschedulable,
                    InternalRPCHostAddr: internalRPC,
                    Parallelism:         parallelism,
                },
                Resource: agent.LocalResource(version, memory),
            }
            if resourceGroup != "" { w.Property.ResourceGroup = &resourceGroup }

            src := []discovery.Discovery{dStatic.FromCSV(seeds)}
            if seedsFile != "" { src = append(src, dFile.New(dFile.Options{Path: seedsFile})) }
            if names := discovery.SplitCSV(dnsNames); len(names) > 0 { src = append(src, dDNS.New(dDNS.Options{Names: names})) }

            logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
            ag, err := agent.New(agent.Options{
                NodeID:      id,
                Bind:        bind,
                Advertise:   adv,
                Worker:      w,
                Seeds:       discovery.Merge(src...),
                Logger:      logger,
                JoinTimeout: joinTimeout,
            })
            if err != nil { return err }
            ctx, cancel := signalContext()
            defer cancel()
            if err := ag.Start(ctx); err != nil { return err }
            defer ag.Stop()
            fmt.Fprintf(cmd.OutOrStdout(), "announcing %s %s as %s. Press Ctrl+C to leave.\n", t.ShortName(), w.Addr(), ag.NodeID())
            <-ctx.Done()
            return nil
        },
    }
    fs := cmd.Flags()
    fs.StringVar(&id, "id", "", "gossip node id (default <hostname>-<random>)")
    fs.StringVar(&bind, "bind", ":7947", "gossip bind addr (host:port)")
    fs.StringVar(&adv, "adv", "", "gossip advertise addr (host:port, optional)")
    fs.StringVar(&typ, "type", "", "worker type: frontend|compute-node|compactor|risectl|meta (required)")
    fs.StringVar(&host, "host", "", "worker address host:port (required)")
    fs.StringVar(&seeds, "join", "", "comma-separated dashboard gossip seeds (host:port)")
    fs.StringVar(&seedsFile, "join-file", "", "file or glob listing gossip seeds")
    fs.StringVar(&dnsNames, "dns-names", "", "comma-separated DNS names or SRV records of the dashboards")
    fs.DurationVar(&joinTimeout, "join-timeout", 0, "give up joining after this long; 0 retries until interrupted")
    fs.BoolVar(&streaming, "streaming", false, "worker runs streaming jobs")
    fs.BoolVar(&serving, "serving", false, "worker serves batch queries")
    fs.BoolVar(&unschedulable, "unschedulable", false, "exclude the worker from scheduling")
    fs.StringVar(&internalRPC, "internal-rpc", "", "internal RPC address of the worker")
    fs.StringVar(&resourceGroup, "resource-group", "", "resource group of the worker")
    fs.Uint32Var(&parallelism, "parallelism", 0, "worker parallelism")
    fs.Uint64Var(&memory, "memory", 0, "total memory in bytes")
    fs.StringVar(&version, "rw-version", "", "worker build version")
    _ = cmd.MarkFlagRequired("type")
    _ = cmd.MarkFlagRequired("host")
    return cmd
}

func parseHostPort(s string) (*common.HostAddress, error) {
    h, p, err := net.SplitHostPort(s)
    if err != nil { return nil, fmt.Errorf("invalid --host %q: %w", s, err) }
    port, err := strconv.ParseUint(p, 10, 16)
    if err != nil || h == "" { return nil, fmt.Errorf("invalid --host %q", s) }
    return &common.HostAddress{Host: h, Port: int32(port)}, nil
}
