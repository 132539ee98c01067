package cli

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/spf13/cobra"
    "github.com/spf13/pflag"

    "github.com/amirimatin/clusterdash/pkg/bootstrap"
    cns "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
)

// serveCmd runs a dashboard node. Flags given on the command line win over
// the config file.
func (a *app) serveCmd() *cobra.Command {
    cfg := bootstrap.Defaults()
    var configPath string
    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Run a dashboard node",
        RunE: func(cmd *cobra.Command, args []string) error {
            if configPath != "" {
                if err := overlayConfig(cmd.Flags(), &cfg, configPath); err != nil { return err }
            }
            if cfg.NodeID == "" { return fmt.Errorf("missing --id") }
            ctx, cancel := signalContext()
            defer cancel()

            cfg.Logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
            cfg.OnLeaderChange = func(li cns.LeaderInfo) {
                logutil.Event(cfg.Logger, "info", "leader changed", "leader", li.ID, "term", li.Term)
            }
            n, err := bootstrap.Run(ctx, cfg)
            if err != nil { return err }
            fmt.Fprintf(cmd.OutOrStdout(), "dashboard %s serving %s API at %s. Press Ctrl+C to exit.\n", cfg.NodeID, cfg.APIProto, n.APIAddr())
            <-ctx.Done()
            stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
            defer stop()
            return n.Stop(stopCtx)
        },
    }
    cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file; explicit flags override it")
    bindServeFlags(cmd.Flags(), &cfg)
    return cmd
}

// bindServeFlags binds the node flags to cfg, using its values as defaults.
func bindServeFlags(fs *pflag.FlagSet, cfg *bootstrap.Config) {
    fs.StringVar(&cfg.NodeID, "id", "", "node id (required)")
    fs.StringVar(&cfg.MemBind, "mem-bind", cfg.MemBind, "gossip bind addr (host:port)")
    fs.StringVar(&cfg.MemAdv, "mem-adv", "", "gossip advertise addr (host:port, optional)")
    fs.StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "dashboard API listen addr")
    fs.StringVar(&cfg.APIProto, "api-proto", cfg.APIProto, "dashboard API protocol: http|grpc")
    fs.StringVar(&cfg.APIHost, "api-host", "", "host advertised in this node's descriptor")
    fs.BoolVar(&cfg.Raft, "raft", false, "replicate the registry with raft")
    fs.StringVar(&cfg.RaftAddr, "raft-addr", cfg.RaftAddr, "raft bind addr (tcp)")
    fs.StringVar(&cfg.RaftAdvertise, "raft-adv", "", "raft advertise addr, required with a wildcard bind")
    fs.StringVar(&cfg.Peers, "peers", "", "static raft peers: id=host:port,...")
    fs.StringVar(&cfg.DataDir, "data", "", "raft data dir; in-memory when empty")
    fs.BoolVar(&cfg.Bootstrap, "bootstrap", false, "bootstrap a new raft cluster from this node and --peers")
    fs.StringVar(&cfg.SeedsCSV, "join", "", "comma-separated gossip seeds (host:port)")
    fs.StringVar(&cfg.DNSNamesCSV, "dns-names", "", "comma-separated DNS names or SRV records (e.g., _gossip._tcp.example.com)")
    fs.IntVar(&cfg.DNSPort, "dns-port", cfg.DNSPort, "port used for A/AAAA lookups")
    fs.StringVar(&cfg.FilePath, "file-path", "", "path or glob to a file with seeds (one per line or CSV)")
    fs.StringVar(&cfg.FileEnv, "file-env", "", "ENV var name containing CSV seeds; overrides file when set")
    fs.DurationVar((*time.Duration)(&cfg.DiscRefresh), "disc-refresh", time.Duration(cfg.DiscRefresh), "discovery refresh/cache duration")
    fs.DurationVar((*time.Duration)(&cfg.ReconcileInterval), "reconcile", time.Duration(cfg.ReconcileInterval), "interval between registry reconcile passes")
    fs.StringVar(&cfg.Version, "version", cfg.Version, "version advertised in this node's descriptor")
    fs.BoolVar(&cfg.TLS.Enable, "tls-enable", false, "serve the API over TLS")
    fs.StringVar(&cfg.TLS.CAFile, "tls-ca", "", "CA for client certificates (enables mTLS)")
    fs.StringVar(&cfg.TLS.CertFile, "tls-cert", "", "path to server certificate (PEM)")
    fs.StringVar(&cfg.TLS.KeyFile, "tls-key", "", "path to server private key (PEM)")
    fs.BoolVar(&cfg.TLS.Reload, "tls-reload", false, "re-read the key pair on handshakes")
}

// overlayConfig loads path into cfg, then re-applies the flags set on the
// command line.
func overlayConfig(fs *pflag.FlagSet, cfg *bootstrap.Config, path string) error {
    set := map[string]string{}
    fs.Visit(func(f *pflag.Flag) { set[f.Name] = f.Value.String() })
    loaded, err := bootstrap.LoadConfig(path)
    if err != nil { return err }
    *cfg = loaded
    for name, v := range set {
        if err := fs.Set(name, v); err != nil { return fmt.Errorf("flag --%s: %w", name, err) }
    }
    return nil
}
