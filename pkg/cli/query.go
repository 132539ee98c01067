package cli

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/transport"
    dashgrpc "github.com/amirimatin/clusterdash/pkg/transport/grpc"
    "github.com/amirimatin/clusterdash/pkg/transport/httpjson"
    "github.com/amirimatin/clusterdash/pkg/ui"
)

// clientFlags select and configure the API client of a query command.
type clientFlags struct {
    grpcAddr string
    timeout  time.Duration
    tls      tlsFlags
}

func (f *clientFlags) bind(cmd *cobra.Command) {
    cmd.Flags().StringVar(&f.grpcAddr, "grpc", "", "query a node's gRPC API at host:port instead of the HTTP endpoint")
    cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "request timeout")
    f.tls.bind(cmd.Flags())
}

// client returns the API client and a function releasing it. The HTTP client
// reads its endpoint from the settings store.
func (a *app) client(cmd *cobra.Command, f *clientFlags) (transport.RPCClient, func(), error) {
    tlsCfg, err := f.tls.client()
    if err != nil { return nil, nil, err }
    if f.grpcAddr != "" {
        c := dashgrpc.NewClient(f.grpcAddr, f.timeout)
        if tlsCfg != nil { c.UseTLS(tlsCfg) }
        return c, c.Close, nil
    }
    store, release, err := a.openStore()
    if err != nil { return nil, nil, err }
    c := httpjson.NewClient(httpjson.ClientOptions{Store: store, Timeout: f.timeout, TLS: tlsCfg, Logger: a.clientLogger(cmd)})
    return c, release, nil
}

func (a *app) workersCmd() *cobra.Command {
    var (
        cf     clientFlags
        asJSON  bool
    )
    cmd := &cobra.Command{
        Use:   "workers [type]",
        Short: "List registered workers, optionally of one type",
        Args:  cobra.MaximumNArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            t := common.WorkerTypeUnspecified
            if len(args) == 1 {
                var err error
                if t, err = common.WorkerTypeFromFlag(args[0]); err != nil { return err }
            }
            c, release, err := a.client(cmd, &cf)
            if err != nil { return err }
            defer release()
            ctx, cancel := context.WithTimeout(cmd.Context(), cf.timeout)
            defer cancel()
            workers, err := c.ListWorkers(ctx, t)
            if err != nil { return notify(cmd.ErrOrStderr(), err) }
            out := cmd.OutOrStdout()
            if asJSON {
                if workers == nil { workers = []*common.WorkerNode{} }
                enc := json.NewEncoder(out)
                enc.SetIndent("", "  ")
                return enc.Encode(workers)
            }
            title := "All workers"
            if t != common.WorkerTypeUnspecified { title = "Workers: " + t.ShortName() }
            if err := ui.Title(out, title); err != nil { return err }
            return ui.WorkerTable(out, workers)
        },
    }
    cf.bind(cmd)
    cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON list")
    return cmd
}

func (a *app) statusCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Show the status reported by the dashboard",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            c, release, err := a.client(cmd, &cf)
            if err != nil { return err }
            defer release()
            ctx, cancel := context.WithTimeout(cmd.Context(), cf.timeout)
            defer cancel()
            st, err := c.Status(ctx)
            if err != nil { return notify(cmd.ErrOrStderr(), err) }
            level := ui.StatusSuccess
            if st.Code != common.StatusCodeOK { level = ui.StatusWarning }
            ui.NewNotifier(cmd.OutOrStdout()).Notify(fmt.Sprintf("%s: %s", st.Code, st.Message), level)
            return nil
        },
    }
    cf.bind(cmd)
    return cmd
}

// watchCmd follows registry changes over the gRPC stream.
func (a *app) watchCmd() *cobra.Command {
    var (
        addr   string
        asJSON bool
        tf     tlsFlags
    )
    cmd := &cobra.Command{
        Use:   "watch [type]",
        Short: "Stream worker changes from a node's gRPC API",
        Args:  cobra.MaximumNArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            t := common.WorkerTypeUnspecified
            if len(args) == 1 {
                var err error
                if t, err = common.WorkerTypeFromFlag(args[0]); err != nil { return err }
            }
            tlsCfg, err := tf.client()
            if err != nil { return err }
            c := dashgrpc.NewClient(addr, 5*time.Second)
            if tlsCfg != nil { c.UseTLS(tlsCfg) }
            defer c.Close()
            ctx, cancel := signalContext()
            defer cancel()
            out := cmd.OutOrStdout()
            enc := json.NewEncoder(out)
            err = c.Watch(ctx, t, func(ev transport.WorkerEvent) {
                if asJSON { _ = enc.Encode(ev); return }
                fmt.Fprintf(out, "%s %-14s id=%d %s %s\n", ev.At.Format(time.RFC3339), ev.Type, ev.Worker.ID, ev.Worker.Type.ShortName(), ev.Worker.Addr())
            })
            if err != nil { return notify(cmd.ErrOrStderr(), err) }
            return nil
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5691", "gRPC API address of a dashboard node")
    cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per event")
    tf.bind(cmd.Flags())
    return cmd
}
