// Package cli holds the cobra commands of dashctl so services can embed them
// in their own binaries.
package cli

import (
    "context"
    "crypto/tls"
    "fmt"
    "io"
    "log"
    "os"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"
    "github.com/spf13/pflag"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/observability/tracing"
    tlsx "github.com/amirimatin/clusterdash/pkg/security/tlsconfig"
    "github.com/amirimatin/clusterdash/pkg/settings"
    "github.com/amirimatin/clusterdash/pkg/ui"
)

// app carries the persistent flags shared by every command.
type app struct {
    settingsPath string
    verbose      bool
    jsonLog      bool
    trace        bool
    noColor      bool

    // store overrides the settings file, for tests.
    store    settings.Store
    shutdown func(context.Context) error
}

// NewRootCommand returns a "dashctl" root with every subcommand attached.
func NewRootCommand() *cobra.Command {
    root := &cobra.Command{
        Use:           "dashctl",
        Short:         "Cluster dashboard node, worker agent and API client",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    AddAll(root)
    return root
}

// AddAll attaches the dashboard subcommands and their persistent flags to
// the provided root command.
func AddAll(root *cobra.Command) { (&app{}).attach(root) }

func (a *app) attach(root *cobra.Command) {
    pf := root.PersistentFlags()
    pf.StringVar(&a.settingsPath, "settings", "", "settings database (default <config dir>/clusterdash/settings.db)")
    pf.BoolVarP(&a.verbose, "verbose", "v", false, "log client requests to stderr")
    pf.BoolVar(&a.jsonLog, "log-json", logutil.JSON(), "emit logs as JSON lines")
    pf.BoolVar(&a.trace, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")
    root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
        logutil.SetJSON(a.jsonLog)
        if a.noColor { ui.SetColor(false) }
        shutdown, err := tracing.Setup(a.trace, cmd.ErrOrStderr())
        if err != nil { return fmt.Errorf("tracing setup: %w", err) }
        a.shutdown = shutdown
        return nil
    }
    root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
        if a.shutdown == nil { return nil }
        return a.shutdown(context.Background())
    }
    root.AddCommand(a.serveCmd(), a.announceCmd(), a.workersCmd(), a.statusCmd(), a.watchCmd(), a.endpointCmd())
}

// openStore returns the settings store and a function releasing it.
func (a *app) openStore() (settings.Store, func(), error) {
    if a.store != nil { return a.store, func() {}, nil }
    path := a.settingsPath
    if path == "" {
        p, err := settings.DefaultPath()
        if err != nil { return nil, nil, fmt.Errorf("settings path: %w", err) }
        path = p
    }
    s, err := settings.Open(path)
    if err != nil { return nil, nil, fmt.Errorf("open settings %s: %w", path, err) }
    return s, func() { _ = s.Close() }, nil
}

// clientLogger is where API clients log failed fetches.
func (a *app) clientLogger(cmd *cobra.Command) *log.Logger {
    if !a.verbose { return logutil.Discard() }
    return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

func notify(w io.Writer, err error) error {
    ui.NewNotifier(w).Notify(err)
    return err
}

// tlsFlags are the client-side TLS flags shared by the API commands.
type tlsFlags struct {
    enable, skip              bool
    ca, cert, key, serverName      string
}

func (f *tlsFlags) bind(fs *pflag.FlagSet) {
    fs.BoolVar(&f.enable, "tls-enable", false, "use TLS towards the dashboard API")
    fs.StringVar(&f.ca, "tls-ca", "", "path to CA cert (PEM)")
    fs.StringVar(&f.cert, "tls-cert", "", "path to client certificate (PEM)")
    fs.StringVar(&f.key, "tls-key", "", "path to client private key (PEM)")
    fs.BoolVar(&f.skip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    fs.StringVar(&f.serverName, "tls-server-name", "", "expected server name (for TLS validation)")
}

func (f *tlsFlags) client() (*tls.Config, error) {
    opts := tlsx.Options{Enable: f.enable, CAFile: f.ca, CertFile: f.cert, KeyFile: f.key, InsecureSkipVerify: f.skip, ServerName: f.serverName}
    cfg, err := opts.Client()
    if err != nil { return nil, fmt.Errorf("tls client config: %w", err) }
    return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
    ctx, cancel := context.WithCancel(context.Background())
    go func() {
        ch := make(chan os.Signal, 1)
        signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
        select {
        case <-ch:
            cancel()
        case <-ctx.Done():
        }
        signal.Stop(ch)
    }()
    return ctx, cancel
}
