package dns

import (
    "context"
    "log"
    "net"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/clusterdash/pkg/discovery"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
)

// DefaultPort is the gossip port assumed for A/AAAA answers.
const DefaultPort = 7946

// Options configures DNS-based discovery.
type Options struct {
    // Names are SRV records ("_gossip._tcp.dash.example.com"), hostnames
    // or literal host:port seeds.
    Names []string
    // Port is used for A/AAAA answers, which carry no port.
    Port int
    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration
    // Timeout bounds one resolution round; if zero, defaults to 2s.
    Timeout  time.Duration
    Resolver *net.Resolver
    Logger   *log.Logger
}

type source struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    cache []string
}

// New returns a DNS-backed discovery caching answers for Refresh.
func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Timeout <= 0 { opts.Timeout = 2 * time.Second }
    if opts.Port == 0 { opts.Port = DefaultPort }
    if opts.Resolver == nil { opts.Resolver = net.DefaultResolver }
    opts.Logger = logutil.Or(opts.Logger)
    return &source{opts: opts}
}

func (d *source) Seeds() []string {
    d.mu.Lock(); defer d.mu.Unlock()
    if len(d.cache) > 0 && time.Since(d.last) < d.opts.Refresh { return append([]string(nil), d.cache...) }
    ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
    defer cancel()
    d.cache = d.resolveAll(ctx)
    d.last = time.Now()
    return append([]string(nil), d.cache...)
}

func (d *source) resolveAll(ctx context.Context) []string {
    var out []string
    for _, name := range d.opts.Names {
        name = strings.TrimSpace(name)
        switch {
        case name == "":
        case isSRV(name):
            out = append(out, d.lookupSRV(ctx, name)...)
        case hasPort(name):
            out = append(out, name)
        default:
            out = append(out, d.lookupHost(ctx, name)...)
        }
    }
    return discovery.Normalize(out)
}

func isSRV(name string) bool { return strings.HasPrefix(name, "_") && strings.Contains(name, "._") }

func hasPort(name string) bool {
    _, _, err := net.SplitHostPort(name)
    return err == nil
}

func (d *source) lookupSRV(ctx context.Context, fqdn string) []string {
    svc, proto, domain := parseSRVName(fqdn)
    if domain == "" { return nil }
    _, addrs, err := d.opts.Resolver.LookupSRV(ctx, svc, proto, domain)
    if err != nil {
        logutil.Warnf(d.opts.Logger, "discovery: SRV %s: %v", fqdn, err)
        return nil
    }
    out := make([]string, 0, len(addrs))
    for _, a := range addrs {
        out = append(out, net.JoinHostPort(strings.TrimSuffix(a.Target, "."), strconv.Itoa(int(a.Port))))
    }
    return out
}

func (d *source) lookupHost(ctx context.Context, host string) []string {
    ips, err := d.opts.Resolver.LookupHost(ctx, host)
    if err != nil {
        logutil.Warnf(d.opts.Logger, "discovery: lookup %s: %v", host, err)
        return nil
    }
    out := make([]string, 0, len(ips))
    for _, ip := range ips {
        out = append(out, net.JoinHostPort(ip, strconv.Itoa(d.opts.Port)))
    }
    return out
}

// parseSRVName splits _service._proto.name.
func parseSRVName(fqdn string) (service, proto, name string) {
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 || !strings.HasPrefix(parts[0], "_") || !strings.HasPrefix(parts[1], "_") { return "", "", "" }
    return parts[0][1:], parts[1][1:], parts[2]
}
