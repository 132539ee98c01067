package httpjson

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/clusterdash/pkg/observability/metrics"
    "github.com/amirimatin/clusterdash/pkg/observability/tracing"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/settings"
    "github.com/amirimatin/clusterdash/pkg/transport"
)

// DefaultOrigin is what relative endpoints such as "/api" resolve against.
const DefaultOrigin = "http://localhost:5691"

// FetchError is returned for every failed Get. Err holds the cause: a
// transport error, a *StatusError or a JSON syntax error.
type FetchError struct {
    URL string
    Err error
}

func (e *FetchError) Error() string { return "Failed to fetch " + e.URL }
func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a response outside the 2xx range. Message is the "error"
// field of the JSON body, if any.
type StatusError struct {
    Code    int
    Text    string
    Message string
}

func (e *StatusError) Error() string {
    s := fmt.Sprintf("%d %s", e.Code, e.Text)
    if e.Message != "" { s += ": " + e.Message }
    return s
}

// ClientOptions configures a Client. Store supplies the endpoint; a nil store
// always uses settings.DefaultEndpoint.
type ClientOptions struct {
    Store   settings.Store
    Origin  string
    Timeout time.Duration
    TLS     *tls.Config
    Logger  *log.Logger
}

// Client reads the dashboard API at the endpoint found in the settings store.
// It performs exactly one request per call.
type Client struct {
    store  settings.Store
    origin string
    httpc  *http.Client
    logger *log.Logger
}

// NewClient constructs a Client. Zero options give a 10s timeout against
// DefaultOrigin.
func NewClient(opts ClientOptions) *Client {
    if opts.Timeout <= 0 { opts.Timeout = 10 * time.Second }
    if opts.Origin == "" { opts.Origin = DefaultOrigin }
    tr := http.DefaultTransport.(*http.Transport).Clone()
    tr.TLSClientConfig = opts.TLS
    return &Client{
        store:  opts.Store,
        origin: strings.TrimRight(opts.Origin, "/"),
        httpc:  &http.Client{Timeout: opts.Timeout, Transport: tr},
        logger: logutil.Or(opts.Logger),
    }
}

// URLFor joins the configured endpoint, without trailing slashes, and path.
// The result is relative when the endpoint is.
func (c *Client) URLFor(path string) string {
    return strings.TrimRight(settings.Endpoint(c.store), "/") + path
}

// resolve turns a relative URL into an absolute one against the origin.
func (c *Client) resolve(u string) (string, error) {
    ref, err := url.Parse(u)
    if err != nil { return "", err }
    if ref.IsAbs() { return u, nil }
    base, err := url.Parse(c.origin + "/")
    if err != nil { return "", err }
    return base.ResolveReference(ref).String(), nil
}

// Get fetches path and decodes the JSON body into out (which may be nil).
// Any failure is logged and returned as a *FetchError.
func (c *Client) Get(ctx context.Context, path string, out any) error {
    u := c.URLFor(path)
    ctx, span := tracing.StartSpan(ctx, "client.get", "url", u)
    err := c.get(ctx, u, out)
    span.End(err)
    if err != nil {
        obsmetrics.ClientFetches.WithLabelValues("error").Inc()
        logutil.Event(c.logger, "error", "api fetch failed", "url", u, "err", err)
        return &FetchError{URL: u, Err: err}
    }
    obsmetrics.ClientFetches.WithLabelValues("ok").Inc()
    return nil
}

func (c *Client) get(ctx context.Context, u string, out any) error {
    abs, err := c.resolve(u)
    if err != nil { return err }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, abs, nil)
    if err != nil { return err }
    req.Header.Set("Accept", "application/json")
    resp, err := c.httpc.Do(req)
    if err != nil { return err }
    defer resp.Body.Close()
    body, err := io.ReadAll(resp.Body)
    if err != nil { return err }
    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        se := &StatusError{Code: resp.StatusCode, Text: statusText(resp)}
        var e struct{ Error any `json:"error"` }
        if json.Unmarshal(body, &e) == nil && e.Error != nil {
            if s := fmt.Sprint(e.Error); s != "" { se.Message = s }
        }
        return se
    }
    if out == nil { out = new(json.RawMessage) }
    return json.Unmarshal(body, out)
}

// statusText is the reason phrase the server sent, falling back to the
// standard text for the code.
func statusText(resp *http.Response) string {
    if t := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); t != "" && t != resp.Status { return t }
    return http.StatusText(resp.StatusCode)
}

// ListWorkers fetches /clusters/<type>. WorkerTypeUnspecified lists every
// worker.
func (c *Client) ListWorkers(ctx context.Context, t common.WorkerType) ([]*common.WorkerNode, error) {
    var out []*common.WorkerNode
    if err := c.Get(ctx, "/clusters/"+strconv.Itoa(int(t)), &out); err != nil { return nil, err }
    return out, nil
}

// Status fetches /status.
func (c *Client) Status(ctx context.Context) (*common.Status, error) {
    var out common.Status
    if err := c.Get(ctx, "/status", &out); err != nil { return nil, err }
    return &out, nil
}

var _ transport.RPCClient = (*Client)(nil)
