package httpjson

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net"
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/clusterdash/pkg/observability/metrics"
    "github.com/amirimatin/clusterdash/pkg/observability/tracing"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/transport"
)

// APIPrefix is where the dashboard API is mounted.
const APIPrefix = "/api"

// Server exposes the dashboard API, health and metrics over HTTP.
type Server struct {
    bind   string
    logger *log.Logger
    tlsCfg *tls.Config

    mu  sync.Mutex
    srv *http.Server
    ln  net.Listener
}

// NewServer binds to the given TCP address (e.g. ":5691").
func NewServer(bind string, logger *log.Logger) *Server {
    return &Server{bind: bind, logger: logutil.Or(logger)}
}

// UseTLS enables TLS for the HTTP server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// Handler builds the routing for h without starting a listener.
func Handler(h transport.Handlers) http.Handler {
    mux := http.NewServeMux()
    mux.Handle(APIPrefix+"/clusters", route("clusters", func(w http.ResponseWriter, r *http.Request) {
        listWorkers(w, r, h.Workers, common.WorkerTypeUnspecified)
    }))
    mux.Handle(APIPrefix+"/clusters/{type}", route("clusters", func(w http.ResponseWriter, r *http.Request) {
        raw := r.PathValue("type")
        t, err := common.WorkerTypeFromFlag(raw)
        if err != nil {
            writeError(w, http.StatusBadRequest, fmt.Errorf("%w %q", transport.ErrUnknownWorkerType, raw))
            return
        }
        listWorkers(w, r, h.Workers, t)
    }))
    mux.Handle(APIPrefix+"/status", route("status", func(w http.ResponseWriter, r *http.Request) {
        ctx, span := tracing.StartSpan(r.Context(), "http.status")
        st, err := h.Status(ctx)
        span.End(err)
        if err != nil { writeError(w, http.StatusInternalServerError, err); return }
        writeJSON(w, http.StatusOK, st)
    }))
    mux.Handle("/healthz", route("healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    }))
    mux.Handle("/metrics", promhttp.Handler())
    return mux
}

func listWorkers(w http.ResponseWriter, r *http.Request, list transport.WorkersFunc, t common.WorkerType) {
    ctx, span := tracing.StartSpan(r.Context(), "http.workers", "type", t.String())
    workers, err := list(ctx, t)
    span.End(err)
    if err != nil { writeError(w, http.StatusInternalServerError, err); return }
    if workers == nil { workers = []*common.WorkerNode{} }
    writeJSON(w, http.StatusOK, workers)
}

// route restricts a handler to GET, adds CORS for browser dashboards served
// from another origin and counts requests by status code.
func route(name string, fn http.HandlerFunc) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
        rec.Header().Set("Access-Control-Allow-Origin", "*")
        if r.Method != http.MethodGet {
            writeError(rec, http.StatusMethodNotAllowed, errors.New("method not allowed"))
        } else {
            fn(rec, r)
        }
        obsmetrics.APIRequests.WithLabelValues(name, strconv.Itoa(rec.code)).Inc()
    })
}

type statusRecorder struct {
    http.ResponseWriter
    code int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.code = code
    r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
    writeJSON(w, code, map[string]string{"error": err.Error()})
}

// Start listens and serves h until ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context, h transport.Handlers) error {
    if err := h.Validate(); err != nil { return err }
    ln, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    if s.tlsCfg != nil {
        ln = tls.NewListener(ln, s.tlsCfg)
    }
    srv := &http.Server{Handler: Handler(h), ReadHeaderTimeout: 5 * time.Second}
    s.mu.Lock()
    s.srv, s.ln = srv, ln
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        _ = s.Stop(context.Background())
    }()
    go func() {
        if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
            logutil.Errorf(s.logger, "httpjson: server error: %v", err)
        }
    }()
    logutil.Infof(s.logger, "httpjson: dashboard API listening at %s", ln.Addr())
    return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.ln != nil { return s.ln.Addr().String() }
    return s.bind
}

// Stop attempts a graceful shutdown with a short timeout.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv = nil
    s.mu.Unlock()
    if srv == nil { return nil }
    c, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    return srv.Shutdown(c)
}

var _ transport.RPCServer = (*Server)(nil)
