package httpjson

import (
    "context"
    "errors"
    "net"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/settings"
)

func newTestClient(t *testing.T, endpoint string) *Client {
    t.Helper()
    s := settings.NewMemory()
    if endpoint != "" { require.NoError(t, settings.SetEndpoint(s, endpoint)) }
    return NewClient(ClientOptions{Store: s, Logger: logutil.Discard()})
}

func TestURLFor(t *testing.T) {
    cases := []struct {
        name   string
        stored *string
        path   string
        want   string
    }{
        {"default", nil, "/clusters/2", "/api/clusters/2"},
        {"absolute", common.String(`"http://localhost:32333"`), "/status", "http://localhost:32333/status"},
        {"trailing slashes", common.String(`"http://localhost:5691/api///"`), "/status", "http://localhost:5691/api/status"},
        {"json null", common.String(`null`), "/x", "/api/x"},
        {"not json", common.String(`http://raw`), "/x", "/api/x"},
        {"path verbatim", nil, "clusters", "/apiclusters"},
    }
    for _, c := range cases {
        t.Run(c.name, func(t *testing.T) {
            s := settings.NewMemory()
            if c.stored != nil { require.NoError(t, s.Set(settings.EndpointKey, *c.stored)) }
            cl := NewClient(ClientOptions{Store: s})
            require.Equal(t, c.want, cl.URLFor(c.path))
        })
    }
    require.Equal(t, "/api/status", NewClient(ClientOptions{}).URLFor("/status"))
}

func TestResolveRelative(t *testing.T) {
    cl := NewClient(ClientOptions{Origin: "http://dash.local:8080/"})
    u, err := cl.resolve("/api/status")
    require.NoError(t, err)
    require.Equal(t, "http://dash.local:8080/api/status", u)
    u, err = cl.resolve("https://other/api")
    require.NoError(t, err)
    require.Equal(t, "https://other/api", u)
}

func TestGetDecodesJSON(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/api/clusters/2" { http.NotFound(w, r); return }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`[{"id": 3, "type": "WORKER_TYPE_COMPUTE_NODE", "host": {"host": "h", "port": 5688}, "state": 2}]`))
    }))
    defer srv.Close()

    cl := newTestClient(t, srv.URL+"/api/")
    ws, err := cl.ListWorkers(context.Background(), common.WorkerTypeComputeNode)
    require.NoError(t, err)
    require.Len(t, ws, 1)
    require.EqualValues(t, 3, ws[0].ID)
    require.Equal(t, common.WorkerNodeStateRunning, ws[0].State)
    require.Equal(t, "h:5688", ws[0].Addr())
}

func TestRelativeEndpointUsesOrigin(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/api/status" { http.NotFound(w, r); return }
        _, _ = w.Write([]byte(`{"code": "OK", "message": "3 workers"}`))
    }))
    defer srv.Close()

    cl := NewClient(ClientOptions{Store: settings.NewMemory(), Origin: srv.URL, Logger: logutil.Discard()})
    st, err := cl.Status(context.Background())
    require.NoError(t, err)
    require.Equal(t, &common.Status{Code: common.StatusCodeOK, Message: "3 workers"}, st)
}

func TestGetStatusErrors(t *testing.T) {
    cases := []struct {
        name string
        code int
        body string
        want string
    }{
        {"with error field", http.StatusNotFound, `{"error": "no such cluster"}`, "404 Not Found: no such cluster"},
        {"empty error field", http.StatusInternalServerError, `{"error": ""}`, "500 Internal Server Error"},
        {"no json", http.StatusBadGateway, `upstream down`, "502 Bad Gateway"},
        {"numeric error", http.StatusBadRequest, `{"error": 42}`, "400 Bad Request: 42"},
    }
    for _, c := range cases {
        t.Run(c.name, func(t *testing.T) {
            srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
                w.WriteHeader(c.code)
                _, _ = w.Write([]byte(c.body))
            }))
            defer srv.Close()

            cl := newTestClient(t, srv.URL)
            err := cl.Get(context.Background(), "/status", nil)
            var fe *FetchError
            require.ErrorAs(t, err, &fe)
            require.Equal(t, "Failed to fetch "+srv.URL+"/status", err.Error())
            require.Equal(t, srv.URL+"/status", fe.URL)
            var se *StatusError
            require.ErrorAs(t, err, &se)
            require.Equal(t, c.code, se.Code)
            require.Equal(t, c.want, errors.Unwrap(err).Error())
        })
    }
}

func TestGetMalformedJSON(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte(`{"id": `))
    }))
    defer srv.Close()

    err := newTestClient(t, srv.URL).Get(context.Background(), "/x", nil)
    var fe *FetchError
    require.ErrorAs(t, err, &fe)
    require.Error(t, fe.Err)
}

func TestGetNetworkError(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    require.NoError(t, err)
    addr := ln.Addr().String()
    require.NoError(t, ln.Close())

    _, err = newTestClient(t, "http://"+addr).Status(context.Background())
    var fe *FetchError
    require.ErrorAs(t, err, &fe)
    require.Equal(t, "http://"+addr+"/status", fe.URL)
    var se *StatusError
    require.False(t, errors.As(err, &se))
}

func TestGetHonoursContext(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        <-r.Context().Done()
    }))
    defer srv.Close()

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    err := newTestClient(t, srv.URL).Get(ctx, "/x", nil)
    require.ErrorIs(t, err, context.Canceled)
}

func TestNoRetry(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls++
        w.WriteHeader(http.StatusServiceUnavailable)
    }))
    defer srv.Close()

    require.Error(t, newTestClient(t, srv.URL).Get(context.Background(), "/x", nil))
    require.Equal(t, 1, calls)
}
