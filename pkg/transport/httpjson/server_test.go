package httpjson

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/settings"
    "github.com/amirimatin/clusterdash/pkg/transport"
)

func fakeHandlers() transport.Handlers {
    all := []*common.WorkerNode{
        {ID: 1, Type: common.WorkerTypeFrontend, Host: &common.HostAddress{Host: "fe", Port: 4566}, State: common.WorkerNodeStateRunning},
        {ID: 2, Type: common.WorkerTypeComputeNode, Host: &common.HostAddress{Host: "cn", Port: 5688}, State: common.WorkerNodeStateRunning, TransactionalID: common.Uint32(0)},
    }
    return transport.Handlers{
        Workers: func(ctx context.Context, t common.WorkerType) ([]*common.WorkerNode, error) {
            if t == common.WorkerTypeMeta { return nil, errors.New("registry unavailable") }
            var out []*common.WorkerNode
            for _, w := range all {
                if t == common.WorkerTypeUnspecified || w.Type == t { out = append(out, w) }
            }
            return out, nil
        },
        Status: func(ctx context.Context) (*common.Status, error) {
            return &common.Status{Code: common.StatusCodeOK, Message: "2 workers"}, nil
        },
    }
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
    t.Helper()
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
    return rec
}

func TestHandlerRoutes(t *testing.T) {
    h := Handler(fakeHandlers())
    cases := []struct {
        path  string
        code  int
        count int
    }{
        {"/api/clusters", http.StatusOK, 2},
        {"/api/clusters/0", http.StatusOK, 2},
        {"/api/clusters/2", http.StatusOK, 1},
        {"/api/clusters/WORKER_TYPE_FRONTEND", http.StatusOK, 1},
        {"/api/clusters/compactor", http.StatusOK, 0},
    }
    for _, c := range cases {
        rec := do(t, h, http.MethodGet, c.path)
        require.Equal(t, c.code, rec.Code, c.path)
        require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
        var ws []*common.WorkerNode
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ws), c.path)
        require.NotNil(t, ws, c.path)
        require.Len(t, ws, c.count, c.path)
    }
}

func TestHandlerErrors(t *testing.T) {
    h := Handler(fakeHandlers())

    rec := do(t, h, http.MethodGet, "/api/clusters/gpu")
    require.Equal(t, http.StatusBadRequest, rec.Code)
    require.JSONEq(t, `{"error": "transport: unknown worker type \"gpu\""}`, rec.Body.String())

    rec = do(t, h, http.MethodGet, "/api/clusters/meta")
    require.Equal(t, http.StatusInternalServerError, rec.Code)
    require.JSONEq(t, `{"error": "registry unavailable"}`, rec.Body.String())

    rec = do(t, h, http.MethodPost, "/api/status")
    require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
    require.JSONEq(t, `{"error": "method not allowed"}`, rec.Body.String())

    rec = do(t, h, http.MethodGet, "/healthz")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "ok", rec.Body.String())

    rec = do(t, h, http.MethodGet, "/metrics")
    require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerWithClient(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    s := NewServer("127.0.0.1:0", logutil.Discard())
    require.NoError(t, s.Start(ctx, fakeHandlers()))
    defer s.Stop(context.Background())
    require.False(t, strings.HasSuffix(s.Addr(), ":0"))

    store := settings.NewMemory()
    require.NoError(t, settings.SetEndpoint(store, "http://"+s.Addr()+"/api"))
    cl := NewClient(ClientOptions{Store: store, Logger: logutil.Discard()})

    ws, err := cl.ListWorkers(ctx, common.WorkerTypeComputeNode)
    require.NoError(t, err)
    require.Len(t, ws, 1)
    require.Equal(t, common.Uint32(0), ws[0].TransactionalID)

    st, err := cl.Status(ctx)
    require.NoError(t, err)
    require.Equal(t, common.StatusCodeOK, st.Code)

    err = cl.Get(ctx, "/clusters/gpu", nil)
    var se *StatusError
    require.ErrorAs(t, err, &se)
    require.Equal(t, `400 Bad Request: transport: unknown worker type "gpu"`, se.Error())
}

func TestStartRejectsMissingHandlers(t *testing.T) {
    s := NewServer("127.0.0.1:0", logutil.Discard())
    require.Error(t, s.Start(context.Background(), transport.Handlers{}))
}
