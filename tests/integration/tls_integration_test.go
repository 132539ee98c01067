//go:build integration

package integration

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/amirimatin/clusterdash/pkg/bootstrap"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    tlsx "github.com/amirimatin/clusterdash/pkg/security/tlsconfig"
    dashgrpc "github.com/amirimatin/clusterdash/pkg/transport/grpc"
    "github.com/amirimatin/clusterdash/pkg/transport/httpjson"
)

func TestTLS_HTTPAndGRPCRequireClientCert(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()

    dir := t.TempDir()
    caCrt, _, srvCrt, srvKey, cliCrt, cliKey := mustMakeTestCerts(t, dir)
    serverTLS := tlsx.Options{Enable: true, CAFile: caCrt, CertFile: srvCrt, KeyFile: srvKey, Reload: true}

    httpCfg := bootstrap.Defaults()
    httpCfg.NodeID, httpCfg.MemBind, httpCfg.APIAddr = "h1", "127.0.0.1:7970", "127.0.0.1:5701"
    httpCfg.TLS, httpCfg.Logger = serverTLS, logutil.Discard()
    h1 := mustRun(t, ctx, httpCfg)

    grpcCfg := bootstrap.Defaults()
    grpcCfg.NodeID, grpcCfg.MemBind, grpcCfg.APIAddr, grpcCfg.APIProto = "g1", "127.0.0.1:7971", "127.0.0.1:5702", "grpc"
    grpcCfg.SeedsCSV = "127.0.0.1:7970"
    grpcCfg.TLS, grpcCfg.Logger = serverTLS, logutil.Discard()
    g1 := mustRun(t, ctx, grpcCfg)

    cliTLS, err := tlsx.Options{Enable: true, CAFile: caCrt, CertFile: cliCrt, KeyFile: cliKey}.Client()
    if err != nil { t.Fatalf("tls client: %v", err) }

    hc := apiClient(t, "https", h1.APIAddr(), cliTLS)
    waitUntil(t, 10*time.Second, func() error {
        ws, err := hc.ListWorkers(ctx, common.WorkerTypeMeta)
        if err != nil { return err }
        if len(ws) == 0 { return errNotYet }
        return nil
    })

    gc := dashgrpc.NewClient(g1.APIAddr(), 3*time.Second).UseTLS(cliTLS)
    defer gc.Close()
    waitUntil(t, 10*time.Second, func() error {
        st, err := gc.Status(ctx)
        if err != nil { return err }
        if st.Code != common.StatusCodeOK { return errNotYet }
        return nil
    })

    // Without a client certificate the handshake fails.
    anon, err := tlsx.Options{Enable: true, CAFile: caCrt}.Client()
    if err != nil { t.Fatalf("tls client: %v", err) }
    _, err = apiClient(t, "https", h1.APIAddr(), anon).Status(ctx)
    var fe *httpjson.FetchError
    if !errors.As(err, &fe) { t.Fatalf("expected fetch error without client cert, got %v", err) }
}
