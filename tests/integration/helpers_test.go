//go:build integration

package integration

import (
    "context"
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "crypto/x509/pkix"
    "encoding/pem"
    "errors"
    "fmt"
    "math/big"
    "net"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/amirimatin/clusterdash/pkg/bootstrap"
    "github.com/amirimatin/clusterdash/pkg/dashboard"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/settings"
    "github.com/amirimatin/clusterdash/pkg/transport/httpjson"
)

var errNotYet = errors.New("not yet")

func waitUntil(t *testing.T, d time.Duration, fn func() error) {
    t.Helper()
    deadline := time.Now().Add(d)
    var last error
    for time.Now().Before(deadline) {
        if last = fn(); last == nil { return }
        time.Sleep(100 * time.Millisecond)
    }
    t.Fatalf("condition not met within %s: %v", d, last)
}

// dashConfig is a raft-replicated dashboard on loopback ports derived from i.
func dashConfig(i int, seeds string) bootstrap.Config {
    cfg := bootstrap.Defaults()
    cfg.NodeID = fmt.Sprintf("n%d", i)
    cfg.MemBind = fmt.Sprintf("127.0.0.1:%d", 7945+i)
    cfg.APIAddr = fmt.Sprintf("127.0.0.1:%d", 5690+i)
    cfg.Raft = true
    cfg.RaftAddr = fmt.Sprintf("127.0.0.1:%d", 9520+i)
    cfg.Bootstrap = i == 1
    cfg.SeedsCSV = seeds
    cfg.ReconcileInterval = bootstrap.Duration(200 * time.Millisecond)
    cfg.Logger = logutil.Discard()
    return cfg
}

func mustRun(t *testing.T, ctx context.Context, cfg bootstrap.Config) *dashboard.Node {
    t.Helper()
    n, err := bootstrap.Run(ctx, cfg)
    if err != nil { t.Fatalf("%s: %v", cfg.NodeID, err) }
    t.Cleanup(func() { _ = n.Close() })
    return n
}

// apiClient reads the HTTP API of the node listening at addr.
func apiClient(t *testing.T, scheme, addr string, tlsCfg *tls.Config) *httpjson.Client {
    t.Helper()
    store := settings.NewMemory()
    if err := settings.SetEndpoint(store, scheme+"://"+addr+"/api"); err != nil { t.Fatal(err) }
    return httpjson.NewClient(httpjson.ClientOptions{Store: store, Timeout: 3 * time.Second, TLS: tlsCfg, Logger: logutil.Discard()})
}

func workerAt(ctx context.Context, c *httpjson.Client, host string) (*common.WorkerNode, error) {
    ws, err := c.ListWorkers(ctx, common.WorkerTypeUnspecified)
    if err != nil { return nil, err }
    for _, w := range ws {
        if w.Addr() == host { return w, nil }
    }
    return nil, errNotYet
}

func mustMakeTestCerts(t *testing.T, dir string) (caCrt, caKey, srvCrt, srvKey, cliCrt, cliKey string) {
    t.Helper()
    caPriv, _ := rsa.GenerateKey(rand.Reader, 2048)
    caTpl := &x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "clusterdash-ca"}, NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(48 * time.Hour), KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign, IsCA: true, BasicConstraintsValid: true}
    caDER, _ := x509.CreateCertificate(rand.Reader, caTpl, caTpl, &caPriv.PublicKey, caPriv)
    caCrt = filepath.Join(dir, "ca.crt")
    caKey = filepath.Join(dir, "ca.key")
    writePEM(t, caCrt, "CERTIFICATE", caDER)
    writePEM(t, caKey, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(caPriv))

    makeLeaf := func(cn, crtName, keyName string, isClient bool) (string, string) {
        priv, _ := rsa.GenerateKey(rand.Reader, 2048)
        tpl := &x509.Certificate{SerialNumber: big.NewInt(time.Now().UnixNano()), Subject: pkix.Name{CommonName: cn}, NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(24 * time.Hour), KeyUsage: x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment}
        if isClient {
            tpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
        } else {
            tpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
        }
        tpl.IPAddresses = []net.IP{net.ParseIP("127.0.0.1")}
        der, _ := x509.CreateCertificate(rand.Reader, tpl, caTpl, &priv.PublicKey, caPriv)
        crtPath := filepath.Join(dir, crtName)
        keyPath := filepath.Join(dir, keyName)
        writePEM(t, crtPath, "CERTIFICATE", der)
        writePEM(t, keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv))
        return crtPath, keyPath
    }

    srvCrt, srvKey = makeLeaf("clusterdash-server", "server.crt", "server.key", false)
    cliCrt, cliKey = makeLeaf("clusterdash-client", "client.crt", "client.key", true)
    return
}

func writePEM(t *testing.T, path, typ string, der []byte) {
    t.Helper()
    f, err := os.Create(path)
    if err != nil {
        t.Fatalf("create %s: %v", path, err)
    }
    defer f.Close()
    if err := pem.Encode(f, &pem.Block{Type: typ, Bytes: der}); err != nil {
        t.Fatalf("pem encode %s: %v", path, err)
    }
}
