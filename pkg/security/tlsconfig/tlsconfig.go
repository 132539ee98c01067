// Package tlsconfig builds tls.Config values for the dashboard API server and
// its clients from file paths given on the command line.
package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"
)

var ErrMissingKeyPair = errors.New("tlsconfig: cert and key are required")

// reloadTTL bounds how long a loaded key pair is reused before the files are
// read again.
const reloadTTL = 10 * time.Second

// Options describes TLS inputs. Setting CAFile on the server side turns on
// client certificate verification (mTLS).
type Options struct {
    Enable             bool
    CAFile             string
    CertFile           string
    KeyFile            string
    InsecureSkipVerify bool
    ServerName         string
    // Reload re-reads the key pair from disk on handshakes so rotated
    // certificates are picked up without a restart.
    Reload bool
}

// Validate checks that the server side has a key pair and that cert and key
// are given together.
func (o Options) Validate(server bool) error {
    if !o.Enable { return nil }
    if (o.CertFile == "") != (o.KeyFile == "") { return fmt.Errorf("%w together", ErrMissingKeyPair) }
    if server && o.CertFile == "" { return ErrMissingKeyPair }
    return nil
}

// Server returns a server tls.Config, or nil when TLS is disabled.
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    if err := o.Validate(true); err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12}
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    kp := &keyPair{certFile: o.CertFile, keyFile: o.KeyFile}
    if o.Reload {
        cfg.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return kp.get() }
        return cfg, nil
    }
    cert, err := kp.load()
    if err != nil { return nil, err }
    cfg.Certificates = []tls.Certificate{*cert}
    return cfg, nil
}

// Client returns a client tls.Config, or nil when TLS is disabled. A client
// certificate is presented only when both cert and key are set.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    if err := o.Validate(false); err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: o.InsecureSkipVerify} //nolint:gosec
    if o.ServerName != "" { cfg.ServerName = o.ServerName }
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    if o.CertFile == "" { return cfg, nil }
    kp := &keyPair{certFile: o.CertFile, keyFile: o.KeyFile}
    if o.Reload {
        cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) { return kp.get() }
        return cfg, nil
    }
    cert, err := kp.load()
    if err != nil { return nil, err }
    cfg.Certificates = []tls.Certificate{*cert}
    return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
    pem, err := os.ReadFile(path)
    if err != nil { return nil, fmt.Errorf("tlsconfig: read CA: %w", err) }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(pem) { return nil, fmt.Errorf("tlsconfig: no certificates in %s", path) }
    return pool, nil
}

type keyPair struct {
    certFile, keyFile string

    mu       sync.RWMutex
    cached   *tls.Certificate
    loadedAt time.Time
}

func (k *keyPair) load() (*tls.Certificate, error) {
    cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
    if err != nil { return nil, fmt.Errorf("tlsconfig: load key pair: %w", err) }
    return &cert, nil
}

func (k *keyPair) get() (*tls.Certificate, error) {
    k.mu.RLock()
    if k.cached != nil && time.Since(k.loadedAt) < reloadTTL {
        c := k.cached
        k.mu.RUnlock()
        return c, nil
    }
    k.mu.RUnlock()
    cert, err := k.load()
    if err != nil { return nil, err }
    k.mu.Lock()
    k.cached, k.loadedAt = cert, time.Now()
    k.mu.Unlock()
    return cert, nil
}
