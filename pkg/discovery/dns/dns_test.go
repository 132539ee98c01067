package dns

import (
    "strings"
    "testing"
    "time"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
)

func TestParseSRVName(t *testing.T) {
    cases := []struct{ in, svc, proto, name string }{
        {"_gossip._tcp.dash.example.com", "gossip", "tcp", "dash.example.com"},
        {"bad.srv", "", "", ""},
        {"_gossip.tcp.example.com", "", "", ""},
    }
    for _, c := range cases {
        s, p, n := parseSRVName(c.in)
        if s != c.svc || p != c.proto || n != c.name { t.Fatalf("parseSRVName(%q) = (%q,%q,%q)", c.in, s, p, n) }
    }
}

func TestPassthroughHostPort(t *testing.T) {
    d := New(Options{Names: []string{"1.2.3.4:7946", "[::1]:7946", " "}, Refresh: 5 * time.Millisecond})
    got := d.Seeds()
    if len(got) != 2 || got[0] != "1.2.3.4:7946" || got[1] != "[::1]:7946" { t.Fatalf("unexpected seeds: %#v", got) }
}

func TestLookupHostLocalhost(t *testing.T) {
    d := New(Options{Names: []string{"localhost"}, Port: 12345, Refresh: 5 * time.Millisecond, Logger: logutil.Discard()})
    got := d.Seeds()
    if len(got) == 0 { t.Fatalf("expected at least one resolved host:port, got %#v", got) }
    for _, s := range got {
        if !strings.HasSuffix(s, ":12345") { t.Fatalf("missing port in %q", s) }
    }
}
