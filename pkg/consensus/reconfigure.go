package consensus

import (
    "fmt"
    "strings"
    "time"
)

// Reconfigurer is implemented by engines whose voter set can change at run
// time. The dashboard adds and removes peer dashboards as they gossip in and
// out.
type Reconfigurer interface {
    AddVoter(id, addr string, timeout time.Duration) error
    RemoveServer(id string, timeout time.Duration) error
}

// Peer is a voter known ahead of time.
type Peer struct {
    ID   string
    Addr string
}

// ParsePeers parses "id=host:port,id=host:port". Blank entries are ignored.
func ParsePeers(csv string) ([]Peer, error) {
    var out []Peer
    for _, part := range strings.Split(csv, ",") {
        part = strings.TrimSpace(part)
        if part == "" { continue }
        id, addr, ok := strings.Cut(part, "=")
        if !ok || id == "" || addr == "" { return nil, fmt.Errorf("consensus: invalid peer %q, want id=host:port", part) }
        out = append(out, Peer{ID: strings.TrimSpace(id), Addr: strings.TrimSpace(addr)})
    }
    return out, nil
}
