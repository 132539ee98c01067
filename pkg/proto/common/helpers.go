package common

import (
    "fmt"
    "net"
    "strconv"
    "strings"
)

// String renders the address as host:port.
func (m *HostAddress) String() string {
    if m == nil { return "" }
    return net.JoinHostPort(m.Host, strconv.Itoa(int(m.Port)))
}

// ParseHostAddress parses a host:port pair.
func ParseHostAddress(s string) (*HostAddress, error) {
    host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
    if err != nil { return nil, fmt.Errorf("common: invalid host address %q: %w", s, err) }
    port, err := strconv.ParseUint(portStr, 10, 16)
    if err != nil { return nil, fmt.Errorf("common: invalid port in %q", s) }
    return &HostAddress{Host: host, Port: int32(port)}, nil
}

var workerTypeAliases = map[string]WorkerType{
    "":             WorkerTypeUnspecified,
    "all":          WorkerTypeUnspecified,
    "frontend":     WorkerTypeFrontend,
    "compute":      WorkerTypeComputeNode,
    "compute-node": WorkerTypeComputeNode,
    "compute_node": WorkerTypeComputeNode,
    "risectl":      WorkerTypeRiseCtl,
    "rise-ctl":     WorkerTypeRiseCtl,
    "compactor":    WorkerTypeCompactor,
    "meta":         WorkerTypeMeta,
}

// WorkerTypeFromFlag accepts the short aliases used on command lines, the full
// enum names and the numeric values. "" and "all" mean unspecified.
func WorkerTypeFromFlag(s string) (WorkerType, error) {
    s = strings.TrimSpace(s)
    if t, ok := workerTypeAliases[strings.ToLower(s)]; ok { return t, nil }
    if n, err := strconv.Atoi(s); err == nil {
        if t := WorkerTypeFromJSON(n); t != WorkerTypeUnrecognized { return t, nil }
    }
    if t := WorkerTypeFromJSON(strings.ToUpper(s)); t != WorkerTypeUnrecognized { return t, nil }
    return WorkerTypeUnrecognized, fmt.Errorf("common: unknown worker type %q", s)
}

// ShortName is the lower-case alias of a worker type, e.g. "compute-node".
func (t WorkerType) ShortName() string {
    switch t {
    case WorkerTypeFrontend:
        return "frontend"
    case WorkerTypeComputeNode:
        return "compute-node"
    case WorkerTypeRiseCtl:
        return "risectl"
    case WorkerTypeCompactor:
        return "compactor"
    case WorkerTypeMeta:
        return "meta"
    case WorkerTypeUnspecified:
        return "unspecified"
    }
    return "unrecognized"
}

// Addr returns the worker's host:port, or "" when the host is unknown.
func (m *WorkerNode) Addr() string {
    if m == nil || m.Host == nil { return "" }
    return m.Host.String()
}
