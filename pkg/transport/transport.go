package transport

// Transport is anything bound to a local address, such as an API server or
// the raft transport.
type Transport interface {
    Addr() string
}
