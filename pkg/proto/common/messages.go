// Package common holds the cluster metadata messages shared by the dashboard,
// its API and the workers it observes. Every message has a JSON codec that
// follows the proto3 JSON mapping (camelCase keys, defaults omitted, enums by
// name) and a binary codec in protobuf wire format.
package common

// Status is the outcome of a request against the meta service.
type Status struct {
    Code    StatusCode `json:"code,omitempty"`
    Message string     `json:"message,omitempty"`
}

// HostAddress is a host:port pair as advertised by a worker.
type HostAddress struct {
    Host string `json:"host,omitempty"`
    Port int32  `json:"port,omitempty"`
}

type ActorInfo struct {
    ActorID uint32       `json:"actorId,omitempty"`
    Host    *HostAddress `json:"host,omitempty"`
}

type ActorLocation struct {
    WorkerNodeID uint32 `json:"workerNodeId,omitempty"`
}

// WorkerNode describes one process of the cluster. TransactionalID and
// StartedAt are optional: nil means unset, which is distinct from zero.
type WorkerNode struct {
    ID              uint32              `json:"id,omitempty"`
    Type            WorkerType          `json:"type,omitempty"`
    Host            *HostAddress        `json:"host,omitempty"`
    State           WorkerNodeState     `json:"state,omitempty"`
    Property        *WorkerNodeProperty `json:"property,omitempty"`
    TransactionalID *uint32             `json:"transactionalId,omitempty"`
    Resource        *WorkerNodeResource `json:"resource,omitempty"`
    StartedAt       *uint64             `json:"startedAt,omitempty"`
}

// WorkerNodeProperty carries scheduling hints of a worker.
type WorkerNodeProperty struct {
    IsStreaming         bool    `json:"isStreaming,omitempty"`
    IsServing           bool    `json:"isServing,omitempty"`
    IsUnschedulable     bool    `json:"isUnschedulable,omitempty"`
    InternalRPCHostAddr string  `json:"internalRpcHostAddr,omitempty"`
    Parallelism         uint32  `json:"parallelism,omitempty"`
    ResourceGroup       *string `json:"resourceGroup,omitempty"`
}

// WorkerNodeResource describes the build and hardware of a worker.
type WorkerNodeResource struct {
    RwVersion        string `json:"rwVersion,omitempty"`
    TotalMemoryBytes uint64 `json:"totalMemoryBytes,omitempty"`
    TotalCPUCores    uint64 `json:"totalCpuCores,omitempty"`
}

// Buffer is an opaque, optionally compressed payload. Body is base64 in JSON.
type Buffer struct {
    Compression CompressionType `json:"compression,omitempty"`
    Body        []byte          `json:"body,omitempty"`
}

// WorkerSlotMapping is a compressed vnode to worker slot mapping: Data[i] owns
// the range ending at OriginalIndices[i].
type WorkerSlotMapping struct {
    OriginalIndices []uint32 `json:"originalIndices,omitempty"`
    Data            []uint64 `json:"data,omitempty"`
}

type OrderType struct {
    Direction Direction `json:"direction,omitempty"`
    NullsAre  NullsAre  `json:"nullsAre,omitempty"`
}

type ColumnOrder struct {
    ColumnIndex uint32     `json:"columnIndex,omitempty"`
    OrderType   *OrderType `json:"orderType,omitempty"`
}

// Clone methods return deep copies; a nil receiver yields nil.

func (m *Status) Clone() *Status {
    if m == nil { return nil }
    out := *m
    return &out
}

func (m *HostAddress) Clone() *HostAddress {
    if m == nil { return nil }
    out := *m
    return &out
}

func (m *ActorInfo) Clone() *ActorInfo {
    if m == nil { return nil }
    return &ActorInfo{ActorID: m.ActorID, Host: m.Host.Clone()}
}

func (m *ActorLocation) Clone() *ActorLocation {
    if m == nil { return nil }
    out := *m
    return &out
}

func (m *WorkerNode) Clone() *WorkerNode {
    if m == nil { return nil }
    return &WorkerNode{
        ID:              m.ID,
        Type:            m.Type,
        Host:            m.Host.Clone(),
        State:           m.State,
        Property:        m.Property.Clone(),
        TransactionalID: clonePtr(m.TransactionalID),
        Resource:        m.Resource.Clone(),
        StartedAt:       clonePtr(m.StartedAt),
    }
}

func (m *WorkerNodeProperty) Clone() *WorkerNodeProperty {
    if m == nil { return nil }
    out := *m
    out.ResourceGroup = clonePtr(m.ResourceGroup)
    return &out
}

func (m *WorkerNodeResource) Clone() *WorkerNodeResource {
    if m == nil { return nil }
    out := *m
    return &out
}

func (m *Buffer) Clone() *Buffer {
    if m == nil { return nil }
    return &Buffer{Compression: m.Compression, Body: cloneSlice(m.Body)}
}

func (m *WorkerSlotMapping) Clone() *WorkerSlotMapping {
    if m == nil { return nil }
    return &WorkerSlotMapping{OriginalIndices: cloneSlice(m.OriginalIndices), Data: cloneSlice(m.Data)}
}

func (m *OrderType) Clone() *OrderType {
    if m == nil { return nil }
    out := *m
    return &out
}

func (m *ColumnOrder) Clone() *ColumnOrder {
    if m == nil { return nil }
    return &ColumnOrder{ColumnIndex: m.ColumnIndex, OrderType: m.OrderType.Clone()}
}

func clonePtr[T any](p *T) *T {
    if p == nil { return nil }
    v := *p
    return &v
}

func cloneSlice[T any](s []T) []T {
    if s == nil { return nil }
    return append(make([]T, 0, len(s)), s...)
}

// Uint32 and Uint64 return pointers for optional fields.
func Uint32(v uint32) *uint32 { return &v }
func Uint64(v uint64) *uint64 { return &v }
func String(v string) *string { return &v }
