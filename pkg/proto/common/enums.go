package common

import (
    "bytes"
    "encoding/json"
    "math"
)

// unrecognized is the JSON name for enum values outside the known table.
const unrecognized = "UNRECOGNIZED"

// WorkerType identifies the role of a process in the cluster.
type WorkerType int32

const (
    WorkerTypeUnrecognized WorkerType = -1
    WorkerTypeUnspecified  WorkerType = 0
    WorkerTypeFrontend     WorkerType = 1
    WorkerTypeComputeNode  WorkerType = 2
    WorkerTypeRiseCtl      WorkerType = 3
    WorkerTypeCompactor    WorkerType = 4
    WorkerTypeMeta         WorkerType = 5
)

var workerTypeNames = map[WorkerType]string{
    WorkerTypeUnspecified: "WORKER_TYPE_UNSPECIFIED",
    WorkerTypeFrontend:    "WORKER_TYPE_FRONTEND",
    WorkerTypeComputeNode: "WORKER_TYPE_COMPUTE_NODE",
    WorkerTypeRiseCtl:     "WORKER_TYPE_RISE_CTL",
    WorkerTypeCompactor:   "WORKER_TYPE_COMPACTOR",
    WorkerTypeMeta:        "WORKER_TYPE_META",
}

var workerTypeValues = invert(workerTypeNames)

// WorkerTypeFromJSON maps a decoded JSON value (number or name) to a WorkerType.
func WorkerTypeFromJSON(v any) WorkerType {
    return enumFromJSON(v, workerTypeNames, workerTypeValues, WorkerTypeUnrecognized)
}

func (t WorkerType) String() string { return enumName(t, workerTypeNames) }

func (t WorkerType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *WorkerType) UnmarshalJSON(b []byte) error {
    v, err := decodeScalar(b)
    if err != nil { return err }
    if v == nil { *t = WorkerTypeUnspecified; return nil }
    *t = WorkerTypeFromJSON(v)
    return nil
}

// WorkerNodeState is the lifecycle state a worker reports.
type WorkerNodeState int32

const (
    WorkerNodeStateUnrecognized WorkerNodeState = -1
    WorkerNodeStateUnspecified  WorkerNodeState = 0
    WorkerNodeStateStarting     WorkerNodeState = 1
    WorkerNodeStateRunning      WorkerNodeState = 2
)

var workerNodeStateNames = map[WorkerNodeState]string{
    WorkerNodeStateUnspecified: "UNSPECIFIED",
    WorkerNodeStateStarting:    "STARTING",
    WorkerNodeStateRunning:     "RUNNING",
}

var workerNodeStateValues = invert(workerNodeStateNames)

func WorkerNodeStateFromJSON(v any) WorkerNodeState {
    return enumFromJSON(v, workerNodeStateNames, workerNodeStateValues, WorkerNodeStateUnrecognized)
}

func (s WorkerNodeState) String() string { return enumName(s, workerNodeStateNames) }

func (s WorkerNodeState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *WorkerNodeState) UnmarshalJSON(b []byte) error {
    v, err := decodeScalar(b)
    if err != nil { return err }
    if v == nil { *s = WorkerNodeStateUnspecified; return nil }
    *s = WorkerNodeStateFromJSON(v)
    return nil
}

// StatusCode is the outcome carried by a Status message.
type StatusCode int32

const (
    StatusCodeUnrecognized  StatusCode = -1
    StatusCodeUnspecified   StatusCode = 0
    StatusCodeOK            StatusCode = 1
    StatusCodeUnknownWorker StatusCode = 2
)

var statusCodeNames = map[StatusCode]string{
    StatusCodeUnspecified:   "UNSPECIFIED",
    StatusCodeOK:            "OK",
    StatusCodeUnknownWorker: "UNKNOWN_WORKER",
}

var statusCodeValues = invert(statusCodeNames)

func StatusCodeFromJSON(v any) StatusCode {
    return enumFromJSON(v, statusCodeNames, statusCodeValues, StatusCodeUnrecognized)
}

func (c StatusCode) String() string { return enumName(c, statusCodeNames) }

func (c StatusCode) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *StatusCode) UnmarshalJSON(b []byte) error {
    v, err := decodeScalar(b)
    if err != nil { return err }
    if v == nil { *c = StatusCodeUnspecified; return nil }
    *c = StatusCodeFromJSON(v)
    return nil
}

// CompressionType describes how a Buffer body is encoded.
type CompressionType int32

const (
    CompressionTypeUnrecognized CompressionType = -1
    CompressionTypeUnspecified  CompressionType = 0
    CompressionTypeNone         CompressionType = 1
)

var compressionTypeNames = map[CompressionType]string{
    CompressionTypeUnspecified: "UNSPECIFIED",
    CompressionTypeNone:        "NONE",
}

var compressionTypeValues = invert(compressionTypeNames)

func CompressionTypeFromJSON(v any) CompressionType {
    return enumFromJSON(v, compressionTypeNames, compressionTypeValues, CompressionTypeUnrecognized)
}

func (c CompressionType) String() string { return enumName(c, compressionTypeNames) }

func (c CompressionType) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *CompressionType) UnmarshalJSON(b []byte) error {
    v, err := decodeScalar(b)
    if err != nil { return err }
    if v == nil { *c = CompressionTypeUnspecified; return nil }
    *c = CompressionTypeFromJSON(v)
    return nil
}

// Direction is the sort direction of an ordered column.
type Direction int32

const (
    DirectionUnrecognized Direction = -1
    DirectionUnspecified  Direction = 0
    DirectionAscending    Direction = 1
    DirectionDescending   Direction = 2
)

var directionNames = map[Direction]string{
    DirectionUnspecified: "DIRECTION_UNSPECIFIED",
    DirectionAscending:   "DIRECTION_ASCENDING",
    DirectionDescending:  "DIRECTION_DESCENDING",
}

var directionValues = invert(directionNames)

func DirectionFromJSON(v any) Direction {
    return enumFromJSON(v, directionNames, directionValues, DirectionUnrecognized)
}

func (d Direction) String() string { return enumName(d, directionNames) }

func (d Direction) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Direction) UnmarshalJSON(b []byte) error {
    v, err := decodeScalar(b)
    if err != nil { return err }
    if v == nil { *d = DirectionUnspecified; return nil }
    *d = DirectionFromJSON(v)
    return nil
}

// NullsAre places NULLs relative to other values of an ordered column.
type NullsAre int32

const (
    NullsAreUnrecognized NullsAre = -1
    NullsAreUnspecified  NullsAre = 0
    NullsAreLargest      NullsAre = 1
    NullsAreSmallest     NullsAre = 2
)

var nullsAreNames = map[NullsAre]string{
    NullsAreUnspecified: "NULLS_ARE_UNSPECIFIED",
    NullsAreLargest:     "NULLS_ARE_LARGEST",
    NullsAreSmallest:    "NULLS_ARE_SMALLEST",
}

var nullsAreValues = invert(nullsAreNames)

func NullsAreFromJSON(v any) NullsAre {
    return enumFromJSON(v, nullsAreNames, nullsAreValues, NullsAreUnrecognized)
}

func (n NullsAre) String() string { return enumName(n, nullsAreNames) }

func (n NullsAre) MarshalJSON() ([]byte, error) { return json.Marshal(n.String()) }

func (n *NullsAre) UnmarshalJSON(b []byte) error {
    v, err := decodeScalar(b)
    if err != nil { return err }
    if v == nil { *n = NullsAreUnspecified; return nil }
    *n = NullsAreFromJSON(v)
    return nil
}

func invert[E ~int32](names map[E]string) map[string]E {
    out := make(map[string]E, len(names))
    for k, v := range names { out[v] = k }
    return out
}

func enumName[E ~int32](e E, names map[E]string) string {
    if n, ok := names[e]; ok { return n }
    return unrecognized
}

// enumFromJSON accepts the numeric value or the exact name. Numeric strings are
// not accepted as numbers.
func enumFromJSON[E ~int32](v any, names map[E]string, values map[string]E, unknown E) E {
    var n int64
    switch x := v.(type) {
    case string:
        if e, ok := values[x]; ok { return e }
        return unknown
    case json.Number:
        i, err := x.Int64()
        if err != nil { return unknown }
        n = i
    case float64:
        if x != math.Trunc(x) { return unknown }
        n = int64(x)
    case int:
        n = int64(x)
    case int32:
        n = int64(x)
    case int64:
        n = x
    case E:
        n = int64(x)
    default:
        return unknown
    }
    if n < math.MinInt32 || n > math.MaxInt32 { return unknown }
    if _, ok := names[E(n)]; ok { return E(n) }
    return unknown
}

// decodeScalar decodes a JSON scalar keeping numbers as json.Number. A JSON
// null yields a nil value.
func decodeScalar(b []byte) (any, error) {
    dec := json.NewDecoder(bytes.NewReader(b))
    dec.UseNumber()
    var v any
    if err := dec.Decode(&v); err != nil { return nil, err }
    return v, nil
}

