package common

import (
    "bytes"
    "encoding/base64"
    "encoding/json"
    "fmt"
    "math"
    "strconv"
)

// The encoders come from the struct tags: omitempty drops every default and
// enums render by name. The decoders below are lenient the same way proto3
// JSON readers are: absent and null fields keep their defaults, numbers may be
// quoted, enums may be numbers or names.

func (m *Status) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = Status{}
    if err := f.enum("code", func(v any) { m.Code = StatusCodeFromJSON(v) }); err != nil { return err }
    return f.str("message", &m.Message)
}

func (m *HostAddress) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = HostAddress{}
    if err := f.str("host", &m.Host); err != nil { return err }
    return f.i32("port", &m.Port)
}

func (m *ActorInfo) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = ActorInfo{}
    if err := f.u32("actorId", &m.ActorID); err != nil { return err }
    if f.has("host") {
        m.Host = &HostAddress{}
        if err := f.message("host", m.Host); err != nil { return err }
    }
    return nil
}

func (m *ActorLocation) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = ActorLocation{}
    return f.u32("workerNodeId", &m.WorkerNodeID)
}

func (m *WorkerNode) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = WorkerNode{}
    if err := f.u32("id", &m.ID); err != nil { return err }
    if err := f.enum("type", func(v any) { m.Type = WorkerTypeFromJSON(v) }); err != nil { return err }
    if f.has("host") {
        m.Host = &HostAddress{}
        if err := f.message("host", m.Host); err != nil { return err }
    }
    if err := f.enum("state", func(v any) { m.State = WorkerNodeStateFromJSON(v) }); err != nil { return err }
    if f.has("property") {
        m.Property = &WorkerNodeProperty{}
        if err := f.message("property", m.Property); err != nil { return err }
    }
    if f.has("transactionalId") {
        var v uint32
        if err := f.u32("transactionalId", &v); err != nil { return err }
        m.TransactionalID = &v
    }
    if f.has("resource") {
        m.Resource = &WorkerNodeResource{}
        if err := f.message("resource", m.Resource); err != nil { return err }
    }
    if f.has("startedAt") {
        var v uint64
        if err := f.u64("startedAt", &v); err != nil { return err }
        m.StartedAt = &v
    }
    return nil
}

func (m *WorkerNodeProperty) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = WorkerNodeProperty{}
    if err := f.boolean("isStreaming", &m.IsStreaming); err != nil { return err }
    if err := f.boolean("isServing", &m.IsServing); err != nil { return err }
    if err := f.boolean("isUnschedulable", &m.IsUnschedulable); err != nil { return err }
    if err := f.str("internalRpcHostAddr", &m.InternalRPCHostAddr); err != nil { return err }
    if err := f.u32("parallelism", &m.Parallelism); err != nil { return err }
    if f.has("resourceGroup") {
        var v string
        if err := f.str("resourceGroup", &v); err != nil { return err }
        m.ResourceGroup = &v
    }
    return nil
}

func (m *WorkerNodeResource) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = WorkerNodeResource{}
    if err := f.str("rwVersion", &m.RwVersion); err != nil { return err }
    if err := f.u64("totalMemoryBytes", &m.TotalMemoryBytes); err != nil { return err }
    return f.u64("totalCpuCores", &m.TotalCPUCores)
}

func (m *Buffer) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = Buffer{}
    if err := f.enum("compression", func(v any) { m.Compression = CompressionTypeFromJSON(v) }); err != nil { return err }
    if !f.has("body") { return nil }
    var s string
    if err := json.Unmarshal(f["body"], &s); err != nil { return fieldErr("body", err) }
    body, err := decodeBase64(s)
    if err != nil { return fieldErr("body", err) }
    m.Body = body
    return nil
}

func (m *WorkerSlotMapping) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = WorkerSlotMapping{}
    items, err := f.list("originalIndices")
    if err != nil { return err }
    for _, raw := range items {
        v, err := parseUint(raw, 32)
        if err != nil { return fieldErr("originalIndices", err) }
        m.OriginalIndices = append(m.OriginalIndices, uint32(v))
    }
    items, err = f.list("data")
    if err != nil { return err }
    for _, raw := range items {
        v, err := parseUint(raw, 64)
        if err != nil { return fieldErr("data", err) }
        m.Data = append(m.Data, v)
    }
    return nil
}

func (m *OrderType) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = OrderType{}
    if err := f.enum("direction", func(v any) { m.Direction = DirectionFromJSON(v) }); err != nil { return err }
    return f.enum("nullsAre", func(v any) { m.NullsAre = NullsAreFromJSON(v) })
}

func (m *ColumnOrder) UnmarshalJSON(b []byte) error {
    f, err := decodeFields(b)
    if err != nil { return err }
    *m = ColumnOrder{}
    if err := f.u32("columnIndex", &m.ColumnIndex); err != nil { return err }
    if f.has("orderType") {
        m.OrderType = &OrderType{}
        if err := f.message("orderType", m.OrderType); err != nil { return err }
    }
    return nil
}

// fields is a decoded JSON object keyed by field name.
type fields map[string]json.RawMessage

func decodeFields(b []byte) (fields, error) {
    if isNull(b) { return fields{}, nil }
    var f fields
    if err := json.Unmarshal(b, &f); err != nil { return nil, err }
    return f, nil
}

func isNull(b []byte) bool { return bytes.Equal(bytes.TrimSpace(b), []byte("null")) }

func fieldErr(key string, err error) error { return fmt.Errorf("common: field %q: %w", key, err) }

func (f fields) has(key string) bool {
    raw, ok := f[key]
    return ok && !isNull(raw)
}

func (f fields) str(key string, dst *string) error {
    if !f.has(key) { return nil }
    raw := bytes.TrimSpace(f[key])
    switch raw[0] {
    case '"':
        if err := json.Unmarshal(raw, dst); err != nil { return fieldErr(key, err) }
    case '{', '[':
        return fieldErr(key, fmt.Errorf("expected string, got %s", raw))
    default:
        *dst = string(raw)
    }
    return nil
}

func (f fields) boolean(key string, dst *bool) error {
    if !f.has(key) { return nil }
    if err := json.Unmarshal(f[key], dst); err != nil { return fieldErr(key, err) }
    return nil
}

func (f fields) u32(key string, dst *uint32) error {
    if !f.has(key) { return nil }
    v, err := parseUint(f[key], 32)
    if err != nil { return fieldErr(key, err) }
    *dst = uint32(v)
    return nil
}

func (f fields) u64(key string, dst *uint64) error {
    if !f.has(key) { return nil }
    v, err := parseUint(f[key], 64)
    if err != nil { return fieldErr(key, err) }
    *dst = v
    return nil
}

func (f fields) i32(key string, dst *int32) error {
    if !f.has(key) { return nil }
    text, err := numberText(f[key])
    if err != nil { return fieldErr(key, err) }
    v, err := strconv.ParseInt(text, 10, 32)
    if err != nil {
        fv, ferr := strconv.ParseFloat(text, 64)
        if ferr != nil || fv < math.MinInt32 || fv > math.MaxInt32 { return fieldErr(key, err) }
        v = int64(math.Round(fv))
    }
    *dst = int32(v)
    return nil
}

func (f fields) enum(key string, set func(any)) error {
    if !f.has(key) { return nil }
    v, err := decodeScalar(f[key])
    if err != nil { return fieldErr(key, err) }
    set(v)
    return nil
}

func (f fields) message(key string, dst json.Unmarshaler) error {
    if err := dst.UnmarshalJSON(f[key]); err != nil { return fieldErr(key, err) }
    return nil
}

// list returns the elements of an array field. Absent or non-array values
// yield an empty list.
func (f fields) list(key string) ([]json.RawMessage, error) {
    if !f.has(key) { return nil, nil }
    raw := bytes.TrimSpace(f[key])
    if raw[0] != '[' { return nil, nil }
    var items []json.RawMessage
    if err := json.Unmarshal(raw, &items); err != nil { return nil, fieldErr(key, err) }
    return items, nil
}

// numberText returns the literal of a JSON number or numeric string.
func numberText(raw json.RawMessage) (string, error) {
    raw = bytes.TrimSpace(raw)
    if len(raw) > 0 && raw[0] == '"' {
        var s string
        if err := json.Unmarshal(raw, &s); err != nil { return "", err }
        return s, nil
    }
    var n json.Number
    if err := json.Unmarshal(raw, &n); err != nil { return "", err }
    return n.String(), nil
}

func parseUint(raw json.RawMessage, bits int) (uint64, error) {
    text, err := numberText(raw)
    if err != nil { return 0, err }
    v, err := strconv.ParseUint(text, 10, bits)
    if err == nil { return v, nil }
    fv, ferr := strconv.ParseFloat(text, 64)
    if ferr != nil { return 0, err }
    fv = math.Round(fv)
    if fv < 0 || fv > math.Ldexp(1, bits)-1 { return 0, fmt.Errorf("value %s out of range", text) }
    return uint64(fv), nil
}

func decodeBase64(s string) ([]byte, error) {
    for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
        if b, err := enc.DecodeString(s); err == nil { return b, nil }
    }
    return nil, fmt.Errorf("invalid base64 %q", s)
}
