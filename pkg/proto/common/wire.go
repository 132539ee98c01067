package common

import (
    "errors"
    "fmt"

    "google.golang.org/protobuf/encoding/protowire"
)

// ErrWireType is returned when a field arrives with an unexpected wire type.
var ErrWireType = errors.New("common: unexpected wire type")

// Marshal encodes the message in protobuf wire format. Fields holding their
// default value are not written; optional fields are written whenever set.

func (m *Status) Marshal() ([]byte, error)            { return m.appendTo(nil), nil }
func (m *HostAddress) Marshal() ([]byte, error)       { return m.appendTo(nil), nil }
func (m *ActorInfo) Marshal() ([]byte, error)         { return m.appendTo(nil), nil }
func (m *ActorLocation) Marshal() ([]byte, error)     { return m.appendTo(nil), nil }
func (m *WorkerNode) Marshal() ([]byte, error)        { return m.appendTo(nil), nil }
func (m *WorkerNodeProperty) Marshal() ([]byte, error) { return m.appendTo(nil), nil }
func (m *WorkerNodeResource) Marshal() ([]byte, error) { return m.appendTo(nil), nil }
func (m *Buffer) Marshal() ([]byte, error)            { return m.appendTo(nil), nil }
func (m *WorkerSlotMapping) Marshal() ([]byte, error) { return m.appendTo(nil), nil }
func (m *OrderType) Marshal() ([]byte, error)         { return m.appendTo(nil), nil }
func (m *ColumnOrder) Marshal() ([]byte, error)       { return m.appendTo(nil), nil }

func (m *Status) appendTo(b []byte) []byte {
    b = appendInt32(b, 1, int32(m.Code))
    return appendString(b, 2, m.Message)
}

func (m *HostAddress) appendTo(b []byte) []byte {
    b = appendString(b, 1, m.Host)
    return appendInt32(b, 2, m.Port)
}

func (m *ActorInfo) appendTo(b []byte) []byte {
    b = appendVarint(b, 1, uint64(m.ActorID))
    if m.Host != nil { b = appendMessage(b, 2, m.Host.appendTo(nil)) }
    return b
}

func (m *ActorLocation) appendTo(b []byte) []byte {
    return appendVarint(b, 1, uint64(m.WorkerNodeID))
}

func (m *WorkerNode) appendTo(b []byte) []byte {
    b = appendVarint(b, 1, uint64(m.ID))
    b = appendInt32(b, 2, int32(m.Type))
    if m.Host != nil { b = appendMessage(b, 3, m.Host.appendTo(nil)) }
    b = appendInt32(b, 4, int32(m.State))
    if m.Property != nil { b = appendMessage(b, 6, m.Property.appendTo(nil)) }
    if m.TransactionalID != nil { b = appendOptionalVarint(b, 7, uint64(*m.TransactionalID)) }
    if m.Resource != nil { b = appendMessage(b, 8, m.Resource.appendTo(nil)) }
    if m.StartedAt != nil { b = appendOptionalVarint(b, 9, *m.StartedAt) }
    return b
}

func (m *WorkerNodeProperty) appendTo(b []byte) []byte {
    b = appendBool(b, 1, m.IsStreaming)
    b = appendBool(b, 2, m.IsServing)
    b = appendBool(b, 3, m.IsUnschedulable)
    b = appendString(b, 4, m.InternalRPCHostAddr)
    b = appendVarint(b, 6, uint64(m.Parallelism))
    if m.ResourceGroup != nil {
        b = protowire.AppendTag(b, 7, protowire.BytesType)
        b = protowire.AppendString(b, *m.ResourceGroup)
    }
    return b
}

func (m *WorkerNodeResource) appendTo(b []byte) []byte {
    b = appendString(b, 1, m.RwVersion)
    b = appendVarint(b, 2, m.TotalMemoryBytes)
    return appendVarint(b, 3, m.TotalCPUCores)
}

func (m *Buffer) appendTo(b []byte) []byte {
    b = appendInt32(b, 1, int32(m.Compression))
    if len(m.Body) > 0 {
        b = protowire.AppendTag(b, 2, protowire.BytesType)
        b = protowire.AppendBytes(b, m.Body)
    }
    return b
}

func (m *WorkerSlotMapping) appendTo(b []byte) []byte {
    if len(m.OriginalIndices) > 0 {
        var packed []byte
        for _, v := range m.OriginalIndices { packed = protowire.AppendVarint(packed, uint64(v)) }
        b = appendMessage(b, 1, packed)
    }
    if len(m.Data) > 0 {
        var packed []byte
        for _, v := range m.Data { packed = protowire.AppendVarint(packed, v) }
        b = appendMessage(b, 2, packed)
    }
    return b
}

func (m *OrderType) appendTo(b []byte) []byte {
    b = appendInt32(b, 1, int32(m.Direction))
    return appendInt32(b, 2, int32(m.NullsAre))
}

func (m *ColumnOrder) appendTo(b []byte) []byte {
    b = appendVarint(b, 1, uint64(m.ColumnIndex))
    if m.OrderType != nil { b = appendMessage(b, 3, m.OrderType.appendTo(nil)) }
    return b
}

// Unmarshal resets the message and decodes b into it. Unknown fields are
// skipped.

func (m *Status) Unmarshal(b []byte) error {
    *m = Status{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            v, n, err := consumeVarint(typ, b)
            m.Code = knownEnum(v, statusCodeNames, StatusCodeUnrecognized)
            return n, err
        case 2:
            return consumeString(typ, b, &m.Message)
        }
        return skipField(num, typ, b)
    })
}

func (m *HostAddress) Unmarshal(b []byte) error {
    *m = HostAddress{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            return consumeString(typ, b, &m.Host)
        case 2:
            v, n, err := consumeVarint(typ, b)
            m.Port = int32(v)
            return n, err
        }
        return skipField(num, typ, b)
    })
}

func (m *ActorInfo) Unmarshal(b []byte) error {
    *m = ActorInfo{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            v, n, err := consumeVarint(typ, b)
            m.ActorID = uint32(v)
            return n, err
        case 2:
            m.Host = &HostAddress{}
            return consumeMessage(typ, b, m.Host.Unmarshal)
        }
        return skipField(num, typ, b)
    })
}

func (m *ActorLocation) Unmarshal(b []byte) error {
    *m = ActorLocation{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        if num == 1 {
            v, n, err := consumeVarint(typ, b)
            m.WorkerNodeID = uint32(v)
            return n, err
        }
        return skipField(num, typ, b)
    })
}

func (m *WorkerNode) Unmarshal(b []byte) error {
    *m = WorkerNode{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            v, n, err := consumeVarint(typ, b)
            m.ID = uint32(v)
            return n, err
        case 2:
            v, n, err := consumeVarint(typ, b)
            m.Type = knownEnum(v, workerTypeNames, WorkerTypeUnrecognized)
            return n, err
        case 3:
            m.Host = &HostAddress{}
            return consumeMessage(typ, b, m.Host.Unmarshal)
        case 4:
            v, n, err := consumeVarint(typ, b)
            m.State = knownEnum(v, workerNodeStateNames, WorkerNodeStateUnrecognized)
            return n, err
        case 6:
            m.Property = &WorkerNodeProperty{}
            return consumeMessage(typ, b, m.Property.Unmarshal)
        case 7:
            v, n, err := consumeVarint(typ, b)
            m.TransactionalID = Uint32(uint32(v))
            return n, err
        case 8:
            m.Resource = &WorkerNodeResource{}
            return consumeMessage(typ, b, m.Resource.Unmarshal)
        case 9:
            v, n, err := consumeVarint(typ, b)
            m.StartedAt = Uint64(v)
            return n, err
        }
        return skipField(num, typ, b)
    })
}

func (m *WorkerNodeProperty) Unmarshal(b []byte) error {
    *m = WorkerNodeProperty{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1, 2, 3:
            v, n, err := consumeVarint(typ, b)
            flag := protowire.DecodeBool(v)
            switch num {
            case 1:
                m.IsStreaming = flag
            case 2:
                m.IsServing = flag
            default:
                m.IsUnschedulable = flag
            }
            return n, err
        case 4:
            return consumeString(typ, b, &m.InternalRPCHostAddr)
        case 6:
            v, n, err := consumeVarint(typ, b)
            m.Parallelism = uint32(v)
            return n, err
        case 7:
            var s string
            n, err := consumeString(typ, b, &s)
            m.ResourceGroup = &s
            return n, err
        }
        return skipField(num, typ, b)
    })
}

func (m *WorkerNodeResource) Unmarshal(b []byte) error {
    *m = WorkerNodeResource{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            return consumeString(typ, b, &m.RwVersion)
        case 2:
            v, n, err := consumeVarint(typ, b)
            m.TotalMemoryBytes = v
            return n, err
        case 3:
            v, n, err := consumeVarint(typ, b)
            m.TotalCPUCores = v
            return n, err
        }
        return skipField(num, typ, b)
    })
}

func (m *Buffer) Unmarshal(b []byte) error {
    *m = Buffer{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            v, n, err := consumeVarint(typ, b)
            m.Compression = knownEnum(v, compressionTypeNames, CompressionTypeUnrecognized)
            return n, err
        case 2:
            if typ != protowire.BytesType { return 0, ErrWireType }
            v, n := protowire.ConsumeBytes(b)
            if n < 0 { return 0, protowire.ParseError(n) }
            m.Body = append([]byte(nil), v...)
            return n, nil
        }
        return skipField(num, typ, b)
    })
}

func (m *WorkerSlotMapping) Unmarshal(b []byte) error {
    *m = WorkerSlotMapping{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            return consumeRepeatedVarint(typ, b, func(v uint64) { m.OriginalIndices = append(m.OriginalIndices, uint32(v)) })
        case 2:
            return consumeRepeatedVarint(typ, b, func(v uint64) { m.Data = append(m.Data, v) })
        }
        return skipField(num, typ, b)
    })
}

func (m *OrderType) Unmarshal(b []byte) error {
    *m = OrderType{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            v, n, err := consumeVarint(typ, b)
            m.Direction = knownEnum(v, directionNames, DirectionUnrecognized)
            return n, err
        case 2:
            v, n, err := consumeVarint(typ, b)
            m.NullsAre = knownEnum(v, nullsAreNames, NullsAreUnrecognized)
            return n, err
        }
        return skipField(num, typ, b)
    })
}

func (m *ColumnOrder) Unmarshal(b []byte) error {
    *m = ColumnOrder{}
    return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
        switch num {
        case 1:
            v, n, err := consumeVarint(typ, b)
            m.ColumnIndex = uint32(v)
            return n, err
        case 3:
            m.OrderType = &OrderType{}
            return consumeMessage(typ, b, m.OrderType.Unmarshal)
        }
        return skipField(num, typ, b)
    })
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
    if v == 0 { return b }
    return appendOptionalVarint(b, num, v)
}

func appendOptionalVarint(b []byte, num protowire.Number, v uint64) []byte {
    b = protowire.AppendTag(b, num, protowire.VarintType)
    return protowire.AppendVarint(b, v)
}

// appendInt32 sign-extends negative values to ten bytes as int32 fields require.
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
    return appendVarint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
    return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
    if s == "" { return b }
    b = protowire.AppendTag(b, num, protowire.BytesType)
    return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
    b = protowire.AppendTag(b, num, protowire.BytesType)
    return protowire.AppendBytes(b, inner)
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeFields(b []byte, fn fieldFunc) error {
    for len(b) > 0 {
        num, typ, n := protowire.ConsumeTag(b)
        if n < 0 { return protowire.ParseError(n) }
        b = b[n:]
        m, err := fn(num, typ, b)
        if err != nil { return fmt.Errorf("common: field %d: %w", num, err) }
        b = b[m:]
    }
    return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
    if typ != protowire.VarintType { return 0, 0, ErrWireType }
    v, n := protowire.ConsumeVarint(b)
    if n < 0 { return 0, 0, protowire.ParseError(n) }
    return v, n, nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
    if typ != protowire.BytesType { return 0, ErrWireType }
    v, n := protowire.ConsumeString(b)
    if n < 0 { return 0, protowire.ParseError(n) }
    *dst = v
    return n, nil
}

func consumeMessage(typ protowire.Type, b []byte, unmarshal func([]byte) error) (int, error) {
    if typ != protowire.BytesType { return 0, ErrWireType }
    v, n := protowire.ConsumeBytes(b)
    if n < 0 { return 0, protowire.ParseError(n) }
    return n, unmarshal(v)
}

// consumeRepeatedVarint reads either a packed run or a single unpacked element.
func consumeRepeatedVarint(typ protowire.Type, b []byte, add func(uint64)) (int, error) {
    if typ == protowire.VarintType {
        v, n, err := consumeVarint(typ, b)
        if err == nil { add(v) }
        return n, err
    }
    if typ != protowire.BytesType { return 0, ErrWireType }
    packed, n := protowire.ConsumeBytes(b)
    if n < 0 { return 0, protowire.ParseError(n) }
    for len(packed) > 0 {
        v, m := protowire.ConsumeVarint(packed)
        if m < 0 { return 0, protowire.ParseError(m) }
        add(v)
        packed = packed[m:]
    }
    return n, nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
    n := protowire.ConsumeFieldValue(num, typ, b)
    if n < 0 { return 0, protowire.ParseError(n) }
    return n, nil
}

// knownEnum narrows a decoded varint to an enum, mapping values outside the
// table to unknown.
func knownEnum[E ~int32](v uint64, names map[E]string, unknown E) E {
    e := E(int32(v))
    if _, ok := names[e]; ok { return e }
    return unknown
}
