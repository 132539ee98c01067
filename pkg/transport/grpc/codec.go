package grpc

import (
    "encoding/json"

    "google.golang.org/grpc/encoding"
)

// codecName is also the content subtype clients request.
const codecName = "json"

// jsonCodec carries the dashboard messages as JSON, so the service needs no
// generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
func (jsonCodec) Name() string                    { return codecName }

func init() { encoding.RegisterCodec(jsonCodec{}) }
