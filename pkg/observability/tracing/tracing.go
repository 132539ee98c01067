package tracing

import (
    "context"
    "io"
    "sync/atomic"

    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/codes"
    "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
    "go.opentelemetry.io/otel/trace"
)

const tracerName = "clusterdash"

var enabled atomic.Bool

// Setup installs a global tracer provider exporting to w (stdout when nil)
// when enable is true. The returned shutdown flushes pending spans.
func Setup(enable bool, w io.Writer) (func(context.Context) error, error) {
    enabled.Store(enable)
    if !enable {
        return func(context.Context) error { return nil }, nil
    }
    opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
    if w != nil { opts = append(opts, stdouttrace.WithWriter(w)) }
    exp, err := stdouttrace.New(opts...)
    if err != nil {
        return nil, err
    }
    tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
    otel.SetTracerProvider(tp)
    return func(ctx context.Context) error {
        enabled.Store(false)
        return tp.Shutdown(ctx)
    }, nil
}

// Span is a started span; End records err, if any, before closing it.
type Span struct{ span trace.Span }

func (s Span) End(err error) {
    if s.span == nil { return }
    if err != nil {
        s.span.RecordError(err)
        s.span.SetStatus(codes.Error, err.Error())
    }
    s.span.End()
}

// StartSpan starts a span with string attributes given as key/value pairs.
// It is a no-op unless tracing is enabled.
func StartSpan(ctx context.Context, name string, kv ...string) (context.Context, Span) {
    if !enabled.Load() {
        return ctx, Span{}
    }
    attrs := make([]attribute.KeyValue, 0, len(kv)/2)
    for i := 0; i+1 < len(kv); i += 2 { attrs = append(attrs, attribute.String(kv[i], kv[i+1])) }
    ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
    return ctx, Span{span: span}
}
