package tracing

import (
    "bytes"
    "context"
    "errors"
    "strings"
    "testing"
)

func TestStartSpanDisabledIsNoop(t *testing.T) {
    ctx := context.Background()
    got, span := StartSpan(ctx, "noop")
    if got != ctx { t.Fatalf("context replaced while disabled") }
    span.End(errors.New("ignored"))
}

func TestSetupExportsSpans(t *testing.T) {
    var buf bytes.Buffer
    shutdown, err := Setup(true, &buf)
    if err != nil { t.Fatalf("setup: %v", err) }
    _, span := StartSpan(context.Background(), "client.get", "url", "/api/status")
    span.End(errors.New("502 Bad Gateway"))
    if err := shutdown(context.Background()); err != nil { t.Fatalf("shutdown: %v", err) }
    out := buf.String()
    if !strings.Contains(out, "client.get") || !strings.Contains(out, "/api/status") { t.Fatalf("span not exported: %s", out) }
    if _, span := StartSpan(context.Background(), "after"); span.span != nil { t.Fatalf("span started after shutdown") }
}
