package logutil

import (
    "bytes"
    "encoding/json"
    "errors"
    "log"
    "strings"
    "testing"
)

func TestTextMode(t *testing.T) {
    SetJSON(false)
    var buf bytes.Buffer
    l := log.New(&buf, "", 0)
    Warnf(l, "peer %s slow", "n1")
    Event(l, "info", "worker added", "id", 3, "host", "h:1")
    out := buf.String()
    if !strings.Contains(out, "WARN peer n1 slow") { t.Fatalf("missing warn line: %q", out) }
    if !strings.Contains(out, "INFO worker added id=3 host=h:1") { t.Fatalf("missing event line: %q", out) }
}

func TestJSONMode(t *testing.T) {
    SetJSON(true)
    defer SetJSON(false)
    var buf bytes.Buffer
    l := log.New(&buf, "", 0)
    Event(l, "error", "fetch failed", "url", "/api/status", "err", errors.New("boom"))
    var evt map[string]any
    if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &evt); err != nil { t.Fatalf("not json: %v: %q", err, buf.String()) }
    if evt["level"] != "error" || evt["msg"] != "fetch failed" || evt["err"] != "boom" || evt["url"] != "/api/status" {
        t.Fatalf("unexpected event: %v", evt)
    }
}

func TestJSONFromEnv(t *testing.T) {
    cases := []struct {
        env  map[string]string
        want bool
    }{
        {map[string]string{}, false},
        {map[string]string{"DASH_LOG_JSON": "1"}, true},
        {map[string]string{"DASH_LOG_FORMAT": "JSON"}, true},
        {map[string]string{"DASH_LOG_FORMAT": "text"}, false},
    }
    for _, c := range cases {
        if got := jsonFromEnv(func(k string) string { return c.env[k] }); got != c.want {
            t.Fatalf("env %v: got %v want %v", c.env, got, c.want)
        }
    }
}
