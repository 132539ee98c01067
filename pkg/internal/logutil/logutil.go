// Package logutil adds levels and an optional JSON line format on top of the
// standard library logger that every component receives through its options.
package logutil

import (
    "encoding/json"
    "fmt"
    "io"
    "log"
    "os"
    "strings"
    "sync/atomic"
    "time"
)

var jsonMode atomic.Bool

func init() {
    jsonMode.Store(jsonFromEnv(os.Getenv))
}

func jsonFromEnv(getenv func(string) string) bool {
    return getenv("DASH_LOG_JSON") == "1" || strings.EqualFold(getenv("DASH_LOG_FORMAT"), "json")
}

// SetJSON switches every helper between text and JSON output.
func SetJSON(enabled bool) { jsonMode.Store(enabled) }

// JSON reports whether JSON output is enabled.
func JSON() bool { return jsonMode.Load() }

// Or returns l, or the default logger when l is nil.
func Or(l *log.Logger) *log.Logger {
    if l == nil { return log.Default() }
    return l
}

// Discard is a logger that drops everything, handy in tests.
func Discard() *log.Logger { return log.New(io.Discard, "", 0) }

func Infof(l *log.Logger, f string, args ...any)  { logf(l, "info", f, args...) }
func Warnf(l *log.Logger, f string, args ...any)  { logf(l, "warn", f, args...) }
func Errorf(l *log.Logger, f string, args ...any) { logf(l, "error", f, args...) }

// Event logs msg at level with structured fields. In text mode the fields are
// appended as key=value pairs in the order given.
func Event(l *log.Logger, level, msg string, kv ...any) {
    l = Or(l)
    if jsonMode.Load() {
        evt := map[string]any{"ts": time.Now().UTC().Format(time.RFC3339Nano), "level": level, "msg": msg}
        for i := 0; i+1 < len(kv); i += 2 {
            evt[fmt.Sprint(kv[i])] = jsonValue(kv[i+1])
        }
        b, _ := json.Marshal(evt)
        l.Println(string(b))
        return
    }
    var sb strings.Builder
    sb.WriteString(msg)
    for i := 0; i+1 < len(kv); i += 2 {
        fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
    }
    prefixed(l, level).Print(sb.String())
}

func logf(l *log.Logger, level, f string, args ...any) {
    if jsonMode.Load() {
        Event(l, level, fmt.Sprintf(f, args...))
        return
    }
    prefixed(Or(l), level).Printf(f, args...)
}

func prefixed(l *log.Logger, level string) *log.Logger {
    return log.New(l.Writer(), strings.ToUpper(level)+" "+l.Prefix(), l.Flags())
}

// jsonValue keeps errors readable; json.Marshal renders them as {}.
func jsonValue(v any) any {
    if err, ok := v.(error); ok { return err.Error() }
    return v
}
