// Package ui renders dashboard output for terminals: section titles,
// notifications for failed calls and worker tables.
package ui

import (
    "errors"
    "fmt"
    "io"
    "strconv"
    "strings"
    "text/tabwriter"
    "time"

    "github.com/fatih/color"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

var titleColor = color.New(color.FgBlue, color.Bold)

// SetColor forces colored output on or off, overriding terminal detection.
func SetColor(enabled bool) { color.NoColor = !enabled }

// Title writes text as a section heading followed by a blank line.
func Title(w io.Writer, text string) error {
    if _, err := titleColor.Fprint(w, text); err != nil { return err }
    _, err := io.WriteString(w, "\n\n")
    return err
}

// Status is the severity of a Toast.
type Status string

const (
    StatusError   Status = "error"
    StatusWarning Status = "warning"
    StatusSuccess Status = "success"
    StatusInfo    Status = "info"
)

// ToastDuration is how long a toast stays visible in interactive frontends.
const ToastDuration = 5 * time.Second

var statusColors = map[Status]*color.Color{
    StatusError:   color.New(color.FgRed),
    StatusWarning: color.New(color.FgYellow),
    StatusSuccess: color.New(color.FgGreen),
    StatusInfo:    color.New(color.FgBlue),
}

// Toast is a transient notification.
type Toast struct {
    Title       string        `json:"title"`
    Description string        `json:"description,omitempty"`
    Status      Status        `json:"status"`
    Duration    time.Duration `json:"duration"`
    Closable    bool          `json:"isClosable"`
}

// Notifier turns failures into toasts and prints them to W.
type Notifier struct {
    W io.Writer
}

func NewNotifier(w io.Writer) *Notifier { return &Notifier{W: w} }

// Notify builds a toast for v and renders it. For errors the title is the
// message and the description is the wrapped cause, if any; other values are
// formatted with fmt.Sprint. status defaults to StatusError.
func (n *Notifier) Notify(v any, status ...Status) Toast {
    t := NewToast(v, status...)
    if n != nil && n.W != nil { t.Render(n.W) }
    return t
}

func NewToast(v any, status ...Status) Toast {
    t := Toast{Status: StatusError, Duration: ToastDuration, Closable: true}
    if len(status) > 0 && status[0] != "" { t.Status = status[0] }
    if err, ok := v.(error); ok {
        t.Title = err.Error()
        if cause := errors.Unwrap(err); cause != nil { t.Description = cause.Error() }
    } else {
        t.Title = fmt.Sprint(v)
    }
    return t
}

// Render writes the toast as "[status] title" with the description indented
// on the next line.
func (t Toast) Render(w io.Writer) {
    c, ok := statusColors[t.Status]
    if !ok { c = statusColors[StatusInfo] }
    _, _ = c.Fprintf(w, "[%s] %s\n", t.Status, t.Title)
    if t.Description != "" { _, _ = fmt.Fprintf(w, "    %s\n", t.Description) }
}

// WorkerTable writes one aligned row per worker.
func WorkerTable(w io.Writer, workers []*common.WorkerNode) error {
    tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
    fmt.Fprintln(tw, "ID\tTYPE\tHOST\tSTATE\tPARALLELISM\tVERSION\tSTARTED")
    for _, n := range workers {
        if n == nil { continue }
        parallelism, version, started := "-", "-", "-"
        if n.Property != nil { parallelism = strconv.FormatUint(uint64(n.Property.Parallelism), 10) }
        if n.Resource != nil && n.Resource.RwVersion != "" { version = n.Resource.RwVersion }
        if n.StartedAt != nil { started = time.Unix(int64(*n.StartedAt), 0).UTC().Format(time.RFC3339) }
        fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
            n.ID, n.Type.ShortName(), orDash(n.Addr()), strings.ToLower(n.State.String()), parallelism, version, started)
    }
    return tw.Flush()
}

func orDash(s string) string {
    if s == "" { return "-" }
    return s
}
