// Package discovery supplies gossip seed addresses to dashboard nodes and
// worker agents.
package discovery

import (
    "sort"
    "strings"
)

// Discovery abstracts how seed nodes are provided.
type Discovery interface {
    Seeds() []string
}

// Func adapts a function to Discovery.
type Func func() []string

func (f Func) Seeds() []string { return f() }

// Merge returns a Discovery yielding the union of every source.
func Merge(ds ...Discovery) Discovery {
    return Func(func() []string {
        var all []string
        for _, d := range ds {
            if d != nil { all = append(all, d.Seeds()...) }
        }
        return Normalize(all)
    })
}

// SplitCSV splits a comma-separated list, dropping blanks.
func SplitCSV(csv string) []string {
    var out []string
    for _, p := range strings.Split(csv, ",") {
        if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
    }
    return out
}

// Normalize trims, de-duplicates and sorts seeds.
func Normalize(seeds []string) []string {
    set := make(map[string]struct{}, len(seeds))
    out := make([]string, 0, len(seeds))
    for _, s := range seeds {
        s = strings.TrimSpace(s)
        if s == "" { continue }
        if _, ok := set[s]; ok { continue }
        set[s] = struct{}{}
        out = append(out, s)
    }
    sort.Strings(out)
    if len(out) == 0 { return nil }
    return out
}
