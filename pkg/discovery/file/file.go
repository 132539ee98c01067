package file

import (
    "bufio"
    "log"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/clusterdash/pkg/discovery"
    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
)

// Options configures file/ENV-based discovery.
type Options struct {
    // Path is a file or glob; each line holds one or more comma-separated
    // seeds and '#' starts a comment line.
    Path string
    // Env names a variable that overrides the file when non-empty.
    Env string
    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration
    Logger  *log.Logger
}

type source struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    opts.Logger = logutil.Or(opts.Logger)
    return &source{opts: opts}
}

func (s *source) Seeds() []string {
    if s.opts.Env != "" {
        if v := os.Getenv(s.opts.Env); strings.TrimSpace(v) != "" { return discovery.Normalize(discovery.SplitCSV(v)) }
    }
    if s.opts.Path == "" { return nil }
    s.mu.Lock(); defer s.mu.Unlock()
    if now := time.Now(); s.cache == nil || now.Sub(s.last) >= s.opts.Refresh {
        if seeds, ok := s.load(); ok {
            s.cache = seeds
            s.last = now
        }
    }
    return append([]string(nil), s.cache...)
}

// load reads every file matching Path. ok is false when nothing could be
// read, leaving the previous cache in place.
func (s *source) load() ([]string, bool) {
    matches, err := filepath.Glob(s.opts.Path)
    if err != nil {
        logutil.Warnf(s.opts.Logger, "discovery: bad seed pattern %q: %v", s.opts.Path, err)
        return nil, false
    }
    var all []string
    read := false
    for _, m := range matches {
        seeds, err := readFile(m)
        if err != nil {
            logutil.Warnf(s.opts.Logger, "discovery: reading %s: %v", m, err)
            continue
        }
        read = true
        all = append(all, seeds...)
    }
    return discovery.Normalize(all), read
}

func readFile(path string) ([]string, error) {
    f, err := os.Open(path)
    if err != nil { return nil, err }
    defer f.Close()
    var seeds []string
    sc := bufio.NewScanner(f)
    for sc.Scan() {
        line := strings.TrimSpace(sc.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        seeds = append(seeds, discovery.SplitCSV(line)...)
    }
    return seeds, sc.Err()
}
