package raftcons

import (
    "log"

    "github.com/hashicorp/go-hclog"

    "github.com/amirimatin/clusterdash/pkg/internal/logutil"
)

// newHCLogger routes raft's logging to the node logger's output, in JSON when
// the rest of the process logs JSON.
func newHCLogger(l *log.Logger, nodeID, level string) hclog.Logger {
    if level == "" { level = "warn" }
    return hclog.New(&hclog.LoggerOptions{
        Name:       "raft." + nodeID,
        Level:      hclog.LevelFromString(level),
        Output:     logutil.Or(l).Writer(),
        JSONFormat: logutil.JSON(),
    })
}
