package metrics

import (
    "testing"

    "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetWorkerCountsReplacesLabels(t *testing.T) {
    Register()
    Register()
    SetWorkerCounts(map[string]int{"frontend": 2, "compute-node": 3})
    if got := testutil.ToFloat64(Workers.WithLabelValues("compute-node")); got != 3 { t.Fatalf("compute-node = %v", got) }
    SetWorkerCounts(map[string]int{"meta": 1})
    if n := testutil.CollectAndCount(Workers); n != 1 { t.Fatalf("series after reset = %d", n) }
}
