package consensus

import (
    "fmt"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
    "github.com/amirimatin/clusterdash/pkg/registry"
)

// Result is what applying a command did to the registry. A remove of an
// unknown host leaves Worker nil and Outcome Unchanged.
type Result struct {
    Op      Op
    Worker  *common.WorkerNode
    Outcome registry.Outcome
}

// Dispatch applies cmd to st. Raft FSMs and the local engine share it so a
// command means the same thing on every replica.
func Dispatch(st registry.State, cmd Command) (Result, error) {
    switch cmd.Op {
    case OpUpsertWorker:
        var w common.WorkerNode
        if err := w.Unmarshal(cmd.Payload); err != nil { return Result{}, fmt.Errorf("consensus: decode worker: %w", err) }
        stored, out, err := st.ApplyUpsert(&w)
        if err != nil { return Result{}, err }
        return Result{Op: cmd.Op, Worker: stored, Outcome: out}, nil
    case OpRemoveWorker:
        w, err := st.ApplyRemove(string(cmd.Payload))
        if err != nil { return Result{}, err }
        if w == nil { return Result{Op: cmd.Op}, nil }
        return Result{Op: cmd.Op, Worker: w, Outcome: registry.Removed}, nil
    }
    return Result{}, fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
}
