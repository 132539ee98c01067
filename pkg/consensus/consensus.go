package consensus

import (
    "context"
    "errors"
    "fmt"
    "time"

    "google.golang.org/protobuf/encoding/protowire"

    "github.com/amirimatin/clusterdash/pkg/proto/common"
)

var (
    ErrNotLeader  = errors.New("consensus: not leader")
    ErrNotStarted = errors.New("consensus: not started")
    ErrUnknownOp  = errors.New("consensus: unknown command")
)

// Op names a registry mutation.
type Op string

const (
    OpUpsertWorker Op = "UpsertWorker"
    OpRemoveWorker Op = "RemoveWorker"
)

// Command is one log entry. Payload is a binary WorkerNode for OpUpsertWorker
// and the host:port for OpRemoveWorker.
type Command struct {
    Op      Op
    Payload []byte
}

// UpsertWorker builds the command registering w.
func UpsertWorker(w *common.WorkerNode) (Command, error) {
    b, err := w.Marshal()
    if err != nil { return Command{}, err }
    return Command{Op: OpUpsertWorker, Payload: b}, nil
}

// RemoveWorker builds the command dropping the worker at host.
func RemoveWorker(host string) Command { return Command{Op: OpRemoveWorker, Payload: []byte(host)} }

// Encode renders the command as a small protobuf message: op is field 1 and
// payload field 2.
func (c Command) Encode() []byte {
    b := protowire.AppendTag(nil, 1, protowire.BytesType)
    b = protowire.AppendString(b, string(c.Op))
    b = protowire.AppendTag(b, 2, protowire.BytesType)
    return protowire.AppendBytes(b, c.Payload)
}

func DecodeCommand(b []byte) (Command, error) {
    var c Command
    for len(b) > 0 {
        num, typ, n := protowire.ConsumeTag(b)
        if n < 0 { return c, protowire.ParseError(n) }
        b = b[n:]
        if typ != protowire.BytesType {
            n = protowire.ConsumeFieldValue(num, typ, b)
            if n < 0 { return c, protowire.ParseError(n) }
            b = b[n:]
            continue
        }
        v, n := protowire.ConsumeBytes(b)
        if n < 0 { return c, protowire.ParseError(n) }
        switch num {
        case 1:
            c.Op = Op(v)
        case 2:
            c.Payload = append([]byte(nil), v...)
        }
        b = b[n:]
    }
    if c.Op == "" { return c, fmt.Errorf("%w: missing op", ErrUnknownOp) }
    return c, nil
}

// Consensus orders registry commands. Apply returns the state's response to
// the command, see Dispatch.
type Consensus interface {
    Start(ctx context.Context) error
    Apply(cmd Command, timeout time.Duration) (any, error)
    IsLeader() bool
    Leader() (id string, addr string, ok bool)
    Term() uint64
    Stop() error
}
