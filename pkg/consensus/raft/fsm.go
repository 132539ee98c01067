package raftcons

import (
    "io"

    "github.com/hashicorp/raft"

    c "github.com/amirimatin/clusterdash/pkg/consensus"
    "github.com/amirimatin/clusterdash/pkg/registry"
)

// registryFSM feeds committed log entries into a registry. Apply returns a
// consensus.Result or an error, which Node.Apply hands back to the caller.
type registryFSM struct {
    st registry.State
}

func newRegistryFSM(st registry.State) *registryFSM { return &registryFSM{st: st} }

func (f *registryFSM) Apply(l *raft.Log) interface{} {
    cmd, err := c.DecodeCommand(l.Data)
    if err != nil { return err }
    res, err := c.Dispatch(f.st, cmd)
    if err != nil { return err }
    return res
}

func (f *registryFSM) Snapshot() (raft.FSMSnapshot, error) {
    blob, err := f.st.Snapshot()
    if err != nil { return nil, err }
    return &snapshot{blob: blob}, nil
}

func (f *registryFSM) Restore(rc io.ReadCloser) error {
    defer rc.Close()
    data, err := io.ReadAll(rc)
    if err != nil { return err }
    return f.st.Restore(data)
}

type snapshot struct {
    blob []byte
}

func (s *snapshot) Persist(sink raft.SnapshotSink) error {
    if _, err := sink.Write(s.blob); err != nil { _ = sink.Cancel(); return err }
    return sink.Close()
}

func (s *snapshot) Release() {}

var _ raft.FSM = (*registryFSM)(nil)
