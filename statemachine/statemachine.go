// Package statemachine defines the contract the replicated state machine
// must satisfy and ships a reference key/value implementation.
package statemachine

import "github.com/cittaliu/raft4j/raft/raftpb"

// Snapshot is a compact summary of the state machine's state as of Index,
// opaque to the core state machine.
type Snapshot struct {
	Index uint64
	Term  uint64
	Data  []byte
}

// StateMachine is the application the replicated log drives. A replica
// applies committed entries to it in order and consults it for the latest
// snapshot so the log can be truncated.
type StateMachine interface {
	// Apply applies entries, which must be contiguous and begin at
	// LastAppliedIndex()+1.
	Apply(entries []raftpb.Entry) error
	// LastAppliedIndex returns the index of the last applied entry, or 0.
	LastAppliedIndex() uint64
	// LatestSnapshot returns the most recent snapshot, or (Snapshot{}, false)
	// if none has been taken yet.
	LatestSnapshot() (Snapshot, bool)
}
