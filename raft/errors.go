package raft

import "errors"

var (
	// errNotLeader is returned by Propose when this replica is not the
	// current leader; the caller should retry against leaderRedirect.
	errNotLeader = errors.New("raft: not the leader")
	// errStopped is returned by Propose when the replica's event loop has
	// already exited. (Status has no error result; it returns a zero
	// core.Status in that case.)
	errStopped = errors.New("raft: replica stopped")
)
