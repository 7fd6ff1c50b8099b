// Package peer tracks the leader's per-peer replication bookkeeping: the
// next log index to send and the highest index known to match.
//
// This is a deliberately narrow descendant of a fuller peer-progress
// tracker that also modeled probe/replicate/snapshot sub-states and a
// sliding window of in-flight requests. Those exist to let a leader pipeline
// several AppendEntries rounds to a lagging follower before waiting for
// acknowledgment. This module replicates one round at a time and never
// sends snapshots to peers, so neither is needed: NextIndex alone is enough
// to say what to send next, and a failed AppendEntries always backs it off
// by exactly one.
package peer

// Node is the leader's view of a single peer's replication progress.
type Node struct {
	ID uint64

	// NextIndex is the next log index this leader will send to the peer.
	NextIndex uint64

	// Matched is the highest log index this leader knows the peer has
	// durably stored, or 0 if unknown.
	Matched uint64
}

// New returns a Node whose NextIndex starts at nextIndex. Per Raft, a newly
// elected leader initializes every peer's NextIndex to its own
// lastLogIndex+1.
func New(id, nextIndex uint64) *Node {
	return &Node{ID: id, NextIndex: nextIndex}
}

// HandleAppendSuccess records that the peer has durably stored every entry
// up to and including matchIndex.
func (n *Node) HandleAppendSuccess(matchIndex uint64) {
	if matchIndex > n.Matched {
		n.Matched = matchIndex
	}
	if matchIndex+1 > n.NextIndex {
		n.NextIndex = matchIndex + 1
	}
}

// HandleAppendFailure backs NextIndex off by one, to a minimum of 1, per
// the log-matching-property retry rule: the leader decrements nextIndex and
// retries rather than probing for the exact point of divergence.
func (n *Node) HandleAppendFailure() {
	if n.NextIndex > 1 {
		n.NextIndex--
	}
}

// Reset reinitializes the peer's progress, as a newly elected leader does
// for every peer before it sends its first round of AppendEntries.
func (n *Node) Reset(nextIndex uint64) {
	n.NextIndex = nextIndex
	n.Matched = 0
}
