package core

import (
	"github.com/google/uuid"

	"github.com/cittaliu/raft4j/raft/peer"
	"github.com/cittaliu/raft4j/raft/raftpb"
)

// broadcastAppend sends one round of AppendEntries to every peer. When
// heartbeatOnly is true the payload is always empty regardless of how far
// behind a peer's nextIndex is — a heartbeat's only job is to suppress
// election timeouts and carry the leader's commitIndex forward, not to
// replicate; replication happens on the very next round triggered by a
// proposal or failure retry.
func (c *Core) broadcastAppend(heartbeatOnly bool) {
	ls := c.leaderState()
	if ls == nil {
		return
	}
	for _, p := range ls.peers {
		c.sendAppendToWithMode(p, heartbeatOnly)
	}
}

func (c *Core) sendAppendTo(p *peer.Node) {
	c.sendAppendToWithMode(p, false)
}

func (c *Core) sendAppendToWithMode(p *peer.Node, heartbeatOnly bool) {
	prevIndex := p.NextIndex - 1
	prev, err := c.store.Entry(prevIndex)
	if err != nil {
		// The entry this peer would need as its match point has already
		// been compacted away by a local snapshot. Installing a snapshot
		// on a lagging peer is out of scope for this module; the peer
		// will remain behind until it catches up through some other
		// means (e.g. being rebuilt from a snapshot out of band).
		c.logger.WithField("peer", p.ID).Warn("raft: peer needs a snapshot this replica cannot send")
		return
	}

	var entries []raftpb.Entry
	if !heartbeatOnly {
		last := c.store.LastEntry()
		if p.NextIndex <= last.Index {
			entries, err = c.store.Slice(p.NextIndex, last.Index+1)
			if err != nil {
				c.logger.WithError(err).WithField("peer", p.ID).Error("raft: failed to read entries to replicate")
				return
			}
		}
	}

	c.send(p.ID, &raftpb.AppendEntriesRequest{
		SourceID:     c.id,
		CorrID:       uuid.New(),
		Term:         c.term,
		PrevLogIndex: prev.Index,
		PrevLogTerm:  prev.Term,
		Entries:      entries,
		LeaderCommit: c.commitIndex,
	})
}

// maybeAdvanceCommit scans forward from commitIndex looking for the
// furthest index acknowledged by a majority of the cluster (this replica
// plus however many peers report Matched >= idx). Because peer.Node.Matched
// only ever increases, the set of peers satisfying Matched >= idx can only
// shrink as idx grows, so the first idx that fails to reach a majority ends
// the scan — no later idx can do better.
//
// An index whose term differs from the current term is skipped rather than
// committed, even if a majority already matches it: Raft forbids a leader
// from concluding an entry is committed solely because a majority stored
// it, unless that entry was created in the leader's current term. Once a
// later, current-term entry does reach majority and commits, the
// log-matching property guarantees every entry before it is committed too,
// so the scan does not need to, and must not, commit the skipped entry
// directly.
func (c *Core) maybeAdvanceCommit() {
	ls := c.leaderState()
	if ls == nil {
		return
	}
	last := c.store.LastEntry().Index
	for idx := c.commitIndex + 1; idx <= last; idx++ {
		entry, err := c.store.Entry(idx)
		if err != nil {
			break
		}
		count := 1 // the leader itself always has this entry.
		for _, p := range ls.peers {
			if p.Matched >= idx {
				count++
			}
		}
		if count < c.majority() {
			break
		}
		if entry.Term == c.term {
			c.commitIndex = idx
		}
	}
}
