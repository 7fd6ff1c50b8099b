package core

import (
	"github.com/google/uuid"

	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raft/raftpb"
)

// reconcileTerm implements the term-reconciliation rule every inbound RPC
// applies before its kind-specific handler runs: a higher term always wins,
// demoting the receiver to follower and clearing its vote.
//
// This always clears votedFor in the same step as the term bump. A
// predecessor implementation this package's handling logic was translated
// from updated the term without clearing the vote, which let a replica
// carry a stale vote into a brand new term; there is nothing to vote for
// yet in a term that just started, so that must never survive the bump.
func (c *Core) reconcileTerm(term uint64) {
	if term <= c.term {
		return
	}
	c.transitionToFollower(term, conf.InvalidID)
}

func (c *Core) transitionToFollower(term, leader uint64) {
	if term != c.term {
		if err := c.store.SetTermAndVote(term, conf.InvalidID); err != nil {
			fatal("persist term bump", err)
		}
		c.term = term
	}
	c.role = Follower
	c.state = followerState{}
	c.currentLeader = leader
	c.resetElectionDeadline()
}

func (c *Core) becomeCandidate() {
	newTerm := c.term + 1
	if err := c.store.SetTermAndVote(newTerm, c.id); err != nil {
		fatal("persist candidacy", err)
	}
	c.term = newTerm
	c.role = Candidate
	c.currentLeader = conf.InvalidID
	c.state = &candidateState{votes: map[uint64]struct{}{c.id: {}}}
	c.resetElectionDeadline()
}

func (c *Core) becomeLeader() {
	c.role = Leader
	c.currentLeader = c.id
	last := c.store.LastEntry()
	for _, id := range c.peers {
		c.peerNodes[id].Reset(last.Index + 1)
	}
	c.state = &leaderState{peers: c.peerNodes}
	c.resetHeartbeatDeadline()

	// A leader appends a no-op entry in its own term as soon as it takes
	// office. Raft forbids committing an entry from a prior term purely
	// because a majority acknowledged it (see handleAppendEntriesResponse);
	// once this entry from the current term commits, the log-matching
	// property means every entry before it on a majority of replicas is
	// implicitly committed too, so stale entries left over from a deposed
	// leader do not have to wait for a fresh client write to move forward.
	noop := raftpb.Entry{Index: last.Index + 1, Term: c.term, Type: raftpb.EntryNoOp}
	if err := c.store.Append(noop); err != nil {
		fatal("append no-op entry on election", err)
	}
	// Re-check quorum against the leader's own log immediately: with no
	// peers at all, majority is 1 and this entry is already committed the
	// instant it is appended, with no AppendEntries response ever going to
	// arrive to trigger the usual maybeAdvanceCommit call.
	c.maybeAdvanceCommit()
	c.broadcastAppend(false)
	c.logger.WithField("term", c.term).Info("raft: became leader")
}

func (c *Core) startElection() {
	if len(c.peers) == 0 {
		// Single-node cluster: a majority of one is trivially met.
		c.becomeCandidate()
		c.becomeLeader()
		return
	}
	c.becomeCandidate()
	last := c.store.LastEntry()
	for _, id := range c.peers {
		c.send(id, &raftpb.RequestVoteRequest{
			SourceID:     c.id,
			CorrID:       uuid.New(),
			Term:         c.term,
			LastLogIndex: last.Index,
			LastLogTerm:  last.Term,
		})
	}
	c.logger.WithField("term", c.term).Info("raft: starting election")
}
