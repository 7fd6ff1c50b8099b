package core

import (
	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raft/raftpb"
)

// candidateUpToDate reports whether a candidate advertising
// (lastLogIndex, lastLogTerm) is at least as up-to-date as this replica's
// own log, the deciding factor in whether a vote may be granted.
func (c *Core) candidateUpToDate(lastLogIndex, lastLogTerm uint64) bool {
	local := c.store.LastEntry()
	if lastLogTerm != local.Term {
		return lastLogTerm > local.Term
	}
	return lastLogIndex >= local.Index
}

func (c *Core) handleRequestVoteRequest(m *raftpb.RequestVoteRequest) {
	grant := false
	if m.Term == c.term {
		votedFor := c.store.VotedFor()
		if (votedFor == conf.InvalidID || votedFor == m.SourceID) && c.candidateUpToDate(m.LastLogIndex, m.LastLogTerm) {
			grant = true
		}
	}
	if grant {
		if err := c.store.SetTermAndVote(c.term, m.SourceID); err != nil {
			fatal("persist vote", err)
		}
		c.resetElectionDeadline()
	}
	c.send(m.SourceID, &raftpb.RequestVoteResponse{
		SourceID:    c.id,
		CorrID:      m.CorrID,
		Term:        c.term,
		VoteGranted: grant,
	})
}

func (c *Core) handleRequestVoteResponse(m *raftpb.RequestVoteResponse) {
	if c.role != Candidate || m.Term != c.term || !m.VoteGranted {
		return
	}
	cs := c.candidateState()
	if cs == nil {
		return
	}
	cs.votes[m.SourceID] = struct{}{}
	if len(cs.votes) >= c.majority() {
		c.becomeLeader()
	}
}

func (c *Core) handleAppendEntriesRequest(m *raftpb.AppendEntriesRequest) {
	if m.Term < c.term {
		c.send(m.SourceID, &raftpb.AppendEntriesResponse{SourceID: c.id, CorrID: m.CorrID, Term: c.term, Success: false})
		return
	}

	// A valid AppendEntries from the current term's leader always resets
	// the election clock and demotes a same-term candidate, even though
	// reconcileTerm already handled the term != c.term case.
	c.transitionToFollower(c.term, m.SourceID)

	prev, err := c.store.Entry(m.PrevLogIndex)
	if err != nil || prev.Term != m.PrevLogTerm {
		c.send(m.SourceID, &raftpb.AppendEntriesResponse{SourceID: c.id, CorrID: m.CorrID, Term: c.term, Success: false})
		return
	}

	conflictAt := -1
	for i, e := range m.Entries {
		existing, err := c.store.Entry(e.Index)
		if err != nil || existing.Term != e.Term {
			conflictAt = i
			break
		}
	}
	if conflictAt >= 0 {
		if err := c.store.TruncateAndAppend(m.Entries[conflictAt:]); err != nil {
			fatal("persist replicated entries", err)
		}
	}

	lastNew := m.PrevLogIndex
	if len(m.Entries) > 0 {
		lastNew = m.Entries[len(m.Entries)-1].Index
	}
	if m.LeaderCommit > c.commitIndex {
		newCommit := m.LeaderCommit
		if lastNew < newCommit {
			newCommit = lastNew
		}
		if newCommit > c.commitIndex {
			c.commitIndex = newCommit
		}
	}

	c.send(m.SourceID, &raftpb.AppendEntriesResponse{
		SourceID:   c.id,
		CorrID:     m.CorrID,
		Term:       c.term,
		Success:    true,
		MatchIndex: lastNew,
	})
}

func (c *Core) handleAppendEntriesResponse(m *raftpb.AppendEntriesResponse) {
	if c.role != Leader || m.Term != c.term {
		return
	}
	ls := c.leaderState()
	if ls == nil {
		return
	}
	p, ok := ls.peers[m.SourceID]
	if !ok {
		return
	}
	if m.Success {
		p.HandleAppendSuccess(m.MatchIndex)
		c.maybeAdvanceCommit()
		return
	}
	p.HandleAppendFailure()
	c.sendAppendTo(p)
}

func (c *Core) handleNewEntryRequest(m *raftpb.NewEntryRequest) {
	index, accepted := c.proposeInternal(m.Data)
	redirect := c.currentLeader
	if accepted {
		redirect = conf.InvalidID
	}
	c.send(m.SourceID, &raftpb.NewEntryResponse{
		SourceID:       c.id,
		CorrID:         m.CorrID,
		Accepted:       accepted,
		Index:          index,
		LeaderRedirect: redirect,
	})
}
