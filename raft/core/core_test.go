package core

import (
	"testing"
	"time"

	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raft/peer"
	"github.com/cittaliu/raft4j/raft/raftpb"
	"github.com/cittaliu/raft4j/raftlog"
	"github.com/cittaliu/raft4j/statemachine"
)

// fakeClock is a deterministic clock.Clock for tests: Now() is whatever was
// last set, and NewTimer returns a channel the test never has to drain
// (Tick is invoked directly by the tests instead of waiting on a timer).
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	return make(chan time.Time), func() bool { return true }
}

// network wires a small set of in-process Core instances together: sending
// a message routes synchronously into the target's Step, so a test can
// drive an entire election or replication round with a handful of calls
// and inspect every node's resulting state directly. This is a much
// smaller descendant of the network simulator this package's test style is
// grounded on, which additionally modeled partitions and dropped messages;
// those are exercised instead at the transport.Bus level.
type network struct {
	nodes map[uint64]*Core
	clk   *fakeClock
}

type routingDispatcher struct {
	net *network
}

func (d *routingDispatcher) Send(to uint64, msg raftpb.Message) error {
	if n, ok := d.net.nodes[to]; ok {
		n.Step(msg)
	}
	return nil
}

func newNetwork(ids []uint64) *network {
	net := &network{nodes: make(map[uint64]*Core), clk: &fakeClock{now: time.Unix(0, 0)}}
	for _, id := range ids {
		var peers []uint64
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		cfg := conf.Config{
			ID:                 id,
			Peers:              peers,
			ElectionTimeoutMin: 10 * time.Millisecond,
			ElectionTimeoutMax: 20 * time.Millisecond,
			HeartbeatInterval:  time.Millisecond,
			InboxSize:          64,
		}
		net.nodes[id] = New(cfg, raftlog.NewMemory(), statemachine.NewKVStore(), &routingDispatcher{net: net}, net.clk)
	}
	return net
}

func (n *network) leader() *Core {
	for _, c := range n.nodes {
		if c.role == Leader {
			return c
		}
	}
	return nil
}

func TestElection_ThreeNodeClusterElectsLeaderAndReplicates(t *testing.T) {
	net := newNetwork([]uint64{1, 2, 3})

	net.nodes[1].startElection()

	l := net.leader()
	if l == nil {
		t.Fatalf("expected a leader after election, got none")
	}
	if l.id != 1 {
		t.Fatalf("expected node 1 to win the election, got node %d", l.id)
	}

	idx, accepted, _ := l.Propose(statemachine.EncodeCommand(statemachine.Command{Op: statemachine.OpSet, Key: "x", Value: "1"}))
	if !accepted {
		t.Fatalf("expected leader to accept proposal")
	}

	// The leader's commit index only reaches followers on its next round of
	// AppendEntries, so deliver one heartbeat before checking every node.
	l.Tick(net.clk.now.Add(l.cfg.HeartbeatInterval))

	for _, c := range net.nodes {
		if c.commitIndex < idx {
			t.Fatalf("node %d did not commit index %d (commitIndex=%d)", c.id, idx, c.commitIndex)
		}
	}
}

func TestElection_SingleNodeClusterBecomesLeaderImmediately(t *testing.T) {
	net := newNetwork([]uint64{1})
	net.nodes[1].startElection()
	if net.nodes[1].role != Leader {
		t.Fatalf("expected single-node cluster to self-elect, got role %s", net.nodes[1].role)
	}
}

// TestSingleNode_CommitsAndAppliesWithoutAnyPeerResponse is a regression
// test for the single-node case: with zero peers, handleAppendEntriesResponse
// (the usual trigger for maybeAdvanceCommit) is never invoked by anything,
// since no peer ever sends a response. A majority of one is met the instant
// an entry is appended, so becomeLeader's no-op and every subsequent Propose
// must commit and apply on their own, with no response round trip to wait on.
func TestSingleNode_CommitsAndAppliesWithoutAnyPeerResponse(t *testing.T) {
	net := newNetwork([]uint64{1})
	n := net.nodes[1]

	n.startElection()
	n.applyCommitted()
	if n.commitIndex != 1 {
		t.Fatalf("expected the no-op entry to commit immediately, commitIndex=%d", n.commitIndex)
	}
	if got := n.sm.LastAppliedIndex(); got != 1 {
		t.Fatalf("expected the no-op entry to be applied immediately, lastApplied=%d", got)
	}

	idx, accepted, _ := n.Propose(statemachine.EncodeCommand(statemachine.Command{Op: statemachine.OpSet, Key: "x", Value: "1"}))
	if !accepted {
		t.Fatalf("expected single-node leader to accept proposal")
	}
	if n.commitIndex != idx {
		t.Fatalf("expected proposed entry %d to commit immediately, commitIndex=%d", idx, n.commitIndex)
	}
	if got := n.sm.LastAppliedIndex(); got != idx {
		t.Fatalf("expected proposed entry %d to be applied immediately, lastApplied=%d", idx, got)
	}
}

func TestRequestVote_DeniesCandidateWithStaleLog(t *testing.T) {
	net := newNetwork([]uint64{1, 2})
	// Give node 2 a log entry node 1 doesn't have, at a higher term.
	net.nodes[2].term = 5
	if err := net.nodes[2].store.Append(raftpb.Entry{Index: 1, Term: 5}); err != nil {
		t.Fatalf("setup append failed: %v", err)
	}

	resp := &raftpb.RequestVoteResponse{}
	net.nodes[2].out = &captureDispatcher{onSend: func(to uint64, msg raftpb.Message) {
		if v, ok := msg.(*raftpb.RequestVoteResponse); ok {
			*resp = *v
		}
	}}

	net.nodes[2].handleRequestVoteRequest(&raftpb.RequestVoteRequest{SourceID: 1, Term: 5, LastLogIndex: 0, LastLogTerm: 0})

	if resp.VoteGranted {
		t.Fatalf("expected vote to be denied for a stale candidate log")
	}
}

// TestTermReconciliation_ClearsVotedFor is a direct regression test for a
// defect in this package's lineage: bumping the term on a higher-term
// message must also clear votedFor, never leave a vote cast in a term that
// has already passed.
func TestTermReconciliation_ClearsVotedFor(t *testing.T) {
	net := newNetwork([]uint64{1, 2})
	n := net.nodes[1]
	if err := n.store.SetTermAndVote(3, 9); err != nil {
		t.Fatalf("setup: %v", err)
	}
	n.term = 3

	n.reconcileTerm(7)

	if got := n.store.VotedFor(); got != conf.InvalidID {
		t.Fatalf("expected votedFor to be cleared after term bump, got %d", got)
	}
	if n.term != 7 {
		t.Fatalf("expected term to be 7, got %d", n.term)
	}
	if n.role != Follower {
		t.Fatalf("expected a term bump to demote to follower, got %s", n.role)
	}
}

// TestLeader_DoesNotCommitPriorTermEntryOnMajorityAlone is a regression
// test for the commit rule: a leader may not advance commitIndex to an
// entry from an earlier term purely because a majority of replicas have
// stored it; only entries created in the leader's current term can be
// committed directly.
func TestLeader_DoesNotCommitPriorTermEntryOnMajorityAlone(t *testing.T) {
	net := newNetwork([]uint64{1, 2, 3})
	l := net.nodes[1]
	l.term = 1
	l.role = Leader
	ls := &leaderState{peers: map[uint64]*peer.Node{
		2: peer.New(2, 1),
		3: peer.New(3, 1),
	}}
	l.state = ls

	// Seed an entry from term 1 that every peer already matches, but the
	// leader's own term has since moved to 2 without that entry being
	// committed (the scenario a crashed-and-replaced leader leaves behind).
	if err := l.store.Append(raftpb.Entry{Index: 1, Term: 1}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	l.term = 2
	for _, p := range l.leaderState().peers {
		p.Matched = 1
	}

	l.maybeAdvanceCommit()

	if l.commitIndex != 0 {
		t.Fatalf("expected commitIndex to stay at 0 for a prior-term entry with no current-term entry yet, got %d", l.commitIndex)
	}

	// Now a current-term entry reaches the same majority: it should commit,
	// and the prior-term entry commits along with it by the log-matching
	// property.
	if err := l.store.Append(raftpb.Entry{Index: 2, Term: 2}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	for _, p := range l.leaderState().peers {
		p.Matched = 2
	}
	l.maybeAdvanceCommit()

	if l.commitIndex != 2 {
		t.Fatalf("expected commitIndex to advance to 2 once a current-term entry reaches majority, got %d", l.commitIndex)
	}
}

func TestAppendEntries_TruncatesConflictingSuffix(t *testing.T) {
	net := newNetwork([]uint64{1, 2})
	f := net.nodes[2]
	f.term = 1
	for _, e := range []raftpb.Entry{{Index: 1, Term: 1}, {Index: 2, Term: 1}, {Index: 3, Term: 1}} {
		if err := f.store.Append(e); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	f.handleAppendEntriesRequest(&raftpb.AppendEntriesRequest{
		SourceID:     1,
		Term:         2,
		PrevLogIndex: 1,
		PrevLogTerm:  1,
		Entries:      []raftpb.Entry{{Index: 2, Term: 2}},
		LeaderCommit: 0,
	})

	last := f.store.LastEntry()
	if last.Index != 2 || last.Term != 2 {
		t.Fatalf("expected log to be truncated to the new entry at (2,2), got (%d,%d)", last.Index, last.Term)
	}
}

func TestAppendEntries_RejectsOnLogMismatch(t *testing.T) {
	net := newNetwork([]uint64{1, 2})
	f := net.nodes[2]
	f.term = 1

	var got raftpb.AppendEntriesResponse
	f.out = &captureDispatcher{onSend: func(to uint64, msg raftpb.Message) {
		if v, ok := msg.(*raftpb.AppendEntriesResponse); ok {
			got = *v
		}
	}}

	f.handleAppendEntriesRequest(&raftpb.AppendEntriesRequest{
		SourceID:     1,
		Term:         1,
		PrevLogIndex: 5,
		PrevLogTerm:  1,
	})

	if got.Success {
		t.Fatalf("expected rejection when PrevLogIndex is missing from the local log")
	}
}

type captureDispatcher struct {
	onSend func(to uint64, msg raftpb.Message)
}

func (d *captureDispatcher) Send(to uint64, msg raftpb.Message) error {
	d.onSend(to, msg)
	return nil
}
