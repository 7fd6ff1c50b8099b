// Package core implements the per-server Raft state machine: role
// transitions, the four RPC handlers, log replication, and commit-index
// advancement. It is a pure state machine driven entirely by Step and
// Tick; it owns no goroutine and no timer of its own, so it can be driven
// synchronously in tests and asynchronously by raft.Replica in production.
package core

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cittaliu/raft4j/clock"
	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raft/peer"
	"github.com/cittaliu/raft4j/raft/raftpb"
	"github.com/cittaliu/raft4j/raftlog"
	"github.com/cittaliu/raft4j/statemachine"
	"github.com/cittaliu/raft4j/transport"
)

// Core is a single replica's state machine.
type Core struct {
	id    uint64
	peers []uint64

	cfg conf.Config

	store raftlog.Store
	sm    statemachine.StateMachine
	out   transport.Dispatcher
	clk   clock.Clock

	term          uint64
	commitIndex   uint64
	currentLeader uint64
	role          Role
	state         roleState

	electionDeadline  time.Time
	heartbeatDeadline time.Time

	lastCompacted uint64
	applied       []raftpb.Entry

	// peerNodes holds this replica's per-peer replication bookkeeping,
	// allocated once and reset (never reallocated) on every election this
	// replica wins, so a leader's view of peer progress survives exactly as
	// long as the Core itself does.
	peerNodes map[uint64]*peer.Node

	logger *log.Entry
}

// New constructs a Core for replica cfg.ID among cfg.Peers, backed by store
// for durability and sm as the state machine it drives. Panics if cfg is
// invalid; callers should call cfg.Validate() themselves if they want a
// recoverable error instead.
func New(cfg conf.Config, store raftlog.Store, sm statemachine.StateMachine, out transport.Dispatcher, clk clock.Clock) *Core {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	if cfg.ClusterSizeIsEven() {
		log.WithField("id", cfg.ID).Warnf("raft: cluster size %d is even; a tied majority is possible under partition", len(cfg.Peers)+1)
	}

	c := &Core{
		id:            cfg.ID,
		peers:         append([]uint64(nil), cfg.Peers...),
		cfg:           cfg,
		store:         store,
		sm:            sm,
		out:           out,
		clk:           clk,
		currentLeader: conf.InvalidID,
		role:          Follower,
		state:         followerState{},
		peerNodes:     make(map[uint64]*peer.Node, len(cfg.Peers)),
		logger:        log.WithField("id", cfg.ID),
	}
	for _, id := range cfg.Peers {
		c.peerNodes[id] = peer.New(id, 1)
	}
	c.term = store.CurrentTerm()
	c.resetElectionDeadline()
	return c
}

// ID returns this replica's own peer id.
func (c *Core) ID() uint64 { return c.id }

// Status is a read-only snapshot of volatile state, for callers that want
// to observe the replica (tests, the demo binary, GetState-style APIs).
type Status struct {
	ID            uint64
	Term          uint64
	Role          Role
	CommitIndex   uint64
	CurrentLeader uint64
	LastLogIndex  uint64
}

func (c *Core) Status() Status {
	return Status{
		ID:            c.id,
		Term:          c.term,
		Role:          c.role,
		CommitIndex:   c.commitIndex,
		CurrentLeader: c.currentLeader,
		LastLogIndex:  c.store.LastEntry().Index,
	}
}

// NextDeadline returns the absolute time at which the caller should next
// invoke Tick if no message arrives first.
func (c *Core) NextDeadline() time.Time {
	if c.role == Leader {
		return c.heartbeatDeadline
	}
	return c.electionDeadline
}

// DrainApplied returns, and clears, the entries applied to the state
// machine since the last call. Callers (typically raft.Replica) forward
// these onto an optional notification channel for observers that want to
// know when data has become durable and visible, without the core itself
// needing to know who is listening.
func (c *Core) DrainApplied() []raftpb.Entry {
	out := c.applied
	c.applied = nil
	return out
}

// Step processes one inbound message: term reconciliation, the
// kind-specific handler, then the commit applier.
func (c *Core) Step(msg raftpb.Message) {
	switch m := msg.(type) {
	case *raftpb.RequestVoteRequest:
		c.reconcileTerm(m.Term)
		c.handleRequestVoteRequest(m)
	case *raftpb.RequestVoteResponse:
		if m.Term < c.term {
			return
		}
		c.reconcileTerm(m.Term)
		c.handleRequestVoteResponse(m)
	case *raftpb.AppendEntriesRequest:
		c.reconcileTerm(m.Term)
		c.handleAppendEntriesRequest(m)
	case *raftpb.AppendEntriesResponse:
		if m.Term < c.term {
			return
		}
		c.reconcileTerm(m.Term)
		c.handleAppendEntriesResponse(m)
	case *raftpb.NewEntryRequest:
		c.handleNewEntryRequest(m)
	default:
		c.logger.Warnf("raft: unknown message type %T", m)
		return
	}
	c.applyCommitted()
}

// Tick is invoked when NextDeadline has passed with no message arriving
// first: the leader sends a heartbeat round, everyone else starts an
// election.
func (c *Core) Tick(now time.Time) {
	if c.role == Leader {
		if !now.Before(c.heartbeatDeadline) {
			c.broadcastAppend(true)
			c.resetHeartbeatDeadline()
		}
		return
	}
	if !now.Before(c.electionDeadline) {
		c.startElection()
		c.applyCommitted()
	}
}

// Propose appends data to the log if this replica is the leader and
// immediately begins replicating it. It is the synchronous, co-located
// counterpart to receiving a NewEntryRequest over the wire.
func (c *Core) Propose(data []byte) (index uint64, accepted bool, leaderRedirect uint64) {
	index, accepted = c.proposeInternal(data)
	if !accepted {
		return 0, false, c.currentLeader
	}
	c.applyCommitted()
	return index, true, conf.InvalidID
}

func (c *Core) proposeInternal(data []byte) (uint64, bool) {
	if c.role != Leader {
		return 0, false
	}
	last := c.store.LastEntry()
	entry := raftpb.Entry{Index: last.Index + 1, Term: c.term, Type: raftpb.EntryNormal, Data: data}
	if err := c.store.Append(entry); err != nil {
		c.logger.WithError(err).Error("raft: failed to append proposed entry")
		return 0, false
	}
	// A leader never receives an AppendEntries response from itself, so it
	// must re-check its own log against quorum right here: with no peers
	// (majority 1) this entry is already at quorum and must commit now, not
	// wait for a round trip that will never happen.
	c.maybeAdvanceCommit()
	c.broadcastAppend(false)
	return entry.Index, true
}

func (c *Core) send(to uint64, msg raftpb.Message) {
	if err := c.out.Send(to, msg); err != nil {
		c.logger.WithError(err).WithField("to", to).Debug("raft: send failed")
	}
}

func (c *Core) majority() int { return c.cfg.MajoritySize() }

func (c *Core) resetElectionDeadline() {
	timeout := clock.RandomElectionTimeout(c.cfg.ElectionTimeoutMin, c.cfg.ElectionTimeoutMax)
	c.electionDeadline = c.clk.Now().Add(timeout)
}

func (c *Core) resetHeartbeatDeadline() {
	c.heartbeatDeadline = c.clk.Now().Add(c.cfg.HeartbeatInterval)
}

func (c *Core) leaderState() *leaderState {
	ls, _ := c.state.(*leaderState)
	return ls
}

func (c *Core) candidateState() *candidateState {
	cs, _ := c.state.(*candidateState)
	return cs
}
