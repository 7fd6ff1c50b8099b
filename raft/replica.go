// Package raft wires the core state machine (raft/core) to a goroutine,
// a bounded inbound message queue, and a deadline timer, giving it the
// single-threaded event loop the core assumes but does not itself run.
package raft

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cittaliu/raft4j/clock"
	"github.com/cittaliu/raft4j/raft/core"
	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raft/raftpb"
	"github.com/cittaliu/raft4j/raftlog"
	"github.com/cittaliu/raft4j/statemachine"
	"github.com/cittaliu/raft4j/transport"
)

// Replica runs a single replica's event loop on its own goroutine. All
// access to the underlying core.Core happens on that goroutine; every
// exported method communicates with it over a channel.
type Replica struct {
	core *core.Core
	clk  clock.Clock

	inbox     chan raftpb.Message
	proposals chan proposal
	statusReq chan chan core.Status
	committed chan raftpb.Entry

	stop   chan struct{}
	done   chan struct{}
	err    error
	logger *log.Entry
}

type proposal struct {
	data   []byte
	result chan proposalResult
}

type proposalResult struct {
	index          uint64
	accepted       bool
	leaderRedirect uint64
}

// New constructs a Replica and starts its event-loop goroutine. Committed
// entries are published, best-effort, on the returned CommittedEntries
// channel; a caller that never reads it simply never learns about commits
// that way (it may still observe them through the state machine directly).
func New(cfg conf.Config, store raftlog.Store, sm statemachine.StateMachine, out transport.Dispatcher, clk clock.Clock) *Replica {
	r := &Replica{
		core:      core.New(cfg, store, sm, out, clk),
		clk:       clk,
		inbox:     make(chan raftpb.Message, cfg.InboxSize),
		proposals: make(chan proposal),
		statusReq: make(chan chan core.Status),
		committed: make(chan raftpb.Entry, cfg.InboxSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		logger:    log.WithField("id", cfg.ID),
	}
	go r.run()
	return r
}

// MessageReceived enqueues an inbound message for processing on the event
// loop. It implements transport.Receiver. A full inbox drops the message,
// matching the bounded-FIFO contract: Raft's retry timers are what make
// that safe.
func (r *Replica) MessageReceived(msg raftpb.Message) {
	select {
	case r.inbox <- msg:
	case <-r.done:
	default:
		r.logger.WithField("from", msg.Source()).Warn("raft: inbox full, dropping message")
	}
}

// Propose submits data to be appended to the replicated log. It blocks
// until the event loop has accepted or rejected it, but not until it
// commits; use CommittedEntries to learn about commit asynchronously.
func (r *Replica) Propose(ctx context.Context, data []byte) (index uint64, leaderRedirect uint64, err error) {
	p := proposal{data: data, result: make(chan proposalResult, 1)}
	select {
	case r.proposals <- p:
	case <-ctx.Done():
		return 0, conf.InvalidID, ctx.Err()
	case <-r.done:
		return 0, conf.InvalidID, errStopped
	}
	select {
	case res := <-p.result:
		if !res.accepted {
			return 0, res.leaderRedirect, errNotLeader
		}
		return res.index, conf.InvalidID, nil
	case <-ctx.Done():
		return 0, conf.InvalidID, ctx.Err()
	case <-r.done:
		return 0, conf.InvalidID, errStopped
	}
}

// Status returns a snapshot of this replica's current role, term, and
// commit index.
func (r *Replica) Status() core.Status {
	ch := make(chan core.Status, 1)
	select {
	case r.statusReq <- ch:
	case <-r.done:
		return core.Status{}
	}
	select {
	case s := <-ch:
		return s
	case <-r.done:
		return core.Status{}
	}
}

// CommittedEntries returns the channel on which newly committed entries
// are published, best-effort, in commit order.
func (r *Replica) CommittedEntries() <-chan raftpb.Entry { return r.committed }

// Stop halts the event loop. It does not block until the goroutine has
// exited; use Done for that.
func (r *Replica) Stop() { close(r.stop) }

// Done returns a channel closed once the event loop has exited.
func (r *Replica) Done() <-chan struct{} { return r.done }

// Err returns the fatal collaborator error that stopped the event loop, if
// any. It is only meaningful after Done is closed.
func (r *Replica) Err() error { return r.err }

func (r *Replica) run() {
	defer func() {
		if rec := recover(); rec != nil {
			if fe, ok := rec.(*core.FatalError); ok {
				r.err = fe
				r.logger.WithError(fe.Err).Error("raft: fatal collaborator error, stopping replica")
			} else {
				panic(rec)
			}
		}
		close(r.done)
	}()

	timerC, stopTimer := r.clk.NewTimer(time.Until(r.core.NextDeadline()))
	defer stopTimer()

	for {
		select {
		case <-r.stop:
			return

		case msg := <-r.inbox:
			r.core.Step(msg)

		case p := <-r.proposals:
			index, accepted, redirect := r.core.Propose(p.data)
			p.result <- proposalResult{index: index, accepted: accepted, leaderRedirect: redirect}

		case ch := <-r.statusReq:
			ch <- r.core.Status()

		case now := <-timerC:
			r.core.Tick(now)
		}

		r.publishApplied()

		stopTimer()
		timerC, stopTimer = r.clk.NewTimer(time.Until(r.core.NextDeadline()))
	}
}

func (r *Replica) publishApplied() {
	for _, e := range r.core.DrainApplied() {
		select {
		case r.committed <- e:
		default:
			r.logger.WithField("index", e.Index).Warn("raft: committed-entries channel full, dropping notification")
		}
	}
}
