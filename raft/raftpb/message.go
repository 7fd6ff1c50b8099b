// Package raftpb defines the wire types exchanged between replicas: the
// four RPC payloads and the log entry they carry.
//
// The payloads are expressed as a tagged variant (one concrete struct per
// RPC, all implementing Message) rather than a single struct with every
// field always present. A type switch on Message is exhaustively checkable
// at every call site, which a flat struct with a MsgType discriminant is not.
package raftpb

import (
	"encoding/gob"

	"github.com/google/uuid"
)

// Message is implemented by every RPC payload exchanged between replicas.
// Source identifies the sender; CorrelationID lets a transport pair a
// response back to its originating request.
type Message interface {
	Source() uint64
	CorrelationID() uuid.UUID
}

// EntryType distinguishes a normal client entry from the replica's own
// bookkeeping entries.
type EntryType int32

const (
	EntryNormal EntryType = iota
	EntryNoOp
)

// Entry is a single log entry: a piece of opaque command data at a given
// index and term.
type Entry struct {
	Index uint64
	Term  uint64
	Type  EntryType
	Data  []byte
}

// RequestVoteRequest is sent by a candidate canvassing for votes.
type RequestVoteRequest struct {
	SourceID     uint64
	CorrID       uuid.UUID
	Term         uint64
	LastLogIndex uint64
	LastLogTerm  uint64
}

func (m *RequestVoteRequest) Source() uint64           { return m.SourceID }
func (m *RequestVoteRequest) CorrelationID() uuid.UUID { return m.CorrID }

// RequestVoteResponse is the receiver's reply to a RequestVoteRequest.
type RequestVoteResponse struct {
	SourceID    uint64
	CorrID      uuid.UUID
	Term        uint64
	VoteGranted bool
}

func (m *RequestVoteResponse) Source() uint64           { return m.SourceID }
func (m *RequestVoteResponse) CorrelationID() uuid.UUID { return m.CorrID }

// AppendEntriesRequest replicates entries (or, if Entries is empty, serves
// as a heartbeat) from the leader to a follower.
type AppendEntriesRequest struct {
	SourceID     uint64
	CorrID       uuid.UUID
	Term         uint64
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []Entry
	LeaderCommit uint64
}

func (m *AppendEntriesRequest) Source() uint64           { return m.SourceID }
func (m *AppendEntriesRequest) CorrelationID() uuid.UUID { return m.CorrID }

// AppendEntriesResponse is a follower's reply to an AppendEntriesRequest.
// MatchIndex is only meaningful when Success is true; it echoes the index
// of the last entry the request carried (or PrevLogIndex for a heartbeat),
// since requests and responses may cross paths under retries.
type AppendEntriesResponse struct {
	SourceID   uint64
	CorrID     uuid.UUID
	Term       uint64
	Success    bool
	MatchIndex uint64
}

func (m *AppendEntriesResponse) Source() uint64           { return m.SourceID }
func (m *AppendEntriesResponse) CorrelationID() uuid.UUID { return m.CorrID }

// NewEntryRequest is submitted by a client (or a co-located caller) asking
// the replica to append Data to the replicated log.
type NewEntryRequest struct {
	SourceID uint64
	CorrID   uuid.UUID
	Data     []byte
}

func (m *NewEntryRequest) Source() uint64           { return m.SourceID }
func (m *NewEntryRequest) CorrelationID() uuid.UUID { return m.CorrID }

// NewEntryResponse tells the caller whether the entry was accepted, and if
// not, redirects to the last known leader (InvalidID if none is known).
type NewEntryResponse struct {
	SourceID       uint64
	CorrID         uuid.UUID
	Accepted       bool
	Index          uint64
	LeaderRedirect uint64
}

func (m *NewEntryResponse) Source() uint64           { return m.SourceID }
func (m *NewEntryResponse) CorrelationID() uuid.UUID { return m.CorrID }

func init() {
	gob.Register(RequestVoteRequest{})
	gob.Register(RequestVoteResponse{})
	gob.Register(AppendEntriesRequest{})
	gob.Register(AppendEntriesResponse{})
	gob.Register(NewEntryRequest{})
	gob.Register(NewEntryResponse{})
}
