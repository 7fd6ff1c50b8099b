// Package raftlog defines the persistent-state contract a replica relies
// on for durability (current term, vote, and log entries) and ships two
// implementations: an in-memory one for tests and a write-ahead-log-backed
// one for standalone operation.
package raftlog

import (
	"errors"

	"github.com/cittaliu/raft4j/raft/raftpb"
)

// ErrNotFound is returned by lookups that miss.
var ErrNotFound = errors.New("raftlog: entry not found")

// Store is the durability boundary a replica depends on. Every mutating
// method must durably persist before returning.
type Store interface {
	// CurrentTerm returns the last persisted term.
	CurrentTerm() uint64
	// VotedFor returns the last persisted vote, or conf.InvalidID.
	VotedFor() uint64
	// SetTermAndVote persists term and vote together, atomically from the
	// caller's perspective. A term bump must always travel with clearing
	// (or replacing) the vote; this signature makes that pairing
	// impossible to forget at the call site.
	SetTermAndVote(term, votedFor uint64) error

	// LastEntry returns the last log entry, or the sentinel (index 0, term
	// 0) if the log is empty.
	LastEntry() raftpb.Entry
	// Entry returns the entry at index, or ErrNotFound.
	Entry(index uint64) (raftpb.Entry, error)
	// Slice returns entries in [from, to).
	Slice(from, to uint64) ([]raftpb.Entry, error)

	// Append appends entry, which must have index == LastEntry().Index+1.
	Append(entry raftpb.Entry) error
	// TruncateAndAppend deletes any local suffix starting at entries[0].Index
	// and appends entries in its place. entries must be contiguous and
	// entries[0].Index must be <= LastEntry().Index+1.
	TruncateAndAppend(entries []raftpb.Entry) error
	// DeleteUpTo discards entries with index <= index, used after the state
	// machine reports a snapshot at that index.
	DeleteUpTo(index uint64) error

	// Close releases any underlying resources.
	Close() error
}
