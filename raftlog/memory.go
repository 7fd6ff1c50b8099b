package raftlog

import (
	"sync"

	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raft/raftpb"
)

// Memory is an in-memory Store, used by tests and by any caller that does
// not need the replica's state to survive a restart.
//
// entries[0] is always a sentinel: (index 0, term 0) for a log that has never
// been compacted, or the last compacted entry (its data dropped) after
// DeleteUpTo; entries[i] holds the entry at log index entries[0].Index+i. This mirrors the "dummy first
// entry" convention used by the log holder this package descends from,
// which makes prevLogIndex=0 lookups fall out of the same code path as any
// other index instead of needing a special case.
type Memory struct {
	mu sync.Mutex

	term     uint64
	votedFor uint64

	entries []raftpb.Entry
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		votedFor: conf.InvalidID,
		entries:  []raftpb.Entry{{Index: 0, Term: 0}},
	}
}

func (m *Memory) CurrentTerm() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.term
}

func (m *Memory) VotedFor() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.votedFor
}

func (m *Memory) SetTermAndVote(term, votedFor uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.term = term
	m.votedFor = votedFor
	return nil
}

func (m *Memory) offset() uint64 { return m.entries[0].Index }

func (m *Memory) LastEntry() raftpb.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *Memory) Entry(index uint64) (raftpb.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off := m.offset()
	if index < off || index-off >= uint64(len(m.entries)) {
		return raftpb.Entry{}, ErrNotFound
	}
	return m.entries[index-off], nil
}

func (m *Memory) Slice(from, to uint64) ([]raftpb.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off := m.offset()
	if from > to || from < off || to-off > uint64(len(m.entries)) {
		return nil, ErrNotFound
	}
	out := make([]raftpb.Entry, to-from)
	copy(out, m.entries[from-off:to-off])
	return out, nil
}

func (m *Memory) Append(entry raftpb.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := m.entries[len(m.entries)-1]
	if entry.Index != last.Index+1 {
		return ErrNotFound
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) TruncateAndAppend(newEntries []raftpb.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(newEntries) == 0 {
		return nil
	}
	off := m.offset()
	at := newEntries[0].Index
	if at < off {
		// Everything we're asked to truncate predates our retained
		// prefix (can only legitimately happen below commitIndex,
		// which callers must never ask us to truncate).
		return ErrNotFound
	}
	if at-off > uint64(len(m.entries)) {
		return ErrNotFound
	}
	m.entries = append(m.entries[:at-off], newEntries...)
	return nil
}

func (m *Memory) DeleteUpTo(index uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	off := m.offset()
	if index < off {
		return nil
	}
	if index-off >= uint64(len(m.entries)) {
		// Compacting past everything we hold: keep only a sentinel at
		// the snapshot's index/term.
		last := m.entries[len(m.entries)-1]
		m.entries = []raftpb.Entry{{Index: index, Term: last.Term}}
		return nil
	}
	kept := m.entries[index-off:]
	sentinel := m.entries[index-off]
	sentinel.Data = nil
	m.entries = append([]raftpb.Entry{sentinel}, kept[1:]...)
	return nil
}

func (m *Memory) Close() error { return nil }
