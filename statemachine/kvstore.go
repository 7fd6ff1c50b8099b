package statemachine

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/cittaliu/raft4j/raft/raftpb"
)

// CommandOp distinguishes a Set from a Delete command.
type CommandOp int32

const (
	OpSet CommandOp = iota
	OpDelete
)

// Command is the command format KVStore expects as an Entry's Data, gob
// encoded.
type Command struct {
	Op    CommandOp
	Key   string
	Value string
}

// EncodeCommand gob-encodes cmd for use as an Entry's Data.
func EncodeCommand(cmd Command) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cmd); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// snapshotEvery is how many applied commands elapse between automatic
// snapshots.
const snapshotEvery = 64

// KVStore is a reference StateMachine: an in-memory string/string map
// driven by gob-encoded Set/Delete commands, snapshotting itself by
// gob-encoding the whole map every snapshotEvery applied commands.
type KVStore struct {
	mu sync.RWMutex

	data        map[string]string
	lastApplied uint64

	snapshot    Snapshot
	hasSnapshot bool
}

// NewKVStore returns an empty KVStore.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]string)}
}

func (s *KVStore) Apply(entries []raftpb.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.Index != s.lastApplied+1 {
			continue
		}
		if e.Type == raftpb.EntryNormal && len(e.Data) > 0 {
			var cmd Command
			if err := gob.NewDecoder(bytes.NewReader(e.Data)).Decode(&cmd); err != nil {
				return err
			}
			switch cmd.Op {
			case OpSet:
				s.data[cmd.Key] = cmd.Value
			case OpDelete:
				delete(s.data, cmd.Key)
			}
		}
		s.lastApplied = e.Index
		if s.lastApplied%snapshotEvery == 0 {
			s.snapshotLocked(e.Term)
		}
	}
	return nil
}

func (s *KVStore) snapshotLocked(term uint64) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.data); err != nil {
		panic(err)
	}
	s.snapshot = Snapshot{Index: s.lastApplied, Term: term, Data: buf.Bytes()}
	s.hasSnapshot = true
}

func (s *KVStore) LastAppliedIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastApplied
}

func (s *KVStore) LatestSnapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnapshot
}

// Get returns the value for key and whether it is present. It is not part
// of the StateMachine interface; callers use it to read the applied state
// directly (this module does not implement linearizable client reads).
func (s *KVStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Restore replaces the in-memory map with the contents of a previously
// taken Snapshot, used when bootstrapping a replica from disk.
func (s *KVStore) Restore(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make(map[string]string)
	if len(snap.Data) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(snap.Data)).Decode(&data); err != nil {
			return err
		}
	}
	s.data = data
	s.lastApplied = snap.Index
	s.snapshot = snap
	s.hasSnapshot = true
	return nil
}
