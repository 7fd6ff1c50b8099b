package raftlog

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raft/raftpb"
)

// recordType tags what a frame on disk holds.
type recordType int32

const (
	recordState recordType = iota
	recordEntry
	recordCompact
)

// record is the on-disk unit: a length-prefixed, CRC32-checked, gob-encoded
// frame. This framing (length prefix, checksum, gob payload) is the
// convention this package's write-ahead log lineage uses for its segment
// files; FileStore keeps the framing and drops that lineage's segment
// rotation, since a single replica's term/vote/log state is small enough
// that rotating files buys nothing but complexity here.
type record struct {
	Type recordType
	Crc  uint32
	Data []byte
}

type persistedState struct {
	Term     uint64
	VotedFor uint64
}

type compactMark struct {
	Index uint64
	Term  uint64
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// FileStore is a Store backed by a single append-only file, replayed in
// full on open. It is intended for a standalone demo process, not for a
// high-throughput deployment; every mutating call fsyncs before returning.
type FileStore struct {
	mu sync.Mutex

	f *os.File
	w *bufio.Writer

	state   persistedState
	entries []raftpb.Entry
}

// OpenFileStore opens or creates path and replays any existing records.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fs := &FileStore{
		f:       f,
		state:   persistedState{VotedFor: conf.InvalidID},
		entries: []raftpb.Entry{{Index: 0, Term: 0}},
	}
	if err := fs.replay(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	fs.w = bufio.NewWriter(f)
	return fs, nil
}

func (fs *FileStore) replay() error {
	r := bufio.NewReader(fs.f)
	for {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		var rec record
		if err := gob.NewDecoder(newBytesReader(buf)).Decode(&rec); err != nil {
			return err
		}
		if crc32.Checksum(rec.Data, crcTable) != rec.Crc {
			return errors.New("raftlog: checksum mismatch reading wal")
		}
		switch rec.Type {
		case recordState:
			var st persistedState
			if err := gob.NewDecoder(newBytesReader(rec.Data)).Decode(&st); err != nil {
				return err
			}
			fs.state = st
		case recordEntry:
			var e raftpb.Entry
			if err := gob.NewDecoder(newBytesReader(rec.Data)).Decode(&e); err != nil {
				return err
			}
			fs.appendInMemory(e)
		case recordCompact:
			var cm compactMark
			if err := gob.NewDecoder(newBytesReader(rec.Data)).Decode(&cm); err != nil {
				return err
			}
			fs.compactInMemory(cm.Index, cm.Term)
		}
	}
}

func newBytesReader(b []byte) io.Reader { return &sliceReader{b: b} }

type sliceReader struct {
	b []byte
	i int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}

func (fs *FileStore) writeRecord(rt recordType, payload interface{}) error {
	var dataBuf sliceWriter
	if err := gob.NewEncoder(&dataBuf).Encode(payload); err != nil {
		return err
	}
	rec := record{Type: rt, Crc: crc32.Checksum(dataBuf.b, crcTable), Data: dataBuf.b}
	var recBuf sliceWriter
	if err := gob.NewEncoder(&recBuf).Encode(rec); err != nil {
		return err
	}
	if err := binary.Write(fs.w, binary.LittleEndian, uint32(len(recBuf.b))); err != nil {
		return err
	}
	if _, err := fs.w.Write(recBuf.b); err != nil {
		return err
	}
	if err := fs.w.Flush(); err != nil {
		return err
	}
	return fs.f.Sync()
}

type sliceWriter struct{ b []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (fs *FileStore) CurrentTerm() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.Term
}

func (fs *FileStore) VotedFor() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.VotedFor
}

func (fs *FileStore) SetTermAndVote(term, votedFor uint64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	st := persistedState{Term: term, VotedFor: votedFor}
	if err := fs.writeRecord(recordState, st); err != nil {
		return err
	}
	fs.state = st
	return nil
}

func (fs *FileStore) offset() uint64 { return fs.entries[0].Index }

func (fs *FileStore) appendInMemory(e raftpb.Entry) {
	off := fs.offset()
	if e.Index-off < uint64(len(fs.entries)) {
		fs.entries = append(fs.entries[:e.Index-off], e)
		return
	}
	fs.entries = append(fs.entries, e)
}

func (fs *FileStore) LastEntry() raftpb.Entry {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.entries[len(fs.entries)-1]
}

func (fs *FileStore) Entry(index uint64) (raftpb.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	off := fs.offset()
	if index < off || index-off >= uint64(len(fs.entries)) {
		return raftpb.Entry{}, ErrNotFound
	}
	return fs.entries[index-off], nil
}

func (fs *FileStore) Slice(from, to uint64) ([]raftpb.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	off := fs.offset()
	if from > to || from < off || to-off > uint64(len(fs.entries)) {
		return nil, ErrNotFound
	}
	out := make([]raftpb.Entry, to-from)
	copy(out, fs.entries[from-off:to-off])
	return out, nil
}

func (fs *FileStore) Append(entry raftpb.Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	last := fs.entries[len(fs.entries)-1]
	if entry.Index != last.Index+1 {
		return ErrNotFound
	}
	if err := fs.writeRecord(recordEntry, entry); err != nil {
		return err
	}
	fs.appendInMemory(entry)
	return nil
}

func (fs *FileStore) TruncateAndAppend(newEntries []raftpb.Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(newEntries) == 0 {
		return nil
	}
	for _, e := range newEntries {
		if err := fs.writeRecord(recordEntry, e); err != nil {
			return err
		}
		fs.appendInMemory(e)
	}
	return nil
}

func (fs *FileStore) DeleteUpTo(index uint64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	off := fs.offset()
	if index < off {
		return nil
	}
	entry := fs.entryLocked(index)
	if err := fs.writeRecord(recordCompact, compactMark{Index: index, Term: entry.Term}); err != nil {
		return err
	}
	fs.compactInMemory(index, entry.Term)
	return nil
}

// entryLocked looks up index without the bounds check that turns an
// out-of-range request into an error from Entry, clamping to the last
// known term instead: DeleteUpTo must still succeed when asked to compact
// past everything currently held, which happens after a state machine
// snapshot outruns a slow replica's log.
func (fs *FileStore) entryLocked(index uint64) raftpb.Entry {
	off := fs.offset()
	if index-off >= uint64(len(fs.entries)) {
		return fs.entries[len(fs.entries)-1]
	}
	return fs.entries[index-off]
}

func (fs *FileStore) compactInMemory(index, term uint64) {
	off := fs.offset()
	if index-off >= uint64(len(fs.entries)) {
		fs.entries = []raftpb.Entry{{Index: index, Term: term}}
		return
	}
	kept := fs.entries[index-off:]
	sentinel := fs.entries[index-off]
	sentinel.Data = nil
	fs.entries = append([]raftpb.Entry{sentinel}, kept[1:]...)
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.f.Close()
}
