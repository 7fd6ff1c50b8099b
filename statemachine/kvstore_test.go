package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cittaliu/raft4j/raft/raftpb"
)

func TestKVStore_AppliesSetAndDelete(t *testing.T) {
	s := NewKVStore()

	err := s.Apply([]raftpb.Entry{
		{Index: 1, Term: 1, Type: raftpb.EntryNormal, Data: EncodeCommand(Command{Op: OpSet, Key: "a", Value: "1"})},
		{Index: 2, Term: 1, Type: raftpb.EntryNormal, Data: EncodeCommand(Command{Op: OpSet, Key: "b", Value: "2"})},
		{Index: 3, Term: 1, Type: raftpb.EntryNormal, Data: EncodeCommand(Command{Op: OpDelete, Key: "a"})},
	})
	require.NoError(t, err)

	_, ok := s.Get("a")
	require.False(t, ok)

	v, ok := s.Get("b")
	require.True(t, ok)
	require.Equal(t, "2", v)

	require.Equal(t, uint64(3), s.LastAppliedIndex())
}

func TestKVStore_SkipsNoOpEntries(t *testing.T) {
	s := NewKVStore()
	err := s.Apply([]raftpb.Entry{{Index: 1, Term: 1, Type: raftpb.EntryNoOp}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.LastAppliedIndex())
	require.Equal(t, 0, len(s.data))
}

func TestKVStore_SnapshotsEverySnapshotEveryCommands(t *testing.T) {
	s := NewKVStore()
	var entries []raftpb.Entry
	for i := uint64(1); i <= snapshotEvery; i++ {
		entries = append(entries, raftpb.Entry{Index: i, Term: 1, Type: raftpb.EntryNormal, Data: EncodeCommand(Command{Op: OpSet, Key: "k", Value: "v"})})
	}
	require.NoError(t, s.Apply(entries))

	snap, ok := s.LatestSnapshot()
	require.True(t, ok)
	require.Equal(t, uint64(snapshotEvery), snap.Index)
}

func TestKVStore_RestoreFromSnapshot(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Apply([]raftpb.Entry{
		{Index: 1, Term: 1, Type: raftpb.EntryNormal, Data: EncodeCommand(Command{Op: OpSet, Key: "a", Value: "1"})},
	}))
	snap, ok := func() (Snapshot, bool) {
		s.snapshotLocked(1)
		return s.LatestSnapshot()
	}()
	require.True(t, ok)

	restored := NewKVStore()
	require.NoError(t, restored.Restore(snap))

	v, ok := restored.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)
	require.Equal(t, snap.Index, restored.LastAppliedIndex())
}
