package raftlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cittaliu/raft4j/raft/raftpb"
)

func TestMemory_AppendAndRead(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Append(raftpb.Entry{Index: 1, Term: 1, Data: []byte("a")}))
	require.NoError(t, m.Append(raftpb.Entry{Index: 2, Term: 1, Data: []byte("b")}))

	last := m.LastEntry()
	require.Equal(t, uint64(2), last.Index)

	e, err := m.Entry(1)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), e.Data)

	_, err = m.Entry(3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_AppendRejectsNonContiguousIndex(t *testing.T) {
	m := NewMemory()
	require.Error(t, m.Append(raftpb.Entry{Index: 5, Term: 1}))
}

func TestMemory_TruncateAndAppendOverwritesConflictingSuffix(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Append(raftpb.Entry{Index: 1, Term: 1}))
	require.NoError(t, m.Append(raftpb.Entry{Index: 2, Term: 1}))
	require.NoError(t, m.Append(raftpb.Entry{Index: 3, Term: 1}))

	require.NoError(t, m.TruncateAndAppend([]raftpb.Entry{
		{Index: 2, Term: 2},
		{Index: 3, Term: 2},
	}))

	last := m.LastEntry()
	require.Equal(t, uint64(3), last.Index)
	require.Equal(t, uint64(2), last.Term)

	e1, err := m.Entry(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), e1.Term)
}

func TestMemory_SliceReturnsHalfOpenRange(t *testing.T) {
	m := NewMemory()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, m.Append(raftpb.Entry{Index: i, Term: 1}))
	}
	got, err := m.Slice(2, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(2), got[0].Index)
	require.Equal(t, uint64(3), got[1].Index)
}

func TestMemory_DeleteUpToCompactsPrefix(t *testing.T) {
	m := NewMemory()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, m.Append(raftpb.Entry{Index: i, Term: 1}))
	}
	require.NoError(t, m.DeleteUpTo(3))

	_, err := m.Entry(2)
	require.ErrorIs(t, err, ErrNotFound)

	e, err := m.Entry(4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), e.Index)
}

func TestMemory_SetTermAndVotePersistsBoth(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SetTermAndVote(4, 2))
	require.Equal(t, uint64(4), m.CurrentTerm())
	require.Equal(t, uint64(2), m.VotedFor())
}
