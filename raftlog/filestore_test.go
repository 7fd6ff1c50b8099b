package raftlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cittaliu/raft4j/raft/raftpb"
)

func TestFileStore_PersistsTermVoteAndEntriesAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.wal")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.SetTermAndVote(3, 7))
	require.NoError(t, fs.Append(raftpb.Entry{Index: 1, Term: 3, Data: []byte("a")}))
	require.NoError(t, fs.Append(raftpb.Entry{Index: 2, Term: 3, Data: []byte("b")}))
	require.NoError(t, fs.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(3), reopened.CurrentTerm())
	require.Equal(t, uint64(7), reopened.VotedFor())

	last := reopened.LastEntry()
	require.Equal(t, uint64(2), last.Index)

	e, err := reopened.Entry(1)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), e.Data)
}

func TestFileStore_TruncateAndAppendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.wal")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Append(raftpb.Entry{Index: 1, Term: 1}))
	require.NoError(t, fs.Append(raftpb.Entry{Index: 2, Term: 1}))
	require.NoError(t, fs.Append(raftpb.Entry{Index: 3, Term: 1}))
	require.NoError(t, fs.TruncateAndAppend([]raftpb.Entry{
		{Index: 2, Term: 2},
		{Index: 3, Term: 2},
	}))
	require.NoError(t, fs.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	last := reopened.LastEntry()
	require.Equal(t, uint64(3), last.Index)
	require.Equal(t, uint64(2), last.Term)

	e1, err := reopened.Entry(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), e1.Term)
}

func TestFileStore_DeleteUpToCompactionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.wal")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, fs.Append(raftpb.Entry{Index: i, Term: 1}))
	}
	require.NoError(t, fs.DeleteUpTo(3))
	require.NoError(t, fs.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Entry(2)
	require.ErrorIs(t, err, ErrNotFound)

	e, err := reopened.Entry(4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), e.Index)

	e3, err := reopened.Entry(3)
	require.NoError(t, err)
	require.Nil(t, e3.Data)
}

func TestFileStore_AppendRejectsNonContiguousIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.wal")
	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	defer fs.Close()

	require.Error(t, fs.Append(raftpb.Entry{Index: 5, Term: 1}))
}
