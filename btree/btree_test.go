package btree

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/clamshell-db/kvbtree/common"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	fs := afero.NewMemMapFs()
	e, err := Open(fs, "/db/pages", "/db/wal", DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	e := openTestEngine(t)

	require.NoError(t, e.Write(1, 100))

	val, ok := e.Read(1)
	require.True(t, ok)
	require.EqualValues(t, 100, val)
}

func TestReadMissingKeyReportsNotOk(t *testing.T) {
	e := openTestEngine(t)

	_, ok := e.Read(42)
	require.False(t, ok)
}

func TestReadOnEmptyRootReportsNotOk(t *testing.T) {
	e := openTestEngine(t)

	_, ok := e.Read(0)
	require.False(t, ok)
}

func TestWriteOverwritesExistingKeyWithoutGrowingTree(t *testing.T) {
	e := openTestEngine(t)

	require.NoError(t, e.Write(5, 1))
	require.NoError(t, e.Write(5, 2))

	val, ok := e.Read(5)
	require.True(t, ok)
	require.EqualValues(t, 2, val)

	require.EqualValues(t, 1, e.stats.NumKeys)
}

func TestDeleteRemovesKey(t *testing.T) {
	e := openTestEngine(t)

	require.NoError(t, e.Write(9, 9))
	require.NoError(t, e.Delete(9))

	_, ok := e.Read(9)
	require.False(t, ok)
}

func TestDeleteOfMissingKeyIsANoOp(t *testing.T) {
	e := openTestEngine(t)

	require.NoError(t, e.Delete(123))
}

func TestInsertBeyondBranchingFactorSplitsLeaf(t *testing.T) {
	e := openTestEngine(t)

	for k := uint16(0); k < BranchingFactor; k++ {
		require.NoError(t, e.Write(k, k*10))
	}

	root, err := e.store.get(RootPageID)
	require.NoError(t, err)
	require.False(t, root.IsLeaf, "root should have split into an internal node")

	for k := uint16(0); k < BranchingFactor; k++ {
		val, ok := e.Read(k)
		require.True(t, ok, "key %d should survive the split", k)
		require.EqualValues(t, k*10, val)
	}
}

func TestManyInsertsAndDeletesPreserveSurvivors(t *testing.T) {
	e := openTestEngine(t)

	const n = 200
	for k := uint16(0); k < n; k++ {
		require.NoError(t, e.Write(k, k+1))
	}
	for k := uint16(0); k < n; k += 2 {
		require.NoError(t, e.Delete(k))
	}

	for k := uint16(0); k < n; k++ {
		val, ok := e.Read(k)
		if k%2 == 0 {
			require.False(t, ok, "key %d should have been deleted", k)
			continue
		}
		require.True(t, ok, "key %d should still be present", k)
		require.EqualValues(t, k+1, val)
	}
}

func TestFlushTruncatesWAL(t *testing.T) {
	e := openTestEngine(t)

	require.NoError(t, e.Write(1, 1))
	n, err := e.wal.len()
	require.NoError(t, err)
	require.Positive(t, n)

	require.NoError(t, e.Flush())

	n, err = e.wal.len()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSingleInsertSurvivesFlushAndReopen(t *testing.T) {
	fs := afero.NewMemMapFs()

	e, err := Open(fs, "/db/pages", "/db/wal", DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, e.Write(7, 700))
	require.NoError(t, e.Flush())
	require.NoError(t, e.Close())

	reopened, err := Open(fs, "/db/pages", "/db/wal", DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	n, err := reopened.wal.len()
	require.NoError(t, err)
	require.Zero(t, n, "a clean flush leaves nothing for the reopened engine to replay")

	val, ok := reopened.Read(7)
	require.True(t, ok)
	require.EqualValues(t, 700, val)
}

func TestOperationsAfterCloseReportEngineClosed(t *testing.T) {
	e := openTestEngine(t)
	require.NoError(t, e.Write(1, 1))
	require.NoError(t, e.Close())

	require.ErrorIs(t, e.Write(2, 2), common.ErrEngineClosed)
	require.ErrorIs(t, e.Delete(1), common.ErrEngineClosed)
	require.ErrorIs(t, e.Flush(), common.ErrEngineClosed)

	require.Panics(t, func() { e.Read(1) })
}

func TestCloseIsIdempotent(t *testing.T) {
	e := openTestEngine(t)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}

func TestReentrantCallPanics(t *testing.T) {
	e := openTestEngine(t)

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic on reentrant entry")
	}()

	e.guard.enter()
	defer e.guard.exit()
	e.guard.enter()
}
