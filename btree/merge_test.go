package btree

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestDeletesTriggerUnderflowRebalanceWithoutLosingSurvivors(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, err := Open(fs, "/db/pages", "/db/wal", DefaultConfig())
	require.NoError(t, err)
	defer e.Close()

	const n = 100
	for k := uint16(0); k < n; k++ {
		require.NoError(t, e.Write(k, k+1))
	}

	for k := uint16(0); k < n/2; k++ {
		require.NoError(t, e.Delete(k))
	}

	for k := uint16(n / 2); k < n; k++ {
		val, ok := e.Read(k)
		require.True(t, ok, "key %d should survive the rebalance", k)
		require.EqualValues(t, k+1, val)
	}

	require.EqualValues(t, n/2, e.stats.NumKeys)
}

func TestDeletingEverythingCollapsesRootBackToALeaf(t *testing.T) {
	fs := afero.NewMemMapFs()
	e, err := Open(fs, "/db/pages", "/db/wal", DefaultConfig())
	require.NoError(t, err)
	defer e.Close()

	const n = 60
	for k := uint16(0); k < n; k++ {
		require.NoError(t, e.Write(k, k))
	}
	for k := uint16(0); k < n; k++ {
		require.NoError(t, e.Delete(k))
	}

	root, err := e.store.get(RootPageID)
	require.NoError(t, err)
	require.True(t, root.IsLeaf, "root should have shrunk back to a leaf")
	require.Zero(t, root.NumKeys())

	_, ok := e.Read(0)
	require.False(t, ok)
}

func TestBorrowPrefersTheSiblingWithMoreKeys(t *testing.T) {
	parent := NewInternalPage(10)
	parent.Keys = []uint16{50}
	parent.Children = []uint32{1, 2}

	left := NewLeafPage(1)
	left.Keys = []uint16{10, 20}
	left.Vals = []uint16{1, 2}

	right := NewLeafPage(2)
	right.Keys = []uint16{51, 60, 70, 80}
	right.Vals = []uint16{5, 6, 7, 8}

	borrowLeaf(parent, left, right, 0)

	require.Equal(t, []uint16{10, 20, 51}, left.Keys)
	require.Equal(t, []uint16{60, 70, 80}, right.Keys)
	require.Equal(t, right.Keys[0]-1, parent.Keys[0])
}

func TestMergeLeafAbsorbsRightWithoutASeparatorKey(t *testing.T) {
	parent := NewInternalPage(10)
	parent.Keys = []uint16{50}
	parent.Children = []uint32{1, 2}

	left := NewLeafPage(1)
	left.Keys = []uint16{10, 20}
	left.Vals = []uint16{1, 2}

	right := NewLeafPage(2)
	right.Keys = []uint16{51, 60}
	right.Vals = []uint16{5, 6}

	merge(left, right, parent, 0)

	require.Equal(t, []uint16{10, 20, 51, 60}, left.Keys)
	require.Equal(t, []uint16{1, 2, 5, 6}, left.Vals)
	require.Empty(t, parent.Keys)
	require.Equal(t, []uint32{1}, parent.Children)
}

func TestMergeInternalPullsDownTheSeparator(t *testing.T) {
	parent := NewInternalPage(10)
	parent.Keys = []uint16{50}
	parent.Children = []uint32{1, 2}

	left := NewInternalPage(1)
	left.Keys = []uint16{10}
	left.Children = []uint32{100, 101}

	right := NewInternalPage(2)
	right.Keys = []uint16{60}
	right.Children = []uint32{200, 201}

	merge(left, right, parent, 0)

	require.Equal(t, []uint16{10, 50, 60}, left.Keys)
	require.Equal(t, []uint32{100, 101, 200, 201}, left.Children)
}
