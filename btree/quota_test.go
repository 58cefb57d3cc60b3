package btree

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/clamshell-db/kvbtree/common/testutil"
)

// TestFlushFailureLeavesDirtyBufferAndWALIntact exercises the engine's
// disk-full path: a flush that fails partway must neither drop the staged
// pages nor truncate the WAL, so a retry (here, simply freeing up quota
// and calling Flush again) recovers cleanly.
func TestFlushFailureLeavesDirtyBufferAndWALIntact(t *testing.T) {
	mem := afero.NewMemMapFs()

	// Budget covers Open's initial root-page write plus three WAL-logged
	// writes, with only a sliver left over — not enough for the page
	// write Flush needs.
	const writes = 3
	quota := testutil.NewQuotaFs(mem, PageSize+writes*walRecordSize+10)

	e, err := Open(quota, "/db/pages", "/db/wal", DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	for k := uint16(0); k < writes; k++ {
		require.NoError(t, e.Write(k, k+1))
	}

	require.Error(t, e.Flush(), "flush should fail once the page write exceeds the quota")

	require.Positive(t, e.store.dirty.len(), "a failed flush must leave dirty pages staged, not lost")
	walLen, err := e.wal.len()
	require.NoError(t, err)
	require.Positive(t, walLen, "a failed flush must leave the wal intact, not truncated")

	quota.AddBudget(10 * PageSize)

	require.NoError(t, e.Flush(), "retry should succeed once budget is freed")
	require.Zero(t, e.store.dirty.len())
	walLen, err = e.wal.len()
	require.NoError(t, err)
	require.Zero(t, walLen)

	for k := uint16(0); k < writes; k++ {
		val, ok := e.Read(k)
		require.True(t, ok)
		require.EqualValues(t, k+1, val)
	}
}
