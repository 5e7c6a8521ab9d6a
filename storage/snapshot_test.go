package storage

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilestore/tilestore/common"
)

func TestParseSnapshotCodec(t *testing.T) {
	for name, want := range map[string]SnapshotCodec{
		"":       SnapshotCodecNone,
		"none":   SnapshotCodecNone,
		"snappy": SnapshotCodecSnappy,
		"LZ4":    SnapshotCodecLZ4,
	} {
		got, err := ParseSnapshotCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseSnapshotCodec("zstd")
	require.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, codec := range []SnapshotCodec{SnapshotCodecNone, SnapshotCodecSnappy, SnapshotCodecLZ4} {
		t.Run(fmt.Sprintf("codec_%d", codec), func(t *testing.T) {
			mgr, table := newTestTable(2)
			tx := testTxn{id: 10, last: 0}

			var locs []common.ItemPointer
			for i := int64(0); i < 3; i++ {
				loc, err := table.InsertTuple(tx, mustTuple(t, table.Schema(), i, fmt.Sprintf("row-%d", i)))
				require.NoError(t, err)
				locs = append(locs, loc)
			}
			commitInserts(t, mgr, 1, locs[0], locs[1])

			var buf bytes.Buffer
			require.NoError(t, table.WriteSnapshot(&buf, codec))
			assert.False(t, table.IsDirty())

			img, err := ReadSnapshot(&buf)
			require.NoError(t, err)

			assert.Equal(t, "test_table", img.Name)
			require.Len(t, img.Columns, 2)
			assert.Equal(t, "id", img.Columns[0].Name)
			assert.True(t, img.Columns[0].NotNull)

			require.Len(t, img.TileGroups, 2)
			first := img.TileGroups[0]
			assert.Equal(t, locs[0].Block, first.ID)
			assert.Equal(t, uint32(2), first.Allocated)
			assert.Equal(t, uint32(2), first.NextSlot)
			assert.Equal(t, DefaultColumnMap(2), first.ColumnMap)

			// Committed slots carry their stamps, the uncommitted one its
			// writer latch.
			assert.Equal(t, common.InitialTxnID, first.TxnIDs[0])
			assert.Equal(t, common.CommitID(1), first.BeginCIDs[0])
			assert.Equal(t, common.MaxCommitID, first.EndCIDs[0])

			second := img.TileGroups[1]
			assert.Equal(t, uint32(1), second.NextSlot)
			assert.Equal(t, common.TxnID(10), second.TxnIDs[0])

			require.Len(t, first.Rows, 2)
			assert.Equal(t, int64(0), first.Rows[0][0].Int64())
			assert.Equal(t, "row-0", first.Rows[0][1].Varchar())
			require.Len(t, second.Rows, 1)
			assert.Equal(t, int64(2), second.Rows[0][0].Int64())
		})
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	_, err := ReadSnapshot(bytes.NewReader([]byte("XXXX\x01\x00")))
	require.Error(t, err)
}

func TestSnapshotAfterTransform(t *testing.T) {
	mgr, table := newTestTable(4)
	tx := testTxn{id: 10, last: 0}

	loc, err := table.InsertTuple(tx, mustTuple(t, table.Schema(), 7, "seven"))
	require.NoError(t, err)
	commitInserts(t, mgr, 1, loc)

	columnar := ColumnMap{
		0: {Tile: 0, Column: 0},
		1: {Tile: 1, Column: 0},
	}
	_, err = table.TransformTileGroup(loc.Block, columnar)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.WriteSnapshot(&buf, SnapshotCodecSnappy))

	img, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	require.Len(t, img.TileGroups, 1)

	// The snapshot records the transformed physical layout but the same
	// logical rows.
	tgi := img.TileGroups[0]
	assert.Equal(t, columnar, tgi.ColumnMap)
	require.Len(t, tgi.Rows, 1)
	assert.Equal(t, int64(7), tgi.Rows[0][0].Int64())
	assert.Equal(t, "seven", tgi.Rows[0][1].Varchar())
}
