package storage

import (
	"sort"

	"github.com/juju/errors"

	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/logger"
)

// transformTileGroupSchemas derives the per-tile schemas of the transformed
// tile group: every logical column's type descriptor moves from its current
// physical position to the one the new column map assigns, grouped by target
// tile.
func transformTileGroupSchemas(tg *TileGroup, columnMap ColumnMap) []*catalog.Schema {
	grouped := make(map[int]map[int]catalog.Column)
	maxTile := -1

	origSchemas := tg.TileSchemas()
	for column, target := range columnMap {
		origTile, origColumn := tg.LocateTileAndColumn(column)
		info := origSchemas[origTile].Column(origColumn)

		if grouped[target.Tile] == nil {
			grouped[target.Tile] = make(map[int]catalog.Column)
		}
		grouped[target.Tile][target.Column] = info
		if target.Tile > maxTile {
			maxTile = target.Tile
		}
	}

	schemas := make([]*catalog.Schema, 0, maxTile+1)
	for tile := 0; tile <= maxTile; tile++ {
		byOffset := grouped[tile]
		offsets := make([]int, 0, len(byOffset))
		for off := range byOffset {
			offsets = append(offsets, off)
		}
		sort.Ints(offsets)

		columns := make([]catalog.Column, 0, len(offsets))
		for _, off := range offsets {
			columns = append(columns, byOffset[off])
		}
		schemas = append(schemas, catalog.NewSchema(columns))
	}
	return schemas
}

// setTransformedTileGroup copies the original tile group into the fresh one
// column at a time, then copies the MVCC header verbatim so version history
// and visibility state carry over exactly.
func setTransformedTileGroup(orig, fresh *TileGroup) {
	columnCount := len(orig.ColumnMap())
	tupleCount := orig.AllocatedTupleCount()

	for column := 0; column < columnCount; column++ {
		origTile, origColumn := orig.LocateTileAndColumn(column)
		newTile, newColumn := fresh.LocateTileAndColumn(column)

		from := orig.Tile(origTile)
		to := fresh.Tile(newTile)
		for slot := uint32(0); slot < tupleCount; slot++ {
			to.SetValue(from.Value(slot, origColumn), slot, newColumn)
		}
	}

	fresh.Header().CopyFrom(orig.Header())
}

// TransformTileGroup rebuilds the tile group under a new physical column
// layout without changing logical content, slot numbering or the id, then
// atomically swaps the locator registration. Outstanding ItemPointers keep
// resolving to the same logical rows.
func (t *DataTable) TransformTileGroup(id common.OID, columnMap ColumnMap) (*TileGroup, error) {
	t.mu.Lock()
	owned := false
	for _, tgID := range t.tileGroups {
		if tgID == id {
			owned = true
			break
		}
	}
	t.mu.Unlock()
	if !owned {
		logger.Errorf("tile group %d not found in table %s", id, t.name)
		return nil, errors.Annotatef(ErrTileGroupNotFound,
			"tile group %d is not registered to table %s", id, t.name)
	}

	tg, err := t.mgr.GetTileGroup(id)
	if err != nil {
		return nil, errors.Trace(err)
	}

	schemas := transformTileGroupSchemas(tg, columnMap)
	fresh := NewTileGroup(tg.TableOID(), id, tg.Schema(), schemas,
		columnMap, tg.AllocatedTupleCount())
	setTransformedTileGroup(tg, fresh)

	// Swap the registration; the old instance is released once outstanding
	// readers drop it.
	t.mgr.SetTileGroup(id, fresh)

	logger.Infof("transformed tile group %d of table %s into %d tiles",
		id, t.name, fresh.TileCount())
	return fresh, nil
}
