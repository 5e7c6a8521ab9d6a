package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/juju/errors"
	"github.com/pierrec/lz4/v4"

	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/common"
	"github.com/tilestore/tilestore/logger"
	"github.com/tilestore/tilestore/types"
)

// Snapshot/checkpoint codec. A snapshot serializes every tile group of a
// table (values plus the full MVCC header) so an external checkpoint process
// can persist the table state; writing one clears the table's dirty flag.

// SnapshotCodec selects the compression applied to the snapshot payload.
type SnapshotCodec uint8

const (
	SnapshotCodecNone SnapshotCodec = iota
	SnapshotCodecSnappy
	SnapshotCodecLZ4
)

func ParseSnapshotCodec(name string) (SnapshotCodec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return SnapshotCodecNone, nil
	case "snappy":
		return SnapshotCodecSnappy, nil
	case "lz4":
		return SnapshotCodecLZ4, nil
	}
	return SnapshotCodecNone, errors.Errorf("unknown snapshot codec %q", name)
}

var snapshotMagic = []byte{'T', 'S', 'N', 'P'}

const snapshotVersion uint8 = 1

// SnapshotImage is the decoded form of a table snapshot.
type SnapshotImage struct {
	Name       string
	Columns    []catalog.Column
	TileGroups []*TileGroupImage
}

// TileGroupImage is one decoded tile group: occupancy, MVCC header arrays
// and the row values of every claimed slot, in logical column order.
type TileGroupImage struct {
	ID        common.OID
	Allocated uint32
	NextSlot  uint32
	ColumnMap ColumnMap
	TxnIDs    []common.TxnID
	BeginCIDs []common.CommitID
	EndCIDs   []common.CommitID
	Next      []common.ItemPointer
	Rows      [][]types.Value
}

// WriteSnapshot serializes the table's tile groups to w with the given codec
// and clears the dirty flag.
func (t *DataTable) WriteSnapshot(w io.Writer, codec SnapshotCodec) error {
	var payload bytes.Buffer
	if err := t.encodeSnapshotPayload(&payload); err != nil {
		return errors.Trace(err)
	}

	raw := payload.Bytes()
	compressed, err := compressSnapshot(codec, raw)
	if err != nil {
		return errors.Trace(err)
	}

	if _, err := w.Write(snapshotMagic); err != nil {
		return errors.Trace(err)
	}
	hdr := []interface{}{snapshotVersion, uint8(codec), uint32(len(raw)), uint32(len(compressed))}
	for _, v := range hdr {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return errors.Trace(err)
		}
	}
	if _, err := w.Write(compressed); err != nil {
		return errors.Trace(err)
	}

	t.ResetDirty()
	logger.Infof("snapshot of table %s: %d bytes raw, %d bytes written",
		t.name, len(raw), len(compressed))
	return nil
}

func (t *DataTable) encodeSnapshotPayload(w io.Writer) error {
	if err := writeSnapString(w, t.name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(t.schema.ColumnCount())); err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < t.schema.ColumnCount(); i++ {
		col := t.schema.Column(i)
		if err := writeSnapString(w, col.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint8(col.Type)); err != nil {
			return errors.Trace(err)
		}
		if err := binary.Write(w, binary.BigEndian, col.NotNull); err != nil {
			return errors.Trace(err)
		}
	}

	t.mu.Lock()
	ids := make([]common.OID, len(t.tileGroups))
	copy(ids, t.tileGroups)
	t.mu.Unlock()

	if err := binary.Write(w, binary.BigEndian, uint32(len(ids))); err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		tg, err := t.mgr.GetTileGroup(id)
		if err != nil {
			return errors.Trace(err)
		}
		if err := encodeTileGroup(w, tg); err != nil {
			return errors.Annotatef(err, "tile group %d", id)
		}
	}
	return nil
}

func encodeTileGroup(w io.Writer, tg *TileGroup) error {
	h := tg.Header()
	allocated := tg.AllocatedTupleCount()
	next := h.NextTupleSlot()

	for _, v := range []interface{}{uint32(tg.ID()), allocated, next} {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return errors.Trace(err)
		}
	}

	columnMap := tg.ColumnMap()
	if err := binary.Write(w, binary.BigEndian, uint16(len(columnMap))); err != nil {
		return errors.Trace(err)
	}
	for col := 0; col < len(columnMap); col++ {
		tc := columnMap[col]
		for _, v := range []interface{}{uint16(col), uint16(tc.Tile), uint16(tc.Column)} {
			if err := binary.Write(w, binary.BigEndian, v); err != nil {
				return errors.Trace(err)
			}
		}
	}

	for slot := uint32(0); slot < allocated; slot++ {
		fields := []interface{}{
			uint64(h.TransactionID(slot)),
			uint64(h.BeginCommitID(slot)),
			uint64(h.EndCommitID(slot)),
			uint32(h.NextItemPointer(slot).Block),
			h.NextItemPointer(slot).Offset,
		}
		for _, v := range fields {
			if err := binary.Write(w, binary.BigEndian, v); err != nil {
				return errors.Trace(err)
			}
		}
	}

	columns := tg.Schema().ColumnCount()
	for slot := uint32(0); slot < next; slot++ {
		for col := 0; col < columns; col++ {
			if err := types.EncodeValue(w, tg.GetValue(slot, col)); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// ReadSnapshot decodes a snapshot produced by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*SnapshotImage, error) {
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.Trace(err)
	}
	if !bytes.Equal(magic, snapshotMagic) {
		return nil, errors.Errorf("bad snapshot magic %x", magic)
	}

	var (
		version uint8
		codec   uint8
		rawLen  uint32
		compLen uint32
	)
	for _, p := range []interface{}{&version, &codec, &rawLen, &compLen} {
		if err := binary.Read(r, binary.BigEndian, p); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if version != snapshotVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", version)
	}

	compressed := make([]byte, compLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, errors.Trace(err)
	}
	raw, err := decompressSnapshot(SnapshotCodec(codec), compressed, int(rawLen))
	if err != nil {
		return nil, errors.Trace(err)
	}

	return decodeSnapshotPayload(bytes.NewReader(raw))
}

func decodeSnapshotPayload(r io.Reader) (*SnapshotImage, error) {
	img := &SnapshotImage{}

	name, err := readSnapString(r)
	if err != nil {
		return nil, err
	}
	img.Name = name

	var columnCount uint16
	if err := binary.Read(r, binary.BigEndian, &columnCount); err != nil {
		return nil, errors.Trace(err)
	}
	img.Columns = make([]catalog.Column, columnCount)
	for i := range img.Columns {
		colName, err := readSnapString(r)
		if err != nil {
			return nil, err
		}
		var typ uint8
		var notNull bool
		if err := binary.Read(r, binary.BigEndian, &typ); err != nil {
			return nil, errors.Trace(err)
		}
		if err := binary.Read(r, binary.BigEndian, &notNull); err != nil {
			return nil, errors.Trace(err)
		}
		img.Columns[i] = catalog.Column{Name: colName, Type: types.ValType(typ), NotNull: notNull}
	}

	var tgCount uint32
	if err := binary.Read(r, binary.BigEndian, &tgCount); err != nil {
		return nil, errors.Trace(err)
	}
	for i := uint32(0); i < tgCount; i++ {
		tgi, err := decodeTileGroupImage(r, int(columnCount))
		if err != nil {
			return nil, errors.Annotatef(err, "tile group #%d", i)
		}
		img.TileGroups = append(img.TileGroups, tgi)
	}
	return img, nil
}

func decodeTileGroupImage(r io.Reader, columns int) (*TileGroupImage, error) {
	var id, allocated, next uint32
	for _, p := range []interface{}{&id, &allocated, &next} {
		if err := binary.Read(r, binary.BigEndian, p); err != nil {
			return nil, errors.Trace(err)
		}
	}
	tgi := &TileGroupImage{
		ID:        common.OID(id),
		Allocated: allocated,
		NextSlot:  next,
		ColumnMap: make(ColumnMap),
	}

	var mapLen uint16
	if err := binary.Read(r, binary.BigEndian, &mapLen); err != nil {
		return nil, errors.Trace(err)
	}
	for i := uint16(0); i < mapLen; i++ {
		var logical, tile, column uint16
		for _, p := range []interface{}{&logical, &tile, &column} {
			if err := binary.Read(r, binary.BigEndian, p); err != nil {
				return nil, errors.Trace(err)
			}
		}
		tgi.ColumnMap[int(logical)] = TileColumn{Tile: int(tile), Column: int(column)}
	}

	tgi.TxnIDs = make([]common.TxnID, allocated)
	tgi.BeginCIDs = make([]common.CommitID, allocated)
	tgi.EndCIDs = make([]common.CommitID, allocated)
	tgi.Next = make([]common.ItemPointer, allocated)
	for slot := uint32(0); slot < allocated; slot++ {
		var txn, begin, end uint64
		var block, offset uint32
		for _, p := range []interface{}{&txn, &begin, &end, &block, &offset} {
			if err := binary.Read(r, binary.BigEndian, p); err != nil {
				return nil, errors.Trace(err)
			}
		}
		tgi.TxnIDs[slot] = common.TxnID(txn)
		tgi.BeginCIDs[slot] = common.CommitID(begin)
		tgi.EndCIDs[slot] = common.CommitID(end)
		tgi.Next[slot] = common.ItemPointer{Block: common.OID(block), Offset: offset}
	}

	for slot := uint32(0); slot < next; slot++ {
		row := make([]types.Value, columns)
		for col := 0; col < columns; col++ {
			v, err := types.DecodeValue(r)
			if err != nil {
				return nil, errors.Trace(err)
			}
			row[col] = v
		}
		tgi.Rows = append(tgi.Rows, row)
	}
	return tgi, nil
}

func compressSnapshot(codec SnapshotCodec, raw []byte) ([]byte, error) {
	switch codec {
	case SnapshotCodecNone:
		return raw, nil
	case SnapshotCodecSnappy:
		return snappy.Encode(nil, raw), nil
	case SnapshotCodecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, errors.Trace(err)
		}
		if err := zw.Close(); err != nil {
			return nil, errors.Trace(err)
		}
		return buf.Bytes(), nil
	}
	return nil, errors.Errorf("unknown snapshot codec %d", codec)
}

func decompressSnapshot(codec SnapshotCodec, compressed []byte, rawLen int) ([]byte, error) {
	switch codec {
	case SnapshotCodecNone:
		return compressed, nil
	case SnapshotCodecSnappy:
		raw, err := snappy.Decode(nil, compressed)
		return raw, errors.Trace(err)
	case SnapshotCodecLZ4:
		zr := lz4.NewReader(bytes.NewReader(compressed))
		raw := make([]byte, rawLen)
		if _, err := io.ReadFull(zr, raw); err != nil {
			return nil, errors.Trace(err)
		}
		return raw, nil
	}
	return nil, errors.Errorf("unknown snapshot codec %d", codec)
}

func writeSnapString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return errors.Trace(err)
	}
	_, err := io.WriteString(w, s)
	return errors.Trace(err)
}

func readSnapString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", errors.Trace(err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Trace(err)
	}
	return string(buf), nil
}
