package types

import (
	"encoding/binary"
	"io"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
)

// Binary value codec used by tile group snapshots. Big-endian, strings and
// decimals length-prefixed.

func EncodeValue(w io.Writer, v Value) error {
	if err := binary.Write(w, binary.BigEndian, uint8(v.typ)); err != nil {
		return errors.Trace(err)
	}
	switch v.typ {
	case NullVal:
		return nil
	case IntVal:
		return errors.Trace(binary.Write(w, binary.BigEndian, v.i))
	case VarcharVal:
		return encodeString(w, v.s)
	case DecimalVal:
		return encodeString(w, v.d.String())
	case BoolVal:
		return errors.Trace(binary.Write(w, binary.BigEndian, v.b))
	}
	return errors.Errorf("cannot encode value type %s", v.typ)
}

func DecodeValue(r io.Reader) (Value, error) {
	var typ uint8
	if err := binary.Read(r, binary.BigEndian, &typ); err != nil {
		return Value{}, errors.Trace(err)
	}
	switch ValType(typ) {
	case NullVal:
		return NullValue(), nil
	case IntVal:
		var i int64
		if err := binary.Read(r, binary.BigEndian, &i); err != nil {
			return Value{}, errors.Trace(err)
		}
		return NewIntValue(i), nil
	case VarcharVal:
		s, err := decodeString(r)
		if err != nil {
			return Value{}, errors.Trace(err)
		}
		return NewVarcharValue(s), nil
	case DecimalVal:
		s, err := decodeString(r)
		if err != nil {
			return Value{}, errors.Trace(err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, errors.Annotatef(err, "decoding decimal %q", s)
		}
		return NewDecimalValue(d), nil
	case BoolVal:
		var b bool
		if err := binary.Read(r, binary.BigEndian, &b); err != nil {
			return Value{}, errors.Trace(err)
		}
		return NewBoolValue(b), nil
	}
	return Value{}, errors.Errorf("cannot decode value type %d", typ)
}

func encodeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return errors.Trace(err)
	}
	_, err := io.WriteString(w, s)
	return errors.Trace(err)
}

func decodeString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", errors.Trace(err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Trace(err)
	}
	return string(buf), nil
}
