package types

import (
	"encoding/binary"
	"fmt"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
)

// ValType enumerates the column types the storage layer understands.
type ValType uint8

const (
	NullVal ValType = iota
	IntVal
	VarcharVal
	DecimalVal
	BoolVal
)

func (t ValType) String() string {
	switch t {
	case NullVal:
		return "NULL"
	case IntVal:
		return "INT"
	case VarcharVal:
		return "VARCHAR"
	case DecimalVal:
		return "DECIMAL"
	case BoolVal:
		return "BOOL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Value is one column value. The zero Value is NULL, which is what an
// unoccupied tuple slot holds.
type Value struct {
	typ ValType
	i   int64
	b   bool
	s   string
	d   decimal.Decimal
}

func NewIntValue(v int64) Value {
	return Value{typ: IntVal, i: v}
}

func NewVarcharValue(s string) Value {
	return Value{typ: VarcharVal, s: s}
}

func NewDecimalValue(d decimal.Decimal) Value {
	return Value{typ: DecimalVal, d: d}
}

func NewBoolValue(b bool) Value {
	return Value{typ: BoolVal, b: b}
}

func NullValue() Value {
	return Value{typ: NullVal}
}

func (v Value) Type() ValType { return v.typ }

func (v Value) IsNull() bool { return v.typ == NullVal }

func (v Value) Int64() int64 { return v.i }

func (v Value) Varchar() string { return v.s }

func (v Value) Decimal() decimal.Decimal { return v.d }

func (v Value) Bool() bool { return v.b }

// Compare orders two values of the same type, NULL sorting before everything.
// Comparing distinct non-null types is a schema error.
func (v Value) Compare(o Value) (int, error) {
	if v.typ == NullVal || o.typ == NullVal {
		switch {
		case v.typ == o.typ:
			return 0, nil
		case v.typ == NullVal:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if v.typ != o.typ {
		return 0, errors.Errorf("cannot compare %s against %s", v.typ, o.typ)
	}
	switch v.typ {
	case IntVal:
		switch {
		case v.i < o.i:
			return -1, nil
		case v.i > o.i:
			return 1, nil
		}
		return 0, nil
	case VarcharVal:
		switch {
		case v.s < o.s:
			return -1, nil
		case v.s > o.s:
			return 1, nil
		}
		return 0, nil
	case DecimalVal:
		return v.d.Cmp(o.d), nil
	case BoolVal:
		switch {
		case v.b == o.b:
			return 0, nil
		case !v.b:
			return -1, nil
		}
		return 1, nil
	}
	return 0, errors.Errorf("unsupported value type %s", v.typ)
}

func (v Value) Equal(o Value) bool {
	c, err := v.Compare(o)
	return err == nil && c == 0
}

func (v Value) String() string {
	switch v.typ {
	case NullVal:
		return "NULL"
	case IntVal:
		return fmt.Sprintf("%d", v.i)
	case VarcharVal:
		return v.s
	case DecimalVal:
		return v.d.String()
	case BoolVal:
		return fmt.Sprintf("%t", v.b)
	}
	return "?"
}

// EncodeKey appends a stable, injective encoding of the value. The encoding
// is used for index key hashing and equality, not for ordering.
func (v Value) EncodeKey(buf []byte) []byte {
	buf = append(buf, byte(v.typ))
	switch v.typ {
	case IntVal:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case VarcharVal:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v.s)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, v.s...)
	case DecimalVal:
		s := v.d.String()
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(s)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, s...)
	case BoolVal:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}
