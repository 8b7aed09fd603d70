package systemd

import (
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"
)

// A Decoder converts a wire value, as received from the bus, into a
// Go value of type T.
//
// Wire values are the values that godbus produces when decoding a
// message: bool, byte, int16, uint16, int32, uint32, int64, uint64,
// float64, string, [dbus.ObjectPath], [dbus.Signature], slices for
// DBus arrays, []any for DBus structs, maps for DBus dictionaries,
// and [dbus.Variant] for variants.
//
// All decoders strip any number of enclosing variants from their
// input before inspecting it. Decoders never panic and never
// truncate: a value that cannot be represented in T exactly produces
// a [*DecodeError].
type Decoder[T any] func(v any) (T, error)

// unwrap strips all enclosing variants from v.
func unwrap(v any) any {
	for {
		switch vv := v.(type) {
		case dbus.Variant:
			v = vv.Value()
		case *dbus.Variant:
			if vv == nil {
				return nil
			}
			v = vv.Value()
		default:
			return v
		}
	}
}

// Raw returns v with enclosing variants removed, without further
// interpretation.
func Raw(v any) (any, error) {
	v = unwrap(v)
	if v == nil {
		return nil, mismatch("any", v)
	}
	return v, nil
}

// Bool decodes a DBus boolean.
func Bool(v any) (bool, error) {
	v = unwrap(v)
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, mismatch("bool", v)
}

// String decodes a DBus string. Object paths and signatures are
// accepted and returned in their string form.
func String(v any) (string, error) {
	switch s := unwrap(v).(type) {
	case string:
		return s, nil
	case dbus.ObjectPath:
		return string(s), nil
	case dbus.Signature:
		return s.String(), nil
	default:
		return "", mismatch("string", s)
	}
}

// ObjectPath decodes a DBus object path.
func ObjectPath(v any) (dbus.ObjectPath, error) {
	switch p := unwrap(v).(type) {
	case dbus.ObjectPath:
		return p, nil
	case string:
		// systemd declares some path-valued properties as strings.
		if op := dbus.ObjectPath(p); op.IsValid() {
			return op, nil
		}
		return "", mismatch("dbus.ObjectPath", p)
	default:
		return "", mismatch("dbus.ObjectPath", p)
	}
}

// Bytes decodes a DBus byte array.
func Bytes(v any) ([]byte, error) {
	v = unwrap(v)
	if bs, ok := v.([]byte); ok {
		return bs, nil
	}
	return nil, mismatch("[]byte", v)
}

// integer holds any DBus integer. If signed is true the value is in
// i, otherwise it is in u.
type integer struct {
	i      int64
	u      uint64
	signed bool
}

func asInteger(v any) (integer, bool) {
	switch n := v.(type) {
	case byte:
		return integer{u: uint64(n)}, true
	case int16:
		return integer{i: int64(n), signed: true}, true
	case uint16:
		return integer{u: uint64(n)}, true
	case int32:
		return integer{i: int64(n), signed: true}, true
	case uint32:
		return integer{u: uint64(n)}, true
	case int64:
		return integer{i: n, signed: true}, true
	case uint64:
		return integer{u: n}, true
	default:
		return integer{}, false
	}
}

// inRange reports whether n lies in [min, max].
func (n integer) inRange(min int64, max uint64) bool {
	if n.signed {
		if n.i < min {
			return false
		}
		return n.i < 0 || uint64(n.i) <= max
	}
	return n.u <= max
}

func (n integer) int64() int64 {
	if n.signed {
		return n.i
	}
	return int64(n.u)
}

func (n integer) uint64() uint64 {
	if n.signed {
		return uint64(n.i)
	}
	return n.u
}

func decodeInt[T int32 | int64 | uint32 | uint64](name string, min int64, max uint64) Decoder[T] {
	return func(v any) (T, error) {
		v = unwrap(v)
		n, ok := asInteger(v)
		if !ok {
			return 0, mismatch(name, v)
		}
		if !n.inRange(min, max) {
			return 0, overflow(name, v)
		}
		if min < 0 {
			return T(n.int64()), nil
		}
		return T(n.uint64()), nil
	}
}

var (
	decodeInt32  = decodeInt[int32]("int32", math.MinInt32, math.MaxInt32)
	decodeUint32 = decodeInt[uint32]("uint32", 0, math.MaxUint32)
	decodeInt64  = decodeInt[int64]("int64", math.MinInt64, math.MaxInt64)
	decodeUint64 = decodeInt[uint64]("uint64", 0, math.MaxUint64)
)

// Int32 decodes a DBus integer of any width into an int32.
func Int32(v any) (int32, error) { return decodeInt32(v) }

// Uint32 decodes a DBus integer of any width into a uint32.
func Uint32(v any) (uint32, error) { return decodeUint32(v) }

// Int64 decodes a DBus integer of any width into an int64.
func Int64(v any) (int64, error) { return decodeInt64(v) }

// Uint64 decodes a DBus integer of any width into a uint64.
func Uint64(v any) (uint64, error) { return decodeUint64(v) }

// BigInt decodes a DBus integer of any width into an arbitrary
// precision integer. It never overflows.
func BigInt(v any) (*big.Int, error) {
	v = unwrap(v)
	n, ok := asInteger(v)
	if !ok {
		return nil, mismatch("*big.Int", v)
	}
	if n.signed {
		return big.NewInt(n.i), nil
	}
	return new(big.Int).SetUint64(n.u), nil
}

// Microseconds decodes a DBus integer counting microseconds into a
// time.Duration. systemd's "infinity" value decodes to [Infinity].
func Microseconds(v any) (time.Duration, error) {
	v = unwrap(v)
	n, ok := asInteger(v)
	if !ok {
		return 0, mismatch("time.Duration", v)
	}
	if !n.signed && n.u == math.MaxUint64 {
		return Infinity, nil
	}
	if !n.inRange(math.MinInt64/int64(time.Microsecond), math.MaxInt64/uint64(time.Microsecond)) {
		return 0, overflow("time.Duration", v)
	}
	return time.Duration(n.int64()) * time.Microsecond, nil
}

// Timestamp decodes a DBus integer counting microseconds since the
// Unix epoch into a time.Time. systemd uses 0 for "never", which
// decodes to the zero time.Time.
func Timestamp(v any) (time.Time, error) {
	v = unwrap(v)
	n, ok := asInteger(v)
	if !ok {
		return time.Time{}, mismatch("time.Time", v)
	}
	if n.uint64() == 0 {
		return time.Time{}, nil
	}
	if !n.inRange(0, math.MaxInt64) {
		return time.Time{}, overflow("time.Time", v)
	}
	return time.UnixMicro(n.int64()), nil
}

// SliceOf returns a decoder for DBus arrays or structs whose elements
// all decode with elem. Element order is preserved. An empty input
// decodes to an empty, non-nil slice.
func SliceOf[T any](elem func(any) (T, error)) Decoder[[]T] {
	return func(v any) ([]T, error) {
		v = unwrap(v)
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Kind() != reflect.Slice {
			return nil, mismatch("slice", v)
		}
		ret := make([]T, 0, rv.Len())
		for i := range rv.Len() {
			e, err := elem(rv.Index(i).Interface())
			if err != nil {
				return nil, &indexError{i, err}
			}
			ret = append(ret, e)
		}
		return ret, nil
	}
}

// Strings decodes a DBus string array.
var Strings = SliceOf(String)

// MapOf returns a decoder for DBus dictionaries whose keys and values
// decode with key and val respectively.
func MapOf[K comparable, V any](key func(any) (K, error), val func(any) (V, error)) Decoder[map[K]V] {
	return func(v any) (map[K]V, error) {
		v = unwrap(v)
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Kind() != reflect.Map {
			return nil, mismatch("map", v)
		}
		ret := make(map[K]V, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := key(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			e, err := val(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			ret[k] = e
		}
		return ret, nil
	}
}

// indexError annotates a decode error with the position of the
// element that failed.
type indexError struct {
	index int
	err   error
}

func (e *indexError) Error() string {
	return "element " + strconv.Itoa(e.index) + ": " + e.err.Error()
}

func (e *indexError) Unwrap() error { return e.err }
