package systemd

import (
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
)

func v(x any) dbus.Variant { return dbus.MakeVariant(x) }

func TestIntegers(t *testing.T) {
	type testCase struct {
		name    string
		dec     func(any) (any, error)
		in      any
		want    any
		wantErr error
	}
	erase := func(f func(any) (int64, error)) func(any) (any, error) {
		return func(x any) (any, error) { return f(x) }
	}
	i32 := func(x any) (int64, error) {
		n, err := Int32(x)
		return int64(n), err
	}
	u32 := func(x any) (int64, error) {
		n, err := Uint32(x)
		return int64(n), err
	}
	i64 := func(x any) (int64, error) { return Int64(x) }
	u64 := func(x any) (any, error) { return Uint64(x) }

	ok := func(name string, dec func(any) (any, error), in, want any) testCase {
		return testCase{name, dec, in, want, nil}
	}
	fail := func(name string, dec func(any) (any, error), in any, kind error) testCase {
		return testCase{name, dec, in, nil, kind}
	}

	tests := []testCase{
		ok("int32 from int32", erase(i32), int32(-5), int64(-5)),
		ok("int32 from byte", erase(i32), byte(200), int64(200)),
		ok("int32 from int16", erase(i32), int16(-300), int64(-300)),
		ok("int32 from uint64", erase(i32), uint64(math.MaxInt32), int64(math.MaxInt32)),
		ok("int32 from variant", erase(i32), v(v(uint16(7))), int64(7)),
		fail("int32 overflow", erase(i32), uint64(math.MaxInt32)+1, ErrOverflow),
		fail("int32 underflow", erase(i32), int64(math.MinInt32)-1, ErrOverflow),
		fail("int32 from string", erase(i32), "42", ErrTypeMismatch),
		fail("int32 from bool", erase(i32), true, ErrTypeMismatch),
		fail("int32 from nil", erase(i32), nil, ErrTypeMismatch),

		ok("uint32 from uint32", erase(u32), uint32(math.MaxUint32), int64(math.MaxUint32)),
		ok("uint32 from positive int64", erase(u32), int64(12), int64(12)),
		fail("uint32 from negative", erase(u32), int32(-1), ErrOverflow),
		fail("uint32 overflow", erase(u32), uint64(math.MaxUint32)+1, ErrOverflow),

		ok("int64 from int64", erase(i64), int64(math.MinInt64), int64(math.MinInt64)),
		ok("int64 from uint32", erase(i64), uint32(math.MaxUint32), int64(math.MaxUint32)),
		fail("int64 overflow", erase(i64), uint64(math.MaxInt64)+1, ErrOverflow),

		ok("uint64 max", u64, uint64(math.MaxUint64), uint64(math.MaxUint64)),
		ok("uint64 from int16", u64, int16(3), uint64(3)),
		fail("uint64 from negative", u64, int64(-1), ErrOverflow),
		fail("uint64 from float", u64, float64(1), ErrTypeMismatch),
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.dec(tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("decode(%#v) = %v, %v; want error %v", tc.in, got, err, tc.wantErr)
				}
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("decode error %v is not a *DecodeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode(%#v) failed: %v", tc.in, err)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("decode(%#v) wrong result (-got+want):\n%s", tc.in, diff)
			}
		})
	}
}

func TestBigInt(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{uint64(math.MaxUint64), "18446744073709551615"},
		{int64(math.MinInt64), "-9223372036854775808"},
		{v(byte(1)), "1"},
	}
	for _, tc := range tests {
		got, err := BigInt(tc.in)
		if err != nil {
			t.Errorf("BigInt(%#v) failed: %v", tc.in, err)
			continue
		}
		want, _ := new(big.Int).SetString(tc.want, 10)
		if got.Cmp(want) != 0 {
			t.Errorf("BigInt(%#v) = %s, want %s", tc.in, got, want)
		}
	}

	if _, err := BigInt("1"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("BigInt(string) err = %v, want ErrTypeMismatch", err)
	}
}

func TestBoolAndStrings(t *testing.T) {
	if got, err := Bool(v(true)); err != nil || !got {
		t.Errorf("Bool(true) = %v, %v; want true", got, err)
	}
	if _, err := Bool(uint32(1)); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Bool(uint32) err = %v, want ErrTypeMismatch", err)
	}

	for _, in := range []any{"foo", dbus.ObjectPath("foo"), v("foo")} {
		if got, err := String(in); err != nil || got != "foo" {
			t.Errorf("String(%#v) = %q, %v; want \"foo\"", in, got, err)
		}
	}
	if _, err := String(int32(1)); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("String(int32) err = %v, want ErrTypeMismatch", err)
	}

	if got, err := ObjectPath("/org/freedesktop/systemd1"); err != nil || got != "/org/freedesktop/systemd1" {
		t.Errorf("ObjectPath(string) = %q, %v", got, err)
	}
	if _, err := ObjectPath("not a path"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("ObjectPath(invalid) err = %v, want ErrTypeMismatch", err)
	}

	bs, err := Bytes(v([]byte{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(bs, []byte{1, 2, 3}); diff != "" {
		t.Errorf("Bytes wrong result (-got+want):\n%s", diff)
	}
}

func TestTime(t *testing.T) {
	d, err := Microseconds(uint64(1500000))
	if err != nil || d != 1500*time.Millisecond {
		t.Errorf("Microseconds(1500000) = %v, %v; want 1.5s", d, err)
	}
	d, err = Microseconds(uint64(math.MaxUint64))
	if err != nil || d != Infinity {
		t.Errorf("Microseconds(max) = %v, %v; want Infinity", d, err)
	}
	if _, err := Microseconds(uint64(math.MaxInt64)); !errors.Is(err, ErrOverflow) {
		t.Errorf("Microseconds(huge) err = %v, want ErrOverflow", err)
	}

	ts, err := Timestamp(uint64(0))
	if err != nil || !ts.IsZero() {
		t.Errorf("Timestamp(0) = %v, %v; want zero time", ts, err)
	}
	ts, err = Timestamp(uint64(1700000000123456))
	if err != nil {
		t.Fatal(err)
	}
	if want := time.UnixMicro(1700000000123456); !ts.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ts, want)
	}
	if _, err := Timestamp(uint64(math.MaxUint64)); !errors.Is(err, ErrOverflow) {
		t.Errorf("Timestamp(max) err = %v, want ErrOverflow", err)
	}
}

func TestSliceOf(t *testing.T) {
	got, err := Strings([]string{})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Strings(empty) = %#v, want empty non-nil slice", got)
	}

	got, err = Strings(v([]string{"c", "a", "b"}))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, []string{"c", "a", "b"}); diff != "" {
		t.Errorf("Strings wrong result (-got+want):\n%s", diff)
	}

	// Heterogeneous input, as received for DBus structs.
	ns, err := SliceOf(Uint32)([]any{byte(1), uint16(2), uint32(3)})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ns, []uint32{1, 2, 3}); diff != "" {
		t.Errorf("SliceOf(Uint32) wrong result (-got+want):\n%s", diff)
	}

	_, err = SliceOf(Uint32)([]any{uint32(1), "two"})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SliceOf(Uint32) with bad element err = %v, want ErrTypeMismatch", err)
	}
	var ie *indexError
	if !errors.As(err, &ie) || ie.index != 1 {
		t.Errorf("SliceOf(Uint32) error %v does not point at element 1", err)
	}

	if _, err := Strings("foo"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Strings(string) err = %v, want ErrTypeMismatch", err)
	}
}

func TestMapOf(t *testing.T) {
	dec := MapOf(String, Uint64)
	got, err := dec(map[string]dbus.Variant{
		"a": v(uint64(1)),
		"b": v(uint32(2)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, map[string]uint64{"a": 1, "b": 2}); diff != "" {
		t.Errorf("MapOf wrong result (-got+want):\n%s", diff)
	}
	if _, err := dec([]string{"a"}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("MapOf(slice) err = %v, want ErrTypeMismatch", err)
	}
}

func TestLimit(t *testing.T) {
	l, err := LimitValue(v(uint64(math.MaxUint64)))
	if err != nil {
		t.Fatal(err)
	}
	if !l.IsUnlimited() || l.String() != "infinity" {
		t.Errorf("LimitValue(max) = %v, want Unlimited", l)
	}
	if _, ok := l.Value(); ok {
		t.Error("Unlimited.Value() reported ok")
	}

	l, err = LimitValue(uint64(4096))
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := l.Value(); !ok || n != 4096 || l.String() != "4096" {
		t.Errorf("LimitValue(4096) = %v, want 4096", l)
	}

	if _, err := LimitValue(int64(-1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("LimitValue(-1) err = %v, want ErrOverflow", err)
	}
}

func TestSigFields(t *testing.T) {
	tests := []struct {
		sig  string
		want []string
	}{
		{"", nil},
		{"s", []string{"s"}},
		{"sasbttttuii", []string{"s", "as", "b", "t", "t", "t", "t", "u", "i", "i"}},
		{"a(st)a{sv}(ii)", []string{"a(st)", "a{sv}", "(ii)"}},
		{"aas", []string{"aas"}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(sigFields(tc.sig), tc.want); diff != "" {
			t.Errorf("sigFields(%q) wrong result (-got+want):\n%s", tc.sig, diff)
		}
	}
}
