package systemd

import (
	"fmt"
	"net/netip"
	"reflect"
	"time"

	"github.com/godbus/dbus/v5"
)

// Record returns a decoder for a single DBus struct, which parse
// converts into a T.
func Record[T any](parse func(fields []any) (T, error)) Decoder[T] {
	return func(v any) (T, error) {
		fields, err := structFields(v)
		if err != nil {
			var zero T
			return zero, err
		}
		return parse(fields)
	}
}

// Records returns a decoder for an array of DBus structs, each of
// which parse converts into a T. Order is preserved, and an empty
// array decodes to an empty, non-nil slice.
func Records[T any](parse func(fields []any) (T, error)) Decoder[[]T] {
	return SliceOf(Record(parse))
}

// structFields returns the fields of the DBus struct v.
func structFields(v any) ([]any, error) {
	v = unwrap(v)
	if fs, ok := v.([]any); ok {
		return fs, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, mismatch("struct", v)
	}
	ret := make([]any, rv.Len())
	for i := range ret {
		ret[i] = rv.Index(i).Interface()
	}
	return ret, nil
}

// fields is a positional reader over the fields of a DBus struct.
// It remembers the first error encountered, so that parsers can read
// every field and check for failure once.
type fields struct {
	record string
	vals   []any
	err    error
}

// readFields checks that vals has exactly the arity of record's
// schema sig.
func readFields(record, sig string, vals []any) (*fields, error) {
	want := len(sigFields(sig))
	if len(vals) != want {
		return nil, malformed(fmt.Sprintf("%s (%s)", record, sig), vals, "got %d fields, want %d", len(vals), want)
	}
	return &fields{record: record, vals: vals}, nil
}

// field decodes field i of f with dec. After the first failure, it
// returns zero values.
func field[T any](f *fields, i int, dec func(any) (T, error)) T {
	var zero T
	if f.err != nil {
		return zero
	}
	ret, err := dec(f.vals[i])
	if err != nil {
		f.err = fmt.Errorf("%s field %d: %w", f.record, i, err)
		return zero
	}
	return ret
}

// sigFields splits a struct body signature like "sasb" into its
// complete types: "s", "as", "b".
func sigFields(sig string) []string {
	var ret []string
	for len(sig) > 0 {
		n := completeType(sig)
		ret = append(ret, sig[:n])
		sig = sig[n:]
	}
	return ret
}

// completeType returns the length of the single complete type at the
// start of sig.
func completeType(sig string) int {
	switch sig[0] {
	case 'a':
		return 1 + completeType(sig[1:])
	case '(', '{':
		depth := 0
		for i := range len(sig) {
			switch sig[i] {
			case '(', '{':
				depth++
			case ')', '}':
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
		return len(sig)
	default:
		return 1
	}
}

// IOBandwidth is a bandwidth or IOPS limit on one block device.
type IOBandwidth struct {
	// Path is the block device node, or a file on the device's
	// filesystem.
	Path string
	// Limit is the limit, in bytes or operations per second.
	Limit Limit
}

// ParseIOBandwidth parses an (st) struct.
func ParseIOBandwidth(vals []any) (IOBandwidth, error) {
	f, err := readFields("IOBandwidth", "st", vals)
	if err != nil {
		return IOBandwidth{}, err
	}
	ret := IOBandwidth{
		Path:  field(f, 0, String),
		Limit: field(f, 1, LimitValue),
	}
	if f.err != nil {
		return IOBandwidth{}, f.err
	}
	return ret, nil
}

// DeviceWeight is a relative IO weight for one block device.
type DeviceWeight struct {
	// Path is the block device node, or a file on the device's
	// filesystem.
	Path   string
	Weight uint64
}

// ParseDeviceWeight parses an (st) struct.
func ParseDeviceWeight(vals []any) (DeviceWeight, error) {
	f, err := readFields("DeviceWeight", "st", vals)
	if err != nil {
		return DeviceWeight{}, err
	}
	ret := DeviceWeight{
		Path:   field(f, 0, String),
		Weight: field(f, 1, Uint64),
	}
	if f.err != nil {
		return DeviceWeight{}, f.err
	}
	return ret, nil
}

// DeviceRule is one entry of a unit's device access list.
type DeviceRule struct {
	// Path is a device node path, or a device class like "char-pts".
	Path string
	// Permissions is a combination of "r", "w" and "m".
	Permissions string
}

// ParseDeviceRule parses an (ss) struct.
func ParseDeviceRule(vals []any) (DeviceRule, error) {
	f, err := readFields("DeviceRule", "ss", vals)
	if err != nil {
		return DeviceRule{}, err
	}
	ret := DeviceRule{
		Path:        field(f, 0, String),
		Permissions: field(f, 1, String),
	}
	if f.err != nil {
		return DeviceRule{}, f.err
	}
	return ret, nil
}

// EnvironmentFile is a file from which a unit reads environment
// variables.
type EnvironmentFile struct {
	Path string
	// Optional is true if a missing file is not an error.
	Optional bool
}

// ParseEnvironmentFile parses an (sb) struct.
func ParseEnvironmentFile(vals []any) (EnvironmentFile, error) {
	f, err := readFields("EnvironmentFile", "sb", vals)
	if err != nil {
		return EnvironmentFile{}, err
	}
	ret := EnvironmentFile{
		Path:     field(f, 0, String),
		Optional: field(f, 1, Bool),
	}
	if f.err != nil {
		return EnvironmentFile{}, f.err
	}
	return ret, nil
}

// SecurityLabel is a mandatory access control label for a unit's
// processes, such as an SELinux context or AppArmor profile.
type SecurityLabel struct {
	// IgnoreErrors is true if failing to apply the label is not an
	// error.
	IgnoreErrors bool
	Label        string
}

// ParseSecurityLabel parses a (bs) struct.
func ParseSecurityLabel(vals []any) (SecurityLabel, error) {
	f, err := readFields("SecurityLabel", "bs", vals)
	if err != nil {
		return SecurityLabel{}, err
	}
	ret := SecurityLabel{
		IgnoreErrors: field(f, 0, Bool),
		Label:        field(f, 1, String),
	}
	if f.err != nil {
		return SecurityLabel{}, f.err
	}
	return ret, nil
}

// NameFilter is an allow or deny list of names, such as system calls
// or address families.
type NameFilter struct {
	// Allow is true if Names is an allow list, false if it is a deny
	// list.
	Allow bool
	Names []string
}

// ParseNameFilter parses a (bas) struct.
func ParseNameFilter(vals []any) (NameFilter, error) {
	f, err := readFields("NameFilter", "bas", vals)
	if err != nil {
		return NameFilter{}, err
	}
	ret := NameFilter{
		Allow: field(f, 0, Bool),
		Names: field(f, 1, Strings),
	}
	if f.err != nil {
		return NameFilter{}, f.err
	}
	return ret, nil
}

// Address families used by systemd's IP access lists.
const (
	afInet  = 2
	afInet6 = 10
)

// IPAddressRule is one entry of a unit's IP access list.
type IPAddressRule struct {
	Prefix netip.Prefix
}

// ParseIPAddressRule parses an (iayu) struct.
func ParseIPAddressRule(vals []any) (IPAddressRule, error) {
	f, err := readFields("IPAddressRule", "iayu", vals)
	if err != nil {
		return IPAddressRule{}, err
	}
	family := field(f, 0, Int32)
	raw := field(f, 1, Bytes)
	bits := field(f, 2, Uint32)
	if f.err != nil {
		return IPAddressRule{}, f.err
	}

	want := "IPAddressRule (iayu)"
	var (
		addr netip.Addr
		ok   bool
	)
	switch family {
	case afInet:
		addr, ok = netip.AddrFromSlice(raw)
		ok = ok && addr.Is4()
	case afInet6:
		addr, ok = netip.AddrFromSlice(raw)
		ok = ok && addr.Is6()
	default:
		return IPAddressRule{}, malformed(want, vals, "unknown address family %d", family)
	}
	if !ok {
		return IPAddressRule{}, malformed(want, vals, "%d byte address for family %d", len(raw), family)
	}
	if int(bits) > addr.BitLen() {
		return IPAddressRule{}, malformed(want, vals, "prefix length %d too long for %s", bits, addr)
	}
	return IPAddressRule{netip.PrefixFrom(addr, int(bits))}, nil
}

// Listener is one address a socket unit listens on.
type Listener struct {
	// Type is the kind of listener, for example "Stream",
	// "Datagram" or "FIFO".
	Type    string
	Address string
}

// ParseListener parses an (ss) struct.
func ParseListener(vals []any) (Listener, error) {
	f, err := readFields("Listener", "ss", vals)
	if err != nil {
		return Listener{}, err
	}
	ret := Listener{
		Type:    field(f, 0, String),
		Address: field(f, 1, String),
	}
	if f.err != nil {
		return Listener{}, f.err
	}
	return ret, nil
}

// MonotonicTimer is a timer trigger relative to some event, such as
// boot or the last activation of the triggered unit.
type MonotonicTimer struct {
	// Base is the event the timer is relative to, for example
	// "OnBootUSec".
	Base   string
	Offset time.Duration
	// NextElapse is the next time the trigger fires, on the
	// monotonic clock.
	NextElapse time.Duration
}

// ParseMonotonicTimer parses an (stt) struct.
func ParseMonotonicTimer(vals []any) (MonotonicTimer, error) {
	f, err := readFields("MonotonicTimer", "stt", vals)
	if err != nil {
		return MonotonicTimer{}, err
	}
	ret := MonotonicTimer{
		Base:       field(f, 0, String),
		Offset:     field(f, 1, Microseconds),
		NextElapse: field(f, 2, Microseconds),
	}
	if f.err != nil {
		return MonotonicTimer{}, f.err
	}
	return ret, nil
}

// CalendarTimer is a timer trigger on wall-clock time.
type CalendarTimer struct {
	// Base is always "OnCalendar".
	Base string
	// Spec is the normalized calendar event expression.
	Spec       string
	NextElapse time.Time
}

// ParseCalendarTimer parses an (sst) struct.
func ParseCalendarTimer(vals []any) (CalendarTimer, error) {
	f, err := readFields("CalendarTimer", "sst", vals)
	if err != nil {
		return CalendarTimer{}, err
	}
	ret := CalendarTimer{
		Base:       field(f, 0, String),
		Spec:       field(f, 1, String),
		NextElapse: field(f, 2, Timestamp),
	}
	if f.err != nil {
		return CalendarTimer{}, f.err
	}
	return ret, nil
}

// UnitProcess is a process running in a unit's control group.
type UnitProcess struct {
	// ControlGroup is the control group path of the process,
	// relative to the unit's own control group.
	ControlGroup string
	PID          uint32
	Command      string
}

// ParseUnitProcess parses an (sus) struct.
func ParseUnitProcess(vals []any) (UnitProcess, error) {
	f, err := readFields("UnitProcess", "sus", vals)
	if err != nil {
		return UnitProcess{}, err
	}
	ret := UnitProcess{
		ControlGroup: field(f, 0, String),
		PID:          field(f, 1, Uint32),
		Command:      field(f, 2, String),
	}
	if f.err != nil {
		return UnitProcess{}, f.err
	}
	return ret, nil
}

// UnitStatus is the summary of a unit returned by
// [Manager.ListUnits].
type UnitStatus struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	// Followed is the unit this unit follows in state, or "".
	Followed string
	Path     dbus.ObjectPath
	// JobID is the ID of the job queued for the unit, or 0.
	JobID   uint32
	JobType string
	JobPath dbus.ObjectPath
}

// ParseUnitStatus parses an (ssssssouso) struct.
func ParseUnitStatus(vals []any) (UnitStatus, error) {
	f, err := readFields("UnitStatus", "ssssssouso", vals)
	if err != nil {
		return UnitStatus{}, err
	}
	ret := UnitStatus{
		Name:        field(f, 0, String),
		Description: field(f, 1, String),
		LoadState:   field(f, 2, String),
		ActiveState: field(f, 3, String),
		SubState:    field(f, 4, String),
		Followed:    field(f, 5, String),
		Path:        field(f, 6, ObjectPath),
		JobID:       field(f, 7, Uint32),
		JobType:     field(f, 8, String),
		JobPath:     field(f, 9, ObjectPath),
	}
	if f.err != nil {
		return UnitStatus{}, f.err
	}
	return ret, nil
}
