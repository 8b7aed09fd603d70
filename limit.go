package systemd

import (
	"math"
	"strconv"
	"time"
)

// Limit is a resource limit or counter that systemd reports as a
// 64-bit unsigned integer, where the maximum value means "no limit"
// or "not available".
type Limit uint64

// Unlimited is the Limit value systemd uses for "infinity".
const Unlimited Limit = math.MaxUint64

// Infinity is the time.Duration that systemd's "infinity" duration
// decodes to.
const Infinity time.Duration = math.MaxInt64

// IsUnlimited reports whether l is systemd's "infinity" value.
func (l Limit) IsUnlimited() bool { return l == Unlimited }

// Value returns the numeric value of the limit, and false if the
// limit is [Unlimited].
func (l Limit) Value() (uint64, bool) {
	if l.IsUnlimited() {
		return 0, false
	}
	return uint64(l), true
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "infinity"
	}
	return strconv.FormatUint(uint64(l), 10)
}

// LimitValue decodes a DBus integer into a [Limit]. Negative values
// overflow.
func LimitValue(v any) (Limit, error) {
	v = unwrap(v)
	n, ok := asInteger(v)
	if !ok {
		return 0, mismatch("Limit", v)
	}
	if !n.inRange(0, math.MaxUint64) {
		return 0, overflow("Limit", v)
	}
	return Limit(n.uint64()), nil
}
