package systemd

import (
	"context"
	"time"
)

// Properties of the org.freedesktop.systemd1.Timer interface.
var (
	TimerUnit                = Property[string]{"Unit", String}
	TimersMonotonic          = Property[[]MonotonicTimer]{"TimersMonotonic", Records(ParseMonotonicTimer)}
	TimersCalendar           = Property[[]CalendarTimer]{"TimersCalendar", Records(ParseCalendarTimer)}
	NextElapseUSecRealtime   = Property[time.Time]{"NextElapseUSecRealtime", Timestamp}
	NextElapseUSecMonotonic  = Property[time.Duration]{"NextElapseUSecMonotonic", Microseconds}
	LastTriggerUSec          = Property[time.Time]{"LastTriggerUSec", Timestamp}
	LastTriggerUSecMonotonic = Property[time.Duration]{"LastTriggerUSecMonotonic", Microseconds}
	AccuracyUSec             = Property[time.Duration]{"AccuracyUSec", Microseconds}
	RandomizedDelayUSec      = Property[time.Duration]{"RandomizedDelayUSec", Microseconds}
	Persistent               = Property[bool]{"Persistent", Bool}
	WakeSystem               = Property[bool]{"WakeSystem", Bool}
	RemainAfterElapse        = Property[bool]{"RemainAfterElapse", Bool}
)

// TimerSchema lists the properties specific to timers.
var TimerSchema = Schema{
	TimerUnit, TimersMonotonic, TimersCalendar,
	NextElapseUSecRealtime, NextElapseUSecMonotonic,
	LastTriggerUSec, LastTriggerUSecMonotonic,
	AccuracyUSec, RandomizedDelayUSec,
	Persistent, WakeSystem, RemainAfterElapse, Result,
}

// Timer is a timer unit.
//
// Timers run no processes of their own, and so have no accounting
// capabilities.
type Timer struct {
	Unit
	iface Interface
}

// NewTimer returns the timer with the given name. The ".timer" suffix
// is added if missing.
func NewTimer(conn Conn, name string) Timer {
	return timerOf(NewUnit(conn, NormalizeName(name, SuffixTimer)))
}

func timerOf(u Unit) Timer {
	return Timer{
		Unit:  u,
		iface: u.iface.Sibling(ifaceTimer),
	}
}

// Interface returns the org.freedesktop.systemd1.Timer interface of
// the timer.
func (t Timer) Interface() Interface { return t.iface }

// Accounting returns an empty Accounting.
func (t Timer) Accounting() Accounting { return Accounting{} }

// Properties returns all the properties of the timer, grouped by
// interface.
func (t Timer) Properties() []PropertySet {
	return append(t.Unit.Properties(), PropertySet{
		Interface: t.iface,
		Schema:    TimerSchema,
	})
}

// TriggerUnit returns the name of the unit the timer activates.
func (t Timer) TriggerUnit(ctx context.Context) (string, error) {
	return TimerUnit.Get(ctx, t.iface)
}

// TimersMonotonic returns the timer's triggers relative to events like
// boot.
func (t Timer) TimersMonotonic(ctx context.Context) ([]MonotonicTimer, error) {
	return TimersMonotonic.Get(ctx, t.iface)
}

// TimersCalendar returns the timer's calendar triggers.
func (t Timer) TimersCalendar(ctx context.Context) ([]CalendarTimer, error) {
	return TimersCalendar.Get(ctx, t.iface)
}

// NextElapse returns the next time a calendar trigger fires, or the
// zero time.Time if no calendar trigger is scheduled.
func (t Timer) NextElapse(ctx context.Context) (time.Time, error) {
	return NextElapseUSecRealtime.Get(ctx, t.iface)
}

// NextElapseMonotonic returns the next time a monotonic trigger fires,
// on the monotonic clock, or [Infinity].
func (t Timer) NextElapseMonotonic(ctx context.Context) (time.Duration, error) {
	return NextElapseUSecMonotonic.Get(ctx, t.iface)
}

// LastTrigger returns when the timer last elapsed, or the zero
// time.Time.
func (t Timer) LastTrigger(ctx context.Context) (time.Time, error) {
	return LastTriggerUSec.Get(ctx, t.iface)
}

// LastTriggerMonotonic is LastTrigger on the monotonic clock.
func (t Timer) LastTriggerMonotonic(ctx context.Context) (time.Duration, error) {
	return LastTriggerUSecMonotonic.Get(ctx, t.iface)
}

// Accuracy returns how much the timer may be delayed to coalesce
// wakeups.
func (t Timer) Accuracy(ctx context.Context) (time.Duration, error) {
	return AccuracyUSec.Get(ctx, t.iface)
}

// RandomizedDelay returns the upper bound of the random delay added to
// each trigger.
func (t Timer) RandomizedDelay(ctx context.Context) (time.Duration, error) {
	return RandomizedDelayUSec.Get(ctx, t.iface)
}

// Persistent reports whether triggers missed while the system was off
// run at boot.
func (t Timer) Persistent(ctx context.Context) (bool, error) {
	return Persistent.Get(ctx, t.iface)
}

// WakeSystem reports whether the timer resumes a suspended system.
func (t Timer) WakeSystem(ctx context.Context) (bool, error) {
	return WakeSystem.Get(ctx, t.iface)
}

// RemainAfterElapse reports whether the timer stays loaded after it
// elapses.
func (t Timer) RemainAfterElapse(ctx context.Context) (bool, error) {
	return RemainAfterElapse.Get(ctx, t.iface)
}

// Result returns why the timer last stopped, or "success".
func (t Timer) Result(ctx context.Context) (string, error) {
	return Result.Get(ctx, t.iface)
}
