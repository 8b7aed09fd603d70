package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// Properties common to all units, on the org.freedesktop.systemd1.Unit
// interface.
var (
	ID                     = Property[string]{"Id", String}
	Names                  = Property[[]string]{"Names", Strings}
	Following              = Property[string]{"Following", String}
	Requires               = Property[[]string]{"Requires", Strings}
	Wants                  = Property[[]string]{"Wants", Strings}
	BindsTo                = Property[[]string]{"BindsTo", Strings}
	Conflicts              = Property[[]string]{"Conflicts", Strings}
	Before                 = Property[[]string]{"Before", Strings}
	After                  = Property[[]string]{"After", Strings}
	Triggers               = Property[[]string]{"Triggers", Strings}
	TriggeredBy            = Property[[]string]{"TriggeredBy", Strings}
	Description            = Property[string]{"Description", String}
	LoadState              = Property[string]{"LoadState", String}
	ActiveState            = Property[string]{"ActiveState", String}
	SubState               = Property[string]{"SubState", String}
	FragmentPath           = Property[string]{"FragmentPath", String}
	SourcePath             = Property[string]{"SourcePath", String}
	DropInPaths            = Property[[]string]{"DropInPaths", Strings}
	UnitFileState          = Property[string]{"UnitFileState", String}
	UnitFilePreset         = Property[string]{"UnitFilePreset", String}
	StateChangeTimestamp   = Property[time.Time]{"StateChangeTimestamp", Timestamp}
	InactiveExitTimestamp  = Property[time.Time]{"InactiveExitTimestamp", Timestamp}
	ActiveEnterTimestamp   = Property[time.Time]{"ActiveEnterTimestamp", Timestamp}
	ActiveExitTimestamp    = Property[time.Time]{"ActiveExitTimestamp", Timestamp}
	InactiveEnterTimestamp = Property[time.Time]{"InactiveEnterTimestamp", Timestamp}
	CanStart               = Property[bool]{"CanStart", Bool}
	CanStop                = Property[bool]{"CanStop", Bool}
	CanReload              = Property[bool]{"CanReload", Bool}
	CanIsolate             = Property[bool]{"CanIsolate", Bool}
	Transient              = Property[bool]{"Transient", Bool}
	Perpetual              = Property[bool]{"Perpetual", Bool}
	StartLimitIntervalUSec = Property[time.Duration]{"StartLimitIntervalUSec", Microseconds}
	StartLimitBurst        = Property[uint32]{"StartLimitBurst", Uint32}
	StartLimitAction       = Property[string]{"StartLimitAction", String}
	FailureAction          = Property[string]{"FailureAction", String}
	SuccessAction          = Property[string]{"SuccessAction", String}
	InvocationID           = Property[[]byte]{"InvocationID", Bytes}
)

// UnitSchema lists the properties common to all units.
var UnitSchema = Schema{
	ID, Names, Following,
	Requires, Wants, BindsTo, Conflicts, Before, After, Triggers, TriggeredBy,
	Description, LoadState, ActiveState, SubState,
	FragmentPath, SourcePath, DropInPaths, UnitFileState, UnitFilePreset,
	StateChangeTimestamp, InactiveExitTimestamp, ActiveEnterTimestamp,
	ActiveExitTimestamp, InactiveEnterTimestamp,
	CanStart, CanStop, CanReload, CanIsolate, Transient, Perpetual,
	StartLimitIntervalUSec, StartLimitBurst, StartLimitAction,
	FailureAction, SuccessAction, InvocationID,
}

// Unit is a systemd unit of any type.
//
// A Unit is a handle: creating one does not check that the unit
// exists, and every method call reads fresh state from systemd.
type Unit struct {
	name  string
	iface Interface
}

// NewUnit returns the unit with the given full name, for example
// "cron.service".
func NewUnit(conn Conn, name string) Unit {
	return Unit{
		name:  name,
		iface: NewInterface(conn, UnitPath(name), ifaceUnit),
	}
}

// unitAt returns the unit at an object path obtained from systemd.
func unitAt(conn Conn, name string, path dbus.ObjectPath) Unit {
	return Unit{
		name:  name,
		iface: NewInterface(conn, path, ifaceUnit),
	}
}

// Name returns the name the unit was looked up by.
func (u Unit) Name() string { return u.name }

// Path returns the unit's object path.
func (u Unit) Path() dbus.ObjectPath { return u.iface.Path() }

// UnitInterface returns the org.freedesktop.systemd1.Unit interface of
// the unit.
func (u Unit) UnitInterface() Interface { return u.iface }

// String returns the unit's full name.
func (u Unit) String() string { return u.name }

// ID returns the unit's primary name.
func (u Unit) ID(ctx context.Context) (string, error) {
	return ID.Get(ctx, u.iface)
}

// Names returns all the names of the unit, including aliases.
func (u Unit) Names(ctx context.Context) ([]string, error) {
	return Names.Get(ctx, u.iface)
}

// Following returns the name of the unit this one follows the state of,
// or "".
func (u Unit) Following(ctx context.Context) (string, error) {
	return Following.Get(ctx, u.iface)
}

// Requires returns the units this unit requires.
func (u Unit) Requires(ctx context.Context) ([]string, error) {
	return Requires.Get(ctx, u.iface)
}

// Wants returns the units this unit wants.
func (u Unit) Wants(ctx context.Context) ([]string, error) {
	return Wants.Get(ctx, u.iface)
}

// BindsTo returns the units this unit is bound to.
func (u Unit) BindsTo(ctx context.Context) ([]string, error) {
	return BindsTo.Get(ctx, u.iface)
}

// Conflicts returns the units that cannot run alongside this one.
func (u Unit) Conflicts(ctx context.Context) ([]string, error) {
	return Conflicts.Get(ctx, u.iface)
}

// Before returns the units that start after this one.
func (u Unit) Before(ctx context.Context) ([]string, error) {
	return Before.Get(ctx, u.iface)
}

// After returns the units that start before this one.
func (u Unit) After(ctx context.Context) ([]string, error) {
	return After.Get(ctx, u.iface)
}

// Triggers returns the units this unit activates, for example the
// service of a socket.
func (u Unit) Triggers(ctx context.Context) ([]string, error) {
	return Triggers.Get(ctx, u.iface)
}

// TriggeredBy returns the units that activate this one.
func (u Unit) TriggeredBy(ctx context.Context) ([]string, error) {
	return TriggeredBy.Get(ctx, u.iface)
}

// Description returns the human readable description of the unit.
func (u Unit) Description(ctx context.Context) (string, error) {
	return Description.Get(ctx, u.iface)
}

// LoadState returns whether the unit's configuration was loaded:
// "loaded", "not-found", "bad-setting", "error" or "masked".
func (u Unit) LoadState(ctx context.Context) (string, error) {
	return LoadState.Get(ctx, u.iface)
}

// ActiveState returns the high-level state of the unit: "active",
// "reloading", "inactive", "failed", "activating" or "deactivating".
func (u Unit) ActiveState(ctx context.Context) (string, error) {
	return ActiveState.Get(ctx, u.iface)
}

// SubState returns the low-level, unit type specific state of the
// unit.
func (u Unit) SubState(ctx context.Context) (string, error) {
	return SubState.Get(ctx, u.iface)
}

// FragmentPath returns the unit file the unit was loaded from, or "".
func (u Unit) FragmentPath(ctx context.Context) (string, error) {
	return FragmentPath.Get(ctx, u.iface)
}

// SourcePath returns the file the unit was generated from, or "".
func (u Unit) SourcePath(ctx context.Context) (string, error) {
	return SourcePath.Get(ctx, u.iface)
}

// DropInPaths returns the drop-in files applied to the unit.
func (u Unit) DropInPaths(ctx context.Context) ([]string, error) {
	return DropInPaths.Get(ctx, u.iface)
}

// UnitFileState returns the enablement state of the unit file, for
// example "enabled".
func (u Unit) UnitFileState(ctx context.Context) (string, error) {
	return UnitFileState.Get(ctx, u.iface)
}

// UnitFilePreset returns the preset enablement of the unit file.
func (u Unit) UnitFilePreset(ctx context.Context) (string, error) {
	return UnitFilePreset.Get(ctx, u.iface)
}

// StateChangeTimestamp returns when the unit last changed state.
func (u Unit) StateChangeTimestamp(ctx context.Context) (time.Time, error) {
	return StateChangeTimestamp.Get(ctx, u.iface)
}

// InactiveExitTimestamp returns when the unit last left the inactive
// state.
func (u Unit) InactiveExitTimestamp(ctx context.Context) (time.Time, error) {
	return InactiveExitTimestamp.Get(ctx, u.iface)
}

// ActiveEnterTimestamp returns when the unit last became active.
func (u Unit) ActiveEnterTimestamp(ctx context.Context) (time.Time, error) {
	return ActiveEnterTimestamp.Get(ctx, u.iface)
}

// ActiveExitTimestamp returns when the unit last stopped being active.
func (u Unit) ActiveExitTimestamp(ctx context.Context) (time.Time, error) {
	return ActiveExitTimestamp.Get(ctx, u.iface)
}

// InactiveEnterTimestamp returns when the unit last became inactive.
func (u Unit) InactiveEnterTimestamp(ctx context.Context) (time.Time, error) {
	return InactiveEnterTimestamp.Get(ctx, u.iface)
}

// CanStart reports whether the unit can be started.
func (u Unit) CanStart(ctx context.Context) (bool, error) {
	return CanStart.Get(ctx, u.iface)
}

// CanStop reports whether the unit can be stopped.
func (u Unit) CanStop(ctx context.Context) (bool, error) {
	return CanStop.Get(ctx, u.iface)
}

// CanReload reports whether the unit supports reloading.
func (u Unit) CanReload(ctx context.Context) (bool, error) {
	return CanReload.Get(ctx, u.iface)
}

// CanIsolate reports whether the unit can be isolated to.
func (u Unit) CanIsolate(ctx context.Context) (bool, error) {
	return CanIsolate.Get(ctx, u.iface)
}

// Transient reports whether the unit was created at runtime, rather
// than loaded from a unit file.
func (u Unit) Transient(ctx context.Context) (bool, error) {
	return Transient.Get(ctx, u.iface)
}

// Perpetual reports whether the unit is always active, like -.mount.
func (u Unit) Perpetual(ctx context.Context) (bool, error) {
	return Perpetual.Get(ctx, u.iface)
}

// StartLimitInterval returns the window over which starts are rate
// limited.
func (u Unit) StartLimitInterval(ctx context.Context) (time.Duration, error) {
	return StartLimitIntervalUSec.Get(ctx, u.iface)
}

// StartLimitBurst returns how many starts are allowed per
// StartLimitInterval.
func (u Unit) StartLimitBurst(ctx context.Context) (uint32, error) {
	return StartLimitBurst.Get(ctx, u.iface)
}

// StartLimitAction returns what happens when the start limit is hit.
func (u Unit) StartLimitAction(ctx context.Context) (string, error) {
	return StartLimitAction.Get(ctx, u.iface)
}

// FailureAction returns what happens when the unit fails.
func (u Unit) FailureAction(ctx context.Context) (string, error) {
	return FailureAction.Get(ctx, u.iface)
}

// SuccessAction returns what happens when the unit stops successfully.
func (u Unit) SuccessAction(ctx context.Context) (string, error) {
	return SuccessAction.Get(ctx, u.iface)
}

// InvocationID returns the 128-bit ID of the unit's current
// invocation, or nil if the unit is not running.
func (u Unit) InvocationID(ctx context.Context) ([]byte, error) {
	id, err := InvocationID.Get(ctx, u.iface)
	if err != nil {
		return nil, err
	}
	if len(id) == 0 {
		return nil, nil
	}
	return id, nil
}

// Job modes accepted by the unit control methods.
const (
	ModeReplace            = "replace"
	ModeFail               = "fail"
	ModeIsolate            = "isolate"
	ModeIgnoreDependencies = "ignore-dependencies"
	ModeIgnoreRequirements = "ignore-requirements"
)

// job calls a unit control method that returns the path of the
// queued job.
func (u Unit) job(ctx context.Context, method, mode string) (dbus.ObjectPath, error) {
	var ret dbus.ObjectPath
	if err := u.iface.Call(ctx, method, []any{mode}, &ret); err != nil {
		return "", err
	}
	return ret, nil
}

// Start queues a start job for the unit, and returns the job's object
// path. mode is one of the Mode constants.
func (u Unit) Start(ctx context.Context, mode string) (dbus.ObjectPath, error) {
	return u.job(ctx, "Start", mode)
}

// Stop queues a stop job for the unit.
func (u Unit) Stop(ctx context.Context, mode string) (dbus.ObjectPath, error) {
	return u.job(ctx, "Stop", mode)
}

// Restart queues a restart job for the unit.
func (u Unit) Restart(ctx context.Context, mode string) (dbus.ObjectPath, error) {
	return u.job(ctx, "Restart", mode)
}

// Reload queues a reload job for the unit.
func (u Unit) Reload(ctx context.Context, mode string) (dbus.ObjectPath, error) {
	return u.job(ctx, "Reload", mode)
}

// Properties returns the unit's common properties.
func (u Unit) Properties() []PropertySet {
	return []PropertySet{{u.iface, UnitSchema}}
}

// getProcesses calls GetProcesses on a unit type interface that
// supports it.
func getProcesses(ctx context.Context, iface Interface) ([]UnitProcess, error) {
	var raw [][]any
	if err := iface.Call(ctx, "GetProcesses", nil, &raw); err != nil {
		return nil, err
	}
	ret, err := Records(ParseUnitProcess)(raw)
	if err != nil {
		return nil, fmt.Errorf("%s.GetProcesses on %s: %w", iface.Name(), iface.Path(), err)
	}
	return ret, nil
}
