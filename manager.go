package systemd

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Properties of the org.freedesktop.systemd1.Manager interface.
var (
	Version               = Property[string]{"Version", String}
	Features              = Property[string]{"Features", String}
	Virtualization        = Property[string]{"Virtualization", String}
	Architecture          = Property[string]{"Architecture", String}
	Tainted               = Property[string]{"Tainted", String}
	SystemState           = Property[string]{"SystemState", String}
	NNames                = Property[uint32]{"NNames", Uint32}
	NFailedUnits          = Property[uint32]{"NFailedUnits", Uint32}
	NJobs                 = Property[uint32]{"NJobs", Uint32}
	UnitSearchPath        = Property[[]string]{"UnitPath", Strings}
	DefaultStandardOutput = Property[string]{"DefaultStandardOutput", String}
)

// ManagerSchema lists the properties of the manager.
var ManagerSchema = Schema{
	Version, Features, Virtualization, Architecture, Tainted, SystemState,
	NNames, NFailedUnits, NJobs, UnitSearchPath, DefaultStandardOutput,
}

// Manager is the systemd manager, which owns all units.
type Manager struct {
	conn  Conn
	iface Interface
}

// NewManager returns the systemd manager reachable over conn.
func NewManager(conn Conn) Manager {
	return Manager{
		conn:  conn,
		iface: NewInterface(conn, ManagerPath, ifaceManager),
	}
}

// Interface returns the org.freedesktop.systemd1.Manager interface.
func (m Manager) Interface() Interface { return m.iface }

// Properties returns the manager's properties.
func (m Manager) Properties() []PropertySet {
	return []PropertySet{{m.iface, ManagerSchema}}
}

// Unit returns a handle to the unit with the given full name. It
// does not check that the unit exists.
func (m Manager) Unit(name string) Unit { return NewUnit(m.conn, name) }

// Service returns a handle to the named service.
func (m Manager) Service(name string) Service { return NewService(m.conn, name) }

// Scope returns a handle to the named scope.
func (m Manager) Scope(name string) Scope { return NewScope(m.conn, name) }

// Mount returns a handle to the named mount.
func (m Manager) Mount(name string) Mount { return NewMount(m.conn, name) }

// Socket returns a handle to the named socket.
func (m Manager) Socket(name string) Socket { return NewSocket(m.conn, name) }

// Timer returns a handle to the named timer.
func (m Manager) Timer(name string) Timer { return NewTimer(m.conn, name) }

// GetUnit returns the loaded unit with the given full name. It fails
// with [ErrNotFound] if systemd has not loaded the unit.
func (m Manager) GetUnit(ctx context.Context, name string) (Unit, error) {
	var path dbus.ObjectPath
	if err := m.iface.Call(ctx, "GetUnit", []any{name}, &path); err != nil {
		return Unit{}, err
	}
	return unitAt(m.conn, name, path), nil
}

// LoadUnit returns the unit with the given full name, loading its
// configuration if needed. Units that do not exist are returned with
// a LoadState of "not-found".
func (m Manager) LoadUnit(ctx context.Context, name string) (Unit, error) {
	var path dbus.ObjectPath
	if err := m.iface.Call(ctx, "LoadUnit", []any{name}, &path); err != nil {
		return Unit{}, err
	}
	return unitAt(m.conn, name, path), nil
}

// GetUnitByPID returns the unit that owns the process pid.
func (m Manager) GetUnitByPID(ctx context.Context, pid uint32) (Unit, error) {
	var path dbus.ObjectPath
	if err := m.iface.Call(ctx, "GetUnitByPID", []any{pid}, &path); err != nil {
		return Unit{}, err
	}
	u := unitAt(m.conn, "", path)
	name, err := u.ID(ctx)
	if err != nil {
		return Unit{}, err
	}
	u.name = name
	return u, nil
}

var unitStatuses = Records(ParseUnitStatus)

func (m Manager) listUnits(ctx context.Context, method string, args ...any) ([]UnitStatus, error) {
	var raw [][]any
	if err := m.iface.Call(ctx, method, args, &raw); err != nil {
		return nil, err
	}
	ret, err := unitStatuses(raw)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", ifaceManager, method, err)
	}
	return ret, nil
}

// ListUnits returns the status of all units currently loaded by
// systemd.
func (m Manager) ListUnits(ctx context.Context) ([]UnitStatus, error) {
	return m.listUnits(ctx, "ListUnits")
}

// ListUnitsFiltered returns the status of the loaded units whose
// LoadState, ActiveState or SubState is one of states.
func (m Manager) ListUnitsFiltered(ctx context.Context, states []string) ([]UnitStatus, error) {
	return m.listUnits(ctx, "ListUnitsFiltered", states)
}

// ListUnitsByPatterns is like ListUnitsFiltered, but also only
// returns units whose name matches one of the shell glob patterns.
func (m Manager) ListUnitsByPatterns(ctx context.Context, states, patterns []string) ([]UnitStatus, error) {
	return m.listUnits(ctx, "ListUnitsByPatterns", states, patterns)
}

func (m Manager) unitJob(ctx context.Context, method, name, mode string) (dbus.ObjectPath, error) {
	var job dbus.ObjectPath
	if err := m.iface.Call(ctx, method, []any{name, mode}, &job); err != nil {
		return "", err
	}
	return job, nil
}

// StartUnit queues a job to start the named unit, and returns the
// job's object path. mode is one of the Mode constants.
func (m Manager) StartUnit(ctx context.Context, name, mode string) (dbus.ObjectPath, error) {
	return m.unitJob(ctx, "StartUnit", name, mode)
}

// StopUnit queues a job to stop the named unit.
func (m Manager) StopUnit(ctx context.Context, name, mode string) (dbus.ObjectPath, error) {
	return m.unitJob(ctx, "StopUnit", name, mode)
}

// RestartUnit queues a job to restart the named unit.
func (m Manager) RestartUnit(ctx context.Context, name, mode string) (dbus.ObjectPath, error) {
	return m.unitJob(ctx, "RestartUnit", name, mode)
}

// ReloadUnit queues a job to reload the named unit.
func (m Manager) ReloadUnit(ctx context.Context, name, mode string) (dbus.ObjectPath, error) {
	return m.unitJob(ctx, "ReloadUnit", name, mode)
}

// Subscribe asks systemd to emit unit and job signals to this bus
// client. Most signals are suppressed until at least one client
// subscribes.
func (m Manager) Subscribe(ctx context.Context) error {
	return m.iface.Call(ctx, "Subscribe", nil)
}

// Unsubscribe reverses a previous Subscribe.
func (m Manager) Unsubscribe(ctx context.Context) error {
	return m.iface.Call(ctx, "Unsubscribe", nil)
}

// Reload reloads all unit files, like "systemctl daemon-reload".
func (m Manager) Reload(ctx context.Context) error {
	return m.iface.Call(ctx, "Reload", nil)
}

// Version returns the version string of the running systemd.
func (m Manager) Version(ctx context.Context) (string, error) {
	return Version.Get(ctx, m.iface)
}

// Features returns the compile-time features of systemd, as a string
// like "+PAM -APPARMOR".
func (m Manager) Features(ctx context.Context) (string, error) {
	return Features.Get(ctx, m.iface)
}

// Virtualization returns the detected virtualization technology, or "".
func (m Manager) Virtualization(ctx context.Context) (string, error) {
	return Virtualization.Get(ctx, m.iface)
}

// Architecture returns the CPU architecture systemd was built for, in
// systemd's naming, for example "x86-64".
func (m Manager) Architecture(ctx context.Context) (string, error) {
	return Architecture.Get(ctx, m.iface)
}

// Tainted returns a colon-separated list of the ways the system is
// tainted, or "".
func (m Manager) Tainted(ctx context.Context) (string, error) {
	return Tainted.Get(ctx, m.iface)
}

// SystemState returns the overall state of the system: for example
// "running", "degraded" or "starting".
func (m Manager) SystemState(ctx context.Context) (string, error) {
	return SystemState.Get(ctx, m.iface)
}

// NNames returns the number of loaded unit names, aliases included.
func (m Manager) NNames(ctx context.Context) (uint32, error) {
	return NNames.Get(ctx, m.iface)
}

// NFailedUnits returns the number of units in the failed state.
func (m Manager) NFailedUnits(ctx context.Context) (uint32, error) {
	return NFailedUnits.Get(ctx, m.iface)
}

// NJobs returns the number of queued jobs.
func (m Manager) NJobs(ctx context.Context) (uint32, error) {
	return NJobs.Get(ctx, m.iface)
}

// UnitSearchPath returns the directories systemd searches for unit
// files.
func (m Manager) UnitSearchPath(ctx context.Context) ([]string, error) {
	return UnitSearchPath.Get(ctx, m.iface)
}

// DefaultStandardOutput returns the default StandardOutput of services.
func (m Manager) DefaultStandardOutput(ctx context.Context) (string, error) {
	return DefaultStandardOutput.Get(ctx, m.iface)
}
