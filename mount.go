package systemd

import (
	"context"
	"time"
)

// Properties of the org.freedesktop.systemd1.Mount interface.
var (
	Where         = Property[string]{"Where", String}
	What          = Property[string]{"What", String}
	Options       = Property[string]{"Options", String}
	MountType     = Property[string]{"Type", String}
	TimeoutUSec   = Property[time.Duration]{"TimeoutUSec", Microseconds}
	DirectoryMode = Property[uint32]{"DirectoryMode", Uint32}
	SloppyOptions = Property[bool]{"SloppyOptions", Bool}
	LazyUnmount   = Property[bool]{"LazyUnmount", Bool}
	ForceUnmount  = Property[bool]{"ForceUnmount", Bool}
	ReadWriteOnly = Property[bool]{"ReadWriteOnly", Bool}
	ExecMount     = Property[[]ExecCommand]{"ExecMount", execCommands}
	ExecUnmount   = Property[[]ExecCommand]{"ExecUnmount", execCommands}
	ExecRemount   = Property[[]ExecCommand]{"ExecRemount", execCommands}
)

// MountSchema lists the properties specific to mounts.
var MountSchema = Schema{
	Where, What, Options, MountType, TimeoutUSec, ControlPID,
	DirectoryMode, SloppyOptions, LazyUnmount, ForceUnmount, ReadWriteOnly,
	Result, ExecMount, ExecUnmount, ExecRemount,
}

// Mount is a mount unit.
type Mount struct {
	Unit
	iface Interface
}

// NewMount returns the mount with the given name. The ".mount" suffix
// is added if missing.
//
// To look up a mount by its mount point, use [MountName].
func NewMount(conn Conn, name string) Mount {
	return mountOf(NewUnit(conn, NormalizeName(name, SuffixMount)))
}

func mountOf(u Unit) Mount {
	return Mount{
		Unit:  u,
		iface: u.iface.Sibling(ifaceMount),
	}
}

// Interface returns the org.freedesktop.systemd1.Mount interface of
// the mount.
func (m Mount) Interface() Interface { return m.iface }

// Accounting returns the mount's resource accounting capabilities.
func (m Mount) Accounting() Accounting { return fullAccounting(m.iface) }

// Cgroup returns the control group settings of the mount.
func (m Mount) Cgroup() Cgroup { return Cgroup{m.iface} }

// Exec returns the execution environment of the mount helpers.
func (m Mount) Exec() ExecContext { return ExecContext{m.iface} }

// Kill returns how the mount helpers are stopped.
func (m Mount) Kill() KillContext { return KillContext{m.iface} }

// Processes returns the processes in the mount's control group, such
// as a running mount helper.
func (m Mount) Processes(ctx context.Context) ([]UnitProcess, error) {
	return getProcesses(ctx, m.iface)
}

// Properties returns all the properties of the mount, grouped by
// interface.
func (m Mount) Properties() []PropertySet {
	return append(m.Unit.Properties(), PropertySet{
		Interface: m.iface,
		Schema:    concat(MountSchema, CgroupSchema, m.Accounting().Schema(), ExecSchema, KillSchema),
	})
}

// Where returns the mount point.
func (m Mount) Where(ctx context.Context) (string, error) {
	return Where.Get(ctx, m.iface)
}

// What returns the mounted device or source.
func (m Mount) What(ctx context.Context) (string, error) {
	return What.Get(ctx, m.iface)
}

// Options returns the mount options.
func (m Mount) Options(ctx context.Context) (string, error) {
	return Options.Get(ctx, m.iface)
}

// Type returns the filesystem type.
func (m Mount) Type(ctx context.Context) (string, error) {
	return MountType.Get(ctx, m.iface)
}

// Timeout returns how long the mount helpers may run.
func (m Mount) Timeout(ctx context.Context) (time.Duration, error) {
	return TimeoutUSec.Get(ctx, m.iface)
}

// ControlPID returns the PID of the running mount helper, or 0.
func (m Mount) ControlPID(ctx context.Context) (uint32, error) {
	return ControlPID.Get(ctx, m.iface)
}

// DirectoryMode returns the mode of mount point directories created by
// systemd.
func (m Mount) DirectoryMode(ctx context.Context) (uint32, error) {
	return DirectoryMode.Get(ctx, m.iface)
}

// SloppyOptions reports whether unknown mount options are tolerated.
func (m Mount) SloppyOptions(ctx context.Context) (bool, error) {
	return SloppyOptions.Get(ctx, m.iface)
}

// LazyUnmount reports whether the file system is detached lazily.
func (m Mount) LazyUnmount(ctx context.Context) (bool, error) {
	return LazyUnmount.Get(ctx, m.iface)
}

// ForceUnmount reports whether unmounting is forced.
func (m Mount) ForceUnmount(ctx context.Context) (bool, error) {
	return ForceUnmount.Get(ctx, m.iface)
}

// ReadWriteOnly reports whether failing to mount read-write is an
// error.
func (m Mount) ReadWriteOnly(ctx context.Context) (bool, error) {
	return ReadWriteOnly.Get(ctx, m.iface)
}

// Result returns the outcome of the last mount or unmount, for example
// "success".
func (m Mount) Result(ctx context.Context) (string, error) {
	return Result.Get(ctx, m.iface)
}

// ExecMount returns the mount command.
func (m Mount) ExecMount(ctx context.Context) ([]ExecCommand, error) {
	return ExecMount.Get(ctx, m.iface)
}

// ExecUnmount returns the unmount command.
func (m Mount) ExecUnmount(ctx context.Context) ([]ExecCommand, error) {
	return ExecUnmount.Get(ctx, m.iface)
}

// ExecRemount returns the command run to change mount options.
func (m Mount) ExecRemount(ctx context.Context) ([]ExecCommand, error) {
	return ExecRemount.Get(ctx, m.iface)
}
