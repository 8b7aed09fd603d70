package systemd

import (
	"context"
	"time"
)

// Properties of the org.freedesktop.systemd1.Service interface.
//
// Some of these, like [Result] and [ControlPID], are also published by
// other unit types.
var (
	ServiceType            = Property[string]{"Type", String}
	Restart                = Property[string]{"Restart", String}
	PIDFile                = Property[string]{"PIDFile", String}
	NotifyAccess           = Property[string]{"NotifyAccess", String}
	RestartUSec            = Property[time.Duration]{"RestartUSec", Microseconds}
	TimeoutStartUSec       = Property[time.Duration]{"TimeoutStartUSec", Microseconds}
	TimeoutStopUSec        = Property[time.Duration]{"TimeoutStopUSec", Microseconds}
	RuntimeMaxUSec         = Property[time.Duration]{"RuntimeMaxUSec", Microseconds}
	WatchdogUSec           = Property[time.Duration]{"WatchdogUSec", Microseconds}
	WatchdogTimestamp      = Property[time.Time]{"WatchdogTimestamp", Timestamp}
	RemainAfterExit        = Property[bool]{"RemainAfterExit", Bool}
	GuessMainPID           = Property[bool]{"GuessMainPID", Bool}
	PermissionsStartOnly   = Property[bool]{"PermissionsStartOnly", Bool}
	RootDirectoryStartOnly = Property[bool]{"RootDirectoryStartOnly", Bool}
	MainPID                = Property[uint32]{"MainPID", Uint32}
	ControlPID             = Property[uint32]{"ControlPID", Uint32}
	BusName                = Property[string]{"BusName", String}
	FileDescriptorStoreMax = Property[uint32]{"FileDescriptorStoreMax", Uint32}
	NFileDescriptorStore   = Property[uint32]{"NFileDescriptorStore", Uint32}
	StatusText             = Property[string]{"StatusText", String}
	StatusErrno            = Property[int32]{"StatusErrno", Int32}
	Result                 = Property[string]{"Result", String}
	NRestarts              = Property[uint32]{"NRestarts", Uint32}
	ExecMainStartTimestamp = Property[time.Time]{"ExecMainStartTimestamp", Timestamp}
	ExecMainExitTimestamp  = Property[time.Time]{"ExecMainExitTimestamp", Timestamp}
	ExecMainPID            = Property[uint32]{"ExecMainPID", Uint32}
	ExecMainCode           = Property[int32]{"ExecMainCode", Int32}
	ExecMainStatus         = Property[int32]{"ExecMainStatus", Int32}
	ExecCondition          = Property[[]ExecCommand]{"ExecCondition", execCommands}
	ExecStartPre           = Property[[]ExecCommand]{"ExecStartPre", execCommands}
	ExecStart              = Property[[]ExecCommand]{"ExecStart", execCommands}
	ExecStartPost          = Property[[]ExecCommand]{"ExecStartPost", execCommands}
	ExecReload             = Property[[]ExecCommand]{"ExecReload", execCommands}
	ExecStop               = Property[[]ExecCommand]{"ExecStop", execCommands}
	ExecStopPost           = Property[[]ExecCommand]{"ExecStopPost", execCommands}
)

// ServiceSchema lists the properties specific to services.
var ServiceSchema = Schema{
	ServiceType, Restart, PIDFile, NotifyAccess,
	RestartUSec, TimeoutStartUSec, TimeoutStopUSec, RuntimeMaxUSec,
	WatchdogUSec, WatchdogTimestamp,
	RemainAfterExit, GuessMainPID, PermissionsStartOnly, RootDirectoryStartOnly,
	MainPID, ControlPID, BusName,
	FileDescriptorStoreMax, NFileDescriptorStore,
	StatusText, StatusErrno, Result, NRestarts,
	ExecMainStartTimestamp, ExecMainExitTimestamp,
	ExecMainPID, ExecMainCode, ExecMainStatus,
	ExecCondition, ExecStartPre, ExecStart, ExecStartPost,
	ExecReload, ExecStop, ExecStopPost,
}

// Service is a service unit.
type Service struct {
	Unit
	iface Interface
}

// NewService returns the service with the given name. The ".service"
// suffix is added if missing.
func NewService(conn Conn, name string) Service {
	return serviceOf(NewUnit(conn, NormalizeName(name, SuffixService)))
}

func serviceOf(u Unit) Service {
	return Service{
		Unit:  u,
		iface: u.iface.Sibling(ifaceService),
	}
}

// Interface returns the org.freedesktop.systemd1.Service interface
// of the service.
func (s Service) Interface() Interface { return s.iface }

// Accounting returns the service's resource accounting capabilities.
func (s Service) Accounting() Accounting { return fullAccounting(s.iface) }

// Cgroup returns the service's control group.
func (s Service) Cgroup() Cgroup { return Cgroup{s.iface} }

// Exec returns the execution environment of the service's processes.
func (s Service) Exec() ExecContext { return ExecContext{s.iface} }

// Kill returns how the service's processes are stopped.
func (s Service) Kill() KillContext { return KillContext{s.iface} }

// Processes returns the processes in the service's control group.
func (s Service) Processes(ctx context.Context) ([]UnitProcess, error) {
	return getProcesses(ctx, s.iface)
}

// Properties returns all the properties of the service, grouped by
// interface.
func (s Service) Properties() []PropertySet {
	return append(s.Unit.Properties(), PropertySet{
		Interface: s.iface,
		Schema:    concat(ServiceSchema, CgroupSchema, s.Accounting().Schema(), ExecSchema, KillSchema),
	})
}

// Type returns how the service signals that it has started: "simple",
// "exec", "forking", "oneshot", "dbus", "notify" or "idle".
func (s Service) Type(ctx context.Context) (string, error) {
	return ServiceType.Get(ctx, s.iface)
}

// RestartPolicy returns the value of the service's Restart property,
// for example "no" or "on-failure". To restart the service, use
// [Unit.Restart].
func (s Service) RestartPolicy(ctx context.Context) (string, error) {
	return Restart.Get(ctx, s.iface)
}

// PIDFile returns the file the main PID is read from, or "".
func (s Service) PIDFile(ctx context.Context) (string, error) {
	return PIDFile.Get(ctx, s.iface)
}

// NotifyAccess returns which processes may send sd_notify messages.
func (s Service) NotifyAccess(ctx context.Context) (string, error) {
	return NotifyAccess.Get(ctx, s.iface)
}

// RestartDelay returns the time systemd waits before restarting the
// service.
func (s Service) RestartDelay(ctx context.Context) (time.Duration, error) {
	return RestartUSec.Get(ctx, s.iface)
}

// TimeoutStart returns how long starting the service may take.
func (s Service) TimeoutStart(ctx context.Context) (time.Duration, error) {
	return TimeoutStartUSec.Get(ctx, s.iface)
}

// TimeoutStop returns how long stopping the service may take.
func (s Service) TimeoutStop(ctx context.Context) (time.Duration, error) {
	return TimeoutStopUSec.Get(ctx, s.iface)
}

// RuntimeMax returns how long the service may run, or [Infinity].
func (s Service) RuntimeMax(ctx context.Context) (time.Duration, error) {
	return RuntimeMaxUSec.Get(ctx, s.iface)
}

// Watchdog returns the watchdog interval, or 0 if the watchdog is off.
func (s Service) Watchdog(ctx context.Context) (time.Duration, error) {
	return WatchdogUSec.Get(ctx, s.iface)
}

// WatchdogTimestamp returns when the service last pinged its
// watchdog.
func (s Service) WatchdogTimestamp(ctx context.Context) (time.Time, error) {
	return WatchdogTimestamp.Get(ctx, s.iface)
}

// RemainAfterExit reports whether the service stays active after its
// processes exit.
func (s Service) RemainAfterExit(ctx context.Context) (bool, error) {
	return RemainAfterExit.Get(ctx, s.iface)
}

// GuessMainPID reports whether systemd guesses the main PID of a
// forking service.
func (s Service) GuessMainPID(ctx context.Context) (bool, error) {
	return GuessMainPID.Get(ctx, s.iface)
}

// PermissionsStartOnly reports whether sandboxing applies only to
// ExecStart.
func (s Service) PermissionsStartOnly(ctx context.Context) (bool, error) {
	return PermissionsStartOnly.Get(ctx, s.iface)
}

// RootDirectoryStartOnly reports whether RootDirectory applies only to
// ExecStart.
func (s Service) RootDirectoryStartOnly(ctx context.Context) (bool, error) {
	return RootDirectoryStartOnly.Get(ctx, s.iface)
}

// MainPID returns the PID of the service's main process, or 0 if it
// has none.
func (s Service) MainPID(ctx context.Context) (uint32, error) {
	return MainPID.Get(ctx, s.iface)
}

// ControlPID returns the PID of the currently running ExecXXX
// command, or 0.
func (s Service) ControlPID(ctx context.Context) (uint32, error) {
	return ControlPID.Get(ctx, s.iface)
}

// BusName returns the bus name the service acquires, or "".
func (s Service) BusName(ctx context.Context) (string, error) {
	return BusName.Get(ctx, s.iface)
}

// FileDescriptorStoreMax returns how many file descriptors the service
// may store in systemd.
func (s Service) FileDescriptorStoreMax(ctx context.Context) (uint32, error) {
	return FileDescriptorStoreMax.Get(ctx, s.iface)
}

// NFileDescriptorStore returns how many file descriptors are stored
// now.
func (s Service) NFileDescriptorStore(ctx context.Context) (uint32, error) {
	return NFileDescriptorStore.Get(ctx, s.iface)
}

// StatusText returns the free-form status the service last reported
// with sd_notify.
func (s Service) StatusText(ctx context.Context) (string, error) {
	return StatusText.Get(ctx, s.iface)
}

// StatusErrno returns the errno last reported with sd_notify, or 0.
func (s Service) StatusErrno(ctx context.Context) (int32, error) {
	return StatusErrno.Get(ctx, s.iface)
}

// Result returns "success" or the reason the service last failed.
func (s Service) Result(ctx context.Context) (string, error) {
	return Result.Get(ctx, s.iface)
}

// NRestarts returns how many times systemd has automatically
// restarted the service.
func (s Service) NRestarts(ctx context.Context) (uint32, error) {
	return NRestarts.Get(ctx, s.iface)
}

// ExecMainStartTimestamp returns when the main process started.
func (s Service) ExecMainStartTimestamp(ctx context.Context) (time.Time, error) {
	return ExecMainStartTimestamp.Get(ctx, s.iface)
}

// ExecMainExitTimestamp returns when the main process last exited.
func (s Service) ExecMainExitTimestamp(ctx context.Context) (time.Time, error) {
	return ExecMainExitTimestamp.Get(ctx, s.iface)
}

// ExecMainPID returns the PID of the last main process, even if it
// exited.
func (s Service) ExecMainPID(ctx context.Context) (uint32, error) {
	return ExecMainPID.Get(ctx, s.iface)
}

// ExecMainCode returns the SIGCHLD code of the main process exit.
func (s Service) ExecMainCode(ctx context.Context) (int32, error) {
	return ExecMainCode.Get(ctx, s.iface)
}

// ExecMainStatus returns the exit status or signal of the main process,
// depending on ExecMainCode.
func (s Service) ExecMainStatus(ctx context.Context) (int32, error) {
	return ExecMainStatus.Get(ctx, s.iface)
}

// ExecCondition returns the commands that decide whether the service
// starts.
func (s Service) ExecCondition(ctx context.Context) ([]ExecCommand, error) {
	return ExecCondition.Get(ctx, s.iface)
}

// ExecStartPre returns the commands run before ExecStart.
func (s Service) ExecStartPre(ctx context.Context) ([]ExecCommand, error) {
	return ExecStartPre.Get(ctx, s.iface)
}

// ExecStart returns the commands that start the service, in
// execution order.
func (s Service) ExecStart(ctx context.Context) ([]ExecCommand, error) {
	return ExecStart.Get(ctx, s.iface)
}

// ExecStartPost returns the commands run after ExecStart.
func (s Service) ExecStartPost(ctx context.Context) ([]ExecCommand, error) {
	return ExecStartPost.Get(ctx, s.iface)
}

// ExecReload returns the commands run to reload the service.
func (s Service) ExecReload(ctx context.Context) ([]ExecCommand, error) {
	return ExecReload.Get(ctx, s.iface)
}

// ExecStop returns the commands run to stop the service.
func (s Service) ExecStop(ctx context.Context) ([]ExecCommand, error) {
	return ExecStop.Get(ctx, s.iface)
}

// ExecStopPost returns the commands run after the service stops.
func (s Service) ExecStopPost(ctx context.Context) ([]ExecCommand, error) {
	return ExecStopPost.Get(ctx, s.iface)
}
