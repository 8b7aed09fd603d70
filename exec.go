package systemd

import (
	"context"
	"time"
)

// ExecCommand is one command line of a service, mount or socket,
// along with runtime information about its most recent execution.
type ExecCommand struct {
	// Path is the absolute path of the executable.
	Path string
	// Args is the command's argument vector, including argv[0].
	Args []string
	// IgnoreErrors is true if a failure of the command is not
	// considered a failure of the unit.
	IgnoreErrors bool
	// StartTime is when the command last started, or the zero
	// time.Time if it never ran.
	StartTime time.Time
	// StartMonotonic is StartTime on the monotonic clock.
	StartMonotonic time.Duration
	// ExitTime is when the command last exited, or the zero
	// time.Time if it never exited.
	ExitTime time.Time
	// ExitMonotonic is ExitTime on the monotonic clock.
	ExitMonotonic time.Duration
	// PID is the process ID of the last execution.
	PID uint32
	// Code is the SIGCHLD code (CLD_EXITED, CLD_KILLED...) of the
	// last execution.
	Code int32
	// Status is the exit status or signal number of the last
	// execution, depending on Code.
	Status int32
}

// ParseExecCommand parses an (sasbttttuii) struct.
func ParseExecCommand(vals []any) (ExecCommand, error) {
	f, err := readFields("ExecCommand", "sasbttttuii", vals)
	if err != nil {
		return ExecCommand{}, err
	}
	ret := ExecCommand{
		Path:           field(f, 0, String),
		Args:           field(f, 1, Strings),
		IgnoreErrors:   field(f, 2, Bool),
		StartTime:      field(f, 3, Timestamp),
		StartMonotonic: field(f, 4, Microseconds),
		ExitTime:       field(f, 5, Timestamp),
		ExitMonotonic:  field(f, 6, Microseconds),
		PID:            field(f, 7, Uint32),
		Code:           field(f, 8, Int32),
		Status:         field(f, 9, Int32),
	}
	if f.err != nil {
		return ExecCommand{}, f.err
	}
	return ret, nil
}

// Properties of the execution environment of units that spawn
// processes: services, mounts and sockets.
var (
	Environment             = Property[[]string]{"Environment", Strings}
	EnvironmentFiles        = Property[[]EnvironmentFile]{"EnvironmentFiles", Records(ParseEnvironmentFile)}
	PassEnvironment         = Property[[]string]{"PassEnvironment", Strings}
	WorkingDirectory        = Property[string]{"WorkingDirectory", String}
	RootDirectory           = Property[string]{"RootDirectory", String}
	User                    = Property[string]{"User", String}
	Group                   = Property[string]{"Group", String}
	SupplementaryGroups     = Property[[]string]{"SupplementaryGroups", Strings}
	DynamicUser             = Property[bool]{"DynamicUser", Bool}
	PAMName                 = Property[string]{"PAMName", String}
	UMask                   = Property[uint32]{"UMask", Uint32}
	Nice                    = Property[int32]{"Nice", Int32}
	OOMScoreAdjust          = Property[int32]{"OOMScoreAdjust", Int32}
	IOSchedulingClass       = Property[int32]{"IOSchedulingClass", Int32}
	IOSchedulingPriority    = Property[int32]{"IOSchedulingPriority", Int32}
	CPUSchedulingPolicy     = Property[int32]{"CPUSchedulingPolicy", Int32}
	CPUSchedulingPriority   = Property[int32]{"CPUSchedulingPriority", Int32}
	TimerSlackNSec          = Property[uint64]{"TimerSlackNSec", Uint64}
	LimitCPU                = Property[Limit]{"LimitCPU", LimitValue}
	LimitFSIZE              = Property[Limit]{"LimitFSIZE", LimitValue}
	LimitDATA               = Property[Limit]{"LimitDATA", LimitValue}
	LimitSTACK              = Property[Limit]{"LimitSTACK", LimitValue}
	LimitCORE               = Property[Limit]{"LimitCORE", LimitValue}
	LimitRSS                = Property[Limit]{"LimitRSS", LimitValue}
	LimitNOFILE             = Property[Limit]{"LimitNOFILE", LimitValue}
	LimitAS                 = Property[Limit]{"LimitAS", LimitValue}
	LimitNPROC              = Property[Limit]{"LimitNPROC", LimitValue}
	LimitMEMLOCK            = Property[Limit]{"LimitMEMLOCK", LimitValue}
	LimitLOCKS              = Property[Limit]{"LimitLOCKS", LimitValue}
	LimitSIGPENDING         = Property[Limit]{"LimitSIGPENDING", LimitValue}
	LimitMSGQUEUE           = Property[Limit]{"LimitMSGQUEUE", LimitValue}
	LimitNICE               = Property[Limit]{"LimitNICE", LimitValue}
	LimitRTPRIO             = Property[Limit]{"LimitRTPRIO", LimitValue}
	LimitRTTIME             = Property[Limit]{"LimitRTTIME", LimitValue}
	StandardInput           = Property[string]{"StandardInput", String}
	StandardOutput          = Property[string]{"StandardOutput", String}
	StandardError           = Property[string]{"StandardError", String}
	TTYPath                 = Property[string]{"TTYPath", String}
	SyslogIdentifier        = Property[string]{"SyslogIdentifier", String}
	SyslogLevel             = Property[int32]{"SyslogLevel", Int32}
	SyslogFacility          = Property[int32]{"SyslogFacility", Int32}
	CapabilityBoundingSet   = Property[uint64]{"CapabilityBoundingSet", Uint64}
	AmbientCapabilities     = Property[uint64]{"AmbientCapabilities", Uint64}
	SecureBits              = Property[int32]{"SecureBits", Int32}
	NoNewPrivileges         = Property[bool]{"NoNewPrivileges", Bool}
	PrivateTmp              = Property[bool]{"PrivateTmp", Bool}
	PrivateDevices          = Property[bool]{"PrivateDevices", Bool}
	PrivateNetwork          = Property[bool]{"PrivateNetwork", Bool}
	ProtectHome             = Property[string]{"ProtectHome", String}
	ProtectSystem           = Property[string]{"ProtectSystem", String}
	ReadWritePaths          = Property[[]string]{"ReadWritePaths", Strings}
	ReadOnlyPaths           = Property[[]string]{"ReadOnlyPaths", Strings}
	InaccessiblePaths       = Property[[]string]{"InaccessiblePaths", Strings}
	RuntimeDirectory        = Property[[]string]{"RuntimeDirectory", Strings}
	RuntimeDirectoryMode    = Property[uint32]{"RuntimeDirectoryMode", Uint32}
	SELinuxContext          = Property[SecurityLabel]{"SELinuxContext", Record(ParseSecurityLabel)}
	AppArmorProfile         = Property[SecurityLabel]{"AppArmorProfile", Record(ParseSecurityLabel)}
	SmackProcessLabel       = Property[SecurityLabel]{"SmackProcessLabel", Record(ParseSecurityLabel)}
	SystemCallFilter        = Property[NameFilter]{"SystemCallFilter", Record(ParseNameFilter)}
	SystemCallArchitectures = Property[[]string]{"SystemCallArchitectures", Strings}
	SystemCallErrorNumber   = Property[int32]{"SystemCallErrorNumber", Int32}
	RestrictAddressFamilies = Property[NameFilter]{"RestrictAddressFamilies", Record(ParseNameFilter)}
	Personality             = Property[string]{"Personality", String}
	MountFlags              = Property[uint64]{"MountFlags", Uint64}
)

// ExecSchema lists the execution environment properties.
var ExecSchema = Schema{
	Environment, EnvironmentFiles, PassEnvironment,
	WorkingDirectory, RootDirectory,
	User, Group, SupplementaryGroups, DynamicUser, PAMName, UMask,
	Nice, OOMScoreAdjust,
	IOSchedulingClass, IOSchedulingPriority,
	CPUSchedulingPolicy, CPUSchedulingPriority, TimerSlackNSec,
	LimitCPU, LimitFSIZE, LimitDATA, LimitSTACK, LimitCORE, LimitRSS,
	LimitNOFILE, LimitAS, LimitNPROC, LimitMEMLOCK, LimitLOCKS,
	LimitSIGPENDING, LimitMSGQUEUE, LimitNICE, LimitRTPRIO, LimitRTTIME,
	StandardInput, StandardOutput, StandardError, TTYPath,
	SyslogIdentifier, SyslogLevel, SyslogFacility,
	CapabilityBoundingSet, AmbientCapabilities, SecureBits, NoNewPrivileges,
	PrivateTmp, PrivateDevices, PrivateNetwork, ProtectHome, ProtectSystem,
	ReadWritePaths, ReadOnlyPaths, InaccessiblePaths,
	RuntimeDirectory, RuntimeDirectoryMode,
	SELinuxContext, AppArmorProfile, SmackProcessLabel,
	SystemCallFilter, SystemCallArchitectures, SystemCallErrorNumber,
	RestrictAddressFamilies, Personality, MountFlags,
}

// ExecContext is the execution environment of a unit's processes:
// credentials, resource limits, sandboxing and standard IO.
type ExecContext struct{ iface Interface }

// Environment returns the environment variables set for the processes,
// as KEY=VALUE strings.
func (e ExecContext) Environment(ctx context.Context) ([]string, error) {
	return Environment.Get(ctx, e.iface)
}

// EnvironmentFiles returns the files that environment variables are
// read from.
func (e ExecContext) EnvironmentFiles(ctx context.Context) ([]EnvironmentFile, error) {
	return EnvironmentFiles.Get(ctx, e.iface)
}

// PassEnvironment returns the names of variables passed through from
// systemd's own environment.
func (e ExecContext) PassEnvironment(ctx context.Context) ([]string, error) {
	return PassEnvironment.Get(ctx, e.iface)
}

// WorkingDirectory returns the working directory of the processes.
func (e ExecContext) WorkingDirectory(ctx context.Context) (string, error) {
	return WorkingDirectory.Get(ctx, e.iface)
}

// RootDirectory returns the directory the processes are chrooted into,
// or "".
func (e ExecContext) RootDirectory(ctx context.Context) (string, error) {
	return RootDirectory.Get(ctx, e.iface)
}

// User returns the user the processes run as, or "" for root.
func (e ExecContext) User(ctx context.Context) (string, error) {
	return User.Get(ctx, e.iface)
}

// Group returns the group the processes run as, or "" for the
// user's primary group.
func (e ExecContext) Group(ctx context.Context) (string, error) {
	return Group.Get(ctx, e.iface)
}

// SupplementaryGroups returns the extra groups of the processes.
func (e ExecContext) SupplementaryGroups(ctx context.Context) ([]string, error) {
	return SupplementaryGroups.Get(ctx, e.iface)
}

// DynamicUser reports whether the processes run as a user allocated
// when the unit starts.
func (e ExecContext) DynamicUser(ctx context.Context) (bool, error) {
	return DynamicUser.Get(ctx, e.iface)
}

// PAMName returns the PAM service the processes are started with, or ""
// if PAM is not used.
func (e ExecContext) PAMName(ctx context.Context) (string, error) {
	return PAMName.Get(ctx, e.iface)
}

// UMask returns the file mode creation mask.
func (e ExecContext) UMask(ctx context.Context) (uint32, error) {
	return UMask.Get(ctx, e.iface)
}

// Nice returns the scheduling priority of the processes.
func (e ExecContext) Nice(ctx context.Context) (int32, error) {
	return Nice.Get(ctx, e.iface)
}

// OOMScoreAdjust returns the OOM killer adjustment, from -1000 to 1000.
func (e ExecContext) OOMScoreAdjust(ctx context.Context) (int32, error) {
	return OOMScoreAdjust.Get(ctx, e.iface)
}

// IOSchedulingClass returns the IO scheduling class, as an
// IOPRIO_CLASS_* value.
func (e ExecContext) IOSchedulingClass(ctx context.Context) (int32, error) {
	return IOSchedulingClass.Get(ctx, e.iface)
}

// IOSchedulingPriority returns the priority within the IO scheduling
// class.
func (e ExecContext) IOSchedulingPriority(ctx context.Context) (int32, error) {
	return IOSchedulingPriority.Get(ctx, e.iface)
}

// CPUSchedulingPolicy returns the CPU scheduling policy, as a SCHED_*
// value.
func (e ExecContext) CPUSchedulingPolicy(ctx context.Context) (int32, error) {
	return CPUSchedulingPolicy.Get(ctx, e.iface)
}

// CPUSchedulingPriority returns the static priority for realtime
// policies.
func (e ExecContext) CPUSchedulingPriority(ctx context.Context) (int32, error) {
	return CPUSchedulingPriority.Get(ctx, e.iface)
}

// TimerSlackNSec returns the timer slack of the processes, in
// nanoseconds.
func (e ExecContext) TimerSlackNSec(ctx context.Context) (uint64, error) {
	return TimerSlackNSec.Get(ctx, e.iface)
}

// Limit returns the resource limit named by p, which must be one of
// the LimitXXX properties, for example [LimitNOFILE].
func (e ExecContext) Limit(ctx context.Context, p Property[Limit]) (Limit, error) {
	return p.Get(ctx, e.iface)
}

// StandardInput returns where standard input is connected, for example
// "null" or "socket".
func (e ExecContext) StandardInput(ctx context.Context) (string, error) {
	return StandardInput.Get(ctx, e.iface)
}

// StandardOutput returns where standard output goes, for example
// "journal".
func (e ExecContext) StandardOutput(ctx context.Context) (string, error) {
	return StandardOutput.Get(ctx, e.iface)
}

// StandardError returns where standard error goes.
func (e ExecContext) StandardError(ctx context.Context) (string, error) {
	return StandardError.Get(ctx, e.iface)
}

// TTYPath returns the terminal used when standard IO is a TTY.
func (e ExecContext) TTYPath(ctx context.Context) (string, error) {
	return TTYPath.Get(ctx, e.iface)
}

// SyslogIdentifier returns the identifier logged lines are tagged with.
func (e ExecContext) SyslogIdentifier(ctx context.Context) (string, error) {
	return SyslogIdentifier.Get(ctx, e.iface)
}

// SyslogLevel returns the default syslog level of logged lines.
func (e ExecContext) SyslogLevel(ctx context.Context) (int32, error) {
	return SyslogLevel.Get(ctx, e.iface)
}

// SyslogFacility returns the syslog facility of logged lines.
func (e ExecContext) SyslogFacility(ctx context.Context) (int32, error) {
	return SyslogFacility.Get(ctx, e.iface)
}

// CapabilityBoundingSet returns the capability bounding set, as a
// bitmask indexed by capability number.
func (e ExecContext) CapabilityBoundingSet(ctx context.Context) (uint64, error) {
	return CapabilityBoundingSet.Get(ctx, e.iface)
}

// AmbientCapabilities returns the ambient capability set, in the same
// form as CapabilityBoundingSet.
func (e ExecContext) AmbientCapabilities(ctx context.Context) (uint64, error) {
	return AmbientCapabilities.Get(ctx, e.iface)
}

// SecureBits returns the SECBIT_* flags of the processes.
func (e ExecContext) SecureBits(ctx context.Context) (int32, error) {
	return SecureBits.Get(ctx, e.iface)
}

// NoNewPrivileges reports whether the processes can never gain
// privileges.
func (e ExecContext) NoNewPrivileges(ctx context.Context) (bool, error) {
	return NoNewPrivileges.Get(ctx, e.iface)
}

// PrivateTmp reports whether the processes get their own /tmp and
// /var/tmp.
func (e ExecContext) PrivateTmp(ctx context.Context) (bool, error) {
	return PrivateTmp.Get(ctx, e.iface)
}

// PrivateDevices reports whether the processes get a minimal /dev.
func (e ExecContext) PrivateDevices(ctx context.Context) (bool, error) {
	return PrivateDevices.Get(ctx, e.iface)
}

// PrivateNetwork reports whether the processes run in a network
// namespace with only loopback.
func (e ExecContext) PrivateNetwork(ctx context.Context) (bool, error) {
	return PrivateNetwork.Get(ctx, e.iface)
}

// ProtectHome returns how home directories are hidden: "no", "yes",
// "read-only" or "tmpfs".
func (e ExecContext) ProtectHome(ctx context.Context) (string, error) {
	return ProtectHome.Get(ctx, e.iface)
}

// ProtectSystem returns how much of the OS is read-only: "no", "yes",
// "full" or "strict".
func (e ExecContext) ProtectSystem(ctx context.Context) (string, error) {
	return ProtectSystem.Get(ctx, e.iface)
}

// ReadWritePaths returns the paths that stay writable in a read-only
// namespace.
func (e ExecContext) ReadWritePaths(ctx context.Context) ([]string, error) {
	return ReadWritePaths.Get(ctx, e.iface)
}

// ReadOnlyPaths returns the paths mounted read-only.
func (e ExecContext) ReadOnlyPaths(ctx context.Context) ([]string, error) {
	return ReadOnlyPaths.Get(ctx, e.iface)
}

// InaccessiblePaths returns the paths hidden from the processes.
func (e ExecContext) InaccessiblePaths(ctx context.Context) ([]string, error) {
	return InaccessiblePaths.Get(ctx, e.iface)
}

// RuntimeDirectory returns the directories created under /run for the
// unit.
func (e ExecContext) RuntimeDirectory(ctx context.Context) ([]string, error) {
	return RuntimeDirectory.Get(ctx, e.iface)
}

// RuntimeDirectoryMode returns the access mode of the runtime
// directories.
func (e ExecContext) RuntimeDirectoryMode(ctx context.Context) (uint32, error) {
	return RuntimeDirectoryMode.Get(ctx, e.iface)
}

// SELinuxContext returns the SELinux context the processes run in.
func (e ExecContext) SELinuxContext(ctx context.Context) (SecurityLabel, error) {
	return SELinuxContext.Get(ctx, e.iface)
}

// AppArmorProfile returns the AppArmor profile the processes run in.
func (e ExecContext) AppArmorProfile(ctx context.Context) (SecurityLabel, error) {
	return AppArmorProfile.Get(ctx, e.iface)
}

// SmackProcessLabel returns the SMACK label the processes run with.
func (e ExecContext) SmackProcessLabel(ctx context.Context) (SecurityLabel, error) {
	return SmackProcessLabel.Get(ctx, e.iface)
}

// SystemCallFilter returns the system calls the processes may, or may
// not, make.
func (e ExecContext) SystemCallFilter(ctx context.Context) (NameFilter, error) {
	return SystemCallFilter.Get(ctx, e.iface)
}

// SystemCallArchitectures returns the architectures whose system calls
// are allowed.
func (e ExecContext) SystemCallArchitectures(ctx context.Context) ([]string, error) {
	return SystemCallArchitectures.Get(ctx, e.iface)
}

// SystemCallErrorNumber returns the errno returned by filtered system
// calls, or 0 if the process is killed instead.
func (e ExecContext) SystemCallErrorNumber(ctx context.Context) (int32, error) {
	return SystemCallErrorNumber.Get(ctx, e.iface)
}

// RestrictAddressFamilies returns the socket address families the
// processes may use.
func (e ExecContext) RestrictAddressFamilies(ctx context.Context) (NameFilter, error) {
	return RestrictAddressFamilies.Get(ctx, e.iface)
}

// Personality returns the execution domain, for example "x86-64", or ""
// for the default.
func (e ExecContext) Personality(ctx context.Context) (string, error) {
	return Personality.Get(ctx, e.iface)
}

// MountFlags returns the mount propagation flags of the mount
// namespace.
func (e ExecContext) MountFlags(ctx context.Context) (uint64, error) {
	return MountFlags.Get(ctx, e.iface)
}

// Properties of how systemd stops a unit's processes.
var (
	KillMode        = Property[string]{"KillMode", String}
	KillSignal      = Property[int32]{"KillSignal", Int32}
	FinalKillSignal = Property[int32]{"FinalKillSignal", Int32}
	SendSIGKILL     = Property[bool]{"SendSIGKILL", Bool}
	SendSIGHUP      = Property[bool]{"SendSIGHUP", Bool}
	WatchdogSignal  = Property[int32]{"WatchdogSignal", Int32}
)

// KillSchema lists the kill context properties.
var KillSchema = Schema{KillMode, KillSignal, FinalKillSignal, SendSIGKILL, SendSIGHUP, WatchdogSignal}

// KillContext describes how systemd stops a unit's processes.
type KillContext struct{ iface Interface }

// KillMode returns which processes are killed when the unit stops:
// "control-group", "mixed", "process" or "none".
func (k KillContext) KillMode(ctx context.Context) (string, error) {
	return KillMode.Get(ctx, k.iface)
}

// KillSignal returns the signal number sent first to stop the unit.
func (k KillContext) KillSignal(ctx context.Context) (int32, error) {
	return KillSignal.Get(ctx, k.iface)
}

// FinalKillSignal returns the signal sent to processes left after the
// stop timeout.
func (k KillContext) FinalKillSignal(ctx context.Context) (int32, error) {
	return FinalKillSignal.Get(ctx, k.iface)
}

// SendSIGKILL reports whether remaining processes are killed after the
// stop timeout.
func (k KillContext) SendSIGKILL(ctx context.Context) (bool, error) {
	return SendSIGKILL.Get(ctx, k.iface)
}

// SendSIGHUP reports whether SIGHUP is sent along with the kill signal.
func (k KillContext) SendSIGHUP(ctx context.Context) (bool, error) {
	return SendSIGHUP.Get(ctx, k.iface)
}

// WatchdogSignal returns the signal sent when the watchdog fires.
func (k KillContext) WatchdogSignal(ctx context.Context) (int32, error) {
	return WatchdogSignal.Get(ctx, k.iface)
}

// execCommands is the decoder for a(sasbttttuii) properties.
var execCommands = Records(ParseExecCommand)

// Running reports whether the command has been started and has not
// exited since.
func (c ExecCommand) Running() bool {
	if c.StartTime.IsZero() {
		return false
	}
	return c.ExitTime.IsZero() || c.ExitTime.Before(c.StartTime)
}
