package systemd

import (
	"context"
	"time"
)

// Properties of the org.freedesktop.systemd1.Socket interface.
var (
	BindIPv6Only       = Property[string]{"BindIPv6Only", String}
	Backlog            = Property[uint32]{"Backlog", Uint32}
	BindToDevice       = Property[string]{"BindToDevice", String}
	SocketUser         = Property[string]{"SocketUser", String}
	SocketGroup        = Property[string]{"SocketGroup", String}
	SocketMode         = Property[uint32]{"SocketMode", Uint32}
	Accept             = Property[bool]{"Accept", Bool}
	KeepAlive          = Property[bool]{"KeepAlive", Bool}
	FreeBind           = Property[bool]{"FreeBind", Bool}
	Transparent        = Property[bool]{"Transparent", Bool}
	Broadcast          = Property[bool]{"Broadcast", Bool}
	PassCredentials    = Property[bool]{"PassCredentials", Bool}
	ReusePort          = Property[bool]{"ReusePort", Bool}
	ReceiveBuffer      = Property[uint64]{"ReceiveBuffer", Uint64}
	SendBuffer         = Property[uint64]{"SendBuffer", Uint64}
	MaxConnections     = Property[uint32]{"MaxConnections", Uint32}
	NConnections       = Property[uint32]{"NConnections", Uint32}
	NAccepted          = Property[uint32]{"NAccepted", Uint32}
	NRefused           = Property[uint32]{"NRefused", Uint32}
	FileDescriptorName = Property[string]{"FileDescriptorName", String}
	Listen             = Property[[]Listener]{"Listen", Records(ParseListener)}
	ExecStopPre        = Property[[]ExecCommand]{"ExecStopPre", execCommands}
)

// SocketSchema lists the properties specific to sockets.
var SocketSchema = Schema{
	BindIPv6Only, Backlog, BindToDevice, SocketUser, SocketGroup, SocketMode,
	DirectoryMode, Accept, KeepAlive, FreeBind, Transparent, Broadcast,
	PassCredentials, ReusePort, ReceiveBuffer, SendBuffer,
	MaxConnections, NConnections, NAccepted, NRefused,
	FileDescriptorName, Listen, TimeoutUSec, ControlPID, Result,
	ExecStartPre, ExecStartPost, ExecStopPre, ExecStopPost,
}

// Socket is a socket unit.
type Socket struct {
	Unit
	iface Interface
}

// NewSocket returns the socket with the given name. The ".socket"
// suffix is added if missing.
func NewSocket(conn Conn, name string) Socket {
	return socketOf(NewUnit(conn, NormalizeName(name, SuffixSocket)))
}

func socketOf(u Unit) Socket {
	return Socket{
		Unit:  u,
		iface: u.iface.Sibling(ifaceSocket),
	}
}

// Interface returns the org.freedesktop.systemd1.Socket interface of
// the socket.
func (s Socket) Interface() Interface { return s.iface }

// Accounting returns the socket's resource accounting capabilities.
func (s Socket) Accounting() Accounting { return fullAccounting(s.iface) }

// Cgroup returns the control group settings of the socket.
func (s Socket) Cgroup() Cgroup { return Cgroup{s.iface} }

// Exec returns the execution environment of the socket's commands.
func (s Socket) Exec() ExecContext { return ExecContext{s.iface} }

// Kill returns how the socket's commands are stopped.
func (s Socket) Kill() KillContext { return KillContext{s.iface} }

// Processes returns the processes in the socket's control group.
func (s Socket) Processes(ctx context.Context) ([]UnitProcess, error) {
	return getProcesses(ctx, s.iface)
}

// Properties returns all the properties of the socket, grouped by
// interface.
func (s Socket) Properties() []PropertySet {
	return append(s.Unit.Properties(), PropertySet{
		Interface: s.iface,
		Schema:    concat(SocketSchema, CgroupSchema, s.Accounting().Schema(), ExecSchema, KillSchema),
	})
}

// BindIPv6Only returns the IPV6_V6ONLY setting: "default", "both" or
// "ipv6-only".
func (s Socket) BindIPv6Only(ctx context.Context) (string, error) {
	return BindIPv6Only.Get(ctx, s.iface)
}

// Backlog returns the listen backlog.
func (s Socket) Backlog(ctx context.Context) (uint32, error) {
	return Backlog.Get(ctx, s.iface)
}

// BindToDevice returns the network interface the sockets are bound to,
// or "".
func (s Socket) BindToDevice(ctx context.Context) (string, error) {
	return BindToDevice.Get(ctx, s.iface)
}

// SocketUser returns the owner of file system sockets and FIFOs.
func (s Socket) SocketUser(ctx context.Context) (string, error) {
	return SocketUser.Get(ctx, s.iface)
}

// SocketGroup returns the group of file system sockets and FIFOs.
func (s Socket) SocketGroup(ctx context.Context) (string, error) {
	return SocketGroup.Get(ctx, s.iface)
}

// SocketMode returns the access mode of file system sockets and FIFOs.
func (s Socket) SocketMode(ctx context.Context) (uint32, error) {
	return SocketMode.Get(ctx, s.iface)
}

// DirectoryMode returns the mode of parent directories created by
// systemd.
func (s Socket) DirectoryMode(ctx context.Context) (uint32, error) {
	return DirectoryMode.Get(ctx, s.iface)
}

// Accept reports whether the socket spawns a service instance per
// connection, rather than passing the listening socket to one
// service.
func (s Socket) Accept(ctx context.Context) (bool, error) {
	return Accept.Get(ctx, s.iface)
}

// KeepAlive reports whether SO_KEEPALIVE is set.
func (s Socket) KeepAlive(ctx context.Context) (bool, error) {
	return KeepAlive.Get(ctx, s.iface)
}

// FreeBind reports whether IP_FREEBIND is set.
func (s Socket) FreeBind(ctx context.Context) (bool, error) {
	return FreeBind.Get(ctx, s.iface)
}

// Transparent reports whether IP_TRANSPARENT is set.
func (s Socket) Transparent(ctx context.Context) (bool, error) {
	return Transparent.Get(ctx, s.iface)
}

// Broadcast reports whether SO_BROADCAST is set.
func (s Socket) Broadcast(ctx context.Context) (bool, error) {
	return Broadcast.Get(ctx, s.iface)
}

// PassCredentials reports whether SO_PASSCRED is set.
func (s Socket) PassCredentials(ctx context.Context) (bool, error) {
	return PassCredentials.Get(ctx, s.iface)
}

// ReusePort reports whether SO_REUSEPORT is set.
func (s Socket) ReusePort(ctx context.Context) (bool, error) {
	return ReusePort.Get(ctx, s.iface)
}

// ReceiveBuffer returns SO_RCVBUF, or 0 for the kernel default.
func (s Socket) ReceiveBuffer(ctx context.Context) (uint64, error) {
	return ReceiveBuffer.Get(ctx, s.iface)
}

// SendBuffer returns SO_SNDBUF, or 0 for the kernel default.
func (s Socket) SendBuffer(ctx context.Context) (uint64, error) {
	return SendBuffer.Get(ctx, s.iface)
}

// MaxConnections returns the limit on concurrent connections with
// Accept=yes.
func (s Socket) MaxConnections(ctx context.Context) (uint32, error) {
	return MaxConnections.Get(ctx, s.iface)
}

// NConnections returns the number of connections currently being
// served. It is only meaningful if Accept is true.
func (s Socket) NConnections(ctx context.Context) (uint32, error) {
	return NConnections.Get(ctx, s.iface)
}

// NAccepted returns how many connections the socket has accepted.
func (s Socket) NAccepted(ctx context.Context) (uint32, error) {
	return NAccepted.Get(ctx, s.iface)
}

// NRefused returns how many connections were refused.
func (s Socket) NRefused(ctx context.Context) (uint32, error) {
	return NRefused.Get(ctx, s.iface)
}

// FileDescriptorName returns the name passed with the listening file
// descriptors.
func (s Socket) FileDescriptorName(ctx context.Context) (string, error) {
	return FileDescriptorName.Get(ctx, s.iface)
}

// Listen returns the addresses the socket listens on, in
// configuration order.
func (s Socket) Listen(ctx context.Context) ([]Listener, error) {
	return Listen.Get(ctx, s.iface)
}

// Timeout returns how long the socket's commands may run.
func (s Socket) Timeout(ctx context.Context) (time.Duration, error) {
	return TimeoutUSec.Get(ctx, s.iface)
}

// ControlPID returns the PID of the running command, or 0.
func (s Socket) ControlPID(ctx context.Context) (uint32, error) {
	return ControlPID.Get(ctx, s.iface)
}

// Result returns the outcome of the last activation, for example
// "success".
func (s Socket) Result(ctx context.Context) (string, error) {
	return Result.Get(ctx, s.iface)
}

// ExecStartPre returns the commands run before the sockets are created.
func (s Socket) ExecStartPre(ctx context.Context) ([]ExecCommand, error) {
	return ExecStartPre.Get(ctx, s.iface)
}

// ExecStartPost returns the commands run after the sockets are created.
func (s Socket) ExecStartPost(ctx context.Context) ([]ExecCommand, error) {
	return ExecStartPost.Get(ctx, s.iface)
}

// ExecStopPre returns the commands run before the sockets are closed.
func (s Socket) ExecStopPre(ctx context.Context) ([]ExecCommand, error) {
	return ExecStopPre.Get(ctx, s.iface)
}

// ExecStopPost returns the commands run after the sockets are closed.
func (s Socket) ExecStopPost(ctx context.Context) ([]ExecCommand, error) {
	return ExecStopPost.Get(ctx, s.iface)
}
