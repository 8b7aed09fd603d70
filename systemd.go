package systemd

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	// Destination is the bus name of the systemd manager.
	Destination = "org.freedesktop.systemd1"
	// ManagerPath is the object path of the systemd manager.
	ManagerPath dbus.ObjectPath = "/org/freedesktop/systemd1"
	// UnitPathPrefix is the object path under which systemd exposes
	// units.
	UnitPathPrefix = "/org/freedesktop/systemd1/unit/"
)

// Interface names of the systemd object model.
const (
	ifaceManager = Destination + ".Manager"
	ifaceUnit    = Destination + ".Unit"
	ifaceService = Destination + ".Service"
	ifaceScope   = Destination + ".Scope"
	ifaceMount   = Destination + ".Mount"
	ifaceSocket  = Destination + ".Socket"
	ifaceTimer   = Destination + ".Timer"
)

// Conn is the part of a bus connection that this package uses to
// talk to systemd. It is satisfied by [*dbus.Conn].
//
// The connection is owned by the caller. Nothing in this package
// closes it, and it must be safe for concurrent use.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// SignalConn is a [Conn] that can also deliver signals. It is
// satisfied by [*dbus.Conn].
type SignalConn interface {
	Conn
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
}

// connOptions returns the godbus options for a connection dialed
// with ctx. godbus ties the lifetime of the connection to the context
// it is given, so only ctx's values are passed on.
func connOptions(ctx context.Context) []dbus.ConnOption {
	return []dbus.ConnOption{dbus.WithContext(context.WithoutCancel(ctx))}
}

// SystemBus connects to the system bus, where the system instance
// of systemd lives.
//
// Cancelling ctx after SystemBus returns does not close the
// connection. The caller closes it.
func SystemBus(ctx context.Context) (*dbus.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	conn, err := dbus.ConnectSystemBus(connOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	return conn, nil
}

// SessionBus connects to the current user's session bus, where the
// user instance of systemd lives. Like [SystemBus], the connection
// outlives ctx.
func SessionBus(ctx context.Context) (*dbus.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	conn, err := dbus.ConnectSessionBus(connOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	return conn, nil
}

// Dial connects to the bus at the given DBus address, for example
// "unix:path=/run/dbus/system_bus_socket". Like [SystemBus], the
// connection outlives ctx.
func Dial(ctx context.Context, address string) (*dbus.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	conn, err := dbus.Connect(address, connOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	return conn, nil
}
