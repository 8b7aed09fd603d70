package dbustest_test

import (
	"errors"
	"testing"

	"github.com/danderson/systemd/dbustest"
	"github.com/godbus/dbus/v5"
)

func TestBus(t *testing.T) {
	b := dbustest.New(t, true)
	conn := b.MustConn(t)
	if !conn.Connected() {
		t.Fatal("MustConn returned a closed connection")
	}
	if err := conn.BusObject().Call("org.freedesktop.DBus.Peer.Ping", 0).Err; err != nil {
		t.Fatalf("failed to ping test bus: %v", err)
	}
	if names := conn.Names(); len(names) == 0 {
		t.Error("connection has no unique name after Hello")
	}
}

func TestSystemd(t *testing.T) {
	b := dbustest.New(t, false)
	sd := dbustest.NewSystemd(t, b)
	conn := b.MustConn(t)

	path := sd.AddUnit("cron.service", dbustest.Props{
		"org.freedesktop.systemd1.Service": {"MainPID": uint32(42)},
	})
	if want := dbustest.UnitPath("cron.service"); path != want {
		t.Errorf("AddUnit path = %q, want %q", path, want)
	}

	mgr := conn.Object("org.freedesktop.systemd1", "/org/freedesktop/systemd1")
	var got dbus.ObjectPath
	if err := mgr.Call(dbustest.IfaceManager+".GetUnit", 0, "cron.service").Store(&got); err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if got != path {
		t.Errorf("GetUnit = %q, want %q", got, path)
	}

	v, err := conn.Object("org.freedesktop.systemd1", path).GetProperty("org.freedesktop.systemd1.Service.MainPID")
	if err != nil {
		t.Fatalf("getting MainPID: %v", err)
	}
	if pid, ok := v.Value().(uint32); !ok || pid != 42 {
		t.Errorf("MainPID = %v, want 42", v)
	}

	sd.RemoveUnit("cron.service")
	err = mgr.Call(dbustest.IfaceManager+".GetUnit", 0, "cron.service").Store(&got)
	var derr dbus.Error
	if !errors.As(err, &derr) || derr.Name != "org.freedesktop.systemd1.NoSuchUnit" {
		t.Errorf("GetUnit after removal: %v, want NoSuchUnit", err)
	}
}
