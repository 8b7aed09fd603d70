package systemd_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danderson/systemd"
	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
)

func nextEvent(t *testing.T, m *systemd.Monitor) *systemd.MonitorEvent {
	t.Helper()
	select {
	case ev, ok := <-m.Events():
		if !ok {
			t.Fatal("monitor event channel closed unexpectedly")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for monitor event")
	}
	panic("unreachable")
}

func unitNames(us []systemd.Unit) []string {
	var ret []string
	for _, u := range us {
		ret = append(ret, u.Name())
	}
	return ret
}

func TestMonitor(t *testing.T) {
	bus := newFakeBus()
	setLoaded := loadUnits(bus, "cron.service")
	subscribed := 0
	bus.handle(ifaceManager+".Subscribe", func(_ dbus.ObjectPath, _ []any) ([]any, error) {
		subscribed++
		return nil, nil
	})
	bus.handle(ifaceManager+".Unsubscribe", func(_ dbus.ObjectPath, _ []any) ([]any, error) {
		subscribed--
		return nil, nil
	})

	ctx := context.Background()
	m, err := systemd.NewMonitor(ctx, bus, nil)
	if err != nil {
		t.Fatalf("NewMonitor() failed: %v", err)
	}
	if subscribed != 1 {
		t.Errorf("Subscribe called %d times, want 1", subscribed)
	}

	if err := m.Add(ctx, "cron.service", "backup.service"); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if diff := cmp.Diff(m.Names(), []string{"backup.service", "cron.service"}); diff != "" {
		t.Errorf("Names() wrong (-got+want):\n%s", diff)
	}
	if diff := cmp.Diff(unitNames(m.Units()), []string{"cron.service"}); diff != "" {
		t.Errorf("Units() wrong (-got+want):\n%s", diff)
	}

	// Untracked units are ignored.
	bus.emit("UnitNew", "other.service", systemd.UnitPath("other.service"))

	setLoaded("cron.service", "backup.service")
	bus.emit("UnitNew", "backup.service", systemd.UnitPath("backup.service"))
	ev := nextEvent(t, m)
	if ev.Kind != systemd.UnitLoaded || ev.Name != "backup.service" || ev.Unit.Path() != systemd.UnitPath("backup.service") {
		t.Errorf("got event %+v, want backup.service loaded", ev)
	}
	if diff := cmp.Diff(unitNames(m.Units()), []string{"backup.service", "cron.service"}); diff != "" {
		t.Errorf("Units() wrong after UnitNew (-got+want):\n%s", diff)
	}

	setLoaded("backup.service")
	bus.emit("UnitRemoved", "cron.service", systemd.UnitPath("cron.service"))
	ev = nextEvent(t, m)
	if ev.Kind != systemd.UnitUnloaded || ev.Name != "cron.service" {
		t.Errorf("got event %+v, want cron.service unloaded", ev)
	}

	// A reload with changes that were not signalled individually.
	setLoaded("cron.service")
	bus.emit("Reloading", true)
	bus.emit("Reloading", false)
	ev = nextEvent(t, m)
	if ev.Kind != systemd.Reloaded {
		t.Errorf("got event %+v, want reloaded", ev)
	}
	if diff := cmp.Diff(unitNames(m.Units()), []string{"cron.service"}); diff != "" {
		t.Errorf("Units() wrong after reload (-got+want):\n%s", diff)
	}

	// Malformed signals are logged and dropped.
	bus.emit("UnitNew", "backup.service")

	m.Remove("backup.service")
	if diff := cmp.Diff(m.Names(), []string{"cron.service"}); diff != "" {
		t.Errorf("Names() wrong after Remove (-got+want):\n%s", diff)
	}

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, ok := <-m.Events(); ok {
		t.Error("event channel still open after Close")
	}
	if subscribed != 0 {
		t.Errorf("subscription count is %d after Close, want 0", subscribed)
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.matches != 0 {
		t.Errorf("%d signal matches left after Close, want 0", bus.matches)
	}
	if len(bus.signals) != 0 {
		t.Errorf("%d signal channels left after Close, want 0", len(bus.signals))
	}
}

func TestMonitorAddError(t *testing.T) {
	bus := newFakeBus()
	bus.handle(ifaceManager+".Subscribe", func(dbus.ObjectPath, []any) ([]any, error) { return nil, nil })
	bus.handle(ifaceManager+".Unsubscribe", func(dbus.ObjectPath, []any) ([]any, error) { return nil, nil })
	bus.handle(ifaceManager+".GetUnit", func(_ dbus.ObjectPath, args []any) ([]any, error) {
		switch args[0].(string) {
		case "cron.service":
			return []any{systemd.UnitPath("cron.service")}, nil
		case "secret.service":
			return nil, busErr("org.freedesktop.DBus.Error.AccessDenied")
		default:
			return nil, busErr("org.freedesktop.systemd1.NoSuchUnit")
		}
	})

	ctx := context.Background()
	m, err := systemd.NewMonitor(ctx, bus, nil)
	if err != nil {
		t.Fatalf("NewMonitor() failed: %v", err)
	}
	defer m.Close(ctx)

	err = m.Add(ctx, "cron.service", "secret.service", "backup.service")
	if !errors.Is(err, systemd.ErrRemote) {
		t.Errorf("Add() err = %v, want ErrRemote", err)
	}
	if diff := cmp.Diff(m.Names(), []string{"backup.service", "cron.service"}); diff != "" {
		t.Errorf("Names() wrong after failed Add (-got+want):\n%s", diff)
	}
	if diff := cmp.Diff(unitNames(m.Units()), []string{"cron.service"}); diff != "" {
		t.Errorf("Units() wrong after failed Add (-got+want):\n%s", diff)
	}
}

func TestMonitorSubscribeError(t *testing.T) {
	bus := newFakeBus()
	// No Subscribe handler, so the call fails.
	_, err := systemd.NewMonitor(context.Background(), bus, nil)
	if err == nil {
		t.Fatal("NewMonitor() succeeded without a systemd manager")
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.matches != 0 {
		t.Errorf("%d signal matches left after failure, want 0", bus.matches)
	}
}
