package systemd_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danderson/systemd"
	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
)

const ifaceManager = "org.freedesktop.systemd1.Manager"

// loadUnits makes bus answer GetUnit for the given units, and
// NoSuchUnit for all others. It returns a function that changes the
// set of loaded units.
func loadUnits(bus *fakeBus, names ...string) func(names ...string) {
	loaded := map[string]bool{}
	set := func(names ...string) {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		clear(loaded)
		for _, n := range names {
			loaded[n] = true
		}
	}
	set(names...)
	bus.handle(ifaceManager+".GetUnit", func(_ dbus.ObjectPath, args []any) ([]any, error) {
		name := args[0].(string)
		bus.mu.Lock()
		ok := loaded[name]
		bus.mu.Unlock()
		if !ok {
			return nil, busErr("org.freedesktop.systemd1.NoSuchUnit")
		}
		return []any{systemd.UnitPath(name)}, nil
	})
	return set
}

func TestManagerGetUnit(t *testing.T) {
	bus := newFakeBus()
	loadUnits(bus, "cron.service")
	bus.set(systemd.UnitPath("cron.service"), ifaceUnit, "ActiveState", "active")

	ctx := context.Background()
	mgr := systemd.NewManager(bus)
	u, err := mgr.GetUnit(ctx, "cron.service")
	if err != nil {
		t.Fatalf("GetUnit() failed: %v", err)
	}
	if u.Name() != "cron.service" || u.Path() != systemd.UnitPath("cron.service") {
		t.Errorf("GetUnit() = %s at %s", u.Name(), u.Path())
	}
	state, err := u.ActiveState(ctx)
	if err != nil || state != "active" {
		t.Errorf("ActiveState() = %q, %v; want active", state, err)
	}

	_, err = mgr.GetUnit(ctx, "nope.service")
	if !errors.Is(err, systemd.ErrNotFound) {
		t.Errorf("GetUnit(nope) err = %v, want ErrNotFound", err)
	}
	var ae *systemd.AccessError
	if !errors.As(err, &ae) || ae.Method != "GetUnit" || ae.Interface != ifaceManager {
		t.Errorf("GetUnit(nope) err = %v, want AccessError for Manager.GetUnit", err)
	}
}

func TestManagerGetUnitByPID(t *testing.T) {
	bus := newFakeBus()
	path := systemd.UnitPath("sshd.service")
	bus.set(path, ifaceUnit, "Id", "sshd.service")
	bus.handle(ifaceManager+".GetUnitByPID", func(_ dbus.ObjectPath, args []any) ([]any, error) {
		if args[0].(uint32) != 42 {
			return nil, busErr("org.freedesktop.systemd1.NoUnitForPID")
		}
		return []any{path}, nil
	})

	ctx := context.Background()
	mgr := systemd.NewManager(bus)
	u, err := mgr.GetUnitByPID(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if u.Name() != "sshd.service" {
		t.Errorf("GetUnitByPID(42).Name() = %q, want sshd.service", u.Name())
	}

	_, err = mgr.GetUnitByPID(ctx, 1)
	if !errors.Is(err, systemd.ErrRemote) {
		t.Errorf("GetUnitByPID(1) err = %v, want ErrRemote", err)
	}
}

func TestManagerListUnits(t *testing.T) {
	bus := newFakeBus()
	var gotArgs []any
	bus.handle(ifaceManager+".ListUnitsByPatterns", func(_ dbus.ObjectPath, args []any) ([]any, error) {
		gotArgs = args
		return []any{[][]any{
			{"cron.service", "Regular background program processing daemon", "loaded", "active", "running", "", systemd.UnitPath("cron.service"), uint32(0), "", dbus.ObjectPath("/")},
			{"backup.service", "Backup", "loaded", "inactive", "dead", "", systemd.UnitPath("backup.service"), uint32(12), "start", dbus.ObjectPath("/org/freedesktop/systemd1/job/12")},
		}}, nil
	})
	bus.handle(ifaceManager+".ListUnits", func(_ dbus.ObjectPath, args []any) ([]any, error) {
		return []any{[][]any{{"short", "record"}}}, nil
	})

	ctx := context.Background()
	mgr := systemd.NewManager(bus)
	got, err := mgr.ListUnitsByPatterns(ctx, []string{"loaded"}, []string{"*.service"})
	if err != nil {
		t.Fatal(err)
	}
	want := []systemd.UnitStatus{
		{
			Name:        "cron.service",
			Description: "Regular background program processing daemon",
			LoadState:   "loaded",
			ActiveState: "active",
			SubState:    "running",
			Path:        systemd.UnitPath("cron.service"),
			JobPath:     "/",
		},
		{
			Name:        "backup.service",
			Description: "Backup",
			LoadState:   "loaded",
			ActiveState: "inactive",
			SubState:    "dead",
			Path:        systemd.UnitPath("backup.service"),
			JobID:       12,
			JobType:     "start",
			JobPath:     "/org/freedesktop/systemd1/job/12",
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("ListUnitsByPatterns() wrong result (-got+want):\n%s", diff)
	}
	if diff := cmp.Diff(gotArgs, []any{[]string{"loaded"}, []string{"*.service"}}); diff != "" {
		t.Errorf("ListUnitsByPatterns() sent wrong args (-got+want):\n%s", diff)
	}

	_, err = mgr.ListUnits(ctx)
	if !errors.Is(err, systemd.ErrMalformedContainer) {
		t.Errorf("ListUnits() err = %v, want ErrMalformedContainer", err)
	}
}

func TestManagerJobs(t *testing.T) {
	bus := newFakeBus()
	type job struct{ method, name, mode string }
	var jobs []job
	for _, m := range []string{"StartUnit", "StopUnit", "RestartUnit", "ReloadUnit"} {
		bus.handle(ifaceManager+"."+m, func(_ dbus.ObjectPath, args []any) ([]any, error) {
			jobs = append(jobs, job{m, args[0].(string), args[1].(string)})
			return []any{dbus.ObjectPath("/org/freedesktop/systemd1/job/1")}, nil
		})
	}

	ctx := context.Background()
	mgr := systemd.NewManager(bus)
	if _, err := mgr.StartUnit(ctx, "a.service", systemd.ModeReplace); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.StopUnit(ctx, "b.service", systemd.ModeFail); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.RestartUnit(ctx, "c.service", systemd.ModeIgnoreDependencies); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.ReloadUnit(ctx, "d.service", systemd.ModeReplace); err != nil {
		t.Fatal(err)
	}
	want := []job{
		{"StartUnit", "a.service", "replace"},
		{"StopUnit", "b.service", "fail"},
		{"RestartUnit", "c.service", "ignore-dependencies"},
		{"ReloadUnit", "d.service", "replace"},
	}
	if diff := cmp.Diff(jobs, want, cmp.AllowUnexported(job{})); diff != "" {
		t.Errorf("wrong jobs (-got+want):\n%s", diff)
	}
}

func TestManagerProperties(t *testing.T) {
	bus := newFakeBus()
	bus.set(systemd.ManagerPath, ifaceManager, "Version", "255")
	bus.set(systemd.ManagerPath, ifaceManager, "SystemState", "degraded")
	bus.set(systemd.ManagerPath, ifaceManager, "NFailedUnits", uint32(2))
	bus.set(systemd.ManagerPath, ifaceManager, "UnitPath", []string{"/etc/systemd/system"})

	ctx := context.Background()
	mgr := systemd.NewManager(bus)
	if v, err := mgr.Version(ctx); err != nil || v != "255" {
		t.Errorf("Version() = %q, %v", v, err)
	}
	if v, err := mgr.SystemState(ctx); err != nil || v != "degraded" {
		t.Errorf("SystemState() = %q, %v", v, err)
	}
	if v, err := mgr.NFailedUnits(ctx); err != nil || v != 2 {
		t.Errorf("NFailedUnits() = %v, %v", v, err)
	}
	if v, err := mgr.UnitSearchPath(ctx); err != nil || len(v) != 1 {
		t.Errorf("UnitSearchPath() = %v, %v", v, err)
	}
	if _, err := mgr.Architecture(ctx); !errors.Is(err, systemd.ErrNotFound) {
		t.Errorf("Architecture() err = %v, want ErrNotFound", err)
	}
}
