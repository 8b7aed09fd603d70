package systemd_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danderson/systemd"
	"github.com/danderson/systemd/dbustest"
	"github.com/google/go-cmp/cmp"
)

// debugging tests, and the bus monitor output is too much? Turn it
// off temporarily here.
const logBusTraffic = true

func crondProps() dbustest.Props {
	return dbustest.Props{
		"org.freedesktop.systemd1.Unit": {
			"Description": "Regular background program processing daemon",
		},
		"org.freedesktop.systemd1.Service": {
			"MainPID":       uint32(1234),
			"CPUAccounting": true,
			"CPUUsageNSec":  uint64(250000000),
			"ExecStart": []dbustest.ExecCommand{{
				Path:      "/usr/sbin/cron",
				Args:      []string{"/usr/sbin/cron", "-f", "-P"},
				StartTime: 1700000000000000,
				PID:       1234,
			}},
			"LimitNOFILE": uint64(524288),
			"TasksMax":    ^uint64(0),
		},
	}
}

func TestDialOutlivesContext(t *testing.T) {
	bus := dbustest.New(t, logBusTraffic)
	dbustest.NewSystemd(t, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := systemd.Dial(ctx, bus.Address())
	cancel()
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer conn.Close()

	if !conn.Connected() {
		t.Fatal("connection closed after dial context was cancelled")
	}
	if err := conn.BusObject().Call("org.freedesktop.DBus.Peer.Ping", 0).Err; err != nil {
		t.Fatalf("Ping after dial context was cancelled: %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if v, err := systemd.NewManager(conn).Version(ctx); err != nil || v != "255" {
		t.Errorf("Version() = %q, %v; want 255", v, err)
	}

	dead, cancelDead := context.WithCancel(context.Background())
	cancelDead()
	if _, err := systemd.Dial(dead, bus.Address()); !errors.Is(err, context.Canceled) {
		t.Errorf("Dial() with cancelled context err = %v, want context.Canceled", err)
	}
}

func TestIntegrationService(t *testing.T) {
	bus := dbustest.New(t, logBusTraffic)
	sd := dbustest.NewSystemd(t, bus)
	sd.AddUnit("cron.service", crondProps(), dbustest.Process{
		ControlGroup: "/",
		PID:          1234,
		Command:      "/usr/sbin/cron -f -P",
	})

	conn := bus.MustConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := systemd.NewService(conn, "cron")
	if got, err := svc.MainPID(ctx); err != nil || got != 1234 {
		t.Errorf("MainPID() = %v, %v; want 1234", got, err)
	}
	if got, err := svc.Description(ctx); err != nil || got != "Regular background program processing daemon" {
		t.Errorf("Description() = %q, %v", got, err)
	}
	cpu := svc.Accounting().CPU
	if got, err := cpu.Accounting(ctx); err != nil || !got {
		t.Errorf("CPU.Accounting() = %v, %v; want true", got, err)
	}
	if got, err := cpu.Usage(ctx); err != nil || got != 250000000 {
		t.Errorf("CPU.Usage() = %v, %v; want 250000000", got, err)
	}

	exec, err := svc.ExecStart(ctx)
	if err != nil {
		t.Fatalf("ExecStart() failed: %v", err)
	}
	want := []systemd.ExecCommand{{
		Path:      "/usr/sbin/cron",
		Args:      []string{"/usr/sbin/cron", "-f", "-P"},
		StartTime: time.UnixMicro(1700000000000000),
		PID:       1234,
	}}
	if diff := cmp.Diff(exec, want); diff != "" {
		t.Errorf("ExecStart() wrong result (-got+want):\n%s", diff)
	}

	nofile, err := svc.Exec().Limit(ctx, systemd.LimitNOFILE)
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := nofile.Value(); !ok || n != 524288 {
		t.Errorf("LimitNOFILE = %v, want 524288", nofile)
	}
	tasks, err := svc.Accounting().Tasks.Max(ctx)
	if err != nil || !tasks.IsUnlimited() {
		t.Errorf("Tasks.Max() = %v, %v; want unlimited", tasks, err)
	}

	procs, err := svc.Processes(ctx)
	if err != nil {
		t.Fatalf("Processes() failed: %v", err)
	}
	wantProcs := []systemd.UnitProcess{{ControlGroup: "/", PID: 1234, Command: "/usr/sbin/cron -f -P"}}
	if diff := cmp.Diff(procs, wantProcs); diff != "" {
		t.Errorf("Processes() wrong result (-got+want):\n%s", diff)
	}

	if _, err := svc.StatusText(ctx); !errors.Is(err, systemd.ErrNotFound) {
		t.Errorf("StatusText() err = %v, want ErrNotFound", err)
	}

	for _, set := range svc.Properties() {
		for _, r := range set.ReadAll(ctx) {
			if r.Err != nil && !errors.Is(r.Err, systemd.ErrNotFound) {
				t.Errorf("reading %s: %v", r.Key, r.Err)
			}
		}
	}
}

func TestIntegrationManager(t *testing.T) {
	bus := dbustest.New(t, logBusTraffic)
	sd := dbustest.NewSystemd(t, bus)
	sd.AddUnit("cron.service", crondProps(), dbustest.Process{PID: 1234})
	sd.AddUnit("backup.timer", dbustest.Props{
		"org.freedesktop.systemd1.Unit": {
			"ActiveState": "inactive",
			"SubState":    "dead",
		},
	})

	conn := bus.MustConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr := systemd.NewManager(conn)

	if v, err := mgr.Version(ctx); err != nil || v != "255" {
		t.Errorf("Version() = %q, %v; want 255", v, err)
	}
	if n, err := mgr.NNames(ctx); err != nil || n != 2 {
		t.Errorf("NNames() = %v, %v; want 2", n, err)
	}

	u, err := mgr.GetUnitByPID(ctx, 1234)
	if err != nil {
		t.Fatalf("GetUnitByPID() failed: %v", err)
	}
	if u.Name() != "cron.service" {
		t.Errorf("GetUnitByPID(1234) = %q, want cron.service", u.Name())
	}

	if _, err := mgr.GetUnit(ctx, "nope.service"); !errors.Is(err, systemd.ErrNotFound) {
		t.Errorf("GetUnit(nope) err = %v, want ErrNotFound", err)
	}

	units, err := mgr.ListUnitsByPatterns(ctx, nil, []string{"*.timer"})
	if err != nil {
		t.Fatalf("ListUnitsByPatterns() failed: %v", err)
	}
	if len(units) != 1 || units[0].Name != "backup.timer" || units[0].ActiveState != "inactive" {
		t.Errorf("ListUnitsByPatterns(*.timer) = %+v, want backup.timer", units)
	}
	all, err := mgr.ListUnits(ctx)
	if err != nil {
		t.Fatalf("ListUnits() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListUnits() returned %d units, want 2", len(all))
	}

	job, err := mgr.StartUnit(ctx, "backup.timer", systemd.ModeReplace)
	if err != nil {
		t.Fatalf("StartUnit() failed: %v", err)
	}
	if _, err := mgr.Service("cron").Restart(ctx, systemd.ModeFail); err != nil {
		t.Fatalf("Restart() failed: %v", err)
	}
	jobs := sd.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].Path != job || jobs[0].Unit != "backup.timer" || jobs[0].Mode != "replace" {
		t.Errorf("first job = %+v, want start of backup.timer", jobs[0])
	}
	if jobs[1].Unit != "cron.service" || jobs[1].Mode != "fail" {
		t.Errorf("second job = %+v, want restart of cron.service", jobs[1])
	}

	if _, err := mgr.StartUnit(ctx, "nope.service", systemd.ModeReplace); !errors.Is(err, systemd.ErrNotFound) {
		t.Errorf("StartUnit(nope) err = %v, want ErrNotFound", err)
	}
}

func TestIntegrationMonitor(t *testing.T) {
	bus := dbustest.New(t, logBusTraffic)
	sd := dbustest.NewSystemd(t, bus)

	conn := bus.MustConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := systemd.NewMonitor(ctx, conn, nil)
	if err != nil {
		t.Fatalf("NewMonitor() failed: %v", err)
	}
	if got := sd.Subscribers(); got != 1 {
		t.Errorf("Subscribers() = %d, want 1", got)
	}
	if err := m.Add(ctx, "cron.service"); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if len(m.Units()) != 0 {
		t.Errorf("Units() = %v before cron.service loaded", m.Units())
	}

	sd.AddUnit("other.service", nil)
	sd.AddUnit("cron.service", crondProps())
	ev := nextEvent(t, m)
	if ev.Kind != systemd.UnitLoaded || ev.Name != "cron.service" {
		t.Fatalf("got event %+v, want cron.service loaded", ev)
	}
	svc := systemd.NewService(conn, ev.Unit.Name())
	if pid, err := svc.MainPID(ctx); err != nil || pid != 1234 {
		t.Errorf("MainPID() of loaded unit = %v, %v", pid, err)
	}

	sd.RemoveUnit("cron.service")
	ev = nextEvent(t, m)
	if ev.Kind != systemd.UnitUnloaded || ev.Name != "cron.service" {
		t.Fatalf("got event %+v, want cron.service unloaded", ev)
	}

	if err := systemd.NewManager(conn).Reload(ctx); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	ev = nextEvent(t, m)
	if ev.Kind != systemd.Reloaded {
		t.Fatalf("got event %+v, want reloaded", ev)
	}

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if got := sd.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", got)
	}
}
