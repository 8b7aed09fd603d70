package dbustest

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"testing"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	systemdName = "org.freedesktop.systemd1"
	managerPath = dbus.ObjectPath("/org/freedesktop/systemd1")
	unitPrefix  = "/org/freedesktop/systemd1/unit/"
	jobPrefix   = "/org/freedesktop/systemd1/job/"

	// IfaceManager is the interface of the systemd manager object.
	IfaceManager = systemdName + ".Manager"
	// IfaceUnit is the interface common to all unit objects.
	IfaceUnit = systemdName + ".Unit"

	errNoSuchUnit = systemdName + ".NoSuchUnit"
)

// typeIfaces maps unit name suffixes to the unit type's interface.
var typeIfaces = map[string]string{
	".service": systemdName + ".Service",
	".scope":   systemdName + ".Scope",
	".mount":   systemdName + ".Mount",
	".socket":  systemdName + ".Socket",
	".timer":   systemdName + ".Timer",
}

// TypeInterface returns the type-specific interface of the named
// unit, for example org.freedesktop.systemd1.Service for "cron.service".
func TypeInterface(unit string) string {
	return typeIfaces[path.Ext(unit)]
}

// UnitPath returns the object path of the named unit.
func UnitPath(unit string) dbus.ObjectPath {
	return dbus.ObjectPath(unitPrefix + sddbus.PathBusEscape(unit))
}

// Props is the initial value of a unit's properties, keyed by
// interface name and then property name.
//
// Values are served exactly as given, so their Go types determine
// the DBus signature. DBus structs are written as Go structs with
// exported fields, for example [ExecCommand] or [Process].
type Props map[string]map[string]any

// ExecCommand is the (sasbttttuii) struct systemd uses to describe a
// configured command line and its last run.
type ExecCommand struct {
	Path           string
	Args           []string
	IgnoreErrors   bool
	StartTime      uint64
	StartMonotonic uint64
	ExitTime       uint64
	ExitMonotonic  uint64
	PID            uint32
	Code           int32
	Status         int32
}

// Process is the (sus) struct returned by a unit's GetProcesses
// method.
type Process struct {
	ControlGroup string
	PID          uint32
	Command      string
}

// Job is a job request received by the fake manager.
type Job struct {
	Path   dbus.ObjectPath
	Method string
	Unit   string
	Mode   string
}

type unitStatus struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	Followed    string
	Path        dbus.ObjectPath
	JobID       uint32
	JobType     string
	JobPath     dbus.ObjectPath
}

type fakeUnit struct {
	name      string
	path      dbus.ObjectPath
	ifaces    []string
	props     *prop.Properties
	processes []Process
}

// Systemd is a fake systemd manager, serving a small subset of the
// real manager's API on a test bus.
type Systemd struct {
	t    *testing.T
	conn *dbus.Conn

	mu          sync.Mutex
	props       *prop.Properties
	units       map[string]*fakeUnit
	jobs        []Job
	subscribers int
}

// NewSystemd connects to b, claims the systemd bus name, and starts
// serving a manager object with no units.
func NewSystemd(t *testing.T, b *Bus) *Systemd {
	t.Helper()
	ret := &Systemd{
		t:     t,
		conn:  b.MustConn(t),
		units: map[string]*fakeUnit{},
	}

	reply, err := ret.conn.RequestName(systemdName, dbus.NameFlagDoNotQueue)
	if err != nil {
		t.Fatalf("requesting %s: %v", systemdName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		t.Fatalf("requesting %s: not primary owner (reply %d)", systemdName, reply)
	}

	methods := map[string]any{
		"GetUnit":             ret.getUnit,
		"LoadUnit":            ret.getUnit,
		"GetUnitByPID":        ret.getUnitByPID,
		"ListUnits":           ret.listUnits,
		"ListUnitsFiltered":   ret.listUnitsFiltered,
		"ListUnitsByPatterns": ret.listUnitsByPatterns,
		"StartUnit":           ret.managerJob("StartUnit"),
		"StopUnit":            ret.managerJob("StopUnit"),
		"RestartUnit":         ret.managerJob("RestartUnit"),
		"ReloadUnit":          ret.managerJob("ReloadUnit"),
		"Subscribe":           ret.subscribe,
		"Unsubscribe":         ret.unsubscribe,
		"Reload":              ret.reload,
	}
	if err := ret.conn.ExportMethodTable(methods, managerPath, IfaceManager); err != nil {
		t.Fatalf("exporting manager: %v", err)
	}
	ret.props, err = prop.Export(ret.conn, managerPath, prop.Map{
		IfaceManager: {
			"Version":               {Value: "255"},
			"Features":              {Value: "+PAM +SELINUX -APPARMOR"},
			"Virtualization":        {Value: ""},
			"Architecture":          {Value: "x86-64"},
			"Tainted":               {Value: ""},
			"SystemState":           {Value: "running"},
			"NNames":                {Value: uint32(0)},
			"NFailedUnits":          {Value: uint32(0)},
			"NJobs":                 {Value: uint32(0)},
			"UnitPath":              {Value: []string{"/etc/systemd/system", "/usr/lib/systemd/system"}},
			"DefaultStandardOutput": {Value: "journal"},
		},
	})
	if err != nil {
		t.Fatalf("exporting manager properties: %v", err)
	}
	return ret
}

// SetManagerProperty changes the value of a manager property.
func (s *Systemd) SetManagerProperty(name string, v any) {
	s.props.SetMust(IfaceManager, name, v)
}

// AddUnit loads a unit with the given properties, and announces it
// with a UnitNew signal.
//
// The unit's Id, Names, Description and state properties are filled
// in with plausible defaults if props does not set them.
func (s *Systemd) AddUnit(name string, props Props, processes ...Process) dbus.ObjectPath {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.units[name]; ok {
		s.t.Fatalf("unit %q already loaded", name)
	}

	u := &fakeUnit{
		name:      name,
		path:      UnitPath(name),
		processes: processes,
	}
	m := prop.Map{}
	unitProps := map[string]any{
		"Id":          name,
		"Names":       []string{name},
		"Description": name,
		"LoadState":   "loaded",
		"ActiveState": "active",
		"SubState":    "running",
	}
	for k, v := range props[IfaceUnit] {
		unitProps[k] = v
	}
	m[IfaceUnit] = toProps(unitProps)
	for iface, vals := range props {
		if iface == IfaceUnit {
			continue
		}
		m[iface] = toProps(vals)
	}
	typeIface := TypeInterface(name)
	if typeIface != "" && m[typeIface] == nil {
		m[typeIface] = map[string]*prop.Prop{}
	}
	for iface := range m {
		u.ifaces = append(u.ifaces, iface)
	}
	slices.Sort(u.ifaces)

	unitMethods := map[string]any{
		"Start":   s.unitJob(name, "Start"),
		"Stop":    s.unitJob(name, "Stop"),
		"Restart": s.unitJob(name, "Restart"),
		"Reload":  s.unitJob(name, "Reload"),
	}
	if err := s.conn.ExportMethodTable(unitMethods, u.path, IfaceUnit); err != nil {
		s.t.Fatalf("exporting unit %q: %v", name, err)
	}
	if typeIface != "" {
		getProcesses := func() ([]Process, *dbus.Error) {
			return u.processes, nil
		}
		if err := s.conn.ExportMethodTable(map[string]any{"GetProcesses": getProcesses}, u.path, typeIface); err != nil {
			s.t.Fatalf("exporting unit %q: %v", name, err)
		}
	}
	var err error
	u.props, err = prop.Export(s.conn, u.path, m)
	if err != nil {
		s.t.Fatalf("exporting properties of %q: %v", name, err)
	}

	s.units[name] = u
	s.props.SetMust(IfaceManager, "NNames", uint32(len(s.units)))
	s.emit("UnitNew", name, u.path)
	return u.path
}

// SetProperty changes the value of a property of a loaded unit.
func (s *Systemd) SetProperty(unit, iface, name string, v any) {
	s.t.Helper()
	s.mu.Lock()
	u := s.units[unit]
	s.mu.Unlock()
	if u == nil {
		s.t.Fatalf("unit %q not loaded", unit)
	}
	u.props.SetMust(iface, name, v)
}

// RemoveUnit unloads a unit, and announces it with a UnitRemoved
// signal.
func (s *Systemd) RemoveUnit(name string) {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.units[name]
	if u == nil {
		s.t.Fatalf("unit %q not loaded", name)
	}
	for _, iface := range u.ifaces {
		s.conn.Export(nil, u.path, iface)
	}
	s.conn.Export(nil, u.path, "org.freedesktop.DBus.Properties")
	delete(s.units, name)
	s.props.SetMust(IfaceManager, "NNames", uint32(len(s.units)))
	s.emit("UnitRemoved", name, u.path)
}

// Reload simulates a daemon reload, emitting Reloading(true) followed
// by Reloading(false).
func (s *Systemd) Reload() {
	s.emit("Reloading", true)
	s.emit("Reloading", false)
}

// Jobs returns the jobs requested so far, in order.
func (s *Systemd) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.jobs)
}

// Subscribers returns the number of outstanding Subscribe calls.
func (s *Systemd) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers
}

func (s *Systemd) emit(member string, values ...any) {
	if err := s.conn.Emit(managerPath, IfaceManager+"."+member, values...); err != nil {
		s.t.Errorf("emitting %s: %v", member, err)
	}
}

func toProps(vals map[string]any) map[string]*prop.Prop {
	ret := make(map[string]*prop.Prop, len(vals))
	for k, v := range vals {
		ret[k] = &prop.Prop{Value: v, Emit: prop.EmitFalse}
	}
	return ret
}

func noSuchUnit(format string, args ...any) *dbus.Error {
	return dbus.NewError(errNoSuchUnit, []any{fmt.Sprintf(format, args...)})
}

func (s *Systemd) getUnit(name string) (dbus.ObjectPath, *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.units[name]
	if u == nil {
		return "", noSuchUnit("Unit %s not loaded.", name)
	}
	return u.path, nil
}

func (s *Systemd) getUnitByPID(pid uint32) (dbus.ObjectPath, *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		for _, p := range u.processes {
			if p.PID == pid {
				return u.path, nil
			}
		}
	}
	return "", noSuchUnit("PID %d does not belong to any loaded unit.", pid)
}

func (s *Systemd) statusLocked(u *fakeUnit) unitStatus {
	str := func(name string) string {
		v, err := u.props.Get(IfaceUnit, name)
		if err != nil {
			return ""
		}
		ret, _ := v.Value().(string)
		return ret
	}
	return unitStatus{
		Name:        u.name,
		Description: str("Description"),
		LoadState:   str("LoadState"),
		ActiveState: str("ActiveState"),
		SubState:    str("SubState"),
		Path:        u.path,
		JobPath:     "/",
	}
}

func (s *Systemd) list(states, patterns []string) []unitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := []unitStatus{}
	for _, u := range s.units {
		st := s.statusLocked(u)
		if len(states) > 0 && !slices.Contains(states, st.LoadState) && !slices.Contains(states, st.ActiveState) && !slices.Contains(states, st.SubState) {
			continue
		}
		if len(patterns) > 0 && !slices.ContainsFunc(patterns, func(p string) bool {
			ok, _ := path.Match(p, u.name)
			return ok
		}) {
			continue
		}
		ret = append(ret, st)
	}
	slices.SortFunc(ret, func(a, b unitStatus) int { return strings.Compare(a.Name, b.Name) })
	return ret
}

func (s *Systemd) listUnits() ([]unitStatus, *dbus.Error) {
	return s.list(nil, nil), nil
}

func (s *Systemd) listUnitsFiltered(states []string) ([]unitStatus, *dbus.Error) {
	return s.list(states, nil), nil
}

func (s *Systemd) listUnitsByPatterns(states, patterns []string) ([]unitStatus, *dbus.Error) {
	return s.list(states, patterns), nil
}

func (s *Systemd) addJob(method, unit, mode string) dbus.ObjectPath {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := dbus.ObjectPath(fmt.Sprintf("%s%d", jobPrefix, len(s.jobs)+1))
	s.jobs = append(s.jobs, Job{
		Path:   ret,
		Method: method,
		Unit:   unit,
		Mode:   mode,
	})
	return ret
}

func (s *Systemd) managerJob(method string) func(string, string) (dbus.ObjectPath, *dbus.Error) {
	return func(name, mode string) (dbus.ObjectPath, *dbus.Error) {
		if _, err := s.getUnit(name); err != nil {
			return "", err
		}
		return s.addJob(method, name, mode), nil
	}
}

func (s *Systemd) unitJob(name, method string) func(string) (dbus.ObjectPath, *dbus.Error) {
	return func(mode string) (dbus.ObjectPath, *dbus.Error) {
		return s.addJob(method, name, mode), nil
	}
}

func (s *Systemd) subscribe() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers++
	return nil
}

func (s *Systemd) unsubscribe() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers == 0 {
		return dbus.NewError(systemdName+".NotSubscribed", []any{"Client is not subscribed."})
	}
	s.subscribers--
	return nil
}

func (s *Systemd) reload() *dbus.Error {
	s.Reload()
	return nil
}
