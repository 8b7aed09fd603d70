package systemd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/mds/queue"
	"github.com/godbus/dbus/v5"
)

const (
	maxMonitorQueue = 20
	refreshTimeout  = 10 * time.Second
)

// EventKind is the kind of a [MonitorEvent].
type EventKind int

const (
	// UnitLoaded is reported when a monitored unit is loaded by
	// systemd.
	UnitLoaded EventKind = iota + 1
	// UnitUnloaded is reported when a monitored unit is unloaded by
	// systemd.
	UnitUnloaded
	// Reloaded is reported after systemd finishes reloading its
	// configuration, and the monitor has refreshed its units.
	Reloaded
)

func (k EventKind) String() string {
	switch k {
	case UnitLoaded:
		return "loaded"
	case UnitUnloaded:
		return "unloaded"
	case Reloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// MonitorEvent is a change to the set of units tracked by a
// [Monitor].
type MonitorEvent struct {
	Kind EventKind
	// Name is the name of the unit that changed. It is empty for
	// Reloaded events.
	Name string
	// Unit is the newly loaded unit, for UnitLoaded events.
	Unit Unit
	// Overflow reports that the monitor discarded some events that
	// followed this one, because the caller did not receive events
	// fast enough.
	Overflow bool
}

// Monitor tracks a set of units by name, keeping a handle to each one
// that systemd currently has loaded.
//
// Units can be monitored before they exist: the monitor picks them up
// when systemd loads them, and drops them when systemd unloads them.
type Monitor struct {
	conn SignalConn
	mgr  Manager
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	signals     chan *dbus.Signal
	events      chan *MonitorEvent
	wakePump    chan struct{}
	loopStopped chan struct{}
	pumpStopped chan struct{}

	mu    sync.Mutex
	names mapset.Set[string]
	units map[string]Unit
	queue queue.Queue[*MonitorEvent]
}

// NewMonitor subscribes to systemd's unit signals on conn and returns
// a Monitor that tracks no units. Use [Monitor.Add] to track units.
//
// If logger is nil, [slog.Default] is used.
func NewMonitor(ctx context.Context, conn SignalConn, logger *slog.Logger) (*Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		conn:        conn,
		mgr:         NewManager(conn),
		log:         logger.With("component", "systemd-monitor"),
		ctx:         mctx,
		cancel:      cancel,
		signals:     make(chan *dbus.Signal, maxMonitorQueue),
		events:      make(chan *MonitorEvent),
		wakePump:    make(chan struct{}, 1),
		loopStopped: make(chan struct{}),
		pumpStopped: make(chan struct{}),
		names:       mapset.New[string](),
		units:       map[string]Unit{},
	}

	if err := conn.AddMatchSignal(m.matchOptions()...); err != nil {
		cancel()
		return nil, fmt.Errorf("adding signal match: %w", err)
	}
	if err := m.mgr.Subscribe(ctx); err != nil {
		conn.RemoveMatchSignal(m.matchOptions()...)
		cancel()
		return nil, err
	}
	conn.Signal(m.signals)

	go m.loop()
	go m.pump()
	return m, nil
}

func (m *Monitor) matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchSender(Destination),
		dbus.WithMatchObjectPath(ManagerPath),
		dbus.WithMatchInterface(ifaceManager),
	}
}

// Close stops the monitor, and closes its event channel.
func (m *Monitor) Close(ctx context.Context) error {
	select {
	case <-m.loopStopped:
		return nil
	default:
	}

	m.conn.RemoveSignal(m.signals)
	m.cancel()
	<-m.loopStopped
	<-m.pumpStopped

	m.mu.Lock()
	m.queue.Clear()
	m.mu.Unlock()

	err := m.mgr.Unsubscribe(ctx)
	if rerr := m.conn.RemoveMatchSignal(m.matchOptions()...); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

// Events returns the channel on which changes to the tracked units
// are delivered. The channel is closed when the monitor is closed.
//
// The caller must receive events promptly. If more than a few events
// are pending, further events are discarded, and the last delivered
// event has Overflow set.
func (m *Monitor) Events() <-chan *MonitorEvent {
	return m.events
}

// Add starts tracking the units with the given full names. Units that
// systemd has not loaded are tracked, and picked up when they load.
//
// Names whose lookup fails for any other reason are not tracked, and
// their errors are returned. The other names are still added.
func (m *Monitor) Add(ctx context.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		u, err := m.mgr.GetUnit(ctx, name)
		m.mu.Lock()
		switch {
		case err == nil:
			m.names.Add(name)
			m.units[name] = u
		case errors.Is(err, ErrNotFound):
			m.names.Add(name)
			delete(m.units, name)
		default:
			errs = append(errs, err)
		}
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Remove stops tracking the given units.
func (m *Monitor) Remove(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names.Remove(names...)
	for _, name := range names {
		delete(m.units, name)
	}
}

// Names returns the names of the tracked units, loaded or not, in
// sorted order.
func (m *Monitor) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := m.names.Slice()
	slices.Sort(ret)
	return ret
}

// Units returns the tracked units that systemd currently has loaded,
// sorted by name.
func (m *Monitor) Units() []Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]Unit, 0, len(m.units))
	for _, u := range m.units {
		ret = append(ret, u)
	}
	slices.SortFunc(ret, func(a, b Unit) int { return cmp.Compare(a.name, b.name) })
	return ret
}

// Refresh looks up every tracked unit again.
func (m *Monitor) Refresh(ctx context.Context) error {
	var errs []error
	for _, name := range m.Names() {
		u, err := m.mgr.GetUnit(ctx, name)
		m.mu.Lock()
		if !m.names.Has(name) {
			// Removed while we were looking it up.
			m.mu.Unlock()
			continue
		}
		switch {
		case err == nil:
			m.units[name] = u
		case errors.Is(err, ErrNotFound):
			delete(m.units, name)
		default:
			delete(m.units, name)
			errs = append(errs, err)
		}
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (m *Monitor) loop() {
	defer close(m.loopStopped)
	for {
		select {
		case <-m.ctx.Done():
			return
		case sig := <-m.signals:
			if sig == nil || sig.Path != ManagerPath {
				continue
			}
			m.handle(sig)
		}
	}
}

func (m *Monitor) handle(sig *dbus.Signal) {
	switch sig.Name {
	case ifaceManager + ".UnitNew":
		name, path, err := unitSignal(sig)
		if err != nil {
			m.log.Error("malformed UnitNew signal", "err", err)
			return
		}
		m.log.Debug("unit new", "unit", name, "path", path)
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.names.Has(name) {
			return
		}
		u := unitAt(m.conn, name, path)
		m.units[name] = u
		m.enqueueLocked(MonitorEvent{Kind: UnitLoaded, Name: name, Unit: u})

	case ifaceManager + ".UnitRemoved":
		name, path, err := unitSignal(sig)
		if err != nil {
			m.log.Error("malformed UnitRemoved signal", "err", err)
			return
		}
		m.log.Debug("unit removed", "unit", name, "path", path)
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.units[name]; !ok {
			return
		}
		delete(m.units, name)
		m.enqueueLocked(MonitorEvent{Kind: UnitUnloaded, Name: name})

	case ifaceManager + ".Reloading":
		active, err := reloadingSignal(sig)
		if err != nil {
			m.log.Error("malformed Reloading signal", "err", err)
			return
		}
		if active {
			m.log.Debug("daemon reload started")
			return
		}
		m.log.Debug("daemon reload finished")
		ctx, cancel := context.WithTimeout(m.ctx, refreshTimeout)
		defer cancel()
		if err := m.Refresh(ctx); err != nil {
			m.log.Error("refreshing monitored units", "err", err)
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.enqueueLocked(MonitorEvent{Kind: Reloaded})
	}
}

// unitSignal decodes the (so) body of UnitNew and UnitRemoved.
func unitSignal(sig *dbus.Signal) (string, dbus.ObjectPath, error) {
	f, err := readFields(sig.Name, "so", sig.Body)
	if err != nil {
		return "", "", err
	}
	name := field(f, 0, String)
	path := field(f, 1, ObjectPath)
	return name, path, f.err
}

// reloadingSignal decodes the (b) body of Reloading.
func reloadingSignal(sig *dbus.Signal) (bool, error) {
	f, err := readFields(sig.Name, "b", sig.Body)
	if err != nil {
		return false, err
	}
	active := field(f, 0, Bool)
	return active, f.err
}

func (m *Monitor) enqueueLocked(ev MonitorEvent) {
	if m.queue.Len() >= maxMonitorQueue {
		last, _ := m.queue.Peek(-1)
		last.Overflow = true
		return
	}
	m.queue.Add(&ev)
	if m.queue.Len() == 1 {
		select {
		case m.wakePump <- struct{}{}:
		default:
		}
	}
}

func (m *Monitor) pump() {
	defer close(m.pumpStopped)
	defer close(m.events)
	for {
		ev := func() *MonitorEvent {
			m.mu.Lock()
			defer m.mu.Unlock()
			ret, _ := m.queue.Pop()
			return ret
		}()
		if ev == nil {
			select {
			case <-m.ctx.Done():
				return
			case <-m.wakePump:
				continue
			}
		}
		select {
		case m.events <- ev:
		case <-m.ctx.Done():
			return
		}
	}
}
