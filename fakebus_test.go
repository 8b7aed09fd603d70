package systemd_test

import (
	"context"
	"slices"
	"sync"

	"github.com/danderson/systemd"
	"github.com/godbus/dbus/v5"
)

// fakeBus is an in-memory systemd.SignalConn. It serves properties
// and methods of objects owned by org.freedesktop.systemd1, and
// delivers signals emitted with emit.
type fakeBus struct {
	mu      sync.Mutex
	props   map[dbus.ObjectPath]map[string]map[string]any
	methods map[string]func(path dbus.ObjectPath, args []any) ([]any, error)
	calls   []string
	signals []chan<- *dbus.Signal
	matches int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props:   map[dbus.ObjectPath]map[string]map[string]any{},
		methods: map[string]func(dbus.ObjectPath, []any) ([]any, error){},
	}
}

// set sets the value of a property. Values must be in the form
// godbus produces when decoding a message.
func (b *fakeBus) set(path dbus.ObjectPath, iface, name string, v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.props[path] == nil {
		b.props[path] = map[string]map[string]any{}
	}
	if b.props[path][iface] == nil {
		b.props[path][iface] = map[string]any{}
	}
	b.props[path][iface][name] = v
}

func (b *fakeBus) handle(method string, fn func(path dbus.ObjectPath, args []any) ([]any, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.methods[method] = fn
}

func (b *fakeBus) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

func (b *fakeBus) emit(member string, body ...any) {
	b.mu.Lock()
	chs := slices.Clone(b.signals)
	b.mu.Unlock()
	sig := &dbus.Signal{
		Sender: ":1.1",
		Path:   systemd.ManagerPath,
		Name:   "org.freedesktop.systemd1.Manager." + member,
		Body:   body,
	}
	for _, ch := range chs {
		ch <- sig
	}
}

func (b *fakeBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return &fakeObject{bus: b, dest: dest, path: path}
}

func (b *fakeBus) Signal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, ch)
}

func (b *fakeBus) RemoveSignal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = slices.DeleteFunc(b.signals, func(c chan<- *dbus.Signal) bool { return c == ch })
}

func (b *fakeBus) AddMatchSignal(options ...dbus.MatchOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matches++
	return nil
}

func (b *fakeBus) RemoveMatchSignal(options ...dbus.MatchOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matches--
	return nil
}

func busErr(name string) error {
	return dbus.Error{Name: name, Body: []any{"fake error"}}
}

// fakeObject implements the calls that the systemd package makes. The
// embedded nil BusObject panics if anything else is called.
type fakeObject struct {
	dbus.BusObject
	bus  *fakeBus
	dest string
	path dbus.ObjectPath
}

func (o *fakeObject) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call {
	body, err := o.call(ctx, method, args)
	return &dbus.Call{
		Destination: o.dest,
		Path:        o.path,
		Method:      method,
		Args:        args,
		Body:        body,
		Err:         err,
	}
}

func (o *fakeObject) call(ctx context.Context, method string, args []any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.dest != systemd.Destination {
		return nil, busErr("org.freedesktop.DBus.Error.ServiceUnknown")
	}

	b := o.bus
	b.mu.Lock()
	b.calls = append(b.calls, string(o.path)+" "+method)
	fn := b.methods[method]
	ifaces, objOK := b.props[o.path]
	b.mu.Unlock()

	switch method {
	case "org.freedesktop.DBus.Properties.Get":
		if !objOK {
			return nil, busErr("org.freedesktop.DBus.Error.UnknownObject")
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		props, ok := ifaces[args[0].(string)]
		if !ok {
			return nil, busErr("org.freedesktop.DBus.Error.UnknownInterface")
		}
		v, ok := props[args[1].(string)]
		if !ok {
			return nil, busErr("org.freedesktop.DBus.Error.UnknownProperty")
		}
		return []any{dbus.MakeVariant(v)}, nil
	case "org.freedesktop.DBus.Properties.GetAll":
		if !objOK {
			return nil, busErr("org.freedesktop.DBus.Error.UnknownObject")
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		ret := map[string]dbus.Variant{}
		for k, v := range ifaces[args[0].(string)] {
			ret[k] = dbus.MakeVariant(v)
		}
		return []any{ret}, nil
	}

	if fn == nil {
		return nil, busErr("org.freedesktop.DBus.Error.UnknownMethod")
	}
	return fn(o.path, args)
}
