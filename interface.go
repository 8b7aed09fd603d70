package systemd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/godbus/dbus/v5"
)

const ifaceProps = "org.freedesktop.DBus.Properties"

// Interface is a set of methods and properties offered by one systemd
// object.
//
// An Interface is a purely local handle. Creating one does not
// contact the bus, and it holds no state besides its connection,
// object path and interface name, so it is safe for concurrent use.
type Interface struct {
	conn Conn
	path dbus.ObjectPath
	name string
}

// NewInterface returns the interface name on the systemd object at
// path.
func NewInterface(conn Conn, path dbus.ObjectPath, name string) Interface {
	return Interface{
		conn: conn,
		path: path,
		name: name,
	}
}

// Conn returns the bus connection used by the interface.
func (f Interface) Conn() Conn { return f.conn }

// Path returns the object path of the object implementing the
// interface.
func (f Interface) Path() dbus.ObjectPath { return f.path }

// Name returns the name of the interface.
func (f Interface) Name() string { return f.name }

// Key returns the key of the given property on this interface.
func (f Interface) Key(property string) PropertyKey {
	return PropertyKey{Interface: f.name, Name: property}
}

// Sibling returns the interface name on the same object as f.
func (f Interface) Sibling(name string) Interface {
	return NewInterface(f.conn, f.path, name)
}

func (f Interface) String() string {
	return fmt.Sprintf("%s:%s", f.path, f.name)
}

func (f Interface) object() dbus.BusObject {
	return f.conn.Object(Destination, f.path)
}

// Call calls method on the interface with the given arguments, and
// stores the response values into ret.
//
// This is a low-level calling API. It is the caller's responsibility
// to match the arguments and return values to the signature of the
// method being invoked.
func (f Interface) Call(ctx context.Context, method string, args []any, ret ...any) error {
	call := f.object().CallWithContext(ctx, f.name+"."+method, 0, args...)
	if err := call.Store(ret...); err != nil {
		return callErr(f, method, err)
	}
	return nil
}

// GetProperty returns the raw value of the given property.
//
// Every call is one round trip to systemd; property values are never
// cached.
func (f Interface) GetProperty(ctx context.Context, name string) (dbus.Variant, error) {
	var ret dbus.Variant
	call := f.object().CallWithContext(ctx, ifaceProps+".Get", 0, f.name, name)
	if err := call.Store(&ret); err != nil {
		return dbus.Variant{}, propertyErr(f, name, err)
	}
	return ret, nil
}

// GetAllProperties returns the raw values of all the properties of
// the interface.
func (f Interface) GetAllProperties(ctx context.Context) (map[string]dbus.Variant, error) {
	var ret map[string]dbus.Variant
	call := f.object().CallWithContext(ctx, ifaceProps+".GetAll", 0, f.name)
	if err := call.Store(&ret); err != nil {
		return nil, callErr(f.Sibling(ifaceProps), "GetAll", err)
	}
	return ret, nil
}

// GetProperty reads the named property of iface and decodes it with
// dec.
//
// Access failures are returned as [*AccessError]. Decoding failures
// are returned as [*DecodeError], annotated with the property key.
func GetProperty[T any](ctx context.Context, iface Interface, name string, dec func(any) (T, error)) (T, error) {
	v, err := iface.GetProperty(ctx, name)
	if err != nil {
		var zero T
		return zero, err
	}
	ret, err := dec(v)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("property %s on %s: %w", iface.Key(name), iface.path, err)
	}
	return ret, nil
}

// GetBool reads a boolean property.
func (f Interface) GetBool(ctx context.Context, name string) (bool, error) {
	return GetProperty(ctx, f, name, Bool)
}

// GetString reads a string property.
func (f Interface) GetString(ctx context.Context, name string) (string, error) {
	return GetProperty(ctx, f, name, String)
}

// GetInt32 reads an integer property that fits in an int32.
func (f Interface) GetInt32(ctx context.Context, name string) (int32, error) {
	return GetProperty(ctx, f, name, Int32)
}

// GetUint32 reads an integer property that fits in a uint32.
func (f Interface) GetUint32(ctx context.Context, name string) (uint32, error) {
	return GetProperty(ctx, f, name, Uint32)
}

// GetInt64 reads an integer property that fits in an int64.
func (f Interface) GetInt64(ctx context.Context, name string) (int64, error) {
	return GetProperty(ctx, f, name, Int64)
}

// GetUint64 reads an integer property that fits in a uint64.
func (f Interface) GetUint64(ctx context.Context, name string) (uint64, error) {
	return GetProperty(ctx, f, name, Uint64)
}

// GetBigInt reads an integer property of any width.
func (f Interface) GetBigInt(ctx context.Context, name string) (*big.Int, error) {
	return GetProperty(ctx, f, name, BigInt)
}

// GetStrings reads a string array property.
func (f Interface) GetStrings(ctx context.Context, name string) ([]string, error) {
	return GetProperty(ctx, f, name, Strings)
}

// GetSequence reads an array or struct property, without decoding its
// elements.
func (f Interface) GetSequence(ctx context.Context, name string) ([]any, error) {
	return GetProperty(ctx, f, name, SliceOf(Raw))
}
