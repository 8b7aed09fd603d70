package systemd

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Kinds of [DecodeError]. Use errors.Is to test for them.
var (
	// ErrTypeMismatch is the kind of decode error reported when a
	// wire value's type cannot be decoded into the requested Go
	// type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrOverflow is the kind of decode error reported when an
	// integer does not fit in the requested Go type.
	ErrOverflow = errors.New("integer overflow")
	// ErrMalformedContainer is the kind of decode error reported when
	// a struct or array does not have the shape of the requested
	// record.
	ErrMalformedContainer = errors.New("malformed container")
)

// Kinds of [AccessError]. Use errors.Is to test for them.
var (
	// ErrUnreachable is the kind of access error reported when the
	// bus, or systemd on the bus, could not be reached, or the call
	// was cancelled or timed out.
	ErrUnreachable = errors.New("systemd unreachable")
	// ErrNotFound is the kind of access error reported when the
	// requested object, interface, method or property does not
	// exist.
	ErrNotFound = errors.New("not found")
	// ErrRemote is the kind of access error reported when systemd
	// rejected the request for any other reason, for example because
	// of insufficient privileges.
	ErrRemote = errors.New("remote error")
)

// DecodeError is the error returned when a wire value cannot be
// decoded into the requested Go type.
type DecodeError struct {
	// Kind is one of [ErrTypeMismatch], [ErrOverflow] or
	// [ErrMalformedContainer].
	Kind error
	// Want describes the requested Go type or record.
	Want string
	// Got describes the wire value that was received.
	Got string
	// Detail is an optional further explanation.
	Detail string
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("cannot decode %s as %s: %s", e.Got, e.Want, e.Kind)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Kind }

func mismatch(want string, got any) error {
	return &DecodeError{Kind: ErrTypeMismatch, Want: want, Got: describe(got)}
}

func overflow(want string, got any) error {
	return &DecodeError{Kind: ErrOverflow, Want: want, Got: describe(got), Detail: fmt.Sprintf("value %v out of range", got)}
}

func malformed(want string, got any, detail string, args ...any) error {
	return &DecodeError{Kind: ErrMalformedContainer, Want: want, Got: describe(got), Detail: fmt.Sprintf(detail, args...)}
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// AccessError is the error returned when a remote property read or
// method call fails.
type AccessError struct {
	// Kind is one of [ErrUnreachable], [ErrNotFound] or [ErrRemote].
	Kind error
	// Path is the object path that was being accessed.
	Path dbus.ObjectPath
	// Interface is the interface that was being accessed.
	Interface string
	// Property is the name of the property being read, if the failed
	// operation was a property read.
	Property string
	// Method is the name of the method being called, if the failed
	// operation was a method call.
	Method string
	// Err is the underlying error reported by the bus connection.
	Err error
}

func (e *AccessError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("calling %s.%s on %s: %s: %v", e.Interface, e.Method, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("getting property %s.%s on %s: %s: %v", e.Interface, e.Property, e.Path, e.Kind, e.Err)
}

func (e *AccessError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Error names that mean the thing asked for isn't there. The
// PropertyNotFound and InterfaceNotFound names are the ones used by
// godbus's prop package rather than the standard ones.
var notFoundNames = map[string]bool{
	"org.freedesktop.DBus.Error.UnknownObject":                true,
	"org.freedesktop.DBus.Error.UnknownInterface":             true,
	"org.freedesktop.DBus.Error.UnknownMethod":                true,
	"org.freedesktop.DBus.Error.UnknownProperty":              true,
	"org.freedesktop.DBus.Properties.Error.PropertyNotFound":  true,
	"org.freedesktop.DBus.Properties.Error.InterfaceNotFound": true,
	"org.freedesktop.systemd1.NoSuchUnit":                     true,
	"org.freedesktop.systemd1.LoadFailed":                     true,
}

var unreachableNames = map[string]bool{
	"org.freedesktop.DBus.Error.ServiceUnknown": true,
	"org.freedesktop.DBus.Error.NameHasNoOwner": true,
	"org.freedesktop.DBus.Error.NoReply":        true,
	"org.freedesktop.DBus.Error.Timeout":        true,
	"org.freedesktop.DBus.Error.TimedOut":       true,
	"org.freedesktop.DBus.Error.Disconnected":   true,
	"org.freedesktop.DBus.Error.NoServer":       true,
	"org.freedesktop.DBus.Error.NoNetwork":      true,
}

// classify maps an error returned by the bus connection to one of
// the AccessError kinds.
func classify(err error) error {
	if name, ok := errorName(err); ok {
		switch {
		case notFoundNames[name]:
			return ErrNotFound
		case unreachableNames[name]:
			return ErrUnreachable
		default:
			return ErrRemote
		}
	}
	// Anything else comes from the connection itself: context
	// cancellation or deadline, a closed transport, or a message that
	// couldn't be sent.
	return ErrUnreachable
}

func errorName(err error) (string, bool) {
	var val dbus.Error
	if errors.As(err, &val) {
		return val.Name, true
	}
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name, true
	}
	return "", false
}

func propertyErr(f Interface, property string, err error) error {
	return &AccessError{
		Kind:      classify(err),
		Path:      f.path,
		Interface: f.name,
		Property:  property,
		Err:       err,
	}
}

func callErr(f Interface, method string, err error) error {
	return &AccessError{
		Kind:      classify(err),
		Path:      f.path,
		Interface: f.name,
		Method:    method,
		Err:       err,
	}
}
