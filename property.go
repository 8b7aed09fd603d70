package systemd

import (
	"context"
	"errors"
)

// PropertyKey identifies a property of a systemd interface.
//
// Keys are case-sensitive, and must match the names published by
// systemd exactly.
type PropertyKey struct {
	Interface string
	Name      string
}

func (k PropertyKey) String() string {
	return k.Interface + "." + k.Name
}

// Property is the declaration of one typed property.
//
// A Property is not bound to any particular interface: the same
// declaration can be read from every interface that publishes a
// property of that name and type. For example, [CPUAccounting] can be
// read from services, scopes, mounts and sockets alike.
type Property[T any] struct {
	// Name is the property name, as published by systemd.
	Name string
	// Decode converts the property's wire value to T.
	Decode Decoder[T]
}

// Get reads the property from iface.
func (p Property[T]) Get(ctx context.Context, iface Interface) (T, error) {
	return GetProperty(ctx, iface, p.Name, p.Decode)
}

// Lookup is like Get, but reports ok=false instead of an error if
// iface does not have the property.
//
// Lookup is for properties that only some versions or
// configurations of systemd publish. Other access and decoding
// errors are still returned.
func (p Property[T]) Lookup(ctx context.Context, iface Interface) (ret T, ok bool, err error) {
	ret, err = p.Get(ctx, iface)
	if errors.Is(err, ErrNotFound) {
		var zero T
		return zero, false, nil
	} else if err != nil {
		return ret, false, err
	}
	return ret, true, nil
}

// PropertyName implements [Field].
func (p Property[T]) PropertyName() string { return p.Name }

// Read implements [Field].
func (p Property[T]) Read(ctx context.Context, iface Interface) (any, error) {
	return p.Get(ctx, iface)
}

// Field is a [Property] with its type erased, for code that handles
// properties generically.
type Field interface {
	PropertyName() string
	Read(ctx context.Context, iface Interface) (any, error)
}

// Schema is an ordered list of the properties published by one
// interface.
type Schema []Field

// Names returns the names of the properties in the schema, in
// schema order.
func (s Schema) Names() []string {
	ret := make([]string, 0, len(s))
	for _, f := range s {
		ret = append(ret, f.PropertyName())
	}
	return ret
}

// Field returns the field with the given name, if it's in the
// schema.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.PropertyName() == name {
			return f, true
		}
	}
	return nil, false
}

// PropertySet is a [Schema] bound to the interface that publishes
// it.
type PropertySet struct {
	Interface Interface
	Schema    Schema
}

// Reading is the result of reading one property of a PropertySet.
type Reading struct {
	Key   PropertyKey
	Value any
	Err   error
}

// ReadAll reads every property in the set, in schema order.
//
// Each property is an independent round trip. Failures are reported
// per property in the returned readings, so that one missing property
// doesn't hide the others.
func (s PropertySet) ReadAll(ctx context.Context) []Reading {
	ret := make([]Reading, 0, len(s.Schema))
	for _, f := range s.Schema {
		v, err := f.Read(ctx, s.Interface)
		ret = append(ret, Reading{
			Key:   s.Interface.Key(f.PropertyName()),
			Value: v,
			Err:   err,
		})
	}
	return ret
}

func concat(schemas ...Schema) Schema {
	var ret Schema
	for _, s := range schemas {
		ret = append(ret, s...)
	}
	return ret
}
