// Package systemd is a typed client for the systemd manager's DBus
// API.
//
// It exposes the manager and its units (services, scopes, mounts,
// sockets and timers) as Go values with typed getters for each of
// their DBus properties, and decodes DBus wire values into
// bool, fixed-width and arbitrary-precision integers, strings,
// slices and structured records.
//
// The bus itself is provided by [github.com/godbus/dbus/v5]. A
// connection is passed explicitly to every constructor, and is never
// closed by this package:
//
//	conn, err := systemd.SystemBus(ctx)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	svc := systemd.NewService(conn, "cron")
//	pid, err := svc.MainPID(ctx)
//
// Every getter performs exactly one round trip to systemd, and
// property values are never cached. Handles hold no mutable state,
// and are safe for concurrent use.
//
// # Properties
//
// Each property is declared once, as a [Property] value that pairs
// the property's DBus name with a [Decoder] for its wire type. The
// same declaration is shared by every unit type that publishes the
// property. Typed getter methods on the unit types are thin wrappers
// around these declarations, and each unit type's properties are also
// listed in a [Schema] for generic enumeration:
//
//	for _, set := range svc.Properties() {
//		for _, r := range set.ReadAll(ctx) {
//			fmt.Println(r.Key, r.Value, r.Err)
//		}
//	}
//
// # Resource accounting
//
// Unit types that run processes carry resource accounting and
// control capabilities, returned by their Accounting method. An
// [Accounting] has one field per capability, which is nil if the
// unit type does not support the capability.
//
// # Errors
//
// Failures to reach systemd or to find the requested object,
// interface or property are reported as [*AccessError], and failures
// to decode a wire value into the requested type as [*DecodeError].
// Both carry a Kind, such as [ErrNotFound] or [ErrOverflow], that can
// be tested for with [errors.Is]. Decoders never truncate: systemd's
// "infinity" values decode to [Unlimited] or [Infinity], and any
// other value that does not fit the requested type is an error.
package systemd
