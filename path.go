package systemd

import (
	"strings"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/unit"
	"github.com/godbus/dbus/v5"
)

// Unit type suffixes.
const (
	SuffixService = ".service"
	SuffixScope   = ".scope"
	SuffixMount   = ".mount"
	SuffixSocket  = ".socket"
	SuffixTimer   = ".timer"
)

// UnitPath returns the object path of the unit with the given full
// name, for example "cron.service".
func UnitPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath(UnitPathPrefix + sddbus.PathBusEscape(name))
}

// NormalizeName returns name with suffix appended, unless name
// already ends in suffix.
//
// suffix should be one of the Suffix constants, and includes the
// leading dot.
func NormalizeName(name, suffix string) string {
	if strings.HasSuffix(name, suffix) {
		return name
	}
	return name + suffix
}

// MountName returns the name of the mount unit for the mount point
// path. For example, the mount unit for "/var/lib" is
// "var-lib.mount".
func MountName(path string) string {
	return unit.UnitNamePathEscape(path) + SuffixMount
}
