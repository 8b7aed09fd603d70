// Package schemagen generates typed property declarations for the
// systemd package from DBus introspection data.
package schemagen

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"errors"
	"fmt"
	"go/format"
	"io"
	"slices"
	"strings"

	"github.com/creachadair/mds/mapset"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	pkgSystemd = "github.com/danderson/systemd"
	pkgDBus    = "github.com/godbus/dbus/v5"
	pkgTime    = "time"
)

// Parse parses introspection XML, as returned by
// org.freedesktop.DBus.Introspectable.Introspect.
func Parse(r io.Reader) (*introspect.Node, error) {
	var ret introspect.Node
	if err := xml.NewDecoder(r).Decode(&ret); err != nil {
		return nil, fmt.Errorf("parsing introspection data: %w", err)
	}
	return &ret, nil
}

// FindInterface returns the interface with the given name from node.
func FindInterface(node *introspect.Node, name string) (*introspect.Interface, error) {
	for i := range node.Interfaces {
		if node.Interfaces[i].Name == name {
			return &node.Interfaces[i], nil
		}
	}
	return nil, fmt.Errorf("interface %q not found", name)
}

type generator struct {
	out     bytes.Buffer
	pkg     string
	iface   *introspect.Interface
	imports mapset.Set[string]
}

// Interface returns Go source for package pkg that declares one
// systemd.Property per property of iface, and a Schema listing them
// in name order.
func Interface(pkg string, iface *introspect.Interface) (string, error) {
	if iface == nil {
		return "", errors.New("no interface provided")
	}
	g := generator{
		pkg:     pkg,
		iface:   iface,
		imports: mapset.New(pkgSystemd),
	}

	var body bytes.Buffer
	props := slices.Clone(iface.Properties)
	slices.SortFunc(props, func(a, b introspect.Property) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, p := range props {
		g.property(&body, p)
	}
	fmt.Fprintf(&body, "\n// Schema lists the properties of %s.\n", iface.Name)
	body.WriteString("var Schema = systemd.Schema{\n")
	for _, p := range props {
		fmt.Fprintf(&body, "%s,\n", publicIdentifier(p.Name))
	}
	body.WriteString("}\n")

	g.header()
	g.out.Write(body.Bytes())

	ret, err := format.Source(g.out.Bytes())
	if err != nil {
		return g.out.String(), err
	}
	return string(ret), nil
}

func (g *generator) f(msg string, args ...any) {
	fmt.Fprintf(&g.out, msg, args...)
}

func (g *generator) header() {
	g.f("// Code generated by schemagen from %s. DO NOT EDIT.\n\n", g.iface.Name)
	g.f("package %s\n\n", g.pkg)
	imports := g.imports.Slice()
	slices.SortFunc(imports, func(a, b string) int {
		return cmp.Or(cmp.Compare(importGroup(a), importGroup(b)), cmp.Compare(a, b))
	})
	g.f("import (\n")
	for i, imp := range imports {
		if i > 0 && importGroup(imp) != importGroup(imports[i-1]) {
			g.f("\n")
		}
		g.f("%q\n", imp)
	}
	g.f(")\n\n")
}

func (g *generator) property(w io.Writer, p introspect.Property) {
	typ, dec := g.typeOf(p.Name, p.Type)
	name := publicIdentifier(p.Name)
	fmt.Fprintf(w, "\n// %s is the property %s.%s (%s).\n", name, g.iface.Name, p.Name, p.Type)
	if !strings.Contains(p.Access, "read") {
		fmt.Fprintf(w, "//\n// The property is not readable.\n")
	}
	fmt.Fprintf(w, "var %s = systemd.Property[%s]{Name: %q, Decode: %s}\n", name, typ, p.Name, dec)
}

// typeOf returns the Go type and decoder to use for a property with
// the given name and signature.
func (g *generator) typeOf(name, sig string) (typ, dec string) {
	switch sig {
	case "b":
		return "bool", "systemd.Bool"
	case "s":
		return "string", "systemd.String"
	case "o":
		g.imports.Add(pkgDBus)
		return "dbus.ObjectPath", "systemd.ObjectPath"
	case "y", "q", "u":
		return "uint32", "systemd.Uint32"
	case "n", "i":
		return "int32", "systemd.Int32"
	case "x":
		if strings.HasSuffix(name, "USec") {
			g.imports.Add(pkgTime)
			return "time.Duration", "systemd.Microseconds"
		}
		return "int64", "systemd.Int64"
	case "t":
		switch {
		case strings.HasSuffix(name, "Timestamp") || strings.HasSuffix(name, "USecRealtime"):
			g.imports.Add(pkgTime)
			return "time.Time", "systemd.Timestamp"
		case strings.HasSuffix(name, "USec") || strings.HasSuffix(name, "USecMonotonic") || strings.HasSuffix(name, "TimestampMonotonic"):
			g.imports.Add(pkgTime)
			return "time.Duration", "systemd.Microseconds"
		case strings.HasPrefix(name, "Limit") || strings.HasSuffix(name, "Max") || strings.HasSuffix(name, "Limit"):
			return "systemd.Limit", "systemd.LimitValue"
		}
		return "uint64", "systemd.Uint64"
	case "as":
		return "[]string", "systemd.Strings"
	case "ay":
		return "[]byte", "systemd.Bytes"
	case "ao":
		g.imports.Add(pkgDBus)
		return "[]dbus.ObjectPath", "systemd.SliceOf(systemd.ObjectPath)"
	}
	if rec, ok := recordFor(name, strings.TrimPrefix(sig, "a")); ok {
		if strings.HasPrefix(sig, "a") {
			return "[]systemd." + rec, "systemd.Records(systemd.Parse" + rec + ")"
		}
		return "systemd." + rec, "systemd.Record(systemd.Parse" + rec + ")"
	}
	if strings.HasPrefix(sig, "a") && !strings.HasPrefix(sig, "a{") {
		return "[]any", "systemd.SliceOf(systemd.Raw)"
	}
	return "any", "systemd.Raw"
}

// recordFor returns the systemd record type for struct signature sig,
// if there is one. Some signatures are shared by several records, the
// property name decides between them.
func recordFor(name, sig string) (string, bool) {
	switch sig {
	case "(sasbttttuii)":
		return "ExecCommand", true
	case "(st)":
		if strings.Contains(name, "Weight") {
			return "DeviceWeight", true
		}
		return "IOBandwidth", true
	case "(ss)":
		if name == "Listen" {
			return "Listener", true
		}
		return "DeviceRule", true
	case "(sb)":
		return "EnvironmentFile", true
	case "(bs)":
		return "SecurityLabel", true
	case "(bas)":
		return "NameFilter", true
	case "(iayu)":
		return "IPAddressRule", true
	case "(stt)":
		return "MonotonicTimer", true
	case "(sst)":
		return "CalendarTimer", true
	case "(sus)":
		return "UnitProcess", true
	case "(ssssssouso)":
		return "UnitStatus", true
	}
	return "", false
}

// importGroup returns 0 for standard library packages, 1 otherwise.
func importGroup(path string) int {
	if strings.Contains(path, ".") {
		return 1
	}
	return 0
}

func publicIdentifier(s string) string {
	if s == "" {
		return s
	}
	switch s {
	case "Id":
		return "ID"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
