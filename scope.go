package systemd

import (
	"context"
	"time"
)

// Properties of the org.freedesktop.systemd1.Scope interface.
var (
	Controller = Property[string]{"Controller", String}
)

// ScopeSchema lists the properties specific to scopes.
var ScopeSchema = Schema{Controller, Result, RuntimeMaxUSec, TimeoutStopUSec}

// Scope is a scope unit: a group of externally created processes
// that systemd manages but did not start.
type Scope struct {
	Unit
	iface Interface
}

// NewScope returns the scope with the given name. The ".scope" suffix
// is added if missing.
func NewScope(conn Conn, name string) Scope {
	return scopeOf(NewUnit(conn, NormalizeName(name, SuffixScope)))
}

func scopeOf(u Unit) Scope {
	return Scope{
		Unit:  u,
		iface: u.iface.Sibling(ifaceScope),
	}
}

// Interface returns the org.freedesktop.systemd1.Scope interface of
// the scope.
func (s Scope) Interface() Interface { return s.iface }

// Accounting returns the scope's resource accounting capabilities.
func (s Scope) Accounting() Accounting { return fullAccounting(s.iface) }

// Cgroup returns the control group settings of the scope.
func (s Scope) Cgroup() Cgroup { return Cgroup{s.iface} }

// Kill returns how the scope's processes are stopped.
func (s Scope) Kill() KillContext { return KillContext{s.iface} }

// Processes returns the processes in the scope.
func (s Scope) Processes(ctx context.Context) ([]UnitProcess, error) {
	return getProcesses(ctx, s.iface)
}

// Properties returns all the properties of the scope, grouped by
// interface.
func (s Scope) Properties() []PropertySet {
	return append(s.Unit.Properties(), PropertySet{
		Interface: s.iface,
		Schema:    concat(ScopeSchema, CgroupSchema, s.Accounting().Schema(), KillSchema),
	})
}

// Controller returns the bus name that registered the scope and is
// responsible for stopping it, or "".
func (s Scope) Controller(ctx context.Context) (string, error) {
	return Controller.Get(ctx, s.iface)
}

// Result returns why the scope stopped, or "success".
func (s Scope) Result(ctx context.Context) (string, error) {
	return Result.Get(ctx, s.iface)
}

// RuntimeMax returns how long the scope may run, or [Infinity].
func (s Scope) RuntimeMax(ctx context.Context) (time.Duration, error) {
	return RuntimeMaxUSec.Get(ctx, s.iface)
}

// TimeoutStop returns how long stopping the scope may take.
func (s Scope) TimeoutStop(ctx context.Context) (time.Duration, error) {
	return TimeoutStopUSec.Get(ctx, s.iface)
}

// Abandon tells systemd to stop waiting for the scope's controller,
// and to stop the scope when its last process exits.
func (s Scope) Abandon(ctx context.Context) error {
	return s.iface.Call(ctx, "Abandon", nil)
}
