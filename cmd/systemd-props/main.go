package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/mds/heapq"
	"github.com/creachadair/mds/slice"
	"github.com/danderson/systemd"
	"github.com/danderson/systemd/internal/schemagen"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/kr/pretty"
)

var globalArgs struct {
	UseSessionBus bool          `flag:"session,Connect to the user's systemd on the session bus"`
	Address       string        `flag:"address,Connect to the bus at this DBus address"`
	Timeout       time.Duration `flag:"timeout,default=10s,Timeout for each request to systemd"`
	Verbose       bool          `flag:"v,Log debug information"`
}

func busConn(ctx context.Context) (*dbus.Conn, error) {
	switch {
	case globalArgs.Address != "":
		return systemd.Dial(ctx, globalArgs.Address)
	case globalArgs.UseSessionBus:
		return systemd.SessionBus(ctx)
	default:
		return systemd.SystemBus(ctx)
	}
}

func logger() *slog.Logger {
	level := slog.LevelInfo
	if globalArgs.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	root := &command.C{
		Name:     "systemd-props",
		Usage:    "command args...",
		Help:     "Inspect systemd units and their properties.",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "get",
				Usage: "get unit property",
				Help: `Get one property of a unit.

The property is looked up in every interface of the unit, for example
"MainPID" on cron.service finds org.freedesktop.systemd1.Service.MainPID.`,
				Run: command.Adapt(runGet),
			},
			{
				Name:  "show",
				Usage: "show unit [property-regexp]",
				Help: `Show all properties of a unit.

With a regexp, only properties whose name matches are shown. Properties
that the running systemd does not publish are listed as missing.`,
				Run: runShow,
			},
			{
				Name:  "manager",
				Usage: "manager",
				Help:  "Show the properties of the systemd manager.",
				Run:   command.Adapt(runManager),
			},
			{
				Name:  "list",
				Usage: "list [state...]",
				Help: `List loaded units.

With arguments, only units whose load, active or sub state is one of
the given states are listed.`,
				SetFlags: command.Flags(flax.MustBind, &listArgs),
				Run:      runList,
			},
			{
				Name:  "ps",
				Usage: "ps unit",
				Help:  "List the processes in a unit's control group.",
				Run:   command.Adapt(runProcesses),
			},
			{
				Name:     "start",
				Usage:    "start unit",
				Help:     "Queue a job to start a unit.",
				SetFlags: command.Flags(flax.MustBind, &jobArgs),
				Run:      command.Adapt(runJob("start")),
			},
			{
				Name:     "stop",
				Usage:    "stop unit",
				Help:     "Queue a job to stop a unit.",
				SetFlags: command.Flags(flax.MustBind, &jobArgs),
				Run:      command.Adapt(runJob("stop")),
			},
			{
				Name:     "restart",
				Usage:    "restart unit",
				Help:     "Queue a job to restart a unit.",
				SetFlags: command.Flags(flax.MustBind, &jobArgs),
				Run:      command.Adapt(runJob("restart")),
			},
			{
				Name:  "monitor",
				Usage: "monitor unit...",
				Help: `Report when units are loaded and unloaded by systemd.

Units do not need to exist yet. Runs until interrupted.`,
				Run: runMonitor,
			},
			{
				Name:     "generate",
				Usage:    "generate interface [unit]",
				Help:     "Generate property declarations from introspection data.",
				SetFlags: command.Flags(flax.MustBind, &generateArgs),
				Run:      runGenerate,
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

func runGet(env *command.Env, unit, property string) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
	defer cancel()

	for _, set := range unitFor(conn, unit).Properties() {
		f, ok := set.Schema.Field(property)
		if !ok {
			continue
		}
		v, err := f.Read(ctx, set.Interface)
		if err != nil {
			return err
		}
		fmt.Println(formatValue(property, v))
		return nil
	}

	// Not a known property, try reading it raw from every
	// interface of the unit.
	for _, set := range unitFor(conn, unit).Properties() {
		v, err := set.Interface.GetProperty(ctx, property)
		if errors.Is(err, systemd.ErrNotFound) {
			continue
		} else if err != nil {
			return err
		}
		fmt.Printf("%# v\n", pretty.Formatter(v.Value()))
		return nil
	}
	return fmt.Errorf("unit %s has no property %q", unit, property)
}

func runShow(env *command.Env) error {
	if len(env.Args) == 0 || len(env.Args) > 2 {
		return env.Usagef("show requires a unit name and an optional regexp")
	}
	args := growTo(env.Args, 2)
	pf, err := regexp.Compile(args[1])
	if err != nil {
		return err
	}

	conn, err := busConn(env.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
	defer cancel()

	showSets(ctx, unitFor(conn, args[0]).Properties(), pf)
	return nil
}

func runManager(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
	defer cancel()

	showSets(ctx, systemd.NewManager(conn).Properties(), nil)
	return nil
}

func showSets(ctx context.Context, sets []systemd.PropertySet, pf *regexp.Regexp) {
	var out indenter
	for _, set := range sets {
		schema := set.Schema
		if pf != nil {
			schema = slices.Collect(slice.Select(schema, func(f systemd.Field) bool {
				return pf.MatchString(f.PropertyName())
			}))
		}
		if len(schema) == 0 {
			continue
		}
		out.indent(0)
		out.v(set.Interface.Name())
		out.indent(1)
		readings := systemd.PropertySet{Interface: set.Interface, Schema: schema}.ReadAll(ctx)
		slices.SortFunc(readings, func(a, b systemd.Reading) int {
			return cmp.Compare(a.Key.Name, b.Key.Name)
		})
		for _, r := range readings {
			switch {
			case errors.Is(r.Err, systemd.ErrNotFound):
				out.f("%s: (missing)", r.Key.Name)
			case r.Err != nil:
				out.f("%s: error: %v", r.Key.Name, r.Err)
			default:
				out.f("%s: %s", r.Key.Name, formatValue(r.Key.Name, r.Value))
			}
		}
	}
}

var listArgs struct {
	Patterns string `flag:"match,Comma-separated unit name glob patterns"`
}

func runList(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
	defer cancel()

	mgr := systemd.NewManager(conn)
	var units []systemd.UnitStatus
	switch {
	case listArgs.Patterns != "":
		units, err = mgr.ListUnitsByPatterns(ctx, env.Args, strings.Split(listArgs.Patterns, ","))
	case len(env.Args) > 0:
		units, err = mgr.ListUnitsFiltered(ctx, env.Args)
	default:
		units, err = mgr.ListUnits(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing units: %w", err)
	}

	byName := heapq.New(func(a, b systemd.UnitStatus) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, u := range units {
		byName.Add(u)
	}
	for !byName.IsEmpty() {
		u, _ := byName.Pop()
		job := ""
		if u.JobID != 0 {
			job = fmt.Sprintf(" [job %d %s]", u.JobID, u.JobType)
		}
		fmt.Printf("%s %s %s/%s %s%s\n", u.Name, u.LoadState, u.ActiveState, u.SubState, u.Description, job)
	}
	return nil
}

func runProcesses(env *command.Env, unit string) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
	defer cancel()

	pu, ok := unitFor(conn, unit).(processUnit)
	if !ok {
		return fmt.Errorf("unit %s does not run processes", unit)
	}
	procs, err := pu.Processes(ctx)
	if err != nil {
		return err
	}
	for _, p := range procs {
		fmt.Printf("%d %s %s\n", p.PID, p.ControlGroup, p.Command)
	}
	return nil
}

var jobArgs struct {
	Mode string `flag:"mode,default=replace,Job mode: replace, fail, isolate, ignore-dependencies or ignore-requirements"`
}

func runJob(verb string) func(*command.Env, string) error {
	return func(env *command.Env, unit string) error {
		conn, err := busConn(env.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
		defer cancel()

		u := systemd.NewUnit(conn, unit)
		var job dbus.ObjectPath
		switch verb {
		case "start":
			job, err = u.Start(ctx, jobArgs.Mode)
		case "stop":
			job, err = u.Stop(ctx, jobArgs.Mode)
		case "restart":
			job, err = u.Restart(ctx, jobArgs.Mode)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", verb, unit, err)
		}
		fmt.Println(job)
		return nil
	}
}

func runMonitor(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("monitor requires at least one unit name")
	}
	conn, err := busConn(env.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	log := logger()
	ctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
	defer cancel()
	mon, err := systemd.NewMonitor(ctx, conn, log)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), globalArgs.Timeout)
		defer cancel()
		if err := mon.Close(ctx); err != nil {
			log.Error("closing monitor", "err", err)
		}
	}()
	if err := mon.Add(ctx, env.Args...); err != nil {
		return err
	}
	for _, u := range mon.Units() {
		log.Info("unit loaded", "unit", u.Name(), "path", u.Path())
	}

	for {
		select {
		case <-env.Context().Done():
			return nil
		case ev, ok := <-mon.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case systemd.UnitLoaded:
				log.Info("unit loaded", "unit", ev.Name, "path", ev.Unit.Path())
			case systemd.UnitUnloaded:
				log.Info("unit unloaded", "unit", ev.Name)
			case systemd.Reloaded:
				log.Info("systemd reloaded", "loaded", len(mon.Units()), "tracked", len(mon.Names()))
			}
			if ev.Overflow {
				log.Warn("events lost, refreshing")
				rctx, cancel := context.WithTimeout(env.Context(), globalArgs.Timeout)
				err := mon.Refresh(rctx)
				cancel()
				if err != nil {
					log.Error("refreshing units", "err", err)
				}
			}
		}
	}
}

var generateArgs struct {
	PackageName string `flag:"package,default=props,Package name to output"`
	OutFile     string `flag:"out,default=props.go,Output file path"`
}

func runGenerate(env *command.Env) error {
	if len(env.Args) == 0 || len(env.Args) > 2 {
		return env.Usagef("generate requires an interface name and an optional unit")
	}
	conn, err := busConn(env.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	path := systemd.ManagerPath
	if len(env.Args) == 2 {
		path = systemd.UnitPath(env.Args[1])
	}

	node, err := introspect.Call(conn.Object(systemd.Destination, path))
	if err != nil {
		return fmt.Errorf("introspecting %s: %w", path, err)
	}
	iface, err := schemagen.FindInterface(node, env.Args[0])
	if err != nil {
		return fmt.Errorf("object %s: %w", path, err)
	}

	code, err := schemagen.Interface(generateArgs.PackageName, iface)
	if err != nil {
		return fmt.Errorf("generating %s: %w", iface.Name, err)
	}
	if err := os.WriteFile(generateArgs.OutFile, []byte(code), 0644); err != nil {
		return fmt.Errorf("writing generated code: %w", err)
	}
	fmt.Printf("Wrote %d properties of %s to %s\n", len(iface.Properties), iface.Name, generateArgs.OutFile)
	return nil
}
