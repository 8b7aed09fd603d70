package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/danderson/systemd"
	"github.com/kr/pretty"
	"golang.org/x/sys/unix"
)

type indenter struct {
	prefix     string
	indentNext bool
}

func (i *indenter) v(v any) {
	fmt.Fprintf(i, "%v\n", v)
}

func (i *indenter) f(msg string, args ...any) {
	fmt.Fprintf(i, msg+"\n", args...)
}

func (i *indenter) Write(bs []byte) (int, error) {
	ret := 0
	for len(bs) > 0 {
		if i.indentNext {
			i.indentNext = false
			_, err := io.WriteString(os.Stdout, i.prefix)
			if err != nil {
				return ret, err
			}
		}

		wr := bs
		idx := bytes.IndexByte(bs, '\n')
		if idx >= 0 {
			i.indentNext = true
			wr, bs = bs[:idx+1], bs[idx+1:]
		} else {
			bs = nil
		}

		n, err := os.Stdout.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}

func (i *indenter) indent(n int) {
	i.prefix = strings.Repeat("  ", n)
}

type propertied interface {
	Properties() []systemd.PropertySet
}

type processUnit interface {
	Processes(ctx context.Context) ([]systemd.UnitProcess, error)
}

// unitFor returns the most specific handle for the named unit, based
// on its suffix.
func unitFor(conn systemd.Conn, name string) propertied {
	mgr := systemd.NewManager(conn)
	switch path.Ext(name) {
	case systemd.SuffixService:
		return mgr.Service(name)
	case systemd.SuffixScope:
		return mgr.Scope(name)
	case systemd.SuffixMount:
		return mgr.Mount(name)
	case systemd.SuffixSocket:
		return mgr.Socket(name)
	case systemd.SuffixTimer:
		return mgr.Timer(name)
	default:
		return mgr.Unit(name)
	}
}

// SIGCHLD si_code values from <signal.h>, as reported in
// ExecMainCode and ExecCommand.Code.
const (
	cldExited = 1
	cldKilled = 2
	cldDumped = 3
)

// formatValue renders the decoded value of the named property for
// humans.
func formatValue(name string, v any) string {
	switch name {
	case "KillSignal", "FinalKillSignal", "WatchdogSignal", "RestartKillSignal":
		if n, ok := v.(int32); ok {
			if s := unix.SignalName(syscall.Signal(n)); s != "" {
				return s
			}
		}
	case "StatusErrno":
		if n, ok := v.(int32); ok && n != 0 {
			if s := unix.ErrnoName(syscall.Errno(n)); s != "" {
				return s
			}
		}
	case "ExecMainCode":
		if n, ok := v.(int32); ok {
			switch n {
			case cldExited:
				return "exited"
			case cldKilled:
				return "killed"
			case cldDumped:
				return "dumped"
			}
		}
	}

	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case time.Time:
		if val.IsZero() {
			return "never"
		}
		return val.Format(time.RFC3339)
	case time.Duration:
		if val == systemd.Infinity {
			return "infinity"
		}
		return val.String()
	case systemd.Limit, bool, int32, uint32, int64, uint64:
		return fmt.Sprint(val)
	case []string:
		return strings.Join(val, " ")
	default:
		return fmt.Sprintf("%# v", pretty.Formatter(val))
	}
}

func growTo(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}
