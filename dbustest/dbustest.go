// Package dbustest provides helpers to run an isolated bus instance
// in tests, and a fake systemd manager to serve on it.
package dbustest

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
)

//go:embed dbus.config
var dbusConfig string

const startTimeout = 10 * time.Second

// Available reports whether dbus-daemon and dbus-monitor are
// installed, so that [New] can run a bus.
func Available() bool {
	for _, bin := range []string{"dbus-daemon", "dbus-monitor"} {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
}

// Bus is an isolated DBus instance for tests.
type Bus struct {
	sock    string
	daemon  *child
	monitor *child // nil if bus traffic is not logged
}

// New launches a DBus instance dedicated to the calling test, and
// stops it when the test finishes.
//
// If [Available] is false, New calls t.Skip to skip the calling test.
//
// If logTraffic is true, every message sent on the bus is logged with
// t.Log.
func New(t *testing.T, logTraffic bool) *Bus {
	t.Helper()
	if !Available() {
		t.Skip("dbus-daemon and dbus-monitor not available, cannot run test bus")
	}

	dir := t.TempDir()
	cfg := filepath.Join(dir, "bus.config")
	if err := os.WriteFile(cfg, []byte(dbusConfig), 0600); err != nil {
		t.Fatal(err)
	}
	ret := &Bus{sock: filepath.Join(dir, "bus.sock")}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	ret.daemon = startChild(t, "dbus-daemon", nil, "--config-file="+cfg, "--nofork", "--nopidfile", "--nosyslog", "--address="+ret.Address())
	if err := waitForSocket(ctx, ret.sock); err != nil {
		t.Fatalf("waiting for bus socket: %v", err)
	}

	if logTraffic {
		log := &trafficLog{t: t, ready: make(chan struct{})}
		ret.monitor = startChild(t, "dbus-monitor", log, "--address", ret.Address())
		select {
		case <-log.ready:
		case <-ctx.Done():
			t.Fatalf("waiting for dbus-monitor: %v", ctx.Err())
		}
	}

	return ret
}

func waitForSocket(ctx context.Context, sock string) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		_, err := os.Stat(sock)
		if err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Socket returns the path to the bus's unix socket.
func (b *Bus) Socket() string {
	return b.sock
}

// Address returns the DBus address of the bus.
func (b *Bus) Address() string {
	return "unix:path=" + b.sock
}

// MustConn returns a connection to the bus, which is closed when the
// test finishes. It causes an immediate test failure with t.Fatal if
// it is unable to connect.
func (b *Bus) MustConn(t *testing.T) *dbus.Conn {
	t.Helper()
	// The connection lives until it is closed, so it gets no context.
	ret, err := dbus.Connect(b.Address())
	if err != nil {
		t.Fatalf("connecting to test bus: %v", err)
	}
	t.Cleanup(func() { ret.Close() })
	return ret
}

// child is a helper process that lives as long as a test.
type child struct {
	name     string
	cmd      *exec.Cmd
	stopping chan struct{}
	stopped  chan struct{}
}

// startChild starts the named program, and arranges for it to be
// killed at the end of the test. If out is nil, the program's output
// goes to the test binary's own stdout and stderr.
//
// The program exiting before the end of the test is a fatal error.
func startChild(t *testing.T, name string, out *trafficLog, args ...string) *child {
	t.Helper()
	c := &child{
		name:     name,
		cmd:      exec.Command(name, args...),
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if out != nil {
		c.cmd.Stdout = out
		c.cmd.Stderr = out
	} else {
		c.cmd.Stdout = os.Stdout
		c.cmd.Stderr = os.Stderr
	}
	if err := c.cmd.Start(); err != nil {
		t.Fatalf("starting %s: %v", name, err)
	}

	go func() {
		defer close(c.stopped)
		err := c.cmd.Wait()
		select {
		case <-c.stopping:
		default:
			panic(fmt.Errorf("%s stopped prematurely: %w", name, err))
		}
		if out != nil {
			out.flush()
		}
	}()

	t.Cleanup(func() {
		close(c.stopping)
		c.cmd.Process.Kill()
		select {
		case <-c.stopped:
		case <-time.After(startTimeout):
			t.Logf("timed out waiting for %s to stop", name)
		}
	})
	return c
}

// trafficLog is the output of dbus-monitor. It logs one message at a
// time, so that test output shows complete bus messages.
type trafficLog struct {
	t     *testing.T
	ready chan struct{} // closed when the first message arrives

	mu        sync.Mutex
	buf       bytes.Buffer
	readyOnce sync.Once
}

var messageStarts = [][]byte{
	[]byte("method "),
	[]byte("signal "),
	[]byte("error "),
}

func isMessageStart(line []byte) bool {
	for _, p := range messageStarts {
		if bytes.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func (l *trafficLog) Write(bs []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(bs)

	// Log every message that is followed by the start of another. The
	// last message is held back, it may not be complete yet.
	for {
		buffered := l.buf.Bytes()
		end := -1
		for off := 0; ; {
			i := bytes.IndexByte(buffered[off:], '\n')
			if i < 0 {
				break
			}
			next := off + i + 1
			if isMessageStart(buffered[next:]) {
				end = next
				break
			}
			off = next
		}
		if end < 0 {
			return len(bs), nil
		}
		l.emit(l.buf.Next(end))
	}
}

func (l *trafficLog) emit(msg []byte) {
	msg = bytes.TrimRight(msg, "\n")
	if len(msg) > 0 {
		l.t.Log(string(msg))
	}
	l.readyOnce.Do(func() { close(l.ready) })
}

func (l *trafficLog) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emit(l.buf.Bytes())
	l.buf.Reset()
}
