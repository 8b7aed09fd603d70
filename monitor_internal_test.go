package systemd

import (
	"fmt"
	"testing"

	"github.com/creachadair/mds/mapset"
)

func TestMonitorQueueOverflow(t *testing.T) {
	m := &Monitor{
		wakePump: make(chan struct{}, 1),
		names:    mapset.New[string](),
		units:    map[string]Unit{},
	}
	for i := range maxMonitorQueue + 5 {
		m.enqueueLocked(MonitorEvent{Kind: UnitUnloaded, Name: fmt.Sprint(i)})
	}
	if got := m.queue.Len(); got != maxMonitorQueue {
		t.Fatalf("queue length = %d, want %d", got, maxMonitorQueue)
	}
	if len(m.wakePump) != 1 {
		t.Error("pump was not woken by the first event")
	}
	for i := range maxMonitorQueue {
		ev, ok := m.queue.Pop()
		if !ok {
			t.Fatalf("queue ran dry at %d", i)
		}
		if want := fmt.Sprint(i); ev.Name != want {
			t.Errorf("event %d is %q, want %q", i, ev.Name, want)
		}
		if wantOverflow := i == maxMonitorQueue-1; ev.Overflow != wantOverflow {
			t.Errorf("event %d Overflow = %v, want %v", i, ev.Overflow, wantOverflow)
		}
	}
}
