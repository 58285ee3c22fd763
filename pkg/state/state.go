// Package state owns the single RunState object a run accumulates into,
// and the single goroutine permitted to mutate it: the writer that drains
// an events.Bus and applies each event in order.
package state

import (
	"strconv"
	"sync"

	"ipcrawler/pkg/events"
	"ipcrawler/pkg/types"
)

func portKey(port uint16, name string) string {
	return strconv.Itoa(int(port)) + "/" + name
}

// RunState is the accumulated result of one run. Only the writer
// goroutine started by Run mutates it; everything else reads it through
// Snapshot.
type RunState struct {
	Target         string
	RunID          string
	PortsOpen      []types.PortEntry
	Services       []types.Service
	TasksStarted   int
	TasksCompleted int
	Errors         []types.ExecError

	mu         sync.RWMutex
	seenPorts  map[string]bool
	seenSvcKey map[string]bool
}

// New creates an empty RunState for the given target/run ID.
func New(target, runID string) *RunState {
	return &RunState{
		Target:     target,
		RunID:      runID,
		seenPorts:  make(map[string]bool),
		seenSvcKey: make(map[string]bool),
	}
}

// Apply mutates RunState for a single event. It holds s's lock, so it is
// safe alongside Snapshot; Run is its only caller in this module, which
// keeps events applied in bus order.
func (s *RunState) Apply(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case events.KindTaskStarted:
		s.TasksStarted++
	case events.KindTaskCompleted:
		s.TasksCompleted++
	case events.KindPortDiscovered:
		// dedup key is the (port, name) pair per the RunState event table:
		// the same port reported under two different names is kept as two
		// entries, but an exact repeat is dropped.
		key := portKey(ev.Port, ev.PortName)
		if !s.seenPorts[key] {
			s.seenPorts[key] = true
			s.PortsOpen = append(s.PortsOpen, types.PortEntry{Port: ev.Port, Name: ev.PortName})
		}
	case events.KindServiceDiscovered:
		key := ev.Service.Key()
		if !s.seenSvcKey[key] {
			// first-write-wins: the first plugin to report a given
			// (address, proto, port) tuple owns its name/secure flag.
			s.seenSvcKey[key] = true
			s.Services = append(s.Services, ev.Service)
		}
	case events.KindTaskFailed:
		if ev.Err != nil {
			s.Errors = append(s.Errors, *ev.Err)
		}
	}
}

// Run drains bus.Events() on the calling goroutine, applying each event
// to s, until the bus is stopped and drained. Callers should run this in
// its own goroutine and wait for it to return after calling bus.Stop().
func Run(s *RunState, bus *events.Bus) {
	for ev := range bus.Events() {
		s.Apply(ev)
	}
}

// Snapshot is a read-only, concurrency-safe view of RunState handed to
// ServiceScan plugins — they observe state but never mutate it directly
// (see spec Open Question 3).
type Snapshot struct {
	Target         string
	RunID          string
	PortsOpen      []types.PortEntry
	Services       []types.Service
	TasksStarted   int
	TasksCompleted int
	Errors         []types.ExecError
}

// Snapshot returns a defensive copy of the current state.
func (s *RunState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ports := make([]types.PortEntry, len(s.PortsOpen))
	copy(ports, s.PortsOpen)
	services := make([]types.Service, len(s.Services))
	copy(services, s.Services)
	errs := make([]types.ExecError, len(s.Errors))
	copy(errs, s.Errors)

	return Snapshot{
		Target:         s.Target,
		RunID:          s.RunID,
		PortsOpen:      ports,
		Services:       services,
		TasksStarted:   s.TasksStarted,
		TasksCompleted: s.TasksCompleted,
		Errors:         errs,
	}
}
