package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcrawler/pkg/events"
	"ipcrawler/pkg/types"
)

func TestApply_DedupesIdenticalPortDiscoveredEvents(t *testing.T) {
	s := New("example.com", "run1")
	s.Apply(events.PortDiscovered("nmap_portscan", 80, "http"))
	s.Apply(events.PortDiscovered("naabu_portscan", 80, "http"))

	require.Len(t, s.PortsOpen, 1, "exact (port, name) repeats collapse to one entry")
	assert.Equal(t, "http", s.PortsOpen[0].Name)
}

func TestApply_KeepsPortEntriesWithDifferingNamesForSamePort(t *testing.T) {
	s := New("example.com", "run1")
	s.Apply(events.PortDiscovered("nmap_portscan", 80, "http"))
	s.Apply(events.PortDiscovered("naabu_portscan", 80, "http-proxy"))

	require.Len(t, s.PortsOpen, 2, "dedup key is the (port, name) pair per the RunState event table")
}

func TestApply_DedupesDuplicateServicesByAddressProtoPort(t *testing.T) {
	s := New("example.com", "run1")
	svc1 := types.Service{Proto: types.ProtoTCP, Port: 443, Name: "https", Secure: true, Address: "example.com"}
	svc2 := types.Service{Proto: types.ProtoTCP, Port: 443, Name: "ssl/https-alt", Secure: true, Address: "example.com"}

	s.Apply(events.ServiceDiscovered("nmap_portscan", svc1))
	s.Apply(events.ServiceDiscovered("naabu_portscan", svc2))

	require.Len(t, s.Services, 1)
	assert.Equal(t, "https", s.Services[0].Name)
}

func TestApply_TasksStartedCompletedCounters(t *testing.T) {
	s := New("example.com", "run1")
	s.Apply(events.TaskStarted("dns_enum"))
	s.Apply(events.TaskStarted("nmap_portscan"))
	s.Apply(events.TaskCompleted("dns_enum"))

	assert.Equal(t, 2, s.TasksStarted)
	assert.Equal(t, 1, s.TasksCompleted)
	assert.LessOrEqual(t, s.TasksCompleted, s.TasksStarted)
}

func TestApply_AccumulatesErrors(t *testing.T) {
	s := New("example.com", "run1")
	s.Apply(events.TaskFailed("nmap_portscan", types.ExecError{Tool: "nmap", StderrTail: "boom"}))
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "nmap", s.Errors[0].Tool)
}

func TestRun_DrainsBusUntilStopped(t *testing.T) {
	s := New("example.com", "run1")
	bus := events.NewBus(4)

	done := make(chan struct{})
	go func() {
		Run(s, bus)
		close(done)
	}()

	bus.Publish(events.TaskStarted("dns_enum"))
	bus.Publish(events.PortDiscovered("nmap_portscan", 22, "ssh"))
	bus.Stop()
	<-done

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.TasksStarted)
	require.Len(t, snap.PortsOpen, 1)
	assert.EqualValues(t, 22, snap.PortsOpen[0].Port)
}
