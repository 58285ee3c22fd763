package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcrawler/pkg/config"
	"ipcrawler/pkg/events"
	"ipcrawler/pkg/limiter"
	"ipcrawler/pkg/plugins"
	"ipcrawler/pkg/state"
	"ipcrawler/pkg/types"
)

type fakePortScan struct {
	name     string
	tool     string
	services []types.Service
	err      error
	calls    *int32
}

func (f *fakePortScan) Name() string { return f.name }
func (f *fakePortScan) Tool() string { return f.tool }
func (f *fakePortScan) Run(ctx context.Context, target types.Target, cfg config.GlobalConfig) ([]types.Service, error) {
	if f.calls != nil {
		atomic.AddInt32(f.calls, 1)
	}
	return f.services, f.err
}

type fakeServiceScan struct {
	name    string
	tool    string
	matches func(types.Service) bool
	err     error
	calls   *int32
}

func (f *fakeServiceScan) Name() string                  { return f.name }
func (f *fakeServiceScan) Tool() string                  { return f.tool }
func (f *fakeServiceScan) Matches(svc types.Service) bool { return f.matches(svc) }
func (f *fakeServiceScan) Run(ctx context.Context, svc types.Service, target types.Target, snap state.Snapshot, cfg config.GlobalConfig) error {
	if f.calls != nil {
		atomic.AddInt32(f.calls, 1)
	}
	return f.err
}

func newLimiter() *limiter.Limiter {
	caps := map[string]int{}
	for _, p := range Phases {
		caps[p] = 10
	}
	return limiter.New(10, caps)
}

func drain(bus *events.Bus, s *state.RunState, done chan struct{}) {
	go func() {
		state.Run(s, bus)
		close(done)
	}()
}

func TestRun_PortDiscoveryEmitsPortAndServiceDiscoveredEvents(t *testing.T) {
	registry := &plugins.Registry{
		PortDiscovery: []plugins.PortScan{
			&fakePortScan{name: "nmap_portscan", tool: "nmap", services: []types.Service{
				{Proto: types.ProtoTCP, Port: 80, Name: "http", Address: "example.com"},
			}},
		},
	}

	bus := events.NewBus(32)
	runState := state.New("example.com", "run1")
	done := make(chan struct{})
	drain(bus, runState, done)

	sched := New(registry, newLimiter(), bus)
	sched.Run(context.Background(), types.Target{Value: "example.com"}, config.Default(), runState)
	bus.Stop()
	<-done

	snap := runState.Snapshot()
	require.Len(t, snap.PortsOpen, 1)
	require.Len(t, snap.Services, 1)
	assert.EqualValues(t, 80, snap.PortsOpen[0].Port)
	assert.Equal(t, 1, snap.TasksStarted)
	assert.Equal(t, 1, snap.TasksCompleted)
}

func TestRun_PluginFailureIsRecordedNotFatal(t *testing.T) {
	registry := &plugins.Registry{
		Reconnaissance: []plugins.PortScan{
			&fakePortScan{name: "dns_enum", tool: "dig", err: errors.New("dig not found")},
		},
	}

	bus := events.NewBus(32)
	runState := state.New("example.com", "run1")
	done := make(chan struct{})
	drain(bus, runState, done)

	sched := New(registry, newLimiter(), bus)
	sched.Run(context.Background(), types.Target{Value: "example.com"}, config.Default(), runState)
	bus.Stop()
	<-done

	snap := runState.Snapshot()
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, 1, snap.TasksStarted)
	assert.Equal(t, 1, snap.TasksCompleted)
}

func TestRun_ServiceProbingDispatchesOnlyMatchingPlugins(t *testing.T) {
	var httpCalls, sshCalls int32
	registry := &plugins.Registry{
		PortDiscovery: []plugins.PortScan{
			&fakePortScan{name: "naabu_portscan", tool: "naabu", services: []types.Service{
				{Proto: types.ProtoTCP, Port: 80, Name: "http", Address: "example.com"},
				{Proto: types.ProtoTCP, Port: 22, Name: "ssh", Address: "example.com"},
			}},
		},
		ServiceProbing: []plugins.ServiceScan{
			&fakeServiceScan{name: "http_probe", tool: "curl", calls: &httpCalls,
				matches: func(svc types.Service) bool { return svc.Port == 80 }},
			&fakeServiceScan{name: "ssh_probe", tool: "ssh-audit", calls: &sshCalls,
				matches: func(svc types.Service) bool { return svc.Port == 22 }},
		},
	}

	bus := events.NewBus(32)
	runState := state.New("example.com", "run1")
	done := make(chan struct{})
	drain(bus, runState, done)

	sched := New(registry, newLimiter(), bus)
	sched.Run(context.Background(), types.Target{Value: "example.com"}, config.Default(), runState)
	bus.Stop()
	<-done

	assert.EqualValues(t, 1, atomic.LoadInt32(&httpCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&sshCalls))
}

func TestRun_DuplicateServiceAcrossPortPluginsCollapsesToOneService(t *testing.T) {
	svc := types.Service{Proto: types.ProtoTCP, Port: 443, Name: "https", Secure: true, Address: "example.com"}
	registry := &plugins.Registry{
		PortDiscovery: []plugins.PortScan{
			&fakePortScan{name: "nmap_portscan", tool: "nmap", services: []types.Service{svc}},
			&fakePortScan{name: "naabu_portscan", tool: "naabu", services: []types.Service{svc}},
		},
	}

	bus := events.NewBus(32)
	runState := state.New("example.com", "run1")
	done := make(chan struct{})
	drain(bus, runState, done)

	sched := New(registry, newLimiter(), bus)
	sched.Run(context.Background(), types.Target{Value: "example.com"}, config.Default(), runState)
	bus.Stop()
	<-done

	snap := runState.Snapshot()
	assert.Len(t, snap.Services, 1, "first-write-wins across overlapping PortDiscovery plugins")
}

func TestRun_ContextCancellationStopsGrantingPermitsWithoutPanicking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	registry := &plugins.Registry{
		Reconnaissance: []plugins.PortScan{
			&fakePortScan{name: "dns_enum", tool: "dig"},
		},
	}

	bus := events.NewBus(8)
	runState := state.New("example.com", "run1")
	done := make(chan struct{})
	drain(bus, runState, done)

	sched := New(registry, newLimiter(), bus)
	runDone := make(chan struct{})
	go func() {
		sched.Run(ctx, types.Target{Value: "example.com"}, config.Default(), runState)
		close(runDone)
	}()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler.Run did not return after context cancellation")
	}
	bus.Stop()
	<-done
}
