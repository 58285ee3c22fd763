// Package scheduler drives the four-phase scan pipeline (Reconnaissance
// -> PortDiscovery -> ServiceProbing -> Vulnerability): strict phase
// sequencing, permit-gated concurrent plugin dispatch within a phase, and
// the scheduler-as-sole-emitter discipline that keeps RunState's event
// bus single-writer.
package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ipcrawler/pkg/config"
	"ipcrawler/pkg/errors"
	"ipcrawler/pkg/events"
	"ipcrawler/pkg/limiter"
	"ipcrawler/pkg/log"
	"ipcrawler/pkg/metrics"
	"ipcrawler/pkg/plugins"
	"ipcrawler/pkg/state"
	"ipcrawler/pkg/types"
)

// phase names double as both the limiter's per-phase pool keys and the
// metrics labels; cmd/ipcrawler configures the Limiter with exactly
// these four names.
const (
	PhaseReconnaissance = "reconnaissance"
	PhasePortDiscovery  = "port_discovery"
	PhaseServiceProbing = "service_probing"
	PhaseVulnerability  = "vulnerability"
)

// Phases lists every phase name in execution order.
var Phases = []string{PhaseReconnaissance, PhasePortDiscovery, PhaseServiceProbing, PhaseVulnerability}

// Scheduler drives one run's plugins through their phases, emitting
// every lifecycle event on behalf of the plugins it calls: neither
// PortScan nor ServiceScan plugins touch the event bus or RunState
// themselves, so RunState stays single-writer.
type Scheduler struct {
	registry *plugins.Registry
	limiter  *limiter.Limiter
	bus      *events.Bus
	logger   zerolog.Logger
}

// New builds a Scheduler over registry, gated by lim, publishing to bus.
func New(registry *plugins.Registry, lim *limiter.Limiter, bus *events.Bus) *Scheduler {
	return &Scheduler{
		registry: registry,
		limiter:  lim,
		bus:      bus,
		logger:   log.WithComponent("scheduler"),
	}
}

// Run drives every phase in sequence for target; ServiceScan plugins
// receive the RunState snapshot taken when their phase starts. It returns
// once every phase has finished. A canceled ctx makes every later permit
// acquisition fail, so the remaining plugins are skipped; a single plugin
// failure never aborts the run (see runPortPhase/runServicePhase, which
// record failures as events instead).
func (s *Scheduler) Run(ctx context.Context, target types.Target, cfg config.GlobalConfig, runState *state.RunState) {
	s.runPortPhase(ctx, PhaseReconnaissance, s.registry.Reconnaissance, target, cfg)
	s.runPortPhase(ctx, PhasePortDiscovery, s.registry.PortDiscovery, target, cfg)

	snap := runState.Snapshot()
	s.runServicePhase(ctx, PhaseServiceProbing, s.registry.ServiceProbing, snap, target, cfg)

	snap = runState.Snapshot()
	s.runServicePhase(ctx, PhaseVulnerability, s.registry.Vulnerability, snap, target, cfg)
}

// runPortPhase dispatches every PortScan plugin in phase concurrently,
// gated by the limiter, and waits for all of them before returning —
// this wait is what guarantees no phase-N+1 PortDiscovered event is
// observable before every phase-N plugin has completed.
func (s *Scheduler) runPortPhase(ctx context.Context, phase string, phasePlugins []plugins.PortScan, target types.Target, cfg config.GlobalConfig) {
	var wg sync.WaitGroup
	for _, p := range phasePlugins {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runOnePortPlugin(ctx, phase, p, target, cfg)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runOnePortPlugin(ctx context.Context, phase string, p plugins.PortScan, target types.Target, cfg config.GlobalConfig) {
	release, err := s.limiter.Acquire(ctx, phase)
	if err != nil {
		s.logger.Warn().Str("plugin", p.Name()).Err(err).Msg("permit acquisition canceled")
		return
	}
	defer release()

	s.bus.Publish(events.TaskStarted(p.Name()))
	metrics.TasksStartedTotal.WithLabelValues(phase, p.Name()).Inc()

	timer := metrics.NewTimer()
	services, runErr := p.Run(ctx, target, cfg)
	timer.ObserveDurationVec(metrics.PluginDuration, p.Name())

	if runErr != nil {
		s.logger.Warn().Str("plugin", p.Name()).Err(runErr).Msg("plugin run failed")
		s.bus.Publish(events.TaskFailed(p.Name(), errors.ToExecError(p.Tool(), runErr)))
		metrics.TasksFailedTotal.WithLabelValues(phase, p.Name()).Inc()
	} else {
		s.emitDiscoveries(p.Name(), services)
	}

	s.bus.Publish(events.TaskCompleted(p.Name()))
	metrics.TasksCompletedTotal.WithLabelValues(phase, p.Name()).Inc()
}

// emitDiscoveries publishes one PortDiscovered and one ServiceDiscovered
// event per unique (address, proto, port) a plugin reported. The plugin
// is expected to have already deduplicated its own results; RunState's
// writer double-checks against everything seen so far across plugins.
func (s *Scheduler) emitDiscoveries(plugin string, services []types.Service) {
	seen := make(map[string]bool, len(services))
	for _, svc := range services {
		key := svc.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		s.bus.Publish(events.PortDiscovered(plugin, svc.Port, svc.Name))
		s.bus.Publish(events.ServiceDiscovered(plugin, svc))
		metrics.PortsDiscoveredTotal.Inc()
		metrics.ServicesDiscoveredTotal.Inc()
	}
}

// runServicePhase evaluates Matches(service) once per (plugin, service)
// pair over the phase's plugins and the services known at snap time, and
// dispatches every match concurrently, gated by the limiter. A plugin
// matching multiple services runs once per match, independently.
func (s *Scheduler) runServicePhase(ctx context.Context, phase string, phasePlugins []plugins.ServiceScan, snap state.Snapshot, target types.Target, cfg config.GlobalConfig) {
	var wg sync.WaitGroup
	for _, p := range phasePlugins {
		p := p
		for _, svc := range snap.Services {
			if !p.Matches(svc) {
				continue
			}
			svc := svc
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.runOneServicePlugin(ctx, phase, p, svc, snap, target, cfg)
			}()
		}
	}
	wg.Wait()
}

func (s *Scheduler) runOneServicePlugin(ctx context.Context, phase string, p plugins.ServiceScan, svc types.Service, snap state.Snapshot, target types.Target, cfg config.GlobalConfig) {
	release, err := s.limiter.Acquire(ctx, phase)
	if err != nil {
		s.logger.Warn().Str("plugin", p.Name()).Err(err).Msg("permit acquisition canceled")
		return
	}
	defer release()

	s.bus.Publish(events.TaskStarted(p.Name()))
	metrics.TasksStartedTotal.WithLabelValues(phase, p.Name()).Inc()

	timer := metrics.NewTimer()
	runErr := p.Run(ctx, svc, target, snap, cfg)
	timer.ObserveDurationVec(metrics.PluginDuration, p.Name())

	if runErr != nil {
		s.logger.Warn().Str("plugin", p.Name()).Str("service", svc.Key()).Err(runErr).Msg("plugin run failed")
		s.bus.Publish(events.TaskFailed(p.Name(), errors.ToExecError(p.Tool(), runErr)))
		metrics.TasksFailedTotal.WithLabelValues(phase, p.Name()).Inc()
	}

	s.bus.Publish(events.TaskCompleted(p.Name()))
	metrics.TasksCompletedTotal.WithLabelValues(phase, p.Name()).Inc()
}
