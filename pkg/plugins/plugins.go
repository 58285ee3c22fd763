// Package plugins defines the two plugin capability interfaces
// (PortScan, ServiceScan) and the static Registry that groups concrete
// implementations by phase and validates their external tools are on
// PATH before any phase runs.
package plugins

import (
	"context"
	"fmt"
	"os/exec"

	"ipcrawler/pkg/config"
	"ipcrawler/pkg/state"
	"ipcrawler/pkg/types"
)

// PortScan is a phase-level plugin used by the Reconnaissance and
// PortDiscovery phases. It returns the services it discovered; the
// scheduler is responsible for turning those into PortDiscovered and
// ServiceDiscovered events and deduplicating against RunState.
type PortScan interface {
	Name() string
	Tool() string
	Run(ctx context.Context, target types.Target, cfg config.GlobalConfig) ([]types.Service, error)
}

// ServiceScan is a per-service plugin used by the ServiceProbing phase.
// It never mutates RunState; its only allowed side effects are artifact
// files and events the scheduler emits on its behalf.
type ServiceScan interface {
	Name() string
	Tool() string
	Matches(svc types.Service) bool
	Run(ctx context.Context, svc types.Service, target types.Target, snap state.Snapshot, cfg config.GlobalConfig) error
}

// Registry is the static, process-wide inventory of plugins grouped by
// phase.
type Registry struct {
	Reconnaissance []PortScan
	PortDiscovery  []PortScan
	ServiceProbing []ServiceScan
	Vulnerability  []ServiceScan
}

// ValidateTools resolves every registered plugin's declared tool on PATH
// and fails fast, listing every missing tool at once, rather than failing
// one plugin at a time once phases start running.
func (r *Registry) ValidateTools() error {
	seen := make(map[string]bool)
	var missing []string

	check := func(tool string) {
		if tool == "" || seen[tool] {
			return
		}
		seen[tool] = true
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}

	for _, p := range r.Reconnaissance {
		check(p.Tool())
	}
	for _, p := range r.PortDiscovery {
		check(p.Tool())
	}
	for _, p := range r.ServiceProbing {
		check(p.Tool())
	}
	for _, p := range r.Vulnerability {
		check(p.Tool())
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required tools on PATH: %v", missing)
	}
	return nil
}

// TotalPlugins returns the number of plugins registered across every
// phase.
func (r *Registry) TotalPlugins() int {
	return len(r.Reconnaissance) + len(r.PortDiscovery) + len(r.ServiceProbing) + len(r.Vulnerability)
}

// PhaseCounts returns the plugin count per phase name, for startup
// logging.
func (r *Registry) PhaseCounts() map[string]int {
	return map[string]int{
		"reconnaissance": len(r.Reconnaissance),
		"port_discovery": len(r.PortDiscovery),
		"service_probing": len(r.ServiceProbing),
		"vulnerability":  len(r.Vulnerability),
	}
}
