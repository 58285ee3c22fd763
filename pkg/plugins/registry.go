package plugins

import (
	"ipcrawler/pkg/plugins/dnsenum"
	"ipcrawler/pkg/plugins/httpprobe"
	"ipcrawler/pkg/plugins/httpxprobe"
	"ipcrawler/pkg/plugins/portscannaabu"
	"ipcrawler/pkg/plugins/portscannmap"
)

// Default builds the Registry wiring every concrete plugin this module
// ships. Vulnerability is intentionally empty: no vulnerability-scanning
// tool is part of this implementation, matching the upstream registry
// this was ported from, which leaves the same slot empty pending a
// scanner like nuclei.
func Default() *Registry {
	return &Registry{
		Reconnaissance: []PortScan{
			dnsenum.New(),
		},
		PortDiscovery: []PortScan{
			portscannmap.New(),
			portscannaabu.New(),
		},
		ServiceProbing: []ServiceScan{
			httpprobe.New(),
			httpxprobe.New(),
		},
		Vulnerability: nil,
	}
}
