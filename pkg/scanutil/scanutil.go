// Package scanutil holds small rules shared by every PortScan plugin so
// they stay consistent with each other, most importantly the secure-flag
// derivation that the original per-tool implementations disagreed on.
package scanutil

import "strings"

// securePorts are well-known ports that are secure-transport regardless of
// the service name a scanner reported for them.
var securePorts = map[uint16]bool{
	443:  true,
	8443: true,
	993:  true,
	995:  true,
}

// Secure reports whether a discovered service on the given port/name
// should be flagged as running over a secure transport. Applied uniformly
// by every PortScan plugin at the point a Service is constructed, instead
// of each plugin deriving its own rule.
func Secure(port uint16, name string) bool {
	if securePorts[port] {
		return true
	}
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "s") ||
		strings.Contains(lower, "ssl") ||
		strings.Contains(lower, "tls")
}
