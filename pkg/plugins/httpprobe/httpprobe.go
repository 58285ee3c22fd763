// Package httpprobe implements the http_probe ServiceProbing plugin: a
// curl-backed HTTP/HTTPS probe against a discovered service.
package httpprobe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ipcrawler/pkg/artifact"
	"ipcrawler/pkg/config"
	"ipcrawler/pkg/executor"
	"ipcrawler/pkg/log"
	"ipcrawler/pkg/state"
	"ipcrawler/pkg/types"
)

// Plugin is the http_probe ServiceScan implementation.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "http_probe" }
func (p *Plugin) Tool() string { return "curl" }

// Matches reports whether svc looks like an HTTP-speaking service.
func (p *Plugin) Matches(svc types.Service) bool {
	if strings.Contains(svc.Name, "http") {
		return true
	}
	switch svc.Port {
	case 80, 443, 8080, 8443:
		return true
	}
	return false
}

// Run probes svc with curl and writes a per-service result file; curl
// failures are non-fatal and recorded as a FAILED status in that file
// rather than as a plugin error, since a closed or filtering port is an
// expected probe outcome, not an execution fault.
func (p *Plugin) Run(ctx context.Context, svc types.Service, target types.Target, snap state.Snapshot, cfg config.GlobalConfig) error {
	httpCfg := cfg.Tools.HTTPProbe
	scheme := "http"
	if svc.Secure || svc.Port == 443 {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, svc.Address, svc.Port)
	outputFile := fmt.Sprintf("%s/http_%s_%d.txt", target.Dirs.Scans, svc.Address, svc.Port)

	args := append([]string{}, httpCfg.BaseArgs...)
	args = append(args,
		"--connect-timeout", strconv.Itoa(httpCfg.Options.ConnectTimeoutS),
		"--max-time", strconv.Itoa(httpCfg.Options.MaxTimeS),
	)

	if httpCfg.Options.FollowRedirects {
		if !contains(args, "-L") {
			args = append(args, "-L")
		}
		args = append(args, "--max-redirs", strconv.Itoa(httpCfg.Options.MaxRedirects))
	}

	if !httpCfg.SSL.VerifyCert {
		args = append(args, "-k")
	}

	if httpCfg.Options.UserAgent != "" {
		args = append(args, "-A", httpCfg.Options.UserAgent)
	}

	if httpCfg.Output.Verbose {
		args = append(args, "-v")
	}

	args = append(args, "-o", outputFile, url)

	timeout := time.Duration(httpCfg.Limits.TimeoutMS) * time.Millisecond
	success := true
	if _, err := executor.Execute(ctx, httpCfg.Command, args, target.Dirs.Scans, timeout); err != nil {
		log.WithPlugin(p.Name()).Warn().Err(err).Msgf("http probe failed for %s", url)
		success = false
	}

	return writeResult(p.Name(), svc, url, success, target.Dirs.Scans)
}

func contains(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func writeResult(name string, svc types.Service, url string, success bool, scansDir string) error {
	status := "FAILED"
	if success {
		status = "SUCCESS"
	}
	content := fmt.Sprintf(
		"=== %s Results ===\nHTTP probe for %s:%d\nURL: %s\nStatus: %s\nService: %s (%s)\nSecure: %t\nTimestamp: %s\n",
		name, svc.Address, svc.Port, url, status, svc.Name, svc.Proto, svc.Secure, time.Now().UTC().Format(time.RFC3339),
	)

	resultFile := fmt.Sprintf("%s/http_probe_%s_%d_results.txt", scansDir, svc.Address, svc.Port)
	return artifact.AtomicWrite(resultFile, []byte(content))
}
