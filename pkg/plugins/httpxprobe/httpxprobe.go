// Package httpxprobe implements the httpx_probe ServiceProbing plugin: a
// ProjectDiscovery httpx-backed probe with tech detection and title
// capture, used as the expanded richer sibling of http_probe.
package httpxprobe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ipcrawler/pkg/artifact"
	"ipcrawler/pkg/config"
	"ipcrawler/pkg/executor"
	"ipcrawler/pkg/log"
	"ipcrawler/pkg/state"
	"ipcrawler/pkg/types"
)

// Plugin is the httpx_probe ServiceScan implementation.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "httpx_probe" }
func (p *Plugin) Tool() string { return "httpx" }

// Matches extends http_probe's port/name set with common alternate HTTP
// dev-server ports.
func (p *Plugin) Matches(svc types.Service) bool {
	if containsHTTP(svc.Name) {
		return true
	}
	switch svc.Port {
	case 80, 443, 8080, 8443, 8000, 8888, 3000, 5000, 9000:
		return true
	}
	return false
}

func containsHTTP(name string) bool {
	for i := 0; i+4 <= len(name); i++ {
		if name[i:i+4] == "http" {
			return true
		}
	}
	return false
}

// Run probes svc with httpx and writes a per-service result file;
// httpx failures are non-fatal, recorded as a FAILED status.
func (p *Plugin) Run(ctx context.Context, svc types.Service, target types.Target, snap state.Snapshot, cfg config.GlobalConfig) error {
	httpxCfg := cfg.Tools.HTTPX
	url := fmt.Sprintf("%s:%d", svc.Address, svc.Port)
	outputFile := fmt.Sprintf("%s/httpx_%s_%d.txt", target.Dirs.Scans, svc.Address, svc.Port)

	args := append([]string{}, httpxCfg.BaseArgs...)
	args = append(args,
		"-u", fmt.Sprintf("http://%s:%d", svc.Address, svc.Port),
		"-o", outputFile,
		"-timeout", strconv.Itoa(httpxCfg.Options.TimeoutS),
		"-retries", strconv.Itoa(httpxCfg.Limits.MaxRetries),
	)

	if httpxCfg.Options.ProbeAllIPs {
		args = append(args, "-probe-all-ips")
	}
	if httpxCfg.Options.FollowRedirects {
		args = append(args, "-follow-redirects")
	}
	if httpxCfg.Options.FollowHostRedirects {
		args = append(args, "-follow-host-redirects")
	}
	if httpxCfg.Output.StatusCode {
		args = append(args, "-status-code")
	}
	if httpxCfg.Output.ContentLength {
		args = append(args, "-content-length")
	}
	if httpxCfg.Output.Title {
		args = append(args, "-title")
	}
	if httpxCfg.Output.TechDetect {
		args = append(args, "-tech-detect")
	}
	if httpxCfg.Output.Server {
		args = append(args, "-server")
	}
	if httpxCfg.Output.ContentType {
		args = append(args, "-content-type")
	}
	if httpxCfg.Options.Method != "" {
		args = append(args, "-method", httpxCfg.Options.Method)
	}
	if httpxCfg.Options.UserAgent != "" {
		args = append(args, "-H", "User-Agent: "+httpxCfg.Options.UserAgent)
	}

	timeout := time.Duration(httpxCfg.Limits.TimeoutMS) * time.Millisecond
	success := true
	if _, err := executor.Execute(ctx, httpxCfg.Command, args, target.Dirs.Scans, timeout); err != nil {
		log.WithPlugin(p.Name()).Warn().Err(err).Msgf("httpx probe failed for %s", url)
		success = false
	}

	return writeResult(p.Name(), svc, url, success, target.Dirs.Scans)
}

func writeResult(name string, svc types.Service, url string, success bool, scansDir string) error {
	status := "FAILED"
	if success {
		status = "SUCCESS"
	}
	content := fmt.Sprintf(
		"=== %s Results ===\nHTTPX probe for %s:%d\nURL: %s\nStatus: %s\nService: %s (%s)\nSecure: %t\nTimestamp: %s\n",
		name, svc.Address, svc.Port, url, status, svc.Name, svc.Proto, svc.Secure, time.Now().UTC().Format(time.RFC3339),
	)

	resultFile := fmt.Sprintf("%s/httpx_probe_%s_%d_results.txt", scansDir, svc.Address, svc.Port)
	return artifact.AtomicWrite(resultFile, []byte(content))
}
