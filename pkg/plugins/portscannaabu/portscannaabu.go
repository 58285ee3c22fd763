// Package portscannaabu implements the naabu_portscan PortDiscovery
// plugin: a fast rate-based port scan using naabu's JSON-lines output.
package portscannaabu

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ipcrawler/pkg/artifact"
	"ipcrawler/pkg/config"
	"ipcrawler/pkg/errors"
	"ipcrawler/pkg/executor"
	"ipcrawler/pkg/scanutil"
	"ipcrawler/pkg/types"
)

// Plugin is the naabu_portscan PortScan implementation.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "naabu_portscan" }
func (p *Plugin) Tool() string { return "naabu" }

// serviceNames maps well-known ports to a display name, matching the
// table naabu itself doesn't provide since it only reports open ports.
var serviceNames = map[uint16]string{
	21: "ftp", 22: "ssh", 23: "telnet", 25: "smtp", 53: "dns",
	80: "http", 110: "pop3", 111: "rpcbind", 135: "msrpc", 139: "netbios-ssn",
	143: "imap", 443: "https", 993: "imaps", 995: "pop3s", 1433: "mssql",
	1723: "pptp", 3306: "mysql", 3389: "rdp", 5432: "postgresql", 5900: "vnc",
	8080: "http-proxy", 8443: "https-alt",
}

func serviceName(port uint16) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "unknown"
}

// Run drives naabu against target and returns the services it discovered.
func (p *Plugin) Run(ctx context.Context, target types.Target, cfg config.GlobalConfig) ([]types.Service, error) {
	naabuCfg := cfg.Tools.Naabu
	outputFile := target.Dirs.Scans + "/naabu_" + target.Value + ".txt"

	args := []string{
		"-host", target.Value,
		"-o", outputFile,
		"-silent",
		"-json",
		"-rate", strconv.Itoa(naabuCfg.Rate),
		"-c", strconv.Itoa(naabuCfg.Concurrency),
	}
	args = append(args, portArgs(naabuCfg)...)

	timeout := time.Duration(naabuCfg.Limits.TimeoutMS) * time.Millisecond
	if _, err := executor.Execute(ctx, naabuCfg.Command, args, target.Dirs.Scans, timeout); err != nil {
		return nil, err
	}

	services, err := parseNaabuOutput(outputFile, target.Value)
	if err != nil {
		return nil, err
	}

	if err := writeResults(p.Name(), services, target.Dirs.Scans); err != nil {
		return nil, err
	}

	return services, nil
}

func portArgs(naabuCfg config.NaabuConfig) []string {
	switch naabuCfg.PortStrategy {
	case config.StrategyTop:
		top := 1000
		if naabuCfg.Ports.TopPorts != nil {
			top = *naabuCfg.Ports.TopPorts
		}
		// naabu only accepts the discrete values full/100/1000.
		switch {
		case top >= 1000:
			return []string{"-top-ports", "1000"}
		default:
			return []string{"-top-ports", "100"}
		}
	case config.StrategyRange:
		if naabuCfg.Ports.RangeStart != nil && naabuCfg.Ports.RangeEnd != nil {
			return []string{"-p", fmt.Sprintf("%d-%d", *naabuCfg.Ports.RangeStart, *naabuCfg.Ports.RangeEnd)}
		}
	case config.StrategyList:
		if len(naabuCfg.Ports.SpecificPorts) > 0 {
			parts := make([]string, len(naabuCfg.Ports.SpecificPorts))
			for i, port := range naabuCfg.Ports.SpecificPorts {
				parts[i] = strconv.Itoa(port)
			}
			return []string{"-p", strings.Join(parts, ",")}
		}
	}
	return []string{"-top-ports", "1000"}
}

type naabuLine struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func parseNaabuOutput(outputFile, target string) ([]types.Service, error) {
	f, err := os.Open(outputFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.IO("failed to open naabu output", err)
	}
	defer f.Close()

	seenPorts := make(map[uint16]bool)
	var services []types.Service

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec naabuLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Host != target || rec.Port <= 0 || rec.Port > 65535 {
			continue
		}

		port := uint16(rec.Port)
		if seenPorts[port] {
			continue
		}
		seenPorts[port] = true

		name := serviceName(port)
		services = append(services, types.Service{
			Proto:   types.ProtoTCP,
			Port:    port,
			Name:    name,
			Secure:  scanutil.Secure(port, name),
			Address: target,
		})
	}

	return services, nil
}

func writeResults(name string, services []types.Service, scansDir string) error {
	content := fmt.Sprintf("=== %s Results ===\nFound %d open ports:\n\n", name, len(services))
	for _, svc := range services {
		tag := ""
		if svc.Secure {
			tag = " [SSL/TLS]"
		}
		content += fmt.Sprintf("Port %d: %s (%s)%s\n", svc.Port, svc.Name, svc.Proto, tag)
	}
	content += fmt.Sprintf("\nTimestamp: %s\n", time.Now().UTC().Format(time.RFC3339))

	return artifact.AtomicWrite(scansDir+"/naabu_results.txt", []byte(content))
}
