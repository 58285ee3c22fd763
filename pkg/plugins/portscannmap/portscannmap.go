// Package portscannmap implements the nmap_portscan PortDiscovery plugin:
// builds nmap's argv from config, runs it against an XML output file, and
// parses the open-port/service list out of that file.
package portscannmap

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"ipcrawler/pkg/artifact"
	"ipcrawler/pkg/config"
	"ipcrawler/pkg/errors"
	"ipcrawler/pkg/executor"
	"ipcrawler/pkg/log"
	"ipcrawler/pkg/scanutil"
	"ipcrawler/pkg/types"
)

// Plugin is the nmap_portscan PortScan implementation.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "nmap_portscan" }
func (p *Plugin) Tool() string { return "nmap" }

// portRe matches one open <port> element in nmap's XML output, tolerating
// the optional nested <service> element and the XML's multiline layout.
var portRe = regexp.MustCompile(`(?s)<port protocol="(\w+)" portid="(\d+)">\s*<state state="open".*?(?:<service name="([^"]+)".*?)?</port>`)

// Run drives nmap against target and returns the services it discovered.
func (p *Plugin) Run(ctx context.Context, target types.Target, cfg config.GlobalConfig) ([]types.Service, error) {
	nmapCfg := cfg.Tools.Nmap
	outputFile := target.Dirs.Scans + "/nmap.xml"

	args := append([]string{}, nmapCfg.BaseArgs...)
	switch nmapCfg.PortStrategy {
	case config.StrategyTop:
		if nmapCfg.Ports.TopPorts != nil {
			args = append(args, "--top-ports", strconv.Itoa(*nmapCfg.Ports.TopPorts))
		}
	case config.StrategyRange:
		if nmapCfg.Ports.RangeStart != nil && nmapCfg.Ports.RangeEnd != nil {
			args = append(args, "-p", fmt.Sprintf("%d-%d", *nmapCfg.Ports.RangeStart, *nmapCfg.Ports.RangeEnd))
		}
	case config.StrategyList:
		if len(nmapCfg.Ports.SpecificPorts) > 0 {
			args = append(args, "-p", joinInts(nmapCfg.Ports.SpecificPorts))
		}
	case config.StrategyDefault:
		// use nmap's own default port selection
	}

	args = append(args, "-"+nmapCfg.Options.TimingTemplate)

	if nmapCfg.Options.OutputFormat == "xml" {
		args = append(args, "-oX", "nmap.xml")
	}
	if nmapCfg.Options.OSDetection {
		args = append(args, "-O")
	}
	if nmapCfg.Options.ScriptScan {
		args = append(args, "-sC")
	}
	if nmapCfg.Options.StealthMode {
		for i, a := range args {
			if a == "-sT" {
				args[i] = "-sS"
				log.WithPlugin(p.Name()).Warn().Msg("stealth mode (-sS) requires root privileges")
			}
		}
	}

	args = append(args, target.Value)

	timeout := time.Duration(nmapCfg.Limits.TimeoutMS) * time.Millisecond
	if _, err := executor.Execute(ctx, nmapCfg.Command, args, target.Dirs.Scans, timeout); err != nil {
		return nil, err
	}

	xmlContent, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, errors.IO("failed to read nmap output", err)
	}

	services, err := parseNmapXML(string(xmlContent), target.Value)
	if err != nil {
		return nil, err
	}

	if err := writeResults(p.Name(), services, target.Dirs.Scans); err != nil {
		return nil, err
	}

	return services, nil
}

func joinInts(ports []int) string {
	out := ""
	for i, p := range ports {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(p)
	}
	return out
}

func parseNmapXML(xml, target string) ([]types.Service, error) {
	var services []types.Service
	for _, m := range portRe.FindAllStringSubmatch(xml, -1) {
		var proto types.Proto
		switch m[1] {
		case "tcp":
			proto = types.ProtoTCP
		case "udp":
			proto = types.ProtoUDP
		default:
			continue
		}

		port, err := strconv.ParseUint(m[2], 10, 16)
		if err != nil {
			continue
		}

		name := m[3]
		if name == "" {
			name = fmt.Sprintf("port-%d", port)
		}

		services = append(services, types.Service{
			Proto:   proto,
			Port:    uint16(port),
			Name:    name,
			Secure:  scanutil.Secure(uint16(port), name),
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

	return artifact.AtomicWrite(scansDir+"/nmap_results.txt", []byte(content))
}
