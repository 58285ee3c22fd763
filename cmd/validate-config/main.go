package main

import (
	"flag"
	"fmt"
	"log"
	"os/exec"

	"ipcrawler/pkg/config"
	"ipcrawler/pkg/organizer"
	"ipcrawler/pkg/plugins"
)

var configPath = flag.String("config", "", "path to global.toml (default: search the standard lookup chain)")

func main() {
	flag.Parse()

	log.SetFlags(0)
	log.Println("Validating ipcrawler configuration...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FAILED to load configuration: %v", err)
	}
	log.Println("configuration loaded and passed its own validation rules")
	log.Printf("  max_total_scans=%d max_port_scans=%d max_service_scans=%d",
		cfg.Concurrency.MaxTotalScans, cfg.Concurrency.MaxPortScans, cfg.Concurrency.MaxServiceScans)

	registry := plugins.Default()
	log.Printf("plugin registry: %d plugins across %d phases", registry.TotalPlugins(), len(registry.PhaseCounts()))
	for phase, count := range registry.PhaseCounts() {
		log.Printf("  %s: %d", phase, count)
	}

	var missing []string
	for _, tool := range []string{
		cfg.Tools.Nmap.Command, cfg.Tools.Naabu.Command, cfg.Tools.DNSEnum.Command,
		cfg.Tools.HTTPProbe.Command, cfg.Tools.HTTPX.Command,
	} {
		if tool == "" {
			continue
		}
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("FAILED: tools not found on PATH: %v", missing)
	}
	log.Println("every configured tool command resolves on PATH")

	if err := organizer.VerifyBaseTools(); err != nil {
		log.Fatalf("FAILED: %v", err)
	}
	log.Println("base OS utilities (nslookup, dig) resolve on PATH")

	fmt.Println()
	fmt.Println("Configuration validation passed.")
}
