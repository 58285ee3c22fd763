// Package dnsenum implements the dns_enum Reconnaissance plugin: basic
// record lookups via dig, an optional subdomain brute force, and an
// optional zone-transfer attempt.
package dnsenum

import (
	"context"
	"fmt"
	"time"

	"ipcrawler/pkg/config"
	"ipcrawler/pkg/scanutil"
	"ipcrawler/pkg/types"
)

// Plugin is the dns_enum PortScan implementation.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "dns_enum" }
func (p *Plugin) Tool() string { return "dig" }

// recordTypes are queried unconditionally on every run; failures are
// ignored per-record since most targets won't answer every type.
var recordTypes = []string{"A", "AAAA", "MX", "NS", "TXT", "CNAME", "SOA"}

// commonSubdomains is the fixed list tried by the optional subdomain
// brute force.
var commonSubdomains = []string{
	"www", "mail", "ftp", "admin", "test", "dev", "staging", "api",
	"app", "web", "secure", "login", "portal", "dashboard", "panel",
	"m", "mobile", "cdn", "static", "img", "images", "upload", "uploads",
	"blog", "forum", "shop", "store", "payment", "pay", "billing",
	"support", "help", "docs", "documentation", "wiki", "kb",
	"internal", "intranet", "extranet", "vpn", "remote", "ssh",
	"git", "svn", "jenkins", "ci", "build", "deploy", "prod", "production",
}

// Run performs the basic lookups, then the optional subdomain and
// zone-transfer passes when enabled in config.
func (p *Plugin) Run(ctx context.Context, target types.Target, cfg config.GlobalConfig) ([]types.Service, error) {
	exec := newExecFunc()

	services := p.basicLookup(ctx, exec, target, cfg)

	if cfg.Tools.DNSEnum.Options.SubdomainEnum {
		p.subdomainEnumeration(ctx, exec, target, cfg)
	}
	if cfg.Tools.DNSEnum.Options.ZoneTransfer {
		p.zoneTransferAttempt(ctx, exec, target, cfg)
	}

	return services, nil
}

func (p *Plugin) basicLookup(ctx context.Context, run execFunc, target types.Target, cfg config.GlobalConfig) []types.Service {
	timeout := time.Duration(cfg.Tools.DNSEnum.Limits.TimeoutMS) * time.Millisecond
	for _, rt := range recordTypes {
		args := []string{"+short", "-t", rt, target.Value}
		_, _ = run(ctx, "dig", args, target.Dirs.Scans, timeout)
	}

	// port 53 liveness check: a DNS server answering a recursive query
	// for an unrelated name implies the service is up.
	args := []string{"+short", "+time=3", "+tries=1", "@" + target.Value, "google.com"}
	_, err := run(ctx, "dig", args, target.Dirs.Scans, 5*time.Second)
	if err != nil {
		return nil
	}

	return []types.Service{{
		Proto:   types.ProtoUDP,
		Port:    53,
		Name:    "dns",
		Secure:  scanutil.Secure(53, "dns"),
		Address: target.Value,
	}}
}

func (p *Plugin) subdomainEnumeration(ctx context.Context, run execFunc, target types.Target, cfg config.GlobalConfig) {
	for _, sub := range commonSubdomains {
		fqdn := fmt.Sprintf("%s.%s", sub, target.Value)
		args := []string{"+short", "+time=2", "+tries=1", fqdn}
		_, _ = run(ctx, "dig", args, target.Dirs.Scans, 3*time.Second)
	}
}

func (p *Plugin) zoneTransferAttempt(ctx context.Context, run execFunc, target types.Target, cfg config.GlobalConfig) {
	timeout := time.Duration(cfg.Tools.DNSEnum.Limits.TimeoutMS) * time.Millisecond
	args := []string{"axfr", target.Value, "@" + target.Value}
	_, _ = run(ctx, "dig", args, target.Dirs.Scans, timeout)
}
