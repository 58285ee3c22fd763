// Package config loads and validates the TOML GlobalConfig that drives a
// run: concurrency limits and every plugin's tool command, argv-building
// options, and per-tool timeouts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"ipcrawler/pkg/errors"
)

// defaultLookupPaths is the fallback chain tried in order when no
// explicit config path is given, matching the original loader.
var defaultLookupPaths = []string{
	"./global.toml",
	"./config/global.toml",
	"~/.config/ipcrawler/global.toml",
	"/etc/ipcrawler/global.toml",
}

// PortStrategy selects how a port-scanning plugin picks which ports to
// probe.
type PortStrategy string

const (
	StrategyDefault PortStrategy = "default"
	StrategyTop     PortStrategy = "top"
	StrategyRange   PortStrategy = "range"
	StrategyList    PortStrategy = "list"
)

// PortSelection is the strategy-dependent port selection for a
// PortDiscovery tool.
type PortSelection struct {
	TopPorts       *int   `toml:"top_ports"`
	RangeStart     *int   `toml:"range_start"`
	RangeEnd       *int   `toml:"range_end"`
	SpecificPorts  []int  `toml:"specific_ports"`
}

// Limits bounds how long a single tool invocation may run and how many
// times it may be retried.
type Limits struct {
	TimeoutMS  int64 `toml:"timeout_ms"`
	MaxRetries int   `toml:"max_retries"`
}

// NmapConfig drives the nmap_portscan plugin.
type NmapConfig struct {
	Command      string        `toml:"command"`
	BaseArgs     []string      `toml:"base_args"`
	PortStrategy PortStrategy  `toml:"port_strategy"`
	Ports        PortSelection `toml:"ports"`
	Limits       Limits        `toml:"limits"`
	Options      NmapOptions   `toml:"options"`
}

type NmapOptions struct {
	TimingTemplate string `toml:"timing_template"`
	OutputFormat   string `toml:"output_format"`
	OSDetection    bool   `toml:"os_detection"`
	ScriptScan     bool   `toml:"script_scan"`
	StealthMode    bool   `toml:"stealth_mode"`
}

// NaabuConfig drives the naabu_portscan plugin. It carries its own
// PortSelection/PortStrategy rather than reusing NmapConfig's, unlike the
// original implementation, which is a deliberate rework so each tool's
// port selection can be tuned independently.
type NaabuConfig struct {
	Command      string        `toml:"command"`
	PortStrategy PortStrategy  `toml:"port_strategy"`
	Ports        PortSelection `toml:"ports"`
	Rate         int           `toml:"rate"`
	Concurrency  int           `toml:"concurrency"`
	Limits       Limits        `toml:"limits"`
}

// DNSEnumConfig drives the dns_enum plugin.
type DNSEnumConfig struct {
	Command string            `toml:"command"`
	Limits  Limits            `toml:"limits"`
	Options DNSEnumOptions    `toml:"options"`
}

type DNSEnumOptions struct {
	SubdomainEnum bool `toml:"subdomain_enum"`
	ZoneTransfer  bool `toml:"zone_transfer"`
}

// HTTPProbeConfig drives the http_probe plugin (curl-backed).
type HTTPProbeConfig struct {
	Command  string            `toml:"command"`
	BaseArgs []string          `toml:"base_args"`
	Limits   Limits            `toml:"limits"`
	Options  HTTPProbeOptions  `toml:"options"`
	SSL      SSLOptions        `toml:"ssl"`
	Output   HTTPProbeOutput   `toml:"output"`
}

type HTTPProbeOptions struct {
	ConnectTimeoutS int    `toml:"connect_timeout_s"`
	MaxTimeS        int    `toml:"max_time_s"`
	FollowRedirects bool   `toml:"follow_redirects"`
	MaxRedirects    int    `toml:"max_redirects"`
	UserAgent       string `toml:"user_agent"`
}

type SSLOptions struct {
	VerifyCert bool `toml:"verify_cert"`
}

type HTTPProbeOutput struct {
	Verbose bool `toml:"verbose"`
}

// HTTPXConfig drives the httpx_probe plugin.
type HTTPXConfig struct {
	Command  string         `toml:"command"`
	BaseArgs []string       `toml:"base_args"`
	Limits   Limits         `toml:"limits"`
	Options  HTTPXOptions   `toml:"options"`
	Output   HTTPXOutput    `toml:"output"`
}

type HTTPXOptions struct {
	TimeoutS           int    `toml:"timeout_s"`
	ProbeAllIPs        bool   `toml:"probe_all_ips"`
	FollowRedirects    bool   `toml:"follow_redirects"`
	FollowHostRedirects bool  `toml:"follow_host_redirects"`
	Method             string `toml:"method"`
	UserAgent          string `toml:"user_agent"`
}

type HTTPXOutput struct {
	StatusCode    bool `toml:"status_code"`
	ContentLength bool `toml:"content_length"`
	Title         bool `toml:"title"`
	TechDetect    bool `toml:"tech_detect"`
	Server        bool `toml:"server"`
	ContentType   bool `toml:"content_type"`
}

// ToolsConfig groups every plugin's tool configuration.
type ToolsConfig struct {
	Nmap     NmapConfig      `toml:"nmap"`
	Naabu    NaabuConfig     `toml:"naabu"`
	DNSEnum  DNSEnumConfig   `toml:"dns_enum"`
	HTTPProbe HTTPProbeConfig `toml:"http_probe"`
	HTTPX    HTTPXConfig     `toml:"httpx"`
}

// ConcurrencyConfig bounds how many scans may run at once, globally and
// per phase, and states the file-descriptor budget that implies.
type ConcurrencyConfig struct {
	MaxTotalScans              int `toml:"max_total_scans"`
	MaxPortScans               int `toml:"max_port_scans"`
	MaxServiceScans            int `toml:"max_service_scans"`
	MinFileDescriptors         int `toml:"min_file_descriptors"`
	RecommendedFileDescriptors int `toml:"recommended_file_descriptors"`
}

// DefaultConcurrency matches the original implementation's defaults.
func DefaultConcurrency() ConcurrencyConfig {
	return ConcurrencyConfig{
		MaxTotalScans:              50,
		MaxPortScans:               10,
		MaxServiceScans:            40,
		MinFileDescriptors:         1024,
		RecommendedFileDescriptors: 2048,
	}
}

// GlobalConfig is the full configuration for a run.
type GlobalConfig struct {
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Tools       ToolsConfig       `toml:"tools"`
}

// Validate checks the invariants the scheduler and limiter depend on.
func (c *GlobalConfig) Validate() error {
	if c.Concurrency.MaxTotalScans <= 0 {
		return errors.Organizer("concurrency.max_total_scans must be positive", nil)
	}
	if c.Concurrency.MaxPortScans >= c.Concurrency.MaxTotalScans {
		return errors.Organizer(fmt.Sprintf(
			"concurrency.max_port_scans (%d) must be less than concurrency.max_total_scans (%d)",
			c.Concurrency.MaxPortScans, c.Concurrency.MaxTotalScans), nil)
	}
	if c.Concurrency.MaxServiceScans <= 0 {
		return errors.Organizer("concurrency.max_service_scans must be positive", nil)
	}
	for _, t := range []struct {
		name    string
		command string
		timeout int64
	}{
		{"nmap", c.Tools.Nmap.Command, c.Tools.Nmap.Limits.TimeoutMS},
		{"naabu", c.Tools.Naabu.Command, c.Tools.Naabu.Limits.TimeoutMS},
		{"dns_enum", c.Tools.DNSEnum.Command, c.Tools.DNSEnum.Limits.TimeoutMS},
		{"http_probe", c.Tools.HTTPProbe.Command, c.Tools.HTTPProbe.Limits.TimeoutMS},
		{"httpx", c.Tools.HTTPX.Command, c.Tools.HTTPX.Limits.TimeoutMS},
	} {
		if t.command == "" {
			return errors.Organizer(fmt.Sprintf("tools.%s.command must not be empty", t.name), nil)
		}
		if t.timeout <= 0 {
			return errors.Organizer(fmt.Sprintf("tools.%s.limits.timeout_ms must be positive", t.name), nil)
		}
	}
	return nil
}

// Default returns the built-in configuration used when no config file is
// found on the lookup path, matching every command/option default the
// original implementation's plugins assumed.
func Default() GlobalConfig {
	return GlobalConfig{
		Concurrency: DefaultConcurrency(),
		Tools: ToolsConfig{
			Nmap: NmapConfig{
				Command:      "nmap",
				BaseArgs:     []string{"-sT", "-Pn"},
				PortStrategy: StrategyTop,
				Ports:        PortSelection{TopPorts: intPtr(1000)},
				Limits:       Limits{TimeoutMS: 300000},
				Options: NmapOptions{
					TimingTemplate: "T4",
					OutputFormat:   "xml",
				},
			},
			Naabu: NaabuConfig{
				Command:      "naabu",
				PortStrategy: StrategyTop,
				Ports:        PortSelection{TopPorts: intPtr(1000)},
				Rate:         1000,
				Concurrency:  50,
				Limits:       Limits{TimeoutMS: 120000},
			},
			DNSEnum: DNSEnumConfig{
				Command: "dig",
				Limits:  Limits{TimeoutMS: 10000},
			},
			HTTPProbe: HTTPProbeConfig{
				Command:  "curl",
				BaseArgs: []string{"-s", "-I"},
				Limits:   Limits{TimeoutMS: 15000},
				Options: HTTPProbeOptions{
					ConnectTimeoutS: 5,
					MaxTimeS:        15,
					MaxRedirects:    5,
				},
				SSL: SSLOptions{VerifyCert: true},
			},
			HTTPX: HTTPXConfig{
				Command:  "httpx",
				BaseArgs: []string{"-silent"},
				Limits:   Limits{TimeoutMS: 15000, MaxRetries: 1},
				Options:  HTTPXOptions{TimeoutS: 10},
				Output:   HTTPXOutput{StatusCode: true, Title: true},
			},
		},
	}
}

func intPtr(v int) *int { return &v }

// Load tries path if non-empty, else the default lookup chain in order,
// falling back to Default() when nothing is found. The returned config is
// always validated.
func Load(path string) (GlobalConfig, error) {
	paths := defaultLookupPaths
	if path != "" {
		paths = []string{path}
	}

	for _, p := range paths {
		expanded, err := expandHome(p)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			continue
		}
		var cfg GlobalConfig
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return GlobalConfig{}, errors.Organizer("failed to parse config "+expanded, err)
		}
		if err := cfg.Validate(); err != nil {
			return GlobalConfig{}, err
		}
		return cfg, nil
	}

	if path != "" {
		return GlobalConfig{}, errors.Organizer("config file not found: "+path, nil)
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func expandHome(path string) (string, error) {
	if len(path) < 2 || path[:2] != "~/" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}
