// Package config handles loading and validating the config.toml configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration shared by all toolkit commands.
type Config struct {
	Output   OutputConfig   `toml:"output"`
	Disk     DiskConfig     `toml:"disk"`
	Services ServicesConfig `toml:"services"`
	PortScan PortScanConfig `toml:"portscan"`
	Firewall FirewallConfig `toml:"firewall"`
	Baseline BaselineConfig `toml:"baseline"`
	EventLog EventLogConfig `toml:"eventlog"`
	AD       ADConfig       `toml:"ad"`
	VCenter  VCenterConfig  `toml:"vcenter"`
	Veeam    VeeamConfig    `toml:"veeam"`
}

// OutputConfig configures report output behavior.
type OutputConfig struct {
	Dir         string `toml:"dir"`
	OpenBrowser bool   `toml:"open_browser"`
	Bundle      bool   `toml:"bundle"`
	HistoryDB   string `toml:"history_db"`
}

// DiskConfig holds disk monitor thresholds.
type DiskConfig struct {
	WarnPercent    float64  `toml:"warn_percent"`
	CritPercent    float64  `toml:"crit_percent"`
	ExcludeFSTypes []string `toml:"exclude_fstypes"`
}

// ServicesConfig lists the services the health check watches.
type ServicesConfig struct {
	// Critical services must be running; anything else is a finding.
	Critical []string `toml:"critical"`
	// AllowRestart permits the --restart flag to attempt a service restart.
	AllowRestart bool `toml:"allow_restart"`
}

// PortScanConfig holds port scanner defaults.
type PortScanConfig struct {
	TimeoutMS int    `toml:"timeout_ms"`
	Workers   int    `toml:"workers"`
	Ports     string `toml:"ports"`
	Banner    bool   `toml:"banner"`
}

// FirewallConfig tunes the rule audit.
type FirewallConfig struct {
	// RiskyPorts are flagged when exposed to any-source accept rules.
	RiskyPorts []int `toml:"risky_ports"`
}

// BaselineConfig tunes the security baseline check.
type BaselineConfig struct {
	// Skip lists check IDs excluded from scoring (accepted risk).
	Skip    []string `toml:"skip"`
	Profile string   `toml:"profile"`
}

// EventLogConfig tunes the event log analyzer.
type EventLogConfig struct {
	Hours     int      `toml:"hours"`
	MaxEvents int      `toml:"max_events"`
	Logs      []string `toml:"logs"`
}

// ADConfig holds Active Directory connection and report settings.
type ADConfig struct {
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	UseTLS           bool     `toml:"use_tls"`
	BindDN           string   `toml:"bind_dn"`
	Password         string   `toml:"password"`
	BaseDN           string   `toml:"base_dn"`
	StaleDays        int      `toml:"stale_days"`
	PrivilegedGroups []string `toml:"privileged_groups"`
}

// VCenterConfig holds vCenter connection and report thresholds.
type VCenterConfig struct {
	URL          string `toml:"url"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Insecure     bool   `toml:"insecure"`
	CPUThreshold int32  `toml:"cpu_threshold"`
	MemThreshold int32  `toml:"memory_threshold_mb"`
}

// VeeamConfig holds the backup server API settings.
type VeeamConfig struct {
	URL      string `toml:"url"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Insecure bool   `toml:"insecure"`
	RPOHours int    `toml:"rpo_hours"`
}

// Load reads a config.toml file and returns a Config with defaults applied.
// A missing file is not an error: every command can run on defaults plus
// flags, and connection-backed commands validate their own section.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	// Environment variable overrides for sensitive values
	if v := os.Getenv("ADMINTOOL_AD_PASSWORD"); v != "" {
		cfg.AD.Password = v
	}
	if v := os.Getenv("ADMINTOOL_VCENTER_PASSWORD"); v != "" {
		cfg.VCenter.Password = v
	}
	if v := os.Getenv("ADMINTOOL_VEEAM_PASSWORD"); v != "" {
		cfg.Veeam.Password = v
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:       "reports",
			HistoryDB: "admintool.db",
		},
		Disk: DiskConfig{
			WarnPercent:    80,
			CritPercent:    90,
			ExcludeFSTypes: []string{"squashfs", "overlay", "tmpfs", "devtmpfs", "iso9660"},
		},
		PortScan: PortScanConfig{
			TimeoutMS: 1000,
			Workers:   100,
			Ports:     "common",
		},
		Firewall: FirewallConfig{
			RiskyPorts: []int{23, 135, 139, 445, 3389, 5900},
		},
		Baseline: BaselineConfig{Profile: "server"},
		EventLog: EventLogConfig{
			Hours:     24,
			MaxEvents: 5000,
			// Security requires an elevated session; its query failure
			// is absorbed per channel when running unprivileged.
			Logs: []string{"System", "Application", "Security"},
		},
		AD: ADConfig{
			Port:      389,
			StaleDays: 90,
			PrivilegedGroups: []string{
				"Domain Admins", "Enterprise Admins", "Schema Admins", "Administrators",
			},
		},
		VCenter: VCenterConfig{
			CPUThreshold: 8,
			MemThreshold: 32768,
		},
		Veeam: VeeamConfig{RPOHours: 24},
	}
}

func (c *Config) normalize() error {
	if c.Output.Dir == "" {
		c.Output.Dir = "reports"
	}
	if c.Disk.WarnPercent <= 0 || c.Disk.WarnPercent > 100 {
		return fmt.Errorf("disk.warn_percent must be in (0,100], got %v", c.Disk.WarnPercent)
	}
	if c.Disk.CritPercent <= c.Disk.WarnPercent || c.Disk.CritPercent > 100 {
		return fmt.Errorf("disk.crit_percent must be above warn_percent and at most 100, got %v", c.Disk.CritPercent)
	}
	if c.PortScan.Workers <= 0 {
		c.PortScan.Workers = 100
	}
	if c.PortScan.TimeoutMS <= 0 {
		c.PortScan.TimeoutMS = 1000
	}
	if c.EventLog.Hours <= 0 {
		c.EventLog.Hours = 24
	}
	if c.Veeam.RPOHours <= 0 {
		c.Veeam.RPOHours = 24
	}
	c.Baseline.Profile = strings.ToLower(c.Baseline.Profile)
	switch c.Baseline.Profile {
	case "", "server", "workstation":
	default:
		return fmt.Errorf("unsupported baseline.profile: %q", c.Baseline.Profile)
	}
	return nil
}

// ValidateAD checks that the AD section is complete enough to connect.
func (c *Config) ValidateAD() error {
	if c.AD.Host == "" {
		return fmt.Errorf("ad.host is required (domain controller hostname or IP)")
	}
	if c.AD.BindDN == "" {
		return fmt.Errorf("ad.bind_dn is required")
	}
	if c.AD.Password == "" {
		return fmt.Errorf("ad.password is required (or set ADMINTOOL_AD_PASSWORD)")
	}
	if c.AD.BaseDN == "" {
		return fmt.Errorf("ad.base_dn is required (e.g. DC=corp,DC=example,DC=com)")
	}
	return nil
}

// ValidateVCenter checks that the vCenter section is complete enough to connect.
func (c *Config) ValidateVCenter() error {
	if c.VCenter.URL == "" {
		return fmt.Errorf("vcenter.url is required (e.g. https://vcenter.example.com/sdk)")
	}
	if c.VCenter.User == "" {
		return fmt.Errorf("vcenter.user is required")
	}
	if c.VCenter.Password == "" {
		return fmt.Errorf("vcenter.password is required (or set ADMINTOOL_VCENTER_PASSWORD)")
	}
	return nil
}

// ValidateVeeam checks that the backup server section is complete enough to connect.
func (c *Config) ValidateVeeam() error {
	if c.Veeam.URL == "" {
		return fmt.Errorf("veeam.url is required (e.g. https://veeam.example.com:9419)")
	}
	if c.Veeam.User == "" {
		return fmt.Errorf("veeam.user is required")
	}
	if c.Veeam.Password == "" {
		return fmt.Errorf("veeam.password is required (or set ADMINTOOL_VEEAM_PASSWORD)")
	}
	return nil
}
