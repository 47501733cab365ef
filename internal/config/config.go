// Package config loads certctl/certd settings from YAML or TOML. The format
// is chosen by file extension; relative paths are resolved against the
// directory of the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
	"github.com/daveleo/exview-aio-protocol-tool/internal/report"
)

const (
	DefaultPort       = 5000
	DefaultListenPort = 8080
)

var ErrUnknownFormat = errors.New("config: unknown config file format")

// Duration accepts "1500ms"-style strings in both YAML and TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Target struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	BindHost string `yaml:"bindHost" toml:"bind_host"`
	BindPort int    `yaml:"bindPort" toml:"bind_port"`
}

// Addr is host:port, or "" when no host is configured.
func (t Target) Addr() string {
	if strings.TrimSpace(t.Host) == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

type Timing struct {
	Timeout    Duration `yaml:"timeout" toml:"timeout"`
	Rate       Duration `yaml:"rate" toml:"rate"`
	SetSettle  Duration `yaml:"setSettle" toml:"set_settle"`
	ModeSettle Duration `yaml:"modeSettle" toml:"mode_settle"`
}

type Logs struct {
	Level      string `yaml:"level" toml:"level"`
	Directory  string `yaml:"directory" toml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB" toml:"max_size_mb"`
	MaxAgeDays int    `yaml:"maxAgeDays" toml:"max_age_days"`
	MaxBackups int    `yaml:"maxBackups" toml:"max_backups"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// Signing names the RSA key used to sign run manifests and the
// certificate used to verify them.
type Signing struct {
	PrivateKey  string `yaml:"privateKey" toml:"private_key"`
	Certificate string `yaml:"certificate" toml:"certificate"`
}

// Server configures certd. There is no write timeout: a run response
// streams for as long as the run.
type Server struct {
	Port        int      `yaml:"port" toml:"port"`
	ReadTimeout Duration `yaml:"readTimeout" toml:"read_timeout"`
}

type Config struct {
	Target       Target   `yaml:"target" toml:"target"`
	Timing       Timing   `yaml:"timing" toml:"timing"`
	Truth        string   `yaml:"truth" toml:"truth"`
	Exclusions   string   `yaml:"exclusions" toml:"exclusions"`
	Issues       string   `yaml:"issues" toml:"issues"`
	Profile      string   `yaml:"profile" toml:"profile"`
	IncludePower bool     `yaml:"includePower" toml:"include_power"`
	ClosedLoop   bool     `yaml:"closedLoop" toml:"closed_loop"`
	Interactive  bool     `yaml:"interactive" toml:"interactive"`
	OutputDir    string   `yaml:"outputDir" toml:"output_dir"`
	Formats      []string `yaml:"formats" toml:"formats"`
	Signing      Signing  `yaml:"signing" toml:"signing"`
	Logs         Logs     `yaml:"logs" toml:"logs"`
	Server       Server   `yaml:"server" toml:"server"`
}

// Default returns a config with every default applied.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path (.yaml, .yml or .toml), fills defaults and resolves
// relative paths.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	cfg.resolvePaths(filepath.Dir(path))
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) resolvePaths(baseDir string) {
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	c.Truth = resolve(c.Truth)
	c.Exclusions = resolve(c.Exclusions)
	c.Issues = resolve(c.Issues)
	c.OutputDir = resolve(c.OutputDir)
	c.Logs.Directory = resolve(c.Logs.Directory)
	c.Signing.PrivateKey = resolve(c.Signing.PrivateKey)
	c.Signing.Certificate = resolve(c.Signing.Certificate)
}

func (c *Config) applyDefaults() {
	if c.Target.Port == 0 {
		c.Target.Port = DefaultPort
	}
	if c.Profile == "" {
		c.Profile = certify.DefaultProfile
	}
	if c.Timing.Timeout == 0 {
		c.Timing.Timeout = Duration(certify.DefaultTimeout)
	}
	if c.Timing.Rate == 0 {
		c.Timing.Rate = Duration(certify.DefaultRate)
	}
	if c.Timing.SetSettle == 0 {
		c.Timing.SetSettle = Duration(certify.DefaultSetSettle)
	}
	if c.Timing.ModeSettle == 0 {
		c.Timing.ModeSettle = Duration(certify.DefaultModeSettle)
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(".", "results")
	}
	if len(c.Formats) == 0 {
		c.Formats = append([]string(nil), report.Formats...)
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
	if c.Logs.Directory == "" {
		c.Logs.Directory = filepath.Join(c.OutputDir, "logs")
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 25
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = 7
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 5
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultListenPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(60 * time.Second)
	}
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Target.Port < 1 || c.Target.Port > 65535 {
		return fmt.Errorf("config: target port %d out of range", c.Target.Port)
	}
	if c.Target.BindPort < 0 || c.Target.BindPort > 65535 {
		return fmt.Errorf("config: bind port %d out of range", c.Target.BindPort)
	}
	known := map[string]bool{}
	for _, f := range report.Formats {
		known[f] = true
	}
	for _, f := range c.Formats {
		if !known[strings.ToLower(f)] {
			return fmt.Errorf("config: unknown report format %q", f)
		}
	}
	return nil
}

// RunOptions maps the timing and policy settings onto runner options.
func (c Config) RunOptions() certify.Options {
	return certify.Options{
		Profile:      c.Profile,
		Timeout:      c.Timing.Timeout.Std(),
		Rate:         c.Timing.Rate.Std(),
		SetSettle:    c.Timing.SetSettle.Std(),
		ModeSettle:   c.Timing.ModeSettle.Std(),
		IncludePower: c.IncludePower,
		ClosedLoop:   c.ClosedLoop,
	}
}
