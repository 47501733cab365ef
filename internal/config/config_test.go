package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "run.yaml", `
target:
  host: 192.168.1.50
  port: 5001
  bindPort: 5002
timing:
  timeout: 2s
  rate: 50ms
  setSettle: -1ms
truth: data/truth.yaml
exclusions: /etc/exview/exclusions.yaml
closedLoop: true
formats: [json, pdf]
signing:
  privateKey: keys/signer.pem
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.Addr() != "192.168.1.50:5001" || cfg.Target.BindPort != 5002 {
		t.Fatalf("target = %+v", cfg.Target)
	}
	if cfg.Truth != filepath.Join(dir, "data", "truth.yaml") {
		t.Fatalf("truth not resolved against config dir: %s", cfg.Truth)
	}
	if cfg.Signing.PrivateKey != filepath.Join(dir, "keys", "signer.pem") || cfg.Signing.Certificate != "" {
		t.Fatalf("signing = %+v", cfg.Signing)
	}
	if cfg.Exclusions != "/etc/exview/exclusions.yaml" {
		t.Fatalf("absolute path changed: %s", cfg.Exclusions)
	}
	opts := cfg.RunOptions()
	if opts.Timeout != 2*time.Second || opts.Rate != 50*time.Millisecond {
		t.Fatalf("timing = %+v", opts)
	}
	if opts.SetSettle >= 0 {
		t.Fatalf("negative settle must survive to disable the delay, got %v", opts.SetSettle)
	}
	if opts.ModeSettle != certify.DefaultModeSettle {
		t.Fatalf("mode settle default = %v", opts.ModeSettle)
	}
	if !opts.ClosedLoop || opts.IncludePower || opts.Profile != certify.DefaultProfile {
		t.Fatalf("flags = %+v", opts)
	}
	if len(cfg.Formats) != 2 {
		t.Fatalf("formats = %v", cfg.Formats)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "run.toml", `
profile = "exview-aio-lab"
include_power = true
output_dir = "out"

[target]
host = "10.0.0.9"
bind_port = 6000

[timing]
timeout = "750ms"
mode_settle = "3s"

[logs]
level = "debug"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.Port != DefaultPort || cfg.Target.BindPort != 6000 {
		t.Fatalf("target = %+v", cfg.Target)
	}
	if cfg.Timing.Timeout.Std() != 750*time.Millisecond || cfg.Timing.ModeSettle.Std() != 3*time.Second {
		t.Fatalf("timing = %+v", cfg.Timing)
	}
	if cfg.Profile != "exview-aio-lab" || !cfg.IncludePower {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.OutputDir != filepath.Join(dir, "out") || cfg.Logs.Directory != filepath.Join(dir, "out", "logs") {
		t.Fatalf("dirs = %s %s", cfg.OutputDir, cfg.Logs.Directory)
	}
	if cfg.Logs.Level != "debug" || cfg.Logs.MaxSizeMB != 25 {
		t.Fatalf("logs = %+v", cfg.Logs)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown extension", file: "run.ini", body: "x=1"},
		{name: "bad duration", file: "bad.yaml", body: "timing:\n  timeout: soon\n"},
		{name: "bad port", file: "port.yaml", body: "target:\n  port: 70000\n"},
		{name: "bad format", file: "fmt.toml", body: "formats = [\"docx\"]\n"},
		{name: "bad toml", file: "broken.toml", body: "[target\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(write(t, dir, tc.file, tc.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	_, err := Load(write(t, dir, "run.json", "{}"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Target.Addr() != "" {
		t.Fatalf("no host configured, Addr = %q", cfg.Target.Addr())
	}
	if cfg.Server.Port != DefaultListenPort || cfg.Timing.Rate.Std() != certify.DefaultRate {
		t.Fatalf("defaults = %+v", cfg)
	}
}
