package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/config"
	"github.com/daveleo/exview-aio-protocol-tool/internal/synth"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errRunFailed is returned when a run completed but did not pass.
var errRunFailed = errors.New("certification did not pass")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps errors to process status: 1 for a failed certification or
// runtime error, 2 for configuration problems found before anything was sent.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *cases.ConfigError
	switch {
	case errors.As(err, &ce),
		errors.Is(err, truth.ErrMalformed),
		errors.Is(err, synth.ErrValueRange),
		errors.Is(err, config.ErrUnknownFormat):
		return 2
	}
	return 1
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	truthPath  string
	logLevel   string

	cfg      config.Config
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "certctl",
		Short:         "Certify an ExView AIO controller over its UDP protocol",
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "run configuration (.yaml, .yml or .toml)")
	pf.StringVar(&a.truthPath, "truth", "", "truth dataset (YAML or JSON); overrides the config")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(a),
		newReportCmd(a),
		newManifestCmd(a),
		newSimulateCmd(a),
	)
	return root
}

// load reads the config file, applies the persistent flags and installs a
// console logger. Run commands add the rotating file sink later.
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		cfg, err = config.Load(a.configPath)
		if err != nil {
			return err
		}
	}
	if a.truthPath != "" {
		cfg.Truth = a.truthPath
	}
	if a.logLevel != "" {
		cfg.Logs.Level = a.logLevel
	}
	a.cfg = cfg
	closeLog, err := common.SetupLogging(common.LogConfig{
		App:     "certctl",
		Level:   cfg.Logs.Level,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.closeLog = closeLog
	return nil
}

// logToFile adds the rotating log file under the configured log directory.
func (a *app) logToFile(cmd *cobra.Command, name string) error {
	if err := os.MkdirAll(a.cfg.Logs.Directory, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	closeLog, err := common.SetupLogging(common.LogConfig{
		App:        "certctl",
		Level:      a.cfg.Logs.Level,
		File:       filepath.Join(a.cfg.Logs.Directory, name),
		MaxSizeMB:  a.cfg.Logs.MaxSizeMB,
		MaxBackups: a.cfg.Logs.MaxBackups,
		MaxAgeDays: a.cfg.Logs.MaxAgeDays,
		Compress:   a.cfg.Logs.Compress,
		Console:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.closeLog = closeLog
	return nil
}

func (a *app) dataset() (*truth.Dataset, error) {
	if a.cfg.Truth == "" {
		return nil, &cases.ConfigError{Mode: "load", Err: cases.ErrNoDataset}
	}
	return truth.Load(a.cfg.Truth)
}
