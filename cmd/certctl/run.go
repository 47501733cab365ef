package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/config"
	"github.com/daveleo/exview-aio-protocol-tool/internal/report"
	"github.com/daveleo/exview-aio-protocol-tool/internal/transport"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

// runFlags mirror the config file; only flags set on the command line
// override it.
type runFlags struct {
	host         string
	port         int
	bindHost     string
	bindPort     int
	timeout      time.Duration
	rate         time.Duration
	setSettle    time.Duration
	modeSettle   time.Duration
	profile      string
	exclusions   string
	includePower bool
	closedLoop   bool
	interactive  bool
	outputDir    string
	formats      []string
	progress     bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute certification cases against a device",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.host, "host", "", "device host or IP")
	pf.IntVar(&f.port, "port", 0, "device UDP port")
	pf.StringVar(&f.bindHost, "bind-host", "", "local address to bind")
	pf.IntVar(&f.bindPort, "bind-port", 0, "local UDP port (0 picks one)")
	pf.DurationVar(&f.timeout, "timeout", 0, "reply timeout per case")
	pf.DurationVar(&f.rate, "rate", 0, "minimum gap between cases (negative disables)")
	pf.DurationVar(&f.setSettle, "set-settle", 0, "gap after set commands (negative disables)")
	pf.DurationVar(&f.modeSettle, "mode-settle", 0, "gap after mode changes (negative disables)")
	pf.StringVar(&f.profile, "profile", "", "device profile for exclusions and known limitations")
	pf.StringVar(&f.exclusions, "exclusions", "", "suite exclusions file")
	pf.BoolVar(&f.includePower, "include-power", false, "send power commands in the manual stage")
	pf.BoolVar(&f.closedLoop, "closed-loop", false, "read numeric sets back through their query code")
	pf.BoolVar(&f.interactive, "interactive", false, "ask before each manually staged case")
	pf.StringVar(&f.outputDir, "output-dir", "", "directory for reports")
	pf.StringSliceVar(&f.formats, "formats", nil, "report formats (json,csv,html,pdf)")
	pf.BoolVar(&f.progress, "progress", false, "print a progress line while running")

	var value int
	single := &cobra.Command{
		Use:   "single <command-key|set-code>",
		Short: "Run one command; numeric set codes need --value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := cases.Single{Selector: args[0]}
			if cmd.Flags().Changed("value") {
				v := value
				m.Value = &v
			}
			return a.run(cmd, f, m)
		},
	}
	single.Flags().IntVar(&value, "value", 0, "value 0..100 for numeric set codes")

	suite := &cobra.Command{
		Use:   "suite",
		Short: "Run every truth row with full 0..100 sweeps for numeric codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, cases.Suite{})
		},
	}
	sanity := &cobra.Command{
		Use:   "sanity",
		Short: "Run the short smoke set: source switch, volume and brightness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, cases.Sanity{})
		},
	}
	issues := &cobra.Command{
		Use:   "issues [report.json]",
		Short: "Replay the failing records of a previous report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Issues
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return &cases.ConfigError{Mode: "issues", Err: errors.New("no issues file given")}
			}
			return a.run(cmd, f, cases.Issues{Path: path})
		},
	}
	cmd.AddCommand(single, suite, sanity, issues)
	return cmd
}

func (a *app) applyRunFlags(cmd *cobra.Command, f *runFlags) {
	fs := cmd.Flags()
	c := &a.cfg
	if fs.Changed("host") {
		c.Target.Host = f.host
	}
	if fs.Changed("port") {
		c.Target.Port = f.port
	}
	if fs.Changed("bind-host") {
		c.Target.BindHost = f.bindHost
	}
	if fs.Changed("bind-port") {
		c.Target.BindPort = f.bindPort
	}
	if fs.Changed("timeout") {
		c.Timing.Timeout = durationOf(f.timeout)
	}
	if fs.Changed("rate") {
		c.Timing.Rate = durationOf(f.rate)
	}
	if fs.Changed("set-settle") {
		c.Timing.SetSettle = durationOf(f.setSettle)
	}
	if fs.Changed("mode-settle") {
		c.Timing.ModeSettle = durationOf(f.modeSettle)
	}
	if fs.Changed("profile") {
		c.Profile = f.profile
	}
	if fs.Changed("exclusions") {
		c.Exclusions = f.exclusions
	}
	if fs.Changed("include-power") {
		c.IncludePower = f.includePower
	}
	if fs.Changed("closed-loop") {
		c.ClosedLoop = f.closedLoop
	}
	if fs.Changed("interactive") {
		c.Interactive = f.interactive
	}
	if fs.Changed("output-dir") {
		c.OutputDir = f.outputDir
		c.Logs.Directory = filepath.Join(f.outputDir, "logs")
	}
	if fs.Changed("formats") {
		c.Formats = f.formats
	}
}

func durationOf(d time.Duration) config.Duration { return config.Duration(d) }

func (a *app) run(cmd *cobra.Command, f *runFlags, mode cases.Mode) error {
	a.applyRunFlags(cmd, f)
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	cfg := a.cfg
	if cfg.Target.Addr() == "" {
		return &cases.ConfigError{Mode: cases.ModeName(mode), Err: errors.New("no device host: set --host or target.host")}
	}
	ds, err := a.dataset()
	if err != nil {
		return err
	}
	cs, err := cases.Build(mode, cases.Inputs{Dataset: ds})
	if err != nil {
		return err
	}
	if err := a.logToFile(cmd, "certctl.log"); err != nil {
		return err
	}

	opts := cfg.RunOptions()
	opts.RunID = uuid.NewString()
	if cfg.Exclusions != "" {
		if opts.Exclusions, err = truth.LoadExclusions(cfg.Exclusions); err != nil {
			return err
		}
	}
	opts.Gate = certify.AutoGate{}
	if cfg.Interactive {
		opts.Gate = certify.NewPromptGate(os.Stdin, cmd.ErrOrStderr())
	}
	opts.Metrics = common.NewMetrics()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}
	journal := report.NewJournal(filepath.Join(cfg.OutputDir, report.FileName(report.Report{RunID: opts.RunID}, "jsonl")))
	out := cmd.OutOrStdout()
	opts.Sinks = []certify.RecordSink{journal, certify.SinkFunc(func(r certify.Record) error {
		printRecord(out, r)
		return nil
	})}
	if f.progress {
		stop := common.StartProgressPrinter(cmd.ErrOrStderr(), opts.Metrics, time.Second)
		defer stop()
	}

	topts := transport.Options{Target: cfg.Target.Addr(), BindHost: cfg.Target.BindHost, BindPort: cfg.Target.BindPort}
	common.Logf("run %s: %s mode, %d case(s) against %s", opts.RunID, cases.ModeName(mode), len(cs), topts.Target)
	recs, runID, runErr := certify.RunUDP(cmd.Context(), topts, cs, opts)
	if runID == "" {
		runID = opts.RunID
	}
	if runErr != nil && len(recs) == 0 {
		return runErr
	}

	rep := report.New(runID, opts.Profile, cases.ModeName(mode), recs)
	rep.Target = topts.Target
	rep.Device = ds.Device
	paths, err := report.Publish(context.WithoutCancel(cmd.Context()), rep, cfg.OutputDir, cfg.Formats, journal.Path())
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	if cfg.Signing.PrivateKey != "" {
		sig, err := signManifest(manifestPath(paths), cfg.Signing.PrivateKey)
		if err != nil {
			return err
		}
		paths = append(paths, sig)
	}
	printSummary(out, rep, paths)
	if runErr != nil {
		return runErr
	}
	if !rep.Summary.Pass {
		return errRunFailed
	}
	return nil
}

func printRecord(w io.Writer, r certify.Record) {
	label := r.CommandKey
	if r.Value != nil {
		label = fmt.Sprintf("%s=%d", label, *r.Value)
	}
	line := fmt.Sprintf("%4d %-8s %-28s %-36s", r.Seq, r.Status, r.MatchType, label)
	if r.Note != "" {
		line += "  " + r.Note
	} else if r.SkipReason != "" {
		line += "  " + r.SkipReason
	}
	fmt.Fprintln(w, strings.TrimRight(line, " "))
}

func printSummary(w io.Writer, rep report.Report, paths []string) {
	s := rep.Summary
	verdict := "PASS"
	if !s.Pass {
		verdict = "FAIL"
	}
	fmt.Fprintf(w, "\nrun %s: %s  total %d  pass %d  fail %d  no-reply %d  skipped %d\n",
		rep.RunID, verdict, s.Total, s.Passed, s.Failed, s.NoReply, s.Skipped)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
