package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
	"github.com/daveleo/exview-aio-protocol-tool/internal/report"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		outDir  string
		formats []string
		profile string
	)
	cmd := &cobra.Command{
		Use:   "report <cert.json|journal.jsonl>",
		Short: "Render a saved report or a run journal again",
		Long: `Re-renders a JSON report, or rebuilds one from the JSONL journal of an
interrupted run, into the requested formats with a fresh manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, journal, err := loadReport(args[0])
			if err != nil {
				return err
			}
			if profile != "" {
				rep.Profile = profile
			}
			if outDir == "" {
				outDir = a.cfg.OutputDir
			}
			if len(formats) == 0 {
				formats = a.cfg.Formats
			}
			var extra []string
			if journal != "" && filepath.Dir(journal) == filepath.Clean(outDir) {
				extra = append(extra, journal)
			}
			paths, err := report.Publish(cmd.Context(), rep, outDir, formats, extra...)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), rep, paths)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output directory (defaults to the configured output dir)")
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "report formats (json,csv,html,pdf)")
	cmd.Flags().StringVar(&profile, "profile", "", "profile recorded on a report rebuilt from a journal")
	return cmd
}

// loadReport reads a JSON report, or assembles one from a journal. The
// second result is the journal path when the input was one.
func loadReport(path string) (report.Report, string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".jsonl") {
		rep, err := report.LoadJSON(path)
		return rep, "", err
	}
	recs, err := report.ReadJournal(path)
	if err != nil {
		return report.Report{}, "", err
	}
	if len(recs) == 0 {
		return report.Report{}, "", fmt.Errorf("journal %s has no records", path)
	}
	return report.New(recs[0].RunID, certify.DefaultProfile, "journal", recs), filepath.Clean(path), nil
}
