package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/manifest"
	"github.com/daveleo/exview-aio-protocol-tool/internal/report"
	"github.com/daveleo/exview-aio-protocol-tool/internal/transport"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

// Server runs certification requests against one device, one run at a time,
// and serves the reports those runs leave behind.
type Server struct {
	opts    Options
	log     zerolog.Logger
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer validates opts and creates the reports directory.
func NewServer(opts Options) (*Server, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.ReportsDir, 0o755); err != nil {
		return nil, err
	}
	if len(opts.Formats) == 0 {
		opts.Formats = report.Formats
	}
	return &Server{opts: opts, log: common.Logger("certd")}, nil
}

// Close cancels the active run, if any.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *Server) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// runRequest is the body of POST /runs.
type runRequest struct {
	Mode         string              `json:"mode"`
	Selector     string              `json:"selector,omitempty"`
	Value        *int                `json:"value,omitempty"`
	Profile      string              `json:"profile,omitempty"`
	IncludePower *bool               `json:"includePower,omitempty"`
	ClosedLoop   *bool               `json:"closedLoop,omitempty"`
	Issues       []truth.IssueRecord `json:"issues,omitempty"`
	Formats      []string            `json:"formats,omitempty"`
}

func (req runRequest) caseMode() (cases.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "single":
		return cases.Single{Selector: req.Selector, Value: req.Value}, nil
	case "suite":
		return cases.Suite{}, nil
	case "sanity":
		return cases.Sanity{}, nil
	case "issues":
		if len(req.Issues) == 0 {
			return nil, errors.New("issues mode needs issue records")
		}
		return cases.Issues{Records: req.Issues}, nil
	case "":
		return nil, errors.New("mode required")
	}
	return nil, fmt.Errorf("unknown mode %q", req.Mode)
}

// runResult is the last NDJSON object of a run stream.
type runResult struct {
	Done    bool           `json:"done"`
	RunID   string         `json:"runId"`
	Profile string         `json:"profile"`
	Mode    string         `json:"mode"`
	Summary report.Summary `json:"summary"`
	Reports []string       `json:"reports,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	mode, err := req.caseMode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cs, err := cases.Build(mode, cases.Inputs{Dataset: s.opts.Dataset})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	formats := s.opts.Formats
	if len(req.Formats) > 0 {
		formats = req.Formats
	}
	if err := checkFormats(formats); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		http.Error(w, "a run is already active", http.StatusConflict)
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.setCancel(cancel)
	defer s.setCancel(nil)

	ep, err := transport.Open(ctx, s.opts.Target)
	if err != nil {
		http.Error(w, fmt.Sprintf("open transport: %v", err), http.StatusBadGateway)
		return
	}
	defer ep.Close()

	opts := s.opts.Run
	opts.RunID = uuid.NewString()
	if req.Profile != "" {
		opts.Profile = req.Profile
	}
	if req.IncludePower != nil {
		opts.IncludePower = *req.IncludePower
	}
	if req.ClosedLoop != nil {
		opts.ClosedLoop = *req.ClosedLoop
	}
	opts.Exclusions = s.opts.Exclusions
	opts.Gate = certify.AutoGate{}
	opts.Metrics = common.NewMetrics()

	journal := report.NewJournal(filepath.Join(s.opts.ReportsDir, report.FileName(report.Report{RunID: opts.RunID}, "jsonl")))
	stream := newRecordStream(w)
	opts.Sinks = []certify.RecordSink{journal, stream}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Run-ID", opts.RunID)
	w.WriteHeader(http.StatusOK)

	s.log.Info().Str("run", opts.RunID).Str("mode", cases.ModeName(mode)).Int("cases", len(cs)).
		Str("target", ep.Target().String()).Msg("run started")
	recs, runErr := certify.NewRunner(ep, opts).Run(ctx, cs)

	rep := report.New(opts.RunID, opts.Profile, cases.ModeName(mode), recs)
	rep.Target = ep.Target().String()
	rep.Device = s.opts.Dataset.Device
	result := runResult{
		Done:    true,
		RunID:   rep.RunID,
		Profile: rep.Profile,
		Mode:    rep.Mode,
		Summary: rep.Summary,
	}
	names, err := s.writeArtifacts(context.WithoutCancel(ctx), rep, journal.Path(), formats)
	result.Reports = names
	switch {
	case runErr != nil:
		result.Error = runErr.Error()
	case err != nil:
		result.Error = err.Error()
	}
	snap := opts.Metrics.Snapshot()
	s.log.Info().Str("run", rep.RunID).Int("records", len(recs)).Bool("pass", rep.Summary.Pass).
		Dur("elapsed", snap.Duration).Dur("avgLatency", snap.AvgLatency).Str("error", result.Error).Msg("run finished")
	if err := stream.Finish(result); err != nil {
		s.log.Warn().Err(err).Str("run", rep.RunID).Int("streamed", stream.Sent()).Msg("client gone before run result")
	}
}

func (s *Server) writeArtifacts(ctx context.Context, rep report.Report, journalPath string, formats []string) ([]string, error) {
	paths, err := report.Publish(ctx, rep, s.opts.ReportsDir, formats, journalPath)
	if err != nil {
		return nil, err
	}
	if len(s.opts.SigningKey) > 0 {
		sig, err := manifest.SignFile(manifestOf(paths), s.opts.SigningKey)
		if err != nil {
			return nil, err
		}
		paths = append(paths, sig)
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names, nil
}

func manifestOf(paths []string) string {
	for _, p := range paths {
		if strings.HasSuffix(p, ".manifest.json") {
			return p
		}
	}
	return ""
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Profiles(s.opts.Exclusions, s.opts.Run.Profile))
}

// ReportRef describes one file in the reports directory.
type ReportRef struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Modified    time.Time `json:"modified"`
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := os.ReadDir(s.opts.ReportsDir)
	if err != nil {
		http.Error(w, fmt.Sprintf("list reports: %v", err), http.StatusInternalServerError)
		return
	}
	refs := []ReportRef{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		refs = append(refs, ReportRef{
			Name:        e.Name(),
			Size:        info.Size(),
			ContentType: guessContentType(e.Name()),
			Modified:    info.ModTime().UTC(),
		})
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/reports/")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(filepath.Join(s.opts.ReportsDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", guessContentType(name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	io.Copy(w, f)
}

func checkFormats(formats []string) error {
	for _, f := range formats {
		known := false
		for _, k := range report.Formats {
			if strings.EqualFold(f, k) {
				known = true
			}
		}
		if !known {
			return fmt.Errorf("unknown report format %q", f)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".jws":
		return "application/jose+json"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	case ".csv":
		return "text/csv"
	case ".html":
		return "text/html; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
