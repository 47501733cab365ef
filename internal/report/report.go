// Package report writes certification results: the JSON record set plus
// CSV, HTML and PDF renderings, and an append-only JSONL journal.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
)

// Report is the document written at the end of a run.
type Report struct {
	RunID    string           `json:"runId"`
	Profile  string           `json:"profile"`
	Mode     string           `json:"mode"`
	Target   string           `json:"target,omitempty"`
	Device   string           `json:"device,omitempty"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
	Summary  Summary          `json:"summary"`
	Records  []certify.Record `json:"records"`
}

// New assembles a report and computes its summary.
func New(runID, profile, mode string, recs []certify.Record) Report {
	rep := Report{
		RunID:   runID,
		Profile: profile,
		Mode:    mode,
		Records: recs,
		Summary: Summarize(recs),
	}
	if len(recs) > 0 {
		rep.Started = recs[0].Ts
		rep.Finished = recs[len(recs)-1].Ts
	}
	return rep
}

func SaveJSON(rep Report, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func LoadJSON(path string) (Report, error) {
	var rep Report
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return rep, fmt.Errorf("decode report %s: %w", path, err)
	}
	return rep, nil
}

// Digest is the sha256 of the canonical JSON encoding of the records. It is
// printed on the PDF as text and QR code.
func Digest(rep Report) (string, error) {
	d := common.NewRecordDigest()
	for _, r := range rep.Records {
		if err := d.Add(r); err != nil {
			return "", err
		}
	}
	return d.Hex(), nil
}
