package truth

import (
	"fmt"
	"os"

	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
)

// IssueRecord is the subset of a certification record needed to re-run it.
type IssueRecord struct {
	CommandKey string `yaml:"commandKey" json:"commandKey"`
	SetCode    string `yaml:"setCode" json:"setCode"`
	Command    string `yaml:"command" json:"command,omitempty"`
	Value      *int   `yaml:"value" json:"value"`
	Status     string `yaml:"status" json:"status"`
	MatchType  string `yaml:"matchType" json:"matchType"`
}

// Code returns the set code, falling back to the legacy command field.
func (r IssueRecord) Code() string {
	if r.SetCode != "" {
		return frame.NormalizeCode(r.SetCode)
	}
	return frame.NormalizeCode(r.Command)
}

// LoadIssues reads a previous report ({records: [...]}) as JSON or YAML by
// extension. Extra record fields are ignored.
func LoadIssues(path string) ([]IssueRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issues: %w", err)
	}
	var doc struct {
		Records []IssueRecord `yaml:"records" json:"records"`
	}
	if err := unmarshal(path, raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: issues: %v", ErrMalformed, err)
	}
	return doc.Records, nil
}
