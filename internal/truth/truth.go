// Package truth loads the curated request/reply dataset a device is
// certified against, together with the per-profile exclusion list and the
// issue records used for re-runs.
package truth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
)

var ErrMalformed = errors.New("truth: malformed dataset")

// Row is one curated command template. Rows are read-only after loading.
type Row struct {
	CommandKey   string `yaml:"commandKey" json:"commandKey"`
	Category     string `yaml:"category" json:"category"`
	Description  string `yaml:"description" json:"description"`
	RequestHex   string `yaml:"requestHex" json:"requestHex"`
	ReplyHex     string `yaml:"replyHex,omitempty" json:"replyHex,omitempty"`
	SetCode      string `yaml:"setCode,omitempty" json:"setCode,omitempty"`
	ReplyCode    string `yaml:"replyCode,omitempty" json:"replyCode,omitempty"`
	Remarks      string `yaml:"remarks,omitempty" json:"remarks,omitempty"`
	Instructions string `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Transport    string `yaml:"transport,omitempty" json:"transport,omitempty"`

	request []byte
	reply   []byte
}

// Request returns a copy of the decoded request bytes.
func (r Row) Request() []byte {
	if r.request == nil && r.RequestHex != "" {
		b, _ := frame.ParseHex(r.RequestHex)
		return b
	}
	return append([]byte(nil), r.request...)
}

// Reply returns a copy of the decoded expected reply, or nil when the row
// carries no reply template.
func (r Row) Reply() []byte {
	if r.reply == nil {
		if strings.TrimSpace(r.ReplyHex) == "" {
			return nil
		}
		b, _ := frame.ParseHex(r.ReplyHex)
		return b
	}
	return append([]byte(nil), r.reply...)
}

// HasReply reports whether the row declares an expected reply.
func (r Row) HasReply() bool {
	return strings.TrimSpace(r.ReplyHex) != ""
}

// Text joins the free-text fields used by classification heuristics.
func (r Row) Text() string {
	return strings.Join([]string{r.Category, r.Description, r.Remarks}, " ")
}

// Dataset is the root of a truth file.
type Dataset struct {
	Version  string `yaml:"version" json:"version"`
	Device   string `yaml:"device" json:"device"`
	Commands []Row  `yaml:"commands" json:"commands"`

	// Warnings lists non-fatal findings such as checksum drift in templates.
	Warnings []string `yaml:"-" json:"-"`

	byKey map[string]int
}

// Load reads a dataset from path. Files ending in .json are decoded as JSON,
// everything else as YAML.
func Load(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read truth dataset: %w", err)
	}
	var ds Dataset
	if err := unmarshal(path, raw, &ds); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
	}
	if err := ds.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ds, nil
}

// Parse decodes and validates a YAML (or space-indented JSON) dataset
// document.
func Parse(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (ds *Dataset) validate() error {
	ds.byKey = make(map[string]int, len(ds.Commands))
	for i := range ds.Commands {
		row := &ds.Commands[i]
		row.CommandKey = strings.TrimSpace(row.CommandKey)
		if row.CommandKey == "" {
			return fmt.Errorf("%w: command %d has no commandKey", ErrMalformed, i)
		}
		if _, dup := ds.byKey[row.CommandKey]; dup {
			return fmt.Errorf("%w: duplicate commandKey %q", ErrMalformed, row.CommandKey)
		}
		if strings.TrimSpace(row.RequestHex) == "" {
			return fmt.Errorf("%w: %s has no requestHex", ErrMalformed, row.CommandKey)
		}
		req, err := frame.ParseHex(row.RequestHex)
		if err != nil {
			return fmt.Errorf("%w: %s requestHex: %v", ErrMalformed, row.CommandKey, err)
		}
		row.request = req
		if row.HasReply() {
			rep, err := frame.ParseHex(row.ReplyHex)
			if err != nil {
				return fmt.Errorf("%w: %s replyHex: %v", ErrMalformed, row.CommandKey, err)
			}
			row.reply = rep
		}
		row.SetCode = frame.NormalizeCode(row.SetCode)
		row.ReplyCode = frame.NormalizeCode(row.ReplyCode)
		if frame.HasSyncPrefix(req) && !frame.ChecksumValid(req) {
			w := fmt.Sprintf("%s: request checksum 0x%02X, computed 0x%02X", row.CommandKey, req[len(req)-1], frame.Checksum(req))
			ds.Warnings = append(ds.Warnings, w)
			common.Warnf("truth %s", w)
		}
		ds.byKey[row.CommandKey] = i
	}
	return nil
}

// Row looks a command up by key.
func (ds *Dataset) Row(key string) (Row, bool) {
	i, ok := ds.byKey[strings.TrimSpace(key)]
	if !ok {
		return Row{}, false
	}
	return ds.Commands[i], true
}

// BySetCode returns every row carrying code, in dataset order.
func (ds *Dataset) BySetCode(code string) []Row {
	code = frame.NormalizeCode(code)
	var out []Row
	for _, r := range ds.Commands {
		if r.SetCode == code {
			out = append(out, r)
		}
	}
	return out
}

// ByReplyCode returns the first row whose reply code (or set code, when the
// row has none) equals code.
func (ds *Dataset) ByReplyCode(code string) (Row, bool) {
	code = frame.NormalizeCode(code)
	for _, r := range ds.Commands {
		if r.ReplyCode == code || (r.ReplyCode == "" && r.SetCode == code) {
			return r, true
		}
	}
	return Row{}, false
}

// Rows returns the commands in dataset order.
func (ds *Dataset) Rows() []Row {
	return append([]Row(nil), ds.Commands...)
}

// NewDataset builds a validated dataset from rows. Used by tests and the
// simulator fixtures.
func NewDataset(device string, rows ...Row) (*Dataset, error) {
	ds := &Dataset{Version: "1", Device: device, Commands: append([]Row(nil), rows...)}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
