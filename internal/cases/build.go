package cases

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/synth"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

var (
	ErrBadSelector   = errors.New("cases: selector matches no command key or set code")
	ErrValueRequired = errors.New("cases: numeric command needs a value")
	ErrNoSanityRow   = errors.New("cases: dataset lacks a row required by sanity mode")
	ErrNoDataset     = errors.New("cases: no truth dataset loaded")
)

// ConfigError is returned for any problem detected while building cases.
// Nothing has been transmitted when it is returned.
type ConfigError struct {
	Mode string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s mode: %v", e.Mode, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Mode selects which cases a run executes. The set of modes is closed:
// Single, Suite, Sanity and Issues.
type Mode interface {
	modeName() string
}

// Single runs one command selected by command key or set code. Numeric set
// codes require Value.
type Single struct {
	Selector string
	Value    *int
}

// Suite runs every truth row, with a full 0..100 sweep per numeric code.
type Suite struct{}

// Sanity runs a source switch plus volume and brightness at 50.
type Sanity struct{}

// Issues replays failing records from a previous report. Records, when set,
// takes precedence over Path.
type Issues struct {
	Path    string
	Records []truth.IssueRecord
}

func (Single) modeName() string { return "single" }
func (Suite) modeName() string  { return "suite" }
func (Sanity) modeName() string { return "sanity" }
func (Issues) modeName() string { return "issues" }

// ModeName returns the lower-case name of m.
func ModeName(m Mode) string {
	if m == nil {
		return ""
	}
	return m.modeName()
}

// Inputs is everything Build needs besides the mode.
type Inputs struct {
	Dataset *truth.Dataset
	// ValueIndex overrides synth.NumericCodes.
	ValueIndex map[string]synth.Numeric
}

type builder struct {
	ds    *truth.Dataset
	specs map[string]synth.Spec
}

// Build returns the ordered cases for mode.
func Build(mode Mode, in Inputs) ([]Case, error) {
	name := ModeName(mode)
	wrap := func(err error) error {
		var ce *ConfigError
		if errors.As(err, &ce) {
			return err
		}
		return &ConfigError{Mode: name, Err: err}
	}
	if in.Dataset == nil {
		return nil, wrap(ErrNoDataset)
	}
	specs, err := synth.BuildSpecs(in.Dataset.Commands, in.ValueIndex)
	if err != nil {
		return nil, wrap(err)
	}
	b := &builder{ds: in.Dataset, specs: specs}

	var out []Case
	switch m := mode.(type) {
	case Single:
		out, err = b.single(m)
	case Suite:
		out, err = b.suite()
	case Sanity:
		out, err = b.sanity()
	case Issues:
		out, err = b.issues(m)
	default:
		err = fmt.Errorf("unsupported mode %T", mode)
	}
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

func (b *builder) single(m Single) ([]Case, error) {
	sel := strings.TrimSpace(m.Selector)
	if sel == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrBadSelector)
	}
	row, ok := b.ds.Row(sel)
	if !ok {
		rows := b.ds.BySetCode(sel)
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadSelector, sel)
		}
		row = rows[0]
	}
	if spec, numeric := b.specs[row.SetCode]; numeric {
		if m.Value == nil {
			return nil, fmt.Errorf("%w: %s", ErrValueRequired, row.SetCode)
		}
		c, err := b.synthCase(spec, *m.Value, SourceSynth)
		if err != nil {
			return nil, err
		}
		return []Case{c}, nil
	}
	if m.Value != nil {
		return nil, fmt.Errorf("%w: %s", synth.ErrNotNumeric, sel)
	}
	return []Case{b.rowCase(row, SourceTruth)}, nil
}

func (b *builder) suite() ([]Case, error) {
	var out []Case
	swept := make(map[string]bool)
	for _, row := range b.ds.Commands {
		spec, numeric := b.specs[row.SetCode]
		if !numeric {
			out = append(out, b.rowCase(row, SourceTruth))
			continue
		}
		if swept[row.SetCode] {
			continue
		}
		swept[row.SetCode] = true
		for v := synth.MinValue; v <= synth.MaxValue; v++ {
			c, err := b.synthCase(spec, v, SourceSynth)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return stageManual(out), nil
}

func (b *builder) sanity() ([]Case, error) {
	var source *truth.Row
	for i, row := range b.ds.Commands {
		if row.SetCode == "C210" {
			source = &b.ds.Commands[i]
			break
		}
	}
	for i, row := range b.ds.Commands {
		if source != nil {
			break
		}
		if _, numeric := b.specs[row.SetCode]; numeric {
			continue
		}
		if IsSet(row.SetCode, row.Description) && common.HasPhrase(common.NormalizeText(row.Category+" "+row.Description), []string{"source"}) {
			source = &b.ds.Commands[i]
		}
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source selection", ErrNoSanityRow)
	}
	out := []Case{b.rowCase(*source, SourceSanity)}
	for _, code := range []string{"C203", "C201"} {
		spec, ok := b.specs[code]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoSanityRow, code)
		}
		c, err := b.synthCase(spec, 50, SourceSanity)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

type issueKey struct {
	commandKey string
	setCode    string
	value      string
}

// NeedsReplay reports whether a prior record should be re-run.
func NeedsReplay(r truth.IssueRecord) bool {
	switch strings.ToUpper(r.Status) {
	case "FAIL", "NO_REPLY", "SKIPPED":
		return true
	}
	return strings.Contains(strings.ToUpper(r.MatchType), "MISMATCH")
}

func (b *builder) issues(m Issues) ([]Case, error) {
	records := m.Records
	if records == nil {
		if m.Path == "" {
			return nil, fmt.Errorf("%w: issues mode needs a file", ErrBadSelector)
		}
		var err error
		records, err = truth.LoadIssues(m.Path)
		if err != nil {
			return nil, err
		}
	}
	seen := make(map[issueKey]bool)
	var out []Case
	for _, rec := range records {
		if !NeedsReplay(rec) {
			continue
		}
		key := issueKey{commandKey: strings.TrimSpace(rec.CommandKey), setCode: rec.Code()}
		if rec.Value != nil {
			key.value = fmt.Sprint(*rec.Value)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		c, err := b.resolveIssue(rec)
		if err != nil {
			common.Warnf("issues: dropping %s/%s: %v", key.commandKey, key.setCode, err)
			continue
		}
		c.Source = SourceIssues
		out = append(out, c)
	}
	return stageManual(out), nil
}

func (b *builder) resolveIssue(rec truth.IssueRecord) (Case, error) {
	var (
		row   truth.Row
		found bool
	)
	if rec.CommandKey != "" {
		row, found = b.ds.Row(rec.CommandKey)
	}
	code := rec.Code()
	if !found && code != "" {
		if rows := b.ds.BySetCode(code); len(rows) > 0 {
			row, found = rows[0], true
		}
	}
	if !found {
		return Case{}, fmt.Errorf("%w: %q/%q", ErrBadSelector, rec.CommandKey, code)
	}
	if spec, numeric := b.specs[row.SetCode]; numeric {
		if rec.Value == nil {
			return Case{}, fmt.Errorf("%w: %s", ErrValueRequired, row.SetCode)
		}
		return b.synthCase(spec, *rec.Value, SourceIssues)
	}
	return b.rowCase(row, SourceIssues), nil
}

// stageManual moves disruptive cases to the end, preserving relative order.
func stageManual(in []Case) []Case {
	out := make([]Case, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].IsDisruptive && out[j].IsDisruptive
	})
	return out
}

func (b *builder) rowCase(row truth.Row, src Source) Case {
	req := row.Request()
	c := Case{
		Source:       src,
		Category:     row.Category,
		Description:  row.Description,
		CommandKey:   row.CommandKey,
		SetCode:      row.SetCode,
		ReplyCode:    row.ReplyCode,
		Remarks:      row.Remarks,
		Instructions: row.Instructions,
		request:      req,
		expected:     row.Reply(),
	}
	b.flag(&c, row, req)
	return c
}

func (b *builder) synthCase(spec synth.Spec, value int, src Source) (Case, error) {
	s, err := synth.Synthesize(spec, value)
	if err != nil {
		return Case{}, err
	}
	row := spec.Baseline
	c := Case{
		Source:       src,
		Category:     row.Category,
		Description:  fmt.Sprintf("%s (%s=%d)", row.Description, spec.Name, value),
		CommandKey:   row.CommandKey,
		SetCode:      spec.Code,
		ReplyCode:    row.ReplyCode,
		Remarks:      row.Remarks,
		Instructions: row.Instructions,
		Value:        intPtr(value),
		Warnings:     s.Warnings,
		request:      s.Request,
		expected:     synth.ExpectedReply(spec, value),
	}
	if spec.QueryCode != "" {
		if q, ok := b.ds.ByReplyCode(spec.QueryCode); ok {
			c.QueryCode = frame.NormalizeCode(spec.QueryCode)
			c.queryRequest = q.Request()
		}
	}
	b.flag(&c, row, s.Request)
	return c, nil
}

func (b *builder) flag(c *Case, row truth.Row, req []byte) {
	text := row.Text()
	c.IsSet = IsSet(row.SetCode, row.Description)
	c.IsModeChange = IsModeChange(c.IsSet, text)
	c.IsPower = IsPower(c.IsSet, text)
	c.IsDisruptive = IsDisruptive(c.IsSet, text)
	c.IsSerialOnly = IsSerialOnly(row, req)
	c.Stage = StageNormal
	if c.IsDisruptive {
		c.Stage = StageManual
	}
}
