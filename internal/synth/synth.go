// Package synth derives numeric command specs from baseline truth rows and
// synthesizes concrete set requests for a target value.
package synth

import (
	"errors"
	"fmt"
	"sort"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

const (
	MinValue = 0
	MaxValue = 100
)

var (
	ErrValueRange        = errors.New("synth: value outside 0..100")
	ErrMissingValueIndex = errors.New("synth: no value index mapped for numeric code")
	ErrChecksumIndex     = errors.New("synth: checksum index is not the last byte")
	ErrValueIndex        = errors.New("synth: value index outside template")
	ErrNotNumeric        = errors.New("synth: code is not numeric-capable")
)

// Numeric describes one numeric-capable set code.
type Numeric struct {
	Code       string
	Name       string
	ValueIndex int
	// ChecksumIndex, when non-zero, must name the template's last byte.
	ChecksumIndex int
	QueryCode     string
	// FormulaBase is set for codes whose checksum is (base + value) & 0xFF.
	FormulaBase *byte
}

func base(b byte) *byte { return &b }

// NumericCodes is the manual map of numeric-capable set codes.
var NumericCodes = map[string]Numeric{
	"C201": {Code: "C201", Name: "brightness", ValueIndex: 38, ChecksumIndex: 39, QueryCode: "C101", FormulaBase: base(0x59)},
	"C202": {Code: "C202", Name: "contrast", ValueIndex: 38, QueryCode: "C102"},
	"C203": {Code: "C203", Name: "volume", ValueIndex: 38, ChecksumIndex: 39, QueryCode: "C103", FormulaBase: base(0x5B)},
	"C204": {Code: "C204", Name: "saturation", ValueIndex: 38, QueryCode: "C104"},
	"C205": {Code: "C205", Name: "sharpness", ValueIndex: 38, QueryCode: "C105"},
	"C206": {Code: "C206", Name: "hue", ValueIndex: 38, QueryCode: "C106"},
	"C207": {Code: "C207", Name: "backlight", ValueIndex: 38, QueryCode: "C107"},
	"C208": {Code: "C208", Name: "noise reduction", ValueIndex: 38, QueryCode: "C108"},
}

// IsNumeric reports whether code is one of the numeric-capable set codes.
func IsNumeric(code string) bool {
	_, ok := NumericCodes[frame.NormalizeCode(code)]
	return ok
}

// SortedCodes returns the numeric codes in ascending order.
func SortedCodes() []string {
	out := make([]string, 0, len(NumericCodes))
	for c := range NumericCodes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Spec binds a numeric code to the baseline row used as its template.
type Spec struct {
	Numeric
	Baseline truth.Row
	template []byte
}

// Template returns a copy of the baseline request bytes.
func (s Spec) Template() []byte {
	return append([]byte(nil), s.template...)
}

// NewSpec validates the mapping of n onto baseline.
func NewSpec(n Numeric, baseline truth.Row) (Spec, error) {
	tpl := baseline.Request()
	if n.ValueIndex < 0 || n.ValueIndex >= len(tpl) {
		return Spec{}, fmt.Errorf("%w: %s index %d, template %d bytes", ErrValueIndex, n.Code, n.ValueIndex, len(tpl))
	}
	checksumIndex := len(tpl) - 1
	if n.ChecksumIndex != 0 && n.ChecksumIndex != checksumIndex {
		return Spec{}, fmt.Errorf("%w: %s maps checksum to %d, template ends at %d", ErrChecksumIndex, n.Code, n.ChecksumIndex, checksumIndex)
	}
	if n.ValueIndex >= checksumIndex {
		return Spec{}, fmt.Errorf("%w: %s value index %d collides with checksum at %d", ErrChecksumIndex, n.Code, n.ValueIndex, checksumIndex)
	}
	n.ChecksumIndex = checksumIndex
	return Spec{Numeric: n, Baseline: baseline, template: tpl}, nil
}

// BuildSpecs derives one spec per numeric code present in rows, using the
// first row of each code as the baseline. A numeric-looking code without a
// mapping in index is a configuration error.
func BuildSpecs(rows []truth.Row, index map[string]Numeric) (map[string]Spec, error) {
	if index == nil {
		index = NumericCodes
	}
	specs := make(map[string]Spec)
	for _, row := range rows {
		code := frame.NormalizeCode(row.SetCode)
		if code == "" {
			continue
		}
		if _, done := specs[code]; done {
			continue
		}
		n, ok := index[code]
		if !ok {
			if IsNumeric(code) {
				return nil, fmt.Errorf("%w: %s", ErrMissingValueIndex, code)
			}
			continue
		}
		spec, err := NewSpec(n, row)
		if err != nil {
			return nil, err
		}
		specs[code] = spec
	}
	return specs, nil
}

// Synthesis is a concrete request for one value.
type Synthesis struct {
	Code     string
	Value    int
	Request  []byte
	Checksum byte
	Warnings []string
}

// Synthesize patches value and the checksum into a copy of the template.
// Checksum disagreements between the formula and the generic rule are
// reported as warnings and never block the request.
func Synthesize(spec Spec, value int) (Synthesis, error) {
	if value < MinValue || value > MaxValue {
		return Synthesis{}, fmt.Errorf("%w: %s=%d", ErrValueRange, spec.Code, value)
	}
	b := spec.Template()
	b[spec.ValueIndex] = byte(value & 0xFF)

	generic := frame.Checksum(b)
	written := generic
	if spec.FormulaBase != nil {
		written = byte((int(*spec.FormulaBase) + value) & 0xFF)
	}
	b[spec.ChecksumIndex] = written

	out := Synthesis{Code: spec.Code, Value: value, Request: b, Checksum: written}
	out.Warnings = selfCheck(spec, value, b)
	for _, w := range out.Warnings {
		common.Warnf("synth %s=%d: %s", spec.Code, value, w)
	}
	return out, nil
}

// selfCheck recomputes the generic checksum over the finished request and
// compares it with what was written, and with the formula when one exists.
func selfCheck(spec Spec, value int, b []byte) []string {
	independent := frame.Checksum(b)
	written := b[spec.ChecksumIndex]
	if spec.FormulaBase != nil {
		formula := byte((int(*spec.FormulaBase) + value) & 0xFF)
		if formula != independent {
			return []string{fmt.Sprintf("formula checksum 0x%02X (base 0x%02X) differs from generic checksum 0x%02X", formula, *spec.FormulaBase, independent)}
		}
		return nil
	}
	if written != independent {
		return []string{fmt.Sprintf("written checksum 0x%02X differs from generic checksum 0x%02X", written, independent)}
	}
	return nil
}

// ExpectedReply derives the reply template for value from the baseline
// reply. When the baseline reply echoes the baseline value at ValueIndex the
// echo is patched and the checksum recomputed; otherwise the baseline reply
// is returned unchanged. It returns nil when the baseline has no reply.
func ExpectedReply(spec Spec, value int) []byte {
	reply := spec.Baseline.Reply()
	if reply == nil {
		return nil
	}
	tpl := spec.template
	i := spec.ValueIndex
	if len(reply) != len(tpl) || i >= len(reply)-1 || reply[i] != tpl[i] {
		return reply
	}
	reply[i] = byte(value & 0xFF)
	reply[len(reply)-1] = frame.Checksum(reply)
	return reply
}
