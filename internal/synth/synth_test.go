package synth

import (
	"errors"
	"testing"

	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

func baselineRow(code string, value byte) truth.Row {
	c, err := frame.ParseCode(code)
	if err != nil {
		panic(err)
	}
	req := frame.MustBuild(c, []byte{value}, frame.BuildOptions{Length: 40, Header: []byte{0x3E}})
	return truth.Row{CommandKey: "set_" + code, SetCode: code, RequestHex: frame.Hex(req)}
}

func allBaselines() []truth.Row {
	var rows []truth.Row
	for _, code := range SortedCodes() {
		rows = append(rows, baselineRow(code, 10))
	}
	return rows
}

func TestSynthesizeSweep(t *testing.T) {
	specs, err := BuildSpecs(allBaselines(), nil)
	if err != nil {
		t.Fatalf("BuildSpecs: %v", err)
	}
	if len(specs) != len(NumericCodes) {
		t.Fatalf("got %d specs, want %d", len(specs), len(NumericCodes))
	}
	for code, spec := range specs {
		for v := MinValue; v <= MaxValue; v++ {
			s, err := Synthesize(spec, v)
			if err != nil {
				t.Fatalf("%s=%d: %v", code, v, err)
			}
			last := s.Request[len(s.Request)-1]
			if last != frame.Checksum(s.Request) {
				t.Fatalf("%s=%d: checksum 0x%02X, generic 0x%02X", code, v, last, frame.Checksum(s.Request))
			}
			if spec.FormulaBase != nil && last != byte(int(*spec.FormulaBase)+v) {
				t.Fatalf("%s=%d: checksum 0x%02X disagrees with formula", code, v, last)
			}
			if int(s.Request[spec.ValueIndex]) != v {
				t.Fatalf("%s=%d: value byte %d", code, v, s.Request[spec.ValueIndex])
			}
			if len(s.Warnings) != 0 {
				t.Fatalf("%s=%d: unexpected warnings %v", code, v, s.Warnings)
			}
		}
	}
}

func TestSynthesizeVolumeFifty(t *testing.T) {
	spec, err := NewSpec(NumericCodes["C203"], baselineRow("C203", 0))
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	s, err := Synthesize(spec, 50)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if s.Checksum != 0x8D || s.Request[39] != 0x8D {
		t.Fatalf("checksum = 0x%02X, want 0x8D", s.Checksum)
	}
}

func TestSynthesizeDoesNotMutateTemplate(t *testing.T) {
	spec, err := NewSpec(NumericCodes["C202"], baselineRow("C202", 7))
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	if _, err := Synthesize(spec, 99); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if spec.Template()[38] != 7 {
		t.Fatalf("template mutated")
	}
}

func TestSynthesizeValueRange(t *testing.T) {
	spec, err := NewSpec(NumericCodes["C201"], baselineRow("C201", 0))
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	for _, v := range []int{-1, 101, 255} {
		if _, err := Synthesize(spec, v); !errors.Is(err, ErrValueRange) {
			t.Fatalf("value %d: expected ErrValueRange, got %v", v, err)
		}
	}
}

func TestBuildSpecsMissingValueIndex(t *testing.T) {
	index := map[string]Numeric{"C201": NumericCodes["C201"]}
	rows := []truth.Row{baselineRow("C201", 0), baselineRow("C204", 0)}
	if _, err := BuildSpecs(rows, index); !errors.Is(err, ErrMissingValueIndex) {
		t.Fatalf("expected ErrMissingValueIndex, got %v", err)
	}
}

func TestBuildSpecsUsesFirstRow(t *testing.T) {
	first := baselineRow("C203", 1)
	second := baselineRow("C203", 2)
	second.CommandKey = "set_C203_alt"
	specs, err := BuildSpecs([]truth.Row{first, second}, nil)
	if err != nil {
		t.Fatalf("BuildSpecs: %v", err)
	}
	if specs["C203"].Baseline.CommandKey != first.CommandKey {
		t.Fatalf("baseline = %s, want %s", specs["C203"].Baseline.CommandKey, first.CommandKey)
	}
}

func TestNewSpecIndexErrors(t *testing.T) {
	row := baselineRow("C205", 0)
	n := NumericCodes["C205"]

	bad := n
	bad.ChecksumIndex = 38
	if _, err := NewSpec(bad, row); !errors.Is(err, ErrChecksumIndex) {
		t.Fatalf("expected ErrChecksumIndex, got %v", err)
	}
	bad = n
	bad.ValueIndex = 39
	if _, err := NewSpec(bad, row); !errors.Is(err, ErrChecksumIndex) {
		t.Fatalf("value on checksum byte: expected ErrChecksumIndex, got %v", err)
	}
	bad = n
	bad.ValueIndex = 40
	if _, err := NewSpec(bad, row); !errors.Is(err, ErrValueIndex) {
		t.Fatalf("expected ErrValueIndex, got %v", err)
	}
}

func TestSelfCheckWarnsOnFormulaDrift(t *testing.T) {
	n := NumericCodes["C203"]
	drift := byte(0x10)
	n.FormulaBase = &drift
	spec, err := NewSpec(n, baselineRow("C203", 0))
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	s, err := Synthesize(spec, 50)
	if err != nil {
		t.Fatalf("drift must not be an error: %v", err)
	}
	if len(s.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", s.Warnings)
	}
	if s.Checksum != 0x42 {
		t.Fatalf("formula checksum must still be written, got 0x%02X", s.Checksum)
	}
}

func TestExpectedReplyPatchesEcho(t *testing.T) {
	row := baselineRow("C203", 20)
	row.ReplyHex = row.RequestHex
	spec, err := NewSpec(NumericCodes["C203"], row)
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	got := ExpectedReply(spec, 50)
	if got[38] != 50 || !frame.ChecksumValid(got) {
		t.Fatalf("echo not patched: % X", got)
	}

	ack := frame.MustBuild(0xC203, []byte{0x01, 0x00}, frame.BuildOptions{})
	row.ReplyHex = frame.Hex(ack)
	spec, _ = NewSpec(NumericCodes["C203"], row)
	if got := ExpectedReply(spec, 50); frame.Hex(got) != frame.Hex(ack) {
		t.Fatalf("non-echo reply must be unchanged: % X", got)
	}

	row.ReplyHex = ""
	spec, _ = NewSpec(NumericCodes["C203"], row)
	if ExpectedReply(spec, 50) != nil {
		t.Fatalf("missing reply must stay nil")
	}
}
