package cases

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/policy"
	"github.com/daveleo/exview-aio-protocol-tool/internal/synth"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth/truthtest"
)

func inputs() Inputs {
	return Inputs{Dataset: truthtest.Dataset()}
}

func intp(v int) *int { return &v }

func TestSuiteOrdering(t *testing.T) {
	cs, err := Build(Suite{}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cs) != truthtest.SuiteCases {
		t.Fatalf("got %d cases, want %d", len(cs), truthtest.SuiteCases)
	}

	perCode := map[string]int{}
	seenManual := false
	for i, c := range cs {
		if c.Synthesized() {
			perCode[c.SetCode]++
		}
		if c.CommandKey == "set_volume_mute" {
			t.Fatalf("row of an already swept numeric code must be absorbed")
		}
		if c.Stage == StageManual {
			seenManual = true
			if !c.IsDisruptive {
				t.Fatalf("case %d %s staged manual without being disruptive", i, c)
			}
		} else if seenManual {
			t.Fatalf("normal case %d %s after manual stage", i, c)
		}
	}
	for _, code := range synth.SortedCodes() {
		if perCode[code] != 101 {
			t.Fatalf("%s: %d synthesized cases, want 101", code, perCode[code])
		}
	}
	tail := cs[len(cs)-truthtest.DisruptiveRows:]
	if tail[0].CommandKey != "set_standby" || tail[1].CommandKey != "set_reboot" {
		t.Fatalf("manual stage must keep dataset order, got %s, %s", tail[0], tail[1])
	}

	first := cs[0]
	if first.SetCode != "C201" || *first.Value != 0 || first.QueryCode != "C101" {
		t.Fatalf("unexpected first case %+v", first)
	}
	if _, ok := first.QueryRequest(); !ok {
		t.Fatalf("closed-loop query request missing")
	}
}

func TestSuiteSynthesizedValuesAreOrdered(t *testing.T) {
	cs, err := Build(Suite{}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	next := map[string]int{}
	for _, c := range cs {
		if !c.Synthesized() {
			continue
		}
		if *c.Value != next[c.SetCode] {
			t.Fatalf("%s: value %d out of order, want %d", c.SetCode, *c.Value, next[c.SetCode])
		}
		next[c.SetCode]++
		if !frame.ChecksumValid(c.Request()) {
			t.Fatalf("%s: invalid checksum", c)
		}
	}
}

func TestSingle(t *testing.T) {
	cs, err := Build(Single{Selector: "C203", Value: intp(50)}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cs) != 1 || cs[0].Request()[39] != 0x8D || cs[0].Source != SourceSynth {
		t.Fatalf("unexpected single case %+v", cs)
	}
	if exp := cs[0].Expected(); exp == nil || exp[38] != 50 {
		t.Fatalf("expected reply must echo the value: % X", exp)
	}

	cs, err = Build(Single{Selector: "heartbeat"}, inputs())
	if err != nil || len(cs) != 1 || cs[0].SetCode != "C230" {
		t.Fatalf("heartbeat: %+v %v", cs, err)
	}

	tests := []struct {
		name string
		mode Single
		want error
	}{
		{name: "unknown", mode: Single{Selector: "nope"}, want: ErrBadSelector},
		{name: "empty", mode: Single{}, want: ErrBadSelector},
		{name: "numeric without value", mode: Single{Selector: "set_volume"}, want: ErrValueRequired},
		{name: "value out of range", mode: Single{Selector: "C201", Value: intp(101)}, want: synth.ErrValueRange},
		{name: "value for non-numeric", mode: Single{Selector: "heartbeat", Value: intp(1)}, want: synth.ErrNotNumeric},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.mode, inputs())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Mode != "single" {
				t.Fatalf("expected ConfigError for single mode, got %T", err)
			}
		})
	}
}

func TestSanity(t *testing.T) {
	cs, err := Build(Sanity{}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cs) != 3 {
		t.Fatalf("got %d cases", len(cs))
	}
	if cs[0].SetCode != "C210" || cs[1].SetCode != "C203" || cs[2].SetCode != "C201" {
		t.Fatalf("unexpected sanity order %s %s %s", cs[0], cs[1], cs[2])
	}
	for _, c := range cs[1:] {
		if *c.Value != 50 || c.Source != SourceSanity {
			t.Fatalf("unexpected sanity case %+v", c)
		}
	}

	ds, _ := truth.NewDataset("x", truthtest.Rows()[0])
	if _, err := Build(Sanity{}, Inputs{Dataset: ds}); !errors.Is(err, ErrNoSanityRow) {
		t.Fatalf("expected ErrNoSanityRow, got %v", err)
	}
}

func TestIssuesDeduplicates(t *testing.T) {
	recs := []truth.IssueRecord{
		{CommandKey: "set_volume", SetCode: "C203", Value: intp(7), Status: "FAIL"},
		{CommandKey: "set_volume", SetCode: "C203", Value: intp(7), Status: "NO_REPLY"},
		{CommandKey: "set_volume", SetCode: "C203", Value: intp(8), Status: "PASS", MatchType: "CLOSED_LOOP_MISMATCH"},
		{CommandKey: "heartbeat", Status: "PASS", MatchType: "EXACT"},
		{CommandKey: "query_hdmi", Status: "SKIPPED"},
		{Command: "C210", Status: "FAIL"},
		{CommandKey: "missing", Status: "FAIL"},
		{CommandKey: "set_brightness", Status: "FAIL"},
		{CommandKey: "set_reboot", Status: "NO_REPLY"},
	}
	cs, err := Build(Issues{Records: recs}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var got []string
	for _, c := range cs {
		got = append(got, c.String())
		if c.Source != SourceIssues {
			t.Fatalf("source = %s", c.Source)
		}
	}
	want := []string{"set_volume[C203=7]", "set_volume[C203=8]", "query_hdmi", "set_source_hdmi2[C210]", "set_reboot[C222]"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIssuesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.json")
	body := `{"records":[{"commandKey":"set_volume","setCode":"C203","value":9,"status":"FAIL"},{"commandKey":"set_volume","setCode":"C203","value":9,"status":"FAIL"}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cs, err := Build(Issues{Path: path}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cs) != 1 || *cs[0].Value != 9 {
		t.Fatalf("expected one deduplicated case, got %v", cs)
	}
	if _, err := Build(Issues{Path: filepath.Join(t.TempDir(), "none.json")}, inputs()); err == nil {
		t.Fatalf("missing issues file must be a configuration error")
	}
}

func TestSerialOnly(t *testing.T) {
	cs, err := Build(Single{Selector: "set_baud"}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !cs[0].IsSerialOnly {
		t.Fatalf("RS-232 transport must mark serial-only")
	}

	req := truthtest.Frame(0xC250, 1)
	tests := []struct {
		name string
		row  truth.Row
		req  []byte
		want bool
	}{
		{name: "udp", row: truth.Row{}, req: req, want: false},
		{name: "remarks serial", row: truth.Row{Remarks: "Serial only"}, req: req, want: true},
		{name: "com port", row: truth.Row{Transport: "COM3"}, req: req, want: true},
		{name: "command is not com", row: truth.Row{Remarks: "command acknowledged"}, req: req, want: false},
		{name: "no sync", row: truth.Row{}, req: req[1:], want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSerialOnly(tc.row, tc.req); got != tc.want {
				t.Fatalf("IsSerialOnly = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHeuristics(t *testing.T) {
	if !IsSet("C2FF", "") || !IsSet("", "Adjust volume") || IsSet("C101", "Query volume") {
		t.Fatalf("IsSet mismatch")
	}
	if !IsModeChange(true, "Input: switch source") || IsModeChange(false, "Query source") {
		t.Fatalf("IsModeChange mismatch")
	}
	if !IsPower(true, "Enter standby") || IsPower(true, "Set volume") {
		t.Fatalf("IsPower mismatch")
	}
	if !IsDisruptive(true, "Factory reset") || IsDisruptive(true, "Set preset colour") {
		t.Fatalf("IsDisruptive mismatch")
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	cs, err := Build(Suite{}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, c := range cs {
		a := policy.Resolve(c.PolicyCode(), c.Category, c.Description)
		b := policy.Resolve(c.PolicyCode(), c.Category, c.Description)
		if a.Mode != b.Mode || a.Parser != b.Parser {
			t.Fatalf("%s: resolution not stable (%s vs %s)", c, a.Mode, b.Mode)
		}
	}
}

func TestCaseBytesAreCopies(t *testing.T) {
	cs, err := Build(Single{Selector: "heartbeat"}, inputs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	req := cs[0].Request()
	req[0] = 0x00
	if cs[0].Request()[0] != 0x55 {
		t.Fatalf("case request mutated through accessor")
	}
}
