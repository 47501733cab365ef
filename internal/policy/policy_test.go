package policy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/daveleo/exview-aio-protocol-tool/internal/parsers"
)

func TestResolveTable(t *testing.T) {
	tests := []struct {
		code   string
		mode   Mode
		parser parsers.Selector
	}{
		{"C101", ParsedRange, parsers.Range0to100},
		{"c108", ParsedRange, parsers.Range0to100},
		{"C110", ParsedRange, parsers.VideoCombo},
		{"C111", ParsedRange, parsers.HDMIBitmap},
		{"C112", ParsedRange, parsers.EnumVideoSource},
		{"C113", ParsedRange, parsers.EnumDisplayMode},
		{"C114", ParsedRange, parsers.EnumColorTemp},
		{"C131", StructureOnly, parsers.MonitoringStatus},
		{"C132", ParsedRange, parsers.UptimeMinutes},
		{"C133", ParsedRange, parsers.ScreenState},
		{"C210", StrictExact, ""},
		{"C222", ExpectedNoReply, ""},
		{"C9FF", StrictExact, ""},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			p := Resolve(tc.code, "", "")
			if p.Mode != tc.mode || p.Parser != tc.parser {
				t.Fatalf("Resolve(%s) = %s/%s, want %s/%s", tc.code, p.Mode, p.Parser, tc.mode, tc.parser)
			}
		})
	}
}

func TestEveryParsedPolicyHasKnownParser(t *testing.T) {
	for _, code := range Codes() {
		p := Resolve(code, "", "")
		if p.Mode == ParsedRange || p.Mode == StructureOnly {
			if !parsers.Known(p.Parser) {
				t.Fatalf("%s uses unknown parser %q", code, p.Parser)
			}
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	inputs := [][3]string{
		{"C210", "Input", "Switch source"},
		{"C1F0", "Picture", "Query scene mode"},
		{"C9FF", "Misc", "unknown"},
	}
	for _, in := range inputs {
		a := Resolve(in[0], in[1], in[2])
		b := Resolve(in[0], in[1], in[2])
		if diff := cmp.Diff(a, b); diff != "" {
			t.Fatalf("Resolve(%v) not deterministic:\n%s", in, diff)
		}
	}
	p := Resolve("C210", "", "")
	p.AllowedReplyCodes[0] = "XXXX"
	if Resolve("C210", "", "").AllowedReplyCodes[0] != "C210" {
		t.Fatalf("callers must not be able to mutate the table")
	}
}

func TestSceneHeuristic(t *testing.T) {
	tests := []struct {
		category, description string
		scene                 bool
	}{
		{"Picture", "Query scene mode", true},
		{"Scene", "Get current", true},
		{"Picture", "Read Scene", true},
		{"Picture", "Set scene mode", false},
		{"Picture", "Scene target level", false},
		{"Scene", "Ready indicator", false},
		{"Picture", "Scene budget", false},
		{"Picture", "Query colour", false},
	}
	for _, tc := range tests {
		p := Resolve("C1F0", tc.category, tc.description)
		if (p.Parser == parsers.EnumSceneMode) != tc.scene {
			t.Fatalf("%q/%q: parser %q, want scene=%v", tc.category, tc.description, p.Parser, tc.scene)
		}
	}
	if p := Resolve("C110", "Picture", "Query scene"); p.Parser != parsers.VideoCombo {
		t.Fatalf("registered code must win over heuristic, got %q", p.Parser)
	}
}

func TestAllows(t *testing.T) {
	src := Resolve("C210", "", "")
	if !src.Allows("C210", "C112") || !src.Allows("C210", "c210") || src.Allows("C210", "C113") {
		t.Fatalf("C210 allowed set not honoured")
	}
	if src.Allows("C210", "") {
		t.Fatalf("missing code must never be allowed")
	}
	hb := Resolve("C230", "", "")
	if !hb.Allows("C230", "") || !hb.Allows("C230", "C999") {
		t.Fatalf("heartbeat accepts any reply")
	}
	if !Resolve("C220", "", "").NoReplyTolerated {
		t.Fatalf("standby tolerates no reply")
	}
}

func TestKnownLimitation(t *testing.T) {
	if _, ok := KnownLimitation("exview-aio", "c211"); !ok {
		t.Fatalf("C211 quirk missing")
	}
	if _, ok := KnownLimitation("other", "C211"); ok {
		t.Fatalf("quirk must be profile specific")
	}
	if _, ok := KnownLimitation("exview-aio", "C210"); ok {
		t.Fatalf("unexpected quirk for C210")
	}
	if q := Quirks("EXVIEW-AIO"); len(q) != 1 || q[0].Code != "C211" {
		t.Fatalf("Quirks = %v", q)
	}
	if q := Quirks("other"); len(q) != 0 {
		t.Fatalf("Quirks(other) = %v", q)
	}
}
