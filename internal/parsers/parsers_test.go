package parsers

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, sel Selector, p []byte) Result {
	t.Helper()
	res, err := Parse(sel, p)
	if err != nil {
		t.Fatalf("Parse(%s): %v", sel, err)
	}
	return res
}

func TestHDMIBitmap(t *testing.T) {
	res := mustParse(t, HDMIBitmap, []byte{0x01, 0x00, 0x01, 0x00})
	if !res.OK {
		t.Fatalf("expected ok, note=%q", res.Note)
	}
	want := map[string]any{
		"hdmi1":        1,
		"hdmi2":        0,
		"hdmi3":        1,
		"hdmi4":        0,
		"activeInputs": []string{"HDMI1", "HDMI3"},
	}
	if diff := cmp.Diff(want, res.Value); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}

	bad := mustParse(t, HDMIBitmap, []byte{0x01, 0x02, 0x00, 0x00})
	if bad.OK || !strings.Contains(bad.Note, "hdmi2") {
		t.Fatalf("expected hdmi2 failure, got %+v", bad)
	}
	short := mustParse(t, HDMIBitmap, []byte{0x01})
	if short.OK || short.Note == "" {
		t.Fatalf("expected length failure, got %+v", short)
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		ok   bool
	}{
		{name: "zero", in: []byte{0}, ok: true},
		{name: "hundred", in: []byte{100}, ok: true},
		{name: "above", in: []byte{101}, ok: false},
		{name: "empty", in: nil, ok: false},
		{name: "two bytes", in: []byte{1, 2}, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := mustParse(t, Range0to100, tc.in)
			if res.OK != tc.ok {
				t.Fatalf("OK = %v, want %v (%+v)", res.OK, tc.ok, res)
			}
		})
	}
	res := mustParse(t, Range0to100, []byte{42})
	if res.Number == nil || *res.Number != 42 {
		t.Fatalf("Number = %v, want 42", res.Number)
	}
}

func TestEnumPlaceholder(t *testing.T) {
	res := mustParse(t, EnumVideoSource, []byte{0x00, 0x03})
	if !res.OK || res.Value["sourceLabel"] != "HDMI3" {
		t.Fatalf("unexpected result %+v", res)
	}
	res = mustParse(t, EnumVideoSource, []byte{0x05})
	if !res.OK || res.Meaning != "source=DP" {
		t.Fatalf("unexpected result %+v", res)
	}
	unknown := mustParse(t, EnumDisplayMode, []byte{0x09})
	if unknown.OK || !strings.Contains(unknown.Note, "0x09") {
		t.Fatalf("expected unknown code failure, got %+v", unknown)
	}
	if unknown.Value["displayMode"] != 9 {
		t.Fatalf("unknown code must still be reported, got %+v", unknown.Value)
	}
	wrong := mustParse(t, EnumSceneMode, []byte{0x01, 0x02})
	if wrong.OK {
		t.Fatalf("non-placeholder two-byte payload must fail: %+v", wrong)
	}
}

func TestVideoCombo(t *testing.T) {
	res := mustParse(t, VideoCombo, []byte{80, 0x01, 0x00, 0x02, 30, 50, 0x02})
	if !res.OK {
		t.Fatalf("expected ok, note=%q", res.Note)
	}
	want := map[string]any{
		"brightness":       80,
		"colorTemp":        1,
		"colorTempLabel":   "Warm",
		"displayMode":      0,
		"displayModeLabel": "Full",
		"source":           2,
		"sourceLabel":      "HDMI2",
		"volume":           30,
		"contrast":         50,
		"sceneMode":        2,
		"sceneModeLabel":   "Cinema",
	}
	if diff := cmp.Diff(want, res.Value); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}

	bad := mustParse(t, VideoCombo, []byte{120, 0x01, 0x00, 0x0F, 30, 50, 0x02})
	if bad.OK {
		t.Fatalf("expected failure for invalid fields")
	}
	if !strings.Contains(bad.Note, "brightness") || !strings.Contains(bad.Note, "source") {
		t.Fatalf("note should name every invalid field: %q", bad.Note)
	}
}

func TestMonitoringStatus(t *testing.T) {
	full := []byte{0x01, 0x00, 0x02, 0x02, 0x08, 0x00, 0x04, 0x00, 0x04, 0x00}
	res := mustParse(t, MonitoringStatus, full)
	if !res.OK {
		t.Fatalf("expected ok, note=%q", res.Note)
	}
	if diff := cmp.Diff([]int{4, 4}, res.Value["ports"]); diff != "" {
		t.Fatalf("ports mismatch:\n%s", diff)
	}
	if _, truncated := res.Value["truncated"]; truncated {
		t.Fatalf("complete payload flagged truncated")
	}

	truncated := mustParse(t, MonitoringStatus, full[:8])
	if !truncated.OK {
		t.Fatalf("truncated structure must be flagged, not failed: %+v", truncated)
	}
	if truncated.Value["truncated"] != true || truncated.Note == "" {
		t.Fatalf("expected truncated flag and note, got %+v", truncated)
	}

	badStatus := mustParse(t, MonitoringStatus, []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x00})
	if badStatus.OK {
		t.Fatalf("unknown status must fail")
	}
	tooMany := mustParse(t, MonitoringStatus, []byte{0x01, 0x00, 0x00, 0x40, 0x00, 0x00})
	if tooMany.OK {
		t.Fatalf("port count above bound must fail")
	}
	short := mustParse(t, MonitoringStatus, []byte{0x01, 0x00})
	if short.OK || short.Note == "" {
		t.Fatalf("short payload must fail with a note")
	}
}

func TestUptimeAndScreenState(t *testing.T) {
	res := mustParse(t, UptimeMinutes, []byte{0x3D, 0x06, 0x00, 0x00})
	if !res.OK || *res.Number != 1597 || res.Meaning != "uptime 1d 2h 37m" {
		t.Fatalf("unexpected uptime result %+v", res)
	}
	if r := mustParse(t, UptimeMinutes, []byte{1, 2}); r.OK {
		t.Fatalf("short uptime must fail")
	}

	awake := mustParse(t, ScreenState, []byte{0x01})
	blackout := mustParse(t, ScreenState, []byte{0x02})
	other := mustParse(t, ScreenState, []byte{0x07})
	if !awake.OK || awake.Meaning != "screen awake" {
		t.Fatalf("awake: %+v", awake)
	}
	if !blackout.OK || blackout.Meaning != "screen blackout" {
		t.Fatalf("blackout: %+v", blackout)
	}
	if other.OK {
		t.Fatalf("unknown marker must fail: %+v", other)
	}
}

func TestUnknownParser(t *testing.T) {
	if _, err := Parse("nope", []byte{1}); !errors.Is(err, ErrUnknownParser) {
		t.Fatalf("expected ErrUnknownParser, got %v", err)
	}
	if Known("nope") || !Known(ScreenState) {
		t.Fatalf("Known mismatch")
	}
	if len(Selectors()) != 10 {
		t.Fatalf("expected 10 selectors, got %d", len(Selectors()))
	}
}
