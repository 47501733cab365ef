// Package parsers interprets decoded reply payloads for the reply shapes the
// device family uses: single-byte ranges and enumerations, the 7-byte video
// combo record, HDMI presence bitmaps, monitoring status, uptime counters and
// the screen awake/blackout flag.
package parsers

import (
	"errors"
	"fmt"
	"sort"
)

// Selector names a parser shape.
type Selector string

const (
	Range0to100      Selector = "range_0_100"
	EnumVideoSource  Selector = "enum_video_source"
	EnumDisplayMode  Selector = "enum_display_mode"
	EnumColorTemp    Selector = "enum_color_temp"
	EnumSceneMode    Selector = "enum_scene_mode"
	VideoCombo       Selector = "video_combo"
	HDMIBitmap       Selector = "hdmi_bitmap"
	MonitoringStatus Selector = "monitoring_status"
	UptimeMinutes    Selector = "uptime_minutes"
	ScreenState      Selector = "screen_state"
)

var ErrUnknownParser = errors.New("parsers: unknown parser selector")

// Result is the typed interpretation of one payload. OK is the verdict; Note
// carries the reason when OK is false or when something noteworthy was found.
type Result struct {
	OK      bool           `json:"ok"`
	Value   map[string]any `json:"value,omitempty"`
	Meaning string         `json:"meaning,omitempty"`
	Number  *int64         `json:"number,omitempty"`
	Note    string         `json:"note,omitempty"`
}

type parseFunc func(payload []byte) Result

var registry = map[Selector]parseFunc{
	Range0to100:      func(p []byte) Result { return parseRange(p, 0, 100) },
	EnumVideoSource:  func(p []byte) Result { return parseEnum(p, "source", videoSources) },
	EnumDisplayMode:  func(p []byte) Result { return parseEnum(p, "displayMode", displayModes) },
	EnumColorTemp:    func(p []byte) Result { return parseEnum(p, "colorTemp", colorTemps) },
	EnumSceneMode:    func(p []byte) Result { return parseEnum(p, "sceneMode", sceneModes) },
	VideoCombo:       parseVideoCombo,
	HDMIBitmap:       parseHDMIBitmap,
	MonitoringStatus: parseMonitoring,
	UptimeMinutes:    parseUptime,
	ScreenState:      parseScreenState,
}

// Parse runs the parser registered for sel. Malformed payloads never return
// an error; they produce a Result with OK=false and a descriptive Note.
func Parse(sel Selector, payload []byte) (Result, error) {
	fn, ok := registry[sel]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownParser, sel)
	}
	return fn(payload), nil
}

// Known reports whether sel has a registered parser.
func Known(sel Selector) bool {
	_, ok := registry[sel]
	return ok
}

// Selectors lists the registered selectors in sorted order.
func Selectors() []Selector {
	out := make([]Selector, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func lengthMismatch(shape string, want, got int) Result {
	return Result{
		OK:   false,
		Note: fmt.Sprintf("%s expects %d payload byte(s), got %d", shape, want, got),
	}
}

func intPtr(v int64) *int64 { return &v }
