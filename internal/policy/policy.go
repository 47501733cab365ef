// Package policy decides how a reply to a given command code is judged.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/parsers"
)

// Mode is the validation strategy applied to a reply.
type Mode string

const (
	StrictExact     Mode = "STRICT_EXACT"
	StructureOnly   Mode = "STRUCTURE_ONLY"
	ParsedRange     Mode = "PARSED_RANGE"
	ExpectedNoReply Mode = "EXPECTED_NO_REPLY"
)

// Policy is the resolved validation rule for one code.
type Policy struct {
	Code              string           `json:"code"`
	Mode              Mode             `json:"mode"`
	Parser            parsers.Selector `json:"parser,omitempty"`
	AllowedReplyCodes []string         `json:"allowedReplyCodes,omitempty"`
	AcceptAnyReply    bool             `json:"acceptAnyReply,omitempty"`
	NoReplyTolerated  bool             `json:"noReplyTolerated,omitempty"`
	Note              string           `json:"note,omitempty"`
}

// Allows reports whether code is acceptable as a reply under p, given the
// case's expected reply code.
func (p Policy) Allows(expected, code string) bool {
	if p.AcceptAnyReply {
		return true
	}
	code = frame.NormalizeCode(code)
	if code == "" {
		return false
	}
	if code == frame.NormalizeCode(expected) {
		return true
	}
	for _, c := range p.AllowedReplyCodes {
		if c == code {
			return true
		}
	}
	return false
}

var table = map[string]Policy{
	"C101": rangeQuery("C101", "brightness"),
	"C102": rangeQuery("C102", "contrast"),
	"C103": rangeQuery("C103", "volume"),
	"C104": rangeQuery("C104", "saturation"),
	"C105": rangeQuery("C105", "sharpness"),
	"C106": rangeQuery("C106", "hue"),
	"C107": rangeQuery("C107", "backlight"),
	"C108": rangeQuery("C108", "noise reduction"),
	"C110": {Code: "C110", Mode: ParsedRange, Parser: parsers.VideoCombo, Note: "combined video settings"},
	"C111": {Code: "C111", Mode: ParsedRange, Parser: parsers.HDMIBitmap, Note: "HDMI input presence"},
	"C112": {Code: "C112", Mode: ParsedRange, Parser: parsers.EnumVideoSource, Note: "current video source"},
	"C113": {Code: "C113", Mode: ParsedRange, Parser: parsers.EnumDisplayMode, Note: "current display mode"},
	"C114": {Code: "C114", Mode: ParsedRange, Parser: parsers.EnumColorTemp, Note: "current colour temperature"},
	"C131": {Code: "C131", Mode: StructureOnly, Parser: parsers.MonitoringStatus, Note: "live monitoring counters vary"},
	"C132": {Code: "C132", Mode: ParsedRange, Parser: parsers.UptimeMinutes, Note: "uptime grows between runs"},
	"C133": {Code: "C133", Mode: ParsedRange, Parser: parsers.ScreenState, Note: "screen awake or blackout"},
	"C210": {Code: "C210", Mode: StrictExact, AllowedReplyCodes: []string{"C210", "C112"}, Note: "source switch may answer with the source query code"},
	"C220": {Code: "C220", Mode: StrictExact, NoReplyTolerated: true, Note: "standby may drop the reply"},
	"C222": {Code: "C222", Mode: ExpectedNoReply, Note: "reboot drops the link before replying"},
	"C230": {Code: "C230", Mode: StrictExact, AcceptAnyReply: true, Note: "heartbeat accepts any reply code"},
}

func rangeQuery(code, name string) Policy {
	return Policy{Code: code, Mode: ParsedRange, Parser: parsers.Range0to100, Note: name + " level"}
}

var queryWords = []string{"query", "get", "read"}

// Resolve returns the policy for code. Unregistered codes fall back to
// STRICT_EXACT, except scene-mode queries recognised from category or
// description text. Resolve is pure.
func Resolve(code, category, description string) Policy {
	code = frame.NormalizeCode(code)
	if p, ok := table[code]; ok {
		p.AllowedReplyCodes = append([]string(nil), p.AllowedReplyCodes...)
		return p
	}
	text := common.NormalizeText(category + " " + description)
	if common.HasPhrase(text, []string{"scene"}) && common.HasPhrase(text, queryWords) {
		return Policy{Code: code, Mode: ParsedRange, Parser: parsers.EnumSceneMode, Note: "scene mode query"}
	}
	return Policy{Code: code, Mode: StrictExact}
}

// Codes lists the codes with a registered policy.
func Codes() []string {
	out := make([]string, 0, len(table))
	for c := range table {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Quirk is a known firmware limitation for one profile.
type Quirk struct {
	Profile string `json:"profile"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

var quirks = []Quirk{
	{Profile: "exview-aio", Code: "C211", Reason: "split-screen layout set is not acknowledged by this firmware"},
}

// KnownLimitation reports whether a missing reply to code is a documented
// limitation of profile.
func KnownLimitation(profile, code string) (Quirk, bool) {
	code = frame.NormalizeCode(code)
	for _, q := range quirks {
		if strings.EqualFold(q.Profile, profile) && q.Code == code {
			return q, true
		}
	}
	return Quirk{}, false
}

// Quirks lists the known limitations of profile.
func Quirks(profile string) []Quirk {
	var out []Quirk
	for _, q := range quirks {
		if strings.EqualFold(q.Profile, profile) {
			out = append(out, q)
		}
	}
	return out
}

func (q Quirk) String() string {
	return fmt.Sprintf("%s/%s: %s", q.Profile, q.Code, q.Reason)
}
