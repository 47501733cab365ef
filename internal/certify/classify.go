package certify

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/parsers"
	"github.com/daveleo/exview-aio-protocol-tool/internal/policy"
)

const statusWordOK = 0x0001

// Verdict is the classification of one exchange.
type Verdict struct {
	Status      Status
	MatchType   string
	Meaning     string
	Parsed      map[string]any
	Number      *int64
	RxReplyCode string
	Ambiguous   bool
	Notes       []string
}

func (v *Verdict) note(format string, args ...any) {
	v.Notes = append(v.Notes, fmt.Sprintf(format, args...))
}

// Classify judges rx (nil when nothing arrived) against c under pol.
func Classify(c cases.Case, pol policy.Policy, rx []byte, profile string) Verdict {
	if rx == nil {
		return classifyNoReply(c, pol, profile)
	}
	var v Verdict
	if code, ok := frame.DecodeReplyCode(rx); ok {
		v.RxReplyCode = code
	}
	if pol.Mode == policy.ExpectedNoReply {
		v.Status, v.MatchType = StatusPass, MatchUnexpectedReplyTolerated
		v.note("reply received although none is expected")
		return v
	}
	if expected := expectedReplyCode(c, pol); expected != "" && !pol.Allows(expected, v.RxReplyCode) {
		v.Status, v.MatchType = StatusFail, MatchReplyCodeMismatch
		if v.RxReplyCode == "" {
			v.note("reply code marker not found, expected %s", expected)
		} else {
			v.note("reply code %s, expected %s", v.RxReplyCode, expected)
		}
		return v
	}

	switch pol.Mode {
	case policy.StructureOnly, policy.ParsedRange:
		classifyParsed(&v, pol, rx)
	default:
		classifyStrict(&v, c, rx)
	}
	return v
}

// expectedReplyCode is the reply code a case is held to: the declared reply
// code, else the code in the reply template, else the set code when the
// policy lists alternatives. A case with none of these accepts any code.
func expectedReplyCode(c cases.Case, pol policy.Policy) string {
	if c.ReplyCode != "" {
		return c.ReplyCode
	}
	if exp := c.Expected(); exp != nil {
		if code, ok := frame.DecodeReplyCode(exp); ok {
			return code
		}
	}
	if len(pol.AllowedReplyCodes) > 0 {
		return c.SetCode
	}
	return ""
}

func classifyNoReply(c cases.Case, pol policy.Policy, profile string) Verdict {
	var v Verdict
	switch {
	case pol.Mode == policy.ExpectedNoReply:
		v.Status, v.MatchType = StatusPass, MatchExpectedNoReply
	case pol.NoReplyTolerated:
		v.Status, v.MatchType = StatusPass, MatchNoReplyTolerated
		if pol.Note != "" {
			v.note("%s", pol.Note)
		}
	default:
		if q, ok := knownLimitation(profile, c); ok {
			v.Status, v.MatchType = StatusSkipped, MatchKnownLimitation
			v.note("%s", q.Reason)
			return v
		}
		v.Status, v.MatchType = StatusNoReply, MatchTimeout
	}
	return v
}

func knownLimitation(profile string, c cases.Case) (policy.Quirk, bool) {
	if q, ok := policy.KnownLimitation(profile, c.SetCode); ok {
		return q, true
	}
	return policy.KnownLimitation(profile, c.ReplyCode)
}

func classifyStrict(v *Verdict, c cases.Case, rx []byte) {
	expected := c.Expected()
	switch {
	case expected == nil:
		v.Status, v.MatchType = StatusPass, MatchAnyReply
		v.Meaning = "reply received"
		return
	case frame.Equal(expected, rx):
		v.Status, v.MatchType = StatusPass, MatchExact
		v.Meaning = "reply matches template"
		return
	case frame.EqualIgnoringChecksum(expected, rx):
		v.Status, v.MatchType = StatusPass, MatchExactIgnoringChecksum
		v.Meaning = "reply matches template except checksum"
		v.note("checksum 0x%02X, template 0x%02X", rx[len(rx)-1], expected[len(expected)-1])
		return
	}
	if p, ok := frame.ExtractPayload(rx); ok {
		v.Ambiguous = p.Ambiguous
		if p.Ambiguous {
			v.note("payload marker ambiguous, candidates at %v", p.Candidates)
		}
		if len(p.Data) >= 2 && binary.LittleEndian.Uint16(p.Data[:2]) == statusWordOK {
			v.Status, v.MatchType = StatusPass, MatchStatusOK
			v.Meaning = "device reported success"
			return
		}
	}
	v.Status, v.MatchType = StatusFail, MatchBytesMismatch
	v.note("reply differs from template")
}

func classifyParsed(v *Verdict, pol policy.Policy, rx []byte) {
	okMatch, badMatch := MatchParsedOK, MatchParsedOutOfRange
	if pol.Mode == policy.StructureOnly {
		okMatch, badMatch = MatchStructureOK, MatchStructureInvalid
	}
	p, ok := frame.ExtractPayload(rx)
	if !ok {
		v.Status, v.MatchType = StatusFail, MatchPayloadNotFound
		v.note("no length-delimited payload before the checksum")
		return
	}
	v.Ambiguous = p.Ambiguous
	if p.Ambiguous {
		v.note("payload marker ambiguous, candidates at %v", p.Candidates)
	}
	res, err := parsers.Parse(pol.Parser, p.Data)
	if errors.Is(err, parsers.ErrUnknownParser) {
		v.Status, v.MatchType = StatusFail, MatchUnknownParser
		v.note("%v", err)
		return
	}
	v.Meaning = res.Meaning
	v.Parsed = res.Value
	v.Number = res.Number
	if res.OK {
		v.Status, v.MatchType = StatusPass, okMatch
	} else {
		v.Status, v.MatchType = StatusFail, badMatch
	}
	if res.Note != "" {
		v.Notes = append(v.Notes, res.Note)
	}
}
