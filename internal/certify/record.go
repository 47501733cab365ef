package certify

import (
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
)

type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusNoReply Status = "NO_REPLY"
	StatusSkipped Status = "SKIPPED"
)

// TransportStatus says whether the request went out and a reply came back.
type TransportStatus string

const (
	TransportReply     TransportStatus = "REPLY"
	TransportNoReply   TransportStatus = "NO_REPLY"
	TransportNotSent   TransportStatus = "NOT_SENT"
	TransportSendError TransportStatus = "SEND_ERROR"
)

// Match types explain how a status was reached.
const (
	MatchExact                    = "EXACT"
	MatchExactIgnoringChecksum    = "EXACT_IGNORING_CHECKSUM"
	MatchAnyReply                 = "ANY_REPLY"
	MatchStatusOK                 = "STATUS_OK"
	MatchBytesMismatch            = "BYTES_MISMATCH"
	MatchReplyCodeMismatch        = "REPLY_CODE_MISMATCH"
	MatchPayloadNotFound          = "PAYLOAD_NOT_FOUND"
	MatchUnknownParser            = "UNKNOWN_PARSER"
	MatchStructureOK              = "STRUCTURE_OK"
	MatchStructureInvalid         = "STRUCTURE_INVALID"
	MatchParsedOK                 = "PARSED_OK"
	MatchParsedOutOfRange         = "PARSED_OUT_OF_RANGE"
	MatchExpectedNoReply          = "EXPECTED_NO_REPLY"
	MatchUnexpectedReplyTolerated = "UNEXPECTED_REPLY_TOLERATED"
	MatchNoReplyTolerated         = "NO_REPLY_TOLERATED"
	MatchKnownLimitation          = "KNOWN_LIMITATION"
	MatchTimeout                  = "TIMEOUT"
	MatchExcluded                 = "EXCLUDED"
	MatchSerialOnly               = "SERIAL_ONLY"
	MatchPowerStageDisabled       = "POWER_STAGE_DISABLED"
	MatchOperatorDeclined         = "OPERATOR_DECLINED"
	MatchClosedLoopMismatch       = "CLOSED_LOOP_MISMATCH"
	MatchSendError                = "SEND_ERROR"
)

// Record is the finalized result of one case. Field names are the JSON
// contract consumed by report writers and the HTTP API.
type Record struct {
	Ts             time.Time       `json:"ts"`
	RunID          string          `json:"runId"`
	Seq            int             `json:"seq"`
	Stage          string          `json:"stage"`
	Source         string          `json:"source"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	CommandKey     string          `json:"commandKey"`
	SetCode        string          `json:"setCode,omitempty"`
	ReplyCode      string          `json:"replyCode,omitempty"`
	RxReplyCode    string          `json:"rxReplyCode,omitempty"`
	ValidationMode string          `json:"validationMode"`
	Parser         string          `json:"parser,omitempty"`
	TxHex          string          `json:"txHex"`
	RxHex          string          `json:"rxHex,omitempty"`
	ExpectedHex    string          `json:"expectedHex,omitempty"`
	LatencyMs      *float64        `json:"latencyMs,omitempty"`
	Transport      TransportStatus `json:"transport"`
	Status         Status          `json:"status"`
	MatchType      string          `json:"matchType"`
	Meaning        string          `json:"meaning,omitempty"`
	Parsed         map[string]any  `json:"parsed,omitempty"`
	Value          *int            `json:"value,omitempty"`
	QueryCode      string          `json:"queryCode,omitempty"`
	QueryRxHex     string          `json:"queryRxHex,omitempty"`
	QueryValue     *int64          `json:"queryValue,omitempty"`
	Note           string          `json:"note,omitempty"`
	Notes          []string        `json:"notes,omitempty"`
	SkipReason     string          `json:"skipReason,omitempty"`
	Ambiguous      bool            `json:"ambiguous,omitempty"`
}

// Passed reports whether r counts towards a passing run. Skipped records do
// not fail a run.
func (r Record) Passed() bool {
	return r.Status == StatusPass || r.Status == StatusSkipped
}

func newRecord(runID string, seq int, ts time.Time, c cases.Case) Record {
	r := Record{
		Ts:          ts,
		RunID:       runID,
		Seq:         seq,
		Stage:       string(c.Stage),
		Source:      string(c.Source),
		Category:    c.Category,
		Description: c.Description,
		CommandKey:  c.CommandKey,
		SetCode:     c.SetCode,
		ReplyCode:   c.ReplyCode,
		TxHex:       c.TxHex(),
		Transport:   TransportNotSent,
	}
	if c.Value != nil {
		v := *c.Value
		r.Value = &v
	}
	if c.HasExpected() {
		r.ExpectedHex = frame.Hex(c.Expected())
	}
	r.Notes = append(r.Notes, c.Warnings...)
	return r
}

func (r *Record) addNote(note string) {
	if note == "" {
		return
	}
	r.Notes = append(r.Notes, note)
	if r.Note == "" {
		r.Note = note
	}
}

func (r *Record) skip(match, reason string) {
	r.Status = StatusSkipped
	r.MatchType = match
	r.SkipReason = reason
	r.Transport = TransportNotSent
}
