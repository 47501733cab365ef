// Package cases turns truth rows and synthesized value sweeps into the
// ordered list of cases a certification run executes.
package cases

import (
	"fmt"

	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
)

type Stage string

const (
	StageNormal Stage = "normal"
	StageManual Stage = "manual"
)

type Source string

const (
	SourceTruth  Source = "truth"
	SourceSynth  Source = "synth"
	SourceSanity Source = "sanity"
	SourceIssues Source = "issues"
)

// Case is one executable request. It is immutable once built; byte accessors
// return copies.
type Case struct {
	Stage        Stage
	Source       Source
	Category     string
	Description  string
	CommandKey   string
	SetCode      string
	ReplyCode    string
	Remarks      string
	Instructions string
	Value        *int

	IsSet        bool
	IsModeChange bool
	IsPower      bool
	IsDisruptive bool
	IsSerialOnly bool

	// QueryCode names the closed-loop query paired with a numeric set.
	QueryCode string
	Warnings  []string

	request      []byte
	expected     []byte
	queryRequest []byte
}

func (c Case) Request() []byte {
	return append([]byte(nil), c.request...)
}

// Expected returns the expected reply template, or nil when none exists.
func (c Case) Expected() []byte {
	if c.expected == nil {
		return nil
	}
	return append([]byte(nil), c.expected...)
}

func (c Case) HasExpected() bool {
	return c.expected != nil
}

// QueryRequest returns the closed-loop query request, if the case has one.
func (c Case) QueryRequest() ([]byte, bool) {
	if c.queryRequest == nil {
		return nil, false
	}
	return append([]byte(nil), c.queryRequest...), true
}

// PolicyCode is the code policies are resolved against: the reply code when
// known, else the set code.
func (c Case) PolicyCode() string {
	if c.ReplyCode != "" {
		return c.ReplyCode
	}
	return c.SetCode
}

// Synthesized reports whether the request was generated from a value sweep.
func (c Case) Synthesized() bool {
	return c.Value != nil
}

func (c Case) String() string {
	if c.Value != nil {
		return fmt.Sprintf("%s[%s=%d]", c.CommandKey, c.SetCode, *c.Value)
	}
	if c.SetCode != "" {
		return fmt.Sprintf("%s[%s]", c.CommandKey, c.SetCode)
	}
	return c.CommandKey
}

// TxHex renders the request for logs and records.
func (c Case) TxHex() string {
	return frame.Hex(c.request)
}

func intPtr(v int) *int { return &v }
