// Package certify executes certification cases against a device and
// classifies every exchange into a record.
package certify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/parsers"
	"github.com/daveleo/exview-aio-protocol-tool/internal/policy"
	"github.com/daveleo/exview-aio-protocol-tool/internal/transport"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

const (
	DefaultTimeout    = 1500 * time.Millisecond
	DefaultRate       = 100 * time.Millisecond
	DefaultSetSettle  = 300 * time.Millisecond
	DefaultModeSettle = 2 * time.Second
	DefaultProfile    = "exview-aio"
)

// Exchanger sends one request and waits for its reply.
type Exchanger interface {
	Exchange(ctx context.Context, tx []byte, timeout time.Duration) (transport.Reply, error)
}

// RecordSink receives every finalized record in order.
type RecordSink interface {
	Put(Record) error
}

// SinkFunc adapts a function to RecordSink.
type SinkFunc func(Record) error

func (f SinkFunc) Put(r Record) error { return f(r) }

// Options tune a run. Zero durations take the package defaults; use a
// negative value to disable a delay.
type Options struct {
	RunID      string
	Profile    string
	Timeout    time.Duration
	Rate       time.Duration
	SetSettle  time.Duration
	ModeSettle time.Duration

	IncludePower bool
	ClosedLoop   bool
	Exclusions   truth.Exclusions
	Gate         Gate
	Sinks        []RecordSink
	Metrics      *common.Metrics

	// Sleep waits between cases; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func (o *Options) defaults() {
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Profile == "" {
		o.Profile = DefaultProfile
	}
	o.Timeout = orDefault(o.Timeout, DefaultTimeout)
	o.Rate = orDefault(o.Rate, DefaultRate)
	o.SetSettle = orDefault(o.SetSettle, DefaultSetSettle)
	o.ModeSettle = orDefault(o.ModeSettle, DefaultModeSettle)
	if o.Gate == nil {
		o.Gate = AutoGate{}
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func orDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Runner executes cases sequentially over one Exchanger.
type Runner struct {
	ex   Exchanger
	opts Options
	log  zlog
}

// NewRunner returns a runner with defaults applied to opts.
func NewRunner(ex Exchanger, opts Options) *Runner {
	opts.defaults()
	return &Runner{ex: ex, opts: opts, log: newLog(opts.RunID)}
}

// RunID identifies the records this runner produces.
func (r *Runner) RunID() string { return r.opts.RunID }

// Run executes cs in order. Cancellation is honoured between cases and
// interrupts an in-flight wait; the interrupted case is not recorded. The
// records produced so far are returned with the error.
func (r *Runner) Run(ctx context.Context, cs []cases.Case) ([]Record, error) {
	if m := r.opts.Metrics; m != nil {
		m.SetTotalCases(len(cs))
		m.Start()
		defer m.Stop()
	}
	records := make([]Record, 0, len(cs))
	for i, c := range cs {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec, sent, err := r.runCase(ctx, i+1, c)
		if err != nil {
			return records, err
		}
		if err := r.finalize(rec); err != nil {
			return records, err
		}
		records = append(records, rec)
		if sent {
			if err := r.opts.Sleep(ctx, r.delayFor(c)); err != nil {
				return records, err
			}
		}
	}
	return records, nil
}

// delayFor is the pause after a sent case: the mode-change settle for
// source and layout changes, the set settle for other sets, never less than
// the rate limit.
func (r *Runner) delayFor(c cases.Case) time.Duration {
	d := r.opts.Rate
	switch {
	case c.IsModeChange:
		d = max(d, r.opts.ModeSettle)
	case c.IsSet:
		d = max(d, r.opts.SetSettle)
	}
	return d
}

func (r *Runner) runCase(ctx context.Context, seq int, c cases.Case) (Record, bool, error) {
	rec := newRecord(r.opts.RunID, seq, r.opts.Now().UTC(), c)
	pol := policy.Resolve(c.PolicyCode(), c.Category, c.Description)
	rec.ValidationMode = string(pol.Mode)
	rec.Parser = string(pol.Parser)

	if reason, ok := r.excluded(c); ok {
		rec.skip(MatchExcluded, reason)
		return rec, false, nil
	}
	if c.IsSerialOnly {
		rec.skip(MatchSerialOnly, "serial-only command")
		return rec, false, nil
	}
	if c.IsDisruptive {
		if !r.opts.IncludePower {
			rec.skip(MatchPowerStageDisabled, "power stage not enabled")
			return rec, false, nil
		}
		ok, err := r.opts.Gate.Confirm(ctx, c)
		if err != nil {
			return rec, false, err
		}
		if !ok {
			rec.skip(MatchOperatorDeclined, "declined by operator")
			return rec, false, nil
		}
	}

	r.log.debug(c, "tx %s", rec.TxHex)
	reply, err := r.ex.Exchange(ctx, c.Request(), r.opts.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return rec, false, ctx.Err()
		}
		rec.Transport = TransportSendError
		rec.Status, rec.MatchType = StatusFail, MatchSendError
		rec.addNote(err.Error())
		return rec, false, nil
	}

	var rx []byte
	if reply.Received {
		rx = reply.Data
		rec.Transport = TransportReply
		rec.RxHex = frame.Hex(rx)
		ms := float64(reply.Latency.Microseconds()) / 1000
		rec.LatencyMs = &ms
	} else {
		rec.Transport = TransportNoReply
	}
	if reply.Ignored > 0 {
		rec.addNote(fmt.Sprintf("ignored %d uncorrelated packet(s)", reply.Ignored))
	}

	v := Classify(c, pol, rx, r.opts.Profile)
	rec.Status = v.Status
	rec.MatchType = v.MatchType
	rec.Meaning = v.Meaning
	rec.Parsed = v.Parsed
	rec.RxReplyCode = v.RxReplyCode
	rec.Ambiguous = v.Ambiguous
	for _, n := range v.Notes {
		rec.addNote(n)
	}
	if v.Status == StatusSkipped {
		rec.SkipReason = strings.Join(v.Notes, "; ")
	}

	if r.opts.ClosedLoop && rec.Status == StatusPass && c.Synthesized() {
		if err := r.closeLoop(ctx, c, &rec); err != nil {
			return rec, true, err
		}
	}
	return rec, true, nil
}

func (r *Runner) excluded(c cases.Case) (string, bool) {
	for _, code := range []string{c.SetCode, c.ReplyCode} {
		if code == "" {
			continue
		}
		if reason, ok := r.opts.Exclusions.Lookup(r.opts.Profile, code); ok {
			return reason, true
		}
	}
	return "", false
}

// closeLoop reads the value back through the paired query after the set
// has settled. A readback that disagrees with the set value fails the case.
func (r *Runner) closeLoop(ctx context.Context, c cases.Case, rec *Record) error {
	query, ok := c.QueryRequest()
	if !ok {
		return nil
	}
	rec.QueryCode = c.QueryCode
	if err := r.opts.Sleep(ctx, r.delayFor(c)); err != nil {
		return err
	}
	reply, err := r.ex.Exchange(ctx, query, r.opts.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec.addNote("closed-loop query failed: " + err.Error())
		return nil
	}
	if !reply.Received {
		rec.addNote("closed-loop query got no reply")
		return nil
	}
	rec.QueryRxHex = frame.Hex(reply.Data)
	p, ok := frame.ExtractPayload(reply.Data)
	if !ok {
		rec.addNote("closed-loop reply has no payload")
		return nil
	}
	res, err := parsers.Parse(parsers.Range0to100, p.Data)
	if err != nil || res.Number == nil {
		rec.addNote("closed-loop reply not readable: " + res.Note)
		return nil
	}
	rec.QueryValue = res.Number
	if *res.Number != int64(*c.Value) {
		rec.Status = StatusFail
		rec.MatchType = MatchClosedLoopMismatch
		rec.addNote(fmt.Sprintf("read back %d after setting %d", *res.Number, *c.Value))
	}
	return nil
}

func (r *Runner) finalize(rec Record) error {
	if m := r.opts.Metrics; m != nil {
		tx := 0
		if rec.Transport != TransportNotSent {
			tx = len(rec.TxHex)/3 + 1
		}
		var latency time.Duration
		if rec.LatencyMs != nil {
			latency = time.Duration(*rec.LatencyMs * float64(time.Millisecond))
		}
		rx := 0
		if rec.RxHex != "" {
			rx = len(rec.RxHex)/3 + 1
		}
		m.AddCase(string(rec.Status), tx, rx, latency)
	}
	r.log.record(rec)
	for _, s := range r.opts.Sinks {
		if err := s.Put(rec); err != nil {
			return fmt.Errorf("record sink: %w", err)
		}
	}
	return nil
}

// RunUDP opens the endpoint described by topts, runs cs and closes the
// socket on every path.
func RunUDP(ctx context.Context, topts transport.Options, cs []cases.Case, opts Options) ([]Record, string, error) {
	ep, err := transport.Open(ctx, topts)
	if err != nil {
		return nil, "", err
	}
	defer ep.Close()
	runner := NewRunner(ep, opts)
	recs, err := runner.Run(ctx, cs)
	return recs, runner.RunID(), err
}
