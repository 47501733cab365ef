package certify

import (
	"github.com/rs/zerolog"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
)

type zlog struct {
	l zerolog.Logger
}

func newLog(runID string) zlog {
	return zlog{l: common.Logger("certify").With().Str("run", runID).Logger()}
}

func (z zlog) debug(c cases.Case, format string, args ...any) {
	z.l.Debug().Str("case", c.String()).Msgf(format, args...)
}

func (z zlog) record(rec Record) {
	ev := z.l.Info()
	switch rec.Status {
	case StatusFail, StatusNoReply:
		ev = z.l.Warn()
	}
	ev = ev.Int("seq", rec.Seq).
		Str("key", rec.CommandKey).
		Str("status", string(rec.Status)).
		Str("match", rec.MatchType)
	if rec.Value != nil {
		ev = ev.Int("value", *rec.Value)
	}
	if rec.LatencyMs != nil {
		ev = ev.Float64("latency_ms", *rec.LatencyMs)
	}
	if rec.Note != "" {
		ev = ev.Str("note", rec.Note)
	}
	ev.Msg("case")
}
