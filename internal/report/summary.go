package report

import (
	"sort"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

// Summary totals a record set. Pass is true when nothing failed and every
// sent request got an acceptable answer.
type Summary struct {
	Total   int            `json:"total"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	NoReply int            `json:"noReply"`
	Skipped int            `json:"skipped"`
	ByMatch map[string]int `json:"byMatch,omitempty"`
	Pass    bool           `json:"pass"`
}

func Summarize(recs []certify.Record) Summary {
	s := Summary{Total: len(recs), ByMatch: map[string]int{}}
	for _, r := range recs {
		switch r.Status {
		case certify.StatusPass:
			s.Passed++
		case certify.StatusFail:
			s.Failed++
		case certify.StatusNoReply:
			s.NoReply++
		case certify.StatusSkipped:
			s.Skipped++
		}
		if r.MatchType != "" {
			s.ByMatch[r.MatchType]++
		}
	}
	s.Pass = s.Failed == 0 && s.NoReply == 0
	return s
}

// MatchTypes returns the match types present in s, most frequent first.
func (s Summary) MatchTypes() []string {
	out := make([]string, 0, len(s.ByMatch))
	for m := range s.ByMatch {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if s.ByMatch[out[i]] != s.ByMatch[out[j]] {
			return s.ByMatch[out[i]] > s.ByMatch[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Problems returns the records that failed or got no reply.
func Problems(recs []certify.Record) []certify.Record {
	var out []certify.Record
	for _, r := range recs {
		if r.Status == certify.StatusFail || r.Status == certify.StatusNoReply {
			out = append(out, r)
		}
	}
	return out
}
