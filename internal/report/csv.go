package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

var csvHeader = []string{
	"seq", "ts", "stage", "source", "category", "description", "commandKey", "setCode",
	"replyCode", "rxReplyCode", "validationMode", "parser", "value", "status", "matchType",
	"transport", "latencyMs", "meaning", "parsed", "queryCode", "queryValue", "note",
	"skipReason", "ambiguous", "txHex", "rxHex", "expectedHex",
}

func SaveCSV(rep Report, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return err
	}
	for _, r := range rep.Records {
		if err := w.Write(csvRow(r)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func csvRow(r certify.Record) []string {
	parsed := ""
	if len(r.Parsed) > 0 {
		if b, err := json.Marshal(r.Parsed); err == nil {
			parsed = string(b)
		}
	}
	latency := ""
	if r.LatencyMs != nil {
		latency = strconv.FormatFloat(*r.LatencyMs, 'f', 3, 64)
	}
	value := ""
	if r.Value != nil {
		value = strconv.Itoa(*r.Value)
	}
	queryValue := ""
	if r.QueryValue != nil {
		queryValue = strconv.FormatInt(*r.QueryValue, 10)
	}
	return []string{
		strconv.Itoa(r.Seq), r.Ts.Format("2006-01-02T15:04:05.000Z07:00"), r.Stage, r.Source,
		r.Category, r.Description, r.CommandKey, r.SetCode, r.ReplyCode, r.RxReplyCode,
		r.ValidationMode, r.Parser, value, string(r.Status), r.MatchType, string(r.Transport),
		latency, r.Meaning, parsed, r.QueryCode, queryValue, strings.Join(r.Notes, "; "),
		r.SkipReason, strconv.FormatBool(r.Ambiguous), r.TxHex, r.RxHex, r.ExpectedHex,
	}
}
