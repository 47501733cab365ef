package report

import (
	"html/template"
	"os"
	"strconv"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"label":   recordLabel,
	"pass":    passLabel,
	"time":    timeLabel,
	"latency": latencyLabel,
	"rowclass": func(s certify.Status) string {
		switch s {
		case certify.StatusPass:
			return "pass"
		case certify.StatusSkipped:
			return "skip"
		}
		return "fail"
	},
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Certification {{.RunID}}</title>
<style>
body{font-family:sans-serif;margin:2em}table{border-collapse:collapse;width:100%}
td,th{border:1px solid #ccc;padding:3px 6px;font-size:12px;text-align:left}
tr.pass td{background:#eef9ee}tr.fail td{background:#fbeaea}tr.skip td{background:#f3f3f3}
code{font-size:11px}
</style></head><body>
<h1>Protocol Certification Report</h1>
<table>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Profile</th><td>{{.Profile}}</td></tr>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Target</th><td>{{.Target}}</td></tr>
<tr><th>Started</th><td>{{time .Started}}</td></tr>
<tr><th>Finished</th><td>{{time .Finished}}</td></tr>
<tr><th>Cases</th><td>{{.Summary.Total}} (pass {{.Summary.Passed}}, fail {{.Summary.Failed}}, no reply {{.Summary.NoReply}}, skipped {{.Summary.Skipped}})</td></tr>
<tr><th>Overall</th><td>{{pass .Summary.Pass}}</td></tr>
</table>
<h2>Records</h2>
<table>
<tr><th>#</th><th>Command</th><th>Stage</th><th>Mode</th><th>Status</th><th>Match</th><th>Meaning</th><th>ms</th><th>Note</th></tr>
{{range .Records}}<tr class="{{rowclass .Status}}"><td>{{.Seq}}</td><td>{{label .}}</td><td>{{.Stage}}</td><td>{{.ValidationMode}}</td><td>{{.Status}}</td><td>{{.MatchType}}</td><td>{{.Meaning}}</td><td>{{latency .LatencyMs}}</td><td>{{.Note}}{{if .SkipReason}} {{.SkipReason}}{{end}}</td></tr>
{{end}}</table>
</body></html>
`))

func SaveHTML(rep Report, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := htmlTemplate.Execute(f, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func latencyLabel(ms *float64) string {
	if ms == nil {
		return "-"
	}
	return strconv.FormatFloat(*ms, 'f', 1, 64)
}
