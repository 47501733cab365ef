package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

const qrImageName = "run-digest"

// SavePDF renders rep as a certification report with the run digest as a
// QR code.
func SavePDF(rep Report, out string) error {
	digest, err := Digest(rep)
	if err != nil {
		return err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Protocol Certification Report", false)
	pdf.SetAuthor("certctl", false)
	pdf.SetCreator("certctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Protocol Certification Report")
	if err := addDigestQR(pdf, rep.RunID, digest); err != nil {
		return err
	}
	addSummarySection(pdf, rep, digest)
	addMatchSection(pdf, rep.Summary)
	addProblemsSection(pdf, Problems(rep.Records))
	addRecordsSection(pdf, rep.Records)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addDigestQR(pdf *gofpdf.Fpdf, runID, digest string) error {
	png, err := RunQR(runID, digest, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	pdf.ImageOptions(qrImageName, pageW-right-32, 18, 32, 32, false, opts, 0, "")
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, rep Report, digest string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	s := rep.Summary
	items := []struct {
		label string
		value string
	}{
		{label: "Run", value: rep.RunID},
		{label: "Profile", value: emptyFallback(rep.Profile, "-")},
		{label: "Mode", value: emptyFallback(rep.Mode, "-")},
		{label: "Target", value: emptyFallback(rep.Target, "-")},
		{label: "Started", value: timeLabel(rep.Started)},
		{label: "Finished", value: timeLabel(rep.Finished)},
		{label: "Cases", value: strconv.Itoa(s.Total)},
		{label: "Passed", value: strconv.Itoa(s.Passed)},
		{label: "Failed", value: strconv.Itoa(s.Failed)},
		{label: "No reply", value: strconv.Itoa(s.NoReply)},
		{label: "Skipped", value: strconv.Itoa(s.Skipped)},
		{label: "Overall", value: passLabel(s.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(35, 5.5, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5.5, item.value, "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, "sha256 "+digest, "", "L", false)
	pdf.Ln(4)
}

func addMatchSection(pdf *gofpdf.Fpdf, s Summary) {
	if len(s.ByMatch) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Match Types")
	pdf.Ln(9)
	widths := []float64{80, 25}
	tableHeader(pdf, []string{"Match type", "Count"}, widths)
	pdf.SetFont("Helvetica", "", 9)
	for _, m := range s.MatchTypes() {
		renderTableRow(pdf, widths, []string{m, strconv.Itoa(s.ByMatch[m])}, 5)
	}
	pdf.Ln(4)
}

func addProblemsSection(pdf *gofpdf.Fpdf, problems []certify.Record) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Failures")
	pdf.Ln(9)
	if len(problems) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No failures recorded.", "", "L", false)
		pdf.Ln(2)
		return
	}
	for _, r := range problems {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(0, 5, fmt.Sprintf("%d. %s (%s, %s)", r.Seq, recordLabel(r), r.Status, r.MatchType), "", "L", false)
		pdf.SetFont("Helvetica", "", 9)
		if note := strings.TrimSpace(r.Note); note != "" {
			pdf.MultiCell(0, 4, note, "", "L", false)
		}
		pdf.SetFont("Courier", "", 7)
		pdf.MultiCell(0, 3.5, "TX "+r.TxHex, "", "L", false)
		if r.RxHex != "" {
			pdf.MultiCell(0, 3.5, "RX "+r.RxHex, "", "L", false)
		}
		if r.ExpectedHex != "" && r.ExpectedHex != r.RxHex {
			pdf.MultiCell(0, 3.5, "EX "+r.ExpectedHex, "", "L", false)
		}
		pdf.Ln(2)
	}
}

func addRecordsSection(pdf *gofpdf.Fpdf, recs []certify.Record) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Records")
	pdf.Ln(9)
	headers := []string{"#", "Command", "Mode", "Status", "Match", "ms"}
	widths := []float64{12, 58, 30, 22, 46, 12}
	tableHeader(pdf, headers, widths)
	pdf.SetFont("Helvetica", "", 8)
	for _, r := range recs {
		latency := "-"
		if r.LatencyMs != nil {
			latency = strconv.FormatFloat(*r.LatencyMs, 'f', 1, 64)
		}
		renderTableRow(pdf, widths, []string{
			strconv.Itoa(r.Seq),
			recordLabel(r),
			r.ValidationMode,
			string(r.Status),
			r.MatchType,
			latency,
		}, 4.5)
	}
}

func tableHeader(pdf *gofpdf.Fpdf, headers []string, widths []float64) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if yStart+rowHeight > pageH-bottom {
		pdf.AddPage()
		xStart, yStart = pdf.GetX(), pdf.GetY()
	}
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func recordLabel(r certify.Record) string {
	if r.Value != nil {
		return fmt.Sprintf("%s=%d", r.CommandKey, *r.Value)
	}
	return r.CommandKey
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func timeLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
