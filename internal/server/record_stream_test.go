package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

type brokenWriter struct {
	http.ResponseWriter
	writes int
}

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.writes++
	return 0, errors.New("connection reset")
}

func TestRecordStreamLines(t *testing.T) {
	rec := httptest.NewRecorder()
	s := newRecordStream(rec)
	for i := 1; i <= 2; i++ {
		if err := s.Put(certify.Record{Seq: i, CommandKey: "query_screen", Status: certify.StatusPass}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := s.Finish(runResult{Done: true, RunID: "r1"}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if s.Sent() != 2 || !rec.Flushed {
		t.Fatalf("sent=%d flushed=%v", s.Sent(), rec.Flushed)
	}
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	var last runResult
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil || !last.Done || last.RunID != "r1" {
		t.Fatalf("last line %q: %v", lines[2], err)
	}
}

func TestRecordStreamClientGone(t *testing.T) {
	w := &brokenWriter{ResponseWriter: httptest.NewRecorder()}
	s := newRecordStream(w)
	for i := 1; i <= 3; i++ {
		if err := s.Put(certify.Record{Seq: i, CommandKey: "heartbeat"}); err != nil {
			t.Fatalf("Put must not abort the run: %v", err)
		}
	}
	if w.writes != 1 {
		t.Fatalf("writes after failure = %d, want 1", w.writes)
	}
	err := s.Finish(runResult{Done: true, RunID: "r1"})
	if err == nil || !strings.Contains(err.Error(), "stream record 1 (heartbeat)") {
		t.Fatalf("Finish = %v", err)
	}
	if s.Sent() != 0 {
		t.Fatalf("sent = %d", s.Sent())
	}
}
