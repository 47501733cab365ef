package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

// recordStream sends each certification record to the client as one NDJSON
// line and closes the stream with the run result. Once a write fails the
// client is treated as gone: later records are dropped so the run and its
// journal carry on.
type recordStream struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	sent    int
	err     error
}

func newRecordStream(w http.ResponseWriter) *recordStream {
	s := &recordStream{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Put implements certify.RecordSink.
func (s *recordStream) Put(r certify.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil
	}
	if err := s.writeLine(r); err != nil {
		s.err = fmt.Errorf("stream record %d (%s): %w", r.Seq, r.CommandKey, err)
		return nil
	}
	s.sent++
	return nil
}

// Finish writes the final run result line. It reports the first write
// failure, if any.
func (s *recordStream) Finish(res runResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := s.writeLine(res); err != nil {
		return fmt.Errorf("stream run result %s: %w", res.RunID, err)
	}
	return nil
}

// Sent is the number of records delivered to the client.
func (s *recordStream) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *recordStream) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
