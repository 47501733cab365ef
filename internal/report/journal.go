package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/daveleo/exview-aio-protocol-tool/internal/certify"
)

// Journal appends every record to a JSONL file as soon as it is finalized,
// so an interrupted run still leaves its results on disk.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal returns a Journal that writes to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Put implements certify.RecordSink.
func (j *Journal) Put(r certify.Record) error {
	if j == nil {
		return errors.New("nil journal")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	dir := filepath.Dir(j.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadJournal loads every record from a JSONL journal.
func ReadJournal(path string) ([]certify.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var recs []certify.Record
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var r certify.Record
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("decode journal line %d: %w", line, err)
		}
		recs = append(recs, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
