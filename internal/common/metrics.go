package common

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Metrics accumulates per-run counters. It is safe for concurrent use and is
// fed one finalized record at a time.
type Metrics struct {
	mu       sync.Mutex
	start    time.Time
	end      time.Time
	total    int64
	cases    int64
	byStatus map[string]int64
	txBytes  int64
	rxBytes  int64
	replies  int64
	latency  time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{byStatus: make(map[string]int64)}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) SetTotalCases(total int) {
	if total < 0 {
		total = 0
	}
	m.mu.Lock()
	m.total = int64(total)
	m.mu.Unlock()
}

// AddCase records one classified case. latency is only counted when a reply
// arrived.
func (m *Metrics) AddCase(status string, tx, rx int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases++
	m.byStatus[status]++
	if tx > 0 {
		m.txBytes += int64(tx)
	}
	if rx > 0 {
		m.rxBytes += int64(rx)
		m.replies++
		m.latency += latency
	}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make(map[string]int64, len(m.byStatus))
	for k, v := range m.byStatus {
		statuses[k] = v
	}
	var avg time.Duration
	if m.replies > 0 {
		avg = m.latency / time.Duration(m.replies)
	}
	return MetricsSnapshot{
		Duration:   m.elapsedLocked(),
		TotalCases: m.total,
		Cases:      m.cases,
		ByStatus:   statuses,
		TxBytes:    m.txBytes,
		RxBytes:    m.rxBytes,
		AvgLatency: avg,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration   time.Duration
	TotalCases int64
	Cases      int64
	ByStatus   map[string]int64
	TxBytes    int64
	RxBytes    int64
	AvgLatency time.Duration
}

func (s MetricsSnapshot) Completion() float64 {
	if s.TotalCases <= 0 {
		return 0
	}
	ratio := float64(s.Cases) / float64(s.TotalCases)
	if ratio > 1 {
		return 1
	}
	return ratio
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div := float64(unit)
	exp := 0
	for n := float64(b) / div; n >= unit && exp < 6; n /= unit {
		div *= unit
		exp++
	}
	prefixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.2f %s", float64(b)/div, prefixes[exp])
}

func formatProgressLine(s MetricsSnapshot) string {
	counts := fmt.Sprintf("pass %d fail %d no-reply %d skipped %d",
		s.ByStatus["PASS"], s.ByStatus["FAIL"], s.ByStatus["NO_REPLY"], s.ByStatus["SKIPPED"])
	if s.TotalCases > 0 {
		return fmt.Sprintf("Cases: %d/%d (%5.1f%%) %s avg %s", s.Cases, s.TotalCases, s.Completion()*100, counts, s.AvgLatency.Round(time.Millisecond))
	}
	return fmt.Sprintf("Cases: %d %s avg %s", s.Cases, counts, s.AvgLatency.Round(time.Millisecond))
}

// StartProgressPrinter rewrites one status line on w every interval until
// the returned stop function is called.
func StartProgressPrinter(w io.Writer, m *Metrics, interval time.Duration) func() {
	if m == nil || w == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastLen := 0
		for {
			select {
			case <-ticker.C:
				line := formatProgressLine(m.Snapshot())
				pad := lastLen - len(line)
				if pad > 0 {
					line += strings.Repeat(" ", pad)
				}
				fmt.Fprintf(w, "\r%s", line)
				lastLen = len(line)
			case <-done:
				if lastLen > 0 {
					fmt.Fprintf(w, "\r%s\r\n", strings.Repeat(" ", lastLen))
				}
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
