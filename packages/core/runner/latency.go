package runner

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const maxLatencyUs = 60_000_000

// LatencySummary describes how long driver waits took across a run.
type LatencySummary struct {
	Count int64
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
	// ByOp counts waits per driver operation.
	ByOp map[string]int64
}

// latencyRecorder implements driver.Observer. It is shared by every
// scenario of a run.
type latencyRecorder struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	byOp      map[string]int64
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{
		// 1us to 60s, 3 significant digits
		histogram: hdrhistogram.New(1, maxLatencyUs, 3),
		byOp:      make(map[string]int64),
	}
}

func (l *latencyRecorder) ObserveWait(op string, d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.histogram.RecordValue(us)
	l.byOp[op]++
}

func (l *latencyRecorder) summary() LatencySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	s := LatencySummary{
		Count: l.histogram.TotalCount(),
		ByOp:  make(map[string]int64, len(l.byOp)),
	}
	for op, n := range l.byOp {
		s.ByOp[op] = n
	}
	if s.Count == 0 {
		return s
	}
	s.Mean = time.Duration(l.histogram.Mean() * float64(time.Microsecond))
	s.P50 = us(l.histogram.ValueAtQuantile(50))
	s.P95 = us(l.histogram.ValueAtQuantile(95))
	s.P99 = us(l.histogram.ValueAtQuantile(99))
	s.Max = us(l.histogram.Max())
	return s
}
