package rowpager

import (
	"fmt"
	"iter"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultProgressInterval is the minimal delay between two progress reports.
const DefaultProgressInterval = time.Second

// ProgressSnapshot describes stream progress at a point in time.
type ProgressSnapshot struct {
	Rows          int64
	Chunks        int64
	Total         int64 // 0 when unknown
	Elapsed       time.Duration
	RowsPerSecond float64
	// ETA is zero when Total is unknown or the rate is not measurable yet.
	ETA  time.Duration
	Done bool
}

// Percent returns completion in [0, 100], or -1 when Total is unknown.
func (s ProgressSnapshot) Percent() float64 {
	if s.Total <= 0 {
		return -1
	}

	return min(float64(s.Rows)/float64(s.Total)*100, 100)
}

func (s ProgressSnapshot) String() string {
	rate := humanize.CommafWithDigits(s.RowsPerSecond, 1)
	if s.Total <= 0 {
		return fmt.Sprintf("%s rows (%s rows/s)", humanize.Comma(s.Rows), rate)
	}

	return fmt.Sprintf(
		"%s/%s rows, %.1f%% (%s rows/s, eta %s)",
		humanize.Comma(s.Rows), humanize.Comma(s.Total), s.Percent(), rate, s.ETA.Round(time.Second),
	)
}

// ProgressTracker reports stream throughput. Reports are throttled to at most
// one per interval no matter how often chunks arrive. Throttling affects
// reporting only, never the data flow.
//
// ProgressTracker is not safe for concurrent use.
type ProgressTracker struct {
	total      int64
	interval   time.Duration
	report     func(ProgressSnapshot)
	now        func() time.Time
	start      time.Time
	lastReport time.Time
	rows       int64
	chunks     int64
}

type ProgressOption func(*ProgressTracker)

// WithProgressInterval overrides DefaultProgressInterval.
func WithProgressInterval(interval time.Duration) ProgressOption {
	return func(t *ProgressTracker) {
		t.interval = interval
	}
}

// WithProgressClock overrides time.Now.
func WithProgressClock(now func() time.Time) ProgressOption {
	return func(t *ProgressTracker) {
		t.now = now
	}
}

// NewProgressTracker creates a tracker. total may be 0 when unknown. report
// may be nil when snapshots are only read from Update.
func NewProgressTracker(total int64, report func(ProgressSnapshot), opts ...ProgressOption) *ProgressTracker {
	t := &ProgressTracker{
		total:    total,
		interval: DefaultProgressInterval,
		report:   report,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.start = t.now()
	t.lastReport = t.start

	return t
}

// Update records a chunk of n rows. It returns the snapshot and true when a
// report was emitted.
func (t *ProgressTracker) Update(n int) (ProgressSnapshot, bool) {
	t.rows += int64(n)
	t.chunks++

	now := t.now()
	if now.Sub(t.lastReport) < t.interval {
		return ProgressSnapshot{}, false
	}

	t.lastReport = now
	snapshot := t.snapshot(now, false)
	if t.report != nil {
		t.report(snapshot)
	}

	return snapshot, true
}

// Finish emits the final snapshot unconditionally.
func (t *ProgressTracker) Finish() ProgressSnapshot {
	snapshot := t.snapshot(t.now(), true)
	if t.report != nil {
		t.report(snapshot)
	}

	return snapshot
}

// Track wraps chunks, updating the tracker on every chunk and finishing it
// when the sequence ends.
func (t *ProgressTracker) Track(chunks iter.Seq2[[]Row, error]) iter.Seq2[[]Row, error] {
	return func(yield func([]Row, error) bool) {
		defer t.Finish()

		for chunk, err := range chunks {
			if err == nil {
				t.Update(len(chunk))
			}

			if !yield(chunk, err) {
				return
			}
		}
	}
}

func (t *ProgressTracker) snapshot(now time.Time, done bool) ProgressSnapshot {
	elapsed := now.Sub(t.start)
	ret := ProgressSnapshot{
		Rows:    t.rows,
		Chunks:  t.chunks,
		Total:   t.total,
		Elapsed: elapsed,
		Done:    done,
	}

	if elapsed > 0 {
		ret.RowsPerSecond = float64(t.rows) / elapsed.Seconds()
	}

	if t.total > 0 && ret.RowsPerSecond > 0 && t.rows < t.total {
		ret.ETA = time.Duration(float64(t.total-t.rows) / ret.RowsPerSecond * float64(time.Second))
	}

	return ret
}
