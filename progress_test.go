package rowpager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func Test_ProgressTracker_Throttling(t *testing.T) {
	clock := &fakeClock{now: _fixtureEpoch}

	var reports []ProgressSnapshot
	tracker := NewProgressTracker(1000, func(s ProgressSnapshot) {
		reports = append(reports, s)
	}, WithProgressInterval(time.Second), WithProgressClock(clock.Now))

	clock.Advance(100 * time.Millisecond)
	_, reported := tracker.Update(100)
	assert.False(t, reported)

	clock.Advance(900 * time.Millisecond)
	snapshot, reported := tracker.Update(100)
	require.True(t, reported)
	assert.Equal(t, int64(200), snapshot.Rows)
	assert.Equal(t, int64(2), snapshot.Chunks)
	assert.Equal(t, time.Second, snapshot.Elapsed)
	assert.InDelta(t, 200.0, snapshot.RowsPerSecond, 0.001)
	assert.Equal(t, 4*time.Second, snapshot.ETA)
	assert.InDelta(t, 20.0, snapshot.Percent(), 0.001)

	clock.Advance(500 * time.Millisecond)
	_, reported = tracker.Update(100)
	assert.False(t, reported)

	clock.Advance(500 * time.Millisecond)
	final := tracker.Finish()
	assert.True(t, final.Done)
	assert.Equal(t, int64(300), final.Rows)

	require.Len(t, reports, 2)
	assert.False(t, reports[0].Done)
	assert.True(t, reports[1].Done)
}

func Test_ProgressSnapshot_String(t *testing.T) {
	known := ProgressSnapshot{Rows: 1500, Total: 3000, RowsPerSecond: 1234.5, ETA: 1200 * time.Millisecond}
	assert.Equal(t, "1,500/3,000 rows, 50.0% (1,234.5 rows/s, eta 1s)", known.String())

	unknown := ProgressSnapshot{Rows: 1234567, RowsPerSecond: 10}
	assert.Equal(t, "1,234,567 rows (10 rows/s)", unknown.String())
	assert.Equal(t, -1.0, unknown.Percent())
}

func Test_ProgressTracker_Track(t *testing.T) {
	clock := &fakeClock{now: _fixtureEpoch}

	var reports []ProgressSnapshot
	tracker := NewProgressTracker(0, func(s ProgressSnapshot) {
		reports = append(reports, s)
	}, WithProgressInterval(time.Hour), WithProgressClock(clock.Now))

	chunks := [][]Row{{{"id": "a"}, {"id": "b"}}, {{"id": "c"}}}

	total := 0
	for chunk, err := range tracker.Track(staticChunks(chunks, nil)) {
		require.NoError(t, err)
		total += len(chunk)
		clock.Advance(time.Second)
	}

	assert.Equal(t, 3, total)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Done)
	assert.Equal(t, int64(3), reports[0].Rows)
	assert.Equal(t, int64(2), reports[0].Chunks)
	assert.Zero(t, reports[0].ETA)
}
