package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func trackWith(points ...Point) *Track {
	tr := &Track{ID: 1}
	for _, p := range points {
		tr.History.Append(p)
	}
	return tr
}

func TestCrossingEntry(t *testing.T) {
	d := NewCrossingDetector(100, 300)
	tr := trackWith(Point{50, 90}, Point{50, 105})

	kind, ok := d.Evaluate(tr)

	assert.True(t, ok)
	assert.Equal(t, CrossingEntry, kind)
	assert.Equal(t, StatusEntered, tr.Status)
	assert.Equal(t, Counts{Entries: 1}, d.Counts())
}

func TestCrossingEntryLandingOnLine(t *testing.T) {
	d := NewCrossingDetector(100, 300)
	kind, ok := d.Evaluate(trackWith(Point{0, 99}, Point{0, 100}))
	assert.True(t, ok)
	assert.Equal(t, CrossingEntry, kind)
}

func TestCrossingExit(t *testing.T) {
	d := NewCrossingDetector(100, 300)
	tr := trackWith(Point{50, 320}, Point{50, 300})

	kind, ok := d.Evaluate(tr)

	assert.True(t, ok)
	assert.Equal(t, CrossingExit, kind)
	assert.Equal(t, StatusExited, tr.Status)
	assert.Equal(t, Counts{Exits: 1}, d.Counts())
	assert.Equal(t, -1, d.Counts().Net())
}

func TestCrossingNoEvent(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
	}{
		{"single point", []Point{{0, 150}}},
		{"starting on entry line", []Point{{0, 100}, {0, 140}}},
		{"moving up through entry line", []Point{{0, 120}, {0, 80}}},
		{"moving down through exit line", []Point{{0, 280}, {0, 320}}},
		{"starting on exit line", []Point{{0, 300}, {0, 250}}},
		{"between lines", []Point{{0, 150}, {0, 200}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewCrossingDetector(100, 300)
			tr := trackWith(tt.points...)
			_, ok := d.Evaluate(tr)
			assert.False(t, ok)
			assert.Equal(t, StatusAwaiting, tr.Status)
			assert.Equal(t, Counts{}, d.Counts())
		})
	}
}

func TestCrossingOnlyLatestSegmentCounts(t *testing.T) {
	d := NewCrossingDetector(100, 300)
	// The crossing happened between the first two points, which is no
	// longer the latest segment.
	_, ok := d.Evaluate(trackWith(Point{0, 90}, Point{0, 110}, Point{0, 120}))
	assert.False(t, ok)
}

func TestCrossingTerminalStatusIsPermanent(t *testing.T) {
	d := NewCrossingDetector(100, 110)
	tr := trackWith(Point{50, 90}, Point{50, 105})
	_, ok := d.Evaluate(tr)
	assert.True(t, ok)

	// Re-crossing the entry line upwards also satisfies the exit rule
	// against a line at 110, but the track is already terminal.
	tr.History.Append(Point{50, 120})
	_, ok = d.Evaluate(tr)
	assert.False(t, ok)
	tr.History.Append(Point{50, 98})
	_, ok = d.Evaluate(tr)
	assert.False(t, ok)

	assert.Equal(t, StatusEntered, tr.Status)
	assert.Equal(t, Counts{Entries: 1}, d.Counts())
}

func TestCrossingEntryCheckedBeforeExit(t *testing.T) {
	// Exit line above the entry line: a downward step across the entry line
	// starting below the exit line could only ever match entry; the exit
	// counter must stay untouched.
	d := NewCrossingDetector(100, 50)
	tr := trackWith(Point{0, 60}, Point{0, 100})

	kind, ok := d.Evaluate(tr)

	assert.True(t, ok)
	assert.Equal(t, CrossingEntry, kind)
	assert.Equal(t, Counts{Entries: 1}, d.Counts())

	tr.History.Append(Point{0, 40})
	_, ok = d.Evaluate(tr)
	assert.False(t, ok)
	assert.Equal(t, Counts{Entries: 1}, d.Counts())
}
