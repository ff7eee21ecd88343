package tracking

// CrossingKind is the direction of a line crossing.
type CrossingKind string

const (
	CrossingEntry CrossingKind = "entry"
	CrossingExit  CrossingKind = "exit"
)

// CrossingEvent is emitted once per track when it crosses a line.
type CrossingEvent struct {
	TrackID    int          `json:"track_id"`
	Kind       CrossingKind `json:"kind"`
	FrameIndex int64        `json:"frame_index"`
	Centroid   Point        `json:"centroid"`
}

// Counts are the session totals.
type Counts struct {
	Entries int `json:"entries"`
	Exits   int `json:"exits"`
}

// Net is entries minus exits, the footfall figure.
func (c Counts) Net() int {
	return c.Entries - c.Exits
}

// CrossingDetector runs the per-track crossing state machine against an
// entry line (crossed downwards) and an exit line (crossed upwards).
type CrossingDetector struct {
	entryLineY int
	exitLineY  int
	counts     Counts
}

// NewCrossingDetector returns a detector with zeroed counters.
func NewCrossingDetector(entryLineY, exitLineY int) *CrossingDetector {
	return &CrossingDetector{entryLineY: entryLineY, exitLineY: exitLineY}
}

// Evaluate checks the latest segment of t. Tracks that already crossed, or
// have fewer than two points, never fire. Entry is tested before exit.
func (d *CrossingDetector) Evaluate(t *Track) (CrossingKind, bool) {
	n := t.History.Len()
	if n < 2 || t.Status != StatusAwaiting {
		return "", false
	}
	prevY := t.History.At(n - 2).Y
	currY := t.History.At(n - 1).Y

	if prevY < d.entryLineY && currY >= d.entryLineY {
		t.Status = StatusEntered
		d.counts.Entries++
		return CrossingEntry, true
	}
	if prevY > d.exitLineY && currY <= d.exitLineY {
		t.Status = StatusExited
		d.counts.Exits++
		return CrossingExit, true
	}
	return "", false
}

// Counts returns the current totals.
func (d *CrossingDetector) Counts() Counts {
	return d.counts
}
