package tracking

// CrossingStatus is the crossing state of a single track.
type CrossingStatus int

const (
	// StatusAwaiting means the track has not crossed a line yet.
	StatusAwaiting CrossingStatus = iota
	// StatusEntered is terminal: the track crossed the entry line downwards.
	StatusEntered
	// StatusExited is terminal: the track crossed the exit line upwards.
	StatusExited
)

func (s CrossingStatus) String() string {
	switch s {
	case StatusEntered:
		return "entered"
	case StatusExited:
		return "exited"
	default:
		return "none"
	}
}

// Track is one identity followed across frames.
type Track struct {
	ID      int
	History History
	Age     int // frames since last match
	Status  CrossingStatus
}

// Centroid returns the current (latest) position of the track.
func (t *Track) Centroid() Point {
	p, _ := t.History.Last()
	return p
}

// TrackStore owns every live track. Enumeration follows creation order,
// which the associator depends on.
type TrackStore struct {
	tracks map[int]*Track
	order  []int
	nextID int
}

// NewTrackStore returns an empty store whose first track gets id 1.
func NewTrackStore() *TrackStore {
	return &TrackStore{
		tracks: make(map[int]*Track),
		nextID: 1,
	}
}

// Create registers a new track at p with the next unused id.
func (s *TrackStore) Create(p Point) *Track {
	t := &Track{ID: s.nextID}
	t.History.Append(p)
	s.nextID++
	s.tracks[t.ID] = t
	s.order = append(s.order, t.ID)
	return t
}

// Get returns the track with the given id, or nil.
func (s *TrackStore) Get(id int) *Track {
	return s.tracks[id]
}

// Remove deletes a track and all of its state. Unknown ids are ignored.
func (s *TrackStore) Remove(id int) {
	if _, ok := s.tracks[id]; !ok {
		return
	}
	delete(s.tracks, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Tracks returns the live tracks in creation order. The slice is fresh but
// the tracks are shared; callers must not keep them past the current frame.
func (s *TrackStore) Tracks() []*Track {
	out := make([]*Track, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tracks[id])
	}
	return out
}

// Len returns the number of live tracks.
func (s *TrackStore) Len() int {
	return len(s.order)
}

// TrackSnapshot is a read-only copy of a track.
type TrackSnapshot struct {
	ID       int     `json:"id"`
	Centroid Point   `json:"centroid"`
	History  []Point `json:"history"`
	Age      int     `json:"age"`
	Status   string  `json:"status"`
}

// Snapshot copies all live tracks, in creation order.
func (s *TrackStore) Snapshot() []TrackSnapshot {
	out := make([]TrackSnapshot, 0, len(s.order))
	for _, t := range s.Tracks() {
		out = append(out, TrackSnapshot{
			ID:       t.ID,
			Centroid: t.Centroid(),
			History:  t.History.Points(),
			Age:      t.Age,
			Status:   t.Status.String(),
		})
	}
	return out
}
