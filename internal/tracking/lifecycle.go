package tracking

// Lifecycle applies association results to a TrackStore.
type Lifecycle struct {
	store  *TrackStore
	maxAge int
}

// NewLifecycle returns a lifecycle manager that expires tracks left
// unmatched for more than maxAge frames.
func NewLifecycle(store *TrackStore, maxAge int) *Lifecycle {
	return &Lifecycle{store: store, maxAge: maxAge}
}

// LifecycleResult lists what one Apply call changed.
type LifecycleResult struct {
	Matched []*Track // valid until the next frame
	Created []int
	Expired []int
}

// Apply updates the store for one frame: matched tracks get the claimed
// centroid and age 0, unclaimed centroids become new tracks, every other
// track ages by one, and tracks older than maxAge are removed.
func (l *Lifecycle) Apply(centroids []Point, a Assignment) LifecycleResult {
	var res LifecycleResult
	touched := make(map[int]bool, len(a.Matches)+len(a.Unmatched))

	for _, m := range a.Matches {
		t := l.store.Get(m.TrackID)
		if t == nil {
			continue
		}
		t.History.Append(centroids[m.Index])
		t.Age = 0
		touched[t.ID] = true
		res.Matched = append(res.Matched, t)
	}

	for _, idx := range a.Unmatched {
		t := l.store.Create(centroids[idx])
		touched[t.ID] = true
		res.Created = append(res.Created, t.ID)
	}

	// Age first, then expire, so the threshold is checked against this
	// frame's age.
	for _, t := range l.store.Tracks() {
		if touched[t.ID] {
			continue
		}
		t.Age++
		if t.Age > l.maxAge {
			res.Expired = append(res.Expired, t.ID)
		}
	}
	for _, id := range res.Expired {
		l.store.Remove(id)
	}
	return res
}
