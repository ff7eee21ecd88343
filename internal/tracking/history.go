package tracking

// HistoryCapacity is the number of centroids kept per track.
const HistoryCapacity = 5

// History is a fixed-capacity ring of the most recent centroids of a track.
// Appending to a full history evicts the oldest point.
type History struct {
	buf   [HistoryCapacity]Point
	start int
	n     int
}

// Append adds p as the newest point.
func (h *History) Append(p Point) {
	if h.n < HistoryCapacity {
		h.buf[(h.start+h.n)%HistoryCapacity] = p
		h.n++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % HistoryCapacity
}

// Len returns the number of stored points.
func (h *History) Len() int {
	return h.n
}

// At returns the i-th point, oldest first.
func (h *History) At(i int) Point {
	if i < 0 || i >= h.n {
		panic("tracking: history index out of range")
	}
	return h.buf[(h.start+i)%HistoryCapacity]
}

// Last returns the newest point. ok is false for an empty history.
func (h *History) Last() (p Point, ok bool) {
	if h.n == 0 {
		return Point{}, false
	}
	return h.At(h.n - 1), true
}

// Points copies the history out, oldest first.
func (h *History) Points() []Point {
	out := make([]Point, h.n)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}
