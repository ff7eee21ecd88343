package tracking

// Match pairs a track with the index of the detection it claimed.
type Match struct {
	TrackID int
	Index   int
}

// Assignment is the outcome of associating one frame's detections.
type Assignment struct {
	Matches   []Match // in track enumeration order
	Unmatched []int   // detection indices nobody claimed, ascending
}

// Associate greedily links tracks to new centroids.
//
// Tracks are visited in the given order; each claims the nearest unclaimed
// centroid if it lies strictly closer than maxDistance. Equal distances go to
// the centroid seen first. The result is order-dependent and not a globally
// optimal assignment.
func Associate(tracks []*Track, centroids []Point, maxDistance float64) Assignment {
	claimed := make([]bool, len(centroids))
	var res Assignment

	if len(centroids) > 0 {
		for _, t := range tracks {
			cur := t.Centroid()
			best := -1
			bestDist := maxDistance
			for i, c := range centroids {
				if claimed[i] {
					continue
				}
				if d := Distance(cur, c); d < bestDist {
					bestDist = d
					best = i
				}
			}
			if best >= 0 {
				claimed[best] = true
				res.Matches = append(res.Matches, Match{TrackID: t.ID, Index: best})
			}
		}
	}

	for i, ok := range claimed {
		if !ok {
			res.Unmatched = append(res.Unmatched, i)
		}
	}
	return res
}
