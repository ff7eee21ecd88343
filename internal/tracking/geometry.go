package tracking

import "gonum.org/v1/gonum/floats"

// Point is an integer pixel coordinate, used for box centroids.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BBox is an axis-aligned bounding box in frame pixel coordinates.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the box has positive width and height.
func (b BBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Centroid returns the box center using floor division.
func (b BBox) Centroid() Point {
	// >> 1 floors for negative sums too, unlike / 2.
	return Point{
		X: (b.X1 + b.X2) >> 1,
		Y: (b.Y1 + b.Y2) >> 1,
	}
}

// Centroids maps boxes to their centroids, preserving order.
func Centroids(boxes []BBox) []Point {
	out := make([]Point, len(boxes))
	for i, b := range boxes {
		out[i] = b.Centroid()
	}
	return out
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return floats.Distance(
		[]float64{float64(a.X), float64(a.Y)},
		[]float64{float64(b.X), float64(b.Y)},
		2,
	)
}
