// Package geometry provides the small planar helpers used to classify touch
// groups: centroids, bounding boxes and a drag distance metric.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// axisEpsilon is the delta below which an axis is treated as stationary.
const axisEpsilon = 0.0001

// Point is a position on the touch surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle. The zero value is not null; use NullRect
// or BoundingBox of an empty set to obtain one.
type Rect struct {
	Origin Point
	Width  float64
	Height float64
	Null   bool
}

// NullRect returns the rectangle representing an empty point set.
func NullRect() Rect {
	return Rect{Null: true}
}

// IsNull reports whether the rectangle was built from no points.
func (r Rect) IsNull() bool { return r.Null }

func (r Rect) MinX() float64 { return r.Origin.X }
func (r Rect) MinY() float64 { return r.Origin.Y }
func (r Rect) MaxX() float64 { return r.Origin.X + r.Width }
func (r Rect) MaxY() float64 { return r.Origin.Y + r.Height }

// Contains reports whether p lies inside or on the rectangle edge.
func (r Rect) Contains(p Point) bool {
	if r.Null {
		return false
	}
	return p.X >= r.MinX() && p.X <= r.MaxX() && p.Y >= r.MinY() && p.Y <= r.MaxY()
}

// Centroid returns the arithmetic mean of points. ok is false when points is empty.
func Centroid(points []Point) (centroid Point, ok bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}, true
}

// BoundingBox returns the smallest rectangle containing every point, or a null
// rectangle for an empty input.
func BoundingBox(points []Point) Rect {
	if len(points) == 0 {
		return NullRect()
	}

	minP, maxP := points[0], points[0]
	for _, p := range points[1:] {
		minP.X = math.Min(p.X, minP.X)
		minP.Y = math.Min(p.Y, minP.Y)
		maxP.X = math.Max(p.X, maxP.X)
		maxP.Y = math.Max(p.Y, maxP.Y)
	}

	return Rect{
		Origin: minP,
		Width:  maxP.X - minP.X,
		Height: maxP.Y - minP.Y,
	}
}

// Distance measures how far b lies from a. When either axis is effectively
// stationary the other axis delta is returned directly.
func Distance(a, b Point) float64 {
	dx := math.Abs(b.X - a.X)
	dy := math.Abs(b.Y - a.Y)

	if dx < axisEpsilon {
		return dy
	}
	if dy < axisEpsilon {
		return dx
	}
	return math.Sqrt(dx*dx + dy*dy)
}
