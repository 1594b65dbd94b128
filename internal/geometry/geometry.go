// Package geometry implements the planar polygon operations used to place
// license parcels inside administrative regions.
//
// All coordinates are (latitude, longitude) pairs in degrees, latitude first.
// Conversion from lon-first source formats happens at the data-loading
// boundary, never here.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// MinPolygonPoints is the smallest number of distinct vertices a polygon may have.
const MinPolygonPoints = 3

// ErrGeometry is the sentinel matched by every GeometryError.
var ErrGeometry = errors.New("invalid geometry")

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are finite.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// Polygon is an implicitly closed ring of points: the first vertex is not
// repeated at the end. Callers must supply simple (non self-intersecting)
// polygons; this is assumed, not verified.
type Polygon []Point

// GeometryError reports a malformed polygon or point handed to a geometry
// operation. It indicates corrupt source data and is never silently ignored.
type GeometryError struct {
	Op     string
	Points int
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: %s: %s (points=%d)", e.Op, e.Reason, e.Points)
}

// Unwrap lets errors.Is(err, ErrGeometry) match.
func (e *GeometryError) Unwrap() error {
	return ErrGeometry
}

// NewPolygon builds a polygon from points, dropping a trailing vertex that
// repeats the first one (closed GeoJSON-style rings).
func NewPolygon(points []Point) (Polygon, error) {
	pts := points
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	poly := make(Polygon, len(pts))
	copy(poly, pts)
	if err := poly.Validate("new polygon"); err != nil {
		return nil, err
	}
	return poly, nil
}

// Validate checks the vertex count and that every vertex is finite.
func (p Polygon) Validate(op string) error {
	if len(p) < MinPolygonPoints {
		return &GeometryError{Op: op, Points: len(p), Reason: "polygon needs at least 3 points"}
	}
	for i, pt := range p {
		if !pt.Valid() {
			return &GeometryError{Op: op, Points: len(p), Reason: fmt.Sprintf("vertex %d is not finite", i)}
		}
	}
	return nil
}

// Rotate returns a copy of p whose vertex order starts at index k (mod len).
func (p Polygon) Rotate(k int) Polygon {
	n := len(p)
	if n == 0 {
		return Polygon{}
	}
	k = ((k % n) + n) % n
	out := make(Polygon, 0, n)
	out = append(out, p[k:]...)
	out = append(out, p[:k]...)
	return out
}

// Reverse returns a copy of p with the opposite winding.
func (p Polygon) Reverse() Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[len(p)-1-i] = pt
	}
	return out
}
