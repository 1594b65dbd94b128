package geometry

import "math"

// Bounds is an axis-aligned lat/lon envelope.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf returns the bounding envelope of p.
func BoundsOf(p Polygon) (Bounds, error) {
	if err := p.Validate("bounds"); err != nil {
		return Bounds{}, err
	}
	return envelope(p), nil
}

func envelope(p Polygon) Bounds {
	b := Bounds{
		MinLat: math.Inf(1),
		MinLon: math.Inf(1),
		MaxLat: math.Inf(-1),
		MaxLon: math.Inf(-1),
	}
	for _, pt := range p {
		b.MinLat = math.Min(b.MinLat, pt.Lat)
		b.MinLon = math.Min(b.MinLon, pt.Lon)
		b.MaxLat = math.Max(b.MaxLat, pt.Lat)
		b.MaxLon = math.Max(b.MaxLon, pt.Lon)
	}
	return b
}

// Center returns the midpoint of the envelope.
func (b Bounds) Center() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// ContainsPoint reports whether pt lies inside or on the envelope.
func (b Bounds) ContainsPoint(pt Point) bool {
	return pt.Lat >= b.MinLat && pt.Lat <= b.MaxLat &&
		pt.Lon >= b.MinLon && pt.Lon <= b.MaxLon
}

// ContainsBounds reports whether o lies entirely inside or on b.
func (b Bounds) ContainsBounds(o Bounds) bool {
	return o.MinLat >= b.MinLat && o.MaxLat <= b.MaxLat &&
		o.MinLon >= b.MinLon && o.MaxLon <= b.MaxLon
}

// CentroidOf returns the center of the polygon's bounding envelope. It is a
// label and marker anchor, not the area centroid.
func CentroidOf(p Polygon) (Point, error) {
	b, err := BoundsOf(p)
	if err != nil {
		return Point{}, err
	}
	return b.Center(), nil
}
