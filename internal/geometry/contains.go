package geometry

import (
	"math"
	"sort"
)

// edgeEpsilon is the tolerance (in squared degrees) for treating a point as
// lying on a polygon edge.
const edgeEpsilon = 1e-12

// ContainsPoint reports whether pt lies inside poly using the even-odd ray
// casting rule. Points on an edge or vertex count as inside.
func ContainsPoint(poly Polygon, pt Point) (bool, error) {
	if err := poly.Validate("contains point"); err != nil {
		return false, err
	}
	if !pt.Valid() {
		return false, &GeometryError{Op: "contains point", Points: len(poly), Reason: "query point is not finite"}
	}
	if !envelope(poly).ContainsPoint(pt) {
		return false, nil
	}
	return pointInRing(poly, pt), nil
}

// ContainsPolygon reports whether the whole of inner lies inside or on the
// boundary of outer: every vertex and every edge. An inner edge that leaves a
// concave outer polygon between two inside vertices makes the result false.
// Touching or running along the outer boundary still counts as inside, so a
// polygon always contains itself.
func ContainsPolygon(outer, inner Polygon) (bool, error) {
	if err := outer.Validate("contains polygon (outer)"); err != nil {
		return false, err
	}
	if err := inner.Validate("contains polygon (inner)"); err != nil {
		return false, err
	}

	// Envelope prefilter: an inner vertex outside the outer envelope is
	// outside the outer polygon.
	if !envelope(outer).ContainsBounds(envelope(inner)) {
		return false, nil
	}

	for _, pt := range inner {
		if !pointInRing(outer, pt) {
			return false, nil
		}
	}
	for i, j := 0, len(inner)-1; i < len(inner); j, i = i, i+1 {
		if !segmentInRing(outer, inner[j], inner[i]) {
			return false, nil
		}
	}
	return true, nil
}

// segmentInRing reports whether the segment a-b stays inside or on ring. The
// segment is split at every point where it meets the ring boundary; each
// piece is then wholly inside or wholly outside, so its midpoint decides.
func segmentInRing(ring Polygon, a, b Point) bool {
	dLat, dLon := b.Lat-a.Lat, b.Lon-a.Lon
	length2 := dLat*dLat + dLon*dLon
	if length2 == 0 {
		return true
	}

	cuts := []float64{0, 1}
	addCut := func(t float64) {
		if t > 0 && t < 1 {
			cuts = append(cuts, t)
		}
	}

	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		c, d := ring[j], ring[i]
		eLat, eLon := d.Lat-c.Lat, d.Lon-c.Lon
		caLat, caLon := c.Lat-a.Lat, c.Lon-a.Lon

		denom := dLon*eLat - dLat*eLon
		if math.Abs(denom) > edgeEpsilon {
			t := (caLon*eLat - caLat*eLon) / denom
			u := (caLon*dLat - caLat*dLon) / denom
			if u >= -edgeEpsilon && u <= 1+edgeEpsilon {
				addCut(t)
			}
			continue
		}

		// Parallel edges only meet when collinear; cut at the overlap ends.
		if math.Abs(caLon*dLat-caLat*dLon) > edgeEpsilon {
			continue
		}
		addCut((caLat*dLat + caLon*dLon) / length2)
		addCut(((d.Lat-a.Lat)*dLat + (d.Lon-a.Lon)*dLon) / length2)
	}

	sort.Float64s(cuts)
	for k := 1; k < len(cuts); k++ {
		if cuts[k]-cuts[k-1] <= edgeEpsilon {
			continue
		}
		mid := (cuts[k] + cuts[k-1]) / 2
		if !pointInRing(ring, Point{Lat: a.Lat + dLat*mid, Lon: a.Lon + dLon*mid}) {
			return false
		}
	}
	return true
}

func pointInRing(ring Polygon, pt Point) bool {
	n := len(ring)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if onSegment(pt, a, b) {
			return true
		}
		if (a.Lat > pt.Lat) != (b.Lat > pt.Lat) {
			x := (b.Lon-a.Lon)*(pt.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lon
			if pt.Lon < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(pt, a, b Point) bool {
	cross := (b.Lon-a.Lon)*(pt.Lat-a.Lat) - (b.Lat-a.Lat)*(pt.Lon-a.Lon)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	return pt.Lat >= math.Min(a.Lat, b.Lat)-edgeEpsilon &&
		pt.Lat <= math.Max(a.Lat, b.Lat)+edgeEpsilon &&
		pt.Lon >= math.Min(a.Lon, b.Lon)-edgeEpsilon &&
		pt.Lon <= math.Max(a.Lon, b.Lon)+edgeEpsilon
}
