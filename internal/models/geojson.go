package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/stwalsh4118/subsoil/internal/geometry"
)

// GeoJSONPolygon is a GeoJSON Polygon geometry: [rings][points][lon,lat].
// It is the wire and storage format at the data boundary; the rest of the
// code works with lat-first geometry.Polygon values.
type GeoJSONPolygon struct {
	Coordinates [][][2]float64
}

type geoJSONGeometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// PolygonFromLonLat swaps a lon-first ring into a lat-first polygon. A closing
// vertex equal to the first is dropped.
func PolygonFromLonLat(ring [][2]float64) (geometry.Polygon, error) {
	points := make([]geometry.Point, 0, len(ring))
	for _, pos := range ring {
		points = append(points, geometry.Point{Lat: pos[1], Lon: pos[0]})
	}
	return geometry.NewPolygon(points)
}

// NewGeoJSONPolygon converts a lat-first polygon into a closed lon-first ring.
func NewGeoJSONPolygon(p geometry.Polygon) GeoJSONPolygon {
	if len(p) == 0 {
		return GeoJSONPolygon{}
	}
	ring := make([][2]float64, 0, len(p)+1)
	for _, pt := range p {
		ring = append(ring, [2]float64{pt.Lon, pt.Lat})
	}
	ring = append(ring, ring[0])
	return GeoJSONPolygon{Coordinates: [][][2]float64{ring}}
}

// Polygon returns the outer ring as a lat-first polygon. Holes are ignored.
func (g GeoJSONPolygon) Polygon() (geometry.Polygon, error) {
	if len(g.Coordinates) == 0 {
		return nil, &geometry.GeometryError{Op: "geojson polygon", Reason: "no rings"}
	}
	return PolygonFromLonLat(g.Coordinates[0])
}

// Scan implements sql.Scanner for GeoJSON stored as json/jsonb text.
func (g *GeoJSONPolygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan GeoJSONPolygon: expected []byte or string, got %T", value)
	}

	return g.UnmarshalJSON(data)
}

// Value implements driver.Valuer, writing the polygon as GeoJSON text.
func (g GeoJSONPolygon) Value() (driver.Value, error) {
	if len(g.Coordinates) == 0 {
		return nil, nil
	}

	data, err := g.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// MarshalJSON implements json.Marshaler.
func (g GeoJSONPolygon) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(geoJSONGeometry{Type: "Polygon", Coordinates: g.Coordinates})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon to GeoJSON: %w", err)
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler. A missing type is accepted.
func (g *GeoJSONPolygon) UnmarshalJSON(data []byte) error {
	var geom geoJSONGeometry
	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal polygon: %w", err)
	}

	if geom.Type != "" && geom.Type != "Polygon" {
		return fmt.Errorf("expected Polygon type, got %s", geom.Type)
	}

	g.Coordinates = geom.Coordinates
	return nil
}
