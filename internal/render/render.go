// Package render defines the map rendering boundary and a headless
// implementation whose state is served to the browser map client.
package render

import (
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/models"
)

// Zoom limits of the map view. SetView clamps to this range.
const (
	// MinZoom is the whole-country view.
	MinZoom = 7
	// MaxZoom is the closest view, used to focus a parcel.
	MaxZoom = 15
)

// DefaultCenter is the initial map center.
var DefaultCenter = geometry.Point{Lat: 49.95, Lon: 82.62}

// Layer colors.
const (
	RegionColor      = "#026fee"
	ExtractionColor  = "#f59e0b"
	ExplorationColor = "#10b981"
)

// MapRenderer draws regions and company parcels and reports user clicks.
type MapRenderer interface {
	Draw(regions []*models.Region, polygons map[string]models.CompanyPolygon)
	SetView(center geometry.Point, zoom int)
	OnRegionSelected(fn func(*models.Region))
	OnCompanySelected(fn func(models.CompanyPolygon))
}

// Clicker accepts clicks forwarded from the map client and hands them to the
// handlers registered with OnRegionSelected and OnCompanySelected.
type Clicker interface {
	ClickRegion(r *models.Region)
	ClickCompany(cp models.CompanyPolygon)
}

// ColorFor returns the parcel color for a company type. Anything that is not
// extraction is drawn as exploration.
func ColorFor(t models.CompanyType) string {
	if t == models.TypeExtraction {
		return ExtractionColor
	}
	return ExplorationColor
}

// ClampZoom bounds zoom to the map's allowed range.
func ClampZoom(zoom int) int {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}
