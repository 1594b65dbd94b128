// Package datasource fetches regions, company records and license parcels
// from the regional subsoil registry. Coordinates arrive lon-first and are
// converted to lat-first geometry before leaving this package.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/subsoil/internal/models"
)

var (
	// ErrNotFound means the registry has no record for a location.
	ErrNotFound = errors.New("not found")
	// ErrMalformed means the registry answered but the geometry is unusable.
	ErrMalformed = errors.New("malformed")
)

// FetchError wraps a failure for one location or for the region list.
type FetchError struct {
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("fetch regions: %v", e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RawCompany is a company record as embedded in the region feed.
type RawCompany struct {
	Location     string `json:"location"`
	CompanyTitle string `json:"company_title"`
	Type         string `json:"type"`
	Category     string `json:"category"`
}

// RawRegion is one feature of the region feed. Boundary is lon-first.
type RawRegion struct {
	Name      string
	ImageURL  string
	Boundary  [][2]float64
	Companies []RawCompany
}

// RawGeometry is a license parcel with its license detail. Ring is
// lon-first and may be empty when the registry has detail but no parcel.
type RawGeometry struct {
	Ring    [][2]float64       `json:"ring"`
	License models.LicenseInfo `json:"license"`
}

// DataSource is the registry boundary.
type DataSource interface {
	GetRegions(ctx context.Context) ([]RawRegion, error)
	GetCompanyGeometry(ctx context.Context, location string) (*RawGeometry, error)
	GetCompanyInfo(ctx context.Context, location string) (*RawGeometry, error)
}

// requireRing rejects info responses that carry no parcel.
func requireRing(location string, g *RawGeometry) (*RawGeometry, error) {
	if len(g.Ring) == 0 {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("%w: no coordinates", ErrMalformed)}
	}
	return g, nil
}

// ToCompany converts a feed record.
func (c RawCompany) ToCompany() models.Company {
	return models.Company{
		Location:     strings.TrimSpace(c.Location),
		CompanyTitle: strings.TrimSpace(c.CompanyTitle),
		Type:         models.ParseCompanyType(c.Type),
		Category:     c.Category,
	}
}

// BuildRegions converts raw regions in feed order. Regions with an unusable
// boundary are skipped and reported; ids are assigned over the kept regions
// as region-0, region-1, ...
func BuildRegions(raw []RawRegion) ([]*models.Region, []error) {
	regions := make([]*models.Region, 0, len(raw))
	var errs []error

	for _, rr := range raw {
		polygon, err := models.PolygonFromLonLat(rr.Boundary)
		if err != nil {
			errs = append(errs, fmt.Errorf("region %q: %w", rr.Name, err))
			continue
		}

		companies := make([]models.Company, 0, len(rr.Companies))
		for _, rc := range rr.Companies {
			companies = append(companies, rc.ToCompany())
		}

		id := fmt.Sprintf("region-%d", len(regions))
		region, err := models.NewRegion(id, rr.Name, polygon, companies, rr.ImageURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("region %q: %w", rr.Name, err))
			continue
		}
		regions = append(regions, region)
	}
	return regions, errs
}

// BuildCompanyPolygon converts a fetched parcel for company.
func BuildCompanyPolygon(company models.Company, g *RawGeometry) (models.CompanyPolygon, error) {
	polygon, err := models.PolygonFromLonLat(g.Ring)
	if err != nil {
		return models.CompanyPolygon{}, &FetchError{Location: company.Location, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	license := g.License
	return models.CompanyPolygon{Company: company, Polygon: polygon, License: &license}, nil
}
