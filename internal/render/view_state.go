package render

import (
	"sync"
	"time"

	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/models"
)

// RegionLayer is a drawn region outline with its label anchor.
type RegionLayer struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Label  geometry.Point `json:"label"`
	Color  string         `json:"color"`
	Points int            `json:"points"`
}

// Snapshot is the view as last rendered.
type Snapshot struct {
	Center          geometry.Point   `json:"center"`
	Zoom            int              `json:"zoom"`
	SelectedRegion  string           `json:"selected_region,omitempty"`
	SelectedCompany string           `json:"selected_company,omitempty"`
	Companies       []models.Company `json:"companies"`
	Regions         []RegionLayer    `json:"regions"`
	PolygonsDrawn   int              `json:"polygons_drawn"`
	Version         uint64           `json:"version"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ViewState is a headless MapRenderer. It records the latest view and
// selection so the browser client can poll and replay it. Clicks arrive
// through ClickRegion and ClickCompany.
type ViewState struct {
	mu              sync.RWMutex
	snap            Snapshot
	regionHandlers  []func(*models.Region)
	companyHandlers []func(models.CompanyPolygon)
}

// NewViewState creates a view at the default center and minimum zoom.
func NewViewState() *ViewState {
	return &ViewState{
		snap: Snapshot{
			Center:    DefaultCenter,
			Zoom:      MinZoom,
			Companies: []models.Company{},
			Regions:   []RegionLayer{},
			UpdatedAt: time.Now(),
		},
	}
}

func (v *ViewState) touch() {
	v.snap.Version++
	v.snap.UpdatedAt = time.Now()
}

// Draw replaces the drawn layers.
func (v *ViewState) Draw(regions []*models.Region, polygons map[string]models.CompanyPolygon) {
	layers := make([]RegionLayer, 0, len(regions))
	for _, r := range regions {
		label, err := geometry.CentroidOf(r.Polygon)
		if err != nil {
			continue
		}
		layers = append(layers, RegionLayer{
			ID:     r.ID,
			Name:   r.Name,
			Label:  label,
			Color:  RegionColor,
			Points: len(r.Polygon),
		})
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Regions = layers
	v.snap.PolygonsDrawn = len(polygons)
	v.touch()
}

// SetView moves the map. Zoom is clamped to the allowed range.
func (v *ViewState) SetView(center geometry.Point, zoom int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Center = center
	v.snap.Zoom = ClampZoom(zoom)
	v.touch()
}

// OnRegionSelected registers a handler for region clicks.
func (v *ViewState) OnRegionSelected(fn func(*models.Region)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.regionHandlers = append(v.regionHandlers, fn)
}

// OnCompanySelected registers a handler for parcel clicks.
func (v *ViewState) OnCompanySelected(fn func(models.CompanyPolygon)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.companyHandlers = append(v.companyHandlers, fn)
}

// ClickRegion dispatches a region click to the registered handlers.
func (v *ViewState) ClickRegion(r *models.Region) {
	v.mu.RLock()
	handlers := append([]func(*models.Region){}, v.regionHandlers...)
	v.mu.RUnlock()

	for _, fn := range handlers {
		fn(r)
	}
}

// ClickCompany dispatches a parcel click to the registered handlers.
func (v *ViewState) ClickCompany(cp models.CompanyPolygon) {
	v.mu.RLock()
	handlers := append([]func(models.CompanyPolygon){}, v.companyHandlers...)
	v.mu.RUnlock()

	for _, fn := range handlers {
		fn(cp)
	}
}

// RegionSelected records the selected region.
func (v *ViewState) RegionSelected(r *models.Region) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.SelectedRegion = r.ID
	v.snap.SelectedCompany = ""
	v.touch()
}

// CompaniesSelected records the company list shown in the sidebar.
func (v *ViewState) CompaniesSelected(companies []models.Company) {
	out := make([]models.Company, len(companies))
	copy(out, companies)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Companies = out
	v.touch()
}

// CompanySelected records the focused company.
func (v *ViewState) CompanySelected(cp models.CompanyPolygon) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.SelectedCompany = cp.Company.Location
	v.touch()
}

// Snapshot returns a copy of the current view.
func (v *ViewState) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := v.snap
	s.Companies = append([]models.Company{}, v.snap.Companies...)
	s.Regions = append([]RegionLayer{}, v.snap.Regions...)
	return s
}
