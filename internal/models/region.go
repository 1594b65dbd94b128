package models

import (
	"sort"
	"sync"
	"time"

	"github.com/stwalsh4118/subsoil/internal/geometry"
)

// Region is an administrative boundary with the companies registered in it.
// Companies keep the feed order.
type Region struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Polygon   geometry.Polygon `json:"polygon"`
	Companies []Company        `json:"companies"`
	ImageURL  string           `json:"image_url,omitempty"`
}

// NewRegion validates the boundary and builds a Region.
func NewRegion(id, name string, polygon geometry.Polygon, companies []Company, imageURL string) (*Region, error) {
	if err := polygon.Validate("region " + id); err != nil {
		return nil, err
	}
	if companies == nil {
		companies = []Company{}
	}
	return &Region{
		ID:        id,
		Name:      name,
		Polygon:   polygon,
		Companies: companies,
		ImageURL:  imageURL,
	}, nil
}

// RegionIndex is the read-only region set of one load cycle. A reload builds a
// new index; an existing index is never mutated.
type RegionIndex struct {
	regions []*Region
	byID    map[string]*Region
	builtAt time.Time
}

// NewRegionIndex indexes regions, keeping their order.
func NewRegionIndex(regions []*Region) *RegionIndex {
	idx := &RegionIndex{
		regions: make([]*Region, 0, len(regions)),
		byID:    make(map[string]*Region, len(regions)),
		builtAt: time.Now(),
	}
	for _, r := range regions {
		if r == nil {
			continue
		}
		idx.regions = append(idx.regions, r)
		idx.byID[r.ID] = r
	}
	return idx
}

// Regions returns the regions in load order. The slice is a copy.
func (idx *RegionIndex) Regions() []*Region {
	if idx == nil {
		return []*Region{}
	}
	out := make([]*Region, len(idx.regions))
	copy(out, idx.regions)
	return out
}

// Len returns the number of regions.
func (idx *RegionIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.regions)
}

// ByID looks up a region by its synthetic id.
func (idx *RegionIndex) ByID(id string) (*Region, bool) {
	if idx == nil {
		return nil, false
	}
	r, ok := idx.byID[id]
	return r, ok
}

// BuiltAt is when the index was created.
func (idx *RegionIndex) BuiltAt() time.Time {
	if idx == nil {
		return time.Time{}
	}
	return idx.builtAt
}

// CompanyCount is the number of company records across all regions.
func (idx *RegionIndex) CompanyCount() int {
	n := 0
	for _, r := range idx.Regions() {
		n += len(r.Companies)
	}
	return n
}

// CompanyPolygon joins a company with its parcel geometry.
type CompanyPolygon struct {
	Company Company          `json:"company"`
	Polygon geometry.Polygon `json:"polygon"`
	License *LicenseInfo     `json:"license,omitempty"`
}

// CompanyPolygonMap is the location -> parcel side table. It only grows
// during a load, is safe for concurrent use and may be read at any time.
type CompanyPolygonMap struct {
	mu      sync.RWMutex
	entries map[string]CompanyPolygon
}

// NewCompanyPolygonMap creates an empty map.
func NewCompanyPolygonMap() *CompanyPolygonMap {
	return &CompanyPolygonMap{entries: make(map[string]CompanyPolygon)}
}

// Put stores the entry for location, replacing an earlier one.
func (m *CompanyPolygonMap) Put(location string, cp CompanyPolygon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[location] = cp
}

// Get returns the entry for location.
func (m *CompanyPolygonMap) Get(location string) (CompanyPolygon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.entries[location]
	return cp, ok
}

// Len returns the number of entries.
func (m *CompanyPolygonMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Snapshot copies the current entries.
func (m *CompanyPolygonMap) Snapshot() map[string]CompanyPolygon {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CompanyPolygon, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Locations returns the keys in sorted order.
func (m *CompanyPolygonMap) Locations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
