package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/subsoil/internal/geometry"
)

var testSquare = geometry.Polygon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}}

func TestParseCompanyType(t *testing.T) {
	tests := []struct {
		raw  string
		want CompanyType
	}{
		{"добыча", TypeExtraction},
		{" Добыча ", TypeExtraction},
		{"разведка", TypeExploration},
		{"extraction", TypeExtraction},
		{"Exploration", TypeExploration},
		{"консервация", CompanyType("консервация")},
		{"", CompanyType("")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseCompanyType(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == TypeExtraction || tt.want == TypeExploration, got.Known())
		})
	}
}

func TestNewRegion(t *testing.T) {
	r, err := NewRegion("region-0", "Eastern", testSquare, nil, "")
	require.NoError(t, err)
	assert.NotNil(t, r.Companies, "nil company list becomes empty")

	_, err = NewRegion("region-1", "Broken", geometry.Polygon{{Lat: 0, Lon: 0}}, nil, "")
	assert.ErrorIs(t, err, geometry.ErrGeometry)
}

func TestRegionIndex(t *testing.T) {
	a, _ := NewRegion("region-0", "Eastern", testSquare, []Company{{Location: "L1"}, {Location: "L2"}}, "")
	b, _ := NewRegion("region-1", "Western", testSquare, []Company{{Location: "L3"}}, "")

	idx := NewRegionIndex([]*Region{a, nil, b})

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []*Region{a, b}, idx.Regions())
	assert.Equal(t, 3, idx.CompanyCount())
	assert.False(t, idx.BuiltAt().IsZero())

	got, ok := idx.ByID("region-1")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = idx.ByID("region-9")
	assert.False(t, ok)

	// Mutating the returned slice must not affect the index.
	regions := idx.Regions()
	regions[0] = nil
	assert.Same(t, a, idx.Regions()[0])
}

func TestRegionIndex_Nil(t *testing.T) {
	var idx *RegionIndex
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Regions())
	_, ok := idx.ByID("x")
	assert.False(t, ok)
}

func TestCompanyPolygonMap(t *testing.T) {
	m := NewCompanyPolygonMap()
	m.Put("B", CompanyPolygon{Company: Company{Location: "B"}, Polygon: testSquare})
	m.Put("A", CompanyPolygon{Company: Company{Location: "A"}, Polygon: testSquare})

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"A", "B"}, m.Locations())

	cp, ok := m.Get("A")
	require.True(t, ok)
	assert.Equal(t, "A", cp.Company.Location)

	snap := m.Snapshot()
	delete(snap, "A")
	assert.Equal(t, 2, m.Len(), "snapshot is a copy")
}

func TestCompanyPolygonMap_ConcurrentWrites(t *testing.T) {
	m := NewCompanyPolygonMap()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc := fmt.Sprintf("L%d", i)
			m.Put(loc, CompanyPolygon{Company: Company{Location: loc}})
			_ = m.Snapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
}
