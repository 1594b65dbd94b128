package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square returns the axis-aligned square [lat0,lat0+size] x [lon0,lon0+size].
func square(lat0, lon0, size float64) Polygon {
	return Polygon{
		{Lat: lat0, Lon: lon0},
		{Lat: lat0, Lon: lon0 + size},
		{Lat: lat0 + size, Lon: lon0 + size},
		{Lat: lat0 + size, Lon: lon0},
	}
}

func TestNewPolygon(t *testing.T) {
	tests := []struct {
		name      string
		points    []Point
		wantLen   int
		wantError bool
	}{
		{
			name:    "open ring",
			points:  []Point{{0, 0}, {0, 1}, {1, 1}},
			wantLen: 3,
		},
		{
			name:    "closed ring drops repeated vertex",
			points:  []Point{{0, 0}, {0, 1}, {1, 1}, {0, 0}},
			wantLen: 3,
		},
		{
			name:      "too few points",
			points:    []Point{{0, 0}, {0, 1}},
			wantError: true,
		},
		{
			name:      "closed ring of two distinct points",
			points:    []Point{{0, 0}, {0, 1}, {0, 0}},
			wantError: true,
		},
		{
			name:      "non finite vertex",
			points:    []Point{{0, 0}, {math.NaN(), 1}, {1, 1}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poly, err := NewPolygon(tt.points)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrGeometry)
				return
			}
			require.NoError(t, err)
			assert.Len(t, poly, tt.wantLen)
		})
	}
}

func TestGeometryError(t *testing.T) {
	err := Polygon{{0, 0}}.Validate("centroid")

	var gerr *GeometryError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "centroid", gerr.Op)
	assert.Equal(t, 1, gerr.Points)
	assert.Contains(t, err.Error(), "at least 3 points")
}

func TestRotate(t *testing.T) {
	p := square(0, 0, 1)

	assert.Equal(t, p, p.Rotate(0))
	assert.Equal(t, p, p.Rotate(len(p)))
	assert.Equal(t, p[1], p.Rotate(1)[0])
	assert.Equal(t, p[len(p)-1], p.Rotate(-1)[0])
	assert.Empty(t, Polygon{}.Rotate(3))
}

func TestCentroidOf(t *testing.T) {
	t.Run("bounding box center", func(t *testing.T) {
		// L-shaped polygon: the envelope center is not the area centroid.
		poly := Polygon{{0, 0}, {0, 4}, {1, 4}, {1, 1}, {4, 1}, {4, 0}}

		c, err := CentroidOf(poly)
		require.NoError(t, err)
		assert.Equal(t, Point{Lat: 2, Lon: 2}, c)
	})

	t.Run("malformed polygon fails fast", func(t *testing.T) {
		_, err := CentroidOf(Polygon{{0, 0}, {1, 1}})
		assert.ErrorIs(t, err, ErrGeometry)
	})
}

func TestBoundsOf(t *testing.T) {
	b, err := BoundsOf(Polygon{{49.9, 82.1}, {50.5, 83.0}, {49.5, 82.6}})
	require.NoError(t, err)

	assert.Equal(t, 49.5, b.MinLat)
	assert.Equal(t, 50.5, b.MaxLat)
	assert.Equal(t, 82.1, b.MinLon)
	assert.Equal(t, 83.0, b.MaxLon)
	assert.True(t, b.ContainsPoint(Point{Lat: 50, Lon: 82.5}))
	assert.False(t, b.ContainsPoint(Point{Lat: 51, Lon: 82.5}))
}
