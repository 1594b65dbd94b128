package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/subsoil/internal/datasource"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/models"
)

var parcel = geometry.Polygon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}}

func region(t *testing.T, id string, locations ...string) *models.Region {
	t.Helper()
	companies := make([]models.Company, 0, len(locations))
	for _, loc := range locations {
		companies = append(companies, models.Company{Location: loc, CompanyTitle: "Co " + loc})
	}
	r, err := models.NewRegion(id, id, geometry.Polygon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 9}, {Lat: 9, Lon: 9}}, companies, "")
	require.NoError(t, err)
	return r
}

func fetchExcept(failing ...string) FetchFunc {
	fail := make(map[string]bool)
	for _, f := range failing {
		fail[f] = true
	}
	return func(ctx context.Context, c models.Company) (models.CompanyPolygon, error) {
		if fail[c.Location] {
			return models.CompanyPolygon{}, &datasource.FetchError{Location: c.Location, Err: datasource.ErrNotFound}
		}
		return models.CompanyPolygon{Company: c, Polygon: parcel}, nil
	}
}

func TestAttachPolygons_PartialFailure(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			regions := []*models.Region{region(t, "region-0", "A", "B", "C")}

			got := New(workers, logger.Nop()).AttachPolygons(context.Background(), regions, fetchExcept("B"))

			assert.Equal(t, 2, got.Len())
			assert.Equal(t, []string{"A", "C"}, got.Locations())

			a, ok := got.Get("A")
			require.True(t, ok)
			assert.Equal(t, "Co A", a.Company.CompanyTitle)
		})
	}
}

func TestAttachPolygons_Empty(t *testing.T) {
	l := New(2, logger.Nop())

	assert.Equal(t, 0, l.AttachPolygons(context.Background(), nil, fetchExcept()).Len())
	assert.Equal(t, 0, l.AttachPolygons(context.Background(), []*models.Region{region(t, "r")}, fetchExcept()).Len())
}

func TestAttachPolygons_AllFail(t *testing.T) {
	regions := []*models.Region{region(t, "r0", "A"), region(t, "r1", "B")}

	got := New(2, logger.Nop()).AttachPolygons(context.Background(), regions, fetchExcept("A", "B"))

	assert.Equal(t, 0, got.Len())
}

func TestRun_DeduplicatesLocations(t *testing.T) {
	regions := []*models.Region{region(t, "r0", "A", "B"), region(t, "r1", "B", "C")}

	var calls atomic.Int32
	fetch := func(ctx context.Context, c models.Company) (models.CompanyPolygon, error) {
		calls.Add(1)
		return models.CompanyPolygon{Company: c, Polygon: parcel}, nil
	}

	progress := &Progress{}
	out := models.NewCompanyPolygonMap()
	New(3, logger.Nop()).Run(context.Background(), regions, fetch, out, progress)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, ProgressSnapshot{Total: 3, Loaded: 3, Failed: 0, Done: true}, progress.Snapshot())
}

func TestRun_ProgressCountsFailures(t *testing.T) {
	regions := []*models.Region{region(t, "r0", "A", "B", "C")}
	progress := &Progress{}

	New(1, logger.Nop()).Run(context.Background(), regions, fetchExcept("A", "C"), models.NewCompanyPolygonMap(), progress)

	assert.Equal(t, ProgressSnapshot{Total: 3, Loaded: 1, Failed: 2, Done: true}, progress.Snapshot())
}

func TestRun_BoundedConcurrency(t *testing.T) {
	locations := make([]string, 20)
	for i := range locations {
		locations[i] = fmt.Sprintf("L%d", i)
	}
	regions := []*models.Region{region(t, "r0", locations...)}

	var inFlight, peak atomic.Int32
	fetch := func(ctx context.Context, c models.Company) (models.CompanyPolygon, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return models.CompanyPolygon{Company: c, Polygon: parcel}, nil
	}

	got := New(3, logger.Nop()).AttachPolygons(context.Background(), regions, fetch)

	assert.Equal(t, 20, got.Len())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_PartialResultsReadableDuringLoad(t *testing.T) {
	regions := []*models.Region{region(t, "r0", "A", "B")}
	out := models.NewCompanyPolygonMap()
	release := make(chan struct{})

	fetch := func(ctx context.Context, c models.Company) (models.CompanyPolygon, error) {
		if c.Location == "B" {
			<-release
		}
		return models.CompanyPolygon{Company: c, Polygon: parcel}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		New(2, logger.Nop()).Run(context.Background(), regions, fetch, out, &Progress{})
	}()

	assert.Eventually(t, func() bool {
		_, ok := out.Get("A")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, out.Len())

	close(release)
	wg.Wait()
	assert.Equal(t, 2, out.Len())
}

func TestRun_CancelledContext(t *testing.T) {
	regions := []*models.Region{region(t, "r0", "A", "B", "C")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	progress := &Progress{}
	out := models.NewCompanyPolygonMap()
	New(1, logger.Nop()).Run(ctx, regions, fetchExcept(), out, progress)

	assert.Equal(t, 0, out.Len())
	assert.True(t, progress.Snapshot().Done)
}

func TestSourceFetcher(t *testing.T) {
	src := &stubSource{ring: [][2]float64{{80, 49}, {81, 49}, {81, 50}}}
	fetch := SourceFetcher(src)

	cp, err := fetch(context.Background(), models.Company{Location: "L1"})

	require.NoError(t, err)
	assert.Equal(t, geometry.Point{Lat: 49, Lon: 80}, cp.Polygon[0])

	src.ring = [][2]float64{{80, 49}}
	_, err = fetch(context.Background(), models.Company{Location: "L1"})
	assert.ErrorIs(t, err, datasource.ErrMalformed)
}

func TestFailureLabel(t *testing.T) {
	assert.Equal(t, "not_found", failureLabel(&datasource.FetchError{Err: datasource.ErrNotFound}))
	assert.Equal(t, "malformed", failureLabel(datasource.ErrMalformed))
	assert.Equal(t, "cancelled", failureLabel(context.Canceled))
	assert.Equal(t, "error", failureLabel(fmt.Errorf("dial tcp: refused")))
}

type stubSource struct {
	ring [][2]float64
}

func (s *stubSource) GetRegions(ctx context.Context) ([]datasource.RawRegion, error) {
	return nil, nil
}

func (s *stubSource) GetCompanyGeometry(ctx context.Context, location string) (*datasource.RawGeometry, error) {
	return &datasource.RawGeometry{Ring: s.ring}, nil
}

func (s *stubSource) GetCompanyInfo(ctx context.Context, location string) (*datasource.RawGeometry, error) {
	return s.GetCompanyGeometry(ctx, location)
}
