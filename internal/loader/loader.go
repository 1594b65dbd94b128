// Package loader attaches parcel polygons to the companies of every region.
package loader

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/subsoil/internal/datasource"
	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/metrics"
	"github.com/stwalsh4118/subsoil/internal/models"
)

// DefaultWorkers is the fetch concurrency when none is configured.
const DefaultWorkers = 8

// FetchFunc fetches the parcel of one company.
type FetchFunc func(ctx context.Context, company models.Company) (models.CompanyPolygon, error)

// SourceFetcher adapts a DataSource into a FetchFunc.
func SourceFetcher(src datasource.DataSource) FetchFunc {
	return func(ctx context.Context, company models.Company) (models.CompanyPolygon, error) {
		g, err := src.GetCompanyGeometry(ctx, company.Location)
		if err != nil {
			return models.CompanyPolygon{}, err
		}
		return datasource.BuildCompanyPolygon(company, g)
	}
}

// Progress counts a load as it runs. It is safe to read concurrently.
type Progress struct {
	total  atomic.Int64
	loaded atomic.Int64
	failed atomic.Int64
	done   atomic.Bool
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Total  int64 `json:"total"`
	Loaded int64 `json:"loaded"`
	Failed int64 `json:"failed"`
	Done   bool  `json:"done"`
}

// Snapshot reads the counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	return ProgressSnapshot{
		Total:  p.total.Load(),
		Loaded: p.loaded.Load(),
		Failed: p.failed.Load(),
		Done:   p.done.Load(),
	}
}

// Loader fans parcel fetches out over a bounded pool.
type Loader struct {
	workers int
	log     *logger.Logger
}

// New creates a Loader. workers < 1 means DefaultWorkers; workers == 1 fetches
// sequentially in feed order.
func New(workers int, log *logger.Logger) *Loader {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Loader{workers: workers, log: log.Component("loader")}
}

// AttachPolygons fetches the parcel of every company in every region and
// returns them keyed by location. It blocks until the batch finishes.
func (l *Loader) AttachPolygons(ctx context.Context, regions []*models.Region, fetch FetchFunc) *models.CompanyPolygonMap {
	out := models.NewCompanyPolygonMap()
	l.Run(ctx, regions, fetch, out, &Progress{})
	return out
}

// Run is AttachPolygons writing into a caller-owned map and progress, so
// both can be read while the batch runs. A failed fetch is logged and
// skipped; it never aborts the batch. A location listed more than once is
// fetched once. Cancelling ctx stops new fetches; stored entries remain.
func (l *Loader) Run(ctx context.Context, regions []*models.Region, fetch FetchFunc, out *models.CompanyPolygonMap, progress *Progress) {
	jobs := uniqueCompanies(regions)
	progress.total.Store(int64(len(jobs)))
	defer progress.done.Store(true)

	l.log.Info("Loading company polygons", map[string]interface{}{
		"regions":   len(regions),
		"companies": len(jobs),
		"workers":   l.workers,
	})

	g := new(errgroup.Group)
	g.SetLimit(l.workers)

	for _, company := range jobs {
		if ctx.Err() != nil {
			break
		}
		company := company // per-iteration copy (go1.21 loop semantics)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			cp, err := fetch(ctx, company)
			if err != nil {
				progress.failed.Add(1)
				metrics.PolygonLoadsTotal.WithLabelValues(failureLabel(err)).Inc()
				l.log.Warn("Skipping company polygon", map[string]interface{}{
					"location": company.Location,
					"company":  company.CompanyTitle,
					"error":    err.Error(),
				})
				return nil
			}
			out.Put(company.Location, cp)
			progress.loaded.Add(1)
			metrics.PolygonLoadsTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	snap := progress.Snapshot()
	fields := map[string]interface{}{
		"total":  snap.Total,
		"loaded": snap.Loaded,
		"failed": snap.Failed,
	}
	if ctx.Err() != nil {
		fields["cancelled"] = true
	}
	l.log.Info("Finished loading company polygons", fields)
}

func uniqueCompanies(regions []*models.Region) []models.Company {
	seen := make(map[string]struct{})
	var jobs []models.Company
	for _, r := range regions {
		if r == nil {
			continue
		}
		for _, c := range r.Companies {
			if _, ok := seen[c.Location]; ok {
				continue
			}
			seen[c.Location] = struct{}{}
			jobs = append(jobs, c)
		}
	}
	return jobs
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, datasource.ErrNotFound):
		return "not_found"
	case errors.Is(err, datasource.ErrMalformed):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
