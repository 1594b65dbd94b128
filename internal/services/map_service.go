package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stwalsh4118/subsoil/internal/aggregation"
	"github.com/stwalsh4118/subsoil/internal/datasource"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/loader"
	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/metrics"
	"github.com/stwalsh4118/subsoil/internal/models"
	"github.com/stwalsh4118/subsoil/internal/render"
	"github.com/stwalsh4118/subsoil/internal/repository"
	"github.com/stwalsh4118/subsoil/internal/resolver"
	"github.com/stwalsh4118/subsoil/internal/voice"
)

// Service-level errors
var (
	ErrNotLoaded       = errors.New("regions are not loaded")
	ErrRegionNotFound  = errors.New("region not found")
	ErrCompanyNotFound = errors.New("company not found")
	ErrNoGeometry      = errors.New("company has no parcel geometry")
	ErrNoMatch         = errors.New("no region matched")
	ErrNoRegions       = errors.New("feed returned no usable regions")
)

// CompanyFilter narrows a region's company list the way the sidebar does:
// category tab first, then type tab. Zero values match everything.
type CompanyFilter struct {
	Category aggregation.Category
	Type     models.CompanyType
}

// Apply filters companies, keeping their order.
func (f CompanyFilter) Apply(companies []models.Company) []models.Company {
	out := companies
	if f.Category != "" {
		out = aggregation.FilterByCategory(out, f.Category)
	}
	if f.Type != "" {
		out = aggregation.FilterByType(out, f.Type)
	}
	if out == nil {
		out = []models.Company{}
	}
	return out
}

// VoiceResult is the outcome of the last delivered transcript.
type VoiceResult struct {
	Transcript string          `json:"transcript"`
	Match      *resolver.Match `json:"match,omitempty"`
	Error      string          `json:"error,omitempty"`
	ResolvedAt time.Time       `json:"resolved_at"`
}

// Status summarizes the active load.
type Status struct {
	Loaded    bool                    `json:"loaded"`
	Regions   int                     `json:"regions"`
	Companies int                     `json:"companies"`
	Polygons  int                     `json:"polygons"`
	BuiltAt   time.Time               `json:"built_at"`
	Progress  loader.ProgressSnapshot `json:"progress"`
	Listening bool                    `json:"listening"`
	Language  string                  `json:"language"`
}

// MapService defines the map operations served over HTTP.
type MapService interface {
	// Reload fetches the region feed, swaps in a new index and starts
	// attaching polygons in the background. On failure the previous index
	// stays active.
	Reload(ctx context.Context) error

	// Run reloads every interval until ctx is done.
	Run(ctx context.Context, interval time.Duration)

	// WaitLoaded blocks until the polygon load of the active index finishes.
	WaitLoaded(ctx context.Context) error

	Status() Status
	Regions() []*models.Region
	Region(id string) (*models.Region, error)
	RegionStats(id string, filter CompanyFilter) (aggregation.RegionStats, error)
	Companies(id string, filter CompanyFilter) ([]models.Company, error)
	SelectRegion(id string) (*models.Region, error)

	// ResolveVoice matches a transcript against region names.
	// Returns ErrNoMatch if nothing scores above the threshold.
	ResolveVoice(transcript string) (*resolver.Match, error)

	// ResolveContainment lists the regions containing polygon. No match is
	// an empty slice, not an error.
	ResolveContainment(polygon geometry.Polygon) ([]*models.Region, error)

	// LocateCompany lists the regions containing a company's parcel.
	LocateCompany(ctx context.Context, location string) ([]*models.Region, error)

	// CompanyInfo returns a company with its license detail and, when the
	// registry has one, its parcel polygon.
	CompanyInfo(ctx context.Context, location string) (models.CompanyPolygon, error)
	SelectCompany(ctx context.Context, location string) (models.CompanyPolygon, error)

	Polygons() map[string]models.CompanyPolygon
	Progress() loader.ProgressSnapshot

	StartListening() string
	StopListening()
	SubmitTranscript(text string) (*VoiceResult, error)
	FailTranscript(reason string) error
	LastVoiceResult() *VoiceResult

	// Close stops background loading and waits for it.
	Close()
}

// MapServiceConfig holds the collaborators of a MapService. Repository,
// Renderer and Voice may be nil.
type MapServiceConfig struct {
	Source     datasource.DataSource
	Loader     *loader.Loader
	Resolver   *resolver.Resolver
	Repository repository.PolygonRepository
	Renderer   render.MapRenderer
	Voice      *voice.Control
	Logger     *logger.Logger
}

// mapState is everything built by one Reload.
type mapState struct {
	index     *models.RegionIndex
	companies map[string]models.Company
	polygons  *models.CompanyPolygonMap
	progress  *loader.Progress
	done      chan struct{}
}

// mapService is the concrete implementation of MapService.
type mapService struct {
	src         datasource.DataSource
	loader      *loader.Loader
	resolver    *resolver.Resolver
	repo        repository.PolygonRepository
	renderer    render.MapRenderer
	clicks      render.Clicker
	control     *voice.Control
	transcriber *voice.PushTranscriber
	log         *logger.Logger

	state     atomic.Pointer[mapState]
	lastVoice atomic.Pointer[VoiceResult]

	reloadMu   sync.Mutex
	cancelLoad context.CancelFunc
	baseCtx    context.Context
	stop       context.CancelFunc
	wg         sync.WaitGroup
}

// NewMapService creates a MapService and wires the renderer's click handlers
// and the voice transcriber to the resolver.
func NewMapService(cfg MapServiceConfig) MapService {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	res := cfg.Resolver
	if res == nil {
		res = resolver.New(cfg.Renderer, resolver.WithLogger(log))
	}
	ld := cfg.Loader
	if ld == nil {
		ld = loader.New(loader.DefaultWorkers, log)
	}
	control := cfg.Voice
	if control == nil {
		control = voice.NewControl(voice.DefaultLanguage)
	}

	baseCtx, stop := context.WithCancel(context.Background())
	s := &mapService{
		src:         cfg.Source,
		loader:      ld,
		resolver:    res,
		repo:        cfg.Repository,
		renderer:    cfg.Renderer,
		control:     control,
		transcriber: voice.NewPushTranscriber(control),
		log:         log.Component("map_service"),
		baseCtx:     baseCtx,
		stop:        stop,
	}

	if cfg.Renderer != nil {
		cfg.Renderer.OnRegionSelected(res.SelectRegion)
		cfg.Renderer.OnCompanySelected(res.SelectCompany)
		if obs, ok := cfg.Renderer.(resolver.Observer); ok {
			res.Subscribe(obs)
		}
		if clicks, ok := cfg.Renderer.(render.Clicker); ok {
			s.clicks = clicks
		}
	}
	s.transcriber.OnResult(s.handleTranscript)

	return s
}

func (s *mapService) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	raw, err := s.src.GetRegions(ctx)
	if err != nil {
		metrics.RegionReloadsTotal.WithLabelValues("error").Inc()
		s.log.Error("Failed to fetch regions", err, nil)
		return fmt.Errorf("failed to fetch regions: %w", err)
	}

	regions, errs := datasource.BuildRegions(raw)
	for _, e := range errs {
		s.log.Warn("Skipping region", map[string]interface{}{
			"error": e.Error(),
		})
	}
	if len(regions) == 0 {
		metrics.RegionReloadsTotal.WithLabelValues("empty").Inc()
		return ErrNoRegions
	}

	st := &mapState{
		index:     models.NewRegionIndex(regions),
		companies: make(map[string]models.Company),
		polygons:  models.NewCompanyPolygonMap(),
		progress:  &loader.Progress{},
		done:      make(chan struct{}),
	}
	for _, r := range regions {
		for _, c := range r.Companies {
			if _, ok := st.companies[c.Location]; !ok {
				st.companies[c.Location] = c
			}
		}
	}
	s.warmStart(ctx, st)

	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(s.baseCtx)
	s.cancelLoad = cancel

	s.state.Store(st)
	metrics.RegionReloadsTotal.WithLabelValues("ok").Inc()
	metrics.RegionsLoaded.Set(float64(st.index.Len()))
	s.draw(st)

	s.log.Info("Region index loaded", map[string]interface{}{
		"regions":     st.index.Len(),
		"companies":   len(st.companies),
		"warm":        st.polygons.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(st.done)
		s.load(loadCtx, st, regions)
	}()

	return nil
}

// warmStart seeds the polygon map from the repository so the previous map is
// drawn before the loader finishes. Only locations still in the feed are kept.
func (s *mapService) warmStart(ctx context.Context, st *mapState) {
	if s.repo == nil {
		return
	}
	stored, err := s.repo.List(ctx)
	if err != nil {
		s.log.Warn("Failed to read stored polygons", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	for _, cp := range stored {
		company, ok := st.companies[cp.Company.Location]
		if !ok {
			continue
		}
		cp.Company = company
		st.polygons.Put(company.Location, cp)
	}
}

func (s *mapService) load(ctx context.Context, st *mapState, regions []*models.Region) {
	s.loader.Run(ctx, regions, loader.SourceFetcher(s.src), st.polygons, st.progress)

	if s.state.Load() != st {
		return
	}
	metrics.CompanyPolygonsLoaded.Set(float64(st.polygons.Len()))
	s.draw(st)

	if s.repo == nil || ctx.Err() != nil {
		return
	}
	snapshot := st.polygons.Snapshot()
	batch := make([]models.CompanyPolygon, 0, len(snapshot))
	for _, cp := range snapshot {
		batch = append(batch, cp)
	}
	if err := s.repo.UpsertBatch(ctx, batch); err != nil {
		s.log.Error("Failed to store polygons", err, map[string]interface{}{
			"count": len(batch),
		})
		return
	}
	s.log.Debug("Stored polygons", map[string]interface{}{"count": len(batch)})
}

func (s *mapService) draw(st *mapState) {
	if s.renderer == nil {
		return
	}
	s.renderer.Draw(st.index.Regions(), st.polygons.Snapshot())
}

func (s *mapService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				s.log.Warn("Periodic reload failed, keeping previous index", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

func (s *mapService) WaitLoaded(ctx context.Context) error {
	st := s.state.Load()
	if st == nil {
		return ErrNotLoaded
	}
	select {
	case <-st.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *mapService) current() (*mapState, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrNotLoaded
	}
	return st, nil
}

func (s *mapService) Status() Status {
	status := Status{
		Listening: s.control.Active(),
		Language:  s.control.Language(),
	}
	st := s.state.Load()
	if st == nil {
		return status
	}
	status.Loaded = true
	status.Regions = st.index.Len()
	status.Companies = st.index.CompanyCount()
	status.Polygons = st.polygons.Len()
	status.BuiltAt = st.index.BuiltAt()
	status.Progress = st.progress.Snapshot()
	return status
}

func (s *mapService) Regions() []*models.Region {
	st := s.state.Load()
	if st == nil {
		return []*models.Region{}
	}
	return st.index.Regions()
}

func (s *mapService) Region(id string) (*models.Region, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	region, ok := st.index.ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	return region, nil
}

func (s *mapService) RegionStats(id string, filter CompanyFilter) (aggregation.RegionStats, error) {
	companies, err := s.Companies(id, filter)
	if err != nil {
		return aggregation.RegionStats{}, err
	}
	return aggregation.Summarize(companies), nil
}

func (s *mapService) Companies(id string, filter CompanyFilter) ([]models.Company, error) {
	region, err := s.Region(id)
	if err != nil {
		return nil, err
	}
	return filter.Apply(region.Companies), nil
}

func (s *mapService) SelectRegion(id string) (*models.Region, error) {
	region, err := s.Region(id)
	if err != nil {
		return nil, err
	}
	if s.clicks != nil {
		s.clicks.ClickRegion(region)
	} else {
		s.resolver.SelectRegion(region)
	}
	return region, nil
}

func (s *mapService) ResolveVoice(transcript string) (*resolver.Match, error) {
	st, err := s.current()
	if err != nil {
		metrics.VoiceQueriesTotal.WithLabelValues("not_loaded").Inc()
		return nil, err
	}

	match, ok := s.resolver.ResolveVoiceQuery(transcript, st.index)
	if !ok {
		metrics.VoiceQueriesTotal.WithLabelValues("no_match").Inc()
		return nil, ErrNoMatch
	}

	metrics.VoiceQueriesTotal.WithLabelValues("matched").Inc()
	metrics.VoiceMatchScore.Observe(match.Score)
	return match, nil
}

func (s *mapService) ResolveContainment(polygon geometry.Polygon) ([]*models.Region, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}

	regions, err := s.resolver.ResolveContainment(polygon, st.index)
	switch {
	case err != nil:
		metrics.ContainmentQueriesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	case len(regions) == 0:
		metrics.ContainmentQueriesTotal.WithLabelValues("empty").Inc()
	default:
		metrics.ContainmentQueriesTotal.WithLabelValues("matched").Inc()
	}
	return regions, nil
}

func (s *mapService) LocateCompany(ctx context.Context, location string) ([]*models.Region, error) {
	cp, err := s.CompanyInfo(ctx, location)
	if err != nil {
		return nil, err
	}
	if len(cp.Polygon) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoGeometry, location)
	}
	return s.ResolveContainment(cp.Polygon)
}

func (s *mapService) CompanyInfo(ctx context.Context, location string) (models.CompanyPolygon, error) {
	st, err := s.current()
	if err != nil {
		return models.CompanyPolygon{}, err
	}

	company, ok := st.companies[location]
	if !ok {
		return models.CompanyPolygon{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, location)
	}
	if cp, ok := st.polygons.Get(location); ok && cp.License != nil {
		return cp, nil
	}

	info, err := s.src.GetCompanyInfo(ctx, location)
	if err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return models.CompanyPolygon{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, location)
		}
		return models.CompanyPolygon{}, fmt.Errorf("failed to fetch company info: %w", err)
	}

	license := info.License
	cp := models.CompanyPolygon{Company: company, License: &license}
	if len(info.Ring) > 0 {
		polygon, err := models.PolygonFromLonLat(info.Ring)
		if err != nil {
			s.log.Warn("Ignoring malformed company geometry", map[string]interface{}{
				"location": location,
				"error":    err.Error(),
			})
		} else {
			cp.Polygon = polygon
			st.polygons.Put(location, cp)
		}
	}
	return cp, nil
}

func (s *mapService) SelectCompany(ctx context.Context, location string) (models.CompanyPolygon, error) {
	cp, err := s.CompanyInfo(ctx, location)
	if err != nil {
		return models.CompanyPolygon{}, err
	}
	if len(cp.Polygon) == 0 {
		return models.CompanyPolygon{}, fmt.Errorf("%w: %s", ErrNoGeometry, location)
	}
	if s.clicks != nil {
		s.clicks.ClickCompany(cp)
	} else {
		s.resolver.SelectCompany(cp)
	}
	return cp, nil
}

func (s *mapService) Polygons() map[string]models.CompanyPolygon {
	st := s.state.Load()
	if st == nil {
		return map[string]models.CompanyPolygon{}
	}
	return st.polygons.Snapshot()
}

func (s *mapService) Progress() loader.ProgressSnapshot {
	st := s.state.Load()
	if st == nil {
		return loader.ProgressSnapshot{}
	}
	return st.progress.Snapshot()
}

func (s *mapService) StartListening() string {
	s.control.Start()
	return s.control.Language()
}

func (s *mapService) StopListening() {
	s.control.Stop()
}

// SubmitTranscript pushes recognized text through the transcriber. Handlers
// run synchronously, so the returned result belongs to this transcript.
func (s *mapService) SubmitTranscript(text string) (*VoiceResult, error) {
	if err := s.transcriber.Push(text); err != nil {
		return nil, err
	}
	return s.lastVoice.Load(), nil
}

func (s *mapService) FailTranscript(reason string) error {
	return s.transcriber.Fail(errors.New(reason))
}

func (s *mapService) LastVoiceResult() *VoiceResult {
	return s.lastVoice.Load()
}

// handleTranscript resolves one delivered utterance. Failed recognition is
// logged and dropped.
func (s *mapService) handleTranscript(t voice.Transcript) {
	result := &VoiceResult{Transcript: t.Text, ResolvedAt: t.ReceivedAt}

	if t.Err != nil {
		metrics.VoiceQueriesTotal.WithLabelValues("failed").Inc()
		s.log.Warn("Speech recognition failed", map[string]interface{}{
			"error": t.Err.Error(),
		})
		result.Error = t.Err.Error()
		s.lastVoice.Store(result)
		return
	}

	match, err := s.ResolveVoice(t.Text)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Match = match
	}
	s.lastVoice.Store(result)
}

func (s *mapService) Close() {
	s.stop()
	s.wg.Wait()
}
