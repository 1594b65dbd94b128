// Package resolver turns voice transcripts and polygons into regions and
// drives the map selection and view that follow.
package resolver

import (
	"fmt"
	"sync"

	"github.com/stwalsh4118/subsoil/internal/fuzzy"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/models"
	"github.com/stwalsh4118/subsoil/internal/render"
	"github.com/stwalsh4118/subsoil/internal/textnorm"
)

const (
	// VoiceZoom is the zoom applied after a voice match.
	VoiceZoom = 9
	// CompanyZoom is the zoom applied when a parcel is focused.
	CompanyZoom = 15
)

// Observer receives selection events.
type Observer interface {
	RegionSelected(region *models.Region)
	CompaniesSelected(companies []models.Company)
	CompanySelected(cp models.CompanyPolygon)
}

// Match is a voice query resolved to a region.
type Match struct {
	Region    *models.Region `json:"region"`
	Score     float64        `json:"score"`
	Token     string         `json:"token"`
	Inclusion bool           `json:"inclusion"`
}

// Resolver holds matching options, the renderer and the observers. It keeps
// no region state; every call receives the index to search.
type Resolver struct {
	renderer    render.MapRenderer
	log         *logger.Logger
	threshold   float64
	minTokenLen int
	voiceZoom   int
	companyZoom int

	mu        sync.RWMutex
	observers []Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold sets the minimum fuzzy score for a non-inclusion match.
func WithThreshold(threshold float64) Option {
	return func(r *Resolver) { r.threshold = threshold }
}

// WithMinTokenLength ignores transcript tokens shorter than n runes.
func WithMinTokenLength(n int) Option {
	return func(r *Resolver) { r.minTokenLen = n }
}

// WithZoom overrides the voice and company zoom levels.
func WithZoom(voice, company int) Option {
	return func(r *Resolver) {
		r.voiceZoom = voice
		r.companyZoom = company
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Resolver) { r.log = log.Component("resolver") }
}

// New creates a Resolver. renderer may be nil.
func New(renderer render.MapRenderer, opts ...Option) *Resolver {
	r := &Resolver{
		renderer:    renderer,
		log:         logger.Nop(),
		threshold:   fuzzy.DefaultThreshold,
		voiceZoom:   VoiceZoom,
		companyZoom: CompanyZoom,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe adds an observer.
func (r *Resolver) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Resolver) snapshotObservers() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Observer{}, r.observers...)
}

func regionName(region *models.Region) string {
	return region.Name
}

// ResolveVoiceQuery finds the region named in transcript. On a match the
// region's companies and the region are published to observers, in that
// order, and the map is centered on the region at the voice zoom.
func (r *Resolver) ResolveVoiceQuery(transcript string, index *models.RegionIndex) (*Match, bool) {
	tokens := textnorm.Tokenize(transcript)
	m, ok := fuzzy.BestMatch(tokens, index.Regions(), regionName,
		fuzzy.WithThreshold(r.threshold),
		fuzzy.WithMinTokenLength(r.minTokenLen),
	)
	if !ok {
		r.log.Debug("No region matched transcript", map[string]interface{}{
			"transcript": transcript,
			"tokens":     tokens,
		})
		return nil, false
	}

	region := m.Candidate
	r.log.Info("Region matched by voice", map[string]interface{}{
		"region_id": region.ID,
		"region":    region.Name,
		"token":     m.Token,
		"score":     m.Score,
	})

	for _, o := range r.snapshotObservers() {
		o.CompaniesSelected(region.Companies)
		o.RegionSelected(region)
	}
	r.focus(region.Polygon, r.voiceZoom)

	return &Match{
		Region:    region,
		Score:     m.Score,
		Token:     m.Token,
		Inclusion: m.Inclusion(),
	}, true
}

// ResolveContainment returns every region whose polygon contains target, in
// index order. No match yields an empty slice. A malformed target or region
// boundary is a *geometry.GeometryError.
func (r *Resolver) ResolveContainment(target geometry.Polygon, index *models.RegionIndex) ([]*models.Region, error) {
	if err := target.Validate("containment target"); err != nil {
		return nil, err
	}

	matches := make([]*models.Region, 0)
	for _, region := range index.Regions() {
		inside, err := geometry.ContainsPolygon(region.Polygon, target)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region.ID, err)
		}
		if inside {
			matches = append(matches, region)
		}
	}
	return matches, nil
}

// SelectRegion publishes a clicked region. The view is left unchanged.
func (r *Resolver) SelectRegion(region *models.Region) {
	if region == nil {
		return
	}
	for _, o := range r.snapshotObservers() {
		o.CompaniesSelected(region.Companies)
		o.RegionSelected(region)
	}
}

// SelectCompany publishes a focused parcel and centers the map on it at the
// company zoom.
func (r *Resolver) SelectCompany(cp models.CompanyPolygon) {
	for _, o := range r.snapshotObservers() {
		o.CompanySelected(cp)
	}
	r.focus(cp.Polygon, r.companyZoom)
}

func (r *Resolver) focus(p geometry.Polygon, zoom int) {
	if r.renderer == nil {
		return
	}
	center, err := geometry.CentroidOf(p)
	if err != nil {
		r.log.Warn("Cannot focus invalid polygon", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	r.renderer.SetView(center, zoom)
}
