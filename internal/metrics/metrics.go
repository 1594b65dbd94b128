package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

var (
	// HTTPRequestsTotal counts requests by method, route template and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subsoil_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	// HTTPRequestDurationMs observes request latency per route template.
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subsoil_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"route"})

	// FeedRequestsTotal counts upstream feed calls by endpoint and result.
	FeedRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subsoil_feed_requests_total",
		Help: "Total upstream feed requests by endpoint and result",
	}, []string{"endpoint", "result"})
	// FeedDurationMs observes upstream feed latency per endpoint.
	FeedDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subsoil_feed_duration_ms",
		Help:    "Upstream feed call duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"endpoint"})

	// GeometryCacheHitsTotal counts geometry responses served from redis.
	GeometryCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subsoil_geometry_cache_hits_total",
		Help: "Total company geometry cache hits",
	})
	// GeometryCacheMissesTotal counts geometry lookups that went upstream.
	GeometryCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subsoil_geometry_cache_misses_total",
		Help: "Total company geometry cache misses",
	})

	// PolygonLoadsTotal counts parcel fetch attempts by result (ok or a failure kind).
	PolygonLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subsoil_polygon_loads_total",
		Help: "Company polygon attach attempts by result",
	}, []string{"result"})
	// RegionReloadsTotal counts reloads by result.
	RegionReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subsoil_region_reloads_total",
		Help: "Region index reloads by result",
	}, []string{"result"})
	// RegionsLoaded is the size of the active region index.
	RegionsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subsoil_regions_loaded",
		Help: "Regions in the active index",
	})
	// CompanyPolygonsLoaded is the number of parcels attached so far.
	CompanyPolygonsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subsoil_company_polygons_loaded",
		Help: "Company polygons attached in the active load",
	})

	// VoiceQueriesTotal counts voice queries by outcome.
	VoiceQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subsoil_voice_queries_total",
		Help: "Voice queries by outcome",
	}, []string{"outcome"})
	// VoiceMatchScore observes the score of accepted voice matches.
	VoiceMatchScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "subsoil_voice_match_score",
		Help:    "Similarity score of accepted voice matches",
		Buckets: []float64{0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})
	// ContainmentQueriesTotal counts containment queries by outcome.
	ContainmentQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subsoil_containment_queries_total",
		Help: "Containment queries by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
	prometheus.MustRegister(FeedRequestsTotal)
	prometheus.MustRegister(FeedDurationMs)
	prometheus.MustRegister(GeometryCacheHitsTotal)
	prometheus.MustRegister(GeometryCacheMissesTotal)
	prometheus.MustRegister(PolygonLoadsTotal)
	prometheus.MustRegister(RegionReloadsTotal)
	prometheus.MustRegister(RegionsLoaded)
	prometheus.MustRegister(CompanyPolygonsLoaded)
	prometheus.MustRegister(VoiceQueriesTotal)
	prometheus.MustRegister(VoiceMatchScore)
	prometheus.MustRegister(ContainmentQueriesTotal)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
