package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/metrics"
)

const defaultKeyPrefix = "subsoil:info:"

// CachedSource is a read-through cache over another DataSource for company
// info. Concurrent lookups of one location share a single upstream call.
// Redis failures fall back to the upstream; a nil client disables caching
// but keeps the de-duplication. Failures are never cached.
type CachedSource struct {
	next   DataSource
	client *redis.Client
	ttl    time.Duration
	prefix string
	group  singleflight.Group
	log    *logger.Logger
}

// NewCachedSource wraps next. client may be nil.
func NewCachedSource(next DataSource, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedSource {
	return &CachedSource{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: defaultKeyPrefix,
		log:    log.Component("geometry_cache"),
	}
}

// GetRegions is not cached; a reload always sees the current feed.
func (c *CachedSource) GetRegions(ctx context.Context) ([]RawRegion, error) {
	return c.next.GetRegions(ctx)
}

// GetCompanyGeometry returns the cached or fetched parcel.
func (c *CachedSource) GetCompanyGeometry(ctx context.Context, location string) (*RawGeometry, error) {
	g, err := c.GetCompanyInfo(ctx, location)
	if err != nil {
		return nil, err
	}
	return requireRing(location, g)
}

// GetCompanyInfo returns the cached or fetched license detail.
func (c *CachedSource) GetCompanyInfo(ctx context.Context, location string) (*RawGeometry, error) {
	if g, ok := c.lookup(ctx, location); ok {
		metrics.GeometryCacheHitsTotal.Inc()
		return g, nil
	}
	metrics.GeometryCacheMissesTotal.Inc()

	v, err, _ := c.group.Do(location, func() (interface{}, error) {
		g, err := c.next.GetCompanyInfo(ctx, location)
		if err != nil {
			return nil, err
		}
		c.store(ctx, location, g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}

	shared := v.(*RawGeometry)
	out := *shared
	return &out, nil
}

func (c *CachedSource) lookup(ctx context.Context, location string) (*RawGeometry, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.prefix+location).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Cache read failed", map[string]interface{}{
				"location": location,
				"error":    err.Error(),
			})
		}
		return nil, false
	}

	var g RawGeometry
	if err := json.Unmarshal(data, &g); err != nil {
		c.log.Warn("Dropping undecodable cache entry", map[string]interface{}{
			"location": location,
			"error":    err.Error(),
		})
		return nil, false
	}
	return &g, true
}

func (c *CachedSource) store(ctx context.Context, location string, g *RawGeometry) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(g)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+location, data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", map[string]interface{}{
			"location": location,
			"error":    err.Error(),
		})
	}
}
