package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/subsoil/internal/aggregation"
	apierrors "github.com/stwalsh4118/subsoil/internal/errors"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/models"
	"github.com/stwalsh4118/subsoil/internal/services"
	"github.com/stwalsh4118/subsoil/internal/voice"
)

// RegionHandler handles region-related HTTP requests.
type RegionHandler struct {
	service services.MapService
}

// NewRegionHandler creates a new RegionHandler instance.
func NewRegionHandler(service services.MapService) *RegionHandler {
	return &RegionHandler{
		service: service,
	}
}

// CompanyFilterQuery represents the sidebar filter query parameters.
type CompanyFilterQuery struct {
	Category string `form:"category" binding:"omitempty,max=16"`
	Type     string `form:"type" binding:"omitempty,oneof=extraction exploration"`
}

// RegionSummary is a region without its boundary and company list.
type RegionSummary struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	ImageURL  string         `json:"image_url,omitempty"`
	Center    geometry.Point `json:"center"`
	Companies int            `json:"companies"`
}

// RegionsResponse represents the response for the region list endpoint.
type RegionsResponse struct {
	Regions []RegionSummary `json:"regions"`
	Count   int             `json:"count"`
}

// CompaniesResponse represents a filtered company list.
type CompaniesResponse struct {
	RegionID  string           `json:"region_id"`
	Companies []models.Company `json:"companies"`
	Count     int              `json:"count"`
}

// StatsResponse represents the statistics of a filtered company list.
type StatsResponse struct {
	RegionID string                  `json:"region_id"`
	Stats    aggregation.RegionStats `json:"stats"`
}

// List handles GET /api/v1/regions.
func (h *RegionHandler) List(c *gin.Context) {
	regions := h.service.Regions()
	c.JSON(http.StatusOK, RegionsResponse{
		Regions: summarize(regions),
		Count:   len(regions),
	})
}

// Get handles GET /api/v1/regions/:id.
func (h *RegionHandler) Get(c *gin.Context) {
	region, err := h.service.Region(c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to load region")
		return
	}
	c.JSON(http.StatusOK, region)
}

// Companies handles GET /api/v1/regions/:id/companies.
func (h *RegionHandler) Companies(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	id := c.Param("id")
	companies, err := h.service.Companies(id, filter)
	if err != nil {
		respondServiceError(c, err, "Failed to load companies")
		return
	}
	c.JSON(http.StatusOK, CompaniesResponse{
		RegionID:  id,
		Companies: companies,
		Count:     len(companies),
	})
}

// Stats handles GET /api/v1/regions/:id/stats.
func (h *RegionHandler) Stats(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	id := c.Param("id")
	stats, err := h.service.RegionStats(id, filter)
	if err != nil {
		respondServiceError(c, err, "Failed to compute region statistics")
		return
	}
	c.JSON(http.StatusOK, StatsResponse{RegionID: id, Stats: stats})
}

// Select handles POST /api/v1/regions/:id/select, a click on a region.
func (h *RegionHandler) Select(c *gin.Context) {
	region, err := h.service.SelectRegion(c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to select region")
		return
	}
	c.JSON(http.StatusOK, summary(region))
}

// bindFilter reads the category and type query parameters. It writes the
// error response itself and reports false on failure.
func bindFilter(c *gin.Context) (services.CompanyFilter, bool) {
	var query CompanyFilterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		apierrors.BindError(c, err)
		return services.CompanyFilter{}, false
	}

	filter := services.CompanyFilter{Type: models.CompanyType(query.Type)}
	if query.Category != "" {
		category, ok := aggregation.ParseCategory(query.Category)
		if !ok {
			apierrors.BadRequest(c, "Unknown category", map[string]interface{}{
				"category": query.Category,
			})
			return services.CompanyFilter{}, false
		}
		filter.Category = category
	}
	return filter, true
}

func summary(r *models.Region) RegionSummary {
	center, _ := geometry.CentroidOf(r.Polygon)
	return RegionSummary{
		ID:        r.ID,
		Name:      r.Name,
		ImageURL:  r.ImageURL,
		Center:    center,
		Companies: len(r.Companies),
	}
}

func summarize(regions []*models.Region) []RegionSummary {
	out := make([]RegionSummary, 0, len(regions))
	for _, r := range regions {
		out = append(out, summary(r))
	}
	return out
}

// respondServiceError maps service-level errors onto the API error envelope.
func respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrNotLoaded):
		apierrors.ServiceUnavailable(c, "Regions are not loaded yet")
	case errors.Is(err, services.ErrRegionNotFound):
		apierrors.NotFound(c, "Region not found")
	case errors.Is(err, services.ErrCompanyNotFound):
		apierrors.NotFound(c, "Company not found")
	case errors.Is(err, services.ErrNoGeometry):
		apierrors.NotFound(c, "Company has no parcel geometry")
	case errors.Is(err, geometry.ErrGeometry):
		apierrors.GeometryError(c, err)
	case errors.Is(err, voice.ErrNotListening):
		apierrors.Conflict(c, "Voice capture is not active")
	case errors.Is(err, voice.ErrEmptyTranscript):
		apierrors.BadRequest(c, "Transcript is empty", nil)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}
