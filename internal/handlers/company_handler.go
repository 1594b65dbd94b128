package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/models"
	"github.com/stwalsh4118/subsoil/internal/render"
	"github.com/stwalsh4118/subsoil/internal/services"
)

// CompanyHandler handles company parcel HTTP requests.
type CompanyHandler struct {
	service services.MapService
}

// NewCompanyHandler creates a new CompanyHandler instance.
func NewCompanyHandler(service services.MapService) *CompanyHandler {
	return &CompanyHandler{
		service: service,
	}
}

// ParcelData is a company parcel as drawn on the map.
type ParcelData struct {
	Company models.Company      `json:"company"`
	Color   string              `json:"color"`
	Polygon geometry.Polygon    `json:"polygon,omitempty"`
	License *models.LicenseInfo `json:"license,omitempty"`
}

// PolygonsResponse represents the loaded parcels.
type PolygonsResponse struct {
	Parcels map[string]ParcelData `json:"parcels"`
	Count   int                   `json:"count"`
	Done    bool                  `json:"done"`
}

// LocateResponse lists the regions containing a company's parcel.
type LocateResponse struct {
	Location string          `json:"location"`
	Regions  []RegionSummary `json:"regions"`
	Count    int             `json:"count"`
}

// Polygons handles GET /api/v1/companies/polygons. Parcels appear as the
// loader attaches them.
func (h *CompanyHandler) Polygons(c *gin.Context) {
	polygons := h.service.Polygons()

	parcels := make(map[string]ParcelData, len(polygons))
	for location, cp := range polygons {
		parcels[location] = parcelData(cp)
	}

	c.JSON(http.StatusOK, PolygonsResponse{
		Parcels: parcels,
		Count:   len(parcels),
		Done:    h.service.Progress().Done,
	})
}

// Get handles GET /api/v1/companies/:location.
func (h *CompanyHandler) Get(c *gin.Context) {
	cp, err := h.service.CompanyInfo(c.Request.Context(), c.Param("location"))
	if err != nil {
		respondServiceError(c, err, "Failed to load company")
		return
	}
	c.JSON(http.StatusOK, parcelData(cp))
}

// Regions handles GET /api/v1/companies/:location/regions.
func (h *CompanyHandler) Regions(c *gin.Context) {
	location := c.Param("location")
	regions, err := h.service.LocateCompany(c.Request.Context(), location)
	if err != nil {
		respondServiceError(c, err, "Failed to locate company")
		return
	}
	c.JSON(http.StatusOK, LocateResponse{
		Location: location,
		Regions:  summarize(regions),
		Count:    len(regions),
	})
}

// Select handles POST /api/v1/companies/:location/select, a click on a
// parcel. The map centers on it.
func (h *CompanyHandler) Select(c *gin.Context) {
	cp, err := h.service.SelectCompany(c.Request.Context(), c.Param("location"))
	if err != nil {
		respondServiceError(c, err, "Failed to select company")
		return
	}
	c.JSON(http.StatusOK, parcelData(cp))
}

func parcelData(cp models.CompanyPolygon) ParcelData {
	return ParcelData{
		Company: cp.Company,
		Color:   render.ColorFor(cp.Company.Type),
		Polygon: cp.Polygon,
		License: cp.License,
	}
}
