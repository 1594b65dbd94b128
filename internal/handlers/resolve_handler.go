package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/subsoil/internal/errors"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/middleware"
	"github.com/stwalsh4118/subsoil/internal/resolver"
	"github.com/stwalsh4118/subsoil/internal/services"
)

// ResolveHandler resolves transcripts and polygons to regions.
type ResolveHandler struct {
	service services.MapService
}

// NewResolveHandler creates a new ResolveHandler instance.
func NewResolveHandler(service services.MapService) *ResolveHandler {
	return &ResolveHandler{
		service: service,
	}
}

// VoiceQueryRequest is the body of POST /api/v1/resolve/voice.
type VoiceQueryRequest struct {
	Transcript string `json:"transcript" binding:"required,max=500"`
}

// PointRequest is one polygon vertex.
type PointRequest struct {
	Lat float64 `json:"lat" binding:"latitude"`
	Lon float64 `json:"lon" binding:"longitude"`
}

// ContainmentRequest is the body of POST /api/v1/resolve/containment.
type ContainmentRequest struct {
	Polygon []PointRequest `json:"polygon" binding:"required,min=3,max=10000,dive"`
}

// VoiceMatchResponse represents a resolved voice query.
type VoiceMatchResponse struct {
	Region    RegionSummary `json:"region"`
	Score     float64       `json:"score"`
	Token     string        `json:"token"`
	Inclusion bool          `json:"inclusion"`
}

// ContainmentResponse lists the regions containing a polygon.
type ContainmentResponse struct {
	Regions []RegionSummary `json:"regions"`
	Count   int             `json:"count"`
}

// Voice handles POST /api/v1/resolve/voice.
func (h *ResolveHandler) Voice(c *gin.Context) {
	var req VoiceQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindError(c, err)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Processing voice query", map[string]interface{}{
			"transcript": req.Transcript,
		})
	}

	match, err := h.service.ResolveVoice(req.Transcript)
	if err != nil {
		if errors.Is(err, services.ErrNoMatch) {
			apierrors.NoMatch(c, "No region matched the transcript", map[string]interface{}{
				"transcript": req.Transcript,
			})
			return
		}
		respondServiceError(c, err, "Failed to resolve voice query")
		return
	}

	c.JSON(http.StatusOK, voiceMatch(match))
}

// Containment handles POST /api/v1/resolve/containment.
func (h *ResolveHandler) Containment(c *gin.Context) {
	var req ContainmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindError(c, err)
		return
	}

	polygon := make(geometry.Polygon, 0, len(req.Polygon))
	for _, p := range req.Polygon {
		polygon = append(polygon, geometry.Point{Lat: p.Lat, Lon: p.Lon})
	}

	regions, err := h.service.ResolveContainment(polygon)
	if err != nil {
		respondServiceError(c, err, "Failed to resolve containment")
		return
	}

	c.JSON(http.StatusOK, ContainmentResponse{
		Regions: summarize(regions),
		Count:   len(regions),
	})
}

func voiceMatch(m *resolver.Match) VoiceMatchResponse {
	return VoiceMatchResponse{
		Region:    summary(m.Region),
		Score:     m.Score,
		Token:     m.Token,
		Inclusion: m.Inclusion,
	}
}
