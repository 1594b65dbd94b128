package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/subsoil/internal/errors"
	"github.com/stwalsh4118/subsoil/internal/render"
	"github.com/stwalsh4118/subsoil/internal/services"
)

// ViewSource provides the current map view.
type ViewSource interface {
	Snapshot() render.Snapshot
}

// VoiceHandler drives voice capture and serves the map view.
type VoiceHandler struct {
	service services.MapService
	view    ViewSource
}

// NewVoiceHandler creates a new VoiceHandler instance.
func NewVoiceHandler(service services.MapService, view ViewSource) *VoiceHandler {
	return &VoiceHandler{
		service: service,
		view:    view,
	}
}

// TranscriptRequest is the body of POST /api/v1/voice/transcripts. Error is
// set instead of Transcript when recognition failed in the browser.
type TranscriptRequest struct {
	Transcript string `json:"transcript" binding:"max=500"`
	Error      string `json:"error" binding:"max=200"`
}

// ListeningResponse reports the capture state.
type ListeningResponse struct {
	Listening bool   `json:"listening"`
	Language  string `json:"language,omitempty"`
}

// TranscriptResponse is the outcome of a delivered transcript with the view
// it produced.
type TranscriptResponse struct {
	Result *services.VoiceResult `json:"result"`
	View   render.Snapshot       `json:"view"`
}

// Start handles POST /api/v1/voice/start. Capture is armed for one utterance.
func (h *VoiceHandler) Start(c *gin.Context) {
	language := h.service.StartListening()
	c.JSON(http.StatusOK, ListeningResponse{Listening: true, Language: language})
}

// Stop handles POST /api/v1/voice/stop.
func (h *VoiceHandler) Stop(c *gin.Context) {
	h.service.StopListening()
	c.JSON(http.StatusOK, ListeningResponse{Listening: false})
}

// Transcript handles POST /api/v1/voice/transcripts.
func (h *VoiceHandler) Transcript(c *gin.Context) {
	var req TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindError(c, err)
		return
	}

	if req.Error != "" {
		if err := h.service.FailTranscript(req.Error); err != nil {
			respondServiceError(c, err, "Failed to record recognition error")
			return
		}
		c.JSON(http.StatusOK, TranscriptResponse{
			Result: h.service.LastVoiceResult(),
			View:   h.view.Snapshot(),
		})
		return
	}

	result, err := h.service.SubmitTranscript(req.Transcript)
	if err != nil {
		respondServiceError(c, err, "Failed to process transcript")
		return
	}
	c.JSON(http.StatusOK, TranscriptResponse{
		Result: result,
		View:   h.view.Snapshot(),
	})
}

// Last handles GET /api/v1/voice/last.
func (h *VoiceHandler) Last(c *gin.Context) {
	result := h.service.LastVoiceResult()
	if result == nil {
		apierrors.NotFound(c, "No transcript received yet")
		return
	}
	c.JSON(http.StatusOK, result)
}

// View handles GET /api/v1/view.
func (h *VoiceHandler) View(c *gin.Context) {
	c.JSON(http.StatusOK, h.view.Snapshot())
}

// Progress handles GET /api/v1/load/progress.
func (h *VoiceHandler) Progress(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Progress())
}
