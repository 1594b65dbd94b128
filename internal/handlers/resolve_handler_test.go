package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/subsoil/internal/errors"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/models"
	"github.com/stwalsh4118/subsoil/internal/resolver"
	"github.com/stwalsh4118/subsoil/internal/services"
)

func postJSON(t *testing.T, router http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestResolveHandler_Voice(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		service := new(MockMapService)
		match := &resolver.Match{Region: testRegion("region-0", "Eastern"), Score: 0.8, Token: "east"}
		service.On("ResolveVoice", "east region").Return(match, nil)
		router := setupTestRouter(service, stubView{})

		w := postJSON(t, router, "/api/v1/resolve/voice", `{"transcript": "east region"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var response VoiceMatchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "region-0", response.Region.ID)
		assert.Equal(t, "east", response.Token)
		assert.InDelta(t, 0.8, response.Score, 1e-9)
		assert.False(t, response.Inclusion)
	})

	t.Run("no match", func(t *testing.T) {
		service := new(MockMapService)
		service.On("ResolveVoice", "zzz").Return(nil, services.ErrNoMatch)
		router := setupTestRouter(service, stubView{})

		w := postJSON(t, router, "/api/v1/resolve/voice", `{"transcript": "zzz"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		response := decodeError(t, w)
		assert.Equal(t, apierrors.ErrNoMatch, response.Error.Code)
		assert.Equal(t, "zzz", response.Error.Details["transcript"])
	})

	t.Run("not loaded", func(t *testing.T) {
		service := new(MockMapService)
		service.On("ResolveVoice", "east").Return(nil, services.ErrNotLoaded)
		router := setupTestRouter(service, stubView{})

		w := postJSON(t, router, "/api/v1/resolve/voice", `{"transcript": "east"}`)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("missing transcript", func(t *testing.T) {
		service := new(MockMapService)
		router := setupTestRouter(service, stubView{})

		w := postJSON(t, router, "/api/v1/resolve/voice", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := decodeError(t, w)
		assert.Equal(t, apierrors.ErrValidation, response.Error.Code)
		assert.Contains(t, response.Error.Details, "Transcript")
		service.AssertNotCalled(t, "ResolveVoice", mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		service := new(MockMapService)
		router := setupTestRouter(service, stubView{})

		w := postJSON(t, router, "/api/v1/resolve/voice", `{"transcript":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrBadRequest, decodeError(t, w).Error.Code)
	})
}

func TestResolveHandler_Containment(t *testing.T) {
	square := `{"polygon": [
		{"lat": 50, "lon": 82},
		{"lat": 50, "lon": 83},
		{"lat": 51, "lon": 83},
		{"lat": 51, "lon": 82}
	]}`
	polygon := geometry.Polygon{
		{Lat: 50, Lon: 82},
		{Lat: 50, Lon: 83},
		{Lat: 51, Lon: 83},
		{Lat: 51, Lon: 82},
	}

	tests := []struct {
		name       string
		body       string
		regions    []*models.Region
		err        error
		wantStatus int
		wantCode   string
		wantCount  int
	}{
		{
			name:       "contained",
			body:       square,
			regions:    []*models.Region{testRegion("region-0", "Eastern")},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "outside every region",
			body:       square,
			regions:    []*models.Region{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "service rejects geometry",
			body:       square,
			err:        &geometry.GeometryError{Op: "containment", Points: 4, Reason: "non-finite coordinate"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apierrors.ErrGeometry,
		},
		{
			name:       "too few points",
			body:       `{"polygon": [{"lat": 50, "lon": 82}, {"lat": 51, "lon": 82}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.ErrValidation,
		},
		{
			name:       "latitude out of range",
			body:       `{"polygon": [{"lat": 91, "lon": 82}, {"lat": 50, "lon": 83}, {"lat": 51, "lon": 83}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockMapService)
			if tt.err != nil {
				service.On("ResolveContainment", polygon).Return(nil, tt.err)
			} else {
				service.On("ResolveContainment", polygon).Return(tt.regions, nil)
			}
			router := setupTestRouter(service, stubView{})

			w := postJSON(t, router, "/api/v1/resolve/containment", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				response := decodeError(t, w)
				assert.Equal(t, tt.wantCode, response.Error.Code)
				if tt.wantCode == apierrors.ErrGeometry {
					assert.Equal(t, "containment", response.Error.Details["op"])
				}
				return
			}

			var response ContainmentResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.wantCount, response.Count)
			assert.NotNil(t, response.Regions)
			service.AssertExpectations(t)
		})
	}
}
