package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/subsoil/internal/aggregation"
	"github.com/stwalsh4118/subsoil/internal/geometry"
	"github.com/stwalsh4118/subsoil/internal/loader"
	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/middleware"
	"github.com/stwalsh4118/subsoil/internal/models"
	"github.com/stwalsh4118/subsoil/internal/render"
	"github.com/stwalsh4118/subsoil/internal/resolver"
	"github.com/stwalsh4118/subsoil/internal/services"
)

// MockMapService is a mock implementation of services.MapService for testing
type MockMapService struct {
	mock.Mock
}

func (m *MockMapService) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockMapService) Run(ctx context.Context, interval time.Duration) {
	m.Called(ctx, interval)
}

func (m *MockMapService) WaitLoaded(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockMapService) Status() services.Status {
	return m.Called().Get(0).(services.Status)
}

func (m *MockMapService) Regions() []*models.Region {
	return m.Called().Get(0).([]*models.Region)
}

func (m *MockMapService) Region(id string) (*models.Region, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Region), args.Error(1)
}

func (m *MockMapService) RegionStats(id string, filter services.CompanyFilter) (aggregation.RegionStats, error) {
	args := m.Called(id, filter)
	return args.Get(0).(aggregation.RegionStats), args.Error(1)
}

func (m *MockMapService) Companies(id string, filter services.CompanyFilter) ([]models.Company, error) {
	args := m.Called(id, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Company), args.Error(1)
}

func (m *MockMapService) SelectRegion(id string) (*models.Region, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Region), args.Error(1)
}

func (m *MockMapService) ResolveVoice(transcript string) (*resolver.Match, error) {
	args := m.Called(transcript)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolver.Match), args.Error(1)
}

func (m *MockMapService) ResolveContainment(polygon geometry.Polygon) ([]*models.Region, error) {
	args := m.Called(polygon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Region), args.Error(1)
}

func (m *MockMapService) LocateCompany(ctx context.Context, location string) ([]*models.Region, error) {
	args := m.Called(ctx, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Region), args.Error(1)
}

func (m *MockMapService) CompanyInfo(ctx context.Context, location string) (models.CompanyPolygon, error) {
	args := m.Called(ctx, location)
	return args.Get(0).(models.CompanyPolygon), args.Error(1)
}

func (m *MockMapService) SelectCompany(ctx context.Context, location string) (models.CompanyPolygon, error) {
	args := m.Called(ctx, location)
	return args.Get(0).(models.CompanyPolygon), args.Error(1)
}

func (m *MockMapService) Polygons() map[string]models.CompanyPolygon {
	return m.Called().Get(0).(map[string]models.CompanyPolygon)
}

func (m *MockMapService) Progress() loader.ProgressSnapshot {
	return m.Called().Get(0).(loader.ProgressSnapshot)
}

func (m *MockMapService) StartListening() string {
	return m.Called().String(0)
}

func (m *MockMapService) StopListening() {
	m.Called()
}

func (m *MockMapService) SubmitTranscript(text string) (*services.VoiceResult, error) {
	args := m.Called(text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VoiceResult), args.Error(1)
}

func (m *MockMapService) FailTranscript(reason string) error {
	return m.Called(reason).Error(0)
}

func (m *MockMapService) LastVoiceResult() *services.VoiceResult {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*services.VoiceResult)
}

func (m *MockMapService) Close() {
	m.Called()
}

// stubView is a fixed ViewSource.
type stubView struct {
	snap render.Snapshot
}

func (v stubView) Snapshot() render.Snapshot { return v.snap }

// setupTestRouter creates a router with the request middleware and every
// map route registered against service.
func setupTestRouter(service services.MapService, view ViewSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	log := logger.Nop()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	regionHandler := NewRegionHandler(service)
	resolveHandler := NewResolveHandler(service)
	companyHandler := NewCompanyHandler(service)
	voiceHandler := NewVoiceHandler(service, view)

	v1 := router.Group("/api/v1")
	{
		regions := v1.Group("/regions")
		{
			regions.GET("", regionHandler.List)
			regions.GET("/:id", regionHandler.Get)
			regions.GET("/:id/stats", regionHandler.Stats)
			regions.GET("/:id/companies", regionHandler.Companies)
			regions.POST("/:id/select", regionHandler.Select)
		}
		resolve := v1.Group("/resolve")
		{
			resolve.POST("/voice", resolveHandler.Voice)
			resolve.POST("/containment", resolveHandler.Containment)
		}
		companies := v1.Group("/companies")
		{
			companies.GET("/polygons", companyHandler.Polygons)
			companies.GET("/:location", companyHandler.Get)
			companies.GET("/:location/regions", companyHandler.Regions)
			companies.POST("/:location/select", companyHandler.Select)
		}
		voice := v1.Group("/voice")
		{
			voice.POST("/start", voiceHandler.Start)
			voice.POST("/stop", voiceHandler.Stop)
			voice.POST("/transcripts", voiceHandler.Transcript)
			voice.GET("/last", voiceHandler.Last)
		}
		v1.GET("/view", voiceHandler.View)
		v1.GET("/load/progress", voiceHandler.Progress)
	}

	return router
}

func testRegion(id, name string) *models.Region {
	return &models.Region{
		ID:   id,
		Name: name,
		Polygon: geometry.Polygon{
			{Lat: 48, Lon: 80},
			{Lat: 48, Lon: 86},
			{Lat: 54, Lon: 86},
			{Lat: 54, Lon: 80},
		},
		Companies: []models.Company{
			{Location: "LOC-1", CompanyTitle: "Altyn", Type: models.TypeExtraction, Category: "ТПИ"},
			{Location: "LOC-2", CompanyTitle: "Altyn", Type: models.TypeExploration, Category: "ОПИ"},
		},
	}
}
