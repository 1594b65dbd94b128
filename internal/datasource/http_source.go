package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/metrics"
	"github.com/stwalsh4118/subsoil/internal/models"
)

const (
	regionsPath = "/api/get_area.php"
	infoPath    = "/api/info.php"

	maxBodyBytes = 32 << 20
)

// HTTPSource reads the registry's JSON endpoints.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewHTTPSource creates a source for baseURL, e.g. https://map.choices.kz.
func NewHTTPSource(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.Component("datasource"),
	}
}

// flexString decodes a JSON string, number or boolean as text. null becomes "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(data))
	return nil
}

type feedCompany struct {
	Location     flexString `json:"location"`
	CompanyTitle flexString `json:"company_title"`
	Type         flexString `json:"type"`
	Category     flexString `json:"category"`
}

type feedFeature struct {
	Properties struct {
		Name flexString `json:"name"`
	} `json:"properties"`
	URL     flexString    `json:"url"`
	Company []feedCompany `json:"company"`
	Region  *struct {
		Coordinates [][][][]float64 `json:"coordinates"`
	} `json:"region"`
}

type feedResponse struct {
	Features []feedFeature `json:"features"`
}

// firstRing extracts coordinates[0][0] of a MultiPolygon-shaped array.
func firstRing(coords [][][][]float64) ([][2]float64, bool) {
	if len(coords) == 0 || len(coords[0]) == 0 || len(coords[0][0]) == 0 {
		return nil, false
	}
	ring := make([][2]float64, 0, len(coords[0][0]))
	for _, pos := range coords[0][0] {
		if len(pos) < 2 {
			return nil, false
		}
		ring = append(ring, [2]float64{pos[0], pos[1]})
	}
	return ring, true
}

func (s *HTTPSource) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	start := time.Now()
	result := "error"
	defer func() {
		metrics.FeedRequestsTotal.WithLabelValues(endpoint, result).Inc()
		metrics.FeedDurationMs.WithLabelValues(endpoint).Observe(float64(time.Since(start).Milliseconds()))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		result = "not_found"
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	result = "ok"
	return body, nil
}

// GetRegions fetches the region feed. Features without a boundary are
// dropped, as the map cannot place them.
func (s *HTTPSource) GetRegions(ctx context.Context) ([]RawRegion, error) {
	body, err := s.get(ctx, "regions", s.baseURL+regionsPath)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	regions := make([]RawRegion, 0, len(feed.Features))
	skipped := 0
	for _, f := range feed.Features {
		if f.Region == nil {
			skipped++
			continue
		}
		ring, ok := firstRing(f.Region.Coordinates)
		if !ok {
			skipped++
			continue
		}

		companies := make([]RawCompany, 0, len(f.Company))
		for _, c := range f.Company {
			companies = append(companies, RawCompany{
				Location:     string(c.Location),
				CompanyTitle: string(c.CompanyTitle),
				Type:         string(c.Type),
				Category:     string(c.Category),
			})
		}

		regions = append(regions, RawRegion{
			Name:      string(f.Properties.Name),
			ImageURL:  string(f.URL),
			Boundary:  ring,
			Companies: companies,
		})
	}

	s.log.Debug("Region feed fetched", map[string]interface{}{
		"regions": len(regions),
		"skipped": skipped,
	})
	return regions, nil
}

type infoResponse struct {
	Error             json.RawMessage `json:"error"`
	Coordinates       [][][][]float64 `json:"coordinates"`
	ID                flexString      `json:"id"`
	ParcelType        flexString      `json:"tparcel"`
	ParcelArea        flexString      `json:"parcelarea"`
	LicenseNumber     flexString      `json:"nlicense"`
	ContractNumber    flexString      `json:"ncontract"`
	OblastID          flexString      `json:"admterr_id/oblast_admterr_id"`
	OblastName        flexString      `json:"admterr_id/oblast_admterr_id/name"`
	OblastNameKK      flexString      `json:"admterr_id/oblast_admterr_id/name_kk"`
	MineralDeveloper  flexString      `json:"mineraldeveloper"`
	Minerals          flexString      `json:"tminerals"`
	Deposit           flexString      `json:"deposit"`
	ParcelDepth       flexString      `json:"parceldepth"`
	ContractBeginDate flexString      `json:"contractbegin_date"`
	ContractEndDate   flexString      `json:"contractend_date"`
	ParcelDate        flexString      `json:"parcel_date"`
}

// hasError reports whether the registry flagged the response as an error.
// The flag may be a message, a boolean or a number.
func (r infoResponse) hasError() bool {
	v := strings.TrimSpace(string(r.Error))
	switch v {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}

func (r infoResponse) license() models.LicenseInfo {
	return models.LicenseInfo{
		ID:                string(r.ID),
		ParcelType:        string(r.ParcelType),
		ParcelArea:        string(r.ParcelArea),
		LicenseNumber:     string(r.LicenseNumber),
		ContractNumber:    string(r.ContractNumber),
		OblastID:          string(r.OblastID),
		OblastName:        string(r.OblastName),
		OblastNameKK:      string(r.OblastNameKK),
		MineralDeveloper:  string(r.MineralDeveloper),
		Minerals:          string(r.Minerals),
		Deposit:           string(r.Deposit),
		ParcelDepth:       string(r.ParcelDepth),
		ContractBeginDate: string(r.ContractBeginDate),
		ContractEndDate:   string(r.ContractEndDate),
		ParcelDate:        string(r.ParcelDate),
	}
}

// GetCompanyInfo fetches license detail and, when present, the parcel ring.
func (s *HTTPSource) GetCompanyInfo(ctx context.Context, location string) (*RawGeometry, error) {
	u := s.baseURL + infoPath + "?location=" + url.QueryEscape(location)
	body, err := s.get(ctx, "info", u)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}

	var info infoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if info.hasError() {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("%w: %s", ErrNotFound, unquote(info.Error))}
	}

	g := &RawGeometry{License: info.license()}
	if len(info.Coordinates) > 0 {
		ring, ok := firstRing(info.Coordinates)
		if !ok {
			return nil, &FetchError{Location: location, Err: fmt.Errorf("%w: bad coordinates", ErrMalformed)}
		}
		g.Ring = ring
	}
	return g, nil
}

// GetCompanyGeometry fetches a parcel; a response without coordinates is
// ErrMalformed.
func (s *HTTPSource) GetCompanyGeometry(ctx context.Context, location string) (*RawGeometry, error) {
	g, err := s.GetCompanyInfo(ctx, location)
	if err != nil {
		return nil, err
	}
	return requireRing(location, g)
}

func unquote(raw json.RawMessage) string {
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s
	}
	return string(raw)
}
