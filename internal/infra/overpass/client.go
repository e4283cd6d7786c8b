package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	DefaultURL     = "https://overpass-api.de/api/interpreter"
	defaultAmenity = "bench"

	// Server-side evaluation budget for the interpreter, kept below the
	// client timeout so the server can answer with its own error first.
	queryTimeoutSec = 25
)

// Candidate is a raw meeting point candidate returned by the map data
// source. Coordinates are already resolved: node elements carry them
// directly, way elements carry them under "center". Elements without any
// usable coordinates never make it into a Candidate.
type Candidate struct {
	ExternalID string
	SourceKind string
	Lat        float64
	Lon        float64
	Tags       map[string]string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	amenity    string
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, baseURL, amenity string, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}
	if strings.TrimSpace(amenity) == "" {
		amenity = defaultAmenity
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		amenity:    amenity,
		logger:     log,
	}
}

// FindPointsOfInterest queries the map data source for amenities within the
// given circular zone. Meeting point suggestion is a best-effort
// enhancement, so every failure mode (timeout, transport error, non-2xx
// status, malformed body) degrades to an empty result instead of
// surfacing to the caller. One attempt per call, no caching.
func (c *Client) FindPointsOfInterest(ctx context.Context, centerLat, centerLon float64, radiusMeters int) []Candidate {
	if radiusMeters <= 0 {
		return nil
	}

	candidates, err := c.query(ctx, centerLat, centerLon, radiusMeters)
	if err != nil {
		c.logger.Warn("map data query failed, degrading to empty result",
			zap.Float64("center_lat", centerLat),
			zap.Float64("center_lon", centerLon),
			zap.Int("radius_m", radiusMeters),
			zap.Error(err),
		)
		return nil
	}

	return candidates
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c *Client) query(ctx context.Context, centerLat, centerLon float64, radiusMeters int) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}

	params := url.Values{}
	params.Set("data", c.buildQuery(centerLat, centerLon, radiusMeters))
	req.URL.RawQuery = params.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute overpass request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("overpass responded with status %d", resp.StatusCode)
	}

	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	candidates := make([]Candidate, 0, len(body.Elements))
	for _, element := range body.Elements {
		lat, lon, ok := element.resolveCoordinates()
		if !ok {
			continue
		}
		tags := element.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		candidates = append(candidates, Candidate{
			ExternalID: strconv.FormatInt(element.ID, 10),
			SourceKind: element.Type,
			Lat:        lat,
			Lon:        lon,
			Tags:       tags,
		})
	}

	return candidates, nil
}

// resolveCoordinates picks the coordinate shape once at ingestion: "node"
// elements carry lat/lon at the top level, "way" elements carry a computed
// center. Anything else is unusable.
func (e overpassElement) resolveCoordinates() (float64, float64, bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

func (c *Client) buildQuery(centerLat, centerLon float64, radiusMeters int) string {
	around := fmt.Sprintf("(around:%d,%.6f,%.6f)", radiusMeters, centerLat, centerLon)
	return fmt.Sprintf(
		"[out:json][timeout:%d];(node[\"amenity\"=%q]%s;way[\"amenity\"=%q]%s;);out center;",
		queryTimeoutSec, c.amenity, around, c.amenity, around,
	)
}
