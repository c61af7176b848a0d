// internal/adapters/googlemaps/client.go
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"solar_leads/internal/adapters/observability"
	"solar_leads/internal/domain"
)

const service = "googlemaps"

type Options struct {
	APIKey         string
	GeocodeBaseURL string
	StaticBaseURL  string
	CountryFilter  string // ISO 3166-1 alpha-2; empty disables the check
	MapType        string
	Marker         bool
	DefaultZoom    int
	DefaultSize    int
	Timeout        time.Duration
	RPS            int
}

// Client resolves location text through the Google Geocoding API and builds
// Static Maps URLs. One instance per request; Close releases connections.
type Client struct {
	key     string
	geoURL  string
	mapURL  string
	country string
	mapType string
	marker  bool
	zoom    int
	size    int
	hc      *http.Client
	rl      *rate.Limiter
}

func New(o Options) (*Client, error) {
	if o.APIKey == "" {
		return nil, fmt.Errorf("google maps: %w", domain.ErrNotConfigured)
	}
	if o.GeocodeBaseURL == "" {
		o.GeocodeBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	if o.StaticBaseURL == "" {
		o.StaticBaseURL = "https://maps.googleapis.com/maps/api/staticmap"
	}
	if o.MapType == "" {
		o.MapType = "satellite"
	}
	if o.DefaultZoom <= 0 {
		o.DefaultZoom = 20
	}
	if o.DefaultSize <= 0 {
		o.DefaultSize = 512
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.RPS <= 0 {
		o.RPS = 10
	}
	return &Client{
		key:     o.APIKey,
		geoURL:  o.GeocodeBaseURL,
		mapURL:  o.StaticBaseURL,
		country: o.CountryFilter,
		mapType: o.MapType,
		marker:  o.Marker,
		zoom:    o.DefaultZoom,
		size:    o.DefaultSize,
		hc:      &http.Client{Timeout: o.Timeout},
		rl:      rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
	}, nil
}

func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat *float64 `json:"lat"`
				Lng *float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// Resolve geocodes free-form location text. Zero matches map to
// ErrLocationNotFound, a country-filter miss to ErrUnsupportedRegion, and
// transport/HTTP/malformed-payload failures to UpstreamError.
func (c *Client) Resolve(ctx context.Context, location string) (domain.Coordinates, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Coordinates{}, err
	}

	q := url.Values{}
	q.Set("address", location)
	q.Set("key", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geoURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, "geocode", 0, time.Since(start))
		return domain.Coordinates{}, domain.Upstream(service, 0, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, "geocode", resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		return domain.Coordinates{}, domain.Upstream(service, resp.StatusCode, errors.New("geocoding request failed"))
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Coordinates{}, domain.Upstream(service, resp.StatusCode, fmt.Errorf("decode geocoding response: %w", err))
	}

	if body.Status == "ZERO_RESULTS" || (body.Status == "OK" && len(body.Results) == 0) {
		return domain.Coordinates{}, fmt.Errorf("%q: %w", location, domain.ErrLocationNotFound)
	}
	if body.Status != "OK" {
		return domain.Coordinates{}, domain.Upstream(service, resp.StatusCode, fmt.Errorf("geocoding status %s", body.Status))
	}

	top := body.Results[0]
	loc := top.Geometry.Location
	if loc.Lat == nil || loc.Lng == nil {
		return domain.Coordinates{}, domain.Upstream(service, resp.StatusCode, errors.New("geocoding result missing coordinate components"))
	}

	if c.country != "" {
		for _, comp := range top.AddressComponents {
			for _, t := range comp.Types {
				if t == "country" && !strings.EqualFold(comp.ShortName, c.country) {
					return domain.Coordinates{}, fmt.Errorf("%q resolved to %s: %w", location, comp.ShortName, domain.ErrUnsupportedRegion)
				}
			}
		}
	}

	coords, err := domain.NewCoordinates(*loc.Lat, *loc.Lng)
	if err != nil {
		return domain.Coordinates{}, domain.Upstream(service, resp.StatusCode, err)
	}
	return coords, nil
}

// StaticImageURL builds a Static Maps URL for a satellite view of the given
// point. Pure string construction; url.Values encoding keeps parameter order
// deterministic, so identical inputs always yield an identical URL.
func (c *Client) StaticImageURL(coords domain.Coordinates, zoom, width, height int) string {
	center := formatFloat(coords.Lat) + "," + formatFloat(coords.Lng)

	q := url.Values{}
	q.Set("center", center)
	q.Set("zoom", strconv.Itoa(zoom))
	q.Set("size", fmt.Sprintf("%dx%d", width, height))
	q.Set("maptype", c.mapType)
	q.Set("key", c.key)
	if c.marker {
		q.Set("markers", center)
	}
	return c.mapURL + "?" + q.Encode()
}

// PreviewURLs returns count preview image URLs centered on coords, using the
// provider defaults for zoom and size. The center image is the only tile we
// can produce without a paid tiling plan, so all entries share one URL.
func (c *Client) PreviewURLs(coords domain.Coordinates, count int) []string {
	if count <= 0 {
		return nil
	}
	u := c.StaticImageURL(coords, c.zoom, c.size, c.size)
	urls := make([]string, count)
	for i := range urls {
		urls[i] = u
	}
	return urls
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
