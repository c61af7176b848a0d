// internal/adapters/zillow/client.go
package zillow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"solar_leads/internal/adapters/observability"
	"solar_leads/internal/domain"
)

const service = "zillow"

// payload guard; the extended-search endpoint can return large pages
const maxBodyBytes = 4 << 20

type Options struct {
	APIKey  string
	BaseURL string
	Host    string
	Timeout time.Duration
	RPS     int
}

// Client queries the zillow-com1 RapidAPI gateway. One instance per request;
// normalization strategies are tried in order until one claims the payload.
type Client struct {
	key   string
	base  string
	host  string
	hc    *http.Client
	rl    *rate.Limiter
	norms []PayloadNormalizer
}

func New(o Options) (*Client, error) {
	if o.APIKey == "" {
		return nil, fmt.Errorf("zillow: %w", domain.ErrNotConfigured)
	}
	if o.BaseURL == "" {
		o.BaseURL = "https://zillow-com1.p.rapidapi.com"
	}
	if o.Host == "" {
		o.Host = "zillow-com1.p.rapidapi.com"
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.RPS <= 0 {
		o.RPS = 5
	}
	return &Client{
		key:   o.APIKey,
		base:  o.BaseURL,
		host:  o.Host,
		hc:    &http.Client{Timeout: o.Timeout},
		rl:    rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
		norms: []PayloadNormalizer{flatNormalizer{}, groupedNormalizer{}},
	}, nil
}

func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

// Search issues one paginated extended-search request and normalizes the
// response. Items without coordinates are dropped silently; the result is
// capped at max even when the upstream page is larger.
func (c *Client) Search(ctx context.Context, location string, max int, filters *domain.SearchFilters, page int) ([]domain.PropertyRecord, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	q := buildQuery(location, filters, page)
	u := c.base + "/propertyExtendedSearch?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.key)
	req.Header.Set("X-RapidAPI-Host", c.host)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, "propertyExtendedSearch", 0, time.Since(start))
		return nil, domain.Upstream(service, 0, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, "propertyExtendedSearch", resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.Upstream(service, resp.StatusCode, domain.ErrAuthDenied)
	case resp.StatusCode >= 400:
		return nil, domain.Upstream(service, resp.StatusCode, errors.New("listing search failed"))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.Upstream(service, resp.StatusCode, err)
	}

	var records []domain.PropertyRecord
	matched := ""
	for _, n := range c.norms {
		if out, ok := n.Normalize(raw); ok {
			records, matched = out, n.Name()
			break
		}
	}
	if matched == "" {
		// Unrecognized shape; treat as an empty page so server-side
		// filtering quirks degrade instead of aborting the pipeline.
		log.Warn().Int("bytes", len(raw)).Msg("zillow payload matched no normalizer")
		return nil, nil
	}

	kept := records[:0]
	for _, r := range records {
		if r.Coords == nil {
			continue
		}
		kept = append(kept, r)
		if max > 0 && len(kept) >= max {
			break
		}
	}
	log.Debug().Str("normalizer", matched).Int("page", page).Int("kept", len(kept)).Msg("zillow page normalized")
	return kept, nil
}

func buildQuery(location string, f *domain.SearchFilters, page int) url.Values {
	q := url.Values{}
	if page <= 0 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))

	// Coordinate/polygon searches replace the free-form location text.
	switch {
	case f != nil && f.Polygon != "":
		q.Set("polygon", f.Polygon)
	case f != nil && f.Coordinates != "":
		q.Set("coordinates", f.Coordinates)
	default:
		q.Set("location", location)
	}
	if f == nil {
		return q
	}

	setInt := func(k string, v *int) {
		if v != nil {
			q.Set(k, strconv.Itoa(*v))
		}
	}
	setBool := func(k string, v *bool) {
		if v != nil {
			q.Set(k, strconv.FormatBool(*v))
		}
	}
	setInt("minPrice", f.MinPrice)
	setInt("maxPrice", f.MaxPrice)
	setInt("bedsMin", f.BedsMin)
	setInt("bathsMin", f.BathsMin)
	setInt("lotSizeMin", f.LotSizeMin)
	setBool("isNewConstruction", f.NewConstruction)
	setBool("isAuction", f.Auction)
	setBool("isForSaleForeclosure", f.Foreclosure)
	if f.HomeType != "" {
		q.Set("home_type", f.HomeType)
	}
	if f.StatusType != "" {
		q.Set("status_type", f.StatusType)
	}
	if f.Keywords != "" {
		q.Set("keywords", f.Keywords)
	}
	return q
}
