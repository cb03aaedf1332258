package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
)

// Address is the input of a lookup.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Query formats the address as "street, city, state, zip", skipping blanks.
func (a Address) Query() string {
	var parts []string
	for _, p := range []string{a.Street, a.City, a.State, a.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Result of a lookup. Lat and Lng are nil when Status is NONE.
type Result struct {
	Lat    *float64
	Lng    *float64
	Status constants.GeocodeStatus
}

// Geocoder resolves addresses to coordinates. Failures are reported as NONE.
type Geocoder interface {
	Geocode(ctx context.Context, addr Address) Result
}

// minPreciseRank is the Nominatim place_rank from which a hit is street level or finer.
const minPreciseRank = 26

type place struct {
	Lat       string `json:"lat"`
	Lon       string `json:"lon"`
	PlaceRank int    `json:"place_rank"`
}

// Nominatim queries an OpenStreetMap Nominatim server. Cache hits skip the
// network and the rate limit.
type Nominatim struct {
	client   *resty.Client
	cache    *Cache
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewNominatim(cfg common.GeocodeConfig, cache *Cache, logger *slog.Logger) *Nominatim {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewCache()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("user-agent", cfg.UserAgent)
	client.SetHeader("accept", "application/json")
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(4 * time.Second)
	client.SetRetryMaxWaitTime(10 * time.Second)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		return err != nil || res.StatusCode() == http.StatusTooManyRequests || res.StatusCode() >= 500
	})

	return &Nominatim{
		client:   client,
		cache:    cache,
		limiter:  newLimiter(cfg.MinInterval),
		logger:   logger,
	}
}

// Client exposes the HTTP client for tuning retries and transport.
func (n *Nominatim) Client() *resty.Client { return n.client }

// Limiter exposes the rate limiter shared by all lookups.
func (n *Nominatim) Limiter() *rate.Limiter { return n.limiter }

func (n *Nominatim) Geocode(ctx context.Context, addr Address) Result {
	none := Result{Status: constants.GeocodeNone}
	if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.City) == "" {
		return none
	}
	query := addr.Query()
	if e, ok := n.cache.Get(query); ok {
		return Result{Lat: e.Lat, Lng: e.Lng, Status: e.Status}
	}

	res, err := n.lookup(ctx, query)
	if err != nil {
		n.logger.Warn("geocode.failed", "address", query, "error", err)
		return none
	}
	n.cache.Put(query, Entry{Lat: res.Lat, Lng: res.Lng, Status: res.Status})
	return res
}

func (n *Nominatim) lookup(ctx context.Context, query string) (Result, error) {
	none := Result{Status: constants.GeocodeNone}
	if err := n.limiter.Wait(ctx); err != nil {
		return none, err
	}

	var places []place
	res, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":              query,
			"format":         "jsonv2",
			"limit":          "1",
			"countrycodes":   "us",
			"addressdetails": "1",
		}).
		SetResult(&places).
		ForceContentType("application/json").
		Get("/search")
	if err != nil {
		return none, err
	}
	if res.IsError() {
		return none, fmt.Errorf("nominatim: %s", res.Status())
	}
	if len(places) == 0 {
		n.logger.Debug("geocode.no_match", "address", query)
		return none, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return none, fmt.Errorf("nominatim lat %q: %w", places[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return none, fmt.Errorf("nominatim lon %q: %w", places[0].Lon, err)
	}
	status := constants.GeocodePartial
	if places[0].PlaceRank >= minPreciseRank {
		status = constants.GeocodeOK
	}
	return Result{Lat: &lat, Lng: &lng, Status: status}, nil
}
