// Package gateway fetches country metadata and historical disease counters
// from the two upstream JSON APIs and converts them into domain models.
//
// Every failure (transport, non-2xx status, malformed or schema-violating
// payload) is returned as a *FetchError whose Error text can be shown to
// the user. Nothing is retried or cached.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/stratacovid/internal/app/system/timeouts"
	"github.com/dalemusser/stratacovid/internal/domain/models"
	"go.uber.org/zap"
)

// Default upstream endpoints.
const (
	DefaultCountriesURL  = "https://restcountries.com/v3.1/all?fields=name,cca2,cca3"
	DefaultHistoricalURL = "https://disease.sh/v3/covid-19/historical/{country}?lastdays={lastdays}"
)

// maxBody bounds how much of a response body is read.
const maxBody = 32 << 20

// Kind identifies which upstream a call went to.
type Kind string

const (
	KindCountries Kind = "countries"
	KindTimeline  Kind = "timeline"
)

// Call describes one completed upstream request.
type Call struct {
	Kind     Kind
	Country  string
	Duration time.Duration
	Err      error
}

// Observer is notified after every upstream request.
type Observer func(Call)

// Config holds the upstream endpoints.
type Config struct {
	CountriesURL string
	// HistoricalURL must contain {country}; {lastdays} is optional.
	HistoricalURL string
	Timeout       time.Duration
	UserAgent     string
}

// Client talks to the upstream APIs. It is safe for concurrent use.
type Client struct {
	cfg      Config
	http     *http.Client
	logger   *zap.Logger
	observer Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver registers fn to be told about every call.
func WithObserver(fn Observer) Option {
	return func(c *Client) { c.observer = fn }
}

// New creates a Client. Empty URLs fall back to the defaults.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.CountriesURL == "" {
		cfg.CountriesURL = DefaultCountriesURL
	}
	if cfg.HistoricalURL == "" {
		cfg.HistoricalURL = DefaultHistoricalURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Upstream()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "stratacovid"
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCountries returns every country the source lists, sorted by common
// name.
func (c *Client) FetchCountries(ctx context.Context) (countries []models.Country, err error) {
	start := time.Now()
	defer func() { c.observe(KindCountries, "", start, err) }()

	var payload []countryPayload
	if err := c.getJSON(ctx, KindCountries, "", c.cfg.CountriesURL, &payload); err != nil {
		return nil, err
	}

	countries = toCountries(payload)
	slices.SortFunc(countries, func(a, b models.Country) int {
		return strings.Compare(a.CommonName, b.CommonName)
	})
	return countries, nil
}

// FetchHistoricalTimeline returns the cumulative timeline for countryCode
// covering the last lastDays days. lastDays <= 0 requests the full history.
func (c *Client) FetchHistoricalTimeline(ctx context.Context, countryCode string, lastDays int) (tl *models.CumulativeTimeline, err error) {
	code := strings.TrimSpace(countryCode)
	start := time.Now()
	defer func() { c.observe(KindTimeline, code, start, err) }()

	if code == "" {
		return nil, &FetchError{
			Op:      KindTimeline,
			Message: "Failed to fetch timeline: country code is required",
		}
	}

	u := c.historicalURL(code, lastDays)
	var payload historicalPayload
	if err := c.getJSON(ctx, KindTimeline, code, u, &payload); err != nil {
		return nil, err
	}

	tl, convErr := payload.toTimeline()
	if convErr != nil {
		return nil, payloadError(KindTimeline, code, u, http.StatusOK, "200 OK", convErr)
	}
	return tl, nil
}

func (c *Client) historicalURL(code string, lastDays int) string {
	days := "all"
	if lastDays > 0 {
		days = strconv.Itoa(lastDays)
	}
	r := strings.NewReplacer(
		"{country}", url.PathEscape(code),
		"{lastdays}", days,
	)
	return r.Replace(c.cfg.HistoricalURL)
}

// getJSON performs a GET and decodes a 2xx body into dst.
func (c *Client) getJSON(ctx context.Context, op Kind, country, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return transportError(op, country, rawURL, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, country, rawURL, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, country, rawURL, resp.StatusCode, resp.Status, upstreamDetail(body))
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		if ctx.Err() != nil {
			return transportError(op, country, rawURL, ctx.Err())
		}
		return payloadError(op, country, rawURL, resp.StatusCode, resp.Status, err)
	}
	return nil
}

// upstreamDetail extracts the "message" field some error bodies carry.
func upstreamDetail(body io.Reader) string {
	var ep errorPayload
	if err := json.NewDecoder(io.LimitReader(body, 4<<10)).Decode(&ep); err != nil {
		return ""
	}
	return strings.TrimSpace(ep.Message)
}

func (c *Client) observe(kind Kind, country string, start time.Time, err error) {
	d := time.Since(start)
	if err != nil {
		c.logger.Warn("upstream fetch failed",
			zap.String("kind", string(kind)),
			zap.String("country", country),
			zap.Duration("duration", d),
			zap.Error(err))
	} else {
		c.logger.Debug("upstream fetch ok",
			zap.String("kind", string(kind)),
			zap.String("country", country),
			zap.Duration("duration", d))
	}
	if c.observer != nil {
		c.observer(Call{Kind: kind, Country: country, Duration: d, Err: err})
	}
}
