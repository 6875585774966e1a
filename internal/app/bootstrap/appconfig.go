// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dalemusser/stratacovid/internal/domain/models"
)

// AppConfig holds the dashboard's own configuration, loaded in LoadConfig
// from flags, STRATACOVID_* environment variables, .env and config files.
//
// WAFFLE's CoreConfig covers the framework side (ports, TLS, logging,
// CORS, body limits); everything specific to the dashboard lives here.
type AppConfig struct {
	// MongoDB holds usage statistics only.
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Dashboard session cookie
	SessionKey    string        // signs the cookie; must be strong in production
	SessionName   string        // cookie name (default: stratacovid-session)
	SessionDomain string        // blank means current host
	SessionMaxAge time.Duration // cookie lifetime

	CSRFKey string // 32+ chars in production

	SiteName string // shown in the page header and title

	// Upstream data sources
	CountriesURL       string
	HistoricalURL      string // must contain {country}
	HistoricalLastDays int    // 0 requests the full history
	UpstreamTimeout    time.Duration

	// Initial dashboard state for a new session
	DefaultCountry   string // blank starts with no country selected
	DefaultRangeFrom string // YYYY-MM-DD
	DefaultRangeTo   string // YYYY-MM-DD

	SessionIdleTTL time.Duration // in-memory dashboard sessions idle longer are swept
	PollTimeout    time.Duration // longest wait for state.json?wait=1
	QueryTimeout   time.Duration // MongoDB reads for the usage page

	UsageRetention time.Duration // usage_stats older than this are pruned
	UsageBuffer    int           // pending usage records before dropping
}

// DefaultRange parses the configured default date range.
func (c AppConfig) DefaultRange() (models.DateRange, error) {
	from, err := civil.ParseDate(c.DefaultRangeFrom)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("default_range_from: %w", err)
	}
	to, err := civil.ParseDate(c.DefaultRangeTo)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("default_range_to: %w", err)
	}
	return models.DateRange{From: from, To: to}.Normalized(), nil
}
