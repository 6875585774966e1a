// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/stratacovid/internal/app/system/gateway"
	"github.com/dalemusser/stratacovid/internal/app/system/inputval"
	"github.com/dalemusser/stratacovid/internal/app/system/normalize"
	"github.com/dalemusser/stratacovid/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for app environment variables,
// e.g. STRATACOVID_MONGO_URI.
const EnvVarPrefix = "STRATACOVID"

// appConfigKeys are loaded via WAFFLE's config system from config files,
// STRATACOVID_* environment variables and --flags.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratacovid", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 50, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 2, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session cookie signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratacovid-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age"},
	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	{Name: "site_name", Default: viewdata.DefaultSiteName, Desc: "Site name shown in the header"},

	// Upstream APIs
	{Name: "countries_url", Default: gateway.DefaultCountriesURL, Desc: "Country list endpoint"},
	{Name: "historical_url", Default: gateway.DefaultHistoricalURL, Desc: "Historical timeline endpoint; {country} and {lastdays} are substituted"},
	{Name: "historical_last_days", Default: 0, Desc: "Days of history to request (0 = all)"},
	{Name: "upstream_timeout", Default: "30s", Desc: "Timeout for one upstream request"},

	// Initial dashboard state
	{Name: "default_country", Default: "", Desc: "Country (ISO alpha-2) selected for new sessions; blank for none"},
	{Name: "default_range_from", Default: "2019-01-01", Desc: "Default range start (YYYY-MM-DD)"},
	{Name: "default_range_to", Default: "2022-01-01", Desc: "Default range end (YYYY-MM-DD)"},

	{Name: "session_idle_ttl", Default: "30m", Desc: "Idle time before an in-memory dashboard session is swept"},
	{Name: "poll_timeout", Default: "25s", Desc: "Longest wait for state.json?wait=1"},
	{Name: "query_timeout", Default: "10s", Desc: "Timeout for usage statistics queries"},

	// Usage statistics
	{Name: "usage_retention", Default: "2160h", Desc: "How long daily usage statistics are kept"},
	{Name: "usage_buffer", Default: 256, Desc: "Pending usage records held before new ones are dropped"},
}

// LoadConfig loads WAFFLE core config and the dashboard's AppConfig.
//
// Precedence is flags > env > files > defaults, as implemented by
// config.LoadWithAppConfig.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),
		CSRFKey:       appValues.String("csrf_key"),

		SiteName: appValues.String("site_name"),

		CountriesURL:       appValues.String("countries_url"),
		HistoricalURL:      appValues.String("historical_url"),
		HistoricalLastDays: appValues.Int("historical_last_days"),
		UpstreamTimeout:    appValues.Duration("upstream_timeout", 30*time.Second),

		DefaultCountry:   normalize.CountryCode(appValues.String("default_country")),
		DefaultRangeFrom: appValues.String("default_range_from"),
		DefaultRangeTo:   appValues.String("default_range_to"),

		SessionIdleTTL: appValues.Duration("session_idle_ttl", 30*time.Minute),
		PollTimeout:    appValues.Duration("poll_timeout", 25*time.Second),
		QueryTimeout:   appValues.Duration("query_timeout", 10*time.Second),

		UsageRetention: appValues.Duration("usage_retention", 90*24*time.Hour),
		UsageBuffer:    appValues.Int("usage_buffer"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig rejects settings the dashboard cannot run with. Every
// problem is reported, not just the first.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
	}
	if !inputval.IsValidHTTPURL(appCfg.CountriesURL) {
		errs = append(errs, fmt.Errorf("countries_url %q is not an http(s) URL", appCfg.CountriesURL))
	}
	if !inputval.IsValidHTTPURL(appCfg.HistoricalURL) {
		errs = append(errs, fmt.Errorf("historical_url %q is not an http(s) URL", appCfg.HistoricalURL))
	} else if !strings.Contains(appCfg.HistoricalURL, "{country}") {
		errs = append(errs, fmt.Errorf("historical_url %q must contain {country}", appCfg.HistoricalURL))
	}
	if appCfg.HistoricalLastDays < 0 {
		errs = append(errs, errors.New("historical_last_days must not be negative"))
	}
	if appCfg.DefaultCountry != "" && !inputval.IsValidCountryCode(appCfg.DefaultCountry) {
		errs = append(errs, fmt.Errorf("default_country %q is not a two-letter country code", appCfg.DefaultCountry))
	}
	if _, err := appCfg.DefaultRange(); err != nil {
		errs = append(errs, err)
	}
	if appCfg.SessionIdleTTL <= 0 {
		errs = append(errs, errors.New("session_idle_ttl must be positive"))
	}
	if appCfg.UsageRetention <= 0 {
		errs = append(errs, errors.New("usage_retention must be positive"))
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
	}
	return err
}
