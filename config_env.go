package goPortal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrEthical07/goPortal/activity"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvAPIURL              = "PORTAL_API_URL"
	EnvAPIPrefix           = "PORTAL_API_PREFIX"
	EnvAPITimeout          = "PORTAL_API_TIMEOUT"
	EnvRefreshTimeout      = "PORTAL_REFRESH_TIMEOUT"
	EnvUseMock             = "PORTAL_USE_MOCK_API"
	EnvMockDSN             = "PORTAL_MOCK_DSN"
	EnvMockSigningKey      = "PORTAL_MOCK_SIGNING_KEY"
	EnvAccessTokenLifetime = "PORTAL_ACCESS_TOKEN_LIFETIME"
	EnvKeepAliveInterval   = "PORTAL_KEEPALIVE_INTERVAL"
	EnvInactivityTimeout   = "PORTAL_INACTIVITY_TIMEOUT"
	EnvRefreshBuffer       = "PORTAL_REFRESH_BUFFER"
	EnvPollInterval        = "PORTAL_POLL_INTERVAL"
	EnvActivityThrottle    = "PORTAL_ACTIVITY_THROTTLE"
	EnvActivitySignals     = "PORTAL_ACTIVITY_SIGNALS"
	EnvStorage             = "PORTAL_STORAGE"
	EnvRedisPrefix         = "PORTAL_REDIS_PREFIX"
	EnvNamespace           = "PORTAL_NAMESPACE"
	EnvStorageTTL          = "PORTAL_STORAGE_TTL"
	EnvCookieEnabled       = "PORTAL_COOKIE_ENABLED"
	EnvOrigin              = "PORTAL_ORIGIN"
	EnvLoginPath           = "PORTAL_LOGIN_PATH"
	EnvDefaultLanding      = "PORTAL_DEFAULT_LANDING"
	EnvEventsEnabled       = "PORTAL_EVENTS_ENABLED"
	EnvMetricsEnabled      = "PORTAL_METRICS_ENABLED"
	EnvMetricsLatency      = "PORTAL_METRICS_LATENCY"
	EnvSyncEnabled         = "PORTAL_SYNC_ENABLED"
	EnvLogLevel            = "PORTAL_LOG_LEVEL"
	EnvLogDev              = "PORTAL_LOG_DEV"
	EnvLogFile             = "PORTAL_LOG_FILE"
)

// LoadConfigFromEnv loads the given .env files (".env" when none are
// named; missing files are skipped) and overlays PORTAL_* variables on
// DefaultConfig. Variables already set in the process win over the files.
// The result is validated.
func LoadConfigFromEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	e := &envReader{}

	cfg.API.BaseURL = e.str(EnvAPIURL, cfg.API.BaseURL)
	cfg.API.Prefix = e.str(EnvAPIPrefix, cfg.API.Prefix)
	cfg.API.Timeout = e.duration(EnvAPITimeout, cfg.API.Timeout)
	cfg.API.RefreshTimeout = e.duration(EnvRefreshTimeout, cfg.API.RefreshTimeout)

	if e.boolean(EnvUseMock, false) {
		cfg.DataSource.Mode = DataSourceMock
	}
	cfg.DataSource.MockDSN = e.str(EnvMockDSN, cfg.DataSource.MockDSN)
	if key := e.str(EnvMockSigningKey, ""); key != "" {
		cfg.DataSource.MockSigningKey = []byte(key)
	}

	cfg.Session.AccessTokenLifetime = e.duration(EnvAccessTokenLifetime, cfg.Session.AccessTokenLifetime)
	cfg.Session.KeepAliveInterval = e.duration(EnvKeepAliveInterval, cfg.Session.KeepAliveInterval)
	cfg.Session.InactivityTimeout = e.duration(EnvInactivityTimeout, cfg.Session.InactivityTimeout)
	cfg.Session.RefreshBuffer = e.duration(EnvRefreshBuffer, cfg.Session.RefreshBuffer)
	cfg.Session.PollInterval = e.duration(EnvPollInterval, cfg.Session.PollInterval)

	cfg.Activity.Throttle = e.duration(EnvActivityThrottle, cfg.Activity.Throttle)
	if raw := e.slice(EnvActivitySignals); raw != nil {
		cfg.Activity.Signals = cfg.Activity.Signals[:0]
		for _, s := range raw {
			cfg.Activity.Signals = append(cfg.Activity.Signals, activity.Signal(s))
		}
	}

	cfg.Storage.Backend = StorageBackend(strings.ToLower(e.str(EnvStorage, string(cfg.Storage.Backend))))
	cfg.Storage.RedisPrefix = e.str(EnvRedisPrefix, cfg.Storage.RedisPrefix)
	cfg.Storage.Namespace = e.str(EnvNamespace, cfg.Storage.Namespace)
	cfg.Storage.TTL = e.duration(EnvStorageTTL, cfg.Storage.TTL)

	cfg.Cookie.Enabled = e.boolean(EnvCookieEnabled, cfg.Cookie.Enabled)

	cfg.Navigation.Origin = e.str(EnvOrigin, cfg.Navigation.Origin)
	cfg.Navigation.LoginPath = e.str(EnvLoginPath, cfg.Navigation.LoginPath)
	cfg.Navigation.DefaultLanding = e.str(EnvDefaultLanding, cfg.Navigation.DefaultLanding)

	cfg.Events.Enabled = e.boolean(EnvEventsEnabled, cfg.Events.Enabled)
	cfg.Metrics.Enabled = e.boolean(EnvMetricsEnabled, cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = e.boolean(EnvMetricsLatency, cfg.Metrics.EnableLatencyHistograms)
	cfg.Sync.Enabled = e.boolean(EnvSyncEnabled, cfg.Sync.Enabled)

	cfg.Logging.Development = e.boolean(EnvLogDev, cfg.Logging.Development)
	cfg.Logging.Level = e.str(EnvLogLevel, cfg.Logging.Level)
	cfg.Logging.FilePath = e.str(EnvLogFile, cfg.Logging.FilePath)

	if err := e.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envReader collects parse failures so every bad variable is reported.
type envReader struct {
	errs []error
}

func (e *envReader) str(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (e *envReader) slice(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(e.errs...))
}
