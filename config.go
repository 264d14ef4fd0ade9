package goPortal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goPortal/activity"
	"github.com/MrEthical07/goPortal/internal/logging"
	"github.com/MrEthical07/goPortal/session"
)

// Config defines a public type used by goPortal APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API        APIConfig
	DataSource DataSourceConfig
	Session    SessionConfig
	Activity   ActivityConfig
	Storage    StorageConfig
	Cookie     CookieConfig
	Navigation NavigationConfig
	Events     EventsConfig
	Metrics    MetricsConfig
	Sync       SyncConfig
	Logging    LoggingConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig defines a public type used by goPortal APIs.
//
// APIConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type APIConfig struct {
	BaseURL string // server root, e.g. "http://localhost:8080"
	Prefix  string // joined to BaseURL, "/api" by default
	Timeout time.Duration
	// RefreshTimeout bounds one refresh call independent of the callers
	// waiting on it.
	RefreshTimeout time.Duration
}

// URL returns BaseURL joined with Prefix.
func (c APIConfig) URL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.Prefix, "/")
}

/*
====================================
DATA SOURCE CONFIG
====================================
*/

// DataSourceMode selects the DataSource built by Builder.Build.
type DataSourceMode string

const (
	// DataSourceLive speaks the portal REST API.
	DataSourceLive DataSourceMode = "live"
	// DataSourceMock serves the embedded offline catalog.
	DataSourceMock DataSourceMode = "mock"
)

// DataSourceConfig defines a public type used by goPortal APIs.
//
// DataSourceConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DataSourceConfig struct {
	Mode DataSourceMode
	// MockDSN is the SQLite DSN of the offline catalog.
	MockDSN        string
	MockSigningKey []byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goPortal APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	AccessTokenLifetime time.Duration
	KeepAliveInterval   time.Duration
	InactivityTimeout   time.Duration
	RefreshBuffer       time.Duration
	PollInterval        time.Duration
}

// ActivityConfig defines a public type used by goPortal APIs.
//
// ActivityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ActivityConfig struct {
	Throttle time.Duration
	Signals  []activity.Signal
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackend selects where the session is persisted.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageRedis  StorageBackend = "redis"
)

// StorageConfig defines a public type used by goPortal APIs.
//
// StorageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StorageConfig struct {
	Backend     StorageBackend
	RedisPrefix string
	// Namespace separates the sessions of different users or profiles
	// sharing one Redis.
	Namespace string
	TTL       time.Duration
}

// CookieConfig defines a public type used by goPortal APIs.
//
// CookieConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CookieConfig struct {
	Enabled bool
	Name    string
	MaxAge  time.Duration
}

// NavigationConfig defines a public type used by goPortal APIs.
//
// NavigationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NavigationConfig struct {
	// Origin is the portal's own scheme and host. Absolute redirect
	// targets on this origin are reduced to their path; all others are
	// rejected.
	Origin         string
	LoginPath      string
	DefaultLanding string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// EventsConfig defines a public type used by goPortal APIs.
//
// EventsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goPortal APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SyncConfig defines a public type used by goPortal APIs.
//
// SyncConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SyncConfig struct {
	// Enabled subscribes to identity changes published by other clients
	// sharing the store. It needs a store implementing session.Broadcaster.
	Enabled bool
}

// LoggingConfig defines a public type used by goPortal APIs.
//
// LoggingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoggingConfig struct {
	Level        string
	Development  bool
	FilePath     string
	RotationTime time.Duration
	MaxAge       time.Duration
}

func (c LoggingConfig) internal() logging.Config {
	return logging.Config{
		Level:        c.Level,
		Development:  c.Development,
		FilePath:     c.FilePath,
		RotationTime: c.RotationTime,
		MaxAge:       c.MaxAge,
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the settings of the web front end: a 15 minute
// access token kept alive every 14 minutes, a 15 minute inactivity
// timeout and a one minute poll.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			Prefix:         "/api",
			Timeout:        10 * time.Second,
			RefreshTimeout: 10 * time.Second,
		},
		DataSource: DataSourceConfig{
			Mode:    DataSourceLive,
			MockDSN: "file:portal?mode=memory&cache=shared",
		},
		Session: SessionConfig{
			AccessTokenLifetime: 15 * time.Minute,
			KeepAliveInterval:   14 * time.Minute,
			InactivityTimeout:   15 * time.Minute,
			RefreshBuffer:       time.Minute,
			PollInterval:        time.Minute,
		},
		Activity: ActivityConfig{
			Throttle: activity.DefaultThrottle,
			Signals:  append([]activity.Signal(nil), activity.DefaultSignals...),
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			RedisPrefix: "portal",
			Namespace:   "default",
			TTL:         session.DefaultCookieMaxAge,
		},
		Cookie: CookieConfig{
			Enabled: true,
			Name:    session.DefaultCookieName,
			MaxAge:  session.DefaultCookieMaxAge,
		},
		Navigation: NavigationConfig{
			LoginPath:      "/login",
			DefaultLanding: "/dashboard",
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Sync: SyncConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.DataSource.MockSigningKey = cloneBytes(cfg.DataSource.MockSigningKey)
	out.Activity.Signals = append([]activity.Signal(nil), cfg.Activity.Signals...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate describes the validate operation and its observable behavior.
//
// Validate returns an error wrapping ErrInvalidConfig for the first inconsistent setting.
// Validate does not mutate shared global state and can be used concurrently.
func (c *Config) Validate() error {
	// API
	if c.DataSource.Mode != DataSourceMock {
		u, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("API BaseURL must be an absolute http(s) URL")
		}
	}
	if c.API.Timeout < 0 || c.API.RefreshTimeout < 0 {
		return invalid("API timeouts must be >= 0")
	}

	// Data source
	switch c.DataSource.Mode {
	case DataSourceLive:
	case DataSourceMock:
		if c.DataSource.MockDSN == "" {
			return invalid("DataSource MockDSN is required in mock mode")
		}
		if len(c.DataSource.MockSigningKey) > 0 && len(c.DataSource.MockSigningKey) < 16 {
			return invalid("DataSource MockSigningKey must be at least 16 bytes")
		}
	default:
		return invalid("DataSource Mode must be %q or %q", DataSourceLive, DataSourceMock)
	}

	// Session
	s := c.Session
	if s.AccessTokenLifetime <= 0 {
		return invalid("Session AccessTokenLifetime must be > 0")
	}
	if s.KeepAliveInterval <= 0 || s.KeepAliveInterval >= s.AccessTokenLifetime {
		return invalid("Session KeepAliveInterval must be > 0 and shorter than AccessTokenLifetime")
	}
	if s.InactivityTimeout <= 0 {
		return invalid("Session InactivityTimeout must be > 0")
	}
	if s.RefreshBuffer <= 0 || s.RefreshBuffer >= s.AccessTokenLifetime {
		return invalid("Session RefreshBuffer must be > 0 and shorter than AccessTokenLifetime")
	}
	if s.RefreshBuffer >= s.InactivityTimeout {
		return invalid("Session RefreshBuffer must be shorter than InactivityTimeout")
	}
	if s.PollInterval <= 0 || s.PollInterval > s.InactivityTimeout {
		return invalid("Session PollInterval must be > 0 and <= InactivityTimeout")
	}

	// Activity
	if c.Activity.Throttle < 0 {
		return invalid("Activity Throttle must be >= 0")
	}
	for _, sig := range c.Activity.Signals {
		if !sig.Valid() {
			return invalid("Activity Signals contains unknown signal %q", sig)
		}
	}

	// Storage
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
			return invalid("Storage RedisPrefix is required for the redis backend")
		}
		if c.Storage.TTL < 0 {
			return invalid("Storage TTL must be >= 0")
		}
	default:
		return invalid("Storage Backend must be %q or %q", StorageMemory, StorageRedis)
	}

	// Cookie
	if c.Cookie.Enabled && c.Cookie.MaxAge < 0 {
		return invalid("Cookie MaxAge must be >= 0")
	}

	// Navigation
	if !strings.HasPrefix(c.Navigation.LoginPath, "/") {
		return invalid("Navigation LoginPath must be an absolute path")
	}
	if !strings.HasPrefix(c.Navigation.DefaultLanding, "/") || strings.HasPrefix(c.Navigation.DefaultLanding, "//") {
		return invalid("Navigation DefaultLanding must be an absolute path")
	}
	if c.Navigation.Origin != "" {
		u, err := url.Parse(c.Navigation.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("Navigation Origin must be scheme://host")
		}
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return invalid("Events BufferSize must be > 0 when events are enabled")
	}

	return nil
}
