package goPortal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/activity"
	"github.com/MrEthical07/goPortal/api"
	"github.com/MrEthical07/goPortal/internal/events"
	"github.com/MrEthical07/goPortal/internal/logging"
	"github.com/MrEthical07/goPortal/monitor"
	"github.com/MrEthical07/goPortal/offline"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/transport"
)

// Builder defines a public type used by goPortal APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      session.Store
	dataSource api.DataSource
	logger     *zap.Logger
	navigator  Navigator
	notifier   Notifier
	eventSink  EventSink
	clock      clockwork.Clock
	httpClient *http.Client
	jar        http.CookieJar

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis supplies the client used when Storage.Backend is StorageRedis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore overrides the store selected by Storage.Backend.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithDataSource describes the withdatasource operation and its observable behavior.
//
// WithDataSource overrides the DataSource selected by DataSource.Mode. The
// injected DataSource is used as is; Build does not wrap it.
func (b *Builder) WithDataSource(ds api.DataSource) *Builder {
	b.dataSource = ds
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger overrides the logger built from Logging.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithNavigator describes the withnavigator operation and its observable behavior.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink sets the sink of the event dispatcher. Events are only
// dispatched when Events.Enabled is set.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithClock describes the withclock operation and its observable behavior.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient sets the client whose transport carries every API call.
// Its Transport is wrapped by the retry adapter; its Jar is ignored.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithCookieJar describes the withcookiejar operation and its observable behavior.
//
// WithCookieJar sets the jar the auth cookie is mirrored into.
func (b *Builder) WithCookieJar(jar http.CookieJar) *Builder {
	b.jar = jar
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when the configuration is invalid or a
// dependency cannot be opened. A Builder can be built once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		l, err := logging.New(cfg.Logging.internal())
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		logger = l
	}
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	store, err := b.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
		origin:    uuid.NewString(),
		store:     store,
		navigator: b.navigator,
		notifier:  b.notifier,
		metrics:   NewMetrics(cfg.Metrics),
		ctx:       ctx,
		cancel:    cancel,
	}
	if c.navigator == nil {
		c.navigator = logNavigator{logger: logger}
	}
	if c.notifier == nil {
		c.notifier = logNotifier{logger: logger}
	}
	if cfg.Sync.Enabled {
		if bc, ok := store.(session.Broadcaster); ok {
			c.broadcaster = bc
		}
	}

	jar := b.jar
	if jar == nil {
		jar, _ = cookiejar.New(nil)
	}
	c.cookie = b.buildCookie(cfg, jar)

	tokens := transport.TokenSourceFunc(c.accessToken)
	c.refresh = transport.NewRefreshGroup(c.exchange, tokens, cfg.API.RefreshTimeout)
	c.refresh.OnSettle(c.observeRefresh)

	base := http.DefaultTransport
	timeout := cfg.API.Timeout
	if b.httpClient != nil {
		if b.httpClient.Transport != nil {
			base = b.httpClient.Transport
		}
		if b.httpClient.Timeout > 0 {
			timeout = b.httpClient.Timeout
		}
	}
	c.httpClient = &http.Client{
		Timeout: timeout,
		Transport: transport.New(transport.Options{
			Base:      base,
			Tokens:    tokens,
			Refresher: c.refresh,
			Hooks: transport.Hooks{
				Replayed: func() { c.metrics.Inc(MetricRequestReplayed) },
				Rejected: func(error) { c.metrics.Inc(MetricRequestRejected) },
			},
			Logger: logger.Named("transport"),
		}),
	}
	direct := &http.Client{Timeout: timeout, Transport: base}

	if err := b.buildDataSource(c, cfg, tokens, direct); err != nil {
		cancel()
		return nil, err
	}

	c.monitor, err = monitor.New(storeSource{store: store}, monitorController{c: c}, monitor.Config{
		PollInterval:      cfg.Session.PollInterval,
		KeepAliveInterval: cfg.Session.KeepAliveInterval,
		InactivityTimeout: cfg.Session.InactivityTimeout,
		RefreshBuffer:     cfg.Session.RefreshBuffer,
		Clock:             clock,
		Logger:            logger.Named("monitor"),
	})
	if err != nil {
		cancel()
		c.runClosers()
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	c.tracker = activity.New(store, activity.Options{
		Throttle: cfg.Activity.Throttle,
		Signals:  cfg.Activity.Signals,
		Clock:    clock,
		Logger:   logger.Named("activity"),
		OnTouch:  c.recordActivity,
	})

	sink := b.eventSink
	if sink == nil {
		sink = NewZapSink(logger.Named("events"))
	}
	c.events = events.NewDispatcher(events.Config{
		Enabled:    cfg.Events.Enabled,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, sink)

	b.built = true
	return c, nil
}

func (b *Builder) buildStore(cfg Config) (session.Store, error) {
	if b.store != nil {
		return b.store, nil
	}
	switch cfg.Storage.Backend {
	case StorageRedis:
		if b.redis == nil {
			return nil, ErrRedisRequired
		}
		return session.NewRedisStore(b.redis, cfg.Storage.RedisPrefix, cfg.Storage.Namespace, cfg.Storage.TTL), nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func (b *Builder) buildCookie(cfg Config, jar http.CookieJar) session.CookieMirror {
	if !cfg.Cookie.Enabled {
		return session.NoopCookieMirror{}
	}
	site := cfg.Navigation.Origin
	if site == "" {
		site = cfg.API.BaseURL
	}
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}
	}
	return session.NewJarMirror(jar, u, cfg.Cookie.Name, cfg.Cookie.MaxAge)
}

func (b *Builder) buildDataSource(c *Client, cfg Config, tokens transport.TokenSource, direct *http.Client) error {
	if b.dataSource != nil {
		c.ds = b.dataSource
		return nil
	}
	switch cfg.DataSource.Mode {
	case DataSourceMock:
		openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		backend, err := offline.Open(openCtx, offline.Config{
			DSN:        cfg.DataSource.MockDSN,
			SigningKey: cfg.DataSource.MockSigningKey,
			AccessTTL:  cfg.Session.AccessTokenLifetime,
			Clock:      c.clock,
			Logger:     c.logger.Named("offline"),
			Tokens:     tokens,
		})
		if err != nil {
			return fmt.Errorf("open offline data source: %w", err)
		}
		c.logger.Info("using offline data source", zap.String("dsn", cfg.DataSource.MockDSN))
		c.ds = backend
		c.closers = append(c.closers, backend.Close)
	default:
		ds, err := api.NewHTTPDataSource(api.Options{
			BaseURL: cfg.API.URL(),
			Client:  c.httpClient,
			Direct:  direct,
			Logger:  c.logger.Named("api"),
		})
		if err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
		c.ds = ds
	}
	return nil
}

// recordActivity keeps the in-memory session in step with the store.
func (c *Client) recordActivity(at time.Time) {
	c.mu.Lock()
	if c.sess != nil {
		c.sess.LastActivityAt = at
	}
	c.mu.Unlock()
	c.metrics.Inc(MetricActivityRecorded)
}

func (c *Client) runClosers() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("close failed", zap.Error(err))
		}
	}
}
