// Command portal-session signs in to the portal and keeps the session
// alive until interrupted, logging every lifecycle transition.
//
// Configuration comes from PORTAL_* variables and an optional .env file.
// PORTAL_USE_MOCK=true runs against the embedded catalog; otherwise
// PORTAL_API_URL must point at a portal API such as cmd/portal-stub.
//
//	PORTAL_USE_MOCK=true go run ./cmd/portal-session -email client@realestate.com -password Client123!
//
// With -metrics-addr the client's counters are served in Prometheus
// format at /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/internal/logging"
	"github.com/MrEthical07/goPortal/metrics/export/prometheus"
	"github.com/MrEthical07/goPortal/model"
)

func main() {
	var (
		envFile     = flag.String("env", ".env", "dotenv file to load; missing files are skipped")
		email       = flag.String("email", os.Getenv("PORTAL_EMAIL"), "account email")
		pass        = flag.String("password", os.Getenv("PORTAL_PASSWORD"), "account password")
		from        = flag.String("from", "", "page to land on after login")
		redisAddr   = flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "redis address when PORTAL_STORAGE=redis")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
		logoutOnEx  = flag.Bool("logout-on-exit", true, "revoke the session on shutdown")
		noBanner    = flag.Bool("no-banner", false, "skip the startup banner")
	)
	flag.Parse()

	cfg, err := goPortal.LoadConfigFromEnv(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cfg.Metrics.Enabled = cfg.Metrics.Enabled || *metricsAddr != ""

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		FilePath:    cfg.Logging.FilePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if !*noBanner {
		figure.NewFigure("portal session", "cybermedium", true).Print()
		fmt.Println()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, runOptions{
		creds:        model.Credentials{Email: *email, Password: *pass},
		from:         *from,
		redisAddr:    *redisAddr,
		metricsAddr:  *metricsAddr,
		logoutOnExit: *logoutOnEx,
	}); err != nil {
		logger.Error("portal session stopped", zap.Error(err))
		os.Exit(1)
	}
}

type runOptions struct {
	creds        model.Credentials
	from         string
	redisAddr    string
	metricsAddr  string
	logoutOnExit bool
}

func run(ctx context.Context, logger *zap.Logger, cfg goPortal.Config, opts runOptions) error {
	done := make(chan struct{})
	var ended sync.Once
	b := goPortal.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithEventSink(goPortal.NewZapSink(logger.Named("events"))).
		WithNavigator(goPortal.NavigatorFunc(func(_ context.Context, path string) {
			logger.Info("navigate", zap.String("path", path))
			if path == cfg.Navigation.LoginPath {
				ended.Do(func() { close(done) })
			}
		}))

	if cfg.Storage.Backend == goPortal.StorageRedis {
		if opts.redisAddr == "" {
			return errors.New("PORTAL_STORAGE=redis needs -redis-addr or REDIS_ADDR")
		}
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		defer rdb.Close()
		b.WithRedis(rdb)
	}

	client, err := b.Build()
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	defer client.Close()

	if opts.metricsAddr != "" {
		stopMetrics := serveMetrics(logger, opts.metricsAddr, prometheus.NewPrometheusExporter(client))
		defer stopMetrics()
	}

	user, err := client.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if user == nil {
		if opts.creds.Email == "" {
			return errors.New("no stored session; pass -email and -password")
		}
		res, err := client.Login(ctx, opts.creds, goPortal.WithRedirect(opts.from))
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		user = res.User
	}
	logger.Info("signed in",
		zap.String("email", user.Email),
		zap.Strings("roles", user.Roles),
		zap.Stringer("monitor", client.MonitorState()),
	)

	select {
	case <-ctx.Done():
		if opts.logoutOnExit && client.IsAuthenticated() {
			logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Logout(logoutCtx, goPortal.WithoutRedirect())
		}
		return nil
	case <-done:
		logger.Info("session ended")
		return nil
	}
}

func serveMetrics(logger *zap.Logger, addr string, exp *prometheus.PrometheusExporter) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
