// Command portal-stub serves the portal API from an embedded SQLite
// catalog, for local development and for exercising clients in live mode.
//
// Run:
//
//	go run ./cmd/portal-stub -addr :8080
//
// The demo accounts are admin@, agent@ and client@realestate.com. The API
// lives under /api; every other path is a placeholder page behind the
// route gate, so /dashboard redirects to /login until the auth-token
// cookie carries a valid access token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/internal/logging"
	"github.com/MrEthical07/goPortal/middleware"
	"github.com/MrEthical07/goPortal/offline"
	"github.com/MrEthical07/goPortal/stubserver"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(2)
	}

	var (
		addr     = flag.String("addr", envOr("PORTAL_STUB_ADDR", ":8080"), "listen address")
		dsn      = flag.String("dsn", envOr("PORTAL_MOCK_DSN", offline.DefaultDSN), "sqlite DSN of the catalog")
		key      = flag.String("signing-key", os.Getenv("PORTAL_MOCK_SIGNING_KEY"), "HS256 secret; random when empty")
		latency  = flag.Duration("latency", 0, "artificial delay added to every API call")
		pages    = flag.Bool("pages", true, "serve gated placeholder pages outside /api")
		level    = flag.String("log-level", envOr("PORTAL_LOG_LEVEL", "info"), "log level")
		dev      = flag.Bool("dev", false, "human-readable logs")
		logFile  = flag.String("log-file", os.Getenv("PORTAL_LOG_FILE"), "optional rotated JSON log file")
		noBanner = flag.Bool("no-banner", false, "skip the startup banner")
	)
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: *level, Development: *dev, FilePath: *logFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if !*noBanner {
		figure.NewFigure("portal stub", "cybermedium", true).Print()
		fmt.Println()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, options{
		addr:    *addr,
		dsn:     *dsn,
		key:     []byte(*key),
		latency: *latency,
		pages:   *pages,
	}); err != nil {
		logger.Error("portal stub stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("portal stub stopped")
}

type options struct {
	addr    string
	dsn     string
	key     []byte
	latency time.Duration
	pages   bool
}

func run(ctx context.Context, logger *zap.Logger, opts options) error {
	backend, err := offline.Open(ctx, offline.Config{
		DSN:        opts.dsn,
		SigningKey: opts.key,
		Logger:     logger.Named("offline"),
	})
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer backend.Close()

	api := stubserver.New(backend, stubserver.Options{
		Logger:  logger.Named("stub"),
		Latency: opts.latency,
	})

	mux := http.NewServeMux()
	mux.Handle(stubserver.DefaultPrefix+"/", api)
	if opts.pages {
		gate := middleware.RouteGate(middleware.GateOptions{Logger: logger.Named("gate")})
		mux.Handle("/", gate(http.HandlerFunc(placeholder)))
	}

	srv := &http.Server{Addr: opts.addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("portal stub listening", zap.String("addr", opts.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func placeholder(w http.ResponseWriter, r *http.Request) {
	who := "anonymous"
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		who = c.Email + " " + strings.Join(c.Roles, ",")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "page %s (%s)\n", r.URL.Path, who)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
