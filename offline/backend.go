package offline

import (
	"context"
	"crypto/rand"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/goPortal/api"
	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/password"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	// DefaultDSN keeps the catalog in a private in-memory database.
	DefaultDSN = "file:portal?mode=memory&cache=shared"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	accountTokenTTL   = 24 * time.Hour
)

// TokenSource supplies the caller's access token when the context carries
// none.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Config configures a Backend.
type Config struct {
	DSN string
	// SigningKey is the HS256 secret of issued access tokens, at least 16
	// bytes. A random key is generated when empty, so tokens do not
	// survive a restart.
	SigningKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clockwork.Clock
	Logger     *zap.Logger
	// Tokens is consulted for the caller's identity when the context has
	// no bearer from WithBearer.
	Tokens TokenSource
	// Hasher defaults to argon2id with the fast parameters.
	Hasher password.Hasher
}

// Backend is a DataSource served from an embedded SQLite catalog. It
// behaves like the portal API: it authenticates, authorizes by role and
// fails with *api.Error values carrying the same statuses and messages.
type Backend struct {
	db         *sqlx.DB
	jwt        *jwt.Manager
	hasher     password.Hasher
	clock      clockwork.Clock
	logger     *zap.Logger
	tokens     TokenSource
	refreshTTL time.Duration
}

var _ api.DataSource = (*Backend)(nil)

// Open connects to cfg.DSN, applies the embedded migrations and seeds the
// demo accounts.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.DSN == "" {
		cfg.DSN = DefaultDSN
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = make([]byte, 32)
		if _, err := rand.Read(cfg.SigningKey); err != nil {
			return nil, fmt.Errorf("offline: generate signing key: %w", err)
		}
	}
	if cfg.Hasher == nil {
		h, err := password.NewArgon2(password.FastConfig())
		if err != nil {
			return nil, err
		}
		cfg.Hasher = h
	}

	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.SigningKey,
		Issuer:        "portal-offline",
		Clock:         cfg.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("offline: token manager: %w", err)
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("offline: open database: %w", err)
	}
	// One connection keeps a memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("offline: database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("offline: enable foreign keys: %w", err)
	}

	b := &Backend{
		db:         db,
		jwt:        manager,
		hasher:     cfg.Hasher,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		tokens:     cfg.Tokens,
		refreshTTL: cfg.RefreshTTL,
	}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := b.seed(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("offline: migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(b.db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("offline: creating migrate driver: %w", err)
	}
	// m.Close would close the shared *sql.DB; the Backend owns it.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("offline: creating migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("offline: checking migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("offline: database is in a dirty state (version %d)", version)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("offline: applying migrations: %w", err)
	}
	newVersion, _, _ := m.Version()
	if newVersion != version {
		b.logger.Debug("offline catalog migrated", zap.Uint("from", version), zap.Uint("to", newVersion))
	}
	return nil
}

// DemoAccount is a seeded account.
type DemoAccount struct {
	Name           string
	Email          string
	Password       string
	Phone          string
	Address        string
	ProfilePicture string
	Role           string
}

// DemoAccounts are created on first Open.
var DemoAccounts = []DemoAccount{
	{Name: "Admin User", Email: "admin@realestate.com", Password: "Admin123!", Phone: "+1234567890", Address: "123 Admin Street", ProfilePicture: "/images/male-profile-pic.svg", Role: "ROLE_ADMIN"},
	{Name: "Agent User", Email: "agent@realestate.com", Password: "Agent123!", Phone: "+1987654321", Address: "456 Agent Avenue", ProfilePicture: "/images/female-profile-pic.svg", Role: "ROLE_AGENT"},
	{Name: "Client User", Email: "client@realestate.com", Password: "Client123!", Phone: "+1555123456", Address: "789 Client Court", ProfilePicture: "/images/male-profile-pic.svg", Role: "ROLE_CLIENT"},
}

// seedTime is the creation time of the demo accounts.
var seedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (b *Backend) seed(ctx context.Context) error {
	for _, acct := range DemoAccounts {
		var n int
		if err := b.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM users WHERE email = ?`, acct.Email); err != nil {
			return fmt.Errorf("offline: seed lookup: %w", err)
		}
		if n > 0 {
			continue
		}
		hash, err := b.hasher.Hash(acct.Password)
		if err != nil {
			return fmt.Errorf("offline: seed hash: %w", err)
		}
		_, err = b.db.NamedExecContext(ctx, insertUser, userRow{
			Name:           acct.Name,
			Email:          acct.Email,
			Phone:          acct.Phone,
			Address:        acct.Address,
			ProfilePicture: acct.ProfilePicture,
			PasswordHash:   hash,
			Enabled:        true,
			Roles:          acct.Role,
			CreatedAt:      seedTime.UnixMilli(),
			UpdatedAt:      seedTime.UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("offline: seed %s: %w", acct.Email, err)
		}
	}
	return nil
}

func (b *Backend) now() int64 {
	return b.clock.Now().UnixMilli()
}

// Error helpers mirror the status and message pairs of the portal API.

func badRequest(msg string) error { return api.NewError(400, msg, nil) }

func unauthorized(msg string) error { return api.NewError(401, msg, nil) }

func forbidden() error { return api.NewError(403, "Access denied", nil) }

func notFound(what string) error { return api.NewError(404, what+" not found", nil) }

func conflict(msg string) error { return api.NewError(409, msg, nil) }

func validation(fields map[string]string) error {
	return api.NewError(400, "Validation failed", fields)
}

func internal(op string, err error) error {
	return &api.Error{Status: 500, Kind: api.KindServer, Message: "Internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

func splitRoles(raw string) []string {
	var out []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
