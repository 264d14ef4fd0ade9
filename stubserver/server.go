package stubserver

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/api"
	"github.com/MrEthical07/goPortal/offline"
	"github.com/MrEthical07/goPortal/transport"
)

// DefaultPrefix is the API root path.
const DefaultPrefix = "/api"

// Options configures a Server.
type Options struct {
	// Prefix is the path the API is mounted under, DefaultPrefix when empty.
	Prefix string
	Logger *zap.Logger
	// Latency delays every response; it helps reproduce concurrent
	// refreshes by hand.
	Latency time.Duration
}

// Server exposes an offline.Backend over the portal REST API.
type Server struct {
	backend *offline.Backend
	engine  *gin.Engine
	logger  *zap.Logger
	latency time.Duration

	mu   sync.Mutex
	hits map[string]int
}

// New builds the router. The returned Server is an http.Handler.
func New(backend *offline.Backend, opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		backend: backend,
		engine:  gin.New(),
		logger:  opts.Logger,
		latency: opts.Latency,
		hits:    map[string]int{},
	}
	s.engine.Use(s.recovery(), s.access())
	s.routes(s.engine.Group(opts.Prefix))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Hits returns how many requests matched route, a pattern such as
// "POST /api/auth/token/refresh".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorBody{Message: "Internal server error", Status: http.StatusInternalServerError})
			}
		}()
		c.Next()
	}
}

func (s *Server) access() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-c.Request.Context().Done():
			}
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		s.mu.Lock()
		s.hits[c.Request.Method+" "+route]++
		s.mu.Unlock()

		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// fail writes err as the API's error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	status := api.StatusOf(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := api.ErrorBody{Status: status, Message: api.UserMessage(err, "Internal server error")}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		body.Errors = apiErr.FieldErrors
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	s.fail(c, api.NewError(http.StatusBadRequest, msg, nil))
}

// bearer carries the Authorization header into the backend call.
func bearer(c *gin.Context) {
	if token := transport.BearerToken(c.GetHeader("Authorization")); token != "" {
		c.Request = c.Request.WithContext(offline.WithBearer(c.Request.Context(), token))
	}
	c.Next()
}

func trimmed(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Query(key))
}
