package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	doora "github.com/doora-app/doora"
	"github.com/doora-app/doora/metrics/export/prometheus"
)

// Config carries the HTTP boundary settings. TTLs drive cookie MaxAge only;
// token expiry itself is enforced by the engine.
type Config struct {
	CookieSecure bool
	CookieDomain string

	AccessCookieTTL  time.Duration
	RefreshCookieTTL time.Duration

	// MaxUploadBytes caps the in-memory portion of multipart register
	// bodies. Zero means the 10 MiB default.
	MaxUploadBytes int64
}

func defaultServerConfig() Config {
	return Config{
		AccessCookieTTL:  15 * time.Minute,
		RefreshCookieTTL: 7 * 24 * time.Hour,
		MaxUploadBytes:   10 << 20,
	}
}

// Server routes HTTP requests to a doora engine.
type Server struct {
	engine *doora.Engine
	config Config
	logger *slog.Logger
}

// NewServer wraps the given engine. A nil logger falls back to slog.Default.
func NewServer(engine *doora.Engine, cfg Config, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("httpapi: nil engine")
	}
	if logger == nil {
		logger = slog.Default()
	}

	def := defaultServerConfig()
	if cfg.AccessCookieTTL <= 0 {
		cfg.AccessCookieTTL = def.AccessCookieTTL
	}
	if cfg.RefreshCookieTTL <= 0 {
		cfg.RefreshCookieTTL = def.RefreshCookieTTL
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}

	return &Server{engine: engine, config: cfg, logger: logger}, nil
}

// Router builds the chi router with all doora routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/v1/healthcheck", s.handleHealthCheck)

	r.Route("/api/v1/user", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/verifyemail", s.handleVerifyEmail)
		r.Post("/resendverification", s.handleResendVerification)
		r.Post("/resetpasswordmail", s.handleResetPasswordMail)
		r.Post("/resetpassword", s.handleResetPassword)
		r.Post("/refreshtoken", s.handleRefreshToken)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuth)
			r.Get("/me", s.handleMe)
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(s.RequireAuth)
		r.Use(s.RequireAdmin)
		r.Method(http.MethodGet, "/metrics", prometheus.NewPrometheusExporter(s.engine).Handler())
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, "ok", nil)
}
