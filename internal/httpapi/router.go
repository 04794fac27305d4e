package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/linkauth"
	authmw "github.com/MrEthical07/linkauth/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// Service is the engine surface the HTTP layer needs. Implemented by
// *linkauth.Engine.
type Service interface {
	Signup(ctx context.Context, email, password string) (*linkauth.SessionTokens, error)
	Login(ctx context.Context, email, password string) (*linkauth.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*linkauth.SessionTokens, error)
	SessionFromRefresh(ctx context.Context, refreshToken string) (userID, jti string, err error)
	Logout(ctx context.Context, userID, jti string) error
	LogoutAll(ctx context.Context, userID string) (int, error)
	Authenticate(ctx context.Context, accessToken string) (*linkauth.Principal, error)
	DeleteAccount(ctx context.Context, userID, password string) error

	BeginOAuth(ctx context.Context, provider, refreshToken string, linkMode bool) (string, error)
	CompleteOAuth(ctx context.Context, provider, code, state, refreshToken string) (*linkauth.OAuthOutcome, error)
	LinkWithCode(ctx context.Context, userID, provider, code, state, refreshToken string) (linkauth.OAuthLink, error)
	Unlink(ctx context.Context, userID, provider string) error
	LinkedIdentities(ctx context.Context, userID string) ([]linkauth.LinkedIdentity, error)

	Ping(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	Service    Service
	Cookie     linkauth.CookieConfig
	RefreshTTL time.Duration
	Logger     *zap.Logger
	// CORS enables credentialed cross-origin requests from these origins.
	AllowedOrigins []string
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
}

// Server holds the handlers. Use Handler to obtain the router.
type Server struct {
	svc        Service
	cookie     linkauth.CookieConfig
	refreshTTL time.Duration
	logger     *zap.Logger
	router     chi.Router
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookie := opts.Cookie
	if cookie.Path == "" {
		cookie.Path = "/"
	}

	s := &Server{
		svc:        opts.Service,
		cookie:     cookie,
		refreshTTL: opts.RefreshTTL,
		logger:     logger,
	}
	s.router = s.routes(opts)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(requestMetadata)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	requireAccess := authmw.RequireAccess(s.svc, s.writeError)
	requireSession := authmw.RequireSession(s.svc, s.cookie.Name, s.writeError)

	r.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Post("/signup", s.handleSignup)
	r.Post("/login", s.handleLogin)
	r.Post("/refresh", s.handleRefresh)
	r.Post("/logout", s.handleLogout)

	r.Route("/oauth", func(r chi.Router) {
		r.Get("/{provider}/authorize", s.handleAuthorize)
		r.Post("/{provider}/callback", s.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(requireAccess)
			r.With(requireSession).Post("/{provider}/link", s.handleLink)
			r.Delete("/{provider}/unlink", s.handleUnlink)
			r.Get("/links", s.handleLinks)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAccess)
		r.Post("/logout/all", s.handleLogoutAll)
		r.Delete("/account", s.handleDeleteAccount)
	})

	return r
}

// requestMetadata copies the client address and user agent into the context
// so the engine can attach them to audit events.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := linkauth.WithClientIP(r.Context(), ip)
		ctx = linkauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
