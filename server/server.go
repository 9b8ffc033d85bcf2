package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/webidscan/auth-server/auth"
	"github.com/webidscan/auth-server/internal/config"
	"github.com/webidscan/auth-server/internal/metrics"
	"github.com/webidscan/auth-server/internal/rate"
)

const googleIssuer = "https://accounts.google.com"

// OidcConfig bundles the Google OAuth collaborator pieces.
type OidcConfig struct {
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// Server is the HTTP layer. It owns routing, middleware, and the wire
// contract; all authentication decisions are delegated to the auth
// service handed in at construction.
type Server struct {
	env        string
	mux        *http.ServeMux
	routes     []string
	config     *config.Config
	auth       *auth.Service
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	log        zerolog.Logger
	googleOidc *OidcConfig
}

func New(cfg *config.Config, authService *auth.Service, limiter *rate.Limiter, m *metrics.Metrics, log zerolog.Logger) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if limiter == nil {
		limiter = rate.New(cfg.Rate.Window)
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	s := &Server{
		env:     cfg.Env,
		mux:     http.NewServeMux(),
		config:  cfg,
		auth:    authService,
		limiter: limiter,
		metrics: m,
		log:     log,
	}

	if cfg.Google.ClientID != "" {
		if err := s.initGoogleOidc(context.Background()); err != nil {
			return nil, errors.Wrap(err, "[Server New] google oidc")
		}
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) initGoogleOidc(ctx context.Context) error {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return errors.Wrap(err, "[initGoogleOidc] new provider")
	}

	s.googleOidc = &OidcConfig{
		OAuth2Config: &oauth2.Config{
			ClientID:     s.config.Google.ClientID,
			ClientSecret: s.config.Google.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  s.config.Google.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{ClientID: s.config.Google.ClientID}),
	}
	return nil
}

func (s *Server) metricsHandler() http.Handler {
	// The default registry also carries go runtime collectors.
	return promhttp.Handler()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			s.log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}

// getScheme determines http/https for redirect and cookie decisions.
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
