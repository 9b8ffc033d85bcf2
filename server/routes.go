package server

import "net/http"

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(),
		append(s.APIMiddleware(), s.RateLimitMiddleware(RouteAuthLogin, s.config.Rate.LoginPathLimit))...))
	s.RegisterRouteFunc("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(),
		append(s.APIMiddleware(), s.RequireAuth())...))

	// PASSWORD
	s.RegisterRouteFunc("POST "+RouteAuthForgotten, ChainMiddleware(s.ForgottenHandler(),
		append(s.APIMiddleware(), s.RateLimitMiddleware(RouteAuthForgotten, s.config.Rate.ForgottenPathLimit))...))
	s.RegisterRouteFunc("POST "+RouteAuthReset, ChainMiddleware(s.ResetHandler(), s.APIMiddleware()...))

	// GOOGLE OAUTH
	if s.googleOidc != nil {
		s.RegisterRouteFunc("GET "+RouteAuthGoogle, ChainMiddleware(s.GoogleLoginHandler(), s.APIMiddleware()...))
		s.RegisterRouteFunc("GET "+RouteGoogleCallback, ChainMiddleware(s.GoogleCallbackHandler(), s.APIMiddleware()...))
	}

	// USERS
	s.RegisterRouteFunc("POST "+RouteUsers, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUsers, ChainMiddleware(s.ListUsersHandler(),
		append(s.APIMiddleware(), s.RequireAuth(), s.RequireScope("admin"))...))
	s.RegisterRouteFunc("GET "+RouteUsersMe, ChainMiddleware(s.ViewProfileHandler(),
		append(s.APIMiddleware(), s.RequireAuth())...))
	s.RegisterRouteFunc("PUT "+RouteUsersMe, ChainMiddleware(s.UpdateProfileHandler(),
		append(s.APIMiddleware(), s.RequireAuth())...))
	s.RegisterRouteFunc("PUT "+RouteUsersMePass, ChainMiddleware(s.UpdatePasswordHandler(),
		append(s.APIMiddleware(), s.RequireAuth())...))
	s.RegisterRouteFunc("DELETE "+RouteUserByID, ChainMiddleware(s.DeactivateUserHandler(),
		append(s.APIMiddleware(), s.RequireAuth(), s.RequireScope("admin"))...))

	// OPS
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metricsHandler())
}

// HealthHandler answers liveness probes.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
