package server

// Route paths. Kept in one place so handlers, middleware, and tests agree.
const (
	RouteAuthLogin      = "/auth/login"
	RouteAuthLogout     = "/auth/logout"
	RouteAuthForgotten  = "/auth/forgotten"
	RouteAuthReset      = "/auth/reset"
	RouteAuthGoogle     = "/auth/google"
	RouteGoogleCallback = "/auth/google/callback"

	RouteUsers       = "/users"
	RouteUsersMe     = "/users/me"
	RouteUsersMePass = "/users/me/password"
	RouteUserByID    = "/users/{id}"

	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)

// defaultLogoutRedirect is where GET /auth/logout lands without a ?next=.
const defaultLogoutRedirect = "/"
