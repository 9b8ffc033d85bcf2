// Package metrics exposes prometheus counters for the authentication
// flows. Counters only; latency is the transport's concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	LoginSuccess     prometheus.Counter
	LoginFailure     prometheus.Counter
	LoginRateLimited prometheus.Counter
	RefreshSuccess   prometheus.Counter
	RefreshFailure   prometheus.Counter
	Logouts          prometheus.Counter
	SessionsRevoked  prometheus.Counter
}

// New registers the counters on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_login_success_total",
			Help: "Successful logins (local, OAuth, and refresh grants).",
		}),
		LoginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_login_failure_total",
			Help: "Rejected logins (bad credentials or invalid refresh token).",
		}),
		LoginRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_login_rate_limited_total",
			Help: "Login requests rejected by the path rate limit.",
		}),
		RefreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_success_total",
			Help: "Refresh grants that produced a new token pair.",
		}),
		RefreshFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_failure_total",
			Help: "Refresh grants rejected (expired, replayed, or revoked).",
		}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logout_total",
			Help: "Explicit logouts.",
		}),
		SessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_revoked_total",
			Help: "Sessions revoked outside logout (deactivation, password reset).",
		}),
	}

	reg.MustRegister(
		m.LoginSuccess,
		m.LoginFailure,
		m.LoginRateLimited,
		m.RefreshSuccess,
		m.RefreshFailure,
		m.Logouts,
		m.SessionsRevoked,
	)
	return m
}
