// Package rate is a fixed-window per-path request limiter with the same
// observable behavior as the hapi-rate-limit pathLimit option the original
// API used: every response carries the path limit and the remaining budget,
// and the request over the limit sees a negative remainder.
package rate

import (
	"sync"
	"time"
)

// Result reports one Take decision. Remaining goes to -1 on the first
// rejected request and keeps falling within the window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per path in fixed windows. Single-process by
// design; counters are not shared across nodes.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	length  time.Duration
	nowTime func() time.Time
}

type Option func(*Limiter)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(l *Limiter) {
		l.nowTime = now
	}
}

func New(windowLength time.Duration, options ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		length:  windowLength,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Take counts a request against the path and reports whether it is within
// the limit. Successful requests consume budget too, matching the original
// ("limits even if the requests are successful").
func (l *Limiter) Take(path string, limit int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowTime()
	w, ok := l.windows[path]
	if !ok || now.Sub(w.start) >= l.length {
		w = &window{start: now}
		l.windows[path] = w
	}

	w.count++
	return Result{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: limit - w.count,
	}
}
