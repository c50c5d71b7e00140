package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/httputil"
	"stagepass/pkg/platform/middleware/metadata"
	"stagepass/pkg/requestcontext"
)

// Middleware enforces a per-caller request limit. Authenticated callers are
// keyed by user ID, anonymous ones by client IP.
type Middleware struct {
	store    Store
	logger   *slog.Logger
	limit    int
	window   time.Duration
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns the limiter into a pass-through (tests, demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func New(store Store, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		var key string
		if userID := requestcontext.UserID(ctx); !userID.IsZero() {
			key = "user:" + userID.String()
		} else {
			ip := metadata.GetClientIP(ctx)
			if ip == "" {
				ip = metadata.ClientIPFromRequest(r)
			}
			key = "ip:" + ip
		}

		result, err := m.store.Allow(ctx, key, m.limit, m.window)
		if err != nil {
			// Fail open: an unavailable limiter store must not take the
			// protocol down with it.
			m.logger.WarnContext(ctx, "rate limit check failed, allowing request",
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetAt).Seconds())+1))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
