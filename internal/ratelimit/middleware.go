package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/config"
)

// group names match the configuration keys.
const (
	GroupAuth = "auth"
	GroupChat = "chat"
	GroupAPI  = "api"
)

// Middleware returns a chi-compatible middleware enforcing the
// configured limits. It runs before the auth middleware, so it
// identifies the caller from the bearer token itself; admins pass
// through unlimited.
func Middleware(limiter *Limiter, cfg config.LimitsConfig, jwtSecret []byte) func(http.Handler) http.Handler {
	rules := map[string]Rule{
		GroupAuth: RuleFromConfig(cfg.Auth),
		GroupChat: RuleFromConfig(cfg.Chat),
		GroupAPI:  RuleFromConfig(cfg.API),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			group := groupFor(r.URL.Path)
			rule, ok := rules[group]
			if !ok || rule.Rate <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			principal, isAdmin := identify(r, jwtSecret)
			if isAdmin {
				next.ServeHTTP(w, r)
				return
			}

			key := principal + "|" + group
			allowed, retryAfter := limiter.Allow(key, rule)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key, rule)))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfterMs := int(retryAfter / 1e6)
			if retryAfterMs <= 0 {
				retryAfterMs = 1000
			}
			retryAfterSeconds := int(math.Ceil(float64(retryAfterMs) / 1000.0))
			if retryAfterSeconds <= 0 {
				retryAfterSeconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":          "rate_limited",
				"retry_after_ms": retryAfterMs,
			})
		})
	}
}

// groupFor buckets requests by path. Login and signup share the strict
// auth group, chat gets its own, everything else is general API.
func groupFor(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/auth/"):
		return GroupAuth
	case strings.HasPrefix(path, "/api/chat"):
		return GroupChat
	default:
		return GroupAPI
	}
}

// identify names the caller for bucket keying. A valid bearer token
// yields the user ID; otherwise the client IP stands in.
func identify(r *http.Request, jwtSecret []byte) (principal string, isAdmin bool) {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		if claims, err := auth.ValidateToken(token, jwtSecret); err == nil {
			return claims.UserID, claims.Role == auth.RoleAdmin
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host, false
}
