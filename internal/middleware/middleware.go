package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/terratrac/eudr-backend/internal/utils"
	"golang.org/x/time/rate"
)

// UserHeader carries the authenticated username set by the fronting proxy.
const UserHeader = "X-Forwarded-User"

type RoleFetcher interface {
	RoleOf(ctx context.Context, username string) (string, error)
}

// Identity puts the caller's username and role into the request context.
// Requests without UserHeader are recorded under the default uploader name
// but never get staff rights. Unknown users get the plain "user" role.
func Identity(fetcher RoleFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get(UserHeader))
			role := utils.RoleUser
			if username == "" {
				username = utils.DefaultUploader
			} else {
				if fetcher != nil {
					if got, err := fetcher.RoleOf(r.Context(), username); err == nil && got != "" {
						role = got
					}
				}
			}

			ctx := utils.WithUsername(r.Context(), username)
			ctx = utils.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORS echoes allowed origins back. A single "*" entry allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok || (allowAll && origin != "") {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization, "+UserHeader)
			}

			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Retry-After")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Admin rejects callers whose context role is not admin. It must run after
// Identity.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.GetUsernameFromContext(r.Context()); !ok {
			http.Error(w, "Unauthorized: missing username in context", http.StatusUnauthorized)
			return
		}
		if !utils.IsStaff(r.Context()) {
			http.Error(w, "Forbidden: admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit applies a token bucket per client IP. rps <= 0 disables it.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	var mu sync.Mutex
	limiters := map[string]*rate.Limiter{}

	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[key] = l
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !get(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
