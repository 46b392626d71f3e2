package rest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns (or propagates) a request id via X-Request-ID,
// grounded on the teacher's internal/api/middleware.go RequestID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			b := make([]byte, 8)
			rand.Read(b)
			id = hex.EncodeToString(b)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Logger attaches a request-scoped zerolog logger and writes one access-log
// line per request, grounded on the teacher's Logger (rs/zerolog/hlog).
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.NewHandler(log)
		accessLog := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration_ms", duration).
				Msg("request")
		})
		return h(accessLog(next))
	}
}

// Recoverer recovers a panicking handler into a 500 JSON response, grounded
// on the teacher's Recoverer.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				hlog.FromRequest(r).Error().Interface("panic", rec).Msg("recovered from panic")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(ErrorBody{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORSWithOrigins allows the configured origins (empty = allow any),
// grounded on the teacher's CORSWithOrigins.
func CORSWithOrigins(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if allowed[origin] {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter applies a per-remote-IP token bucket, grounded on the
// teacher's RateLimiter (golang.org/x/time/rate), with the same
// periodic-reset goroutine to bound the map's long-run memory.
func RateLimiter(rps float64, burst int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	getLimiter := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ip]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = l
		}
		return l
	}

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			mu.Lock()
			limiters = make(map[string]*rate.Limiter)
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !getLimiter(clientIP(r)).Allow() {
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResponseTimeout wraps the handler in an http.TimeoutHandler, skipping
// streaming endpoints (/current and /sample manage their own
// interval/heartbeat deadlines, spec.md §4.6), grounded on the teacher's
// ResponseTimeout.
func ResponseTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 || isStreamingPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			http.TimeoutHandler(next, timeout, `{"error":"request timed out"}`).ServeHTTP(w, r)
		})
	}
}

func isStreamingPath(path string) bool {
	return strings.HasSuffix(path, "/current") || strings.HasSuffix(path, "/sample")
}

// MaxBodySize caps the request body, grounded on the teacher's MaxBodySize
// (http.MaxBytesReader).
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// MutationAllowlist gates non-GET/HEAD/OPTIONS requests behind a global
// enable flag and a remote-address/CIDR allow-list (spec.md §4.6
// "Allowed only if globally enabled and from an allow-listed remote"),
// generalizing the teacher's WriteAuth from bearer-token comparison to
// address matching.
func MutationAllowlist(enabled bool, allowlist string) func(http.Handler) http.Handler {
	nets, exact := parseAllowlist(allowlist)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if !enabled {
				WriteError(w, http.StatusForbidden, "mutations are disabled")
				return
			}
			ip := clientIP(r)
			if !addressAllowed(ip, nets, exact) {
				WriteError(w, http.StatusForbidden, "remote address is not allow-listed for mutations")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseAllowlist(raw string) ([]*net.IPNet, map[string]bool) {
	var nets []*net.IPNet
	exact := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if _, n, err := net.ParseCIDR(entry); err == nil {
				nets = append(nets, n)
				continue
			}
		}
		exact[entry] = true
	}
	return nets, exact
}

func addressAllowed(ip string, nets []*net.IPNet, exact map[string]bool) bool {
	if exact[ip] {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// clientIP resolves the request's remote address, preferring
// X-Forwarded-For then X-Real-IP before falling back to RemoteAddr,
// grounded on the teacher's clientIP.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
