// Package middleware provides HTTP middleware for the cesdash API and proxy.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to make cross-origin requests.
	// A single "*" allows any origin and is sent on every response.
	AllowedOrigins []string

	// AllowedMethods specifies the allowed HTTP methods.
	AllowedMethods []string

	// AllowedHeaders specifies the allowed request headers.
	AllowedHeaders []string

	// ExposedHeaders specifies which headers the browser can access.
	ExposedHeaders []string

	// AllowCredentials is ignored when AllowedOrigins is "*".
	AllowCredentials bool

	// MaxAge is the value for Access-Control-Max-Age (seconds).
	MaxAge int

	// PreflightStatus is written for accepted OPTIONS requests.
	// Default: 204 No Content
	PreflightStatus int
}

// DefaultCORSConfig returns defaults for the dashboard API: no origins allowed
// until configured.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Request-ID",
			"Accept",
			"Accept-Language",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-Data-Source",
		},
		MaxAge:          86400,
		PreflightStatus: http.StatusNoContent,
	}
}

// PermissiveCORSConfig returns the request proxy's CORS policy: any origin,
// GET/POST/PUT/DELETE/OPTIONS, Content-Type and Authorization headers,
// and an empty 200 answer to preflight.
func PermissiveCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:  []string{"*"},
		AllowedMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:  []string{"Content-Type", "Authorization"},
		PreflightStatus: http.StatusOK,
	}
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing,
// including preflight OPTIONS requests.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methodsStr := strings.Join(cfg.AllowedMethods, ", ")
	headersStr := strings.Join(cfg.AllowedHeaders, ", ")
	exposedStr := strings.Join(cfg.ExposedHeaders, ", ")
	maxAgeStr := ""
	if cfg.MaxAge > 0 {
		maxAgeStr = strconv.Itoa(cfg.MaxAge)
	}
	preflightStatus := cfg.PreflightStatus
	if preflightStatus == 0 {
		preflightStatus = http.StatusNoContent
	}

	wildcard := false
	originMap := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			wildcard = true
		}
		originMap[strings.ToLower(origin)] = true
	}

	preflight := func(w http.ResponseWriter) {
		w.Header().Set("Access-Control-Allow-Methods", methodsStr)
		w.Header().Set("Access-Control-Allow-Headers", headersStr)
		if maxAgeStr != "" {
			w.Header().Set("Access-Control-Max-Age", maxAgeStr)
		}
		w.WriteHeader(preflightStatus)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", methodsStr)
				w.Header().Set("Access-Control-Allow-Headers", headersStr)
				if exposedStr != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposedStr)
				}
				if r.Method == http.MethodOptions {
					preflight(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")

			// Same-origin request
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !isOriginAllowed(origin, originMap, cfg.AllowedOrigins) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				// The browser blocks the response without CORS headers.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")

			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if exposedStr != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposedStr)
			}

			if r.Method == http.MethodOptions {
				preflight(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed checks origin against exact entries and "*.domain" patterns.
func isOriginAllowed(origin string, originMap map[string]bool, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return false
	}

	normalizedOrigin := strings.ToLower(origin)
	if originMap[normalizedOrigin] {
		return true
	}

	for _, allowed := range allowedOrigins {
		if !strings.HasPrefix(allowed, "*.") {
			continue
		}
		suffix := strings.ToLower(strings.TrimPrefix(allowed, "*"))
		if strings.HasSuffix(normalizedOrigin, suffix) {
			// "*.example.com" matches "https://sub.example.com" only
			prefix := strings.TrimSuffix(normalizedOrigin, suffix)
			if i := strings.Index(prefix, "://"); i >= 0 && i+3 < len(prefix) {
				return true
			}
		}
	}

	return false
}
