package middleware

import (
	"net/http"

	"auction-core/pkg/logger"
)

const (
	allowMethods = "GET, POST, DELETE, OPTIONS"
	allowHeaders = "Accept, Content-Type, Content-Length, Authorization, X-Requested-With, X-User-ID"
)

// CORS allows any origin. Identity travels in X-User-ID, not cookies.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", allowMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs every request at debug level.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"user_id", r.Header.Get("X-User-ID"),
				"remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}
