package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/mailsift/internal/crypto"
	jsonwriter "github.com/dgellow/mailsift/internal/json"
	"github.com/dgellow/mailsift/internal/log"
)

// MiddlewareFunc wraps an http.Handler with additional behavior
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware applies a list of middlewares to a handler in order
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	// Apply in reverse order so the first middleware is outermost
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewCORSMiddleware creates CORS middleware with the given allowed origins.
// An empty list means no origins are configured and the wildcard is used,
// which only makes sense for local development.
func NewCORSMiddleware(allowedOrigins []string) MiddlewareFunc {
	allowedMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && allowedMap[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if len(allowedOrigins) == 0 {
				// Dev mode: no origins configured
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cache-Control, mcp-protocol-version")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriterDelegator captures the status code and bytes written so the
// logger middleware can report them after the handler runs.
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (d *responseWriterDelegator) WriteHeader(code int) {
	if d.wroteHeader {
		return
	}
	d.status = code
	d.wroteHeader = true
	d.ResponseWriter.WriteHeader(code)
}

func (d *responseWriterDelegator) Write(b []byte) (int, error) {
	if !d.wroteHeader {
		d.WriteHeader(http.StatusOK)
	}
	n, err := d.ResponseWriter.Write(b)
	d.written += int64(n)
	return n, err
}

func (d *responseWriterDelegator) Status() int {
	if !d.wroteHeader {
		return http.StatusOK
	}
	return d.status
}

func (d *responseWriterDelegator) BytesWritten() int64 {
	return d.written
}

// Unwrap exposes the underlying writer so http.ResponseController can find
// optional interfaces through the delegator.
func (d *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return d.ResponseWriter
}

func (d *responseWriterDelegator) Flush() {
	if f, ok := d.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var (
	_ http.ResponseWriter = (*responseWriterDelegator)(nil)
	_ http.Flusher        = (*responseWriterDelegator)(nil)
)

// NewLoggerMiddleware creates middleware that logs each request with its
// status, duration and response size. When trustProxy is set the logged
// client address comes from forwarding headers instead of the socket peer.
func NewLoggerMiddleware(prefix string, trustProxy bool) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			delegator := &responseWriterDelegator{ResponseWriter: w}

			next.ServeHTTP(delegator, r)

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      delegator.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       delegator.BytesWritten(),
				"remote_addr": clientIP(r, trustProxy),
			}
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}

			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware creates middleware that recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Logf("<%s> Recovered from panic: %v", prefix, err)
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewAdminAuthMiddleware guards an endpoint with a bearer token verified
// against the bcrypt hash loaded from config. An empty hash disables the
// guard so a tokenless single-user setup keeps working.
func NewAdminAuthMiddleware(hashedToken []byte) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hashedToken) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
				return
			}

			token := authHeader[7:] // Remove "Bearer " prefix
			if !crypto.VerifyToken(hashedToken, token) {
				log.LogWarnWithFields("server", "Rejected admin token", map[string]any{
					"remote_addr": r.RemoteAddr,
					"path":        r.URL.Path,
				})
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
