package log

import (
	"net/http"
)

// Middleware stores a request-scoped logger carrying the request id, method
// and path in the request context.
func Middleware(logger *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := NewFields().WithHTTPRequest(r.Method, r.URL.Path)
			if requestID != nil {
				fields.WithRequestID(requestID(r))
			}
			l := logger.WithComponent(ComponentHTTP).With(fields.ToSlice()...)
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), l)))
		})
	}
}
