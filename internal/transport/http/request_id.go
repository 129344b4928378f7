package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is both read from the request and echoed on the response so
// callers can correlate their logs with ours.
const requestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey = contextKey("requestID")

// requestID tags every request with an identifier: the caller's, if one came
// in on the header, or a freshly generated one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), requestIDKey, id),
		))
	})
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
