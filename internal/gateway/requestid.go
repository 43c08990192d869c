package gateway

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is set on every response for correlation with logs, the
// way caddy's per-module identifiers let an operator line up a log entry
// with a request.
const RequestIDHeader = "X-Request-Id"

// withRequestID stamps a fresh uuid onto the response and returns it so
// the caller can attach it to structured log fields.
func withRequestID(w http.ResponseWriter) string {
	id := uuid.NewString()
	w.Header().Set(RequestIDHeader, id)
	return id
}
