package gateway

import (
	"net/http"

	"github.com/nicolaspernoud/atrium/internal/config"
)

// SecurityHeaders sets a fixed set of hardening headers on the response
// when the resolved binding's InjectSecurityHeaders is true. The concrete
// values are uniform across every protected service.
func SecurityHeaders(binding config.ServiceBinding, secure bool, w http.ResponseWriter) {
	if binding == nil || !binding.InjectSecurityHeaders() {
		return
	}
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
	h.Set("X-XSS-Protection", "0")
	if secure {
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
	}
}
