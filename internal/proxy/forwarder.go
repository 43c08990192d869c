// Package proxy implements the reverse-proxy forwarder: request
// rewriting, upstream dispatch via a shared client, and response
// pass-through.
package proxy

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nicolaspernoud/atrium/internal/config"
)

// AuthenticatedUserMailHeader is the header the proxy sets on forwarded
// requests when App.ForwardUserMail is true.
const AuthenticatedUserMailHeader = "Remote-User"

// Forwarder dispatches requests to a ReverseAppBinding's upstream using
// one process-wide, connection-pooling HTTP client — never a new client
// per request.
type Forwarder struct {
	client *http.Client
	logger *zap.Logger
}

// NewForwarder builds a Forwarder with bounded timeouts: connect <= 5s,
// TLS handshake <= 5s, upstream response headers <= 30s. ServeHTTP hands
// only the client's Transport to httputil.ReverseProxy, so the client's
// overall Timeout does not apply and the response body is not time-bounded.
func NewForwarder(logger *zap.Logger) *Forwarder {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Forwarder{
		client: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		logger: logger,
	}
}

// UserIdentity carries just what the forwarder needs from an
// authenticated session to inject Remote-User.
type UserIdentity struct {
	Email string
}

// ServeHTTP rewrites r and proxies it to binding's upstream, writing the
// upstream's status/headers/body through unchanged (plus whatever the
// security-headers middleware overlays later).
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request, binding *config.ReverseAppBinding, user *UserIdentity) {
	app := binding.App()

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = binding.ForwardScheme
			req.URL.Host = binding.ForwardAuthority
			req.Host = binding.ForwardAuthority

			if binding.ForwardHasExplicitPort() {
				req.Header.Set("X-Forwarded-Host", binding.AppAuthority)
				req.Header.Set("X-Forwarded-Proto", binding.AppScheme)
			}

			if app.Login != "" && app.Password != "" {
				creds := base64.StdEncoding.EncodeToString([]byte(app.Login + ":" + app.Password))
				req.Header.Set("Authorization", "Basic "+creds)
			}

			if app.ForwardUserMail && user != nil {
				req.Header.Set(AuthenticatedUserMailHeader, user.Email)
			}
		},
		ErrorHandler: f.errorHandler,
	}

	rp.Transport = f.client.Transport
	rp.ServeHTTP(w, r)
}

// errorHandler maps upstream dial/timeout failures to 502/504.
func (f *Forwarder) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		f.logger.Debug("upstream timeout", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "upstream timed out", http.StatusGatewayTimeout)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		http.Error(w, "upstream timed out", http.StatusGatewayTimeout)
		return
	}
	f.logger.Debug("upstream unreachable", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "upstream unreachable", http.StatusBadGateway)
}

// ParseUpstream is a small helper for callers that need to validate a
// target URL the same way binding construction does.
func ParseUpstream(target string) (*url.URL, error) {
	return url.Parse(target)
}
