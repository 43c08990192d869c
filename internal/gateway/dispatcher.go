package gateway

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicolaspernoud/atrium/internal/authz"
	"github.com/nicolaspernoud/atrium/internal/config"
	"github.com/nicolaspernoud/atrium/internal/proxy"
	"github.com/nicolaspernoud/atrium/internal/session"
	"github.com/nicolaspernoud/atrium/internal/staticsite"
)

// Router is the root http.Handler: host-resolve, then security-headers,
// then a three-way fan-out to the proxy, static, or management pipeline.
type Router struct {
	store      *config.Store
	box        *session.Box
	forwarder  *proxy.Forwarder
	management http.Handler
	metrics    *Metrics
	logger     *zap.Logger
}

// NewRouter wires the dispatcher over an already-built Store, Box,
// Forwarder and management sub-router.
func NewRouter(store *config.Store, box *session.Box, forwarder *proxy.Forwarder, management http.Handler, metrics *Metrics, logger *zap.Logger) *Router {
	return &Router{store: store, box: box, forwarder: forwarder, management: management, metrics: metrics, logger: logger}
}

// statusWriter captures the status code actually written so the metrics
// recorded at the end of ServeHTTP reflect what the client received, not
// an assumed 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush lets the wrapped writer still satisfy http.Flusher, which
// httputil.ReverseProxy relies on to stream long-lived upstream responses.
func (s *statusWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	withRequestID(w)

	if r.Host == "" {
		http.Error(w, "missing host", http.StatusNotFound)
		rt.metrics.Observe("unknown", http.StatusNotFound, start)
		return
	}

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	cfg, table := rt.store.Current()
	binding, ok := table.Resolve(r.Host)
	if !ok {
		rt.management.ServeHTTP(sw, r)
		rt.metrics.Observe("management", sw.status, start)
		return
	}

	SecurityHeaders(binding, cfg.TlsMode.IsSecure(), sw)

	switch b := binding.(type) {
	case *config.ReverseAppBinding:
		rt.serveProxy(sw, r, cfg, b, start)
	case *config.StaticAppBinding:
		rt.serveStatic(sw, r, cfg, b, start)
	default:
		http.Error(sw, "unroutable binding", http.StatusInternalServerError)
		rt.metrics.Observe("unknown", http.StatusInternalServerError, start)
	}
}

// toSubject adapts a decrypted session token into the minimal view authz
// needs, keeping authz free of a dependency on the session package.
func toSubject(token *session.UserToken) *authz.Subject {
	subject := &authz.Subject{Roles: token.Roles}
	if token.Share != nil {
		subject.Share = &authz.ShareScope{Hostname: token.Share.Hostname, Path: token.Share.Path}
	}
	return subject
}

func (rt *Router) serveProxy(w *statusWriter, r *http.Request, cfg *config.Config, binding *config.ReverseAppBinding, start time.Time) {
	token, _ := session.ExtractRelaxed(r, rt.box, time.Now())

	var subject *authz.Subject
	if token != nil {
		subject = toSubject(token)
	}

	if decision := authz.Check(binding, subject, r.Host, r.URL.Path); decision != nil {
		rt.respondDecision(w, r, cfg, decision)
		rt.metrics.Observe("proxy", w.status, start)
		return
	}

	var user *proxy.UserIdentity
	if binding.App().ForwardUserMail && token != nil && token.Info != nil {
		user = &proxy.UserIdentity{Email: token.Info.Email}
	}

	rt.forwarder.ServeHTTP(w, r, binding, user)
	rt.metrics.Observe("proxy", w.status, start)
}

func (rt *Router) serveStatic(w *statusWriter, r *http.Request, cfg *config.Config, binding *config.StaticAppBinding, start time.Time) {
	token, _ := session.ExtractRelaxed(r, rt.box, time.Now())

	var subject *authz.Subject
	if token != nil {
		subject = toSubject(token)
	}

	if decision := authz.Check(binding, subject, r.Host, r.URL.Path); decision != nil {
		rt.respondDecision(w, r, cfg, decision)
		rt.metrics.Observe("static", w.status, start)
		return
	}

	staticsite.NewHandler(binding.App().Target).ServeHTTP(w, r)
	rt.metrics.Observe("static", w.status, start)
}

// respondDecision converts an authz.Decision into the on-wire response: a
// browser-navigational 401 becomes a 302 to the login page with a
// short-lived return-path cookie; everything else is written as-is.
func (rt *Router) respondDecision(w http.ResponseWriter, r *http.Request, cfg *config.Config, d *authz.Decision) {
	if d.Status == http.StatusUnauthorized && isBrowserNavigation(r) {
		http.SetCookie(w, &http.Cookie{
			Name:     session.RedirectCookieName,
			Value:    cfg.Scheme() + "://" + r.Host,
			Domain:   cfg.Domain,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
			MaxAge:   60,
		})
		http.Redirect(w, r, cfg.FullDomain(), http.StatusFound)
		return
	}
	if d.WWWAuthenticate != "" {
		w.Header().Set("WWW-Authenticate", d.WWWAuthenticate)
	}
	http.Error(w, http.StatusText(d.Status), d.Status)
}

// isBrowserNavigation approximates "this request came from a browser
// address bar/link click, not an XHR/fetch call".
func isBrowserNavigation(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
