package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ServiceBinding is the polymorphic result of resolving a host to a
// configured service: either a StaticAppBinding or a ReverseAppBinding.
// It is a sealed interface (the unexported method prevents other packages
// from adding variants), modeling the {StaticApp, ReverseApp} tagged union
// as an interface with two implementations rather than inheritance.
type ServiceBinding interface {
	isServiceBinding()

	// App returns the underlying configured app.
	App() *App
	Roles() []string
	Secured() bool
	InjectSecurityHeaders() bool
}

// StaticAppBinding resolves to a static directory served from App.Target.
type StaticAppBinding struct {
	app App
}

// NewStaticAppBinding wraps app as a StaticAppBinding.
func NewStaticAppBinding(app App) *StaticAppBinding {
	return &StaticAppBinding{app: app}
}

func (b *StaticAppBinding) isServiceBinding()          {}
func (b *StaticAppBinding) App() *App                  { return &b.app }
func (b *StaticAppBinding) Roles() []string            { return b.app.Roles }
func (b *StaticAppBinding) Secured() bool              { return b.app.Secured }
func (b *StaticAppBinding) InjectSecurityHeaders() bool { return b.app.InjectSecurityHeaders }

// ReverseAppBinding is a computed view of an App with pre-parsed scheme and
// authority for both the public endpoint and the forwarded upstream
// endpoint, immutable after construction.
type ReverseAppBinding struct {
	app App

	AppScheme    string
	AppAuthority string

	ForwardScheme    string
	ForwardAuthority string
}

func (b *ReverseAppBinding) isServiceBinding()          {}
func (b *ReverseAppBinding) App() *App                  { return &b.app }
func (b *ReverseAppBinding) Roles() []string            { return b.app.Roles }
func (b *ReverseAppBinding) Secured() bool              { return b.app.Secured }
func (b *ReverseAppBinding) InjectSecurityHeaders() bool { return b.app.InjectSecurityHeaders }

// ForwardHasExplicitPort reports whether the upstream authority names a
// port, the heuristic used to decide this is an "internal" service that
// needs X-Forwarded-* headers.
func (b *ReverseAppBinding) ForwardHasExplicitPort() bool {
	_, _, err := net.SplitHostPort(b.ForwardAuthority)
	return err == nil
}

// NewReverseAppBinding builds an immutable ReverseAppBinding from an App,
// the gateway hostname, and the public port hint (nil when the endpoint is
// reached over bare HTTPS/HTTP). Construction fails loudly (a fatal
// startup error higher up) when the target cannot be parsed into
// scheme+authority.
func NewReverseAppBinding(app App, hostname string, port *int) (*ReverseAppBinding, error) {
	appScheme := "https"
	if port != nil {
		appScheme = "http"
	}

	appAuthority := app.Host
	if !strings.Contains(app.Host, hostname) {
		appAuthority = app.Host + "." + hostname
	}
	if port != nil {
		appAuthority = fmt.Sprintf("%s:%d", appAuthority, *port)
	}

	forwardScheme := "http"
	if strings.HasPrefix(app.Target, "https://") {
		forwardScheme = "https"
	}

	target, err := url.Parse(app.Target)
	if err != nil {
		return nil, fmt.Errorf("app %q: could not parse target %q: %w", app.Name, app.Target, err)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("app %q: target %q has no host", app.Name, app.Target)
	}

	return &ReverseAppBinding{
		app:              app,
		AppScheme:        appScheme,
		AppAuthority:     appAuthority,
		ForwardScheme:    forwardScheme,
		ForwardAuthority: target.Host,
	}, nil
}

// RoutingTable maps a fully-qualified hostname (lowercase, no port) to the
// ServiceBinding that serves it. The management hostname (Config.Hostname
// itself) is intentionally absent.
type RoutingTable map[string]ServiceBinding

// BuildRoutingTable filters the configured apps down to the ones that
// belong to this instance, then emits one entry per app slug plus one per
// declared subdomain.
func BuildRoutingTable(cfg *Config) (RoutingTable, error) {
	table := make(RoutingTable)
	port := cfg.PortHint()

	for _, app := range filteredApps(cfg.Apps, cfg.Hostname, cfg.Domain) {
		binding, err := bindApp(app, cfg.Hostname, port)
		if err != nil {
			return nil, err
		}

		table[app.slug()+"."+cfg.Hostname] = binding
		for _, sub := range app.Subdomains {
			table[sub+"."+app.slug()+"."+cfg.Hostname] = binding
		}
	}

	return table, nil
}

func bindApp(app App, hostname string, port *int) (ServiceBinding, error) {
	if !app.IsProxy {
		return NewStaticAppBinding(app), nil
	}
	return NewReverseAppBinding(app, hostname, port)
}

// Resolve is the host resolver: lowercase the Host header, strip any
// :port suffix, and look the result up in the table.
func (t RoutingTable) Resolve(hostHeader string) (ServiceBinding, bool) {
	host := strings.ToLower(hostHeader)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	binding, ok := t[host]
	return binding, ok
}
