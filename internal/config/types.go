// Package config holds the declarative configuration of an Atrium gateway:
// the App/User data model, the YAML loader, the routing-table materializer,
// and the atomically-swapped runtime snapshot (Store).
package config

import "strings"

// TlsMode selects how the gateway terminates (or doesn't terminate) TLS.
// The concrete ACME/termination machinery is out of scope here; only the
// three-state schema and IsSecure derivation are implemented.
type TlsMode string

const (
	TlsModeNo          TlsMode = "No"
	TlsModeBehindProxy TlsMode = "BehindProxy"
	TlsModeAuto        TlsMode = "Auto"
)

// IsSecure reports whether the public endpoint is reachable over HTTPS,
// whether Atrium terminates TLS itself (Auto) or sits behind something
// that does (BehindProxy).
func (m TlsMode) IsSecure() bool {
	return m == TlsModeBehindProxy || m == TlsModeAuto
}

// UserInfo carries the optional human-readable identity fields of a User,
// echoed back into the UserToken issued at login.
type UserInfo struct {
	Firstname string `json:"firstname,omitempty" yaml:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty" yaml:"lastname,omitempty"`
	Email     string `json:"email,omitempty" yaml:"email,omitempty"`
}

// User is a configured local account. Password is stored as a bcrypt hash;
// it is never written back to a client in plaintext (see Redacted).
type User struct {
	Login    string    `json:"login" yaml:"login"`
	Password string    `json:"password,omitempty" yaml:"password,omitempty"`
	Roles    []string  `json:"roles,omitempty" yaml:"roles,omitempty"`
	Info     *UserInfo `json:"info,omitempty" yaml:"info,omitempty"`
}

// Redacted is the sentinel value returned instead of a user's password
// hash on read paths such as whoami.
const Redacted = "REDACTED"

// WithRedactedPassword returns a copy of u with Password replaced by Redacted.
func (u User) WithRedactedPassword() User {
	u.Password = Redacted
	return u
}

// OnlyOfficeConfig carries OnlyOffice integration settings. Wiring the
// actual OnlyOffice JWT-signed document-editing protocol is out of scope;
// only the config schema is kept so a complete Config round trips through
// YAML without dropping fields the original deployment file may already
// contain.
type OnlyOfficeConfig struct {
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Server    string `json:"server" yaml:"server"`
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
}

// OpenIdConfig carries OpenID Connect client settings. As with
// OnlyOfficeConfig, only the schema is implemented; no OIDC flow runs.
type OpenIdConfig struct {
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	AuthURL      string `json:"auth_url" yaml:"auth_url"`
	TokenURL     string `json:"token_url" yaml:"token_url"`
	UserinfoURL  string `json:"userinfo_url" yaml:"userinfo_url"`
	AdminsGroup  string `json:"admins_group,omitempty" yaml:"admins_group,omitempty"`
}

// App is a configured backend service: either a reverse-proxy target
// (IsProxy true) or a static directory (IsProxy false).
type App struct {
	ID                    int      `json:"id" yaml:"id"`
	Name                  string   `json:"name" yaml:"name"`
	Icon                  string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color                 int      `json:"color,omitempty" yaml:"color,omitempty"`
	IsProxy               bool     `json:"is_proxy,omitempty" yaml:"is_proxy,omitempty"`
	Host                  string   `json:"host" yaml:"host"`
	Target                string   `json:"target" yaml:"target"`
	Secured               bool     `json:"secured,omitempty" yaml:"secured,omitempty"`
	Login                 string   `json:"login,omitempty" yaml:"login,omitempty"`
	Password              string   `json:"password,omitempty" yaml:"password,omitempty"`
	OpenPath              string   `json:"openpath,omitempty" yaml:"openpath,omitempty"`
	Roles                 []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	InjectSecurityHeaders bool     `json:"inject_security_headers,omitempty" yaml:"inject_security_headers,omitempty"`
	Subdomains            []string `json:"subdomains,omitempty" yaml:"subdomains,omitempty"`
	ForwardUserMail       bool     `json:"forward_user_mail,omitempty" yaml:"forward_user_mail,omitempty"`
}

// slug returns the part of Host up to (not including) the first dot, i.e.
// the label under which the app is keyed into the routing table.
func (a App) slug() string {
	host, _, _ := strings.Cut(a.Host, ".")
	return host
}

// Config is the whole gateway configuration as persisted in atrium.yaml.
type Config struct {
	Hostname            string  `yaml:"hostname"`
	Domain              string  `yaml:"domain,omitempty"`
	TlsMode             TlsMode `yaml:"tls_mode,omitempty"`
	LetsEncryptEmail    string  `yaml:"letsencrypt_email,omitempty"`
	CookieKey           string  `yaml:"cookie_key,omitempty"`
	LogToFile           bool    `yaml:"log_to_file,omitempty"`
	SessionDurationDaysRaw int64 `yaml:"session_duration_days,omitempty"`
	Apps                []App   `yaml:"apps,omitempty"`
	Users               []User  `yaml:"users,omitempty"`
}

// DefaultHostname is used when a config omits hostname entirely.
const DefaultHostname = "atrium.io"

// DefaultPort is the port Atrium listens on, and the port appended to
// public authorities whenever TLS is not terminated anywhere in front of it.
const DefaultPort = 8080

// SessionDurationDays returns the configured session length, defaulting to
// one day.
func (c *Config) SessionDurationDays() int64 {
	if c.SessionDurationDaysRaw <= 0 {
		return 1
	}
	return c.SessionDurationDaysRaw
}

// Scheme returns "https" when the public endpoint is secure, else "http".
func (c *Config) Scheme() string {
	if c.TlsMode.IsSecure() {
		return "https"
	}
	return "http"
}

// FullDomain is the management host's public base URL, used as the
// Location target when redirecting an unauthenticated browser to login.
func (c *Config) FullDomain() string {
	if c.TlsMode == TlsModeNo {
		return c.Scheme() + "://" + c.Domain + ":8080"
	}
	return c.Scheme() + "://" + c.Domain
}

// PortHint is the port that must be appended to a public authority, or nil
// when the endpoint is reached over standard HTTPS/HTTP without a port.
func (c *Config) PortHint() *int {
	if c.TlsMode.IsSecure() {
		return nil
	}
	port := DefaultPort
	return &port
}

// belongsToInstance implements the single-tenant/multi-tenant app filter:
// an app belongs to this instance when its host relates to the gateway's
// own hostname the way a single- or multi-tenant deployment expects.
func belongsToInstance(host, hostname, domain string) bool {
	if hostname == domain {
		return !strings.Contains(host, hostname)
	}
	return strings.Contains(host, hostname)
}

// filteredApps returns the subset of apps that belong to this gateway
// instance, in their original order.
func filteredApps(apps []App, hostname, domain string) []App {
	out := make([]App, 0, len(apps))
	for _, a := range apps {
		if belongsToInstance(a.Host, hostname, domain) {
			out = append(out, a)
		}
	}
	return out
}

// Domains lists every fully-qualified hostname this config is responsible
// for: the management hostname itself, then one entry per filtered app,
// then one entry per app subdomain. Its result always matches the key set
// of the routing table built from the same Config, plus the hostname
// itself.
func (c *Config) Domains() []string {
	domains := []string{c.Hostname}
	for _, a := range filteredApps(c.Apps, c.Hostname, c.Domain) {
		domains = append(domains, a.slug()+"."+c.Hostname)
	}
	for _, a := range filteredApps(c.Apps, c.Hostname, c.Domain) {
		for _, sub := range a.Subdomains {
			domains = append(domains, sub+"."+a.slug()+"."+c.Hostname)
		}
	}
	return domains
}
