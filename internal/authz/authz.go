// Package authz implements the authorization evaluator: given a resolved
// service, an optional authenticated user, and the requested host+path,
// decide allow / forbid / challenge.
package authz

import "github.com/nicolaspernoud/atrium/internal/config"

// Subject is the minimal view of a session the evaluator needs, so this
// package doesn't have to import session (which in turn would need authz
// for nothing) — kept as a small local interface-shaped struct instead.
type Subject struct {
	Roles []string
	Share *ShareScope
}

// ShareScope restricts a Subject to a single (hostname, path) pair.
type ShareScope struct {
	Hostname string
	Path     string
}

// Decision is the short-circuit response the caller must send instead of
// proceeding. A nil Decision means "pass".
type Decision struct {
	Status int
	// WWWAuthenticate, when non-empty, is the WWW-Authenticate header
	// value to attach to a 401.
	WWWAuthenticate string
}

// Check implements the five ordered authorization rules.
func Check(binding config.ServiceBinding, user *Subject, host, path string) *Decision {
	if !binding.Secured() {
		return nil
	}

	if user == nil {
		return &Decision{Status: 401, WWWAuthenticate: `Basic realm="server"`}
	}

	if !hasAnyRole(user.Roles, binding.Roles()) {
		return &Decision{Status: 403}
	}

	if user.Share != nil && (user.Share.Hostname != host || user.Share.Path != path) {
		return &Decision{Status: 403}
	}

	return nil
}

// hasAnyRole reports whether have and want intersect. An empty want set
// (service.roles is empty) never intersects: an empty-roles secured
// service is effectively closed.
func hasAnyRole(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
