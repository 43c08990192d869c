package session

import (
	"net/http"
	"time"

	"github.com/nicolaspernoud/atrium/internal/gwerrors"
)

// Outcome is the three-valued result of a single credential extractor, so
// a chain can be walked without exceptions: the first non-NotPresent
// outcome wins.
type Outcome int

const (
	Found Outcome = iota
	NotPresent
	Rejected
)

// Extractor pulls a UserToken out of one credential-presentation mode.
type Extractor func(r *http.Request, box *Box, now time.Time) (*UserToken, Outcome, error)

// UserLookup resolves a local login to its configured user, used by the
// basic-auth fallback path.
type UserLookup func(login string) (password string, roles []string, ok bool)

// cookieXSRFExtractor is the primary API credential mode: ATRIUM_AUTH
// cookie present, with the XSRF-TOKEN header required to match.
func cookieXSRFExtractor(r *http.Request, box *Box, now time.Time) (*UserToken, Outcome, error) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return nil, NotPresent, nil
	}

	token, err := box.DecryptToken(cookie.Value)
	if err != nil {
		return nil, Rejected, err
	}
	if err := token.checkExpires(now); err != nil {
		return nil, Rejected, err
	}
	if r.Header.Get(XSRFHeaderName) != token.XSRFToken {
		return nil, Rejected, gwerrors.ErrXsrfMismatch
	}
	return token, Found, nil
}

// cookieOnlyExtractor is the relaxed mode used only by the proxy/static
// pipelines (the "XSRF variant"): no XSRF check, because forwarded
// browser calls to backend apps never carry the header.
func cookieOnlyExtractor(r *http.Request, box *Box, now time.Time) (*UserToken, Outcome, error) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return nil, NotPresent, nil
	}
	token, err := box.DecryptToken(cookie.Value)
	if err != nil {
		return nil, Rejected, err
	}
	if err := token.checkExpires(now); err != nil {
		return nil, Rejected, err
	}
	return token, Found, nil
}

// queryTokenExtractor reads ?token=<ciphertext>, which may carry either an
// ATRIUM_AUTH or a SHARE_TOKEN payload. The encryption scheme does not
// distinguish cookie names (both are sealed by the same Box), so a single
// decryption attempt covers both; there is no second attempt.
func queryTokenExtractor(r *http.Request, box *Box, now time.Time) (*UserToken, Outcome, error) {
	value := r.URL.Query().Get("token")
	if value == "" {
		return nil, NotPresent, nil
	}

	token, err := box.DecryptToken(value)
	if err != nil {
		return nil, Rejected, err
	}
	if err := token.checkExpires(now); err != nil {
		return nil, Rejected, err
	}
	return token, Found, nil
}

// basicAuthExtractor treats the HTTP Basic password as an encrypted
// cookie value first; if that fails to decrypt, it falls back to
// authenticating username+password against the local user table. That
// fallback requires a verified bcrypt password — it no longer grants a
// session merely because the username exists.
func basicAuthExtractor(lookup UserLookup, sessionDurationDays int64) Extractor {
	return func(r *http.Request, box *Box, now time.Time) (*UserToken, Outcome, error) {
		username, password, ok := r.BasicAuth()
		if !ok {
			return nil, NotPresent, nil
		}

		if token, err := box.DecryptToken(password); err == nil {
			if err := token.checkExpires(now); err != nil {
				return nil, Rejected, err
			}
			return token, Found, nil
		}

		hash, roles, found := lookup(username)
		if !found || !VerifyPassword(hash, password) {
			return nil, Rejected, gwerrors.ErrInvalidCredentials
		}
		token, err := NewToken(username, roles, nil, sessionDurationDays, now)
		if err != nil {
			return nil, Rejected, err
		}
		return token, Found, nil
	}
}

// ExtractStrict walks cookie+xsrf -> query -> basic-auth, in that order,
// returning the first Found token or the first Rejected error. It is used
// by the admin/user management API.
func ExtractStrict(r *http.Request, box *Box, lookup UserLookup, sessionDurationDays int64, now time.Time) (*UserToken, error) {
	chain := []Extractor{
		cookieXSRFExtractor,
		queryTokenExtractor,
		basicAuthExtractor(lookup, sessionDurationDays),
	}
	for _, extract := range chain {
		token, outcome, err := extract(r, box, now)
		switch outcome {
		case Found:
			return token, nil
		case Rejected:
			return nil, err
		case NotPresent:
			continue
		}
	}
	return nil, gwerrors.ErrAuthCookieMissing
}

// ExtractRelaxed is the cookie-only, XSRF-skipped mode used by the proxy
// and static pipelines.
func ExtractRelaxed(r *http.Request, box *Box, now time.Time) (*UserToken, error) {
	token, outcome, err := cookieOnlyExtractor(r, box, now)
	switch outcome {
	case Found:
		return token, nil
	case Rejected:
		return nil, err
	default:
		return nil, gwerrors.ErrAuthCookieMissing
	}
}
