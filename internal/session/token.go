// Package session implements the Atrium session/token subsystem: encrypted
// cookie encoding, the four credential-presentation modes, expiration, and
// XSRF protection.
package session

import (
	"encoding/json"
	"time"

	"github.com/nicolaspernoud/atrium/internal/config"
	"github.com/nicolaspernoud/atrium/internal/gwerrors"
)

// AuthCookieName is the cookie carrying an encrypted UserToken.
const AuthCookieName = "ATRIUM_AUTH"

// ShareCookieName is the cookie carrying an encrypted, share-scoped
// UserToken, minted by POST /api/user/share.
const ShareCookieName = "SHARE_TOKEN"

// RedirectCookieName is the short-lived cookie the proxy pipeline sets so
// the login page can send the user back to where they came from.
const RedirectCookieName = "ATRIUM_REDIRECT"

// XSRFHeaderName is the header a browser must echo back for the strict,
// cookie-based extraction mode to succeed.
const XSRFHeaderName = "XSRF-TOKEN"

// AdminsRole is the role name that marks a UserToken as an admin token.
const AdminsRole = "ADMINS"

// Share scopes a UserToken to a single (hostname, path) pair, for
// link-sharing.
type Share struct {
	Hostname     string `json:"hostname"`
	Path         string `json:"path"`
	ShareWith    string `json:"share_with,omitempty"`
	ShareForDays int64  `json:"share_for_days,omitempty"`
}

// UserToken is the session payload serialized into an encrypted cookie.
type UserToken struct {
	Login     string           `json:"login"`
	Roles     []string         `json:"roles"`
	XSRFToken string           `json:"xsrf_token"`
	Share     *Share           `json:"share,omitempty"`
	Expires   int64            `json:"expires"`
	Info      *config.UserInfo `json:"info,omitempty"`
}

// IsAdmin reports whether the token carries the ADMINS role.
func (t *UserToken) IsAdmin() bool {
	for _, r := range t.Roles {
		if r == AdminsRole {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the token shares at least one role with roles.
func (t *UserToken) HasAnyRole(roles []string) bool {
	for _, have := range t.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// checkExpires returns gwerrors.ErrAuthTokenExpired when t has passed its
// expiry.
func (t *UserToken) checkExpires(now time.Time) error {
	if now.Unix() > t.Expires {
		return gwerrors.ErrAuthTokenExpired
	}
	return nil
}

// NewToken builds a fresh UserToken for user, good for durationDays days
// from now, with a new random xsrf token (the session's NONE -> ACTIVE
// transition).
func NewToken(login string, roles []string, info *config.UserInfo, durationDays int64, now time.Time) (*UserToken, error) {
	xsrf, err := config.RandomString(16)
	if err != nil {
		return nil, err
	}
	return &UserToken{
		Login:     login,
		Roles:     append([]string(nil), roles...),
		XSRFToken: xsrf,
		Expires:   now.Add(time.Duration(durationDays) * 24 * time.Hour).Unix(),
		Info:      info,
	}, nil
}

// NewShareToken mints a token scoped to a single (hostname, path), valid
// for shareForDays days (default 1 when <= 0).
func NewShareToken(login string, roles []string, hostname, path, shareWith string, shareForDays int64, now time.Time) (*UserToken, error) {
	if shareForDays <= 0 {
		shareForDays = 1
	}
	tok, err := NewToken(login, roles, nil, shareForDays, now)
	if err != nil {
		return nil, err
	}
	tok.Share = &Share{Hostname: hostname, Path: path, ShareWith: shareWith, ShareForDays: shareForDays}
	return tok, nil
}

func marshalToken(t *UserToken) ([]byte, error) {
	return json.Marshal(t)
}

func unmarshalToken(data []byte) (*UserToken, error) {
	var t UserToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, gwerrors.ErrAuthCookieUndecryptable
	}
	return &t, nil
}
