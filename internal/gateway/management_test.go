package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nicolaspernoud/atrium/internal/config"
	"github.com/nicolaspernoud/atrium/internal/session"
)

func newTestManagement(t *testing.T, cfg *config.Config) (*ManagementRouter, *config.Store, *session.Box) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atrium.yaml")
	store, err := config.NewStore(path, cfg)
	require.NoError(t, err)
	box, err := session.NewBox(cfg.CookieKey)
	require.NoError(t, err)
	return NewManagementRouter(store, box, zap.NewNop(), NewMetrics(), t.TempDir()), store, box
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := session.HashPassword("correct horse")
	require.NoError(t, err)
	return &config.Config{
		Hostname:  "atrium.io",
		Domain:    "atrium.io",
		TlsMode:   config.TlsModeNo,
		CookieKey: "a sufficiently long cookie key",
		Users: []config.User{
			{Login: "alice", Password: hash, Roles: []string{"ADMINS"}},
		},
	}
}

func TestLocalAuthRejectsWrongPassword(t *testing.T) {
	mgmt, _, _ := newTestManagement(t, baseConfig(t))

	body, _ := json.Marshal(map[string]string{"login": "alice", "password": "wrong"})
	r := httptest.NewRequest(http.MethodPost, "/auth/local", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestLocalAuthSucceedsAndSetsCookie(t *testing.T) {
	mgmt, _, _ := newTestManagement(t, baseConfig(t))

	body, _ := json.Marshal(map[string]string{"login": "alice", "password": "correct horse"})
	r := httptest.NewRequest(http.MethodPost, "/auth/local", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp authResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.IsAdmin)
	assert.NotEmpty(t, resp.XSRFToken)

	var authCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.AuthCookieName {
			authCookie = c
		}
	}
	require.NotNil(t, authCookie)
	assert.True(t, authCookie.HttpOnly)
}

func TestGetAppsRequiresAdmin(t *testing.T) {
	mgmt, _, _ := newTestManagement(t, baseConfig(t))

	r := httptest.NewRequest(http.MethodGet, "/api/admin/apps", nil)
	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func authedAdminRequest(t *testing.T, box *session.Box, method, target string, body []byte) *http.Request {
	t.Helper()
	token, err := session.NewToken("alice", []string{"ADMINS"}, nil, 1, time.Now())
	require.NoError(t, err)
	encoded, err := box.EncryptToken(token)
	require.NoError(t, err)

	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.AddCookie(&http.Cookie{Name: session.AuthCookieName, Value: encoded})
	r.Header.Set(session.XSRFHeaderName, token.XSRFToken)
	return r
}

func TestAddAppThenGetAppsRoundtrips(t *testing.T) {
	cfg := baseConfig(t)
	mgmt, _, box := newTestManagement(t, cfg)

	body, _ := json.Marshal(config.App{ID: 1, Name: "files", Host: "files", Target: "http://127.0.0.1:9000"})
	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, authedAdminRequest(t, box, http.MethodPost, "/api/admin/apps", body))
	require.Equal(t, http.StatusCreated, w.Code)

	w2 := httptest.NewRecorder()
	mgmt.ServeHTTP(w2, authedAdminRequest(t, box, http.MethodGet, "/api/admin/apps", nil))
	require.Equal(t, http.StatusOK, w2.Code)

	var apps []config.App
	require.NoError(t, json.NewDecoder(w2.Body).Decode(&apps))
	require.Len(t, apps, 1)
	assert.Equal(t, "files", apps[0].Name)
	assert.NotEmpty(t, w2.Header().Get("Config-Hash"))
}

func TestGetAppsStaysSortedByIDAfterOutOfOrderAdds(t *testing.T) {
	cfg := baseConfig(t)
	mgmt, _, box := newTestManagement(t, cfg)

	for _, id := range []int{5, 2, 8, 1} {
		body, _ := json.Marshal(config.App{ID: id, Name: "app", Host: "app", Target: "http://127.0.0.1:9000"})
		w := httptest.NewRecorder()
		mgmt.ServeHTTP(w, authedAdminRequest(t, box, http.MethodPost, "/api/admin/apps", body))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, authedAdminRequest(t, box, http.MethodGet, "/api/admin/apps", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var apps []config.App
	require.NoError(t, json.NewDecoder(w.Body).Decode(&apps))
	require.Len(t, apps, 4)

	ids := make([]int, len(apps))
	for i, a := range apps {
		ids[i] = a.ID
	}
	assert.Equal(t, []int{1, 2, 5, 8}, ids)
}

func TestShareCookieMaxAgeMatchesDefaultedTokenLifetime(t *testing.T) {
	cfg := baseConfig(t)
	mgmt, _, box := newTestManagement(t, cfg)

	token, err := session.NewToken("alice", []string{"ADMINS"}, nil, 1, time.Now())
	require.NoError(t, err)
	encoded, err := box.EncryptToken(token)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"hostname": "files.atrium.io", "path": "/public/x.txt"})
	r := httptest.NewRequest(http.MethodPost, "/api/user/share", bytes.NewReader(body))
	r.AddCookie(&http.Cookie{Name: session.AuthCookieName, Value: encoded})
	r.Header.Set(session.XSRFHeaderName, token.XSRFToken)

	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var shareCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.ShareCookieName {
			shareCookie = c
		}
	}
	require.NotNil(t, shareCookie)
	assert.Equal(t, 86400, shareCookie.MaxAge, "omitted share_for_days defaults to 1 day on the token; the cookie must carry that same lifetime, not 0")
}

func TestAddUserWithoutPasswordIsRejected(t *testing.T) {
	cfg := baseConfig(t)
	mgmt, _, box := newTestManagement(t, cfg)

	body, _ := json.Marshal(config.User{Login: "newbie", Roles: []string{"USERS"}})
	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, authedAdminRequest(t, box, http.MethodPost, "/api/admin/users", body))

	assert.Equal(t, http.StatusNotAcceptable, w.Code)
}

func TestGetUsersRedactsPasswords(t *testing.T) {
	cfg := baseConfig(t)
	mgmt, _, box := newTestManagement(t, cfg)

	w := httptest.NewRecorder()
	mgmt.ServeHTTP(w, authedAdminRequest(t, box, http.MethodGet, "/api/admin/users", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var users []config.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&users))
	require.Len(t, users, 1)
	assert.Equal(t, config.Redacted, users[0].Password)
}
