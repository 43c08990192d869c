package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nicolaspernoud/atrium/internal/config"
	"github.com/nicolaspernoud/atrium/internal/gwerrors"
	"github.com/nicolaspernoud/atrium/internal/session"
)

// ManagementRouter serves every route reachable on the bare management
// hostname: login, whoami/system_info/share, admin CRUD, and the
// static-asset fallback.
type ManagementRouter struct {
	store     *config.Store
	box       *session.Box
	logger    *zap.Logger
	metrics   *Metrics
	startedAt time.Time
	mux       chi.Router
}

// NewManagementRouter wires the chi routes over store, using box to
// encrypt/decrypt session cookies and webDir as the static-asset fallback
// root.
func NewManagementRouter(store *config.Store, box *session.Box, logger *zap.Logger, metrics *Metrics, webDir string) *ManagementRouter {
	m := &ManagementRouter{store: store, box: box, logger: logger, metrics: metrics, startedAt: time.Now()}

	r := chi.NewRouter()
	r.Post("/auth/local", m.localAuth)
	r.Get("/api/user/whoami", m.whoami)
	r.Get("/api/user/system_info", m.systemInfo)
	r.Post("/api/user/share", m.share)
	r.Get("/api/admin/apps", m.getApps)
	r.Post("/api/admin/apps", m.addApp)
	r.Delete("/api/admin/apps/{id}", m.deleteApp)
	r.Get("/api/admin/users", m.getUsers)
	r.Post("/api/admin/users", m.addUser)
	r.Delete("/api/admin/users/{login}", m.deleteUser)
	r.Get("/api/admin/metrics", m.adminMetrics)

	fileServer := http.FileServer(http.Dir(webDir))
	r.NotFound(fileServer.ServeHTTP)

	m.mux = r
	return m
}

func (m *ManagementRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

// userLookup adapts the current config's user table into the callback
// session.ExtractStrict's basic-auth fallback needs.
func (m *ManagementRouter) userLookup(cfg *config.Config) session.UserLookup {
	return func(login string) (password string, roles []string, ok bool) {
		for _, u := range cfg.Users {
			if u.Login == login {
				return u.Password, u.Roles, true
			}
		}
		return "", nil, false
	}
}

func (m *ManagementRouter) requireUser(r *http.Request) (*session.UserToken, error) {
	cfg, _ := m.store.Current()
	return session.ExtractStrict(r, m.box, m.userLookup(cfg), cfg.SessionDurationDays(), time.Now())
}

func (m *ManagementRouter) requireAdmin(r *http.Request) (*session.UserToken, error) {
	user, err := m.requireUser(r)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, gwerrors.ErrNotAdmin
	}
	return user, nil
}

type localAuthRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authResponse struct {
	IsAdmin   bool   `json:"is_admin"`
	XSRFToken string `json:"xsrf_token"`
}

// localAuth implements POST /auth/local: verify the presented password
// against the user's stored bcrypt hash, and on success issue a fresh
// session cookie.
func (m *ManagementRouter) localAuth(w http.ResponseWriter, r *http.Request) {
	var payload localAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, _ := m.store.Current()
	var found *config.User
	for i := range cfg.Users {
		if cfg.Users[i].Login == payload.Login {
			found = &cfg.Users[i]
			break
		}
	}
	if found == nil || !session.VerifyPassword(found.Password, payload.Password) {
		gwerrors.WriteHTTP(w, gwerrors.ErrInvalidCredentials)
		return
	}

	token, err := session.NewToken(found.Login, found.Roles, found.Info, cfg.SessionDurationDays(), time.Now())
	if err != nil {
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}

	if err := m.setAuthCookie(w, cfg, token); err != nil {
		http.Error(w, "could not encode session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{IsAdmin: token.IsAdmin(), XSRFToken: token.XSRFToken})
}

// setAuthCookie encrypts token and sets it as ATRIUM_AUTH, with the
// attributes a session cookie must carry.
func (m *ManagementRouter) setAuthCookie(w http.ResponseWriter, cfg *config.Config, token *session.UserToken) error {
	encoded, err := m.box.EncryptToken(token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.AuthCookieName,
		Value:    encoded,
		Domain:   cfg.Domain,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.TlsMode.IsSecure(),
		HttpOnly: true,
		MaxAge:   int(cfg.SessionDurationDays() * 86400),
	})
	return nil
}

func (m *ManagementRouter) whoami(w http.ResponseWriter, r *http.Request) {
	token, err := m.requireUser(r)
	if err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	user := config.User{Login: token.Login, Password: config.Redacted, Roles: token.Roles, Info: token.Info}
	writeJSON(w, http.StatusOK, user)
}

type systemInfoResponse struct {
	GoVersion string `json:"go_version"`
	UptimeS   int64  `json:"uptime_seconds"`
	AppCount  int    `json:"app_count"`
}

// systemInfo implements GET /api/user/system_info minimally; full system
// telemetry is out of scope.
func (m *ManagementRouter) systemInfo(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireUser(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	cfg, _ := m.store.Current()
	writeJSON(w, http.StatusOK, systemInfoResponse{
		GoVersion: runtime.Version(),
		UptimeS:   int64(time.Since(m.startedAt).Seconds()),
		AppCount:  len(cfg.Apps),
	})
}

type shareRequest struct {
	Hostname     string `json:"hostname"`
	Path         string `json:"path"`
	ShareWith    string `json:"share_with,omitempty"`
	ShareForDays int64  `json:"share_for_days,omitempty"`
}

type shareResponse struct {
	ShareToken string `json:"share_token"`
}

// share implements POST /api/user/share, the issuance side of share-token
// consumption.
func (m *ManagementRouter) share(w http.ResponseWriter, r *http.Request) {
	user, err := m.requireUser(r)
	if err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}

	var payload shareRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Hostname == "" || payload.Path == "" {
		http.Error(w, "hostname and path are required", http.StatusBadRequest)
		return
	}

	shareToken, err := session.NewShareToken(user.Login, user.Roles, payload.Hostname, payload.Path, payload.ShareWith, payload.ShareForDays, time.Now())
	if err != nil {
		http.Error(w, "could not create share token", http.StatusInternalServerError)
		return
	}

	cfg, _ := m.store.Current()
	encoded, err := m.box.EncryptToken(shareToken)
	if err != nil {
		http.Error(w, "could not encode share token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.ShareCookieName,
		Value:    encoded,
		Domain:   cfg.Domain,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.TlsMode.IsSecure(),
		HttpOnly: true,
		MaxAge:   int(shareToken.Share.ShareForDays * 86400),
	})

	writeJSON(w, http.StatusOK, shareResponse{ShareToken: encoded})
}

func (m *ManagementRouter) getApps(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireAdmin(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	cfg, _ := m.store.Current()
	w.Header().Set("Config-Hash", strconv.FormatUint(config.ConfigHash(cfg.Apps), 16))
	writeJSON(w, http.StatusOK, cfg.Apps)
}

func (m *ManagementRouter) addApp(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireAdmin(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	var payload config.App
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := m.store.Mutate(func(cfg *config.Config) (*config.Config, error) {
		next := *cfg
		next.Apps = append([]config.App(nil), cfg.Apps...)
		found := false
		for i := range next.Apps {
			if next.Apps[i].ID == payload.ID {
				next.Apps[i] = payload
				found = true
				break
			}
		}
		if !found {
			next.Apps = append(next.Apps, payload)
		}
		return &next, nil
	})
	if err != nil {
		gwerrors.WriteHTTP(w, gwerrors.ErrPersistenceFailed)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte("app created or updated successfully"))
}

func (m *ManagementRouter) deleteApp(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireAdmin(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid app id", http.StatusBadRequest)
		return
	}

	notFound := false
	mutateErr := m.store.Mutate(func(cfg *config.Config) (*config.Config, error) {
		next := *cfg
		next.Apps = append([]config.App(nil), cfg.Apps...)
		idx := -1
		for i := range next.Apps {
			if next.Apps[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			notFound = true
			return nil, gwerrors.ErrAppNotFound
		}
		next.Apps = append(next.Apps[:idx], next.Apps[idx+1:]...)
		return &next, nil
	})
	if notFound {
		gwerrors.WriteHTTP(w, gwerrors.ErrAppNotFound)
		return
	}
	if mutateErr != nil {
		gwerrors.WriteHTTP(w, gwerrors.ErrPersistenceFailed)
		return
	}
	w.Write([]byte("app deleted successfully"))
}

func (m *ManagementRouter) getUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireAdmin(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	cfg, _ := m.store.Current()
	redacted := make([]config.User, len(cfg.Users))
	for i, u := range cfg.Users {
		redacted[i] = u.WithRedactedPassword()
	}
	writeJSON(w, http.StatusOK, redacted)
}

func (m *ManagementRouter) addUser(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireAdmin(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	var payload config.User
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mutateErr := m.store.Mutate(func(cfg *config.Config) (*config.Config, error) {
		next := *cfg
		next.Users = append([]config.User(nil), cfg.Users...)

		idx := -1
		for i := range next.Users {
			if next.Users[i].Login == payload.Login {
				idx = i
				break
			}
		}

		if idx >= 0 {
			if payload.Password == "" {
				payload.Password = next.Users[idx].Password
			} else {
				hash, err := session.HashPassword(payload.Password)
				if err != nil {
					return nil, err
				}
				payload.Password = hash
			}
			next.Users[idx] = payload
			return &next, nil
		}

		if payload.Password == "" {
			return nil, gwerrors.ErrPasswordRequired
		}
		hash, err := session.HashPassword(payload.Password)
		if err != nil {
			return nil, err
		}
		payload.Password = hash
		next.Users = append(next.Users, payload)
		return &next, nil
	})

	if errors.Is(mutateErr, gwerrors.ErrPasswordRequired) {
		gwerrors.WriteHTTP(w, gwerrors.ErrPasswordRequired)
		return
	}
	if mutateErr != nil {
		gwerrors.WriteHTTP(w, gwerrors.ErrPersistenceFailed)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte("user created or updated successfully"))
}

func (m *ManagementRouter) deleteUser(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireAdmin(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	login := chi.URLParam(r, "login")

	notFound := false
	mutateErr := m.store.Mutate(func(cfg *config.Config) (*config.Config, error) {
		next := *cfg
		next.Users = append([]config.User(nil), cfg.Users...)
		idx := -1
		for i := range next.Users {
			if next.Users[i].Login == login {
				idx = i
				break
			}
		}
		if idx == -1 {
			notFound = true
			return nil, gwerrors.ErrUserNotFound
		}
		next.Users = append(next.Users[:idx], next.Users[idx+1:]...)
		return &next, nil
	})
	if notFound {
		gwerrors.WriteHTTP(w, gwerrors.ErrUserNotFound)
		return
	}
	if mutateErr != nil {
		gwerrors.WriteHTTP(w, gwerrors.ErrPersistenceFailed)
		return
	}
	w.Write([]byte("user deleted successfully"))
}

func (m *ManagementRouter) adminMetrics(w http.ResponseWriter, r *http.Request) {
	if _, err := m.requireAdmin(r); err != nil {
		gwerrors.WriteHTTP(w, err)
		return
	}
	promhttp.HandlerFor(m.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
