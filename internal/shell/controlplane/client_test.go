package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "deploy@example.com"
	testPassword = "s3cret"
	testToken    = "tok-123"
)

// =============================================================================
// Fake tsuru API
// =============================================================================

type fakeTsuru struct {
	mu        sync.Mutex
	apps      map[string]*AppInfo
	env       map[string]map[string]string
	instances map[string][]string // service type -> instance names
	forms     map[string]map[string]string
	calls     []string
}

func newFakeTsuru(t *testing.T) (*fakeTsuru, *httptest.Server) {
	t.Helper()
	f := &fakeTsuru{
		apps:      map[string]*AppInfo{},
		env:       map[string]map[string]string{},
		instances: map[string][]string{},
		forms:     map[string]map[string]string{},
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Post("/1.0/users/{email}/tokens", f.login)
	r.Group(func(r chi.Router) {
		r.Use(f.auth)
		r.Get("/1.0/apps", f.listApps)
		r.Post("/1.0/apps", f.createApp)
		r.Get("/1.0/apps/{app}", f.appInfo)
		r.Post("/1.0/apps/{app}/env", f.setEnv)
		r.Put("/1.0/apps/{app}/units", f.addUnits)
		r.Get("/1.0/services/instances", f.listInstances)
		r.Post("/1.0/services/{service}/instances", f.addInstance)
		r.Put("/1.0/services/{service}/instances/{instance}/{app}", f.bind)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeTsuru) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		line := r.Method + " " + r.URL.Path
		f.calls = append(f.calls, line)
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.forms[line] = form
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fakeTsuru) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bearer "+testToken {
			http.Error(w, "you must provide a valid Authorization header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeTsuru) login(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "email") != testEmail {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if r.PostForm.Get("password") != testPassword {
		http.Error(w, "authentication failed, wrong password", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": testToken})
}

func (f *fakeTsuru) listApps(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.apps) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var out []map[string]string
	for name := range f.apps {
		out = append(out, map[string]string{"name": name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeTsuru) createApp(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := r.PostForm.Get("name")
	if _, ok := f.apps[name]; ok {
		http.Error(w, "tsuru failed to create the app \""+name+"\": there is already an app with this name", http.StatusConflict)
		return
	}
	f.apps[name] = &AppInfo{
		Name:       name,
		Platform:   r.PostForm.Get("platform"),
		TeamOwner:  r.PostForm.Get("teamOwner"),
		Repository: "git@git.example.com:" + name + ".git",
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "success"})
}

func (f *fakeTsuru) appInfo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[chi.URLParam(r, "app")]
	if !ok {
		http.Error(w, "App not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (f *fakeTsuru) setEnv(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Envs []envVar `json:"envs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	app := chi.URLParam(r, "app")
	if f.env[app] == nil {
		f.env[app] = map[string]string{}
	}
	for _, e := range body.Envs {
		f.env[app][e.Name] = e.Value
	}
	w.WriteHeader(http.StatusOK)
}

func (f *fakeTsuru) addUnits(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PostForm.Get("units"))
	if err != nil || n <= 0 {
		http.Error(w, "invalid number of units", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	app := f.apps[chi.URLParam(r, "app")]
	for i := 0; i < n; i++ {
		app.Units = append(app.Units, Unit{ID: fmt.Sprintf("unit-%d", len(app.Units)), Status: "started"})
	}
	w.WriteHeader(http.StatusOK)
}

func (f *fakeTsuru) listInstances(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for svc, names := range f.instances {
		out = append(out, map[string]any{"service": svc, "instances": names})
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeTsuru) addInstance(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc := chi.URLParam(r, "service")
	f.instances[svc] = append(f.instances[svc], r.PostForm.Get("name"))
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeTsuru) bind(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app := f.apps[chi.URLParam(r, "app")]
	app.ServiceBinds = append(app.ServiceBinds, ServiceBind{
		Service:  chi.URLParam(r, "service"),
		Instance: chi.URLParam(r, "instance"),
	})
	w.WriteHeader(http.StatusOK)
}

func (f *fakeTsuru) count(line string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == line {
			n++
		}
	}
	return n
}

func (f *fakeTsuru) form(line string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[line]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func login(t *testing.T, server *httptest.Server) Session {
	t.Helper()
	client := NewClient(Config{BaseURL: server.URL}, nil)
	session, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return session
}

// =============================================================================
// Client
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://prod-api.example.com/"}, nil)

	assert.Equal(t, "https://prod-api.example.com", client.baseURL)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.logger)
}

func TestClient_Login(t *testing.T) {
	_, server := newFakeTsuru(t)
	client := NewClient(Config{BaseURL: server.URL}, nil)

	session, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.NotNil(t, session)

	apps, err := session.ListApps(context.Background())
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestClient_Login_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		status   int
	}{
		{"wrong password", testEmail, "nope", http.StatusUnauthorized},
		{"unknown user", "someone@example.com", testPassword, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, server := newFakeTsuru(t)
			client := NewClient(Config{BaseURL: server.URL}, nil)

			session, err := client.Login(context.Background(), tt.email, tt.password)
			require.Error(t, err)
			assert.Nil(t, session)
			assert.ErrorIs(t, err, domain.ErrAuthentication)
			assert.NotErrorIs(t, err, domain.ErrControlPlane)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Len(t, f.calls, 1)
		})
	}
}

func TestClient_Login_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database is down", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}, nil).Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrControlPlane)
	assert.NotErrorIs(t, err, domain.ErrAuthentication)
	assert.Contains(t, err.Error(), "database is down")
}

func TestClient_Login_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(Config{BaseURL: url}, nil).Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrControlPlane)
}

func TestClient_Login_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}, nil).Login(context.Background(), testEmail, testPassword)
	assert.ErrorIs(t, err, domain.ErrControlPlane)
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := client.Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrControlPlane)
}

func TestClient_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}, nil).Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrControlPlane)
	assert.Contains(t, err.Error(), "decode response")
}

// =============================================================================
// Session
// =============================================================================

func TestSession_CreateApp(t *testing.T) {
	f, server := newFakeTsuru(t)
	session := login(t, server)
	ctx := context.Background()

	require.NoError(t, session.CreateApp(ctx, "web", "python", "ops"))

	form := f.form("POST /1.0/apps")
	assert.Equal(t, "web", form["name"])
	assert.Equal(t, "python", form["platform"])
	assert.Equal(t, "ops", form["teamOwner"])

	apps, err := session.ListApps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, apps)
}

func TestSession_CreateApp_NoTeam(t *testing.T) {
	f, server := newFakeTsuru(t)
	session := login(t, server)

	require.NoError(t, session.CreateApp(context.Background(), "web", "go", ""))
	_, hasTeam := f.form("POST /1.0/apps")["teamOwner"]
	assert.False(t, hasTeam)
}

func TestSession_CreateApp_Conflict(t *testing.T) {
	_, server := newFakeTsuru(t)
	session := login(t, server)
	ctx := context.Background()

	require.NoError(t, session.CreateApp(ctx, "web", "go", ""))
	err := session.CreateApp(ctx, "web", "go", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrControlPlane)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "CreateApp", apiErr.Op)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already an app")
}

func TestSession_SetEnv_Overwrites(t *testing.T) {
	f, server := newFakeTsuru(t)
	session := login(t, server)
	ctx := context.Background()
	require.NoError(t, session.CreateApp(ctx, "web", "go", ""))

	require.NoError(t, session.SetEnv(ctx, "web", "A", "1"))
	require.NoError(t, session.SetEnv(ctx, "web", "B", "2"))
	require.NoError(t, session.SetEnv(ctx, "web", "A", "3"))

	assert.Equal(t, map[string]string{"A": "3", "B": "2"}, f.env["web"])
}

func TestSession_ServiceInstances(t *testing.T) {
	f, server := newFakeTsuru(t)
	session := login(t, server)
	ctx := context.Background()
	require.NoError(t, session.CreateApp(ctx, "web", "go", ""))

	instances, err := session.ListServiceInstances(ctx)
	require.NoError(t, err)
	assert.Empty(t, instances)

	require.NoError(t, session.AddServiceInstance(ctx, "postgresql", "web-db", "ops"))
	assert.Equal(t, "ops", f.form("POST /1.0/services/postgresql/instances")["owner"])

	instances, err = session.ListServiceInstances(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"web-db"}, instances)

	bound, err := session.AppHasService(ctx, "web", "web-db")
	require.NoError(t, err)
	assert.False(t, bound)

	require.NoError(t, session.BindService(ctx, "postgresql", "web-db", "web"))
	assert.Equal(t, 1, f.count("PUT /1.0/services/postgresql/instances/web-db/web"))

	bound, err = session.AppHasService(ctx, "web", "web-db")
	require.NoError(t, err)
	assert.True(t, bound)
}

func TestSession_AppInfoAndUnits(t *testing.T) {
	f, server := newFakeTsuru(t)
	session := login(t, server)
	ctx := context.Background()
	require.NoError(t, session.CreateApp(ctx, "web", "go", ""))

	info, err := session.AppInfo(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, 0, info.UnitCount())

	require.NoError(t, session.AddUnits(ctx, "web", 2))
	assert.Equal(t, "2", f.form("PUT /1.0/apps/web/units")["units"])

	info, err = session.AppInfo(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, 2, info.UnitCount())
	assert.Equal(t, "go", info.Platform)
}

func TestSession_AddUnits_RejectsNonPositive(t *testing.T) {
	f, server := newFakeTsuru(t)
	session := login(t, server)

	err := session.AddUnits(context.Background(), "web", 0)
	assert.ErrorIs(t, err, domain.ErrControlPlane)
	assert.Equal(t, 0, f.count("PUT /1.0/apps/web/units"))
}

func TestSession_AppRepository(t *testing.T) {
	_, server := newFakeTsuru(t)
	session := login(t, server)
	ctx := context.Background()
	require.NoError(t, session.CreateApp(ctx, "web", "go", ""))

	repo, err := session.AppRepository(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "git@git.example.com:web.git", repo)
}

func TestSession_AppNotFound(t *testing.T) {
	_, server := newFakeTsuru(t)
	session := login(t, server)

	_, err := session.AppRepository(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrControlPlane)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestSession_ExpiredToken_IsControlPlaneError(t *testing.T) {
	_, server := newFakeTsuru(t)
	session := &APISession{client: NewClient(Config{BaseURL: server.URL}, nil), token: "stale"}

	_, err := session.ListApps(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrControlPlane)
	assert.NotErrorIs(t, err, domain.ErrAuthentication)
}

// =============================================================================
// AppInfo
// =============================================================================

func TestAppInfo_NilSafe(t *testing.T) {
	var info *AppInfo
	assert.Equal(t, 0, info.UnitCount())
	assert.False(t, info.HasService("db"))
}

func TestAppInfo_DecodesTsuruShape(t *testing.T) {
	raw := `{
		"name": "web",
		"platform": "python",
		"repository": "git@git.example.com:web.git",
		"units": [{"ID": "a1", "Status": "started"}, {"ID": "a2", "Status": "starting"}],
		"serviceInstanceBinds": [{"service": "postgresql", "instance": "web-db"}]
	}`
	var info AppInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))

	assert.Equal(t, 2, info.UnitCount())
	assert.True(t, info.HasService("web-db"))
	assert.False(t, info.HasService("other"))
}
