package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const opLogin = "Login"

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config holds control-plane client configuration.
type Config struct {
	BaseURL string // target URI, e.g. "https://prod-api.example.com"
	Timeout time.Duration
}

// Client is the HTTP implementation of ControlPlane against the tsuru 1.0 API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new control-plane client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "controlplane"),
	}
}

var _ ControlPlane = (*Client)(nil)

// Login implements ControlPlane.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	form := url.Values{"password": {password}}

	var result struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "", request{
		op:     opLogin,
		method: http.MethodPost,
		path:   "/1.0/users/" + url.PathEscape(email) + "/tokens",
		form:   form,
		out:    &result,
		ok:     []int{http.StatusOK, http.StatusCreated},
	}); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &APIError{Op: opLogin, Message: "empty token in response"}
	}

	c.logger.Info("session opened", "user", email)
	return &APISession{client: c, token: result.Token}, nil
}

// =============================================================================
// Session
// =============================================================================

// APISession is an authenticated Session.
type APISession struct {
	client *Client
	token  string
}

var _ Session = (*APISession)(nil)

// ListApps implements Session.
func (s *APISession) ListApps(ctx context.Context) ([]string, error) {
	var apps []struct {
		Name string `json:"name"`
	}
	if err := s.do(ctx, request{
		op:     "ListApps",
		method: http.MethodGet,
		path:   "/1.0/apps",
		out:    &apps,
		ok:     []int{http.StatusOK, http.StatusNoContent},
	}); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(apps))
	for _, a := range apps {
		names = append(names, a.Name)
	}
	return names, nil
}

// CreateApp implements Session. An empty team lets the control plane pick
// the user's only team.
func (s *APISession) CreateApp(ctx context.Context, name, platform, team string) error {
	form := url.Values{"name": {name}, "platform": {platform}}
	if team != "" {
		form.Set("teamOwner", team)
	}
	return s.do(ctx, request{
		op:     "CreateApp",
		method: http.MethodPost,
		path:   "/1.0/apps",
		form:   form,
		ok:     []int{http.StatusOK, http.StatusCreated},
	})
}

type envVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SetEnv implements Session. The value always overwrites any existing one.
func (s *APISession) SetEnv(ctx context.Context, app, key, value string) error {
	body, err := json.Marshal(struct {
		Envs      []envVar `json:"envs"`
		NoRestart bool     `json:"noRestart"`
		Private   bool     `json:"private"`
	}{
		Envs: []envVar{{Name: key, Value: value}},
	})
	if err != nil {
		return &APIError{Op: "SetEnv", Message: "marshal env", Err: err}
	}
	return s.do(ctx, request{
		op:       "SetEnv",
		method:   http.MethodPost,
		path:     "/1.0/apps/" + url.PathEscape(app) + "/env",
		jsonBody: body,
		ok:       []int{http.StatusOK},
	})
}

// ListServiceInstances implements Session.
func (s *APISession) ListServiceInstances(ctx context.Context) ([]string, error) {
	var services []struct {
		Service   string   `json:"service"`
		Instances []string `json:"instances"`
	}
	if err := s.do(ctx, request{
		op:     "ListServiceInstances",
		method: http.MethodGet,
		path:   "/1.0/services/instances",
		out:    &services,
		ok:     []int{http.StatusOK, http.StatusNoContent},
	}); err != nil {
		return nil, err
	}

	var names []string
	for _, svc := range services {
		names = append(names, svc.Instances...)
	}
	return names, nil
}

// AddServiceInstance implements Session.
func (s *APISession) AddServiceInstance(ctx context.Context, serviceType, instance, team string) error {
	form := url.Values{"name": {instance}}
	if team != "" {
		form.Set("owner", team)
	}
	return s.do(ctx, request{
		op:     "AddServiceInstance",
		method: http.MethodPost,
		path:   "/1.0/services/" + url.PathEscape(serviceType) + "/instances",
		form:   form,
		ok:     []int{http.StatusOK, http.StatusCreated},
	})
}

// AppHasService implements Session.
func (s *APISession) AppHasService(ctx context.Context, app, instance string) (bool, error) {
	info, err := s.appInfo(ctx, "AppHasService", app)
	if err != nil {
		return false, err
	}
	return info.HasService(instance), nil
}

// BindService implements Session.
func (s *APISession) BindService(ctx context.Context, serviceType, instance, app string) error {
	return s.do(ctx, request{
		op:     "BindService",
		method: http.MethodPut,
		path: "/1.0/services/" + url.PathEscape(serviceType) +
			"/instances/" + url.PathEscape(instance) + "/" + url.PathEscape(app),
		form: url.Values{"noRestart": {"false"}},
		ok:   []int{http.StatusOK},
	})
}

// AppRepository implements Session.
func (s *APISession) AppRepository(ctx context.Context, app string) (string, error) {
	info, err := s.appInfo(ctx, "AppRepository", app)
	if err != nil {
		return "", err
	}
	if info.Repository == "" {
		return "", &APIError{Op: "AppRepository", Message: fmt.Sprintf("app %s has no repository", app)}
	}
	return info.Repository, nil
}

// AppInfo implements Session.
func (s *APISession) AppInfo(ctx context.Context, app string) (*AppInfo, error) {
	return s.appInfo(ctx, "AppInfo", app)
}

// AddUnits implements Session.
func (s *APISession) AddUnits(ctx context.Context, app string, count int) error {
	if count <= 0 {
		return &APIError{Op: "AddUnits", Message: fmt.Sprintf("unit count must be positive, got %d", count)}
	}
	return s.do(ctx, request{
		op:     "AddUnits",
		method: http.MethodPut,
		path:   "/1.0/apps/" + url.PathEscape(app) + "/units",
		form:   url.Values{"units": {strconv.Itoa(count)}},
		ok:     []int{http.StatusOK},
	})
}

func (s *APISession) appInfo(ctx context.Context, op, app string) (*AppInfo, error) {
	var info AppInfo
	if err := s.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/1.0/apps/" + url.PathEscape(app),
		out:    &info,
		ok:     []int{http.StatusOK},
	}); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *APISession) do(ctx context.Context, r request) error {
	return s.client.do(ctx, s.token, r)
}

// =============================================================================
// Helper Methods
// =============================================================================

type request struct {
	op       string
	method   string
	path     string
	form     url.Values
	jsonBody []byte
	out      any
	ok       []int
}

func (c *Client) do(ctx context.Context, token string, r request) error {
	var body io.Reader
	contentType := ""
	switch {
	case r.jsonBody != nil:
		body = bytes.NewReader(r.jsonBody)
		contentType = "application/json"
	case r.form != nil:
		body = strings.NewReader(r.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return &APIError{Op: r.op, Message: "create request", Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "bearer "+token)
	}

	c.logger.Debug("control plane request", "op", r.op, "method", r.method, "path", r.path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: r.op, Message: "send request", Err: err}
	}
	defer resp.Body.Close()

	if !slices.Contains(r.ok, resp.StatusCode) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Op:         r.op,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		return &APIError{Op: r.op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}
