// Package controlplanetest provides an in-memory control plane for tests.
package controlplanetest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/artpar/paasdeploy/internal/shell/controlplane"
)

// Call is one recorded control-plane operation.
type Call struct {
	Op   string
	Args []string
}

func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Op
	}
	return c.Op + " " + strings.Join(c.Args, " ")
}

var mutating = map[string]bool{
	"CreateApp":          true,
	"SetEnv":             true,
	"AddServiceInstance": true,
	"BindService":        true,
	"AddUnits":           true,
}

// Fake is both the ControlPlane and every Session it hands out. The zero
// value is not usable; call New.
type Fake struct {
	mu        sync.Mutex
	users     map[string]string // email -> password
	apps      map[string]*controlplane.AppInfo
	env       map[string]map[string]string
	instances map[string]string // instance -> service type
	failures  map[string]error
	calls     []Call
}

var (
	_ controlplane.ControlPlane = (*Fake)(nil)
	_ controlplane.Session      = (*Fake)(nil)
)

// New creates an empty control plane.
func New() *Fake {
	return &Fake{
		users:     map[string]string{},
		apps:      map[string]*controlplane.AppInfo{},
		env:       map[string]map[string]string{},
		instances: map[string]string{},
		failures:  map[string]error{},
	}
}

// =============================================================================
// Seeding
// =============================================================================

// AddUser registers a user that can log in.
func (f *Fake) AddUser(email, password string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = password
	return f
}

// AddApp creates an application with units running units.
func (f *Fake) AddApp(name, platform string, units int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	app := f.newApp(name, platform, "")
	f.addUnits(app, units)
	return f
}

// AddInstance creates a service instance.
func (f *Fake) AddInstance(serviceType, instance string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[instance] = serviceType
	return f
}

// Bind binds an existing instance to an existing application.
func (f *Fake) Bind(app, instance string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.apps[app]
	a.ServiceBinds = append(a.ServiceBinds, controlplane.ServiceBind{Service: f.instances[instance], Instance: instance})
	return f
}

// SetUnits sets the application's unit count.
func (f *Fake) SetUnits(app string, n int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.apps[app]
	a.Units = nil
	f.addUnits(a, n)
	return f
}

// FailOn makes every later call to op fail with err wrapped in an APIError.
func (f *Fake) FailOn(op string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
	return f
}

// =============================================================================
// Inspection
// =============================================================================

// Calls returns every recorded call in order, rendered with Call.String.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many times op was called.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Mutations returns how many state-changing calls were made.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if mutating[c.Op] {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps state.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Env returns a copy of the application's environment.
func (f *Fake) Env(app string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.env[app] {
		out[k] = v
	}
	return out
}

// Units returns the application's unit count.
func (f *Fake) Units(app string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps[app].UnitCount()
}

// HasApp reports whether the application exists.
func (f *Fake) HasApp(app string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.apps[app]
	return ok
}

// =============================================================================
// ControlPlane / Session
// =============================================================================

// Login implements controlplane.ControlPlane.
func (f *Fake) Login(_ context.Context, email, password string) (controlplane.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Login", email); err != nil {
		return nil, err
	}
	if pw, ok := f.users[email]; !ok || pw != password {
		return nil, &controlplane.APIError{Op: "Login", StatusCode: http.StatusUnauthorized, Message: "authentication failed"}
	}
	return f, nil
}

func (f *Fake) ListApps(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListApps"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.apps))
	for name := range f.apps {
		names = append(names, name)
	}
	return names, nil
}

func (f *Fake) CreateApp(_ context.Context, name, platform, team string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateApp", name, platform, team); err != nil {
		return err
	}
	if _, ok := f.apps[name]; ok {
		return &controlplane.APIError{Op: "CreateApp", StatusCode: http.StatusConflict, Message: "app already exists"}
	}
	f.newApp(name, platform, team)
	return nil
}

func (f *Fake) SetEnv(_ context.Context, app, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetEnv", app, key, value); err != nil {
		return err
	}
	if f.env[app] == nil {
		f.env[app] = map[string]string{}
	}
	f.env[app][key] = value
	return nil
}

func (f *Fake) ListServiceInstances(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListServiceInstances"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.instances))
	for name := range f.instances {
		names = append(names, name)
	}
	return names, nil
}

func (f *Fake) AddServiceInstance(_ context.Context, serviceType, instance, team string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddServiceInstance", serviceType, instance, team); err != nil {
		return err
	}
	f.instances[instance] = serviceType
	return nil
}

func (f *Fake) AppHasService(_ context.Context, app, instance string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AppHasService", app, instance); err != nil {
		return false, err
	}
	a, err := f.app("AppHasService", app)
	if err != nil {
		return false, err
	}
	return a.HasService(instance), nil
}

func (f *Fake) BindService(_ context.Context, serviceType, instance, app string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("BindService", serviceType, instance, app); err != nil {
		return err
	}
	a, err := f.app("BindService", app)
	if err != nil {
		return err
	}
	if _, ok := f.instances[instance]; !ok {
		return &controlplane.APIError{Op: "BindService", StatusCode: http.StatusNotFound, Message: "service instance not found"}
	}
	a.ServiceBinds = append(a.ServiceBinds, controlplane.ServiceBind{Service: serviceType, Instance: instance})
	return nil
}

func (f *Fake) AppRepository(_ context.Context, app string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AppRepository", app); err != nil {
		return "", err
	}
	a, err := f.app("AppRepository", app)
	if err != nil {
		return "", err
	}
	return a.Repository, nil
}

func (f *Fake) AppInfo(_ context.Context, app string) (*controlplane.AppInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AppInfo", app); err != nil {
		return nil, err
	}
	a, err := f.app("AppInfo", app)
	if err != nil {
		return nil, err
	}
	info := *a
	info.Units = append([]controlplane.Unit(nil), a.Units...)
	info.ServiceBinds = append([]controlplane.ServiceBind(nil), a.ServiceBinds...)
	return &info, nil
}

func (f *Fake) AddUnits(_ context.Context, app string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddUnits", app, strconv.Itoa(count)); err != nil {
		return err
	}
	if count <= 0 {
		return &controlplane.APIError{Op: "AddUnits", StatusCode: http.StatusBadRequest, Message: "invalid number of units"}
	}
	a, err := f.app("AddUnits", app)
	if err != nil {
		return err
	}
	f.addUnits(a, count)
	return nil
}

// =============================================================================
// Helpers (callers hold f.mu)
// =============================================================================

func (f *Fake) record(op string, args ...string) error {
	f.calls = append(f.calls, Call{Op: op, Args: args})
	if err, ok := f.failures[op]; ok {
		return &controlplane.APIError{Op: op, StatusCode: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}
	return nil
}

func (f *Fake) app(op, name string) (*controlplane.AppInfo, error) {
	a, ok := f.apps[name]
	if !ok {
		return nil, &controlplane.APIError{Op: op, StatusCode: http.StatusNotFound, Message: "App not found"}
	}
	return a, nil
}

func (f *Fake) newApp(name, platform, team string) *controlplane.AppInfo {
	a := &controlplane.AppInfo{
		Name:       name,
		Platform:   platform,
		TeamOwner:  team,
		Repository: fmt.Sprintf("git@git.example.com:%s.git", name),
	}
	f.apps[name] = a
	return a
}

func (f *Fake) addUnits(a *controlplane.AppInfo, n int) {
	for i := 0; i < n; i++ {
		a.Units = append(a.Units, controlplane.Unit{
			ID:     fmt.Sprintf("%s-%d", a.Name, len(a.Units)),
			Status: "started",
		})
	}
}
