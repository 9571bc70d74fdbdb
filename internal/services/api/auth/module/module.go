// Package module wires auth into the API using modkit
package module

import (
	"net/http"

	modkit "backplane/internal/modkit"
	"backplane/internal/modkit/httpkit"
	str "backplane/internal/platform/strings"
	authhttp "backplane/internal/services/api/auth/http"
	authsvc "backplane/internal/services/api/auth/service"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws   []func(http.Handler) http.Handler
	ports any

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc authsvc.Service
}

// Ports are the auth module's exported ports; Verifier lets other modules
// guard routes with the same tokens
type Ports struct {
	Verifier func(token string) (string, error)
}

// New constructs an auth module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("auth"),
		modkit.WithPrefix("/auth"),
	}, opts...)...)

	svc := authsvc.New(deps.Backend.Auth(), deps.Backend.Database())

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Ports{Verifier: svc.VerifyToken}

	external := b.Register
	m.register = func(r httpkit.Router) {
		authhttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return m.ports }
