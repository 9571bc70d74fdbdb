// Package module wires records into the API using modkit
package module

import (
	"net/http"

	modkit "backplane/internal/modkit"
	"backplane/internal/modkit/httpkit"
	str "backplane/internal/platform/strings"
	recordshttp "backplane/internal/services/api/records/http"
	recordssvc "backplane/internal/services/api/records/service"
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

	svc recordssvc.Service
}

// New constructs a records module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("records"),
		modkit.WithPrefix("/{entityType}"),
	}, opts...)...)

	svc := recordssvc.New(deps.Backend.Database())

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Ports{Records: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		recordshttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// Ports are the records module's exported ports
type Ports struct {
	Records recordssvc.Service
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
