// Package api provides the HTTP API for the application
package api

import (
	backend "backplane/internal/backend/domain"
	"backplane/internal/platform/config"
	"backplane/internal/platform/logger"
	phttp "backplane/internal/platform/net/http"

	"backplane/internal/modkit"
	"backplane/internal/modkit/httpkit"
	"backplane/internal/modkit/module"

	authmod "backplane/internal/services/api/auth/module"
	metamod "backplane/internal/services/api/meta/module"
	realtimemod "backplane/internal/services/api/realtime/module"
	recordsmod "backplane/internal/services/api/records/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Backend        backend.Backend
	Logger         *logger.Logger
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg:     opt.Config,
		Backend: opt.Backend,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	mods := []module.Module{
		metamod.New(deps),
		authmod.New(deps),
		// records uses the /{entityType} wildcard prefix; chi prefers the
		// static module prefixes above on lookup
		recordsmod.New(deps),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})

	// the change stream rides the root router so the common stack's request
	// timeout cannot sever long-lived websockets
	rt := realtimemod.New(deps)
	module.Register(rt.Name(), rt.Ports())
	rt.MountRoutes(r)
}
