package main

import (
	"context"

	"backplane/internal/backend"
	"backplane/internal/platform/config"
	"backplane/internal/platform/logger"
	phttp "backplane/internal/platform/net/http"

	"backplane/internal/services/api"
)

func main() {
	// pick up a .env when present, then build config views
	config.Load()
	root := config.New()
	apiCfg := root.Prefix("BACKPLANE_API_")

	// bring up logging early
	l := logger.Get()

	ctx := context.Background()

	// resolve the backend strategy once (BACKPLANE_BACKEND: memory | postgres)
	be, err := backend.Open(ctx, root)
	if err != nil {
		l.Panic().Err(err).Msg("backend.Open failed")
	}
	defer func() {
		if err := be.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close backend")
		}
	}()

	// http server (reads BACKPLANE_API_PORT / BACKPLANE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	// mount our API
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Backend:        be,
			Logger:         l,
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
		},
	)

	// run
	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
