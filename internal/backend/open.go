// Package backend selects and assembles the engine behind the adapter
// contract. The strategy is resolved once at start, never per call
package backend

import (
	"context"
	"errors"
	"strings"

	"backplane/internal/backend/domain"
	"backplane/internal/backend/memory"
	"backplane/internal/backend/postgres"
	"backplane/internal/platform/config"
	"backplane/internal/platform/logger"
	"backplane/internal/platform/store"
)

// Strategy names accepted by BACKPLANE_BACKEND
const (
	StrategyMemory   = "memory"
	StrategyPostgres = "postgres"
)

// Open builds the backend selected by cfg (prefix BACKPLANE_).
// memory is the default; postgres swaps only the database port and keeps
// the in-process realtime, presence, storage and auth engines
func Open(ctx context.Context, cfg config.Conf) (domain.Backend, error) {
	bp := cfg.Prefix("BACKPLANE_")
	strategy := bp.MayEnum("BACKEND", StrategyMemory, StrategyMemory, StrategyPostgres)

	opts := memory.Options{
		EntityTypes:    splitList(bp.MayString("ENTITY_TYPES", "")),
		Latency:        bp.MayDuration("LATENCY", 0),
		SnapshotPath:   bp.MayString("SNAPSHOT_PATH", ""),
		JWTSecret:      []byte(bp.MayString("JWT_SECRET", "")),
		StorageBaseURL: bp.MayString("STORAGE_BASE_URL", ""),
	}
	eng := memory.New(opts)

	log := logger.Named("backend")
	if strategy == StrategyMemory {
		log.Info().Str("strategy", strategy).Msg("backend ready")
		return eng, nil
	}

	pgc := bp.Prefix("PG_")
	st, err := store.Open(ctx, store.Config{
		AppName: "backplane",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgc.MustString("URL"),
			MaxConns:    int32(pgc.MayInt("MAX_CONNS", 8)),
			LogSQL:      pgc.MayBool("LOG_SQL", false),
			SlowQueryMs: pgc.MayInt("SLOW_MS", 200),
		},
	}, store.WithLogger(*logger.Get()))
	if err != nil {
		return nil, err
	}

	db := postgres.New(st.PG, postgres.Options{
		EntityTypes:   entityTypesOrDefault(opts.EntityTypes),
		FieldDefaults: memory.DefaultFieldDefaults,
		Publisher:     eng.Bus(),
	})
	if err := db.Migrate(ctx); err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	log.Info().Str("strategy", strategy).Msg("backend ready")
	return &pgBackend{Engine: eng, db: db, st: st}, nil
}

// pgBackend overlays the postgres database port on the memory engine
type pgBackend struct {
	*memory.Engine
	db *postgres.Database
	st *store.Store
}

// Database satisfies domain.Backend with the relational port
func (b *pgBackend) Database() domain.DatabasePort { return b.db }

// Close releases the pool after the embedded engine shuts down
func (b *pgBackend) Close(ctx context.Context) error {
	return errors.Join(b.Engine.Close(ctx), b.st.Close(ctx))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func entityTypesOrDefault(types []string) []string {
	if len(types) > 0 {
		return types
	}
	return memory.DefaultEntityTypes
}
