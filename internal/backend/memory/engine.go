package memory

import (
	"context"
	"time"

	"backplane/internal/backend/domain"
	"backplane/internal/core/record"
	"backplane/internal/platform/clock"
	"backplane/internal/platform/logger"
)

// Options configure the memory engine
type Options struct {
	// EntityTypes are the tables to create; DefaultEntityTypes when empty
	EntityTypes []string
	// FieldDefaults apply per entity type at create; DefaultFieldDefaults when nil
	FieldDefaults map[string]record.Record
	// Latency simulates a network round-trip on every database call
	Latency time.Duration
	// SnapshotPath enables whole-snapshot persistence when non-empty:
	// loaded at construction, saved on Close
	SnapshotPath string
	// Clock defaults to the wall clock
	Clock clock.Clock
	// JWTSecret signs session access tokens
	JWTSecret []byte
	// StorageBaseURL prefixes public object URLs
	StorageBaseURL string
}

// Engine bundles the in-process implementations of all four ports.
// It satisfies domain.Backend
type Engine struct {
	opts     Options
	store    *Store
	bus      *Bus
	database *Database
	realtime *Realtime
	storage  *Storage
	auth     *Auth
	log      *logger.Logger
}

// New constructs a fully wired memory engine
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if len(opts.JWTSecret) == 0 {
		opts.JWTSecret = []byte("backplane-dev-secret")
	}

	bus := NewBus()
	store := NewStore(opts.EntityTypes, opts.FieldDefaults, opts.Clock, bus)
	e := &Engine{
		opts:     opts,
		store:    store,
		bus:      bus,
		database: NewDatabase(store, opts.Latency),
		realtime: NewRealtime(bus, opts.Clock),
		storage:  NewStorage(opts.Clock, opts.StorageBaseURL),
		auth:     NewAuth(store, opts.Clock, opts.JWTSecret),
		log:      logger.Named("memory"),
	}

	if opts.SnapshotPath != "" {
		store.LoadSnapshot(opts.SnapshotPath)
		e.log.Info().Str("path", opts.SnapshotPath).Msg("snapshot loaded")
	}
	return e
}

// Bus exposes the change bus so sibling engines can publish through it
func (e *Engine) Bus() *Bus { return e.bus }

// Database satisfies domain.Backend
func (e *Engine) Database() domain.DatabasePort { return e.database }

// Realtime satisfies domain.Backend
func (e *Engine) Realtime() domain.RealtimePort { return e.realtime }

// Storage satisfies domain.Backend
func (e *Engine) Storage() domain.StoragePort { return e.storage }

// Auth satisfies domain.Backend
func (e *Engine) Auth() domain.AuthPort { return e.auth }

// Close persists the snapshot when persistence is enabled
func (e *Engine) Close(ctx context.Context) error {
	if e.opts.SnapshotPath == "" {
		return nil
	}
	if err := e.store.SaveSnapshot(e.opts.SnapshotPath); err != nil {
		e.log.Error().Str("path", e.opts.SnapshotPath).Err(err).Msg("snapshot save failed")
		return err
	}
	e.log.Info().Str("path", e.opts.SnapshotPath).Msg("snapshot saved")
	return nil
}
