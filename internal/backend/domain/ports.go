package domain

import (
	"context"

	"backplane/internal/core/query"
	"backplane/internal/core/record"
)

// DatabasePort is the uniform record surface.
// Read semantics: Get on a missing id returns (nil, nil); list-shaped reads on
// an unknown entity type return empty results. Write semantics: Update and
// Delete on a missing id fail with NotFound, and any mutation on an unknown
// entity type fails with NotFound so a write never silently vanishes.
// Every returned record is a deep copy; callers can never reach engine state
type DatabasePort interface {
	Get(ctx context.Context, entityType, id string) (record.Record, error)
	List(ctx context.Context, entityType string, opts query.Options) ([]record.Record, error)
	Create(ctx context.Context, entityType string, fields record.Record) (record.Record, error)
	Update(ctx context.Context, entityType, id string, patch record.Record) (record.Record, error)
	Delete(ctx context.Context, entityType, id string) error

	// Query is shorthand for List with only filters
	Query(ctx context.Context, entityType string, where ...query.Filter) ([]record.Record, error)
	// QueryNearby radius-filters location-bearing records before the
	// general engine applies opts
	QueryNearby(ctx context.Context, entityType string, opts NearbyOptions) ([]record.Record, error)
	// Paginate is the cursor-based read path
	Paginate(ctx context.Context, entityType string, opts PageOptions) (query.Page, error)
}

// RealtimePort fans out change events and application broadcasts.
// Delivery is synchronous and in-process for the memory engine: callbacks run
// before the triggering call returns
type RealtimePort interface {
	// SubscribeTable registers for change events on one entity type.
	// filterExpr "" is a wildcard; a non-empty "field=op.value" expression
	// is validated for shape and accepted, but the mock engine does not
	// narrow delivery by it - callers must tolerate wider delivery
	SubscribeTable(entityType, filterExpr string, h ChangeHandler) (Unsubscribe, error)

	// Subscribe registers for broadcasts on an application channel.
	// event "*" receives every event on the channel
	Subscribe(channel, event string, h BroadcastHandler) Unsubscribe
	// Broadcast delivers payload to the channel's subscribers before returning
	Broadcast(channel, event string, payload any)

	// Presence returns the channel's presence tracker, creating it on first
	// use. Presence membership survives UnsubscribeAll
	Presence(channel string) PresencePort

	// UnsubscribeAll clears channel and table subscriptions but not
	// presence membership
	UnsubscribeAll()
}

// PresencePort is a per-channel membership state machine.
// Channels live for the process lifetime; callers untrack before disposal
type PresencePort interface {
	// Track creates or replaces the participant's entry. First track is a
	// join (join + sync); re-track replaces state (sync only)
	Track(participantID string, state map[string]any)
	// Untrack removes the entry if present (leave + sync); no-op otherwise
	Untrack(participantID string)
	// State returns a copy of the current membership snapshot
	State() PresenceState

	// OnSync delivers the current snapshot immediately on subscribe, then
	// on every membership change
	OnSync(h func(PresenceState)) Unsubscribe
	// OnJoin fires only on join transitions, never replayed
	OnJoin(h func(PresenceEvent)) Unsubscribe
	// OnLeave fires only on leave transitions with the last known state
	OnLeave(h func(PresenceEvent)) Unsubscribe
}

// StoragePort stores opaque bytes under bucket+path and hands back URLs
type StoragePort interface {
	Upload(ctx context.Context, bucket, path string, data []byte, opts UploadOptions) (string, error)
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Delete(ctx context.Context, bucket, path string) error
	GetPublicURL(bucket, path string) string
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// AuthPort is the session lifecycle surface
type AuthPort interface {
	SignUp(ctx context.Context, creds Credentials) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	CurrentUser(ctx context.Context) (*User, error)
	Session(ctx context.Context) (*Session, error)
	OnAuthStateChange(h func(AuthChange)) Unsubscribe

	// VerifyToken checks an access token this engine issued and returns the
	// subject user id; expired or foreign tokens fail Unauthorized
	VerifyToken(token string) (string, error)
}

// Backend bundles the four ports one concrete engine provides.
// Services hold a Backend and never a concrete engine type; which engine
// backs it is resolved once at process start
type Backend interface {
	Database() DatabasePort
	Realtime() RealtimePort
	Storage() StoragePort
	Auth() AuthPort
	Close(ctx context.Context) error
}
