// Package domain defines the backend adapter contract: the types and port
// interfaces every concrete backend (memory, postgres) satisfies and the only
// surface higher-level services are allowed to depend on
package domain

import (
	"time"

	"backplane/internal/core/query"
	"backplane/internal/core/record"
)

// ChangeType classifies a store mutation
type ChangeType string

// Change types emitted by the notification bus
const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent describes one successful mutation on an entity type.
// It is emitted synchronously after the mutation, never before, and never for
// failed or no-op mutations
type ChangeEvent struct {
	Type       ChangeType    `json:"type"`
	EntityType string        `json:"entityType"`
	Record     record.Record `json:"record"`
	// PreviousRecord carries the pre-mutation value for UPDATE and DELETE
	PreviousRecord record.Record `json:"previousRecord,omitempty"`
}

// NearbyOptions shape a geospatial radius query. The geo filter applies
// first; Options then filters/sorts/limits the geofiltered subset
type NearbyOptions struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Options   query.Options
}

// PageOptions shape a cursor-paginated read. Cursor is the opaque token from
// the previous page ("" for the first page); ordering defaults to
// createdAt desc
type PageOptions struct {
	Cursor  string
	Limit   int
	Where   []query.Filter
	OrderBy []query.Order
}

// Unsubscribe removes a subscription. Implementations are idempotent:
// calling one twice, or after the channel was cleared, never panics
type Unsubscribe func()

// ChangeHandler receives change events for a table subscription
type ChangeHandler func(ChangeEvent)

// BroadcastHandler receives broadcast payloads on an application channel.
// Wildcard ('*') subscribers see every event name on the channel
type BroadcastHandler func(event string, payload any)

// PresenceEntry is one participant's opaque state plus the server-assigned
// onlineAt stamp
type PresenceEntry struct {
	State    map[string]any `json:"state"`
	OnlineAt time.Time      `json:"onlineAt"`
}

// PresenceState is the full membership snapshot of a channel, keyed by
// participant id
type PresenceState map[string]PresenceEntry

// PresenceEvent is an edge-triggered join or leave transition
type PresenceEvent struct {
	ParticipantID string        `json:"participantId"`
	Entry         PresenceEntry `json:"entry"`
}

// UploadOptions shape an object upload
type UploadOptions struct {
	ContentType string
	// Upsert allows overwriting an existing path; without it an existing
	// object makes the upload a Conflict
	Upsert bool
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Path        string    `json:"path"`
	Size        int       `json:"size"`
	ContentType string    `json:"contentType"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Credentials are the sign-up inputs
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Username string `json:"username" validate:"required,min=3"`
}

// User is the authenticated principal
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is an authenticated session with a signed access token
type Session struct {
	AccessToken string    `json:"accessToken"`
	User        User      `json:"user"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AuthEvent names an auth state transition
type AuthEvent string

// Auth state transitions delivered to OnAuthStateChange subscribers
const (
	AuthSignedIn  AuthEvent = "SIGNED_IN"
	AuthSignedOut AuthEvent = "SIGNED_OUT"
)

// AuthChange is delivered on every auth state transition; Session is nil
// for SIGNED_OUT
type AuthChange struct {
	Event   AuthEvent
	Session *Session
}
