// Package memory implements the full backend contract in process: a per-type
// record store, the synchronous change bus, presence channels, auth, and
// object storage. It exists so application code can run against the exact
// call surface of a remote backend with zero infrastructure
package memory

import (
	"sync"

	"backplane/internal/backend/domain"
	"backplane/internal/core/record"
	"backplane/internal/platform/clock"
	perr "backplane/internal/platform/errors"
)

// Publisher is the store's outbound event seam. Keeping it an interface
// separates mutation logic from fan-out so both test independently
type Publisher interface {
	Publish(domain.ChangeEvent)
}

// DefaultEntityTypes are the tables the engine creates when none are configured
var DefaultEntityTypes = []string{
	"user", "post", "comment", "message", "chat", "notification", "activity", "event",
}

// DefaultFieldDefaults seed well-known counters at create time when the
// caller leaves them unset
var DefaultFieldDefaults = map[string]record.Record{
	"user": {"followerCount": 0, "followingCount": 0},
	"post": {"likeCount": 0, "commentCount": 0},
}

type table map[string]record.Record

// Store holds per-entity-type collections with O(1) get/set/delete.
// Every record crossing the boundary is deep-copied in both directions
type Store struct {
	mu       sync.RWMutex
	tables   map[string]table
	defaults map[string]record.Record
	clk      clock.Clock
	events   Publisher
}

// NewStore builds a store over the given entity types.
// events receives exactly one ChangeEvent per successful mutation
func NewStore(types []string, defaults map[string]record.Record, clk clock.Clock, events Publisher) *Store {
	if len(types) == 0 {
		types = DefaultEntityTypes
	}
	if defaults == nil {
		defaults = DefaultFieldDefaults
	}
	if clk == nil {
		clk = clock.Real()
	}
	tables := make(map[string]table, len(types))
	for _, t := range types {
		tables[t] = table{}
	}
	return &Store{tables: tables, defaults: defaults, clk: clk, events: events}
}

// Has reports whether entityType is a known table
func (s *Store) Has(entityType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[entityType]
	return ok
}

// Get returns a deep copy of the record or nil when missing.
// Missing ids and unknown entity types are not errors on the read path
func (s *Store) Get(entityType, id string) record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[entityType]
	if !ok {
		return nil
	}
	r, ok := t[id]
	if !ok {
		return nil
	}
	return r.Clone()
}

// Snapshot returns deep copies of every record in the entity type.
// Unknown entity types yield an empty snapshot to keep reads resilient
func (s *Store) Snapshot(entityType string) []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[entityType]
	if !ok {
		return []record.Record{}
	}
	out := make([]record.Record, 0, len(t))
	for _, r := range t {
		out = append(out, r.Clone())
	}
	return out
}

// Create inserts a new record: assigns an id when absent, stamps
// createdAt/updatedAt, applies the entity's field defaults, then emits INSERT
func (s *Store) Create(entityType string, fields record.Record) (record.Record, error) {
	s.mu.Lock()
	t, ok := s.tables[entityType]
	if !ok {
		s.mu.Unlock()
		return nil, perr.NotFoundf("unknown entity type %q", entityType)
	}

	r := fields.Clone()
	if r == nil {
		r = record.Record{}
	}
	if r.ID() == "" {
		r[record.FieldID] = record.NewID()
	}
	now := s.clk.Now()
	r[record.FieldCreatedAt] = now
	r[record.FieldUpdatedAt] = now
	for k, v := range s.defaults[entityType] {
		if _, set := r[k]; !set {
			r[k] = v
		}
	}
	t[r.ID()] = r
	out := r.Clone()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Type: domain.ChangeInsert, EntityType: entityType, Record: out.Clone()})
	return out, nil
}

// Update merges patch shallowly over the existing record. The id cannot be
// rewritten, updatedAt never decreases, and UPDATE is emitted with the
// previous value
func (s *Store) Update(entityType, id string, patch record.Record) (record.Record, error) {
	s.mu.Lock()
	t, ok := s.tables[entityType]
	if !ok {
		s.mu.Unlock()
		return nil, perr.NotFoundf("unknown entity type %q", entityType)
	}
	prev, ok := t[id]
	if !ok {
		s.mu.Unlock()
		return nil, perr.NotFoundf("record %s/%s not found", entityType, id)
	}

	next := prev.Clone().Merge(patch)
	next[record.FieldID] = id
	next[record.FieldCreatedAt] = prev[record.FieldCreatedAt]
	now := s.clk.Now()
	if now.Before(prev.UpdatedAt()) {
		now = prev.UpdatedAt()
	}
	next[record.FieldUpdatedAt] = now
	t[id] = next
	out := next.Clone()
	prevOut := prev.Clone()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{
		Type:           domain.ChangeUpdate,
		EntityType:     entityType,
		Record:         out.Clone(),
		PreviousRecord: prevOut,
	})
	return out, nil
}

// Delete removes the record and emits DELETE. A missing id is a silent no-op
// with no event; an unknown entity type is still a write error
func (s *Store) Delete(entityType, id string) error {
	s.mu.Lock()
	t, ok := s.tables[entityType]
	if !ok {
		s.mu.Unlock()
		return perr.NotFoundf("unknown entity type %q", entityType)
	}
	prev, ok := t[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(t, id)
	prevOut := prev.Clone()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{
		Type:           domain.ChangeDelete,
		EntityType:     entityType,
		Record:         record.Record{record.FieldID: id},
		PreviousRecord: prevOut,
	})
	return nil
}

func (s *Store) publish(ev domain.ChangeEvent) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// replaceAll swaps in snapshot data wholesale (no events); tables absent from
// data are reset to empty
func (s *Store) replaceAll(data map[string]map[string]record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.tables {
		t := table{}
		for id, r := range data[name] {
			t[id] = r.Clone()
		}
		s.tables[name] = t
	}
}

// dump deep-copies every table for snapshot serialization
func (s *Store) dump() map[string]map[string]record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]record.Record, len(s.tables))
	for name, t := range s.tables {
		m := make(map[string]record.Record, len(t))
		for id, r := range t {
			m[id] = r.Clone()
		}
		out[name] = m
	}
	return out
}
