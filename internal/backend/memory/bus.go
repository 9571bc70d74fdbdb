package memory

import (
	"sync"

	"backplane/internal/backend/domain"
	"backplane/internal/core/query"
	perr "backplane/internal/platform/errors"
	"backplane/internal/platform/logger"
)

// Bus is the in-process change notification hub. Delivery is synchronous:
// Publish and Broadcast invoke subscriber callbacks before returning.
// Handlers run outside the bus lock so a callback may subscribe, unsubscribe,
// or mutate the store without deadlocking
type Bus struct {
	mu     sync.Mutex
	nextID int
	tables map[string]map[int]domain.ChangeHandler
	// channels -> event name ("*" for wildcard) -> handlers
	channels map[string]map[string]map[int]domain.BroadcastHandler
	log      *logger.Logger
}

// NewBus returns an empty bus
func NewBus() *Bus {
	return &Bus{
		tables:   map[string]map[int]domain.ChangeHandler{},
		channels: map[string]map[string]map[int]domain.BroadcastHandler{},
		log:      logger.Named("bus"),
	}
}

// Publish fans a change event out to the entity type's subscribers
func (b *Bus) Publish(ev domain.ChangeEvent) {
	b.mu.Lock()
	subs := b.tables[ev.EntityType]
	hs := make([]domain.ChangeHandler, 0, len(subs))
	for _, h := range subs {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

// SubscribeTable registers h for every change on entityType.
// A non-empty filterExpr ("field=op.value") is validated for shape and then
// registered under the same wildcard bucket: the mock engine accepts the
// filter but does not narrow delivery by it, so subscribers may see events
// outside their nominal filter
func (b *Bus) SubscribeTable(entityType, filterExpr string, h domain.ChangeHandler) (domain.Unsubscribe, error) {
	if entityType == "" {
		return nil, perr.InvalidArgf("entity type is required")
	}
	if filterExpr != "" {
		if _, err := query.ParseExpression(filterExpr); err != nil {
			return nil, err
		}
		b.log.Debug().Str("table", entityType).Str("filter", filterExpr).
			Msg("filtered subscription registered without narrowing")
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.tables[entityType] == nil {
		b.tables[entityType] = map[int]domain.ChangeHandler{}
	}
	b.tables[entityType][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.tables[entityType]; ok {
				delete(subs, id)
			}
		})
	}, nil
}

// Subscribe registers h for broadcasts on channel. event "*" receives every
// event name on the channel
func (b *Bus) Subscribe(channel, event string, h domain.BroadcastHandler) domain.Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.channels[channel] == nil {
		b.channels[channel] = map[string]map[int]domain.BroadcastHandler{}
	}
	if b.channels[channel][event] == nil {
		b.channels[channel][event] = map[int]domain.BroadcastHandler{}
	}
	b.channels[channel][event][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if evs, ok := b.channels[channel]; ok {
				if subs, ok := evs[event]; ok {
					delete(subs, id)
				}
			}
		})
	}
}

// Broadcast delivers payload to the channel's exact-event and wildcard
// subscribers synchronously. There is no queueing and no cross-channel
// ordering guarantee
func (b *Bus) Broadcast(channel, event string, payload any) {
	b.mu.Lock()
	var hs []domain.BroadcastHandler
	if evs, ok := b.channels[channel]; ok {
		for _, h := range evs[event] {
			hs = append(hs, h)
		}
		if event != "*" {
			for _, h := range evs["*"] {
				hs = append(hs, h)
			}
		}
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(event, payload)
	}
}

// UnsubscribeAll clears channel and table subscriptions. Presence membership
// is a longer-lived concern owned elsewhere and is deliberately untouched
func (b *Bus) UnsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = map[string]map[int]domain.ChangeHandler{}
	b.channels = map[string]map[string]map[int]domain.BroadcastHandler{}
}
