package memory

import (
	"sync"

	"backplane/internal/backend/domain"
	"backplane/internal/platform/clock"
)

// Realtime satisfies domain.RealtimePort over the in-process bus and a
// registry of presence channels
type Realtime struct {
	bus *Bus
	clk clock.Clock

	mu       sync.Mutex
	presence map[string]*presenceChannel
}

// NewRealtime wires the realtime surface over bus
func NewRealtime(bus *Bus, clk clock.Clock) *Realtime {
	if clk == nil {
		clk = clock.Real()
	}
	return &Realtime{bus: bus, clk: clk, presence: map[string]*presenceChannel{}}
}

// SubscribeTable implements domain.RealtimePort
func (r *Realtime) SubscribeTable(entityType, filterExpr string, h domain.ChangeHandler) (domain.Unsubscribe, error) {
	return r.bus.SubscribeTable(entityType, filterExpr, h)
}

// Subscribe implements domain.RealtimePort
func (r *Realtime) Subscribe(channel, event string, h domain.BroadcastHandler) domain.Unsubscribe {
	return r.bus.Subscribe(channel, event, h)
}

// Broadcast implements domain.RealtimePort
func (r *Realtime) Broadcast(channel, event string, payload any) {
	r.bus.Broadcast(channel, event, payload)
}

// Presence returns the channel's tracker, creating it on first use.
// Channels persist for the process lifetime
func (r *Realtime) Presence(channel string) domain.PresencePort {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presence[channel]
	if !ok {
		p = newPresenceChannel(channel, r.clk)
		r.presence[channel] = p
	}
	return p
}

// UnsubscribeAll clears table and channel subscriptions on the bus.
// Presence membership is left intact
func (r *Realtime) UnsubscribeAll() {
	r.bus.UnsubscribeAll()
}
