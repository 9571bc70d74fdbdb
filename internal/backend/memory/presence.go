package memory

import (
	"sync"

	"backplane/internal/backend/domain"
	"backplane/internal/platform/clock"
)

// presenceChannel is the per-channel membership state machine.
// It is independent of the change bus: UnsubscribeAll on the bus never
// touches presence, and channels persist for the process lifetime
type presenceChannel struct {
	mu      sync.Mutex
	name    string
	clk     clock.Clock
	entries map[string]domain.PresenceEntry
	nextID  int
	syncs   map[int]func(domain.PresenceState)
	joins   map[int]func(domain.PresenceEvent)
	leaves  map[int]func(domain.PresenceEvent)
}

func newPresenceChannel(name string, clk clock.Clock) *presenceChannel {
	return &presenceChannel{
		name:    name,
		clk:     clk,
		entries: map[string]domain.PresenceEntry{},
		syncs:   map[int]func(domain.PresenceState){},
		joins:   map[int]func(domain.PresenceEvent){},
		leaves:  map[int]func(domain.PresenceEvent){},
	}
}

// Track creates or replaces the participant's entry. A first track is a join
// (join then sync); a repeat track replaces the state and emits sync only.
// onlineAt is always restamped
func (p *presenceChannel) Track(participantID string, state map[string]any) {
	p.mu.Lock()
	_, existed := p.entries[participantID]
	entry := domain.PresenceEntry{State: cloneState(state), OnlineAt: p.clk.Now()}
	p.entries[participantID] = entry
	joinHs := p.joinHandlers()
	syncHs, snap := p.syncHandlersAndSnapshot()
	p.mu.Unlock()

	if !existed {
		for _, h := range joinHs {
			// each handler gets its own state copy; mutating the event must
			// not reach channel state or sibling handlers
			h(domain.PresenceEvent{
				ParticipantID: participantID,
				Entry:         domain.PresenceEntry{State: cloneState(entry.State), OnlineAt: entry.OnlineAt},
			})
		}
	}
	for _, h := range syncHs {
		h(snap)
	}
}

// Untrack removes the participant's entry if present: leave with the last
// known state, then sync. Untracking an unknown participant is a no-op
func (p *presenceChannel) Untrack(participantID string) {
	p.mu.Lock()
	entry, existed := p.entries[participantID]
	if !existed {
		p.mu.Unlock()
		return
	}
	delete(p.entries, participantID)
	leaveHs := p.leaveHandlers()
	syncHs, snap := p.syncHandlersAndSnapshot()
	p.mu.Unlock()

	for _, h := range leaveHs {
		h(domain.PresenceEvent{
			ParticipantID: participantID,
			Entry:         domain.PresenceEntry{State: cloneState(entry.State), OnlineAt: entry.OnlineAt},
		})
	}
	for _, h := range syncHs {
		h(snap)
	}
}

// State returns a copy of the membership snapshot
func (p *presenceChannel) State() domain.PresenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// OnSync registers h and immediately replays the current snapshot to it,
// even when nothing has mutated yet
func (p *presenceChannel) OnSync(h func(domain.PresenceState)) domain.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.syncs[id] = h
	snap := p.snapshotLocked()
	p.mu.Unlock()

	h(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.syncs, id)
		})
	}
}

// OnJoin registers h for join transitions only; no replay on subscribe
func (p *presenceChannel) OnJoin(h func(domain.PresenceEvent)) domain.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.joins[id] = h
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.joins, id)
		})
	}
}

// OnLeave registers h for leave transitions only; no replay on subscribe
func (p *presenceChannel) OnLeave(h func(domain.PresenceEvent)) domain.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.leaves[id] = h
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.leaves, id)
		})
	}
}

// callers hold p.mu for the helpers below

func (p *presenceChannel) snapshotLocked() domain.PresenceState {
	snap := make(domain.PresenceState, len(p.entries))
	for id, e := range p.entries {
		snap[id] = domain.PresenceEntry{State: cloneState(e.State), OnlineAt: e.OnlineAt}
	}
	return snap
}

func (p *presenceChannel) joinHandlers() []func(domain.PresenceEvent) {
	hs := make([]func(domain.PresenceEvent), 0, len(p.joins))
	for _, h := range p.joins {
		hs = append(hs, h)
	}
	return hs
}

func (p *presenceChannel) leaveHandlers() []func(domain.PresenceEvent) {
	hs := make([]func(domain.PresenceEvent), 0, len(p.leaves))
	for _, h := range p.leaves {
		hs = append(hs, h)
	}
	return hs
}

func (p *presenceChannel) syncHandlersAndSnapshot() ([]func(domain.PresenceState), domain.PresenceState) {
	hs := make([]func(domain.PresenceState), 0, len(p.syncs))
	for _, h := range p.syncs {
		hs = append(hs, h)
	}
	return hs, p.snapshotLocked()
}

func cloneState(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
