package relay

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is the single source of truth for room membership. All joins,
// leaves and fan-out snapshot reads go through it so concurrent callers
// never see divergent views. Room entries are created lazily on first
// join and retained when empty; room identity itself belongs to the
// repository.
//
// Membership is synchronized per room: the registry lock only guards the
// room table, so traffic in one room never serializes another.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

type roomEntry struct {
	mu      sync.Mutex
	members map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomEntry)}
}

func (r *Registry) entry(roomId string, create bool) *roomEntry {
	r.mu.RLock()
	e := r.rooms[roomId]
	r.mu.RUnlock()
	if e != nil || !create {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e = r.rooms[roomId]; e == nil {
		e = &roomEntry{members: make(map[string]*Session)}
		r.rooms[roomId] = e
	}
	return e
}

// Join adds the session to the room's member set and returns the other
// members as they were immediately before the join, so presence can be
// addressed without racing the registry. Joining a room the session is
// already a member of is a no-op; joined reports whether membership
// actually changed.
func (r *Registry) Join(roomId string, s *Session) (others []*Session, joined bool) {
	e := r.entry(roomId, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	others = lo.Reject(lo.Values(e.members), func(m *Session, _ int) bool {
		return m.id == s.id
	})

	if _, ok := e.members[s.id]; ok {
		return others, false
	}
	e.members[s.id] = s
	return others, true
}

// Leave removes the session from the room and returns the members
// remaining immediately after the leave. Leaving a room the session is
// not a member of is a no-op; left reports whether membership changed.
func (r *Registry) Leave(roomId string, s *Session) (remaining []*Session, left bool) {
	e := r.entry(roomId, false)
	if e == nil {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.members[s.id]; !ok {
		return lo.Values(e.members), false
	}
	delete(e.members, s.id)
	return lo.Values(e.members), true
}

// Members returns a point-in-time snapshot of the room's current member
// sessions. Order is unspecified.
func (r *Registry) Members(roomId string) []*Session {
	e := r.entry(roomId, false)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Values(e.members)
}
