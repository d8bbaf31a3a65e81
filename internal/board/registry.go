package board

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type session struct {
	board    *Board
	lastSeen time.Time
}

// Registry keeps one Board per browser session and evicts sessions that
// have been idle longer than the ttl. When maxSessions is reached the least
// recently seen session makes room for the new one.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*session
	ttl         time.Duration
	maxSessions int
	factory     func() *Board
	now         func() time.Time
}

// NewRegistry creates a registry; a ttl or maxSessions of 0 disables that limit
func NewRegistry(ttl time.Duration, maxSessions int, factory func() *Board) *Registry {
	return &Registry{
		sessions:    make(map[string]*session),
		ttl:         ttl,
		maxSessions: maxSessions,
		factory:     factory,
		now:         time.Now,
	}
}

// Get returns the board for id. An empty, malformed, unknown or expired id
// gets a new session; the returned id is the one the caller must keep.
func (r *Registry) Get(id string) (string, *Board) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	if _, err := uuid.Parse(id); err == nil {
		if s, ok := r.sessions[id]; ok {
			s.lastSeen = now
			return id, s.board
		}
	}

	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.evictOldestLocked()
	}

	id = uuid.NewString()
	s := &session{board: r.factory(), lastSeen: now}
	r.sessions[id] = s
	return id, s.board
}

// Sweep evicts expired sessions and returns how many were removed
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

func (r *Registry) sweepLocked(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) evictOldestLocked() {
	var oldest string
	var seen time.Time
	for id, s := range r.sessions {
		if oldest == "" || s.lastSeen.Before(seen) {
			oldest, seen = id, s.lastSeen
		}
	}
	delete(r.sessions, oldest)
}

// Len is the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
