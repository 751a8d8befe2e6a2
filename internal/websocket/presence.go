package websocket

import "sync"

// Presence tracks which users currently have a live session. A user owns at
// most one session: registering again replaces the old entry, and the
// superseded session is handed back to the caller for closing. A single mutex
// owns the map, so Register, Unregister and Lookup are linearizable.
type Presence struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewPresence() *Presence {
	return &Presence{sessions: make(map[string]*Session)}
}

// Register makes s the current session for userID and returns the session it
// replaced, if any. The caller notifies or closes the superseded session
// outside the lock.
func (p *Presence) Register(userID string, s *Session) (superseded *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.sessions[userID]
	if prev == s {
		return nil
	}
	p.sessions[userID] = s
	return prev
}

// Unregister removes s only if it is still the current session for its user.
// A stale unregister racing a newer registration must not evict the newer
// session.
func (p *Presence) Unregister(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.sessions[s.UserID]
	if !ok || current != s {
		return false
	}
	delete(p.sessions, s.UserID)
	return true
}

// Lookup returns the current session for userID.
func (p *Presence) Lookup(userID string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[userID]
	return s, ok
}

// Snapshot returns the currently registered sessions. The slice is a copy;
// iterating it never holds the presence lock.
func (p *Presence) Snapshot() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of online users.
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
