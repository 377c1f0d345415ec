package ws

import (
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"social-realtime/internal/models"
)

// Session is the registration record of one connection. It is only changed
// through Registry methods.
type Session struct {
	ConnID       string
	UserID       int
	Visible      bool
	RegisteredAt time.Time
}

// VisibilityChange describes a user's visible-connection state around a
// SetVisibility call. Announce is the status friends must now be told, or
// empty when their view is already correct.
type VisibilityChange struct {
	Session    Session
	WasVisible bool
	IsVisible  bool
	Announce   string
}

// Removal is the outcome of Unregister. Offline is set when the last
// connection went away; AnnounceOffline when friends were told the user is
// online and no visible connection is left.
type Removal struct {
	Session         Session
	Offline         bool
	AnnounceOffline bool
}

// Registry maps users to their live connections. A user has an entry iff at
// least one registered connection exists for them.
type Registry struct {
	mu        sync.RWMutex
	users     map[int]mapset.Set[string]
	sessions  map[string]Session
	// users whose friends currently see them online
	announced map[int]bool
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users:     make(map[int]mapset.Set[string]),
		sessions:  make(map[string]Session),
		announced: make(map[int]bool),
		now:       time.Now,
	}
}

// Register adds connID under userID and reports whether it was the user's
// first connection. Registering a known connID is a no-op.
func (r *Registry) Register(userID int, connID string, visible bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; ok {
		return false
	}
	conns, ok := r.users[userID]
	if !ok {
		conns = mapset.NewThreadUnsafeSet[string]()
		r.users[userID] = conns
	}
	conns.Add(connID)
	r.sessions[connID] = Session{ConnID: connID, UserID: userID, Visible: visible, RegisteredAt: r.now()}
	first := conns.Cardinality() == 1
	if first && visible {
		r.announced[userID] = true
	}
	return first
}

// Unregister removes connID. Unknown ids return ok=false.
func (r *Registry) Unregister(connID string) (Removal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return Removal{}, false
	}
	delete(r.sessions, connID)
	out := Removal{Session: s}
	if conns, exists := r.users[s.UserID]; exists {
		conns.Remove(connID)
		if conns.Cardinality() == 0 {
			delete(r.users, s.UserID)
			out.Offline = true
		}
	}
	if r.announced[s.UserID] && (out.Offline || !r.anyVisibleLocked(s.UserID)) {
		delete(r.announced, s.UserID)
		out.AnnounceOffline = true
	}
	return out, true
}

// SetVisibility updates a registered connection's visibility flag.
func (r *Registry) SetVisibility(connID string, visible bool) (VisibilityChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return VisibilityChange{}, false
	}
	was := r.anyVisibleLocked(s.UserID)
	s.Visible = visible
	r.sessions[connID] = s
	change := VisibilityChange{Session: s, WasVisible: was, IsVisible: r.anyVisibleLocked(s.UserID)}
	switch announced := r.announced[s.UserID]; {
	case !announced && !change.WasVisible && change.IsVisible:
		r.announced[s.UserID] = true
		change.Announce = models.StatusOnline
	case announced && !change.IsVisible:
		delete(r.announced, s.UserID)
		change.Announce = models.StatusOffline
	}
	return change, true
}

// Session returns the registration of connID.
func (r *Registry) Session(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// IsOnline reports whether userID has at least one registered connection.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns, ok := r.users[userID]
	return ok && conns.Cardinality() > 0
}

// Connections returns the user's connection ids in sorted order.
func (r *Registry) Connections(userID int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns, ok := r.users[userID]
	if !ok {
		return nil
	}
	out := conns.ToSlice()
	sort.Strings(out)
	return out
}

// VisibleConnections returns the user's connections whose visibility flag is set.
func (r *Registry) VisibleConnections(userID int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns, ok := r.users[userID]
	if !ok {
		return nil
	}
	var out []string
	conns.Each(func(id string) bool {
		if r.sessions[id].Visible {
			out = append(out, id)
		}
		return false
	})
	sort.Strings(out)
	return out
}

// Stats returns the number of online users and live connections.
func (r *Registry) Stats() (users, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), len(r.sessions)
}

func (r *Registry) anyVisibleLocked(userID int) bool {
	conns, ok := r.users[userID]
	if !ok {
		return false
	}
	visible := false
	conns.Each(func(id string) bool {
		visible = r.sessions[id].Visible
		return visible
	})
	return visible
}
