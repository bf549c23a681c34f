// Package registry is the process-wide presence set: a synchronized map
// from canonical user identity to the single live session considered
// current for that user. All reads and writes go through one RWMutex;
// presence snapshots are computed under the lock and broadcast after it is
// released so no partial view ever leaves the registry.
package registry

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatrelay/pkg/live"
	"chatrelay/pkg/logger"
)

// Session is the connection handle the registry manages. *live.Session
// satisfies it; tests substitute recording fakes.
type Session interface {
	Push(ev live.Event) bool
	Ping() error
	Close() error
}

var onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chatrelay_online_connections",
	Help: "Live connections currently registered.",
})

// Registry maps user ids to their current session, last-registered-wins.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Register records s as the current session for userID, superseding and
// closing any prior session, then broadcasts a presence snapshot to every
// registered connection (including the new one).
func (r *Registry) Register(userID string, s Session) {
	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = s
	online, targets := r.snapshotLocked()
	r.mu.Unlock()

	if prev != nil && prev != s {
		// Supersession: the stale socket is closed rather than left to
		// time out keyed by nothing.
		_ = prev.Close()
		logger.Info("connection_superseded", "user", userID)
	}
	logger.Info("connection_registered", "user", userID, "online", len(online))
	onlineGauge.Set(float64(len(online)))
	broadcast(targets, online)
}

// Unregister removes the mapping for userID if s is still its current
// session; a stale unregister from a superseded session is a no-op. On
// removal an updated presence snapshot is broadcast.
func (r *Registry) Unregister(userID string, s Session) {
	r.mu.Lock()
	cur, ok := r.sessions[userID]
	if !ok || (s != nil && cur != s) {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, userID)
	online, targets := r.snapshotLocked()
	r.mu.Unlock()

	logger.Info("connection_unregistered", "user", userID, "online", len(online))
	onlineGauge.Set(float64(len(online)))
	broadcast(targets, online)
}

// Lookup returns the current session for userID. A miss is a valid
// outcome: the user is offline.
func (r *Registry) Lookup(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Online returns the sorted set of currently registered user ids.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online, _ := r.snapshotLocked()
	return online
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep pings every registered session and unregisters the ones whose
// transport is gone. Returns the number of sessions reaped.
func (r *Registry) Sweep() int {
	r.mu.RLock()
	probe := make(map[string]Session, len(r.sessions))
	for uid, s := range r.sessions {
		probe[uid] = s
	}
	r.mu.RUnlock()

	reaped := 0
	for uid, s := range probe {
		if err := s.Ping(); err != nil {
			logger.Warn("session_ping_failed", "user", uid, "error", err)
			_ = s.Close()
			r.Unregister(uid, s)
			reaped++
		}
	}
	return reaped
}

// Shutdown closes every session and clears the registry without presence
// broadcasts; the process is going away.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]Session)
	r.mu.Unlock()
	for _, s := range sessions {
		_ = s.Close()
	}
	onlineGauge.Set(0)
}

// snapshotLocked returns the sorted online ids and the sessions to notify.
// Callers must hold at least the read lock.
func (r *Registry) snapshotLocked() ([]string, []Session) {
	online := make([]string, 0, len(r.sessions))
	targets := make([]Session, 0, len(r.sessions))
	for uid, s := range r.sessions {
		online = append(online, uid)
		targets = append(targets, s)
	}
	sort.Strings(online)
	return online, targets
}

func broadcast(targets []Session, online []string) {
	ev := live.Event{Event: live.KindPresenceSnapshot, Data: online}
	for _, s := range targets {
		s.Push(ev)
	}
}
