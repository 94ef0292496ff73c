package coordinator

import (
	"sync"
	"time"

	"teleconsult-backend/internal/domain"
	apperrors "teleconsult-backend/pkg/errors"
	"teleconsult-backend/pkg/constants"
)

// Config tunes registry housekeeping. Zero values fall back to the
// application defaults.
type Config struct {
	// RemovalGrace is how long a finalized session lingers for trailing events
	RemovalGrace time.Duration

	// StaleThreshold is the idle age after which an empty session is evicted
	StaleThreshold time.Duration

	// SweepInterval is the janitor tick
	SweepInterval time.Duration

	// ChatReplayLimit caps the chat log replayed to new joiners
	ChatReplayLimit int
}

func (c *Config) applyDefaults() {
	if c.RemovalGrace <= 0 {
		c.RemovalGrace = constants.SessionRemovalGrace
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = constants.StaleSessionThreshold
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = constants.JanitorSweepInterval
	}
	if c.ChatReplayLimit <= 0 {
		c.ChatReplayLimit = constants.ChatReplayLimit
	}
}

// Registry owns every live call session and the connection-to-session
// index. It is the only shared mutable surface of the coordinator; all
// session objects are reached through it, never shared across sessions.
type Registry struct {
	cfg     Config
	sender  Sender
	store   Store
	metrics MetricsRecorder

	mu           sync.RWMutex
	sessions     map[string]*CallSession
	byConnection map[string]string // connection ID -> session key
}

// NewRegistry creates an empty registry. The sender fans events out to
// live connections; the store is the external storage collaborator. Both
// metrics and store may be nil.
func NewRegistry(cfg Config, sender Sender, store Store, metrics MetricsRecorder) *Registry {
	cfg.applyDefaults()
	return &Registry{
		cfg:          cfg,
		sender:       sender,
		store:        store,
		metrics:      metrics,
		sessions:     make(map[string]*CallSession),
		byConnection: make(map[string]string),
	}
}

// GetOrCreate returns the live session for the consultation, creating a
// fresh Waiting one when none exists. A finalized session still inside its
// removal grace window is replaced so no residual state leaks into the
// next call.
func (r *Registry) GetOrCreate(sessionKey string) *CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(sessionKey)
}

func (r *Registry) getOrCreateLocked(sessionKey string) *CallSession {
	if s, ok := r.sessions[sessionKey]; ok {
		if !s.State().Terminal() {
			return s
		}
		// replace a finalized session still inside its grace window
		r.removeLocked(sessionKey, s)
	}
	s := newCallSession(sessionKey, r)
	r.sessions[sessionKey] = s
	if r.metrics != nil {
		r.metrics.SessionCreated()
	}
	return s
}

// Get returns the session for the consultation without creating one
func (r *Registry) Get(sessionKey string) (*CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionKey]
	if !ok {
		return nil, apperrors.SessionNotFoundError(sessionKey)
	}
	return s, nil
}

// SessionByConnection resolves the session a connection belongs to
func (r *Registry) SessionByConnection(connectionID string) (*CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.byConnection[connectionID]
	if !ok {
		return nil, apperrors.SessionNotFoundError(connectionID)
	}
	s, ok := r.sessions[key]
	if !ok {
		return nil, apperrors.SessionNotFoundError(key)
	}
	return s, nil
}

// Join registers a connection with the consultation's session, creating
// the session on first join. The connection identifier must be globally
// fresh; reconnects use a new one.
func (r *Registry) Join(sessionKey, connectionID string, info JoinInfo) (*CallSession, *domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byConnection[connectionID]; taken {
		return nil, nil, apperrors.DuplicateConnectionError(connectionID)
	}

	s := r.getOrCreateLocked(sessionKey)
	p, err := s.Join(connectionID, info)
	if err != nil {
		return nil, nil, err
	}
	r.byConnection[connectionID] = sessionKey
	return s, p, nil
}

// Disconnect removes the connection's participant from its session with
// the given reason. Transport-level liveness failures use reason timeout,
// exactly like an explicit leave.
func (r *Registry) Disconnect(connectionID string, reason domain.LeaveReason) (*domain.Participant, error) {
	r.mu.Lock()
	key, ok := r.byConnection[connectionID]
	if !ok {
		r.mu.Unlock()
		return nil, apperrors.SessionNotFoundError(connectionID)
	}
	delete(r.byConnection, connectionID)
	s := r.sessions[key]
	r.mu.Unlock()

	if s == nil {
		return nil, apperrors.SessionNotFoundError(key)
	}
	return s.Leave(connectionID, reason)
}

// Kick removes a participant on behalf of a moderator in the same session
func (r *Registry) Kick(byConnectionID, targetConnectionID string) error {
	r.mu.Lock()
	byKey, ok := r.byConnection[byConnectionID]
	if !ok {
		r.mu.Unlock()
		return apperrors.SessionNotFoundError(byConnectionID)
	}
	if targetKey, ok := r.byConnection[targetConnectionID]; !ok || targetKey != byKey {
		r.mu.Unlock()
		return apperrors.NotFoundError("participant")
	}
	s := r.sessions[byKey]
	r.mu.Unlock()

	if s == nil {
		return apperrors.SessionNotFoundError(byKey)
	}
	if err := s.Kick(byConnectionID, targetConnectionID); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.byConnection, targetConnectionID)
	r.mu.Unlock()
	return nil
}

// Remove drops the session and its connection index entries. Called by the
// state machine after the removal grace and by the janitor.
func (r *Registry) Remove(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionKey]; ok {
		r.removeLocked(sessionKey, s)
	}
}

func (r *Registry) removeLocked(sessionKey string, s *CallSession) {
	for _, connectionID := range s.connectionIDs() {
		delete(r.byConnection, connectionID)
	}
	delete(r.sessions, sessionKey)
	if r.metrics != nil {
		r.metrics.SessionRemoved()
	}
}

// scheduleRemoval queues session eviction after the grace window so
// trailing events can still be delivered. Removal is identity-checked: a
// fresh session created under the same key during the grace window is
// left alone.
func (r *Registry) scheduleRemoval(s *CallSession) {
	time.AfterFunc(r.cfg.RemovalGrace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.sessions[s.key]; ok && current == s {
			r.removeLocked(s.key, s)
		}
	})
}

// SessionCount returns the number of registered sessions
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ConnectionCount returns the number of indexed connections
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConnection)
}
