package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"teleconsult-backend/internal/domain"
	"teleconsult-backend/pkg/constants"
	apperrors "teleconsult-backend/pkg/errors"
	"teleconsult-backend/pkg/logger"
)

// JoinInfo is the pre-authorized identity of a joining connection.
// Authentication and the participant-of-consultation check happen at the
// transport boundary before Join is ever invoked.
type JoinInfo struct {
	UserID      uuid.UUID
	Role        domain.Role
	DisplayName string
}

// CallSession is the in-memory representation of one live consultation
// call. All mutations are serialized through the session mutex; the
// session is the unit of mutual exclusion, no cross-session lock exists.
type CallSession struct {
	key string

	mu           sync.Mutex
	state        domain.SessionState
	participants map[string]*domain.Participant // keyed by connection ID
	chatLog      []domain.ChatMessage
	startedAt    *time.Time
	endedAt      *time.Time
	recording    domain.RecordingState
	quality      *QualityMonitor
	createdAt    time.Time
	lastActivity time.Time

	sender          Sender
	store           Store
	metrics         MetricsRecorder
	chatReplayLimit int
	onFinalized     func()
}

// SessionSnapshot is a read-only copy of session state for status queries
type SessionSnapshot struct {
	SessionKey   string                `json:"session_key"`
	State        domain.SessionState   `json:"state"`
	Participants []domain.Participant  `json:"participants"`
	Recording    domain.RecordingState `json:"recording"`
	StartedAt    *time.Time            `json:"started_at,omitempty"`
	EndedAt      *time.Time            `json:"ended_at,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

func newCallSession(key string, r *Registry) *CallSession {
	now := time.Now()
	s := &CallSession{
		key:             key,
		state:           domain.SessionWaiting,
		participants:    make(map[string]*domain.Participant),
		quality:         NewQualityMonitor(),
		createdAt:       now,
		lastActivity:    now,
		sender:          r.sender,
		store:           r.store,
		metrics:         r.metrics,
		chatReplayLimit: r.cfg.ChatReplayLimit,
	}
	s.onFinalized = func() { r.scheduleRemoval(s) }
	return s
}

// Key returns the owning consultation identifier
func (s *CallSession) Key() string {
	return s.key
}

// State returns the current session state
func (s *CallSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ParticipantCount returns the number of present participants
func (s *CallSession) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// Snapshot returns a copy of the session suitable for status responses
func (s *CallSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		SessionKey: s.key,
		State:      s.state,
		Recording:  s.recording,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
		CreatedAt:  s.createdAt,
	}
	for _, p := range s.participants {
		snap.Participants = append(snap.Participants, *p)
	}
	return snap
}

// Join registers a new participant for the given connection and announces
// it to the existing broadcast group. The joiner receives the capped
// recent chat log instead of the join announcement.
func (s *CallSession) Join(connectionID string, info JoinInfo) (*domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil, apperrors.SessionFinalizedError(s.key)
	}
	if _, exists := s.participants[connectionID]; exists {
		return nil, apperrors.DuplicateConnectionError(connectionID)
	}

	p := &domain.Participant{
		UserID:       info.UserID,
		Role:         info.Role,
		DisplayName:  info.DisplayName,
		ConnectionID: connectionID,
		JoinedAt:     time.Now(),
	}
	s.participants[connectionID] = p
	s.quality.Track(connectionID, info.UserID)
	s.touch()

	s.broadcastExcept(connectionID, EventParticipantJoined, ParticipantJoinedPayload{Participant: p})

	if len(s.chatLog) > 0 {
		replay := make([]domain.ChatMessage, len(s.chatLog))
		copy(replay, s.chatLog)
		s.sendTo(connectionID, EventChatHistory, ChatHistoryPayload{Messages: replay})
	}

	if s.metrics != nil {
		s.metrics.ParticipantJoined()
	}
	return p, nil
}

// Leave removes the participant bound to the connection, announces the
// departure with its reason code, and lets the state machine react to the
// reduced participant count.
func (s *CallSession) Leave(connectionID string, reason domain.LeaveReason) (*domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaveLocked(connectionID, reason)
}

func (s *CallSession) leaveLocked(connectionID string, reason domain.LeaveReason) (*domain.Participant, error) {
	p, ok := s.participants[connectionID]
	if !ok {
		return nil, apperrors.NotFoundError("participant")
	}

	now := time.Now()
	p.LeftAt = &now
	delete(s.participants, connectionID)
	s.quality.Retire(connectionID)
	s.touch()

	s.broadcast(EventParticipantLeft, ParticipantLeftPayload{
		UserID:       p.UserID,
		ConnectionID: connectionID,
		DisplayName:  p.DisplayName,
		Reason:       reason,
	})
	if s.metrics != nil {
		s.metrics.ParticipantLeft()
	}

	s.applyEvent(StateEventParticipantLeft)
	return p, nil
}

// SetReady marks the connection's participant as ready. Late or duplicate
// ready events from unknown connections are ignored. Once every present
// participant is ready and enough of them are present, the call goes live.
func (s *CallSession) SetReady(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[connectionID]
	if !ok || s.state.Terminal() {
		return
	}
	p.IsReady = true
	s.touch()

	s.broadcastExcept(connectionID, EventParticipantReady, ParticipantReadyPayload{
		UserID:       p.UserID,
		ConnectionID: connectionID,
	})

	if s.allReady() {
		s.applyEvent(StateEventAllReady)
	}
}

func (s *CallSession) allReady() bool {
	if len(s.participants) == 0 {
		return false
	}
	for _, p := range s.participants {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// UpdateMediaState merges the patch into the participant's media state and
// broadcasts the merged result to the peers
func (s *CallSession) UpdateMediaState(connectionID string, patch domain.MediaStatePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[connectionID]
	if !ok || s.state.Terminal() {
		return
	}
	patch.Apply(&p.Media)
	s.touch()

	s.broadcastExcept(connectionID, EventMediaChange, MediaChangePayload{
		UserID:       p.UserID,
		ConnectionID: connectionID,
		Media:        p.Media,
	})
}

// Chat appends a message to the capped in-memory log, fans it out to the
// whole session, and forwards it to the storage collaborator without
// blocking the relay path
func (s *CallSession) Chat(connectionID, content string) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil, apperrors.SessionFinalizedError(s.key)
	}
	p, ok := s.participants[connectionID]
	if !ok {
		return nil, apperrors.NotFoundError("participant")
	}
	if content == "" {
		return nil, apperrors.ValidationError("empty chat message")
	}
	if len(content) > constants.MaxChatMessageLength {
		return nil, apperrors.ValidationError("chat message too long")
	}

	msg := domain.ChatMessage{
		MessageID:  uuid.New(),
		SenderID:   p.UserID,
		SenderName: p.DisplayName,
		Content:    content,
		SentAt:     time.Now(),
	}
	s.chatLog = append(s.chatLog, msg)
	if len(s.chatLog) > s.chatReplayLimit {
		s.chatLog = s.chatLog[len(s.chatLog)-s.chatReplayLimit:]
	}
	s.touch()

	s.broadcast(EventChatMessage, msg)
	s.persistChat(msg)
	return &msg, nil
}

// Relay forwards an opaque envelope from one participant either to its
// explicit target or to every other participant. Payloads are never
// inspected. An envelope addressed to a connection that already left the
// session is dropped after logging.
func (s *CallSession) Relay(fromConnectionID string, env *Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return apperrors.SessionFinalizedError(s.key)
	}
	if _, ok := s.participants[fromConnectionID]; !ok {
		return apperrors.NotFoundError("participant")
	}
	if !env.ValidKind() {
		return apperrors.InvalidInputError("unknown signal kind: " + env.Kind)
	}

	env.FromConnectionID = fromConnectionID
	s.touch()

	if env.TargetConnectionID != "" {
		if _, ok := s.participants[env.TargetConnectionID]; !ok {
			logger.Debug("dropping signal for departed connection",
				zap.String("session_key", s.key),
				zap.String("kind", env.Kind),
				zap.String("target", env.TargetConnectionID))
			return nil
		}
		s.sendTo(env.TargetConnectionID, EventSignal, env)
	} else {
		s.broadcastExcept(fromConnectionID, EventSignal, env)
	}

	if s.metrics != nil {
		s.metrics.SignalRelayed(env.Kind)
	}
	return nil
}

// ReportQuality feeds a participant quality report into the monitor.
// Either part may be nil; reports from unknown connections are ignored.
func (s *CallSession) ReportQuality(connectionID string, issue *domain.QualityIssue, stats *domain.NetworkStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[connectionID]; !ok || s.state.Terminal() {
		return
	}
	if issue != nil {
		s.quality.ReportIssue(connectionID, *issue)
	}
	if stats != nil {
		s.quality.UpdateNetworkStats(*stats)
	}
	s.touch()
}

// EndCall finalizes the session on an explicit command. Only doctors and
// admins may end a call for everyone.
func (s *CallSession) EndCall(connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[connectionID]
	if !ok {
		return apperrors.NotFoundError("participant")
	}
	if !p.Role.CanModerate() {
		return apperrors.UnauthorizedError("only a doctor or admin may end the call")
	}
	if s.state.Terminal() {
		return apperrors.SessionFinalizedError(s.key)
	}

	s.broadcast(EventCallForceEnded, ForceEndedPayload{EndedBy: p.UserID})
	s.applyEvent(StateEventEndCall)
	return nil
}

// Kick removes another participant on behalf of a doctor or admin
func (s *CallSession) Kick(byConnectionID, targetConnectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	by, ok := s.participants[byConnectionID]
	if !ok {
		return apperrors.NotFoundError("participant")
	}
	if !by.Role.CanModerate() {
		return apperrors.UnauthorizedError("only a doctor or admin may remove participants")
	}
	if _, err := s.leaveLocked(targetConnectionID, domain.LeaveKicked); err != nil {
		return err
	}
	return nil
}

// Fail terminates the session on an unrecoverable internal error. A single
// error event reaches every participant before the state flips to Failed.
func (s *CallSession) Fail(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	appErr := apperrors.GetAppError(cause)
	s.broadcast(EventError, ErrorPayload{
		Code:    string(appErr.Code),
		Message: appErr.Message,
	})
	s.applyEvent(StateEventInternalError)
}

// applyEvent runs the pure transition function and performs the entry
// actions of the new state. Callers hold the session mutex.
func (s *CallSession) applyEvent(event StateEvent) {
	next := NextState(s.state, event, len(s.participants))
	if next == s.state {
		return
	}
	prev := s.state
	s.state = next
	s.broadcast(EventCallStateChange, StateChangePayload{From: prev, To: next})

	switch next {
	case domain.SessionConnected:
		if s.startedAt == nil {
			now := time.Now()
			s.startedAt = &now
			if s.metrics != nil {
				s.metrics.CallStarted()
			}
		}
		s.broadcast(EventCallStarted, CallStartedPayload{StartedAt: *s.startedAt})

	case domain.SessionEnded, domain.SessionFailed:
		s.finalizeLocked(next)
	}
}

func (s *CallSession) finalizeLocked(state domain.SessionState) {
	now := time.Now()
	s.endedAt = &now

	var duration time.Duration
	if s.startedAt != nil {
		duration = now.Sub(*s.startedAt)
	}
	summary := s.quality.Summarize(duration)

	s.broadcast(EventCallEnded, CallEndedPayload{Status: state, Summary: summary})

	result := &domain.CallResult{
		ConsultationID: s.key,
		Status:         state,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		DurationMs:     duration.Milliseconds(),
		Summary:        summary,
	}
	s.persistResult(result)

	if s.metrics != nil {
		s.metrics.CallEnded(string(state), duration)
	}
	if s.onFinalized != nil {
		s.onFinalized()
	}
}

// persistChat forwards one chat message to the storage collaborator.
// Fire-and-forget: a failed write is logged and never affects the session.
func (s *CallSession) persistChat(msg domain.ChatMessage) {
	if s.store == nil {
		return
	}
	key := s.key
	store := s.store
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.StorageWriteTimeout)
		defer cancel()
		if err := store.AppendChatMessage(ctx, key, &msg); err != nil {
			logger.Warn("chat archive write failed",
				zap.String("session_key", key),
				zap.Error(err))
		}
	}()
}

func (s *CallSession) persistResult(result *domain.CallResult) {
	if s.store == nil {
		return
	}
	store := s.store
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.StorageWriteTimeout)
		defer cancel()
		if err := store.SaveCallResult(ctx, result); err != nil {
			logger.Warn("call result write failed",
				zap.String("session_key", result.ConsultationID),
				zap.Error(err))
		}
	}()
}

// touch refreshes the activity timestamp the janitor sweeps on
func (s *CallSession) touch() {
	s.lastActivity = time.Now()
}

// stale reports whether the session is empty and idle beyond the threshold
func (s *CallSession) stale(now time.Time, threshold time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants) == 0 && now.Sub(s.lastActivity) > threshold
}

func (s *CallSession) connectionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.participants))
	for id := range s.participants {
		ids = append(ids, id)
	}
	return ids
}

func (s *CallSession) sendTo(connectionID, eventType string, payload any) {
	if s.sender == nil {
		return
	}
	s.sender.Send(connectionID, &Event{
		Type:       eventType,
		SessionKey: s.key,
		Timestamp:  time.Now(),
		Payload:    payload,
	})
}

func (s *CallSession) broadcast(eventType string, payload any) {
	s.broadcastExcept("", eventType, payload)
}

func (s *CallSession) broadcastExcept(excludeConnectionID, eventType string, payload any) {
	if s.sender == nil {
		return
	}
	event := &Event{
		Type:       eventType,
		SessionKey: s.key,
		Timestamp:  time.Now(),
		Payload:    payload,
	}
	for connectionID := range s.participants {
		if connectionID == excludeConnectionID {
			continue
		}
		s.sender.Send(connectionID, event)
	}
}
