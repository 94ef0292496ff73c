package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"teleconsult-backend/internal/coordinator"
	"teleconsult-backend/internal/domain"
	"teleconsult-backend/internal/service/consult"
	"teleconsult-backend/pkg/constants"
	"teleconsult-backend/pkg/env"
	apperrors "teleconsult-backend/pkg/errors"
	"teleconsult-backend/pkg/logger"
	"teleconsult-backend/pkg/metrics"
	"teleconsult-backend/pkg/sanitize"
)

// Inbound frame types accepted from call clients
const (
	FrameReady          = "ready"
	FrameSignal         = "signal"
	FrameMedia          = "media"
	FrameChat           = "chat"
	FrameQuality        = "quality"
	FrameRecordingStart = "recording-start"
	FrameRecordingStop  = "recording-stop"
	FrameEndCall        = "end-call"
	FrameKick           = "kick"
)

// clientFrame is the envelope every inbound WebSocket message arrives in.
// Only the field matching the frame type is read.
type clientFrame struct {
	Type               string                  `json:"type"`
	Signal             *coordinator.Envelope   `json:"signal,omitempty"`
	Media              *domain.MediaStatePatch `json:"media,omitempty"`
	Content            string                  `json:"content,omitempty"`
	Issue              *domain.QualityIssue    `json:"issue,omitempty"`
	Stats              *domain.NetworkStats    `json:"stats,omitempty"`
	TargetConnectionID string                  `json:"target_connection_id,omitempty"`
}

// snapshotPayload is the welcome frame sent to a joiner. It tells the client
// its own connection ID, which peers address in targeted signaling.
type snapshotPayload struct {
	ConnectionID string                      `json:"connection_id"`
	Session      coordinator.SessionSnapshot `json:"session"`
}

var callUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		for _, allowed := range allowedOrigins() {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

func allowedOrigins() []string {
	origins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	if extra := env.GetString("CORS_ALLOWED_ORIGINS", ""); extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			origins = append(origins, strings.TrimSpace(origin))
		}
	}
	return origins
}

// CallHub owns the WebSocket connections of all live call sessions and
// delivers coordinator events back to them. It is the registry's Sender.
type CallHub struct {
	registry *coordinator.Registry
	consult  *consult.Service
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	clients map[string]*CallClient

	maxConnections int
	semaphore      chan struct{}
}

// CallClient is one participant connection
type CallClient struct {
	hub          *CallHub
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	connectionID string
	sessionKey   string
	userID       uuid.UUID
}

// NewCallHub creates the hub. Bind the registry before serving connections.
func NewCallHub(consultSvc *consult.Service, m *metrics.Metrics) *CallHub {
	maxConns := env.GetInt("WS_MAX_CALL_CONNECTIONS", 1000)

	return &CallHub{
		consult:        consultSvc,
		metrics:        m,
		clients:        make(map[string]*CallClient),
		maxConnections: maxConns,
		semaphore:      make(chan struct{}, maxConns),
	}
}

// BindRegistry attaches the session registry. The hub and registry reference
// each other, so the registry is constructed with the hub as its Sender and
// then bound here.
func (h *CallHub) BindRegistry(registry *coordinator.Registry) {
	h.registry = registry
}

// Send delivers one coordinator event to a connection. Never blocks: a full
// send buffer or departed connection drops the event.
func (h *CallHub) Send(connectionID string, event *coordinator.Event) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event",
			zap.String("event_type", event.Type),
			zap.Error(err))
		return
	}

	select {
	case client.send <- data:
		if h.metrics != nil {
			h.metrics.RecordWebSocketMessage(event.Type, "outbound")
		}
	default:
		logger.Warn("Dropping event for slow connection",
			zap.String("connection_id", connectionID),
			zap.String("event_type", event.Type))
		if h.metrics != nil {
			h.metrics.RecordWebSocketError("send_buffer_full")
		}
	}
}

// closeConnection force-closes a connection's socket; its read pump handles
// the detach
func (h *CallHub) closeConnection(connectionID string) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if ok {
		client.conn.Close()
	}
}

// ClientCount returns the number of attached connections
func (h *CallHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *CallHub) addClient(client *CallClient) {
	h.mu.Lock()
	h.clients[client.connectionID] = client
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetWebSocketConnections(h.ClientCount())
	}
}

func (h *CallHub) removeClient(client *CallClient) {
	h.mu.Lock()
	delete(h.clients, client.connectionID)
	h.mu.Unlock()
	client.closeOnce.Do(func() { close(client.done) })
	if h.metrics != nil {
		h.metrics.SetWebSocketConnections(h.ClientCount())
	}
}

// ServeWS authenticates and attaches one participant connection to its
// consultation's call session
func (h *CallHub) ServeWS(c *gin.Context) {
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}
	acquired := true
	defer func() {
		if acquired {
			<-h.semaphore
		}
	}()

	sessionKey := c.Query("consultation_id")
	if sessionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "consultation_id required"})
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return
	}

	role, ok := domain.ParseRole(c.GetString("role"))
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "unknown role"})
		return
	}
	displayName := sanitize.DisplayName(c.GetString("display_name"))

	if err := h.consult.AuthorizeJoin(c.Request.Context(), sessionKey, userID, role); err != nil {
		if appErr := apperrors.GetAppError(err); appErr != nil {
			c.JSON(appErr.StatusCode, gin.H{"error": appErr.Message})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization failed"})
		}
		return
	}

	conn, err := callUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed",
			zap.String("consultation_id", sessionKey),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}

	connectionID := uuid.New().String()
	client := &CallClient{
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, 256),
		done:         make(chan struct{}),
		connectionID: connectionID,
		sessionKey:   sessionKey,
		userID:       userID,
	}

	// Registered before Join so the chat replay and join fan-out can reach
	// this connection
	h.addClient(client)

	session, participant, err := h.registry.Join(sessionKey, connectionID, coordinator.JoinInfo{
		UserID:      userID,
		Role:        role,
		DisplayName: displayName,
	})
	if err != nil {
		h.removeClient(client)
		conn.Close()
		return
	}

	h.consult.MarkOnline(c.Request.Context(), userID)

	h.Send(connectionID, &coordinator.Event{
		Type:       coordinator.EventSessionSnapshot,
		SessionKey: sessionKey,
		Timestamp:  time.Now(),
		Payload: snapshotPayload{
			ConnectionID: connectionID,
			Session:      session.Snapshot(),
		},
	})

	logger.Info("Participant attached",
		zap.String("consultation_id", sessionKey),
		zap.String("connection_id", connectionID),
		zap.String("user_id", participant.UserID.String()),
		zap.String("role", string(participant.Role)))

	// The semaphore slot now belongs to the connection; readPump releases it
	acquired = false
	go client.writePump()
	go client.readPump()
}

// readPump reads and dispatches inbound frames until the connection dies
func (c *CallClient) readPump() {
	graceful := false
	defer func() {
		c.disconnect(graceful)
		<-c.hub.semaphore
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval * 2))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval * 2))
		c.hub.consult.RefreshOnline(context.Background(), c.userID)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				graceful = true
			} else {
				logger.Debug("WebSocket connection lost",
					zap.String("connection_id", c.connectionID),
					zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			logger.Warn("Invalid frame from WebSocket",
				zap.String("connection_id", c.connectionID),
				zap.Error(err))
			continue
		}

		if c.hub.metrics != nil {
			c.hub.metrics.RecordWebSocketMessage(frame.Type, "inbound")
		}
		c.dispatch(&frame)
	}
}

// dispatch routes one frame to the session. Command failures are reported
// back to the sender only; they never terminate the session.
func (c *CallClient) dispatch(frame *clientFrame) {
	session, err := c.hub.registry.Get(c.sessionKey)
	if err != nil {
		c.sendError(apperrors.SessionNotFoundError(c.sessionKey))
		return
	}

	switch frame.Type {
	case FrameReady:
		session.SetReady(c.connectionID)

	case FrameSignal:
		if frame.Signal == nil {
			c.sendError(apperrors.InvalidInputError("signal frame requires a signal envelope"))
			return
		}
		if err := session.Relay(c.connectionID, frame.Signal); err != nil {
			c.sendError(err)
		}

	case FrameMedia:
		if frame.Media == nil {
			c.sendError(apperrors.InvalidInputError("media frame requires a media patch"))
			return
		}
		session.UpdateMediaState(c.connectionID, *frame.Media)

	case FrameChat:
		if _, err := session.Chat(c.connectionID, sanitize.ChatContent(frame.Content)); err != nil {
			c.sendError(err)
		}

	case FrameQuality:
		session.ReportQuality(c.connectionID, frame.Issue, frame.Stats)

	case FrameRecordingStart:
		if err := session.StartRecording(c.connectionID); err != nil {
			c.sendError(err)
		}

	case FrameRecordingStop:
		if err := session.StopRecording(c.connectionID); err != nil {
			c.sendError(err)
		}

	case FrameEndCall:
		if err := session.EndCall(c.connectionID); err != nil {
			c.sendError(err)
		}

	case FrameKick:
		if err := c.hub.registry.Kick(c.connectionID, frame.TargetConnectionID); err != nil {
			c.sendError(err)
			return
		}
		// The kicked participant has already left the session; drop their socket
		c.hub.closeConnection(frame.TargetConnectionID)

	default:
		c.sendError(apperrors.InvalidInputError("unknown frame type"))
	}
}

// sendError reports a command failure to this connection only
func (c *CallClient) sendError(err error) {
	payload := coordinator.ErrorPayload{
		Code:    string(apperrors.ErrCodeInvalidInput),
		Message: err.Error(),
	}
	if appErr := apperrors.GetAppError(err); appErr != nil {
		payload.Code = string(appErr.Code)
		payload.Message = appErr.Message
	}

	c.hub.Send(c.connectionID, &coordinator.Event{
		Type:       coordinator.EventError,
		SessionKey: c.sessionKey,
		Timestamp:  time.Now(),
		Payload:    payload,
	})
}

// disconnect detaches the connection from its session and the hub
func (c *CallClient) disconnect(graceful bool) {
	reason := domain.LeaveTimeout
	if graceful {
		reason = domain.LeaveGraceful
	}

	if _, err := c.hub.registry.Disconnect(c.connectionID, reason); err == nil {
		logger.Info("Participant detached",
			zap.String("consultation_id", c.sessionKey),
			zap.String("connection_id", c.connectionID),
			zap.String("reason", string(reason)))
	}

	c.hub.consult.MarkOffline(context.Background(), c.userID)
	c.hub.removeClient(c)
	c.conn.Close()
}

// writePump writes queued events and keepalive pings to the WebSocket
func (c *CallClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
