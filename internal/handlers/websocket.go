package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"taskboard/internal/middleware"
	"taskboard/internal/models"
	"taskboard/internal/realtime"
	"taskboard/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketHandler serves the realtime board connection
type WebSocketHandler struct {
	hub               *realtime.Hub
	projectService    *services.ProjectService
	messagesPerSecond rate.Limit
	burst             int
	log               *logrus.Entry
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *realtime.Hub, projectService *services.ProjectService, messagesPerSecond, burst int, log *logrus.Entry) *WebSocketHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WebSocketHandler{
		hub:               hub,
		projectService:    projectService,
		messagesPerSecond: rate.Limit(messagesPerSecond),
		burst:             burst,
		log:               log,
	}
}

// connection is one websocket session. writeMu serializes frames and pings.
type connection struct {
	conn    *websocket.Conn
	client  *realtime.Client
	user    *models.User
	writeMu sync.Mutex
	log     *logrus.Entry
}

// Handle handles a new WebSocket connection
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	user, ok := c.Locals(middleware.LocalUser).(*models.User)
	if !ok || user == nil {
		h.log.Warn("websocket connection without an authenticated user")
		return
	}

	client := realtime.NewClient(user.ID.Hex())
	conn := &connection{
		conn:   c,
		client: client,
		user:   user,
		log:    h.log.WithFields(logrus.Fields{"conn_id": client.ID, "user_id": client.UserID}),
	}

	// Create a done channel to signal goroutines to stop
	done := make(chan struct{})

	h.hub.Register(client)
	h.hub.Subscribe(client, models.UserTopic(client.UserID))
	defer func() {
		close(done)
		h.hub.Unregister(client)
	}()

	_ = c.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go conn.writeLoop()
	go conn.pingLoop(done)

	h.hub.SendTo(client, models.Event{Type: models.EventConnected, Message: "Connected"})

	h.readLoop(conn)
}

// pingLoop sends periodic pings to keep the WebSocket connection alive
func (conn *connection) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.writeMu.Lock()
			err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout))
			conn.writeMu.Unlock()
			if err != nil {
				conn.log.WithError(err).Warn("ping failed")
				return
			}
		}
	}
}

// writeLoop drains the client's mailbox until the hub closes it.
func (conn *connection) writeLoop() {
	for frame := range conn.client.Send() {
		conn.writeMu.Lock()
		_ = conn.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := conn.conn.WriteMessage(websocket.TextMessage, frame)
		conn.writeMu.Unlock()
		if err != nil {
			conn.log.WithError(err).Warn("write failed, closing connection")
			_ = conn.conn.Close()
			// Keep draining so the hub never sees a stuck mailbox.
			for range conn.client.Send() {
			}
			return
		}
	}
}

// readLoop handles incoming messages from the client
func (h *WebSocketHandler) readLoop(conn *connection) {
	defer func() {
		if r := recover(); r != nil {
			conn.log.WithField("panic", r).Error("panic in websocket read loop")
		}
	}()

	limiter := rate.NewLimiter(h.messagesPerSecond, h.burst)

	for {
		_, msg, err := conn.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				conn.log.WithError(err).Info("websocket read error")
			}
			return
		}

		// Reset read deadline after successful read
		_ = conn.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if !limiter.Allow() {
			realtime.RecordInbound("rate_limited")
			h.replyError(conn, "rate_limited", "Too many messages, slow down")
			continue
		}

		var clientMsg models.ClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			realtime.RecordInbound("invalid")
			h.replyError(conn, "invalid_format", "Invalid message format")
			continue
		}

		switch clientMsg.Type {
		case "ping":
			realtime.RecordInbound(clientMsg.Type)
			h.hub.SendTo(conn.client, models.Event{Type: models.EventPong})
		case "join-project":
			realtime.RecordInbound(clientMsg.Type)
			h.handleJoin(conn, clientMsg.ProjectID)
		case "leave-project":
			realtime.RecordInbound(clientMsg.Type)
			projectID := canonicalProjectID(clientMsg.ProjectID)
			h.hub.Unsubscribe(conn.client, models.ProjectTopic(projectID))
			h.hub.SendTo(conn.client, models.Event{Type: models.EventLeftProject, ProjectID: projectID})
		default:
			realtime.RecordInbound("unknown")
			h.replyError(conn, "unknown_type", "Unknown message type")
		}
	}
}

func (h *WebSocketHandler) handleJoin(conn *connection, projectID string) {
	if strings.TrimSpace(projectID) == "" {
		h.replyError(conn, "invalid_format", "projectId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := h.projectService.CanView(ctx, conn.user.ID, projectID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			h.replyError(conn, "not_found", models.Message(err, "Project not found"))
		case errors.Is(err, models.ErrAccessDenied):
			h.replyError(conn, "forbidden", models.Message(err, "Access denied"))
		default:
			conn.log.WithError(err).WithField("project_id", projectID).Error("failed to check project access")
			h.replyError(conn, "server_error", "Server error")
		}
		return
	}

	topic := models.ProjectTopic(id.Hex())
	h.hub.Subscribe(conn.client, topic)
	h.hub.SendTo(conn.client, models.Event{Type: models.EventJoinedProject, ProjectID: id.Hex()})
	conn.log.WithField("topic", topic).Debug("joined project")
}

// canonicalProjectID returns the id in the form events are published under.
// Ids that do not parse are returned trimmed; no topic carries them.
func canonicalProjectID(raw string) string {
	raw = strings.TrimSpace(raw)
	if id, err := primitive.ObjectIDFromHex(raw); err == nil {
		return id.Hex()
	}
	return raw
}

func (h *WebSocketHandler) replyError(conn *connection, code, message string) {
	h.hub.SendTo(conn.client, models.Event{Type: models.EventError, Code: code, Message: message})
}
