package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
)

// Forwarder carries an encoded event to other instances.
type Forwarder interface {
	Forward(ctx context.Context, topic string, frame []byte)
}

// Hub fans events out to the clients subscribed to a topic. Delivery is
// at-most-once: a client whose buffer is full misses the event.
// Deliveries hold the exclusive lock, so every client sees one topic's events
// in publish order.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	forwarder Forwarder
	log       *logrus.Entry
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// SetForwarder makes every Publish also go out to other instances.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarder = f
}

// Register adds a connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	connectionsActive.Inc()
	h.log.WithFields(logrus.Fields{
		"conn_id": c.ID,
		"user_id": c.UserID,
		"total":   len(h.clients),
	}).Info("connection registered")
}

// Unregister drops a connection from every topic and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for topic := range c.topics {
		h.leave(c, topic)
	}
	delete(h.clients, c)
	c.closed = true
	close(c.send)
	connectionsActive.Dec()
	h.log.WithFields(logrus.Fields{
		"conn_id": c.ID,
		"user_id": c.UserID,
		"dropped": c.Dropped(),
		"total":   len(h.clients),
	}).Info("connection unregistered")
}

// Subscribe adds c to topic. Subscribing twice is a no-op.
func (h *Hub) Subscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if _, ok := c.topics[topic]; ok {
		return
	}
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[*Client]struct{})
		h.topics[topic] = members
	}
	members[c] = struct{}{}
	c.topics[topic] = struct{}{}
	subscriptionsActive.Inc()
	h.log.WithFields(logrus.Fields{"conn_id": c.ID, "topic": topic}).Debug("subscribed")
}

// Unsubscribe removes c from topic.
func (h *Hub) Unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(c, topic)
}

func (h *Hub) leave(c *Client, topic string) {
	if _, ok := c.topics[topic]; !ok {
		return
	}
	delete(c.topics, topic)
	if members, ok := h.topics[topic]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	subscriptionsActive.Dec()
}

// Publish delivers e to local subscribers of its topic and forwards it to
// other instances. It implements services.Publisher.
func (h *Hub) Publish(ctx context.Context, e models.Event) {
	if e.Type.IsBoardEvent() && e.ProjectID == "" {
		h.log.WithField("event", e.Type).Warn("dropping board event without a project")
		return
	}
	topic := e.Topic()
	if topic == "" {
		h.log.WithField("event", e.Type).Warn("dropping event without a topic")
		return
	}
	frame, err := json.Marshal(e)
	if err != nil {
		h.log.WithError(err).WithField("event", e.Type).Error("failed to encode event")
		return
	}
	eventsPublished.WithLabelValues(string(e.Type)).Inc()

	h.mu.Lock()
	delivered := h.deliver(topic, frame)
	forwarder := h.forwarder
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"topic":     topic,
		"event":     e.Type,
		"delivered": delivered,
	}).Debug("event published")

	if forwarder != nil {
		forwarder.Forward(ctx, topic, frame)
	}
}

// Deliver hands an already encoded event to local subscribers only.
// The relay uses it for events published on other instances.
func (h *Hub) Deliver(topic string, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deliver(topic, frame)
}

func (h *Hub) deliver(topic string, frame []byte) int {
	n := 0
	for c := range h.topics[topic] {
		if c.enqueue(frame) {
			n++
		} else {
			h.log.WithFields(logrus.Fields{"conn_id": c.ID, "topic": topic}).Warn("send buffer full, event dropped")
		}
	}
	return n
}

// SendTo queues a reply for one client only. It reports false if the client is
// gone or its buffer is full.
func (h *Hub) SendTo(c *Client, e models.Event) bool {
	frame, err := json.Marshal(e)
	if err != nil {
		h.log.WithError(err).WithField("event", e.Type).Error("failed to encode reply")
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.enqueue(frame)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers returns the number of clients subscribed to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close unregisters every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
