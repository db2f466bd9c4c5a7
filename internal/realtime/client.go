package realtime

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// SendBuffer is the number of outbound frames queued per connection before
// further events for it are dropped.
const SendBuffer = 64

// Client is one websocket connection's mailbox. The hub owns the send channel:
// only the hub writes to it and closes it, always under the hub lock.
type Client struct {
	ID     string
	UserID string

	send    chan []byte
	topics  map[string]struct{}
	closed  bool
	dropped atomic.Int64
}

// NewClient creates a client for userID with a fresh connection id.
func NewClient(userID string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		send:   make(chan []byte, SendBuffer),
		topics: make(map[string]struct{}),
	}
}

// Send returns the channel of outbound frames. It is closed on unregister.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Dropped reports how many frames were discarded for this client.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// enqueue never blocks. Callers hold the hub lock.
func (c *Client) enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		eventsDelivered.Inc()
		return true
	default:
		c.dropped.Add(1)
		eventsDropped.Inc()
		return false
	}
}
