package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"taskboard/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RelayChannelPrefix prefixes the Redis channel of every topic.
const RelayChannelPrefix = "board:"

// envelope is the Redis message carrying one event between instances.
type envelope struct {
	InstanceID string          `json:"instanceId"`
	Topic      string          `json:"topic"`
	Event      json.RawMessage `json:"event"`
}

// Relay connects hubs of several instances through Redis pub/sub.
// Outbound events are published on board:<topic>; inbound events from other
// instances are delivered to the local hub. Messages from this instance are skipped.
type Relay struct {
	redis      *services.RedisService
	hub        *Hub
	instanceID string
	log        *logrus.Entry

	pubsub *redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRelay creates a relay for hub. Call Start to begin receiving.
func NewRelay(redisService *services.RedisService, hub *Hub, instanceID string, log *logrus.Entry) *Relay {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		redis:      redisService,
		hub:        hub,
		instanceID: instanceID,
		log:        log.WithField("instance_id", instanceID),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start subscribes to every board channel and attaches the relay to the hub.
func (r *Relay) Start() error {
	r.pubsub = r.redis.PSubscribe(r.ctx, RelayChannelPrefix+"*")

	// Wait for subscription confirmation
	if _, err := r.pubsub.Receive(r.ctx); err != nil {
		_ = r.pubsub.Close()
		r.pubsub = nil
		return fmt.Errorf("failed to subscribe relay: %w", err)
	}

	go r.processMessages()
	r.hub.SetForwarder(r)

	r.log.Info("relay started")
	return nil
}

func (r *Relay) processMessages() {
	defer close(r.done)
	ch := r.pubsub.Channel()

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleMessage(msg)
		}
	}
}

func (r *Relay) handleMessage(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		relayMessages.WithLabelValues("in", "invalid").Inc()
		r.log.WithError(err).WithField("channel", msg.Channel).Warn("failed to decode relay message")
		return
	}

	// Skip messages from this instance (avoid double delivery)
	if env.InstanceID == r.instanceID {
		relayMessages.WithLabelValues("in", "own").Inc()
		return
	}

	topic := strings.TrimPrefix(msg.Channel, RelayChannelPrefix)
	if env.Topic != "" && env.Topic != topic {
		relayMessages.WithLabelValues("in", "invalid").Inc()
		r.log.WithFields(logrus.Fields{"channel": msg.Channel, "topic": env.Topic}).Warn("relay topic does not match channel")
		return
	}

	delivered := r.hub.Deliver(topic, env.Event)
	relayMessages.WithLabelValues("in", "delivered").Inc()
	r.log.WithFields(logrus.Fields{
		"topic":     topic,
		"from":      env.InstanceID,
		"delivered": delivered,
	}).Debug("relayed event delivered")
}

// Forward publishes an encoded event for other instances. Failures are logged;
// local delivery has already happened.
func (r *Relay) Forward(ctx context.Context, topic string, frame []byte) {
	data, err := json.Marshal(envelope{
		InstanceID: r.instanceID,
		Topic:      topic,
		Event:      frame,
	})
	if err != nil {
		relayMessages.WithLabelValues("out", "error").Inc()
		r.log.WithError(err).WithField("topic", topic).Error("failed to encode relay message")
		return
	}

	if err := r.redis.Publish(ctx, RelayChannelPrefix+topic, data); err != nil {
		relayMessages.WithLabelValues("out", "error").Inc()
		r.log.WithError(err).WithField("topic", topic).Error("failed to publish relay message")
		return
	}
	relayMessages.WithLabelValues("out", "published").Inc()
}

// Stop detaches the relay and closes its subscription.
func (r *Relay) Stop() error {
	var err error
	r.once.Do(func() {
		r.hub.SetForwarder(nil)
		r.cancel()
		if r.pubsub != nil {
			err = r.pubsub.Close()
			<-r.done
		}
		r.log.Info("relay stopped")
	})
	return err
}
