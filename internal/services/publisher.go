package services

import (
	"context"

	"taskboard/internal/models"
)

// Publisher delivers realtime events. Delivery is best effort: publishing never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Event) {}
