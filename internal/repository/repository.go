// Package repository provides factory for repositories.
package repository

import (
	"context"
	"fmt"

	"taskboard/internal/repository/memory"
	"taskboard/internal/repository/mongostore"
)

// Backend names accepted by New.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Repository aggregates all persistence interfaces.
type Repository interface {
	LifecycleInterface
	UserInterface
	ProjectInterface
	TaskInterface
	CommentInterface
	NotificationInterface
}

// New constructs repository backend by name. The backend is not usable until OnStart returns.
func New(_ context.Context, name, mongoURI string) (Repository, error) {
	switch name {
	case BackendMongo:
		return mongostore.New(mongoURI), nil
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown repo backend: %s", name)
	}
}

var (
	_ Repository = (*mongostore.Store)(nil)
	_ Repository = (*memory.Store)(nil)
)
