// Package mongostore is the MongoDB repository backend.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/database"
	"taskboard/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// Store implements repository.Repository on MongoDB.
type Store struct {
	uri string
	db  *database.MongoDB

	users         *mongo.Collection
	projects      *mongo.Collection
	tasks         *mongo.Collection
	comments      *mongo.Collection
	notifications *mongo.Collection
}

// New creates a store for uri. It connects in OnStart.
func New(uri string) *Store {
	return &Store{uri: uri}
}

// NewWithDB creates a store on an already connected database.
func NewWithDB(db *database.MongoDB) *Store {
	s := &Store{db: db}
	s.bind()
	return s
}

// OnStart connects, binds the collections and ensures indexes.
func (s *Store) OnStart(ctx context.Context) error {
	if s.db == nil {
		db, err := database.NewMongoDB(s.uri)
		if err != nil {
			return err
		}
		s.db = db
		s.bind()
	}
	if err := s.db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize indexes: %w", err)
	}
	return nil
}

// OnStop disconnects from MongoDB.
func (s *Store) OnStop(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close(ctx)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("mongodb not connected")
	}
	return s.db.Ping(ctx)
}

func (s *Store) bind() {
	s.users = s.db.Collection(database.CollectionUsers)
	s.projects = s.db.Collection(database.CollectionProjects)
	s.tasks = s.db.Collection(database.CollectionTasks)
	s.comments = s.db.Collection(database.CollectionComments)
	s.notifications = s.db.Collection(database.CollectionNotifications)
}

func notFound(what string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Errorf(models.ErrNotFound, "%s not found", what)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func checkMatched(result *mongo.UpdateResult, what string) error {
	if result.MatchedCount == 0 {
		return models.Errorf(models.ErrNotFound, "%s not found", what)
	}
	return nil
}
