package mongostore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateUser inserts a new user; username and email are unique.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Errorf(models.ErrDuplicate, "User already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID
func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, notFound("User", err)
	}
	return &user, nil
}

// GetUserByEmail returns a user by email, case-insensitively
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&user)
	if err != nil {
		return nil, notFound("User", err)
	}
	return &user, nil
}

func (s *Store) GetUsers(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return s.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) GetUsersByUsername(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return []models.User{}, nil
	}
	return s.findUsers(ctx, bson.M{"username": bson.M{"$in": usernames}})
}

func (s *Store) findUsers(ctx context.Context, filter bson.M) ([]models.User, error) {
	cursor, err := s.users.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}
