package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/pkg/auth"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthService registers users, checks credentials and resolves bearer tokens.
type AuthService struct {
	repo   repository.Repository
	tokens *auth.TokenService
}

// NewAuthService creates an auth service
func NewAuthService(repo repository.Repository, tokens *auth.TokenService) *AuthService {
	return &AuthService{repo: repo, tokens: tokens}
}

// Register creates a user and issues a token.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" || email == "" || req.Password == "" {
		return nil, models.Errorf(models.ErrValidation, "Username, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.Errorf(models.ErrValidation, "Invalid email address")
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, models.Errorf(models.ErrValidation, "%s", capitalize(err.Error()))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return s.respond(user)
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	invalid := models.Errorf(models.ErrUnauthenticated, "Invalid email or password")

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, invalid
	}

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, invalid
	}

	return s.respond(user)
}

// Authenticate resolves a bearer token to an existing user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return nil, models.Errorf(models.ErrUnauthenticated, "Not authorized, token failed")
	}

	id, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return nil, models.Errorf(models.ErrUnauthenticated, "Not authorized, token failed")
	}

	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Errorf(models.ErrUnauthenticated, "Not authorized, user not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) respond(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Avatar:   user.Avatar,
		Token:    token,
	}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
