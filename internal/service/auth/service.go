package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trackit/internal/apperr"
	"trackit/internal/model"
	"trackit/internal/store"
	"trackit/pkg/util"
)

type Service struct {
	users  store.UserStore
	tokens util.TokenConfig
	logger *zap.Logger
}

func NewService(users store.UserStore, tokens util.TokenConfig, logger *zap.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// Register creates a new user.
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", apperr.ErrInvalidArgument)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, apperr.FromStore(err, "username or email")
	}

	s.logger.Info("User registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Login checks user credentials and returns JWT.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthenticated)
		}
		return "", err
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return "", fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthenticated)
	}

	return util.GenerateJWT(s.tokens, u.ID, u.Username, u.Email)
}

// Authenticate verifies a bearer token.
func (s *Service) Authenticate(token string) (util.Identity, error) {
	id, err := util.ParseJWT(token, s.tokens)
	if err != nil {
		return util.Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	return id, nil
}
