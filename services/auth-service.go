package services

import (
	"context"
	"fmt"

	"taskboard-project/backend/apperrors"
	"taskboard-project/backend/logging"
	"taskboard-project/backend/models"
	"taskboard-project/backend/utils"
)

// AuthService registers and authenticates users against the identity store
// and issues bearer tokens.
type AuthService struct {
	userService *UserService
}

func NewAuthService(userService *UserService) *AuthService {
	return &AuthService{userService: userService}
}

// Register creates a new user and returns an access token for it.
func (s *AuthService) Register(ctx context.Context, username, password string) (string, error) {
	existing, err := s.userService.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", apperrors.Conflict("username already taken")
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return "", err
	}

	user, err := s.userService.CreateUser(ctx, &models.User{
		Username: username,
		Password: hashed,
	})
	if err != nil {
		return "", err
	}

	token, err := utils.GenerateAuthToken(user.ID.Hex(), user.Username)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %v", err)
	}

	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: User %s registered", username)
	return token, nil
}

// Login authenticates a user and returns an access token. An unknown
// username and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userService.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil || !utils.CheckPassword(user.Password, password) {
		return "", apperrors.Unauthorized("invalid credentials")
	}

	token, err := utils.GenerateAuthToken(user.ID.Hex(), user.Username)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %v", err)
	}

	logging.Logger.Infof("Event ID: USER_LOGIN, Description: User %s logged in", username)
	return token, nil
}
