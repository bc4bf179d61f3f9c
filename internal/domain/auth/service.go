package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"hrms/internal/platform/revoke"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	Store    *Store
	Revoker  revoke.Revoker
	Secret   string
	TokenTTL time.Duration
}

func NewService(store *Store, revoker revoke.Revoker, secret string, ttl time.Duration) *Service {
	return &Service{Store: store, Revoker: revoker, Secret: secret, TokenTTL: ttl}
}

type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.Store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.Secret, uuid.NewString(), Claims{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Role:      user.Role,
	}, s.TokenTTL)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: user}, nil
}

// Logout revokes the presented token until its natural expiry.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := ParseToken(s.Secret, tokenString)
	if err != nil {
		return err
	}
	ttl := s.TokenTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.Revoker.Revoke(ctx, claims.ID, ttl)
}
