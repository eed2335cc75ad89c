package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
)

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type Service struct {
	store      StoreAPI
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(store StoreAPI, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{store: store, secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

func (s *Service) Login(ctx context.Context, email, password string) (Tokens, User, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Tokens{}, User{}, ErrInvalidCredentials
		}
		return Tokens{}, User{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return Tokens{}, User{}, ErrInvalidCredentials
	}

	refresh, err := GenerateOpaqueToken()
	if err != nil {
		return Tokens{}, User{}, err
	}
	sessionID, err := s.store.CreateSession(ctx, user.ID, HashToken(refresh), s.now().Add(s.refreshTTL))
	if err != nil {
		return Tokens{}, User{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		return Tokens{}, User{}, err
	}

	access, err := s.accessToken(user, sessionID)
	if err != nil {
		return Tokens{}, User{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.accessTTL.Seconds())}, user, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// invalidated; replaying it fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, ErrInvalidRefresh
	}
	oldHash := HashToken(refreshToken)
	sess, err := s.store.FindSession(ctx, oldHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tokens{}, ErrInvalidRefresh
		}
		return Tokens{}, err
	}
	if sess.Revoked || !sess.ExpiresAt.After(s.now()) {
		return Tokens{}, ErrInvalidRefresh
	}

	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Tokens{}, ErrInvalidRefresh
		}
		return Tokens{}, err
	}
	if !user.IsActive {
		return Tokens{}, ErrInvalidRefresh
	}

	next, err := GenerateOpaqueToken()
	if err != nil {
		return Tokens{}, err
	}
	rotated, err := s.store.RotateSession(ctx, sess.ID, oldHash, HashToken(next), s.now().Add(s.refreshTTL))
	if err != nil {
		return Tokens{}, err
	}
	if !rotated {
		return Tokens{}, ErrInvalidRefresh
	}

	access, err := s.accessToken(user, sess.ID)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: next, ExpiresIn: int64(s.accessTTL.Seconds())}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	sess, err := s.store.FindSession(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	return s.store.RevokeSession(ctx, sess.ID)
}

func (s *Service) accessToken(user User, sessionID string) (string, error) {
	return GenerateToken(s.secret, Claims{
		UserID:        string(user.ID),
		RoleName:      user.Role,
		ApprovalLevel: user.ApprovalLevel,
		SessionID:     sessionID,
	}, s.accessTTL)
}
