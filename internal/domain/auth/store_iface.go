package auth

import (
	"context"
	"time"
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, userID UserID) (User, error)
	CreateUser(ctx context.Context, user User) (UserID, error)
	UserIDsByRole(ctx context.Context, role string) ([]UserID, error)
	UpdateLastLogin(ctx context.Context, userID UserID) error
	CreateSession(ctx context.Context, userID UserID, refreshTokenHash string, expires time.Time) (string, error)
	FindSession(ctx context.Context, refreshTokenHash string) (Session, error)
	RotateSession(ctx context.Context, sessionID, oldHash, newHash string, expires time.Time) (bool, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

type Session struct {
	ID        string
	UserID    UserID
	ExpiresAt time.Time
	Revoked   bool
}
