package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hrerp/internal/platform/querier"
)

var ErrUserNotFound = errors.New("user not found")

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const userColumns = "id::text, email, password_hash, role, approval_level, is_active"

func scanUser(row pgx.Row) (User, error) {
	var u User
	var id string
	if err := row.Scan(&id, &u.Email, &u.PasswordHash, &u.Role, &u.ApprovalLevel, &u.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	u.ID = UserID(id)
	return u, nil
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE lower(email) = lower($1) AND is_active = true
  `, email))
}

func (s *Store) GetUser(ctx context.Context, userID UserID) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", string(userID)))
}

func (s *Store) CreateUser(ctx context.Context, user User) (UserID, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role, approval_level, is_active)
    VALUES ($1,$2,$3,$4,true)
    RETURNING id::text
  `, user.Email, user.PasswordHash, user.Role, user.ApprovalLevel).Scan(&id); err != nil {
		return "", err
	}
	return UserID(id), nil
}

func (s *Store) UserIDsByRole(ctx context.Context, role string) ([]UserID, error) {
	rows, err := s.DB.Query(ctx, "SELECT id::text FROM users WHERE role = $1 AND is_active = true", role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, UserID(id))
	}
	return ids, rows.Err()
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID UserID) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", string(userID))
	return err
}

func (s *Store) CreateSession(ctx context.Context, userID UserID, refreshTokenHash string, expires time.Time) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO sessions (user_id, refresh_token, expires_at)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, string(userID), refreshTokenHash, expires).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) FindSession(ctx context.Context, refreshTokenHash string) (Session, error) {
	var sess Session
	var userID string
	var revokedAt *time.Time
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, user_id::text, expires_at, revoked_at
    FROM sessions
    WHERE refresh_token = $1
  `, refreshTokenHash).Scan(&sess.ID, &userID, &sess.ExpiresAt, &revokedAt)
	if err != nil {
		return Session{}, err
	}
	sess.UserID = UserID(userID)
	sess.Revoked = revokedAt != nil
	return sess, nil
}

// RotateSession swaps the stored refresh hash only if it still matches oldHash,
// so two concurrent refreshes with the same token cannot both succeed.
func (s *Store) RotateSession(ctx context.Context, sessionID, oldHash, newHash string, expires time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE sessions
    SET refresh_token = $1, expires_at = $2, rotated_at = now()
    WHERE id = $3 AND refresh_token = $4 AND revoked_at IS NULL
  `, newHash, expires, sessionID, oldHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL", sessionID)
	return err
}
