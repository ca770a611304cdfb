package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/weiliu/h5client/internal/db"
	"github.com/weiliu/h5client/internal/models"
	"github.com/weiliu/h5client/internal/session"
)

// PostgresSessionStore persists one session row per device name, letting a
// fleet of shared kiosks keep their sign-in state in a central database.
type PostgresSessionStore struct {
	pool   db.Pool
	device string
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool, device string) (*PostgresSessionStore, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil, ErrDeviceRequired
	}
	return &PostgresSessionStore{pool: pool, device: device}, nil
}

// Save stores or replaces the device's session.
func (s *PostgresSessionStore) Save(ctx context.Context, sess models.Session) error {
	var userInfo []byte
	if sess.Profile != nil {
		encoded, err := json.Marshal(sess.Profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		userInfo = encoded
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO device_sessions (device_name, token, user_info, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (device_name)
        DO UPDATE SET token = EXCLUDED.token, user_info = EXCLUDED.user_info, updated_at = EXCLUDED.updated_at
    `, s.device, sess.Token, userInfo)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Load fetches the device's session.
func (s *PostgresSessionStore) Load(ctx context.Context) (models.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT token, user_info
        FROM device_sessions
        WHERE device_name = $1
    `, s.device)

	var (
		sess     models.Session
		userInfo []byte
	)
	if err := row.Scan(&sess.Token, &userInfo); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, session.ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("select session: %w", err)
	}

	if len(userInfo) > 0 {
		var profile models.Profile
		if err := json.Unmarshal(userInfo, &profile); err != nil {
			return models.Session{}, fmt.Errorf("decode profile: %w", err)
		}
		sess.Profile = &profile
	}

	return sess, nil
}

// Clear removes the device's session. Clearing an absent session succeeds.
func (s *PostgresSessionStore) Clear(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM device_sessions
        WHERE device_name = $1
    `, s.device); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

var _ session.Store = (*PostgresSessionStore)(nil)
