package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

const DefaultProfile = "default"

// Store keeps one session row per profile so several client processes share a login.
type Store struct {
	db      *sql.DB
	profile string
	now     func() time.Time
}

var _ ports.SessionStore = (*Store)(nil)

func New(db *sql.DB, profile string) *Store {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = DefaultProfile
	}
	return &Store{db: db, profile: profile, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent client startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS client_sessions (
	profile TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	user_json JSONB,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Load returns nil without error when the profile has no session.
func (s *Store) Load(ctx context.Context) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, user_json, updated_at
FROM client_sessions
WHERE profile = $1
`, s.profile)

	var session domain.Session
	var userRaw []byte
	if err := row.Scan(&session.Token, &userRaw, &session.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if len(userRaw) > 0 && string(userRaw) != "null" {
		var user domain.User
		if err := json.Unmarshal(userRaw, &user); err != nil {
			return nil, fmt.Errorf("unmarshal session user: %w", err)
		}
		session.User = &user
	}
	return &session, nil
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	var userJSON []byte
	if session.User != nil {
		raw, err := json.Marshal(session.User)
		if err != nil {
			return fmt.Errorf("marshal session user: %w", err)
		}
		userJSON = raw
	}
	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO client_sessions (profile, token, user_json, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (profile) DO UPDATE
SET token = EXCLUDED.token, user_json = EXCLUDED.user_json, updated_at = EXCLUDED.updated_at
`, s.profile, session.Token, userJSON, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_sessions WHERE profile = $1`, s.profile); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
