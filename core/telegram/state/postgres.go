package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type sessionRow struct {
	UserID    int64     `db:"user_id"`
	State     string    `db:"state"`
	Data      string    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

type postgresStore struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresStore keeps sessions in the conversations table.
// Rows idle for longer than ttl are treated as missing.
func NewPostgresStore(db *sqlx.DB, ttl time.Duration) Store {
	return &postgresStore{db: db, ttl: ttl, now: time.Now}
}

const (
	selectSessionSQL = `SELECT user_id, state, data, updated_at FROM conversations WHERE user_id = $1`
	upsertSessionSQL = `
INSERT INTO conversations (user_id, state, data, updated_at)
VALUES (:user_id, :state, :data, :updated_at)
ON CONFLICT (user_id) DO UPDATE
SET state = EXCLUDED.state, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	deleteSessionSQL = `DELETE FROM conversations WHERE user_id = $1`
)

func (p *postgresStore) Get(ctx context.Context, userID int64) (*Session, error) {
	var row sessionRow
	if err := p.db.GetContext(ctx, &row, selectSessionSQL, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	if expired(row.UpdatedAt, p.ttl, p.now()) {
		return nil, ErrNotFound
	}
	session := &Session{
		UserID:    row.UserID,
		State:     State(row.State),
		Data:      make(map[string]string),
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal([]byte(row.Data), &session.Data); err != nil {
			return nil, fmt.Errorf("decode session data: %w", err)
		}
	}
	return session, nil
}

func (p *postgresStore) Save(ctx context.Context, s *Session) error {
	data := s.Data
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	row := sessionRow{
		UserID:    s.UserID,
		State:     string(s.State),
		Data:      string(raw),
		UpdatedAt: p.now().UTC(),
	}
	if _, err := p.db.NamedExecContext(ctx, upsertSessionSQL, row); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	s.UpdatedAt = row.UpdatedAt
	return nil
}

func (p *postgresStore) Clear(ctx context.Context, userID int64) error {
	if _, err := p.db.ExecContext(ctx, deleteSessionSQL, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
