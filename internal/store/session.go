package store

import (
	"context"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/GoldenEggs-Workshop/spend-what-server/types"
)

// SessionRepository handles persistence for login sessions.
type SessionRepository struct {
	q Queryer
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	const query = `
		INSERT INTO user_sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		session.Token,
		session.UserID,
		session.ExpiresAt,
	).Scan(&session.ID); err != nil {
		return types.Session{}, mapScanErr(err)
	}
	return session, nil
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (types.Session, error) {
	const query = `
		SELECT id, token, user_id, expires_at
		FROM user_sessions
		WHERE token = $1`
	var session types.Session
	err := r.q.QueryRowContext(ctx, query, token).Scan(
		&session.ID,
		&session.Token,
		&session.UserID,
		&session.ExpiresAt,
	)
	if err != nil {
		return types.Session{}, mapScanErr(err)
	}
	return session, nil
}

func (r *SessionRepository) SetExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	const query = `UPDATE user_sessions SET expires_at = $1 WHERE id = $2`
	return r.exec(ctx, query, expiresAt, id)
}

func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM user_sessions WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) error {
	const query = `DELETE FROM user_sessions WHERE token = $1`
	return r.exec(ctx, query, token)
}

func (r *SessionRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapScanErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.ErrNotFound
	}
	return nil
}
