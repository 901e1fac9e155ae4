package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sitter-link/internal/domain"
)

// SessionRepository persiste sesiones de padres cuando no hay Redis.
// Devuelve pgx.ErrNoRows si la sesión no existe.
type SessionRepository interface {
	Upsert(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, id string) (domain.Session, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PgSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSessionRepository(pool *pgxpool.Pool) *PgSessionRepository {
	return &PgSessionRepository{pool: pool}
}

func (r *PgSessionRepository) Upsert(ctx context.Context, session domain.Session) error {
	const query = `
		INSERT INTO sessions (id, user_id, issued_at, last_activity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id, issued_at = EXCLUDED.issued_at, last_activity = EXCLUDED.last_activity
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.IssuedAt,
		session.LastActivity,
	)
	return err
}

func (r *PgSessionRepository) GetByID(ctx context.Context, id string) (domain.Session, error) {
	const query = `
		SELECT id, user_id, issued_at, last_activity
		FROM sessions
		WHERE id = $1
	`
	var session domain.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.IssuedAt,
		&session.LastActivity,
	)
	if err != nil {
		return domain.Session{}, err
	}
	session.IssuedAt = session.IssuedAt.UTC()
	session.LastActivity = session.LastActivity.UTC()
	return session, nil
}

// TouchActivity nunca retrocede la marca: una escritura tardía no acorta la sesión.
func (r *PgSessionRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE sessions
		SET last_activity = GREATEST(last_activity, $2)
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *PgSessionRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
