package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sitter-link/internal/domain"
)

// UserRepository define el contrato de persistencia para cuentas de padres.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateFamily(ctx context.Context, id string, family domain.Family) error
	UpdatePlan(ctx context.Context, id string, plan domain.Plan) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, mobile, family_notes, plan, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Mobile,
		user.FamilyNotes,
		string(user.Plan),
		user.CreatedAt,
	)
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT id, email, password_hash, first_name, last_name, mobile, family_notes, plan, created_at
		FROM users
		WHERE id = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, email, password_hash, first_name, last_name, mobile, family_notes, plan, created_at
		FROM users
		WHERE email = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) UpdateFamily(ctx context.Context, id string, family domain.Family) error {
	const query = `
		UPDATE users
		SET first_name = $2, last_name = $3, mobile = $4, family_notes = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, family.FirstName, family.LastName, family.Mobile, family.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) UpdatePlan(ctx context.Context, id string, plan domain.Plan) error {
	const query = `UPDATE users SET plan = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, string(plan))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		plan string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Mobile,
		&u.FamilyNotes,
		&plan,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Plan = domain.Plan(plan)
	return u, nil
}
