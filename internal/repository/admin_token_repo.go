package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
)

type AdminTokenRepository interface {
	Create(ctx context.Context, token domain.AdminToken) error
	Exists(ctx context.Context, token string) (bool, error)
}

type PgAdminTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgAdminTokenRepository(pool *pgxpool.Pool) *PgAdminTokenRepository {
	return &PgAdminTokenRepository{pool: pool}
}

func (r *PgAdminTokenRepository) Create(ctx context.Context, token domain.AdminToken) error {
	const query = `
		INSERT INTO admin_tokens (token, name, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, token.Token, token.Name, token.CreatedAt)
	return mapWriteError(err)
}

func (r *PgAdminTokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM admin_tokens WHERE token = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
