package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
)

// ErrConflict indica que una clave unica (telefono, email) ya esta en uso.
var ErrConflict = errors.New("unique constraint violated")

// UserRepository define el contrato de persistencia para usuarios.
// Las busquedas sin resultado devuelven pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByPhone(ctx context.Context, phoneNumber string) (domain.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdatePhone(ctx context.Context, id, phoneNumber string) error
	UpdateProfile(ctx context.Context, id, firstName, lastName string) error
	SetSuperuser(ctx context.Context, id string, superuser bool) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const selectUser = `
	SELECT id, phone_number, email, first_name, last_name, password_hash,
	       is_active, is_staff, is_superuser, date_joined, date_updated
	FROM users
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, phone_number, email, first_name, last_name, password_hash,
		                   is_active, is_staff, is_superuser, date_joined, date_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.PhoneNumber.String(),
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsActive,
		user.IsStaff,
		user.IsSuperuser,
		user.DateJoined,
		user.DateUpdated,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (r *PgUserRepository) GetByPhone(ctx context.Context, phoneNumber string) (domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE phone_number = $1`, phoneNumber)
}

func (r *PgUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE users SET is_active = $2, date_updated = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, active, time.Now().UTC())
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, date_updated = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash, time.Now().UTC())
}

// UpdatePhone cambia el telefono y deja la cuenta inactiva hasta verificar el nuevo numero.
func (r *PgUserRepository) UpdatePhone(ctx context.Context, id, phoneNumber string) error {
	const query = `UPDATE users SET phone_number = $2, is_active = FALSE, date_updated = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, phoneNumber, time.Now().UTC())
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id, firstName, lastName string) error {
	const query = `UPDATE users SET first_name = $2, last_name = $3, date_updated = $4 WHERE id = $1`
	return r.execOne(ctx, query, id, firstName, lastName, time.Now().UTC())
}

// SetSuperuser marca tambien is_staff para mantener los dos flags alineados.
func (r *PgUserRepository) SetSuperuser(ctx context.Context, id string, superuser bool) error {
	const query = `UPDATE users SET is_superuser = $2, is_staff = $2, date_updated = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, superuser, time.Now().UTC())
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u           domain.User
		phoneNumber string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&phoneNumber,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.DateJoined,
		&u.DateUpdated,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.PhoneNumber = phone.FromStored(phoneNumber)
	return u, nil
}

func (r *PgUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}
