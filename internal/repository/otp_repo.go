package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
)

// OTPRepository persiste solicitudes de OTP indexadas por register_id.
type OTPRepository interface {
	Create(ctx context.Context, otp domain.OTPRequest) error
	GetByRegisterID(ctx context.Context, registerID string) (domain.OTPRequest, error)
	// Update bloquea la fila, aplica fn y persiste el resultado en la misma transaccion.
	// Si fn devuelve error no se escribe nada y el error se propaga tal cual.
	Update(ctx context.Context, registerID string, fn func(*domain.OTPRequest) error) (domain.OTPRequest, error)
	// ReplacePending borra los ciclos sin verificar del mismo telefono y tipo e inserta otp,
	// todo en una transaccion.
	ReplacePending(ctx context.Context, otp domain.OTPRequest) error
	DeleteByPhone(ctx context.Context, phoneNumber string) error
	Delete(ctx context.Context, registerID string) error
}

type PgOTPRepository struct {
	pool *pgxpool.Pool
}

func NewPgOTPRepository(pool *pgxpool.Pool) *PgOTPRepository {
	return &PgOTPRepository{pool: pool}
}

const selectOTP = `
	SELECT register_id, phone_number, otp_code, request_type, is_verified,
	       created_at, updated_at, expires_at, refreshable_at
	FROM otp_requests
	WHERE register_id = $1
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *PgOTPRepository) Create(ctx context.Context, otp domain.OTPRequest) error {
	return insertOTP(ctx, r.pool, otp)
}

func insertOTP(ctx context.Context, db execer, otp domain.OTPRequest) error {
	const query = `
		INSERT INTO otp_requests (register_id, phone_number, otp_code, request_type, is_verified,
		                          created_at, updated_at, expires_at, refreshable_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.Exec(ctx, query,
		otp.RegisterID,
		otp.PhoneNumber.String(),
		otp.Code,
		string(otp.RequestType),
		otp.Verified,
		otp.CreatedAt,
		otp.UpdatedAt,
		otp.ExpiresAt,
		otp.RefreshableAt,
	)
	return mapWriteError(err)
}

func (r *PgOTPRepository) GetByRegisterID(ctx context.Context, registerID string) (domain.OTPRequest, error) {
	return scanOTP(r.pool.QueryRow(ctx, selectOTP, registerID))
}

func (r *PgOTPRepository) Update(ctx context.Context, registerID string, fn func(*domain.OTPRequest) error) (domain.OTPRequest, error) {
	const update = `
		UPDATE otp_requests
		SET phone_number = $2, otp_code = $3, is_verified = $4,
		    updated_at = $5, expires_at = $6, refreshable_at = $7
		WHERE register_id = $1
	`
	var result domain.OTPRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		otp, err := scanOTP(tx.QueryRow(ctx, selectOTP+` FOR UPDATE`, registerID))
		if err != nil {
			return err
		}
		if err := fn(&otp); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, update,
			otp.RegisterID,
			otp.PhoneNumber.String(),
			otp.Code,
			otp.Verified,
			otp.UpdatedAt,
			otp.ExpiresAt,
			otp.RefreshableAt,
		); err != nil {
			return err
		}
		result = otp
		return nil
	})
	if err != nil {
		return domain.OTPRequest{}, err
	}
	return result, nil
}

// ReplacePending serializa por (telefono, tipo) con un advisory lock de transaccion,
// asi dos emisiones simultaneas no dejan dos ciclos pendientes.
func (r *PgOTPRepository) ReplacePending(ctx context.Context, otp domain.OTPRequest) error {
	const (
		lock  = `SELECT pg_advisory_xact_lock(hashtext($1))`
		purge = `DELETE FROM otp_requests WHERE phone_number = $1 AND request_type = $2 AND NOT is_verified`
	)
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lock, otp.PhoneNumber.String()+":"+string(otp.RequestType)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, purge, otp.PhoneNumber.String(), string(otp.RequestType)); err != nil {
			return err
		}
		return insertOTP(ctx, tx, otp)
	})
}

func (r *PgOTPRepository) DeleteByPhone(ctx context.Context, phoneNumber string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otp_requests WHERE phone_number = $1`, phoneNumber)
	return err
}

func (r *PgOTPRepository) Delete(ctx context.Context, registerID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otp_requests WHERE register_id = $1`, registerID)
	return err
}

func scanOTP(row pgx.Row) (domain.OTPRequest, error) {
	var (
		otp         domain.OTPRequest
		phoneNumber string
		requestType string
	)
	err := row.Scan(
		&otp.RegisterID,
		&phoneNumber,
		&otp.Code,
		&requestType,
		&otp.Verified,
		&otp.CreatedAt,
		&otp.UpdatedAt,
		&otp.ExpiresAt,
		&otp.RefreshableAt,
	)
	if err != nil {
		return domain.OTPRequest{}, err
	}
	otp.PhoneNumber = phone.FromStored(phoneNumber)
	otp.RequestType = domain.OTPRequestType(requestType)
	return otp, nil
}
