package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
	"github.com/funlifew/Push-Notification-Server/internal/repository"
)

// IdentityResolver busca al usuario a partir de un email o un telefono.
// No valida contrasenas: eso queda en manos de quien llama.
type IdentityResolver struct {
	users      repository.UserRepository
	normalizer *phone.Normalizer
}

func NewIdentityResolver(users repository.UserRepository, normalizer *phone.Normalizer) *IdentityResolver {
	return &IdentityResolver{users: users, normalizer: normalizer}
}

// Resolve devuelve (usuario, true, nil) si existe. Un telefono que no normaliza
// cuenta como ausente, no como error.
func (r *IdentityResolver) Resolve(ctx context.Context, id domain.Identifier) (domain.User, bool, error) {
	var (
		user domain.User
		err  error
	)
	switch id.Kind {
	case domain.IdentifierEmail:
		email := normalizeEmail(id.Value)
		if email == "" {
			return domain.User{}, false, nil
		}
		user, err = r.users.GetByEmail(ctx, email)
	default:
		number, nerr := r.normalizer.Normalize(id.Value)
		if nerr != nil {
			return domain.User{}, false, nil
		}
		user, err = r.users.GetByPhone(ctx, number.String())
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return user, true, nil
}

// normalizeEmail pliega mayusculas en Go; la columna email no usa citext.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
