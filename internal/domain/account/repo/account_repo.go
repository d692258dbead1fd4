package repo

import (
	"context"

	"github.com/clipstream/account-service/internal/domain/account/model"
	"github.com/google/uuid"
)

type AccountRepo interface {
	CreateAccount(ctx context.Context, a model.Account) (uuid.UUID, error)

	GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error)

	// GetAccountByLogin resolves an account by username OR email.
	GetAccountByLogin(ctx context.Context, username, email string) (model.Account, error)

	// UpdateRefreshToken overwrites the stored refresh token. With a non-nil
	// expectedOld the write happens only if the stored value still equals
	// expectedOld (одним атомарным UPDATE — это и закрывает гонку ротации);
	// a stale value yields ErrInvalidToken.
	UpdateRefreshToken(ctx context.Context, id uuid.UUID, expectedOld *string, newValue string) (model.Account, error)

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	UpdateDetails(ctx context.Context, id uuid.UUID, fullName, email string) (model.Account, error)

	UpdateAvatarURL(ctx context.Context, id uuid.UUID, url string) (model.Account, error)

	UpdateCoverImageURL(ctx context.Context, id uuid.UUID, url string) (model.Account, error)
}
