package postgres

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/clipstream/account-service/internal/domain/account/errors"
	"github.com/clipstream/account-service/internal/domain/account/model"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"
)

// queryTimeout bounds every store round-trip so that no caller hangs on a
// stuck connection.
const queryTimeout = 3 * time.Second

type PostgresAccountRepo struct {
	db *gorm.DB
}

func NewPostgresAccountRepo(db *gorm.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func (p *PostgresAccountRepo) CreateAccount(ctx context.Context, a model.Account) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res := p.db.WithContext(ctx).Create(&a)
	if err := res.Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, customErrors.ErrAlreadyExists
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return uuid.Nil, customErrors.ErrAlreadyExists
		}
		return uuid.Nil, customErrors.WrapInternal(err, "CreateAccount")
	}
	return a.ID, nil
}

func (p *PostgresAccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var a model.Account
	res := p.db.WithContext(ctx).Where("id = ?", id).First(&a)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.Account{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.Account{}, customErrors.WrapInternal(err, "GetAccountByID")
	}

	return a, nil
}

func (p *PostgresAccountRepo) GetAccountByLogin(ctx context.Context, username, email string) (model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var a model.Account
	res := p.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&a)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.Account{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.Account{}, customErrors.WrapInternal(err, "GetAccountByLogin")
	}

	return a, nil
}

// UpdateRefreshToken is the single point of truth for session state. The
// conditional form is one UPDATE ... WHERE refresh_token = ?, so two racing
// rotations on the same stale token can never both win.
func (p *PostgresAccountRepo) UpdateRefreshToken(ctx context.Context, id uuid.UUID, expectedOld *string, newValue string) (model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := p.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id)
	if expectedOld != nil {
		q = q.Where("refresh_token = ?", *expectedOld)
	}
	res := q.Update("refresh_token", newValue)
	if err := res.Error; err != nil {
		return model.Account{}, customErrors.WrapInternal(err, "UpdateRefreshToken")
	}
	if res.RowsAffected == 0 {
		if expectedOld != nil {
			return model.Account{}, customErrors.ErrInvalidToken
		}
		return model.Account{}, customErrors.ErrNotFound
	}

	return p.GetAccountByID(ctx, id)
}

func (p *PostgresAccountRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res := p.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "UpdatePasswordHash")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}

func (p *PostgresAccountRepo) UpdateDetails(ctx context.Context, id uuid.UUID, fullName, email string) (model.Account, error) {
	return p.updateFields(ctx, id, "UpdateDetails", map[string]interface{}{
		"full_name": fullName,
		"email":     email,
	})
}

func (p *PostgresAccountRepo) UpdateAvatarURL(ctx context.Context, id uuid.UUID, url string) (model.Account, error) {
	return p.updateFields(ctx, id, "UpdateAvatarURL", map[string]interface{}{
		"avatar_url": url,
	})
}

func (p *PostgresAccountRepo) UpdateCoverImageURL(ctx context.Context, id uuid.UUID, url string) (model.Account, error) {
	return p.updateFields(ctx, id, "UpdateCoverImageURL", map[string]interface{}{
		"cover_image_url": url,
	})
}

func (p *PostgresAccountRepo) updateFields(ctx context.Context, id uuid.UUID, op string, fields map[string]interface{}) (model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res := p.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", id).
		Updates(fields)
	if err := res.Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Account{}, customErrors.ErrAlreadyExists
		}
		return model.Account{}, customErrors.WrapInternal(err, op)
	}
	if res.RowsAffected == 0 {
		return model.Account{}, customErrors.ErrNotFound
	}

	return p.GetAccountByID(ctx, id)
}
