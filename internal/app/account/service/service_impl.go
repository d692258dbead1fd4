package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/clipstream/account-service/internal/adapters/transport/httpapi/dto"
	customErrors "github.com/clipstream/account-service/internal/domain/account/errors"
	"github.com/clipstream/account-service/internal/domain/account/media"
	"github.com/clipstream/account-service/internal/domain/account/model"
	"github.com/clipstream/account-service/internal/domain/account/repo"
	"github.com/clipstream/account-service/internal/domain/account/token"
	"github.com/clipstream/account-service/internal/infra/config"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var argonParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

type accountService struct {
	accountRepo repo.AccountRepo
	media       media.Store
	jwtUtil     token.JWTUtil
	cfg         *config.Config
	v           *validator.Validate
}

type Service interface {
	Register(ctx context.Context, in dto.RegisterDTO, avatar media.Upload, cover *media.Upload) (model.PublicAccount, error)
	Login(ctx context.Context, in dto.LoginDTO) (model.TokenPair, model.PublicAccount, error)
	Refresh(ctx context.Context, in dto.RefreshDTO) (model.TokenPair, error)
	Logout(ctx context.Context, accountID uuid.UUID) error
	Validate(ctx context.Context, in dto.ValidateDTO) (model.Account, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, in dto.ChangePasswordDTO) error
	UpdateDetails(ctx context.Context, accountID uuid.UUID, in dto.UpdateDetailsDTO) (model.PublicAccount, error)
	UpdateAvatar(ctx context.Context, accountID uuid.UUID, up media.Upload) (model.PublicAccount, error)
	UpdateCoverImage(ctx context.Context, accountID uuid.UUID, up media.Upload) (model.PublicAccount, error)
}

func New(
	ar repo.AccountRepo,
	ms media.Store,
	jm token.JWTUtil,
	cfg *config.Config,
	v *validator.Validate,
) Service {
	return &accountService{
		accountRepo: ar, media: ms, jwtUtil: jm, cfg: cfg, v: v,
	}
}

func (a *accountService) Register(ctx context.Context, in dto.RegisterDTO, avatar media.Upload, cover *media.Upload) (model.PublicAccount, error) {
	if err := a.v.Struct(in); err != nil {
		return model.PublicAccount{}, customErrors.NewInvalidArgument(err.Error())
	}
	if avatar.Body == nil {
		return model.PublicAccount{}, customErrors.NewInvalidArgument("avatar file is required")
	}

	in.Username = strings.ToLower(in.Username)

	// Ранняя проверка дубликата до загрузки файлов; финальную точку ставит
	// уникальный индекс в базе.
	_, err := a.accountRepo.GetAccountByLogin(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		return model.PublicAccount{}, customErrors.ErrAlreadyExists
	case !errors.Is(err, customErrors.ErrNotFound):
		return model.PublicAccount{}, customErrors.WrapInternal(err, "Register")
	}

	passwordHash, err := argon2id.CreateHash(in.Password+a.cfg.PasswordPepper, argonParams)
	if err != nil {
		return model.PublicAccount{}, customErrors.WrapInternal(err, "Register")
	}

	id := uuid.New()

	avatarURL, err := a.media.Upload(ctx, mediaKey(id, "avatar", avatar.Name), avatar)
	if err != nil {
		return model.PublicAccount{}, customErrors.WrapInternal(err, "UploadAvatar")
	}

	var coverURL string
	if cover != nil {
		coverURL, err = a.media.Upload(ctx, mediaKey(id, "cover", cover.Name), *cover)
		if err != nil {
			_ = a.media.Delete(ctx, avatarURL)
			return model.PublicAccount{}, customErrors.WrapInternal(err, "UploadCoverImage")
		}
	}

	acc := model.Account{
		ID:            id,
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  passwordHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		CreatedAt:     time.Now(),
	}
	if _, err = a.accountRepo.CreateAccount(ctx, acc); err != nil {
		_ = a.media.Delete(ctx, avatarURL)
		if coverURL != "" {
			_ = a.media.Delete(ctx, coverURL)
		}
		if errors.Is(err, customErrors.ErrAlreadyExists) {
			return model.PublicAccount{}, customErrors.ErrAlreadyExists
		}
		return model.PublicAccount{}, customErrors.WrapInternal(err, "Register")
	}

	return acc.Public(), nil
}

func (a *accountService) Login(ctx context.Context, in dto.LoginDTO) (model.TokenPair, model.PublicAccount, error) {
	if err := a.v.Struct(in); err != nil {
		return model.TokenPair{}, model.PublicAccount{}, customErrors.NewInvalidArgument(err.Error())
	}
	if in.Username == "" && in.Email == "" {
		return model.TokenPair{}, model.PublicAccount{}, customErrors.NewInvalidArgument("username or email is required")
	}

	acc, err := a.accountRepo.GetAccountByLogin(ctx, strings.ToLower(in.Username), in.Email)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.TokenPair{}, model.PublicAccount{}, customErrors.ErrNotFound
	case err != nil:
		return model.TokenPair{}, model.PublicAccount{}, customErrors.WrapInternal(err, "Login")
	}

	ok, err := argon2id.ComparePasswordAndHash(in.Password+a.cfg.PasswordPepper, acc.PasswordHash)
	if err != nil {
		return model.TokenPair{}, model.PublicAccount{}, customErrors.WrapInternal(err, "Login")
	}
	if !ok {
		return model.TokenPair{}, model.PublicAccount{}, customErrors.ErrInvalidCredentials
	}

	// Логин всегда перезаписывает сохранённый refresh: предыдущая сессия
	// этого аккаунта умирает.
	pair, err := a.issueTokens(ctx, acc.ID, nil)
	if err != nil {
		return model.TokenPair{}, model.PublicAccount{}, err
	}
	return pair, acc.Public(), nil
}

func (a *accountService) Refresh(ctx context.Context, in dto.RefreshDTO) (model.TokenPair, error) {
	if in.RefreshToken == "" {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	claims, err := a.jwtUtil.ValidateRefreshToken(in.RefreshToken)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	acc, err := a.accountRepo.GetAccountByID(ctx, uid)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.TokenPair{}, customErrors.ErrInvalidToken
	case err != nil:
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}
	if acc.RefreshToken != in.RefreshToken {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	// Ротация: новый токен записывается только если presented всё ещё
	// совпадает со stored. Из двух конкурентных refresh выигрывает один.
	return a.issueTokens(ctx, uid, &in.RefreshToken)
}

func (a *accountService) Logout(ctx context.Context, accountID uuid.UUID) error {
	_, err := a.accountRepo.UpdateRefreshToken(ctx, accountID, nil, "")
	if err != nil && !errors.Is(err, customErrors.ErrNotFound) {
		return customErrors.WrapInternal(err, "Logout")
	}
	return nil
}

func (a *accountService) Validate(ctx context.Context, in dto.ValidateDTO) (model.Account, error) {
	if err := a.v.Struct(in); err != nil {
		return model.Account{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwtUtil.ValidateAccessToken(in.AccessToken)
	if err != nil {
		return model.Account{}, customErrors.ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Account{}, customErrors.ErrInvalidToken
	}

	acc, err := a.accountRepo.GetAccountByID(ctx, uid)
	if err != nil {
		return model.Account{}, customErrors.ErrInvalidToken
	}

	acc.PasswordHash = ""
	acc.RefreshToken = ""
	return acc, nil
}

func (a *accountService) ChangePassword(ctx context.Context, accountID uuid.UUID, in dto.ChangePasswordDTO) error {
	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	acc, err := a.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			return customErrors.ErrNotFound
		}
		return customErrors.WrapInternal(err, "ChangePassword")
	}

	ok, err := argon2id.ComparePasswordAndHash(in.CurrentPassword+a.cfg.PasswordPepper, acc.PasswordHash)
	if err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}
	if !ok {
		return customErrors.ErrInvalidCredentials
	}

	hash, err := argon2id.CreateHash(in.NewPassword+a.cfg.PasswordPepper, argonParams)
	if err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}
	return a.accountRepo.UpdatePasswordHash(ctx, accountID, hash)
}

func (a *accountService) UpdateDetails(ctx context.Context, accountID uuid.UUID, in dto.UpdateDetailsDTO) (model.PublicAccount, error) {
	if err := a.v.Struct(in); err != nil {
		return model.PublicAccount{}, customErrors.NewInvalidArgument(err.Error())
	}

	acc, err := a.accountRepo.UpdateDetails(ctx, accountID, in.FullName, in.Email)
	if err != nil {
		if errors.Is(err, customErrors.ErrNotFound) || errors.Is(err, customErrors.ErrAlreadyExists) {
			return model.PublicAccount{}, err
		}
		return model.PublicAccount{}, customErrors.WrapInternal(err, "UpdateDetails")
	}
	return acc.Public(), nil
}

func (a *accountService) UpdateAvatar(ctx context.Context, accountID uuid.UUID, up media.Upload) (model.PublicAccount, error) {
	return a.replaceMedia(ctx, accountID, "avatar", up,
		func(acc model.Account) string { return acc.AvatarURL },
		a.accountRepo.UpdateAvatarURL,
	)
}

func (a *accountService) UpdateCoverImage(ctx context.Context, accountID uuid.UUID, up media.Upload) (model.PublicAccount, error) {
	return a.replaceMedia(ctx, accountID, "cover", up,
		func(acc model.Account) string { return acc.CoverImageURL },
		a.accountRepo.UpdateCoverImageURL,
	)
}

// replaceMedia: новый файл сначала загружается, потом URL фиксируется в базе
// и только после этого старый объект удаляется best-effort. Обрыв на любом
// шаге оставляет аккаунт с рабочей ссылкой.
func (a *accountService) replaceMedia(
	ctx context.Context,
	accountID uuid.UUID,
	kind string,
	up media.Upload,
	currentURL func(model.Account) string,
	persist func(context.Context, uuid.UUID, string) (model.Account, error),
) (model.PublicAccount, error) {
	if up.Body == nil {
		return model.PublicAccount{}, customErrors.NewInvalidArgument(kind + " file is required")
	}

	acc, err := a.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			return model.PublicAccount{}, customErrors.ErrNotFound
		}
		return model.PublicAccount{}, customErrors.WrapInternal(err, "replaceMedia")
	}
	oldURL := currentURL(acc)

	newURL, err := a.media.Upload(ctx, mediaKey(accountID, kind, up.Name), up)
	if err != nil {
		return model.PublicAccount{}, customErrors.WrapInternal(err, "UploadMedia")
	}

	acc, err = persist(ctx, accountID, newURL)
	if err != nil {
		_ = a.media.Delete(ctx, newURL)
		if errors.Is(err, customErrors.ErrNotFound) {
			return model.PublicAccount{}, customErrors.ErrNotFound
		}
		return model.PublicAccount{}, customErrors.WrapInternal(err, "replaceMedia")
	}

	if oldURL != "" && oldURL != newURL {
		_ = a.media.Delete(ctx, oldURL)
	}
	return acc.Public(), nil
}

func (a *accountService) issueTokens(ctx context.Context, uid uuid.UUID, expectedOld *string) (model.TokenPair, error) {
	at, atExp, err := a.jwtUtil.GenerateAccessToken(uid)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, rtExp, err := a.jwtUtil.GenerateRefreshToken(uid)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}

	if _, err = a.accountRepo.UpdateRefreshToken(ctx, uid, expectedOld, rt); err != nil {
		switch {
		case errors.Is(err, customErrors.ErrInvalidToken):
			return model.TokenPair{}, customErrors.ErrInvalidToken
		case errors.Is(err, customErrors.ErrNotFound):
			return model.TokenPair{}, customErrors.ErrInvalidToken
		default:
			return model.TokenPair{}, customErrors.WrapInternal(err, "StoreRefresh")
		}
	}

	now := time.Now()
	return model.TokenPair{
		AccessToken:  at,
		RefreshToken: rt,
		AccessTTL:    atExp.Sub(now),
		RefreshTTL:   rtExp.Sub(now),
		AccountID:    uid,
	}, nil
}

func mediaKey(accountID uuid.UUID, kind, fileName string) string {
	return fmt.Sprintf("accounts/%s/%s-%s%s", accountID, kind, uuid.NewString(), path.Ext(fileName))
}
