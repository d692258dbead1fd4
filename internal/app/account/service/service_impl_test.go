package service_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipstream/account-service/internal/adapters/transport/httpapi/dto"
	appsvc "github.com/clipstream/account-service/internal/app/account/service"
	apptoken "github.com/clipstream/account-service/internal/app/account/token"
	accErrors "github.com/clipstream/account-service/internal/domain/account/errors"
	"github.com/clipstream/account-service/internal/domain/account/media"
	"github.com/clipstream/account-service/internal/domain/account/model"
	"github.com/clipstream/account-service/internal/infra/config"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type accountRepoStub struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]model.Account
}

func newAccountRepoStub() *accountRepoStub {
	return &accountRepoStub{accounts: make(map[uuid.UUID]model.Account)}
}

func (r *accountRepoStub) CreateAccount(_ context.Context, a model.Account) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.accounts {
		if v.Username == a.Username || v.Email == a.Email {
			return uuid.Nil, accErrors.ErrAlreadyExists
		}
	}
	r.accounts[a.ID] = a
	return a.ID, nil
}

func (r *accountRepoStub) GetAccountByID(_ context.Context, id uuid.UUID) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, accErrors.ErrNotFound
	}
	return a, nil
}

func (r *accountRepoStub) GetAccountByLogin(_ context.Context, username, email string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.accounts {
		if (username != "" && v.Username == username) || (email != "" && v.Email == email) {
			return v, nil
		}
	}
	return model.Account{}, accErrors.ErrNotFound
}

func (r *accountRepoStub) UpdateRefreshToken(_ context.Context, id uuid.UUID, expectedOld *string, newValue string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, accErrors.ErrNotFound
	}
	if expectedOld != nil && a.RefreshToken != *expectedOld {
		return model.Account{}, accErrors.ErrInvalidToken
	}
	a.RefreshToken = newValue
	r.accounts[id] = a
	return a, nil
}

func (r *accountRepoStub) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return accErrors.ErrNotFound
	}
	a.PasswordHash = hash
	r.accounts[id] = a
	return nil
}

func (r *accountRepoStub) UpdateDetails(_ context.Context, id uuid.UUID, fullName, email string) (model.Account, error) {
	return r.update(id, func(a *model.Account) { a.FullName, a.Email = fullName, email })
}

func (r *accountRepoStub) UpdateAvatarURL(_ context.Context, id uuid.UUID, url string) (model.Account, error) {
	return r.update(id, func(a *model.Account) { a.AvatarURL = url })
}

func (r *accountRepoStub) UpdateCoverImageURL(_ context.Context, id uuid.UUID, url string) (model.Account, error) {
	return r.update(id, func(a *model.Account) { a.CoverImageURL = url })
}

func (r *accountRepoStub) update(id uuid.UUID, fn func(*model.Account)) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, accErrors.ErrNotFound
	}
	fn(&a)
	r.accounts[id] = a
	return a, nil
}

func (r *accountRepoStub) stored(id uuid.UUID) model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

type mediaStoreStub struct {
	mu      sync.Mutex
	uploads []string
	deleted []string
}

func (m *mediaStoreStub) Upload(_ context.Context, key string, _ media.Upload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "https://media.test/" + key
	m.uploads = append(m.uploads, url)
	return url, nil
}

func (m *mediaStoreStub) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	return nil
}

/* ───────────────────────────── helpers ───────────────────────────── */

func testCfg() *config.Config {
	return &config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		Issuer:             "test",
		Audience:           "test",
		PasswordPepper:     "pepper",
	}
}

func newSvc(t *testing.T, cfg *config.Config) (appsvc.Service, *accountRepoStub, *mediaStoreStub) {
	t.Helper()
	ar := newAccountRepoStub()
	ms := &mediaStoreStub{}
	util, err := apptoken.NewJWTUtil(cfg)
	require.NoError(t, err)
	return appsvc.New(ar, ms, util, cfg, validator.New()), ar, ms
}

func avatarUpload() media.Upload {
	return media.Upload{
		Name:        "avatar.png",
		ContentType: "image/png",
		Size:        4,
		Body:        bytes.NewReader([]byte("data")),
	}
}

func register(t *testing.T, svc appsvc.Service, username, email string) model.PublicAccount {
	t.Helper()
	acc, err := svc.Register(context.Background(), dto.RegisterDTO{
		Username: username,
		Email:    email,
		FullName: "Test Account",
		Password: "password123",
	}, avatarUpload(), nil)
	require.NoError(t, err)
	return acc
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestAccountService_RegisterLoginRefresh(t *testing.T) {
	svc, repo, _ := newSvc(t, testCfg())
	ctx := context.Background()

	acc := register(t, svc, "Alice", "a@example.com")
	require.Equal(t, "alice", acc.Username)
	require.NotEmpty(t, acc.AvatarURL)

	// регистрация не открывает сессию
	require.Empty(t, repo.stored(acc.ID).RefreshToken)

	pair, pub, err := svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Equal(t, acc.ID, pub.ID)
	require.Equal(t, pair.RefreshToken, repo.stored(acc.ID).RefreshToken)

	got, err := svc.Validate(ctx, dto.ValidateDTO{AccessToken: pair.AccessToken})
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
	require.Empty(t, got.PasswordHash)
	require.Empty(t, got.RefreshToken)

	refreshed, err := svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, refreshed.RefreshToken)
	require.Equal(t, refreshed.RefreshToken, repo.stored(acc.ID).RefreshToken)

	// повтор потреблённого токена должен отклоняться
	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, accErrors.IsInvalidToken(err))
	require.Equal(t, refreshed.RefreshToken, repo.stored(acc.ID).RefreshToken)
}

func TestAccountService_RegisterInvalid(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	_, err := svc.Register(context.Background(), dto.RegisterDTO{}, avatarUpload(), nil)
	require.True(t, accErrors.IsInvalidArgument(err))
}

func TestAccountService_RegisterMissingAvatar(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	_, err := svc.Register(context.Background(), dto.RegisterDTO{
		Username: "bob", Email: "b@example.com", FullName: "Bob", Password: "password123",
	}, media.Upload{}, nil)
	require.True(t, accErrors.IsInvalidArgument(err))
}

func TestAccountService_RegisterDuplicate(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	register(t, svc, "carol", "c@example.com")

	_, err := svc.Register(context.Background(), dto.RegisterDTO{
		Username: "carol", Email: "other@example.com", FullName: "C", Password: "password123",
	}, avatarUpload(), nil)
	require.True(t, accErrors.IsAlreadyExists(err))

	_, err = svc.Register(context.Background(), dto.RegisterDTO{
		Username: "other", Email: "c@example.com", FullName: "C", Password: "password123",
	}, avatarUpload(), nil)
	require.True(t, accErrors.IsAlreadyExists(err))
}

func TestAccountService_LoginUnknownIdentifier(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	_, _, err := svc.Login(context.Background(), dto.LoginDTO{
		Email: "none@example.com", Password: "password123",
	})
	require.True(t, accErrors.IsNotFound(err))
}

func TestAccountService_LoginWrongPassword(t *testing.T) {
	svc, repo, _ := newSvc(t, testCfg())
	ctx := context.Background()
	acc := register(t, svc, "dave", "d@example.com")

	pair, _, err := svc.Login(ctx, dto.LoginDTO{Username: "dave", Password: "password123"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, dto.LoginDTO{Username: "dave", Password: "wrongwrong"})
	require.True(t, accErrors.IsInvalidCredentials(err))

	// неудачный логин не трогает сохранённую сессию
	require.Equal(t, pair.RefreshToken, repo.stored(acc.ID).RefreshToken)
}

func TestAccountService_LoginReplacesSession(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	ctx := context.Background()
	register(t, svc, "erin", "e@example.com")

	first, _, err := svc.Login(ctx, dto.LoginDTO{Username: "erin", Password: "password123"})
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, dto.LoginDTO{Username: "erin", Password: "password123"})
	require.NoError(t, err)

	// refresh от первой сессии больше не принимается
	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: first.RefreshToken})
	require.True(t, accErrors.IsInvalidToken(err))
}

func TestAccountService_RefreshConcurrent(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	ctx := context.Background()
	register(t, svc, "frank", "f@example.com")

	pair, _, err := svc.Login(ctx, dto.LoginDTO{Username: "frank", Password: "password123"})
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var okCount int
	for err := range results {
		if err == nil {
			okCount++
			continue
		}
		require.True(t, accErrors.IsInvalidToken(err))
	}
	require.Equal(t, 1, okCount)
}

func TestAccountService_RefreshExpired(t *testing.T) {
	cfg := testCfg()
	cfg.RefreshTokenTTL = -time.Minute
	svc, _, _ := newSvc(t, cfg)
	ctx := context.Background()
	register(t, svc, "gina", "g@example.com")

	pair, _, err := svc.Login(ctx, dto.LoginDTO{Username: "gina", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, accErrors.IsInvalidToken(err))
}

func TestAccountService_RefreshGarbage(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	_, err := svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: "bad"})
	require.True(t, accErrors.IsInvalidToken(err))

	_, err = svc.Refresh(context.Background(), dto.RefreshDTO{})
	require.True(t, accErrors.IsInvalidToken(err))
}

func TestAccountService_Logout(t *testing.T) {
	svc, repo, _ := newSvc(t, testCfg())
	ctx := context.Background()
	acc := register(t, svc, "hank", "h@example.com")

	pair, _, err := svc.Login(ctx, dto.LoginDTO{Username: "hank", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, acc.ID))
	require.Empty(t, repo.stored(acc.ID).RefreshToken)

	// идемпотентно, в том числе для несуществующего аккаунта
	require.NoError(t, svc.Logout(ctx, acc.ID))
	require.NoError(t, svc.Logout(ctx, uuid.New()))

	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, accErrors.IsInvalidToken(err))
}

func TestAccountService_ValidateInvalidToken(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	_, err := svc.Validate(context.Background(), dto.ValidateDTO{AccessToken: "bad"})
	require.True(t, accErrors.IsInvalidToken(err))
}

func TestAccountService_ChangePassword(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	ctx := context.Background()
	acc := register(t, svc, "iris", "i@example.com")

	err := svc.ChangePassword(ctx, acc.ID, dto.ChangePasswordDTO{
		CurrentPassword: "wrongwrong", NewPassword: "newpassword1",
	})
	require.True(t, accErrors.IsInvalidCredentials(err))

	err = svc.ChangePassword(ctx, acc.ID, dto.ChangePasswordDTO{
		CurrentPassword: "password123", NewPassword: "newpassword1",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, dto.LoginDTO{Username: "iris", Password: "password123"})
	require.True(t, accErrors.IsInvalidCredentials(err))
	_, _, err = svc.Login(ctx, dto.LoginDTO{Username: "iris", Password: "newpassword1"})
	require.NoError(t, err)
}

func TestAccountService_UpdateDetails(t *testing.T) {
	svc, _, _ := newSvc(t, testCfg())
	ctx := context.Background()
	acc := register(t, svc, "judy", "j@example.com")

	got, err := svc.UpdateDetails(ctx, acc.ID, dto.UpdateDetailsDTO{
		FullName: "Judy Renamed", Email: "judy2@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "Judy Renamed", got.FullName)
	require.Equal(t, "judy2@example.com", got.Email)

	_, err = svc.UpdateDetails(ctx, acc.ID, dto.UpdateDetailsDTO{FullName: "x"})
	require.True(t, accErrors.IsInvalidArgument(err))
}

func TestAccountService_UpdateAvatarReplacesOld(t *testing.T) {
	svc, _, ms := newSvc(t, testCfg())
	ctx := context.Background()
	acc := register(t, svc, "kate", "k@example.com")
	oldURL := acc.AvatarURL

	got, err := svc.UpdateAvatar(ctx, acc.ID, media.Upload{
		Name:        "new.png",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	require.NoError(t, err)
	require.NotEqual(t, oldURL, got.AvatarURL)
	require.Contains(t, ms.deleted, oldURL)
}

func TestAccountService_UpdateCoverImage(t *testing.T) {
	svc, _, ms := newSvc(t, testCfg())
	ctx := context.Background()
	acc := register(t, svc, "liam", "l@example.com")

	got, err := svc.UpdateCoverImage(ctx, acc.ID, media.Upload{
		Name:        "cover.jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, got.CoverImageURL)
	// старой обложки не было — удалять нечего
	require.Empty(t, ms.deleted)
}
