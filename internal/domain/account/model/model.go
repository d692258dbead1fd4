package model

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID            uuid.UUID
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	RefreshToken  string
	AvatarURL     string
	CoverImageURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicAccount is the sanitized view returned to clients:
// никогда не содержит password_hash и refresh_token.
type PublicAccount struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		FullName:      a.FullName,
		AvatarURL:     a.AvatarURL,
		CoverImageURL: a.CoverImageURL,
		CreatedAt:     a.CreatedAt,
	}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	AccountID    uuid.UUID
}
