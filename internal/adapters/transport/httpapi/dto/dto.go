package dto

// RegisterDTO приходит multipart/form-data вместе с файлами, поэтому
// продублированы form-теги.
type RegisterDTO struct {
	Username string `json:"username" form:"username" validate:"required,alphanum,min=3,max=20"`
	Email    string `json:"email"    form:"email"    validate:"required,email"`
	FullName string `json:"fullName" form:"fullName" validate:"required,max=100"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

// LoginDTO accepts either username or email; at least one must be set.
type LoginDTO struct {
	Username string `json:"username" validate:"omitempty,alphanum"`
	Email    string `json:"email"    validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ValidateDTO struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

type LogoutDTO struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,min=8"`
}

type UpdateDetailsDTO struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
}
