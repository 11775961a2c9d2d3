package models

import "time"

// User представляет пользователя системы.
// Тэги `db` используются для маппинга с полями БД с помощью sqlx.
// Тэги `json` используются для (де)сериализации JSON.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"` // Не отправляем хеш пароля в JSON
	FullName     *string    `db:"full_name" json:"full_name,omitempty"`
	// Инвайт-код — публичный токен пользователя для заявок в друзья
	// и приглашений в хранилища (не раскрывает внутренний ID).
	InviteCode        *string    `db:"invite_code" json:"invite_code,omitempty"`
	ProfilePictureURL *string    `db:"profile_picture_url" json:"profile_picture_url,omitempty"`
	PublicKey         *string    `db:"public_key" json:"public_key,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// SignUpRequest представляет тело запроса на регистрацию.
type SignUpRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=32"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	FullName *string `json:"full_name,omitempty"`
}

// LoginRequest представляет тело запроса на вход.
// Identifier — email или имя пользователя.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// AuthResponse представляет тело ответа при успешной регистрации или входе.
type AuthResponse struct {
	AccessToken string  `json:"access_token"`
	UserID      int64   `json:"user_id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FullName    *string `json:"full_name,omitempty"`
	InviteCode  *string `json:"invite_code,omitempty"`
}

// UserUpdateRequest представляет тело запроса на обновление профиля.
// Разрешено менять только полное имя.
type UserUpdateRequest struct {
	FullName *string `json:"full_name,omitempty"`
}
