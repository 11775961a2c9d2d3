package models

import "time"

// DeviceToken представляет push-токен устройства пользователя.
// Одна запись на физическое устройство (DeviceID); при повторной
// регистрации токен и владелец обновляются.
type DeviceToken struct {
	ID     int64  `db:"id" json:"id"`
	UserID int64  `db:"user_id" json:"user_id"`
	// Стабильный идентификатор устройства, выбирается клиентом.
	DeviceID string `db:"device_id" json:"device_id"`
	Token    string `db:"token" json:"token"`
	Platform string `db:"platform" json:"platform"`
	// Окружение APNs: sandbox или production.
	APNSEnvironment string    `db:"apns_environment" json:"apns_environment"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	LastSeenAt      time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// DeviceRegisterRequest представляет тело запроса на регистрацию устройства.
type DeviceRegisterRequest struct {
	DeviceID        string `json:"device_id" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Platform        string `json:"platform" validate:"omitempty,oneof=ios"`
	APNSEnvironment string `json:"apns_environment" validate:"omitempty,oneof=sandbox production"`
}
