package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/woven-app/server/internal/models"
)

// DeviceRepository определяет методы для работы с push-токенами устройств.
type DeviceRepository interface {
	// Upsert регистрирует устройство или обновляет его токен и владельца
	// (устройство могло сменить пользователя).
	Upsert(ctx context.Context, device *models.DeviceToken) (*models.DeviceToken, error)
	GetUserDevices(ctx context.Context, userID int64) ([]models.DeviceToken, error)
	DeleteByDeviceID(ctx context.Context, deviceID string) error
}

// postgresDeviceRepository реализует DeviceRepository для PostgreSQL.
type postgresDeviceRepository struct {
	db *sqlx.DB
}

// NewPostgresDeviceRepository создает новый экземпляр репозитория устройств.
func NewPostgresDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &postgresDeviceRepository{db: db}
}

const deviceColumns = `id, user_id, device_id, token, platform, apns_environment, created_at, last_seen_at`

// Upsert вставляет или обновляет запись устройства по device_id.
func (r *postgresDeviceRepository) Upsert(ctx context.Context, device *models.DeviceToken) (*models.DeviceToken, error) {
	query := `INSERT INTO device_tokens (user_id, device_id, token, platform, apns_environment)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (device_id) DO UPDATE
	            SET user_id=EXCLUDED.user_id,
	                token=EXCLUDED.token,
	                platform=EXCLUDED.platform,
	                apns_environment=EXCLUDED.apns_environment,
	                last_seen_at=now()
	          RETURNING ` + deviceColumns

	var saved models.DeviceToken
	err := r.db.GetContext(ctx, &saved, query,
		device.UserID, device.DeviceID, device.Token, device.Platform, device.APNSEnvironment)
	if err != nil {
		log.Printf("[DeviceRepo] Ошибка регистрации устройства '%s': %v", device.DeviceID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на регистрацию устройства: %w", err)
	}

	log.Printf("[DeviceRepo] Устройство '%s' зарегистрировано для пользователя %d", saved.DeviceID, saved.UserID)
	return &saved, nil
}

// GetUserDevices возвращает все устройства пользователя.
func (r *postgresDeviceRepository) GetUserDevices(ctx context.Context, userID int64) ([]models.DeviceToken, error) {
	query := `SELECT ` + deviceColumns + ` FROM device_tokens WHERE user_id=$1`

	devices := []models.DeviceToken{}
	if err := r.db.SelectContext(ctx, &devices, query, userID); err != nil {
		log.Printf("[DeviceRepo] Ошибка получения устройств пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение устройств: %w", err)
	}

	return devices, nil
}

// DeleteByDeviceID удаляет запись устройства (например, при выходе из аккаунта).
func (r *postgresDeviceRepository) DeleteByDeviceID(ctx context.Context, deviceID string) error {
	query := `DELETE FROM device_tokens WHERE device_id=$1`

	res, err := r.db.ExecContext(ctx, query, deviceID)
	if err != nil {
		log.Printf("[DeviceRepo] Ошибка удаления устройства '%s': %v", deviceID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление устройства: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Кастомная ошибка репозитория.
var (
	ErrDeviceNotFound = errors.New("устройство не найдено")
)
