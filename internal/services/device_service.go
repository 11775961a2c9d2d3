package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
)

// DeviceService определяет интерфейс для сервиса push-устройств.
type DeviceService interface {
	// Register регистрирует устройство или обновляет его токен.
	// Повторная регистрация того же device_id перепривязывает устройство
	// к текущему пользователю.
	Register(userID int64, req *models.DeviceRegisterRequest) (*models.DeviceToken, error)
	// Unregister удаляет устройство пользователя.
	Unregister(userID int64, deviceID string) error
	ListDevices(userID int64) ([]models.DeviceToken, error)
}

// Убедимся, что deviceService удовлетворяет интерфейсу DeviceService.
var _ DeviceService = (*deviceService)(nil)

type deviceService struct {
	deviceRepo repository.DeviceRepository
}

// NewDeviceService создает новый экземпляр сервиса устройств.
func NewDeviceService(deviceRepo repository.DeviceRepository) DeviceService {
	return &deviceService{deviceRepo: deviceRepo}
}

// Register регистрирует устройство или обновляет его токен.
func (s *deviceService) Register(userID int64, req *models.DeviceRegisterRequest) (*models.DeviceToken, error) {
	ctx := context.Background()

	platform := req.Platform
	if platform == "" {
		platform = "ios"
	}
	environment := req.APNSEnvironment
	if environment == "" {
		environment = "production"
	}

	device := &models.DeviceToken{
		UserID:          userID,
		DeviceID:        req.DeviceID,
		Token:           req.Token,
		Platform:        platform,
		APNSEnvironment: environment,
	}

	registered, err := s.deviceRepo.Upsert(ctx, device)
	if err != nil {
		log.Printf("[DeviceService] Ошибка регистрации устройства '%s' пользователя %d: %v",
			req.DeviceID, userID, err)
		return nil, fmt.Errorf("ошибка регистрации устройства: %w", err)
	}

	log.Printf("[DeviceService] Устройство '%s' пользователя %d зарегистрировано (%s, %s)",
		registered.DeviceID, userID, registered.Platform, registered.APNSEnvironment)
	return registered, nil
}

// Unregister удаляет устройство, если оно принадлежит пользователю.
func (s *deviceService) Unregister(userID int64, deviceID string) error {
	ctx := context.Background()

	devices, err := s.deviceRepo.GetUserDevices(ctx, userID)
	if err != nil {
		log.Printf("[DeviceService] Ошибка получения устройств пользователя %d: %v", userID, err)
		return fmt.Errorf("ошибка получения устройств: %w", err)
	}

	owned := false
	for _, d := range devices {
		if d.DeviceID == deviceID {
			owned = true
			break
		}
	}
	if !owned {
		return ErrDeviceNotFound
	}

	if err = s.deviceRepo.DeleteByDeviceID(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return ErrDeviceNotFound
		}
		log.Printf("[DeviceService] Ошибка удаления устройства '%s': %v", deviceID, err)
		return fmt.Errorf("ошибка удаления устройства: %w", err)
	}

	log.Printf("[DeviceService] Устройство '%s' пользователя %d удалено", deviceID, userID)
	return nil
}

// ListDevices возвращает устройства пользователя.
func (s *deviceService) ListDevices(userID int64) ([]models.DeviceToken, error) {
	ctx := context.Background()

	devices, err := s.deviceRepo.GetUserDevices(ctx, userID)
	if err != nil {
		log.Printf("[DeviceService] Ошибка получения устройств пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения устройств: %w", err)
	}
	return devices, nil
}

// Кастомные ошибки сервиса.
var (
	ErrDeviceNotFound = errors.New("устройство не найдено")
)
