package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
)

// UserService определяет интерфейс для сервиса профилей пользователей.
type UserService interface {
	GetProfile(userID int64) (*models.User, error)
	UpdateProfile(userID int64, req *models.UserUpdateRequest) (*models.User, error)
	// GetByInviteCode ищет пользователя по его публичному инвайт-коду.
	GetByInviteCode(inviteCode string) (*models.User, error)
}

// Убедимся, что userService удовлетворяет интерфейсу UserService.
var _ UserService = (*userService)(nil)

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService создает новый экземпляр сервиса профилей.
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetProfile возвращает профиль пользователя.
func (s *userService) GetProfile(userID int64) (*models.User, error) {
	ctx := context.Background()

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Printf("[UserService] Ошибка получения профиля пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return user, nil
}

// UpdateProfile обновляет профиль пользователя. Разрешено менять
// только полное имя (allow-list полей).
func (s *userService) UpdateProfile(userID int64, req *models.UserUpdateRequest) (*models.User, error) {
	ctx := context.Background()

	if req.FullName != nil {
		if err := s.userRepo.UpdateFullName(ctx, userID, *req.FullName); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			log.Printf("[UserService] Ошибка обновления профиля пользователя %d: %v", userID, err)
			return nil, fmt.Errorf("ошибка обновления профиля: %w", err)
		}
		log.Printf("[UserService] Профиль пользователя %d обновлен", userID)
	}

	return s.GetProfile(userID)
}

// GetByInviteCode ищет пользователя по инвайт-коду.
func (s *userService) GetByInviteCode(inviteCode string) (*models.User, error) {
	ctx := context.Background()

	user, err := s.userRepo.GetUserByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Printf("[UserService] Ошибка поиска по инвайт-коду '%s': %v", inviteCode, err)
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}
	return user, nil
}

// Кастомные ошибки сервиса.
var (
	ErrUserNotFound = errors.New("пользователь не найден")
)
