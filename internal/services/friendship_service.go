package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
)

// FriendshipService определяет интерфейс для сервиса дружб.
// Дружба — предусловие для парных хранилищ: пригласить в хранилище
// можно только принятого друга.
type FriendshipService interface {
	// SendRequest отправляет заявку в друзья пользователю с указанным
	// инвайт-кодом.
	SendRequest(userID int64, inviteCode string) (*models.FriendshipResponse, error)
	// AcceptRequest принимает входящую заявку. Разрешено только получателю.
	AcceptRequest(userID, friendshipID int64) (*models.FriendshipResponse, error)
	// DeclineRequest отклоняет входящую заявку: запись удаляется,
	// отправитель может подать заявку повторно.
	DeclineRequest(userID, friendshipID int64) error
	GetFriends(userID int64) (*models.FriendListResponse, error)
	GetPendingRequests(userID int64) (*models.PendingRequestsResponse, error)
	GetSentRequests(userID int64) (*models.PendingRequestsResponse, error)
	// RemoveFriend удаляет принятую дружбу между пользователями.
	RemoveFriend(userID, friendID int64) error
	AreFriends(userID, otherID int64) (bool, error)
}

// Убедимся, что friendshipService удовлетворяет интерфейсу FriendshipService.
var _ FriendshipService = (*friendshipService)(nil)

type friendshipService struct {
	friendRepo repository.FriendshipRepository
	userRepo   repository.UserRepository
	notifier   Notifier
}

// NewFriendshipService создает новый экземпляр сервиса дружб.
func NewFriendshipService(
	friendRepo repository.FriendshipRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) FriendshipService {
	return &friendshipService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		notifier:   notifier,
	}
}

// SendRequest отправляет заявку в друзья по инвайт-коду адресата.
func (s *friendshipService) SendRequest(userID int64, inviteCode string) (*models.FriendshipResponse, error) {
	ctx := context.Background()

	recipient, err := s.userRepo.GetUserByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("[FriendshipService] Заявка по несуществующему инвайт-коду '%s' от пользователя %d",
				inviteCode, userID)
			return nil, ErrUserNotFound
		}
		log.Printf("[FriendshipService] Ошибка поиска по инвайт-коду '%s': %v", inviteCode, err)
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if recipient.ID == userID {
		return nil, ErrSelfFriendship
	}

	// Проверяем существующую связь в любом направлении
	existing, err := s.friendRepo.GetBetween(ctx, userID, recipient.ID)
	if err != nil && !errors.Is(err, repository.ErrFriendshipNotFound) {
		log.Printf("[FriendshipService] Ошибка проверки дружбы %d-%d: %v", userID, recipient.ID, err)
		return nil, fmt.Errorf("ошибка проверки дружбы: %w", err)
	}
	if existing != nil {
		if existing.Status == models.FriendshipStatusAccepted {
			return nil, ErrAlreadyFriends
		}
		return nil, ErrFriendRequestPending
	}

	friendship, err := s.friendRepo.CreateRequest(ctx, userID, recipient.ID)
	if err != nil {
		// Гонка двух одновременных заявок: уникальный индекс пары
		if errors.Is(err, repository.ErrFriendshipExists) {
			return nil, ErrFriendRequestPending
		}
		log.Printf("[FriendshipService] Ошибка создания заявки %d -> %d: %v", userID, recipient.ID, err)
		return nil, fmt.Errorf("ошибка создания заявки: %w", err)
	}

	sender, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[FriendshipService] Ошибка получения отправителя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения отправителя: %w", err)
	}

	log.Printf("[FriendshipService] Пользователь %d отправил заявку в друзья пользователю %d",
		userID, recipient.ID)

	s.notifier.NotifyUser(recipient.ID, "New Friend Request",
		fmt.Sprintf("%s sent you a friend request", sender.Username),
		map[string]interface{}{
			"type":          "friend_request",
			"friendship_id": friendship.ID,
		})

	return &models.FriendshipResponse{
		ID:        friendship.ID,
		UserID:    friendship.UserID,
		FriendID:  friendship.FriendID,
		Status:    friendship.Status,
		CreatedAt: friendship.CreatedAt,
		Friend:    recipient,
	}, nil
}

// AcceptRequest принимает входящую заявку в друзья.
func (s *friendshipService) AcceptRequest(userID, friendshipID int64) (*models.FriendshipResponse, error) {
	ctx := context.Background()

	friendship, err := s.getPendingForRecipient(ctx, userID, friendshipID)
	if err != nil {
		return nil, err
	}

	if err = s.friendRepo.Accept(ctx, friendshipID); err != nil {
		if errors.Is(err, repository.ErrFriendshipNotFound) {
			return nil, ErrFriendshipNotFound
		}
		log.Printf("[FriendshipService] Ошибка принятия заявки %d: %v", friendshipID, err)
		return nil, fmt.Errorf("ошибка принятия заявки: %w", err)
	}

	requester, err := s.userRepo.GetUserByID(ctx, friendship.UserID)
	if err != nil {
		log.Printf("[FriendshipService] Ошибка получения отправителя заявки %d: %v", friendship.UserID, err)
		return nil, fmt.Errorf("ошибка получения отправителя: %w", err)
	}

	recipient, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[FriendshipService] Ошибка получения получателя заявки %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения получателя: %w", err)
	}

	log.Printf("[FriendshipService] Пользователь %d принял заявку %d от пользователя %d",
		userID, friendshipID, friendship.UserID)

	s.notifier.NotifyUser(friendship.UserID, "Friend Request Accepted",
		fmt.Sprintf("%s accepted your friend request", recipient.Username),
		map[string]interface{}{
			"type":          "friend_request_accepted",
			"friendship_id": friendship.ID,
		})

	return &models.FriendshipResponse{
		ID:        friendship.ID,
		UserID:    friendship.UserID,
		FriendID:  friendship.FriendID,
		Status:    models.FriendshipStatusAccepted,
		CreatedAt: friendship.CreatedAt,
		Friend:    requester,
	}, nil
}

// DeclineRequest отклоняет входящую заявку: запись удаляется.
func (s *friendshipService) DeclineRequest(userID, friendshipID int64) error {
	ctx := context.Background()

	friendship, err := s.getPendingForRecipient(ctx, userID, friendshipID)
	if err != nil {
		return err
	}

	if err = s.friendRepo.Delete(ctx, friendshipID); err != nil {
		if errors.Is(err, repository.ErrFriendshipNotFound) {
			return ErrFriendshipNotFound
		}
		log.Printf("[FriendshipService] Ошибка отклонения заявки %d: %v", friendshipID, err)
		return fmt.Errorf("ошибка отклонения заявки: %w", err)
	}

	log.Printf("[FriendshipService] Пользователь %d отклонил заявку %d от пользователя %d",
		userID, friendshipID, friendship.UserID)
	return nil
}

// getPendingForRecipient возвращает pending-заявку, адресованную пользователю.
func (s *friendshipService) getPendingForRecipient(
	ctx context.Context,
	userID, friendshipID int64,
) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetByID(ctx, friendshipID)
	if err != nil {
		if errors.Is(err, repository.ErrFriendshipNotFound) {
			return nil, ErrFriendshipNotFound
		}
		log.Printf("[FriendshipService] Ошибка получения заявки %d: %v", friendshipID, err)
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}

	if friendship.FriendID != userID {
		log.Printf("[FriendshipService] Пользователь %d не является получателем заявки %d", userID, friendshipID)
		return nil, ErrNotRequestRecipient
	}
	if friendship.Status != models.FriendshipStatusPending {
		return nil, ErrFriendRequestNotPending
	}
	return friendship, nil
}

// GetFriends возвращает список принятых друзей пользователя.
func (s *friendshipService) GetFriends(userID int64) (*models.FriendListResponse, error) {
	ctx := context.Background()

	friends, err := s.friendRepo.GetFriends(ctx, userID)
	if err != nil {
		log.Printf("[FriendshipService] Ошибка получения друзей пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения друзей: %w", err)
	}

	return &models.FriendListResponse{Friends: friends, Total: len(friends)}, nil
}

// GetPendingRequests возвращает входящие заявки пользователя.
func (s *friendshipService) GetPendingRequests(userID int64) (*models.PendingRequestsResponse, error) {
	ctx := context.Background()

	pending, err := s.friendRepo.GetPendingForUser(ctx, userID)
	if err != nil {
		log.Printf("[FriendshipService] Ошибка получения входящих заявок пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}

	requests := make([]models.PendingRequestResponse, 0, len(pending))
	for _, f := range pending {
		requester, err := s.userRepo.GetUserByID(ctx, f.UserID)
		if err != nil {
			log.Printf("[FriendshipService] Ошибка получения отправителя заявки %d: %v", f.ID, err)
			return nil, fmt.Errorf("ошибка получения отправителя: %w", err)
		}
		requests = append(requests, models.PendingRequestResponse{
			ID:        f.ID,
			UserID:    f.UserID,
			Status:    f.Status,
			CreatedAt: f.CreatedAt,
			Requester: requester,
		})
	}

	return &models.PendingRequestsResponse{Requests: requests, Total: len(requests)}, nil
}

// GetSentRequests возвращает исходящие заявки пользователя.
// В поле Requester подставляется адресат заявки.
func (s *friendshipService) GetSentRequests(userID int64) (*models.PendingRequestsResponse, error) {
	ctx := context.Background()

	sent, err := s.friendRepo.GetSentByUser(ctx, userID)
	if err != nil {
		log.Printf("[FriendshipService] Ошибка получения исходящих заявок пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}

	requests := make([]models.PendingRequestResponse, 0, len(sent))
	for _, f := range sent {
		recipient, err := s.userRepo.GetUserByID(ctx, f.FriendID)
		if err != nil {
			log.Printf("[FriendshipService] Ошибка получения адресата заявки %d: %v", f.ID, err)
			return nil, fmt.Errorf("ошибка получения адресата: %w", err)
		}
		requests = append(requests, models.PendingRequestResponse{
			ID:        f.ID,
			UserID:    f.FriendID,
			Status:    f.Status,
			CreatedAt: f.CreatedAt,
			Requester: recipient,
		})
	}

	return &models.PendingRequestsResponse{Requests: requests, Total: len(requests)}, nil
}

// RemoveFriend удаляет принятую дружбу между пользователями.
func (s *friendshipService) RemoveFriend(userID, friendID int64) error {
	ctx := context.Background()

	if err := s.friendRepo.DeleteAcceptedBetween(ctx, userID, friendID); err != nil {
		if errors.Is(err, repository.ErrFriendshipNotFound) {
			return ErrFriendshipNotFound
		}
		log.Printf("[FriendshipService] Ошибка удаления дружбы %d-%d: %v", userID, friendID, err)
		return fmt.Errorf("ошибка удаления дружбы: %w", err)
	}

	log.Printf("[FriendshipService] Дружба пользователей %d и %d удалена", userID, friendID)
	return nil
}

// AreFriends проверяет наличие принятой дружбы между пользователями.
func (s *friendshipService) AreFriends(userID, otherID int64) (bool, error) {
	ctx := context.Background()

	ok, err := s.friendRepo.AreFriends(ctx, userID, otherID)
	if err != nil {
		log.Printf("[FriendshipService] Ошибка проверки дружбы %d-%d: %v", userID, otherID, err)
		return false, fmt.Errorf("ошибка проверки дружбы: %w", err)
	}
	return ok, nil
}

// Кастомные ошибки сервиса.
var (
	ErrSelfFriendship          = errors.New("нельзя отправить заявку самому себе")
	ErrAlreadyFriends          = errors.New("пользователи уже друзья")
	ErrFriendRequestPending    = errors.New("заявка уже отправлена")
	ErrFriendRequestNotPending = errors.New("заявка уже обработана")
	ErrFriendshipNotFound      = errors.New("заявка или дружба не найдена")
	ErrNotRequestRecipient     = errors.New("пользователь не является получателем заявки")
)
