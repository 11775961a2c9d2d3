package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/woven-app/server/internal/models"
)

// FriendshipRepository определяет методы для работы с дружбами.
// Дружба хранится одной направленной строкой, но все парные выборки
// симметричны: пользователь может стоять в любой из двух колонок.
type FriendshipRepository interface {
	CreateRequest(ctx context.Context, fromUserID, toUserID int64) (*models.Friendship, error)
	GetByID(ctx context.Context, friendshipID int64) (*models.Friendship, error)
	// GetBetween возвращает запись дружбы между двумя пользователями
	// в любом направлении и любом статусе.
	GetBetween(ctx context.Context, userID1, userID2 int64) (*models.Friendship, error)
	GetPendingForUser(ctx context.Context, userID int64) ([]models.Friendship, error)
	GetSentByUser(ctx context.Context, userID int64) ([]models.Friendship, error)
	Accept(ctx context.Context, friendshipID int64) error
	Delete(ctx context.Context, friendshipID int64) error
	// DeleteAcceptedBetween удаляет принятую дружбу между парой пользователей
	// независимо от того, кто был инициатором.
	DeleteAcceptedBetween(ctx context.Context, userID1, userID2 int64) error
	// GetFriends возвращает пользователей, с которыми есть принятая дружба.
	GetFriends(ctx context.Context, userID int64) ([]models.User, error)
	AreFriends(ctx context.Context, userID1, userID2 int64) (bool, error)
}

// postgresFriendshipRepository реализует FriendshipRepository для PostgreSQL.
type postgresFriendshipRepository struct {
	db *sqlx.DB
}

// NewPostgresFriendshipRepository создает новый экземпляр репозитория дружб.
func NewPostgresFriendshipRepository(db *sqlx.DB) FriendshipRepository {
	return &postgresFriendshipRepository{db: db}
}

const friendshipColumns = `id, user_id, friend_id, status, created_at, updated_at`

// CreateRequest создает новую заявку в друзья со статусом pending.
func (r *postgresFriendshipRepository) CreateRequest(
	ctx context.Context,
	fromUserID, toUserID int64,
) (*models.Friendship, error) {
	query := `INSERT INTO friendships (user_id, friend_id, status)
	          VALUES ($1, $2, $3)
	          RETURNING ` + friendshipColumns

	var friendship models.Friendship
	err := r.db.GetContext(ctx, &friendship, query, fromUserID, toUserID, models.FriendshipStatusPending)
	if err != nil {
		// Уникальный индекс по неупорядоченной паре — заявка уже есть
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[FriendRepo] Между пользователями %d и %d уже есть запись дружбы", fromUserID, toUserID)
			return nil, ErrFriendshipExists
		}
		log.Printf("[FriendRepo] Ошибка создания заявки %d -> %d: %v", fromUserID, toUserID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на создание заявки: %w", err)
	}

	log.Printf("[FriendRepo] Заявка в друзья %d -> %d создана (ID %d)", fromUserID, toUserID, friendship.ID)
	return &friendship, nil
}

// GetByID находит запись дружбы по её ID.
func (r *postgresFriendshipRepository) GetByID(ctx context.Context, friendshipID int64) (*models.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE id=$1`

	var friendship models.Friendship
	err := r.db.GetContext(ctx, &friendship, query, friendshipID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFriendshipNotFound
		}
		log.Printf("[FriendRepo] Ошибка поиска дружбы ID %d: %v", friendshipID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск дружбы: %w", err)
	}

	return &friendship, nil
}

// GetBetween возвращает запись дружбы между двумя пользователями (любое
// направление, любой статус) или ErrFriendshipNotFound.
func (r *postgresFriendshipRepository) GetBetween(
	ctx context.Context,
	userID1, userID2 int64,
) (*models.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships
	          WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)`

	var friendship models.Friendship
	err := r.db.GetContext(ctx, &friendship, query, userID1, userID2)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFriendshipNotFound
		}
		log.Printf("[FriendRepo] Ошибка поиска дружбы между %d и %d: %v", userID1, userID2, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск дружбы: %w", err)
	}

	return &friendship, nil
}

// GetPendingForUser возвращает входящие заявки, ожидающие ответа пользователя.
func (r *postgresFriendshipRepository) GetPendingForUser(ctx context.Context, userID int64) ([]models.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE friend_id=$1 AND status=$2`

	friendships := []models.Friendship{}
	if err := r.db.SelectContext(ctx, &friendships, query, userID, models.FriendshipStatusPending); err != nil {
		log.Printf("[FriendRepo] Ошибка получения входящих заявок пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение заявок: %w", err)
	}

	return friendships, nil
}

// GetSentByUser возвращает исходящие заявки пользователя.
func (r *postgresFriendshipRepository) GetSentByUser(ctx context.Context, userID int64) ([]models.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE user_id=$1 AND status=$2`

	friendships := []models.Friendship{}
	if err := r.db.SelectContext(ctx, &friendships, query, userID, models.FriendshipStatusPending); err != nil {
		log.Printf("[FriendRepo] Ошибка получения исходящих заявок пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение заявок: %w", err)
	}

	return friendships, nil
}

// Accept переводит pending-заявку в accepted.
func (r *postgresFriendshipRepository) Accept(ctx context.Context, friendshipID int64) error {
	query := `UPDATE friendships SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`

	res, err := r.db.ExecContext(ctx, query,
		models.FriendshipStatusAccepted, friendshipID, models.FriendshipStatusPending)
	if err != nil {
		log.Printf("[FriendRepo] Ошибка принятия заявки ID %d: %v", friendshipID, err)
		return fmt.Errorf("ошибка выполнения запроса на принятие заявки: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if rows == 0 {
		return ErrFriendshipNotFound
	}

	return nil
}

// Delete удаляет запись дружбы. Отклонённая заявка удаляется полностью,
// что позволяет отправить новую заявку между той же парой.
func (r *postgresFriendshipRepository) Delete(ctx context.Context, friendshipID int64) error {
	query := `DELETE FROM friendships WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, friendshipID)
	if err != nil {
		log.Printf("[FriendRepo] Ошибка удаления дружбы ID %d: %v", friendshipID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление дружбы: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrFriendshipNotFound
	}

	return nil
}

// DeleteAcceptedBetween удаляет принятую дружбу между парой пользователей.
func (r *postgresFriendshipRepository) DeleteAcceptedBetween(ctx context.Context, userID1, userID2 int64) error {
	query := `DELETE FROM friendships
	          WHERE status=$1
	            AND ((user_id=$2 AND friend_id=$3) OR (user_id=$3 AND friend_id=$2))`

	res, err := r.db.ExecContext(ctx, query, models.FriendshipStatusAccepted, userID1, userID2)
	if err != nil {
		log.Printf("[FriendRepo] Ошибка удаления дружбы между %d и %d: %v", userID1, userID2, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление дружбы: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrFriendshipNotFound
	}

	return nil
}

// GetFriends возвращает пользователей, с которыми есть принятая дружба.
// "Другой" пользователь выбирается по тому, в какой колонке стоит сам
// пользователь — связь симметрична.
func (r *postgresFriendshipRepository) GetFriends(ctx context.Context, userID int64) ([]models.User, error) {
	query := `SELECT u.id, u.username, u.email, u.password_hash, u.full_name, u.invite_code,
	                 u.profile_picture_url, u.public_key, u.created_at, u.updated_at
	          FROM friendships f
	          JOIN users u ON u.id = CASE WHEN f.user_id=$1 THEN f.friend_id ELSE f.user_id END
	          WHERE f.status=$2 AND (f.user_id=$1 OR f.friend_id=$1)`

	friends := []models.User{}
	if err := r.db.SelectContext(ctx, &friends, query, userID, models.FriendshipStatusAccepted); err != nil {
		log.Printf("[FriendRepo] Ошибка получения друзей пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение друзей: %w", err)
	}

	return friends, nil
}

// AreFriends проверяет наличие принятой дружбы между двумя пользователями.
// Результат симметричен относительно порядка аргументов.
func (r *postgresFriendshipRepository) AreFriends(ctx context.Context, userID1, userID2 int64) (bool, error) {
	query := `SELECT EXISTS (
	            SELECT 1 FROM friendships
	            WHERE status=$1
	              AND ((user_id=$2 AND friend_id=$3) OR (user_id=$3 AND friend_id=$2))
	          )`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, models.FriendshipStatusAccepted, userID1, userID2); err != nil {
		log.Printf("[FriendRepo] Ошибка проверки дружбы между %d и %d: %v", userID1, userID2, err)
		return false, fmt.Errorf("ошибка выполнения запроса на проверку дружбы: %w", err)
	}

	return exists, nil
}

// Кастомные ошибки репозитория.
var (
	ErrFriendshipNotFound = errors.New("дружба не найдена")
	ErrFriendshipExists   = errors.New("запись дружбы уже существует")
)
