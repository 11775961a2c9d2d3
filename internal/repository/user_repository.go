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

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolationCode = "23505"
)

// UserRepository определяет методы для работы с данными пользователей в хранилище.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// GetUserByIdentifier ищет пользователя по email или имени пользователя.
	GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetUserByInviteCode(ctx context.Context, inviteCode string) (*models.User, error)
	UpdateFullName(ctx context.Context, userID int64, fullName string) error
}

// postgresUserRepository реализует UserRepository для PostgreSQL.
type postgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository создает новый экземпляр репозитория пользователей для PostgreSQL.
func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, full_name, invite_code,
	profile_picture_url, public_key, created_at, updated_at`

// CreateUser создает нового пользователя в базе данных.
// Возвращает ID созданного пользователя или ошибку.
func (r *postgresUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	query := `INSERT INTO users (username, email, password_hash, full_name, invite_code)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var userID int64

	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FullName, user.InviteCode,
	).Scan(&userID)
	if err != nil {
		// Проверяем на ошибку нарушения уникальности (duplicate key)
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			switch pgErr.Constraint {
			case "users_email_key":
				log.Printf("[UserRepo] Email '%s' уже зарегистрирован", user.Email)
				return 0, ErrEmailTaken
			default:
				log.Printf("[UserRepo] Имя пользователя '%s' уже занято", user.Username)
				return 0, ErrUsernameTaken
			}
		}
		log.Printf("[UserRepo] Непредвиденная ошибка при создании пользователя '%s': %v", user.Username, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание пользователя: %w", err)
	}

	log.Printf("[UserRepo] Пользователь '%s' успешно создан с ID %d", user.Username, userID)
	return userID, nil
}

// GetUserByID находит пользователя по его ID.
func (r *postgresUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	var user models.User

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.Printf("[UserRepo] Ошибка при поиске пользователя ID %d: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск пользователя: %w", err)
	}

	return &user, nil
}

// GetUserByIdentifier находит пользователя по email или имени пользователя.
// Идентификатор сравнивается без учета регистра.
func (r *postgresUserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=lower($1) OR username=lower($1)`
	var user models.User

	err := r.db.GetContext(ctx, &user, query, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[UserRepo] Пользователь '%s' не найден", identifier)
			return nil, ErrUserNotFound
		}
		log.Printf("[UserRepo] Ошибка при поиске пользователя '%s': %v", identifier, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск пользователя: %w", err)
	}

	return &user, nil
}

// GetUserByInviteCode находит пользователя по его инвайт-коду.
func (r *postgresUserRepository) GetUserByInviteCode(ctx context.Context, inviteCode string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE invite_code=$1`
	var user models.User

	err := r.db.GetContext(ctx, &user, query, inviteCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[UserRepo] Пользователь с инвайт-кодом '%s' не найден", inviteCode)
			return nil, ErrUserNotFound
		}
		log.Printf("[UserRepo] Ошибка при поиске по инвайт-коду '%s': %v", inviteCode, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск по инвайт-коду: %w", err)
	}

	return &user, nil
}

// UpdateFullName обновляет полное имя пользователя.
func (r *postgresUserRepository) UpdateFullName(ctx context.Context, userID int64, fullName string) error {
	query := `UPDATE users SET full_name=$1, updated_at=now() WHERE id=$2`

	res, err := r.db.ExecContext(ctx, query, fullName, userID)
	if err != nil {
		log.Printf("[UserRepo] Ошибка обновления имени пользователя ID %d: %v", userID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление пользователя: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Кастомные ошибки репозитория.
var (
	ErrUserNotFound  = errors.New("пользователь не найден")
	ErrUsernameTaken = errors.New("имя пользователя уже занято")
	ErrEmailTaken    = errors.New("email уже зарегистрирован")
)
