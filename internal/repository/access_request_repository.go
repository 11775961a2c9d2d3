package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/woven-app/server/internal/models"
)

// AccessRequestRepository определяет методы для работы с запросами доступа
// к хранилищам в строгом режиме. Переходы approve/deny/expire выполняются
// условным UPDATE с проверкой status=pending: запрос, покинувший pending,
// больше не изменяется.
type AccessRequestRepository interface {
	Create(ctx context.Context, req *models.AccessRequest) (int64, error)
	GetByID(ctx context.Context, requestID int64) (*models.AccessRequest, error)
	GetPendingByVault(ctx context.Context, vaultID uuid.UUID) ([]models.AccessRequest, error)
	// MarkApproved переводит pending-запрос в approved и сохраняет
	// зашифрованную долю ключа. Возвращает ErrAccessRequestNotPending,
	// если запрос уже покинул статус pending.
	MarkApproved(ctx context.Context, requestID int64, encryptedShare string) error
	MarkDenied(ctx context.Context, requestID int64) error
	MarkExpired(ctx context.Context, requestID int64) error
}

// postgresAccessRequestRepository реализует AccessRequestRepository для PostgreSQL.
type postgresAccessRequestRepository struct {
	db *sqlx.DB
}

// NewPostgresAccessRequestRepository создает новый экземпляр репозитория запросов доступа.
func NewPostgresAccessRequestRepository(db *sqlx.DB) AccessRequestRepository {
	return &postgresAccessRequestRepository{db: db}
}

const accessRequestColumns = `id, vault_id, requester_id, approver_id, status,
	requester_public_key, encrypted_share, created_at, expires_at`

// Create сохраняет новый запрос доступа и возвращает его ID.
func (r *postgresAccessRequestRepository) Create(ctx context.Context, req *models.AccessRequest) (int64, error) {
	query := `INSERT INTO access_requests
	            (vault_id, requester_id, approver_id, status, requester_public_key, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`

	var requestID int64
	err := r.db.QueryRowxContext(ctx, query,
		req.VaultID, req.RequesterID, req.ApproverID, req.Status, req.RequesterPublicKey, req.ExpiresAt,
	).Scan(&requestID)
	if err != nil {
		log.Printf("[AccessRepo] Ошибка создания запроса доступа к хранилищу %s: %v", req.VaultID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание запроса доступа: %w", err)
	}

	log.Printf("[AccessRepo] Запрос доступа ID %d создан (хранилище %s, одобряющий %d)",
		requestID, req.VaultID, req.ApproverID)
	return requestID, nil
}

// GetByID находит запрос доступа по его ID.
func (r *postgresAccessRequestRepository) GetByID(ctx context.Context, requestID int64) (*models.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests WHERE id=$1`

	var req models.AccessRequest
	err := r.db.GetContext(ctx, &req, query, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccessRequestNotFound
		}
		log.Printf("[AccessRepo] Ошибка поиска запроса доступа ID %d: %v", requestID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск запроса доступа: %w", err)
	}

	return &req, nil
}

// GetPendingByVault возвращает pending-запросы доступа к хранилищу.
func (r *postgresAccessRequestRepository) GetPendingByVault(
	ctx context.Context,
	vaultID uuid.UUID,
) ([]models.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests WHERE vault_id=$1 AND status=$2`

	requests := []models.AccessRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, vaultID, models.AccessRequestStatusPending); err != nil {
		log.Printf("[AccessRepo] Ошибка получения pending-запросов хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение запросов доступа: %w", err)
	}

	return requests, nil
}

// MarkApproved переводит pending-запрос в approved и сохраняет долю ключа.
func (r *postgresAccessRequestRepository) MarkApproved(
	ctx context.Context,
	requestID int64,
	encryptedShare string,
) error {
	query := `UPDATE access_requests SET status=$1, encrypted_share=$2 WHERE id=$3 AND status=$4`
	return r.transition(ctx, requestID, query,
		models.AccessRequestStatusApproved, encryptedShare, requestID, models.AccessRequestStatusPending)
}

// MarkDenied переводит pending-запрос в denied.
func (r *postgresAccessRequestRepository) MarkDenied(ctx context.Context, requestID int64) error {
	query := `UPDATE access_requests SET status=$1 WHERE id=$2 AND status=$3`
	return r.transition(ctx, requestID, query,
		models.AccessRequestStatusDenied, requestID, models.AccessRequestStatusPending)
}

// MarkExpired переводит pending-запрос в expired (ленивое истечение TTL).
func (r *postgresAccessRequestRepository) MarkExpired(ctx context.Context, requestID int64) error {
	query := `UPDATE access_requests SET status=$1 WHERE id=$2 AND status=$3`
	return r.transition(ctx, requestID, query,
		models.AccessRequestStatusExpired, requestID, models.AccessRequestStatusPending)
}

func (r *postgresAccessRequestRepository) transition(
	ctx context.Context,
	requestID int64,
	query string,
	args ...interface{},
) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Printf("[AccessRepo] Ошибка смены статуса запроса доступа ID %d: %v", requestID, err)
		return fmt.Errorf("ошибка выполнения запроса на смену статуса: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if rows == 0 {
		// Запрос не существует или уже покинул статус pending
		return ErrAccessRequestNotPending
	}

	return nil
}

// Кастомные ошибки репозитория.
var (
	ErrAccessRequestNotFound   = errors.New("запрос доступа не найден")
	ErrAccessRequestNotPending = errors.New("запрос доступа уже обработан")
)
