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

// MediaRepository определяет методы для работы с метаданными медиафайлов.
// Сами зашифрованные блобы лежат в объектном хранилище (storage.FileStorage).
type MediaRepository interface {
	Create(ctx context.Context, media *models.VaultMedia) error
	GetByID(ctx context.Context, mediaID uuid.UUID) (*models.VaultMedia, error)
	GetByVault(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMedia, error)
	CountByVault(ctx context.Context, vaultID uuid.UUID) (int, error)
	Delete(ctx context.Context, mediaID uuid.UUID) error
}

// postgresMediaRepository реализует MediaRepository для PostgreSQL.
type postgresMediaRepository struct {
	db *sqlx.DB
}

// NewPostgresMediaRepository создает новый экземпляр репозитория медиафайлов.
func NewPostgresMediaRepository(db *sqlx.DB) MediaRepository {
	return &postgresMediaRepository{db: db}
}

const mediaColumns = `id, vault_id, uploaded_by_id, media_type, file_name, file_size,
	storage_key, encryption_iv, encryption_tag, thumbnail_key, created_at`

// Create сохраняет метаданные медиафайла.
func (r *postgresMediaRepository) Create(ctx context.Context, media *models.VaultMedia) error {
	query := `INSERT INTO vault_media
	            (id, vault_id, uploaded_by_id, media_type, file_name, file_size,
	             storage_key, encryption_iv, encryption_tag, thumbnail_key)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		media.ID, media.VaultID, media.UploadedByID, media.MediaType, media.FileName,
		media.FileSize, media.StorageKey, media.EncryptionIV, media.EncryptionTag, media.ThumbnailKey)
	if err != nil {
		log.Printf("[MediaRepo] Ошибка сохранения медиафайла %s: %v", media.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на сохранение медиафайла: %w", err)
	}

	log.Printf("[MediaRepo] Медиафайл %s сохранен (хранилище %s)", media.ID, media.VaultID)
	return nil
}

// GetByID находит метаданные медиафайла по ID.
func (r *postgresMediaRepository) GetByID(ctx context.Context, mediaID uuid.UUID) (*models.VaultMedia, error) {
	query := `SELECT ` + mediaColumns + ` FROM vault_media WHERE id=$1`

	var media models.VaultMedia
	err := r.db.GetContext(ctx, &media, query, mediaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMediaNotFound
		}
		log.Printf("[MediaRepo] Ошибка поиска медиафайла %s: %v", mediaID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск медиафайла: %w", err)
	}

	return &media, nil
}

// GetByVault возвращает метаданные всех медиафайлов хранилища.
func (r *postgresMediaRepository) GetByVault(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMedia, error) {
	query := `SELECT ` + mediaColumns + ` FROM vault_media WHERE vault_id=$1 ORDER BY created_at DESC`

	media := []models.VaultMedia{}
	if err := r.db.SelectContext(ctx, &media, query, vaultID); err != nil {
		log.Printf("[MediaRepo] Ошибка получения медиафайлов хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение медиафайлов: %w", err)
	}

	return media, nil
}

// CountByVault возвращает число медиафайлов в хранилище.
func (r *postgresMediaRepository) CountByVault(ctx context.Context, vaultID uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM vault_media WHERE vault_id=$1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, vaultID); err != nil {
		log.Printf("[MediaRepo] Ошибка подсчета медиафайлов хранилища %s: %v", vaultID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на подсчет медиафайлов: %w", err)
	}

	return count, nil
}

// Delete удаляет метаданные медиафайла.
func (r *postgresMediaRepository) Delete(ctx context.Context, mediaID uuid.UUID) error {
	query := `DELETE FROM vault_media WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, mediaID)
	if err != nil {
		log.Printf("[MediaRepo] Ошибка удаления медиафайла %s: %v", mediaID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление медиафайла: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrMediaNotFound
	}

	return nil
}

// Кастомная ошибка репозитория.
var (
	ErrMediaNotFound = errors.New("медиафайл не найден")
)
