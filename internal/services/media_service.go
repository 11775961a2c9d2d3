package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
	"github.com/woven-app/server/internal/storage"
)

// MediaService определяет интерфейс для сервиса медиафайлов хранилищ.
// Файлы шифруются на устройстве до загрузки: сервер принимает
// непрозрачный блоб и метаданные шифрования (IV и тег AES-GCM).
type MediaService interface {
	Upload(userID int64, vaultID uuid.UUID, upload *MediaUpload) (*models.VaultMedia, error)
	List(userID int64, vaultID uuid.UUID) (*models.MediaListResponse, error)
	// Download возвращает поток зашифрованного блоба и метаданные файла.
	// Вызывающий обязан закрыть поток.
	Download(userID int64, mediaID uuid.UUID) (io.ReadCloser, *models.VaultMedia, error)
	// Delete удаляет медиафайл. Разрешено загрузившему или владельцу хранилища.
	Delete(userID int64, mediaID uuid.UUID) error
}

// MediaUpload описывает загружаемый зашифрованный файл.
type MediaUpload struct {
	FileName      string
	MediaType     models.MediaType
	Size          int64
	ContentType   string
	EncryptionIV  string
	EncryptionTag string
	// Ключ миниатюры в объектном хранилище, если клиент загрузил её отдельно.
	ThumbnailKey *string
	Reader       io.Reader
}

// Убедимся, что mediaService удовлетворяет интерфейсу MediaService.
var _ MediaService = (*mediaService)(nil)

type mediaService struct {
	mediaRepo   repository.MediaRepository
	vaultRepo   repository.VaultRepository
	userRepo    repository.UserRepository
	fileStorage storage.FileStorage
}

// NewMediaService создает новый экземпляр сервиса медиафайлов.
func NewMediaService(
	mediaRepo repository.MediaRepository,
	vaultRepo repository.VaultRepository,
	userRepo repository.UserRepository,
	fileStorage storage.FileStorage,
) MediaService {
	return &mediaService{
		mediaRepo:   mediaRepo,
		vaultRepo:   vaultRepo,
		userRepo:    userRepo,
		fileStorage: fileStorage,
	}
}

// Upload загружает зашифрованный блоб в объектное хранилище и сохраняет
// метаданные в БД.
func (s *mediaService) Upload(
	userID int64,
	vaultID uuid.UUID,
	upload *MediaUpload,
) (*models.VaultMedia, error) {
	ctx := context.Background()

	if err := s.checkVaultAccess(ctx, userID, vaultID); err != nil {
		return nil, err
	}

	mediaID := uuid.New()
	storageKey := fmt.Sprintf("%s/%s/%s", vaultID, mediaID, upload.FileName)

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.fileStorage.UploadFile(ctx, storageKey, upload.Reader, upload.Size, contentType); err != nil {
		log.Printf("[MediaService] Ошибка загрузки блоба '%s': %v", storageKey, err)
		return nil, fmt.Errorf("ошибка загрузки файла: %w", err)
	}

	media := &models.VaultMedia{
		ID:            mediaID,
		VaultID:       vaultID,
		UploadedByID:  userID,
		MediaType:     upload.MediaType,
		FileName:      upload.FileName,
		FileSize:      upload.Size,
		StorageKey:    storageKey,
		EncryptionIV:  upload.EncryptionIV,
		EncryptionTag: upload.EncryptionTag,
		ThumbnailKey:  upload.ThumbnailKey,
	}

	if err := s.mediaRepo.Create(ctx, media); err != nil {
		log.Printf("[MediaService] Ошибка сохранения метаданных медиафайла %s: %v", mediaID, err)
		// Блоб уже в хранилище — убираем, чтобы не оставлять сироту
		if delErr := s.fileStorage.DeleteFile(ctx, storageKey); delErr != nil {
			log.Printf("[MediaService] Ошибка удаления блоба '%s' после сбоя БД: %v", storageKey, delErr)
		}
		return nil, fmt.Errorf("ошибка сохранения метаданных: %w", err)
	}

	log.Printf("[MediaService] Пользователь %d загрузил медиафайл %s в хранилище %s (%d байт)",
		userID, mediaID, vaultID, upload.Size)
	return media, nil
}

// List возвращает медиафайлы хранилища.
func (s *mediaService) List(userID int64, vaultID uuid.UUID) (*models.MediaListResponse, error) {
	ctx := context.Background()

	if err := s.checkVaultAccess(ctx, userID, vaultID); err != nil {
		return nil, err
	}

	mediaList, err := s.mediaRepo.GetByVault(ctx, vaultID)
	if err != nil {
		log.Printf("[MediaService] Ошибка получения медиафайлов хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка получения медиафайлов: %w", err)
	}

	responses := make([]models.MediaResponse, 0, len(mediaList))
	for _, media := range mediaList {
		uploader, err := s.userRepo.GetUserByID(ctx, media.UploadedByID)
		if err != nil {
			log.Printf("[MediaService] Ошибка получения загрузившего %d: %v", media.UploadedByID, err)
			return nil, fmt.Errorf("ошибка получения загрузившего: %w", err)
		}
		responses = append(responses, models.MediaResponse{
			VaultMedia: media,
			UploadedBy: uploader,
		})
	}

	return &models.MediaListResponse{Media: responses, Total: len(responses)}, nil
}

// Download возвращает поток зашифрованного блоба.
func (s *mediaService) Download(userID int64, mediaID uuid.UUID) (io.ReadCloser, *models.VaultMedia, error) {
	ctx := context.Background()

	media, err := s.getMedia(ctx, mediaID)
	if err != nil {
		return nil, nil, err
	}
	if err = s.checkVaultAccess(ctx, userID, media.VaultID); err != nil {
		return nil, nil, err
	}

	reader, err := s.fileStorage.DownloadFile(ctx, media.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Метаданные есть, блоба нет: рассинхронизация БД и хранилища
			log.Printf("[MediaService] Блоб '%s' медиафайла %s отсутствует в хранилище", media.StorageKey, mediaID)
			return nil, nil, ErrMediaNotFound
		}
		log.Printf("[MediaService] Ошибка скачивания блоба '%s': %v", media.StorageKey, err)
		return nil, nil, fmt.Errorf("ошибка скачивания файла: %w", err)
	}

	log.Printf("[MediaService] Пользователь %d скачивает медиафайл %s", userID, mediaID)
	return reader, media, nil
}

// Delete удаляет медиафайл из объектного хранилища и БД.
func (s *mediaService) Delete(userID int64, mediaID uuid.UUID) error {
	ctx := context.Background()

	media, err := s.getMedia(ctx, mediaID)
	if err != nil {
		return err
	}

	vault, err := s.vaultRepo.GetVaultByID(ctx, media.VaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		log.Printf("[MediaService] Ошибка получения хранилища %s: %v", media.VaultID, err)
		return fmt.Errorf("ошибка получения хранилища: %w", err)
	}

	// Удалять может загрузивший или владелец хранилища
	if media.UploadedByID != userID && vault.OwnerID != userID {
		log.Printf("[MediaService] Пользователь %d не может удалить медиафайл %s", userID, mediaID)
		return ErrMediaAccessDenied
	}

	if err = s.fileStorage.DeleteFile(ctx, media.StorageKey); err != nil {
		// Блоб-сирота лучше, чем видимый, но неудаляемый файл
		log.Printf("[MediaService] Ошибка удаления блоба '%s': %v", media.StorageKey, err)
	}
	if media.ThumbnailKey != nil {
		if err = s.fileStorage.DeleteFile(ctx, *media.ThumbnailKey); err != nil {
			log.Printf("[MediaService] Ошибка удаления миниатюры '%s': %v", *media.ThumbnailKey, err)
		}
	}

	if err = s.mediaRepo.Delete(ctx, mediaID); err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			return ErrMediaNotFound
		}
		log.Printf("[MediaService] Ошибка удаления метаданных медиафайла %s: %v", mediaID, err)
		return fmt.Errorf("ошибка удаления метаданных: %w", err)
	}

	log.Printf("[MediaService] Пользователь %d удалил медиафайл %s из хранилища %s",
		userID, mediaID, media.VaultID)
	return nil
}

// getMedia возвращает метаданные медиафайла.
func (s *mediaService) getMedia(ctx context.Context, mediaID uuid.UUID) (*models.VaultMedia, error) {
	media, err := s.mediaRepo.GetByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			return nil, ErrMediaNotFound
		}
		log.Printf("[MediaService] Ошибка получения медиафайла %s: %v", mediaID, err)
		return nil, fmt.Errorf("ошибка получения медиафайла: %w", err)
	}
	return media, nil
}

// checkVaultAccess проверяет, что пользователь — владелец или принятый
// участник хранилища.
func (s *mediaService) checkVaultAccess(ctx context.Context, userID int64, vaultID uuid.UUID) error {
	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		log.Printf("[MediaService] Ошибка получения хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка получения хранилища: %w", err)
	}
	if vault.OwnerID == userID {
		return nil
	}

	isMember, err := s.vaultRepo.IsAcceptedMember(ctx, vaultID, userID)
	if err != nil {
		log.Printf("[MediaService] Ошибка проверки участия пользователя %d в хранилище %s: %v",
			userID, vaultID, err)
		return fmt.Errorf("ошибка проверки участия: %w", err)
	}
	if !isMember {
		log.Printf("[MediaService] Пользователь %d не имеет доступа к хранилищу %s", userID, vaultID)
		return ErrNotVaultMember
	}
	return nil
}

// Кастомные ошибки сервиса.
var (
	ErrMediaNotFound     = errors.New("медиафайл не найден")
	ErrMediaAccessDenied = errors.New("нет прав на удаление медиафайла")
)
