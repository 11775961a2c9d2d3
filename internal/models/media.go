package models

import (
	"time"

	"github.com/google/uuid"
)

// Тип медиафайла.
type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// VaultMedia представляет зашифрованный медиафайл в хранилище.
// Файл шифруется на устройстве до загрузки; сервер хранит только
// зашифрованный блоб и метаданные (IV и тег AES-GCM в base64).
type VaultMedia struct {
	ID           uuid.UUID `db:"id" json:"id"`
	VaultID      uuid.UUID `db:"vault_id" json:"vault_id"`
	UploadedByID int64     `db:"uploaded_by_id" json:"uploaded_by_id"`
	MediaType    MediaType `db:"media_type" json:"media_type"`
	FileName     string    `db:"file_name" json:"file_name"`
	// Размер зашифрованного файла в байтах.
	FileSize      int64     `db:"file_size" json:"file_size"`
	StorageKey    string    `db:"storage_key" json:"-"`
	EncryptionIV  string    `db:"encryption_iv" json:"encryption_iv"`
	EncryptionTag string    `db:"encryption_tag" json:"encryption_tag"`
	ThumbnailKey  *string   `db:"thumbnail_key" json:"thumbnail_key,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// MediaResponse представляет медиафайл в ответах API.
type MediaResponse struct {
	VaultMedia
	UploadedBy *User `json:"uploaded_by,omitempty"`
}

// MediaListResponse представляет список медиафайлов хранилища.
type MediaListResponse struct {
	Media []MediaResponse `json:"media"`
	Total int             `json:"total"`
}
