package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/services"
)

// Лимит буферизации multipart-формы в памяти; остальное уходит на диск.
const multipartMemoryLimit = 32 << 20 // 32 MiB

// MediaHandler обрабатывает HTTP-запросы, связанные с медиафайлами хранилищ.
type MediaHandler struct {
	service services.MediaService
}

// NewMediaHandler создает новый экземпляр MediaHandler.
func NewMediaHandler(s services.MediaService) *MediaHandler {
	return &MediaHandler{service: s}
}

// Upload обрабатывает POST запрос на загрузку зашифрованного медиафайла.
// Ожидает multipart-форму: file, vault_id, media_type, file_size,
// encryption_iv, encryption_tag и необязательный thumbnail_key.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[MediaHandler:Upload] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		log.Printf("[MediaHandler:Upload] Ошибка разбора multipart-формы: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	vaultID, err := uuid.Parse(r.FormValue("vault_id"))
	if err != nil {
		http.Error(w, "Неверный идентификатор хранилища", http.StatusBadRequest)
		return
	}

	mediaType := models.MediaType(r.FormValue("media_type"))
	if mediaType != models.MediaTypePhoto && mediaType != models.MediaTypeVideo {
		http.Error(w, "Неверный тип медиафайла", http.StatusBadRequest)
		return
	}

	encryptionIV := r.FormValue("encryption_iv")
	encryptionTag := r.FormValue("encryption_tag")
	if encryptionIV == "" || encryptionTag == "" {
		http.Error(w, "Метаданные шифрования не указаны", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		log.Printf("[MediaHandler:Upload] Файл отсутствует в форме: %v", err)
		http.Error(w, "Файл не приложен", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	// Заявленный размер обязан совпадать с фактическим
	declaredSize, err := strconv.ParseInt(r.FormValue("file_size"), 10, 64)
	if err != nil || declaredSize <= 0 {
		http.Error(w, "Неверный размер файла", http.StatusBadRequest)
		return
	}
	if declaredSize != header.Size {
		log.Printf("[MediaHandler:Upload] Несовпадение размера: заявлено %d, получено %d",
			declaredSize, header.Size)
		http.Error(w, "Заявленный размер не совпадает с фактическим", http.StatusBadRequest)
		return
	}

	var thumbnailKey *string
	if v := r.FormValue("thumbnail_key"); v != "" {
		thumbnailKey = &v
	}

	upload := &services.MediaUpload{
		FileName:      header.Filename,
		MediaType:     mediaType,
		Size:          header.Size,
		ContentType:   header.Header.Get("Content-Type"),
		EncryptionIV:  encryptionIV,
		EncryptionTag: encryptionTag,
		ThumbnailKey:  thumbnailKey,
		Reader:        file,
	}

	media, err := h.service.Upload(userID, vaultID, upload)
	if err != nil {
		h.writeMediaError(w, "Upload", userID, err)
		return
	}

	writeJSON(w, http.StatusCreated, media)
}

// ListByVault обрабатывает GET запрос на список медиафайлов хранилища.
func (h *MediaHandler) ListByVault(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[MediaHandler:ListByVault] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	vaultID, err := uuid.Parse(chi.URLParam(r, "vaultID"))
	if err != nil {
		http.Error(w, "Неверный идентификатор хранилища", http.StatusBadRequest)
		return
	}

	list, err := h.service.List(userID, vaultID)
	if err != nil {
		h.writeMediaError(w, "ListByVault", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// View обрабатывает GET запрос на скачивание зашифрованного блоба.
func (h *MediaHandler) View(w http.ResponseWriter, r *http.Request) {
	userID, mediaID, ok := h.userAndMediaID(w, r, "View")
	if !ok {
		return
	}

	reader, media, err := h.service.Download(userID, mediaID)
	if err != nil {
		h.writeMediaError(w, "View", userID, err)
		return
	}
	defer func() { _ = reader.Close() }()

	// Блоб зашифрован, браузеру содержимое недоступно
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(media.FileSize, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", media.FileName))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err = io.Copy(w, reader); err != nil {
		// Заголовки уже отправлены, остается только залогировать
		log.Printf("[MediaHandler:View] Ошибка отправки блоба медиафайла %s: %v", mediaID, err)
	}
}

// Delete обрабатывает DELETE запрос на удаление медиафайла.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, mediaID, ok := h.userAndMediaID(w, r, "Delete")
	if !ok {
		return
	}

	if err := h.service.Delete(userID, mediaID); err != nil {
		h.writeMediaError(w, "Delete", userID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// userAndMediaID извлекает userID из контекста и mediaID из URL.
func (h *MediaHandler) userAndMediaID(
	w http.ResponseWriter,
	r *http.Request,
	op string,
) (int64, uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[MediaHandler:%s] Не удалось получить userID из контекста", op)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return 0, uuid.Nil, false
	}

	mediaID, err := uuid.Parse(chi.URLParam(r, "mediaID"))
	if err != nil {
		http.Error(w, "Неверный идентификатор медиафайла", http.StatusBadRequest)
		return 0, uuid.Nil, false
	}
	return userID, mediaID, true
}

// writeMediaError отображает ошибки сервиса медиафайлов в HTTP-статусы.
func (h *MediaHandler) writeMediaError(w http.ResponseWriter, op string, userID int64, err error) {
	switch {
	case errors.Is(err, services.ErrVaultNotFound):
		http.Error(w, "Хранилище не найдено", http.StatusNotFound)
	case errors.Is(err, services.ErrMediaNotFound):
		http.Error(w, "Медиафайл не найден", http.StatusNotFound)
	case errors.Is(err, services.ErrNotVaultMember):
		http.Error(w, "Нет доступа к хранилищу", http.StatusForbidden)
	case errors.Is(err, services.ErrMediaAccessDenied):
		http.Error(w, "Нет прав на удаление медиафайла", http.StatusForbidden)
	default:
		log.Printf("[MediaHandler:%s] Внутренняя ошибка для пользователя %d: %v", op, userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}
