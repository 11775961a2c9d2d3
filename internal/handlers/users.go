package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/services"
)

// UserHandler обрабатывает HTTP-запросы, связанные с профилями пользователей.
type UserHandler struct {
	service services.UserService
}

// NewUserHandler создает новый экземпляр UserHandler.
func NewUserHandler(s services.UserService) *UserHandler {
	return &UserHandler{service: s}
}

// Me обрабатывает GET запрос на получение собственного профиля.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[UserHandler:Me] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	user, err := h.service.GetProfile(userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			http.Error(w, "Пользователь не найден", http.StatusNotFound)
			return
		}
		log.Printf("[UserHandler:Me] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateMe обрабатывает PATCH запрос на обновление собственного профиля.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[UserHandler:UpdateMe] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.UserUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[UserHandler:UpdateMe] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateProfile(userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			http.Error(w, "Пользователь не найден", http.StatusNotFound)
			return
		}
		log.Printf("[UserHandler:UpdateMe] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ByInviteCode обрабатывает GET запрос на поиск пользователя по инвайт-коду
// (используется перед отправкой заявки в друзья).
func (h *UserHandler) ByInviteCode(w http.ResponseWriter, r *http.Request) {
	inviteCode := chi.URLParam(r, "inviteCode")
	if inviteCode == "" {
		http.Error(w, "Инвайт-код не указан", http.StatusBadRequest)
		return
	}

	user, err := h.service.GetByInviteCode(inviteCode)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			http.Error(w, "Пользователь не найден", http.StatusNotFound)
			return
		}
		log.Printf("[UserHandler:ByInviteCode] Внутренняя ошибка для кода '%s': %v", inviteCode, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
