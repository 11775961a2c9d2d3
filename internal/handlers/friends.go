package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/services"
)

// FriendshipHandler обрабатывает HTTP-запросы, связанные с дружбами.
type FriendshipHandler struct {
	service  services.FriendshipService
	validate *validator.Validate
}

// NewFriendshipHandler создает новый экземпляр FriendshipHandler.
func NewFriendshipHandler(s services.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{
		service:  s,
		validate: validator.New(),
	}
}

// SendRequest обрабатывает POST запрос на отправку заявки в друзья.
func (h *FriendshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[FriendshipHandler:SendRequest] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.FriendRequestCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[FriendshipHandler:SendRequest] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Инвайт-код не указан", http.StatusBadRequest)
		return
	}

	resp, err := h.service.SendRequest(userID, req.InviteCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			http.Error(w, "Пользователь с таким инвайт-кодом не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrSelfFriendship):
			http.Error(w, "Нельзя отправить заявку самому себе", http.StatusBadRequest)
		case errors.Is(err, services.ErrAlreadyFriends):
			http.Error(w, "Пользователи уже друзья", http.StatusConflict)
		case errors.Is(err, services.ErrFriendRequestPending):
			http.Error(w, "Заявка уже отправлена", http.StatusConflict)
		default:
			log.Printf("[FriendshipHandler:SendRequest] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Accept обрабатывает POST запрос на принятие заявки.
func (h *FriendshipHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, friendshipID, ok := h.userAndFriendshipID(w, r, "Accept")
	if !ok {
		return
	}

	resp, err := h.service.AcceptRequest(userID, friendshipID)
	if err != nil {
		h.writeFriendshipError(w, "Accept", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Decline обрабатывает POST запрос на отклонение заявки.
func (h *FriendshipHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, friendshipID, ok := h.userAndFriendshipID(w, r, "Decline")
	if !ok {
		return
	}

	if err := h.service.DeclineRequest(userID, friendshipID); err != nil {
		h.writeFriendshipError(w, "Decline", userID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List обрабатывает GET запрос на список друзей.
func (h *FriendshipHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[FriendshipHandler:List] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	friends, err := h.service.GetFriends(userID)
	if err != nil {
		log.Printf("[FriendshipHandler:List] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, friends)
}

// Pending обрабатывает GET запрос на входящие заявки.
func (h *FriendshipHandler) Pending(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[FriendshipHandler:Pending] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	pending, err := h.service.GetPendingRequests(userID)
	if err != nil {
		log.Printf("[FriendshipHandler:Pending] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, pending)
}

// Sent обрабатывает GET запрос на исходящие заявки.
func (h *FriendshipHandler) Sent(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[FriendshipHandler:Sent] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	sent, err := h.service.GetSentRequests(userID)
	if err != nil {
		log.Printf("[FriendshipHandler:Sent] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sent)
}

// Remove обрабатывает DELETE запрос на удаление друга.
func (h *FriendshipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[FriendshipHandler:Remove] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	friendID, err := strconv.ParseInt(chi.URLParam(r, "friendID"), 10, 64)
	if err != nil {
		http.Error(w, "Неверный идентификатор пользователя", http.StatusBadRequest)
		return
	}

	if err = h.service.RemoveFriend(userID, friendID); err != nil {
		if errors.Is(err, services.ErrFriendshipNotFound) {
			http.Error(w, "Дружба не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[FriendshipHandler:Remove] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// userAndFriendshipID извлекает userID из контекста и friendshipID из URL.
func (h *FriendshipHandler) userAndFriendshipID(
	w http.ResponseWriter,
	r *http.Request,
	op string,
) (int64, int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[FriendshipHandler:%s] Не удалось получить userID из контекста", op)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return 0, 0, false
	}

	friendshipID, err := strconv.ParseInt(chi.URLParam(r, "friendshipID"), 10, 64)
	if err != nil {
		http.Error(w, "Неверный идентификатор заявки", http.StatusBadRequest)
		return 0, 0, false
	}
	return userID, friendshipID, true
}

// writeFriendshipError отображает ошибки сервиса дружб в HTTP-статусы.
func (h *FriendshipHandler) writeFriendshipError(w http.ResponseWriter, op string, userID int64, err error) {
	switch {
	case errors.Is(err, services.ErrFriendshipNotFound):
		http.Error(w, "Заявка не найдена", http.StatusNotFound)
	case errors.Is(err, services.ErrNotRequestRecipient):
		http.Error(w, "Операция доступна только получателю заявки", http.StatusForbidden)
	case errors.Is(err, services.ErrFriendRequestNotPending):
		http.Error(w, "Заявка уже обработана", http.StatusConflict)
	default:
		log.Printf("[FriendshipHandler:%s] Внутренняя ошибка для пользователя %d: %v", op, userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}
