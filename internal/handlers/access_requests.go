package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/services"
)

// AccessRequestHandler обрабатывает HTTP-запросы протокола открытия
// строгого хранилища.
type AccessRequestHandler struct {
	service  services.AccessRequestService
	validate *validator.Validate
}

// NewAccessRequestHandler создает новый экземпляр AccessRequestHandler.
func NewAccessRequestHandler(s services.AccessRequestService) *AccessRequestHandler {
	return &AccessRequestHandler{
		service:  s,
		validate: validator.New(),
	}
}

// Create обрабатывает POST запрос на создание запроса доступа.
func (h *AccessRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AccessRequestHandler:Create] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.AccessRequestCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AccessRequestHandler:Create] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Не указано хранилище или публичный ключ", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Create(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVaultNotFound):
			http.Error(w, "Хранилище не найдено", http.StatusNotFound)
		case errors.Is(err, services.ErrNotStrictVault):
			http.Error(w, "Хранилище не в строгом режиме", http.StatusBadRequest)
		case errors.Is(err, services.ErrNotVaultMember):
			http.Error(w, "Нет доступа к хранилищу", http.StatusForbidden)
		case errors.Is(err, services.ErrNoApprover):
			http.Error(w, "В хранилище нет второго участника для одобрения", http.StatusBadRequest)
		default:
			log.Printf("[AccessRequestHandler:Create] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Get обрабатывает GET запрос на состояние запроса доступа.
// Запрашивающий опрашивает этот эндпоинт в ожидании решения.
func (h *AccessRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, requestID, ok := h.userAndRequestID(w, r, "Get")
	if !ok {
		return
	}

	resp, err := h.service.Get(userID, requestID)
	if err != nil {
		h.writeAccessRequestError(w, "Get", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Approve обрабатывает POST запрос на одобрение запроса доступа.
func (h *AccessRequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, requestID, ok := h.userAndRequestID(w, r, "Approve")
	if !ok {
		return
	}

	var req models.AccessRequestApprove
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AccessRequestHandler:Approve] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Зашифрованная доля ключа не указана", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Approve(userID, requestID, req.EncryptedShare)
	if err != nil {
		h.writeAccessRequestError(w, "Approve", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Deny обрабатывает POST запрос на отклонение запроса доступа.
func (h *AccessRequestHandler) Deny(w http.ResponseWriter, r *http.Request) {
	userID, requestID, ok := h.userAndRequestID(w, r, "Deny")
	if !ok {
		return
	}

	resp, err := h.service.Deny(userID, requestID)
	if err != nil {
		h.writeAccessRequestError(w, "Deny", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// PendingForVault обрабатывает GET запрос на ожидающие запросы хранилища.
func (h *AccessRequestHandler) PendingForVault(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AccessRequestHandler:PendingForVault] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	vaultID, err := uuid.Parse(chi.URLParam(r, "vaultID"))
	if err != nil {
		http.Error(w, "Неверный идентификатор хранилища", http.StatusBadRequest)
		return
	}

	pending, err := h.service.PendingForVault(userID, vaultID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVaultNotFound):
			http.Error(w, "Хранилище не найдено", http.StatusNotFound)
		case errors.Is(err, services.ErrNotVaultMember):
			http.Error(w, "Нет доступа к хранилищу", http.StatusForbidden)
		default:
			log.Printf("[AccessRequestHandler:PendingForVault] Внутренняя ошибка для пользователя %d: %v",
				userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, pending)
}

// userAndRequestID извлекает userID из контекста и requestID из URL.
func (h *AccessRequestHandler) userAndRequestID(
	w http.ResponseWriter,
	r *http.Request,
	op string,
) (int64, int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AccessRequestHandler:%s] Не удалось получить userID из контекста", op)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return 0, 0, false
	}

	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		http.Error(w, "Неверный идентификатор запроса", http.StatusBadRequest)
		return 0, 0, false
	}
	return userID, requestID, true
}

// writeAccessRequestError отображает ошибки сервиса запросов доступа
// в HTTP-статусы.
func (h *AccessRequestHandler) writeAccessRequestError(
	w http.ResponseWriter,
	op string,
	userID int64,
	err error,
) {
	switch {
	case errors.Is(err, services.ErrAccessRequestNotFound):
		http.Error(w, "Запрос доступа не найден", http.StatusNotFound)
	case errors.Is(err, services.ErrNotApprover):
		http.Error(w, "Операция доступна только одобряющему", http.StatusForbidden)
	case errors.Is(err, services.ErrNotRequestParticipant):
		http.Error(w, "Нет доступа к запросу", http.StatusForbidden)
	case errors.Is(err, services.ErrAccessRequestExpired):
		http.Error(w, "Срок запроса доступа истек", http.StatusConflict)
	case errors.Is(err, services.ErrAccessRequestNotPending):
		http.Error(w, "Запрос доступа уже обработан", http.StatusConflict)
	default:
		log.Printf("[AccessRequestHandler:%s] Внутренняя ошибка для пользователя %d: %v", op, userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}
