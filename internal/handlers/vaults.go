package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/services"
)

// VaultHandler обрабатывает HTTP-запросы, связанные с хранилищами.
type VaultHandler struct {
	service  services.VaultService
	validate *validator.Validate
}

// NewVaultHandler создает новый экземпляр VaultHandler.
func NewVaultHandler(s services.VaultService) *VaultHandler {
	return &VaultHandler{
		service:  s,
		validate: validator.New(),
	}
}

// Create обрабатывает POST запрос на создание хранилища.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[VaultHandler:Create] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.VaultCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[VaultHandler:Create] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		log.Printf("[VaultHandler:Create] Невалидный запрос: %v", err)
		http.Error(w, "Неверные данные хранилища", http.StatusBadRequest)
		return
	}

	vault, err := h.service.CreateVault(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInviteeRequired):
			http.Error(w, "Для парного хранилища нужен приглашаемый", http.StatusBadRequest)
		case errors.Is(err, services.ErrInviteeNotAllowed):
			http.Error(w, "Solo-хранилище не поддерживает приглашения", http.StatusBadRequest)
		case errors.Is(err, services.ErrSelfInvite):
			http.Error(w, "Нельзя пригласить самого себя", http.StatusBadRequest)
		case errors.Is(err, services.ErrUserNotFound):
			http.Error(w, "Приглашаемый пользователь не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrNotFriends):
			http.Error(w, "Пригласить можно только друга", http.StatusBadRequest)
		default:
			log.Printf("[VaultHandler:Create] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, vault)
}

// List обрабатывает GET запрос на список хранилищ пользователя.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[VaultHandler:List] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	vaults, err := h.service.ListVaults(userID)
	if err != nil {
		log.Printf("[VaultHandler:List] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, vaults)
}

// Get обрабатывает GET запрос на детали хранилища.
func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, ok := h.userAndVaultID(w, r, "Get")
	if !ok {
		return
	}

	detail, err := h.service.GetVault(userID, vaultID)
	if err != nil {
		h.writeVaultError(w, "Get", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Update обрабатывает PATCH запрос на изменение настроек хранилища.
func (h *VaultHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, ok := h.userAndVaultID(w, r, "Update")
	if !ok {
		return
	}

	var req models.VaultUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[VaultHandler:Update] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		log.Printf("[VaultHandler:Update] Невалидный запрос: %v", err)
		http.Error(w, "Неверные данные хранилища", http.StatusBadRequest)
		return
	}

	vault, err := h.service.UpdateVault(userID, vaultID, &req)
	if err != nil {
		h.writeVaultError(w, "Update", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, vault)
}

// Delete обрабатывает DELETE запрос на удаление хранилища.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, ok := h.userAndVaultID(w, r, "Delete")
	if !ok {
		return
	}

	if err := h.service.DeleteVault(userID, vaultID); err != nil {
		h.writeVaultError(w, "Delete", userID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Invite обрабатывает POST запрос на приглашение друга в парное хранилище.
func (h *VaultHandler) Invite(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, ok := h.userAndVaultID(w, r, "Invite")
	if !ok {
		return
	}

	var req models.VaultInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[VaultHandler:Invite] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Инвайт-код не указан", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Invite(userID, vaultID, req.InviteCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			http.Error(w, "Пользователь с таким инвайт-кодом не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrNotPairVault):
			http.Error(w, "Приглашения поддерживают только парные хранилища", http.StatusBadRequest)
		case errors.Is(err, services.ErrSelfInvite):
			http.Error(w, "Нельзя пригласить самого себя", http.StatusBadRequest)
		case errors.Is(err, services.ErrNotFriends):
			http.Error(w, "Пригласить можно только друга", http.StatusBadRequest)
		case errors.Is(err, services.ErrVaultFull):
			http.Error(w, "Хранилище уже заполнено", http.StatusConflict)
		case errors.Is(err, services.ErrAlreadyMember):
			http.Error(w, "Пользователь уже состоит в хранилище", http.StatusConflict)
		default:
			h.writeVaultError(w, "Invite", userID, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// AcceptInvite обрабатывает POST запрос на принятие приглашения.
func (h *VaultHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, ok := h.userAndVaultID(w, r, "AcceptInvite")
	if !ok {
		return
	}

	if err := h.service.AcceptInvite(userID, vaultID); err != nil {
		if errors.Is(err, services.ErrInviteNotFound) {
			http.Error(w, "Приглашение не найдено", http.StatusNotFound)
			return
		}
		h.writeVaultError(w, "AcceptInvite", userID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeclineInvite обрабатывает POST запрос на отклонение приглашения.
func (h *VaultHandler) DeclineInvite(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, ok := h.userAndVaultID(w, r, "DeclineInvite")
	if !ok {
		return
	}

	if err := h.service.DeclineInvite(userID, vaultID); err != nil {
		if errors.Is(err, services.ErrInviteNotFound) {
			http.Error(w, "Приглашение не найдено", http.StatusNotFound)
			return
		}
		h.writeVaultError(w, "DeclineInvite", userID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Leave обрабатывает POST запрос на выход из хранилища.
func (h *VaultHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, ok := h.userAndVaultID(w, r, "Leave")
	if !ok {
		return
	}

	if err := h.service.Leave(userID, vaultID); err != nil {
		if errors.Is(err, services.ErrOwnerCannotLeave) {
			http.Error(w, "Владелец не может покинуть хранилище", http.StatusBadRequest)
			return
		}
		h.writeVaultError(w, "Leave", userID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PendingInvites обрабатывает GET запрос на список приглашений пользователя.
func (h *VaultHandler) PendingInvites(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[VaultHandler:PendingInvites] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	invites, err := h.service.PendingInvites(userID)
	if err != nil {
		log.Printf("[VaultHandler:PendingInvites] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invites)
}

// userAndVaultID извлекает userID из контекста и vaultID из URL.
func (h *VaultHandler) userAndVaultID(
	w http.ResponseWriter,
	r *http.Request,
	op string,
) (int64, uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[VaultHandler:%s] Не удалось получить userID из контекста", op)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return 0, uuid.Nil, false
	}

	vaultID, err := uuid.Parse(chi.URLParam(r, "vaultID"))
	if err != nil {
		http.Error(w, "Неверный идентификатор хранилища", http.StatusBadRequest)
		return 0, uuid.Nil, false
	}
	return userID, vaultID, true
}

// writeVaultError отображает общие ошибки сервиса хранилищ в HTTP-статусы.
func (h *VaultHandler) writeVaultError(w http.ResponseWriter, op string, userID int64, err error) {
	switch {
	case errors.Is(err, services.ErrVaultNotFound):
		http.Error(w, "Хранилище не найдено", http.StatusNotFound)
	case errors.Is(err, services.ErrNotVaultOwner):
		http.Error(w, "Операция доступна только владельцу хранилища", http.StatusForbidden)
	case errors.Is(err, services.ErrNotVaultMember):
		http.Error(w, "Нет доступа к хранилищу", http.StatusForbidden)
	default:
		log.Printf("[VaultHandler:%s] Внутренняя ошибка для пользователя %d: %v", op, userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}
