package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/services"
)

// DeviceHandler обрабатывает HTTP-запросы, связанные с push-устройствами.
type DeviceHandler struct {
	service  services.DeviceService
	validate *validator.Validate
}

// NewDeviceHandler создает новый экземпляр DeviceHandler.
func NewDeviceHandler(s services.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		service:  s,
		validate: validator.New(),
	}
}

// Register обрабатывает POST запрос на регистрацию устройства.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[DeviceHandler:Register] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[DeviceHandler:Register] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		log.Printf("[DeviceHandler:Register] Невалидный запрос: %v", err)
		http.Error(w, "Неверные данные устройства", http.StatusBadRequest)
		return
	}

	device, err := h.service.Register(userID, &req)
	if err != nil {
		log.Printf("[DeviceHandler:Register] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// List обрабатывает GET запрос на список устройств пользователя.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[DeviceHandler:List] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	devices, err := h.service.ListDevices(userID)
	if err != nil {
		log.Printf("[DeviceHandler:List] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

// Unregister обрабатывает DELETE запрос на удаление устройства.
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[DeviceHandler:Unregister] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" {
		http.Error(w, "Идентификатор устройства не указан", http.StatusBadRequest)
		return
	}

	if err := h.service.Unregister(userID, deviceID); err != nil {
		if errors.Is(err, services.ErrDeviceNotFound) {
			http.Error(w, "Устройство не найдено", http.StatusNotFound)
			return
		}
		log.Printf("[DeviceHandler:Unregister] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
