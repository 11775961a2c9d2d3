package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/woven-app/server/internal/handlers"
	"github.com/woven-app/server/internal/middleware"
	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/services"
)

// MockVaultService подменяет сервис хранилищ в тестах обработчиков.
type MockVaultService struct {
	mock.Mock
}

func (m *MockVaultService) CreateVault(userID int64, req *models.VaultCreateRequest) (*models.Vault, error) {
	args := m.Called(userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vault), args.Error(1)
}

func (m *MockVaultService) ListVaults(userID int64) ([]models.VaultResponse, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VaultResponse), args.Error(1)
}

func (m *MockVaultService) GetVault(userID int64, vaultID uuid.UUID) (*models.VaultDetailResponse, error) {
	args := m.Called(userID, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultDetailResponse), args.Error(1)
}

func (m *MockVaultService) UpdateVault(
	userID int64,
	vaultID uuid.UUID,
	req *models.VaultUpdateRequest,
) (*models.Vault, error) {
	args := m.Called(userID, vaultID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vault), args.Error(1)
}

func (m *MockVaultService) DeleteVault(userID int64, vaultID uuid.UUID) error {
	args := m.Called(userID, vaultID)
	return args.Error(0)
}

func (m *MockVaultService) Invite(
	userID int64,
	vaultID uuid.UUID,
	inviteCode string,
) (*models.VaultInviteResponse, error) {
	args := m.Called(userID, vaultID, inviteCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultInviteResponse), args.Error(1)
}

func (m *MockVaultService) AcceptInvite(userID int64, vaultID uuid.UUID) error {
	args := m.Called(userID, vaultID)
	return args.Error(0)
}

func (m *MockVaultService) DeclineInvite(userID int64, vaultID uuid.UUID) error {
	args := m.Called(userID, vaultID)
	return args.Error(0)
}

func (m *MockVaultService) Leave(userID int64, vaultID uuid.UUID) error {
	args := m.Called(userID, vaultID)
	return args.Error(0)
}

func (m *MockVaultService) PendingInvites(userID int64) ([]models.VaultMember, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VaultMember), args.Error(1)
}

func (m *MockVaultService) CanAccess(userID int64, vaultID uuid.UUID) (bool, error) {
	args := m.Called(userID, vaultID)
	return args.Bool(0), args.Error(1)
}

// vaultTestRouter собирает маршруты хранилищ поверх мок-сервиса
// и подставляет userID в контекст вместо JWT-мидлвари.
func vaultTestRouter(svc services.VaultService, userID int64) http.Handler {
	h := handlers.NewVaultHandler(svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/vaults", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/invites", h.PendingInvites)
		r.Route("/{vaultID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/invite", h.Invite)
			r.Post("/accept", h.AcceptInvite)
			r.Post("/decline", h.DeclineInvite)
			r.Post("/leave", h.Leave)
		})
	})
	return r
}

func TestVaultHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockSetup      func(svc *MockVaultService)
		expectedStatus int
	}{
		{
			name: "Успешное создание solo-хранилища",
			body: `{"name":"Моё","type":"solo"}`,
			mockSetup: func(svc *MockVaultService) {
				vault := &models.Vault{
					ID: uuid.New(), Name: "Моё",
					Type: models.VaultTypeSolo, Status: models.VaultStatusActive, OwnerID: 1,
				}
				svc.On("CreateVault", int64(1), mock.Anything).Return(vault, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Невалидный тип",
			body:           `{"name":"Моё","type":"group"}`,
			mockSetup:      func(_ *MockVaultService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Парное хранилище без приглашаемого",
			body: `{"name":"Наше","type":"pair"}`,
			mockSetup: func(svc *MockVaultService) {
				svc.On("CreateVault", int64(1), mock.Anything).
					Return(nil, services.ErrInviteeRequired)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Приглашаемый не друг",
			body: `{"name":"Наше","type":"pair","invitee_id":2}`,
			mockSetup: func(svc *MockVaultService) {
				svc.On("CreateVault", int64(1), mock.Anything).
					Return(nil, services.ErrNotFriends)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockVaultService)
			tc.mockSetup(svc)
			router := vaultTestRouter(svc, 1)

			req := httptest.NewRequest(http.MethodPost, "/api/vaults", bytes.NewBufferString(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestVaultHandler_Get(t *testing.T) {
	vaultID := uuid.New()

	t.Run("Детали хранилища", func(t *testing.T) {
		svc := new(MockVaultService)
		detail := &models.VaultDetailResponse{
			VaultResponse: models.VaultResponse{
				Vault:       models.Vault{ID: vaultID, Name: "Моё", OwnerID: 1},
				MemberCount: 2,
				MediaCount:  5,
			},
		}
		svc.On("GetVault", int64(1), vaultID).Return(detail, nil)
		router := vaultTestRouter(svc, 1)

		req := httptest.NewRequest(http.MethodGet, "/api/vaults/"+vaultID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp models.VaultDetailResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, 2, resp.MemberCount)
		svc.AssertExpectations(t)
	})

	t.Run("Невалидный UUID", func(t *testing.T) {
		svc := new(MockVaultService)
		router := vaultTestRouter(svc, 1)

		req := httptest.NewRequest(http.MethodGet, "/api/vaults/not-a-uuid", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Нет доступа", func(t *testing.T) {
		svc := new(MockVaultService)
		svc.On("GetVault", int64(1), vaultID).Return(nil, services.ErrNotVaultMember)
		router := vaultTestRouter(svc, 1)

		req := httptest.NewRequest(http.MethodGet, "/api/vaults/"+vaultID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Хранилище не найдено", func(t *testing.T) {
		svc := new(MockVaultService)
		svc.On("GetVault", int64(1), vaultID).Return(nil, services.ErrVaultNotFound)
		router := vaultTestRouter(svc, 1)

		req := httptest.NewRequest(http.MethodGet, "/api/vaults/"+vaultID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		svc.AssertExpectations(t)
	})
}

func TestVaultHandler_Invite(t *testing.T) {
	vaultID := uuid.New()

	tests := []struct {
		name           string
		body           string
		mockSetup      func(svc *MockVaultService)
		expectedStatus int
	}{
		{
			name: "Успешное приглашение",
			body: `{"invite_code":"A1B2C3D4"}`,
			mockSetup: func(svc *MockVaultService) {
				resp := &models.VaultInviteResponse{
					VaultID: vaultID, InvitedUserID: 2,
					Status: string(models.MemberStatusPending),
				}
				svc.On("Invite", int64(1), vaultID, "A1B2C3D4").Return(resp, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Инвайт-код не указан",
			body:           `{}`,
			mockSetup:      func(_ *MockVaultService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Хранилище заполнено",
			body: `{"invite_code":"A1B2C3D4"}`,
			mockSetup: func(svc *MockVaultService) {
				svc.On("Invite", int64(1), vaultID, "A1B2C3D4").
					Return(nil, services.ErrVaultFull)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Приглашать может только владелец",
			body: `{"invite_code":"A1B2C3D4"}`,
			mockSetup: func(svc *MockVaultService) {
				svc.On("Invite", int64(1), vaultID, "A1B2C3D4").
					Return(nil, services.ErrNotVaultOwner)
			},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockVaultService)
			tc.mockSetup(svc)
			router := vaultTestRouter(svc, 1)

			req := httptest.NewRequest(http.MethodPost,
				"/api/vaults/"+vaultID.String()+"/invite", bytes.NewBufferString(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestVaultHandler_Leave(t *testing.T) {
	vaultID := uuid.New()

	t.Run("Участник покидает хранилище", func(t *testing.T) {
		svc := new(MockVaultService)
		svc.On("Leave", int64(1), vaultID).Return(nil)
		router := vaultTestRouter(svc, 1)

		req := httptest.NewRequest(http.MethodPost, "/api/vaults/"+vaultID.String()+"/leave", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Владелец покинуть не может", func(t *testing.T) {
		svc := new(MockVaultService)
		svc.On("Leave", int64(1), vaultID).Return(services.ErrOwnerCannotLeave)
		router := vaultTestRouter(svc, 1)

		req := httptest.NewRequest(http.MethodPost, "/api/vaults/"+vaultID.String()+"/leave", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertExpectations(t)
	})
}

func TestVaultHandler_AcceptInvite(t *testing.T) {
	vaultID := uuid.New()

	t.Run("Принятие приглашения", func(t *testing.T) {
		svc := new(MockVaultService)
		svc.On("AcceptInvite", int64(2), vaultID).Return(nil)
		router := vaultTestRouter(svc, 2)

		req := httptest.NewRequest(http.MethodPost, "/api/vaults/"+vaultID.String()+"/accept", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Приглашения нет", func(t *testing.T) {
		svc := new(MockVaultService)
		svc.On("AcceptInvite", int64(2), vaultID).Return(services.ErrInviteNotFound)
		router := vaultTestRouter(svc, 2)

		req := httptest.NewRequest(http.MethodPost, "/api/vaults/"+vaultID.String()+"/accept", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		svc.AssertExpectations(t)
	})
}
