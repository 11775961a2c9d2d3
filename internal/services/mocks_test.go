package services_test

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/woven-app/server/internal/models"
)

// Моки репозиториев и зависимостей, общие для тестов сервисов.

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByInviteCode(ctx context.Context, inviteCode string) (*models.User, error) {
	args := m.Called(ctx, inviteCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateFullName(ctx context.Context, userID int64, fullName string) error {
	args := m.Called(ctx, userID, fullName)
	return args.Error(0)
}

type MockVaultRepository struct {
	mock.Mock
}

func (m *MockVaultRepository) CreateVaultWithMembers(ctx context.Context, vault *models.Vault, inviteeID *int64) error {
	args := m.Called(ctx, vault, inviteeID)
	return args.Error(0)
}

func (m *MockVaultRepository) GetVaultByID(ctx context.Context, vaultID uuid.UUID) (*models.Vault, error) {
	args := m.Called(ctx, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vault), args.Error(1)
}

func (m *MockVaultRepository) GetUserVaults(ctx context.Context, userID int64) ([]models.Vault, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vault), args.Error(1)
}

func (m *MockVaultRepository) UpdateVault(
	ctx context.Context,
	vaultID uuid.UUID,
	name *string,
	mode *models.VaultMode,
) error {
	args := m.Called(ctx, vaultID, name, mode)
	return args.Error(0)
}

func (m *MockVaultRepository) TouchLastAccessed(ctx context.Context, vaultID uuid.UUID) error {
	args := m.Called(ctx, vaultID)
	return args.Error(0)
}

func (m *MockVaultRepository) DeleteVault(ctx context.Context, vaultID uuid.UUID) error {
	args := m.Called(ctx, vaultID)
	return args.Error(0)
}

func (m *MockVaultRepository) AddPendingMember(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	args := m.Called(ctx, vaultID, userID)
	return args.Error(0)
}

func (m *MockVaultRepository) AcceptInvite(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	args := m.Called(ctx, vaultID, userID)
	return args.Error(0)
}

func (m *MockVaultRepository) RemovePendingMember(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	args := m.Called(ctx, vaultID, userID)
	return args.Error(0)
}

func (m *MockVaultRepository) RemoveAcceptedMember(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	args := m.Called(ctx, vaultID, userID)
	return args.Error(0)
}

func (m *MockVaultRepository) GetVaultMembers(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMember, error) {
	args := m.Called(ctx, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VaultMember), args.Error(1)
}

func (m *MockVaultRepository) GetAcceptedMembers(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMember, error) {
	args := m.Called(ctx, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VaultMember), args.Error(1)
}

func (m *MockVaultRepository) GetPendingInvitesForUser(ctx context.Context, userID int64) ([]models.VaultMember, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VaultMember), args.Error(1)
}

func (m *MockVaultRepository) CountAcceptedMembers(ctx context.Context, vaultID uuid.UUID) (int, error) {
	args := m.Called(ctx, vaultID)
	return args.Int(0), args.Error(1)
}

func (m *MockVaultRepository) IsAcceptedMember(ctx context.Context, vaultID uuid.UUID, userID int64) (bool, error) {
	args := m.Called(ctx, vaultID, userID)
	return args.Bool(0), args.Error(1)
}

type MockFriendshipRepository struct {
	mock.Mock
}

func (m *MockFriendshipRepository) CreateRequest(
	ctx context.Context,
	fromUserID, toUserID int64,
) (*models.Friendship, error) {
	args := m.Called(ctx, fromUserID, toUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Friendship), args.Error(1)
}

func (m *MockFriendshipRepository) GetByID(ctx context.Context, friendshipID int64) (*models.Friendship, error) {
	args := m.Called(ctx, friendshipID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Friendship), args.Error(1)
}

func (m *MockFriendshipRepository) GetBetween(ctx context.Context, userID1, userID2 int64) (*models.Friendship, error) {
	args := m.Called(ctx, userID1, userID2)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Friendship), args.Error(1)
}

func (m *MockFriendshipRepository) GetPendingForUser(ctx context.Context, userID int64) ([]models.Friendship, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Friendship), args.Error(1)
}

func (m *MockFriendshipRepository) GetSentByUser(ctx context.Context, userID int64) ([]models.Friendship, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Friendship), args.Error(1)
}

func (m *MockFriendshipRepository) Accept(ctx context.Context, friendshipID int64) error {
	args := m.Called(ctx, friendshipID)
	return args.Error(0)
}

func (m *MockFriendshipRepository) Delete(ctx context.Context, friendshipID int64) error {
	args := m.Called(ctx, friendshipID)
	return args.Error(0)
}

func (m *MockFriendshipRepository) DeleteAcceptedBetween(ctx context.Context, userID1, userID2 int64) error {
	args := m.Called(ctx, userID1, userID2)
	return args.Error(0)
}

func (m *MockFriendshipRepository) GetFriends(ctx context.Context, userID int64) ([]models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockFriendshipRepository) AreFriends(ctx context.Context, userID1, userID2 int64) (bool, error) {
	args := m.Called(ctx, userID1, userID2)
	return args.Bool(0), args.Error(1)
}

type MockAccessRequestRepository struct {
	mock.Mock
}

func (m *MockAccessRequestRepository) Create(ctx context.Context, req *models.AccessRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccessRequestRepository) GetByID(ctx context.Context, requestID int64) (*models.AccessRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessRequest), args.Error(1)
}

func (m *MockAccessRequestRepository) GetPendingByVault(
	ctx context.Context,
	vaultID uuid.UUID,
) ([]models.AccessRequest, error) {
	args := m.Called(ctx, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AccessRequest), args.Error(1)
}

func (m *MockAccessRequestRepository) MarkApproved(ctx context.Context, requestID int64, encryptedShare string) error {
	args := m.Called(ctx, requestID, encryptedShare)
	return args.Error(0)
}

func (m *MockAccessRequestRepository) MarkDenied(ctx context.Context, requestID int64) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

func (m *MockAccessRequestRepository) MarkExpired(ctx context.Context, requestID int64) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

type MockMediaRepository struct {
	mock.Mock
}

func (m *MockMediaRepository) Create(ctx context.Context, media *models.VaultMedia) error {
	args := m.Called(ctx, media)
	return args.Error(0)
}

func (m *MockMediaRepository) GetByID(ctx context.Context, mediaID uuid.UUID) (*models.VaultMedia, error) {
	args := m.Called(ctx, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultMedia), args.Error(1)
}

func (m *MockMediaRepository) GetByVault(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMedia, error) {
	args := m.Called(ctx, vaultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VaultMedia), args.Error(1)
}

func (m *MockMediaRepository) CountByVault(ctx context.Context, vaultID uuid.UUID) (int, error) {
	args := m.Called(ctx, vaultID)
	return args.Int(0), args.Error(1)
}

func (m *MockMediaRepository) Delete(ctx context.Context, mediaID uuid.UUID) error {
	args := m.Called(ctx, mediaID)
	return args.Error(0)
}

type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) Upsert(ctx context.Context, device *models.DeviceToken) (*models.DeviceToken, error) {
	args := m.Called(ctx, device)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeviceToken), args.Error(1)
}

func (m *MockDeviceRepository) GetUserDevices(ctx context.Context, userID int64) ([]models.DeviceToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeviceToken), args.Error(1)
}

func (m *MockDeviceRepository) DeleteByDeviceID(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	args := m.Called(ctx, objectKey, reader, size, contentType)
	return args.Error(0)
}

func (m *MockFileStorage) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockFileStorage) DeleteFile(ctx context.Context, objectKey string) error {
	args := m.Called(ctx, objectKey)
	return args.Error(0)
}

// MockNotifier записывает отправленные уведомления, не трогая APNs.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyUser(userID int64, title, body string, data map[string]interface{}) {
	m.Called(userID, title, body, data)
}

type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(deviceToken, title, body string, data map[string]interface{}, environment string) error {
	args := m.Called(deviceToken, title, body, data, environment)
	return args.Error(0)
}
