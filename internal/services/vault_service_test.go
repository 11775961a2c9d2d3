package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
	"github.com/woven-app/server/internal/services"
)

type vaultServiceMocks struct {
	vaultRepo  *MockVaultRepository
	userRepo   *MockUserRepository
	friendRepo *MockFriendshipRepository
	mediaRepo  *MockMediaRepository
	storage    *MockFileStorage
	notifier   *MockNotifier
}

func newVaultService(t *testing.T) (services.VaultService, *vaultServiceMocks) {
	t.Helper()
	m := &vaultServiceMocks{
		vaultRepo:  new(MockVaultRepository),
		userRepo:   new(MockUserRepository),
		friendRepo: new(MockFriendshipRepository),
		mediaRepo:  new(MockMediaRepository),
		storage:    new(MockFileStorage),
		notifier:   new(MockNotifier),
	}
	svc := services.NewVaultService(m.vaultRepo, m.userRepo, m.friendRepo, m.mediaRepo, m.storage, m.notifier)
	return svc, m
}

func (m *vaultServiceMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.vaultRepo.AssertExpectations(t)
	m.userRepo.AssertExpectations(t)
	m.friendRepo.AssertExpectations(t)
	m.mediaRepo.AssertExpectations(t)
	m.storage.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestVaultService_CreateVault_Solo(t *testing.T) {
	t.Run("Solo-хранилище активно сразу", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("CreateVaultWithMembers", mock.Anything,
			mock.MatchedBy(func(v *models.Vault) bool {
				return v.Type == models.VaultTypeSolo && v.Status == models.VaultStatusActive && v.OwnerID == int64(1)
			}), (*int64)(nil)).Return(nil)

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{Name: "Моё", Type: "solo"})

		require.NoError(t, err)
		require.NotNil(t, vault)
		assert.Equal(t, models.VaultStatusActive, vault.Status)
		assert.Equal(t, models.VaultModeNormal, vault.Mode)
		m.assertExpectations(t)
	})

	t.Run("Тип по умолчанию — solo", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("CreateVaultWithMembers", mock.Anything,
			mock.MatchedBy(func(v *models.Vault) bool { return v.Type == models.VaultTypeSolo }),
			(*int64)(nil)).Return(nil)

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{Name: "Моё"})

		require.NoError(t, err)
		assert.Equal(t, models.VaultTypeSolo, vault.Type)
		m.assertExpectations(t)
	})

	t.Run("Приглашаемый в solo-хранилище запрещен", func(t *testing.T) {
		svc, m := newVaultService(t)
		inviteeID := int64(2)

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{
			Name: "Моё", Type: "solo", InviteeID: &inviteeID,
		})

		assert.ErrorIs(t, err, services.ErrInviteeNotAllowed)
		assert.Nil(t, vault)
		m.assertExpectations(t)
	})
}

func TestVaultService_CreateVault_Pair(t *testing.T) {
	inviteeID := int64(2)
	owner := &models.User{ID: 1, Username: "alice"}
	invitee := &models.User{ID: 2, Username: "bob"}

	t.Run("Парное хранилище создается pending с приглашением", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.userRepo.On("GetUserByID", mock.Anything, int64(2)).Return(invitee, nil)
		m.friendRepo.On("AreFriends", mock.Anything, int64(1), int64(2)).Return(true, nil)
		m.vaultRepo.On("CreateVaultWithMembers", mock.Anything,
			mock.MatchedBy(func(v *models.Vault) bool {
				return v.Type == models.VaultTypePair && v.Status == models.VaultStatusPending
			}), &inviteeID).Return(nil)
		m.userRepo.On("GetUserByID", mock.Anything, int64(1)).Return(owner, nil)
		m.notifier.On("NotifyUser", int64(2), "Vault Invitation", mock.Anything, mock.Anything).Return()

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{
			Name: "Наше", Type: "pair", InviteeID: &inviteeID,
		})

		require.NoError(t, err)
		assert.Equal(t, models.VaultStatusPending, vault.Status)
		m.assertExpectations(t)
	})

	t.Run("Парное хранилище требует приглашаемого", func(t *testing.T) {
		svc, m := newVaultService(t)

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{Name: "Наше", Type: "pair"})

		assert.ErrorIs(t, err, services.ErrInviteeRequired)
		assert.Nil(t, vault)
		m.assertExpectations(t)
	})

	t.Run("Нельзя пригласить самого себя", func(t *testing.T) {
		svc, m := newVaultService(t)
		selfID := int64(1)

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{
			Name: "Наше", Type: "pair", InviteeID: &selfID,
		})

		assert.ErrorIs(t, err, services.ErrSelfInvite)
		assert.Nil(t, vault)
		m.assertExpectations(t)
	})

	t.Run("Приглашаемый должен быть другом", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.userRepo.On("GetUserByID", mock.Anything, int64(2)).Return(invitee, nil)
		m.friendRepo.On("AreFriends", mock.Anything, int64(1), int64(2)).Return(false, nil)

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{
			Name: "Наше", Type: "pair", InviteeID: &inviteeID,
		})

		assert.ErrorIs(t, err, services.ErrNotFriends)
		assert.Nil(t, vault)
		m.assertExpectations(t)
	})

	t.Run("Приглашаемый не существует", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.userRepo.On("GetUserByID", mock.Anything, int64(2)).
			Return(nil, repository.ErrUserNotFound)

		vault, err := svc.CreateVault(1, &models.VaultCreateRequest{
			Name: "Наше", Type: "pair", InviteeID: &inviteeID,
		})

		assert.ErrorIs(t, err, services.ErrUserNotFound)
		assert.Nil(t, vault)
		m.assertExpectations(t)
	})
}

func TestVaultService_Invite(t *testing.T) {
	vaultID := uuid.New()
	pairVault := &models.Vault{ID: vaultID, Name: "Наше", Type: models.VaultTypePair, OwnerID: 1}
	owner := &models.User{ID: 1, Username: "alice"}
	invitee := &models.User{ID: 2, Username: "bob"}

	t.Run("Успешное приглашение друга", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(pairVault, nil)
		m.userRepo.On("GetUserByInviteCode", mock.Anything, "A1B2C3D4").Return(invitee, nil)
		m.friendRepo.On("AreFriends", mock.Anything, int64(1), int64(2)).Return(true, nil)
		m.vaultRepo.On("AddPendingMember", mock.Anything, vaultID, int64(2)).Return(nil)
		m.userRepo.On("GetUserByID", mock.Anything, int64(1)).Return(owner, nil)
		m.notifier.On("NotifyUser", int64(2), "Vault Invitation", mock.Anything, mock.Anything).Return()

		resp, err := svc.Invite(1, vaultID, "A1B2C3D4")

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, int64(2), resp.InvitedUserID)
		assert.Equal(t, string(models.MemberStatusPending), resp.Status)
		m.assertExpectations(t)
	})

	t.Run("Приглашать может только владелец", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(pairVault, nil)

		resp, err := svc.Invite(99, vaultID, "A1B2C3D4")

		assert.ErrorIs(t, err, services.ErrNotVaultOwner)
		assert.Nil(t, resp)
		m.assertExpectations(t)
	})

	t.Run("Solo-хранилище не поддерживает приглашения", func(t *testing.T) {
		svc, m := newVaultService(t)
		soloVault := &models.Vault{ID: vaultID, Type: models.VaultTypeSolo, OwnerID: 1}
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(soloVault, nil)

		resp, err := svc.Invite(1, vaultID, "A1B2C3D4")

		assert.ErrorIs(t, err, services.ErrNotPairVault)
		assert.Nil(t, resp)
		m.assertExpectations(t)
	})

	t.Run("Хранилище уже заполнено", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(pairVault, nil)
		m.userRepo.On("GetUserByInviteCode", mock.Anything, "A1B2C3D4").Return(invitee, nil)
		m.friendRepo.On("AreFriends", mock.Anything, int64(1), int64(2)).Return(true, nil)
		m.vaultRepo.On("AddPendingMember", mock.Anything, vaultID, int64(2)).
			Return(repository.ErrVaultFull)

		resp, err := svc.Invite(1, vaultID, "A1B2C3D4")

		assert.ErrorIs(t, err, services.ErrVaultFull)
		assert.Nil(t, resp)
		m.assertExpectations(t)
	})
}

func TestVaultService_AcceptInvite(t *testing.T) {
	vaultID := uuid.New()
	vault := &models.Vault{ID: vaultID, Name: "Наше", Type: models.VaultTypePair, OwnerID: 1}

	t.Run("Принятие активирует участие и уведомляет владельца", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)
		m.vaultRepo.On("AcceptInvite", mock.Anything, vaultID, int64(2)).Return(nil)
		m.userRepo.On("GetUserByID", mock.Anything, int64(2)).
			Return(&models.User{ID: 2, Username: "bob"}, nil)
		m.notifier.On("NotifyUser", int64(1), "Invitation Accepted", mock.Anything, mock.Anything).Return()

		err := svc.AcceptInvite(2, vaultID)

		assert.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("Приглашения нет", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)
		m.vaultRepo.On("AcceptInvite", mock.Anything, vaultID, int64(5)).
			Return(repository.ErrInviteNotFound)

		err := svc.AcceptInvite(5, vaultID)

		assert.ErrorIs(t, err, services.ErrInviteNotFound)
		m.assertExpectations(t)
	})
}

func TestVaultService_Leave(t *testing.T) {
	vaultID := uuid.New()
	vault := &models.Vault{ID: vaultID, Type: models.VaultTypePair, OwnerID: 1}

	t.Run("Участник покидает хранилище", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)
		m.vaultRepo.On("RemoveAcceptedMember", mock.Anything, vaultID, int64(2)).Return(nil)

		err := svc.Leave(2, vaultID)

		assert.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("Владелец не может покинуть хранилище", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)

		err := svc.Leave(1, vaultID)

		assert.ErrorIs(t, err, services.ErrOwnerCannotLeave)
		m.assertExpectations(t)
	})

	t.Run("Пользователь не участник", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)
		m.vaultRepo.On("RemoveAcceptedMember", mock.Anything, vaultID, int64(5)).
			Return(repository.ErrMemberNotFound)

		err := svc.Leave(5, vaultID)

		assert.ErrorIs(t, err, services.ErrNotVaultMember)
		m.assertExpectations(t)
	})
}

func TestVaultService_DeleteVault(t *testing.T) {
	vaultID := uuid.New()
	vault := &models.Vault{ID: vaultID, Type: models.VaultTypeSolo, OwnerID: 1}

	t.Run("Удаление чистит блобы перед строками БД", func(t *testing.T) {
		svc, m := newVaultService(t)
		thumbKey := "t1"
		mediaList := []models.VaultMedia{
			{ID: uuid.New(), VaultID: vaultID, StorageKey: "k1", ThumbnailKey: &thumbKey},
			{ID: uuid.New(), VaultID: vaultID, StorageKey: "k2"},
		}
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)
		m.mediaRepo.On("GetByVault", mock.Anything, vaultID).Return(mediaList, nil)
		m.storage.On("DeleteFile", mock.Anything, "k1").Return(nil)
		m.storage.On("DeleteFile", mock.Anything, "t1").Return(nil)
		m.storage.On("DeleteFile", mock.Anything, "k2").Return(nil)
		m.vaultRepo.On("DeleteVault", mock.Anything, vaultID).Return(nil)

		err := svc.DeleteVault(1, vaultID)

		assert.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("Ошибка удаления блоба не мешает удалению хранилища", func(t *testing.T) {
		svc, m := newVaultService(t)
		mediaList := []models.VaultMedia{{ID: uuid.New(), VaultID: vaultID, StorageKey: "k1"}}
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)
		m.mediaRepo.On("GetByVault", mock.Anything, vaultID).Return(mediaList, nil)
		m.storage.On("DeleteFile", mock.Anything, "k1").Return(assert.AnError)
		m.vaultRepo.On("DeleteVault", mock.Anything, vaultID).Return(nil)

		err := svc.DeleteVault(1, vaultID)

		assert.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("Удалять может только владелец", func(t *testing.T) {
		svc, m := newVaultService(t)
		m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)

		err := svc.DeleteVault(2, vaultID)

		assert.ErrorIs(t, err, services.ErrNotVaultOwner)
		m.assertExpectations(t)
	})
}

func TestVaultService_CanAccess(t *testing.T) {
	vaultID := uuid.New()
	vault := &models.Vault{ID: vaultID, OwnerID: 1}

	tests := []struct {
		name     string
		userID   int64
		member   bool
		expected bool
	}{
		{name: "Владелец имеет доступ", userID: 1, expected: true},
		{name: "Принятый участник имеет доступ", userID: 2, member: true, expected: true},
		{name: "Посторонний доступа не имеет", userID: 5, member: false, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, m := newVaultService(t)
			m.vaultRepo.On("GetVaultByID", mock.Anything, vaultID).Return(vault, nil)
			if tc.userID != vault.OwnerID {
				m.vaultRepo.On("IsAcceptedMember", mock.Anything, vaultID, tc.userID).
					Return(tc.member, nil)
			}

			canAccess, err := svc.CanAccess(tc.userID, vaultID)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, canAccess)
			m.assertExpectations(t)
		})
	}
}
