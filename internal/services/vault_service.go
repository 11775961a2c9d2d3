package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
	"github.com/woven-app/server/internal/storage"
)

// VaultService определяет интерфейс для сервиса хранилищ: создание,
// жизненный цикл участия и проверки доступа.
type VaultService interface {
	// CreateVault создает хранилище. Solo-хранилище активируется сразу,
	// парное создается в статусе pending с приглашением для invitee.
	CreateVault(userID int64, req *models.VaultCreateRequest) (*models.Vault, error)
	ListVaults(userID int64) ([]models.VaultResponse, error)
	GetVault(userID int64, vaultID uuid.UUID) (*models.VaultDetailResponse, error)
	// UpdateVault меняет настройки хранилища. Разрешено только владельцу.
	UpdateVault(userID int64, vaultID uuid.UUID, req *models.VaultUpdateRequest) (*models.Vault, error)
	// DeleteVault удаляет хранилище вместе с медиафайлами. Только владелец.
	DeleteVault(userID int64, vaultID uuid.UUID) error

	// Invite приглашает друга в парное хранилище по его инвайт-коду.
	Invite(userID int64, vaultID uuid.UUID, inviteCode string) (*models.VaultInviteResponse, error)
	AcceptInvite(userID int64, vaultID uuid.UUID) error
	DeclineInvite(userID int64, vaultID uuid.UUID) error
	// Leave выводит принятого участника из хранилища. Владелец выйти
	// не может — только удалить хранилище целиком.
	Leave(userID int64, vaultID uuid.UUID) error
	PendingInvites(userID int64) ([]models.VaultMember, error)

	// CanAccess проверяет, что пользователь — владелец или принятый
	// участник хранилища.
	CanAccess(userID int64, vaultID uuid.UUID) (bool, error)
}

// Убедимся, что vaultService удовлетворяет интерфейсу VaultService.
var _ VaultService = (*vaultService)(nil)

type vaultService struct {
	vaultRepo   repository.VaultRepository
	userRepo    repository.UserRepository
	friendRepo  repository.FriendshipRepository
	mediaRepo   repository.MediaRepository
	fileStorage storage.FileStorage
	notifier    Notifier
}

// NewVaultService создает новый экземпляр сервиса хранилищ.
func NewVaultService(
	vaultRepo repository.VaultRepository,
	userRepo repository.UserRepository,
	friendRepo repository.FriendshipRepository,
	mediaRepo repository.MediaRepository,
	fileStorage storage.FileStorage,
	notifier Notifier,
) VaultService {
	return &vaultService{
		vaultRepo:   vaultRepo,
		userRepo:    userRepo,
		friendRepo:  friendRepo,
		mediaRepo:   mediaRepo,
		fileStorage: fileStorage,
		notifier:    notifier,
	}
}

// CreateVault создает хранилище.
func (s *vaultService) CreateVault(userID int64, req *models.VaultCreateRequest) (*models.Vault, error) {
	ctx := context.Background()

	vaultType := models.VaultTypeSolo
	if req.Type != "" {
		vaultType = models.VaultType(req.Type)
	}
	vaultMode := models.VaultModeNormal
	if req.Mode != "" {
		vaultMode = models.VaultMode(req.Mode)
	}

	vault := &models.Vault{
		ID:      uuid.New(),
		Name:    req.Name,
		Type:    vaultType,
		Mode:    vaultMode,
		OwnerID: userID,
	}

	var inviteeID *int64
	switch vaultType {
	case models.VaultTypeSolo:
		if req.InviteeID != nil {
			return nil, ErrInviteeNotAllowed
		}
		// Solo-хранилище активно сразу после создания
		vault.Status = models.VaultStatusActive

	case models.VaultTypePair:
		if req.InviteeID == nil {
			return nil, ErrInviteeRequired
		}
		if *req.InviteeID == userID {
			return nil, ErrSelfInvite
		}

		invitee, err := s.userRepo.GetUserByID(ctx, *req.InviteeID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			log.Printf("[VaultService] Ошибка получения приглашаемого %d: %v", *req.InviteeID, err)
			return nil, fmt.Errorf("ошибка получения приглашаемого: %w", err)
		}

		// Пригласить можно только принятого друга
		areFriends, err := s.friendRepo.AreFriends(ctx, userID, invitee.ID)
		if err != nil {
			log.Printf("[VaultService] Ошибка проверки дружбы %d-%d: %v", userID, invitee.ID, err)
			return nil, fmt.Errorf("ошибка проверки дружбы: %w", err)
		}
		if !areFriends {
			return nil, ErrNotFriends
		}

		// Парное хранилище остается pending до принятия приглашения
		vault.Status = models.VaultStatusPending
		inviteeID = &invitee.ID
	}

	if err := s.vaultRepo.CreateVaultWithMembers(ctx, vault, inviteeID); err != nil {
		log.Printf("[VaultService] Ошибка создания хранилища '%s' пользователя %d: %v", req.Name, userID, err)
		return nil, fmt.Errorf("ошибка создания хранилища: %w", err)
	}

	log.Printf("[VaultService] Пользователь %d создал %s-хранилище '%s' (%s)",
		userID, vault.Type, vault.Name, vault.ID)

	if inviteeID != nil {
		owner, err := s.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			log.Printf("[VaultService] Ошибка получения владельца %d: %v", userID, err)
		} else {
			s.notifier.NotifyUser(*inviteeID, "Vault Invitation",
				fmt.Sprintf("%s invited you to the vault \"%s\"", owner.Username, vault.Name),
				map[string]interface{}{
					"type":     "vault_invite",
					"vault_id": vault.ID.String(),
				})
		}
	}

	return vault, nil
}

// ListVaults возвращает хранилища пользователя со счётчиками.
func (s *vaultService) ListVaults(userID int64) ([]models.VaultResponse, error) {
	ctx := context.Background()

	vaults, err := s.vaultRepo.GetUserVaults(ctx, userID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения хранилищ пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения хранилищ: %w", err)
	}

	responses := make([]models.VaultResponse, 0, len(vaults))
	for _, vault := range vaults {
		resp, err := s.buildVaultResponse(ctx, vault)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

// GetVault возвращает хранилище с участниками и отмечает обращение к нему.
func (s *vaultService) GetVault(userID int64, vaultID uuid.UUID) (*models.VaultDetailResponse, error) {
	ctx := context.Background()

	vault, err := s.getVaultForMember(ctx, userID, vaultID)
	if err != nil {
		return nil, err
	}

	if err = s.vaultRepo.TouchLastAccessed(ctx, vaultID); err != nil {
		// Не фатально: отметка времени не влияет на ответ
		log.Printf("[VaultService] Ошибка отметки обращения к хранилищу %s: %v", vaultID, err)
	}

	resp, err := s.buildVaultResponse(ctx, *vault)
	if err != nil {
		return nil, err
	}

	owner, err := s.userRepo.GetUserByID(ctx, vault.OwnerID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения владельца хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка получения владельца: %w", err)
	}

	members, err := s.vaultRepo.GetVaultMembers(ctx, vaultID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения участников хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка получения участников: %w", err)
	}

	memberResponses := make([]models.VaultMemberResponse, 0, len(members))
	for _, m := range members {
		memberUser, err := s.userRepo.GetUserByID(ctx, m.UserID)
		if err != nil {
			log.Printf("[VaultService] Ошибка получения участника %d хранилища %s: %v", m.UserID, vaultID, err)
			return nil, fmt.Errorf("ошибка получения участника: %w", err)
		}
		memberResponses = append(memberResponses, models.VaultMemberResponse{
			ID:       m.ID,
			UserID:   m.UserID,
			User:     memberUser,
			Role:     m.Role,
			Status:   m.Status,
			JoinedAt: m.JoinedAt,
		})
	}

	return &models.VaultDetailResponse{
		VaultResponse: *resp,
		Owner:         owner,
		Members:       memberResponses,
	}, nil
}

// UpdateVault меняет имя и/или режим хранилища. Только владелец.
func (s *vaultService) UpdateVault(
	userID int64,
	vaultID uuid.UUID,
	req *models.VaultUpdateRequest,
) (*models.Vault, error) {
	ctx := context.Background()

	if _, err := s.getOwnedVault(ctx, userID, vaultID); err != nil {
		return nil, err
	}

	var mode *models.VaultMode
	if req.Mode != nil {
		m := models.VaultMode(*req.Mode)
		mode = &m
	}

	if err := s.vaultRepo.UpdateVault(ctx, vaultID, req.Name, mode); err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return nil, ErrVaultNotFound
		}
		log.Printf("[VaultService] Ошибка обновления хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка обновления хранилища: %w", err)
	}

	log.Printf("[VaultService] Владелец %d обновил настройки хранилища %s", userID, vaultID)

	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		log.Printf("[VaultService] Ошибка чтения хранилища %s после обновления: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка чтения хранилища: %w", err)
	}
	return vault, nil
}

// DeleteVault удаляет хранилище и его медиафайлы из объектного хранилища.
// Только владелец. Записи участников, медиа и запросов доступа удаляются
// каскадно на уровне БД.
func (s *vaultService) DeleteVault(userID int64, vaultID uuid.UUID) error {
	ctx := context.Background()

	if _, err := s.getOwnedVault(ctx, userID, vaultID); err != nil {
		return err
	}

	// Сначала чистим блобы: после удаления строк БД ключи будут потеряны
	mediaList, err := s.mediaRepo.GetByVault(ctx, vaultID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения медиафайлов хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка получения медиафайлов: %w", err)
	}
	for _, media := range mediaList {
		if delErr := s.fileStorage.DeleteFile(ctx, media.StorageKey); delErr != nil {
			// Блоб-сирота лучше, чем неудаленное хранилище
			log.Printf("[VaultService] Ошибка удаления блоба '%s' хранилища %s: %v",
				media.StorageKey, vaultID, delErr)
		}
		if media.ThumbnailKey != nil {
			if delErr := s.fileStorage.DeleteFile(ctx, *media.ThumbnailKey); delErr != nil {
				log.Printf("[VaultService] Ошибка удаления миниатюры '%s' хранилища %s: %v",
					*media.ThumbnailKey, vaultID, delErr)
			}
		}
	}

	if err = s.vaultRepo.DeleteVault(ctx, vaultID); err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		log.Printf("[VaultService] Ошибка удаления хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка удаления хранилища: %w", err)
	}

	log.Printf("[VaultService] Владелец %d удалил хранилище %s (%d медиафайлов)",
		userID, vaultID, len(mediaList))
	return nil
}

// Invite приглашает друга в парное хранилище по инвайт-коду.
func (s *vaultService) Invite(
	userID int64,
	vaultID uuid.UUID,
	inviteCode string,
) (*models.VaultInviteResponse, error) {
	ctx := context.Background()

	vault, err := s.getOwnedVault(ctx, userID, vaultID)
	if err != nil {
		return nil, err
	}
	if vault.Type != models.VaultTypePair {
		return nil, ErrNotPairVault
	}

	invitee, err := s.userRepo.GetUserByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Printf("[VaultService] Ошибка поиска по инвайт-коду '%s': %v", inviteCode, err)
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}
	if invitee.ID == userID {
		return nil, ErrSelfInvite
	}

	areFriends, err := s.friendRepo.AreFriends(ctx, userID, invitee.ID)
	if err != nil {
		log.Printf("[VaultService] Ошибка проверки дружбы %d-%d: %v", userID, invitee.ID, err)
		return nil, fmt.Errorf("ошибка проверки дружбы: %w", err)
	}
	if !areFriends {
		return nil, ErrNotFriends
	}

	// Проверка вместимости и вставка выполняются атомарно в репозитории
	if err = s.vaultRepo.AddPendingMember(ctx, vaultID, invitee.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrVaultNotFound):
			return nil, ErrVaultNotFound
		case errors.Is(err, repository.ErrVaultFull):
			return nil, ErrVaultFull
		case errors.Is(err, repository.ErrAlreadyMember):
			return nil, ErrAlreadyMember
		}
		log.Printf("[VaultService] Ошибка приглашения пользователя %d в хранилище %s: %v",
			invitee.ID, vaultID, err)
		return nil, fmt.Errorf("ошибка приглашения: %w", err)
	}

	log.Printf("[VaultService] Владелец %d пригласил пользователя %d в хранилище %s",
		userID, invitee.ID, vaultID)

	owner, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения владельца %d: %v", userID, err)
	} else {
		s.notifier.NotifyUser(invitee.ID, "Vault Invitation",
			fmt.Sprintf("%s invited you to the vault \"%s\"", owner.Username, vault.Name),
			map[string]interface{}{
				"type":     "vault_invite",
				"vault_id": vault.ID.String(),
			})
	}

	return &models.VaultInviteResponse{
		VaultID:       vaultID,
		InvitedUserID: invitee.ID,
		Status:        string(models.MemberStatusPending),
		Message:       fmt.Sprintf("Invitation sent to %s", invitee.Username),
	}, nil
}

// AcceptInvite принимает приглашение в хранилище. Участие становится
// accepted, pending-хранилище активируется.
func (s *vaultService) AcceptInvite(userID int64, vaultID uuid.UUID) error {
	ctx := context.Background()

	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		log.Printf("[VaultService] Ошибка получения хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка получения хранилища: %w", err)
	}

	if err = s.vaultRepo.AcceptInvite(ctx, vaultID, userID); err != nil {
		if errors.Is(err, repository.ErrInviteNotFound) {
			return ErrInviteNotFound
		}
		log.Printf("[VaultService] Ошибка принятия приглашения в хранилище %s пользователем %d: %v",
			vaultID, userID, err)
		return fmt.Errorf("ошибка принятия приглашения: %w", err)
	}

	log.Printf("[VaultService] Пользователь %d принял приглашение в хранилище %s", userID, vaultID)

	member, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения пользователя %d: %v", userID, err)
		return nil
	}
	s.notifier.NotifyUser(vault.OwnerID, "Invitation Accepted",
		fmt.Sprintf("%s joined the vault \"%s\"", member.Username, vault.Name),
		map[string]interface{}{
			"type":     "vault_invite_accepted",
			"vault_id": vault.ID.String(),
		})
	return nil
}

// DeclineInvite отклоняет приглашение: pending-участие удаляется.
func (s *vaultService) DeclineInvite(userID int64, vaultID uuid.UUID) error {
	ctx := context.Background()

	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		log.Printf("[VaultService] Ошибка получения хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка получения хранилища: %w", err)
	}

	if err = s.vaultRepo.RemovePendingMember(ctx, vaultID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrInviteNotFound
		}
		log.Printf("[VaultService] Ошибка отклонения приглашения в хранилище %s пользователем %d: %v",
			vaultID, userID, err)
		return fmt.Errorf("ошибка отклонения приглашения: %w", err)
	}

	log.Printf("[VaultService] Пользователь %d отклонил приглашение в хранилище %s", userID, vaultID)

	member, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения пользователя %d: %v", userID, err)
		return nil
	}
	s.notifier.NotifyUser(vault.OwnerID, "Invitation Declined",
		fmt.Sprintf("%s declined the invitation to \"%s\"", member.Username, vault.Name),
		map[string]interface{}{
			"type":     "vault_invite_declined",
			"vault_id": vault.ID.String(),
		})
	return nil
}

// Leave выводит принятого участника из хранилища.
func (s *vaultService) Leave(userID int64, vaultID uuid.UUID) error {
	ctx := context.Background()

	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return ErrVaultNotFound
		}
		log.Printf("[VaultService] Ошибка получения хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка получения хранилища: %w", err)
	}

	if vault.OwnerID == userID {
		return ErrOwnerCannotLeave
	}

	if err = s.vaultRepo.RemoveAcceptedMember(ctx, vaultID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrNotVaultMember
		}
		log.Printf("[VaultService] Ошибка выхода пользователя %d из хранилища %s: %v", userID, vaultID, err)
		return fmt.Errorf("ошибка выхода из хранилища: %w", err)
	}

	log.Printf("[VaultService] Пользователь %d покинул хранилище %s", userID, vaultID)
	return nil
}

// PendingInvites возвращает непринятые приглашения пользователя.
func (s *vaultService) PendingInvites(userID int64) ([]models.VaultMember, error) {
	ctx := context.Background()

	invites, err := s.vaultRepo.GetPendingInvitesForUser(ctx, userID)
	if err != nil {
		log.Printf("[VaultService] Ошибка получения приглашений пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка получения приглашений: %w", err)
	}
	return invites, nil
}

// CanAccess проверяет, что пользователь — владелец или принятый участник.
func (s *vaultService) CanAccess(userID int64, vaultID uuid.UUID) (bool, error) {
	ctx := context.Background()

	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return false, ErrVaultNotFound
		}
		return false, fmt.Errorf("ошибка получения хранилища: %w", err)
	}
	if vault.OwnerID == userID {
		return true, nil
	}

	isMember, err := s.vaultRepo.IsAcceptedMember(ctx, vaultID, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки участия: %w", err)
	}
	return isMember, nil
}

// getOwnedVault возвращает хранилище, если пользователь — его владелец.
func (s *vaultService) getOwnedVault(
	ctx context.Context,
	userID int64,
	vaultID uuid.UUID,
) (*models.Vault, error) {
	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return nil, ErrVaultNotFound
		}
		log.Printf("[VaultService] Ошибка получения хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка получения хранилища: %w", err)
	}
	if vault.OwnerID != userID {
		log.Printf("[VaultService] Пользователь %d не является владельцем хранилища %s", userID, vaultID)
		return nil, ErrNotVaultOwner
	}
	return vault, nil
}

// getVaultForMember возвращает хранилище, если пользователь — владелец
// или принятый участник.
func (s *vaultService) getVaultForMember(
	ctx context.Context,
	userID int64,
	vaultID uuid.UUID,
) (*models.Vault, error) {
	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return nil, ErrVaultNotFound
		}
		log.Printf("[VaultService] Ошибка получения хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка получения хранилища: %w", err)
	}
	if vault.OwnerID == userID {
		return vault, nil
	}

	isMember, err := s.vaultRepo.IsAcceptedMember(ctx, vaultID, userID)
	if err != nil {
		log.Printf("[VaultService] Ошибка проверки участия пользователя %d в хранилище %s: %v",
			userID, vaultID, err)
		return nil, fmt.Errorf("ошибка проверки участия: %w", err)
	}
	if !isMember {
		log.Printf("[VaultService] Пользователь %d не имеет доступа к хранилищу %s", userID, vaultID)
		return nil, ErrNotVaultMember
	}
	return vault, nil
}

// buildVaultResponse дополняет хранилище счётчиками участников и медиафайлов.
func (s *vaultService) buildVaultResponse(
	ctx context.Context,
	vault models.Vault,
) (*models.VaultResponse, error) {
	memberCount, err := s.vaultRepo.CountAcceptedMembers(ctx, vault.ID)
	if err != nil {
		log.Printf("[VaultService] Ошибка подсчета участников хранилища %s: %v", vault.ID, err)
		return nil, fmt.Errorf("ошибка подсчета участников: %w", err)
	}
	mediaCount, err := s.mediaRepo.CountByVault(ctx, vault.ID)
	if err != nil {
		log.Printf("[VaultService] Ошибка подсчета медиафайлов хранилища %s: %v", vault.ID, err)
		return nil, fmt.Errorf("ошибка подсчета медиафайлов: %w", err)
	}

	return &models.VaultResponse{
		Vault:       vault,
		MemberCount: memberCount,
		MediaCount:  mediaCount,
	}, nil
}

// Кастомные ошибки сервиса.
var (
	ErrVaultNotFound     = errors.New("хранилище не найдено")
	ErrVaultFull         = errors.New("хранилище уже заполнено")
	ErrAlreadyMember     = errors.New("пользователь уже состоит в хранилище")
	ErrInviteNotFound    = errors.New("приглашение не найдено")
	ErrInviteeRequired   = errors.New("для парного хранилища нужен приглашаемый")
	ErrInviteeNotAllowed = errors.New("solo-хранилище не поддерживает приглашения")
	ErrSelfInvite        = errors.New("нельзя пригласить самого себя")
	ErrNotFriends        = errors.New("пользователи не являются друзьями")
	ErrNotPairVault      = errors.New("хранилище не является парным")
	ErrNotVaultOwner     = errors.New("пользователь не является владельцем хранилища")
	ErrNotVaultMember    = errors.New("пользователь не является участником хранилища")
	ErrOwnerCannotLeave  = errors.New("владелец не может покинуть хранилище")
)
