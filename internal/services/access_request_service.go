package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
)

// AccessRequestService определяет интерфейс протокола открытия строгого
// хранилища. Запрашивающий создает запрос со своим эфемерным публичным
// ключом; одобряющий (второй принятый участник) шифрует им свою долю
// ключа хранилища и прикрепляет её при одобрении. Сервер передает
// криптографический материал не интерпретируя его.
type AccessRequestService interface {
	Create(userID int64, req *models.AccessRequestCreate) (*models.AccessRequest, error)
	// Get возвращает запрос его участнику (запрашивающему или одобряющему).
	// Запрашивающий опрашивает этот метод, ожидая решения.
	Get(userID, requestID int64) (*models.AccessRequest, error)
	// Approve одобряет запрос и сохраняет зашифрованную долю ключа.
	// Разрешено только одобряющему и только для pending-запроса.
	Approve(userID, requestID int64, encryptedShare string) (*models.AccessRequest, error)
	Deny(userID, requestID int64) (*models.AccessRequest, error)
	// PendingForVault возвращает ожидающие запросы хранилища для его
	// участников (одобряющий показывает их в UI).
	PendingForVault(userID int64, vaultID uuid.UUID) ([]models.AccessRequest, error)
}

// Время жизни запроса доступа. Просроченный pending-запрос переводится
// в expired лениво — при первом чтении или попытке решения.
const accessRequestTTL = 5 * time.Minute

// Убедимся, что accessRequestService удовлетворяет интерфейсу AccessRequestService.
var _ AccessRequestService = (*accessRequestService)(nil)

type accessRequestService struct {
	accessRepo repository.AccessRequestRepository
	vaultRepo  repository.VaultRepository
	userRepo   repository.UserRepository
	notifier   Notifier
}

// NewAccessRequestService создает новый экземпляр сервиса запросов доступа.
func NewAccessRequestService(
	accessRepo repository.AccessRequestRepository,
	vaultRepo repository.VaultRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) AccessRequestService {
	return &accessRequestService{
		accessRepo: accessRepo,
		vaultRepo:  vaultRepo,
		userRepo:   userRepo,
		notifier:   notifier,
	}
}

// Create создает запрос на открытие строгого хранилища.
// Одобряющий — единственный второй принятый участник — фиксируется
// в момент создания и не пересчитывается.
func (s *accessRequestService) Create(
	userID int64,
	req *models.AccessRequestCreate,
) (*models.AccessRequest, error) {
	ctx := context.Background()

	vault, err := s.vaultRepo.GetVaultByID(ctx, req.VaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return nil, ErrVaultNotFound
		}
		log.Printf("[AccessRequestService] Ошибка получения хранилища %s: %v", req.VaultID, err)
		return nil, fmt.Errorf("ошибка получения хранилища: %w", err)
	}
	if vault.Mode != models.VaultModeStrict {
		return nil, ErrNotStrictVault
	}

	// Запрашивать открытие может владелец или принятый участник
	canAccess := vault.OwnerID == userID
	if !canAccess {
		canAccess, err = s.vaultRepo.IsAcceptedMember(ctx, req.VaultID, userID)
		if err != nil {
			log.Printf("[AccessRequestService] Ошибка проверки участия пользователя %d в хранилище %s: %v",
				userID, req.VaultID, err)
			return nil, fmt.Errorf("ошибка проверки участия: %w", err)
		}
	}
	if !canAccess {
		return nil, ErrNotVaultMember
	}

	approverID, err := s.resolveApprover(ctx, req.VaultID, userID)
	if err != nil {
		return nil, err
	}

	accessRequest := &models.AccessRequest{
		VaultID:            req.VaultID,
		RequesterID:        userID,
		ApproverID:         approverID,
		Status:             models.AccessRequestStatusPending,
		RequesterPublicKey: req.RequesterPublicKey,
		ExpiresAt:          time.Now().Add(accessRequestTTL),
	}

	requestID, err := s.accessRepo.Create(ctx, accessRequest)
	if err != nil {
		log.Printf("[AccessRequestService] Ошибка создания запроса доступа к хранилищу %s: %v",
			req.VaultID, err)
		return nil, fmt.Errorf("ошибка создания запроса доступа: %w", err)
	}
	accessRequest.ID = requestID
	accessRequest.CreatedAt = time.Now()

	log.Printf("[AccessRequestService] Пользователь %d запросил открытие хранилища %s (запрос %d, одобряющий %d)",
		userID, req.VaultID, requestID, approverID)

	requester, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[AccessRequestService] Ошибка получения запрашивающего %d: %v", userID, err)
	} else {
		s.notifier.NotifyUser(approverID, "Vault Access Request",
			fmt.Sprintf("%s wants to open the vault \"%s\"", requester.Username, vault.Name),
			map[string]interface{}{
				"type":                 "access_request",
				"request_id":           requestID,
				"vault_id":             vault.ID.String(),
				"requester_public_key": req.RequesterPublicKey,
			})
	}

	return accessRequest, nil
}

// Get возвращает запрос его участнику с ленивой проверкой срока.
func (s *accessRequestService) Get(userID, requestID int64) (*models.AccessRequest, error) {
	ctx := context.Background()

	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != userID && req.ApproverID != userID {
		log.Printf("[AccessRequestService] Пользователь %d не является участником запроса %d", userID, requestID)
		return nil, ErrNotRequestParticipant
	}

	return s.expireIfDue(ctx, req), nil
}

// Approve одобряет запрос и прикрепляет зашифрованную долю ключа.
func (s *accessRequestService) Approve(
	userID, requestID int64,
	encryptedShare string,
) (*models.AccessRequest, error) {
	ctx := context.Background()

	req, err := s.getRequestForApprover(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	if err = s.accessRepo.MarkApproved(ctx, requestID, encryptedShare); err != nil {
		if errors.Is(err, repository.ErrAccessRequestNotPending) {
			return nil, ErrAccessRequestNotPending
		}
		log.Printf("[AccessRequestService] Ошибка одобрения запроса %d: %v", requestID, err)
		return nil, fmt.Errorf("ошибка одобрения запроса: %w", err)
	}
	req.Status = models.AccessRequestStatusApproved
	req.EncryptedShare = &encryptedShare

	log.Printf("[AccessRequestService] Одобряющий %d одобрил запрос %d", userID, requestID)

	s.notifier.NotifyUser(req.RequesterID, "Access Approved",
		"Your vault access request was approved",
		map[string]interface{}{
			"type":            "access_request_approved",
			"request_id":      req.ID,
			"vault_id":        req.VaultID.String(),
			"encrypted_share": encryptedShare,
		})

	return req, nil
}

// Deny отклоняет запрос.
func (s *accessRequestService) Deny(userID, requestID int64) (*models.AccessRequest, error) {
	ctx := context.Background()

	req, err := s.getRequestForApprover(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	if err = s.accessRepo.MarkDenied(ctx, requestID); err != nil {
		if errors.Is(err, repository.ErrAccessRequestNotPending) {
			return nil, ErrAccessRequestNotPending
		}
		log.Printf("[AccessRequestService] Ошибка отклонения запроса %d: %v", requestID, err)
		return nil, fmt.Errorf("ошибка отклонения запроса: %w", err)
	}
	req.Status = models.AccessRequestStatusDenied

	log.Printf("[AccessRequestService] Одобряющий %d отклонил запрос %d", userID, requestID)

	s.notifier.NotifyUser(req.RequesterID, "Access Denied",
		"Your vault access request was denied",
		map[string]interface{}{
			"type":       "access_request_denied",
			"request_id": req.ID,
			"vault_id":   req.VaultID.String(),
		})

	return req, nil
}

// PendingForVault возвращает ожидающие запросы хранилища.
func (s *accessRequestService) PendingForVault(
	userID int64,
	vaultID uuid.UUID,
) ([]models.AccessRequest, error) {
	ctx := context.Background()

	vault, err := s.vaultRepo.GetVaultByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return nil, ErrVaultNotFound
		}
		log.Printf("[AccessRequestService] Ошибка получения хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка получения хранилища: %w", err)
	}

	canAccess := vault.OwnerID == userID
	if !canAccess {
		canAccess, err = s.vaultRepo.IsAcceptedMember(ctx, vaultID, userID)
		if err != nil {
			log.Printf("[AccessRequestService] Ошибка проверки участия пользователя %d в хранилище %s: %v",
				userID, vaultID, err)
			return nil, fmt.Errorf("ошибка проверки участия: %w", err)
		}
	}
	if !canAccess {
		return nil, ErrNotVaultMember
	}

	pending, err := s.accessRepo.GetPendingByVault(ctx, vaultID)
	if err != nil {
		log.Printf("[AccessRequestService] Ошибка получения запросов хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка получения запросов: %w", err)
	}

	result := make([]models.AccessRequest, 0, len(pending))
	for i := range pending {
		req := s.expireIfDue(ctx, &pending[i])
		if req.Status == models.AccessRequestStatusPending {
			result = append(result, *req)
		}
	}
	return result, nil
}

// resolveApprover находит единственного второго принятого участника
// парного хранилища.
func (s *accessRequestService) resolveApprover(
	ctx context.Context,
	vaultID uuid.UUID,
	requesterID int64,
) (int64, error) {
	members, err := s.vaultRepo.GetAcceptedMembers(ctx, vaultID)
	if err != nil {
		log.Printf("[AccessRequestService] Ошибка получения участников хранилища %s: %v", vaultID, err)
		return 0, fmt.Errorf("ошибка получения участников: %w", err)
	}

	for _, m := range members {
		if m.UserID != requesterID {
			return m.UserID, nil
		}
	}
	// В хранилище нет второго участника — одобрять некому
	return 0, ErrNoApprover
}

// getRequest возвращает запрос по ID.
func (s *accessRequestService) getRequest(ctx context.Context, requestID int64) (*models.AccessRequest, error) {
	req, err := s.accessRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrAccessRequestNotFound) {
			return nil, ErrAccessRequestNotFound
		}
		log.Printf("[AccessRequestService] Ошибка получения запроса %d: %v", requestID, err)
		return nil, fmt.Errorf("ошибка получения запроса: %w", err)
	}
	return req, nil
}

// getRequestForApprover возвращает pending-запрос, если пользователь —
// его одобряющий и срок не истек.
func (s *accessRequestService) getRequestForApprover(
	ctx context.Context,
	userID, requestID int64,
) (*models.AccessRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ApproverID != userID {
		log.Printf("[AccessRequestService] Пользователь %d не является одобряющим запроса %d", userID, requestID)
		return nil, ErrNotApprover
	}

	req = s.expireIfDue(ctx, req)
	switch req.Status {
	case models.AccessRequestStatusExpired:
		return nil, ErrAccessRequestExpired
	case models.AccessRequestStatusPending:
		return req, nil
	default:
		return nil, ErrAccessRequestNotPending
	}
}

// expireIfDue лениво переводит просроченный pending-запрос в expired.
func (s *accessRequestService) expireIfDue(ctx context.Context, req *models.AccessRequest) *models.AccessRequest {
	if req.Status != models.AccessRequestStatusPending || time.Now().Before(req.ExpiresAt) {
		return req
	}

	if err := s.accessRepo.MarkExpired(ctx, req.ID); err != nil &&
		!errors.Is(err, repository.ErrAccessRequestNotPending) {
		// Запрос все равно считаем просроченным: срок истек
		log.Printf("[AccessRequestService] Ошибка перевода запроса %d в expired: %v", req.ID, err)
	}
	req.Status = models.AccessRequestStatusExpired

	log.Printf("[AccessRequestService] Запрос %d просрочен", req.ID)
	return req
}

// Кастомные ошибки сервиса.
var (
	ErrAccessRequestNotFound   = errors.New("запрос доступа не найден")
	ErrAccessRequestNotPending = errors.New("запрос доступа уже обработан")
	ErrAccessRequestExpired    = errors.New("срок запроса доступа истек")
	ErrNotStrictVault          = errors.New("хранилище не в строгом режиме")
	ErrNotApprover             = errors.New("пользователь не является одобряющим запроса")
	ErrNotRequestParticipant   = errors.New("пользователь не является участником запроса")
	ErrNoApprover              = errors.New("в хранилище нет второго участника для одобрения")
)
