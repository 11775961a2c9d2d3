package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/woven-app/server/internal/models"
)

// Максимальное число участников парного хранилища (владелец + партнёр).
const pairVaultMemberLimit = 2

// VaultRepository определяет методы для работы с хранилищами и их участниками.
type VaultRepository interface {
	// CreateVaultWithMembers атомарно создает хранилище, запись владельца
	// (role=owner, status=accepted) и, если inviteeID задан, запись
	// приглашённого участника (role=member, status=pending).
	CreateVaultWithMembers(ctx context.Context, vault *models.Vault, inviteeID *int64) error
	GetVaultByID(ctx context.Context, vaultID uuid.UUID) (*models.Vault, error)
	// GetUserVaults возвращает хранилища, которыми пользователь владеет
	// или в которых он принятый участник.
	GetUserVaults(ctx context.Context, userID int64) ([]models.Vault, error)
	UpdateVault(ctx context.Context, vaultID uuid.UUID, name *string, mode *models.VaultMode) error
	TouchLastAccessed(ctx context.Context, vaultID uuid.UUID) error
	// DeleteVault удаляет хранилище; участники, медиафайлы и запросы
	// доступа удаляются каскадно (FK ON DELETE CASCADE).
	DeleteVault(ctx context.Context, vaultID uuid.UUID) error

	// AddPendingMember добавляет приглашённого участника в парное хранилище.
	// Выполняется в транзакции с блокировкой строки хранилища (SELECT ... FOR
	// UPDATE), чтобы два конкурентных приглашения не прошли проверку
	// вместимости одновременно. Возвращает ErrVaultFull при достижении
	// лимита и ErrAlreadyMember, если пользователь уже состоит в хранилище.
	AddPendingMember(ctx context.Context, vaultID uuid.UUID, userID int64) error
	// AcceptInvite переводит pending-участие в accepted и, если хранилище
	// было в статусе pending, активирует его — в одной транзакции.
	AcceptInvite(ctx context.Context, vaultID uuid.UUID, userID int64) error
	// RemovePendingMember удаляет pending-участие (отклонение приглашения).
	RemovePendingMember(ctx context.Context, vaultID uuid.UUID, userID int64) error
	// RemoveAcceptedMember удаляет accepted-участие (выход из хранилища).
	RemoveAcceptedMember(ctx context.Context, vaultID uuid.UUID, userID int64) error

	GetVaultMembers(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMember, error)
	GetAcceptedMembers(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMember, error)
	GetPendingInvitesForUser(ctx context.Context, userID int64) ([]models.VaultMember, error)
	CountAcceptedMembers(ctx context.Context, vaultID uuid.UUID) (int, error)
	IsAcceptedMember(ctx context.Context, vaultID uuid.UUID, userID int64) (bool, error)
}

// postgresVaultRepository реализует VaultRepository для PostgreSQL.
type postgresVaultRepository struct {
	db *sqlx.DB
}

// NewPostgresVaultRepository создает новый экземпляр репозитория хранилищ.
func NewPostgresVaultRepository(db *sqlx.DB) VaultRepository {
	return &postgresVaultRepository{db: db}
}

const vaultColumns = `id, name, type, mode, status, owner_id, created_at, updated_at, last_accessed_at`

// CreateVaultWithMembers создает хранилище и записи участников одной транзакцией.
func (r *postgresVaultRepository) CreateVaultWithMembers(
	ctx context.Context,
	vault *models.Vault,
	inviteeID *int64,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // Безопасно после Commit

	insertVault := `INSERT INTO vaults (id, name, type, mode, status, owner_id)
	                VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, insertVault,
		vault.ID, vault.Name, vault.Type, vault.Mode, vault.Status, vault.OwnerID,
	); err != nil {
		log.Printf("[VaultRepo] Ошибка создания хранилища '%s': %v", vault.Name, err)
		return fmt.Errorf("ошибка выполнения запроса на создание хранилища: %w", err)
	}

	insertMember := `INSERT INTO vault_members (vault_id, user_id, role, status, joined_at)
	                 VALUES ($1, $2, $3, $4, $5)`

	// Запись владельца создаётся сразу принятой
	if _, err = tx.ExecContext(ctx, insertMember,
		vault.ID, vault.OwnerID, models.MemberRoleOwner, models.MemberStatusAccepted, time.Now(),
	); err != nil {
		log.Printf("[VaultRepo] Ошибка создания записи владельца хранилища %s: %v", vault.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на создание записи владельца: %w", err)
	}

	if inviteeID != nil {
		if _, err = tx.ExecContext(ctx, insertMember,
			vault.ID, *inviteeID, models.MemberRoleMember, models.MemberStatusPending, nil,
		); err != nil {
			log.Printf("[VaultRepo] Ошибка создания записи приглашённого в хранилище %s: %v", vault.ID, err)
			return fmt.Errorf("ошибка выполнения запроса на создание записи участника: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[VaultRepo] Хранилище '%s' (ID %s) успешно создано", vault.Name, vault.ID)
	return nil
}

// GetVaultByID находит хранилище по его ID.
func (r *postgresVaultRepository) GetVaultByID(ctx context.Context, vaultID uuid.UUID) (*models.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id=$1`
	var vault models.Vault

	err := r.db.GetContext(ctx, &vault, query, vaultID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVaultNotFound
		}
		log.Printf("[VaultRepo] Ошибка при поиске хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск хранилища: %w", err)
	}

	return &vault, nil
}

// GetUserVaults возвращает хранилища пользователя (владелец или принятый участник),
// отсортированные от новых к старым.
func (r *postgresVaultRepository) GetUserVaults(ctx context.Context, userID int64) ([]models.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults
	          WHERE owner_id=$1
	             OR id IN (SELECT vault_id FROM vault_members WHERE user_id=$1 AND status=$2)
	          ORDER BY created_at DESC`

	vaults := []models.Vault{}
	err := r.db.SelectContext(ctx, &vaults, query, userID, models.MemberStatusAccepted)
	if err != nil {
		log.Printf("[VaultRepo] Ошибка получения хранилищ пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение хранилищ: %w", err)
	}

	return vaults, nil
}

// UpdateVault обновляет разрешённые поля хранилища (имя и режим).
func (r *postgresVaultRepository) UpdateVault(
	ctx context.Context,
	vaultID uuid.UUID,
	name *string,
	mode *models.VaultMode,
) error {
	query := `UPDATE vaults
	          SET name=COALESCE($1, name), mode=COALESCE($2, mode), updated_at=now()
	          WHERE id=$3`

	res, err := r.db.ExecContext(ctx, query, name, mode, vaultID)
	if err != nil {
		log.Printf("[VaultRepo] Ошибка обновления хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление хранилища: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if rows == 0 {
		return ErrVaultNotFound
	}

	return nil
}

// TouchLastAccessed обновляет время последнего доступа к хранилищу.
func (r *postgresVaultRepository) TouchLastAccessed(ctx context.Context, vaultID uuid.UUID) error {
	query := `UPDATE vaults SET last_accessed_at=now() WHERE id=$1`

	if _, err := r.db.ExecContext(ctx, query, vaultID); err != nil {
		log.Printf("[VaultRepo] Ошибка обновления last_accessed_at хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление времени доступа: %w", err)
	}

	return nil
}

// DeleteVault удаляет хранилище. Все связанные записи (участники, медиа,
// запросы доступа) удаляются каскадно на уровне БД.
func (r *postgresVaultRepository) DeleteVault(ctx context.Context, vaultID uuid.UUID) error {
	query := `DELETE FROM vaults WHERE id=$1`

	res, err := r.db.ExecContext(ctx, query, vaultID)
	if err != nil {
		log.Printf("[VaultRepo] Ошибка удаления хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление хранилища: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrVaultNotFound
	}

	log.Printf("[VaultRepo] Хранилище %s удалено (связанные записи — каскадно)", vaultID)
	return nil
}

// AddPendingMember добавляет pending-участника с блокировкой строки хранилища.
func (r *postgresVaultRepository) AddPendingMember(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Блокируем строку хранилища: конкурентные приглашения в то же
	// хранилище сериализуются и не обойдут проверку вместимости
	var lockedID uuid.UUID
	if err = tx.GetContext(ctx, &lockedID,
		`SELECT id FROM vaults WHERE id=$1 FOR UPDATE`, vaultID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVaultNotFound
		}
		return fmt.Errorf("ошибка блокировки строки хранилища: %w", err)
	}

	var acceptedCount int
	if err = tx.GetContext(ctx, &acceptedCount,
		`SELECT count(*) FROM vault_members WHERE vault_id=$1 AND status=$2`,
		vaultID, models.MemberStatusAccepted,
	); err != nil {
		return fmt.Errorf("ошибка подсчета участников: %w", err)
	}
	if acceptedCount >= pairVaultMemberLimit {
		log.Printf("[VaultRepo] Хранилище %s уже заполнено (%d участников)", vaultID, acceptedCount)
		return ErrVaultFull
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO vault_members (vault_id, user_id, role, status)
		 VALUES ($1, $2, $3, $4)`,
		vaultID, userID, models.MemberRoleMember, models.MemberStatusPending,
	); err != nil {
		// UNIQUE (vault_id, user_id) — пользователь уже состоит в хранилище
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[VaultRepo] Пользователь %d уже состоит в хранилище %s", userID, vaultID)
			return ErrAlreadyMember
		}
		log.Printf("[VaultRepo] Ошибка добавления участника %d в хранилище %s: %v", userID, vaultID, err)
		return fmt.Errorf("ошибка выполнения запроса на добавление участника: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[VaultRepo] Пользователь %d приглашён в хранилище %s", userID, vaultID)
	return nil
}

// AcceptInvite принимает приглашение и активирует pending-хранилище одной транзакцией.
func (r *postgresVaultRepository) AcceptInvite(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE vault_members SET status=$1, joined_at=now()
		 WHERE vault_id=$2 AND user_id=$3 AND status=$4`,
		models.MemberStatusAccepted, vaultID, userID, models.MemberStatusPending,
	)
	if err != nil {
		log.Printf("[VaultRepo] Ошибка принятия приглашения (%s, %d): %v", vaultID, userID, err)
		return fmt.Errorf("ошибка выполнения запроса на принятие приглашения: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if rows == 0 {
		// Повторное принятие невозможно: pending-записи уже нет
		return ErrInviteNotFound
	}

	// Первое принятие активирует парное хранилище
	if _, err = tx.ExecContext(ctx,
		`UPDATE vaults SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`,
		models.VaultStatusActive, vaultID, models.VaultStatusPending,
	); err != nil {
		log.Printf("[VaultRepo] Ошибка активации хранилища %s: %v", vaultID, err)
		return fmt.Errorf("ошибка выполнения запроса на активацию хранилища: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[VaultRepo] Пользователь %d принял приглашение в хранилище %s", userID, vaultID)
	return nil
}

// RemovePendingMember удаляет pending-участие.
func (r *postgresVaultRepository) RemovePendingMember(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	return r.removeMember(ctx, vaultID, userID, models.MemberStatusPending)
}

// RemoveAcceptedMember удаляет accepted-участие.
func (r *postgresVaultRepository) RemoveAcceptedMember(ctx context.Context, vaultID uuid.UUID, userID int64) error {
	return r.removeMember(ctx, vaultID, userID, models.MemberStatusAccepted)
}

func (r *postgresVaultRepository) removeMember(
	ctx context.Context,
	vaultID uuid.UUID,
	userID int64,
	status models.MemberStatus,
) error {
	query := `DELETE FROM vault_members WHERE vault_id=$1 AND user_id=$2 AND status=$3`

	res, err := r.db.ExecContext(ctx, query, vaultID, userID, status)
	if err != nil {
		log.Printf("[VaultRepo] Ошибка удаления участника %d из хранилища %s: %v", userID, vaultID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление участника: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrMemberNotFound
	}

	return nil
}

const memberColumns = `id, vault_id, user_id, role, status, joined_at, created_at`

// GetVaultMembers возвращает всех участников хранилища.
func (r *postgresVaultRepository) GetVaultMembers(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMember, error) {
	query := `SELECT ` + memberColumns + ` FROM vault_members WHERE vault_id=$1 ORDER BY created_at`

	members := []models.VaultMember{}
	if err := r.db.SelectContext(ctx, &members, query, vaultID); err != nil {
		log.Printf("[VaultRepo] Ошибка получения участников хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение участников: %w", err)
	}

	return members, nil
}

// GetAcceptedMembers возвращает принятых участников хранилища.
func (r *postgresVaultRepository) GetAcceptedMembers(ctx context.Context, vaultID uuid.UUID) ([]models.VaultMember, error) {
	query := `SELECT ` + memberColumns + ` FROM vault_members WHERE vault_id=$1 AND status=$2`

	members := []models.VaultMember{}
	if err := r.db.SelectContext(ctx, &members, query, vaultID, models.MemberStatusAccepted); err != nil {
		log.Printf("[VaultRepo] Ошибка получения принятых участников хранилища %s: %v", vaultID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение участников: %w", err)
	}

	return members, nil
}

// GetPendingInvitesForUser возвращает pending-участия пользователя
// (приглашения, ожидающие его ответа).
func (r *postgresVaultRepository) GetPendingInvitesForUser(ctx context.Context, userID int64) ([]models.VaultMember, error) {
	query := `SELECT ` + memberColumns + ` FROM vault_members WHERE user_id=$1 AND status=$2`

	members := []models.VaultMember{}
	if err := r.db.SelectContext(ctx, &members, query, userID, models.MemberStatusPending); err != nil {
		log.Printf("[VaultRepo] Ошибка получения приглашений пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение приглашений: %w", err)
	}

	return members, nil
}

// CountAcceptedMembers возвращает число принятых участников хранилища.
func (r *postgresVaultRepository) CountAcceptedMembers(ctx context.Context, vaultID uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM vault_members WHERE vault_id=$1 AND status=$2`

	var count int
	if err := r.db.GetContext(ctx, &count, query, vaultID, models.MemberStatusAccepted); err != nil {
		log.Printf("[VaultRepo] Ошибка подсчета участников хранилища %s: %v", vaultID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на подсчет участников: %w", err)
	}

	return count, nil
}

// IsAcceptedMember проверяет, является ли пользователь принятым участником хранилища.
func (r *postgresVaultRepository) IsAcceptedMember(ctx context.Context, vaultID uuid.UUID, userID int64) (bool, error) {
	query := `SELECT EXISTS (
	            SELECT 1 FROM vault_members WHERE vault_id=$1 AND user_id=$2 AND status=$3
	          )`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, vaultID, userID, models.MemberStatusAccepted); err != nil {
		log.Printf("[VaultRepo] Ошибка проверки участия пользователя %d в хранилище %s: %v", userID, vaultID, err)
		return false, fmt.Errorf("ошибка выполнения запроса на проверку участия: %w", err)
	}

	return exists, nil
}

// Кастомные ошибки репозитория.
var (
	ErrVaultNotFound  = errors.New("хранилище не найдено")
	ErrVaultFull      = errors.New("хранилище уже заполнено")
	ErrAlreadyMember  = errors.New("пользователь уже состоит в хранилище")
	ErrInviteNotFound = errors.New("приглашение не найдено")
	ErrMemberNotFound = errors.New("участник не найден")
)
