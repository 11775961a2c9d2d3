package models

import (
	"time"

	"github.com/google/uuid"
)

// Тип хранилища: персональное или парное.
type VaultType string

const (
	VaultTypeSolo VaultType = "solo"
	VaultTypePair VaultType = "pair"
)

// Режим хранилища. В строгом режиме открытие требует одобрения партнёра
// (см. AccessRequest).
type VaultMode string

const (
	VaultModeNormal VaultMode = "normal"
	VaultModeStrict VaultMode = "strict"
)

// Статус хранилища. Парное хранилище создаётся в статусе pending и
// становится active после принятия приглашения.
type VaultStatus string

const (
	VaultStatusActive  VaultStatus = "active"
	VaultStatusPending VaultStatus = "pending"
)

// Роль участника хранилища.
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleMember MemberRole = "member"
)

// Статус участника хранилища.
type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusAccepted MemberStatus = "accepted"
	MemberStatusRevoked  MemberStatus = "revoked"
)

// Vault представляет контейнер зашифрованных медиафайлов.
// Solo-хранилище принадлежит одному пользователю, парное — владельцу
// и максимум одному партнёру.
type Vault struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	Name           string      `db:"name" json:"name"`
	Type           VaultType   `db:"type" json:"type"`
	Mode           VaultMode   `db:"mode" json:"mode"`
	Status         VaultStatus `db:"status" json:"status"`
	OwnerID        int64       `db:"owner_id" json:"owner_id"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time  `db:"updated_at" json:"updated_at,omitempty"`
	LastAccessedAt *time.Time  `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
}

// VaultMember связывает пользователя с хранилищем.
// Запись владельца создаётся вместе с хранилищем (role=owner, status=accepted).
// Приглашённый участник создаётся со status=pending и принимает приглашение явно.
type VaultMember struct {
	ID       int64        `db:"id" json:"id"`
	VaultID  uuid.UUID    `db:"vault_id" json:"vault_id"`
	UserID   int64        `db:"user_id" json:"user_id"`
	Role     MemberRole   `db:"role" json:"role"`
	Status   MemberStatus `db:"status" json:"status"`
	// JoinedAt устанавливается только при принятии приглашения.
	JoinedAt  *time.Time `db:"joined_at" json:"joined_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// VaultCreateRequest представляет тело запроса на создание хранилища.
// InviteeID обязателен для парных хранилищ.
type VaultCreateRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	Type      string `json:"type" validate:"omitempty,oneof=solo pair"`
	Mode      string `json:"mode" validate:"omitempty,oneof=normal strict"`
	InviteeID *int64 `json:"invitee_id,omitempty"`
}

// VaultUpdateRequest представляет тело запроса на изменение настроек хранилища.
// Разрешено менять только имя и режим (allow-list полей).
type VaultUpdateRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Mode *string `json:"mode,omitempty" validate:"omitempty,oneof=normal strict"`
}

// VaultInviteRequest представляет тело запроса на приглашение в парное хранилище.
type VaultInviteRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

// VaultInviteResponse представляет ответ на успешное приглашение.
type VaultInviteResponse struct {
	VaultID       uuid.UUID `json:"vault_id"`
	InvitedUserID int64     `json:"invited_user_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
}

// VaultResponse представляет хранилище в ответах API со счётчиками.
type VaultResponse struct {
	Vault
	MemberCount int `json:"member_count"`
	MediaCount  int `json:"media_count"`
}

// VaultMemberResponse представляет участника хранилища с данными пользователя.
type VaultMemberResponse struct {
	ID       int64        `json:"id"`
	UserID   int64        `json:"user_id"`
	User     *User        `json:"user,omitempty"`
	Role     MemberRole   `json:"role"`
	Status   MemberStatus `json:"status"`
	JoinedAt *time.Time   `json:"joined_at,omitempty"`
}

// VaultDetailResponse представляет хранилище с развёрнутым списком участников.
type VaultDetailResponse struct {
	VaultResponse
	Owner   *User                 `json:"owner,omitempty"`
	Members []VaultMemberResponse `json:"members"`
}
