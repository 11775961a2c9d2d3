package models

import (
	"time"

	"github.com/google/uuid"
)

// Статус запроса на открытие строгого хранилища.
// Из pending запрос переходит в approved/denied решением одобряющего
// или в expired по истечении TTL. После выхода из pending запрос неизменяем.
type AccessRequestStatus string

const (
	AccessRequestStatusPending  AccessRequestStatus = "pending"
	AccessRequestStatusApproved AccessRequestStatus = "approved"
	AccessRequestStatusDenied   AccessRequestStatus = "denied"
	AccessRequestStatusExpired  AccessRequestStatus = "expired"
)

// AccessRequest представляет запрос на открытие хранилища в строгом режиме.
// Одобряющий (ApproverID) — единственный второй принятый участник парного
// хранилища; он фиксируется при создании запроса и не пересчитывается.
// Сервер не интерпретирует криптографический материал: публичный ключ
// запрашивающего и зашифрованная доля ключа — непрозрачные строки,
// вся криптография выполняется на устройствах клиентов.
type AccessRequest struct {
	ID          int64               `db:"id" json:"id"`
	VaultID     uuid.UUID           `db:"vault_id" json:"vault_id"`
	RequesterID int64               `db:"requester_id" json:"requester_id"`
	ApproverID  int64               `db:"approver_id" json:"approver_id"`
	Status      AccessRequestStatus `db:"status" json:"status"`
	// Эфемерный публичный ключ запрашивающего (base64), которым
	// одобряющий шифрует свою долю ключа.
	RequesterPublicKey string `db:"requester_public_key" json:"requester_public_key"`
	// Зашифрованная доля ключа (base64), заполняется только при одобрении.
	EncryptedShare *string   `db:"encrypted_share" json:"encrypted_share,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
}

// AccessRequestCreate представляет тело запроса на создание запроса доступа.
type AccessRequestCreate struct {
	VaultID            uuid.UUID `json:"vault_id" validate:"required"`
	RequesterPublicKey string    `json:"requester_public_key" validate:"required"`
}

// AccessRequestApprove представляет тело запроса на одобрение.
type AccessRequestApprove struct {
	EncryptedShare string `json:"encrypted_share" validate:"required"`
}
