package models

import "time"

// Статус дружбы. Отклонённая заявка удаляется из БД, поэтому
// терминального статуса "rejected" нет — после отклонения можно
// отправить новую заявку.
type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
)

// Friendship представляет дружбу между двумя пользователями.
// Связь хранится одной направленной строкой (UserID — инициатор,
// FriendID — получатель), но семантически симметрична: при выборках
// "свой"/"чужой" определяется по тому, в какой колонке стоит текущий
// пользователь.
type Friendship struct {
	ID        int64            `db:"id" json:"id"`
	UserID    int64            `db:"user_id" json:"user_id"`
	FriendID  int64            `db:"friend_id" json:"friend_id"`
	Status    FriendshipStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time       `db:"updated_at" json:"updated_at,omitempty"`
}

// FriendRequestCreate представляет тело запроса на добавление в друзья.
// Адресат определяется по его инвайт-коду.
type FriendRequestCreate struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

// FriendshipResponse представляет заявку/дружбу в ответах API.
type FriendshipResponse struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	FriendID  int64            `json:"friend_id"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	Friend    *User            `json:"friend,omitempty"`
}

// FriendListResponse представляет список друзей пользователя.
type FriendListResponse struct {
	Friends []User `json:"friends"`
	Total   int    `json:"total"`
}

// PendingRequestResponse представляет входящую или исходящую заявку в друзья.
type PendingRequestResponse struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	Requester *User            `json:"requester,omitempty"`
}

// PendingRequestsResponse представляет список заявок.
type PendingRequestsResponse struct {
	Requests []PendingRequestResponse `json:"requests"`
	Total    int                      `json:"total"`
}
