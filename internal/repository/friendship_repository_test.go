package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woven-app/server/internal/models"
	"github.com/woven-app/server/internal/repository"
)

var friendshipRows = []string{"id", "user_id", "friend_id", "status", "created_at", "updated_at"}

func setupFriendshipRepoMock(t *testing.T) (repository.FriendshipRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewPostgresFriendshipRepository(sqlxDB)
	return repo, mock
}

func TestFriendshipRepository_CreateRequest(t *testing.T) {
	insertQuery := regexp.QuoteMeta(`INSERT INTO friendships (user_id, friend_id, status)`)
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "Успешное создание заявки",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(friendshipRows).
					AddRow(int64(1), int64(10), int64(20), models.FriendshipStatusPending, now, now)
				mock.ExpectQuery(insertQuery).
					WithArgs(int64(10), int64(20), models.FriendshipStatusPending).
					WillReturnRows(rows)
			},
		},
		{
			name: "Запись между парой уже существует",
			mockSetup: func(mock sqlmock.Sqlmock) {
				pqErr := &pq.Error{Code: "23505", Constraint: "friendships_pair_key"}
				mock.ExpectQuery(insertQuery).
					WithArgs(int64(10), int64(20), models.FriendshipStatusPending).
					WillReturnError(pqErr)
			},
			expectedErr: repository.ErrFriendshipExists,
		},
		{
			name: "Ошибка базы данных",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(insertQuery).
					WithArgs(int64(10), int64(20), models.FriendshipStatusPending).
					WillReturnError(errors.New("connection refused"))
			},
			expectedErr: errors.New("ошибка выполнения запроса на создание заявки"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := setupFriendshipRepoMock(t)
			tc.mockSetup(mock)

			friendship, err := repo.CreateRequest(context.Background(), 10, 20)

			if tc.expectedErr != nil {
				assert.Error(t, err)
				if errors.Is(tc.expectedErr, repository.ErrFriendshipExists) {
					assert.ErrorIs(t, err, repository.ErrFriendshipExists)
				} else {
					assert.Contains(t, err.Error(), tc.expectedErr.Error())
				}
				assert.Nil(t, friendship)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, friendship)
				assert.Equal(t, int64(1), friendship.ID)
				assert.Equal(t, int64(10), friendship.UserID)
				assert.Equal(t, int64(20), friendship.FriendID)
				assert.Equal(t, models.FriendshipStatusPending, friendship.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFriendshipRepository_GetBetween(t *testing.T) {
	selectQuery := regexp.QuoteMeta(`WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)`)
	now := time.Now()

	t.Run("Запись найдена", func(t *testing.T) {
		repo, mock := setupFriendshipRepoMock(t)
		rows := sqlmock.NewRows(friendshipRows).
			AddRow(int64(5), int64(10), int64(20), models.FriendshipStatusAccepted, now, now)
		mock.ExpectQuery(selectQuery).WithArgs(int64(20), int64(10)).WillReturnRows(rows)

		friendship, err := repo.GetBetween(context.Background(), 20, 10)

		assert.NoError(t, err)
		require.NotNil(t, friendship)
		assert.Equal(t, models.FriendshipStatusAccepted, friendship.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Запись не найдена", func(t *testing.T) {
		repo, mock := setupFriendshipRepoMock(t)
		mock.ExpectQuery(selectQuery).WithArgs(int64(20), int64(10)).
			WillReturnRows(sqlmock.NewRows(friendshipRows))

		friendship, err := repo.GetBetween(context.Background(), 20, 10)

		assert.ErrorIs(t, err, repository.ErrFriendshipNotFound)
		assert.Nil(t, friendship)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFriendshipRepository_Accept(t *testing.T) {
	updateQuery := regexp.QuoteMeta(`UPDATE friendships SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`)

	t.Run("Успешное принятие", func(t *testing.T) {
		repo, mock := setupFriendshipRepoMock(t)
		mock.ExpectExec(updateQuery).
			WithArgs(models.FriendshipStatusAccepted, int64(5), models.FriendshipStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Accept(context.Background(), 5)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Заявка не в статусе pending", func(t *testing.T) {
		repo, mock := setupFriendshipRepoMock(t)
		mock.ExpectExec(updateQuery).
			WithArgs(models.FriendshipStatusAccepted, int64(5), models.FriendshipStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Accept(context.Background(), 5)

		assert.ErrorIs(t, err, repository.ErrFriendshipNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFriendshipRepository_DeleteAcceptedBetween(t *testing.T) {
	deleteQuery := regexp.QuoteMeta(`DELETE FROM friendships`)

	t.Run("Дружба удалена", func(t *testing.T) {
		repo, mock := setupFriendshipRepoMock(t)
		mock.ExpectExec(deleteQuery).
			WithArgs(models.FriendshipStatusAccepted, int64(10), int64(20)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.DeleteAcceptedBetween(context.Background(), 10, 20)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Принятой дружбы нет", func(t *testing.T) {
		repo, mock := setupFriendshipRepoMock(t)
		mock.ExpectExec(deleteQuery).
			WithArgs(models.FriendshipStatusAccepted, int64(10), int64(20)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteAcceptedBetween(context.Background(), 10, 20)

		assert.ErrorIs(t, err, repository.ErrFriendshipNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFriendshipRepository_AreFriends(t *testing.T) {
	existsQuery := regexp.QuoteMeta(`SELECT EXISTS (`)

	tests := []struct {
		name   string
		exists bool
		first  int64
		second int64
	}{
		{name: "Дружба есть", exists: true, first: 10, second: 20},
		{name: "Порядок аргументов не важен", exists: true, first: 20, second: 10},
		{name: "Дружбы нет", exists: false, first: 10, second: 30},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := setupFriendshipRepoMock(t)
			rows := sqlmock.NewRows([]string{"exists"}).AddRow(tc.exists)
			mock.ExpectQuery(existsQuery).
				WithArgs(models.FriendshipStatusAccepted, tc.first, tc.second).
				WillReturnRows(rows)

			areFriends, err := repo.AreFriends(context.Background(), tc.first, tc.second)

			assert.NoError(t, err)
			assert.Equal(t, tc.exists, areFriends)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFriendshipRepository_GetPendingForUser(t *testing.T) {
	selectQuery := regexp.QuoteMeta(`FROM friendships WHERE friend_id=$1 AND status=$2`)
	now := time.Now()

	repo, mock := setupFriendshipRepoMock(t)
	rows := sqlmock.NewRows(friendshipRows).
		AddRow(int64(1), int64(30), int64(10), models.FriendshipStatusPending, now, now).
		AddRow(int64(2), int64(40), int64(10), models.FriendshipStatusPending, now, now)
	mock.ExpectQuery(selectQuery).WithArgs(int64(10), models.FriendshipStatusPending).WillReturnRows(rows)

	pending, err := repo.GetPendingForUser(context.Background(), 10)

	assert.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, int64(30), pending[0].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
