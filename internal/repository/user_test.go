package repository

import (
	"asset-management-api/internal/model"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUsersByIDs_LoadsSubscriptions(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	now := time.Now()
	alice, bob := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = ANY($1::uuid[])`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "created_at", "updated_at"}).
			AddRow(alice, "Alice", "alice@example.com", model.RoleAdmin, now, now).
			AddRow(bob, "Bob", "bob@example.com", model.RoleMember, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM push_subscriptions WHERE user_id = ANY($1::uuid[])`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
			AddRow("https://push.example.com/a1", alice, "key", "auth", now).
			AddRow("https://push.example.com/a2", alice, "key", "auth", now))

	users, err := store.Users().GetUsersByIDs(context.Background(), []uuid.UUID{alice, bob, uuid.New()})

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Len(t, users[0].PushSubscriptions, 2)
	assert.Empty(t, users[1].PushSubscriptions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsersByIDs_EmptyInput(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	users, err := store.Users().GetUsersByIDs(context.Background(), nil)

	assert.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFound(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = ANY($1::uuid[])`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "created_at", "updated_at"}))

	user, err := store.Users().GetUserByID(context.Background(), uuid.New())

	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.Nil(t, user)
}

func TestGetUserIDsByRole(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	admin := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE role = $1 ORDER BY id`)).
		WithArgs(model.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(admin))

	ids, err := store.Users().GetUserIDsByRole(context.Background(), model.RoleAdmin)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{admin}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePushSubscription_Upsert(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	sub := model.PushSubscription{Endpoint: "https://push.example.com/x", UserID: uuid.New(), P256DH: "p", Auth: "a"}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO push_subscriptions (endpoint, user_id, p256dh, auth) VALUES ($1, $2, $3, $4) ON CONFLICT (endpoint) DO UPDATE`)).
		WithArgs(sub.Endpoint, sub.UserID, sub.P256DH, sub.Auth).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Users().SavePushSubscription(context.Background(), sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePushSubscription_EndpointOfAnotherUser(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	sub := model.PushSubscription{Endpoint: "https://push.example.com/x", UserID: uuid.New(), P256DH: "p", Auth: "a"}
	mock.ExpectExec(regexp.QuoteMeta(`WHERE push_subscriptions.user_id = EXCLUDED.user_id`)).
		WithArgs(sub.Endpoint, sub.UserID, sub.P256DH, sub.Auth).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users().SavePushSubscription(context.Background(), sub)

	assert.True(t, errors.Is(err, ErrSubscriptionTaken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePushSubscription_NotFound(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	userID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`)).
		WithArgs(userID, "https://push.example.com/missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users().DeletePushSubscription(context.Background(), userID, "https://push.example.com/missing")

	assert.True(t, errors.Is(err, ErrSubscriptionNotFound))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db, mock, store := setupTestDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`))

	err := store.Users().CreateUser(context.Background(), model.User{ID: uuid.New(), Email: "a@example.com", Role: model.RoleMember})

	assert.True(t, errors.Is(err, ErrDuplicateEmail))
}
