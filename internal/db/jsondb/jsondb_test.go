package jsondb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/usersvc/internal/user"
)

func newTestUser(id, email, token string) *user.User {
	usr := &user.User{
		ID:       id,
		Email:    email,
		Username: "someone",
		Authentication: user.Authentication{
			Salt:         "salt",
			PasswordHash: "digest",
		},
	}
	if token != "" {
		usr.SessionToken = token
		usr.SessionExpiry = time.Now().Add(time.Hour)
	}

	return usr
}

func TestCreateAndLookups(t *testing.T) {
	db := NewEmpty()
	ctx := context.Background()

	userID, err := db.CreateUser(ctx, newTestUser("", "a@x.com", "token-a"), nil)
	require.NoError(t, err)
	require.NotEmpty(t, userID, "an id should be assigned when the record carries none")

	byID, found, err := db.GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a@x.com", byID.Email)

	byEmail, found, err := db.GetUserByEmail(ctx, "a@x.com", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, userID, byEmail.ID)

	byToken, found, err := db.GetUserBySessionToken(ctx, "token-a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, userID, byToken.ID)

	_, found, err = db.GetUserByEmail(ctx, "A@X.COM", nil)
	require.NoError(t, err)
	assert.False(t, found, "the email lookup is an exact match")

	_, found, err = db.GetUserBySessionToken(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateUserReindexes(t *testing.T) {
	db := NewEmpty()
	ctx := context.Background()

	userID, err := db.CreateUser(ctx, newTestUser("", "a@x.com", "token-a"), nil)
	require.NoError(t, err)

	updated := newTestUser(userID, "a@x.com", "token-b")
	require.NoError(t, db.UpdateUser(ctx, updated, nil))

	_, found, err := db.GetUserBySessionToken(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, found, "the previous session token should stop matching")

	byToken, found, err := db.GetUserBySessionToken(ctx, "token-b")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, userID, byToken.ID)
}

func TestDeleteUserByID(t *testing.T) {
	db := NewEmpty()
	ctx := context.Background()

	userID, err := db.CreateUser(ctx, newTestUser("", "a@x.com", "token-a"), nil)
	require.NoError(t, err)

	deletedUser, found, err := db.DeleteUserByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a@x.com", deletedUser.Email)

	_, found, err = db.GetUserByEmail(ctx, "a@x.com", nil)
	require.NoError(t, err)
	assert.False(t, found)

	deletedUser, found, err = db.DeleteUserByID(ctx, userID)
	require.NoError(t, err, "deleting a non-existent id is not an error")
	assert.False(t, found)
	assert.Nil(t, deletedUser)
}

func TestClearExpiredSessions(t *testing.T) {
	db := NewEmpty()
	ctx := context.Background()

	expired := newTestUser("", "a@x.com", "token-a")
	expired.SessionExpiry = time.Now().Add(-time.Minute)
	_, err := db.CreateUser(ctx, expired, nil)
	require.NoError(t, err)

	_, err = db.CreateUser(ctx, newTestUser("", "b@x.com", "token-b"), nil)
	require.NoError(t, err)

	cleared, err := db.ClearExpiredSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	_, found, err := db.GetUserBySessionToken(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = db.GetUserBySessionToken(ctx, "token-b")
	require.NoError(t, err)
	assert.True(t, found, "an unexpired session should survive the sweep")

	activeSessions, err := db.GetNumberOfActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), activeSessions)
}

func TestPersistenceRoundtrip(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "db_test.json")
	ctx := context.Background()

	db, err := New(fileName)
	require.NoError(t, err)

	userID, err := db.CreateUser(ctx, newTestUser("", "a@x.com", "token-a"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := New(fileName)
	require.NoError(t, err)

	byID, found, err := reopened.GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a@x.com", byID.Email)

	numberOfUsers, err := reopened.GetNumberOfUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), numberOfUsers)
}
