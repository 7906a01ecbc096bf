package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/usersvc/internal/models"
	"github.com/patric-chuzhbe/usersvc/internal/mockstorage"
	"github.com/patric-chuzhbe/usersvc/internal/secrets"
	"github.com/patric-chuzhbe/usersvc/internal/user"
)

func TestRegisterMissingFields(t *testing.T) {
	type tTestCase struct {
		name    string
		request models.RegisterRequest
	}
	testCases := []tTestCase{
		{name: "all_empty", request: models.RegisterRequest{}},
		{name: "no_email", request: models.RegisterRequest{Password: "p1", Username: "a"}},
		{name: "no_password", request: models.RegisterRequest{Email: "a@x.com", Username: "a"}},
		{name: "no_username", request: models.RegisterRequest{Email: "a@x.com", Password: "p1"}},
		{name: "only_email", request: models.RegisterRequest{Email: "a@x.com"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			db := &mockstorage.StorageMock{}
			theService := New(db, time.Hour)

			_, err := theService.Register(context.Background(), testCase.request)

			assert.ErrorIs(t, err, ErrMissingRequiredFields)
			db.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
			db.AssertNotCalled(t, "BeginTransaction")
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("BeginTransaction").Return(nil, nil)
	db.On("GetUserByEmail", mock.Anything, "a@x.com", mock.Anything).
		Return(&user.User{ID: "user-a", Email: "a@x.com"}, true, nil)
	db.On("RollbackTransaction", mock.Anything).Return(nil)

	theService := New(db, time.Hour)

	_, err := theService.Register(context.Background(), models.RegisterRequest{
		Email:    "a@x.com",
		Password: "p1",
		Username: "a",
	})

	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	db.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
	db.AssertExpectations(t)
}

func TestRegisterCreatesUserWithHashedPassword(t *testing.T) {
	var createdUser *user.User

	db := &mockstorage.StorageMock{}
	db.On("BeginTransaction").Return(nil, nil)
	db.On("GetUserByEmail", mock.Anything, "a@x.com", mock.Anything).
		Return(nil, false, nil)
	db.On("CreateUser", mock.Anything, mock.AnythingOfType("*user.User"), mock.Anything).
		Run(func(args mock.Arguments) {
			createdUser = args.Get(1).(*user.User)
		}).
		Return("user-a", nil)
	db.On("CommitTransaction", mock.Anything).Return(nil)

	theService := New(db, time.Hour)

	result, err := theService.Register(context.Background(), models.RegisterRequest{
		Email:    "a@x.com",
		Password: "p1",
		Username: "a",
	})
	require.NoError(t, err)
	require.NotNil(t, createdUser)

	assert.Equal(t, "a@x.com", createdUser.Email)
	assert.Equal(t, "a", createdUser.Username)
	assert.NotEmpty(t, createdUser.Authentication.Salt)
	assert.Equal(
		t,
		secrets.Hash(createdUser.Authentication.Salt, "p1"),
		createdUser.Authentication.PasswordHash,
		"stored hash should be derived from the salt and the plaintext password",
	)
	assert.Empty(t, createdUser.SessionToken, "registration should not issue a session")
	assert.Same(t, createdUser, result)
	db.AssertExpectations(t)
}

func TestRegisterStoreFailure(t *testing.T) {
	theStoreError := errors.New("the storage is down")

	db := &mockstorage.StorageMock{}
	db.On("BeginTransaction").Return(nil, nil)
	db.On("GetUserByEmail", mock.Anything, "a@x.com", mock.Anything).
		Return(nil, false, nil)
	db.On("CreateUser", mock.Anything, mock.Anything, mock.Anything).
		Return("", theStoreError)
	db.On("RollbackTransaction", mock.Anything).Return(nil)

	theService := New(db, time.Hour)

	_, err := theService.Register(context.Background(), models.RegisterRequest{
		Email:    "a@x.com",
		Password: "p1",
		Username: "a",
	})

	assert.ErrorIs(t, err, theStoreError)
	db.AssertExpectations(t)
}

func registeredUser(password string) *user.User {
	salt := "salt-a"

	return &user.User{
		ID:       "user-a",
		Email:    "a@x.com",
		Username: "a",
		Authentication: user.Authentication{
			Salt:         salt,
			PasswordHash: secrets.Hash(salt, password),
		},
	}
}

func TestLogin(t *testing.T) {
	type tTestCase struct {
		name          string
		request       models.LoginRequest
		setupMock     func(db *mockstorage.StorageMock)
		expectedError error
	}
	testCases := []tTestCase{
		{
			name:          "missing_fields",
			request:       models.LoginRequest{Email: "a@x.com"},
			setupMock:     func(db *mockstorage.StorageMock) {},
			expectedError: ErrMissingRequiredFields,
		},
		{
			name:    "unknown_email",
			request: models.LoginRequest{Email: "b@x.com", Password: "p1"},
			setupMock: func(db *mockstorage.StorageMock) {
				db.On("GetUserByEmail", mock.Anything, "b@x.com", mock.Anything).
					Return(nil, false, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name:    "wrong_password",
			request: models.LoginRequest{Email: "a@x.com", Password: "wrong"},
			setupMock: func(db *mockstorage.StorageMock) {
				db.On("GetUserByEmail", mock.Anything, "a@x.com", mock.Anything).
					Return(registeredUser("p1"), true, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			db := &mockstorage.StorageMock{}
			testCase.setupMock(db)

			theService := New(db, time.Hour)

			_, _, err := theService.Login(context.Background(), testCase.request)

			assert.ErrorIs(t, err, testCase.expectedError)
			db.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLoginIssuesFreshSession(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("GetUserByEmail", mock.Anything, "a@x.com", mock.Anything).
		Return(registeredUser("p1"), true, nil)

	var updatedUser *user.User
	db.On("UpdateUser", mock.Anything, mock.AnythingOfType("*user.User"), mock.Anything).
		Run(func(args mock.Arguments) {
			updatedUser = args.Get(1).(*user.User)
		}).
		Return(nil)

	theService := New(db, time.Hour)

	loggedInUser, sessionToken, err := theService.Login(context.Background(), models.LoginRequest{
		Email:    "a@x.com",
		Password: "p1",
	})
	require.NoError(t, err)
	require.NotNil(t, updatedUser)

	assert.NotEmpty(t, sessionToken)
	assert.Equal(t, sessionToken, updatedUser.SessionToken)
	assert.Equal(t, sessionToken, loggedInUser.SessionToken)
	assert.True(
		t,
		updatedUser.SessionExpiry.After(time.Now()),
		"the issued session should expire in the future",
	)
	db.AssertExpectations(t)
}

func TestDeleteUserOfNonExistentID(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("DeleteUserByID", mock.Anything, "nobody").Return(nil, false, nil)

	theService := New(db, time.Hour)

	deletedUser, found, err := theService.DeleteUser(context.Background(), "nobody")

	require.NoError(t, err, "deleting a non-existent id is not an error")
	assert.False(t, found)
	assert.Nil(t, deletedUser)
}

func TestUpdateUsername(t *testing.T) {
	t.Run("empty_username", func(t *testing.T) {
		db := &mockstorage.StorageMock{}
		theService := New(db, time.Hour)

		_, err := theService.UpdateUsername(context.Background(), "user-a", "")

		assert.ErrorIs(t, err, ErrMissingRequiredFields)
		db.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown_user", func(t *testing.T) {
		db := &mockstorage.StorageMock{}
		db.On("GetUserByID", mock.Anything, "nobody").Return(nil, false, nil)
		theService := New(db, time.Hour)

		_, err := theService.UpdateUsername(context.Background(), "nobody", "new-name")

		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("positive", func(t *testing.T) {
		db := &mockstorage.StorageMock{}
		db.On("GetUserByID", mock.Anything, "user-a").Return(registeredUser("p1"), true, nil)
		db.On("UpdateUser", mock.Anything, mock.AnythingOfType("*user.User"), mock.Anything).
			Return(nil)
		theService := New(db, time.Hour)

		updatedUser, err := theService.UpdateUsername(context.Background(), "user-a", "new-name")

		require.NoError(t, err)
		assert.Equal(t, "new-name", updatedUser.Username)
		db.AssertExpectations(t)
	})
}

func TestGetUsersRedactsCredentials(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("GetUsers", mock.Anything).Return([]*user.User{
		registeredUser("p1"),
	}, nil)

	theService := New(db, time.Hour)

	users, err := theService.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	assert.Equal(t, "user-a", users[0].ID)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.Equal(t, "a", users[0].Username)
}

func TestGetStats(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("GetNumberOfUsers", mock.Anything).Return(int64(3), nil)
	db.On("GetNumberOfActiveSessions", mock.Anything).Return(int64(2), nil)

	theService := New(db, time.Hour)

	stats, err := theService.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Users)
	assert.Equal(t, int64(2), stats.ActiveSessions)
}
