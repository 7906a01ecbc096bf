// Package service contains the user-management business logic: the
// registration flow, session issuance on login, listing, mutation and
// deletion of users. Handlers translate its sentinel errors into HTTP
// status codes.
package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/usersvc/internal/models"
	"github.com/patric-chuzhbe/usersvc/internal/secrets"
	"github.com/patric-chuzhbe/usersvc/internal/user"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type userKeeper interface {
	CreateUser(
		ctx context.Context,
		usr *user.User,
		transaction *sql.Tx,
	) (string, error)

	GetUserByID(ctx context.Context, userID string) (*user.User, bool, error)

	GetUserByEmail(
		ctx context.Context,
		email string,
		transaction *sql.Tx,
	) (*user.User, bool, error)

	GetUsers(ctx context.Context) ([]*user.User, error)

	UpdateUser(
		ctx context.Context,
		usr *user.User,
		transaction *sql.Tx,
	) error

	DeleteUserByID(ctx context.Context, userID string) (*user.User, bool, error)
}

type statsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfActiveSessions(ctx context.Context) (int64, error)
}

type storage interface {
	transactioner
	userKeeper
	statsKeeper
}

// ErrMissingRequiredFields is returned when a request lacks one of the
// mandatory fields.
var ErrMissingRequiredFields = errors.New("missing required fields")

// ErrUserAlreadyExists is returned when the registration email is taken.
var ErrUserAlreadyExists = errors.New("user already exists")

// ErrInvalidCredentials is returned on login with an unknown email or a
// wrong password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUserNotFound is returned when a mutation targets a missing user.
var ErrUserNotFound = errors.New("user not found")

type Service struct {
	db         storage
	sessionTTL time.Duration
}

func New(db storage, sessionTTL time.Duration) *Service {
	return &Service{
		db:         db,
		sessionTTL: sessionTTL,
	}
}

// Register creates a new user from the given request. It fails with
// ErrMissingRequiredFields when any of email, password or username is
// empty, and with ErrUserAlreadyExists when the email is already
// registered. The uniqueness check and the insert run in one transaction.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*user.User, error) {
	if req.Email == "" || req.Password == "" || req.Username == "" {
		return nil, ErrMissingRequiredFields
	}

	transaction, err := s.db.BeginTransaction()
	if err != nil {
		return nil, err
	}

	_, found, err := s.db.GetUserByEmail(ctx, req.Email, transaction)
	if err != nil {
		return nil, s.rollbackWith(transaction, err)
	}
	if found {
		return nil, s.rollbackWith(transaction, ErrUserAlreadyExists)
	}

	salt, err := secrets.RandomSecret()
	if err != nil {
		return nil, s.rollbackWith(transaction, err)
	}

	newUser := &user.User{
		Email:    req.Email,
		Username: req.Username,
		Authentication: user.Authentication{
			Salt:         salt,
			PasswordHash: secrets.Hash(salt, req.Password),
		},
	}

	_, err = s.db.CreateUser(ctx, newUser, transaction)
	if err != nil {
		return nil, s.rollbackWith(transaction, err)
	}

	if err := s.db.CommitTransaction(transaction); err != nil {
		return nil, err
	}

	return newUser, nil
}

func (s *Service) rollbackWith(transaction *sql.Tx, err error) error {
	if rollbackErr := s.db.RollbackTransaction(transaction); rollbackErr != nil {
		return fmt.Errorf("rollback failed: %w (after: %w)", rollbackErr, err)
	}

	return err
}

// Login verifies the credentials and issues a fresh session: a new random
// token with an expiry of now plus the configured TTL, persisted on the
// user record. The previous session token, if any, stops matching.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*user.User, string, error) {
	if req.Email == "" || req.Password == "" {
		return nil, "", ErrMissingRequiredFields
	}

	usr, found, err := s.db.GetUserByEmail(ctx, req.Email, nil)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", ErrInvalidCredentials
	}

	expectedHash := secrets.Hash(usr.Authentication.Salt, req.Password)
	if subtle.ConstantTimeCompare(
		[]byte(expectedHash),
		[]byte(usr.Authentication.PasswordHash),
	) != 1 {
		return nil, "", ErrInvalidCredentials
	}

	sessionToken, err := secrets.RandomSecret()
	if err != nil {
		return nil, "", err
	}

	usr.SessionToken = sessionToken
	usr.SessionExpiry = time.Now().Add(s.sessionTTL)

	if err := s.db.UpdateUser(ctx, usr, nil); err != nil {
		return nil, "", err
	}

	return usr, sessionToken, nil
}

// GetUsers returns all users in their redacted public representation.
func (s *Service) GetUsers(ctx context.Context) ([]models.PublicUser, error) {
	users, err := s.db.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	return funk.Map(users, models.NewPublicUser).([]models.PublicUser), nil
}

// DeleteUser removes the user with the given id and returns the removed
// record. Deleting a non-existent id is not an error: the boolean result
// is false and no record is returned.
func (s *Service) DeleteUser(ctx context.Context, userID string) (*user.User, bool, error) {
	return s.db.DeleteUserByID(ctx, userID)
}

// UpdateUsername changes the display name of the given user.
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) (*user.User, error) {
	if username == "" {
		return nil, ErrMissingRequiredFields
	}

	usr, found, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}

	usr.Username = username
	if err := s.db.UpdateUser(ctx, usr, nil); err != nil {
		return nil, err
	}

	return usr, nil
}

// GetStats reports the user and active session counters for the internal
// stats endpoint.
func (s *Service) GetStats(ctx context.Context) (models.InternalStats, error) {
	numberOfUsers, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStats{}, err
	}

	numberOfActiveSessions, err := s.db.GetNumberOfActiveSessions(ctx)
	if err != nil {
		return models.InternalStats{}, err
	}

	return models.InternalStats{
		Users:          numberOfUsers,
		ActiveSessions: numberOfActiveSessions,
	}, nil
}
