package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/patric-chuzhbe/usersvc/internal/user"
)

// Storage is the full contract the application expects from a user store.
// Point lookups report absence through the boolean result, not through an
// error. Write operations accept an optional transaction; backends without
// transaction support ignore it.
type Storage interface {
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

	GetUserBySessionToken(
		ctx context.Context,
		sessionToken string,
	) (*user.User, bool, error)

	GetUsers(ctx context.Context) ([]*user.User, error)

	UpdateUser(
		ctx context.Context,
		usr *user.User,
		transaction *sql.Tx,
	) error

	DeleteUserByID(ctx context.Context, userID string) (*user.User, bool, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfActiveSessions(ctx context.Context) (int64, error)

	ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}
