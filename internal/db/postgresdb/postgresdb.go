// Package postgresdb provides a PostgreSQL-based implementation of the
// storage interface for persisting and retrieving user records and their
// session state. Schema management is delegated to goose migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/usersvc/internal/user"
)

// PostgresDB is a PostgreSQL-backed implementation of the user storage.
// It handles all persistence operations via a PostgreSQL database connection.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption customizes the initialization of PostgresDB.
type InitOption func(*initOptions)

// WithDBPreReset forces a full schema reset before the migrations run.
// Intended for integration tests only.
func WithDBPreReset(DBPreReset bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = DBPreReset
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)

	return err
}

func (db *PostgresDB) getQueryer(transaction *sql.Tx) queryer {
	if transaction != nil {
		return transaction
	}

	return db.database
}

func (db *PostgresDB) getExecutor(transaction *sql.Tx) executor {
	if transaction != nil {
		return transaction
	}

	return db.database
}

func (db *PostgresDB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.connectionTimeout)
}

const userColumns = `id, email, username, salt, password_hash, session_token, session_expiry`

func scanUser(row *sql.Row) (*user.User, bool, error) {
	usr := &user.User{}
	var sessionToken sql.NullString
	var sessionExpiry sql.NullTime

	err := row.Scan(
		&usr.ID,
		&usr.Email,
		&usr.Username,
		&usr.Authentication.Salt,
		&usr.Authentication.PasswordHash,
		&sessionToken,
		&sessionExpiry,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	usr.SessionToken = sessionToken.String
	if sessionExpiry.Valid {
		usr.SessionExpiry = sessionExpiry.Time
	}

	return usr, true, nil
}

// CreateUser inserts a new user record and returns its id, assigning a new
// UUID when the record carries none.
func (db *PostgresDB) CreateUser(
	ctx context.Context,
	usr *user.User,
	transaction *sql.Tx,
) (string, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}

	_, err := db.getExecutor(transaction).ExecContext(
		requestCtx,
		`
			INSERT INTO users (id, email, username, salt, password_hash, session_token, session_expiry)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		`,
		usr.ID,
		usr.Email,
		usr.Username,
		usr.Authentication.Salt,
		usr.Authentication.PasswordHash,
		usr.SessionToken,
		nullableTime(usr.SessionExpiry),
	)
	if err != nil {
		return "", err
	}

	return usr.ID, nil
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}

	return value
}

// GetUserByID fetches a user by its primary key.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	row := db.database.QueryRowContext(
		requestCtx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		userID,
	)

	return scanUser(row)
}

// GetUserByEmail fetches a user by its email. The query is an exact match
// and follows the collation of the email column.
func (db *PostgresDB) GetUserByEmail(
	ctx context.Context,
	email string,
	transaction *sql.Tx,
) (*user.User, bool, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	row := db.getQueryer(transaction).QueryRowContext(
		requestCtx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

// GetUserBySessionToken fetches the user currently holding the session token.
func (db *PostgresDB) GetUserBySessionToken(
	ctx context.Context,
	sessionToken string,
) (*user.User, bool, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	row := db.database.QueryRowContext(
		requestCtx,
		`SELECT `+userColumns+` FROM users WHERE session_token = $1`,
		sessionToken,
	)

	return scanUser(row)
}

// GetUsers returns all user records.
func (db *PostgresDB) GetUsers(ctx context.Context) ([]*user.User, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.database.QueryContext(
		requestCtx,
		`SELECT `+userColumns+` FROM users ORDER BY email`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*user.User{}
	for rows.Next() {
		usr := &user.User{}
		var sessionToken sql.NullString
		var sessionExpiry sql.NullTime
		err := rows.Scan(
			&usr.ID,
			&usr.Email,
			&usr.Username,
			&usr.Authentication.Salt,
			&usr.Authentication.PasswordHash,
			&sessionToken,
			&sessionExpiry,
		)
		if err != nil {
			return nil, err
		}
		usr.SessionToken = sessionToken.String
		if sessionExpiry.Valid {
			usr.SessionExpiry = sessionExpiry.Time
		}
		result = append(result, usr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateUser rewrites the mutable fields of the stored record.
func (db *PostgresDB) UpdateUser(
	ctx context.Context,
	usr *user.User,
	transaction *sql.Tx,
) error {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.getExecutor(transaction).ExecContext(
		requestCtx,
		`
			UPDATE users
				SET email = $2,
					username = $3,
					salt = $4,
					password_hash = $5,
					session_token = NULLIF($6, ''),
					session_expiry = $7
				WHERE id = $1
		`,
		usr.ID,
		usr.Email,
		usr.Username,
		usr.Authentication.Salt,
		usr.Authentication.PasswordHash,
		usr.SessionToken,
		nullableTime(usr.SessionExpiry),
	)

	return err
}

// DeleteUserByID removes a user and returns the removed record. A missing
// id yields no error and no record.
func (db *PostgresDB) DeleteUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	row := db.database.QueryRowContext(
		requestCtx,
		`DELETE FROM users WHERE id = $1 RETURNING `+userColumns,
		userID,
	)

	return scanUser(row)
}

// GetNumberOfUsers returns the total number of user records.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	var result int64
	err := db.database.QueryRowContext(requestCtx, `SELECT COUNT(*) FROM users`).Scan(&result)
	if err != nil {
		return 0, err
	}

	return result, nil
}

// GetNumberOfActiveSessions returns the number of unexpired sessions.
func (db *PostgresDB) GetNumberOfActiveSessions(ctx context.Context) (int64, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	var result int64
	err := db.database.QueryRowContext(
		requestCtx,
		`SELECT COUNT(*) FROM users WHERE session_token IS NOT NULL AND session_expiry > now()`,
	).Scan(&result)
	if err != nil {
		return 0, err
	}

	return result, nil
}

// ClearExpiredSessions drops every session token whose expiry lies at or
// before the given moment and returns the number of cleared sessions.
func (db *PostgresDB) ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	result, err := db.database.ExecContext(
		requestCtx,
		`
			UPDATE users
				SET session_token = NULL,
					session_expiry = NULL
				WHERE session_token IS NOT NULL
					AND session_expiry <= $1
		`,
		now,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// BeginTransaction starts a database transaction.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// CommitTransaction commits the given transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) error {
	return transaction.Commit()
}

// RollbackTransaction rolls the given transaction back.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// Ping checks the database connectivity.
func (db *PostgresDB) Ping(ctx context.Context) error {
	requestCtx, cancel := db.withTimeout(ctx)
	defer cancel()

	return db.database.PingContext(requestCtx)
}

// Close closes the underlying connection pool.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}
