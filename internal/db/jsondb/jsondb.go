// Package jsondb implements the storage contract on top of a JSON file.
// The whole user collection lives in memory and is flushed to the file on
// Close. It is the default backend for local runs and tests.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/usersvc/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the persisted shape of the database: the user records
// keyed by id plus the secondary indexes used for point lookups.
type CacheStruct struct {
	Users            map[string]*user.User
	EmailToID        map[string]string
	SessionTokenToID map[string]string
}

// Transactions are a no-op for the JSON backend: every operation is
// already atomic under the cache mutex.

func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Users": {},
	"EmailToID": {},
	"SessionTokenToID": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cacheMap)
	if err != nil {
		return err
	}

	return nil
}

// NewEmpty returns a database with an empty collection and no backing
// file. Closing it flushes nothing.
func NewEmpty() *JSONDB {
	return &JSONDB{
		Cache: CacheStruct{
			Users:            map[string]*user.User{},
			EmailToID:        map[string]string{},
			SessionTokenToID: map[string]string{},
		},
	}
}

// New opens the JSON database stored in fileName, creating the file with
// an empty collection when it does not exist yet.
func New(fileName string) (*JSONDB, error) {
	theDB := JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(theDB.fileName, &theDB.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(theDB.fileName, &theDB.Cache)
		if err != nil {
			return nil, err
		}
	}

	if theDB.Cache.Users == nil {
		theDB.Cache.Users = map[string]*user.User{}
	}
	if theDB.Cache.EmailToID == nil {
		theDB.Cache.EmailToID = map[string]string{}
	}
	if theDB.Cache.SessionTokenToID == nil {
		theDB.Cache.SessionTokenToID = map[string]string{}
	}

	return &theDB, nil
}

func cloneUser(usr *user.User) *user.User {
	clone := *usr
	return &clone
}

// CreateUser stores a new user and returns its id. When the user carries
// no id yet a new UUID is assigned.
func (db *JSONDB) CreateUser(
	ctx context.Context,
	usr *user.User,
	transaction *sql.Tx,
) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}

	stored := cloneUser(usr)
	db.Cache.Users[stored.ID] = stored
	db.Cache.EmailToID[stored.Email] = stored.ID
	if stored.SessionToken != "" {
		db.Cache.SessionTokenToID[stored.SessionToken] = stored.ID
	}

	return stored.ID, nil
}

// GetUserByID returns the user with the given id, if any.
func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}

	return cloneUser(usr), true, nil
}

// GetUserByEmail returns the user registered under the given email, if any.
// The lookup is exact.
func (db *JSONDB) GetUserByEmail(
	ctx context.Context,
	email string,
	transaction *sql.Tx,
) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	userID, found := db.Cache.EmailToID[email]
	if !found {
		return nil, false, nil
	}
	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}

	return cloneUser(usr), true, nil
}

// GetUserBySessionToken returns the user currently holding the given
// session token, if any.
func (db *JSONDB) GetUserBySessionToken(
	ctx context.Context,
	sessionToken string,
) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	userID, found := db.Cache.SessionTokenToID[sessionToken]
	if !found {
		return nil, false, nil
	}
	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}

	return cloneUser(usr), true, nil
}

// GetUsers returns all user records.
func (db *JSONDB) GetUsers(ctx context.Context) ([]*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]*user.User, 0, len(db.Cache.Users))
	for _, usr := range db.Cache.Users {
		result = append(result, cloneUser(usr))
	}

	return result, nil
}

// UpdateUser replaces the stored record with the given one and refreshes
// the secondary indexes.
func (db *JSONDB) UpdateUser(
	ctx context.Context,
	usr *user.User,
	transaction *sql.Tx,
) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	previous, found := db.Cache.Users[usr.ID]
	if found {
		delete(db.Cache.EmailToID, previous.Email)
		if previous.SessionToken != "" {
			delete(db.Cache.SessionTokenToID, previous.SessionToken)
		}
	}

	stored := cloneUser(usr)
	db.Cache.Users[stored.ID] = stored
	db.Cache.EmailToID[stored.Email] = stored.ID
	if stored.SessionToken != "" {
		db.Cache.SessionTokenToID[stored.SessionToken] = stored.ID
	}

	return nil
}

// DeleteUserByID removes the user with the given id and returns the removed
// record. Deleting a non-existent id is not an error.
func (db *JSONDB) DeleteUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}

	delete(db.Cache.Users, userID)
	delete(db.Cache.EmailToID, usr.Email)
	if usr.SessionToken != "" {
		delete(db.Cache.SessionTokenToID, usr.SessionToken)
	}

	return usr, true, nil
}

// GetNumberOfUsers returns the total number of user records.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// GetNumberOfActiveSessions returns the number of users with an unexpired
// session token.
func (db *JSONDB) GetNumberOfActiveSessions(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var result int64
	now := time.Now()
	for _, usr := range db.Cache.Users {
		if usr.HasActiveSession(now) {
			result++
		}
	}

	return result, nil
}

// ClearExpiredSessions drops session tokens whose expiry lies before now
// and returns the number of cleared sessions.
func (db *JSONDB) ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var cleared int64
	for _, usr := range db.Cache.Users {
		if usr.SessionToken == "" || now.Before(usr.SessionExpiry) {
			continue
		}
		delete(db.Cache.SessionTokenToID, usr.SessionToken)
		usr.SessionToken = ""
		usr.SessionExpiry = time.Time{}
		cleared++
	}

	return cleared, nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache back to the JSON file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	err := writeToJSONFile(db.fileName, db.Cache)
	if err != nil {
		return err
	}

	return nil
}
