// Package memorystorage provides an in-memory storage backend built on the
// jsondb cache without a backing file. It is used when neither a database
// DSN nor a storage file is configured, and in tests.
package memorystorage

import (
	"github.com/patric-chuzhbe/usersvc/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewEmpty(),
	}, nil
}

// Close is a no-op: there is no file to flush.
func (theStorage *MemoryStorage) Close() error {
	return nil
}
