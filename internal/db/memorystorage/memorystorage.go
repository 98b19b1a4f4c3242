package memorystorage

import (
	"github.com/patric-chuzhbe/ecgstore/internal/db/jsondb"
)

// MemoryStorage keeps users and ECG records in process memory only.
type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewInMemory(),
	}, nil
}
