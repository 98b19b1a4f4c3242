// Package jsondb provides a storage backed by a single JSON file.
// The whole dataset is held in memory and flushed to the file on Close.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

type CacheStruct struct {
	Users map[string]*user.User
	ECGs  map[string]*models.ECGRecord
}

// NewCache returns an empty dataset.
func NewCache() CacheStruct {
	return CacheStruct{
		Users: map[string]*user.User{},
		ECGs:  map[string]*models.ECGRecord{},
	}
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cache)
	if err != nil {
		return err
	}

	return nil
}

// New loads the dataset from fileName, creating the file when it does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := writeToJSONFile(fileName, db.Cache)
		if err != nil {
			return nil, err
		}
	}

	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*user.User{}
	}
	if db.Cache.ECGs == nil {
		db.Cache.ECGs = map[string]*models.ECGRecord{}
	}

	return db, nil
}

// NewInMemory returns a JSONDB that is never flushed to disk.
func NewInMemory() *JSONDB {
	return &JSONDB{Cache: NewCache()}
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	if db.fileName == "" {
		return nil
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

// Reset drops every user and ECG record.
func (db *JSONDB) Reset(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache = NewCache()

	return nil
}

func (db *JSONDB) FindUser(ctx context.Context, username string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache.Users[username]
	if !found {
		return nil, false, nil
	}
	result := *usr

	return &result, true, nil
}

func (db *JSONDB) InsertUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Users[usr.Username]; exists {
		return models.ErrUserAlreadyExists
	}
	stored := *usr
	db.Cache.Users[usr.Username] = &stored

	return nil
}

func (db *JSONDB) DeleteUser(ctx context.Context, username string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Users[username]; !exists {
		return 0, nil
	}
	delete(db.Cache.Users, username)

	return 1, nil
}

func (db *JSONDB) FindECG(ctx context.Context, id string) (*models.ECGRecord, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	record, found := db.Cache.ECGs[id]
	if !found {
		return nil, false, nil
	}

	return copyRecord(record), true, nil
}

func (db *JSONDB) InsertECG(ctx context.Context, record *models.ECGRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.ECGs[record.ID]; exists {
		return models.ErrECGAlreadyExists
	}
	db.Cache.ECGs[record.ID] = copyRecord(record)

	return nil
}

func copyRecord(record *models.ECGRecord) *models.ECGRecord {
	result := *record
	result.Leads = make([]models.Lead, len(record.Leads))
	for i, lead := range record.Leads {
		result.Leads[i] = lead
		result.Leads[i].Samples = append([]int64(nil), lead.Samples...)
		result.Leads[i].NumSamples = append(json.RawMessage(nil), lead.NumSamples...)
	}

	return &result
}
