// Package mockstorage provides a testify-based mock implementation
// of the credential and ECG record storages.
// It is used for unit testing the service and the HTTP handlers
// on failure paths the real storages cannot easily produce.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

// StorageMock is a testify mock that implements every storage method.
type StorageMock struct {
	mock.Mock
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// FindUser mocks the lookup of a user by username.
func (m *StorageMock) FindUser(ctx context.Context, username string) (*user.User, bool, error) {
	args := m.Called(ctx, username)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// InsertUser mocks user creation.
func (m *StorageMock) InsertUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// DeleteUser mocks user removal.
func (m *StorageMock) DeleteUser(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

// FindECG mocks the lookup of an ECG record.
func (m *StorageMock) FindECG(ctx context.Context, id string) (*models.ECGRecord, bool, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*models.ECGRecord)
	return record, args.Bool(1), args.Error(2)
}

// InsertECG mocks storing an ECG record.
func (m *StorageMock) InsertECG(ctx context.Context, record *models.ECGRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// Reset mocks wiping the storage.
func (m *StorageMock) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks closing the storage and releasing resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
