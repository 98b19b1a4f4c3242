package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/ecgstore/internal/db/memorystorage"
	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

type failingFinder struct{}

func (failingFinder) FindUser(context.Context, string) (*user.User, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestRoleOf(t *testing.T) {
	store, err := memorystorage.New()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.InsertUser(ctx, &user.User{Username: "root", Role: user.RoleAdmin}))
	require.NoError(t, store.InsertUser(ctx, &user.User{Username: "alice", Role: user.RoleUser}))

	policy := New(store)

	role, err := policy.RoleOf(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, role)

	role, err = policy.RoleOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.RoleUser, role)

	role, err = policy.RoleOf(ctx, "ghost")
	require.NoError(t, err, "an unknown identity is not an error")
	assert.Equal(t, user.RoleNone, role)

	_, err = New(failingFinder{}).RoleOf(ctx, "root")
	assert.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin(user.RoleAdmin))
	assert.False(t, IsAdmin(user.RoleUser))
	assert.False(t, IsAdmin(user.RoleNone))
	assert.False(t, IsAdmin(user.Role(42)))
}

func TestCanRead(t *testing.T) {
	record := &models.ECGRecord{ID: "test1", Owner: "alice"}

	assert.True(t, CanRead("alice", user.RoleUser, record))
	assert.True(t, CanRead("alice", user.RoleNone, record), "ownership alone is enough")
	assert.True(t, CanRead("root", user.RoleAdmin, record))
	assert.False(t, CanRead("bob", user.RoleUser, record))
	assert.False(t, CanRead("ghost", user.RoleNone, record))
}
