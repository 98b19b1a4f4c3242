// Package access decides who may read an ECG record and who may administer accounts.
package access

import (
	"context"
	"fmt"

	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

type userFinder interface {
	FindUser(ctx context.Context, username string) (*user.User, bool, error)
}

// Policy resolves identities to roles through the credential storage.
type Policy struct {
	users userFinder
}

func New(users userFinder) *Policy {
	return &Policy{users: users}
}

// RoleOf returns the role of identity, or user.RoleNone when no such account exists.
func (p *Policy) RoleOf(ctx context.Context, identity string) (user.Role, error) {
	usr, found, err := p.users.FindUser(ctx, identity)
	if err != nil {
		return user.RoleNone, fmt.Errorf("resolving role of %q: %w", identity, err)
	}
	if !found {
		return user.RoleNone, nil
	}

	return usr.Role, nil
}

// IsAdmin reports whether role grants administrative operations.
func IsAdmin(role user.Role) bool {
	switch role {
	case user.RoleAdmin:
		return true
	case user.RoleUser, user.RoleNone:
		return false
	}

	return false
}

// CanRead reports whether identity holding role may read record.
func CanRead(identity string, role user.Role, record *models.ECGRecord) bool {
	return identity == record.Owner || IsAdmin(role)
}
