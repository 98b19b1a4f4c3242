// Package user defines the account model used for authentication
// and for the ownership checks on ECG records.
package user

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Role is the closed set of account roles.
// The zero value RoleNone stands for "no such account" and is never persisted.
type Role uint8

const (
	RoleNone Role = iota
	RoleAdmin
	RoleUser
)

// ErrUnknownRole is returned when a stored or supplied role is not one of the known values.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts the persisted representation ("ADMIN", "USER") into a Role.
func ParseRole(value string) (Role, error) {
	switch value {
	case "ADMIN":
		return RoleAdmin, nil
	case "USER":
		return RoleUser, nil
	}

	return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, value)
}

// String returns the persisted representation of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleUser:
		return "USER"
	case RoleNone:
		return ""
	}

	return fmt.Sprintf("Role(%d)", uint8(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r == RoleNone {
		return nil, ErrUnknownRole
	}

	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the JSON file storage and seed files.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed

	return nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if r == RoleNone {
		return nil, ErrUnknownRole
	}

	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	}

	return fmt.Errorf("%w: cannot scan %T", ErrUnknownRole, src)
}

// User represents a system account.
type User struct {
	// Username is the unique login name, also used as the token subject and as the ECG owner.
	Username string `json:"username" yaml:"username"`

	// Password holds the bcrypt hash of the account password.
	Password string `json:"password" yaml:"password"`

	Role Role `json:"role" yaml:"role"`
}
