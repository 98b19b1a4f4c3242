package admincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thoas/go-funk"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/service"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

type seedFile struct {
	Users []user.User `yaml:"users"`
}

type userInserter interface {
	FindUser(ctx context.Context, username string) (*user.User, bool, error)
	InsertUser(ctx context.Context, usr *user.User) error
}

type seedResult struct {
	Inserted int
	Skipped  int
}

func (a *admin) newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create accounts listed in a YAML file, skipping existing usernames",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			users, err := readSeedFile(path)
			if err != nil {
				return err
			}

			db, err := a.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, db.Close())
			}()

			result, err := seedUsers(cmd.Context(), db, users, bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d users created, %d skipped.\n", result.Inserted, result.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "users.yaml", "YAML file with the users to create")

	return cmd
}

func readSeedFile(path string) ([]user.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	return file.Users, nil
}

// seedUsers inserts users that do not exist yet. Entries without a username
// or password are skipped; for a username listed twice the first entry wins.
// A missing role means USER.
func seedUsers(ctx context.Context, db userInserter, users []user.User, cost int) (seedResult, error) {
	var result seedResult

	firstByName := make(map[string]user.User, len(users))
	names := make([]string, 0, len(users))
	for _, usr := range users {
		if usr.Username == "" || usr.Password == "" {
			result.Skipped++
			continue
		}
		if _, seen := firstByName[usr.Username]; !seen {
			firstByName[usr.Username] = usr
		}
		names = append(names, usr.Username)
	}
	unique := funk.Uniq(names).([]string)
	result.Skipped += len(names) - len(unique)

	for _, name := range unique {
		usr := firstByName[name]

		_, found, err := db.FindUser(ctx, name)
		if err != nil {
			return result, fmt.Errorf("looking up %q: %w", name, err)
		}
		if found {
			result.Skipped++
			continue
		}

		hash, err := service.HashPassword(usr.Password, cost)
		if err != nil {
			return result, fmt.Errorf("hashing password of %q: %w", name, err)
		}
		role := usr.Role
		if role == user.RoleNone {
			role = user.RoleUser
		}

		err = db.InsertUser(ctx, &user.User{Username: name, Password: hash, Role: role})
		if errors.Is(err, models.ErrUserAlreadyExists) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("creating %q: %w", name, err)
		}
		result.Inserted++
	}

	return result, nil
}
