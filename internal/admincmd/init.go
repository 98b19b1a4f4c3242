package admincmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/ecgstore/internal/app"
	"github.com/patric-chuzhbe/ecgstore/internal/db/rediscache"
	"github.com/patric-chuzhbe/ecgstore/internal/logger"
	"github.com/patric-chuzhbe/ecgstore/internal/service"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

var errMissingAdminCredentials = errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set")

func (a *admin) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Wipe all users and ECGs and create the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initStorage(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Storage initialized, admin %q created.\n", a.cfg.AdminUsername)
			return nil
		},
	}
}

func (a *admin) initStorage(ctx context.Context) (err error) {
	if a.cfg.AdminUsername == "" || a.cfg.AdminPassword == "" {
		return errMissingAdminCredentials
	}

	hash, err := service.HashPassword(a.cfg.AdminPassword, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	db, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()

	if err := db.Reset(ctx); err != nil {
		return fmt.Errorf("wiping storage: %w", err)
	}

	if err := a.purgeCache(ctx, db); err != nil {
		return err
	}

	err = db.InsertUser(ctx, &user.User{
		Username: a.cfg.AdminUsername,
		Password: hash,
		Role:     user.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}

	logger.Log.Infow("storage initialized", "admin", a.cfg.AdminUsername)

	return nil
}

// purgeCache drops cached records so the wiped storage is not shadowed by Redis.
func (a *admin) purgeCache(ctx context.Context, db app.Storage) error {
	client, err := app.OpenRedis(ctx, a.cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	defer client.Close()

	if err := rediscache.New(db, client, a.cfg.RedisCacheTTL).Purge(ctx); err != nil {
		return fmt.Errorf("purging record cache: %w", err)
	}

	return nil
}
