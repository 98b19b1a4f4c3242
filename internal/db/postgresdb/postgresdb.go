// Package postgresdb provides a PostgreSQL-based implementation of the
// credential and ECG record storages.
// Uniqueness of usernames and ECG ids is enforced by primary keys.
package postgresdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
	DriverName string
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables dropping all tables before migration.
// It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// WithDriver selects the database/sql driver: "pgx" (default) or "postgres" (lib/pq).
func WithDriver(driverName string) InitOption {
	return func(options *initOptions) {
		if driverName != "" {
			options.DriverName = driverName
		}
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
		DriverName: "pgx",
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := openDB(options.DriverName, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/New(): error while `sql.Open()` calling: %w",
			err,
		)
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.prepare(ctx, options, migrationsDir); err != nil {
		_ = database.Close()
		return nil, err
	}

	return result, nil
}

// openDB is swapped in tests to observe the handle New opens.
var openDB = sql.Open

func (db *PostgresDB) prepare(ctx context.Context, options *initOptions, migrationsDir string) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/New(): error while `db.Ping()` calling: %w",
			err,
		)
	}

	if options.DBPreReset {
		if err := db.resetDB(ctx); err != nil {
			return fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `db.resetDB()` calling: %w",
				err,
			)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
			err,
		)
	}

	if err := goose.UpContext(ctx, db.database, migrationsDir); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
			err,
		)
	}

	return nil
}

// FindUser fetches a user by username. The boolean is false when no such user exists.
func (db *PostgresDB) FindUser(ctx context.Context, username string) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT username, password, role FROM users WHERE username = $1`,
		username,
	)
	usr := &user.User{}
	err := row.Scan(&usr.Username, &usr.Password, &usr.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// InsertUser creates a user. Returns models.ErrUserAlreadyExists on a duplicate username.
func (db *PostgresDB) InsertUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (username, password, role) VALUES ($1, $2, $3)`,
		usr.Username,
		usr.Password,
		usr.Role,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrUserAlreadyExists
		}
		return err
	}

	return nil
}

// DeleteUser removes the user and reports how many rows were deleted.
func (db *PostgresDB) DeleteUser(ctx context.Context, username string) (int64, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM users WHERE username = $1`,
		username,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// FindECG fetches an ECG record by its id.
func (db *PostgresDB) FindECG(ctx context.Context, id string) (*models.ECGRecord, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, owner, date, leads FROM ecgs WHERE id = $1`,
		id,
	)
	record := &models.ECGRecord{}
	var leads []byte
	err := row.Scan(&record.ID, &record.Owner, &record.Date, &leads)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if err := json.Unmarshal(leads, &record.Leads); err != nil {
		return nil, false, fmt.Errorf("decoding leads of ECG %q: %w", id, err)
	}

	return record, true, nil
}

// InsertECG stores a new ECG record. Returns models.ErrECGAlreadyExists on a duplicate id.
func (db *PostgresDB) InsertECG(ctx context.Context, record *models.ECGRecord) error {
	leads := record.Leads
	if leads == nil {
		leads = []models.Lead{}
	}
	leadsJSON, err := json.Marshal(leads)
	if err != nil {
		return err
	}

	_, err = db.database.ExecContext(
		ctx,
		`INSERT INTO ecgs (id, owner, date, leads) VALUES ($1, $2, $3, $4)`,
		record.ID,
		record.Owner,
		record.Date,
		string(leadsJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrECGAlreadyExists
		}
		return err
	}

	return nil
}

// Reset deletes every ECG record and user in a single transaction.
func (db *PostgresDB) Reset(ctx context.Context) error {
	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, query := range []string{`DELETE FROM ecgs`, `DELETE FROM users`} {
		if _, err := transaction.ExecContext(ctx, query); err != nil {
			if err2 := transaction.Rollback(); err2 != nil {
				return err2
			}
			return err
		}
	}

	return transaction.Commit()
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}

	return false
}
