// Package app wires the ECG store together: configuration, logging,
// storage, the optional Redis cache and event publisher, the token service
// and the HTTP router. It also runs the server with graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/ecgstore/internal/auth"
	"github.com/patric-chuzhbe/ecgstore/internal/config"
	"github.com/patric-chuzhbe/ecgstore/internal/db/jsondb"
	"github.com/patric-chuzhbe/ecgstore/internal/db/memorystorage"
	"github.com/patric-chuzhbe/ecgstore/internal/db/postgresdb"
	"github.com/patric-chuzhbe/ecgstore/internal/db/rediscache"
	"github.com/patric-chuzhbe/ecgstore/internal/events"
	"github.com/patric-chuzhbe/ecgstore/internal/logger"
	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/router"
	"github.com/patric-chuzhbe/ecgstore/internal/service"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

const shutdownTimeout = 10 * time.Second

// ErrDevSigningKey is returned when persistent storage would be served with
// tokens signed by the public development key.
var ErrDevSigningKey = errors.New("TOKEN_SIGNING_SECRET_KEY must be set when storage is persistent")

type userKeeper interface {
	FindUser(ctx context.Context, username string) (*user.User, bool, error)
	InsertUser(ctx context.Context, usr *user.User) error
	DeleteUser(ctx context.Context, username string) (int64, error)
}

type recordKeeper interface {
	FindECG(ctx context.Context, id string) (*models.ECGRecord, bool, error)
	InsertECG(ctx context.Context, record *models.ECGRecord) error
}

// Storage is what every backend provides.
type Storage interface {
	userKeeper
	recordKeeper
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
	Close() error
}

type publisher interface {
	Publish(ctx context.Context, event events.Event) error
	Close() error
}

// App holds everything the server needs to run and to shut down cleanly.
type App struct {
	cfg            *config.Config
	db             Storage
	redisClient    *redis.Client
	publisher      publisher
	dispatcher     *events.Dispatcher
	stopDispatcher context.CancelFunc
	httpHandler    http.Handler
}

// New loads the configuration and builds the application from it.
func New(optionsProto ...config.InitOption) (*App, error) {
	cfg, err := config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(context.Background(), cfg)
}

// NewWithConfig builds the application from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	var err error
	app := &App{cfg: cfg}

	err = logger.Init(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.UsesDevSigningKey() && getAvailableStorageType(cfg) != models.StorageTypeMemory {
		return nil, ErrDevSigningKey
	}

	app.db, err = OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := ensureAdmin(ctx, cfg, app.db); err != nil {
		app.closeResources()
		return nil, err
	}

	var records recordKeeper = app.db
	app.redisClient, err = OpenRedis(ctx, cfg)
	if err != nil {
		app.closeResources()
		return nil, err
	}
	if app.redisClient != nil {
		records = rediscache.New(app.db, app.redisClient, cfg.RedisCacheTTL)
	}

	app.publisher, err = openPublisher(cfg)
	if err != nil {
		app.closeResources()
		return nil, err
	}

	app.dispatcher = events.NewDispatcher(
		app.publisher,
		cfg.EventsQueueCapacity,
		cfg.EventsFlushInterval,
	)
	dispatcherRunCtx, stopDispatcher := context.WithCancel(context.Background())
	app.stopDispatcher = stopDispatcher

	app.dispatcher.Run(dispatcherRunCtx)
	app.dispatcher.ListenErrors(func(err error) {
		logger.Log.Warnw("event was not delivered", zap.Error(err))
	})

	signingKey, err := base64.StdEncoding.DecodeString(cfg.TokenSigningSecretKey)
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("decoding token signing key: %w", err)
	}
	tokens := auth.New(signingKey, cfg.TokenTTL)

	svc := service.New(
		app.db,
		records,
		tokens,
		service.WithEventPublisher(app.dispatcher),
	)

	app.httpHandler = router.New(svc, tokens, cfg.MaxRequestBytes)

	return app, nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infow("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.closeResources()

	case err := <-serverErrCh:
		a.closeResources()
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func (a *App) closeResources() error {
	var errs []error
	if a.stopDispatcher != nil {
		a.stopDispatcher()
		a.dispatcher.Wait()
	}
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}

	return errors.Join(errs...)
}

// ensureAdmin creates the configured admin account unless it already exists.
// Nothing happens when either admin credential is unset.
func ensureAdmin(ctx context.Context, cfg *config.Config, users userKeeper) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, found, err := users.FindUser(ctx, cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("looking up admin: %w", err)
	}
	if found {
		return nil
	}

	hash, err := service.HashPassword(cfg.AdminPassword, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	err = users.InsertUser(ctx, &user.User{
		Username: cfg.AdminUsername,
		Password: hash,
		Role:     user.RoleAdmin,
	})
	if errors.Is(err, models.ErrUserAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}

	logger.Log.Infow("admin account created", "admin", cfg.AdminUsername)

	return nil
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

// OpenStorage picks the backend from cfg: Postgres when a DSN is set,
// a JSON file when a file path is set, process memory otherwise.
func OpenStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypePostgresql:
		return postgresdb.New(
			ctx,
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
			postgresdb.WithDriver(cfg.DatabaseDriver),
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)

	case models.StorageTypeMemory:
		return memorystorage.New()
	}

	return nil, errors.New("unknown storage type")
}

// OpenRedis connects to the record cache. It returns a nil client when no address is configured.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return client, nil
}

func openPublisher(cfg *config.Config) (publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}

	amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connecting to AMQP broker: %w", err)
	}
	logger.Log.Infow("publishing events", "queue", cfg.AMQPQueue, zap.String("broker", "amqp"))

	return amqpPublisher, nil
}
