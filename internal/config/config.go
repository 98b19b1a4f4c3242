// Package config assembles the service configuration from, in increasing
// priority: built-in defaults, a JSON file, environment variables (optionally
// loaded from .env) and command-line flags. The result is validated.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DevTokenSigningSecretKey is base64("dev-secret-change-me-dev-secret!").
// It is public and only fit for throwaway in-memory runs.
const DevTokenSigningSecretKey = "ZGV2LXNlY3JldC1jaGFuZ2UtbWUtZGV2LXNlY3JldCE="

type Config struct {
	ConfigFile            string        `env:"CONFIG"`
	RunAddr               string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel              string        `env:"LOG_LEVEL" validate:"loglevel"`
	DBFileName            string        `env:"FILE_STORAGE_PATH" validate:"filepath"`
	DatabaseDSN           string        `env:"DATABASE_DSN"`
	DatabaseDriver        string        `env:"DATABASE_DRIVER" validate:"dbdriver"`
	DBConnectionTimeout   time.Duration `env:"DB_CONNECTION_TIMEOUT" validate:"gt=0"`
	MigrationsDir         string        `env:"MIGRATIONS_DIR"`
	TokenSigningSecretKey string        `env:"TOKEN_SIGNING_SECRET_KEY" validate:"required,base64"`
	TokenTTL              time.Duration `env:"TOKEN_TTL" validate:"gte=0"`
	MaxRequestBytes       int64         `env:"MAX_REQUEST_BYTES" validate:"gte=0"`
	RedisAddr             string        `env:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword         string        `env:"REDIS_PASSWORD"`
	RedisDB               int           `env:"REDIS_DB" validate:"gte=0"`
	RedisCacheTTL         time.Duration `env:"REDIS_CACHE_TTL" validate:"gte=0"`
	AMQPURL               string        `env:"AMQP_URL" validate:"omitempty,url"`
	AMQPQueue             string        `env:"AMQP_QUEUE"`
	EventsQueueCapacity   int           `env:"EVENTS_QUEUE_CAPACITY" validate:"gt=0"`
	EventsFlushInterval   time.Duration `env:"EVENTS_FLUSH_INTERVAL" validate:"gt=0"`
	AdminUsername         string        `env:"ADMIN_USERNAME"`
	AdminPassword         string        `env:"ADMIN_PASSWORD"`
}

// jsonConfig mirrors Config for the JSON file; durations are strings like "10s".
// A nil field is absent from the file.
type jsonConfig struct {
	RunAddr               *string `json:"server_address"`
	LogLevel              *string `json:"log_level"`
	DBFileName            *string `json:"file_storage_path"`
	DatabaseDSN           *string `json:"database_dsn"`
	DatabaseDriver        *string `json:"database_driver"`
	DBConnectionTimeout   *string `json:"db_connection_timeout"`
	MigrationsDir         *string `json:"migrations_dir"`
	TokenSigningSecretKey *string `json:"token_signing_secret_key"`
	TokenTTL              *string `json:"token_ttl"`
	MaxRequestBytes       *int64  `json:"max_request_bytes"`
	RedisAddr             *string `json:"redis_addr"`
	RedisDB               *int    `json:"redis_db"`
	RedisCacheTTL         *string `json:"redis_cache_ttl"`
	AMQPURL               *string `json:"amqp_url"`
	AMQPQueue             *string `json:"amqp_queue"`
	EventsQueueCapacity   *int    `json:"events_queue_capacity"`
	EventsFlushInterval   *string `json:"events_flush_interval"`
}

var defaultConfig = Config{
	RunAddr:               ":8080",
	LogLevel:              "info",
	DBFileName:            "",
	DatabaseDSN:           "",
	DatabaseDriver:        "pgx",
	DBConnectionTimeout:   10 * time.Second,
	MigrationsDir:         "cmd/ecgserver/migrations",
	TokenSigningSecretKey: DevTokenSigningSecretKey,
	TokenTTL:              15 * time.Minute,
	MaxRequestBytes:       10 << 20,
	RedisCacheTTL:         time.Hour,
	AMQPQueue:             "ecg.events",
	EventsQueueCapacity:   1024,
	EventsFlushInterval:   time.Second,
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

// WithDisableFlagsParsing skips command-line flags, e.g. in tests or when a CLI framework owns them.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs parses the given arguments instead of os.Args[1:].
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		args:                os.Args[1:],
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	var flagValues Config
	var setFlags map[string]bool
	if !options.disableFlagsParsing {
		flagValues, setFlags, err = parseFlags(options.args)
		if err != nil {
			return nil, err
		}
	}

	var valuesFromEnv Config
	err = env.Parse(&valuesFromEnv)
	if err != nil {
		return nil, err
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	configFile := valuesFromEnv.ConfigFile
	if setFlags["c"] {
		configFile = flagValues.ConfigFile
	}
	if configFile != "" {
		values.ConfigFile = configFile
		if err := values.applyJSONFile(configFile); err != nil {
			return nil, err
		}
	}

	values.applyEnv(valuesFromEnv, os.LookupEnv)
	values.applyFlags(flagValues, setFlags)

	if values.UsesDevSigningKey() {
		log.Println("WARNING: using development token signing key; set TOKEN_SIGNING_SECRET_KEY")
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func parseFlags(args []string) (Config, map[string]bool, error) {
	var values Config
	fs := flag.NewFlagSet("ecgserver", flag.ContinueOnError)
	fs.StringVar(&values.ConfigFile, "c", "", "path to a JSON config file")
	fs.StringVar(&values.RunAddr, "a", "", "address and port to run server")
	fs.StringVar(&values.LogLevel, "l", "", "logger level")
	fs.StringVar(&values.DBFileName, "f", "", "JSON file name with database")
	fs.StringVar(&values.DatabaseDSN, "d", "", "A string with the database connection details")
	fs.StringVar(&values.MigrationsDir, "m", "", "directory with the database migrations")
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	return values, setFlags, nil
}

func (c *Config) applyJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fromFile jsonConfig
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	texts := []struct {
		value  *string
		target *string
	}{
		{fromFile.RunAddr, &c.RunAddr},
		{fromFile.LogLevel, &c.LogLevel},
		{fromFile.DBFileName, &c.DBFileName},
		{fromFile.DatabaseDSN, &c.DatabaseDSN},
		{fromFile.DatabaseDriver, &c.DatabaseDriver},
		{fromFile.MigrationsDir, &c.MigrationsDir},
		{fromFile.TokenSigningSecretKey, &c.TokenSigningSecretKey},
		{fromFile.RedisAddr, &c.RedisAddr},
		{fromFile.AMQPURL, &c.AMQPURL},
		{fromFile.AMQPQueue, &c.AMQPQueue},
	}
	for _, text := range texts {
		if text.value != nil {
			*text.target = *text.value
		}
	}

	durations := []struct {
		raw    *string
		target *time.Duration
	}{
		{fromFile.DBConnectionTimeout, &c.DBConnectionTimeout},
		{fromFile.TokenTTL, &c.TokenTTL},
		{fromFile.RedisCacheTTL, &c.RedisCacheTTL},
		{fromFile.EventsFlushInterval, &c.EventsFlushInterval},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		*d.target = parsed
	}

	if fromFile.MaxRequestBytes != nil {
		c.MaxRequestBytes = *fromFile.MaxRequestBytes
	}
	if fromFile.RedisDB != nil {
		c.RedisDB = *fromFile.RedisDB
	}
	if fromFile.EventsQueueCapacity != nil {
		c.EventsQueueCapacity = *fromFile.EventsQueueCapacity
	}

	return nil
}

// applyEnv copies the fields of fromEnv whose variable is present and non-empty,
// so an explicit zero such as TOKEN_TTL=0s still wins over lower priority sources.
func (c *Config) applyEnv(fromEnv Config, lookup func(string) (string, bool)) {
	target := reflect.ValueOf(c).Elem()
	source := reflect.ValueOf(fromEnv)
	configType := source.Type()

	for i := 0; i < configType.NumField(); i++ {
		name, _, _ := strings.Cut(configType.Field(i).Tag.Get("env"), ",")
		if name == "" {
			continue
		}
		if value, ok := lookup(name); !ok || value == "" {
			continue
		}
		target.Field(i).Set(source.Field(i))
	}
}

// UsesDevSigningKey reports whether tokens would be signed with the public development key.
func (c *Config) UsesDevSigningKey() bool {
	return c.TokenSigningSecretKey == DevTokenSigningSecretKey
}

func (c *Config) applyFlags(flagValues Config, setFlags map[string]bool) {
	if setFlags["a"] {
		c.RunAddr = flagValues.RunAddr
	}
	if setFlags["l"] {
		c.LogLevel = flagValues.LogLevel
	}
	if setFlags["f"] {
		c.DBFileName = flagValues.DBFileName
	}
	if setFlags["d"] {
		c.DatabaseDSN = flagValues.DatabaseDSN
	}
	if setFlags["m"] {
		c.MigrationsDir = flagValues.MigrationsDir
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func validateDBDriver(fieldLevel validator.FieldLevel) bool {
	switch fieldLevel.Field().String() {
	case "pgx", "postgres":
		return true
	}

	return false
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("dbdriver", validateDBDriver)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}
