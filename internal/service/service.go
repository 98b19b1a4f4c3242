// Package service implements the operations of the ECG store: login,
// account administration, ECG upload and zero-crossing retrieval.
// HTTP concerns stay in the router; this package only decides.
package service

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/ecgstore/internal/access"
	"github.com/patric-chuzhbe/ecgstore/internal/ecg"
	"github.com/patric-chuzhbe/ecgstore/internal/events"
	"github.com/patric-chuzhbe/ecgstore/internal/logger"
	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/user"
)

type userKeeper interface {
	FindUser(ctx context.Context, username string) (*user.User, bool, error)
	InsertUser(ctx context.Context, usr *user.User) error
	DeleteUser(ctx context.Context, username string) (int64, error)
	Ping(ctx context.Context) error
}

type recordKeeper interface {
	FindECG(ctx context.Context, id string) (*models.ECGRecord, bool, error)
	InsertECG(ctx context.Context, record *models.ECGRecord) error
}

type tokenIssuer interface {
	Issue(identity string) (string, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

var (
	// ErrInvalidCredentials covers unknown usernames, wrong passwords and missing fields alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthorized is returned when the caller is not an admin.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrMalformedInput is returned when a request payload is missing or unusable.
	ErrMalformedInput = errors.New("malformed input")

	// ErrMissingCredentials is returned by AddUser when username or password is empty.
	ErrMissingCredentials = errors.New("both username and password must be supplied")

	// ErrPasswordTooLong is returned by AddUser for passwords bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password is too long")

	ErrMissingUsername = errors.New("username must be supplied")

	ErrUserExists = errors.New("user already exists")

	ErrECGExists = errors.New("an ECG with this ID already exists")

	// ErrECGNotFound is returned both for absent records and for records the caller may not read.
	ErrECGNotFound = errors.New("ECG not found")
)

type Service struct {
	users      userKeeper
	records    recordKeeper
	tokens     tokenIssuer
	events     eventPublisher
	policy     *access.Policy
	validate   *validator.Validate
	bcryptCost int
}

// Option tweaks a Service.
type Option func(*Service)

// WithBcryptCost sets the cost used to hash new passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithEventPublisher sets where audit events go. Events are dropped by default.
func WithEventPublisher(publisher eventPublisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.events = publisher
		}
	}
}

func New(
	users userKeeper,
	records recordKeeper,
	tokens tokenIssuer,
	optionsProto ...Option,
) *Service {
	s := &Service{
		users:      users,
		records:    records,
		tokens:     tokens,
		events:     events.NopPublisher{},
		policy:     access.New(users),
		validate:   validator.New(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, protoOption := range optionsProto {
		protoOption(s)
	}

	return s
}

// HashPassword hashes a password the way AddUser stores it.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}

	return string(hash), nil
}

// Login checks the credentials and returns a signed token for username.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	usr, found, err := s.users.FindUser(ctx, username)
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}
	if !found {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}

	return token, nil
}

// AddUser creates an account with role USER. The caller must be an admin;
// that is checked before the payload is looked at. A nil request means the
// body was missing or could not be decoded.
func (s *Service) AddUser(ctx context.Context, caller string, request *models.AddUserRequest) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}

	if request == nil {
		return ErrMalformedInput
	}
	if err := s.validate.Struct(request); err != nil {
		return ErrMissingCredentials
	}

	hash, err := HashPassword(request.Password, s.bcryptCost)
	if err != nil {
		return err
	}

	err = s.users.InsertUser(ctx, &user.User{
		Username: request.Username,
		Password: hash,
		Role:     user.RoleUser,
	})
	if err != nil {
		if errors.Is(err, models.ErrUserAlreadyExists) {
			return ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.publish(ctx, events.New(events.TypeUserCreated, caller, request.Username))

	return nil
}

// DeleteUser removes username and returns how many accounts were deleted (0 or 1).
// A missing account is not an error.
func (s *Service) DeleteUser(ctx context.Context, caller, username string) (int64, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return 0, err
	}

	if username == "" {
		return 0, ErrMissingUsername
	}

	deleted, err := s.users.DeleteUser(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("deleting user: %w", err)
	}

	if deleted > 0 {
		s.publish(ctx, events.New(events.TypeUserDeleted, caller, username))
	}

	return deleted, nil
}

// UploadECG stores record owned by caller, whatever owner the payload carried.
// A nil record means the body was missing or could not be decoded.
func (s *Service) UploadECG(ctx context.Context, caller string, record *models.ECGRecord) (string, error) {
	if record == nil {
		return "", ErrMalformedInput
	}
	if err := s.validate.Struct(record); err != nil {
		return "", ErrMalformedInput
	}

	record.Owner = caller

	if err := s.records.InsertECG(ctx, record); err != nil {
		if errors.Is(err, models.ErrECGAlreadyExists) {
			return "", ErrECGExists
		}
		return "", fmt.Errorf("inserting ECG: %w", err)
	}

	s.publish(ctx, events.New(events.TypeECGUploaded, caller, record.ID))

	return record.ID, nil
}

// GetCrossings returns the zero-crossing count of every lead of ECG id.
// ErrECGNotFound is returned alike for absent records and records caller may not read.
func (s *Service) GetCrossings(ctx context.Context, caller, id string) (*models.CrossingsResponse, error) {
	role, err := s.policy.RoleOf(ctx, caller)
	if err != nil {
		return nil, err
	}

	record, found, err := s.records.FindECG(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up ECG: %w", err)
	}
	if !found || !access.CanRead(caller, role, record) {
		return nil, ErrECGNotFound
	}

	result := &models.CrossingsResponse{
		ID:    record.ID,
		Date:  record.Date,
		Leads: make([]models.LeadCrossings, 0, len(record.Leads)),
	}
	for _, lead := range record.Leads {
		result.Leads = append(result.Leads, models.LeadCrossings{
			Name:          lead.Name,
			ZeroCrossings: ecg.CountZeroCrossings(lead.Samples),
		})
	}

	return result, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

func (s *Service) requireAdmin(ctx context.Context, caller string) error {
	role, err := s.policy.RoleOf(ctx, caller)
	if err != nil {
		return err
	}
	if !access.IsAdmin(role) {
		return ErrNotAuthorized
	}

	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Log.Warnw("event was not published", "type", event.Type, "subject", event.Subject, zap.Error(err))
	}
}
