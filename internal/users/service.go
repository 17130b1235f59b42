package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrEmailTaken indicates the email already belongs to an account.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong
	// password; callers must not distinguish the two.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrInvalidEmail indicates an empty or malformed email.
	ErrInvalidEmail = errors.New("users: invalid email")
	// ErrWeakPassword indicates the password is too short.
	ErrWeakPassword = errors.New("users: password too short")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const minPasswordLength = 8

const (
	opServiceNew   = "users.service.new"
	opRegister     = "users.register"
	opAuthenticate = "users.authenticate"
)

// ServiceError carries a dotted operation.reason code alongside the
// underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	BcryptCost int
	Logger     *zap.Logger
}

// Service manages account registration and password authentication.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	bcryptCost int
	logger     *zap.Logger

	// email -> user id, warmed by successful registration and login
	idCache sync.Map
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		bcryptCost: cost,
		logger:     logger,
	}, nil
}

// Register creates an account for a new email.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, newServiceError(opRegister, "invalid_email", ErrInvalidEmail)
	}
	if len(password) < minPasswordLength {
		return User{}, newServiceError(opRegister, "weak_password", ErrWeakPassword)
	}

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return User{}, newServiceError(opRegister, "email_taken", ErrEmailTaken)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opRegister, "lookup_failed", err)
		return User{}, newServiceError(opRegister, "lookup_failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		s.logError(opRegister, "hash_failed", err)
		return User{}, newServiceError(opRegister, "hash_failed", err)
	}

	userID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return User{}, newServiceError(opRegister, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	user := User{
		UserID:           userID,
		Email:            email,
		DisplayName:      strings.TrimSpace(displayName),
		PasswordHash:     string(hash),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.logError(opRegister, "insert_failed", err)
		return User{}, newServiceError(opRegister, "insert_failed", err)
	}

	s.idCache.Store(email, user.UserID)
	return user, nil
}

// Authenticate verifies an email/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, newServiceError(opAuthenticate, "invalid_credentials", ErrInvalidCredentials)
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, newServiceError(opAuthenticate, "invalid_credentials", ErrInvalidCredentials)
	}
	if err != nil {
		s.logError(opAuthenticate, "lookup_failed", err)
		return User{}, newServiceError(opAuthenticate, "lookup_failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, newServiceError(opAuthenticate, "invalid_credentials", ErrInvalidCredentials)
	}

	s.idCache.Store(email, user.UserID)
	return user, nil
}

// LookupID returns the user id cached for an email by an earlier
// registration or login in this process.
func (s *Service) LookupID(email string) (string, bool) {
	value, ok := s.idCache.Load(normalizeEmail(email))
	if !ok {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok
}

func (s *Service) logError(operation, reason string, err error) {
	s.logger.Error("users service error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
}
