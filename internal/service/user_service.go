package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserAlreadyExists is returned when attempting to register with an existing email.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when the user no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput wraps every registration or profile validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	minNameLength     = 2
	maxNameLength     = 50
	maxEmailLength    = 255
	minPasswordLength = 8
	maxPasswordLength = 128
)

// RegisterInput carries the fields of a signup request.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, firstName, lastName string) (*domain.User, error)
	DeleteAccount(ctx context.Context, id int64) error
}

type userService struct {
	users   repository.UserRepository
	reviews repository.ReviewRepository
	archive DocumentArchive
	logger  *logrus.Logger
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, reviews repository.ReviewRepository, archive DocumentArchive, logger *logrus.Logger) UserService {
	return &userService{
		users:   users,
		reviews: reviews,
		archive: archive,
		logger:  ensureLogger(logger),
		now:     time.Now,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	firstName, err := normalizeName("first name", in.FirstName)
	if err != nil {
		return nil, err
	}
	lastName, err := normalizeName("last name", in.LastName)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  &now,
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("record last login failed")
	} else {
		user.LastLoginAt = &now
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, firstName, lastName string) (*domain.User, error) {
	firstName, err := normalizeName("first name", firstName)
	if err != nil {
		return nil, err
	}
	lastName, err = normalizeName("last name", lastName)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateProfile(ctx, id, firstName, lastName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// DeleteAccount removes the user's reviews and archived documents before the
// user row itself.
func (s *userService) DeleteAccount(ctx context.Context, id int64) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	removed, err := s.reviews.DeleteByOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}

	if s.archive != nil && s.archive.Enabled() {
		docs, err := s.archive.UserDocuments(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", id).Warn("list archived documents failed")
		}
		if err := s.archive.DeleteUser(ctx, id); err != nil {
			s.logger.WithError(err).WithField("user_id", id).Warn("delete archived documents failed")
		} else if len(docs) > 0 {
			s.logger.WithFields(logrus.Fields{"user_id": id, "documents": len(docs)}).Info("archived documents removed")
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.WithFields(logrus.Fields{"user_id": id, "reviews": removed}).Info("account deleted")
	return nil
}

func normalizeName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	n := utf8.RuneCountInString(value)
	if n < minNameLength || n > maxNameLength {
		return "", fmt.Errorf("%w: %s must be between %d and %d characters", ErrInvalidInput, field, minNameLength, maxNameLength)
	}
	return value, nil
}

func normalizeEmail(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || len(value) > maxEmailLength {
		return "", fmt.Errorf("%w: please enter a valid email", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", fmt.Errorf("%w: please enter a valid email", ErrInvalidInput)
	}
	return value, nil
}

func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return fmt.Errorf("%w: password must be between %d and %d characters", ErrInvalidInput, minPasswordLength, maxPasswordLength)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return fmt.Errorf("%w: password must contain at least one uppercase letter, one lowercase letter and one number", ErrInvalidInput)
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		IsAdmin:     user.IsAdmin,
		ReviewCount: user.ReviewCount,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}
