// Package auth issues and verifies the bearer tokens that gate the API and
// resolves them to a live user identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"resume-reviewer/internal/domain"
	"resume-reviewer/internal/repository"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

const bearerPrefix = "bearer"

var (
	// ErrUnauthorized is the single class every verification failure belongs to.
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingCredential   = fmt.Errorf("%w: missing credential", ErrUnauthorized)
	ErrMalformedCredential = fmt.Errorf("%w: malformed credential", ErrUnauthorized)
	ErrExpiredCredential   = fmt.Errorf("%w: expired credential", ErrUnauthorized)
	ErrUnknownSubject      = fmt.Errorf("%w: unknown subject", ErrUnauthorized)
)

// Claims is the signed payload carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsAdmin   bool   `json:"isAdmin"`
}

// SubjectResolver looks up the user a token was issued to.
type SubjectResolver interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Manager signs tokens with a shared secret and verifies them against the user store.
type Manager struct {
	secret []byte
	ttl    time.Duration
	users  SubjectResolver
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, users SubjectResolver) *Manager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

// Issue signs a token for user and returns it with its expiry.
func (m *Manager) Issue(user *domain.User) (string, time.Time, error) {
	if user == nil || user.ID <= 0 {
		return "", time.Time{}, errors.New("issue token: user is required")
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsAdmin:   user.IsAdmin,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify resolves an Authorization header value to a Session. Every credential
// problem is reported as an error wrapping ErrUnauthorized.
func (m *Manager) Verify(ctx context.Context, header string) (*Session, error) {
	raw, err := extractToken(header)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: subject %q", ErrMalformedCredential, claims.Subject)
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrUnknownSubject, userID)
		}
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}

	return &Session{
		UserID:    user.ID,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		Token:     raw,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func extractToken(header string) (string, error) {
	value := strings.TrimSpace(header)
	if value == "" {
		return "", ErrMissingCredential
	}
	if len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		rest := value[len(bearerPrefix):]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			// a token that merely starts with "bearer"
			return value, nil
		}
		value = strings.TrimSpace(rest)
	}
	if value == "" {
		return "", ErrMalformedCredential
	}
	return value, nil
}
