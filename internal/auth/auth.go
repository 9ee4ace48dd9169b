// Package auth is the identity provider: account sign-up/sign-in with bcrypt
// password hashing, HS256 token issuing, and couple pairing. Every request
// resolves to an explicit core.Viewer; nothing here keeps ambient state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"duorico/internal/core"
	"duorico/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMissingFullName    = errors.New("full name is required")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPartnerNotFound    = errors.New("no account with that partner email")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrAlreadyPaired      = errors.New("account already belongs to a couple")
	ErrNotPaired          = errors.New("account is not paired")
	ErrSelfPairing        = errors.New("cannot pair an account with itself")
)

// UserStore is the slice of the persistence gateway the identity provider
// needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, fullName, passwordHash string) (storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
	GetUserByID(ctx context.Context, id string) (storage.User, error)
	SetCoupleID(ctx context.Context, userID, coupleID string) error
}

// Claims is the JWT payload: the account id plus registered claims.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Service struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(users UserStore, secret string, tokenTTL time.Duration) *Service {
	return &Service{users: users, secret: []byte(secret), tokenTTL: tokenTTL}
}

// SignUp registers a new account. The password is bcrypt-hashed before it
// reaches the store.
func (s *Service) SignUp(ctx context.Context, email, fullName, password string) (storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return storage.User{}, ErrInvalidEmail
	}
	if strings.TrimSpace(fullName) == "" {
		return storage.User{}, ErrMissingFullName
	}
	if len(password) < 8 {
		return storage.User{}, ErrWeakPassword
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return storage.User{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, email, strings.TrimSpace(fullName), string(hash))
	if err != nil {
		return storage.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SignIn verifies the credentials and issues a signed token. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", storage.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", storage.User{}, fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", storage.User{}, ErrInvalidCredentials
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return "", storage.User{}, fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User signed in", "user_id", u.ID)
	return token, u, nil
}

func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates a token string and returns its claims.
func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ResolveViewer turns a bearer token into the current viewer, re-reading the
// account so a pairing change takes effect on the next request.
func (s *Service) ResolveViewer(ctx context.Context, tokenStr string) (core.Viewer, error) {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return core.Viewer{}, err
	}
	u, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Viewer{}, ErrInvalidToken
	}
	if err != nil {
		return core.Viewer{}, fmt.Errorf("load viewer: %w", err)
	}
	return core.Viewer{ID: u.ID, CoupleID: u.CoupleID}, nil
}

// Pair joins the viewer's account and the partner's account into one couple
// scope under a fresh couple id. Both accounts must be unpaired.
func (s *Service) Pair(ctx context.Context, viewerID, partnerEmail string) (string, error) {
	me, err := s.users.GetUserByID(ctx, viewerID)
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	if me.CoupleID != "" {
		return "", ErrAlreadyPaired
	}

	partner, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(partnerEmail)))
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrPartnerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load partner: %w", err)
	}
	if partner.ID == me.ID {
		return "", ErrSelfPairing
	}
	if partner.CoupleID != "" {
		return "", ErrAlreadyPaired
	}

	coupleID := uuid.NewString()
	if err := s.users.SetCoupleID(ctx, me.ID, coupleID); err != nil {
		return "", fmt.Errorf("pair account: %w", err)
	}
	if err := s.users.SetCoupleID(ctx, partner.ID, coupleID); err != nil {
		// Roll the first assignment back so we never leave a half pair.
		if rbErr := s.users.SetCoupleID(ctx, me.ID, ""); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back half pairing",
				"user_id", me.ID, "error", rbErr)
		}
		return "", fmt.Errorf("pair partner account: %w", err)
	}

	slog.InfoContext(ctx, "Couple paired",
		"couple_id", coupleID, "user_id", me.ID, "partner_id", partner.ID)
	return coupleID, nil
}

// Unpair removes the viewer's account from its couple scope. The partner's
// account is left paired to the now-singleton couple id until they unpair
// themselves; existing couple-scoped transactions keep their couple id.
func (s *Service) Unpair(ctx context.Context, viewerID string) error {
	me, err := s.users.GetUserByID(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if me.CoupleID == "" {
		return ErrNotPaired
	}
	if err := s.users.SetCoupleID(ctx, me.ID, ""); err != nil {
		return fmt.Errorf("unpair account: %w", err)
	}
	slog.InfoContext(ctx, "Couple unpaired", "user_id", me.ID, "couple_id", me.CoupleID)
	return nil
}
