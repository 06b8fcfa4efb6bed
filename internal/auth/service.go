package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"savequest/internal/clock"
	"savequest/internal/store"
)

const (
	colUsers      = "users"
	colUserEmails = "user_emails" // email -> user id index
)

var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Service struct {
	store  store.Store
	clock  clock.Clock
	logger *log.Logger

	secret   []byte
	tokenTTL time.Duration
}

func NewService(s store.Store, clk clock.Clock, secret string, tokenTTL time.Duration, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Service{
		store:    s,
		clock:    clk,
		logger:   logger,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return ErrInvalidEmail
	}
	if strings.ToLower(addr.Address) != email {
		return ErrInvalidEmail
	}
	return nil
}

// Signup creates an account and returns a signed session token.
func (s *Service) Signup(ctx context.Context, email, displayName, password string) (User, string, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return User{}, "", err
	}
	if len(password) < 8 {
		return User{}, "", ErrWeakPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	if _, err := s.store.Get(ctx, colUserEmails, email); err == nil {
		return User{}, "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	doc, err := store.Encode(u)
	if err != nil {
		return User{}, "", err
	}
	if err := s.store.Upsert(ctx, colUsers, u.ID, doc); err != nil {
		return User{}, "", fmt.Errorf("save user: %w", err)
	}
	if err := s.store.Upsert(ctx, colUserEmails, email, store.Document{"userId": u.ID}); err != nil {
		return User{}, "", fmt.Errorf("index email: %w", err)
	}

	token, err := s.issueToken(u)
	if err != nil {
		return User{}, "", err
	}
	s.logger.Printf("auth: new account %s", u.ID)
	return u, token, nil
}

// Login verifies credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	email = normalizeEmail(email)

	idx, err := s.store.Get(ctx, colUserEmails, email)
	if errors.Is(err, store.ErrNotFound) {
		return User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return User{}, "", err
	}
	userID, _ := idx["userId"].(string)

	u, err := s.user(ctx, userID)
	if err != nil {
		return User{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Verify parses a bearer token and returns the identity it carries.
func (s *Service) Verify(tokenString string) (Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: sub, DisplayName: name}, nil
}

func (s *Service) user(ctx context.Context, id string) (User, error) {
	doc, err := s.store.Get(ctx, colUsers, id)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := store.Decode(doc, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) issueToken(u User) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  u.ID,
		"name": u.DisplayName,
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
