package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// AuthService registers users and issues signed tokens. Each issued token
// opens a session entry in the cache; logging out drops it.
type AuthService struct {
	users     repository.UserRepository
	store     cache.Store
	jwtSecret []byte
	jwtExpiry time.Duration
	log       *slog.Logger
}

func NewAuthService(users repository.UserRepository, store cache.Store, jwtSecret string, jwtExpiry time.Duration, log *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		store:     store,
		jwtSecret: []byte(jwtSecret),
		jwtExpiry: jwtExpiry,
		log:       loggerOrDiscard(log),
	}
}

func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return nil, apperr.ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email: email, Password: string(hashed),
		FirstName: req.FirstName, LastName: req.LastName, Role: model.RoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", "user_id", user.ID)
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Logout ends the user's session; tokens issued before stay signed but are
// rejected by IsValid.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, cache.SessionKey(userID)); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	return nil
}

// IsValid reports whether the user holds an open session. Without a cache
// every signed token is accepted, and a cache outage fails open.
func (s *AuthService) IsValid(ctx context.Context, userID uuid.UUID) bool {
	if s.store == nil {
		return true
	}
	_, ok, err := s.store.Get(ctx, cache.SessionKey(userID))
	if err != nil {
		s.log.Warn("session lookup failed", "user_id", userID, "error", err)
		return true
	}
	return ok
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*dto.AuthResponse, error) {
	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	if s.store != nil {
		ttl := min(s.jwtExpiry, cache.SessionTTL)
		if err := s.store.Set(ctx, cache.SessionKey(user.ID), []byte(user.Role), ttl); err != nil {
			s.log.Warn("store session failed", "user_id", user.ID, "error", err)
		}
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

func (s *AuthService) generateToken(user *model.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  now.Add(s.jwtExpiry).Unix(),
		"iat":  now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
