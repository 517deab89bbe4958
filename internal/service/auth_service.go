package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"campus-gateway/internal/model"
	"campus-gateway/pkg/apierror"
)

const defaultLastLoginTimeout = 5 * time.Second

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) bool
}

type TokenIssuer interface {
	Issue(subject string, role model.Role, ttl time.Duration) (string, error)
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      model.Role
}

// AuthService checks credentials against the user store and registers new
// accounts. Last-login bookkeeping runs in the background and never delays or
// fails a login.
type AuthService struct {
	users            UserStore
	hasher           PasswordHasher
	tokens           TokenIssuer
	logger           *slog.Logger
	now              func() time.Time
	lastLoginTimeout time.Duration
	background       sync.WaitGroup
}

type AuthOption func(*AuthService)

func WithLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithLastLoginTimeout(timeout time.Duration) AuthOption {
	return func(s *AuthService) {
		if timeout > 0 {
			s.lastLoginTimeout = timeout
		}
	}
}

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:            users,
		hasher:           hasher,
		tokens:           tokens,
		logger:           slog.Default(),
		now:              time.Now,
		lastLoginTimeout: defaultLastLoginTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate resolves an identity from an email and password. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, email string, password string) (model.Identity, model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.Identity{}, model.User{}, apierror.InvalidCredentials()
		}
		return model.Identity{}, model.User{}, fmt.Errorf("find user by email: %w", err)
	}

	if !user.IsActive {
		return model.Identity{}, model.User{}, apierror.AccountDeactivated()
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return model.Identity{}, model.User{}, apierror.InvalidCredentials()
	}

	s.recordLastLogin(user.ID)

	return model.Identity{Subject: user.ID, Role: user.Role}, user, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.Identity, model.User, error) {
	role := in.Role
	if role == "" {
		role = model.RoleApprenant
	}
	if !role.Valid() {
		return model.Identity{}, model.User{}, apierror.Validation([]model.FieldError{
			{Field: "role", Message: "Role must be APPRENANT, ADMIN, or FORMATEUR"},
		})
	}

	email := normalizeEmail(in.Email)

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return model.Identity{}, model.User{}, apierror.DuplicateEmail()
	case !errors.Is(err, model.ErrUserNotFound):
		return model.Identity{}, model.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.Identity{}, model.User{}, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.Identity{}, model.User{}, apierror.DuplicateEmail()
		}
		return model.Identity{}, model.User{}, fmt.Errorf("create user: %w", err)
	}

	return model.Identity{Subject: user.ID, Role: user.Role}, user, nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.AuthResult, error) {
	identity, user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return model.AuthResult{}, err
	}
	return s.issue(identity, user)
}

func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (model.AuthResult, error) {
	identity, user, err := s.Register(ctx, in)
	if err != nil {
		return model.AuthResult{}, err
	}
	return s.issue(identity, user)
}

// Wait blocks until pending last-login updates have finished.
func (s *AuthService) Wait() {
	s.background.Wait()
}

func (s *AuthService) issue(identity model.Identity, user model.User) (model.AuthResult, error) {
	token, err := s.tokens.Issue(identity.Subject, identity.Role, 0)
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{User: user.Public(), Token: token}, nil
}

func (s *AuthService) recordLastLogin(userID string) {
	at := s.now().UTC()

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.lastLoginTimeout)
		defer cancel()

		if err := s.users.UpdateLastLogin(ctx, userID, at); err != nil {
			s.logger.Warn("last login update failed", "user_id", userID, "error", err)
		}
	}()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
