package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"voting-platform/internal/platform/apperr"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserTaken          = errors.New("username or email already taken")
	ErrUserNotFound       = errors.New("user not found")
)

type RegisterInput struct {
	Username            string
	Email               string
	Password            string
	FingerprintTemplate *string
}

type Service struct {
	repo Repository
	cost int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	fe := apperr.FieldErrors{}
	if username == "" {
		fe.Add("username", "username is required")
	}
	if email == "" {
		fe.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		fe.Add("email", "email is invalid")
	}
	if in.Password == "" {
		fe.Add("password", "password is required")
	}
	if err := fe.OrNil(); err != nil {
		return nil, err
	}

	for _, login := range []string{username, email} {
		if _, err := s.repo.GetByLogin(ctx, login); err == nil {
			return nil, ErrUserTaken
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
	}

	return s.create(ctx, username, email, in.Password, RoleUser, in.FingerprintTemplate)
}

// EnsureAdmin creates the bootstrap administrator unless the login is already taken.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (*User, bool, error) {
	if u, err := s.repo.GetByLogin(ctx, username); err == nil {
		return u, false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("lookup admin: %w", err)
	}
	u, err := s.create(ctx, username, strings.ToLower(email), password, RoleAdmin, nil)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *Service) create(ctx context.Context, username, email, password, role string, template *string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:                  uuid.NewString(),
		Username:            username,
		Email:               email,
		PasswordHash:        string(hash),
		Role:                role,
		FingerprintTemplate: template,
		CreatedAt:           time.Now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login accepts either the username or the email as login.
func (s *Service) Login(ctx context.Context, login, password string) (*User, error) {
	u, err := s.repo.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) UpdateRole(ctx context.Context, id, role string) error {
	if role != RoleAdmin && role != RoleUser {
		return apperr.FieldErrors{"role": "role must be user or admin"}
	}
	return notFound(s.repo.UpdateRole(ctx, id, role))
}

// SetFingerprintVerified flips the verification flag without any proof.
// It backs the administrative and self-service override endpoints.
func (s *Service) SetFingerprintVerified(ctx context.Context, id string, verified bool) error {
	return notFound(s.repo.SetFingerprintVerified(ctx, id, verified))
}

func (s *Service) EnrollFingerprint(ctx context.Context, id, template string) error {
	if strings.TrimSpace(template) == "" {
		return apperr.FieldErrors{"fingerprintTemplate": "fingerprintTemplate is required"}
	}
	return notFound(s.repo.SetFingerprintTemplate(ctx, id, template))
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return notFound(s.repo.Delete(ctx, id))
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
