package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"voting-platform/internal/platform/apperr"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*User)}
}

func (r *memoryUserRepo) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrUserTaken
		}
	}
	copyUser := *u
	r.users[u.ID] = &copyUser
	return nil
}

func (r *memoryUserRepo) GetByLogin(ctx context.Context, login string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == login || u.Email == strings.ToLower(login) {
			copyUser := *u
			return &copyUser, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copyUser := *u
	return &copyUser, nil
}

func (r *memoryUserRepo) List(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]User, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, *u)
	}
	return res, nil
}

func (r *memoryUserRepo) mutate(id string, fn func(u *User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(u)
	return nil
}

func (r *memoryUserRepo) UpdateRole(ctx context.Context, id, role string) error {
	return r.mutate(id, func(u *User) { u.Role = role })
}

func (r *memoryUserRepo) SetFingerprintVerified(ctx context.Context, id string, verified bool) error {
	return r.mutate(id, func(u *User) { u.FingerprintVerified = verified })
}

func (r *memoryUserRepo) SetFingerprintTemplate(ctx context.Context, id, template string) error {
	return r.mutate(id, func(u *User) { u.FingerprintTemplate = &template })
}

func (r *memoryUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo).WithHashCost(bcrypt.MinCost)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "john", Email: "John@Example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != RoleUser {
		t.Fatalf("expected role user, got %s", u.Role)
	}
	if u.Email != "john@example.com" {
		t.Fatalf("expected normalized email, got %s", u.Email)
	}
	if u.PasswordHash == "s3cret" || u.PasswordHash == "" {
		t.Fatalf("password should be hashed")
	}
	if u.FingerprintVerified {
		t.Fatalf("new users start unverified")
	}

	if _, err := svc.Login(ctx, "john", "s3cret"); err != nil {
		t.Fatalf("login by username failed: %v", err)
	}
	if _, err := svc.Login(ctx, "JOHN@example.com", "s3cret"); err != nil {
		t.Fatalf("login by email failed: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "john", Email: "other@example.com", Password: "x"}); !errors.Is(err, ErrUserTaken) {
		t.Fatalf("expected username taken error, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "johnny", Email: "john@example.com", Password: "x"}); !errors.Is(err, ErrUserTaken) {
		t.Fatalf("expected email taken error, got %v", err)
	}
	if _, err := svc.Login(ctx, "john", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials error")
	}
	if _, err := svc.Login(ctx, "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown login")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemoryUserRepo()).WithHashCost(bcrypt.MinCost)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email"})
	var fe apperr.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected field errors, got %v", err)
	}
	for _, field := range []string{"username", "email", "password"} {
		if fe[field] == "" {
			t.Fatalf("expected %s to be reported, got %v", field, fe)
		}
	}
}

func TestRoleAndFingerprintManagement(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo).WithHashCost(bcrypt.MinCost)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "ann", Email: "ann@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.UpdateRole(ctx, u.ID, "superuser"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected invalid role to fail validation, got %v", err)
	}
	if err := svc.UpdateRole(ctx, u.ID, RoleAdmin); err != nil {
		t.Fatalf("update role: %v", err)
	}
	if err := svc.UpdateRole(ctx, "missing", RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.EnrollFingerprint(ctx, u.ID, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected empty template to be rejected")
	}
	if err := svc.EnrollFingerprint(ctx, u.ID, "tmpl-ann"); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := svc.SetFingerprintVerified(ctx, u.ID, true); err != nil {
		t.Fatalf("verify: %v", err)
	}

	got, err := svc.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != RoleAdmin || !got.FingerprintVerified || !got.HasFingerprint() {
		t.Fatalf("unexpected user state %+v", got)
	}

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected deleted user to be gone")
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := NewService(newMemoryUserRepo()).WithHashCost(bcrypt.MinCost)
	ctx := context.Background()

	admin, created, err := svc.EnsureAdmin(ctx, "root", "root@example.com", "pw")
	if err != nil || !created {
		t.Fatalf("expected admin to be created, err=%v created=%v", err, created)
	}
	if admin.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}

	again, created, err := svc.EnsureAdmin(ctx, "root", "root@example.com", "pw")
	if err != nil || created {
		t.Fatalf("expected existing admin to be reused, err=%v created=%v", err, created)
	}
	if again.ID != admin.ID {
		t.Fatalf("expected same admin id")
	}
}
