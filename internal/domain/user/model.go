package user

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	Role                string    `json:"role"`
	FingerprintVerified bool      `json:"isFingerprintVerified"`
	FingerprintTemplate *string   `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
}

// HasFingerprint reports whether an enrolment template is on file for submitted
// proofs to be compared against.
func (u *User) HasFingerprint() bool {
	return u.FingerprintTemplate != nil && *u.FingerprintTemplate != ""
}

type Repository interface {
	Create(ctx context.Context, u *User) error
	// GetByLogin matches the username exactly or the email case-insensitively.
	GetByLogin(ctx context.Context, login string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, id, role string) error
	SetFingerprintVerified(ctx context.Context, id string, verified bool) error
	SetFingerprintTemplate(ctx context.Context, id, template string) error
	Delete(ctx context.Context, id string) error
}
