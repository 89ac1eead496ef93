package postgres

import (
	"context"
	"database/sql"

	"voting-platform/internal/domain/user"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, username, email, password_hash, role, fingerprint_verified, fingerprint_template, created_at`

func scanUser(row rowScanner) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.FingerprintVerified, &u.FingerprintTemplate, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	query := `
        INSERT INTO users (id, username, email, password_hash, role, fingerprint_verified, fingerprint_template)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at
    `
	err := r.db.QueryRowContext(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, u.Role,
		u.FingerprintVerified, u.FingerprintTemplate).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return user.ErrUserTaken
	}
	return err
}

func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*user.User, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+userColumns+`
        FROM users WHERE username = $1 OR email = lower($1)
        ORDER BY username = $1 DESC
        LIMIT 1
    `, login)
	return scanUser(row)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usersList []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		usersList = append(usersList, *u)
	}
	return usersList, rows.Err()
}

func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) error {
	return r.exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
}

func (r *UserRepo) SetFingerprintVerified(ctx context.Context, id string, verified bool) error {
	return r.exec(ctx, `UPDATE users SET fingerprint_verified = $1 WHERE id = $2`, verified, id)
}

func (r *UserRepo) SetFingerprintTemplate(ctx context.Context, id, template string) error {
	return r.exec(ctx, `UPDATE users SET fingerprint_template = $1 WHERE id = $2`, template, id)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// exec runs a single-row statement and reports sql.ErrNoRows when nothing matched.
func (r *UserRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
