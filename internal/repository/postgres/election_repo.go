package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"voting-platform/internal/domain/election"
)

type ElectionRepo struct {
	db *sql.DB
}

func NewElectionRepo(db *sql.DB) *ElectionRepo {
	return &ElectionRepo{db: db}
}

const electionColumns = `id, title, description, image_url, candidates, start_date, end_date, status, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElection(row rowScanner) (*election.Election, error) {
	e := &election.Election{}
	var candidates []byte
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.ImageURL, &candidates,
		&e.StartDate, &e.EndDate, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(candidates, &e.Candidates); err != nil {
		return nil, fmt.Errorf("decode candidates of election %s: %w", e.ID, err)
	}
	return e, nil
}

func (r *ElectionRepo) Create(ctx context.Context, e *election.Election) error {
	candidates, err := json.Marshal(e.Candidates)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO elections (id, title, description, image_url, candidates, start_date, end_date, status, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at
    `
	return r.db.QueryRowContext(ctx, query,
		e.ID,
		e.Title,
		e.Description,
		e.ImageURL,
		string(candidates),
		e.StartDate,
		e.EndDate,
		e.Status,
		e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *ElectionRepo) GetByID(ctx context.Context, id string) (*election.Election, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM elections WHERE id = $1`, id)
	return scanElection(row)
}

func (r *ElectionRepo) List(ctx context.Context) ([]election.Election, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+electionColumns+` FROM elections ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []election.Election
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *e)
	}
	return res, rows.Err()
}

func (r *ElectionRepo) Update(ctx context.Context, e *election.Election) error {
	candidates, err := json.Marshal(e.Candidates)
	if err != nil {
		return err
	}

	query := `
        UPDATE elections
        SET title = $1, description = $2, image_url = $3, candidates = $4,
            start_date = $5, end_date = $6, status = $7, updated_at = now()
        WHERE id = $8
        RETURNING updated_at
    `
	return r.db.QueryRowContext(ctx, query,
		e.Title,
		e.Description,
		e.ImageURL,
		string(candidates),
		e.StartDate,
		e.EndDate,
		e.Status,
		e.ID,
	).Scan(&e.UpdatedAt)
}

// UpdateStatus only touches rows whose stored status differs, so repeated
// write-backs of the same derived status are no-ops.
func (r *ElectionRepo) UpdateStatus(ctx context.Context, id string, status election.Status) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE elections SET status = $1, updated_at = now()
        WHERE id = $2 AND status <> $1
    `, status, id)
	return err
}

func (r *ElectionRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE election_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM elections WHERE id = $1`, id)
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
	return tx.Commit()
}
