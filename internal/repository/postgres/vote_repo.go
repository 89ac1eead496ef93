package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"voting-platform/internal/domain/vote"
)

type VoteRepo struct {
	db *sql.DB
}

func NewVoteRepo(db *sql.DB) *VoteRepo {
	return &VoteRepo{db: db}
}

// Create relies on the (user_id, election_id) unique index, so two concurrent
// submissions from one voter can never both land.
func (r *VoteRepo) Create(ctx context.Context, v *vote.Vote) error {
	query := `
        INSERT INTO votes (id, user_id, election_id, candidate_id, cast_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.db.ExecContext(ctx, query, v.ID, v.UserID, v.ElectionID, v.CandidateID, v.CastAt)
	if err != nil {
		if isUniqueViolation(err) {
			return vote.ErrDuplicateVote
		}
		return err
	}
	return nil
}

func (r *VoteRepo) ListByElection(ctx context.Context, electionID string) ([]vote.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, user_id, election_id, candidate_id, cast_at
        FROM votes WHERE election_id = $1
        ORDER BY cast_at
    `, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []vote.Vote
	for rows.Next() {
		var v vote.Vote
		if err := rows.Scan(&v.ID, &v.UserID, &v.ElectionID, &v.CandidateID, &v.CastAt); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r *VoteRepo) HasUserVoted(ctx context.Context, electionID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (SELECT 1 FROM votes WHERE election_id = $1 AND user_id = $2)
    `, electionID, userID).Scan(&exists)
	return exists, err
}

func (r *VoteRepo) VotedElectionIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT election_id FROM votes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res[id] = true
	}
	return res, rows.Err()
}

func (r *VoteRepo) CountByCandidate(ctx context.Context, electionID string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT candidate_id, COUNT(*)
        FROM votes
        WHERE election_id = $1
        GROUP BY candidate_id
    `, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[string]int64)
	for rows.Next() {
		var candidateID string
		var c int64
		if err := rows.Scan(&candidateID, &c); err != nil {
			return nil, err
		}
		res[candidateID] = c
	}
	return res, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
