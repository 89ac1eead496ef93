package vote

import (
	"context"
	"time"
)

// Vote is immutable once cast; at most one exists per (user, election).
type Vote struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ElectionID  string    `json:"electionId"`
	CandidateID string    `json:"candidateId"`
	CastAt      time.Time `json:"castAt"`
}

type Repository interface {
	// Create must reject a second vote for the same (user, election) atomically
	// with ErrDuplicateVote.
	Create(ctx context.Context, v *Vote) error
	ListByElection(ctx context.Context, electionID string) ([]Vote, error)
	HasUserVoted(ctx context.Context, electionID, userID string) (bool, error)
	VotedElectionIDs(ctx context.Context, userID string) (map[string]bool, error)
	CountByCandidate(ctx context.Context, electionID string) (map[string]int64, error)
}

// Tally is the per-candidate count of one election's votes.
type Tally struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// TallyCache stores tallies keyed by a version that Invalidate bumps, so a tally
// computed before a concurrent vote can never be stored under the newer version.
type TallyCache interface {
	Lookup(ctx context.Context, electionID string) (*Tally, int64, error)
	Store(ctx context.Context, electionID string, version int64, t Tally) error
	Invalidate(ctx context.Context, electionID string) error
}

type nopCache struct{}

func (nopCache) Lookup(context.Context, string) (*Tally, int64, error) { return nil, 0, nil }
func (nopCache) Store(context.Context, string, int64, Tally) error     { return nil }
func (nopCache) Invalidate(context.Context, string) error              { return nil }
