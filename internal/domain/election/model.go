package election

import (
	"context"
	"time"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOngoing  Status = "ongoing"
	StatusEnded    Status = "ended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusEnded:
		return true
	}
	return false
}

// Candidate only exists inside its election; its ID is unique within that election.
type Candidate struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

type Election struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ImageURL    *string     `json:"imageUrl,omitempty"`
	Candidates  []Candidate `json:"candidates"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	Status      Status      `json:"status"`
	CreatedBy   string      `json:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Candidate returns the candidate with the given id, if it belongs to e.
func (e *Election) Candidate(id string) (Candidate, bool) {
	for _, c := range e.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// View is an election as seen by one authenticated caller.
type View struct {
	Election
	UserHasVoted bool `json:"userHasVoted"`
}

type Repository interface {
	Create(ctx context.Context, e *Election) error
	GetByID(ctx context.Context, id string) (*Election, error)
	List(ctx context.Context) ([]Election, error)
	Update(ctx context.Context, e *Election) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	// Delete removes the election together with every vote cast in it.
	Delete(ctx context.Context, id string) error
}

// VoteIndex answers the vote questions the election views need.
type VoteIndex interface {
	HasUserVoted(ctx context.Context, electionID, userID string) (bool, error)
	VotedElectionIDs(ctx context.Context, userID string) (map[string]bool, error)
	CountByCandidate(ctx context.Context, electionID string) (map[string]int64, error)
}

// Invalidator drops derived data (cached tallies) for an election.
type Invalidator interface {
	Invalidate(ctx context.Context, electionID string) error
}
