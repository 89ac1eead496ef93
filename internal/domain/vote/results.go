package vote

import (
	"context"
	"fmt"
	"time"

	"voting-platform/internal/domain/election"
	"voting-platform/internal/metrics"
)

type Outcome string

const (
	OutcomeWinner Outcome = "winner"
	OutcomeTie    Outcome = "tie"
	OutcomeNone   Outcome = "none"
)

type CandidateResult struct {
	election.Candidate
	Votes int64 `json:"votes"`
}

type Results struct {
	ElectionID  string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	StartDate   time.Time         `json:"startDate"`
	EndDate     time.Time         `json:"endDate"`
	Status      election.Status   `json:"status"`
	CreatedBy   string            `json:"createdBy"`
	Candidates  []CandidateResult `json:"candidates"`
	TotalVotes  int64             `json:"totalVotes"`
	Outcome     Outcome           `json:"outcome"`
	Winners     []string          `json:"winners"`
}

// Results tallies an election at whatever status it is in; gating is up to callers.
func (s *Service) Results(ctx context.Context, electionID string) (*Results, error) {
	e, err := s.elections.Current(ctx, electionID)
	if err != nil {
		return nil, err
	}

	t, err := s.tally(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	return Compute(e, t), nil
}

func (s *Service) tally(ctx context.Context, electionID string) (Tally, error) {
	if mark := s.staleMark(electionID); mark != 0 {
		if err := s.cache.Invalidate(ctx, electionID); err != nil {
			metrics.IncTallyCache("bypass")
			s.log.Warn("tally cache still stale, counting from storage", "election_id", electionID, "error", err)
			return s.count(ctx, electionID)
		}
		s.clearStale(electionID, mark)
	}

	cached, version, lookupErr := s.cache.Lookup(ctx, electionID)
	switch {
	case lookupErr != nil:
		metrics.IncTallyCache("error")
		s.log.Warn("tally cache lookup failed", "election_id", electionID, "error", lookupErr)
	case cached != nil:
		metrics.IncTallyCache("hit")
		return *cached, nil
	default:
		metrics.IncTallyCache("miss")
	}

	t, err := s.count(ctx, electionID)
	if err != nil {
		return Tally{}, err
	}

	// Without a known version the tally cannot be stored safely.
	if lookupErr == nil {
		if err := s.cache.Store(ctx, electionID, version, t); err != nil {
			s.log.Warn("tally cache store failed", "election_id", electionID, "error", err)
		}
	}
	return t, nil
}

func (s *Service) count(ctx context.Context, electionID string) (Tally, error) {
	votes, err := s.votes.ListByElection(ctx, electionID)
	if err != nil {
		return Tally{}, fmt.Errorf("list votes: %w", err)
	}
	return CountVotes(votes), nil
}

// CountVotes tallies one snapshot of an election's votes.
func CountVotes(votes []Vote) Tally {
	t := Tally{Counts: make(map[string]int64)}
	for _, v := range votes {
		t.Counts[v.CandidateID]++
		t.Total++
	}
	return t
}

// Compute lays a tally over the election's candidates in their stored order and
// decides the outcome: a single candidate at a non-zero maximum wins, several tie,
// and an election without votes has no winner.
func Compute(e *election.Election, t Tally) *Results {
	res := &Results{
		ElectionID:  e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		Status:      e.Status,
		CreatedBy:   e.CreatedBy,
		Candidates:  make([]CandidateResult, 0, len(e.Candidates)),
		TotalVotes:  t.Total,
		Winners:     []string{},
	}

	var max int64
	for _, c := range e.Candidates {
		n := t.Counts[c.ID]
		res.Candidates = append(res.Candidates, CandidateResult{Candidate: c, Votes: n})
		if n > max {
			max = n
		}
	}

	if max > 0 {
		for _, c := range res.Candidates {
			if c.Votes == max {
				res.Winners = append(res.Winners, c.ID)
			}
		}
	}

	switch len(res.Winners) {
	case 0:
		res.Outcome = OutcomeNone
	case 1:
		res.Outcome = OutcomeWinner
	default:
		res.Outcome = OutcomeTie
	}
	return res
}
