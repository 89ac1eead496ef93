package vote

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-platform/internal/domain/election"
	"voting-platform/internal/domain/user"
)

// memoryVoteRepo enforces (user, election) uniqueness under its lock, the same
// guarantee the postgres unique index gives.
type memoryVoteRepo struct {
	mu        sync.Mutex
	votes     []Vote
	byVoter   map[string]bool
	listCalls int
}

func newMemoryVoteRepo() *memoryVoteRepo {
	return &memoryVoteRepo{byVoter: make(map[string]bool)}
}

func voterKey(electionID, userID string) string {
	return electionID + "/" + userID
}

func (r *memoryVoteRepo) Create(ctx context.Context, v *Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := voterKey(v.ElectionID, v.UserID)
	if r.byVoter[key] {
		return ErrDuplicateVote
	}
	r.byVoter[key] = true
	r.votes = append(r.votes, *v)
	return nil
}

func (r *memoryVoteRepo) ListByElection(ctx context.Context, electionID string) ([]Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var res []Vote
	for _, v := range r.votes {
		if v.ElectionID == electionID {
			res = append(res, v)
		}
	}
	return res, nil
}

func (r *memoryVoteRepo) HasUserVoted(ctx context.Context, electionID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byVoter[voterKey(electionID, userID)], nil
}

func (r *memoryVoteRepo) VotedElectionIDs(ctx context.Context, userID string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make(map[string]bool)
	for _, v := range r.votes {
		if v.UserID == userID {
			res[v.ElectionID] = true
		}
	}
	return res, nil
}

func (r *memoryVoteRepo) CountByCandidate(ctx context.Context, electionID string) (map[string]int64, error) {
	votes, _ := r.ListByElection(ctx, electionID)
	return CountVotes(votes).Counts, nil
}

func (r *memoryVoteRepo) count(electionID, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.votes {
		if v.ElectionID == electionID && v.UserID == userID {
			n++
		}
	}
	return n
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newMemoryUsers(users ...*user.User) *memoryUsers {
	m := &memoryUsers{users: make(map[string]*user.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) GetByID(ctx context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copyUser := *u
	return &copyUser, nil
}

func (m *memoryUsers) SetFingerprintVerified(ctx context.Context, id string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.FingerprintVerified = verified
	return nil
}

func (m *memoryUsers) verified(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].FingerprintVerified
}

// clockedElections derives status from the clock on every read and ignores the
// stored value, like election.Service.Current.
type clockedElections struct {
	elections map[string]election.Election
	now       func() time.Time
}

func (c *clockedElections) Current(ctx context.Context, id string) (*election.Election, error) {
	e, ok := c.elections[id]
	if !ok {
		return nil, election.ErrElectionNotFound
	}
	election.Refresh(&e, c.now())
	return &e, nil
}

type harness struct {
	now       time.Time
	votes     *memoryVoteRepo
	users     *memoryUsers
	elections *clockedElections
	svc       *Service
}

func strPtr(s string) *string { return &s }

func newHarness(users ...*user.User) *harness {
	h := &harness{
		now:   time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		votes: newMemoryVoteRepo(),
		users: newMemoryUsers(users...),
	}
	h.elections = &clockedElections{
		elections: make(map[string]election.Election),
		now:       func() time.Time { return h.now },
	}
	h.svc = NewService(h.votes, h.users, h.elections, WithClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) addElection(id string, start, end time.Duration, stored election.Status, candidates ...string) {
	e := election.Election{
		ID:        id,
		Title:     "Election " + id,
		StartDate: h.now.Add(start),
		EndDate:   h.now.Add(end),
		Status:    stored,
	}
	for _, c := range candidates {
		e.Candidates = append(e.Candidates, election.Candidate{ID: c, Name: "Candidate " + c})
	}
	h.elections.elections[id] = e
}

func verifiedUser(id string) *user.User {
	return &user.User{ID: id, Username: id, Role: user.RoleUser, FingerprintVerified: true}
}

func TestCastVoteAndDuplicate(t *testing.T) {
	h := newHarness(verifiedUser("u1"))
	h.addElection("e1", -time.Hour, time.Hour, election.StatusOngoing, "A", "B")
	ctx := context.Background()

	v, err := h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: "A"})
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "u1", v.UserID)
	assert.Equal(t, "A", v.CandidateID)
	assert.Equal(t, h.now, v.CastAt)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: "B"})
	require.ErrorIs(t, err, ErrDuplicateVote)
	assert.Equal(t, 1, h.votes.count("e1", "u1"))

	res, err := h.svc.Results(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "A", res.Candidates[0].ID)
	assert.EqualValues(t, 1, res.Candidates[0].Votes)
	assert.EqualValues(t, 0, res.Candidates[1].Votes)
	assert.EqualValues(t, 1, res.TotalVotes)
	assert.Equal(t, OutcomeWinner, res.Outcome)
	assert.Equal(t, []string{"A"}, res.Winners)
}

func TestCastVoteOutsideWindow(t *testing.T) {
	h := newHarness(verifiedUser("u1"))
	h.addElection("future", time.Hour, 2*time.Hour, election.StatusUpcoming, "A")
	h.addElection("stale", -2*time.Hour, -time.Hour, election.StatusOngoing, "A")
	ctx := context.Background()

	_, err := h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "future", CandidateID: "A"})
	require.ErrorIs(t, err, ErrElectionNotOngoing)
	var notOngoing *NotOngoingError
	require.ErrorAs(t, err, &notOngoing)
	assert.Equal(t, election.StatusUpcoming, notOngoing.Status)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "stale", CandidateID: "A"})
	require.ErrorAs(t, err, &notOngoing, "stored ongoing status must not be trusted")
	assert.Equal(t, election.StatusEnded, notOngoing.Status)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "missing", CandidateID: "A"})
	require.ErrorIs(t, err, election.ErrElectionNotFound)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "ghost", ElectionID: "future", CandidateID: "A"})
	require.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestCastVoteCandidateMembership(t *testing.T) {
	unverified := &user.User{ID: "u2", FingerprintTemplate: strPtr("tmpl-u2")}
	h := newHarness(verifiedUser("u1"), unverified)
	h.addElection("e1", -time.Hour, time.Hour, election.StatusOngoing, "A", "B")
	h.addElection("e2", -time.Hour, time.Hour, election.StatusOngoing, "C")
	ctx := context.Background()

	_, err := h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: "C"})
	require.ErrorIs(t, err, ErrCandidateNotFound)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u2", ElectionID: "e1", CandidateID: "C", Proof: strPtr("tmpl-u2")})
	require.ErrorIs(t, err, ErrCandidateNotFound)
	assert.Equal(t, 0, h.votes.count("e1", "u1")+h.votes.count("e1", "u2"))
}

func TestVerificationGate(t *testing.T) {
	h := newHarness(
		&user.User{ID: "u1", FingerprintTemplate: strPtr("tmpl-u1")},
		&user.User{ID: "u-no-template"},
	)
	h.addElection("e1", -time.Hour, time.Hour, election.StatusOngoing, "A", "B")
	h.addElection("e2", -time.Hour, time.Hour, election.StatusOngoing, "X")
	ctx := context.Background()

	_, err := h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: "A"})
	require.ErrorIs(t, err, ErrVerificationDataRequired)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: "A", Proof: strPtr("")})
	require.ErrorIs(t, err, ErrVerificationDataRequired)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u-no-template", ElectionID: "e1", CandidateID: "A", Proof: strPtr("anything")})
	require.ErrorIs(t, err, ErrVerificationNotEnrolled)

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: "A", Proof: strPtr("tmpl-wrong")})
	require.ErrorIs(t, err, ErrVerificationFailed)
	assert.False(t, h.users.verified("u1"))

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: "A", Proof: strPtr("tmpl-u1")})
	require.NoError(t, err)
	assert.True(t, h.users.verified("u1"))

	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e2", CandidateID: "X"})
	require.NoError(t, err, "verified voters need no proof")
}

func TestVerificationRunsBeforeElectionChecks(t *testing.T) {
	h := newHarness(&user.User{ID: "u1", FingerprintTemplate: strPtr("tmpl-u1")})
	h.addElection("future", time.Hour, 2*time.Hour, election.StatusUpcoming, "A")
	ctx := context.Background()

	_, err := h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "missing", CandidateID: "A"})
	require.ErrorIs(t, err, ErrVerificationDataRequired)

	// A proven fingerprint stays verified even though the vote itself is refused.
	_, err = h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "future", CandidateID: "A", Proof: strPtr("tmpl-u1")})
	require.ErrorIs(t, err, ErrElectionNotOngoing)
	assert.True(t, h.users.verified("u1"))
}

func TestConcurrentDoubleVote(t *testing.T) {
	h := newHarness(verifiedUser("u1"))
	h.addElection("e1", -time.Hour, time.Hour, election.StatusOngoing, "A", "B")
	ctx := context.Background()

	const attempts = 32
	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidate := "A"
			if i%2 == 1 {
				candidate = "B"
			}
			_, err := h.svc.CastVote(ctx, CastInput{VoterID: "u1", ElectionID: "e1", CandidateID: candidate})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrDuplicateVote):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, attempts-1, dup.Load())
	assert.Equal(t, 1, h.votes.count("e1", "u1"))
}

func TestRejectionReason(t *testing.T) {
	assert.Equal(t, "election_not_ongoing", RejectionReason(&NotOngoingError{Status: election.StatusEnded}))
	assert.Equal(t, "duplicate_vote", RejectionReason(ErrDuplicateVote))
	assert.Equal(t, "verification_failed", RejectionReason(ErrVerificationFailed))
	assert.Equal(t, "user_not_found", RejectionReason(user.ErrUserNotFound))
	assert.Equal(t, "", RejectionReason(errors.New("disk full")))
}
