package vote

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voting-platform/internal/domain/election"
	"voting-platform/internal/domain/user"
	"voting-platform/internal/metrics"
)

var (
	ErrVerificationDataRequired = errors.New("fingerprint data required for unverified users")
	ErrVerificationNotEnrolled  = errors.New("fingerprint not enrolled for this user")
	ErrVerificationFailed       = errors.New("fingerprint verification failed")
	ErrElectionNotOngoing       = errors.New("election is not ongoing")
	ErrCandidateNotFound        = errors.New("candidate not found in this election")
	ErrDuplicateVote            = errors.New("user already voted in this election")
)

// NotOngoingError carries the status the election was actually in.
type NotOngoingError struct {
	Status election.Status
}

func (e *NotOngoingError) Error() string {
	return fmt.Sprintf("election is not ongoing (status: %s)", e.Status)
}

func (e *NotOngoingError) Is(target error) bool {
	return target == ErrElectionNotOngoing
}

// UserStore is the part of the user repository the voting engine needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	SetFingerprintVerified(ctx context.Context, id string, verified bool) error
}

// ElectionSource yields elections with a status freshly derived from the clock.
type ElectionSource interface {
	Current(ctx context.Context, id string) (*election.Election, error)
}

// CastInput is one vote submission. Proof is the submitted fingerprint data and is
// only consulted for voters who are not verified yet.
type CastInput struct {
	VoterID     string
	ElectionID  string
	CandidateID string
	Proof       *string
}

type Service struct {
	votes     Repository
	users     UserStore
	elections ElectionSource
	cache     TallyCache
	log       *slog.Logger
	now       func() time.Time

	// stale holds elections whose cache generation could not be bumped after a
	// vote; reads skip the cache for them until a later bump succeeds.
	staleMu  sync.Mutex
	stale    map[string]uint64
	staleSeq uint64
}

type Option func(*Service)

func WithTallyCache(c TallyCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(votes Repository, users UserStore, elections ElectionSource, opts ...Option) *Service {
	s := &Service{
		votes:     votes,
		users:     users,
		elections: elections,
		cache:     nopCache{},
		log:       slog.Default(),
		now:       time.Now,
		stale:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CastVote runs the checks strictly in order: voter, verification, election window,
// candidate membership, then the insert whose uniqueness the repository enforces.
// A verification flag flipped on the way is kept even when a later step fails.
func (s *Service) CastVote(ctx context.Context, in CastInput) (*Vote, error) {
	voter, err := s.users.GetByID(ctx, in.VoterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, user.ErrUserNotFound) {
			return nil, s.reject(user.ErrUserNotFound)
		}
		return nil, fmt.Errorf("load voter: %w", err)
	}

	if !voter.FingerprintVerified {
		if err := s.verify(ctx, voter, in.Proof); err != nil {
			return nil, s.reject(err)
		}
	}

	e, err := s.elections.Current(ctx, in.ElectionID)
	if err != nil {
		return nil, s.reject(err)
	}
	if e.Status != election.StatusOngoing {
		return nil, s.reject(&NotOngoingError{Status: e.Status})
	}
	if _, ok := e.Candidate(in.CandidateID); !ok {
		return nil, s.reject(ErrCandidateNotFound)
	}

	v := &Vote{
		ID:          uuid.NewString(),
		UserID:      voter.ID,
		ElectionID:  e.ID,
		CandidateID: in.CandidateID,
		CastAt:      s.now(),
	}
	if err := s.votes.Create(ctx, v); err != nil {
		if errors.Is(err, ErrDuplicateVote) {
			return nil, s.reject(ErrDuplicateVote)
		}
		return nil, fmt.Errorf("record vote: %w", err)
	}

	metrics.IncVoteCast()
	if err := s.cache.Invalidate(ctx, e.ID); err != nil {
		s.markStale(e.ID)
		s.log.Warn("tally cache invalidation failed", "election_id", e.ID, "error", err)
	}
	return v, nil
}

func (s *Service) markStale(electionID string) {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	s.staleSeq++
	s.stale[electionID] = s.staleSeq
}

// staleMark returns the current mark for an election, or 0 when it has none.
func (s *Service) staleMark(electionID string) uint64 {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	return s.stale[electionID]
}

// clearStale drops the mark only if no newer failure replaced it meanwhile.
func (s *Service) clearStale(electionID string, mark uint64) {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	if s.stale[electionID] == mark {
		delete(s.stale, electionID)
	}
}

func (s *Service) verify(ctx context.Context, voter *user.User, proof *string) error {
	if proof == nil || *proof == "" {
		return ErrVerificationDataRequired
	}
	if !voter.HasFingerprint() {
		return ErrVerificationNotEnrolled
	}
	if subtle.ConstantTimeCompare([]byte(*proof), []byte(*voter.FingerprintTemplate)) != 1 {
		return ErrVerificationFailed
	}
	if err := s.users.SetFingerprintVerified(ctx, voter.ID, true); err != nil {
		return fmt.Errorf("mark voter verified: %w", err)
	}
	voter.FingerprintVerified = true
	s.log.Info("voter verified by fingerprint", "user_id", voter.ID)
	return nil
}

func (s *Service) reject(err error) error {
	if reason := RejectionReason(err); reason != "" {
		metrics.IncVoteRejected(reason)
	}
	return err
}

// RejectionReason names a voting rule failure, or returns "" for unexpected errors.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrVerificationDataRequired):
		return "verification_required"
	case errors.Is(err, ErrVerificationNotEnrolled):
		return "verification_not_enrolled"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, election.ErrElectionNotFound):
		return "election_not_found"
	case errors.Is(err, ErrElectionNotOngoing):
		return "election_not_ongoing"
	case errors.Is(err, ErrCandidateNotFound):
		return "candidate_not_found"
	case errors.Is(err, ErrDuplicateVote):
		return "duplicate_vote"
	default:
		return ""
	}
}
