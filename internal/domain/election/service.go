package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"voting-platform/internal/metrics"
	"voting-platform/internal/platform/apperr"
)

var (
	ErrElectionNotFound  = errors.New("election not found")
	ErrCandidateHasVotes = errors.New("candidate already has votes")
)

type CandidateInput struct {
	ID          string
	Name        string
	Description string
	ImageURL    *string
}

type CreateInput struct {
	Title       string
	Description string
	ImageURL    *string
	Candidates  []CandidateInput
	StartDate   time.Time
	EndDate     time.Time
}

// UpdateInput is a partial update; nil fields are left untouched.
// A non-nil Candidates slice replaces the whole candidate set, and ClearImage
// removes the image when no new ImageURL is given.
type UpdateInput struct {
	Title       *string
	Description *string
	ImageURL    *string
	ClearImage  bool
	Candidates  []CandidateInput
	StartDate   *time.Time
	EndDate     *time.Time
}

type Service struct {
	repo        Repository
	votes       VoteIndex
	invalidator Invalidator
	log         *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
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

func NewService(repo Repository, votes VoteIndex, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		votes: votes,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput, creatorID string) (*Election, error) {
	fe := apperr.FieldErrors{}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		fe.Add("title", "title is required")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		fe.Add("description", "description is required")
	}
	validateWindow(fe, in.StartDate, in.EndDate)
	candidates := buildCandidates(fe, in.Candidates)

	if err := fe.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	e := &Election{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		ImageURL:    in.ImageURL,
		Candidates:  candidates,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      DeriveStatus(now, in.StartDate, in.EndDate),
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create election: %w", err)
	}
	return e, nil
}

// Current returns the election with its status recomputed for the present moment.
func (s *Service) Current(ctx context.Context, id string) (*Election, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, e, s.now())
	return e, nil
}

func (s *Service) Get(ctx context.Context, id, viewerID string) (*View, error) {
	e, err := s.Current(ctx, id)
	if err != nil {
		return nil, err
	}

	voted := false
	if viewerID != "" {
		voted, err = s.votes.HasUserVoted(ctx, e.ID, viewerID)
		if err != nil {
			return nil, fmt.Errorf("check vote: %w", err)
		}
	}
	return &View{Election: *e, UserHasVoted: voted}, nil
}

// List refreshes every election before filtering, so the filter never sees a stale status.
func (s *Service) List(ctx context.Context, status *Status, viewerID string) ([]View, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.FieldErrors{"status": "status must be one of upcoming, ongoing, ended"}
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}

	voted := map[string]bool{}
	if viewerID != "" {
		voted, err = s.votes.VotedElectionIDs(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("list votes: %w", err)
		}
	}

	now := s.now()
	views := make([]View, 0, len(all))
	for i := range all {
		s.refresh(ctx, &all[i], now)
		if status != nil && all[i].Status != *status {
			continue
		}
		views = append(views, View{Election: all[i], UserHasVoted: voted[all[i].ID]})
	}
	return views, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Election, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	fe := apperr.FieldErrors{}
	if in.Title != nil {
		if t := strings.TrimSpace(*in.Title); t != "" {
			e.Title = t
		} else {
			fe.Add("title", "title cannot be empty")
		}
	}
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			e.Description = d
		} else {
			fe.Add("description", "description cannot be empty")
		}
	}
	switch {
	case in.ImageURL != nil:
		e.ImageURL = in.ImageURL
	case in.ClearImage:
		e.ImageURL = nil
	}
	if in.StartDate != nil {
		e.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		e.EndDate = *in.EndDate
	}
	validateWindow(fe, e.StartDate, e.EndDate)

	var candidates []Candidate
	if in.Candidates != nil {
		candidates = buildCandidates(fe, in.Candidates)
	}
	if err := fe.OrNil(); err != nil {
		return nil, err
	}

	if in.Candidates != nil {
		if err := s.ensureVotedCandidatesKept(ctx, e.ID, candidates); err != nil {
			return nil, err
		}
		e.Candidates = candidates
	}

	now := s.now()
	e.UpdatedAt = now
	prev := e.Status
	if changed, status := Refresh(e, now); changed {
		metrics.IncStatusTransition(string(prev), string(status))
	}

	if err := s.repo.Update(ctx, e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrElectionNotFound
		}
		return nil, fmt.Errorf("update election: %w", err)
	}
	s.invalidate(ctx, e.ID)
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrElectionNotFound
		}
		return fmt.Errorf("delete election: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*Election, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrElectionNotFound
		}
		return nil, fmt.Errorf("get election: %w", err)
	}
	return e, nil
}

// refresh writes a changed status back. The write is idempotent, and a failure only
// costs a stale cached column: the caller still sees the derived value.
func (s *Service) refresh(ctx context.Context, e *Election, now time.Time) {
	prev := e.Status
	changed, status := Refresh(e, now)
	if !changed {
		return
	}
	metrics.IncStatusTransition(string(prev), string(status))
	if err := s.repo.UpdateStatus(ctx, e.ID, status); err != nil {
		s.log.Warn("election status write-back failed",
			"election_id", e.ID,
			"status", status,
			"error", err,
		)
	}
}

func (s *Service) ensureVotedCandidatesKept(ctx context.Context, electionID string, next []Candidate) error {
	counts, err := s.votes.CountByCandidate(ctx, electionID)
	if err != nil {
		return fmt.Errorf("count votes: %w", err)
	}
	kept := make(map[string]bool, len(next))
	for _, c := range next {
		kept[c.ID] = true
	}
	for candidateID, n := range counts {
		if n > 0 && !kept[candidateID] {
			return fmt.Errorf("%w: %s", ErrCandidateHasVotes, candidateID)
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, electionID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, electionID); err != nil {
		s.log.Warn("tally cache invalidation failed", "election_id", electionID, "error", err)
	}
}

func validateWindow(fe apperr.FieldErrors, start, end time.Time) {
	if start.IsZero() {
		fe.Add("startDate", "startDate is required")
	}
	if end.IsZero() {
		fe.Add("endDate", "endDate is required")
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		fe.Add("endDate", "endDate must be after startDate")
	}
}

func buildCandidates(fe apperr.FieldErrors, in []CandidateInput) []Candidate {
	if len(in) == 0 {
		fe.Add("candidates", "at least one candidate is required")
		return nil
	}

	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for i, c := range in {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			fe.Add(fmt.Sprintf("candidates[%d].name", i), "name is required")
		}
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			fe.Add(fmt.Sprintf("candidates[%d].id", i), "duplicate candidate id")
		}
		seen[id] = true
		out = append(out, Candidate{
			ID:          id,
			Name:        name,
			Description: strings.TrimSpace(c.Description),
			ImageURL:    c.ImageURL,
		})
	}
	return out
}
