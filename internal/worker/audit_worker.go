package worker

import (
	"context"
	"log/slog"
	"time"

	"voting-platform/internal/metrics"
)

// VoteEvent describes an accepted vote. It is emitted after the vote is stored.
type VoteEvent struct {
	ElectionID  string
	CandidateID string
	VoterID     string
	CastAt      time.Time
}

// Publish hands ev to the worker without blocking the request; it reports false
// when the buffer is full and the event was dropped.
func Publish(ch chan<- VoteEvent, ev VoteEvent) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

type AuditWorker struct {
	ch  <-chan VoteEvent
	log *slog.Logger
}

func NewAuditWorker(ch <-chan VoteEvent, log *slog.Logger) *AuditWorker {
	if log == nil {
		log = slog.Default()
	}
	return &AuditWorker{ch: ch, log: log}
}

// Run drains events until ctx is cancelled or the channel is closed.
func (w *AuditWorker) Run(ctx context.Context) {
	w.log.Info("audit worker started")
	defer w.log.Info("audit worker stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.ch:
			if !ok {
				return
			}
			w.handle(ev)
		}
	}
}

func (w *AuditWorker) handle(ev VoteEvent) {
	metrics.IncVoteAudited()
	w.log.Info("vote recorded",
		"election_id", ev.ElectionID,
		"candidate_id", ev.CandidateID,
		"voter_id", ev.VoterID,
		"cast_at", ev.CastAt.Format(time.RFC3339),
	)
}
