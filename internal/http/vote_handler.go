package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"voting-platform/internal/domain/vote"
	"voting-platform/internal/platform/apperr"
	"voting-platform/internal/worker"
)

type voteRequest struct {
	CandidateID     string  `json:"candidateId"`
	FingerprintData *string `json:"fingerprintData,omitempty"`
}

// @Summary     Cast a vote
// @Description Unverified voters must send fingerprintData; one vote per voter and election.
// @Tags        votes
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id       path      string       true  "Election ID"
// @Param       request  body      voteRequest  true  "Vote payload"
// @Success     201      {object}  vote.Vote
// @Failure     400      {object}  apperr.AppError  "verification failed or election not ongoing"
// @Failure     404      {object}  apperr.AppError  "election or candidate not found"
// @Failure     409      {object}  apperr.AppError  "already voted"
// @Failure     429      {object}  apperr.AppError  "rate limited"
// @Router      /elections/{id}/vote [post]
func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		errorResponse(w, err)
		return
	}
	candidateID := strings.TrimSpace(req.CandidateID)
	if candidateID == "" {
		errorResponse(w, apperr.FieldErrors{"candidateId": "candidateId is required"})
		return
	}

	v, err := h.voteSvc.CastVote(r.Context(), vote.CastInput{
		VoterID:     userIDFromCtx(r),
		ElectionID:  chi.URLParam(r, "id"),
		CandidateID: candidateID,
		Proof:       req.FingerprintData,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}

	if !worker.Publish(h.voteCh, worker.VoteEvent{
		ElectionID:  v.ElectionID,
		CandidateID: v.CandidateID,
		VoterID:     v.UserID,
		CastAt:      v.CastAt,
	}) {
		slogLogger.Warn("vote event dropped", "election_id", v.ElectionID)
	}

	writeJSON(w, http.StatusCreated, v)
}

// @Summary     Election results
// @Description Per-candidate counts in candidate order with the winner or tie.
// @Tags        votes
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Election ID"
// @Success     200  {object}  vote.Results
// @Failure     404  {object}  apperr.AppError  "not found"
// @Router      /elections/{id}/results [get]
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.voteSvc.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
